package snippets

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/codelet/clet/internal/codelet"
	"github.com/codelet/clet/internal/prefs"
)

// fakeGate is a Sessions implementation with a fixed answer.
type fakeGate struct {
	token string
	valid bool
}

func (g fakeGate) ValidToken() (string, bool) {
	return g.token, g.valid
}

// fakeAPI is an in-memory API with call accounting. When entered/release
// are set, GetSnippet parks until released so tests can interleave calls.
type fakeAPI struct {
	mu        sync.Mutex
	summaries []codelet.Summary
	snippets  map[int]*codelet.Snippet

	listErr   error
	getErr    error
	createErr error
	updateErr error
	deleteErr error

	listCalls   int
	getCalls    int
	createCalls int
	updateCalls int
	deleteCalls int

	created []codelet.Draft
	updated map[int]codelet.Draft

	entered chan int
	release chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		snippets: make(map[int]*codelet.Snippet),
		updated:  make(map[int]codelet.Draft),
	}
}

func (f *fakeAPI) ListSnippets(context.Context, string) ([]codelet.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	dup := make([]codelet.Summary, len(f.summaries))
	copy(dup, f.summaries)
	return dup, nil
}

func (f *fakeAPI) GetSnippet(_ context.Context, _ string, id int) (*codelet.Snippet, error) {
	f.mu.Lock()
	f.getCalls++
	entered, release := f.entered, f.release
	f.mu.Unlock()

	if entered != nil {
		entered <- id
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	snippet, ok := f.snippets[id]
	if !ok {
		return nil, codelet.ErrNotFound
	}
	dup := *snippet
	return &dup, nil
}

func (f *fakeAPI) CreateSnippet(_ context.Context, _ string, draft codelet.Draft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, draft)
	return nil
}

func (f *fakeAPI) UpdateSnippet(_ context.Context, _ string, id int, draft codelet.Draft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated[id] = draft
	return nil
}

func (f *fakeAPI) DeleteSnippet(context.Context, string, int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	return f.deleteErr
}

func (f *fakeAPI) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls + f.getCalls + f.createCalls + f.updateCalls + f.deleteCalls
}

func summariesOf(ids ...int) []codelet.Summary {
	out := make([]codelet.Summary, 0, len(ids))
	for _, id := range ids {
		out = append(out, codelet.Summary{ID: id, Language: "go", Title: "snippet"})
	}
	return out
}

func TestStore_AllOperationsFailClosedWithoutSession(t *testing.T) {
	api := newFakeAPI()
	store := New(api, fakeGate{valid: false}, prefs.NewMemory())
	ctx := context.Background()

	if _, err := store.Load(ctx); !errors.Is(err, codelet.ErrUnauthenticated) {
		t.Fatalf("Load error = %v, want ErrUnauthenticated", err)
	}
	if _, err := store.Select(ctx, 1); !errors.Is(err, codelet.ErrUnauthenticated) {
		t.Fatalf("Select error = %v, want ErrUnauthenticated", err)
	}
	fields := Fields{Language: "go", Title: "t", Code: "c"}
	if err := store.Create(ctx, fields); !errors.Is(err, codelet.ErrUnauthenticated) {
		t.Fatalf("Create error = %v, want ErrUnauthenticated", err)
	}
	if err := store.Update(ctx, 1, fields); !errors.Is(err, codelet.ErrUnauthenticated) {
		t.Fatalf("Update error = %v, want ErrUnauthenticated", err)
	}
	if _, err := store.Delete(ctx, 1); !errors.Is(err, codelet.ErrUnauthenticated) {
		t.Fatalf("Delete error = %v, want ErrUnauthenticated", err)
	}

	if calls := api.totalCalls(); calls != 0 {
		t.Fatalf("api calls = %d, want 0 when unauthenticated", calls)
	}
}

func TestStore_LoadDerivesCategoriesInFirstOccurrenceOrder(t *testing.T) {
	api := newFakeAPI()
	api.summaries = []codelet.Summary{
		{ID: 1, Language: "go", Title: "a"},
		{ID: 2, Language: "python", Title: "b"},
		{ID: 3, Language: "go", Title: "c"},
		{ID: 4, Language: "rust", Title: "d"},
		{ID: 5, Language: "python", Title: "e"},
	}
	store := New(api, fakeGate{token: "tok", valid: true}, prefs.NewMemory())

	snap, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := []string{"go", "python", "rust"}
	if !reflect.DeepEqual(snap.Categories, want) {
		t.Fatalf("categories = %v, want %v", snap.Categories, want)
	}
	if len(snap.Summaries) != 5 {
		t.Fatalf("summaries = %d entries, want 5", len(snap.Summaries))
	}
}

func TestStore_LoadEmptyCollectionIsNotAnError(t *testing.T) {
	api := newFakeAPI()
	store := New(api, fakeGate{token: "tok", valid: true}, prefs.NewMemory())

	snap, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(snap.Summaries) != 0 || len(snap.Categories) != 0 {
		t.Fatalf("snapshot = %#v, want empty", snap)
	}
}

func TestStore_LoadDropsDanglingSelection(t *testing.T) {
	api := newFakeAPI()
	api.summaries = summariesOf(1, 2)
	api.snippets[2] = &codelet.Snippet{ID: 2, Language: "go", Title: "b"}
	store := New(api, fakeGate{token: "tok", valid: true}, prefs.NewMemory())
	ctx := context.Background()

	if _, err := store.Load(ctx); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if _, err := store.Select(ctx, 2); err != nil {
		t.Fatalf("Select returned error: %v", err)
	}

	// Snippet 2 disappears server-side (deleted elsewhere).
	api.mu.Lock()
	api.summaries = summariesOf(1)
	api.mu.Unlock()

	snap, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if snap.SelectedID != 0 || snap.Current != nil {
		t.Fatalf("selection = (%d, %v), want dropped", snap.SelectedID, snap.Current)
	}
}

func TestStore_SelectPersistsPointer(t *testing.T) {
	api := newFakeAPI()
	api.snippets[7] = &codelet.Snippet{ID: 7, Language: "go", Title: "x", Code: "y"}
	store := prefs.NewMemory()
	s := New(api, fakeGate{token: "tok", valid: true}, store)

	snippet, err := s.Select(context.Background(), 7)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if snippet.ID != 7 {
		t.Fatalf("snippet id = %d, want 7", snippet.ID)
	}
	if store.LastSnippet() != 7 {
		t.Fatalf("persisted pointer = %d, want 7", store.LastSnippet())
	}
}

func TestStore_SelectRejectsNonPositiveID(t *testing.T) {
	api := newFakeAPI()
	s := New(api, fakeGate{token: "tok", valid: true}, prefs.NewMemory())

	for _, id := range []int{0, -1} {
		if _, err := s.Select(context.Background(), id); !errors.Is(err, ErrInvalidID) {
			t.Fatalf("Select(%d) error = %v, want ErrInvalidID", id, err)
		}
	}
	if api.totalCalls() != 0 {
		t.Fatalf("api calls = %d, want 0 for precondition failures", api.totalCalls())
	}
}

func TestStore_RestoreSelectionPrefersPersistedPointer(t *testing.T) {
	api := newFakeAPI()
	api.summaries = summariesOf(1, 2, 3)
	api.snippets[2] = &codelet.Snippet{ID: 2, Language: "go", Title: "b"}
	store := prefs.NewMemory()
	_ = store.SetLastSnippet(2)
	s := New(api, fakeGate{token: "tok", valid: true}, store)
	ctx := context.Background()

	if _, err := s.Load(ctx); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	snippet, err := s.RestoreSelection(ctx)
	if err != nil {
		t.Fatalf("RestoreSelection returned error: %v", err)
	}
	if snippet == nil || snippet.ID != 2 {
		t.Fatalf("restored snippet = %v, want id=2", snippet)
	}
}

func TestStore_RestoreSelectionRecoversFromDanglingPointer(t *testing.T) {
	api := newFakeAPI()
	api.summaries = summariesOf(4, 5)
	api.snippets[4] = &codelet.Snippet{ID: 4, Language: "go", Title: "a"}
	store := prefs.NewMemory()
	_ = store.SetLastSnippet(99) // deleted externally
	s := New(api, fakeGate{token: "tok", valid: true}, store)
	ctx := context.Background()

	if _, err := s.Load(ctx); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	snippet, err := s.RestoreSelection(ctx)
	if err != nil {
		t.Fatalf("RestoreSelection returned error: %v", err)
	}
	if snippet == nil || snippet.ID != 4 {
		t.Fatalf("restored snippet = %v, want fallback to first summary", snippet)
	}
	if store.LastSnippet() != 4 {
		t.Fatalf("pointer = %d, want re-pointed at 4", store.LastSnippet())
	}
}

func TestStore_RestoreSelectionEmptyCollection(t *testing.T) {
	api := newFakeAPI()
	s := New(api, fakeGate{token: "tok", valid: true}, prefs.NewMemory())
	ctx := context.Background()

	if _, err := s.Load(ctx); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	snippet, err := s.RestoreSelection(ctx)
	if err != nil {
		t.Fatalf("RestoreSelection returned error: %v", err)
	}
	if snippet != nil {
		t.Fatalf("snippet = %v, want none for empty collection", snippet)
	}
}

func TestStore_CreatePreconditionsBlockNetwork(t *testing.T) {
	api := newFakeAPI()
	s := New(api, fakeGate{token: "tok", valid: true}, prefs.NewMemory())
	ctx := context.Background()

	tests := []struct {
		name   string
		fields Fields
		want   error
	}{
		{"missing language", Fields{Title: "t", Code: "c"}, ErrEmptyField},
		{"missing title", Fields{Language: "go", Code: "c"}, ErrEmptyField},
		{"missing code", Fields{Language: "go", Title: "t"}, ErrEmptyField},
		{"blank code", Fields{Language: "go", Title: "t", Code: "   "}, ErrEmptyField},
		{"oversized code", Fields{Language: "go", Title: "t", Code: string(make([]byte, codelet.MaxCodeSize+1))}, ErrCodeTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Create(ctx, tt.fields); !errors.Is(err, tt.want) {
				t.Fatalf("Create error = %v, want %v", err, tt.want)
			}
			if err := s.Update(ctx, 1, tt.fields); !errors.Is(err, tt.want) {
				t.Fatalf("Update error = %v, want %v", err, tt.want)
			}
		})
	}

	if api.totalCalls() != 0 {
		t.Fatalf("api calls = %d, want 0 for precondition failures", api.totalCalls())
	}
}

func TestStore_CreateNormalizesTagsAndAppliesDefaults(t *testing.T) {
	api := newFakeAPI()
	s := New(api, fakeGate{token: "tok", valid: true}, prefs.NewMemory())

	fields := Fields{
		Language: "go",
		Title:    "worker pool",
		Tags:     "go, backend ,, web",
		Code:     "package main",
	}
	if err := s.Create(context.Background(), fields); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if len(api.created) != 1 {
		t.Fatalf("created = %d drafts, want 1", len(api.created))
	}
	draft := api.created[0]
	if !reflect.DeepEqual(draft.Tags, []string{"go", "backend", "web"}) {
		t.Fatalf("tags = %v, want trimmed with empties dropped", draft.Tags)
	}
	if draft.Favorite || !draft.Private {
		t.Fatalf("defaults = (favorite=%v, private=%v), want (false, true)", draft.Favorite, draft.Private)
	}
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"go, backend ,, web", []string{"go", "backend", "web"}},
		{"", []string{}},
		{" , , ", []string{}},
		{"solo", []string{"solo"}},
	}
	for _, tt := range tests {
		if got := NormalizeTags(tt.raw); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("NormalizeTags(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestStore_DeleteSelectionRule(t *testing.T) {
	tests := []struct {
		name       string
		ids        []int
		deleteID   int
		wantIDs    []int
		wantNext   int
		wantEmpty  bool
		wantReload bool
	}{
		{"middle element selects same index", []int{1, 2, 5, 9}, 5, []int{1, 2, 9}, 9, false, false},
		{"last element selects new last", []int{1, 2, 9}, 9, []int{1, 2}, 2, false, false},
		{"first of two leaves valid selection", []int{1, 2}, 1, []int{2}, 2, false, false},
		{"only element forces reload", []int{5}, 5, []int{}, 0, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			api.summaries = summariesOf(tt.ids...)
			store := prefs.NewMemory()
			_ = store.SetLastSnippet(tt.deleteID)
			s := New(api, fakeGate{token: "tok", valid: true}, store)
			ctx := context.Background()

			if _, err := s.Load(ctx); err != nil {
				t.Fatalf("Load returned error: %v", err)
			}

			result, err := s.Delete(ctx, tt.deleteID)
			if err != nil {
				t.Fatalf("Delete returned error: %v", err)
			}
			if result.NextID != tt.wantNext {
				t.Fatalf("NextID = %d, want %d", result.NextID, tt.wantNext)
			}
			if result.Empty != tt.wantEmpty {
				t.Fatalf("Empty = %v, want %v", result.Empty, tt.wantEmpty)
			}
			if result.Reload != tt.wantReload {
				t.Fatalf("Reload = %v, want %v", result.Reload, tt.wantReload)
			}

			snap := s.Snapshot()
			gotIDs := make([]int, 0, len(snap.Summaries))
			for _, summary := range snap.Summaries {
				gotIDs = append(gotIDs, summary.ID)
			}
			if len(gotIDs) != len(tt.wantIDs) {
				t.Fatalf("remaining ids = %v, want %v", gotIDs, tt.wantIDs)
			}
			for i := range gotIDs {
				if gotIDs[i] != tt.wantIDs[i] {
					t.Fatalf("remaining ids = %v, want %v", gotIDs, tt.wantIDs)
				}
			}

			if store.LastSnippet() != 0 {
				t.Fatalf("pointer = %d, want cleared after delete", store.LastSnippet())
			}
		})
	}
}

func TestStore_DeleteFailureLeavesCollectionIntact(t *testing.T) {
	api := newFakeAPI()
	api.summaries = summariesOf(1, 2, 3)
	api.deleteErr = codelet.ErrUnavailable
	s := New(api, fakeGate{token: "tok", valid: true}, prefs.NewMemory())
	ctx := context.Background()

	if _, err := s.Load(ctx); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if _, err := s.Delete(ctx, 2); !errors.Is(err, codelet.ErrUnavailable) {
		t.Fatalf("Delete error = %v, want ErrUnavailable", err)
	}
	if snap := s.Snapshot(); len(snap.Summaries) != 3 {
		t.Fatalf("summaries = %d entries, want untouched 3", len(snap.Summaries))
	}
}

func TestStore_StaleSelectCannotOverwriteNewerView(t *testing.T) {
	api := newFakeAPI()
	api.snippets[1] = &codelet.Snippet{ID: 1, Language: "go", Title: "old"}
	api.snippets[2] = &codelet.Snippet{ID: 2, Language: "go", Title: "new"}
	api.entered = make(chan int, 2)
	api.release = make(chan struct{})
	s := New(api, fakeGate{token: "tok", valid: true}, prefs.NewMemory())
	ctx := context.Background()

	type result struct {
		snippet *codelet.Snippet
		err     error
	}
	first := make(chan result, 1)
	second := make(chan result, 1)

	go func() {
		snippet, err := s.Select(ctx, 1)
		first <- result{snippet, err}
	}()
	<-api.entered // Select(1) is in flight

	go func() {
		snippet, err := s.Select(ctx, 2)
		second <- result{snippet, err}
	}()
	<-api.entered // Select(2) is in flight and owns the newest generation

	close(api.release) // both responses now land, in whatever order

	res1 := <-first
	res2 := <-second

	if !errors.Is(res1.err, ErrStale) {
		t.Fatalf("superseded Select error = %v, want ErrStale", res1.err)
	}
	if res2.err != nil || res2.snippet == nil || res2.snippet.ID != 2 {
		t.Fatalf("newest Select = (%v, %v), want snippet 2", res2.snippet, res2.err)
	}
	if snap := s.Snapshot(); snap.Current == nil || snap.Current.ID != 2 {
		t.Fatalf("current = %v, want snippet 2 retained", snap.Current)
	}
}
