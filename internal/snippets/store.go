package snippets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/codelet/clet/internal/codelet"
	"github.com/codelet/clet/internal/prefs"
)

// Local precondition failures. None of these ever reaches the network.
var (
	// ErrEmptyField is returned when language, title, or code is blank.
	ErrEmptyField = errors.New("language, title and code are required")
	// ErrCodeTooLarge is returned when the code body exceeds the server's
	// size ceiling.
	ErrCodeTooLarge = fmt.Errorf("code exceeds %d bytes", codelet.MaxCodeSize)
	// ErrInvalidID is returned for non-positive snippet ids.
	ErrInvalidID = errors.New("snippet id must be positive")
	// ErrStale marks a detail response that was superseded by a newer
	// selection before it arrived. Its payload must be discarded.
	ErrStale = errors.New("stale selection superseded")
)

// API is the slice of the Codelet service the store needs.
// *codelet.Client satisfies it.
type API interface {
	ListSnippets(ctx context.Context, token string) ([]codelet.Summary, error)
	GetSnippet(ctx context.Context, token string, id int) (*codelet.Snippet, error)
	CreateSnippet(ctx context.Context, token string, draft codelet.Draft) error
	UpdateSnippet(ctx context.Context, token string, id int, draft codelet.Draft) error
	DeleteSnippet(ctx context.Context, token string, id int) error
}

var _ API = (*codelet.Client)(nil)

// Sessions is the gate consulted before every operation. When it reports
// no valid token the operation short-circuits with ErrUnauthenticated and
// no request is issued.
type Sessions interface {
	ValidToken() (string, bool)
}

// Fields carries raw form input for create and update. Tags arrive as a
// single comma-delimited string and are normalized before transmission.
type Fields struct {
	Language    string
	Title       string
	Tags        string
	Description string
	Code        string
}

// DeleteResult tells the caller what to show after a successful delete.
type DeleteResult struct {
	// NextID is the snippet to select next, 0 when the collection is empty.
	NextID int
	// Empty reports that no snippets remain.
	Empty bool
	// Reload is set when the collection had exactly one element before the
	// delete. The derived category index cannot be reconciled incrementally
	// from a single-element collection, so the caller must re-fetch the
	// listing instead of patching in place.
	Reload bool
}

// Snapshot is an immutable copy of the store's view of the collection.
type Snapshot struct {
	Summaries  []codelet.Summary
	Categories []string
	SelectedID int
	Current    *codelet.Snippet
}

// Store owns the client-side view of the user's snippet collection: the
// summary list, the derived category index, the selected detail record,
// and the persisted last-viewed pointer.
type Store struct {
	api   API
	gate  Sessions
	prefs prefs.Store

	mu         sync.RWMutex
	summaries  []codelet.Summary
	categories []string
	selectedID int
	current    *codelet.Snippet
	selectGen  uint64
}

// New builds an empty Store.
func New(api API, gate Sessions, store prefs.Store) *Store {
	return &Store{api: api, gate: gate, prefs: store}
}

// Snapshot returns a copy of the current collection state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Summaries:  cloneSummaries(s.summaries),
		Categories: cloneStrings(s.categories),
		SelectedID: s.selectedID,
	}
	if s.current != nil {
		cur := *s.current
		cur.Tags = cloneStrings(s.current.Tags)
		snap.Current = &cur
	}
	return snap
}

// Load fetches the summary listing and recomputes the category index. An
// account with no snippets yields an empty, non-error snapshot.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	token, ok := s.gate.ValidToken()
	if !ok {
		return Snapshot{}, codelet.ErrUnauthenticated
	}

	summaries, err := s.api.ListSnippets(ctx, token)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	s.summaries = summaries
	s.categories = categoriesOf(summaries)
	if s.selectedID != 0 && indexOf(summaries, s.selectedID) < 0 {
		// The selected snippet vanished server-side; drop the dangling
		// reference.
		s.selectedID = 0
		s.current = nil
	}
	s.mu.Unlock()

	return s.Snapshot(), nil
}

// Select fetches the full record for id, makes it current, and persists id
// as the last-viewed pointer. When a newer Select supersedes this one
// before its response lands, the late result is discarded and ErrStale is
// returned so it can never overwrite the newer view.
func (s *Store) Select(ctx context.Context, id int) (*codelet.Snippet, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}
	token, ok := s.gate.ValidToken()
	if !ok {
		return nil, codelet.ErrUnauthenticated
	}

	s.mu.Lock()
	s.selectGen++
	gen := s.selectGen
	s.mu.Unlock()

	snippet, err := s.api.GetSnippet(ctx, token, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if gen != s.selectGen {
		s.mu.Unlock()
		return nil, ErrStale
	}
	s.current = snippet
	s.selectedID = id
	s.mu.Unlock()

	// Persistence is best-effort; the in-memory selection is already set.
	_ = s.prefs.SetLastSnippet(id)

	cur := *snippet
	cur.Tags = cloneStrings(snippet.Tags)
	return &cur, nil
}

// RestoreSelection picks the snippet to show at startup: the persisted
// pointer when it still resolves, otherwise the first summary, otherwise
// nothing. A dangling pointer is cleared rather than surfaced as an error.
func (s *Store) RestoreSelection(ctx context.Context) (*codelet.Snippet, error) {
	if last := s.prefs.LastSnippet(); last > 0 {
		snippet, err := s.Select(ctx, last)
		if err == nil {
			return snippet, nil
		}
		if !errors.Is(err, codelet.ErrNotFound) {
			return nil, err
		}
		_ = s.prefs.ClearLastSnippet()
	}

	s.mu.RLock()
	var first int
	if len(s.summaries) > 0 {
		first = s.summaries[0].ID
	}
	s.mu.RUnlock()

	if first == 0 {
		return nil, nil
	}
	return s.Select(ctx, first)
}

// Create validates and submits a new snippet. The client supplies the
// server defaults (favorite=false, private=true) explicitly.
func (s *Store) Create(ctx context.Context, fields Fields) error {
	draft, err := draftOf(fields)
	if err != nil {
		return err
	}
	token, ok := s.gate.ValidToken()
	if !ok {
		return codelet.ErrUnauthenticated
	}
	return s.api.CreateSnippet(ctx, token, draft)
}

// Update validates and submits replacement fields for an existing snippet.
func (s *Store) Update(ctx context.Context, id int, fields Fields) error {
	if id <= 0 {
		return ErrInvalidID
	}
	draft, err := draftOf(fields)
	if err != nil {
		return err
	}
	token, ok := s.gate.ValidToken()
	if !ok {
		return codelet.ErrUnauthenticated
	}
	return s.api.UpdateSnippet(ctx, token, id, draft)
}

// Delete removes a snippet and reconciles the in-memory collection.
//
// The next selection follows the removed element's position: when the
// removed index was past the end of the remaining collection, the new last
// element is selected; otherwise the element now occupying the removed
// index. An empty remainder selects nothing. A single-element collection
// forces a full reload instead of an incremental patch. The persisted
// last-viewed pointer is always cleared.
func (s *Store) Delete(ctx context.Context, id int) (DeleteResult, error) {
	if id <= 0 {
		return DeleteResult{}, ErrInvalidID
	}
	token, ok := s.gate.ValidToken()
	if !ok {
		return DeleteResult{}, codelet.ErrUnauthenticated
	}

	if err := s.api.DeleteSnippet(ctx, token, id); err != nil {
		return DeleteResult{}, err
	}

	s.mu.Lock()
	var result DeleteResult
	idx := indexOf(s.summaries, id)
	if len(s.summaries) == 1 && idx == 0 {
		result.Reload = true
	}
	if idx >= 0 {
		s.summaries = append(s.summaries[:idx], s.summaries[idx+1:]...)
	}
	switch {
	case len(s.summaries) == 0:
		result.Empty = true
	case idx < 0 || idx < len(s.summaries):
		if idx < 0 {
			idx = 0
		}
		result.NextID = s.summaries[idx].ID
	default:
		result.NextID = s.summaries[len(s.summaries)-1].ID
	}
	s.categories = categoriesOf(s.summaries)
	if s.selectedID == id {
		s.selectedID = 0
		s.current = nil
	}
	s.mu.Unlock()

	_ = s.prefs.ClearLastSnippet()
	return result, nil
}

// draftOf enforces the client-side preconditions and normalizes tags.
func draftOf(fields Fields) (codelet.Draft, error) {
	language := strings.TrimSpace(fields.Language)
	title := strings.TrimSpace(fields.Title)
	if language == "" || title == "" || strings.TrimSpace(fields.Code) == "" {
		return codelet.Draft{}, ErrEmptyField
	}
	if len(fields.Code) > codelet.MaxCodeSize {
		return codelet.Draft{}, ErrCodeTooLarge
	}
	return codelet.Draft{
		Language:    language,
		Title:       title,
		Code:        fields.Code,
		Favorite:    false,
		Private:     true,
		Tags:        NormalizeTags(fields.Tags),
		Description: strings.TrimSpace(fields.Description),
	}, nil
}

// NormalizeTags splits a comma-delimited tag string, trims each entry, and
// drops empties, preserving input order.
func NormalizeTags(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// categoriesOf derives the distinct language list in first-occurrence order.
func categoriesOf(summaries []codelet.Summary) []string {
	seen := make(map[string]struct{}, len(summaries))
	categories := make([]string, 0, len(summaries))
	for _, summary := range summaries {
		if _, ok := seen[summary.Language]; ok {
			continue
		}
		seen[summary.Language] = struct{}{}
		categories = append(categories, summary.Language)
	}
	return categories
}

func indexOf(summaries []codelet.Summary, id int) int {
	for i, summary := range summaries {
		if summary.ID == id {
			return i
		}
	}
	return -1
}

func cloneSummaries(summaries []codelet.Summary) []codelet.Summary {
	if len(summaries) == 0 {
		return nil
	}
	dup := make([]codelet.Summary, len(summaries))
	copy(dup, summaries)
	return dup
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	dup := make([]string, len(values))
	copy(dup, values)
	return dup
}
