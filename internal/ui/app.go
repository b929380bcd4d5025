package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/codelet/clet/internal/codelet"
	"github.com/codelet/clet/internal/prefs"
	"github.com/codelet/clet/internal/session"
	"github.com/codelet/clet/internal/snippets"
)

// publicPageSize is the page size requested from the public feed.
const publicPageSize = 20

// mode selects the active screen.
type mode int

const (
	modeLogin mode = iota
	modeSignup
	modeBrowse
	modeEditor
	modeConfirmDelete
	modePassword
	modePublic
)

// Options configure the clet UI.
type Options struct {
	Context   context.Context
	Sessions  *session.Manager
	Store     *snippets.Store
	Directory Directory
	Prefs     prefs.Store
	ThemeName string
}

// Model is the root Bubble Tea model.
type Model struct {
	ctx       context.Context
	sessions  *session.Manager
	store     *snippets.Store
	directory Directory
	prefs     prefs.Store

	keys   keyMap
	theme  Theme
	styles Styles
	help   help.Model

	width  int
	height int

	mode     mode
	helpOn   bool
	errText  string
	status   string
	username string

	loginForm    form
	signupForm   form
	passwordForm form
	edit         editor

	snap        snippets.Snapshot
	cursor      int
	categoryIdx int // 0 means all categories
	detail      viewport.Model

	deleteTarget codelet.Summary

	publicList   []codelet.Snippet
	publicCursor int
	publicPage   int

	// refreshTried guards the single silent refresh attempt made when a
	// protected call comes back unauthenticated. refreshReturn remembers
	// the screen that attempt was triggered from, so a recovered session
	// lands the user back where they were (an editor keeps its draft).
	refreshTried  bool
	refreshReturn mode
}

// New builds the root model.
func New(opts Options) Model {
	theme := GetTheme(opts.ThemeName)
	m := Model{
		ctx:          opts.Context,
		sessions:     opts.Sessions,
		store:        opts.Store,
		directory:    opts.Directory,
		prefs:        opts.Prefs,
		keys:         DefaultKeyMap(),
		theme:        theme,
		styles:       theme.Styles(),
		help:         help.New(),
		loginForm:    newLoginForm(),
		signupForm:   newSignupForm(),
		passwordForm: newPasswordForm(),
		detail:       viewport.New(0, 0),
	}
	if opts.Sessions.State() == session.Authenticated {
		m.mode = modeBrowse
	}
	return m
}

// Run boots the UI and blocks until quit or context cancellation.
func Run(opts Options) error {
	program := tea.NewProgram(New(opts),
		tea.WithAltScreen(),
		tea.WithContext(opts.Context),
	)
	_, err := program.Run()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

// Init starts the session-appropriate first commands.
func (m Model) Init() tea.Cmd {
	if m.mode == modeBrowse {
		return tea.Batch(m.loadCmd(), m.usernameCmd())
	}
	return textinput.Blink
}

// Update routes messages to the active screen.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resizeDetail()
		return m, nil

	case clearErrorMsg:
		m.errText = ""
		return m, nil

	case loginDoneMsg:
		return m.onLoginDone(msg)
	case signupDoneMsg:
		return m.onSignupDone(msg)
	case loadedMsg:
		return m.onLoaded(msg)
	case selectedMsg:
		return m.onSelected(msg)
	case savedMsg:
		return m.onSaved(msg)
	case deletedMsg:
		return m.onDeleted(msg)
	case refreshDoneMsg:
		return m.onRefreshDone(msg)
	case usernameMsg:
		m.username = msg.name
		return m, nil
	case publicMsg:
		return m.onPublic(msg)
	case passwordDoneMsg:
		return m.onPasswordDone(msg)
	case logoutDoneMsg:
		return m.onLogoutDone(msg)

	case tea.KeyMsg:
		return m.onKey(msg)
	}

	return m.updateActiveInput(msg)
}

func (m Model) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// ctrl+c always quits, whatever screen has focus.
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.mode {
	case modeLogin:
		return m.keyLogin(msg)
	case modeSignup:
		return m.keySignup(msg)
	case modeBrowse:
		return m.keyBrowse(msg)
	case modeEditor:
		return m.keyEditor(msg)
	case modeConfirmDelete:
		return m.keyConfirmDelete(msg)
	case modePassword:
		return m.keyPassword(msg)
	case modePublic:
		return m.keyPublic(msg)
	}
	return m, nil
}

func (m Model) keyLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "ctrl+n":
		m.mode = modeSignup
		m.errText = ""
		return m, nil
	case "tab", "down":
		m.loginForm.next()
		return m, nil
	case "shift+tab", "up":
		m.loginForm.prev()
		return m, nil
	case "enter":
		if !m.loginForm.atLastField() {
			m.loginForm.next()
			return m, nil
		}
		m.status = "Signing in..."
		return m, m.loginCmd(m.loginForm.value(0), m.loginForm.value(1))
	}
	return m, m.loginForm.update(msg)
}

func (m Model) keySignup(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeLogin
		m.errText = ""
		return m, nil
	case "tab", "down":
		m.signupForm.next()
		return m, nil
	case "shift+tab", "up":
		m.signupForm.prev()
		return m, nil
	case "enter":
		if !m.signupForm.atLastField() {
			m.signupForm.next()
			return m, nil
		}
		m.status = "Creating account..."
		return m, m.signupCmd(m.signupForm.value(0), m.signupForm.value(1), m.signupForm.value(2))
	}
	return m, m.signupForm.update(msg)
}

func (m Model) keyBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.Help):
		m.helpOn = !m.helpOn
		return m, nil
	case key.Matches(msg, k.CycleTheme):
		return m.cycleTheme()
	case key.Matches(msg, k.Up):
		return m.moveCursor(-1)
	case key.Matches(msg, k.Down):
		return m.moveCursor(1)
	case key.Matches(msg, k.Top):
		return m.setCursor(0)
	case key.Matches(msg, k.Bottom):
		return m.setCursor(len(m.visible()) - 1)
	case key.Matches(msg, k.Confirm):
		if summary, ok := m.cursorSummary(); ok {
			return m, m.selectCmd(summary.ID)
		}
		return m, nil
	case key.Matches(msg, k.Reload):
		return m, m.loadCmd()
	case key.Matches(msg, k.New):
		m.edit = newEditor(nil)
		m.mode = modeEditor
		return m, textinput.Blink
	case key.Matches(msg, k.Edit):
		if m.snap.Current == nil {
			return m.fail(errors.New("select a snippet first"))
		}
		m.edit = newEditor(m.snap.Current)
		m.mode = modeEditor
		return m, textinput.Blink
	case key.Matches(msg, k.Delete):
		if summary, ok := m.cursorSummary(); ok {
			m.deleteTarget = summary
			m.mode = modeConfirmDelete
		}
		return m, nil
	case key.Matches(msg, k.PublicFeed):
		m.mode = modePublic
		m.publicPage = 1
		m.publicCursor = 0
		return m, m.publicCmd(m.publicPage)
	case key.Matches(msg, k.Password):
		m.passwordForm.reset()
		m.mode = modePassword
		return m, textinput.Blink
	case key.Matches(msg, k.Logout):
		return m, m.logoutCmd()
	case key.Matches(msg, k.Category):
		if s := msg.String(); s == "h" || s == "left" {
			return m.moveCategory(-1)
		}
		return m.moveCategory(1)
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m Model) keyEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
		return m, nil
	case "ctrl+s":
		fields := m.edit.fields()
		m.status = "Saving..."
		if m.edit.id > 0 {
			return m, m.updateCmd(m.edit.id, fields)
		}
		return m, m.createCmd(fields)
	case "tab":
		m.edit.next()
		return m, nil
	case "shift+tab":
		m.edit.prev()
		return m, nil
	}
	return m, m.edit.update(msg)
}

func (m Model) keyConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		m.mode = modeBrowse
		m.status = "Deleting..."
		return m, m.deleteCmd(m.deleteTarget.ID)
	case "n", "esc":
		m.mode = modeBrowse
		return m, nil
	}
	return m, nil
}

func (m Model) keyPassword(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
		return m, nil
	case "tab", "down":
		m.passwordForm.next()
		return m, nil
	case "shift+tab", "up":
		m.passwordForm.prev()
		return m, nil
	case "enter":
		if !m.passwordForm.atLastField() {
			m.passwordForm.next()
			return m, nil
		}
		m.status = "Changing password..."
		return m, m.passwordCmd(m.passwordForm.value(0), m.passwordForm.value(1))
	}
	return m, m.passwordForm.update(msg)
}

func (m Model) keyPublic(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.mode = modeBrowse
		return m, nil
	case "k", "up":
		if m.publicCursor > 0 {
			m.publicCursor--
		}
		return m, nil
	case "j", "down":
		if m.publicCursor < len(m.publicList)-1 {
			m.publicCursor++
		}
		return m, nil
	case "l", "right":
		m.publicPage++
		m.publicCursor = 0
		return m, m.publicCmd(m.publicPage)
	case "h", "left":
		if m.publicPage > 1 {
			m.publicPage--
			m.publicCursor = 0
			return m, m.publicCmd(m.publicPage)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) updateActiveInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Non-key messages (cursor blink ticks) still need to reach the
	// focused input of the active screen.
	switch m.mode {
	case modeLogin:
		return m, m.loginForm.update(msg)
	case modeSignup:
		return m, m.signupForm.update(msg)
	case modePassword:
		return m, m.passwordForm.update(msg)
	case modeEditor:
		return m, m.edit.update(msg)
	}
	return m, nil
}

// Message handlers.

func (m Model) onLoginDone(msg loginDoneMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	if msg.err != nil {
		return m.fail(msg.err)
	}
	m.mode = modeBrowse
	m.refreshTried = false
	m.loginForm.reset()
	return m, tea.Batch(m.loadCmd(), m.usernameCmd())
}

func (m Model) onSignupDone(msg signupDoneMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	if msg.err != nil {
		return m.fail(msg.err)
	}
	// Registration never logs in; hand the user back to the login form
	// with the email pre-filled.
	m.mode = modeLogin
	m.loginForm.reset()
	m.loginForm.inputs[0].SetValue(msg.email)
	m.loginForm.setFocus(1)
	m.signupForm.reset()
	m.status = "Account created, sign in to continue"
	return m, nil
}

func (m Model) onLoaded(msg loadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m.failAuth(msg.err)
	}
	m.status = ""
	m.refreshTried = false
	m.snap = msg.snap
	m.clampCursor()
	if m.snap.Current == nil && len(m.snap.Summaries) > 0 {
		return m, m.restoreSelectionCmd()
	}
	m.syncDetail()
	return m, nil
}

func (m Model) onSelected(msg selectedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if errors.Is(msg.err, snippets.ErrStale) {
			// A newer selection is already in flight; drop this one.
			return m, nil
		}
		return m.failAuth(msg.err)
	}
	m.refreshTried = false
	m.snap = m.store.Snapshot()
	if msg.snippet != nil {
		if idx := m.visibleIndexOf(msg.snippet.ID); idx >= 0 {
			m.cursor = idx
		}
	}
	m.syncDetail()
	return m, nil
}

func (m Model) onSaved(msg savedMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	if msg.err != nil {
		return m.failAuth(msg.err)
	}
	m.mode = modeBrowse
	if msg.created {
		m.status = "Snippet created"
	} else {
		m.status = "Snippet updated"
	}
	// Mutations re-fetch the listing rather than patching it locally.
	return m, m.loadCmd()
}

func (m Model) onDeleted(msg deletedMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	if msg.err != nil {
		return m.failAuth(msg.err)
	}
	m.status = "Snippet deleted"
	m.snap = m.store.Snapshot()
	m.clampCursor()
	m.syncDetail()
	switch {
	case msg.result.Reload:
		return m, m.loadCmd()
	case msg.result.NextID > 0:
		return m, m.selectCmd(msg.result.NextID)
	}
	return m, nil
}

func (m Model) onRefreshDone(msg refreshDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m.toLogin("Session expired, sign in again")
	}
	m.refreshTried = false
	// Land back on the screen the failed call came from; a draft sitting
	// in the editor survives the recovery.
	m.mode = m.refreshReturn
	if m.mode == modeLogin || m.mode == modeSignup {
		m.mode = modeBrowse
	}
	return m, tea.Batch(m.loadCmd(), m.usernameCmd())
}

func (m Model) onPublic(msg publicMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.mode = modeBrowse
		return m.fail(msg.err)
	}
	if len(msg.snippets) == 0 && m.publicPage > 1 {
		// Walked past the end; step back to the last non-empty page.
		m.publicPage--
		return m, nil
	}
	m.publicList = msg.snippets
	return m, nil
}

func (m Model) onPasswordDone(msg passwordDoneMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	if msg.err != nil {
		return m.failAuth(msg.err)
	}
	m.mode = modeBrowse
	m.status = "Password changed"
	return m, nil
}

func (m Model) onLogoutDone(msg logoutDoneMsg) (tea.Model, tea.Cmd) {
	note := "Signed out"
	if msg.err != nil {
		// Local teardown already happened; the server-side failure is
		// informational only.
		note = "Signed out (server unreachable)"
	}
	model, cmd := m.toLogin("")
	mm := model.(Model)
	mm.status = note
	return mm, cmd
}

// Helpers.

// fail surfaces err inline and schedules its dismissal.
func (m Model) fail(err error) (tea.Model, tea.Cmd) {
	m.errText = err.Error()
	return m, clearErrorAfter()
}

// failAuth handles an error from a protected operation: the first
// unauthenticated failure triggers one silent refresh attempt, the
// second falls back to the login screen. Everything else is inline.
func (m Model) failAuth(err error) (tea.Model, tea.Cmd) {
	if errors.Is(err, codelet.ErrUnauthenticated) {
		if !m.refreshTried {
			m.refreshTried = true
			m.refreshReturn = m.mode
			return m, m.refreshCmd()
		}
		return m.toLogin("Session expired, sign in again")
	}
	return m.fail(err)
}

func (m Model) toLogin(errText string) (tea.Model, tea.Cmd) {
	m.mode = modeLogin
	m.refreshTried = false
	m.errText = errText
	m.status = ""
	m.username = ""
	m.snap = snippets.Snapshot{}
	m.cursor = 0
	m.categoryIdx = 0
	m.loginForm.reset()
	if errText != "" {
		return m, tea.Batch(textinput.Blink, clearErrorAfter())
	}
	return m, textinput.Blink
}

func (m Model) cycleTheme() (tea.Model, tea.Cmd) {
	next := NextTheme(m.theme.Name)
	m.theme = GetTheme(next)
	m.styles = m.theme.Styles()
	_ = m.prefs.SetTheme(next)
	return m, nil
}

// visible returns the summaries matching the active category filter.
func (m Model) visible() []codelet.Summary {
	category := m.activeCategory()
	if category == "" {
		return m.snap.Summaries
	}
	out := make([]codelet.Summary, 0, len(m.snap.Summaries))
	for _, summary := range m.snap.Summaries {
		if summary.Language == category {
			out = append(out, summary)
		}
	}
	return out
}

// activeCategory returns the selected category, "" for all.
func (m Model) activeCategory() string {
	if m.categoryIdx <= 0 || m.categoryIdx > len(m.snap.Categories) {
		return ""
	}
	return m.snap.Categories[m.categoryIdx-1]
}

func (m Model) visibleIndexOf(id int) int {
	for i, summary := range m.visible() {
		if summary.ID == id {
			return i
		}
	}
	return -1
}

func (m Model) cursorSummary() (codelet.Summary, bool) {
	list := m.visible()
	if m.cursor < 0 || m.cursor >= len(list) {
		return codelet.Summary{}, false
	}
	return list[m.cursor], true
}

func (m Model) moveCursor(delta int) (tea.Model, tea.Cmd) {
	return m.setCursor(m.cursor + delta)
}

func (m Model) setCursor(i int) (tea.Model, tea.Cmd) {
	list := m.visible()
	if len(list) == 0 {
		m.cursor = 0
		return m, nil
	}
	if i < 0 {
		i = 0
	}
	if i >= len(list) {
		i = len(list) - 1
	}
	m.cursor = i
	return m, nil
}

func (m Model) moveCategory(delta int) (tea.Model, tea.Cmd) {
	n := len(m.snap.Categories) + 1
	m.categoryIdx = (m.categoryIdx + delta + n) % n
	m.cursor = 0
	return m, nil
}

func (m *Model) clampCursor() {
	if n := len(m.visible()); m.cursor >= n {
		m.cursor = max(0, n-1)
	}
	if m.categoryIdx > len(m.snap.Categories) {
		m.categoryIdx = 0
	}
}

func (m *Model) resizeDetail() {
	w := m.width - sidebarWidth - 6
	h := m.height - 7
	if w < 10 {
		w = 10
	}
	if h < 3 {
		h = 3
	}
	m.detail.Width = w
	m.detail.Height = h
}

func (m *Model) syncDetail() {
	m.resizeDetail()
	if m.snap.Current == nil {
		m.detail.SetContent("")
		return
	}
	m.detail.SetContent(m.snap.Current.Code)
	m.detail.GotoTop()
}
