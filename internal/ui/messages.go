package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/codelet/clet/internal/codelet"
	"github.com/codelet/clet/internal/session"
	"github.com/codelet/clet/internal/snippets"
)

// Directory is the slice of the API the UI calls outside the session and
// snippet layers. *codelet.Client satisfies it.
type Directory interface {
	Username(ctx context.Context, token string) (string, error)
	PublicSnippets(ctx context.Context, page, limit int) ([]codelet.Snippet, error)
}

var _ Directory = (*codelet.Client)(nil)

// Messages delivered by commands. Each carries the outcome of one
// asynchronous operation; Update folds them into the model.
type (
	loginDoneMsg struct {
		sess session.Session
		err  error
	}

	signupDoneMsg struct {
		email string
		err   error
	}

	loadedMsg struct {
		snap snippets.Snapshot
		err  error
	}

	selectedMsg struct {
		snippet *codelet.Snippet
		err     error
	}

	savedMsg struct {
		created bool
		err     error
	}

	deletedMsg struct {
		result snippets.DeleteResult
		err    error
	}

	refreshDoneMsg struct {
		err error
	}

	usernameMsg struct {
		name string
	}

	publicMsg struct {
		snippets []codelet.Snippet
		err      error
	}

	passwordDoneMsg struct {
		err error
	}

	logoutDoneMsg struct {
		err error
	}

	clearErrorMsg struct{}
)

// errorTTL is how long an inline error stays on screen.
const errorTTL = 3 * time.Second

func clearErrorAfter() tea.Cmd {
	return tea.Tick(errorTTL, func(time.Time) tea.Msg {
		return clearErrorMsg{}
	})
}

func (m Model) loginCmd(email, password string) tea.Cmd {
	return func() tea.Msg {
		sess, err := m.sessions.Login(m.ctx, email, password)
		return loginDoneMsg{sess: sess, err: err}
	}
}

func (m Model) signupCmd(username, email, password string) tea.Cmd {
	return func() tea.Msg {
		err := m.sessions.Signup(m.ctx, username, email, password)
		return signupDoneMsg{email: email, err: err}
	}
}

func (m Model) loadCmd() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.store.Load(m.ctx)
		return loadedMsg{snap: snap, err: err}
	}
}

func (m Model) selectCmd(id int) tea.Cmd {
	return func() tea.Msg {
		snippet, err := m.store.Select(m.ctx, id)
		return selectedMsg{snippet: snippet, err: err}
	}
}

func (m Model) restoreSelectionCmd() tea.Cmd {
	return func() tea.Msg {
		snippet, err := m.store.RestoreSelection(m.ctx)
		return selectedMsg{snippet: snippet, err: err}
	}
}

func (m Model) createCmd(fields snippets.Fields) tea.Cmd {
	return func() tea.Msg {
		err := m.store.Create(m.ctx, fields)
		return savedMsg{created: true, err: err}
	}
}

func (m Model) updateCmd(id int, fields snippets.Fields) tea.Cmd {
	return func() tea.Msg {
		err := m.store.Update(m.ctx, id, fields)
		return savedMsg{err: err}
	}
}

func (m Model) deleteCmd(id int) tea.Cmd {
	return func() tea.Msg {
		result, err := m.store.Delete(m.ctx, id)
		return deletedMsg{result: result, err: err}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		_, err := m.sessions.Refresh(m.ctx)
		return refreshDoneMsg{err: err}
	}
}

// usernameCmd resolves the display name for the header. Failures degrade
// to a blank name rather than an error.
func (m Model) usernameCmd() tea.Cmd {
	return func() tea.Msg {
		token, ok := m.sessions.ValidToken()
		if !ok {
			return usernameMsg{}
		}
		name, err := m.directory.Username(m.ctx, token)
		if err != nil {
			return usernameMsg{}
		}
		return usernameMsg{name: name}
	}
}

func (m Model) publicCmd(page int) tea.Cmd {
	return func() tea.Msg {
		list, err := m.directory.PublicSnippets(m.ctx, page, publicPageSize)
		return publicMsg{snippets: list, err: err}
	}
}

func (m Model) passwordCmd(oldPassword, newPassword string) tea.Cmd {
	return func() tea.Msg {
		err := m.sessions.ChangePassword(m.ctx, oldPassword, newPassword)
		return passwordDoneMsg{err: err}
	}
}

func (m Model) logoutCmd() tea.Cmd {
	return func() tea.Msg {
		err := m.sessions.Logout(m.ctx)
		return logoutDoneMsg{err: err}
	}
}
