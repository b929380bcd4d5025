package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/codelet/clet/internal/codelet"
)

// sidebarWidth is the fixed width of the snippet list pane.
const sidebarWidth = 34

// View renders the active screen.
func (m Model) View() string {
	var body string
	switch m.mode {
	case modeLogin:
		body = m.viewForm("Sign in", m.loginForm, "enter sign in • ctrl+n create account • esc quit")
	case modeSignup:
		body = m.viewForm("Create account", m.signupForm, "enter create • esc back")
	case modeBrowse:
		body = m.viewBrowse()
	case modeEditor:
		body = m.viewEditor()
	case modeConfirmDelete:
		body = m.viewConfirmDelete()
	case modePassword:
		body = m.viewForm("Change password", m.passwordForm, "enter change • esc back")
	case modePublic:
		body = m.viewPublic()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewHeader(),
		body,
		m.viewFooter(),
	)
}

func (m Model) viewHeader() string {
	left := m.styles.Logo.Render("clet")
	var right string
	if m.username != "" {
		right = m.styles.MutedText.Render(m.username)
	}
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.styles.Header.Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) viewFooter() string {
	if m.errText != "" {
		return m.styles.Footer.Render(m.styles.DangerText.Render(m.errText))
	}
	if m.status != "" {
		return m.styles.Footer.Render(m.styles.SuccessText.Render(m.status))
	}
	if m.helpOn {
		return m.styles.Footer.Render(m.help.FullHelpView(m.keys.FullHelp()))
	}
	return m.styles.Footer.Render(m.help.ShortHelpView(m.keys.ShortHelp()))
}

func (m Model) viewForm(title string, f form, hint string) string {
	var b strings.Builder
	b.WriteString(m.styles.AccentText.Render(title))
	b.WriteString("\n\n")
	for i := range f.inputs {
		b.WriteString(m.styles.Label.Render(f.labels[i]))
		b.WriteString(f.inputs[i].View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.styles.FaintText.Render(hint))

	panel := m.styles.PanelFocus.Width(48).Render(b.String())
	return m.center(panel)
}

func (m Model) viewBrowse() string {
	sidebar := m.viewSidebar()
	detail := m.viewDetail()
	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, detail)
}

func (m Model) viewSidebar() string {
	var b strings.Builder
	b.WriteString(m.viewCategoryBar())
	b.WriteString("\n\n")

	list := m.visible()
	if len(list) == 0 {
		b.WriteString(m.styles.FaintText.Render("no snippets, press n to create one"))
	}
	for i, summary := range list {
		line := summaryLine(summary)
		if i == m.cursor {
			b.WriteString(m.styles.Selected.Render(line))
		} else {
			b.WriteString(m.styles.Text.Render(line))
		}
		b.WriteString("\n")
	}

	return m.styles.Panel.Width(sidebarWidth).Height(m.bodyHeight()).Render(b.String())
}

// viewCategoryBar renders the category filter line: "all" plus each
// distinct language from the collection.
func (m Model) viewCategoryBar() string {
	parts := make([]string, 0, len(m.snap.Categories)+1)
	names := append([]string{"all"}, m.snap.Categories...)
	for i, name := range names {
		if i == m.categoryIdx {
			parts = append(parts, m.styles.AccentText.Render("["+name+"]"))
		} else {
			parts = append(parts, m.styles.MutedText.Render(name))
		}
	}
	return strings.Join(parts, " ")
}

func summaryLine(summary codelet.Summary) string {
	marker := "  "
	if summary.Favorite {
		marker = "* "
	}
	title := []rune(summary.Title)
	if len(title) > sidebarWidth-6 {
		title = append(title[:sidebarWidth-7], '…')
	}
	return marker + string(title)
}

func (m Model) viewDetail() string {
	if m.snap.Current == nil {
		empty := m.styles.FaintText.Render("select a snippet")
		return m.styles.Panel.Width(m.detailWidth()).Height(m.bodyHeight()).Render(empty)
	}

	current := m.snap.Current
	var b strings.Builder
	b.WriteString(m.styles.AccentText.Render(current.Title))
	b.WriteString("  ")
	b.WriteString(m.styles.LanguageStyle(current.Language).Render(current.Language))
	b.WriteString("\n")
	if len(current.Tags) > 0 {
		b.WriteString(m.styles.MutedText.Render(strings.Join(current.Tags, " · ")))
		b.WriteString("\n")
	}
	if current.Description != "" {
		b.WriteString(m.styles.MutedText.Render(current.Description))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.detail.View())

	return m.styles.Panel.Width(m.detailWidth()).Height(m.bodyHeight()).Render(b.String())
}

func (m Model) viewEditor() string {
	title := "New snippet"
	if m.edit.id > 0 {
		title = fmt.Sprintf("Edit snippet #%d", m.edit.id)
	}

	var b strings.Builder
	b.WriteString(m.styles.AccentText.Render(title))
	b.WriteString("\n\n")
	for i := range m.edit.meta.inputs {
		b.WriteString(m.styles.Label.Render(m.edit.meta.labels[i]))
		b.WriteString(m.edit.meta.inputs[i].View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.edit.code.View())
	b.WriteString("\n\n")
	b.WriteString(m.styles.FaintText.Render("ctrl+s save • tab next field • esc cancel"))

	return m.styles.PanelFocus.Width(max(48, m.width-4)).Render(b.String())
}

func (m Model) viewConfirmDelete() string {
	var b strings.Builder
	b.WriteString(m.styles.DangerText.Render("Delete snippet?"))
	b.WriteString("\n\n")
	b.WriteString(m.styles.Text.Render(m.deleteTarget.Title))
	b.WriteString("\n\n")
	b.WriteString(m.styles.FaintText.Render("y delete • n cancel"))
	return m.center(m.styles.PanelFocus.Width(40).Render(b.String()))
}

func (m Model) viewPublic() string {
	var b strings.Builder
	b.WriteString(m.styles.AccentText.Render(fmt.Sprintf("Public snippets — page %d", m.publicPage)))
	b.WriteString("\n\n")

	if len(m.publicList) == 0 {
		b.WriteString(m.styles.FaintText.Render("nothing here"))
	}
	for i, snippet := range m.publicList {
		line := fmt.Sprintf("%-12s %s", snippet.Language, snippet.Title)
		if i == m.publicCursor {
			b.WriteString(m.styles.Selected.Render(line))
		} else {
			b.WriteString(m.styles.Text.Render(line))
		}
		b.WriteString("\n")
	}

	if m.publicCursor >= 0 && m.publicCursor < len(m.publicList) {
		b.WriteString("\n")
		b.WriteString(m.styles.FaintText.Render(previewOf(m.publicList[m.publicCursor])))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.styles.FaintText.Render("h/l page • j/k move • esc back"))
	return m.styles.Panel.Width(max(48, m.width-4)).Render(b.String())
}

// previewOf returns the first few lines of a snippet's code.
func previewOf(snippet codelet.Snippet) string {
	lines := strings.Split(snippet.Code, "\n")
	if len(lines) > 5 {
		lines = lines[:5]
	}
	return strings.Join(lines, "\n")
}

func (m Model) bodyHeight() int {
	h := m.height - 4
	if h < 5 {
		h = 5
	}
	return h
}

func (m Model) detailWidth() int {
	w := m.width - sidebarWidth - 2
	if w < 20 {
		w = 20
	}
	return w
}

func (m Model) center(content string) string {
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height-2, lipgloss.Center, lipgloss.Center, content)
}
