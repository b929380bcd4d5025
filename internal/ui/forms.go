package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/codelet/clet/internal/codelet"
	"github.com/codelet/clet/internal/snippets"
)

// form is a vertical stack of labeled text inputs with one focused at a
// time. Login, signup, and change-password all use it.
type form struct {
	labels []string
	inputs []textinput.Model
	focus  int
}

func newForm(fields ...formField) form {
	f := form{
		labels: make([]string, len(fields)),
		inputs: make([]textinput.Model, len(fields)),
	}
	for i, field := range fields {
		input := textinput.New()
		input.Prompt = ""
		input.CharLimit = 256
		input.Placeholder = field.placeholder
		if field.secret {
			input.EchoMode = textinput.EchoPassword
			input.EchoCharacter = '*'
		}
		f.labels[i] = field.label
		f.inputs[i] = input
	}
	if len(f.inputs) > 0 {
		f.inputs[0].Focus()
	}
	return f
}

type formField struct {
	label       string
	placeholder string
	secret      bool
}

func newLoginForm() form {
	return newForm(
		formField{label: "Email", placeholder: "you@example.com"},
		formField{label: "Password", secret: true},
	)
}

func newSignupForm() form {
	return newForm(
		formField{label: "Username"},
		formField{label: "Email", placeholder: "you@example.com"},
		formField{label: "Password", secret: true},
	)
}

func newPasswordForm() form {
	return newForm(
		formField{label: "Current", secret: true},
		formField{label: "New", secret: true},
	)
}

func (f *form) next() {
	f.setFocus((f.focus + 1) % len(f.inputs))
}

func (f *form) prev() {
	f.setFocus((f.focus - 1 + len(f.inputs)) % len(f.inputs))
}

func (f *form) setFocus(i int) {
	f.inputs[f.focus].Blur()
	f.focus = i
	f.inputs[f.focus].Focus()
}

func (f *form) atLastField() bool {
	return f.focus == len(f.inputs)-1
}

func (f *form) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *form) value(i int) string {
	return f.inputs[i].Value()
}

func (f *form) reset() {
	for i := range f.inputs {
		f.inputs[i].SetValue("")
	}
	f.setFocus(0)
}

// editor edits one snippet: four metadata inputs plus the code body. A
// zero id means the save creates a new snippet.
type editor struct {
	id     int
	meta   form
	code   textarea.Model
	onCode bool
}

func newEditor(snippet *codelet.Snippet) editor {
	e := editor{
		meta: newForm(
			formField{label: "Language", placeholder: "go"},
			formField{label: "Title"},
			formField{label: "Tags", placeholder: "comma, separated"},
			formField{label: "Description"},
		),
	}
	e.code = textarea.New()
	e.code.CharLimit = codelet.MaxCodeSize
	e.code.Placeholder = "code"

	if snippet != nil {
		e.id = snippet.ID
		e.meta.inputs[0].SetValue(snippet.Language)
		e.meta.inputs[1].SetValue(snippet.Title)
		e.meta.inputs[2].SetValue(strings.Join(snippet.Tags, ", "))
		e.meta.inputs[3].SetValue(snippet.Description)
		e.code.SetValue(snippet.Code)
	}
	return e
}

func (e *editor) next() {
	if e.onCode {
		e.code.Blur()
		e.onCode = false
		e.meta.setFocus(0)
		return
	}
	if e.meta.atLastField() {
		e.meta.inputs[e.meta.focus].Blur()
		e.onCode = true
		e.code.Focus()
		return
	}
	e.meta.next()
}

func (e *editor) prev() {
	if e.onCode {
		e.code.Blur()
		e.onCode = false
		e.meta.setFocus(len(e.meta.inputs) - 1)
		return
	}
	if e.meta.focus == 0 {
		e.meta.inputs[0].Blur()
		e.onCode = true
		e.code.Focus()
		return
	}
	e.meta.prev()
}

func (e *editor) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if e.onCode {
		e.code, cmd = e.code.Update(msg)
		return cmd
	}
	return e.meta.update(msg)
}

func (e *editor) fields() snippets.Fields {
	return snippets.Fields{
		Language:    e.meta.value(0),
		Title:       e.meta.value(1),
		Tags:        e.meta.value(2),
		Description: e.meta.value(3),
		Code:        e.code.Value(),
	}
}
