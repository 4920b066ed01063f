package authform

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-sync/internal/theme"
)

// Mode selects between creating an account and logging in.
type Mode string

const (
	ModeLogin    Mode = "login"
	ModeRegister Mode = "register"
)

// SubmitMsg is dispatched when the user completes the form.
type SubmitMsg struct {
	Mode     Mode
	Username string
	Password string
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	mode     Mode
	username string
	password string
}

// Model is the Bubble Tea model for the login/register form.
type Model struct {
	form    *huh.Form
	fb      *formBindings
	message string
	errText string
	width   int
	height  int
}

// New creates a new auth form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{mode: ModeLogin},
		width:  width,
		height: height,
	}
}

// Start initializes a fresh form, keeping the selected mode.
func (m *Model) Start() tea.Cmd {
	m.fb.username = ""
	m.fb.password = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// SetMessage shows an informational line above the form, e.g. after a
// successful registration.
func (m *Model) SetMessage(text string) {
	m.message = text
	m.errText = ""
}

// SetError shows an error line above the form, e.g. after a rejected
// login.
func (m *Model) SetError(text string) {
	m.errText = text
	m.message = ""
}

// SetMode switches between login and register for the next Start.
func (m *Model) SetMode(mode Mode) {
	m.fb.mode = mode
}

// Update handles messages for the auth form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		fb := *m.fb
		// Emit the submission exactly once. Start rebuilds the form
		// for the next attempt.
		m.form = nil
		return m, func() tea.Msg {
			return SubmitMsg{
				Mode:     fb.mode,
				Username: fb.username,
				Password: fb.password,
			}
		}
	}

	return m, cmd
}

// View renders the auth form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	title := "Log In"
	if m.fb.mode == ModeRegister {
		title = "Sign Up"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(title)
	if m.message != "" {
		content += "\n" + theme.NoticeStyle.Render(m.message)
	}
	if m.errText != "" {
		content += "\n" + theme.ErrorStyle.Render(m.errText)
	}
	content += "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[Mode]().
				Title("Mode").
				Options(
					huh.NewOption("Log in", ModeLogin),
					huh.NewOption("Sign up", ModeRegister),
				).
				Value(&m.fb.mode),
			huh.NewInput().
				Title("Username").
				Placeholder("username").
				Value(&m.fb.username),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password),
		),
	).WithWidth(m.formWidth())
}

func (m *Model) formWidth() int {
	w := m.width - 8
	if w > 60 {
		w = 60
	}
	if w < 24 {
		w = 24
	}
	return w
}
