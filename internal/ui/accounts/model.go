package accounts

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-sync/internal/keys"
	"github.com/nhle/mail-sync/internal/model"
	"github.com/nhle/mail-sync/internal/theme"
)

// Fetcher is the slice of the API client this view consumes. The linked
// accounts ride on the profile response, so one request refreshes both.
type Fetcher interface {
	Me(ctx context.Context) (model.User, error)
}

// ProfileLoadedMsg carries a profile refetch result.
type ProfileLoadedMsg struct {
	User model.User
	Err  error
}

// RefetchRequestMsg asks the view to refetch the profile.
type RefetchRequestMsg struct{}

// CloseMsg is emitted when the user leaves the accounts panel.
type CloseMsg struct{}

// Model is the linked-accounts panel. A refetch replaces the whole
// collection from the profile's emails field; accounts missing from the
// response disappear, there is no merging.
type Model struct {
	fetcher  Fetcher
	keys     *keys.KeyMap
	accounts []model.LinkedAccount
	lastErr  error
	loading  bool
	width    int
	height   int
}

// New creates the linked-accounts view.
func New(f Fetcher, k *keys.KeyMap, width, height int) Model {
	return Model{
		fetcher: f,
		keys:    k,
		width:   width,
		height:  height,
	}
}

// Update handles messages for the accounts view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ProfileLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.lastErr = msg.Err
			return m, nil
		}
		m.lastErr = nil
		m.accounts = msg.User.Emails
		return m, nil

	case RefetchRequestMsg:
		cmd := m.Refetch()
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return CloseMsg{} }
		case key.Matches(msg, m.keys.Refresh):
			cmd := m.Refetch()
			return m, cmd
		}
	}

	return m, nil
}

// Refetch fetches the profile and replaces the collection atomically on
// success. On failure the previous collection is retained.
func (m *Model) Refetch() tea.Cmd {
	m.loading = true
	f := m.fetcher
	return func() tea.Msg {
		user, err := f.Me(context.Background())
		return ProfileLoadedMsg{User: user, Err: err}
	}
}

// Accounts returns the current collection.
func (m Model) Accounts() []model.LinkedAccount {
	return m.accounts
}

// LastError returns the error from the most recent failed refetch.
func (m Model) LastError() error {
	return m.lastErr
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// View renders the linked accounts with their sync statuses.
func (m Model) View() string {
	if len(m.accounts) == 0 {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No linked accounts.\n\nPress 'o' to link a mailbox.")
	}

	title := theme.HeaderStyle.Render("Linked accounts")
	lines := []string{title, ""}
	for _, a := range m.accounts {
		line := fmt.Sprintf(
			"%s  %s realtime: %s",
			lipgloss.NewStyle().Width(32).Render(a.Address),
			theme.InitialSyncStyle(a.InitialSync).Render(string(a.InitialSync)),
			theme.RealtimeSyncStyle(a.RealtimeSync).Render(string(a.RealtimeSync)),
		)
		lines = append(lines, line)
	}

	if m.lastErr != nil {
		lines = append(lines, "",
			theme.ErrorStyle.Render("refresh failed, press r to retry"))
	}

	return theme.BorderStyle.
		Width(m.width - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
