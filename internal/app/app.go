package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nhle/mail-sync/internal/api"
	"github.com/nhle/mail-sync/internal/keys"
	"github.com/nhle/mail-sync/internal/live"
	"github.com/nhle/mail-sync/internal/model"
	"github.com/nhle/mail-sync/internal/session"
	appsync "github.com/nhle/mail-sync/internal/sync"
	"github.com/nhle/mail-sync/internal/theme"
	"github.com/nhle/mail-sync/internal/ui"
	"github.com/nhle/mail-sync/internal/ui/accounts"
	"github.com/nhle/mail-sync/internal/ui/authform"
	"github.com/nhle/mail-sync/internal/ui/maillist"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewAuth ViewState = iota
	ViewMail
	ViewAccounts
	ViewExpired
)

// loginResultMsg carries the outcome of a login attempt.
type loginResultMsg struct {
	token string
	err   error
}

// registerResultMsg carries the outcome of a registration attempt.
type registerResultMsg struct {
	err error
}

// logoutResultMsg carries the outcome of a logout request.
type logoutResultMsg struct {
	err error
}

// syncResultMsg carries the outcome of a manual sync trigger.
type syncResultMsg struct {
	err error
}

// showAuthMsg and showMailMsg route the startup decision through the
// update loop, where view mutations stick.
type showAuthMsg struct{}
type showMailMsg struct{}

// Model is the root Bubble Tea model. It owns view routing, the session
// lifecycle, and the live channel plus coordinator wiring. All state
// mutation happens inside Update; network calls run as commands.
type Model struct {
	currentView ViewState
	layout      ui.Layout
	cfg         *model.AppConfig
	sessions    *session.Store
	client      *api.Client
	keys        *keys.KeyMap
	help        help.Model
	log         zerolog.Logger

	authView     authform.Model
	mailView     maillist.Model
	accountsView accounts.Model

	coordinator *appsync.Coordinator
	channel     *live.Channel
	socketURL   string

	user   model.User
	notice string
	ready  bool
}

// New creates the root application model.
func New(cfg *model.AppConfig, sessions *session.Store, client *api.Client, log zerolog.Logger) Model {
	k := keys.DefaultKeyMap()

	h := help.New()
	h.Styles.ShortKey = theme.HelpStyle
	h.Styles.ShortDesc = theme.HelpStyle
	h.Styles.FullKey = theme.HelpStyle
	h.Styles.FullDesc = theme.HelpStyle

	socketURL, err := live.SocketURL(cfg.Server.BaseURL, cfg.Server.SocketPath)
	if err != nil {
		log.Warn().Err(err).Msg("invalid socket URL, live updates disabled")
	}

	// The coordinator drives the views through request messages rather
	// than holding them, so refetches flow through the same update loop
	// as everything else.
	coordinator := appsync.New(
		func(page int) tea.Cmd {
			return func() tea.Msg { return maillist.RefetchRequestMsg{Page: page} }
		},
		func() tea.Cmd {
			return func() tea.Msg { return accounts.RefetchRequestMsg{} }
		},
	)

	return Model{
		currentView:  ViewAuth,
		cfg:          cfg,
		sessions:     sessions,
		client:       client,
		keys:         k,
		help:         h,
		log:          log,
		authView:     authform.New(80, 24),
		mailView:     maillist.New(client, k, cfg.Display.PageSize, 80, 24),
		accountsView: accounts.New(client, k, 80, 24),
		coordinator:  coordinator,
		socketURL:    socketURL,
	}
}

// Init restores a persisted session if one exists; otherwise it starts
// at the auth form.
func (m Model) Init() tea.Cmd {
	if _, ok := m.sessions.Get(); ok {
		return func() tea.Msg { return showMailMsg{} }
	}
	return func() tea.Msg { return showAuthMsg{} }
}

// enterMailView switches to the mail view and kicks off the initial
// fetches. The live channel opens once the profile (user identity)
// arrives.
func (m *Model) enterMailView() tea.Cmd {
	m.currentView = ViewMail
	return tea.Batch(
		m.mailView.Init(),
		func() tea.Msg { return accounts.RefetchRequestMsg{} },
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.help.Width = msg.Width
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.authView.SetSize(contentWidth, contentHeight)
		m.mailView.SetSize(contentWidth, contentHeight)
		m.accountsView.SetSize(contentWidth, contentHeight)
		return m.updateActiveView(msg)

	case showAuthMsg:
		m.currentView = ViewAuth
		cmd := m.authView.Start()
		return m, cmd

	case showMailMsg:
		cmd := m.enterMailView()
		return m, cmd

	case authform.SubmitMsg:
		return m, m.submitAuth(msg)

	case registerResultMsg:
		if msg.err != nil {
			m.authView.SetError("Sign-up failed.")
		} else {
			m.authView.SetMessage("Account created, please log in.")
			m.authView.SetMode(authform.ModeLogin)
		}
		cmd := m.authView.Start()
		return m, cmd

	case loginResultMsg:
		if msg.err != nil {
			// Only a rejection means the credentials were checked;
			// transport and server failures never evaluated them.
			if api.IsUnauthorized(msg.err) {
				m.authView.SetError("Invalid username or password.")
			} else {
				m.authView.SetError("Server unavailable. Try again.")
			}
			cmd := m.authView.Start()
			return m, cmd
		}
		if err := m.sessions.Set(msg.token); err != nil {
			m.log.Warn().Err(err).Msg("session not persisted")
		}
		cmd := m.enterMailView()
		return m, cmd

	case logoutResultMsg:
		if msg.err != nil {
			m.log.Debug().Err(msg.err).Msg("server logout failed")
		}
		return m, nil

	case syncResultMsg:
		if msg.err != nil {
			if m.handleUnauthorized(msg.err) {
				return m, nil
			}
			m.notice = "Sync request failed. Try again."
			return m, nil
		}
		m.notice = "Emails are syncing in the background."
		return m, nil

	case maillist.RefetchRequestMsg:
		var cmd tea.Cmd
		m.mailView, cmd = m.mailView.Update(msg)
		return m, cmd

	case accounts.RefetchRequestMsg:
		var cmd tea.Cmd
		m.accountsView, cmd = m.accountsView.Update(msg)
		return m, cmd

	case maillist.PageLoadedMsg:
		if m.handleUnauthorized(msg.Err) {
			return m, nil
		}
		var cmd tea.Cmd
		m.mailView, cmd = m.mailView.Update(msg)
		trailing := m.coordinator.OnRefetchDone(model.EventMailUpdate)
		return m, tea.Batch(cmd, trailing)

	case accounts.ProfileLoadedMsg:
		if m.handleUnauthorized(msg.Err) {
			return m, nil
		}
		var cmds []tea.Cmd
		if msg.Err == nil {
			m.user = msg.User
			// User identity is known; open the channel if needed.
			if openCmd := m.openChannel(); openCmd != nil {
				cmds = append(cmds, openCmd)
			}
		}
		var cmd tea.Cmd
		m.accountsView, cmd = m.accountsView.Update(msg)
		cmds = append(cmds, cmd, m.coordinator.OnRefetchDone(model.EventMailboxUpdate))
		return m, tea.Batch(cmds...)

	case accounts.CloseMsg:
		m.currentView = ViewMail
		return m, nil

	case live.EventMsg:
		if m.channel == nil {
			// Event raced a teardown; the session is gone.
			return m, nil
		}
		refetch := m.coordinator.OnEvent(msg.Event)
		// Keep listening for the next event.
		return m, tea.Batch(refetch, m.channel.WaitForEvent())

	case live.ClosedMsg:
		return m, nil

	case tea.KeyMsg:
		// Notices are transient; any keypress outside the auth form
		// dismisses the current one.
		if m.currentView != ViewAuth {
			m.notice = ""
		}
		if handled, mdl, cmd := m.handleGlobalKeys(msg); handled {
			return mdl, cmd
		}
	}

	return m.updateActiveView(msg)
}

// handleGlobalKeys processes keys that work regardless of the focused
// view. Auth-form input is exempt so typing is never intercepted.
func (m Model) handleGlobalKeys(msg tea.KeyMsg) (bool, tea.Model, tea.Cmd) {
	if m.currentView == ViewAuth {
		if msg.String() == "ctrl+c" {
			m.teardownChannel()
			return true, m, tea.Quit
		}
		return false, m, nil
	}

	if m.currentView == ViewExpired {
		switch msg.String() {
		case "enter":
			m.currentView = ViewAuth
			cmd := m.authView.Start()
			return true, m, cmd
		case "ctrl+c", "q":
			m.teardownChannel()
			return true, m, tea.Quit
		}
		return true, m, nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		m.teardownChannel()
		return true, m, tea.Quit

	case "a":
		if m.currentView == ViewMail {
			m.currentView = ViewAccounts
			return true, m, nil
		}

	case "o":
		if m.user.ID == "" {
			m.notice = "Profile still loading, try again shortly."
			return true, m, nil
		}
		url := m.client.ProviderLinkURL(m.user.ID)
		m.notice = "Open in browser: " + url
		m.log.Info().Str("url", url).Msg("provider link requested")
		return true, m, nil

	case "O":
		// Back from the browser linking flow: refetch the profile so
		// the new account shows up.
		m.notice = "Refreshing linked accounts..."
		return true, m, func() tea.Msg { return accounts.RefetchRequestMsg{} }

	case "s":
		return true, m, m.triggerSync()

	case "?":
		m.help.ShowAll = !m.help.ShowAll
		return true, m, nil

	case "L":
		cmd := m.logout()
		return true, m, cmd
	}

	return false, m, nil
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewAuth:
		m.authView, cmd = m.authView.Update(msg)
	case ViewMail:
		m.mailView, cmd = m.mailView.Update(msg)
	case ViewAccounts:
		m.accountsView, cmd = m.accountsView.Update(msg)
	}

	return m, cmd
}

// submitAuth runs the login or register request for a completed form.
func (m Model) submitAuth(msg authform.SubmitMsg) tea.Cmd {
	c := m.client
	if msg.Mode == authform.ModeRegister {
		return func() tea.Msg {
			err := c.Register(context.Background(), msg.Username, msg.Password)
			return registerResultMsg{err: err}
		}
	}
	return func() tea.Msg {
		token, err := c.Login(context.Background(), msg.Username, msg.Password)
		return loginResultMsg{token: token, err: err}
	}
}

// triggerSync asks the server to start a background mailbox sync.
func (m Model) triggerSync() tea.Cmd {
	c := m.client
	return func() tea.Msg {
		return syncResultMsg{err: c.TriggerSync(context.Background())}
	}
}

// logout revokes the token server-side, then drops all session-scoped
// state locally regardless of the server's answer.
func (m *Model) logout() tea.Cmd {
	c := m.client
	serverLogout := func() tea.Msg {
		return logoutResultMsg{err: c.Logout(context.Background())}
	}

	m.endSession()
	m.currentView = ViewAuth
	return tea.Batch(serverLogout, m.authView.Start())
}

// handleUnauthorized reacts to a session rejection: the API client has
// already cleared the store, so this tears down the channel and blocks
// the UI behind the session-expired screen. Returns true when err was
// an authorization failure.
func (m *Model) handleUnauthorized(err error) bool {
	if err == nil || !api.IsUnauthorized(err) {
		return false
	}
	if m.currentView != ViewExpired {
		m.log.Info().Msg("session expired, blocking until re-auth")
		m.endSession()
		m.currentView = ViewExpired
	}
	return true
}

// endSession clears session state and stops live updates. Leaking the
// channel past logout would keep a connection open for a user that is
// gone.
func (m *Model) endSession() {
	if err := m.sessions.Clear(); err != nil {
		m.log.Warn().Err(err).Msg("clearing session")
	}
	m.teardownChannel()
	m.coordinator.Reset()
	m.user = model.User{}
	m.notice = ""
}

// openChannel starts the live update channel once per session. Returns
// the subscription command, or nil when the channel already runs.
func (m *Model) openChannel() tea.Cmd {
	if m.channel != nil || m.socketURL == "" || m.user.ID == "" {
		return nil
	}
	m.channel = live.Open(m.socketURL, m.user.ID, m.log)
	return m.channel.WaitForEvent()
}

// teardownChannel closes the live channel if it is open.
func (m *Model) teardownChannel() {
	if m.channel != nil {
		m.channel.Close()
		m.channel = nil
	}
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.headerTitle(), m.channelStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.statusLine())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// headerTitle shows the application name and, when known, the user.
func (m Model) headerTitle() string {
	if m.user.Username != "" {
		return fmt.Sprintf("mailsync (%s)", m.user.Username)
	}
	return "mailsync"
}

// channelStatus describes the live channel for the header.
func (m Model) channelStatus() string {
	if m.channel == nil {
		return "offline"
	}
	return m.channel.State().String()
}

// renderContent returns the rendered string for the current view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewAuth:
		return m.authView.View()
	case ViewMail:
		return m.mailView.View()
	case ViewAccounts:
		return m.accountsView.View()
	case ViewExpired:
		return m.renderExpired()
	default:
		return ""
	}
}

// renderExpired is the blocking screen shown after a session rejection.
func (m Model) renderExpired() string {
	return ui.CenterText(
		m.layout.ContentWidth(),
		m.layout.ContentHeight(),
		"Session expired. Please log in again.\n\nPress enter to continue.",
	)
}

// statusLine returns the status bar content: a transient notice when
// one is pending, otherwise key hints for the active view. The mail
// view renders its hints from the keymap; ? toggles the full listing.
func (m Model) statusLine() string {
	if m.notice != "" {
		return m.notice
	}

	switch m.currentView {
	case ViewAuth:
		return "enter submit | tab next field | ctrl+c quit"
	case ViewAccounts:
		return "r refresh | o link outlook | esc back | q quit"
	case ViewExpired:
		return "enter log in again | q quit"
	default:
		return m.help.View(m.keys)
	}
}
