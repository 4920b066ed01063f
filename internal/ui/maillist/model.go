package maillist

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-sync/internal/keys"
	"github.com/nhle/mail-sync/internal/model"
	"github.com/nhle/mail-sync/internal/theme"
)

// Fetcher is the slice of the API client this view consumes.
type Fetcher interface {
	SearchEmails(ctx context.Context, page, limit int) (model.EmailPage, error)
}

// PageLoadedMsg carries the outcome of one page fetch. Page is the page
// that was requested and Gen identifies which issued fetch this answers,
// so responses superseded by a newer fetch can be discarded.
type PageLoadedMsg struct {
	Page   int
	Gen    uint64
	Result model.EmailPage
	Err    error
}

// RefetchRequestMsg asks the view to refetch the given page. The sync
// coordinator emits these instead of holding the view itself.
type RefetchRequestMsg struct {
	Page int
}

// PageDescriptor is the pagination bookkeeping for the collection.
type PageDescriptor struct {
	PageNumber int
	PageSize   int
	TotalCount int
	TotalPages int
}

// Model is the paged email list view. The record list and the page
// descriptor always come from the same fetch response; a failed fetch
// keeps the previous pair intact and only sets the error.
type Model struct {
	fetcher Fetcher
	keys    *keys.KeyMap

	pageSize   int
	pageNumber int
	totalCount int
	totalPages int
	records    []model.Email
	lastErr    error

	// gen tags issued fetches; only the newest one may apply.
	gen     uint64
	loading bool

	table   table.Model
	spinner spinner.Model
	width   int
	height  int
}

// New creates the email list view.
func New(f Fetcher, k *keys.KeyMap, pageSize, width, height int) Model {
	t := table.New(
		table.WithColumns(columnsFor(width)),
		table.WithFocused(true),
		table.WithHeight(height-4),
	)
	st := table.DefaultStyles()
	st.Header = st.Header.
		Bold(true).
		Foreground(theme.ColorWhite).
		BorderForeground(theme.ColorBorder)
	st.Selected = st.Selected.
		Bold(true).
		Foreground(theme.ColorBlue)
	t.SetStyles(st)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		fetcher:    f,
		keys:       k,
		pageSize:   pageSize,
		pageNumber: 1,
		table:      t,
		spinner:    sp,
		width:      width,
		height:     height,
	}
}

// columnsFor splits the available width across the table columns.
func columnsFor(width int) []table.Column {
	subject := width - 58
	if subject < 16 {
		subject = 16
	}
	return []table.Column{
		{Title: "Subject", Width: subject},
		{Title: "From", Width: 18},
		{Title: "To", Width: 18},
		{Title: "Date", Width: 16},
		{Title: "R", Width: 1},
		{Title: "F", Width: 1},
	}
}

// Init requests the first fetch. The request round-trips as a message
// so the generation bump lands on the model copy the runtime keeps.
func (m Model) Init() tea.Cmd {
	return func() tea.Msg {
		return RefetchRequestMsg{Page: 1}
	}
}

// Update handles messages for the email list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case PageLoadedMsg:
		return m.applyPage(msg)

	case RefetchRequestMsg:
		cmd := m.Refetch(msg.Page)
		return m, cmd

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.PrevPage):
			cmd := m.GoToPage(m.pageNumber - 1)
			return m, cmd
		case key.Matches(msg, m.keys.NextPage):
			cmd := m.GoToPage(m.pageNumber + 1)
			return m, cmd
		case key.Matches(msg, m.keys.Refresh):
			cmd := m.Refetch(m.pageNumber)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// applyPage applies a fetch result atomically: records and descriptor
// are replaced together or not at all.
func (m Model) applyPage(msg PageLoadedMsg) (Model, tea.Cmd) {
	if msg.Gen < m.gen {
		// Superseded by a newer fetch; drop it.
		return m, nil
	}
	m.loading = false

	if msg.Err != nil {
		// Stale-but-consistent: keep the previous records and
		// descriptor, surface the error.
		m.lastErr = msg.Err
		return m, nil
	}

	m.lastErr = nil
	m.records = msg.Result.Data
	m.totalCount = msg.Result.Total.Value
	m.totalPages = (m.totalCount + m.pageSize - 1) / m.pageSize
	if m.totalPages == 0 {
		// Empty collection pins the counter at page 1.
		m.pageNumber = 1
	}
	m.syncTable()
	return m, nil
}

// GoToPage navigates to page n and fetches it. Out-of-range targets and
// the current page are no-ops, matching the disabled state of the
// prev/next affordances.
func (m *Model) GoToPage(n int) tea.Cmd {
	if n < 1 || n > m.totalPages || n == m.pageNumber {
		return nil
	}
	return m.Refetch(n)
}

// Refetch fetches page and makes it the requested page. The response is
// tagged with the page and a generation so late arrivals from
// superseded fetches are ignored.
func (m *Model) Refetch(page int) tea.Cmd {
	if page < 1 {
		page = 1
	}
	m.pageNumber = page
	m.gen++
	m.loading = true

	gen := m.gen
	f := m.fetcher
	size := m.pageSize
	fetch := func() tea.Msg {
		result, err := f.SearchEmails(context.Background(), page, size)
		return PageLoadedMsg{Page: page, Gen: gen, Result: result, Err: err}
	}
	return tea.Batch(m.spinner.Tick, fetch)
}

// Descriptor returns the current page descriptor.
func (m Model) Descriptor() PageDescriptor {
	return PageDescriptor{
		PageNumber: m.pageNumber,
		PageSize:   m.pageSize,
		TotalCount: m.totalCount,
		TotalPages: m.totalPages,
	}
}

// Records returns the materialized records of the current page.
func (m Model) Records() []model.Email {
	return m.records
}

// LastError returns the error from the most recent failed fetch, or nil
// after a successful one.
func (m Model) LastError() error {
	return m.lastErr
}

// CanPrev reports whether backward navigation is possible. Derived from
// the descriptor so the affordance can never drift from the counter.
func (m Model) CanPrev() bool {
	return m.pageNumber > 1
}

// CanNext reports whether forward navigation is possible.
func (m Model) CanNext() bool {
	return m.pageNumber < m.totalPages
}

// Loading reports whether a fetch is in flight.
func (m Model) Loading() bool {
	return m.loading
}

// syncTable rebuilds the table rows from the current records, keeping
// the server-assigned order.
func (m *Model) syncTable() {
	rows := make([]table.Row, len(m.records))
	for i, e := range m.records {
		read, flagged := " ", " "
		if e.Read {
			read = "✓"
		}
		if e.Flagged {
			flagged = "⚑"
		}
		rows[i] = table.Row{
			e.Subject,
			e.From,
			e.To,
			e.Date.Format("2006-01-02 15:04"),
			read,
			flagged,
		}
	}
	m.table.SetRows(rows)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetColumns(columnsFor(width))
	m.table.SetWidth(width)
	m.table.SetHeight(height - 4)
}

// View renders the table with a pagination footer.
func (m Model) View() string {
	if m.loading && len(m.records) == 0 {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Render(m.spinner.View() + " loading messages...")
	}

	if len(m.records) == 0 {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No messages.\n\nPress 'o' to link a mailbox, 's' to sync.")
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.table.View(),
		m.renderFooter(),
	)
}

// renderFooter shows the page counter and navigation affordances, with
// the disabled sides dimmed.
func (m Model) renderFooter() string {
	prev := "← prev"
	next := "next →"

	prevStyled := theme.DimmedStyle.Render(prev)
	if m.CanPrev() {
		prevStyled = theme.UnreadStyle.Render(prev)
	}
	nextStyled := theme.DimmedStyle.Render(next)
	if m.CanNext() {
		nextStyled = theme.UnreadStyle.Render(next)
	}

	counter := theme.DimmedStyle.Render(
		fmt.Sprintf(" Page %d of %d ", m.pageNumber, m.totalPages),
	)

	line := prevStyled + counter + nextStyled
	if m.loading {
		line += " " + m.spinner.View()
	}
	if m.lastErr != nil {
		line += "  " + theme.ErrorStyle.Render("fetch failed, press r to retry")
	}
	return line
}
