package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/slate/internal/events"
)

const maxEvents = 50

// Model is the bubbletea model for the job monitor.
type Model struct {
	ctx     context.Context
	client  *Client
	records chan events.Record

	width  int
	height int

	board    *board
	eventLog []events.Record
	health   healthMsg
	online   bool
	lastErr  string

	jobTable table.Model
	eventsVP viewport.Model
	ticker   Ticker
	activity Activity
	theme    Theme
	now      func() time.Time
}

// NewMonitor builds a monitor that follows the API behind client. The
// event stream stops when ctx ends.
func NewMonitor(ctx context.Context, client *Client) *Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "Job", Width: 8},
			{Title: "Description", Width: 40},
			{Title: "Duration", Width: 10},
			{Title: "Error", Width: 30},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return &Model{
		ctx:      ctx,
		client:   client,
		records:  make(chan events.Record, 100),
		board:    newBoard(),
		jobTable: t,
		eventsVP: viewport.New(80, 10),
		theme:    NewDefaultTheme(),
		now:      time.Now,
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchSnapshot,
		m.fetchHealth,
		m.follow(0),
		m.receiveNext(),
		tick(),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.eventsVP, cmd = m.eventsVP.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.jobTable.SetWidth(max(m.width-6, 20))
		m.eventsVP.Width = max(m.width-6, 20)
		m.eventsVP.Height = max(m.height/3, 3)
		m.refresh()

	case tickMsg:
		m.ticker.Tick()
		m.refresh()
		return m, tick()

	case recordMsg:
		rec := events.Record(msg)
		m.eventLog = append([]events.Record{rec}, m.eventLog...)
		if len(m.eventLog) > maxEvents {
			m.eventLog = m.eventLog[:maxEvents]
		}
		m.board.apply(rec)
		m.activity.Touch(m.now())
		m.online = true
		m.lastErr = ""
		m.refresh()
		return m, m.receiveNext()

	case snapshotMsg:
		m.board.load(msg)
		m.refresh()

	case healthMsg:
		m.health = msg
		m.online = true
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg { return m.fetchHealth() })

	case disconnectedMsg:
		m.online = false
		m.lastErr = "event stream disconnected, reconnecting..."
		seq := msg.lastSeq
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg { return reconnectMsg{lastSeq: seq} })

	case reconnectMsg:
		if m.ctx.Err() != nil {
			return m, nil
		}
		return m, m.follow(msg.lastSeq)

	case errMsg:
		m.lastErr = msg.Error()
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg { return m.fetchHealth() })
	}

	var cmd tea.Cmd
	m.jobTable, cmd = m.jobTable.Update(msg)
	return m, cmd
}

// refresh rebuilds the table rows and event log from state.
func (m *Model) refresh() {
	now := m.now()
	rows := make([]table.Row, 0, len(m.board.order))
	for _, id := range m.board.order {
		r := m.board.rows[id]
		short := r.ID
		if len(short) > 8 {
			short = short[:8]
		}
		rows = append(rows, table.Row{
			m.theme.Glyph(r.Status),
			short,
			r.Description,
			formatDuration(r.duration(now)),
			r.Error,
		})
	}
	m.jobTable.SetRows(rows)

	lines := make([]string, 0, len(m.eventLog))
	for _, rec := range m.eventLog {
		lines = append(lines, m.formatRecord(rec))
	}
	if len(lines) == 0 {
		lines = append(lines, m.theme.Dim.Render("Waiting for events..."))
	}
	m.eventsVP.SetContent(strings.Join(lines, "\n"))
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	jobsView := m.theme.Border.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("JOBS"),
			m.jobTable.View(),
		),
	)
	eventsView := m.theme.Border.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("EVENTS"),
			m.eventsVP.View(),
		),
	)

	parts := []string{m.renderHeader(), jobsView, eventsView}
	if m.lastErr != "" {
		parts = append(parts, m.theme.StatusFailed.Render(" ⚠ "+m.lastErr))
	}
	parts = append(parts, lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit • [↑/↓] Jobs • [PgUp/PgDn] Events"))

	return lipgloss.NewStyle().Margin(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) renderHeader() string {
	now := m.now()
	inner := m.width - 4

	status := m.theme.StatusOK.Render("CONNECTED")
	if !m.online {
		status = m.theme.StatusFailed.Render("CONNECTING")
	} else if m.health.Status != "" && m.health.Status != "ok" {
		status = m.theme.StatusFailed.Render("DEGRADED")
	}

	title := fmt.Sprintf(" SLATE JOBS %s", m.theme.Highlight.Render(m.ticker.Current()))
	clock := m.theme.Dim.Render(now.Format("15:04:05"))
	pad := max(inner-lipgloss.Width(title)-lipgloss.Width(clock)-4, 1)

	running, done, failed := m.board.counts()
	stats := fmt.Sprintf(" %s  up %s  actions %d  apps %d  running %d  done %d  failed %d",
		status,
		formatDuration(time.Duration(m.health.UptimeSeconds)*time.Second),
		m.health.Actions, m.health.Applications,
		running, done, failed,
	)

	last := "never"
	if at := m.activity.Last(); !at.IsZero() {
		last = now.Sub(at).Round(time.Second).String() + " ago"
	}
	activity := fmt.Sprintf(" Last event: %s %s", last, m.activity.Render(m.theme, now))

	return m.theme.Border.Width(inner).Render(lipgloss.JoinVertical(lipgloss.Left,
		title+strings.Repeat(" ", pad)+clock+" ",
		stats,
		activity,
	))
}

func (m Model) formatRecord(rec events.Record) string {
	style := m.theme.Dim
	switch {
	case strings.HasSuffix(rec.Type, ".done"):
		style = m.theme.StatusOK
	case strings.HasSuffix(rec.Type, ".failed"):
		style = m.theme.StatusFailed
	case strings.HasSuffix(rec.Type, ".running"):
		style = m.theme.StatusRunning
	case strings.HasPrefix(rec.Type, "action."):
		style = m.theme.Highlight
	}
	return fmt.Sprintf("%s %s %s",
		m.theme.Dim.Render(rec.At.Local().Format("15:04:05")),
		style.Render(fmt.Sprintf("%-16s", rec.Type)),
		describe(rec))
}

// describe summarizes a record's payload in one line.
func describe(rec events.Record) string {
	var data map[string]any
	_ = json.Unmarshal(rec.Data, &data)

	var parts []string
	if id, ok := data["job_id"].(string); ok {
		if len(id) > 8 {
			id = id[:8]
		}
		parts = append(parts, "["+id+"]")
	}
	if d, ok := data["description"].(string); ok && d != "" {
		parts = append(parts, d)
	}
	if e, ok := data["error"].(string); ok && e != "" {
		parts = append(parts, "error: "+e)
	}
	// Bus events carry the action and selection under data.
	if inner, ok := data["data"].(map[string]any); ok {
		if a, ok := inner["actionIdentifier"].(string); ok && a != "" {
			parts = append(parts, a)
		}
		if sel, ok := inner["selection"].([]any); ok {
			parts = append(parts, fmt.Sprintf("%d selected", len(sel)))
		}
	}
	if src, ok := data["source"].(map[string]any); ok {
		if u, ok := src["user"].(string); ok && u != "" {
			parts = append(parts, "by "+u)
		}
	}

	if len(parts) == 0 {
		raw := string(rec.Data)
		if len(raw) > 60 {
			raw = raw[:60] + "..."
		}
		return raw
	}
	return strings.Join(parts, " ")
}
