package update

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/multitimer/internal/model"
	"github.com/sandeepkv93/multitimer/internal/tracker"
)

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", m.Keys.Quit:
		m.Quitting = true
		return m, tea.Quit
	case "/":
		m.Palette.Active = true
		m.Palette.Input = ""
		m.commandInput.SetValue("")
		m.commandInput.Focus()
		return m, nil
	case m.Keys.Help:
		m.HelpVisible = !m.HelpVisible
		return m, nil
	case "esc":
		m.Pane = PaneNone
		return m, nil
	case "j", "down":
		m.moveCursor(1)
		return m, nil
	case "k", "up":
		m.moveCursor(-1)
		return m, nil
	case m.Keys.Toggle, " ":
		return m.toggleSelected()
	case m.Keys.Stop:
		if m.Snap.Session == nil {
			m.Status = StatusBar{Text: tracker.UserMessage(tracker.ErrNotRunning), IsError: true}
			return m, nil
		}
		return m.run("stop", "Timer stopped", func(ctx context.Context) error {
			return m.tracker.Stop(ctx)
		})
	case m.Keys.AddTimer:
		r, ok := m.selected()
		if !ok {
			return m, nil
		}
		_, err := m.tracker.AddTimer(r.groupID)
		m.afterSync(err, "Timer added")
		return m, nil
	case m.Keys.AddGroup:
		g, err := m.tracker.AddGroup()
		m.afterSync(err, "Project added")
		if err == nil {
			m.selectTimer(g.Timers[0].ID)
		}
		return m, nil
	case m.Keys.RemoveTimer:
		r, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m.run("remove timer", "Timer removed", func(ctx context.Context) error {
			return m.tracker.RemoveTimer(ctx, r.groupID, r.timerID)
		})
	case m.Keys.RemoveGroup:
		r, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m.run("remove project", "Project removed", func(ctx context.Context) error {
			return m.tracker.RemoveGroup(ctx, r.groupID)
		})
	case m.Keys.Compact:
		err := m.tracker.SetCompact(!m.Snap.Workspace.Compact)
		m.afterSync(err, "")
		return m, nil
	case m.Keys.History:
		m.openPane(PaneHistory, "")
		return m, nil
	case m.Keys.Insights:
		m.openPane(PaneInsights, "")
		return m, nil
	}
	return m, nil
}

func (m Model) toggleSelected() (tea.Model, tea.Cmd) {
	r, ok := m.selected()
	if !ok {
		return m, nil
	}
	done := "Timer started"
	if m.Snap.Session != nil && m.Snap.Session.TimerID == r.timerID {
		done = "Timer stopped"
	}
	return m.run("toggle", done, func(ctx context.Context) error {
		return m.tracker.Toggle(ctx, r.groupID, r.timerID)
	})
}

// run executes fn off the UI goroutine and reports through OpResultMsg.
func (m Model) run(op, success string, fn func(ctx context.Context) error) (Model, tea.Cmd) {
	m.Busy++
	timeout := m.opTimeout
	call := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			return OpResultMsg{Op: op, Err: err}
		}
		return OpResultMsg{Op: op, Message: success}
	}
	return m, tea.Batch(call, m.syncSpinner.Tick)
}

func (m *Model) afterSync(err error, success string) {
	m.refresh()
	if err != nil {
		m.LastError = err
		m.Status = StatusBar{Text: tracker.UserMessage(err), IsError: true}
		return
	}
	if success != "" {
		m.Status = StatusBar{Text: success}
	}
}

func (m *Model) refresh() {
	m.Snap = m.tracker.Snapshot(m.now())
	if n := len(m.rows()); m.Cursor >= n {
		m.Cursor = max(n-1, 0)
	}
	switch m.Pane {
	case PaneHistory:
		m.loadHistory()
	case PaneInsights:
		m.loadInsights()
	}
}

func (m *Model) openPane(p Pane, date string) {
	if date == "" {
		date = model.LocalDate(m.Snap.Now, m.tracker.Location())
	}
	m.Pane = p
	m.PaneDate = date
	switch p {
	case PaneHistory:
		m.loadHistory()
	case PaneInsights:
		m.loadInsights()
	}
}

func (m *Model) loadHistory() {
	m.History = nil
	r, ok := m.selected()
	if !ok {
		return
	}
	items, err := m.tracker.History(r.timerID, m.PaneDate)
	if err != nil {
		m.Status = StatusBar{Text: tracker.UserMessage(err), IsError: true}
		return
	}
	m.History = items
}

func (m *Model) loadInsights() {
	s, err := m.tracker.Insights(m.PaneDate, m.Snap.Now)
	if err != nil {
		m.Status = StatusBar{Text: tracker.UserMessage(err), IsError: true}
		return
	}
	m.Insights = s
}

func (m Model) rows() []row {
	out := make([]row, 0, m.Snap.Workspace.TimerCount())
	for _, g := range m.Snap.Workspace.Groups {
		for _, t := range g.Timers {
			out = append(out, row{groupID: g.ID, timerID: t.ID})
		}
	}
	return out
}

func (m Model) selected() (row, bool) {
	rows := m.rows()
	if m.Cursor < 0 || m.Cursor >= len(rows) {
		return row{}, false
	}
	return rows[m.Cursor], true
}

func (m *Model) selectTimer(timerID string) {
	for i, r := range m.rows() {
		if r.timerID == timerID {
			m.Cursor = i
			return
		}
	}
}

func (m *Model) moveCursor(delta int) {
	n := len(m.rows())
	if n == 0 {
		return
	}
	m.Cursor = min(max(m.Cursor+delta, 0), n-1)
	if m.Pane == PaneHistory {
		m.loadHistory()
	}
}

func (m Model) selectedTimer() (model.Group, model.Timer, bool) {
	r, ok := m.selected()
	if !ok {
		return model.Group{}, model.Timer{}, false
	}
	gi, ti, ok := m.Snap.Workspace.FindTimer(r.timerID)
	if !ok {
		return model.Group{}, model.Timer{}, false
	}
	g := m.Snap.Workspace.Groups[gi]
	return g, g.Timers[ti], true
}

func (m Model) historyEntry(index int) (model.Interval, error) {
	if m.Pane != PaneHistory {
		return model.Interval{}, fmt.Errorf("open the history with /history first")
	}
	if index < 1 || index > len(m.History) {
		return model.Interval{}, fmt.Errorf("no entry #%d in the shown history", index)
	}
	return m.History[index-1], nil
}
