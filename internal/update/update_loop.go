package update

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/multitimer/internal/model"
	"github.com/sandeepkv93/multitimer/internal/tracker"
	"github.com/sandeepkv93/multitimer/internal/views"
)

func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(m.tick), waitForEventCmd(m.events))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		if m.Palette.Active {
			return m.handlePaletteKey(typed)
		}
		return m.handleKey(typed)
	case TickMsg:
		m.refresh()
		return m, tickCmd(m.tick)
	case spinner.TickMsg:
		if m.syncing() {
			var cmd tea.Cmd
			m.syncSpinner, cmd = m.syncSpinner.Update(typed)
			return m, cmd
		}
		return m, nil
	case OpResultMsg:
		m.Busy = max(m.Busy-1, 0)
		m.refresh()
		if typed.Err != nil {
			m.LastError = typed.Err
			m.Status = StatusBar{Text: tracker.UserMessage(typed.Err), IsError: true}
		} else if typed.Message != "" {
			m.Status = StatusBar{Text: typed.Message}
		}
		return m, nil
	case EventMsg:
		m.refresh()
		if typed.Event.Type == tracker.EventRolledBack {
			m.Status = StatusBar{Text: "Rolled back: " + tracker.UserMessage(typed.Event.Err), IsError: true}
		}
		return m, waitForEventCmd(m.events)
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		return m, nil
	case ClearStatusMsg:
		m.Status = StatusBar{}
		return m, nil
	case AppErrorMsg:
		m.LastError = typed.Err
		if typed.Err != nil {
			m.Status = StatusBar{Text: tracker.UserMessage(typed.Err), IsError: true}
		}
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if m.Quitting {
		return ""
	}
	now := model.FromMillis(m.Snap.Now)

	var right []string
	if p := views.RenderCommandPalette(m.Palette.Active, m.commandInput.Value()); p != "" {
		right = append(right, p)
	}
	switch m.Pane {
	case PaneHistory:
		right = append(right, m.renderHistory())
	case PaneInsights:
		right = append(right, m.renderInsights())
	}
	if m.HelpVisible {
		right = append(right, m.renderHelpView())
	}

	status := m.Status.Text
	if m.syncing() {
		status = strings.TrimSpace(m.syncSpinner.View() + " syncing " + status)
	}

	header := fmt.Sprintf("multitimer | %s", now.In(m.tracker.Location()).Format("Mon 2006-01-02"))
	if m.Snap.Session != nil {
		if r, ok := m.runningRow(); ok {
			header += fmt.Sprintf(" | running: %s", views.FormatClock(r.Elapsed))
		}
	}

	return views.RenderApp(views.AppData{
		Header:     header,
		LeftPane:   m.renderTimers(now),
		RightPane:  strings.Join(right, "\n\n"),
		StatusLine: status,
		StatusErr:  m.Status.IsError,
		Compact:    m.Snap.Workspace.Compact,
		Footer: fmt.Sprintf("keys: j/k move | %s/space toggle | %s stop | %s timer | %s project | %s history | %s insights | / cmd | %s help | %s quit",
			m.Keys.Toggle, m.Keys.Stop, m.Keys.AddTimer, m.Keys.AddGroup, m.Keys.History, m.Keys.Insights, m.Keys.Help, m.Keys.Quit),
	})
}

func (m Model) syncing() bool {
	return m.Busy > 0 || m.Snap.Syncing
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func waitForEventCmd(ch <-chan tracker.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return EventMsg{Event: ev}
	}
}
