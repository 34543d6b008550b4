package update

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/multitimer/internal/commands"
	"github.com/sandeepkv93/multitimer/internal/model"
	"github.com/sandeepkv93/multitimer/internal/tracker"
)

func (m Model) handlePaletteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closePalette()
		return m, nil
	case "enter":
		m.Palette.Input = m.commandInput.Value()
		return m.executePaletteCommand()
	default:
		switch msg.Type {
		case tea.KeyRunes:
			m.commandInput.SetValue(m.commandInput.Value() + string(msg.Runes))
			m.Palette.Input = m.commandInput.Value()
			return m, nil
		case tea.KeySpace:
			m.commandInput.SetValue(m.commandInput.Value() + " ")
			m.Palette.Input = m.commandInput.Value()
			return m, nil
		}
		var cmd tea.Cmd
		m.commandInput, cmd = m.commandInput.Update(msg)
		m.Palette.Input = m.commandInput.Value()
		return m, cmd
	}
}

func (m *Model) closePalette() {
	m.Palette.Active = false
	m.Palette.Input = ""
	m.commandInput.SetValue("")
	m.commandInput.Blur()
}

func (m Model) executePaletteCommand() (tea.Model, tea.Cmd) {
	raw := strings.TrimSpace(m.Palette.Input)
	m.closePalette()
	cmd, err := commands.Parse(raw)
	if err != nil {
		m.Status = StatusBar{Text: paletteError(err), IsError: true}
		return m, nil
	}

	var next tea.Cmd
	loc := m.tracker.Location()
	today := model.LocalDate(m.Snap.Now, loc)
	needTimer := func() (model.Group, model.Timer, error) {
		g, t, ok := m.selectedTimer()
		if !ok {
			return g, t, &commands.CommandError{Code: commands.ErrCodeInvalidArgument, Message: "select a timer first"}
		}
		return g, t, nil
	}
	bounds := func(date string, start, end commands.Clock) (int64, int64, error) {
		s, err := start.On(date, loc)
		if err != nil {
			return 0, 0, err
		}
		e, err := end.On(date, loc)
		return s, e, err
	}

	res, err := commands.Execute(cmd, commands.Handlers{
		Add: func(a commands.AddArgs) (commands.Result, error) {
			g, t, err := needTimer()
			if err != nil {
				return commands.Result{}, err
			}
			date := a.Date
			if date == "" {
				date = today
			}
			start, end, err := bounds(date, a.Start, a.End)
			if err != nil {
				return commands.Result{}, err
			}
			m, next = m.run("add entry", fmt.Sprintf("Added %s-%s on %s", a.Start, a.End, date), func(ctx context.Context) error {
				_, err := m.tracker.AddManualEntry(ctx, g.ID, t.ID, start, end)
				return err
			})
			return commands.Result{Message: "Adding time entry"}, nil
		},
		Edit: func(a commands.EditArgs) (commands.Result, error) {
			iv, err := m.historyEntry(a.Index)
			if err != nil {
				return commands.Result{}, err
			}
			start, end, err := bounds(m.PaneDate, a.Start, a.End)
			if err != nil {
				return commands.Result{}, err
			}
			m, next = m.run("edit entry", fmt.Sprintf("Entry #%d updated", a.Index), func(ctx context.Context) error {
				_, err := m.tracker.EditInterval(ctx, iv.ID, start, end)
				return err
			})
			return commands.Result{Message: "Updating entry"}, nil
		},
		Delete: func(a commands.DeleteArgs) (commands.Result, error) {
			iv, err := m.historyEntry(a.Index)
			if err != nil {
				return commands.Result{}, err
			}
			m, next = m.run("delete entry", fmt.Sprintf("Entry #%d deleted", a.Index), func(ctx context.Context) error {
				return m.tracker.DeleteInterval(ctx, iv.ID)
			})
			return commands.Result{Message: "Deleting entry"}, nil
		},
		Project: func(a commands.ProjectArgs) (commands.Result, error) {
			g, _, err := needTimer()
			if err != nil {
				return commands.Result{}, err
			}
			if err := m.tracker.SelectProject(g.ID, a.ID, a.Name); err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: "Project set to " + a.Name}, nil
		},
		Task: func(a commands.TaskArgs) (commands.Result, error) {
			g, t, err := needTimer()
			if err != nil {
				return commands.Result{}, err
			}
			if err := m.tracker.SelectTask(g.ID, t.ID, a.ID, a.Name); err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: "Task set to " + a.Name}, nil
		},
		Note: func(a commands.NoteArgs) (commands.Result, error) {
			g, t, err := needTimer()
			if err != nil {
				return commands.Result{}, err
			}
			m, next = m.run("notes", "Notes saved", func(ctx context.Context) error {
				return m.tracker.UpdateNotes(ctx, g.ID, t.ID, a.Text)
			})
			return commands.Result{Message: "Saving notes"}, nil
		},
		History: func(a commands.DateArgs) (commands.Result, error) {
			m.openPane(PaneHistory, a.Date)
			return commands.Result{Message: "History for " + m.PaneDate}, nil
		},
		Insights: func(a commands.DateArgs) (commands.Result, error) {
			m.openPane(PaneInsights, a.Date)
			return commands.Result{Message: "Insights for " + m.PaneDate}, nil
		},
	})
	if err != nil {
		m.LastError = err
		m.refresh()
		m.Status = StatusBar{Text: paletteError(err), IsError: true}
		return m, nil
	}
	m.refresh()
	m.Status = StatusBar{Text: res.Message}
	return m, next
}

func paletteError(err error) string {
	var ce *commands.CommandError
	if errors.As(err, &ce) {
		return ce.Message
	}
	return tracker.UserMessage(err)
}
