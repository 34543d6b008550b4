package update

import (
	"fmt"
	"time"

	"github.com/sandeepkv93/multitimer/internal/model"
	"github.com/sandeepkv93/multitimer/internal/views"
)

func (m Model) timerRows() []views.TimerRowData {
	out := make([]views.TimerRowData, 0, m.Snap.Workspace.TimerCount())
	for _, g := range m.Snap.Workspace.Groups {
		for _, t := range g.Timers {
			conf, confirmed := t.Confirmed()
			r := views.TimerRowData{
				GroupID:     g.ID,
				TimerID:     t.ID,
				ProjectName: g.ProjectName,
				TaskName:    t.TaskName,
				Notes:       t.Notes,
				Elapsed:     t.Elapsed,
				Phase:       string(m.Snap.PhaseOf(t.ID)),
				Confirmed:   confirmed,
				Synced:      conf.Synced,
			}
			if s := m.Snap.Session; s != nil && s.TimerID == t.ID {
				started := model.FromMillis(s.StartTime)
				r.StartedAt = &started
			}
			out = append(out, r)
		}
	}
	return out
}

func (m Model) runningRow() (views.TimerRowData, bool) {
	for _, r := range m.timerRows() {
		if r.StartedAt != nil {
			return r, true
		}
	}
	return views.TimerRowData{}, false
}

func (m Model) renderTimers(now time.Time) string {
	return views.RenderTimerList(views.TimerListData{
		Rows:     m.timerRows(),
		Selected: m.Cursor,
		Compact:  m.Snap.Workspace.Compact,
		Now:      now,
	})
}

func (m Model) renderHistory() string {
	loc := m.tracker.Location()
	_, timer, _ := m.selectedTimer()
	rows := make([]views.HistoryRowData, 0, len(m.History))
	for _, iv := range m.History {
		r := views.HistoryRowData{
			Start: model.FromMillis(iv.StartTime).In(loc),
			Local: iv.BackendIntervalID == nil,
		}
		end := m.Snap.Now
		if iv.EndTime != nil {
			end = *iv.EndTime
			t := model.FromMillis(end).In(loc)
			r.End = &t
		}
		r.Duration = max(end-iv.StartTime, 0) / 1000
		rows = append(rows, r)
	}
	return views.RenderHistoryPanel(views.HistoryPanelData{
		TaskName: timer.TaskName,
		Date:     m.PaneDate,
		Rows:     rows,
	})
}

func (m Model) renderInsights() string {
	s := m.Insights
	data := views.InsightsPanelData{
		Date:     m.PaneDate,
		Total:    s.Total,
		PeakHour: s.PeakHour(),
	}
	for _, h := range s.Hours {
		data.Hours = append(data.Hours, views.InsightBarData{Label: fmt.Sprintf("%02d:00", h.Hour), Minutes: h.Minutes})
	}
	for _, p := range s.Projects {
		data.Projects = append(data.Projects, views.InsightBarData{Label: p.Name, Minutes: p.Minutes, Color: p.Color})
	}
	return views.RenderInsightsPanel(data)
}
