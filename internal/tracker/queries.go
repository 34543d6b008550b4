package tracker

import (
	"github.com/sandeepkv93/multitimer/internal/insights"
	"github.com/sandeepkv93/multitimer/internal/model"
)

// Insights summarises every interval that started on date, across timers.
// Intervals whose group was removed are reported as untitled.
func (c *Controller) Insights(date string, now int64) (insights.Summary, error) {
	c.mu.Lock()
	projects := make(map[string]string)
	tasks := make(map[string]string)
	for _, g := range c.ws.Groups {
		projects[g.ID] = g.ProjectName
		for _, t := range g.Timers {
			tasks[t.ID] = t.TaskName
		}
	}
	c.mu.Unlock()

	all := c.store.All()
	entries := make([]insights.Entry, 0, len(all))
	for _, iv := range all {
		entries = append(entries, insights.Entry{
			Interval:    iv,
			ProjectName: projects[iv.GroupID],
			TaskName:    tasks[iv.TimerID],
		})
	}
	s, err := insights.Summarize(date, c.loc, entries, now)
	if err != nil {
		return insights.Summary{}, model.NewValidationError("date", "use YYYY-MM-DD")
	}
	return s, nil
}
