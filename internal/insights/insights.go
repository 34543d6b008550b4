// Package insights summarises one day of tracked time.
package insights

import (
	"cmp"
	"slices"
	"time"

	"github.com/sandeepkv93/multitimer/internal/model"
)

const untitledProject = "Untitled Project"

var palette = []string{
	"#01D9B5",
	"#FF7F50",
	"#6366F1",
	"#EC4899",
	"#F59E0B",
	"#10B981",
	"#8B5CF6",
	"#EF4444",
}

// Entry is one interval with the names it is reported under. An open
// interval counts up to the summary time.
type Entry struct {
	Interval    model.Interval
	ProjectName string
	TaskName    string
}

type HourBucket struct {
	Hour    int
	Minutes int64
	Entries int
}

type ProjectSummary struct {
	Name     string
	Minutes  int64
	Sessions int
	Color    string
}

type Summary struct {
	Date     string
	Hours    []HourBucket
	Projects []ProjectSummary
	Total    int64
}

// PeakHour returns the hour with the most minutes, or -1 for an empty day.
func (s Summary) PeakHour() int {
	peak, best := -1, int64(0)
	for _, h := range s.Hours {
		if h.Minutes > best {
			peak, best = h.Hour, h.Minutes
		}
	}
	return peak
}

// Summarize buckets every entry that started on date. All of an entry's
// minutes go to the hour it started in.
func Summarize(date string, loc *time.Location, entries []Entry, now int64) (Summary, error) {
	day, err := model.DayRange(date, loc)
	if err != nil {
		return Summary{}, err
	}
	if loc == nil {
		loc = time.Local
	}

	out := Summary{Date: date, Hours: make([]HourBucket, 24)}
	for h := range out.Hours {
		out.Hours[h].Hour = h
	}

	byName := make(map[string]int)
	for _, e := range entries {
		iv := e.Interval
		if !day.Contains(iv.StartTime) {
			continue
		}
		end := now
		if iv.EndTime != nil {
			end = *iv.EndTime
		}
		minutes := max(end-iv.StartTime, 0) / 60_000

		hour := model.FromMillis(iv.StartTime).In(loc).Hour()
		out.Hours[hour].Minutes += minutes
		out.Hours[hour].Entries++

		name := e.ProjectName
		if name == "" {
			name = untitledProject
		}
		idx, ok := byName[name]
		if !ok {
			idx = len(out.Projects)
			byName[name] = idx
			out.Projects = append(out.Projects, ProjectSummary{Name: name, Color: palette[idx%len(palette)]})
		}
		out.Projects[idx].Minutes += minutes
		out.Projects[idx].Sessions++
		out.Total += minutes
	}

	slices.SortStableFunc(out.Projects, func(a, b ProjectSummary) int {
		return cmp.Compare(b.Minutes, a.Minutes)
	})
	return out, nil
}
