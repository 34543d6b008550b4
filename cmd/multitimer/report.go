package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/sandeepkv93/multitimer/internal/insights"
	"github.com/sandeepkv93/multitimer/internal/model"
	"github.com/sandeepkv93/multitimer/internal/tracker"
	"github.com/sandeepkv93/multitimer/internal/views"
)

type reportSource interface {
	Snapshot(now time.Time) tracker.Snapshot
	History(timerID, date string) ([]model.Interval, error)
	Insights(date string, now int64) (insights.Summary, error)
	Location() *time.Location
}

type timerReport struct {
	GroupID     string `json:"group_id"`
	TimerID     string `json:"timer_id"`
	Project     string `json:"project"`
	Task        string `json:"task"`
	Phase       string `json:"phase"`
	Elapsed     int64  `json:"elapsed_seconds"`
	BackendID   int64  `json:"backend_id,omitempty"`
	ActiveDate  string `json:"active_date,omitempty"`
	Draft       bool   `json:"draft"`
	StartedAtMs int64  `json:"started_at,omitempty"`
}

type statusReport struct {
	Now     int64         `json:"now"`
	Running string        `json:"running_timer_id,omitempty"`
	Timers  []timerReport `json:"timers"`
}

type historyReport struct {
	TimerID   string           `json:"timer_id"`
	Date      string           `json:"date"`
	Intervals []model.Interval `json:"intervals"`
	Seconds   int64            `json:"total_seconds"`
}

var reportNow = time.Now

func runReport(src reportSource, name string, args []string, stdout, stderr io.Writer) int {
	var err error
	switch name {
	case "status":
		err = statusCommand(src, args, stdout, stderr)
	case "history":
		err = historyCommand(src, args, stdout, stderr)
	case "insights":
		err = insightsCommand(src, args, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "multitimer: unknown command %q\n", name)
		return 2
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "multitimer %s: %s\n", name, tracker.UserMessage(err))
		return 1
	}
	return 0
}

func buildStatus(snap tracker.Snapshot) statusReport {
	out := statusReport{Now: snap.Now, Timers: make([]timerReport, 0)}
	if snap.Session != nil {
		out.Running = snap.Session.TimerID
	}
	for _, g := range snap.Workspace.Groups {
		for _, t := range g.Timers {
			row := timerReport{
				GroupID: g.ID,
				TimerID: t.ID,
				Project: g.ProjectName,
				Task:    t.TaskName,
				Phase:   string(snap.PhaseOf(t.ID)),
				Elapsed: t.Elapsed,
				Draft:   t.IsDraft(),
			}
			if c, ok := t.Confirmed(); ok {
				row.BackendID = c.BackendID
				row.ActiveDate = c.ActiveDate
			}
			if snap.Session != nil && snap.Session.TimerID == t.ID {
				row.StartedAtMs = snap.Session.StartTime
			}
			out.Timers = append(out.Timers, row)
		}
	}
	return out
}

func statusCommand(src reportSource, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	report := buildStatus(src.Snapshot(reportNow()))
	if *asJSON {
		return writeJSON(stdout, report)
	}
	for _, t := range report.Timers {
		marker := " "
		if t.TimerID == report.Running {
			marker = "*"
		}
		fmt.Fprintf(stdout, "%s %-10s %-24s %-20s %s\n", marker, t.TimerID, orDash(t.Project), orDash(t.Task), views.FormatClock(t.Elapsed))
	}
	return nil
}

func historyCommand(src reportSource, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	timerID := fs.String("timer", "", "timer id (defaults to the running timer)")
	date := fs.String("date", "", "day as YYYY-MM-DD (defaults to today)")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	now := reportNow()
	snap := src.Snapshot(now)
	id := *timerID
	if id == "" && snap.Session != nil {
		id = snap.Session.TimerID
	}
	if id == "" {
		return model.NewValidationError("timer", "pass --timer when nothing is running")
	}
	day := *date
	if day == "" {
		day = model.LocalDate(model.Millis(now), src.Location())
	}
	items, err := src.History(id, day)
	if err != nil {
		return err
	}

	report := historyReport{TimerID: id, Date: day, Intervals: items}
	for _, iv := range items {
		report.Seconds += iv.DurationMillis() / 1000
	}
	if *asJSON {
		return writeJSON(stdout, report)
	}
	loc := src.Location()
	for i, iv := range items {
		end := "running"
		if iv.EndTime != nil {
			end = time.UnixMilli(*iv.EndTime).In(loc).Format("15:04")
		}
		fmt.Fprintf(stdout, "#%d %s - %s %s\n", i+1, time.UnixMilli(iv.StartTime).In(loc).Format("15:04"), end, views.FormatClock(iv.DurationMillis()/1000))
	}
	fmt.Fprintf(stdout, "total %s\n", views.FormatClock(report.Seconds))
	return nil
}

func insightsCommand(src reportSource, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("insights", flag.ContinueOnError)
	fs.SetOutput(stderr)
	date := fs.String("date", "", "day as YYYY-MM-DD (defaults to today)")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	now := reportNow()
	day := *date
	if day == "" {
		day = model.LocalDate(model.Millis(now), src.Location())
	}
	summary, err := src.Insights(day, model.Millis(now))
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(stdout, summary)
	}
	fmt.Fprintf(stdout, "%s total %s\n", summary.Date, views.FormatMinutes(summary.Total))
	if peak := summary.PeakHour(); peak >= 0 {
		fmt.Fprintf(stdout, "peak hour %02d:00\n", peak)
	}
	for _, p := range summary.Projects {
		fmt.Fprintf(stdout, "%-24s %s (%d sessions)\n", p.Name, views.FormatMinutes(p.Minutes), p.Sessions)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
