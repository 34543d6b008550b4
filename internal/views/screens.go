package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

type TimerRowData struct {
	GroupID     string
	TimerID     string
	ProjectName string
	TaskName    string
	Notes       string
	Elapsed     int64
	Phase       string
	Confirmed   bool
	Synced      bool
	// StartedAt is set for the running timer.
	StartedAt *time.Time
}

type TimerListData struct {
	Rows     []TimerRowData
	Selected int
	Compact  bool
	Now      time.Time
}

type HistoryRowData struct {
	Start    time.Time
	End      *time.Time
	Duration int64
	Local    bool
}

type HistoryPanelData struct {
	TaskName string
	Date     string
	Rows     []HistoryRowData
}

type InsightBarData struct {
	Label   string
	Minutes int64
	Color   string
}

type InsightsPanelData struct {
	Date     string
	Total    int64
	PeakHour int
	Hours    []InsightBarData
	Projects []InsightBarData
}

type HelpPanelData struct {
	Bindings []string
	HelpView string
}

// FormatClock renders seconds as HH:MM:SS. Hours may exceed 99.
func FormatClock(seconds int64) string {
	seconds = max(seconds, 0)
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}

// FormatMinutes renders minutes as "1h 05m" or "45m".
func FormatMinutes(minutes int64) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}

func RenderTimerList(data TimerListData) string {
	var b strings.Builder
	b.WriteString("timers:\n")
	if len(data.Rows) == 0 {
		b.WriteString("(no timers)")
		return b.String()
	}
	lastGroup := ""
	for i, row := range data.Rows {
		if row.GroupID != lastGroup {
			lastGroup = row.GroupID
			fmt.Fprintf(&b, "\n%s\n", headerStyle.Render(orPlaceholder(row.ProjectName, "(no project)")))
		}
		cursor := " "
		if i == data.Selected {
			cursor = ">"
		}
		clock := FormatClock(row.Elapsed)
		switch row.Phase {
		case "running":
			clock = runningStyle.Render(clock)
		case "starting", "stopping":
			clock = pendingStyle.Render(clock)
		}
		fmt.Fprintf(&b, "%s %s %s%s\n", cursor, clock, orPlaceholder(row.TaskName, "(no task)"), badge(row))
		if data.Compact {
			continue
		}
		if row.StartedAt != nil {
			fmt.Fprintf(&b, "    %s\n", mutedStyle.Render("started "+humanize.RelTime(*row.StartedAt, data.Now, "ago", "from now")))
		}
		if row.Notes != "" {
			fmt.Fprintf(&b, "    %s\n", mutedStyle.Render(row.Notes))
		}
	}
	return strings.TrimSpace(b.String())
}

func RenderHistoryPanel(data HistoryPanelData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "history: %s (%s)\n", orPlaceholder(data.TaskName, "(no task)"), data.Date)
	if len(data.Rows) == 0 {
		b.WriteString("(no entries)")
		return b.String()
	}
	var total int64
	for i, row := range data.Rows {
		end := "running"
		if row.End != nil {
			end = row.End.Format("15:04")
		}
		marker := ""
		if row.Local {
			marker = " " + mutedStyle.Render("(local)")
		}
		fmt.Fprintf(&b, "#%d %s - %s  %s%s\n", i+1, row.Start.Format("15:04"), end, FormatClock(row.Duration), marker)
		total += row.Duration
	}
	fmt.Fprintf(&b, "total: %s\n", FormatClock(total))
	b.WriteString("actions: /edit N HH:MM HH:MM, /delete N")
	return b.String()
}

func RenderInsightsPanel(data InsightsPanelData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "insights: %s\n", data.Date)
	if data.Total == 0 {
		b.WriteString("(nothing tracked)")
		return b.String()
	}
	fmt.Fprintf(&b, "total: %s", FormatMinutes(data.Total))
	if data.PeakHour >= 0 {
		fmt.Fprintf(&b, " | peak: %02d:00", data.PeakHour)
	}
	b.WriteString("\n\nby hour:\n")
	peak := int64(0)
	for _, h := range data.Hours {
		peak = max(peak, h.Minutes)
	}
	for _, h := range data.Hours {
		if h.Minutes == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s %s %s\n", h.Label, bar(h.Minutes, peak, 24, h.Color), FormatMinutes(h.Minutes))
	}
	b.WriteString("\nby project:\n")
	for _, p := range data.Projects {
		pct := p.Minutes * 100 / data.Total
		fmt.Fprintf(&b, "%s %s %s (%d%%)\n", bar(p.Minutes, data.Total, 16, p.Color), p.Label, FormatMinutes(p.Minutes), pct)
	}
	return strings.TrimSpace(b.String())
}

func RenderCommandPalette(active bool, input string) string {
	if !active {
		return ""
	}
	return fmt.Sprintf("command: /%s", input)
}

// RenderHelpPanel renders the key bindings as markdown followed by the
// short help line.
func RenderHelpPanel(data HelpPanelData) string {
	var md strings.Builder
	md.WriteString("## Keys\n\n")
	for _, line := range data.Bindings {
		md.WriteString(line + "\n")
	}
	md.WriteString("\n## Commands\n\n")
	md.WriteString("- `/add HH:MM HH:MM [YYYY-MM-DD]` log time on the selected timer\n")
	md.WriteString("- `/edit N HH:MM HH:MM` change entry N of the shown history\n")
	md.WriteString("- `/delete N` remove entry N of the shown history\n")
	md.WriteString("- `/project ID NAME`, `/task ID NAME` choose project and task\n")
	md.WriteString("- `/note TEXT` set notes\n")
	md.WriteString("- `/history [date]`, `/insights [date]` open a report\n")
	return strings.TrimSpace(RenderMarkdown(md.String()) + "\n" + data.HelpView)
}

func badge(row TimerRowData) string {
	switch {
	case row.Synced:
		return " " + mutedStyle.Render("[synced]")
	case !row.Confirmed:
		return " " + mutedStyle.Render("[draft]")
	default:
		return ""
	}
}

func bar(value, scale int64, width int, color string) string {
	if scale <= 0 {
		return strings.Repeat(" ", width)
	}
	filled := int(value * int64(width) / scale)
	filled = min(max(filled, 1), width)
	style := mutedStyle
	if color != "" {
		style = style.Foreground(lipgloss.Color(color))
	}
	return style.Render(strings.Repeat("█", filled)) + strings.Repeat(" ", width-filled)
}

func orPlaceholder(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}
