package update

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"

	"github.com/sandeepkv93/multitimer/internal/insights"
	"github.com/sandeepkv93/multitimer/internal/model"
	"github.com/sandeepkv93/multitimer/internal/tracker"
)

// Tracker is the part of the controller the UI drives.
type Tracker interface {
	Snapshot(now time.Time) tracker.Snapshot
	Subscribe(buffer int) <-chan tracker.Event
	Location() *time.Location

	Toggle(ctx context.Context, groupID, timerID string) error
	Stop(ctx context.Context) error
	AddManualEntry(ctx context.Context, groupID, timerID string, start, end int64) (model.Interval, error)
	EditInterval(ctx context.Context, intervalID string, start, end int64) (model.Interval, error)
	DeleteInterval(ctx context.Context, intervalID string) error
	History(timerID, date string) ([]model.Interval, error)
	Insights(date string, now int64) (insights.Summary, error)

	AddGroup() (model.Group, error)
	AddTimer(groupID string) (model.Timer, error)
	RemoveGroup(ctx context.Context, groupID string) error
	RemoveTimer(ctx context.Context, groupID, timerID string) error
	SelectProject(groupID, projectID, projectName string) error
	SelectTask(groupID, timerID, taskID, taskName string) error
	UpdateNotes(ctx context.Context, groupID, timerID, notes string) error
	SetCompact(compact bool) error
}

type Pane string

const (
	PaneNone     Pane = ""
	PaneHistory  Pane = "history"
	PaneInsights Pane = "insights"
)

type StatusBar struct {
	Text    string
	IsError bool
}

type GlobalKeyMap struct {
	Toggle      string
	Stop        string
	AddTimer    string
	AddGroup    string
	RemoveTimer string
	RemoveGroup string
	Compact     string
	History     string
	Insights    string
	Help        string
	Quit        string
}

type CommandPaletteState struct {
	Active bool
	Input  string
}

type Options struct {
	Now          func() time.Time
	TickInterval time.Duration
	// OpTimeout bounds each controller call made from the UI.
	OpTimeout time.Duration
}

type Model struct {
	Snap        tracker.Snapshot
	Cursor      int
	Pane        Pane
	PaneDate    string
	History     []model.Interval
	Insights    insights.Summary
	Palette     CommandPaletteState
	HelpVisible bool
	Status      StatusBar
	Keys        GlobalKeyMap
	Busy        int
	Quitting    bool
	LastError   error

	tracker   Tracker
	events    <-chan tracker.Event
	now       func() time.Time
	tick      time.Duration
	opTimeout time.Duration

	commandInput textinput.Model
	syncSpinner  spinner.Model
	helpModel    help.Model
}

type row struct {
	groupID string
	timerID string
}

type TickMsg time.Time

// OpResultMsg reports a finished controller call.
type OpResultMsg struct {
	Op      string
	Message string
	Err     error
}

type EventMsg struct {
	Event tracker.Event
}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

type ClearStatusMsg struct{}

type AppErrorMsg struct {
	Err error
}

func NewModel(t Tracker, opts Options) Model {
	m := Model{
		tracker:   t,
		now:       opts.Now,
		tick:      opts.TickInterval,
		opTimeout: opts.OpTimeout,
		Keys: GlobalKeyMap{
			Toggle:      "enter",
			Stop:        "s",
			AddTimer:    "a",
			AddGroup:    "g",
			RemoveTimer: "x",
			RemoveGroup: "X",
			Compact:     "c",
			History:     "h",
			Insights:    "i",
			Help:        "?",
			Quit:        "q",
		},
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.tick <= 0 {
		m.tick = time.Second
	}
	if m.opTimeout <= 0 {
		m.opTimeout = 30 * time.Second
	}
	m.events = t.Subscribe(32)
	m.initBubbleComponents()
	m.refresh()
	return m
}

func (m *Model) initBubbleComponents() {
	m.commandInput = textinput.New()
	m.commandInput.Prompt = "/"
	m.commandInput.CharLimit = 256
	m.commandInput.Width = 48

	m.syncSpinner = spinner.New()
	m.syncSpinner.Spinner = spinner.Dot

	m.helpModel = help.New()
}
