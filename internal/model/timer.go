package model

// Backing records whether a timer has a record on the backend yet.
// It is either Draft or Confirmed.
type Backing interface {
	isBacking()
}

// Draft is a timer that exists only locally.
type Draft struct{}

// Confirmed is a timer the backend has acknowledged. ActiveDate is the
// backend's YYYY-MM-DD date for the record; a record covers one day.
type Confirmed struct {
	BackendID  int64
	ActiveDate string
	Synced     bool
}

func (Draft) isBacking()     {}
func (Confirmed) isBacking() {}

type Timer struct {
	ID       string
	TaskID   string
	TaskName string
	Notes    string
	Backing  Backing
	// Baseline holds seconds the backend reported for the active date that
	// are not represented by local intervals. It may be negative.
	Baseline int64
	// Elapsed is derived; only the elapsed calculator writes it.
	Elapsed int64
}

func NewTimer(id string) Timer {
	return Timer{ID: id, Backing: Draft{}}
}

func (t Timer) Confirmed() (Confirmed, bool) {
	c, ok := t.Backing.(Confirmed)
	return c, ok
}

func (t Timer) BackendID() (int64, bool) {
	c, ok := t.Confirmed()
	if !ok {
		return 0, false
	}
	return c.BackendID, true
}

func (t Timer) IsDraft() bool {
	_, ok := t.Confirmed()
	return !ok
}

type Group struct {
	ID          string
	ProjectID   string
	ProjectName string
	Timers      []Timer
}

func NewGroup(id, name string, first Timer) Group {
	return Group{ID: id, ProjectName: name, Timers: []Timer{first}}
}

func (g Group) Clone() Group {
	out := g
	out.Timers = append([]Timer(nil), g.Timers...)
	return out
}

// Workspace is every group shown to the user plus display preferences.
type Workspace struct {
	Groups  []Group
	Compact bool
}

func (w Workspace) Clone() Workspace {
	out := Workspace{Compact: w.Compact, Groups: make([]Group, len(w.Groups))}
	for i, g := range w.Groups {
		out.Groups[i] = g.Clone()
	}
	return out
}

// FindTimer returns the indexes of the timer with the given id.
func (w Workspace) FindTimer(timerID string) (gi, ti int, ok bool) {
	for gi, g := range w.Groups {
		for ti, t := range g.Timers {
			if t.ID == timerID {
				return gi, ti, true
			}
		}
	}
	return -1, -1, false
}

func (w Workspace) FindGroup(groupID string) (int, bool) {
	for i, g := range w.Groups {
		if g.ID == groupID {
			return i, true
		}
	}
	return -1, false
}

func (w Workspace) TimerCount() int {
	n := 0
	for _, g := range w.Groups {
		n += len(g.Timers)
	}
	return n
}

// RunningSession identifies the single running timer and its open interval.
type RunningSession struct {
	TimerID   string `json:"timer_id"`
	GroupID   string `json:"group_id"`
	EventID   string `json:"event_id"`
	StartTime int64  `json:"start_time"`
}

func (s RunningSession) Validate() error {
	if s.TimerID == "" || s.EventID == "" {
		return NewValidationError("session", "running session requires timer and event ids")
	}
	if s.StartTime <= 0 {
		return NewValidationError("session", "running session requires a start time")
	}
	return nil
}
