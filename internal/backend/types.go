package backend

type TimerStatus string

const (
	StatusIdle    TimerStatus = "idle"
	StatusRunning TimerStatus = "running"
	StatusStopped TimerStatus = "stopped"
)

// Timer is the backend's per-day timer record.
type Timer struct {
	ID            int64       `json:"id"`
	UserID        int64       `json:"user_id,omitempty"`
	ProjectID     string      `json:"project_id"`
	TaskID        string      `json:"task_id"`
	Notes         string      `json:"notes"`
	ActiveDate    string      `json:"active_date"`
	TotalDuration *int64      `json:"total_duration,omitempty"`
	Status        TimerStatus `json:"status,omitempty"`
	Synced        bool        `json:"synced"`
	CreatedAt     int64       `json:"created_at,omitempty"`
	UpdatedAt     int64       `json:"updated_at,omitempty"`
}

type Interval struct {
	ID        int64  `json:"id"`
	TimerID   int64  `json:"timer_id"`
	StartTime int64  `json:"start_time"`
	EndTime   *int64 `json:"end_time,omitempty"`
	Duration  int64  `json:"duration"`
}

type CreateTimerRequest struct {
	ProjectID  string `json:"project_id"`
	TaskID     string `json:"task_id"`
	Notes      string `json:"notes"`
	ActiveDate string `json:"active_date"`
}

type StartTimerRequest struct {
	UserID    int64  `json:"user_id"`
	ProjectID string `json:"project_id"`
	TaskID    string `json:"task_id"`
	Notes     string `json:"notes"`
	StartTime int64  `json:"start_time"`
}

type resumeTimerRequest struct {
	TimerID    int64 `json:"timer_id"`
	ResumeTime int64 `json:"resume_time"`
}

type stopTimerRequest struct {
	TimerID  int64 `json:"timer_id"`
	StopTime int64 `json:"stop_time"`
}

type UpdateTimerRequest struct {
	Notes *string `json:"notes,omitempty"`
}

type CreateIntervalRequest struct {
	TimerID   int64 `json:"timer_id"`
	StartTime int64 `json:"start_time"`
	EndTime   int64 `json:"end_time"`
	// Duration is in whole seconds.
	Duration int64 `json:"duration"`
}

type listTimersEnvelope struct {
	AllTimers []Timer `json:"all_timers"`
}
