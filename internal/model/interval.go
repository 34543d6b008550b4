package model

import "time"

// Interval is one contiguous span of work on a timer. Times are milliseconds
// since the Unix epoch.
type Interval struct {
	ID                string `json:"id"`
	TimerID           string `json:"timer_id"`
	GroupID           string `json:"group_id"`
	StartTime         int64  `json:"start_time"`
	EndTime           *int64 `json:"end_time,omitempty"`
	BackendTimerID    *int64 `json:"backend_timer_id,omitempty"`
	BackendIntervalID *int64 `json:"backend_interval_id,omitempty"`
}

func (iv Interval) IsOpen() bool {
	return iv.EndTime == nil
}

// DurationMillis is zero for an open interval.
func (iv Interval) DurationMillis() int64 {
	if iv.EndTime == nil {
		return 0
	}
	return *iv.EndTime - iv.StartTime
}

func (iv Interval) Validate() error {
	if iv.ID == "" {
		return NewValidationError("id", "interval id is required")
	}
	if iv.TimerID == "" {
		return NewValidationError("timer_id", "timer id is required")
	}
	if iv.EndTime != nil && *iv.EndTime <= iv.StartTime {
		return ErrInvalidRange
	}
	return nil
}

// Clone returns a copy that shares no pointers with iv.
func (iv Interval) Clone() Interval {
	out := iv
	out.EndTime = cloneInt64(iv.EndTime)
	out.BackendTimerID = cloneInt64(iv.BackendTimerID)
	out.BackendIntervalID = cloneInt64(iv.BackendIntervalID)
	return out
}

func Int64(v int64) *int64 {
	return &v
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
