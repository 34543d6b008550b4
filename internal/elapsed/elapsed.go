// Package elapsed derives a timer's elapsed seconds from its intervals.
package elapsed

import (
	"iter"

	"github.com/sandeepkv93/multitimer/internal/model"
)

// Compute returns baseline plus the whole seconds of timerID's closed
// intervals plus the whole seconds the running session has been open at now,
// if the session belongs to timerID. Open intervals in the sequence are
// ignored; the session is the only source of running time.
func Compute(timerID string, intervals iter.Seq[model.Interval], session *model.RunningSession, baseline, now int64) int64 {
	total := baseline + ClosedSeconds(timerID, intervals)
	if session != nil && session.TimerID == timerID {
		total += RunningSeconds(*session, now)
	}
	if total < 0 {
		return 0
	}
	return total
}

// ClosedSeconds floors the summed closed-interval milliseconds of timerID.
func ClosedSeconds(timerID string, intervals iter.Seq[model.Interval]) int64 {
	if intervals == nil {
		return 0
	}
	var ms int64
	for iv := range intervals {
		if iv.TimerID != timerID || iv.IsOpen() {
			continue
		}
		ms += iv.DurationMillis()
	}
	return ms / 1000
}

// RunningSeconds is zero when now precedes the session start.
func RunningSeconds(s model.RunningSession, now int64) int64 {
	if now <= s.StartTime {
		return 0
	}
	return (now - s.StartTime) / 1000
}
