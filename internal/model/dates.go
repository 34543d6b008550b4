package model

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used by the backend for active dates.
const DateLayout = "2006-01-02"

// DateRange is half-open: From <= StartTime < To.
type DateRange struct {
	From int64
	To   int64
}

func (r DateRange) Contains(ms int64) bool {
	return ms >= r.From && ms < r.To
}

func LocalDate(ms int64, loc *time.Location) string {
	return FromMillis(ms).In(locationOrLocal(loc)).Format(DateLayout)
}

// DayRange returns the millisecond bounds of a calendar date in loc.
func DayRange(date string, loc *time.Location) (DateRange, error) {
	loc = locationOrLocal(loc)
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return DateRange{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	return DateRange{From: day.UnixMilli(), To: day.AddDate(0, 0, 1).UnixMilli()}, nil
}

// DayRangeAt returns the bounds of the calendar date containing ms.
func DayRangeAt(ms int64, loc *time.Location) DateRange {
	loc = locationOrLocal(loc)
	t := FromMillis(ms).In(loc)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return DateRange{From: day.UnixMilli(), To: day.AddDate(0, 0, 1).UnixMilli()}
}

func locationOrLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
