package model

const minuteMillis = 60_000

// ValidateManualEntry checks the bounds of a manually entered or edited
// interval against the current time.
func ValidateManualEntry(start, end, now int64) error {
	switch {
	case start > now:
		return NewValidationError("start", "start time cannot be in the future")
	case end > now:
		return NewValidationError("end", "end time cannot be in the future")
	case end <= start:
		return NewValidationError("end", "end time must be after start time")
	case (end-start)/minuteMillis == 0:
		return NewValidationError("end", "duration must be at least 1 minute")
	}
	return nil
}
