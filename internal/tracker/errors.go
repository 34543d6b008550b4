package tracker

import (
	"errors"

	"github.com/sandeepkv93/multitimer/internal/backend"
	"github.com/sandeepkv93/multitimer/internal/model"
)

var (
	ErrNotReady       = errors.New("tracker: state not loaded yet")
	ErrSyncInProgress = errors.New("tracker: sync in progress")
	ErrNotRunning     = errors.New("tracker: no timer is running")
)

// UserMessage turns an operation error into status-bar text.
func UserMessage(err error) string {
	var verr *model.ValidationError
	var berr *backend.BackendError
	var nerr *backend.NetworkError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return verr.Message
	case errors.As(err, &berr):
		return berr.Message
	case errors.Is(err, backend.ErrMissingID):
		return "The timer service sent an incomplete reply"
	case errors.As(err, &nerr):
		return "Network error: could not reach the timer service"
	case errors.Is(err, ErrSyncInProgress):
		return "Still syncing the previous change"
	case errors.Is(err, ErrNotRunning):
		return "No timer is running"
	case errors.Is(err, ErrNotReady):
		return "Still loading saved timers"
	case errors.Is(err, model.ErrNotFound):
		return "Not found"
	default:
		return err.Error()
	}
}
