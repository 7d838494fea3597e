package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrJobNotFound is returned by Status for unknown or expired job ids.
var ErrJobNotFound = errors.New("job not found")

// Job defines a queue job handler.
type Job interface {
	// Name returns the unique identifier of the job.
	Name() string

	// Type returns the type of message that the job handles.
	Type() string

	// Handle processes the payload. The returned value is stored as the
	// job result.
	Handle(ctx context.Context, payload json.RawMessage) (any, error)
}

// State is the lifecycle position of a job.
type State string

const (
	StateQueued  State = "queued"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Status is what callers poll for.
type Status struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	State     State           `json:"state"`
	Attempts  int             `json:"attempts"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Finished reports whether the job reached a terminal state.
func (s *Status) Finished() bool {
	return s.State == StateDone || s.State == StateFailed
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
