package summarizer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrContentBlocked     = errors.New("content blocked")
	ErrInvalidAPIKey      = errors.New("invalid api key")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrImagePayload       = errors.New("image payload rejected")
	ErrSummaryUnavailable = errors.New("summary unavailable")
)

// Error carries a user-facing message for one of the sentinels above and
// keeps the raw backend error for logs.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Cause }

// Blocked reports a prompt rejected by the model's safety filter.
func Blocked(reason string) *Error {
	return &Error{
		Kind:    ErrContentBlocked,
		Message: fmt.Sprintf("Content blocked: %s. Adjust content/safety settings.", reason),
	}
}

// Classify maps a raw backend error to a user-facing *Error. Checks run in
// order; the first match wins.
func Classify(err error, hasImages bool) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "API key not valid"):
		return &Error{Kind: ErrInvalidAPIKey, Message: "Invalid Gemini API key. Check configuration.", Cause: err}
	case strings.Contains(lower, "quota") || strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(msg, "429"):
		return &Error{Kind: ErrQuotaExceeded, Message: "API quota exceeded. Try again later.", Cause: err}
	case strings.Contains(lower, "image") || (hasImages && strings.Contains(lower, "request payload")):
		return &Error{Kind: ErrImagePayload, Message: "Issue processing chart image(s). May be too large or unsupported format.", Cause: err}
	default:
		return &Error{Kind: ErrSummaryUnavailable, Message: "Sorry, I couldn't generate a summary at this time.", Cause: err}
	}
}
