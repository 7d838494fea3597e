package models

import (
	"errors"
	"fmt"
	"time"

	"StockPulse/internal/domain/signal"
)

// SignalSnapshot is one recorded overall signal for a stock.
type SignalSnapshot struct {
	StockID    string          `json:"stockId"`
	Name       string          `json:"name"`
	Decision   signal.Decision `json:"decision"`
	Score      float64         `json:"score"`
	Mask       string          `json:"mask"`
	Signals    []signal.Signal `json:"signals,omitempty"`
	Source     string          `json:"source"`
	RecordedAt time.Time       `json:"recordedAt"`
}

// SignalChange is published when a stock's overall decision moves.
type SignalChange struct {
	StockID  string          `json:"stockId"`
	Name     string          `json:"name"`
	Previous signal.Decision `json:"previous"`
	Current  signal.Decision `json:"current"`
	Score    float64         `json:"score"`
	At       time.Time       `json:"at"`
}

// SignalUpdate is an upstream push of fresh per-indicator signals.
type SignalUpdate struct {
	StockID   string          `json:"stockId"`
	Name      string          `json:"name"`
	Signals   []signal.Signal `json:"signals"`
	Timestamp int64           `json:"ts"`
}

// ErrInvalidUpdate marks a SignalUpdate that can never be applied, however
// often it is retried.
var ErrInvalidUpdate = errors.New("invalid signal update")

// Validate returns an error wrapping ErrInvalidUpdate when u is unusable.
func (u SignalUpdate) Validate() error {
	if u.StockID == "" {
		return fmt.Errorf("%w: stockId empty", ErrInvalidUpdate)
	}
	if u.Timestamp < 0 {
		return fmt.Errorf("%w: timestamp invalid", ErrInvalidUpdate)
	}
	for i, s := range u.Signals {
		if s.Name == "" {
			return fmt.Errorf("%w: signal %d has no name", ErrInvalidUpdate, i)
		}
	}
	return nil
}
