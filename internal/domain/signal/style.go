package signal

import "strings"

// CSS classes the dashboard uses to colour a verdict.
const (
	ClassStrongBuy  = "signal-strong-buy"
	ClassBuy        = "signal-buy"
	ClassStrongSell = "signal-strong-sell"
	ClassSell       = "signal-sell"
	ClassNeutral    = "signal-neutral"
)

// StyleClass maps a decision label to its styling class. It matches on the
// label text, not on the Decision value, so free-form labels such as
// "Strong Buy (EMA)" still resolve. An empty label has no class.
func StyleClass(label string) string {
	if label == "" {
		return ""
	}
	switch {
	case strings.Contains(label, "Strong Buy"):
		return ClassStrongBuy
	case strings.Contains(label, "Buy"):
		return ClassBuy
	case strings.Contains(label, "Strong Sell"):
		return ClassStrongSell
	case strings.Contains(label, "Sell"):
		return ClassSell
	default:
		return ClassNeutral
	}
}
