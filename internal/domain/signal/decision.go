package signal

import (
	"encoding/json"
	"strings"
)

// Decision is the five-valued bullishness verdict.
type Decision int

const (
	StrongSell Decision = iota - 2
	Sell
	Neutral
	Buy
	StrongBuy
)

var decisionLabels = map[Decision]string{
	StrongBuy:  "Strong Buy",
	Buy:        "Buy",
	Neutral:    "Neutral",
	Sell:       "Sell",
	StrongSell: "Strong Sell",
}

// decisionScores keys on the wire label, as the provider sends it.
var decisionScores = map[string]int{
	"Strong Buy":  2,
	"Buy":         1,
	"Neutral":     0,
	"Sell":        -1,
	"Strong Sell": -2,
}

// String returns the wire label ("Strong Buy", "Buy", ...).
func (d Decision) String() string {
	if l, ok := decisionLabels[d]; ok {
		return l
	}
	return decisionLabels[Neutral]
}

// Score returns the integer score in [-2, 2].
func (d Decision) Score() int {
	return decisionScores[d.String()]
}

// IsValid reports whether d is one of the five decisions.
func (d Decision) IsValid() bool {
	return d >= StrongSell && d <= StrongBuy
}

// MarshalJSON encodes the decision as its label.
func (d Decision) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a label; unknown labels decode to Neutral.
func (d *Decision) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*d, _ = ParseDecision(s)
	return nil
}

// ParseDecision maps a label to a Decision. It returns Neutral, false for
// unknown labels.
func ParseDecision(label string) (Decision, bool) {
	switch strings.TrimSpace(label) {
	case "Strong Buy":
		return StrongBuy, true
	case "Buy":
		return Buy, true
	case "Neutral":
		return Neutral, true
	case "Sell":
		return Sell, true
	case "Strong Sell":
		return StrongSell, true
	}
	return Neutral, false
}

// LabelScore returns the score of a raw provider label. An empty label reads
// as Neutral and anything unrecognised scores 0.
func LabelScore(label string) int {
	if label == "" {
		label = "Neutral"
	}
	return decisionScores[label]
}

// Classify maps a weighted total onto a Decision. Bounds are inclusive and
// checked top to bottom.
func Classify(total float64) Decision {
	switch {
	case total >= 1.5:
		return StrongBuy
	case total >= 0.5:
		return Buy
	case total <= -1.5:
		return StrongSell
	case total <= -0.5:
		return Sell
	default:
		return Neutral
	}
}
