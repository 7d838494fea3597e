package signal

import (
	"errors"
	"sort"
)

// ErrUnknownIndicator is returned when a name is outside the indicator set.
var ErrUnknownIndicator = errors.New("unknown indicator")

// Signal is one indicator's opinion as reported by the data provider.
// Decision is kept as the raw label so unrecognised values can score 0.
type Signal struct {
	Name     IndicatorName `json:"name"`
	Decision string        `json:"decision"`
}

// Contribution is one selected indicator's share of the total score.
type Contribution struct {
	Indicator IndicatorName `json:"indicator"`
	Decision  string        `json:"decision"`
	Score     int           `json:"score"`
	Weight    float64       `json:"weight"`
	Value     float64       `json:"value"`
}

// Breakdown explains how an overall decision was reached.
type Breakdown struct {
	Decision      Decision       `json:"decision"`
	Total         float64        `json:"total"`
	Contributions []Contribution `json:"contributions"`
}

// Aggregate reduces signals filtered by mask to one overall decision.
// It never fails: missing or malformed data degrades to Neutral.
func Aggregate(signals []Signal, mask SelectionMask) Decision {
	return Evaluate(signals, mask).Decision
}

// Evaluate is Aggregate with the per-indicator contributions attached.
func Evaluate(signals []Signal, mask SelectionMask) Breakdown {
	return EvaluateWeighted(signals, mask, indicatorWeights)
}

// EvaluateWeighted scores signals against an explicit weight table. Names
// missing from weights contribute 0.
//
// Duplicate indicator names keep their first occurrence. Contributions are
// summed in canonical indicator order, followed by names outside the set in
// lexical order, so the total does not depend on the order of signals.
func EvaluateWeighted(signals []Signal, mask SelectionMask, weights map[IndicatorName]float64) Breakdown {
	if len(signals) == 0 {
		return Breakdown{Decision: Neutral}
	}

	first := make(map[IndicatorName]string, len(signals))
	var unknown []IndicatorName
	for _, s := range signals {
		if _, seen := first[s.Name]; seen {
			continue
		}
		first[s.Name] = s.Decision
		if !s.Name.IsKnown() {
			unknown = append(unknown, s.Name)
		}
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })

	order := make([]IndicatorName, 0, len(allIndicators)+len(unknown))
	order = append(order, allIndicators...)
	order = append(order, unknown...)

	var b Breakdown
	for _, name := range order {
		label, ok := first[name]
		if !ok || !mask.Selected(name) {
			continue
		}
		c := Contribution{
			Indicator: name,
			Decision:  label,
			Score:     LabelScore(label),
			Weight:    weights[name],
		}
		c.Value = float64(c.Score) * c.Weight
		b.Total += c.Value
		b.Contributions = append(b.Contributions, c)
	}
	b.Decision = Classify(b.Total)
	return b
}
