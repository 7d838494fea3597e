package signal

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSignals() []Signal {
	return []Signal{
		{Name: EMA, Decision: "Strong Buy"},
		{Name: SMA, Decision: "Buy"},
		{Name: MACD, Decision: "Sell"},
		{Name: RSI, Decision: "Neutral"},
		{Name: Supertrend, Decision: "Strong Sell"},
		{Name: Ichimoku, Decision: "Buy"},
		{Name: ATR, Decision: ""},
	}
}

func TestAggregate_EmptySignalsIsNeutral(t *testing.T) {
	assert.Equal(t, Neutral, Aggregate(nil, DefaultMask()))
	assert.Equal(t, Neutral, Aggregate([]Signal{}, EmptyMask()))
	assert.Equal(t, Neutral, Aggregate([]Signal{}, nil))
}

func TestAggregate_AllDeselectedIsNeutral(t *testing.T) {
	assert.Equal(t, Neutral, Aggregate(sampleSignals(), EmptyMask()))
	assert.Equal(t, Neutral, Aggregate(sampleSignals(), SelectionMask{}))
}

func TestAggregate_WeightedCombination(t *testing.T) {
	signals := []Signal{
		{Name: EMA, Decision: "Strong Buy"},
		{Name: RSI, Decision: "Sell"},
	}
	b := Evaluate(signals, DefaultMask())
	assert.InDelta(t, 2.0, b.Total, 1e-12)
	assert.Equal(t, StrongBuy, b.Decision)
	require.Len(t, b.Contributions, 2)
	assert.Equal(t, EMA, b.Contributions[0].Indicator)
	assert.InDelta(t, 3.0, b.Contributions[0].Value, 1e-12)
	assert.InDelta(t, -1.0, b.Contributions[1].Value, 1e-12)
}

func TestAggregate_BoundaryWeights(t *testing.T) {
	weights := map[IndicatorName]float64{EMA: 0.5, RSI: 1.0}
	mask := DefaultMask()

	b := EvaluateWeighted([]Signal{{Name: EMA, Decision: "Buy"}}, mask, weights)
	assert.Equal(t, 0.5, b.Total)
	assert.Equal(t, Buy, b.Decision)

	b = EvaluateWeighted([]Signal{{Name: EMA, Decision: "Sell"}}, mask, weights)
	assert.Equal(t, -0.5, b.Total)
	assert.Equal(t, Sell, b.Decision)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		total float64
		want  Decision
	}{
		{3, StrongBuy},
		{1.5, StrongBuy},
		{1.49999, Buy},
		{0.5, Buy},
		{0.49999, Neutral},
		{0, Neutral},
		{-0.49999, Neutral},
		{-0.5, Sell},
		{-1.49999, Sell},
		{-1.5, StrongSell},
		{-7, StrongSell},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.total), "total %v", tt.total)
	}
}

func TestAggregate_UnknownIndicatorAndDecision(t *testing.T) {
	mask := DefaultMask()
	mask["Stochastic"] = true

	b := Evaluate([]Signal{
		{Name: "Stochastic", Decision: "Strong Buy"},
		{Name: RSI, Decision: "Very Bullish"},
	}, mask)
	assert.Equal(t, 0.0, b.Total)
	assert.Equal(t, Neutral, b.Decision)
	require.Len(t, b.Contributions, 2)
	assert.Equal(t, RSI, b.Contributions[0].Indicator)
	assert.Equal(t, IndicatorName("Stochastic"), b.Contributions[1].Indicator)
}

func TestAggregate_EmptyDecisionReadsAsNeutral(t *testing.T) {
	b := Evaluate([]Signal{{Name: EMA}}, DefaultMask())
	require.Len(t, b.Contributions, 1)
	assert.Equal(t, 0, b.Contributions[0].Score)
}

func TestAggregate_FirstOccurrenceWins(t *testing.T) {
	b := Evaluate([]Signal{
		{Name: EMA, Decision: "Buy"},
		{Name: EMA, Decision: "Strong Sell"},
	}, DefaultMask())
	assert.Equal(t, 1.5, b.Total)
	assert.Equal(t, StrongBuy, b.Decision)
	assert.Len(t, b.Contributions, 1)
}

func TestAggregate_SelectedButMissingContributesNothing(t *testing.T) {
	b := Evaluate([]Signal{{Name: RSI, Decision: "Buy"}}, DefaultMask())
	assert.Equal(t, 1.0, b.Total)
	assert.Len(t, b.Contributions, 1)
}

func TestAggregate_Idempotent(t *testing.T) {
	signals := sampleSignals()
	mask := DefaultMask()
	first := Evaluate(signals, mask)
	second := Evaluate(signals, mask)
	assert.Equal(t, first, second)
}

func TestAggregate_OrderIndependent(t *testing.T) {
	signals := sampleSignals()
	mask := DefaultMask().Toggle(SMA)
	want := Evaluate(signals, mask)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		shuffled := append([]Signal(nil), signals...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, Evaluate(shuffled, mask))
	}
}

func TestAggregate_ToggleRemovesExactContribution(t *testing.T) {
	signals := sampleSignals()
	mask := DefaultMask()
	before := Evaluate(signals, mask)

	for _, n := range []IndicatorName{EMA, SMA, MACD, Supertrend, Ichimoku} {
		var prior float64
		for _, c := range before.Contributions {
			if c.Indicator == n {
				prior = c.Value
			}
		}
		after := Evaluate(signals, mask.Toggle(n))
		assert.InDelta(t, before.Total-prior, after.Total, 1e-12, "toggle %s", n)
	}
	assert.True(t, mask[EMA], "toggle must not mutate the receiver")
}

func TestAggregate_NeverMutatesMask(t *testing.T) {
	mask := DefaultMask()
	snapshot := mask.Clone()
	_ = Aggregate(sampleSignals(), mask)
	assert.Equal(t, snapshot, mask)
}

func TestAggregate_AlwaysValidDecision(t *testing.T) {
	labels := []string{"", "Strong Buy", "Buy", "Neutral", "Sell", "Strong Sell", "??"}
	names := append(AllIndicators(), "Unknown")
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		var signals []Signal
		for j := rng.Intn(15); j > 0; j-- {
			signals = append(signals, Signal{
				Name:     names[rng.Intn(len(names))],
				Decision: labels[rng.Intn(len(labels))],
			})
		}
		mask := SelectionMask{}
		for _, n := range names {
			mask[n] = rng.Intn(2) == 1
		}
		assert.True(t, Aggregate(signals, mask).IsValid())
	}
}
