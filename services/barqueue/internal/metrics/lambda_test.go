package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/appetiteclub/barqueue/services/barqueue/internal/state"
)

var t0 = time.Date(2026, 10, 17, 21, 0, 0, 0, time.UTC)

func spread(n int, from time.Time, step time.Duration) []time.Time {
	out := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, from.Add(time.Duration(i)*step))
	}
	return out
}

func TestEstimateLambdaRate(t *testing.T) {
	now := t0.Add(5 * time.Minute)
	arrivals := spread(10, t0.Add(15*time.Second), 30*time.Second)

	got := EstimateLambda(arrivals, now, 5*time.Minute)

	assert.Equal(t, 10, got.Samples)
	assert.InDelta(t, 2.0, got.PerMinute, 1e-9)
	assert.Equal(t, ConfidenceMedium, got.Confidence)
	assert.Equal(t, TrendSteady, got.Trend)
}

func TestEstimateLambdaIgnoresOutsideWindow(t *testing.T) {
	now := t0.Add(10 * time.Minute)
	arrivals := []time.Time{t0, t0.Add(time.Minute), now.Add(-time.Minute), now.Add(time.Minute)}

	got := EstimateLambda(arrivals, now, 5*time.Minute)

	assert.Equal(t, 1, got.Samples)
}

func TestEstimateLambdaConfidenceIsMonotonic(t *testing.T) {
	now := t0.Add(5 * time.Minute)
	rank := map[Confidence]int{ConfidenceLow: 0, ConfidenceMedium: 1, ConfidenceHigh: 2}

	prev := -1
	for n := 0; n <= 40; n++ {
		got := EstimateLambda(spread(n, t0.Add(time.Second), 5*time.Second), now, 5*time.Minute)
		r := rank[got.Confidence]
		assert.GreaterOrEqual(t, r, prev, "confidence dropped at %d arrivals", n)
		prev = r
	}
	assert.Equal(t, 2, prev)
}

func TestEstimateLambdaTrend(t *testing.T) {
	now := t0.Add(10 * time.Minute)
	window := 10 * time.Minute

	tests := []struct {
		name     string
		arrivals []time.Time
		want     Trend
	}{
		{
			name:     "rising",
			arrivals: append(spread(2, t0.Add(time.Minute), time.Minute), spread(8, t0.Add(6*time.Minute), 20*time.Second)...),
			want:     TrendRising,
		},
		{
			name:     "falling",
			arrivals: append(spread(8, t0.Add(time.Minute), 20*time.Second), spread(2, t0.Add(6*time.Minute), time.Minute)...),
			want:     TrendFalling,
		},
		{
			name:     "tooFewSamples",
			arrivals: spread(3, t0.Add(6*time.Minute), time.Minute),
			want:     TrendSteady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateLambda(tt.arrivals, now, window).Trend)
		})
	}
}

func TestEstimateDemandWeightsQuantity(t *testing.T) {
	now := t0.Add(10 * time.Minute)
	samples := []state.DemandSample{
		{At: t0.Add(6 * time.Minute), Qty: 4},
		{At: t0.Add(8 * time.Minute), Qty: 6},
	}

	got := EstimateDemand(samples, now, 5*time.Minute)

	assert.Equal(t, 2, got.Samples)
	assert.InDelta(t, 2.0, got.PerMinute, 1e-9)
}
