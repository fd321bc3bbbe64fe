package metrics

import (
	"time"

	"github.com/appetiteclub/barqueue/services/barqueue/internal/state"
)

// Arrival-rate tunables.
const (
	DefaultLambdaWindow   = 5 * time.Minute
	LowConfidenceSamples  = 5
	HighConfidenceSamples = 20
	TrendRisingRatio      = 1.25
	TrendFallingRatio     = 0.8
)

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

type Trend string

const (
	TrendRising  Trend = "rising"
	TrendSteady  Trend = "steady"
	TrendFalling Trend = "falling"
)

// Lambda is an arrival-rate estimate over a trailing window.
type Lambda struct {
	PerMinute     float64    `json:"per_minute"`
	Samples       int        `json:"samples"`
	Confidence    Confidence `json:"confidence"`
	Trend         Trend      `json:"trend"`
	WindowSeconds float64    `json:"window_seconds"`
}

type point struct {
	at     time.Time
	weight float64
}

// EstimateLambda counts arrivals in (now-window, now] per minute.
func EstimateLambda(arrivals []time.Time, now time.Time, window time.Duration) Lambda {
	points := make([]point, 0, len(arrivals))
	for _, at := range arrivals {
		points = append(points, point{at: at, weight: 1})
	}
	return estimate(points, now, window)
}

// EstimateDemand is EstimateLambda weighted by quantity.
func EstimateDemand(samples []state.DemandSample, now time.Time, window time.Duration) Lambda {
	points := make([]point, 0, len(samples))
	for _, s := range samples {
		points = append(points, point{at: s.At, weight: float64(s.Qty)})
	}
	return estimate(points, now, window)
}

func estimate(points []point, now time.Time, window time.Duration) Lambda {
	if window <= 0 {
		window = DefaultLambdaWindow
	}
	start := now.Add(-window)
	mid := now.Add(-window / 2)

	var total, firstHalf, secondHalf float64
	samples := 0
	for _, p := range points {
		if !p.at.After(start) || p.at.After(now) {
			continue
		}
		samples++
		total += p.weight
		if p.at.After(mid) {
			secondHalf += p.weight
		} else {
			firstHalf += p.weight
		}
	}

	return Lambda{
		PerMinute:     total / window.Minutes(),
		Samples:       samples,
		Confidence:    confidenceFor(samples),
		Trend:         trendFor(samples, firstHalf, secondHalf),
		WindowSeconds: window.Seconds(),
	}
}

func confidenceFor(samples int) Confidence {
	switch {
	case samples >= HighConfidenceSamples:
		return ConfidenceHigh
	case samples >= LowConfidenceSamples:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func trendFor(samples int, first, second float64) Trend {
	if samples < LowConfidenceSamples {
		return TrendSteady
	}
	if first == 0 {
		return TrendRising
	}
	ratio := second / first
	switch {
	case ratio >= TrendRisingRatio:
		return TrendRising
	case ratio <= TrendFallingRatio:
		return TrendFalling
	default:
		return TrendSteady
	}
}
