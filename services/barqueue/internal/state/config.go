package state

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrInvalidConfig = errors.New("invalid engine config")

type Features struct {
	Batching  bool `json:"batching" bson:"batching"`
	Stocking  bool `json:"stocking" bson:"stocking"`
	Autopilot bool `json:"autopilot" bson:"autopilot"`
}

// BatchingConfig holds dispatch thresholds. Wait thresholds are in seconds.
type BatchingConfig struct {
	B0     int `json:"b0" bson:"b0"`
	BMin   int `json:"b_min" bson:"b_min"`
	BMax   int `json:"b_max" bson:"b_max"`
	Tau0   int `json:"tau0" bson:"tau0"`
	TauMin int `json:"tau_min" bson:"tau_min"`
	TauMax int `json:"tau_max" bson:"tau_max"`
}

type StockingConfig struct {
	HorizonMinutes int     `json:"horizon_minutes" bson:"horizon_minutes"`
	SafetyFactor   float64 `json:"safety_factor" bson:"safety_factor"`
	MaxTarget      int     `json:"max_target" bson:"max_target"`
}

// GuardrailConfig thresholds. Wait and age values are in seconds, utilization
// values are ratios in [0,1].
type GuardrailConfig struct {
	P95Target               float64 `json:"p95_target" bson:"p95_target"`
	P95Warning              float64 `json:"p95_warning" bson:"p95_warning"`
	P95Critical             float64 `json:"p95_critical" bson:"p95_critical"`
	UtilizationTarget       float64 `json:"utilization_target" bson:"utilization_target"`
	UtilizationWarning      float64 `json:"utilization_warning" bson:"utilization_warning"`
	UtilizationCritical     float64 `json:"utilization_critical" bson:"utilization_critical"`
	MaxQueueLength          int     `json:"max_queue_length" bson:"max_queue_length"`
	MaxOldestAge            int     `json:"max_oldest_age" bson:"max_oldest_age"`
	ViolationsBeforeTighten int     `json:"violations_before_tighten" bson:"violations_before_tighten"`
	Cooldown                int     `json:"cooldown" bson:"cooldown"`
}

// EngineConfig is the versioned per venue+bar configuration.
type EngineConfig struct {
	VenueID    string          `json:"venue_id" bson:"venue_id"`
	BarID      string          `json:"bar_id" bson:"bar_id"`
	Version    int             `json:"version" bson:"version"`
	Features   Features        `json:"features" bson:"features"`
	Batching   BatchingConfig  `json:"batching" bson:"batching"`
	Stocking   StockingConfig  `json:"stocking" bson:"stocking"`
	Guardrails GuardrailConfig `json:"guardrails" bson:"guardrails"`
	UpdatedAt  time.Time       `json:"updated_at" bson:"updated_at"`
}

// DefaultConfig returns the config a bar runs with until one is persisted.
// Version 0 marks it as never persisted.
func DefaultConfig(venueID, barID string) EngineConfig {
	return EngineConfig{
		VenueID: venueID,
		BarID:   barID,
		Features: Features{
			Batching: true,
			Stocking: true,
		},
		Batching: BatchingConfig{
			B0:     4,
			BMin:   2,
			BMax:   8,
			Tau0:   120,
			TauMin: 45,
			TauMax: 240,
		},
		Stocking: StockingConfig{
			HorizonMinutes: 30,
			SafetyFactor:   1.2,
			MaxTarget:      48,
		},
		Guardrails: GuardrailConfig{
			P95Target:               180,
			P95Warning:              240,
			P95Critical:             420,
			UtilizationTarget:       0.75,
			UtilizationWarning:      0.85,
			UtilizationCritical:     0.95,
			MaxQueueLength:          25,
			MaxOldestAge:            600,
			ViolationsBeforeTighten: 3,
			Cooldown:                300,
		},
	}
}

func (c EngineConfig) Validate() error {
	b := c.Batching
	switch {
	case b.BMin < 1:
		return fmt.Errorf("%w: b_min must be at least 1", ErrInvalidConfig)
	case b.BMin > b.B0 || b.B0 > b.BMax:
		return fmt.Errorf("%w: batch sizes must satisfy b_min <= b0 <= b_max", ErrInvalidConfig)
	case b.TauMin < 1:
		return fmt.Errorf("%w: tau_min must be at least 1s", ErrInvalidConfig)
	case b.TauMin > b.Tau0 || b.Tau0 > b.TauMax:
		return fmt.Errorf("%w: wait thresholds must satisfy tau_min <= tau0 <= tau_max", ErrInvalidConfig)
	}

	s := c.Stocking
	if s.HorizonMinutes < 0 || s.SafetyFactor < 0 || s.MaxTarget < 0 {
		return fmt.Errorf("%w: stocking values must not be negative", ErrInvalidConfig)
	}

	g := c.Guardrails
	switch {
	case g.P95Warning > g.P95Critical:
		return fmt.Errorf("%w: p95_warning must not exceed p95_critical", ErrInvalidConfig)
	case g.UtilizationWarning > g.UtilizationCritical:
		return fmt.Errorf("%w: utilization_warning must not exceed utilization_critical", ErrInvalidConfig)
	case g.MaxQueueLength < 0 || g.MaxOldestAge < 0:
		return fmt.Errorf("%w: queue limits must not be negative", ErrInvalidConfig)
	case g.ViolationsBeforeTighten < 1:
		return fmt.Errorf("%w: violations_before_tighten must be at least 1", ErrInvalidConfig)
	case g.Cooldown < 0:
		return fmt.Errorf("%w: cooldown must not be negative", ErrInvalidConfig)
	}
	return nil
}

// TightenStep is the fraction by which wait thresholds shrink per autopilot step.
const TightenStep = 0.15

// Tightened returns a copy with lower wait thresholds and smaller batch bounds,
// never crossing the configured minimums. The second value is false when the
// config is already as tight as it can get.
func (c EngineConfig) Tightened() (EngineConfig, bool) {
	next := c
	b := &next.Batching

	b.Tau0 = maxInt(b.TauMin, int(math.Floor(float64(b.Tau0)*(1-TightenStep))))
	b.TauMax = maxInt(b.Tau0, int(math.Floor(float64(b.TauMax)*(1-TightenStep))))
	b.B0 = maxInt(b.BMin, b.B0-1)
	b.BMax = maxInt(b.B0, b.BMax-1)

	return next, next.Batching != c.Batching
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
