package metrics

import (
	"time"

	"github.com/appetiteclub/barqueue/services/barqueue/internal/state"
)

// DefaultStatsWindow bounds the completed orders used for wait percentiles.
const DefaultStatsWindow = 30 * time.Minute

type FamilyStats struct {
	FamilyID         string  `json:"family_id"`
	Length           int     `json:"length"`
	OldestAgeSeconds float64 `json:"oldest_age_seconds"`
}

// Snapshot is a point-in-time view of one bar's queues and service levels.
type Snapshot struct {
	VenueID       string    `json:"venue_id"`
	BarID         string    `json:"bar_id"`
	At            time.Time `json:"at"`
	WindowSeconds float64   `json:"window_seconds"`

	Families            []FamilyStats `json:"families"`
	TotalQueueLength    int           `json:"total_queue_length"`
	MaxOldestAgeSeconds float64       `json:"max_oldest_age_seconds"`
	LiveOrders          int           `json:"live_orders"`

	P95WaitSeconds   float64 `json:"p95_wait_seconds"`
	CompletedSamples int     `json:"completed_samples"`

	Lambda   Lambda `json:"lambda"`
	Arrivals int    `json:"arrivals"`

	ActiveBartenders int     `json:"active_bartenders"`
	BusyBartenders   int     `json:"busy_bartenders"`
	Utilization      float64 `json:"utilization"`

	Alerts []state.Alert `json:"alerts"`
}

type CalculatorOptions struct {
	LambdaWindow time.Duration
	Now          func() time.Time
}

// Calculator builds snapshots from the registry. It never mutates state.
type Calculator struct {
	registry     *state.Registry
	lambdaWindow time.Duration
	now          func() time.Time
}

func NewCalculator(registry *state.Registry, opts CalculatorOptions) *Calculator {
	c := &Calculator{
		registry:     registry,
		lambdaWindow: opts.LambdaWindow,
		now:          opts.Now,
	}
	if c.lambdaWindow <= 0 {
		c.lambdaWindow = DefaultLambdaWindow
	}
	if c.now == nil {
		c.now = func() time.Time { return time.Now().UTC() }
	}
	return c
}

func (c *Calculator) Now() time.Time { return c.now() }

func (c *Calculator) LambdaWindow() time.Duration { return c.lambdaWindow }

// Snapshot returns state.ErrBarNotFound for bars never seen.
func (c *Calculator) Snapshot(venueID, barID string, window time.Duration) (Snapshot, error) {
	part, err := c.registry.Lookup(venueID, barID)
	if err != nil {
		return Snapshot{}, err
	}
	now := c.now()
	var snap Snapshot
	part.View(func(s *state.BarState) {
		snap = Collect(s, now, window, c.lambdaWindow)
	})
	return snap, nil
}

// Collect computes a snapshot from state the caller already holds.
func Collect(s *state.BarState, now time.Time, window, lambdaWindow time.Duration) Snapshot {
	if window <= 0 {
		window = DefaultStatsWindow
	}

	snap := Snapshot{
		VenueID:       s.VenueID(),
		BarID:         s.BarID(),
		At:            now,
		WindowSeconds: window.Seconds(),
		LiveOrders:    len(s.LiveOrders()),
		Alerts:        s.Alerts(),
		Arrivals:      s.ArrivalCount(),
	}

	for _, family := range s.Families() {
		fs := FamilyStats{
			FamilyID:         family,
			Length:           s.QueueLength(family),
			OldestAgeSeconds: s.OldestAge(family, now).Seconds(),
		}
		snap.Families = append(snap.Families, fs)
		snap.TotalQueueLength += fs.Length
		if fs.OldestAgeSeconds > snap.MaxOldestAgeSeconds {
			snap.MaxOldestAgeSeconds = fs.OldestAgeSeconds
		}
	}

	cutoff := now.Add(-window)
	var waits []float64
	for _, c := range s.Completed() {
		if c.DeliveredAt.Before(cutoff) {
			continue
		}
		waits = append(waits, c.Wait.Seconds())
	}
	snap.CompletedSamples = len(waits)
	snap.P95WaitSeconds = Percentile(waits, 95)

	snap.Lambda = EstimateLambda(s.Arrivals(), now, lambdaWindow)

	snap.ActiveBartenders = len(s.ActiveBartenders(now))
	snap.BusyBartenders = len(s.InServiceBartenders(now))
	if snap.ActiveBartenders > 0 {
		snap.Utilization = float64(snap.BusyBartenders) / float64(snap.ActiveBartenders)
	}
	return snap
}
