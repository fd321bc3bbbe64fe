// Package decision recommends the next preparation task for a bartender and
// plans pre-stock production.
package decision

import (
	"time"

	"github.com/appetiteclub/barqueue/services/barqueue/internal/metrics"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/state"
)

// Scoring tunables.
const (
	FillWeight     = 1.0
	AgeWeight      = 1.0
	PriorityWeight = 0.25
)

const (
	StatusTask      = "task"
	StatusNoTask    = "no_task"
	StatusWarmingUp = "warming_up"
)

// MinArrivals is the arrival count below which callers should answer
// warming up instead of asking for a decision.
const MinArrivals = 5

const (
	ReasonBatchFull    = "batch_full"
	ReasonWaitExceeded = "wait_exceeded"
)

type Request struct {
	VenueID         string   `json:"venue_id"`
	BarID           string   `json:"bar_id"`
	BartenderID     string   `json:"bartender_id,omitempty"`
	Station         string   `json:"station,omitempty"`
	ExcludeFamilies []string `json:"exclude_families,omitempty"`
}

type BatchItem struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

// Task is one batch of a family to prepare now.
type Task struct {
	FamilyID         string      `json:"family_id"`
	OrderIDs         []string    `json:"order_ids"`
	Items            []BatchItem `json:"items"`
	BatchSize        int         `json:"batch_size"`
	QueueLength      int         `json:"queue_length"`
	Priority         int         `json:"priority"`
	Score            float64     `json:"score"`
	OldestAgeSeconds float64     `json:"oldest_age_seconds"`
	Reason           string      `json:"reason"`
	Station          string      `json:"station,omitempty"`
	Thresholds       Thresholds  `json:"thresholds"`
}

type Result struct {
	Status string `json:"status"`
	Task   *Task  `json:"task,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type Options struct {
	StatsWindow time.Duration
}

// Engine is a pure reader over the registry.
type Engine struct {
	registry    *state.Registry
	calc        *metrics.Calculator
	statsWindow time.Duration
}

func NewEngine(registry *state.Registry, calc *metrics.Calculator, opts Options) *Engine {
	e := &Engine{registry: registry, calc: calc, statsWindow: opts.StatsWindow}
	if e.statsWindow <= 0 {
		e.statsWindow = metrics.DefaultStatsWindow
	}
	return e
}

type candidate struct {
	family   string
	length   int
	oldest   time.Duration
	score    float64
	priority int
	orderIDs []string
	items    []BatchItem
	reason   string
}

// NextTask returns state.ErrBarNotFound for unseen bars and an explicit
// no_task result when nothing is dispatchable.
func (e *Engine) NextTask(req Request) (Result, error) {
	part, err := e.registry.Lookup(req.VenueID, req.BarID)
	if err != nil {
		return Result{}, err
	}

	now := e.calc.Now()
	excluded := make(map[string]struct{}, len(req.ExcludeFamilies))
	for _, f := range req.ExcludeFamilies {
		excluded[f] = struct{}{}
	}

	var (
		best *candidate
		th   Thresholds
	)
	part.View(func(s *state.BarState) {
		snap := metrics.Collect(s, now, e.statsWindow, e.calc.LambdaWindow())
		cfg := s.Config()
		eval := metrics.Evaluate(snap, cfg.Guardrails)
		th = Effective(cfg, eval.Severity, snap.Utilization)

		var bartender *state.Bartender
		if req.BartenderID != "" {
			if b, ok := s.Bartender(req.BartenderID); ok {
				bartender = &b
			}
		}

		for _, family := range s.Families() {
			if _, skip := excluded[family]; skip {
				continue
			}
			if bartender != nil && !bartender.HasSkill(family) {
				continue
			}
			c, ok := evaluateFamily(s, family, th, now)
			if !ok {
				continue
			}
			if best == nil || better(c, best) {
				best = c
			}
		}
	})

	if best == nil {
		return Result{Status: StatusNoTask, Reason: "no family is ready for dispatch"}, nil
	}

	return Result{
		Status: StatusTask,
		Task: &Task{
			FamilyID:         best.family,
			OrderIDs:         best.orderIDs,
			Items:            best.items,
			BatchSize:        len(best.orderIDs),
			QueueLength:      best.length,
			Priority:         best.priority,
			Score:            best.score,
			OldestAgeSeconds: best.oldest.Seconds(),
			Reason:           best.reason,
			Station:          req.Station,
			Thresholds:       th,
		},
	}, nil
}

func evaluateFamily(s *state.BarState, family string, th Thresholds, now time.Time) (*candidate, bool) {
	queue := s.Queue(family)
	if len(queue) == 0 {
		return nil, false
	}
	oldest := s.OldestAge(family, now)

	var reason string
	switch {
	case len(queue) >= th.TargetBatch:
		reason = ReasonBatchFull
	case th.Tau > 0 && oldest >= th.Tau:
		reason = ReasonWaitExceeded
	default:
		return nil, false
	}

	c := &candidate{
		family: family,
		length: len(queue),
		oldest: oldest,
		reason: reason,
	}

	take := th.TargetBatch
	if take > len(queue) {
		take = len(queue)
	}
	qty := make(map[string]int)
	var skus []string
	for _, id := range queue[:take] {
		o, ok := s.Order(id)
		if !ok {
			continue
		}
		c.orderIDs = append(c.orderIDs, id)
		if o.Priority > c.priority {
			c.priority = o.Priority
		}
		for _, it := range o.Items {
			if it.FamilyID != family || !it.Batchable() {
				continue
			}
			if _, seen := qty[it.SKU]; !seen {
				skus = append(skus, it.SKU)
			}
			qty[it.SKU] += it.Qty
		}
	}
	for _, sku := range skus {
		c.items = append(c.items, BatchItem{SKU: sku, Qty: qty[sku]})
	}

	c.score = Score(len(queue), oldest, c.priority, th)
	return c, true
}

// Score never decreases as the queue grows or its head ages.
func Score(length int, oldest time.Duration, priority int, th Thresholds) float64 {
	target := th.TargetBatch
	if target < 1 {
		target = 1
	}
	score := FillWeight * float64(length) / float64(target)
	if th.Tau > 0 {
		score += AgeWeight * oldest.Seconds() / th.Tau.Seconds()
	}
	score += PriorityWeight * float64(priority-state.DefaultPriority) / float64(state.DefaultPriority)
	return score
}

func better(a, b *candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.oldest != b.oldest {
		return a.oldest > b.oldest
	}
	return a.family < b.family
}
