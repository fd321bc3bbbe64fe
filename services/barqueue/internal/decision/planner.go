package decision

import (
	"math"
	"sort"

	"github.com/appetiteclub/barqueue/services/barqueue/internal/metrics"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/state"
)

type Forecast struct {
	RatePerMinute float64            `json:"rate_per_minute"`
	Confidence    metrics.Confidence `json:"confidence"`
	Trend         metrics.Trend      `json:"trend"`
	Samples       int                `json:"samples"`
}

type StockTarget struct {
	SKU      string   `json:"sku"`
	Current  int      `json:"current"`
	Target   int      `json:"target"`
	Deficit  int      `json:"deficit"`
	Forecast Forecast `json:"forecast"`
}

type ProductionItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Priority int    `json:"priority"`
}

type StockPlan struct {
	VenueID         string           `json:"venue_id"`
	BarID           string           `json:"bar_id"`
	HorizonMinutes  int              `json:"horizon_minutes"`
	Enabled         bool             `json:"enabled"`
	Targets         []StockTarget    `json:"targets"`
	ProductionQueue []ProductionItem `json:"production_queue"`
}

// Planner forecasts pre-stock needs from recent stockable demand.
type Planner struct {
	registry *state.Registry
	calc     *metrics.Calculator
}

func NewPlanner(registry *state.Registry, calc *metrics.Calculator) *Planner {
	return &Planner{registry: registry, calc: calc}
}

// StockTargets uses the configured horizon when horizonMinutes is not positive.
func (p *Planner) StockTargets(venueID, barID string, horizonMinutes int) (StockPlan, error) {
	part, err := p.registry.Lookup(venueID, barID)
	if err != nil {
		return StockPlan{}, err
	}
	now := p.calc.Now()

	plan := StockPlan{VenueID: venueID, BarID: barID, Targets: []StockTarget{}, ProductionQueue: []ProductionItem{}}
	part.View(func(s *state.BarState) {
		cfg := s.Config()
		plan.Enabled = cfg.Features.Stocking
		if horizonMinutes <= 0 {
			horizonMinutes = cfg.Stocking.HorizonMinutes
		}
		plan.HorizonMinutes = horizonMinutes
		if !plan.Enabled {
			return
		}

		levels := s.StockLevels()
		skus := s.DemandSKUs()
		for sku := range levels {
			if len(s.Demand(sku)) == 0 {
				skus = append(skus, sku)
			}
		}
		sort.Strings(skus)

		for _, sku := range skus {
			rate := metrics.EstimateDemand(s.Demand(sku), now, s.Window())
			target := TargetStock(rate.PerMinute, horizonMinutes, cfg.Stocking)
			current := levels[sku]
			deficit := target - current
			if deficit < 0 {
				deficit = 0
			}
			plan.Targets = append(plan.Targets, StockTarget{
				SKU:     sku,
				Current: current,
				Target:  target,
				Deficit: deficit,
				Forecast: Forecast{
					RatePerMinute: rate.PerMinute,
					Confidence:    rate.Confidence,
					Trend:         rate.Trend,
					Samples:       rate.Samples,
				},
			})
			if deficit > 0 {
				plan.ProductionQueue = append(plan.ProductionQueue, ProductionItem{
					SKU:      sku,
					Quantity: deficit,
					Priority: deficitPriority(deficit, target),
				})
			}
		}
	})

	sort.SliceStable(plan.ProductionQueue, func(i, j int) bool {
		a, b := plan.ProductionQueue[i], plan.ProductionQueue[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.Quantity > b.Quantity
	})
	return plan, nil
}

// TargetStock is ceil(rate x horizon x safety), capped at the configured maximum.
func TargetStock(ratePerMinute float64, horizonMinutes int, cfg state.StockingConfig) int {
	safety := cfg.SafetyFactor
	if safety <= 0 {
		safety = 1
	}
	target := int(math.Ceil(ratePerMinute * float64(horizonMinutes) * safety))
	if cfg.MaxTarget > 0 && target > cfg.MaxTarget {
		target = cfg.MaxTarget
	}
	if target < 0 {
		target = 0
	}
	return target
}

// deficitPriority maps the share of the target still missing to 0..100.
func deficitPriority(deficit, target int) int {
	if target <= 0 {
		return 0
	}
	return int(math.Round(float64(deficit) / float64(target) * 100))
}
