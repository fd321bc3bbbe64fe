// Package config owns the single write path for per-bar engine configs.
// Manual updates and autopilot tightening both go through Service.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	aptevents "github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/barqueue/pkg/event"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/state"
)

var ErrPersist = errors.New("cannot persist engine config")

const (
	SourceManual    = "manual"
	SourceFeatures  = "features"
	SourceAutopilot = "autopilot"
)

// Patch replaces the sections that are set.
type Patch struct {
	Features   *state.Features        `json:"features,omitempty"`
	Batching   *state.BatchingConfig  `json:"batching,omitempty"`
	Stocking   *state.StockingConfig  `json:"stocking,omitempty"`
	Guardrails *state.GuardrailConfig `json:"guardrails,omitempty"`
}

func (p Patch) Empty() bool {
	return p.Features == nil && p.Batching == nil && p.Stocking == nil && p.Guardrails == nil
}

// FeaturePatch toggles individual flags; nil leaves a flag unchanged.
type FeaturePatch struct {
	Batching  *bool `json:"batching,omitempty"`
	Stocking  *bool `json:"stocking,omitempty"`
	Autopilot *bool `json:"autopilot,omitempty"`
}

type Options struct {
	Publisher aptevents.Publisher
	Logger    apt.Logger
	Now       func() time.Time
}

type Service struct {
	registry  *state.Registry
	repo      Repository
	publisher aptevents.Publisher
	logger    apt.Logger
	now       func() time.Time

	mu sync.Mutex
}

func NewService(registry *state.Registry, repo Repository, opts Options) *Service {
	s := &Service{
		registry:  registry,
		repo:      repo,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if s.repo == nil {
		s.repo = NewMemoryRepository()
	}
	if s.logger == nil {
		s.logger = apt.NewNoopLogger()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Get returns the live config, defaulted for bars never configured.
// Get returns the live config of a bar. A bar that was never referenced gets
// the defaults and stays unregistered.
func (s *Service) Get(venueID, barID string) state.EngineConfig {
	part, err := s.registry.Lookup(venueID, barID)
	if err != nil {
		return state.DefaultConfig(venueID, barID)
	}
	var cfg state.EngineConfig
	part.View(func(b *state.BarState) {
		cfg = b.Config()
	})
	return cfg
}

func (s *Service) Update(ctx context.Context, venueID, barID string, p Patch) (state.EngineConfig, error) {
	cfg, _, err := s.write(ctx, venueID, barID, SourceManual, func(next *state.EngineConfig) bool {
		if p.Features != nil {
			next.Features = *p.Features
		}
		if p.Batching != nil {
			next.Batching = *p.Batching
		}
		if p.Stocking != nil {
			next.Stocking = *p.Stocking
		}
		if p.Guardrails != nil {
			next.Guardrails = *p.Guardrails
		}
		return !p.Empty()
	})
	return cfg, err
}

func (s *Service) SetFeatures(ctx context.Context, venueID, barID string, fp FeaturePatch) (state.EngineConfig, error) {
	cfg, _, err := s.write(ctx, venueID, barID, SourceFeatures, func(next *state.EngineConfig) bool {
		before := next.Features
		if fp.Batching != nil {
			next.Features.Batching = *fp.Batching
		}
		if fp.Stocking != nil {
			next.Features.Stocking = *fp.Stocking
		}
		if fp.Autopilot != nil {
			next.Features.Autopilot = *fp.Autopilot
		}
		return next.Features != before
	})
	return cfg, err
}

// Tighten applies one tightening step. It reports false when the batching
// thresholds are already at their floor.
func (s *Service) Tighten(ctx context.Context, venueID, barID string, _ time.Time) (state.EngineConfig, bool, error) {
	return s.write(ctx, venueID, barID, SourceAutopilot, func(next *state.EngineConfig) bool {
		tightened, changed := next.Tightened()
		*next = tightened
		return changed
	})
}

// Warm loads every persisted config into the registry.
func (s *Service) Warm(ctx context.Context) (int, error) {
	configs, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list engine configs: %w", err)
	}
	for _, cfg := range configs {
		s.registry.Seed(cfg)
	}
	s.logger.Info("engine configs warmed", "count", len(configs))
	return len(configs), nil
}

// write validates, versions and persists a new config before making it live.
// When persisting fails the live config is left untouched.
func (s *Service) write(ctx context.Context, venueID, barID, source string, mutate func(*state.EngineConfig) bool) (state.EngineConfig, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	part := s.registry.GetOrCreate(venueID, barID)
	var current state.EngineConfig
	part.View(func(b *state.BarState) {
		current = b.Config()
	})

	next := current
	if !mutate(&next) {
		return current, false, nil
	}
	next.VenueID, next.BarID = venueID, barID

	if err := next.Validate(); err != nil {
		return current, false, err
	}

	next.Version = current.Version + 1
	next.UpdatedAt = s.now()

	if err := s.repo.Save(ctx, next); err != nil {
		s.logger.Error("cannot persist engine config", "venue_id", venueID, "bar_id", barID, "error", err)
		return current, false, fmt.Errorf("%w: %v", ErrPersist, err)
	}

	_ = part.Update(func(b *state.BarState) error {
		b.SetConfig(next)
		return nil
	})

	s.publishChanged(ctx, next, source)
	s.logger.Info("engine config updated", "venue_id", venueID, "bar_id", barID, "version", next.Version, "source", source)
	return next, true, nil
}

func (s *Service) publishChanged(ctx context.Context, cfg state.EngineConfig, source string) {
	if s.publisher == nil {
		return
	}
	rec := event.ConfigChangedRecord{
		EventType:  event.RecordConfigChanged,
		OccurredAt: cfg.UpdatedAt,
		VenueID:    cfg.VenueID,
		BarID:      cfg.BarID,
		Version:    cfg.Version,
		Source:     source,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := s.publisher.Publish(ctx, event.ConfigTopic, data); err != nil {
		s.logger.Error("cannot publish config change", "venue_id", cfg.VenueID, "bar_id", cfg.BarID, "error", err)
	}
}
