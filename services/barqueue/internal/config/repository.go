package config

import (
	"context"
	"sort"
	"sync"

	"github.com/appetiteclub/barqueue/services/barqueue/internal/state"
)

// Repository persists engine configs. Get returns nil when none is stored.
type Repository interface {
	Save(ctx context.Context, cfg state.EngineConfig) error
	Get(ctx context.Context, venueID, barID string) (*state.EngineConfig, error)
	List(ctx context.Context) ([]state.EngineConfig, error)
}

// MemoryRepository keeps configs for the process lifetime only.
type MemoryRepository struct {
	mu      sync.RWMutex
	configs map[state.Key]state.EngineConfig
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{configs: make(map[state.Key]state.EngineConfig)}
}

func (r *MemoryRepository) Save(_ context.Context, cfg state.EngineConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[state.Key{VenueID: cfg.VenueID, BarID: cfg.BarID}] = cfg
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, venueID, barID string) (*state.EngineConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[state.Key{VenueID: venueID, BarID: barID}]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func (r *MemoryRepository) List(_ context.Context) ([]state.EngineConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]state.EngineConfig, 0, len(r.configs))
	for _, cfg := range r.configs {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VenueID != out[j].VenueID {
			return out[i].VenueID < out[j].VenueID
		}
		return out[i].BarID < out[j].BarID
	})
	return out, nil
}
