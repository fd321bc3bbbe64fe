// Package state holds the live operational state of every (venue, bar) pair.
//
// A Registry owns one Partition per pair, created lazily on first reference.
// Each Partition serializes its writers, so events for one bar apply in order
// while different bars proceed independently.
package state

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrBarNotFound = errors.New("bar not found")

// Key identifies a partition.
type Key struct {
	VenueID string
	BarID   string
}

type Partition struct {
	mu    sync.RWMutex
	key   Key
	state *BarState
}

func (p *Partition) Key() Key {
	return p.key
}

// Update runs fn as the single writer of the partition.
func (p *Partition) Update(fn func(*BarState) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn(p.state)
}

// View runs fn with a read-only view of the partition.
func (p *Partition) View(fn func(*BarState)) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fn(p.state)
}

type RegistryOptions struct {
	ArrivalsWindow    time.Duration
	CompletedCapacity int
}

type Registry struct {
	mu         sync.RWMutex
	partitions map[Key]*Partition
	opts       RegistryOptions
}

func NewRegistry(opts RegistryOptions) *Registry {
	if opts.ArrivalsWindow <= 0 {
		opts.ArrivalsWindow = DefaultArrivalsWindow
	}
	if opts.CompletedCapacity <= 0 {
		opts.CompletedCapacity = DefaultCompletedCapacity
	}
	return &Registry{
		partitions: make(map[Key]*Partition),
		opts:       opts,
	}
}

// GetOrCreate returns the partition for the pair, creating it with the
// default config when it does not exist yet.
func (r *Registry) GetOrCreate(venueID, barID string) *Partition {
	key := Key{VenueID: venueID, BarID: barID}

	r.mu.RLock()
	p, ok := r.partitions[key]
	r.mu.RUnlock()
	if ok {
		return p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.partitions[key]; ok {
		return p
	}
	p = &Partition{
		key:   key,
		state: newBarState(venueID, barID, DefaultConfig(venueID, barID), r.opts.ArrivalsWindow, r.opts.CompletedCapacity),
	}
	r.partitions[key] = p
	return p
}

// Lookup returns an existing partition or ErrBarNotFound.
func (r *Registry) Lookup(venueID, barID string) (*Partition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.partitions[Key{VenueID: venueID, BarID: barID}]
	if !ok {
		return nil, ErrBarNotFound
	}
	return p, nil
}

// Keys returns every known partition key, sorted.
func (r *Registry) Keys() []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]Key, 0, len(r.partitions))
	for k := range r.partitions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].VenueID != keys[j].VenueID {
			return keys[i].VenueID < keys[j].VenueID
		}
		return keys[i].BarID < keys[j].BarID
	})
	return keys
}

// Seed installs a persisted config, creating the partition if needed.
func (r *Registry) Seed(cfg EngineConfig) {
	p := r.GetOrCreate(cfg.VenueID, cfg.BarID)
	_ = p.Update(func(s *BarState) error {
		s.SetConfig(cfg)
		return nil
	})
}
