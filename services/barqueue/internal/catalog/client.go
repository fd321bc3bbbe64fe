package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
)

// ServiceCatalog fetches tenant mappings from the catalog service and keeps
// them cached for ttl.
type ServiceCatalog struct {
	client *apt.ServiceClient
	ttl    time.Duration
	now    func() time.Time
	logger apt.Logger

	mu      sync.RWMutex
	tenants map[string]tenantEntry
}

type tenantEntry struct {
	mappings  map[string]Mapping
	fetchedAt time.Time
}

func NewServiceCatalog(client *apt.ServiceClient, ttl time.Duration, logger apt.Logger) *ServiceCatalog {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ServiceCatalog{
		client:  client,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
		tenants: make(map[string]tenantEntry),
	}
}

func (c *ServiceCatalog) Lookup(ctx context.Context, tenant string, skus []string) (map[string]Mapping, error) {
	mappings, err := c.ensure(ctx, tenant)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Mapping, len(skus))
	for _, sku := range skus {
		if m, ok := mappings[sku]; ok && m.Active {
			out[sku] = m
		}
	}
	return out, nil
}

func (c *ServiceCatalog) ensure(ctx context.Context, tenant string) (map[string]Mapping, error) {
	c.mu.RLock()
	entry, ok := c.tenants[tenant]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.mappings, nil
	}

	fresh, err := c.fetch(ctx, tenant)
	if err != nil {
		if ok {
			c.logger.Info("catalog refresh failed, serving stale mappings", "tenant", tenant, "error", err)
			return entry.mappings, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.tenants[tenant] = tenantEntry{mappings: fresh, fetchedAt: c.now()}
	c.mu.Unlock()
	return fresh, nil
}

func (c *ServiceCatalog) fetch(ctx context.Context, tenant string) (map[string]Mapping, error) {
	if c.client == nil {
		return nil, fmt.Errorf("catalog client uninitialized")
	}
	resp, err := c.client.List(ctx, "tenants/"+tenant+"/sku-mappings")
	if err != nil {
		return nil, fmt.Errorf("failed to list sku mappings for %s: %w", tenant, err)
	}

	var records []Mapping
	if err := rehydrate(resp.Data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode sku mappings for %s: %w", tenant, err)
	}

	out := make(map[string]Mapping, len(records))
	for _, m := range records {
		if m.SKU == "" {
			c.logger.Debug("skipping sku mapping without sku", "tenant", tenant)
			continue
		}
		out[m.SKU] = m
	}
	return out, nil
}

func rehydrate(data interface{}, out interface{}) error {
	bytes, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}
