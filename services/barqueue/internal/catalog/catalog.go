package catalog

import (
	"context"
	"strings"
)

// Mapping classifies a sku for one tenant.
type Mapping struct {
	SKU            string `json:"sku" yaml:"sku"`
	FamilyID       string `json:"family_id" yaml:"family"`
	Classification string `json:"classification" yaml:"classification"`
	Active         bool   `json:"active" yaml:"active"`
}

// Catalog resolves sku mappings. Missing or inactive skus are simply absent
// from the result.
type Catalog interface {
	Lookup(ctx context.Context, tenant string, skus []string) (map[string]Mapping, error)
}

// TenantResolver derives the catalog tenant from a venue id.
type TenantResolver func(venueID string) string

// SeparatorTenant returns a resolver that takes the venue id prefix before sep
// as tenant, or the whole id when sep is absent.
func SeparatorTenant(sep string) TenantResolver {
	return func(venueID string) string {
		if sep == "" {
			return venueID
		}
		if i := strings.Index(venueID, sep); i > 0 {
			return venueID[:i]
		}
		return venueID
	}
}

// Static is an in-memory catalog keyed by tenant then sku.
type Static map[string]map[string]Mapping

func (s Static) Lookup(_ context.Context, tenant string, skus []string) (map[string]Mapping, error) {
	out := make(map[string]Mapping, len(skus))
	byTenant := s[tenant]
	for _, sku := range skus {
		if m, ok := byTenant[sku]; ok && m.Active {
			out[sku] = m
		}
	}
	return out, nil
}
