package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fileDoc struct {
	Tenants map[string][]Mapping `yaml:"tenants"`
}

// LoadFile reads a YAML catalog:
//
//	tenants:
//	  acme:
//	    - sku: mojito-classic
//	      family: mojito
//	      classification: batchable
//	      active: true
func LoadFile(path string) (Static, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read catalog file: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (Static, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("cannot parse catalog file: %w", err)
	}

	out := make(Static, len(doc.Tenants))
	for tenant, mappings := range doc.Tenants {
		bySKU := make(map[string]Mapping, len(mappings))
		for _, m := range mappings {
			if m.SKU == "" {
				return nil, fmt.Errorf("tenant %s: mapping without sku", tenant)
			}
			bySKU[m.SKU] = m
		}
		out[tenant] = bySKU
	}
	return out, nil
}
