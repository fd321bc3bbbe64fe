package catalog

import (
	"context"
	"testing"
)

const sampleYAML = `
tenants:
  acme:
    - sku: mojito-classic
      family: mojito
      classification: batchable
      active: true
    - sku: lager-can
      classification: stockable
      active: true
    - sku: old-punch
      family: punch
      classification: batchable
      active: false
`

func TestParseAndLookup(t *testing.T) {
	cat, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	got, err := cat.Lookup(context.Background(), "acme", []string{"mojito-classic", "lager-can", "old-punch", "unknown"})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("Lookup() returned %d mappings, want 2", len(got))
	}
	if got["mojito-classic"].FamilyID != "mojito" {
		t.Errorf("FamilyID = %q, want %q", got["mojito-classic"].FamilyID, "mojito")
	}
	if _, ok := got["old-punch"]; ok {
		t.Error("inactive mapping must not be returned")
	}
}

func TestParseRejectsMappingWithoutSKU(t *testing.T) {
	_, err := Parse([]byte("tenants:\n  acme:\n    - family: mojito\n"))
	if err == nil {
		t.Error("Parse() expected error for mapping without sku")
	}
}

func TestLookupUnknownTenant(t *testing.T) {
	cat := Static{}
	got, err := cat.Lookup(context.Background(), "nobody", []string{"a"})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Lookup() = %v, want empty", got)
	}
}

func TestSeparatorTenant(t *testing.T) {
	tests := []struct {
		name    string
		sep     string
		venueID string
		want    string
	}{
		{name: "withSeparator", sep: ":", venueID: "acme:downtown", want: "acme"},
		{name: "withoutSeparator", sep: ":", venueID: "downtown", want: "downtown"},
		{name: "leadingSeparator", sep: ":", venueID: ":downtown", want: ":downtown"},
		{name: "emptySeparator", sep: "", venueID: "acme:downtown", want: "acme:downtown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SeparatorTenant(tt.sep)(tt.venueID); got != tt.want {
				t.Errorf("SeparatorTenant(%q)(%q) = %q, want %q", tt.sep, tt.venueID, got, tt.want)
			}
		})
	}
}
