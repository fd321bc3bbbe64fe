package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/appetiteclub/apt"
	"gopkg.in/yaml.v3"
)

// SeedConfig reads an engine config document from YAML and applies it through
// the service API, so the write is versioned and refreshes live state.
func SeedConfig(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	path, ok := config.GetString("config.file")
	if !ok || path == "" {
		return fmt.Errorf("config.file is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	body, err := parseConfigDoc(raw)
	if err != nil {
		return err
	}

	venueID, barID := demoTarget(config)
	client := apt.NewServiceClient(config.GetStringOrDef("services.barqueue.url", "http://localhost:8090"))
	path = fmt.Sprintf("/venues/%s/bars/%s/config", venueID, barID)
	if _, err := client.Request(ctx, "PUT", path, body); err != nil {
		return fmt.Errorf("apply config: %w", err)
	}

	logger.Info("Engine config applied", "venue_id", venueID, "bar_id", barID, "sections", len(body))
	return nil
}

var configSections = map[string]bool{
	"features":   true,
	"batching":   true,
	"stocking":   true,
	"guardrails": true,
}

func parseConfigDoc(raw []byte) (map[string]interface{}, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	for k := range doc {
		if !configSections[k] {
			return nil, fmt.Errorf("unknown config section %q", k)
		}
	}
	if len(doc) == 0 {
		return nil, fmt.Errorf("config document has no sections")
	}
	return doc, nil
}
