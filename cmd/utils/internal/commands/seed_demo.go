package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	aptevents "github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/barqueue/cmd/utils/internal/seeding"
	"github.com/appetiteclub/barqueue/pkg"
	"github.com/appetiteclub/barqueue/pkg/event"
)

// SeedDemo publishes a demo shift to the bar events topic.
func SeedDemo(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	natsURL := config.GetStringOrDef("nats.url", "nats://localhost:4222")
	topic := config.GetStringOrDef("nats.topic.events", event.BarEventsTopic)

	pub, err := pkg.NewNATSPublisher(natsURL)
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	defer pub.Close()

	venueID, barID := demoTarget(config)
	evs := seeding.DemoEvents(venueID, barID, time.Now().UTC())

	n, err := publishAll(ctx, pub, topic, evs)
	if err != nil {
		return err
	}
	logger.Info("Demo events published", "venue_id", venueID, "bar_id", barID, "topic", topic, "count", n)
	return nil
}

func publishAll(ctx context.Context, pub aptevents.Publisher, topic string, evs []event.Envelope) (int, error) {
	for i, e := range evs {
		msg, err := json.Marshal(e)
		if err != nil {
			return i, fmt.Errorf("marshal %s: %w", e.EventType, err)
		}
		if err := pub.Publish(ctx, topic, msg); err != nil {
			return i, fmt.Errorf("publish %s: %w", e.EventType, err)
		}
	}
	return len(evs), nil
}

func demoTarget(config *apt.Config) (string, string) {
	return config.GetStringOrDef("demo.venue", seeding.DemoVenueID),
		config.GetStringOrDef("demo.bar", seeding.DemoBarID)
}
