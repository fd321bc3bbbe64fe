package events

import (
	"context"
	"testing"

	"github.com/appetiteclub/barqueue/pkg/event"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/state"
)

func TestSubscriberAppliesEvents(t *testing.T) {
	p, reg := newTestProcessor(Options{})
	bus := &MockSubscriber{}
	sub := NewSubscriber(bus, p, "", nil)

	if err := sub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	handler, ok := bus.Handlers[event.BarEventsTopic]
	if !ok {
		t.Fatalf("no handler registered for %s", event.BarEventsTopic)
	}

	msg := []byte(`{"type":"order_created","venue_id":"acme:downtown","bar_id":"main","timestamp":"2026-10-17T21:00:00Z","order_id":"o1"}`)
	if err := handler(context.Background(), msg); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if err := handler(context.Background(), []byte(`garbage`)); err != nil {
		t.Errorf("bad message must not be redelivered, got %v", err)
	}

	view(t, reg, func(s *state.BarState) {
		if !s.HasOrder("o1") {
			t.Error("order not applied")
		}
	})
}
