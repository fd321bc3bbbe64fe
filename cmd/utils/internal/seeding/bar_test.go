package seeding

import (
	"testing"
	"time"

	"github.com/appetiteclub/barqueue/pkg/event"
)

func TestDemoEvents(t *testing.T) {
	now := time.Date(2026, 10, 17, 22, 0, 0, 0, time.UTC)
	evs := DemoEvents(DemoVenueID, DemoBarID, now)

	if len(evs) == 0 {
		t.Fatal("DemoEvents() returned no events")
	}

	counts := map[string]int{}
	for i, e := range evs {
		counts[e.EventType]++
		if e.VenueID != DemoVenueID || e.BarID != DemoBarID {
			t.Errorf("event %d targets %s/%s", i, e.VenueID, e.BarID)
		}
		if e.EventID == "" {
			t.Errorf("event %d has no id", i)
		}
		if e.Timestamp.After(now) {
			t.Errorf("event %d is in the future: %s", i, e.Timestamp)
		}
		if i > 0 && e.Timestamp.Before(evs[i-1].Timestamp) {
			t.Errorf("event %d out of order", i)
		}
	}

	if counts[event.EventOrderPaid] != len(demoMenu) {
		t.Errorf("paid = %d, want %d", counts[event.EventOrderPaid], len(demoMenu))
	}
	if counts[event.EventOrderDelivered] != 3 {
		t.Errorf("delivered = %d, want 3", counts[event.EventOrderDelivered])
	}
	if counts[event.EventStaffState] != 2 {
		t.Errorf("staff events = %d, want 2", counts[event.EventStaffState])
	}
}
