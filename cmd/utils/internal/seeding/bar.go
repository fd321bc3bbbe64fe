// Package seeding builds demo bar traffic for local environments.
package seeding

import (
	"fmt"
	"sort"
	"time"

	"github.com/appetiteclub/barqueue/pkg/event"
	"github.com/google/uuid"
)

const (
	DemoVenueID = "demo:downtown"
	DemoBarID   = "main"
)

type demoOrder struct {
	skus      []string
	delivered bool
}

var demoMenu = [][]string{
	{"mojito"},
	{"negroni"},
	{"mojito", "shot-tequila"},
	{"old-fashioned"},
	{"negroni", "boulevardier"},
	{"beer-draft"},
	{"mojito"},
	{"spritz"},
	{"shot-tequila", "shot-tequila"},
	{"spritz", "mojito"},
	{"negroni"},
	{"beer-draft", "beer-draft"},
}

// DemoEvents returns a short, timestamp ordered shift ending at now: two
// bartenders clocking in, a stock count, and a dozen paid orders of which the
// first few are already delivered.
func DemoEvents(venueID, barID string, now time.Time) []event.Envelope {
	start := now.Add(-12 * time.Minute)
	var out []event.Envelope

	base := func(kind string, at time.Time) event.Envelope {
		return event.Envelope{
			EventID:   uuid.NewString(),
			EventType: kind,
			VenueID:   venueID,
			BarID:     barID,
			Timestamp: at.UTC(),
		}
	}

	for i, id := range []string{"bt-ana", "bt-leo"} {
		e := base(event.EventStaffState, start.Add(time.Duration(i)*time.Second))
		e.StaffID = id
		e.Role = event.RoleBartender
		e.Action = event.StaffClockIn
		e.Station = "well"
		out = append(out, e)
	}

	stock := base(event.EventInventorySnapshot, start.Add(5*time.Second))
	stock.SnapshotType = event.SnapshotFull
	stock.Stock = []event.StockLevel{
		{SKU: "shot-tequila", Qty: 6},
		{SKU: "beer-draft", Qty: 20},
	}
	out = append(out, stock)

	orders := make([]demoOrder, len(demoMenu))
	for i, skus := range demoMenu {
		orders[i] = demoOrder{skus: skus, delivered: i < 3}
	}

	for i, o := range orders {
		orderID := fmt.Sprintf("demo-%03d", i+1)
		at := start.Add(time.Duration(i+1) * 50 * time.Second)

		items := make([]event.OrderItem, 0, len(o.skus))
		for _, sku := range o.skus {
			items = append(items, event.OrderItem{SKU: sku, Qty: 1})
		}

		created := base(event.EventOrderCreated, at)
		created.OrderID = orderID
		created.Channel = "app"
		created.Items = items
		out = append(out, created)

		paid := base(event.EventOrderPaid, at.Add(10*time.Second))
		paid.OrderID = orderID
		out = append(out, paid)

		if !o.delivered {
			continue
		}
		started := base(event.EventPrepStarted, at.Add(40*time.Second))
		started.OrderID = orderID
		started.BartenderID = "bt-ana"
		out = append(out, started)

		done := base(event.EventPrepCompleted, at.Add(2*time.Minute))
		done.OrderID = orderID
		done.BartenderID = "bt-ana"
		out = append(out, done)

		delivered := base(event.EventOrderDelivered, at.Add(150*time.Second))
		delivered.OrderID = orderID
		delivered.BartenderID = "bt-ana"
		out = append(out, delivered)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
