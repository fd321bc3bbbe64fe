package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/appetiteclub/barqueue/pkg/event"
	"github.com/google/uuid"
)

var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrInvalidEvent     = errors.New("invalid event")
)

// Decode parses a JSON envelope into its concrete event.
func Decode(data []byte) (Event, error) {
	var env event.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return FromEnvelope(env)
}

// FromEnvelope validates the envelope fields required by its type and builds the event.
func FromEnvelope(env event.Envelope) (Event, error) {
	if err := validateCommon(env); err != nil {
		return nil, err
	}

	meta := Meta{
		EventID:   env.EventID,
		VenueID:   env.VenueID,
		BarID:     env.BarID,
		Timestamp: env.Timestamp.UTC(),
	}
	if meta.EventID == "" {
		meta.EventID = uuid.NewString()
	}

	switch env.EventType {
	case event.EventOrderCreated:
		if err := requireField("order_id", env.OrderID); err != nil {
			return nil, err
		}
		items, err := itemsFrom(env.Items)
		if err != nil {
			return nil, err
		}
		return &OrderCreated{Meta: meta, OrderID: env.OrderID, Channel: env.Channel, Items: items, Priority: env.Priority}, nil

	case event.EventOrderPaid:
		if err := requireField("order_id", env.OrderID); err != nil {
			return nil, err
		}
		items, err := itemsFrom(env.Items)
		if err != nil {
			return nil, err
		}
		return &OrderPaid{Meta: meta, OrderID: env.OrderID, Channel: env.Channel, Items: items, Priority: env.Priority}, nil

	case event.EventPrepStarted:
		if err := requireField("order_id", env.OrderID); err != nil {
			return nil, err
		}
		return &PrepStarted{Meta: meta, OrderID: env.OrderID, BartenderID: env.BartenderID}, nil

	case event.EventPrepCompleted:
		if err := requireField("order_id", env.OrderID); err != nil {
			return nil, err
		}
		return &PrepCompleted{Meta: meta, OrderID: env.OrderID, BartenderID: env.BartenderID}, nil

	case event.EventOrderDelivered:
		if err := requireField("order_id", env.OrderID); err != nil {
			return nil, err
		}
		return &OrderDelivered{Meta: meta, OrderID: env.OrderID, BartenderID: env.BartenderID}, nil

	case event.EventOrderCancelled:
		if err := requireField("order_id", env.OrderID); err != nil {
			return nil, err
		}
		return &OrderCancelled{Meta: meta, OrderID: env.OrderID, Reason: env.Reason}, nil

	case event.EventOrderAbandoned:
		if err := requireField("order_id", env.OrderID); err != nil {
			return nil, err
		}
		return &OrderAbandoned{Meta: meta, OrderID: env.OrderID, Reason: env.Reason}, nil

	case event.EventStaffState:
		if err := requireField("staff_id", env.StaffID); err != nil {
			return nil, err
		}
		if err := requireField("action", env.Action); err != nil {
			return nil, err
		}
		return &StaffState{
			Meta:    meta,
			StaffID: env.StaffID,
			Role:    env.Role,
			Action:  env.Action,
			Station: env.Station,
			Skills:  env.Skills,
		}, nil

	case event.EventInventorySnapshot:
		levels := make([]StockLevel, 0, len(env.Stock))
		for i, l := range env.Stock {
			if l.SKU == "" {
				return nil, fmt.Errorf("%w: stock[%d].sku is required", ErrInvalidEvent, i)
			}
			if l.Qty < 0 {
				return nil, fmt.Errorf("%w: stock[%d].qty must not be negative", ErrInvalidEvent, i)
			}
			levels = append(levels, StockLevel{SKU: l.SKU, Qty: l.Qty})
		}
		snapshotType := env.SnapshotType
		if snapshotType == "" {
			snapshotType = event.SnapshotFull
		}
		return &InventorySnapshot{Meta: meta, SnapshotType: snapshotType, Levels: levels}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.EventType)
}

// ToEnvelope is the inverse of FromEnvelope, used for the durable log.
func ToEnvelope(e Event) event.Envelope {
	m := e.Header()
	env := event.Envelope{
		EventID:   m.EventID,
		EventType: e.Type(),
		VenueID:   m.VenueID,
		BarID:     m.BarID,
		Timestamp: m.Timestamp,
	}

	switch ev := e.(type) {
	case *OrderCreated:
		env.OrderID, env.Channel, env.Priority, env.Items = ev.OrderID, ev.Channel, ev.Priority, itemsTo(ev.Items)
	case *OrderPaid:
		env.OrderID, env.Channel, env.Priority, env.Items = ev.OrderID, ev.Channel, ev.Priority, itemsTo(ev.Items)
	case *PrepStarted:
		env.OrderID, env.BartenderID = ev.OrderID, ev.BartenderID
	case *PrepCompleted:
		env.OrderID, env.BartenderID = ev.OrderID, ev.BartenderID
	case *OrderDelivered:
		env.OrderID, env.BartenderID = ev.OrderID, ev.BartenderID
	case *OrderCancelled:
		env.OrderID, env.Reason = ev.OrderID, ev.Reason
	case *OrderAbandoned:
		env.OrderID, env.Reason = ev.OrderID, ev.Reason
	case *StaffState:
		env.StaffID, env.Role, env.Action, env.Station, env.Skills = ev.StaffID, ev.Role, ev.Action, ev.Station, ev.Skills
	case *InventorySnapshot:
		env.SnapshotType = ev.SnapshotType
		for _, l := range ev.Levels {
			env.Stock = append(env.Stock, event.StockLevel{SKU: l.SKU, Qty: l.Qty})
		}
	}
	return env
}

func validateCommon(env event.Envelope) error {
	if err := requireField("type", env.EventType); err != nil {
		return err
	}
	if err := requireField("venue_id", env.VenueID); err != nil {
		return err
	}
	if err := requireField("bar_id", env.BarID); err != nil {
		return err
	}
	if env.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidEvent)
	}
	return nil
}

func requireField(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidEvent, name)
	}
	return nil
}

func itemsFrom(in []event.OrderItem) ([]Item, error) {
	out := make([]Item, 0, len(in))
	for i, it := range in {
		if it.SKU == "" {
			return nil, fmt.Errorf("%w: items[%d].sku is required", ErrInvalidEvent, i)
		}
		qty := it.Qty
		if qty <= 0 {
			qty = 1
		}
		out = append(out, Item{SKU: it.SKU, Qty: qty})
	}
	return out, nil
}

func itemsTo(in []Item) []event.OrderItem {
	out := make([]event.OrderItem, 0, len(in))
	for _, it := range in {
		out = append(out, event.OrderItem{SKU: it.SKU, Qty: it.Qty})
	}
	return out
}
