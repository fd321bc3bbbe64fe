package events

import (
	"time"

	"github.com/appetiteclub/barqueue/pkg/event"
)

// Meta is carried by every event.
type Meta struct {
	EventID   string
	VenueID   string
	BarID     string
	Timestamp time.Time
}

func (m Meta) Header() Meta { return m }

func (Meta) sealed() {}

// Event is the closed set of domain events the processor applies. Adding a
// type means adding a case to Processor.dispatch.
type Event interface {
	Header() Meta
	Type() string
	sealed()
}

type Item struct {
	SKU string
	Qty int
}

type OrderCreated struct {
	Meta
	OrderID  string
	Channel  string
	Items    []Item
	Priority *int
}

type OrderPaid struct {
	Meta
	OrderID  string
	Channel  string
	Items    []Item
	Priority *int
}

type PrepStarted struct {
	Meta
	OrderID     string
	BartenderID string
}

type PrepCompleted struct {
	Meta
	OrderID     string
	BartenderID string
}

type OrderDelivered struct {
	Meta
	OrderID     string
	BartenderID string
}

type OrderCancelled struct {
	Meta
	OrderID string
	Reason  string
}

type OrderAbandoned struct {
	Meta
	OrderID string
	Reason  string
}

type StaffState struct {
	Meta
	StaffID string
	Role    string
	Action  string
	Station string
	Skills  []string
}

type StockLevel struct {
	SKU string
	Qty int
}

type InventorySnapshot struct {
	Meta
	SnapshotType string
	Levels       []StockLevel
}

func (*OrderCreated) Type() string      { return event.EventOrderCreated }
func (*OrderPaid) Type() string         { return event.EventOrderPaid }
func (*PrepStarted) Type() string       { return event.EventPrepStarted }
func (*PrepCompleted) Type() string     { return event.EventPrepCompleted }
func (*OrderDelivered) Type() string    { return event.EventOrderDelivered }
func (*OrderCancelled) Type() string    { return event.EventOrderCancelled }
func (*OrderAbandoned) Type() string    { return event.EventOrderAbandoned }
func (*StaffState) Type() string        { return event.EventStaffState }
func (*InventorySnapshot) Type() string { return event.EventInventorySnapshot }
