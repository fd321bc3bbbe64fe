package event

import "time"

const (
	BarEventsTopic       = "bar.events"
	BarEventLogTopic     = "bar.events.log"
	OrdersCompletedTopic = "bar.orders.completed"
	GuardrailsTopic      = "bar.guardrails"
	ConfigTopic          = "bar.config"
)

const (
	EventOrderCreated      = "order_created"
	EventOrderPaid         = "order_paid"
	EventPrepStarted       = "prep_started"
	EventPrepCompleted     = "prep_completed"
	EventOrderDelivered    = "order_delivered"
	EventOrderCancelled    = "order_cancelled"
	EventOrderAbandoned    = "order_abandoned"
	EventStaffState        = "staff_state"
	EventInventorySnapshot = "inventory_snapshot"
)

const (
	StaffClockIn       = "clock_in"
	StaffClockOut      = "clock_out"
	StaffBreakStart    = "break_start"
	StaffBreakEnd      = "break_end"
	StaffStationChange = "station_change"

	RoleBartender = "bartender"

	SnapshotFull  = "full"
	SnapshotDelta = "delta"
)

// Envelope is the JSON shape of every ingested bar event. Fields that do not
// apply to a given type are left empty.
type Envelope struct {
	EventID   string    `json:"event_id,omitempty" bson:"event_id,omitempty"`
	EventType string    `json:"type" bson:"type"`
	VenueID   string    `json:"venue_id" bson:"venue_id"`
	BarID     string    `json:"bar_id" bson:"bar_id"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`

	// Orders
	OrderID     string      `json:"order_id,omitempty" bson:"order_id,omitempty"`
	Channel     string      `json:"channel,omitempty" bson:"channel,omitempty"`
	Priority    *int        `json:"priority,omitempty" bson:"priority,omitempty"`
	Items       []OrderItem `json:"items,omitempty" bson:"items,omitempty"`
	BartenderID string      `json:"bartender_id,omitempty" bson:"bartender_id,omitempty"`
	Reason      string      `json:"reason,omitempty" bson:"reason,omitempty"`

	// Staff
	StaffID string   `json:"staff_id,omitempty" bson:"staff_id,omitempty"`
	Role    string   `json:"role,omitempty" bson:"role,omitempty"`
	Action  string   `json:"action,omitempty" bson:"action,omitempty"`
	Station string   `json:"station,omitempty" bson:"station,omitempty"`
	Skills  []string `json:"skills,omitempty" bson:"skills,omitempty"`

	// Inventory
	SnapshotType string       `json:"snapshot_type,omitempty" bson:"snapshot_type,omitempty"`
	Stock        []StockLevel `json:"stock,omitempty" bson:"stock,omitempty"`
}

type OrderItem struct {
	SKU string `json:"sku" bson:"sku"`
	Qty int    `json:"qty" bson:"qty"`
}

type StockLevel struct {
	SKU string `json:"sku" bson:"sku"`
	Qty int    `json:"qty" bson:"qty"`
}

// OrderCompletedRecord is published when an order is delivered.
type OrderCompletedRecord struct {
	EventType   string    `json:"event_type"`
	OccurredAt  time.Time `json:"occurred_at"`
	VenueID     string    `json:"venue_id"`
	BarID       string    `json:"bar_id"`
	OrderID     string    `json:"order_id"`
	Channel     string    `json:"channel,omitempty"`
	AssigneeID  string    `json:"assignee_id,omitempty"`
	ItemCount   int       `json:"item_count"`
	WaitSeconds float64   `json:"wait_seconds"`
}

// GuardrailAlertRecord is published when an alert is raised or cleared.
type GuardrailAlertRecord struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	VenueID    string    `json:"venue_id"`
	BarID      string    `json:"bar_id"`
	Code       string    `json:"code"`
	Severity   string    `json:"severity"`
	Message    string    `json:"message,omitempty"`
	Value      float64   `json:"value"`
	Threshold  float64   `json:"threshold"`
}

// ConfigChangedRecord is published after a config version is persisted.
type ConfigChangedRecord struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	VenueID    string    `json:"venue_id"`
	BarID      string    `json:"bar_id"`
	Version    int       `json:"version"`
	Source     string    `json:"source"`
}

const (
	RecordOrderCompleted = "bar.order.completed"
	RecordAlertRaised    = "bar.guardrail.alert_raised"
	RecordAlertCleared   = "bar.guardrail.alert_cleared"
	RecordConfigChanged  = "bar.config.changed"
)
