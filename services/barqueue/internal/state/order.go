package state

import (
	"time"

	"github.com/appetiteclub/barqueue/pkg/enums/classification"
)

const DefaultPriority = 50

type OrderItem struct {
	SKU            string `json:"sku"`
	Qty            int    `json:"qty"`
	FamilyID       string `json:"family_id,omitempty"`
	Classification string `json:"classification,omitempty"`
}

func (i OrderItem) Batchable() bool {
	return i.FamilyID != "" && i.Classification == classification.Classifications.Batchable.Code()
}

func (i OrderItem) Stockable() bool {
	return i.Classification == classification.Classifications.Stockable.Code()
}

type Order struct {
	ID         string      `json:"id"`
	VenueID    string      `json:"venue_id"`
	BarID      string      `json:"bar_id"`
	Channel    string      `json:"channel,omitempty"`
	Items      []OrderItem `json:"items"`
	Priority   int         `json:"priority"`
	Stage      string      `json:"stage"`
	AssigneeID string      `json:"assignee_id,omitempty"`

	CreatedAt       time.Time  `json:"created_at"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	PrepStartedAt   *time.Time `json:"prep_started_at,omitempty"`
	PrepCompletedAt *time.Time `json:"prep_completed_at,omitempty"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty"`
}

// QueuedSince is the instant the order started waiting for preparation.
func (o *Order) QueuedSince() time.Time {
	if o.PaidAt != nil {
		return *o.PaidAt
	}
	return o.CreatedAt
}

// Families returns the distinct families of the order's batchable items.
func (o *Order) Families() []string {
	seen := make(map[string]struct{})
	var families []string
	for _, item := range o.Items {
		if !item.Batchable() {
			continue
		}
		if _, ok := seen[item.FamilyID]; ok {
			continue
		}
		seen[item.FamilyID] = struct{}{}
		families = append(families, item.FamilyID)
	}
	return families
}

// CompletedOrder is what remains of an order after delivery.
type CompletedOrder struct {
	OrderID     string        `json:"order_id"`
	Channel     string        `json:"channel,omitempty"`
	AssigneeID  string        `json:"assignee_id,omitempty"`
	ItemCount   int           `json:"item_count"`
	CreatedAt   time.Time     `json:"created_at"`
	DeliveredAt time.Time     `json:"delivered_at"`
	Wait        time.Duration `json:"wait"`
}

// StageExtra carries optional data applied together with a stage change.
type StageExtra struct {
	AssigneeID string
}
