package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/appetiteclub/apt"
	aptevents "github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/barqueue/pkg/enums/stage"
	"github.com/appetiteclub/barqueue/pkg/event"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/catalog"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/state"
)

const (
	DefaultIOTimeout = 2 * time.Second
	BreakDuration    = 15 * time.Minute
)

// Result reports the outcome of applying a single event.
type Result struct {
	Processed bool     `json:"processed"`
	Warnings  []string `json:"warnings,omitempty"`
}

type BatchError struct {
	Index   int    `json:"index"`
	EventID string `json:"event_id,omitempty"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

type BatchWarning struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// BatchResult indexes refer to positions after the timestamp sort.
type BatchResult struct {
	Accepted int            `json:"accepted"`
	Rejected int            `json:"rejected"`
	Errors   []BatchError   `json:"errors,omitempty"`
	Warnings []BatchWarning `json:"warnings,omitempty"`
}

type Options struct {
	Catalog   catalog.Catalog
	Tenant    catalog.TenantResolver
	Log       EventLog
	Publisher aptevents.Publisher
	Logger    apt.Logger
	IOTimeout time.Duration
}

// Processor applies events to the state registry. Calls for the same bar are
// serialized by the partition lock; I/O happens outside it.
type Processor struct {
	registry  *state.Registry
	catalog   catalog.Catalog
	tenant    catalog.TenantResolver
	log       EventLog
	publisher aptevents.Publisher
	logger    apt.Logger
	ioTimeout time.Duration
}

func NewProcessor(registry *state.Registry, opts Options) *Processor {
	p := &Processor{
		registry:  registry,
		catalog:   opts.Catalog,
		tenant:    opts.Tenant,
		log:       opts.Log,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		ioTimeout: opts.IOTimeout,
	}
	if p.catalog == nil {
		p.catalog = catalog.Static{}
	}
	if p.tenant == nil {
		p.tenant = catalog.SeparatorTenant(":")
	}
	if p.log == nil {
		p.log = NopLog{}
	}
	if p.logger == nil {
		p.logger = apt.NewNoopLogger()
	}
	if p.ioTimeout <= 0 {
		p.ioTimeout = DefaultIOTimeout
	}
	return p
}

// Process logs and applies one event.
func (p *Processor) Process(ctx context.Context, e Event) Result {
	return p.process(ctx, e, true)
}

// ProcessRaw decodes and applies one JSON event.
func (p *Processor) ProcessRaw(ctx context.Context, data []byte) Result {
	e, err := Decode(data)
	if err != nil {
		return Result{Warnings: []string{err.Error()}}
	}
	return p.Process(ctx, e)
}

// ProcessBatch applies events in timestamp order. A failing event never stops
// the rest.
func (p *Processor) ProcessBatch(ctx context.Context, evs []Event) BatchResult {
	return p.processBatch(ctx, evs, true)
}

func (p *Processor) processBatch(ctx context.Context, evs []Event, record bool) BatchResult {
	sorted := make([]Event, len(evs))
	copy(sorted, evs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Header().Timestamp.Before(sorted[j].Header().Timestamp)
	})

	var out BatchResult
	for i, e := range sorted {
		res := p.process(ctx, e, record)
		if res.Processed {
			out.Accepted++
			for _, w := range res.Warnings {
				out.Warnings = append(out.Warnings, BatchWarning{Index: i, Message: w})
			}
			continue
		}
		out.Rejected++
		out.Errors = append(out.Errors, BatchError{
			Index:   i,
			EventID: e.Header().EventID,
			Type:    e.Type(),
			Message: strings.Join(res.Warnings, "; "),
		})
	}
	return out
}

func (p *Processor) process(ctx context.Context, e Event, record bool) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic while processing event", "type", e.Type(), "panic", r)
			res = Result{Warnings: append(res.Warnings, fmt.Sprintf("internal error processing %s: %v", e.Type(), r))}
		}
	}()

	if e == nil {
		return Result{Warnings: []string{ErrInvalidEvent.Error()}}
	}
	m := e.Header()
	if m.VenueID == "" || m.BarID == "" {
		return Result{Warnings: []string{fmt.Sprintf("%v: venue_id and bar_id are required", ErrInvalidEvent)}}
	}

	if record {
		if err := p.append(ctx, e); err != nil {
			p.logger.Error("cannot append event to log", "event_id", m.EventID, "error", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("event log: %v", err))
		}
	}

	if err := p.dispatch(ctx, e, &res); err != nil {
		res.Processed = false
		res.Warnings = append(res.Warnings, err.Error())
		return res
	}
	res.Processed = true
	return res
}

func (p *Processor) append(ctx context.Context, e Event) error {
	ctx, cancel := context.WithTimeout(ctx, p.ioTimeout)
	defer cancel()
	return p.log.Append(ctx, ToEnvelope(e))
}

func (p *Processor) dispatch(ctx context.Context, e Event, res *Result) error {
	switch ev := e.(type) {
	case *OrderCreated:
		return p.orderCreated(ev, res)
	case *OrderPaid:
		return p.orderPaid(ctx, ev, res)
	case *PrepStarted:
		return p.prepStarted(ev, res)
	case *PrepCompleted:
		return p.prepCompleted(ev, res)
	case *OrderDelivered:
		return p.orderDelivered(ctx, ev, res)
	case *OrderCancelled:
		return p.orderClosed(ev.Meta, ev.OrderID, stage.Stages.Cancelled.Code(), res)
	case *OrderAbandoned:
		return p.orderClosed(ev.Meta, ev.OrderID, stage.Stages.Abandoned.Code(), res)
	case *StaffState:
		return p.staffState(ev, res)
	case *InventorySnapshot:
		return p.inventorySnapshot(ev)
	}
	return fmt.Errorf("%w: %T", ErrUnknownEventType, e)
}

func (p *Processor) partition(m Meta) *state.Partition {
	return p.registry.GetOrCreate(m.VenueID, m.BarID)
}

func (p *Processor) orderCreated(ev *OrderCreated, res *Result) error {
	if ev.OrderID == "" {
		return fmt.Errorf("%w: order_id is required", ErrInvalidEvent)
	}
	return p.partition(ev.Meta).Update(func(s *state.BarState) error {
		if o, ok := s.Order(ev.OrderID); ok && o.PaidAt != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("order %s already paid, duplicate create ignored", ev.OrderID))
			return nil
		}
		s.CreateOrder(state.Order{
			ID:        ev.OrderID,
			Channel:   ev.Channel,
			Items:     plainItems(ev.Items),
			Priority:  priorityOrDefault(ev.Priority),
			CreatedAt: ev.Timestamp,
		})
		return nil
	})
}

func (p *Processor) orderPaid(ctx context.Context, ev *OrderPaid, res *Result) error {
	if ev.OrderID == "" {
		return fmt.Errorf("%w: order_id is required", ErrInvalidEvent)
	}
	part := p.partition(ev.Meta)

	items := plainItems(ev.Items)
	if len(items) == 0 {
		part.View(func(s *state.BarState) {
			if o, ok := s.Order(ev.OrderID); ok {
				items = o.Items
			}
		})
	}

	mappings := p.lookup(ctx, ev.VenueID, items, res)
	enriched := enrich(items, mappings)

	return part.Update(func(s *state.BarState) error {
		existing, ok := s.Order(ev.OrderID)
		if ok && existing.PaidAt != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("order %s already paid", ev.OrderID))
			return nil
		}
		if !ok {
			s.CreateOrder(state.Order{
				ID:        ev.OrderID,
				Channel:   ev.Channel,
				Priority:  priorityOrDefault(ev.Priority),
				CreatedAt: ev.Timestamp,
			})
		}
		s.SetOrderItems(ev.OrderID, enriched)
		s.UpdateStage(ev.OrderID, stage.Stages.Paid.Code(), ev.Timestamp, state.StageExtra{})

		queued := false
		for _, item := range enriched {
			switch {
			case item.Batchable():
				s.AddToQueue(item.FamilyID, ev.OrderID)
				queued = true
			case item.Stockable():
				s.RecordDemand(item.SKU, item.Qty, ev.Timestamp)
				s.DecrementStock(item.SKU, item.Qty)
			}
		}
		if queued {
			s.UpdateStage(ev.OrderID, stage.Stages.QueuedPrep.Code(), ev.Timestamp, state.StageExtra{})
		}
		return nil
	})
}

func (p *Processor) lookup(ctx context.Context, venueID string, items []state.OrderItem, res *Result) map[string]catalog.Mapping {
	if len(items) == 0 {
		return nil
	}
	skus := make([]string, 0, len(items))
	for _, it := range items {
		skus = append(skus, it.SKU)
	}

	ctx, cancel := context.WithTimeout(ctx, p.ioTimeout)
	defer cancel()

	mappings, err := p.catalog.Lookup(ctx, p.tenant(venueID), skus)
	if err != nil {
		p.logger.Error("catalog lookup failed", "venue_id", venueID, "error", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("catalog lookup failed: %v", err))
		return nil
	}
	return mappings
}

func (p *Processor) prepStarted(ev *PrepStarted, res *Result) error {
	return p.partition(ev.Meta).Update(func(s *state.BarState) error {
		o, ok := s.Order(ev.OrderID)
		if !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("unknown order %s", ev.OrderID))
			return nil
		}
		for _, family := range o.Families() {
			s.RemoveFromQueue(family, o.ID)
		}
		s.UpdateStage(o.ID, stage.Stages.InPrep.Code(), ev.Timestamp, state.StageExtra{AssigneeID: ev.BartenderID})
		if ev.BartenderID != "" {
			s.UpsertBartender(ev.BartenderID, state.BartenderUpdate{CurrentOrderID: state.Set(o.ID)})
		}
		return nil
	})
}

func (p *Processor) prepCompleted(ev *PrepCompleted, res *Result) error {
	return p.partition(ev.Meta).Update(func(s *state.BarState) error {
		o, ok := s.Order(ev.OrderID)
		if !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("unknown order %s", ev.OrderID))
			return nil
		}
		s.UpdateStage(o.ID, stage.Stages.Ready.Code(), ev.Timestamp, state.StageExtra{AssigneeID: ev.BartenderID})
		releaseBartender(s, firstNonEmpty(ev.BartenderID, o.AssigneeID), o.ID)
		return nil
	})
}

func (p *Processor) orderDelivered(ctx context.Context, ev *OrderDelivered, res *Result) error {
	var completed *state.CompletedOrder
	err := p.partition(ev.Meta).Update(func(s *state.BarState) error {
		o, ok := s.Order(ev.OrderID)
		if !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("unknown order %s", ev.OrderID))
			return nil
		}
		completed, _ = s.UpdateStage(o.ID, stage.Stages.Delivered.Code(), ev.Timestamp, state.StageExtra{AssigneeID: ev.BartenderID})
		releaseBartender(s, firstNonEmpty(ev.BartenderID, o.AssigneeID), o.ID)
		return nil
	})
	if err != nil || completed == nil {
		return err
	}

	rec := event.OrderCompletedRecord{
		EventType:   event.RecordOrderCompleted,
		OccurredAt:  completed.DeliveredAt,
		VenueID:     ev.VenueID,
		BarID:       ev.BarID,
		OrderID:     completed.OrderID,
		Channel:     completed.Channel,
		AssigneeID:  completed.AssigneeID,
		ItemCount:   completed.ItemCount,
		WaitSeconds: completed.Wait.Seconds(),
	}
	if err := p.publish(ctx, event.OrdersCompletedTopic, rec); err != nil {
		p.logger.Error("cannot publish order completed record", "order_id", completed.OrderID, "error", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("publish completed record: %v", err))
	}
	return nil
}

func (p *Processor) orderClosed(m Meta, orderID, to string, res *Result) error {
	return p.partition(m).Update(func(s *state.BarState) error {
		o, ok := s.Order(orderID)
		if !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("unknown order %s", orderID))
			return nil
		}
		for _, family := range o.Families() {
			s.RemoveFromQueue(family, o.ID)
		}
		s.UpdateStage(o.ID, to, m.Timestamp, state.StageExtra{})
		releaseBartender(s, o.AssigneeID, o.ID)
		return nil
	})
}

func (p *Processor) staffState(ev *StaffState, res *Result) error {
	part := p.partition(ev.Meta)
	if ev.Role != "" && ev.Role != event.RoleBartender {
		p.logger.Debug("staff role has no modeled effect", "role", ev.Role, "staff_id", ev.StaffID)
		res.Warnings = append(res.Warnings, fmt.Sprintf("role %q has no effect", ev.Role))
		return nil
	}

	var u state.BartenderUpdate
	switch ev.Action {
	case event.StaffClockIn:
		u = state.BartenderUpdate{
			Active:     state.Set(true),
			Station:    state.Set(ev.Station),
			Skills:     state.Set(ev.Skills),
			BreakUntil: state.Clear[*time.Time](),
		}
	case event.StaffClockOut:
		u = state.BartenderUpdate{
			Active:         state.Set(false),
			CurrentOrderID: state.Clear[string](),
			BreakUntil:     state.Clear[*time.Time](),
		}
	case event.StaffBreakStart:
		until := ev.Timestamp.Add(BreakDuration)
		u = state.BartenderUpdate{BreakUntil: state.Set(&until)}
	case event.StaffBreakEnd:
		u = state.BartenderUpdate{BreakUntil: state.Clear[*time.Time]()}
	case event.StaffStationChange:
		if ev.Station != "" {
			u.Station = state.Set(ev.Station)
		}
		if ev.Skills != nil {
			u.Skills = state.Set(ev.Skills)
		}
	default:
		return fmt.Errorf("%w: unknown staff action %q", ErrInvalidEvent, ev.Action)
	}

	return part.Update(func(s *state.BarState) error {
		s.UpsertBartender(ev.StaffID, u)
		return nil
	})
}

// inventorySnapshot overwrites the listed skus for both full and delta
// snapshots; unlisted skus keep their level.
func (p *Processor) inventorySnapshot(ev *InventorySnapshot) error {
	for _, l := range ev.Levels {
		if l.SKU == "" || l.Qty < 0 {
			return fmt.Errorf("%w: bad stock level for %q", ErrInvalidEvent, l.SKU)
		}
	}
	return p.partition(ev.Meta).Update(func(s *state.BarState) error {
		for _, l := range ev.Levels {
			s.SetStock(l.SKU, l.Qty)
		}
		return nil
	})
}

func (p *Processor) publish(ctx context.Context, topic string, payload any) error {
	if p.publisher == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.ioTimeout)
	defer cancel()
	return p.publisher.Publish(ctx, topic, data)
}

func releaseBartender(s *state.BarState, bartenderID, orderID string) {
	if bartenderID == "" {
		return
	}
	b, ok := s.Bartender(bartenderID)
	if !ok || b.CurrentOrderID != orderID {
		return
	}
	s.UpsertBartender(bartenderID, state.BartenderUpdate{CurrentOrderID: state.Clear[string]()})
}

func enrich(items []state.OrderItem, mappings map[string]catalog.Mapping) []state.OrderItem {
	out := make([]state.OrderItem, 0, len(items))
	for _, it := range items {
		if m, ok := mappings[it.SKU]; ok {
			it.FamilyID = m.FamilyID
			it.Classification = m.Classification
		}
		out = append(out, it)
	}
	return out
}

func plainItems(in []Item) []state.OrderItem {
	out := make([]state.OrderItem, 0, len(in))
	for _, it := range in {
		out = append(out, state.OrderItem{SKU: it.SKU, Qty: it.Qty})
	}
	return out
}

func priorityOrDefault(p *int) int {
	if p == nil {
		return state.DefaultPriority
	}
	return *p
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
