package state

import (
	"sort"
	"time"

	"github.com/appetiteclub/barqueue/pkg/enums/stage"
)

// DefaultArrivalsWindow bounds the arrivals and demand buffers.
const DefaultArrivalsWindow = 15 * time.Minute

type Alert struct {
	Code      string    `json:"code"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message,omitempty"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	RaisedAt  time.Time `json:"raised_at"`
}

// GuardrailState tracks the autopilot control loop for one bar.
type GuardrailState struct {
	LastToggleAt          *time.Time `json:"last_toggle_at,omitempty"`
	LastEvaluatedAt       *time.Time `json:"last_evaluated_at,omitempty"`
	LastSeverity          string     `json:"last_severity,omitempty"`
	ConsecutiveViolations int        `json:"consecutive_violations"`
}

// DemandSample is a quantity of a stockable sku paid at a given instant.
type DemandSample struct {
	At  time.Time
	Qty int
}

// BarState is the live operational state of one (venue, bar). It is not
// safe for concurrent use; Partition serializes access.
type BarState struct {
	venueID string
	barID   string
	window  time.Duration

	config     EngineConfig
	guardrail  GuardrailState
	orders     map[string]*Order
	queues     map[string][]string
	bartenders map[string]*Bartender
	stock      map[string]int
	alerts     map[string]Alert
	arrivals   []time.Time
	demand     map[string][]DemandSample
	completed  *completedRing
}

func newBarState(venueID, barID string, cfg EngineConfig, window time.Duration, capacity int) *BarState {
	if window <= 0 {
		window = DefaultArrivalsWindow
	}
	return &BarState{
		venueID:    venueID,
		barID:      barID,
		window:     window,
		config:     cfg,
		orders:     make(map[string]*Order),
		queues:     make(map[string][]string),
		bartenders: make(map[string]*Bartender),
		stock:      make(map[string]int),
		alerts:     make(map[string]Alert),
		demand:     make(map[string][]DemandSample),
		completed:  newCompletedRing(capacity),
	}
}

func (s *BarState) VenueID() string { return s.venueID }
func (s *BarState) BarID() string   { return s.barID }

// Window is the span kept by the arrivals and demand buffers.
func (s *BarState) Window() time.Duration { return s.window }

// Orders

// CreateOrder inserts the order with stage created. An existing order with
// the same id is overwritten and leaves every family queue.
func (s *BarState) CreateOrder(o Order) {
	if _, ok := s.orders[o.ID]; ok {
		s.dequeueAll(o.ID)
	}
	o.VenueID = s.venueID
	o.BarID = s.barID
	o.Stage = stage.Stages.Created.Code()
	o.Items = cloneItems(o.Items)
	s.orders[o.ID] = &o
}

func (s *BarState) Order(id string) (Order, bool) {
	o, ok := s.orders[id]
	if !ok {
		return Order{}, false
	}
	return cloneOrder(o), true
}

func (s *BarState) HasOrder(id string) bool {
	_, ok := s.orders[id]
	return ok
}

// LiveOrders returns every order still in the live set.
func (s *BarState) LiveOrders() []Order {
	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// SetOrderItems replaces the items of a live order. Queue entries of families
// the new items no longer carry are dropped.
func (s *BarState) SetOrderItems(id string, items []OrderItem) bool {
	o, ok := s.orders[id]
	if !ok {
		return false
	}
	o.Items = cloneItems(items)
	keep := make(map[string]struct{})
	for _, f := range o.Families() {
		keep[f] = struct{}{}
	}
	for family := range s.queues {
		if _, ok := keep[family]; !ok {
			s.RemoveFromQueue(family, id)
		}
	}
	return true
}

// UpdateStage moves an order to the given stage; absent orders are ignored.
// Paid stamps the arrival, delivered evicts the order into the completed ring,
// cancelled and abandoned evict it without a record.
func (s *BarState) UpdateStage(id, to string, at time.Time, extra StageExtra) (*CompletedOrder, bool) {
	o, ok := s.orders[id]
	if !ok {
		return nil, false
	}

	o.Stage = to
	if extra.AssigneeID != "" {
		o.AssigneeID = extra.AssigneeID
	}

	switch to {
	case stage.Stages.Paid.Code():
		paid := at
		o.PaidAt = &paid
		s.RecordArrival(at)
	case stage.Stages.InPrep.Code():
		started := at
		o.PrepStartedAt = &started
	case stage.Stages.Ready.Code():
		done := at
		o.PrepCompletedAt = &done
	case stage.Stages.Delivered.Code():
		delivered := at
		o.DeliveredAt = &delivered
		record := CompletedOrder{
			OrderID:     o.ID,
			Channel:     o.Channel,
			AssigneeID:  o.AssigneeID,
			ItemCount:   len(o.Items),
			CreatedAt:   o.CreatedAt,
			DeliveredAt: delivered,
			Wait:        delivered.Sub(o.CreatedAt),
		}
		if record.Wait < 0 {
			record.Wait = 0
		}
		s.evict(o)
		s.completed.push(record)
		return &record, true
	case stage.Stages.Cancelled.Code(), stage.Stages.Abandoned.Code():
		s.evict(o)
	}
	return nil, true
}

// evict scans every queue so an order never outlives the live set, even when
// its items changed after it was queued.
func (s *BarState) evict(o *Order) {
	s.dequeueAll(o.ID)
	delete(s.orders, o.ID)
}

func (s *BarState) dequeueAll(orderID string) {
	for family := range s.queues {
		s.RemoveFromQueue(family, orderID)
	}
}

// Family queues

// AddToQueue appends the order to the family queue unless already present.
func (s *BarState) AddToQueue(family, orderID string) bool {
	for _, id := range s.queues[family] {
		if id == orderID {
			return false
		}
	}
	s.queues[family] = append(s.queues[family], orderID)
	return true
}

// RemoveFromQueue removes at most one occurrence of the order.
func (s *BarState) RemoveFromQueue(family, orderID string) bool {
	ids := s.queues[family]
	for i, id := range ids {
		if id != orderID {
			continue
		}
		next := make([]string, 0, len(ids)-1)
		next = append(next, ids[:i]...)
		next = append(next, ids[i+1:]...)
		if len(next) == 0 {
			delete(s.queues, family)
		} else {
			s.queues[family] = next
		}
		return true
	}
	return false
}

// Queue returns a copy of the family queue in FIFO order.
func (s *BarState) Queue(family string) []string {
	return append([]string(nil), s.queues[family]...)
}

func (s *BarState) QueueLength(family string) int {
	return len(s.queues[family])
}

func (s *BarState) TotalQueueLength() int {
	total := 0
	for _, ids := range s.queues {
		total += len(ids)
	}
	return total
}

// Families lists every family with at least one queued order, sorted.
func (s *BarState) Families() []string {
	out := make([]string, 0, len(s.queues))
	for family, ids := range s.queues {
		if len(ids) > 0 {
			out = append(out, family)
		}
	}
	sort.Strings(out)
	return out
}

// OldestAge is how long the head of the family queue has been waiting.
func (s *BarState) OldestAge(family string, now time.Time) time.Duration {
	ids := s.queues[family]
	if len(ids) == 0 {
		return 0
	}
	o, ok := s.orders[ids[0]]
	if !ok {
		return 0
	}
	age := now.Sub(o.QueuedSince())
	if age < 0 {
		return 0
	}
	return age
}

// MaxOldestAge is the largest OldestAge across all families.
func (s *BarState) MaxOldestAge(now time.Time) time.Duration {
	var oldest time.Duration
	for family := range s.queues {
		if age := s.OldestAge(family, now); age > oldest {
			oldest = age
		}
	}
	return oldest
}

// Bartenders

// UpsertBartender applies a partial update, creating the bartender if needed.
func (s *BarState) UpsertBartender(id string, u BartenderUpdate) Bartender {
	b, ok := s.bartenders[id]
	if !ok {
		b = &Bartender{ID: id}
		s.bartenders[id] = b
	}
	u.Active.apply(&b.Active)
	u.CurrentOrderID.apply(&b.CurrentOrderID)
	u.Station.apply(&b.Station)
	u.Skills.apply(&b.Skills)
	u.BreakUntil.apply(&b.BreakUntil)
	b.Skills = append([]string(nil), b.Skills...)
	return cloneBartender(b)
}

func (s *BarState) Bartender(id string) (Bartender, bool) {
	b, ok := s.bartenders[id]
	if !ok {
		return Bartender{}, false
	}
	return cloneBartender(b), true
}

// ActiveBartenders returns bartenders clocked in and not on break at now.
func (s *BarState) ActiveBartenders(now time.Time) []Bartender {
	var out []Bartender
	for _, b := range s.bartenders {
		if b.Active && !b.OnBreak(now) {
			out = append(out, cloneBartender(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InServiceBartenders returns active bartenders currently holding an order.
func (s *BarState) InServiceBartenders(now time.Time) []Bartender {
	var out []Bartender
	for _, b := range s.ActiveBartenders(now) {
		if b.CurrentOrderID != "" {
			out = append(out, b)
		}
	}
	return out
}

// Pre-stock

func (s *BarState) SetStock(sku string, qty int) {
	if qty < 0 {
		qty = 0
	}
	s.stock[sku] = qty
}

func (s *BarState) Stock(sku string) int {
	return s.stock[sku]
}

// DecrementStock lowers the stock of sku by n, flooring at zero, and returns the new level.
func (s *BarState) DecrementStock(sku string, n int) int {
	next := s.stock[sku] - n
	if next < 0 {
		next = 0
	}
	s.stock[sku] = next
	return next
}

func (s *BarState) StockLevels() map[string]int {
	out := make(map[string]int, len(s.stock))
	for sku, qty := range s.stock {
		out[sku] = qty
	}
	return out
}

// Alerts

// AddAlert registers an alert unless one with the same code is active.
func (s *BarState) AddAlert(a Alert) bool {
	if _, ok := s.alerts[a.Code]; ok {
		return false
	}
	s.alerts[a.Code] = a
	return true
}

func (s *BarState) ClearAlert(code string) bool {
	if _, ok := s.alerts[code]; !ok {
		return false
	}
	delete(s.alerts, code)
	return true
}

func (s *BarState) Alerts() []Alert {
	out := make([]Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Arrivals and demand

// RecordArrival inserts a paid timestamp and drops entries older than the
// window measured from the newest arrival.
func (s *BarState) RecordArrival(at time.Time) {
	s.arrivals = insertSorted(s.arrivals, at)
	s.arrivals = pruneBefore(s.arrivals, s.arrivals[len(s.arrivals)-1].Add(-s.window))
}

func (s *BarState) Arrivals() []time.Time {
	return append([]time.Time(nil), s.arrivals...)
}

func (s *BarState) ArrivalCount() int {
	return len(s.arrivals)
}

// RecordDemand adds a stockable sku demand sample under the same window rule as arrivals.
func (s *BarState) RecordDemand(sku string, qty int, at time.Time) {
	samples := s.demand[sku]
	i := sort.Search(len(samples), func(i int) bool { return samples[i].At.After(at) })
	samples = append(samples, DemandSample{})
	copy(samples[i+1:], samples[i:])
	samples[i] = DemandSample{At: at, Qty: qty}

	cutoff := samples[len(samples)-1].At.Add(-s.window)
	j := sort.Search(len(samples), func(i int) bool { return !samples[i].At.Before(cutoff) })
	s.demand[sku] = append([]DemandSample(nil), samples[j:]...)
}

func (s *BarState) Demand(sku string) []DemandSample {
	return append([]DemandSample(nil), s.demand[sku]...)
}

// DemandSKUs lists every sku with demand samples, sorted.
func (s *BarState) DemandSKUs() []string {
	out := make([]string, 0, len(s.demand))
	for sku := range s.demand {
		out = append(out, sku)
	}
	sort.Strings(out)
	return out
}

// Completed orders, config and guardrail

// Completed returns the completed ring oldest first.
func (s *BarState) Completed() []CompletedOrder {
	return s.completed.items()
}

func (s *BarState) CompletedCapacity() int {
	return s.completed.capacity()
}

func (s *BarState) Config() EngineConfig {
	return s.config
}

func (s *BarState) SetConfig(cfg EngineConfig) {
	cfg.VenueID = s.venueID
	cfg.BarID = s.barID
	s.config = cfg
}

func (s *BarState) Guardrail() *GuardrailState {
	return &s.guardrail
}

func insertSorted(ts []time.Time, at time.Time) []time.Time {
	i := sort.Search(len(ts), func(i int) bool { return ts[i].After(at) })
	ts = append(ts, time.Time{})
	copy(ts[i+1:], ts[i:])
	ts[i] = at
	return ts
}

func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := sort.Search(len(ts), func(i int) bool { return !ts[i].Before(cutoff) })
	if i == 0 {
		return ts
	}
	return append([]time.Time(nil), ts[i:]...)
}

func cloneItems(items []OrderItem) []OrderItem {
	return append([]OrderItem(nil), items...)
}

func cloneOrder(o *Order) Order {
	c := *o
	c.Items = cloneItems(o.Items)
	return c
}

func cloneBartender(b *Bartender) Bartender {
	c := *b
	c.Skills = append([]string(nil), b.Skills...)
	return c
}
