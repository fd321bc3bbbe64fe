package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	aptevents "github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/barqueue/pkg/enums/classification"
	"github.com/appetiteclub/barqueue/pkg/enums/stage"
	"github.com/appetiteclub/barqueue/pkg/event"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/catalog"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/state"
)

var t0 = time.Date(2026, 10, 17, 21, 0, 0, 0, time.UTC)

const (
	venue = "acme:downtown"
	bar   = "main"
)

func testCatalog() catalog.Static {
	batchable := classification.Classifications.Batchable.Code()
	return catalog.Static{
		"acme": {
			"negroni":      {SKU: "negroni", FamilyID: "stirred", Classification: batchable, Active: true},
			"boulevardier": {SKU: "boulevardier", FamilyID: "stirred", Classification: batchable, Active: true},
			"mojito":       {SKU: "mojito", FamilyID: "muddled", Classification: batchable, Active: true},
			"shot":         {SKU: "shot", Classification: classification.Classifications.Stockable.Code(), Active: true},
			"special":      {SKU: "special", Classification: classification.Classifications.Custom.Code(), Active: true},
		},
	}
}

func meta(id string, at time.Time) Meta {
	return Meta{EventID: id, VenueID: venue, BarID: bar, Timestamp: at}
}

func newTestProcessor(opts Options) (*Processor, *state.Registry) {
	reg := state.NewRegistry(state.RegistryOptions{})
	if opts.Catalog == nil {
		opts.Catalog = testCatalog()
	}
	return NewProcessor(reg, opts), reg
}

func view(t *testing.T, reg *state.Registry, fn func(s *state.BarState)) {
	t.Helper()
	part, err := reg.Lookup(venue, bar)
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	part.View(fn)
}

func TestProcessOrderCreatedDefaultsPriority(t *testing.T) {
	p, reg := newTestProcessor(Options{})

	res := p.Process(context.Background(), &OrderCreated{Meta: meta("e1", t0), OrderID: "o1", Items: []Item{{SKU: "negroni", Qty: 1}}})
	if !res.Processed {
		t.Fatalf("expected processed, warnings: %v", res.Warnings)
	}

	view(t, reg, func(s *state.BarState) {
		o, ok := s.Order("o1")
		if !ok {
			t.Fatal("order not stored")
		}
		if o.Priority != state.DefaultPriority {
			t.Errorf("Priority = %d, want %d", o.Priority, state.DefaultPriority)
		}
		if o.Stage != stage.Stages.Created.Code() {
			t.Errorf("Stage = %s, want created", o.Stage)
		}
	})
}

func TestProcessOrderPaidEnqueuesBatchableItems(t *testing.T) {
	cat := &MockCatalog{}
	cat.LookupFunc = func(ctx context.Context, tenant string, skus []string) (map[string]catalog.Mapping, error) {
		return testCatalog().Lookup(ctx, tenant, skus)
	}
	p, reg := newTestProcessor(Options{Catalog: cat})
	ctx := context.Background()

	p.Process(ctx, &OrderCreated{Meta: meta("e1", t0), OrderID: "o1", Items: []Item{{SKU: "negroni", Qty: 1}, {SKU: "shot", Qty: 2}}})
	res := p.Process(ctx, &OrderPaid{Meta: meta("e2", t0.Add(time.Minute)), OrderID: "o1"})
	if !res.Processed {
		t.Fatalf("expected processed, warnings: %v", res.Warnings)
	}

	if len(cat.Tenants) != 1 || cat.Tenants[0] != "acme" {
		t.Errorf("catalog tenants = %v, want [acme]", cat.Tenants)
	}

	view(t, reg, func(s *state.BarState) {
		if got := s.Queue("stirred"); len(got) != 1 || got[0] != "o1" {
			t.Errorf("stirred queue = %v, want [o1]", got)
		}
		o, _ := s.Order("o1")
		if o.Stage != stage.Stages.QueuedPrep.Code() {
			t.Errorf("Stage = %s, want queued_prep", o.Stage)
		}
		if o.PaidAt == nil || !o.PaidAt.Equal(t0.Add(time.Minute)) {
			t.Errorf("PaidAt = %v", o.PaidAt)
		}
		if s.ArrivalCount() != 1 {
			t.Errorf("ArrivalCount() = %d, want 1", s.ArrivalCount())
		}
		if d := s.Demand("shot"); len(d) != 1 || d[0].Qty != 2 {
			t.Errorf("Demand(shot) = %v", d)
		}
	})
}

func TestProcessOrderPaidWithoutCreate(t *testing.T) {
	p, reg := newTestProcessor(Options{})

	res := p.Process(context.Background(), &OrderPaid{Meta: meta("e1", t0), OrderID: "o9", Items: []Item{{SKU: "special", Qty: 1}}})
	if !res.Processed {
		t.Fatalf("expected processed, warnings: %v", res.Warnings)
	}

	view(t, reg, func(s *state.BarState) {
		o, ok := s.Order("o9")
		if !ok {
			t.Fatal("order not created on paid")
		}
		if o.Stage != stage.Stages.Paid.Code() {
			t.Errorf("Stage = %s, want paid", o.Stage)
		}
		if s.TotalQueueLength() != 0 {
			t.Errorf("custom items must not be queued")
		}
	})
}

func TestProcessOrderPaidTwiceIsIgnored(t *testing.T) {
	p, reg := newTestProcessor(Options{})
	ctx := context.Background()

	p.Process(ctx, &OrderPaid{Meta: meta("e1", t0), OrderID: "o1", Items: []Item{{SKU: "negroni", Qty: 1}}})
	res := p.Process(ctx, &OrderPaid{Meta: meta("e2", t0.Add(time.Second)), OrderID: "o1", Items: []Item{{SKU: "negroni", Qty: 1}}})
	if !res.Processed || len(res.Warnings) != 1 {
		t.Fatalf("expected processed with one warning, got %+v", res)
	}

	view(t, reg, func(s *state.BarState) {
		if s.ArrivalCount() != 1 {
			t.Errorf("ArrivalCount() = %d, want 1", s.ArrivalCount())
		}
	})
}

func TestProcessCatalogFailureKeepsItemsUnenriched(t *testing.T) {
	cat := &MockCatalog{LookupFunc: func(context.Context, string, []string) (map[string]catalog.Mapping, error) {
		return nil, errors.New("catalog down")
	}}
	p, reg := newTestProcessor(Options{Catalog: cat})

	res := p.Process(context.Background(), &OrderPaid{Meta: meta("e1", t0), OrderID: "o1", Items: []Item{{SKU: "negroni", Qty: 1}}})
	if !res.Processed {
		t.Fatalf("expected processed, warnings: %v", res.Warnings)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a catalog warning")
	}

	view(t, reg, func(s *state.BarState) {
		if s.TotalQueueLength() != 0 {
			t.Error("unenriched items must not be queued")
		}
	})
}

func TestProcessEventLogFailureIsWarningOnly(t *testing.T) {
	log := &MockEventLog{AppendFunc: func(context.Context, event.Envelope) error {
		return errors.New("disk full")
	}}
	p, reg := newTestProcessor(Options{Log: log})

	res := p.Process(context.Background(), &OrderCreated{Meta: meta("e1", t0), OrderID: "o1"})
	if !res.Processed {
		t.Fatal("log failure must not reject the event")
	}
	if len(res.Warnings) != 1 {
		t.Errorf("Warnings = %v, want one", res.Warnings)
	}
	view(t, reg, func(s *state.BarState) {
		if !s.HasOrder("o1") {
			t.Error("order not applied")
		}
	})
}

func TestProcessLifecycle(t *testing.T) {
	pub := &MockPublisher{}
	log := &MockEventLog{}
	p, reg := newTestProcessor(Options{Publisher: pub, Log: log})
	ctx := context.Background()

	steps := []Event{
		&StaffState{Meta: meta("e0", t0), StaffID: "ana", Role: event.RoleBartender, Action: event.StaffClockIn},
		&OrderCreated{Meta: meta("e1", t0), OrderID: "o1", Items: []Item{{SKU: "negroni", Qty: 1}, {SKU: "mojito", Qty: 1}}},
		&OrderPaid{Meta: meta("e2", t0.Add(30*time.Second)), OrderID: "o1"},
		&PrepStarted{Meta: meta("e3", t0.Add(2*time.Minute)), OrderID: "o1", BartenderID: "ana"},
	}
	for _, e := range steps {
		if res := p.Process(ctx, e); !res.Processed {
			t.Fatalf("%s rejected: %v", e.Type(), res.Warnings)
		}
	}

	view(t, reg, func(s *state.BarState) {
		if s.TotalQueueLength() != 0 {
			t.Errorf("queues not drained on prep start: %v", s.Families())
		}
		o, _ := s.Order("o1")
		if o.AssigneeID != "ana" || o.Stage != stage.Stages.InPrep.Code() {
			t.Errorf("order = %+v", o)
		}
		b, _ := s.Bartender("ana")
		if b.CurrentOrderID != "o1" {
			t.Errorf("CurrentOrderID = %q, want o1", b.CurrentOrderID)
		}
	})

	p.Process(ctx, &PrepCompleted{Meta: meta("e4", t0.Add(4*time.Minute)), OrderID: "o1"})
	view(t, reg, func(s *state.BarState) {
		b, _ := s.Bartender("ana")
		if b.CurrentOrderID != "" {
			t.Errorf("bartender not released on prep completion")
		}
	})

	res := p.Process(ctx, &OrderDelivered{Meta: meta("e5", t0.Add(5*time.Minute)), OrderID: "o1", BartenderID: "ana"})
	if !res.Processed {
		t.Fatalf("delivered rejected: %v", res.Warnings)
	}

	view(t, reg, func(s *state.BarState) {
		if s.HasOrder("o1") {
			t.Error("delivered order still live")
		}
		done := s.Completed()
		if len(done) != 1 || done[0].Wait != 5*time.Minute {
			t.Errorf("Completed() = %+v", done)
		}
	})

	if len(pub.PublishedEvents) != 1 || pub.PublishedEvents[0].Topic != event.OrdersCompletedTopic {
		t.Fatalf("published = %+v", pub.PublishedEvents)
	}
	var rec event.OrderCompletedRecord
	if err := json.Unmarshal(pub.PublishedEvents[0].Data, &rec); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if rec.OrderID != "o1" || rec.WaitSeconds != 300 || rec.EventType != event.RecordOrderCompleted {
		t.Errorf("record = %+v", rec)
	}
	if len(log.Appended) != len(steps)+2 {
		t.Errorf("logged %d events, want %d", len(log.Appended), len(steps)+2)
	}
}

func TestProcessCancelAndAbandonDequeue(t *testing.T) {
	tests := []struct {
		name  string
		close func(m Meta) Event
	}{
		{
			name:  "cancelled",
			close: func(m Meta) Event { return &OrderCancelled{Meta: m, OrderID: "o1", Reason: "customer"} },
		},
		{
			name:  "abandoned",
			close: func(m Meta) Event { return &OrderAbandoned{Meta: m, OrderID: "o1"} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, reg := newTestProcessor(Options{})
			ctx := context.Background()

			p.Process(ctx, &OrderPaid{Meta: meta("e1", t0), OrderID: "o1", Items: []Item{{SKU: "negroni", Qty: 1}}})
			res := p.Process(ctx, tt.close(meta("e2", t0.Add(time.Minute))))
			if !res.Processed {
				t.Fatalf("rejected: %v", res.Warnings)
			}

			view(t, reg, func(s *state.BarState) {
				if s.HasOrder("o1") {
					t.Error("order still live")
				}
				if len(s.Queue("stirred")) != 0 {
					t.Error("order still queued")
				}
				if len(s.Completed()) != 0 {
					t.Error("closed order must not reach the completed ring")
				}
			})
		})
	}
}

func TestProcessDuplicateCreateAfterPaidKeepsQueueConsistent(t *testing.T) {
	p, reg := newTestProcessor(Options{})
	ctx := context.Background()
	negroni := []Item{{SKU: "negroni", Qty: 1}}

	p.Process(ctx, &OrderCreated{Meta: meta("e1", t0), OrderID: "o1", Items: negroni})
	p.Process(ctx, &OrderPaid{Meta: meta("e2", t0.Add(time.Second)), OrderID: "o1"})

	res := p.Process(ctx, &OrderCreated{Meta: meta("e3", t0.Add(2*time.Second)), OrderID: "o1", Items: negroni})
	if !res.Processed || len(res.Warnings) != 1 {
		t.Fatalf("duplicate create = %+v, want processed with one warning", res)
	}

	view(t, reg, func(s *state.BarState) {
		o, _ := s.Order("o1")
		if o.Stage != stage.Stages.QueuedPrep.Code() {
			t.Errorf("stage = %s, want queued_prep", o.Stage)
		}
		if s.ArrivalCount() != 1 {
			t.Errorf("arrivals = %d, want 1", s.ArrivalCount())
		}
	})

	p.Process(ctx, &OrderCancelled{Meta: meta("e4", t0.Add(3*time.Second)), OrderID: "o1"})

	view(t, reg, func(s *state.BarState) {
		if s.HasOrder("o1") {
			t.Error("order still live")
		}
		if q := s.Queue("stirred"); len(q) != 0 {
			t.Errorf("stirred queue = %v, want empty", q)
		}
	})
}

func TestProcessUnknownOrderIsNoOp(t *testing.T) {
	p, _ := newTestProcessor(Options{})

	res := p.Process(context.Background(), &PrepStarted{Meta: meta("e1", t0), OrderID: "ghost"})
	if !res.Processed {
		t.Fatal("unknown order must not reject")
	}
	if len(res.Warnings) != 1 {
		t.Errorf("Warnings = %v", res.Warnings)
	}
}

func TestProcessStaffState(t *testing.T) {
	p, reg := newTestProcessor(Options{})
	ctx := context.Background()

	p.Process(ctx, &StaffState{Meta: meta("e1", t0), StaffID: "ana", Role: event.RoleBartender, Action: event.StaffClockIn, Station: "well", Skills: []string{"stirred"}})
	p.Process(ctx, &StaffState{Meta: meta("e2", t0.Add(time.Minute)), StaffID: "ana", Role: event.RoleBartender, Action: event.StaffBreakStart})

	view(t, reg, func(s *state.BarState) {
		b, _ := s.Bartender("ana")
		if !b.Active || b.Station != "well" || len(b.Skills) != 1 {
			t.Errorf("bartender = %+v", b)
		}
		want := t0.Add(time.Minute + BreakDuration)
		if b.BreakUntil == nil || !b.BreakUntil.Equal(want) {
			t.Errorf("BreakUntil = %v, want %v", b.BreakUntil, want)
		}
		if len(s.ActiveBartenders(t0.Add(2*time.Minute))) != 0 {
			t.Error("bartender on break counted as active")
		}
	})

	p.Process(ctx, &StaffState{Meta: meta("e3", t0.Add(5*time.Minute)), StaffID: "ana", Role: event.RoleBartender, Action: event.StaffBreakEnd})
	p.Process(ctx, &StaffState{Meta: meta("e4", t0.Add(6*time.Minute)), StaffID: "ana", Role: event.RoleBartender, Action: event.StaffStationChange, Station: "service"})

	view(t, reg, func(s *state.BarState) {
		b, _ := s.Bartender("ana")
		if b.BreakUntil != nil || b.Station != "service" || len(b.Skills) != 1 {
			t.Errorf("bartender = %+v", b)
		}
	})

	p.Process(ctx, &StaffState{Meta: meta("e5", t0.Add(7*time.Minute)), StaffID: "ana", Role: event.RoleBartender, Action: event.StaffClockOut})
	view(t, reg, func(s *state.BarState) {
		b, _ := s.Bartender("ana")
		if b.Active {
			t.Error("bartender still active after clock out")
		}
	})
}

func TestProcessStaffStateOtherRole(t *testing.T) {
	p, reg := newTestProcessor(Options{})

	res := p.Process(context.Background(), &StaffState{Meta: meta("e1", t0), StaffID: "rui", Role: "barback", Action: event.StaffClockIn})
	if !res.Processed {
		t.Fatal("other roles must be accepted")
	}
	view(t, reg, func(s *state.BarState) {
		if _, ok := s.Bartender("rui"); ok {
			t.Error("barback stored as bartender")
		}
	})
}

func TestProcessInventorySnapshotOverwrites(t *testing.T) {
	p, reg := newTestProcessor(Options{})
	ctx := context.Background()

	p.Process(ctx, &InventorySnapshot{Meta: meta("e1", t0), SnapshotType: event.SnapshotFull, Levels: []StockLevel{{SKU: "shot", Qty: 10}, {SKU: "spritz", Qty: 4}}})
	p.Process(ctx, &InventorySnapshot{Meta: meta("e2", t0.Add(time.Minute)), SnapshotType: event.SnapshotDelta, Levels: []StockLevel{{SKU: "shot", Qty: 3}}})

	view(t, reg, func(s *state.BarState) {
		if s.Stock("shot") != 3 {
			t.Errorf("Stock(shot) = %d, want 3", s.Stock("shot"))
		}
		if s.Stock("spritz") != 4 {
			t.Errorf("Stock(spritz) = %d, want 4", s.Stock("spritz"))
		}
	})
}

func TestProcessRecoversFromPanic(t *testing.T) {
	cat := &MockCatalog{LookupFunc: func(context.Context, string, []string) (map[string]catalog.Mapping, error) {
		panic("boom")
	}}
	p, _ := newTestProcessor(Options{Catalog: cat})

	res := p.Process(context.Background(), &OrderPaid{Meta: meta("e1", t0), OrderID: "o1", Items: []Item{{SKU: "negroni", Qty: 1}}})
	if res.Processed {
		t.Fatal("panicking event reported as processed")
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a warning describing the panic")
	}
}

func TestProcessRawUnknownType(t *testing.T) {
	p, _ := newTestProcessor(Options{})

	res := p.ProcessRaw(context.Background(), []byte(`{"type":"nope","venue_id":"v","bar_id":"b","timestamp":"2026-10-17T21:00:00Z"}`))
	if res.Processed {
		t.Fatal("unknown type reported as processed")
	}
}

func TestProcessBatch(t *testing.T) {
	p, reg := newTestProcessor(Options{})

	// The bad staff event is input #5 but sorts to position 1.
	offsets := []int{0, 10, 20, 30, 40, 5, 60, 70, 80, 90}
	evs := make([]Event, 0, len(offsets))
	for i, off := range offsets {
		m := meta(fmt.Sprintf("e%d", i), t0.Add(time.Duration(off)*time.Second))
		if i == 5 {
			evs = append(evs, &StaffState{Meta: m, StaffID: "ana", Role: event.RoleBartender, Action: "dance"})
			continue
		}
		evs = append(evs, &OrderCreated{Meta: m, OrderID: fmt.Sprintf("o%d", i)})
	}

	got := p.ProcessBatch(context.Background(), evs)
	if got.Accepted != 9 || got.Rejected != 1 {
		t.Fatalf("accepted=%d rejected=%d, want 9/1", got.Accepted, got.Rejected)
	}
	if len(got.Errors) != 1 {
		t.Fatalf("Errors = %+v", got.Errors)
	}
	if got.Errors[0].Index != 1 {
		t.Errorf("error index = %d, want 1", got.Errors[0].Index)
	}
	if got.Errors[0].Type != event.EventStaffState {
		t.Errorf("error type = %s", got.Errors[0].Type)
	}

	view(t, reg, func(s *state.BarState) {
		if len(s.LiveOrders()) != 9 {
			t.Errorf("live orders = %d, want 9", len(s.LiveOrders()))
		}
	})
}

func TestReplayDoesNotRelog(t *testing.T) {
	log := &MockEventLog{}
	p, reg := newTestProcessor(Options{Log: log})

	stream := &MockStreamConsumer{}
	for _, e := range []Event{
		&OrderCreated{Meta: meta("e1", t0), OrderID: "o1"},
		&OrderPaid{Meta: meta("e2", t0.Add(time.Second)), OrderID: "o1", Items: []Item{{SKU: "negroni", Qty: 1}}},
	} {
		data, _ := json.Marshal(ToEnvelope(e))
		stream.AddMessage(data)
	}
	stream.AddMessage([]byte(`not json`))

	res, err := p.Replay(context.Background(), stream, 0)
	if err != nil {
		t.Fatalf("Replay() error: %v", err)
	}
	if res.Accepted != 2 {
		t.Errorf("Accepted = %d, want 2", res.Accepted)
	}
	if len(log.Appended) != 0 {
		t.Errorf("replay appended %d records", len(log.Appended))
	}
	view(t, reg, func(s *state.BarState) {
		if len(s.Queue("stirred")) != 1 {
			t.Error("replayed order not queued")
		}
	})
}

func TestReplayTwiceRebuildsSameState(t *testing.T) {
	ctx := context.Background()
	stream := &MockStreamConsumer{}
	pub := &MockPublisher{PublishFunc: func(_ context.Context, _ string, data []byte) error {
		stream.AddMessage(data)
		return nil
	}}
	live, _ := newTestProcessor(Options{Log: NewStreamLog(pub, "")})

	live.Process(ctx, &OrderCreated{Meta: meta("e1", t0), OrderID: "o1"})
	live.Process(ctx, &OrderPaid{Meta: meta("e2", t0.Add(time.Second)), OrderID: "o1", Items: []Item{{SKU: "negroni", Qty: 1}}})
	live.Process(ctx, &OrderCreated{Meta: meta("e3", t0.Add(2*time.Second)), OrderID: "o2"})
	live.Process(ctx, &OrderPaid{Meta: meta("e4", t0.Add(3*time.Second)), OrderID: "o2", Items: []Item{{SKU: "mojito", Qty: 1}}})

	restart := func() (BatchResult, *state.Registry) {
		t.Helper()
		p, reg := newTestProcessor(Options{})
		res, err := p.Replay(ctx, stream, 0)
		if err != nil {
			t.Fatalf("Replay() error: %v", err)
		}
		return res, reg
	}

	first, reg1 := restart()
	if first.Accepted != 4 {
		t.Fatalf("first replay Accepted = %d, want 4", first.Accepted)
	}

	// Logged after the first restart.
	live.Process(ctx, &OrderCancelled{Meta: meta("e5", t0.Add(4*time.Second)), OrderID: "o1"})

	second, reg2 := restart()
	if second.Accepted != 5 {
		t.Fatalf("second replay Accepted = %d, want 5", second.Accepted)
	}
	if len(second.Warnings) != 0 {
		t.Errorf("second replay warnings = %+v", second.Warnings)
	}

	view(t, reg1, func(s *state.BarState) {
		if len(s.LiveOrders()) != 2 {
			t.Errorf("first replay live orders = %d, want 2", len(s.LiveOrders()))
		}
	})
	view(t, reg2, func(s *state.BarState) {
		if _, ok := s.Order("o1"); ok {
			t.Error("cancelled order still live after second replay")
		}
		if len(s.Queue("stirred")) != 0 {
			t.Errorf("stirred queue = %v, want empty", s.Queue("stirred"))
		}
		if got := s.Queue("muddled"); len(got) != 1 || got[0] != "o2" {
			t.Errorf("muddled queue = %v, want [o2]", got)
		}
	})
}

func TestMultiLogAppendsToEveryLog(t *testing.T) {
	ok := &MockEventLog{}
	failing := &MockEventLog{AppendFunc: func(context.Context, event.Envelope) error {
		return errors.New("mongo down")
	}}
	tail := &MockEventLog{}

	err := MultiLog{ok, failing, tail}.Append(context.Background(), ToEnvelope(&OrderCreated{Meta: meta("e1", t0), OrderID: "o1"}))
	if err == nil || err.Error() != "mongo down" {
		t.Fatalf("Append() error = %v, want mongo down", err)
	}
	if len(ok.Appended) != 1 || len(tail.Appended) != 1 {
		t.Errorf("appended ok=%d tail=%d, want 1/1", len(ok.Appended), len(tail.Appended))
	}
}

func TestReplayFetchError(t *testing.T) {
	p, _ := newTestProcessor(Options{})
	stream := &MockStreamConsumer{FetchFunc: func(context.Context, int) ([]aptevents.StreamMessage, error) {
		return nil, errors.New("no stream")
	}}

	if _, err := p.Replay(context.Background(), stream, 10); err == nil {
		t.Fatal("expected fetch error")
	}
}

func TestReplayEnvelopes(t *testing.T) {
	log := &MockEventLog{}
	p, reg := newTestProcessor(Options{Log: log})

	envs := []event.Envelope{
		ToEnvelope(&OrderPaid{Meta: meta("e2", t0.Add(time.Second)), OrderID: "o1", Items: []Item{{SKU: "mojito", Qty: 1}}}),
		ToEnvelope(&OrderCreated{Meta: meta("e1", t0), OrderID: "o1"}),
		{EventType: "bogus"},
	}

	res := p.ReplayEnvelopes(context.Background(), envs)
	if res.Accepted != 2 {
		t.Errorf("Accepted = %d, want 2", res.Accepted)
	}
	if len(log.Appended) != 0 {
		t.Error("replayed envelopes were logged again")
	}
	view(t, reg, func(s *state.BarState) {
		if len(s.Queue("muddled")) != 1 {
			t.Error("replayed order not queued")
		}
	})
}
