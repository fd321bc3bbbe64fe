package events

import (
	"context"
	"sync"

	aptevents "github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/barqueue/pkg/event"
	"github.com/appetiteclub/barqueue/services/barqueue/internal/catalog"
)

// MockCatalog is a test mock for catalog.Catalog
type MockCatalog struct {
	LookupFunc func(ctx context.Context, tenant string, skus []string) (map[string]catalog.Mapping, error)
	Tenants    []string
}

func (m *MockCatalog) Lookup(ctx context.Context, tenant string, skus []string) (map[string]catalog.Mapping, error) {
	m.Tenants = append(m.Tenants, tenant)
	if m.LookupFunc != nil {
		return m.LookupFunc(ctx, tenant, skus)
	}
	return map[string]catalog.Mapping{}, nil
}

// MockEventLog is a test mock for EventLog
type MockEventLog struct {
	mu         sync.Mutex
	Appended   []event.Envelope
	AppendFunc func(ctx context.Context, env event.Envelope) error
}

func (m *MockEventLog) Append(ctx context.Context, env event.Envelope) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, env)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Appended = append(m.Appended, env)
	return nil
}

// MockPublisher is a test mock for events.Publisher
type MockPublisher struct {
	PublishedEvents []PublishedEvent
	PublishFunc     func(ctx context.Context, topic string, data []byte) error
}

type PublishedEvent struct {
	Topic string
	Data  []byte
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, data []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, data)
	}
	m.PublishedEvents = append(m.PublishedEvents, PublishedEvent{Topic: topic, Data: data})
	return nil
}

// MockStreamConsumer is a test mock for events.StreamConsumer
type MockStreamConsumer struct {
	messages            []aptevents.StreamMessage
	FetchFunc           func(ctx context.Context, maxMessages int) ([]aptevents.StreamMessage, error)
	SubscribeStreamFunc func(ctx context.Context, handler aptevents.HandlerFunc) error
}

func (m *MockStreamConsumer) Fetch(ctx context.Context, maxMessages int) ([]aptevents.StreamMessage, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, maxMessages)
	}
	return m.messages, nil
}

func (m *MockStreamConsumer) SubscribeStream(ctx context.Context, handler aptevents.HandlerFunc) error {
	if m.SubscribeStreamFunc != nil {
		return m.SubscribeStreamFunc(ctx, handler)
	}
	return nil
}

func (m *MockStreamConsumer) AddMessage(data []byte) {
	m.messages = append(m.messages, aptevents.StreamMessage{Data: data})
}

// MockSubscriber is a test mock for events.Subscriber
type MockSubscriber struct {
	Handlers map[string]aptevents.HandlerFunc
}

func (m *MockSubscriber) Subscribe(_ context.Context, topic string, handler aptevents.HandlerFunc) error {
	if m.Handlers == nil {
		m.Handlers = make(map[string]aptevents.HandlerFunc)
	}
	m.Handlers[topic] = handler
	return nil
}
