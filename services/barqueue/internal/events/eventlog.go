package events

import (
	"context"
	"encoding/json"
	"fmt"

	aptevents "github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/barqueue/pkg/event"
)

// EventLog is the durable append-only record of ingested events.
type EventLog interface {
	Append(ctx context.Context, env event.Envelope) error
}

// NopLog discards every record.
type NopLog struct{}

func (NopLog) Append(context.Context, event.Envelope) error { return nil }

// StreamLog appends JSON envelopes to a publisher topic, usually a JetStream
// subject so the log can be replayed.
type StreamLog struct {
	publisher aptevents.Publisher
	topic     string
}

func NewStreamLog(publisher aptevents.Publisher, topic string) *StreamLog {
	if topic == "" {
		topic = event.BarEventLogTopic
	}
	return &StreamLog{publisher: publisher, topic: topic}
}

func (l *StreamLog) Append(ctx context.Context, env event.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", env.EventID, err)
	}
	return l.publisher.Publish(ctx, l.topic, data)
}

// MultiLog appends to every log and returns the first error.
type MultiLog []EventLog

func (m MultiLog) Append(ctx context.Context, env event.Envelope) error {
	var first error
	for _, l := range m {
		if err := l.Append(ctx, env); err != nil && first == nil {
			first = err
		}
	}
	return first
}
