package events

import (
	"context"
	"fmt"

	aptevents "github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/barqueue/pkg/event"
)

const DefaultReplayLimit = 10000

// Replay rebuilds live state from a durable stream. Replayed events are not
// appended to the log again.
func (p *Processor) Replay(ctx context.Context, stream aptevents.StreamConsumer, limit int) (result BatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("replay panic: %v", r)
		}
	}()

	if limit <= 0 {
		limit = DefaultReplayLimit
	}

	messages, err := stream.Fetch(ctx, limit)
	if err != nil {
		return BatchResult{}, fmt.Errorf("fetch event log: %w", err)
	}

	evs := make([]Event, 0, len(messages))
	for _, msg := range messages {
		e, decodeErr := Decode(msg.Data)
		if decodeErr != nil {
			p.logger.Debug("skipping undecodable logged event", "sequence", msg.Sequence, "error", decodeErr)
			continue
		}
		evs = append(evs, e)
	}

	result = p.processBatch(ctx, evs, false)
	p.logger.Info("event stream replayed", "fetched", len(messages), "accepted", result.Accepted, "rejected", result.Rejected)
	return result, nil
}

// ReplayEnvelopes is Replay for logs that hand back stored envelopes.
func (p *Processor) ReplayEnvelopes(ctx context.Context, envs []event.Envelope) BatchResult {
	evs := make([]Event, 0, len(envs))
	for _, env := range envs {
		e, err := FromEnvelope(env)
		if err != nil {
			continue
		}
		evs = append(evs, e)
	}

	result := p.processBatch(ctx, evs, false)
	p.logger.Info("event log replayed", "records", len(envs), "accepted", result.Accepted, "rejected", result.Rejected)
	return result
}
