package events

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	aptevents "github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/barqueue/pkg/event"
)

// Subscriber feeds bar events received over the bus into the processor.
type Subscriber struct {
	subscriber aptevents.Subscriber
	processor  *Processor
	topic      string
	logger     apt.Logger
}

func NewSubscriber(subscriber aptevents.Subscriber, processor *Processor, topic string, logger apt.Logger) *Subscriber {
	if topic == "" {
		topic = event.BarEventsTopic
	}
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Subscriber{
		subscriber: subscriber,
		processor:  processor,
		topic:      topic,
		logger:     logger,
	}
}

func (s *Subscriber) Start(ctx context.Context) error {
	s.logger.Info("starting bar events subscriber", "topic", s.topic)

	if err := s.subscriber.Subscribe(ctx, s.topic, s.handleEvent); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.topic, err)
	}
	return nil
}

// handleEvent never returns an error; a bad event must not be redelivered.
func (s *Subscriber) handleEvent(ctx context.Context, msg []byte) error {
	res := s.processor.ProcessRaw(ctx, msg)
	if !res.Processed {
		s.logger.Info("bar event rejected", "warnings", res.Warnings)
		return nil
	}
	if len(res.Warnings) > 0 {
		s.logger.Info("bar event processed with warnings", "warnings", res.Warnings)
	}
	return nil
}
