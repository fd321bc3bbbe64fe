package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/barqueue/pkg/event"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const eventLogCollection = "event_log"

type eventRecord struct {
	event.Envelope `bson:",inline"`
	ReceivedAt     time.Time `bson:"received_at"`
}

// EventLogRepo is an append-only raw event log.
type EventLogRepo struct {
	store *Store
	now   func() time.Time
}

func NewEventLogRepo(store *Store) *EventLogRepo {
	return &EventLogRepo{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (r *EventLogRepo) Start(ctx context.Context) error {
	coll, err := r.store.collection(eventLogCollection)
	if err != nil {
		return err
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "venue_id", Value: 1}, {Key: "bar_id", Value: 1}, {Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "event_id", Value: 1}}},
	}
	if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("cannot create event log indexes: %w", err)
	}
	return nil
}

func (r *EventLogRepo) Append(ctx context.Context, env event.Envelope) error {
	coll, err := r.store.collection(eventLogCollection)
	if err != nil {
		return err
	}
	if _, err := coll.InsertOne(ctx, eventRecord{Envelope: env, ReceivedAt: r.now()}); err != nil {
		return fmt.Errorf("cannot insert event %s: %w", env.EventID, err)
	}
	return nil
}

// Since returns logged events with timestamp at or after from, oldest first.
func (r *EventLogRepo) Since(ctx context.Context, from time.Time, limit int64) ([]event.Envelope, error) {
	coll, err := r.store.collection(eventLogCollection)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := coll.Find(ctx, bson.M{"timestamp": bson.M{"$gte": from}}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot find events: %w", err)
	}
	defer cursor.Close(ctx)

	var records []eventRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("cannot decode events: %w", err)
	}
	out := make([]event.Envelope, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Envelope)
	}
	return out, nil
}
