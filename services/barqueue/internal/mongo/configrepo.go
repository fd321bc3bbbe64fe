package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/appetiteclub/barqueue/services/barqueue/internal/state"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const engineConfigCollection = "engine_configs"

// ConfigRepo stores one engine config document per venue and bar.
type ConfigRepo struct {
	store *Store
}

func NewConfigRepo(store *Store) *ConfigRepo {
	return &ConfigRepo{store: store}
}

// Start creates the indexes; the store must already be started.
func (r *ConfigRepo) Start(ctx context.Context) error {
	coll, err := r.store.collection(engineConfigCollection)
	if err != nil {
		return err
	}
	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "venue_id", Value: 1}, {Key: "bar_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(ctx, indexModel); err != nil {
		return fmt.Errorf("cannot create venue_id/bar_id index: %w", err)
	}
	return nil
}

func (r *ConfigRepo) Save(ctx context.Context, cfg state.EngineConfig) error {
	coll, err := r.store.collection(engineConfigCollection)
	if err != nil {
		return err
	}

	filter := bson.M{"venue_id": cfg.VenueID, "bar_id": cfg.BarID}
	update := bson.M{"$set": cfg}

	if _, err := coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("cannot save engine config: %w", err)
	}
	return nil
}

func (r *ConfigRepo) Get(ctx context.Context, venueID, barID string) (*state.EngineConfig, error) {
	coll, err := r.store.collection(engineConfigCollection)
	if err != nil {
		return nil, err
	}

	var cfg state.EngineConfig
	err = coll.FindOne(ctx, bson.M{"venue_id": venueID, "bar_id": barID}).Decode(&cfg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot find engine config: %w", err)
	}
	return &cfg, nil
}

func (r *ConfigRepo) List(ctx context.Context) ([]state.EngineConfig, error) {
	coll, err := r.store.collection(engineConfigCollection)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "venue_id", Value: 1}, {Key: "bar_id", Value: 1}})
	cursor, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot find engine configs: %w", err)
	}
	defer cursor.Close(ctx)

	var configs []state.EngineConfig
	if err := cursor.All(ctx, &configs); err != nil {
		return nil, fmt.Errorf("cannot decode engine configs: %w", err)
	}
	return configs, nil
}
