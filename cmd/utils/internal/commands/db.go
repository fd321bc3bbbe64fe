package commands

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func connect(ctx context.Context, config *apt.Config, logger apt.Logger) (*mongo.Client, *mongo.Database, error) {
	mongoURL := config.GetStringOrDef("db.mongo.url", "mongodb://localhost:27017")
	dbName := config.GetStringOrDef("db.mongo.name", "barqueue")

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("ping mongodb: %w", err)
	}

	logger.Info("Connected to MongoDB", "database", dbName)
	return client, client.Database(dbName), nil
}

// ClearDemo removes persisted configs and logged events of the demo bar.
func ClearDemo(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	client, db, err := connect(ctx, config, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	venueID, barID := demoTarget(config)
	filter := bson.M{"venue_id": venueID, "bar_id": barID}

	for _, name := range []string{"engine_configs", "event_log"} {
		res, err := db.Collection(name).DeleteMany(ctx, filter)
		if err != nil {
			return fmt.Errorf("clear %s: %w", name, err)
		}
		logger.Info("Demo documents removed", "collection", name, "count", res.DeletedCount)
	}
	return nil
}

// ResetDB drops the whole barqueue database.
func ResetDB(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	client, db, err := connect(ctx, config, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	logger.Infof("Dropping database %s, this cannot be undone", db.Name())
	if err := db.RunCommand(ctx, bson.D{{Key: "dropDatabase", Value: 1}}).Err(); err != nil {
		return fmt.Errorf("drop database %s: %w", db.Name(), err)
	}
	logger.Info("Database dropped", "database", db.Name())
	return nil
}
