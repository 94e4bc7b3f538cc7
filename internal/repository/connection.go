package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	DefaultMongoMaxPoolSize = 20
	mongoPingTimeout        = 5 * time.Second
)

// MongoConfig selects the database and sizes the client pool. Cart saves are
// debounced per session, so a small pool covers a storefront instance.
type MongoConfig struct {
	URI         string
	Database    string
	MaxPoolSize uint64
}

func (c MongoConfig) clientOptions() *options.ClientOptions {
	poolSize := c.MaxPoolSize
	if poolSize == 0 {
		poolSize = DefaultMongoMaxPoolSize
	}
	// No warm minimum: idle instances release their connections. Cart writes
	// are whole-document upserts, safe to retry.
	return options.Client().
		ApplyURI(c.URI).
		SetAppName("storefront").
		SetMaxPoolSize(poolSize).
		SetMaxConnIdleTime(5 * time.Minute).
		SetServerSelectionTimeout(mongoPingTimeout).
		SetRetryWrites(true).
		SetRetryReads(true)
}

// ConnectMongoDB connects and waits for a primary to answer a ping.
func ConnectMongoDB(ctx context.Context, cfg MongoConfig) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, cfg.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, mongoPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(cfg.Database), nil
}
