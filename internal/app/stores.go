package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/firestore"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	gcfirestore "cloud.google.com/go/firestore"
)

// Stores are the persistence backends selected by a Config.
type Stores struct {
	Carts    repository.CartStore
	Products repository.ProductStore
	Audit    repository.AuditStore
	Mirror   cache.Mirror

	closers []func() error
}

func (s *Stores) onClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Close releases the connections in reverse order of opening.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// OpenStores connects the remote backend, the audit store and the local
// mirror. Nothing stays open when it fails.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Stores{}
	if err := s.open(ctx, cfg, logger); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Stores) open(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var fsClient *gcfirestore.Client
	firestoreClient := func() (*gcfirestore.Client, error) {
		if fsClient != nil {
			return fsClient, nil
		}
		c, err := firestore.NewClient(ctx, cfg.FirestoreProject, cfg.FirestoreCredentialsFile)
		if err != nil {
			return nil, err
		}
		fsClient = c
		s.onClose(c.Close)
		return c, nil
	}

	switch cfg.Backend {
	case config.BackendMemory:
		s.Carts = repository.NewMemoryCartStore()
		s.Products = repository.NewMemoryProductStore()
	case config.BackendMongo:
		db, err := repository.ConnectMongoDB(ctx, repository.MongoConfig{
			URI:         cfg.MongoURI,
			Database:    cfg.MongoDBName,
			MaxPoolSize: uint64(cfg.MongoMaxPoolSize),
		})
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		s.onClose(func() error { return db.Client().Disconnect(context.Background()) })
		carts := repository.NewMongoCartStore(db)
		products := repository.NewMongoProductStore(db)
		if err := carts.CreateIndexes(ctx); err != nil {
			return err
		}
		if err := products.CreateIndexes(ctx); err != nil {
			return err
		}
		s.Carts, s.Products = carts, products
		logger.Info("connected to MongoDB", zap.String("database", cfg.MongoDBName))
	case config.BackendFirestore:
		c, err := firestoreClient()
		if err != nil {
			return err
		}
		s.Carts = firestore.NewCartStore(c)
		s.Products = firestore.NewProductStore(c)
		logger.Info("connected to Firestore", zap.String("project", cfg.FirestoreProject))
	default:
		return fmt.Errorf("%w: backend %q", config.ErrInvalidConfig, cfg.Backend)
	}

	switch cfg.AuditDriver {
	case config.BackendMemory:
		s.Audit = repository.NewMemoryAuditStore()
	case config.AuditPostgres:
		cred := &repository.Credentials{
			Host:              cfg.DBHost,
			Port:              cfg.DBPort,
			User:              cfg.DBUser,
			Password:          cfg.DBPassword,
			DBName:            cfg.DBName,
			MigrationsDirPath: cfg.MigrationsPath,
		}
		store, err := repository.NewPostgresAuditStore(cred)
		if err != nil {
			return fmt.Errorf("failed to connect to audit database: %w", err)
		}
		s.onClose(store.Close)
		if err := store.RunMigrations(cred); err != nil {
			return err
		}
		s.Audit = store
		logger.Info("connected to PostgreSQL audit store", zap.String("host", cfg.DBHost))
	case config.BackendFirestore:
		c, err := firestoreClient()
		if err != nil {
			return err
		}
		s.Audit = firestore.NewAuditStore(c)
	default:
		return fmt.Errorf("%w: audit driver %q", config.ErrInvalidConfig, cfg.AuditDriver)
	}

	switch cfg.LocalStore {
	case config.BackendMemory:
		s.Mirror = cache.NewMemoryMirror()
	case config.LocalRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		s.onClose(client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		s.Mirror = cache.NewRedisMirror(client, cache.DefaultMirrorTTL)
		logger.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))
	case config.LocalSQLite:
		mirror, err := cache.NewSQLiteMirror(cfg.SQLitePath)
		if err != nil {
			return err
		}
		s.onClose(mirror.Close)
		if err := mirror.RunMigrations(cfg.SQLiteMigrationsPath); err != nil {
			return err
		}
		s.Mirror = mirror
	default:
		return fmt.Errorf("%w: local store %q", config.ErrInvalidConfig, cfg.LocalStore)
	}
	return nil
}
