// Package storage opens the product and order stores for the configured
// driver.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/joao-fontenele/storefront/internal/admin"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/products"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

type Products interface {
	catalog.Source
	admin.Store
	DecrementStock(ctx context.Context, key domain.VariantKey, quantity int) error
	RestockVariant(ctx context.Context, key domain.VariantKey, quantity int) error
}

type Orders interface {
	checkout.OrderStore
	checkout.IDSequence
	admin.OrderStore
	GetByID(ctx context.Context, id string) (*domain.Order, error)
}

var (
	_ Products = (*products.Repository)(nil)
	_ Products = (*products.MongoRepository)(nil)
	_ Products = (*products.MemoryStore)(nil)
	_ Orders   = (*orders.OrderRepository)(nil)
	_ Orders   = (*orders.MongoStore)(nil)
	_ Orders   = (*orders.MemoryStore)(nil)
)

type Stores struct {
	Products Products
	Orders   Orders
	close    func(ctx context.Context) error
}

// Open connects to the configured driver. The memory driver keeps state in
// process, so it only suits a single storefront with no worker.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stores, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		return openPostgres(ctx, cfg.PostgresURL, logger)
	case config.DriverMongo:
		return openMongo(ctx, cfg.MongoURI, cfg.MongoDB, logger)
	case config.DriverMemory:
		logger.Warn("using in-memory storage, data is lost on restart")
		return &Stores{
			Products: products.NewMemoryStore(),
			Orders:   orders.NewMemoryStore(),
			close:    func(context.Context) error { return nil },
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func openPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*Stores, error) {
	db, err := telemetry.OpenDB("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("connected to postgres")

	return &Stores{
		Products: products.NewRepository(db),
		Orders:   orders.NewOrderRepository(db),
		close:    func(context.Context) error { return db.Close() },
	}, nil
}

func openMongo(ctx context.Context, uri, database string, logger *slog.Logger) (*Stores, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	repo := products.NewMongoRepository(db)
	if err := repo.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure mongo indexes: %w", err)
	}
	logger.Info("connected to mongo", "database", database)

	return &Stores{
		Products: repo,
		Orders:   orders.NewMongoStore(db),
		close:    client.Disconnect,
	}, nil
}

func (s *Stores) Close(ctx context.Context) error {
	return s.close(ctx)
}
