package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joao-fontenele/storefront/internal/admin"
	"github.com/joao-fontenele/storefront/internal/cache"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/catalogctl"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/storage"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := catalogctl.NewRootCommand(open).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// open connects to the same storage as the storefront. Changes are
// published on product.changes when Kafka is configured so running
// storefronts pick them up.
func open(ctx context.Context) (*catalogctl.Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.StorageDriver == config.DriverMemory {
		return nil, errors.New("catalogctl needs shared storage, STORAGE_DRIVER=memory is not supported")
	}

	logger := telemetry.NewLogger(os.Stderr, "catalogctl", cfg.LogLevel)

	stores, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	closers := []func(context.Context) error{stores.Close}
	closeAll := func(ctx context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i](ctx))
		}
		return errors.Join(errs...)
	}

	cat := catalog.New(stores.Products, logger)
	if err := cat.Load(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("load catalog: %w", err), closeAll(ctx))
	}

	var opts []admin.Option
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, messaging.TopicProductChanges)
		closers = append(closers, func(context.Context) error { return producer.Close() })
		opts = append(opts, admin.WithPublisher(producer))
	}
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("listing cache unreachable, cached listings expire on their own", "error", err)
		} else {
			closers = append(closers, func(context.Context) error { return client.Close() })
			opts = append(opts, admin.WithInvalidator(cache.NewListings(client, "storefront", cfg.ListingTTL)))
		}
	}

	return &catalogctl.Env{
		Admin:   admin.New(stores.Products, cat, logger, opts...),
		Catalog: cat,
		Close:   closeAll,
	}, nil
}
