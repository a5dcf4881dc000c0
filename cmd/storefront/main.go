package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/storefront/internal/admin"
	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/cache"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/storage"
	"github.com/joao-fontenele/storefront/internal/storefront"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const serviceName = "storefront"

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("storefront stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := telemetry.NewLogger(os.Stdout, serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, serviceName, version)
	if err != nil {
		return fmt.Errorf("init tracer provider: %w", err)
	}
	defer shutdown(logger, "tracer provider", shutdownTracer)

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, version)
	if err != nil {
		return fmt.Errorf("init meter provider: %w", err)
	}
	defer shutdown(logger, "meter provider", shutdownMeter)

	stores, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer shutdown(logger, "storage", stores.Close)

	cat := catalog.New(stores.Products, logger)
	if err := cat.Load(ctx); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	var (
		listings     *cache.Listings
		adminOpts    []admin.Option
		checkoutOpts []checkout.Option
		invalidator  messaging.Invalidator
		listingCache storefront.ListingCache
	)

	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() { _ = client.Close() }()

		listings = cache.NewListings(client, serviceName, cfg.ListingTTL)
		adminOpts = append(adminOpts, admin.WithInvalidator(listings))
		invalidator = listings
		listingCache = listings
		logger.Info("listing cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.ListingTTL)
	}

	var feed *messaging.Consumer
	if len(cfg.KafkaBrokers) > 0 {
		orderProducer := messaging.NewProducer(cfg.KafkaBrokers, messaging.TopicOrderCreated)
		defer func() { _ = orderProducer.Close() }()
		changeProducer := messaging.NewProducer(cfg.KafkaBrokers, messaging.TopicProductChanges)
		defer func() { _ = changeProducer.Close() }()

		checkoutOpts = append(checkoutOpts, checkout.WithPublisher(orderProducer))
		adminOpts = append(adminOpts, admin.WithPublisher(changeProducer))

		// Every replica reads the whole change stream, so each gets its own group.
		feed = messaging.NewConsumer(cfg.KafkaBrokers, messaging.TopicProductChanges, instanceGroup(), logger,
			messaging.WithStartOffset(kafka.LastOffset))
		defer func() { _ = feed.Close() }()
	}

	checkoutService, err := checkout.NewService(stores.Orders, stores.Orders, cat, logger, checkoutOpts...)
	if err != nil {
		return err
	}

	provider := auth.NewMemoryProvider()
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if _, err := provider.AddAccount(cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword, domain.RoleAdmin); err != nil {
			return fmt.Errorf("seed admin account: %w", err)
		}
	} else {
		logger.Warn("ADMIN_EMAIL or ADMIN_PASSWORD not set, admin console is unreachable")
	}

	carts := storefront.NewCartSessions()
	handler := storefront.NewHandler(storefront.Deps{
		Catalog:  cat,
		Carts:    carts,
		Checkout: checkoutService,
		Admin:    admin.New(stores.Products, cat, logger, adminOpts...),
		Orders:   admin.NewOrderDesk(stores.Orders, logger),
		Auth:     provider,
		Listings: listingCache,
	}, logger)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      otelhttp.NewHandler(storefront.NewRouter(handler, provider, metricsHandler, logger), serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting storefront", "addr", server.Addr, "storage", cfg.StorageDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if feed != nil {
		productFeed := messaging.NewProductFeed(cat, invalidator, logger)
		g.Go(func() error {
			if err := feed.Consume(gctx, productFeed.Handle); err != nil && gctx.Err() == nil {
				return fmt.Errorf("product feed: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		every(gctx, cfg.CatalogRefresh, func() {
			if err := cat.Load(gctx); err != nil && gctx.Err() == nil {
				logger.ErrorContext(gctx, "failed to refresh catalog", "error", err)
			}
		})
		return nil
	})

	g.Go(func() error {
		every(gctx, cfg.CartIdleTTL/4, func() {
			if n := carts.Sweep(cfg.CartIdleTTL); n > 0 {
				logger.Info("swept idle carts", "count", n, "remaining", carts.Len())
			}
		})
		return nil
	})

	return g.Wait()
}

func every(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func instanceGroup() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = uuid.NewString()
	}
	return serviceName + "-" + host
}

func shutdown(logger *slog.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Error("shutdown error", "component", name, "error", err)
	}
}
