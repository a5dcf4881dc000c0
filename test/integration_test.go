//go:build integration

package test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/joao-fontenele/storefront/internal/admin"
	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/cache"
	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/email"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/products"
	"github.com/joao-fontenele/storefront/internal/worker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func adminContext(ctx context.Context) context.Context {
	return auth.WithSession(ctx, &auth.Session{
		Customer: domain.Customer{ID: "admin-1", Name: "Admin", Role: domain.RoleAdmin},
	})
}

var shipping = domain.ShippingDetails{
	Name:    "Asha",
	Email:   "asha@shop.test",
	Phone:   "9999999999",
	Address: "12 MG Road",
	City:    "Pune",
	Pincode: "411001",
}

// seedKurta saves a kurta with M/Gold (stock 3) and L/Gold (stock 1).
func seedKurta(ctx context.Context, t *testing.T, a *admin.CatalogAdmin) domain.Product {
	t.Helper()

	var grid admin.VariantGrid
	grid.Set("M", "Gold", admin.Cell{Stock: 3, OriginalPrice: decimal.NewFromInt(2000), Discount: decimal.NewFromInt(25)})
	grid.Set("L", "Gold", admin.Cell{Stock: 1, OriginalPrice: decimal.NewFromInt(2000)})

	res, err := a.Save(adminContext(ctx), domain.Product{Name: "Silk Kurta", Category: "Ethnic"}, grid)
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Len(t, res.Variants, 2)
	return res.Product
}

func startEmailService(t *testing.T) (*email.Client, func() []email.Message) {
	t.Helper()

	h := email.NewHandler(discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /send", h.HandleSend)
	mux.HandleFunc("GET /recent", h.HandleRecent)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	recent := func() []email.Message {
		resp, err := http.Get(server.URL + "/recent")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		var out []email.Message
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	return email.NewClient(server.URL, &http.Client{Timeout: 10 * time.Second}), recent
}

func stockOf(t *testing.T, cat *catalog.Catalog, productID, size string) int {
	t.Helper()
	require.NoError(t, cat.LoadVariants(context.Background(), productID))
	v, err := cat.Resolve(productID, size, "Gold")
	require.NoError(t, err)
	return v.Stock
}

func TestPostgresCheckoutAndFulfillment(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	db := pg.Open(t)

	logger := discardLogger()
	productRepo := products.NewRepository(db)
	orderRepo := orders.NewOrderRepository(db)

	cat := catalog.New(productRepo, logger)
	require.NoError(t, cat.Load(ctx))
	catalogAdmin := admin.New(productRepo, cat, logger)
	kurta := seedKurta(ctx, t, catalogAdmin)
	id := kurta.ID.String()

	service, err := checkout.NewService(orderRepo, orderRepo, cat, logger)
	require.NoError(t, err)

	c := cart.New()
	c.Add(kurta, "M", "Gold", decimal.NewFromInt(1500), 2)
	order, err := service.Checkout(ctx, c, shipping, "")
	require.NoError(t, err)
	assert.Equal(t, "ORD-001", order.ID)
	assert.True(t, decimal.NewFromInt(3000).Equal(order.Total))
	assert.Zero(t, c.Len())

	stored, err := orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)
	require.Len(t, stored.Items, 1)
	assert.True(t, decimal.NewFromInt(1500).Equal(stored.Items[0].Price))

	mailer, recent := startEmailService(t)
	handler := worker.NewFulfillmentHandler(productRepo, orderRepo, mailer, logger)

	payload, err := json.Marshal(domain.NewOrderCreatedEvent(order))
	require.NoError(t, err)
	require.NoError(t, handler.Handle(ctx, payload))

	confirmed, err := orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, confirmed.Status)
	assert.Equal(t, 1, stockOf(t, cat, id, "M"))

	emails := recent()
	require.Len(t, emails, 1)
	assert.Equal(t, "Order Confirmation: ORD-001", emails[0].Subject)

	require.NoError(t, handler.Handle(ctx, payload))
	assert.Equal(t, 1, stockOf(t, cat, id, "M"), "redelivery takes no stock")

	list, err := orderRepo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Items, 1)

	_, err = orderRepo.UpdateStatus(ctx, order.ID, domain.OrderStatusPending)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestPostgresFulfillmentShortfall(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	db := pg.Open(t)

	logger := discardLogger()
	productRepo := products.NewRepository(db)
	orderRepo := orders.NewOrderRepository(db)

	cat := catalog.New(productRepo, logger)
	require.NoError(t, cat.Load(ctx))
	kurta := seedKurta(ctx, t, admin.New(productRepo, cat, logger))
	id := kurta.ID.String()

	service, err := checkout.NewService(orderRepo, orderRepo, cat, logger)
	require.NoError(t, err)

	c := cart.New()
	c.Add(kurta, "M", "Gold", decimal.NewFromInt(1500), 2)
	c.Add(kurta, "L", "Gold", decimal.NewFromInt(2000), 1)
	order, err := service.Checkout(ctx, c, shipping, "")
	require.NoError(t, err)

	// Someone else buys the last L before the worker runs.
	require.NoError(t, productRepo.DecrementStock(ctx, domain.VariantKey{ProductID: id, Size: "L", Color: "Gold"}, 1))

	mailer, recent := startEmailService(t)
	handler := worker.NewFulfillmentHandler(productRepo, orderRepo, mailer, logger)

	payload, err := json.Marshal(domain.NewOrderCreatedEvent(order))
	require.NoError(t, err)
	require.NoError(t, handler.Handle(ctx, payload))

	stored, err := orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)
	assert.Equal(t, 3, stockOf(t, cat, id, "M"), "taken stock is released")

	emails := recent()
	require.Len(t, emails, 1)
	assert.Contains(t, emails[0].Subject, "On Hold")
}

func TestPostgresCatalogWrites(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	db := pg.Open(t)

	logger := discardLogger()
	repo := products.NewRepository(db)
	cat := catalog.New(repo, logger)
	require.NoError(t, cat.Load(ctx))
	catalogAdmin := admin.New(repo, cat, logger)
	kurta := seedKurta(ctx, t, catalogAdmin)
	id := kurta.ID.String()

	variants, err := repo.ListVariants(ctx, id)
	require.NoError(t, err)
	require.Len(t, variants, 2)
	assert.Equal(t, "M", variants[0].Size, "variants keep insertion order")
	assert.True(t, decimal.NewFromInt(1500).Equal(variants[0].Price))

	clash := domain.NewVariant(id, "S", "Gold", 1, decimal.NewFromInt(100), decimal.Zero)
	clash.ID = variants[0].ID
	_, err = repo.UpsertVariants(ctx, id, []domain.ProductVariant{clash})
	require.Error(t, err)
	assert.True(t, domain.IsDuplicateVariantError(err))

	_, err = repo.UpsertVariants(ctx, "7f1d6c3e-0000-4000-8000-000000000000",
		[]domain.ProductVariant{domain.NewVariant("x", "M", "Red", 1, decimal.NewFromInt(1), decimal.Zero)})
	require.Error(t, err)
	assert.True(t, domain.IsPersistenceError(err))

	mixed, err := repo.ListVariants(ctx, "not-a-uuid", id)
	require.NoError(t, err)
	assert.Len(t, mixed, 2)

	stray := domain.VariantKey{ProductID: "not-a-uuid", Size: "M", Color: "Gold"}
	assert.ErrorIs(t, repo.DecrementStock(ctx, stray, 1), domain.ErrInsufficientStock)
	assert.ErrorIs(t, repo.RestockVariant(ctx, stray, 1), domain.ErrVariantNotFound)

	n, err := catalogAdmin.DeleteVariants(adminContext(ctx), id, []domain.VariantKey{{ProductID: id, Size: "L", Color: "Gold"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	before, ok := cat.Product(id)
	require.True(t, ok)
	require.NoError(t, catalogAdmin.Delete(adminContext(ctx), id))
	left, err := repo.ListVariants(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, left, "variants go with their product")

	stale := before
	assert.False(t, cat.ApplyProductEvent(domain.ProductChangeEvent{Kind: domain.ChangeUpdate, Product: stale, Timestamp: time.Now()}),
		"an update read before the delete does not bring the product back")

	_, err = repo.GetProduct(ctx, id)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestKafkaOrderCreatedRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	brokers, cleanup := SetupKafka(ctx, t)
	defer cleanup()

	logger := discardLogger()
	producer := messaging.NewProducer(brokers, messaging.TopicOrderCreated)
	defer func() { _ = producer.Close() }()

	event := domain.OrderCreatedEvent{OrderID: "ORD-042", CustomerName: "Asha", Total: decimal.NewFromInt(99)}
	require.Eventually(t, func() bool {
		return producer.Publish(ctx, event.OrderID, event) == nil
	}, time.Minute, time.Second, "topic is auto-created on first write")

	consumer := messaging.NewConsumer(brokers, messaging.TopicOrderCreated, "integration-test", logger,
		messaging.WithStartOffset(kafka.FirstOffset))
	defer func() { _ = consumer.Close() }()

	consumeCtx, stop := context.WithTimeout(ctx, time.Minute)
	defer stop()

	var got domain.OrderCreatedEvent
	err := consumer.Consume(consumeCtx, func(ctx context.Context, payload []byte) error {
		if err := json.Unmarshal(payload, &got); err != nil {
			return err
		}
		stop()
		return nil
	})
	require.True(t, err == nil || errors.Is(err, context.Canceled), "consume: %v", err)
	assert.Equal(t, "ORD-042", got.OrderID)
	assert.True(t, decimal.NewFromInt(99).Equal(got.Total))
}

func TestMongoStores(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	uri, cleanup := SetupMongo(ctx, t)
	defer cleanup()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer func() { _ = client.Disconnect(context.Background()) }()
	db := client.Database("storefront_test")

	repo := products.NewMongoRepository(db)
	require.NoError(t, repo.EnsureIndexes(ctx))

	logger := discardLogger()
	cat := catalog.New(repo, logger)
	require.NoError(t, cat.Load(ctx))
	kurta := seedKurta(ctx, t, admin.New(repo, cat, logger))
	id := kurta.ID.String()

	variants, err := repo.ListVariants(ctx, id)
	require.NoError(t, err)
	require.Len(t, variants, 2)
	assert.Equal(t, "M", variants[0].Size)
	assert.True(t, decimal.NewFromInt(1500).Equal(variants[0].Price))

	key := domain.VariantKey{ProductID: id, Size: "L", Color: "Gold"}
	require.NoError(t, repo.DecrementStock(ctx, key, 1))
	assert.ErrorIs(t, repo.DecrementStock(ctx, key, 1), domain.ErrInsufficientStock)
	require.NoError(t, repo.RestockVariant(ctx, key, 2))

	store := orders.NewMongoStore(db)
	n, err := store.NextOrderNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	order := &domain.Order{
		ID:           domain.OrderID(n),
		CustomerName: "Asha",
		Items: []domain.OrderItem{
			{ProductID: id, Name: "Silk Kurta", Size: "M", Color: "Gold", Quantity: 1, Price: decimal.RequireFromString("1499.50")},
		},
		Status:    domain.OrderStatusPending,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	order.Total = domain.OrderTotal(order.Items)
	require.NoError(t, store.Create(ctx, order))
	assert.Error(t, store.Create(ctx, order))

	got, err := store.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, order.Total.Equal(got.Total))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "1499.5", got.Items[0].Price.String())

	updated, err := store.UpdateStatus(ctx, order.ID, domain.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, updated.Status)
	_, err = store.UpdateStatus(ctx, order.ID, domain.OrderStatusConfirmed)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = repo.DeleteProduct(ctx, id)
	require.NoError(t, err)
	left, err := repo.ListVariants(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestRedisListings(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	addr, cleanup := SetupRedis(ctx, t)
	defer cleanup()

	client, err := cache.NewRedisClient(ctx, addr)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	listings := cache.NewListings(client, "storefront", time.Minute)

	var names []string
	found, err := listings.Get(ctx, "products", "kurta", &names)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, listings.Set(ctx, "products", "kurta", []string{"Silk Kurta"}))
	found, err = listings.Get(ctx, "products", "kurta", &names)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"Silk Kurta"}, names)

	require.NoError(t, listings.Invalidate(ctx))
	found, err = listings.Get(ctx, "products", "kurta", &names)
	require.NoError(t, err)
	assert.False(t, found, "invalidation retires every cached listing")
}
