package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/products"
)

func TestOpen_Memory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stores, err := Open(context.Background(), &config.Config{StorageDriver: config.DriverMemory}, logger)
	require.NoError(t, err)
	assert.IsType(t, &products.MemoryStore{}, stores.Products)
	assert.NoError(t, stores.Close(context.Background()))
}

func TestOpen_UnknownDriver(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := Open(context.Background(), &config.Config{StorageDriver: "sqlite"}, logger)
	assert.ErrorContains(t, err, "sqlite")
}
