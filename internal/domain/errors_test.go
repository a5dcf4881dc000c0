package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := &ValidationError{Violations: []Violation{
		{Field: "name", Reason: "is required"},
		{Field: "pincode", Reason: "is required"},
	}}

	assert.Equal(t, "validation failed: name: is required; pincode: is required", err.Error())
	assert.True(t, errors.Is(fmt.Errorf("checkout: %w", err), &ValidationError{}))
	assert.True(t, IsValidationError(err))
	assert.False(t, IsPersistenceError(err))
}

func TestInsufficientStockError(t *testing.T) {
	err := &InsufficientStockError{Lines: []StockShortfall{
		{Key: VariantKey{ProductID: "p1", Size: "M", Color: "Red"}, Requested: 3, Available: 1},
		{Key: VariantKey{ProductID: "p2", Size: "L", Color: "Black"}, Requested: 1, Missing: true},
	}}

	assert.Equal(t, "insufficient stock: p1/M/Red: requested 3, available 1; p2/L/Black: variant no longer exists", err.Error())
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.True(t, IsInsufficientStockError(fmt.Errorf("wrapped: %w", err)))
}

func TestWrappingErrors(t *testing.T) {
	cause := errors.New("connection reset")

	t.Run("DuplicateVariantError", func(t *testing.T) {
		err := &DuplicateVariantError{ProductID: "p1", Err: cause}
		assert.ErrorIs(t, err, cause)
		assert.True(t, IsDuplicateVariantError(err))
		assert.False(t, IsProductWriteError(err))
	})

	t.Run("ProductWriteError", func(t *testing.T) {
		err := &ProductWriteError{Op: "create", Err: cause}
		assert.Equal(t, "product create failed: connection reset", err.Error())
		assert.ErrorIs(t, err, cause)

		withID := &ProductWriteError{Op: "update", ProductID: "p9", Err: cause}
		assert.Equal(t, "product update failed: id=p9: connection reset", withID.Error())
	})

	t.Run("PersistenceError", func(t *testing.T) {
		err := &PersistenceError{Op: "create order", Err: cause}
		var pe *PersistenceError
		require.ErrorAs(t, fmt.Errorf("checkout: %w", err), &pe)
		assert.Equal(t, "create order", pe.Op)
		assert.ErrorIs(t, err, cause)
	})
}
