package products

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUUIDsOnly(t *testing.T) {
	id := uuid.NewString()

	assert.Equal(t, []string{id}, uuidsOnly([]string{"kurta", id, ""}))
	assert.Empty(t, uuidsOnly([]string{"kurta"}))
}
