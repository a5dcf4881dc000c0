package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelection(t *testing.T) {
	c, _ := newTestCatalog(t)

	t.Run("starts on first size and color", func(t *testing.T) {
		s := NewSelection(c, "tee")
		assert.Equal(t, "M", s.Size())
		assert.Equal(t, "Red", s.Color())
		assert.True(t, s.CanAddToCart())
	})

	t.Run("size change resets an unavailable color", func(t *testing.T) {
		s := NewSelection(c, "tee")
		s.SelectSize("L")
		assert.Equal(t, "Green", s.Color())
		assert.Equal(t, []string{"Green"}, s.Colors())
	})

	t.Run("size change keeps a color still offered", func(t *testing.T) {
		s := NewSelection(c, "tee")
		require.True(t, s.SelectColor("Blue"))
		s.SelectSize("S")
		assert.Equal(t, "Blue", s.Color())
	})

	t.Run("size without colors clears the color", func(t *testing.T) {
		s := NewSelection(c, "tee")
		s.SelectSize("XXL")
		assert.Equal(t, "", s.Color())
		_, err := s.Variant()
		assert.Error(t, err)
		assert.False(t, s.CanAddToCart())
	})

	t.Run("unknown color is refused", func(t *testing.T) {
		s := NewSelection(c, "tee")
		assert.False(t, s.SelectColor("Purple"))
		assert.Equal(t, "Red", s.Color())
	})

	t.Run("out of stock variant cannot be added", func(t *testing.T) {
		s := NewSelection(c, "tee")
		s.SelectSize("S")
		v, err := s.Variant()
		require.NoError(t, err)
		assert.Equal(t, 0, v.Stock)
		assert.False(t, s.CanAddToCart())
	})

	t.Run("product without variants", func(t *testing.T) {
		s := NewSelection(c, "bare")
		assert.Equal(t, "", s.Size())
		assert.Equal(t, "", s.Color())
		assert.False(t, s.CanAddToCart())
	})
}
