package admin

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/domain"
)

func TestVariantGrid_Rows(t *testing.T) {
	g := VariantGrid{Sizes: []string{"S", "M"}, Colors: []string{"Red", "Blue"}}
	g.Set("M", "Blue", Cell{Stock: 2, OriginalPrice: decimal.NewFromInt(1000), Discount: decimal.NewFromInt(25), SKU: "TEE-M-BLU"})
	g.Cells[CellKey{Size: "XL", Color: "Red"}] = Cell{Stock: 7}

	rows := g.Rows("p1", false)
	require.Len(t, rows, 4)

	last := rows[3]
	assert.Equal(t, domain.VariantKey{ProductID: "p1", Size: "M", Color: "Blue"}, last.Key())
	assert.Equal(t, "750.00", last.Price.StringFixed(2))
	assert.Equal(t, "TEE-M-BLU", last.SKU)
	assert.False(t, last.ID.IsAssigned())

	for _, r := range rows {
		assert.NotEqual(t, "XL", r.Size, "cells outside the selection are ignored")
	}

	assert.Len(t, g.Rows("p1", true), 1)
}

func TestVariantGrid_EmptySelection(t *testing.T) {
	g := VariantGrid{Sizes: []string{"S"}}
	assert.Empty(t, g.Rows("p1", false))
	assert.NoError(t, g.Validate())
}

func TestVariantGrid_ValidateEmptyNames(t *testing.T) {
	g := VariantGrid{Sizes: []string{"S", ""}, Colors: []string{""}}

	var ve *domain.ValidationError
	require.ErrorAs(t, g.Validate(), &ve)
	assert.Equal(t, []string{"colors", "sizes"}, ve.Fields())
}

func TestVariantGrid_ValidateMoneyScale(t *testing.T) {
	g := VariantGrid{}
	g.Set("M", "Red", Cell{OriginalPrice: decimal.NewFromInt(1000), Discount: decimal.RequireFromString("12.345")})
	g.Set("L", "Red", Cell{OriginalPrice: decimal.RequireFromString("10.005"), Discount: decimal.NewFromInt(10)})

	var ve *domain.ValidationError
	require.ErrorAs(t, g.Validate(), &ve)
	assert.Equal(t, []string{"cells[L/Red].original_price", "cells[M/Red].discount"}, ve.Fields())

	g.Set("M", "Red", Cell{OriginalPrice: decimal.NewFromInt(1000), Discount: decimal.RequireFromString("12.35")})
	g.Set("L", "Red", Cell{OriginalPrice: decimal.RequireFromString("10.01"), Discount: decimal.NewFromInt(10)})
	require.NoError(t, g.Validate())
	for _, row := range g.Rows("p1", false) {
		assert.NoError(t, row.Validate())
	}
}

func TestGridFromVariants(t *testing.T) {
	v1 := domain.NewVariant("p1", "M", "Red", 4, decimal.NewFromInt(800), decimal.NewFromInt(10))
	v1.ID = domain.NewID("v1")
	v2 := domain.NewVariant("p1", "L", "Red", 0, decimal.NewFromInt(800), decimal.Zero)
	v2.ID = domain.NewID("v2")
	v3 := domain.NewVariant("p1", "M", "Black", 1, decimal.NewFromInt(850), decimal.Zero)
	v3.ID = domain.NewID("v3")

	g := GridFromVariants([]domain.ProductVariant{v1, v2, v3})

	assert.Equal(t, []string{"M", "L"}, g.Sizes)
	assert.Equal(t, []string{"Red", "Black"}, g.Colors)
	assert.Equal(t, "v1", g.Cell("M", "Red").ID.String())
	assert.Equal(t, 4, g.Cell("M", "Red").Stock)
	assert.True(t, g.Cell("L", "Black").IsBlank())

	rows := g.Rows("p1", true)
	require.Len(t, rows, 3)
	assert.Equal(t, v1.Price, rows[0].Price)
}

func TestVariantGrid_JSON(t *testing.T) {
	body := `{
		"sizes": ["S", "M"],
		"colors": ["Red"],
		"cells": [
			{"size": "S", "color": "Red", "id": "v9", "stock": 3, "original_price": "499.00", "discount": "10"},
			{"size": "M", "color": "Red", "stock": 1, "original_price": "549", "discount": "0"}
		]
	}`

	var g VariantGrid
	require.NoError(t, json.Unmarshal([]byte(body), &g))

	assert.Equal(t, []string{"S", "M"}, g.Sizes)
	assert.Equal(t, "v9", g.Cell("S", "Red").ID.String())
	assert.False(t, g.Cell("M", "Red").ID.IsAssigned())
	assert.Equal(t, "449.10", g.Rows("p1", false)[0].Price.StringFixed(2))

	out, err := json.Marshal(g)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"size":"S"`)
	assert.Contains(t, string(out), `"id":null`)
}
