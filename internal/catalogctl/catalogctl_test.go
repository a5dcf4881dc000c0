package catalogctl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/joao-fontenele/storefront/internal/admin"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/products"
)

const kurta = `
product:
  name: Silk Kurta
  category: Ethnic
  vendor: Jaipur Looms
variants:
  - size: M
    color: Gold
    stock: 4
    original_price: "2000"
    discount: "25"
  - size: L
    color: Gold
    stock: 0
    original_price: "2000"
---
product:
  name: Linen Shirt
  category: Shirts
`

func newEnvFunc(t *testing.T) (EnvFunc, *catalog.Catalog) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := products.NewMemoryStore()
	cat := catalog.New(store, logger)
	a := admin.New(store, cat, logger)

	return func(ctx context.Context) (*Env, error) {
		return &Env{Admin: a, Catalog: cat}, nil
	}, cat
}

func run(t *testing.T, open EnvFunc, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDecodeManifests(t *testing.T) {
	manifests, err := DecodeManifests(strings.NewReader(kurta))
	require.NoError(t, err)
	require.Len(t, manifests, 2)

	p, grid, err := manifests[0].Build()
	require.NoError(t, err)
	assert.Equal(t, "Silk Kurta", p.Name)
	assert.False(t, p.ID.IsAssigned())
	assert.Equal(t, []string{"M", "L"}, grid.Sizes)
	assert.Equal(t, "1500", grid.Rows("x", false)[0].Price.String())

	_, err = DecodeManifests(strings.NewReader("product:\n  nmae: typo\n"))
	assert.Error(t, err)

	_, err = DecodeManifests(strings.NewReader(""))
	assert.Error(t, err)
}

func TestBuild_BadMoney(t *testing.T) {
	m := Manifest{
		Product:  ProductSpec{Name: "x", Category: "y"},
		Variants: []VariantSpec{{Size: "M", Color: "Red", OriginalPrice: "ten"}},
	}
	_, _, err := m.Build()
	assert.ErrorContains(t, err, "variants[0].original_price")
}

func TestApplyListGetPruneDelete(t *testing.T) {
	open, cat := newEnvFunc(t)

	out, err := run(t, open, kurta, "apply", "-f", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "(2 variants)")
	assert.Contains(t, out, "(0 variants)")
	require.Len(t, cat.Products(), 2)

	out, err = run(t, open, "", "list", "-o", "json")
	require.NoError(t, err)
	var summaries []catalog.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summaries))
	require.Len(t, summaries, 2)

	var id string
	for _, s := range summaries {
		if s.Product.Name == "Silk Kurta" {
			id = s.Product.ID.String()
			assert.Equal(t, 4, s.TotalStock)
		}
	}
	require.NotEmpty(t, id)

	out, err = run(t, open, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "1500.00")

	out, err = run(t, open, "", "get", id)
	require.NoError(t, err)
	var m Manifest
	require.NoError(t, yaml.Unmarshal([]byte(out), &m))
	assert.Equal(t, id, m.Product.ID)
	assert.Len(t, m.Variants, 2)

	out, err = run(t, open, "", "prune", id, "--variant", "L/Gold")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 1 variants")
	assert.Len(t, cat.VariantsFor(id), 1)

	_, err = run(t, open, "", "prune", id, "--variant", "L-Gold")
	assert.ErrorContains(t, err, "SIZE/COLOR")

	_, err = run(t, open, "", "delete", id)
	require.NoError(t, err)
	_, ok := cat.Product(id)
	assert.False(t, ok)

	_, err = run(t, open, "", "get", id)
	assert.Error(t, err)
}

func TestApply_Validation(t *testing.T) {
	open, _ := newEnvFunc(t)

	_, err := run(t, open, "product:\n  name: \"\"\n  category: Shirts\n", "apply", "-f", "-")
	assert.ErrorContains(t, err, "name")
}
