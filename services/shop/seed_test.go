package main

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matheusmosca/planet-shop/services/inventory"
)

type fakeCatalogWriter struct {
	products []*inventory.Product
	variants []*inventory.Variant
	err      error
}

func (w *fakeCatalogWriter) UpsertProduct(ctx context.Context, product *inventory.Product) error {
	w.products = append(w.products, product)
	return w.err
}

func (w *fakeCatalogWriter) UpsertVariant(ctx context.Context, variant *inventory.Variant) error {
	w.variants = append(w.variants, variant)
	return nil
}

func TestLoadCatalog_SampleFile(t *testing.T) {
	c, err := loadCatalog("catalog.yaml")

	require.NoError(t, err)
	assert.Len(t, c.Products, 3)
	assert.Equal(t, "planet-tee", c.Products[0].Slug)
	assert.True(t, c.Products[2].Variants[1].Inactive)
}

func TestParseCatalog_RejectsInvalidEntries(t *testing.T) {
	data := []byte(`
products:
  - name: Tee
    slug: tee
    variants:
      - sku: TEE-1
        price: "abc"
        stock: 1
      - sku: TEE-1
        price: "10.00"
        stock: -2
  - name: ""
    slug: nameless
`)

	_, err := parseCatalog(data)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid price "abc"`)
	assert.Contains(t, err.Error(), "sku TEE-1: duplicated")
	assert.Contains(t, err.Error(), "negative stock")
	assert.Contains(t, err.Error(), "name and slug are required")
}

func TestSeedCatalog_WritesProductsThenVariants(t *testing.T) {
	// Arrange
	c, err := parseCatalog([]byte(`
products:
  - name: Tee
    slug: tee
    variants:
      - sku: TEE-S
        name: Small
        price: "10.50"
        stock: 3
      - sku: TEE-M
        name: Medium
        price: "11.00"
        stock: 0
        inactive: true
`))
	require.NoError(t, err)
	writer := &fakeCatalogWriter{}

	// Act
	err = seedCatalog(context.Background(), writer, c, zap.NewNop())

	// Assert
	require.NoError(t, err)
	require.Len(t, writer.products, 1)
	require.Len(t, writer.variants, 2)
	assert.True(t, writer.products[0].IsActive)
	assert.Equal(t, writer.products[0].ID, writer.variants[0].ProductID)
	assert.Equal(t, "10.5", writer.variants[0].Price.String())
	assert.Equal(t, 3, writer.variants[0].StockQuantity)
	assert.False(t, writer.variants[1].IsActive)
}

func TestSeedCatalog_StopsOnProductError(t *testing.T) {
	c := &catalog{Products: []catalogProduct{{Name: "Tee", Slug: "tee", Variants: []catalogVariant{{SKU: "TEE-S", Price: "1"}}}}}
	writer := &fakeCatalogWriter{err: errors.New("connection refused")}

	err := seedCatalog(context.Background(), writer, c, zap.NewNop())

	assert.ErrorContains(t, err, "failed to upsert product tee")
	assert.Empty(t, writer.variants)
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	_, err := loadCatalog("does-not-exist.yaml")

	assert.ErrorIs(t, err, os.ErrNotExist)
}
