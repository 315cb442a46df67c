package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/matheusmosca/planet-shop/services/inventory"
)

// catalog é o formato do arquivo lido por `shop seed`
type catalog struct {
	Products []catalogProduct `yaml:"products"`
}

type catalogProduct struct {
	Name     string           `yaml:"name"`
	Slug     string           `yaml:"slug"`
	Inactive bool             `yaml:"inactive"`
	Variants []catalogVariant `yaml:"variants"`
}

type catalogVariant struct {
	SKU      string `yaml:"sku"`
	Name     string `yaml:"name"`
	Price    string `yaml:"price"`
	Stock    int    `yaml:"stock"`
	Inactive bool   `yaml:"inactive"`
}

type catalogWriter interface {
	UpsertProduct(ctx context.Context, product *inventory.Product) error
	UpsertVariant(ctx context.Context, variant *inventory.Variant) error
}

func loadCatalog(path string) (*catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return parseCatalog(data)
}

func parseCatalog(data []byte) (*catalog, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *catalog) validate() error {
	var errs []error
	skus := map[string]bool{}
	for i, p := range c.Products {
		if p.Name == "" || p.Slug == "" {
			errs = append(errs, fmt.Errorf("product %d: name and slug are required", i))
		}
		for _, v := range p.Variants {
			if v.SKU == "" {
				errs = append(errs, fmt.Errorf("product %s: variant without sku", p.Slug))
				continue
			}
			if skus[v.SKU] {
				errs = append(errs, fmt.Errorf("sku %s: duplicated", v.SKU))
			}
			skus[v.SKU] = true

			price, err := decimal.NewFromString(v.Price)
			if err != nil || !price.IsPositive() {
				errs = append(errs, fmt.Errorf("sku %s: invalid price %q", v.SKU, v.Price))
			}
			if v.Stock < 0 {
				errs = append(errs, fmt.Errorf("sku %s: negative stock", v.SKU))
			}
		}
	}
	return errors.Join(errs...)
}

// seedCatalog grava produtos e variantes. Reexecutar atualiza pelo slug/SKU.
func seedCatalog(ctx context.Context, writer catalogWriter, c *catalog, logger *zap.Logger) error {
	variants := 0
	for _, p := range c.Products {
		product := &inventory.Product{
			ID:       uuid.New().String(),
			Name:     p.Name,
			Slug:     p.Slug,
			IsActive: !p.Inactive,
		}
		if err := writer.UpsertProduct(ctx, product); err != nil {
			return fmt.Errorf("failed to upsert product %s: %w", p.Slug, err)
		}

		for _, v := range p.Variants {
			variant := &inventory.Variant{
				ID:            uuid.New().String(),
				ProductID:     product.ID,
				SKU:           v.SKU,
				Name:          v.Name,
				Price:         decimal.RequireFromString(v.Price),
				StockQuantity: v.Stock,
				IsActive:      !v.Inactive,
			}
			if err := writer.UpsertVariant(ctx, variant); err != nil {
				return fmt.Errorf("failed to upsert variant %s: %w", v.SKU, err)
			}
			variants++
		}
	}

	logger.Info("🌱 Catalog seeded",
		zap.Int("products", len(c.Products)),
		zap.Int("variants", variants),
	)
	return nil
}
