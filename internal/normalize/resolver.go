package normalize

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/unifarma/shipping-service/internal/entities"
)

type MappingSource interface {
	GetWarehouseID(ctx context.Context, carrierID int64, countryCode string, domestic bool) (string, error)
	GetSKU(ctx context.Context, productID, countryCode string) (string, error)
}

type Cache interface {
	Get(key string) (string, bool)
	Set(key string, value string)
}

// Resolver answers SKU and warehouse lookups against the mapping tables,
// caching hits per process. The tables are read-mostly; stale reads until
// the TTL expires are acceptable.
type Resolver struct {
	logger *slog.Logger
	src    MappingSource
	cache  Cache
}

func NewResolver(logger *slog.Logger, src MappingSource, cache Cache) *Resolver {
	return &Resolver{
		logger: logger.With(slog.String("service", "normalize")),
		src:    src,
		cache:  cache,
	}
}

// SKU resolves the carrier-side stock code for a product shipped to a
// country: mapping table first, then the order item's own SKU, then the
// internal product id. Always returns a usable string.
func (r *Resolver) SKU(ctx context.Context, productID, itemSKU, country string) string {
	cc := CountryCode(country)
	key := fmt.Sprintf("sku:%s:%s", productID, cc)

	if v, ok := r.cache.Get(key); ok {
		return v
	}

	mapped, err := r.src.GetSKU(ctx, productID, cc)
	if err != nil {
		r.logger.Warn("sku lookup failed, using fallback",
			slog.String("product_id", productID), slog.Any("error", err))
	}

	switch {
	case mapped != "":
		r.cache.Set(key, mapped)
		return mapped
	case itemSKU != "":
		return itemSKU
	default:
		return productID
	}
}

// Warehouse resolves the warehouse a shipment should be fulfilled from:
// mapping table first, then the account's configured default. Returning
// ErrNoWarehouse is a precondition violation and the caller must abort
// the dispatch.
func (r *Resolver) Warehouse(ctx context.Context, carrierID int64, country string, domestic bool, accountDefault string) (string, error) {
	cc := CountryCode(country)
	key := fmt.Sprintf("wrh:%d:%s:%t", carrierID, cc, domestic)

	if v, ok := r.cache.Get(key); ok {
		return v, nil
	}

	mapped, err := r.src.GetWarehouseID(ctx, carrierID, cc, domestic)
	if err != nil {
		return "", fmt.Errorf("failed to resolve warehouse: %w", err)
	}
	if mapped != "" {
		r.cache.Set(key, mapped)
		return mapped, nil
	}

	if accountDefault != "" {
		return accountDefault, nil
	}

	return "", entities.ErrNoWarehouse
}
