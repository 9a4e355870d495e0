package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/unifarma/shipping-service/internal/entities"

	sq "github.com/Masterminds/squirrel"
)

// GetCRMMappedAccount resolves an operator override: an exact, active
// (field, value) row pointing at a carrier account. Returns
// ErrAccountNotFound when no override exists.
func (r *postgresRepo) GetCRMMappedAccount(ctx context.Context, field, value string) (entities.Account, error) {
	query, args := r.qb.Select(accountColumns...).
		From("crm_shipping_mappings m").
		Join("carrier_accounts a ON a.id = m.account_id").
		Where(sq.Eq{"m.crm_field": field}).
		Where(sq.Eq{"m.crm_value": value}).
		Where(sq.Eq{"m.is_active": true}).
		Where(sq.Eq{"a.is_active": true}).
		MustSql()

	var account Account
	err := r.getContext(ctx, &account, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Account{}, entities.ErrAccountNotFound
	}
	if err != nil {
		return entities.Account{}, fmt.Errorf("failed to get crm mapping: %w", err)
	}
	return AccountToEntity(account), nil
}

// GetWarehouseID returns the mapped warehouse for a carrier destination,
// or "" when no mapping row exists.
func (r *postgresRepo) GetWarehouseID(ctx context.Context, carrierID int64, countryCode string, domestic bool) (string, error) {
	query, args := r.qb.Select("warehouse_id").
		From("warehouse_mappings").
		Where(sq.Eq{"carrier_id": carrierID}).
		Where(sq.Eq{"country_code": countryCode}).
		Where(sq.Eq{"is_domestic": domestic}).
		Where(sq.Eq{"is_active": true}).
		MustSql()

	var warehouseID string
	err := r.getContext(ctx, &warehouseID, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get warehouse mapping: %w", err)
	}
	return warehouseID, nil
}

// GetSKU returns the carrier-side stock code for a product in a country,
// or "" when the product has no mapping there.
func (r *postgresRepo) GetSKU(ctx context.Context, productID, countryCode string) (string, error) {
	query, args := r.qb.Select("sku").
		From("product_sku_mappings").
		Where(sq.Eq{"product_id": productID}).
		Where(sq.Eq{"country_code": countryCode}).
		MustSql()

	var skuCode string
	err := r.getContext(ctx, &skuCode, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get sku mapping: %w", err)
	}
	return skuCode, nil
}
