package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/unifarma/shipping-service/internal/entities"

	sq "github.com/Masterminds/squirrel"
)

var carrierColumns = []string{
	"id", "name", "code", "website", "description",
	"is_active", "created_at", "updated_at",
}

var accountColumns = []string{
	"a.id", "a.carrier_id", "a.title", "a.account_type", "a.specific_countries",
	"a.passkey", "a.customer_id", "a.warehouse_id", "a.api_base_url",
	"a.is_active", "a.created_at", "a.updated_at",
}

func (r *postgresRepo) GetCarrierByID(ctx context.Context, id int64) (entities.Carrier, error) {
	query, args := r.qb.Select(carrierColumns...).
		From("carriers").
		Where(sq.Eq{"id": id}).
		MustSql()

	var carrier Carrier
	err := r.getContext(ctx, &carrier, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Carrier{}, entities.ErrCarrierNotFound
	}
	if err != nil {
		return entities.Carrier{}, fmt.Errorf("failed to get carrier: %w", err)
	}
	return CarrierToEntity(carrier), nil
}

func (r *postgresRepo) GetCarrierByCode(ctx context.Context, code string) (entities.Carrier, error) {
	query, args := r.qb.Select(carrierColumns...).
		From("carriers").
		Where(sq.Eq{"code": code}).
		MustSql()

	var carrier Carrier
	err := r.getContext(ctx, &carrier, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Carrier{}, entities.ErrCarrierNotFound
	}
	if err != nil {
		return entities.Carrier{}, fmt.Errorf("failed to get carrier: %w", err)
	}
	return CarrierToEntity(carrier), nil
}

func (r *postgresRepo) ListCarriers(ctx context.Context) ([]entities.Carrier, error) {
	query, args := r.qb.Select(carrierColumns...).
		From("carriers").
		OrderBy("name ASC").
		MustSql()

	var carriers []Carrier
	if err := r.selectContext(ctx, &carriers, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select carriers: %w", err)
	}

	result := make([]entities.Carrier, 0, len(carriers))
	for _, c := range carriers {
		result = append(result, CarrierToEntity(c))
	}
	return result, nil
}

func (r *postgresRepo) CreateCarrier(ctx context.Context, c entities.Carrier) (int64, error) {
	query, args := r.qb.Insert("carriers").
		Columns("name", "code", "website", "description", "is_active").
		Values(c.Name, c.Code, nullString(c.Website), nullString(c.Description), c.IsActive).
		Suffix("RETURNING id").
		MustSql()

	var id int64
	if err := r.getContext(ctx, &id, query, args...); err != nil {
		return 0, fmt.Errorf("failed to create carrier: %w", err)
	}
	return id, nil
}

func (r *postgresRepo) GetAccountByID(ctx context.Context, id int64) (entities.Account, error) {
	query, args := r.qb.Select(accountColumns...).
		From("carrier_accounts a").
		Where(sq.Eq{"a.id": id}).
		MustSql()

	var account Account
	err := r.getContext(ctx, &account, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Account{}, entities.ErrAccountNotFound
	}
	if err != nil {
		return entities.Account{}, fmt.Errorf("failed to get account: %w", err)
	}
	return AccountToEntity(account), nil
}

// ListActiveAccounts returns active accounts of active carriers, narrowed
// by carrier-name substring and account type when given. Ordered by
// creation so fallback selection stays deterministic.
func (r *postgresRepo) ListActiveAccounts(ctx context.Context, carrierHint string, accountType entities.AccountType) ([]entities.Account, error) {
	q := r.qb.Select(accountColumns...).
		From("carrier_accounts a").
		Join("carriers c ON c.id = a.carrier_id").
		Where(sq.Eq{"a.is_active": true}).
		Where(sq.Eq{"c.is_active": true}).
		OrderBy("a.created_at ASC", "a.id ASC")

	if carrierHint != "" {
		q = q.Where(sq.ILike{"c.name": "%" + carrierHint + "%"})
	}
	if accountType != "" {
		q = q.Where(sq.Eq{"a.account_type": string(accountType)})
	}

	query, args := q.MustSql()

	var accounts []Account
	if err := r.selectContext(ctx, &accounts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select accounts: %w", err)
	}

	result := make([]entities.Account, 0, len(accounts))
	for _, a := range accounts {
		result = append(result, AccountToEntity(a))
	}
	return result, nil
}

func (r *postgresRepo) CreateAccount(ctx context.Context, a entities.Account) (int64, error) {
	query, args := r.qb.Insert("carrier_accounts").
		Columns("carrier_id", "title", "account_type", "specific_countries",
			"passkey", "customer_id", "warehouse_id", "api_base_url", "is_active").
		Values(a.CarrierID, a.Title, string(a.Type), stringArray(a.SpecificCountries),
			nullString(a.Passkey), nullString(a.CustomerID), nullString(a.WarehouseID),
			nullString(a.APIBaseURL), a.IsActive).
		Suffix("RETURNING id").
		MustSql()

	var id int64
	if err := r.getContext(ctx, &id, query, args...); err != nil {
		return 0, fmt.Errorf("failed to create account: %w", err)
	}
	return id, nil
}
