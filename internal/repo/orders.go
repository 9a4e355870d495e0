package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/unifarma/shipping-service/internal/entities"

	sq "github.com/Masterminds/squirrel"
)

var orderColumns = []string{
	"id", "deal_id", "reference_number", "status",
	"customer_name", "customer_phone", "customer_email",
	"shipping_country", "shipping_city", "shipping_address", "shipping_postal_code",
	"total_amount", "cod_amount", "is_cod",
	"carrier_id", "account_id", "notes",
	"deal_created_at", "created_at", "updated_at", "shipped_at",
}

var orderItemColumns = []string{
	"id", "order_id", "product_id", "product_name", "sku",
	"quantity", "unit_price", "total_price", "weight",
	"lot_number", "serial_number", "expiry_date",
}

func (r *postgresRepo) GetOrderByID(ctx context.Context, id int64) (entities.Order, error) {
	query, args := r.qb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": id}).
		MustSql()

	var order Order
	err := r.getContext(ctx, &order, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to get order: %w", err)
	}

	items, err := r.orderItems(ctx, order.ID)
	if err != nil {
		return entities.Order{}, err
	}

	return OrderToEntity(order, items), nil
}

func (r *postgresRepo) OrderExistsByDealID(ctx context.Context, dealID string) (bool, error) {
	query, args := r.qb.Select("1").
		From("orders").
		Where(sq.Eq{"deal_id": dealID}).
		MustSql()

	var one int
	err := r.getContext(ctx, &one, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check order existence: %w", err)
	}
	return true, nil
}

func (r *postgresRepo) ListOrders(ctx context.Context, status entities.OrderStatus, limit, offset uint64) ([]entities.Order, error) {
	q := r.qb.Select(orderColumns...).
		From("orders").
		OrderBy("created_at DESC").
		Limit(limit).
		Offset(offset)

	if status != "" {
		q = q.Where(sq.Eq{"status": string(status)})
	}

	query, args := q.MustSql()

	var orders []Order
	if err := r.selectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select orders: %w", err)
	}

	result := make([]entities.Order, 0, len(orders))
	for _, o := range orders {
		result = append(result, OrderToEntity(o, nil))
	}
	return result, nil
}

// ListDispatchableOrders returns new orders that already have a carrier
// account resolved, oldest first. Used by the dispatch sweep.
func (r *postgresRepo) ListDispatchableOrders(ctx context.Context) ([]entities.Order, error) {
	query, args := r.qb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"status": string(entities.OrderStatusNew)}).
		Where(sq.NotEq{"carrier_id": nil}).
		Where(sq.NotEq{"account_id": nil}).
		OrderBy("created_at ASC").
		MustSql()

	var orders []Order
	if err := r.selectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select dispatchable orders: %w", err)
	}

	result := make([]entities.Order, 0, len(orders))
	for _, o := range orders {
		items, err := r.orderItems(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, OrderToEntity(o, items))
	}
	return result, nil
}

func (r *postgresRepo) SaveOrder(ctx context.Context, o entities.Order) (int64, error) {
	query, args := r.qb.Insert("orders").
		Columns(
			"deal_id", "reference_number", "status",
			"customer_name", "customer_phone", "customer_email",
			"shipping_country", "shipping_city", "shipping_address", "shipping_postal_code",
			"total_amount", "cod_amount", "is_cod",
			"carrier_id", "account_id", "notes", "deal_created_at",
		).
		Values(
			o.DealID, nullString(o.ReferenceNumber), string(o.Status),
			o.CustomerName, nullString(o.CustomerPhone), nullString(o.CustomerEmail),
			o.ShippingCountry, nullString(o.ShippingCity), nullString(o.ShippingAddress), nullString(o.ShippingPostalCode),
			o.TotalAmount, o.CODAmount, o.IsCOD,
			nullInt64(o.CarrierID), nullInt64(o.AccountID), nullString(o.Notes), o.DealCreatedAt,
		).
		Suffix("ON CONFLICT (deal_id) DO NOTHING RETURNING id").
		MustSql()

	var id int64
	err := r.getContext(ctx, &id, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		// Conflict: the deal was already imported.
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to save order: %w", err)
	}
	return id, nil
}

func (r *postgresRepo) SaveOrderItems(ctx context.Context, orderID int64, items []entities.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	q := r.qb.Insert("order_items").
		Columns("order_id", "product_id", "product_name", "sku",
			"quantity", "unit_price", "total_price", "weight",
			"lot_number", "serial_number", "expiry_date")

	for _, it := range items {
		q = q.Values(
			orderID,
			it.ProductID,
			it.ProductName,
			nullString(it.SKU),
			it.Quantity,
			it.UnitPrice,
			it.TotalPrice,
			it.Weight,
			nullString(it.LotNumber),
			nullString(it.SerialNumber),
			nullTime(it.ExpiryDate),
		)
	}

	query, args := q.MustSql()
	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save order items: %w", err)
	}
	return nil
}

func (r *postgresRepo) UpdateOrderStatus(ctx context.Context, id int64, status entities.OrderStatus) error {
	q := r.qb.Update("orders").
		Set("status", string(status)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id})

	if status == entities.OrderStatusShipped {
		q = q.Set("shipped_at", time.Now().UTC())
	}

	query, args := q.MustSql()
	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return nil
}

func (r *postgresRepo) orderItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	query, args := r.qb.Select(orderItemColumns...).
		From("order_items").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("id ASC").
		MustSql()

	var items []OrderItem
	if err := r.selectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select order items: %w", err)
	}
	return items, nil
}
