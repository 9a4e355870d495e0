package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/unifarma/shipping-service/internal/entities"

	sq "github.com/Masterminds/squirrel"
)

var shipmentColumns = []string{
	"id", "order_id", "carrier_id", "account_id",
	"tracking_number", "status", "events_log", "carrier_response",
	"error_message", "notes",
	"created_at", "updated_at", "submitted_at", "delivered_at",
}

func (r *postgresRepo) GetShipmentByID(ctx context.Context, id int64) (entities.Shipment, error) {
	query, args := r.qb.Select(shipmentColumns...).
		From("shipments").
		Where(sq.Eq{"id": id}).
		MustSql()

	var shipment Shipment
	err := r.getContext(ctx, &shipment, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Shipment{}, entities.ErrShipmentNotFound
	}
	if err != nil {
		return entities.Shipment{}, fmt.Errorf("failed to get shipment: %w", err)
	}

	return ShipmentToEntity(shipment), nil
}

func (r *postgresRepo) ListShipments(ctx context.Context, status entities.ShipmentStatus, limit, offset uint64) ([]entities.Shipment, error) {
	q := r.qb.Select(shipmentColumns...).
		From("shipments").
		OrderBy("created_at DESC").
		Limit(limit).
		Offset(offset)

	if status != "" {
		q = q.Where(sq.Eq{"status": string(status)})
	}

	query, args := q.MustSql()

	var shipments []Shipment
	if err := r.selectContext(ctx, &shipments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select shipments: %w", err)
	}

	result := make([]entities.Shipment, 0, len(shipments))
	for _, s := range shipments {
		result = append(result, ShipmentToEntity(s))
	}
	return result, nil
}

// ListActiveShipments returns shipments still moving on the carrier side,
// oldest first. Used by the tracking sweep.
func (r *postgresRepo) ListActiveShipments(ctx context.Context) ([]entities.Shipment, error) {
	statuses := make([]string, 0, len(entities.ActiveShipmentStatuses))
	for _, s := range entities.ActiveShipmentStatuses {
		statuses = append(statuses, string(s))
	}

	query, args := r.qb.Select(shipmentColumns...).
		From("shipments").
		Where(sq.Eq{"status": statuses}).
		OrderBy("created_at ASC").
		MustSql()

	var shipments []Shipment
	if err := r.selectContext(ctx, &shipments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select active shipments: %w", err)
	}

	result := make([]entities.Shipment, 0, len(shipments))
	for _, s := range shipments {
		result = append(result, ShipmentToEntity(s))
	}
	return result, nil
}

// HasActiveShipment reports whether the order has a non-terminal shipment.
// Callers must check this inside the same transaction that creates a new
// shipment row, so at most one dispatch can be in flight per order.
func (r *postgresRepo) HasActiveShipment(ctx context.Context, orderID int64) (bool, error) {
	query, args := r.qb.Select("1").
		From("shipments").
		Where(sq.Eq{"order_id": orderID}).
		Where(sq.Eq{"status": []string{
			string(entities.ShipmentStatusPending),
			string(entities.ShipmentStatusSubmitted),
			string(entities.ShipmentStatusAccepted),
			string(entities.ShipmentStatusInTransit),
		}}).
		Suffix("FOR UPDATE").
		MustSql()

	var one int
	err := r.getContext(ctx, &one, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check active shipments: %w", err)
	}
	return true, nil
}

func (r *postgresRepo) CreateShipment(ctx context.Context, s entities.Shipment) (int64, error) {
	events, err := json.Marshal(s.Events)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal events log: %w", err)
	}

	query, args := r.qb.Insert("shipments").
		Columns("order_id", "carrier_id", "account_id", "status", "events_log").
		Values(s.OrderID, s.CarrierID, s.AccountID, string(s.Status), events).
		Suffix("RETURNING id").
		MustSql()

	var id int64
	if err := r.getContext(ctx, &id, query, args...); err != nil {
		return 0, fmt.Errorf("failed to create shipment: %w", err)
	}
	return id, nil
}

func (r *postgresRepo) UpdateShipment(ctx context.Context, s entities.Shipment) error {
	events, err := json.Marshal(s.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal events log: %w", err)
	}

	var response any
	if len(s.CarrierResponse) > 0 {
		response = []byte(s.CarrierResponse)
	}

	query, args := r.qb.Update("shipments").
		Set("tracking_number", nullString(s.TrackingNumber)).
		Set("status", string(s.Status)).
		Set("events_log", events).
		Set("carrier_response", response).
		Set("error_message", nullString(s.ErrorMessage)).
		Set("submitted_at", nullTime(s.SubmittedAt)).
		Set("delivered_at", nullTime(s.DeliveredAt)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": s.ID}).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update shipment: %w", err)
	}
	return nil
}
