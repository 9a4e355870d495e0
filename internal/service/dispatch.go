package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/unifarma/shipping-service/internal/carrier"
	"github.com/unifarma/shipping-service/internal/entities"
	"github.com/unifarma/shipping-service/pkg/trm"
	"github.com/unifarma/shipping-service/pkg/utils"
)

type DispatchRepo interface {
	GetOrderByID(ctx context.Context, id int64) (entities.Order, error)
	ListDispatchableOrders(ctx context.Context) ([]entities.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status entities.OrderStatus) error

	GetShipmentByID(ctx context.Context, id int64) (entities.Shipment, error)
	ListActiveShipments(ctx context.Context) ([]entities.Shipment, error)
	HasActiveShipment(ctx context.Context, orderID int64) (bool, error)
	CreateShipment(ctx context.Context, s entities.Shipment) (int64, error)
	UpdateShipment(ctx context.Context, s entities.Shipment) error

	GetCarrierByID(ctx context.Context, id int64) (entities.Carrier, error)
	GetAccountByID(ctx context.Context, id int64) (entities.Account, error)
}

type AdapterRegistry interface {
	Get(code string) (carrier.Adapter, error)
}

// DispatchService owns the shipment lifecycle: handing orders to carriers,
// refreshing tracking and propagating terminal outcomes back to orders.
type DispatchService struct {
	logger   *slog.Logger
	repo     DispatchRepo
	registry AdapterRegistry
	manager  trm.Manager
}

func NewDispatchService(logger *slog.Logger, repo DispatchRepo, registry AdapterRegistry, manager trm.Manager) *DispatchService {
	return &DispatchService{
		logger:   logger.With(slog.String("service", "dispatch")),
		repo:     repo,
		registry: registry,
		manager:  manager,
	}
}

// CreateShipmentForOrder hands the order to its carrier. A carrier failure
// is not an error to the caller: the shipment is persisted with status
// error and the failure message, and the order is left untouched. Errors
// are returned only when no shipment row could be written at all.
func (s *DispatchService) CreateShipmentForOrder(ctx context.Context, orderID int64) (entities.Shipment, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return entities.Shipment{}, fmt.Errorf("failed to load order: %w", err)
	}

	if !order.HasCarrier() {
		return entities.Shipment{}, entities.ErrNoCarrierConfigured
	}

	carrierRow, err := s.repo.GetCarrierByID(ctx, order.CarrierID)
	if err != nil {
		return entities.Shipment{}, fmt.Errorf("failed to load carrier: %w", err)
	}
	account, err := s.repo.GetAccountByID(ctx, order.AccountID)
	if err != nil {
		return entities.Shipment{}, fmt.Errorf("failed to load account: %w", err)
	}
	adapter, err := s.registry.Get(carrierRow.Code)
	if err != nil {
		return entities.Shipment{}, err
	}

	// The guard and the insert must see the same snapshot, otherwise two
	// concurrent dispatches could both pass the check.
	shipment := entities.Shipment{
		OrderID:   order.ID,
		CarrierID: order.CarrierID,
		AccountID: order.AccountID,
		Status:    entities.ShipmentStatusPending,
	}
	shipment.AppendEvent(entities.ShipmentStatusPending, "shipment created", nil)

	err = s.manager.Do(ctx, func(ctx context.Context) error {
		active, err := s.repo.HasActiveShipment(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("failed to check active shipments: %w", err)
		}
		if active {
			return entities.ErrShipmentInFlight
		}
		id, err := s.repo.CreateShipment(ctx, shipment)
		if err != nil {
			return fmt.Errorf("failed to create shipment: %w", err)
		}
		shipment.ID = id
		return nil
	})
	if err != nil {
		return entities.Shipment{}, err
	}

	res, callErr := s.callCreate(ctx, adapter, carrier.Request{
		Order:    order,
		Account:  account,
		Shipment: shipment,
	})

	if callErr != nil {
		msg := failureMessage(callErr)
		shipment.Status = entities.ShipmentStatusError
		shipment.ErrorMessage = msg
		shipment.CarrierResponse = res.Raw
		shipment.AppendEvent(entities.ShipmentStatusError, msg, res.Raw)

		if err := s.repo.UpdateShipment(ctx, shipment); err != nil {
			return entities.Shipment{}, fmt.Errorf("failed to record dispatch failure: %w", err)
		}

		shipmentsCreated.WithLabelValues("failed").Inc()
		s.logger.Error("dispatch failed",
			slog.Int64("order_id", order.ID),
			slog.Int64("shipment_id", shipment.ID),
			slog.String("carrier", carrierRow.Code),
			slog.Any("error", callErr))
		return shipment, nil
	}

	shipment.TrackingNumber = res.TrackingNumber
	shipment.Status = entities.ShipmentStatusSubmitted
	shipment.CarrierResponse = res.Raw
	shipment.SubmittedAt = time.Now().UTC()
	shipment.AppendEvent(entities.ShipmentStatusSubmitted, "carrier accepted shipment", res.Raw)

	// The carrier already accepted the order. Losing this write leaves the
	// shipment pending and the next sweep would ship it twice.
	err = utils.Retry(utils.RetryConfig{MaxAttempts: 3}, func() error {
		return s.repo.UpdateShipment(ctx, shipment)
	})
	if err != nil {
		return entities.Shipment{}, fmt.Errorf("failed to save shipment: %w", err)
	}
	if err := s.repo.UpdateOrderStatus(ctx, order.ID, entities.OrderStatusProcessing); err != nil {
		return entities.Shipment{}, fmt.Errorf("failed to update order status: %w", err)
	}

	shipmentsCreated.WithLabelValues("submitted").Inc()
	s.logger.Info("shipment submitted",
		slog.Int64("order_id", order.ID),
		slog.Int64("shipment_id", shipment.ID),
		slog.String("tracking_number", shipment.TrackingNumber))
	return shipment, nil
}

// callCreate shields the shipment lifecycle from adapter panics. A panic is
// recorded the same way a carrier failure would be.
func (s *DispatchService) callCreate(ctx context.Context, adapter carrier.Adapter, req carrier.Request) (res carrier.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = carrier.NewError(carrier.ErrKindInternal, fmt.Sprintf("adapter panic: %v", r), nil)
		}
	}()
	return adapter.CreateShipment(ctx, req)
}

// RefreshShipmentTracking polls the carrier for the current status. Nothing
// is persisted when the carrier call fails or the status did not change.
func (s *DispatchService) RefreshShipmentTracking(ctx context.Context, shipmentID int64) (entities.Shipment, error) {
	shipment, err := s.repo.GetShipmentByID(ctx, shipmentID)
	if err != nil {
		return entities.Shipment{}, fmt.Errorf("failed to load shipment: %w", err)
	}

	if shipment.Status.Terminal() {
		return shipment, nil
	}
	if shipment.TrackingNumber == "" {
		return shipment, entities.ErrNoTrackingNumber
	}

	req, adapter, err := s.buildRequest(ctx, shipment)
	if err != nil {
		return shipment, err
	}

	res, err := adapter.TrackShipment(ctx, req)
	if err != nil {
		trackingUpdates.WithLabelValues("failed").Inc()
		return shipment, fmt.Errorf("failed to track shipment %d: %w", shipment.ID, err)
	}

	if res.Status == shipment.Status {
		trackingUpdates.WithLabelValues("unchanged").Inc()
		return shipment, nil
	}

	previous := shipment.Status
	shipment.Status = res.Status
	shipment.AppendEvent(res.Status,
		fmt.Sprintf("status changed from %s to %s", previous, res.Status), res.Raw)

	switch res.Status {
	case entities.ShipmentStatusDelivered:
		shipment.DeliveredAt = time.Now().UTC()
		if err := s.repo.UpdateOrderStatus(ctx, shipment.OrderID, entities.OrderStatusDelivered); err != nil {
			return shipment, fmt.Errorf("failed to mark order delivered: %w", err)
		}
	case entities.ShipmentStatusReturned:
		if err := s.repo.UpdateOrderStatus(ctx, shipment.OrderID, entities.OrderStatusReturned); err != nil {
			return shipment, fmt.Errorf("failed to mark order returned: %w", err)
		}
	}

	if err := s.repo.UpdateShipment(ctx, shipment); err != nil {
		return shipment, fmt.Errorf("failed to save shipment: %w", err)
	}

	trackingUpdates.WithLabelValues("updated").Inc()
	s.logger.Info("shipment status updated",
		slog.Int64("shipment_id", shipment.ID),
		slog.String("from", string(previous)),
		slog.String("to", string(res.Status)))
	return shipment, nil
}

// CancelShipment asks the carrier to cancel and records the outcome. Most
// carriers reject this; the typed unsupported error passes through.
func (s *DispatchService) CancelShipment(ctx context.Context, shipmentID int64) (entities.Shipment, error) {
	shipment, err := s.repo.GetShipmentByID(ctx, shipmentID)
	if err != nil {
		return entities.Shipment{}, fmt.Errorf("failed to load shipment: %w", err)
	}
	if shipment.Status.Terminal() {
		return shipment, nil
	}

	req, adapter, err := s.buildRequest(ctx, shipment)
	if err != nil {
		return shipment, err
	}

	res, err := adapter.CancelShipment(ctx, req)
	if err != nil {
		return shipment, err
	}

	shipment.Status = entities.ShipmentStatusCancelled
	shipment.CarrierResponse = res.Raw
	shipment.AppendEvent(entities.ShipmentStatusCancelled, "shipment cancelled", res.Raw)

	if err := s.repo.UpdateShipment(ctx, shipment); err != nil {
		return shipment, fmt.Errorf("failed to save shipment: %w", err)
	}
	if err := s.repo.UpdateOrderStatus(ctx, shipment.OrderID, entities.OrderStatusCancelled); err != nil {
		return shipment, fmt.Errorf("failed to mark order cancelled: %w", err)
	}
	return shipment, nil
}

// CheckOrderConfirmation proxies the carrier's warehouse confirmation
// lookup for operators. The raw carrier payload is returned untouched.
func (s *DispatchService) CheckOrderConfirmation(ctx context.Context, shipmentID int64) (json.RawMessage, error) {
	shipment, err := s.repo.GetShipmentByID(ctx, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load shipment: %w", err)
	}

	req, adapter, err := s.buildRequest(ctx, shipment)
	if err != nil {
		return nil, err
	}

	checker, ok := adapter.(carrier.ConfirmationChecker)
	if !ok {
		return nil, carrier.NewError(carrier.ErrKindUnsupported,
			"carrier does not expose order confirmation", nil)
	}

	res, err := checker.CheckConfirmation(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Raw, nil
}

// CheckAccountStock asks the carrier for warehouse stock of one SKU on the
// given account. The raw carrier payload is returned untouched.
func (s *DispatchService) CheckAccountStock(ctx context.Context, accountID int64, sku string) (json.RawMessage, error) {
	account, err := s.repo.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	carrierRow, err := s.repo.GetCarrierByID(ctx, account.CarrierID)
	if err != nil {
		return nil, fmt.Errorf("failed to load carrier: %w", err)
	}
	adapter, err := s.registry.Get(carrierRow.Code)
	if err != nil {
		return nil, err
	}

	checker, ok := adapter.(carrier.StockChecker)
	if !ok {
		return nil, carrier.NewError(carrier.ErrKindUnsupported,
			"carrier does not expose stock levels", nil)
	}

	res, err := checker.CheckStock(ctx, account, sku)
	if err != nil {
		return nil, err
	}
	return res.Raw, nil
}

// ProcessNewOrders dispatches every order that is ready to ship. One bad
// order must not stop the sweep; failures are logged and counted.
func (s *DispatchService) ProcessNewOrders(ctx context.Context) (int, error) {
	orders, err := s.repo.ListDispatchableOrders(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list dispatchable orders: %w", err)
	}

	submitted := 0
	for _, order := range orders {
		shipment, err := s.CreateShipmentForOrder(ctx, order.ID)
		if err != nil {
			if errors.Is(err, entities.ErrShipmentInFlight) {
				continue
			}
			s.logger.Error("dispatch sweep item failed",
				slog.Int64("order_id", order.ID), slog.Any("error", err))
			continue
		}
		if shipment.Status == entities.ShipmentStatusSubmitted {
			submitted++
		}
	}

	s.logger.Info("dispatch sweep finished",
		slog.Int("candidates", len(orders)), slog.Int("submitted", submitted))
	return submitted, nil
}

// RefreshActiveShipments polls tracking for every non-terminal shipment.
func (s *DispatchService) RefreshActiveShipments(ctx context.Context) (int, error) {
	shipments, err := s.repo.ListActiveShipments(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active shipments: %w", err)
	}

	updated := 0
	for _, sh := range shipments {
		refreshed, err := s.RefreshShipmentTracking(ctx, sh.ID)
		if err != nil {
			s.logger.Error("tracking sweep item failed",
				slog.Int64("shipment_id", sh.ID), slog.Any("error", err))
			continue
		}
		if refreshed.Status != sh.Status {
			updated++
		}
	}

	s.logger.Info("tracking sweep finished",
		slog.Int("candidates", len(shipments)), slog.Int("updated", updated))
	return updated, nil
}

func (s *DispatchService) buildRequest(ctx context.Context, shipment entities.Shipment) (carrier.Request, carrier.Adapter, error) {
	order, err := s.repo.GetOrderByID(ctx, shipment.OrderID)
	if err != nil {
		return carrier.Request{}, nil, fmt.Errorf("failed to load order: %w", err)
	}
	carrierRow, err := s.repo.GetCarrierByID(ctx, shipment.CarrierID)
	if err != nil {
		return carrier.Request{}, nil, fmt.Errorf("failed to load carrier: %w", err)
	}
	account, err := s.repo.GetAccountByID(ctx, shipment.AccountID)
	if err != nil {
		return carrier.Request{}, nil, fmt.Errorf("failed to load account: %w", err)
	}
	adapter, err := s.registry.Get(carrierRow.Code)
	if err != nil {
		return carrier.Request{}, nil, err
	}
	return carrier.Request{Order: order, Account: account, Shipment: shipment}, adapter, nil
}

func failureMessage(err error) string {
	var ce *carrier.Error
	if errors.As(err, &ce) {
		return ce.Message
	}
	return err.Error()
}
