package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/unifarma/shipping-service/internal/carrier"
	"github.com/unifarma/shipping-service/internal/entities"
	"github.com/unifarma/shipping-service/internal/service"
	"github.com/unifarma/shipping-service/pkg/trm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nopTxManager runs callbacks without a real database transaction.
type nopTxManager struct{}

func (nopTxManager) BeginTx(ctx context.Context) (context.Context, trm.Transaction, error) {
	return ctx, nil, errors.New("not implemented")
}

func (nopTxManager) Do(ctx context.Context, callback func(ctx context.Context) error) error {
	return callback(ctx)
}

type fakeDispatchRepo struct {
	orders    map[int64]entities.Order
	shipments map[int64]entities.Shipment
	carriers  map[int64]entities.Carrier
	accounts  map[int64]entities.Account

	nextShipmentID int64
	activeOrders   map[int64]bool
}

func newFakeDispatchRepo() *fakeDispatchRepo {
	return &fakeDispatchRepo{
		orders:         map[int64]entities.Order{},
		shipments:      map[int64]entities.Shipment{},
		carriers:       map[int64]entities.Carrier{},
		accounts:       map[int64]entities.Account{},
		activeOrders:   map[int64]bool{},
		nextShipmentID: 100,
	}
}

func (f *fakeDispatchRepo) GetOrderByID(_ context.Context, id int64) (entities.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeDispatchRepo) ListDispatchableOrders(_ context.Context) ([]entities.Order, error) {
	var out []entities.Order
	for _, o := range f.orders {
		if o.Status == entities.OrderStatusNew && o.HasCarrier() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeDispatchRepo) UpdateOrderStatus(_ context.Context, id int64, status entities.OrderStatus) error {
	o := f.orders[id]
	o.Status = status
	f.orders[id] = o
	return nil
}

func (f *fakeDispatchRepo) GetShipmentByID(_ context.Context, id int64) (entities.Shipment, error) {
	s, ok := f.shipments[id]
	if !ok {
		return entities.Shipment{}, entities.ErrShipmentNotFound
	}
	return s, nil
}

func (f *fakeDispatchRepo) ListActiveShipments(_ context.Context) ([]entities.Shipment, error) {
	var out []entities.Shipment
	for _, s := range f.shipments {
		if !s.Status.Terminal() && s.Status != entities.ShipmentStatusPending {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeDispatchRepo) HasActiveShipment(_ context.Context, orderID int64) (bool, error) {
	return f.activeOrders[orderID], nil
}

func (f *fakeDispatchRepo) CreateShipment(_ context.Context, s entities.Shipment) (int64, error) {
	f.nextShipmentID++
	s.ID = f.nextShipmentID
	f.shipments[s.ID] = s
	f.activeOrders[s.OrderID] = true
	return s.ID, nil
}

func (f *fakeDispatchRepo) UpdateShipment(_ context.Context, s entities.Shipment) error {
	f.shipments[s.ID] = s
	if s.Status.Terminal() {
		f.activeOrders[s.OrderID] = false
	}
	return nil
}

func (f *fakeDispatchRepo) GetCarrierByID(_ context.Context, id int64) (entities.Carrier, error) {
	c, ok := f.carriers[id]
	if !ok {
		return entities.Carrier{}, entities.ErrCarrierNotFound
	}
	return c, nil
}

func (f *fakeDispatchRepo) GetAccountByID(_ context.Context, id int64) (entities.Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return entities.Account{}, entities.ErrAccountNotFound
	}
	return a, nil
}

// scriptedAdapter returns canned results per operation.
type scriptedAdapter struct {
	createRes carrier.Result
	createErr error
	trackRes  carrier.Result
	trackErr  error

	createCalls int
	trackCalls  int
	panics      bool
}

func (a *scriptedAdapter) CreateShipment(context.Context, carrier.Request) (carrier.Result, error) {
	a.createCalls++
	if a.panics {
		panic("adapter exploded")
	}
	return a.createRes, a.createErr
}

func (a *scriptedAdapter) TrackShipment(context.Context, carrier.Request) (carrier.Result, error) {
	a.trackCalls++
	return a.trackRes, a.trackErr
}

func (a *scriptedAdapter) CancelShipment(context.Context, carrier.Request) (carrier.Result, error) {
	return carrier.Result{}, carrier.NewError(carrier.ErrKindUnsupported, "not supported", nil)
}

func newDispatch(repo *fakeDispatchRepo, adapter carrier.Adapter) *service.DispatchService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := carrier.NewRegistry()
	reg.Register("smsa", adapter)
	return service.NewDispatchService(logger, repo, reg, nopTxManager{})
}

func seedOrder(repo *fakeDispatchRepo) {
	repo.orders[1] = entities.Order{
		ID: 1, DealID: "D-1", Status: entities.OrderStatusNew,
		CarrierID: 3, AccountID: 7, ShippingCountry: "Jordan",
	}
	repo.carriers[3] = entities.Carrier{ID: 3, Code: "smsa", IsActive: true}
	repo.accounts[7] = entities.Account{ID: 7, CarrierID: 3, Passkey: "pk", CustomerID: "C1"}
}

func TestDispatchService_CreateShipmentForOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted shipment", func(t *testing.T) {
		repo := newFakeDispatchRepo()
		seedOrder(repo)
		adapter := &scriptedAdapter{createRes: carrier.Result{
			TrackingNumber: "TRK-9",
			Status:         entities.ShipmentStatusSubmitted,
			Raw:            json.RawMessage(`[{"Orderid":"TRK-9"}]`),
		}}

		shipment, err := newDispatch(repo, adapter).CreateShipmentForOrder(ctx, 1)
		require.NoError(t, err)

		assert.Equal(t, entities.ShipmentStatusSubmitted, shipment.Status)
		assert.Equal(t, "TRK-9", shipment.TrackingNumber)
		assert.False(t, shipment.SubmittedAt.IsZero())
		// pending creation + submission
		require.Len(t, shipment.Events, 2)
		assert.Equal(t, entities.ShipmentStatusSubmitted, shipment.Events[1].Status)

		assert.Equal(t, entities.OrderStatusProcessing, repo.orders[1].Status)
	})

	t.Run("carrier rejection is persisted, order untouched", func(t *testing.T) {
		repo := newFakeDispatchRepo()
		seedOrder(repo)
		adapter := &scriptedAdapter{
			createErr: carrier.NewError(carrier.ErrKindRejected, "SKU not found", nil),
			createRes: carrier.Result{Raw: json.RawMessage(`[{"Msg":"SKU not found"}]`)},
		}

		shipment, err := newDispatch(repo, adapter).CreateShipmentForOrder(ctx, 1)
		require.NoError(t, err)

		assert.Equal(t, entities.ShipmentStatusError, shipment.Status)
		assert.Equal(t, "SKU not found", shipment.ErrorMessage)
		require.Len(t, shipment.Events, 2)
		assert.Equal(t, entities.ShipmentStatusError, shipment.Events[1].Status)

		assert.Equal(t, entities.OrderStatusNew, repo.orders[1].Status)
		// the row exists and is terminal
		stored := repo.shipments[shipment.ID]
		assert.Equal(t, entities.ShipmentStatusError, stored.Status)
	})

	t.Run("no carrier configured writes nothing", func(t *testing.T) {
		repo := newFakeDispatchRepo()
		seedOrder(repo)
		order := repo.orders[1]
		order.CarrierID, order.AccountID = 0, 0
		repo.orders[1] = order
		adapter := &scriptedAdapter{}

		_, err := newDispatch(repo, adapter).CreateShipmentForOrder(ctx, 1)
		assert.ErrorIs(t, err, entities.ErrNoCarrierConfigured)
		assert.Empty(t, repo.shipments)
		assert.Zero(t, adapter.createCalls)
	})

	t.Run("second dispatch while one is in flight", func(t *testing.T) {
		repo := newFakeDispatchRepo()
		seedOrder(repo)
		repo.activeOrders[1] = true
		adapter := &scriptedAdapter{}

		_, err := newDispatch(repo, adapter).CreateShipmentForOrder(ctx, 1)
		assert.ErrorIs(t, err, entities.ErrShipmentInFlight)
		assert.Zero(t, adapter.createCalls)
	})

	t.Run("unknown order", func(t *testing.T) {
		repo := newFakeDispatchRepo()
		_, err := newDispatch(repo, &scriptedAdapter{}).CreateShipmentForOrder(ctx, 404)
		assert.ErrorIs(t, err, entities.ErrOrderNotFound)
	})

	t.Run("adapter panic becomes an error shipment", func(t *testing.T) {
		repo := newFakeDispatchRepo()
		seedOrder(repo)
		adapter := &scriptedAdapter{panics: true}

		shipment, err := newDispatch(repo, adapter).CreateShipmentForOrder(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, entities.ShipmentStatusError, shipment.Status)
		assert.Contains(t, shipment.ErrorMessage, "adapter panic")
		assert.Equal(t, entities.OrderStatusNew, repo.orders[1].Status)
	})
}

func TestDispatchService_RefreshShipmentTracking(t *testing.T) {
	ctx := context.Background()

	seed := func(repo *fakeDispatchRepo, status entities.ShipmentStatus) {
		seedOrder(repo)
		repo.shipments[50] = entities.Shipment{
			ID: 50, OrderID: 1, CarrierID: 3, AccountID: 7,
			TrackingNumber: "TRK-9", Status: status,
		}
	}

	t.Run("status change appends one event", func(t *testing.T) {
		repo := newFakeDispatchRepo()
		seed(repo, entities.ShipmentStatusSubmitted)
		adapter := &scriptedAdapter{trackRes: carrier.Result{
			Status:  entities.ShipmentStatusInTransit,
			Message: "In Transit",
		}}

		shipment, err := newDispatch(repo, adapter).RefreshShipmentTracking(ctx, 50)
		require.NoError(t, err)
		assert.Equal(t, entities.ShipmentStatusInTransit, shipment.Status)
		require.Len(t, shipment.Events, 1)
		assert.Contains(t, shipment.Events[0].Message, "submitted")
		assert.Contains(t, shipment.Events[0].Message, "in_transit")
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		repo := newFakeDispatchRepo()
		seed(repo, entities.ShipmentStatusInTransit)
		adapter := &scriptedAdapter{trackRes: carrier.Result{Status: entities.ShipmentStatusInTransit}}

		shipment, err := newDispatch(repo, adapter).RefreshShipmentTracking(ctx, 50)
		require.NoError(t, err)
		assert.Empty(t, shipment.Events)
		assert.Equal(t, entities.ShipmentStatusInTransit, repo.shipments[50].Status)
	})

	t.Run("delivered propagates to the order", func(t *testing.T) {
		repo := newFakeDispatchRepo()
		seed(repo, entities.ShipmentStatusInTransit)
		adapter := &scriptedAdapter{trackRes: carrier.Result{Status: entities.ShipmentStatusDelivered}}

		shipment, err := newDispatch(repo, adapter).RefreshShipmentTracking(ctx, 50)
		require.NoError(t, err)
		assert.Equal(t, entities.ShipmentStatusDelivered, shipment.Status)
		assert.False(t, shipment.DeliveredAt.IsZero())
		assert.Equal(t, entities.OrderStatusDelivered, repo.orders[1].Status)
	})

	t.Run("returned propagates to the order", func(t *testing.T) {
		repo := newFakeDispatchRepo()
		seed(repo, entities.ShipmentStatusInTransit)
		adapter := &scriptedAdapter{trackRes: carrier.Result{Status: entities.ShipmentStatusReturned}}

		_, err := newDispatch(repo, adapter).RefreshShipmentTracking(ctx, 50)
		require.NoError(t, err)
		assert.Equal(t, entities.OrderStatusReturned, repo.orders[1].Status)
	})

	t.Run("carrier failure persists nothing", func(t *testing.T) {
		repo := newFakeDispatchRepo()
		seed(repo, entities.ShipmentStatusSubmitted)
		adapter := &scriptedAdapter{trackErr: carrier.NewError(carrier.ErrKindTransport, "timeout", nil)}

		_, err := newDispatch(repo, adapter).RefreshShipmentTracking(ctx, 50)
		require.Error(t, err)
		assert.Equal(t, entities.ShipmentStatusSubmitted, repo.shipments[50].Status)
		assert.Empty(t, repo.shipments[50].Events)
	})

	t.Run("terminal shipment is left alone", func(t *testing.T) {
		repo := newFakeDispatchRepo()
		seed(repo, entities.ShipmentStatusDelivered)
		adapter := &scriptedAdapter{}

		shipment, err := newDispatch(repo, adapter).RefreshShipmentTracking(ctx, 50)
		require.NoError(t, err)
		assert.Equal(t, entities.ShipmentStatusDelivered, shipment.Status)
		assert.Zero(t, adapter.trackCalls)
	})

	t.Run("no tracking number", func(t *testing.T) {
		repo := newFakeDispatchRepo()
		seed(repo, entities.ShipmentStatusPending)
		repo.shipments[50] = entities.Shipment{ID: 50, OrderID: 1, CarrierID: 3, AccountID: 7,
			Status: entities.ShipmentStatusPending}

		_, err := newDispatch(repo, &scriptedAdapter{}).RefreshShipmentTracking(ctx, 50)
		assert.ErrorIs(t, err, entities.ErrNoTrackingNumber)
	})
}

func TestDispatchService_Sweeps(t *testing.T) {
	ctx := context.Background()

	t.Run("dispatch sweep continues past failures", func(t *testing.T) {
		repo := newFakeDispatchRepo()
		seedOrder(repo)
		// a second dispatchable order pointing at a carrier with no adapter
		repo.orders[2] = entities.Order{
			ID: 2, DealID: "D-2", Status: entities.OrderStatusNew,
			CarrierID: 4, AccountID: 8,
		}
		repo.carriers[4] = entities.Carrier{ID: 4, Code: "aramex"}
		repo.accounts[8] = entities.Account{ID: 8, CarrierID: 4}

		adapter := &scriptedAdapter{createRes: carrier.Result{
			TrackingNumber: "TRK-1", Status: entities.ShipmentStatusSubmitted,
		}}

		submitted, err := newDispatch(repo, adapter).ProcessNewOrders(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, submitted)
		assert.Equal(t, entities.OrderStatusProcessing, repo.orders[1].Status)
		assert.Equal(t, entities.OrderStatusNew, repo.orders[2].Status)
	})

	t.Run("tracking sweep counts status changes", func(t *testing.T) {
		repo := newFakeDispatchRepo()
		seedOrder(repo)
		repo.shipments[51] = entities.Shipment{ID: 51, OrderID: 1, CarrierID: 3, AccountID: 7,
			TrackingNumber: "A", Status: entities.ShipmentStatusSubmitted}
		repo.shipments[52] = entities.Shipment{ID: 52, OrderID: 1, CarrierID: 3, AccountID: 7,
			TrackingNumber: "B", Status: entities.ShipmentStatusInTransit}

		adapter := &scriptedAdapter{trackRes: carrier.Result{Status: entities.ShipmentStatusInTransit}}

		updated, err := newDispatch(repo, adapter).RefreshActiveShipments(ctx)
		require.NoError(t, err)
		// 51 moves to in_transit, 52 already there
		assert.Equal(t, 1, updated)
	})
}

func TestDispatchService_CheckOrderConfirmation(t *testing.T) {
	repo := newFakeDispatchRepo()
	seedOrder(repo)
	repo.shipments[50] = entities.Shipment{ID: 50, OrderID: 1, CarrierID: 3, AccountID: 7,
		TrackingNumber: "TRK-9", Status: entities.ShipmentStatusSubmitted}

	// scriptedAdapter has no confirmation endpoint
	_, err := newDispatch(repo, &scriptedAdapter{}).CheckOrderConfirmation(context.Background(), 50)
	require.Error(t, err)
	assert.Equal(t, carrier.ErrKindUnsupported, carrier.KindOf(err))
}

// stockAdapter adds a stock endpoint on top of scriptedAdapter.
type stockAdapter struct {
	scriptedAdapter
	gotSKU string
}

func (a *stockAdapter) CheckStock(_ context.Context, _ entities.Account, sku string) (carrier.Result, error) {
	a.gotSKU = sku
	return carrier.Result{Raw: json.RawMessage(`[{"SKU":"SKU-1","Qty":12}]`)}, nil
}

func TestDispatchService_CheckAccountStock(t *testing.T) {
	ctx := context.Background()

	t.Run("stock returned", func(t *testing.T) {
		repo := newFakeDispatchRepo()
		seedOrder(repo)
		adapter := &stockAdapter{}

		raw, err := newDispatch(repo, adapter).CheckAccountStock(ctx, 7, "SKU-1")
		require.NoError(t, err)
		assert.Equal(t, "SKU-1", adapter.gotSKU)
		assert.JSONEq(t, `[{"SKU":"SKU-1","Qty":12}]`, string(raw))
	})

	t.Run("carrier without stock endpoint", func(t *testing.T) {
		repo := newFakeDispatchRepo()
		seedOrder(repo)

		_, err := newDispatch(repo, &scriptedAdapter{}).CheckAccountStock(ctx, 7, "SKU-1")
		require.Error(t, err)
		assert.Equal(t, carrier.ErrKindUnsupported, carrier.KindOf(err))
	})

	t.Run("unknown account", func(t *testing.T) {
		repo := newFakeDispatchRepo()
		seedOrder(repo)

		_, err := newDispatch(repo, &scriptedAdapter{}).CheckAccountStock(ctx, 99, "SKU-1")
		assert.ErrorIs(t, err, entities.ErrAccountNotFound)
	})
}

func TestDispatchService_CancelShipment(t *testing.T) {
	repo := newFakeDispatchRepo()
	seedOrder(repo)
	repo.shipments[50] = entities.Shipment{ID: 50, OrderID: 1, CarrierID: 3, AccountID: 7,
		TrackingNumber: "TRK-9", Status: entities.ShipmentStatusSubmitted}

	_, err := newDispatch(repo, &scriptedAdapter{}).CancelShipment(context.Background(), 50)
	require.Error(t, err)
	assert.Equal(t, carrier.ErrKindUnsupported, carrier.KindOf(err))
	assert.Equal(t, entities.ShipmentStatusSubmitted, repo.shipments[50].Status)
}
