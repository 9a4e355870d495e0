package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/unifarma/shipping-service/internal/carrier"
	"github.com/unifarma/shipping-service/internal/entities"
	"github.com/unifarma/shipping-service/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Store interface {
	GetOrderByID(ctx context.Context, id int64) (entities.Order, error)
	ListOrders(ctx context.Context, status entities.OrderStatus, limit, offset uint64) ([]entities.Order, error)

	GetShipmentByID(ctx context.Context, id int64) (entities.Shipment, error)
	ListShipments(ctx context.Context, status entities.ShipmentStatus, limit, offset uint64) ([]entities.Shipment, error)

	ListCarriers(ctx context.Context) ([]entities.Carrier, error)
	CreateCarrier(ctx context.Context, c entities.Carrier) (int64, error)
	GetCarrierByID(ctx context.Context, id int64) (entities.Carrier, error)

	ListActiveAccounts(ctx context.Context, carrierHint string, accountType entities.AccountType) ([]entities.Account, error)
	CreateAccount(ctx context.Context, a entities.Account) (int64, error)
	GetAccountByID(ctx context.Context, id int64) (entities.Account, error)
}

type Dispatcher interface {
	CreateShipmentForOrder(ctx context.Context, orderID int64) (entities.Shipment, error)
	RefreshShipmentTracking(ctx context.Context, shipmentID int64) (entities.Shipment, error)
	CancelShipment(ctx context.Context, shipmentID int64) (entities.Shipment, error)
	CheckOrderConfirmation(ctx context.Context, shipmentID int64) (json.RawMessage, error)
	CheckAccountStock(ctx context.Context, accountID int64, sku string) (json.RawMessage, error)
}

type HTTPHandler struct {
	logger   *slog.Logger
	validate *validator.Validate
	store    Store
	dispatch Dispatcher
}

func NewHTTPHandler(logger *slog.Logger, store Store, dispatch Dispatcher) *HTTPHandler {
	return &HTTPHandler{
		logger:   logger.With(slog.String("handler", "http")),
		validate: validator.New(),
		store:    store,
		dispatch: dispatch,
	}
}

func (h *HTTPHandler) Init(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.ListOrders)
		r.Get("/{order_id}", h.GetOrderByID)
		r.Post("/{order_id}/shipments", h.DispatchOrder)
	})

	r.Route("/shipments", func(r chi.Router) {
		r.Get("/", h.ListShipments)
		r.Get("/{shipment_id}", h.GetShipmentByID)
		r.Get("/{shipment_id}/confirmation", h.GetShipmentConfirmation)
		r.Post("/{shipment_id}/tracking", h.RefreshTracking)
		r.Post("/{shipment_id}/cancel", h.CancelShipment)
	})

	r.Route("/carriers", func(r chi.Router) {
		r.Get("/", h.ListCarriers)
		r.Post("/", h.CreateCarrier)
	})

	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.ListAccounts)
		r.Post("/", h.CreateAccount)
		r.Get("/{account_id}/stock", h.CheckAccountStock)
	})
}

// GetOrderByID returns one order with its items.
// @Summary      Get order
// @Tags         orders
// @Param        order_id   path   int  true  "Order ID"
// @Success      200  {object}  Order
// @Failure      404  {object}  utils.ErrorResponse
// @Router       /orders/{order_id} [get]
func (h *HTTPHandler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "order_id")
	if err != nil {
		utils.WriteError(w, "invalid order id", http.StatusBadRequest)
		return
	}

	order, err := h.store.GetOrderByID(ctx, id)
	if errors.Is(err, entities.ErrOrderNotFound) {
		utils.WriteError(w, "order not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get order", slog.Any("error", err), slog.Int64("order_id", id))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

// ListOrders returns a page of orders, optionally filtered by status.
// @Summary      List orders
// @Tags         orders
// @Param        status  query  string  false  "Filter by status"
// @Success      200  {array}  Order
// @Router       /orders [get]
func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, offset := pagination(r)

	orders, err := h.store.ListOrders(ctx, entities.OrderStatus(r.URL.Query().Get("status")), limit, offset)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list orders", slog.Any("error", err))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, OrderEntityToJSON(o))
	}
	utils.WriteJSON(w, out, http.StatusOK)
}

// DispatchOrder hands the order to its carrier.
// @Summary      Dispatch order to its carrier
// @Tags         shipments
// @Param        order_id   path   int  true  "Order ID"
// @Success      201  {object}  Shipment
// @Failure      400  {object}  utils.ErrorResponse
// @Failure      404  {object}  utils.ErrorResponse
// @Router       /orders/{order_id}/shipments [post]
func (h *HTTPHandler) DispatchOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "order_id")
	if err != nil {
		utils.WriteError(w, "invalid order id", http.StatusBadRequest)
		return
	}

	shipment, err := h.dispatch.CreateShipmentForOrder(ctx, id)
	switch {
	case errors.Is(err, entities.ErrOrderNotFound):
		utils.WriteError(w, "order not found", http.StatusNotFound)
		return
	case errors.Is(err, entities.ErrNoCarrierConfigured):
		utils.WriteError(w, "order has no carrier configured", http.StatusBadRequest)
		return
	case errors.Is(err, entities.ErrShipmentInFlight):
		utils.WriteError(w, "order already has an active shipment", http.StatusConflict)
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "failed to dispatch order", slog.Any("error", err), slog.Int64("order_id", id))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// Carrier rejections are part of the shipment, not an HTTP error.
	utils.WriteJSON(w, ShipmentEntityToJSON(shipment), http.StatusCreated)
}

func (h *HTTPHandler) GetShipmentByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "shipment_id")
	if err != nil {
		utils.WriteError(w, "invalid shipment id", http.StatusBadRequest)
		return
	}

	shipment, err := h.store.GetShipmentByID(ctx, id)
	if errors.Is(err, entities.ErrShipmentNotFound) {
		utils.WriteError(w, "shipment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get shipment", slog.Any("error", err), slog.Int64("shipment_id", id))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, ShipmentEntityToJSON(shipment), http.StatusOK)
}

func (h *HTTPHandler) ListShipments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, offset := pagination(r)

	shipments, err := h.store.ListShipments(ctx, entities.ShipmentStatus(r.URL.Query().Get("status")), limit, offset)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list shipments", slog.Any("error", err))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	out := make([]Shipment, 0, len(shipments))
	for _, s := range shipments {
		out = append(out, ShipmentEntityToJSON(s))
	}
	utils.WriteJSON(w, out, http.StatusOK)
}

// RefreshTracking polls the carrier for the current shipment status.
// @Summary      Refresh shipment tracking
// @Tags         shipments
// @Param        shipment_id   path   int  true  "Shipment ID"
// @Success      200  {object}  Shipment
// @Router       /shipments/{shipment_id}/tracking [post]
func (h *HTTPHandler) RefreshTracking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "shipment_id")
	if err != nil {
		utils.WriteError(w, "invalid shipment id", http.StatusBadRequest)
		return
	}

	shipment, err := h.dispatch.RefreshShipmentTracking(ctx, id)
	switch {
	case errors.Is(err, entities.ErrShipmentNotFound):
		utils.WriteError(w, "shipment not found", http.StatusNotFound)
		return
	case errors.Is(err, entities.ErrNoTrackingNumber):
		utils.WriteError(w, "shipment has no tracking number", http.StatusBadRequest)
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "failed to refresh tracking", slog.Any("error", err), slog.Int64("shipment_id", id))
		utils.WriteError(w, "failed to reach carrier", http.StatusBadGateway)
		return
	}

	utils.WriteJSON(w, ShipmentEntityToJSON(shipment), http.StatusOK)
}

func (h *HTTPHandler) CancelShipment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "shipment_id")
	if err != nil {
		utils.WriteError(w, "invalid shipment id", http.StatusBadRequest)
		return
	}

	shipment, err := h.dispatch.CancelShipment(ctx, id)
	switch {
	case errors.Is(err, entities.ErrShipmentNotFound):
		utils.WriteError(w, "shipment not found", http.StatusNotFound)
		return
	case carrier.KindOf(err) == carrier.ErrKindUnsupported && err != nil:
		utils.WriteError(w, "carrier does not support cancellation", http.StatusBadRequest)
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "failed to cancel shipment", slog.Any("error", err), slog.Int64("shipment_id", id))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, ShipmentEntityToJSON(shipment), http.StatusOK)
}

func (h *HTTPHandler) GetShipmentConfirmation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "shipment_id")
	if err != nil {
		utils.WriteError(w, "invalid shipment id", http.StatusBadRequest)
		return
	}

	raw, err := h.dispatch.CheckOrderConfirmation(ctx, id)
	switch {
	case errors.Is(err, entities.ErrShipmentNotFound):
		utils.WriteError(w, "shipment not found", http.StatusNotFound)
		return
	case carrier.KindOf(err) == carrier.ErrKindUnsupported && err != nil:
		utils.WriteError(w, "carrier does not expose confirmation", http.StatusBadRequest)
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "failed to check confirmation", slog.Any("error", err), slog.Int64("shipment_id", id))
		utils.WriteError(w, "failed to reach carrier", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

func (h *HTTPHandler) ListCarriers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	carriers, err := h.store.ListCarriers(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list carriers", slog.Any("error", err))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	out := make([]Carrier, 0, len(carriers))
	for _, c := range carriers {
		out = append(out, CarrierEntityToJSON(c))
	}
	utils.WriteJSON(w, out, http.StatusOK)
}

func (h *HTTPHandler) CreateCarrier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateCarrierRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	id, err := h.store.CreateCarrier(ctx, CreateCarrierRequestToEntity(req))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create carrier", slog.Any("error", err))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	created, err := h.store.GetCarrierByID(ctx, id)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load created carrier", slog.Any("error", err))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, CarrierEntityToJSON(created), http.StatusCreated)
}

func (h *HTTPHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	accounts, err := h.store.ListActiveAccounts(ctx, q.Get("carrier"), entities.AccountType(q.Get("type")))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list accounts", slog.Any("error", err))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	out := make([]Account, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, AccountEntityToJSON(a))
	}
	utils.WriteJSON(w, out, http.StatusOK)
}

func (h *HTTPHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateAccountRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	if _, err := h.store.GetCarrierByID(ctx, req.CarrierID); errors.Is(err, entities.ErrCarrierNotFound) {
		utils.WriteError(w, "carrier not found", http.StatusNotFound)
		return
	} else if err != nil {
		h.logger.ErrorContext(ctx, "failed to check carrier", slog.Any("error", err))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	id, err := h.store.CreateAccount(ctx, CreateAccountRequestToEntity(req))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create account", slog.Any("error", err))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	created, err := h.store.GetAccountByID(ctx, id)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load created account", slog.Any("error", err))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, AccountEntityToJSON(created), http.StatusCreated)
}

// CheckAccountStock proxies the carrier's warehouse stock lookup.
// @Summary      Check warehouse stock for a SKU
// @Tags         accounts
// @Param        account_id  path   int     true  "Account ID"
// @Param        sku         query  string  true  "SKU"
// @Success      200
// @Router       /accounts/{account_id}/stock [get]
func (h *HTTPHandler) CheckAccountStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "account_id")
	if err != nil {
		utils.WriteError(w, "invalid account id", http.StatusBadRequest)
		return
	}
	sku := r.URL.Query().Get("sku")
	if sku == "" {
		utils.WriteError(w, "sku is required", http.StatusBadRequest)
		return
	}

	raw, err := h.dispatch.CheckAccountStock(ctx, id, sku)
	switch {
	case errors.Is(err, entities.ErrAccountNotFound):
		utils.WriteError(w, "account not found", http.StatusNotFound)
		return
	case carrier.KindOf(err) == carrier.ErrKindUnsupported && err != nil:
		utils.WriteError(w, "carrier does not expose stock levels", http.StatusBadRequest)
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "failed to check stock", slog.Any("error", err), slog.Int64("account_id", id))
		utils.WriteError(w, "failed to reach carrier", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func pagination(r *http.Request) (limit, offset uint64) {
	limit = 50
	if v, err := strconv.ParseUint(r.URL.Query().Get("limit"), 10, 64); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.ParseUint(r.URL.Query().Get("offset"), 10, 64); err == nil {
		offset = v
	}
	return limit, offset
}
