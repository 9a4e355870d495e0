package smsa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/unifarma/shipping-service/internal/carrier"
	"github.com/unifarma/shipping-service/internal/config"
	"github.com/unifarma/shipping-service/internal/entities"
	"github.com/unifarma/shipping-service/internal/normalize"

	"golang.org/x/time/rate"
)

const timeLayout = "2006-01-02T15:04:05"

// Orders not shipped within this window are auto-cancelled on the carrier side.
const cancelWindow = 30 * 24 * time.Hour

// Adapter talks to the SMSA STAX fulfilment API. All requests go through a
// shared rate limiter because STAX throttles aggressively per customer.
type Adapter struct {
	logger   *slog.Logger
	client   *http.Client
	limiter  *rate.Limiter
	resolver *normalize.Resolver
	baseURL  string
	now      func() time.Time
}

func New(logger *slog.Logger, cfg config.SMSA, resolver *normalize.Resolver) *Adapter {
	return &Adapter{
		logger:   logger.With(slog.String("adapter", "smsa")),
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		resolver: resolver,
		baseURL:  cfg.BaseURL,
		now:      time.Now,
	}
}

type orderItem struct {
	OrderID      int    `json:"orderId"`
	SKU          string `json:"SKU"`
	Quantity     int    `json:"quantity"`
	LotNumber    string `json:"iLotNo"`
	SerialNumber string `json:"serno"`
	ExpiryDate   string `json:"iExpDate"`
}

type fulfilmentOrder struct {
	Passkey    string      `json:"passkey"`
	CustID     string      `json:"CustId"`
	WrhID      string      `json:"WrhId"`
	RefID      string      `json:"Refid"`
	CODAmount  string      `json:"codAmt"`
	Items      []orderItem `json:"fforderitemCreations"`
	PONo       string      `json:"PONo"`
	ShipDate   string      `json:"Shipdt"`
	CancelDate string      `json:"CancelDate"`
	Notes      string      `json:"Notes"`

	ShipToRecipientID string `json:"shipToRecipientId"`
	ShipAccountNo     string `json:"ShipAccountNo"`
	ShipToName        string `json:"ShipToName"`
	ShipToCompany     string `json:"ShipToCompany"`
	ShipToAddress1    string `json:"ShipToAddress1"`
	ShipToAddress2    string `json:"ShipToAddress2"`
	ShipToCity        string `json:"ShipToCity"`
	ShipToZip         string `json:"ShipToZip"`
	ShipToCountry     string `json:"ShipToCountry"`
	ShipToMobile      string `json:"ShipToMobile"`
	ShipToPhone       string `json:"ShipToPhone"`
	ShipToCustomerID  string `json:"ShipToCustomerId"`
}

// STAX answers every call with a single-element array. Orderid is present
// on acceptance, Msg on rejection.
type staxResult struct {
	OrderID json.Number `json:"Orderid"`
	Msg     string      `json:"Msg"`
}

// CreateShipment registers a fulfilment order with STAX and returns the
// carrier-assigned order id as the tracking number.
func (a *Adapter) CreateShipment(ctx context.Context, req carrier.Request) (carrier.Result, error) {
	account := req.Account
	order := req.Order

	if account.Passkey == "" || account.CustomerID == "" {
		return carrier.Result{}, carrier.NewError(carrier.ErrKindConfig,
			"account is missing passkey or customer id", nil)
	}

	warehouseID, err := a.resolver.Warehouse(ctx, req.Shipment.CarrierID, order.ShippingCountry,
		account.Type == entities.AccountTypeDomestic, account.WarehouseID)
	if err != nil {
		return carrier.Result{}, carrier.NewError(carrier.ErrKindConfig,
			"no warehouse for destination "+order.ShippingCountry, err)
	}

	phone := normalize.Phone(order.CustomerPhone, order.ShippingCountry)

	items := make([]orderItem, 0, len(order.Items))
	for _, it := range order.Items {
		expiry := ""
		if !it.ExpiryDate.IsZero() {
			expiry = it.ExpiryDate.Format("2006-01-02")
		}
		items = append(items, orderItem{
			SKU:          a.resolver.SKU(ctx, it.ProductID, it.SKU, order.ShippingCountry),
			Quantity:     it.Quantity,
			LotNumber:    it.LotNumber,
			SerialNumber: it.SerialNumber,
			ExpiryDate:   expiry,
		})
	}

	codAmount := "0"
	if order.IsCOD {
		codAmount = order.CODAmount.String()
	}

	reference := order.ReferenceNumber
	if reference == "" {
		reference = fmt.Sprintf("ORD-%d", order.ID)
	}

	shipDate := a.now().UTC()

	payload := fulfilmentOrder{
		Passkey:    account.Passkey,
		CustID:     account.CustomerID,
		WrhID:      warehouseID,
		RefID:      reference,
		CODAmount:  codAmount,
		Items:      items,
		PONo:       reference,
		ShipDate:   shipDate.Format(timeLayout),
		CancelDate: shipDate.Add(cancelWindow).Format(timeLayout),
		Notes:      order.Notes,

		ShipToName:     order.CustomerName,
		ShipToAddress1: order.ShippingAddress,
		ShipToCity:     order.ShippingCity,
		ShipToZip:      order.ShippingPostalCode,
		ShipToCountry:  order.ShippingCountry,
		ShipToMobile:   phone,
		ShipToPhone:    phone,
	}

	body, err := a.postJSON(ctx, a.base(account)+"/FulfilmentOrder", payload)
	if err != nil {
		return carrier.Result{}, err
	}

	var results []staxResult
	if err := json.Unmarshal(body, &results); err != nil || len(results) == 0 {
		return carrier.Result{Raw: body}, carrier.NewError(carrier.ErrKindTransport,
			"unreadable fulfilment response", err)
	}

	first := results[0]
	if first.OrderID == "" {
		msg := first.Msg
		if msg == "" {
			msg = "fulfilment order was not accepted"
		}
		return carrier.Result{Raw: body}, carrier.NewError(carrier.ErrKindRejected, msg, nil)
	}

	a.logger.Info("fulfilment order accepted",
		slog.String("reference", reference), slog.String("order_id", first.OrderID.String()))

	return carrier.Result{
		TrackingNumber: first.OrderID.String(),
		Status:         entities.ShipmentStatusSubmitted,
		Raw:            body,
	}, nil
}

// TrackShipment fetches the tracking history for the shipment and maps the
// most recent carrier event to an internal status. An empty history is not
// an error; the current status is kept.
func (a *Adapter) TrackShipment(ctx context.Context, req carrier.Request) (carrier.Result, error) {
	if req.Account.Passkey == "" {
		return carrier.Result{}, carrier.NewError(carrier.ErrKindConfig, "account is missing passkey", nil)
	}
	if req.Shipment.TrackingNumber == "" {
		return carrier.Result{}, carrier.NewError(carrier.ErrKindConfig, "shipment has no tracking number", nil)
	}

	body, err := a.getJSON(ctx, a.base(req.Account)+"/Tracking", url.Values{
		"passkey":   {req.Account.Passkey},
		"Reference": {req.Shipment.TrackingNumber},
	})
	if err != nil {
		return carrier.Result{}, err
	}

	var events []struct {
		Status   string `json:"Status"`
		Date     string `json:"Date"`
		Location string `json:"Location"`
		Details  string `json:"Details"`
	}
	if err := json.Unmarshal(body, &events); err != nil {
		return carrier.Result{Raw: body}, carrier.NewError(carrier.ErrKindTransport,
			"unreadable tracking response", err)
	}

	if len(events) == 0 {
		return carrier.Result{
			Status:  req.Shipment.Status,
			Message: "no tracking events yet",
			Raw:     body,
		}, nil
	}

	// The last element is the most recent event and is authoritative.
	latest := events[len(events)-1]

	return carrier.Result{
		TrackingNumber: req.Shipment.TrackingNumber,
		Status:         mapStatus(latest.Status),
		Message:        latest.Status,
		Raw:            body,
	}, nil
}

// CheckConfirmation asks STAX whether the fulfilment order was confirmed by
// the warehouse. The raw response is returned as-is for operators.
func (a *Adapter) CheckConfirmation(ctx context.Context, req carrier.Request) (carrier.Result, error) {
	account := req.Account
	if account.Passkey == "" || account.CustomerID == "" || account.WarehouseID == "" {
		return carrier.Result{}, carrier.NewError(carrier.ErrKindConfig,
			"account is missing passkey, customer id or warehouse id", nil)
	}

	reference := req.Order.ReferenceNumber
	if reference == "" {
		reference = fmt.Sprintf("ORD-%d", req.Order.ID)
	}

	body, err := a.getJSON(ctx, a.base(account)+"/FulfilmentOrderConfirmation", url.Values{
		"passkey":        {account.Passkey},
		"CustId":         {account.CustomerID},
		"WrhId":          {account.WarehouseID},
		"orderreference": {reference},
	})
	if err != nil {
		return carrier.Result{}, err
	}

	return carrier.Result{Raw: body}, nil
}

// CheckStock returns the warehouse stock level for one SKU.
func (a *Adapter) CheckStock(ctx context.Context, account entities.Account, sku string) (carrier.Result, error) {
	if account.Passkey == "" || account.CustomerID == "" || account.WarehouseID == "" {
		return carrier.Result{}, carrier.NewError(carrier.ErrKindConfig,
			"account is missing passkey, customer id or warehouse id", nil)
	}

	body, err := a.getJSON(ctx, a.base(account)+"/StockStatusDetail", url.Values{
		"passkey": {account.Passkey},
		"CustId":  {account.CustomerID},
		"WrhId":   {account.WarehouseID},
		"SKU":     {sku},
	})
	if err != nil {
		return carrier.Result{}, err
	}

	return carrier.Result{Raw: body}, nil
}

// CancelShipment always fails: STAX has no cancellation endpoint. No network
// call is made.
func (a *Adapter) CancelShipment(_ context.Context, _ carrier.Request) (carrier.Result, error) {
	return carrier.Result{}, carrier.NewError(carrier.ErrKindUnsupported,
		"smsa does not support shipment cancellation", nil)
}

// base prefers the account-level endpoint, used for staging credentials.
func (a *Adapter) base(account entities.Account) string {
	if account.APIBaseURL != "" {
		return account.APIBaseURL
	}
	return a.baseURL
}

func (a *Adapter) postJSON(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, carrier.NewError(carrier.ErrKindTransport, "rate limiter interrupted", err)
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, carrier.NewError(carrier.ErrKindInternal, "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return nil, carrier.NewError(carrier.ErrKindInternal, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return a.do(req)
}

func (a *Adapter) getJSON(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, carrier.NewError(carrier.ErrKindTransport, "rate limiter interrupted", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, carrier.NewError(carrier.ErrKindInternal, "failed to build request", err)
	}

	return a.do(req)
}

func (a *Adapter) do(req *http.Request) ([]byte, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, carrier.NewError(carrier.ErrKindTransport, "request cancelled", err)
		}
		return nil, carrier.NewError(carrier.ErrKindTransport, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, carrier.NewError(carrier.ErrKindTransport, "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, carrier.NewError(carrier.ErrKindTransport,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, truncate(body, 256)), nil)
	}

	return body, nil
}

// mapStatus translates a STAX tracking status to an internal one. Unknown
// statuses mean the parcel is still moving.
func mapStatus(s string) entities.ShipmentStatus {
	switch s {
	case "Shipment Created":
		return entities.ShipmentStatusSubmitted
	case "Picked Up":
		return entities.ShipmentStatusAccepted
	case "In Transit", "Out For Delivery":
		return entities.ShipmentStatusInTransit
	case "Delivered":
		return entities.ShipmentStatusDelivered
	case "Returned":
		return entities.ShipmentStatusReturned
	case "Cancelled":
		return entities.ShipmentStatusCancelled
	case "Exception":
		return entities.ShipmentStatusError
	}
	return entities.ShipmentStatusInTransit
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
