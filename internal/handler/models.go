package handler

import (
	"encoding/json"
	"time"

	"github.com/unifarma/shipping-service/internal/entities"
)

// Order is the API shape of an order. Money fields are strings so clients
// never see float artifacts.
type Order struct {
	ID              int64  `json:"id"`
	DealID          string `json:"deal_id"`
	ReferenceNumber string `json:"reference_number"`
	Status          string `json:"status"`

	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`

	ShippingCountry    string `json:"shipping_country"`
	ShippingCity       string `json:"shipping_city,omitempty"`
	ShippingAddress    string `json:"shipping_address,omitempty"`
	ShippingPostalCode string `json:"shipping_postal_code,omitempty"`

	TotalAmount string `json:"total_amount"`
	CODAmount   string `json:"cod_amount"`
	IsCOD       bool   `json:"is_cod"`

	CarrierID int64 `json:"carrier_id,omitempty"`
	AccountID int64 `json:"account_id,omitempty"`

	Notes string `json:"notes,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	ShippedAt *time.Time `json:"shipped_at,omitempty"`

	Items []OrderItem `json:"items,omitempty"`
}

type OrderItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	SKU         string `json:"sku,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	TotalPrice  string `json:"total_price"`

	LotNumber    string `json:"lot_number,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	ExpiryDate   string `json:"expiry_date,omitempty"`
}

type Shipment struct {
	ID        int64 `json:"id"`
	OrderID   int64 `json:"order_id"`
	CarrierID int64 `json:"carrier_id"`
	AccountID int64 `json:"account_id"`

	TrackingNumber string `json:"tracking_number,omitempty"`
	Status         string `json:"status"`
	ErrorMessage   string `json:"error_message,omitempty"`
	Notes          string `json:"notes,omitempty"`

	Events []ShipmentEvent `json:"events,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

type ShipmentEvent struct {
	Timestamp time.Time       `json:"timestamp"`
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	Details   json.RawMessage `json:"details,omitempty"`
}

type Carrier struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	Website     string `json:"website,omitempty"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
}

type Account struct {
	ID        int64  `json:"id"`
	CarrierID int64  `json:"carrier_id"`
	Title     string `json:"title"`
	Type      string `json:"type"`

	SpecificCountries []string `json:"specific_countries,omitempty"`

	// Passkey is write-only and never rendered back.
	CustomerID  string `json:"customer_id,omitempty"`
	WarehouseID string `json:"warehouse_id,omitempty"`

	IsActive bool `json:"is_active"`
}

type CreateCarrierRequest struct {
	Name        string `json:"name" validate:"required"`
	Code        string `json:"code" validate:"required,lowercase,alphanum"`
	Website     string `json:"website" validate:"omitempty,url"`
	Description string `json:"description"`
}

type CreateAccountRequest struct {
	CarrierID int64  `json:"carrier_id" validate:"required"`
	Title     string `json:"title" validate:"required"`
	Type      string `json:"type" validate:"required,oneof=domestic international specific_country"`

	SpecificCountries []string `json:"specific_countries" validate:"required_if=Type specific_country"`

	Passkey     string `json:"passkey" validate:"required"`
	CustomerID  string `json:"customer_id" validate:"required"`
	WarehouseID string `json:"warehouse_id"`
	APIBaseURL  string `json:"api_base_url" validate:"omitempty,url"`
}

func OrderEntityToJSON(o entities.Order) Order {
	items := make([]OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemEntityToJSON(it))
	}

	return Order{
		ID:              o.ID,
		DealID:          o.DealID,
		ReferenceNumber: o.ReferenceNumber,
		Status:          string(o.Status),

		CustomerName:  o.CustomerName,
		CustomerPhone: o.CustomerPhone,
		CustomerEmail: o.CustomerEmail,

		ShippingCountry:    o.ShippingCountry,
		ShippingCity:       o.ShippingCity,
		ShippingAddress:    o.ShippingAddress,
		ShippingPostalCode: o.ShippingPostalCode,

		TotalAmount: o.TotalAmount.String(),
		CODAmount:   o.CODAmount.String(),
		IsCOD:       o.IsCOD,

		CarrierID: o.CarrierID,
		AccountID: o.AccountID,

		Notes:     o.Notes,
		CreatedAt: o.CreatedAt,
		ShippedAt: optionalTime(o.ShippedAt),

		Items: items,
	}
}

func OrderItemEntityToJSON(i entities.OrderItem) OrderItem {
	expiry := ""
	if !i.ExpiryDate.IsZero() {
		expiry = i.ExpiryDate.Format("2006-01-02")
	}

	return OrderItem{
		ProductID:    i.ProductID,
		ProductName:  i.ProductName,
		SKU:          i.SKU,
		Quantity:     i.Quantity,
		UnitPrice:    i.UnitPrice.String(),
		TotalPrice:   i.TotalPrice.String(),
		LotNumber:    i.LotNumber,
		SerialNumber: i.SerialNumber,
		ExpiryDate:   expiry,
	}
}

func ShipmentEntityToJSON(s entities.Shipment) Shipment {
	events := make([]ShipmentEvent, 0, len(s.Events))
	for _, e := range s.Events {
		events = append(events, ShipmentEvent{
			Timestamp: e.Timestamp,
			Status:    string(e.Status),
			Message:   e.Message,
			Details:   e.Details,
		})
	}

	return Shipment{
		ID:        s.ID,
		OrderID:   s.OrderID,
		CarrierID: s.CarrierID,
		AccountID: s.AccountID,

		TrackingNumber: s.TrackingNumber,
		Status:         string(s.Status),
		ErrorMessage:   s.ErrorMessage,
		Notes:          s.Notes,

		Events: events,

		CreatedAt:   s.CreatedAt,
		SubmittedAt: optionalTime(s.SubmittedAt),
		DeliveredAt: optionalTime(s.DeliveredAt),
	}
}

func CarrierEntityToJSON(c entities.Carrier) Carrier {
	return Carrier{
		ID:          c.ID,
		Name:        c.Name,
		Code:        c.Code,
		Website:     c.Website,
		Description: c.Description,
		IsActive:    c.IsActive,
	}
}

func AccountEntityToJSON(a entities.Account) Account {
	return Account{
		ID:                a.ID,
		CarrierID:         a.CarrierID,
		Title:             a.Title,
		Type:              string(a.Type),
		SpecificCountries: a.SpecificCountries,
		CustomerID:        a.CustomerID,
		WarehouseID:       a.WarehouseID,
		IsActive:          a.IsActive,
	}
}

func CreateCarrierRequestToEntity(req CreateCarrierRequest) entities.Carrier {
	return entities.Carrier{
		Name:        req.Name,
		Code:        req.Code,
		Website:     req.Website,
		Description: req.Description,
		IsActive:    true,
	}
}

func CreateAccountRequestToEntity(req CreateAccountRequest) entities.Account {
	return entities.Account{
		CarrierID:         req.CarrierID,
		Title:             req.Title,
		Type:              entities.AccountType(req.Type),
		SpecificCountries: req.SpecificCountries,
		Passkey:           req.Passkey,
		CustomerID:        req.CustomerID,
		WarehouseID:       req.WarehouseID,
		APIBaseURL:        req.APIBaseURL,
		IsActive:          true,
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
