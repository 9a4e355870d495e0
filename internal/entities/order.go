package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusReturned   OrderStatus = "returned"
	OrderStatusError      OrderStatus = "error"
)

type Order struct {
	ID              int64
	DealID          string
	ReferenceNumber string
	Status          OrderStatus

	CustomerName  string
	CustomerPhone string
	CustomerEmail string

	ShippingCountry    string
	ShippingCity       string
	ShippingAddress    string
	ShippingPostalCode string

	TotalAmount decimal.Decimal
	CODAmount   decimal.Decimal
	IsCOD       bool

	// Zero when the CRM deal carried no usable carrier hint and the
	// selector could not resolve one.
	CarrierID int64
	AccountID int64

	Notes string

	DealCreatedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ShippedAt     time.Time

	Items []OrderItem
}

// HasCarrier reports whether the order has a resolved carrier and account,
// a precondition for dispatch.
func (o Order) HasCarrier() bool {
	return o.CarrierID != 0 && o.AccountID != 0
}

type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductID   string
	ProductName string
	SKU         string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
	Weight      decimal.Decimal

	// Regulated goods metadata forwarded to the carrier as-is.
	LotNumber    string
	SerialNumber string
	ExpiryDate   time.Time
}
