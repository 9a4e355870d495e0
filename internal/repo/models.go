package repo

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/unifarma/shipping-service/internal/entities"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Order struct {
	ID                 int64           `db:"id"`
	DealID             string          `db:"deal_id"`
	ReferenceNumber    sql.NullString  `db:"reference_number"`
	Status             string          `db:"status"`
	CustomerName       string          `db:"customer_name"`
	CustomerPhone      sql.NullString  `db:"customer_phone"`
	CustomerEmail      sql.NullString  `db:"customer_email"`
	ShippingCountry    string          `db:"shipping_country"`
	ShippingCity       sql.NullString  `db:"shipping_city"`
	ShippingAddress    sql.NullString  `db:"shipping_address"`
	ShippingPostalCode sql.NullString  `db:"shipping_postal_code"`
	TotalAmount        decimal.Decimal `db:"total_amount"`
	CODAmount          decimal.Decimal `db:"cod_amount"`
	IsCOD              bool            `db:"is_cod"`
	CarrierID          sql.NullInt64   `db:"carrier_id"`
	AccountID          sql.NullInt64   `db:"account_id"`
	Notes              sql.NullString  `db:"notes"`
	DealCreatedAt      time.Time       `db:"deal_created_at"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
	ShippedAt          sql.NullTime    `db:"shipped_at"`
}

type OrderItem struct {
	ID           int64               `db:"id"`
	OrderID      int64               `db:"order_id"`
	ProductID    string              `db:"product_id"`
	ProductName  string              `db:"product_name"`
	SKU          sql.NullString      `db:"sku"`
	Quantity     int                 `db:"quantity"`
	UnitPrice    decimal.Decimal     `db:"unit_price"`
	TotalPrice   decimal.Decimal     `db:"total_price"`
	Weight       decimal.NullDecimal `db:"weight"`
	LotNumber    sql.NullString      `db:"lot_number"`
	SerialNumber sql.NullString      `db:"serial_number"`
	ExpiryDate   sql.NullTime        `db:"expiry_date"`
}

type Carrier struct {
	ID          int64          `db:"id"`
	Name        string         `db:"name"`
	Code        string         `db:"code"`
	Website     sql.NullString `db:"website"`
	Description sql.NullString `db:"description"`
	IsActive    bool           `db:"is_active"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

type Account struct {
	ID                int64          `db:"id"`
	CarrierID         int64          `db:"carrier_id"`
	Title             string         `db:"title"`
	AccountType       string         `db:"account_type"`
	SpecificCountries pq.StringArray `db:"specific_countries"`
	Passkey           sql.NullString `db:"passkey"`
	CustomerID        sql.NullString `db:"customer_id"`
	WarehouseID       sql.NullString `db:"warehouse_id"`
	APIBaseURL        sql.NullString `db:"api_base_url"`
	IsActive          bool           `db:"is_active"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

type Shipment struct {
	ID              int64          `db:"id"`
	OrderID         int64          `db:"order_id"`
	CarrierID       int64          `db:"carrier_id"`
	AccountID       int64          `db:"account_id"`
	TrackingNumber  sql.NullString `db:"tracking_number"`
	Status          string         `db:"status"`
	EventsLog       []byte         `db:"events_log"`
	CarrierResponse []byte         `db:"carrier_response"`
	ErrorMessage    sql.NullString `db:"error_message"`
	Notes           sql.NullString `db:"notes"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
	SubmittedAt     sql.NullTime   `db:"submitted_at"`
	DeliveredAt     sql.NullTime   `db:"delivered_at"`
}

type WebhookEvent struct {
	ID           int64          `db:"id"`
	UID          string         `db:"uid"`
	EventType    string         `db:"event_type"`
	DealID       sql.NullString `db:"deal_id"`
	Payload      []byte         `db:"payload"`
	Processed    bool           `db:"processed"`
	ProcessedAt  sql.NullTime   `db:"processed_at"`
	ErrorMessage sql.NullString `db:"error_message"`
	RetryCount   int            `db:"retry_count"`
	CreatedAt    time.Time      `db:"created_at"`
}

func OrderToEntity(o Order, items []OrderItem) entities.Order {
	order := entities.Order{
		ID:                 o.ID,
		DealID:             o.DealID,
		ReferenceNumber:    nullStringToString(o.ReferenceNumber),
		Status:             entities.OrderStatus(o.Status),
		CustomerName:       o.CustomerName,
		CustomerPhone:      nullStringToString(o.CustomerPhone),
		CustomerEmail:      nullStringToString(o.CustomerEmail),
		ShippingCountry:    o.ShippingCountry,
		ShippingCity:       nullStringToString(o.ShippingCity),
		ShippingAddress:    nullStringToString(o.ShippingAddress),
		ShippingPostalCode: nullStringToString(o.ShippingPostalCode),
		TotalAmount:        o.TotalAmount,
		CODAmount:          o.CODAmount,
		IsCOD:              o.IsCOD,
		CarrierID:          nullInt64ToInt64(o.CarrierID),
		AccountID:          nullInt64ToInt64(o.AccountID),
		Notes:              nullStringToString(o.Notes),
		DealCreatedAt:      o.DealCreatedAt,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
		ShippedAt:          nullTimeToTime(o.ShippedAt),
	}

	if len(items) > 0 {
		order.Items = make([]entities.OrderItem, 0, len(items))
		for _, it := range items {
			order.Items = append(order.Items, OrderItemToEntity(it))
		}
	}

	return order
}

func OrderItemToEntity(i OrderItem) entities.OrderItem {
	return entities.OrderItem{
		ID:           i.ID,
		OrderID:      i.OrderID,
		ProductID:    i.ProductID,
		ProductName:  i.ProductName,
		SKU:          nullStringToString(i.SKU),
		Quantity:     i.Quantity,
		UnitPrice:    i.UnitPrice,
		TotalPrice:   i.TotalPrice,
		Weight:       i.Weight.Decimal,
		LotNumber:    nullStringToString(i.LotNumber),
		SerialNumber: nullStringToString(i.SerialNumber),
		ExpiryDate:   nullTimeToTime(i.ExpiryDate),
	}
}

func CarrierToEntity(c Carrier) entities.Carrier {
	return entities.Carrier{
		ID:          c.ID,
		Name:        c.Name,
		Code:        c.Code,
		Website:     nullStringToString(c.Website),
		Description: nullStringToString(c.Description),
		IsActive:    c.IsActive,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func AccountToEntity(a Account) entities.Account {
	return entities.Account{
		ID:                a.ID,
		CarrierID:         a.CarrierID,
		Title:             a.Title,
		Type:              entities.AccountType(a.AccountType),
		SpecificCountries: a.SpecificCountries,
		Passkey:           nullStringToString(a.Passkey),
		CustomerID:        nullStringToString(a.CustomerID),
		WarehouseID:       nullStringToString(a.WarehouseID),
		APIBaseURL:        nullStringToString(a.APIBaseURL),
		IsActive:          a.IsActive,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func ShipmentToEntity(s Shipment) entities.Shipment {
	shipment := entities.Shipment{
		ID:              s.ID,
		OrderID:         s.OrderID,
		CarrierID:       s.CarrierID,
		AccountID:       s.AccountID,
		TrackingNumber:  nullStringToString(s.TrackingNumber),
		Status:          entities.ShipmentStatus(s.Status),
		CarrierResponse: s.CarrierResponse,
		ErrorMessage:    nullStringToString(s.ErrorMessage),
		Notes:           nullStringToString(s.Notes),
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		SubmittedAt:     nullTimeToTime(s.SubmittedAt),
		DeliveredAt:     nullTimeToTime(s.DeliveredAt),
	}

	if len(s.EventsLog) > 0 {
		// The log is written by us only; a decode failure means a corrupted
		// row and is surfaced as an empty log rather than a hard error.
		_ = json.Unmarshal(s.EventsLog, &shipment.Events)
	}

	return shipment
}

func WebhookEventToEntity(e WebhookEvent) entities.WebhookEvent {
	return entities.WebhookEvent{
		ID:           e.ID,
		UID:          e.UID,
		Type:         entities.WebhookEventType(e.EventType),
		DealID:       nullStringToString(e.DealID),
		Payload:      e.Payload,
		Processed:    e.Processed,
		ProcessedAt:  nullTimeToTime(e.ProcessedAt),
		ErrorMessage: nullStringToString(e.ErrorMessage),
		RetryCount:   e.RetryCount,
		CreatedAt:    e.CreatedAt,
	}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nullInt64(i int64) sql.NullInt64 {
	if i == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: i, Valid: true}
}

func stringArray(s []string) pq.StringArray {
	if len(s) == 0 {
		return pq.StringArray{}
	}
	return pq.StringArray(s)
}

func nullStringToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullInt64ToInt64(ni sql.NullInt64) int64 {
	if ni.Valid {
		return ni.Int64
	}
	return 0
}

func nullTimeToTime(nt sql.NullTime) time.Time {
	if nt.Valid {
		return nt.Time
	}
	return time.Time{}
}
