package entities

import "time"

// WarehouseMapping routes a (carrier, country, domestic) triple to a
// carrier-side warehouse. Unique per (carrier, country code, warehouse id).
type WarehouseMapping struct {
	ID            int64
	CarrierID     int64
	CountryCode   string
	CountryName   string
	WarehouseID   string
	WarehouseName string
	IsDomestic    bool
	IsCargo       bool
	IsActive      bool
	CreatedAt     time.Time
}

// SKUMapping translates an internal product id to the stock code a carrier
// warehouse expects for a given destination country.
type SKUMapping struct {
	ID          int64
	ProductID   string
	CountryCode string
	SKU         string
	CreatedAt   time.Time
}

// CRMMapping is an operator-managed override: a raw CRM field value pinned
// to a concrete carrier account. Consulted before any heuristic selection.
type CRMMapping struct {
	ID        int64
	CRMField  string
	CRMValue  string
	AccountID int64
	IsActive  bool
	CreatedAt time.Time
}
