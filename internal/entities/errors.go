package entities

import "errors"

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrShipmentNotFound = errors.New("shipment not found")
	ErrCarrierNotFound  = errors.New("carrier not found")
	ErrAccountNotFound  = errors.New("no suitable shipping account found")

	// ErrNoCarrierConfigured is returned when dispatch is requested for an
	// order that has no resolved carrier or account.
	ErrNoCarrierConfigured = errors.New("no carrier configured for order")

	// ErrShipmentInFlight guards the at-most-one non-terminal shipment per
	// order invariant.
	ErrShipmentInFlight = errors.New("order already has a shipment in flight")

	// ErrNoTrackingNumber is returned when tracking is requested for a
	// shipment the carrier never accepted.
	ErrNoTrackingNumber = errors.New("shipment has no tracking number")

	// ErrNoWarehouse is returned when neither a warehouse mapping nor an
	// account default warehouse exists for the destination.
	ErrNoWarehouse = errors.New("no warehouse resolved for destination")
)
