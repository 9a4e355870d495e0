package entities

import (
	"encoding/json"
	"time"
)

type ShipmentStatus string

const (
	ShipmentStatusPending   ShipmentStatus = "pending"
	ShipmentStatusSubmitted ShipmentStatus = "submitted"
	ShipmentStatusAccepted  ShipmentStatus = "accepted"
	ShipmentStatusInTransit ShipmentStatus = "in_transit"
	ShipmentStatusDelivered ShipmentStatus = "delivered"
	ShipmentStatusReturned  ShipmentStatus = "returned"
	ShipmentStatusCancelled ShipmentStatus = "cancelled"
	ShipmentStatusError     ShipmentStatus = "error"
)

// Terminal reports whether no further carrier-side transitions are possible.
// At most one non-terminal shipment may exist per order at any time.
func (s ShipmentStatus) Terminal() bool {
	switch s {
	case ShipmentStatusDelivered, ShipmentStatusReturned, ShipmentStatusCancelled, ShipmentStatusError:
		return true
	}
	return false
}

// ActiveShipmentStatuses are the statuses picked up by the tracking sweep.
var ActiveShipmentStatuses = []ShipmentStatus{
	ShipmentStatusSubmitted,
	ShipmentStatusAccepted,
	ShipmentStatusInTransit,
}

type Shipment struct {
	ID        int64
	OrderID   int64
	CarrierID int64
	AccountID int64

	// Empty until the carrier accepts the shipment.
	TrackingNumber string
	Status         ShipmentStatus

	// Append-only audit trail. Nothing is ever removed from it.
	Events []Event

	CarrierResponse json.RawMessage
	ErrorMessage    string
	Notes           string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	SubmittedAt time.Time
	DeliveredAt time.Time
}

// AppendEvent records a status-change event on the shipment log.
func (s *Shipment) AppendEvent(status ShipmentStatus, message string, details json.RawMessage) {
	s.Events = append(s.Events, Event{
		Timestamp: time.Now().UTC(),
		Status:    status,
		Message:   message,
		Details:   details,
	})
}

// Event is the fixed shape of a shipment log entry.
type Event struct {
	Timestamp time.Time       `json:"timestamp"`
	Status    ShipmentStatus  `json:"status"`
	Message   string          `json:"message"`
	Details   json.RawMessage `json:"details,omitempty"`
}
