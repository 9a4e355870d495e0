package carrier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/unifarma/shipping-service/internal/entities"
)

// Request bundles everything an adapter needs for one carrier call. The
// adapter must not reach back into storage; the caller loads all rows first.
type Request struct {
	Order    entities.Order
	Account  entities.Account
	Shipment entities.Shipment
}

// Result is what a carrier call produced. Raw holds the verbatim carrier
// response body for the audit trail.
type Result struct {
	TrackingNumber string
	Status         entities.ShipmentStatus
	Message        string
	Raw            json.RawMessage
}

// Adapter is the carrier integration contract. Implementations translate
// between internal entities and one carrier's wire protocol.
type Adapter interface {
	CreateShipment(ctx context.Context, req Request) (Result, error)
	TrackShipment(ctx context.Context, req Request) (Result, error)
	CancelShipment(ctx context.Context, req Request) (Result, error)
}

// ConfirmationChecker is implemented by adapters whose carrier exposes a
// fulfilment confirmation lookup. Callers type-assert on the Adapter.
type ConfirmationChecker interface {
	CheckConfirmation(ctx context.Context, req Request) (Result, error)
}

// StockChecker is implemented by adapters whose carrier exposes warehouse
// stock levels per SKU.
type StockChecker interface {
	CheckStock(ctx context.Context, account entities.Account, sku string) (Result, error)
}

type ErrorKind string

const (
	// ErrKindConfig means the account or request is misconfigured. Retrying
	// without operator intervention is pointless.
	ErrKindConfig ErrorKind = "config"
	// ErrKindTransport means the carrier could not be reached or answered
	// with garbage. Retrying later may succeed.
	ErrKindTransport ErrorKind = "transport"
	// ErrKindRejected means the carrier understood the request and said no.
	ErrKindRejected ErrorKind = "rejected"
	// ErrKindUnsupported means the carrier has no such operation.
	ErrKindUnsupported ErrorKind = "unsupported"
	ErrKindInternal    ErrorKind = "internal"
)

// Error is the only error type adapters return to callers.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("carrier %s error: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("carrier %s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the error kind, defaulting to internal for foreign errors.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ErrKindInternal
}
