package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/unifarma/shipping-service/internal/entities"
	"github.com/unifarma/shipping-service/pkg/trm"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CRMRepo interface {
	SaveWebhookEvent(ctx context.Context, e entities.WebhookEvent) (int64, error)
	GetWebhookEventByUID(ctx context.Context, uid string) (entities.WebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, uid string, errMsg string) error

	OrderExistsByDealID(ctx context.Context, dealID string) (bool, error)
	SaveOrder(ctx context.Context, o entities.Order) (int64, error)
	SaveOrderItems(ctx context.Context, orderID int64, items []entities.OrderItem) error
}

type AccountSelector interface {
	Select(ctx context.Context, carrierHint, destinationCountry string, accountTypeHint entities.AccountType) (entities.Account, error)
}

type Publisher interface {
	Publish(ctx context.Context, key string) error
}

// CRMService turns CRM deal webhooks into orders. Intake is two-phase: the
// webhook handler persists the raw event and enqueues its UID, the queue
// consumer builds the order. A lost consumer never loses events.
type CRMService struct {
	logger    *slog.Logger
	repo      CRMRepo
	selector  AccountSelector
	publisher Publisher
	manager   trm.Manager

	carrierField  string
	shippingStage string
}

func NewCRMService(
	logger *slog.Logger,
	repo CRMRepo,
	selector AccountSelector,
	publisher Publisher,
	manager trm.Manager,
	carrierField, shippingStage string,
) *CRMService {
	return &CRMService{
		logger:        logger.With(slog.String("service", "crm")),
		repo:          repo,
		selector:      selector,
		publisher:     publisher,
		manager:       manager,
		carrierField:  carrierField,
		shippingStage: shippingStage,
	}
}

// Deal fields as the CRM webhook delivers them. Bitrix sends numbers as
// strings, so the money and quantity fields tolerate both.
type dealPayload struct {
	Title       string `json:"TITLE"`
	StageID     string `json:"STAGE_ID"`
	PONumber    string `json:"PNO"`
	ClientName  string `json:"CLIENT_NAME"`
	ClientPhone string `json:"CLIENT_PHONE"`
	ClientEmail string `json:"CLIENT_EMAIL"`

	Country string `json:"COUNTRY"`
	City    string `json:"CITY"`
	Address string `json:"ADDRESS"`
	Zip     string `json:"ZIP"`

	Opportunity json.Number `json:"OPPORTUNITY"`
	IsCOD       bool        `json:"IS_COD"`
	CODAmount   json.Number `json:"COD_AMOUNT"`

	Notes    string        `json:"COMMENTS"`
	Products []dealProduct `json:"PRODUCTS"`
}

type dealProduct struct {
	ProductID   string      `json:"PRODUCT_ID"`
	ProductName string      `json:"PRODUCT_NAME"`
	SKU         string      `json:"SKU"`
	Quantity    json.Number `json:"QUANTITY"`
	Price       json.Number `json:"PRICE"`

	LotNumber    string `json:"LOT_NO"`
	SerialNumber string `json:"SERIAL_NO"`
}

// RegisterWebhook persists the raw event and, for deal updates that reached
// the shipping stage, enqueues it for order creation. The returned flag
// reports whether the event was enqueued.
func (s *CRMService) RegisterWebhook(ctx context.Context, evt entities.WebhookEvent) (entities.WebhookEvent, bool, error) {
	if evt.UID == "" {
		evt.UID = uuid.NewString()
	}

	id, err := s.repo.SaveWebhookEvent(ctx, evt)
	if err != nil {
		webhookEvents.WithLabelValues(string(evt.Type), "failed").Inc()
		return entities.WebhookEvent{}, false, fmt.Errorf("failed to save webhook event: %w", err)
	}
	evt.ID = id

	if !s.shouldEnqueue(evt) {
		webhookEvents.WithLabelValues(string(evt.Type), "stored").Inc()
		return evt, false, nil
	}

	if err := s.publisher.Publish(ctx, evt.UID); err != nil {
		webhookEvents.WithLabelValues(string(evt.Type), "failed").Inc()
		return evt, false, fmt.Errorf("failed to enqueue webhook event: %w", err)
	}

	webhookEvents.WithLabelValues(string(evt.Type), "enqueued").Inc()
	s.logger.Info("webhook event enqueued",
		slog.String("uid", evt.UID), slog.String("deal_id", evt.DealID))
	return evt, true, nil
}

func (s *CRMService) shouldEnqueue(evt entities.WebhookEvent) bool {
	if evt.Type != entities.WebhookEventDealCreate && evt.Type != entities.WebhookEventDealUpdate {
		return false
	}

	var deal dealPayload
	if err := json.Unmarshal(evt.Payload, &deal); err != nil {
		return false
	}
	return deal.StageID == s.shippingStage
}

// ProcessWebhookEvent builds an order out of a stored webhook event. Safe to
// call twice with the same UID: already-processed events and already-known
// deals are skipped without touching the order tables.
func (s *CRMService) ProcessWebhookEvent(ctx context.Context, uid string) error {
	evt, err := s.repo.GetWebhookEventByUID(ctx, uid)
	if err != nil {
		return fmt.Errorf("failed to load webhook event: %w", err)
	}
	if evt.Processed {
		return nil
	}

	var deal dealPayload
	if err := json.Unmarshal(evt.Payload, &deal); err != nil {
		// Malformed payloads never become valid. Record and surface so the
		// consumer routes the message to the dead letter queue.
		if markErr := s.repo.MarkWebhookProcessed(ctx, uid, "invalid payload: "+err.Error()); markErr != nil {
			return fmt.Errorf("failed to mark webhook event: %w", markErr)
		}
		return fmt.Errorf("invalid webhook payload: %w", err)
	}

	if evt.DealID == "" {
		if markErr := s.repo.MarkWebhookProcessed(ctx, uid, "event has no deal id"); markErr != nil {
			return fmt.Errorf("failed to mark webhook event: %w", markErr)
		}
		return errors.New("webhook event has no deal id")
	}

	exists, err := s.repo.OrderExistsByDealID(ctx, evt.DealID)
	if err != nil {
		return fmt.Errorf("failed to check deal: %w", err)
	}
	if exists {
		s.logger.Debug("deal already imported", slog.String("deal_id", evt.DealID))
		return s.repo.MarkWebhookProcessed(ctx, uid, "")
	}

	order := s.buildOrder(evt, deal)

	if account, err := s.resolveAccount(ctx, evt, deal); err == nil {
		order.CarrierID = account.CarrierID
		order.AccountID = account.ID
	} else if !errors.Is(err, entities.ErrAccountNotFound) {
		return fmt.Errorf("failed to select account for deal %s: %w", evt.DealID, err)
	} else {
		s.logger.Warn("no carrier account for deal, order needs manual assignment",
			slog.String("deal_id", evt.DealID))
	}

	err = s.manager.Do(ctx, func(ctx context.Context) error {
		orderID, err := s.repo.SaveOrder(ctx, order)
		if err != nil {
			return fmt.Errorf("failed to save order: %w", err)
		}
		if orderID == 0 {
			// Another consumer won the insert race.
			return nil
		}
		if err := s.repo.SaveOrderItems(ctx, orderID, order.Items); err != nil {
			return fmt.Errorf("failed to save order items: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	webhookEvents.WithLabelValues(string(evt.Type), "processed").Inc()
	s.logger.Info("order created from deal", slog.String("deal_id", evt.DealID))
	return s.repo.MarkWebhookProcessed(ctx, uid, "")
}

func (s *CRMService) buildOrder(evt entities.WebhookEvent, deal dealPayload) entities.Order {
	reference := deal.PONumber
	if reference == "" {
		reference = evt.DealID
	}

	order := entities.Order{
		DealID:          evt.DealID,
		ReferenceNumber: reference,
		Status:          entities.OrderStatusNew,

		CustomerName:  deal.ClientName,
		CustomerPhone: deal.ClientPhone,
		CustomerEmail: deal.ClientEmail,

		ShippingCountry:    deal.Country,
		ShippingCity:       deal.City,
		ShippingAddress:    deal.Address,
		ShippingPostalCode: deal.Zip,

		TotalAmount: parseDecimal(deal.Opportunity),
		CODAmount:   parseDecimal(deal.CODAmount),
		IsCOD:       deal.IsCOD,

		Notes: deal.Notes,
	}

	for _, p := range deal.Products {
		qty, _ := p.Quantity.Int64()
		price := parseDecimal(p.Price)
		order.Items = append(order.Items, entities.OrderItem{
			ProductID:    p.ProductID,
			ProductName:  p.ProductName,
			SKU:          p.SKU,
			Quantity:     int(qty),
			UnitPrice:    price,
			TotalPrice:   price.Mul(decimal.NewFromInt(qty)),
			LotNumber:    p.LotNumber,
			SerialNumber: p.SerialNumber,
		})
	}

	return order
}

// resolveAccount pulls the operator's carrier choice out of the raw payload
// by the configured field name and runs the selector.
func (s *CRMService) resolveAccount(ctx context.Context, evt entities.WebhookEvent, deal dealPayload) (entities.Account, error) {
	var raw map[string]json.RawMessage
	carrierHint := ""
	if err := json.Unmarshal(evt.Payload, &raw); err == nil {
		if v, ok := raw[s.carrierField]; ok {
			_ = json.Unmarshal(v, &carrierHint)
		}
	}

	return s.selector.Select(ctx, carrierHint, deal.Country, "")
}

func parseDecimal(n json.Number) decimal.Decimal {
	if n == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}
