package entities

import (
	"encoding/json"
	"time"
)

type WebhookEventType string

const (
	WebhookEventDealCreate WebhookEventType = "deal_create"
	WebhookEventDealUpdate WebhookEventType = "deal_update"
	WebhookEventDealDelete WebhookEventType = "deal_delete"
	WebhookEventOther      WebhookEventType = "other"
)

// WebhookEvent is a raw CRM webhook delivery, persisted before any processing.
type WebhookEvent struct {
	ID           int64
	UID          string
	Type         WebhookEventType
	DealID       string
	Payload      json.RawMessage
	Processed    bool
	ProcessedAt  time.Time
	ErrorMessage string
	RetryCount   int
	CreatedAt    time.Time
}
