package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/unifarma/shipping-service/internal/entities"

	sq "github.com/Masterminds/squirrel"
)

var webhookColumns = []string{
	"id", "uid", "event_type", "deal_id", "payload",
	"processed", "processed_at", "error_message", "retry_count", "created_at",
}

func (r *postgresRepo) SaveWebhookEvent(ctx context.Context, e entities.WebhookEvent) (int64, error) {
	query, args := r.qb.Insert("crm_webhook_events").
		Columns("uid", "event_type", "deal_id", "payload").
		Values(e.UID, string(e.Type), nullString(e.DealID), []byte(e.Payload)).
		Suffix("RETURNING id").
		MustSql()

	var id int64
	if err := r.getContext(ctx, &id, query, args...); err != nil {
		return 0, fmt.Errorf("failed to save webhook event: %w", err)
	}
	return id, nil
}

func (r *postgresRepo) GetWebhookEventByUID(ctx context.Context, uid string) (entities.WebhookEvent, error) {
	query, args := r.qb.Select(webhookColumns...).
		From("crm_webhook_events").
		Where(sq.Eq{"uid": uid}).
		MustSql()

	var event WebhookEvent
	err := r.getContext(ctx, &event, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.WebhookEvent{}, fmt.Errorf("webhook event %s not found", uid)
	}
	if err != nil {
		return entities.WebhookEvent{}, fmt.Errorf("failed to get webhook event: %w", err)
	}
	return WebhookEventToEntity(event), nil
}

// MarkWebhookProcessed records the outcome of one processing attempt.
// A non-empty errMsg keeps processed=false and bumps the retry counter.
func (r *postgresRepo) MarkWebhookProcessed(ctx context.Context, uid string, errMsg string) error {
	q := r.qb.Update("crm_webhook_events").
		Where(sq.Eq{"uid": uid})

	if errMsg == "" {
		q = q.Set("processed", true).
			Set("processed_at", time.Now().UTC()).
			Set("error_message", sql.NullString{})
	} else {
		q = q.Set("error_message", errMsg).
			Set("retry_count", sq.Expr("retry_count + 1"))
	}

	query, args := q.MustSql()
	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark webhook event: %w", err)
	}
	return nil
}
