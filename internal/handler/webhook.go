package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/unifarma/shipping-service/internal/entities"
	"github.com/unifarma/shipping-service/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type WebhookRegistrar interface {
	RegisterWebhook(ctx context.Context, evt entities.WebhookEvent) (entities.WebhookEvent, bool, error)
}

type WebhookHandler struct {
	logger   *slog.Logger
	validate *validator.Validate
	svc      WebhookRegistrar
}

func NewWebhookHandler(logger *slog.Logger, svc WebhookRegistrar) *WebhookHandler {
	return &WebhookHandler{
		logger:   logger.With(slog.String("handler", "webhook")),
		validate: validator.New(),
		svc:      svc,
	}
}

func (h *WebhookHandler) Init(r chi.Router) {
	r.Post("/webhooks/crm", h.HandleCRMWebhook)
}

type WebhookRequest struct {
	Event  string          `json:"event" validate:"required"`
	ID     string          `json:"id"`
	Fields json.RawMessage `json:"fields"`
}

type WebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

// HandleCRMWebhook accepts a CRM deal webhook. The event is persisted no
// matter what; only deals that reached the shipping stage go further.
// @Summary      Accept CRM webhook
// @Tags         webhooks
// @Success      200  {object}  WebhookResponse
// @Failure      400  {object}  utils.ValidationErrorResponse
// @Router       /webhooks/crm [post]
func (h *WebhookHandler) HandleCRMWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req WebhookRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	evt := entities.WebhookEvent{
		Type:    classifyEvent(req.Event),
		DealID:  req.ID,
		Payload: req.Fields,
	}
	if len(evt.Payload) == 0 {
		evt.Payload = json.RawMessage(`{}`)
	}

	stored, enqueued, err := h.svc.RegisterWebhook(ctx, evt)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to register webhook",
			slog.Any("error", err), slog.String("event", req.Event), slog.String("deal_id", req.ID))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	message := "event stored"
	if enqueued {
		message = "event queued for processing"
	}

	utils.WriteJSON(w, WebhookResponse{
		Success: true,
		Message: message,
		EventID: stored.UID,
	}, http.StatusOK)
}

func classifyEvent(event string) entities.WebhookEventType {
	switch strings.ToUpper(event) {
	case "ONCRMDEALADD":
		return entities.WebhookEventDealCreate
	case "ONCRMDEALUPDATE":
		return entities.WebhookEventDealUpdate
	case "ONCRMDEALDELETE":
		return entities.WebhookEventDealDelete
	}
	return entities.WebhookEventOther
}
