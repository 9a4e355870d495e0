package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/unifarma/shipping-service/internal/entities"
	"github.com/unifarma/shipping-service/internal/handler"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistrar struct {
	got      entities.WebhookEvent
	enqueued bool
	err      error
}

func (f *fakeRegistrar) RegisterWebhook(_ context.Context, evt entities.WebhookEvent) (entities.WebhookEvent, bool, error) {
	f.got = evt
	evt.UID = "uid-1"
	return evt, f.enqueued, f.err
}

func newWebhookServer(reg *fakeRegistrar) *httptest.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	handler.NewWebhookHandler(logger, reg).Init(r)
	return httptest.NewServer(r)
}

func postWebhook(t *testing.T, srv *httptest.Server, body string) (*http.Response, handler.WebhookResponse) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/webhooks/crm", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var out handler.WebhookResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestWebhookHandler_Classification(t *testing.T) {
	testCases := []struct {
		event string
		want  entities.WebhookEventType
	}{
		{"ONCRMDEALADD", entities.WebhookEventDealCreate},
		{"ONCRMDEALUPDATE", entities.WebhookEventDealUpdate},
		{"oncrmdealupdate", entities.WebhookEventDealUpdate},
		{"ONCRMDEALDELETE", entities.WebhookEventDealDelete},
		{"ONCRMCONTACTADD", entities.WebhookEventOther},
	}

	for _, tc := range testCases {
		t.Run(tc.event, func(t *testing.T) {
			reg := &fakeRegistrar{}
			srv := newWebhookServer(reg)
			defer srv.Close()

			resp, _ := postWebhook(t, srv, `{"event":"`+tc.event+`","id":"77","fields":{"STAGE_ID":"WON"}}`)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tc.want, reg.got.Type)
			assert.Equal(t, "77", reg.got.DealID)
		})
	}
}

func TestWebhookHandler_Responses(t *testing.T) {
	t.Run("enqueued event", func(t *testing.T) {
		reg := &fakeRegistrar{enqueued: true}
		srv := newWebhookServer(reg)
		defer srv.Close()

		resp, out := postWebhook(t, srv, `{"event":"ONCRMDEALUPDATE","id":"77","fields":{"STAGE_ID":"WON"}}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, out.Success)
		assert.Equal(t, "uid-1", out.EventID)
		assert.Equal(t, "event queued for processing", out.Message)
	})

	t.Run("stored only", func(t *testing.T) {
		reg := &fakeRegistrar{}
		srv := newWebhookServer(reg)
		defer srv.Close()

		resp, out := postWebhook(t, srv, `{"event":"ONCRMDEALDELETE","id":"77"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, out.Success)
		assert.Equal(t, "event stored", out.Message)
		// missing fields must still produce a valid JSON payload
		assert.JSONEq(t, `{}`, string(reg.got.Payload))
	})

	t.Run("missing event name", func(t *testing.T) {
		srv := newWebhookServer(&fakeRegistrar{})
		defer srv.Close()

		resp, _ := postWebhook(t, srv, `{"id":"77"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("broken body", func(t *testing.T) {
		srv := newWebhookServer(&fakeRegistrar{})
		defer srv.Close()

		resp, _ := postWebhook(t, srv, `{event`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("service failure", func(t *testing.T) {
		srv := newWebhookServer(&fakeRegistrar{err: assert.AnError})
		defer srv.Close()

		resp, _ := postWebhook(t, srv, `{"event":"ONCRMDEALUPDATE","id":"77"}`)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}
