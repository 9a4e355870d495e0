package smsa_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/unifarma/shipping-service/internal/carrier"
	"github.com/unifarma/shipping-service/internal/carrier/smsa"
	"github.com/unifarma/shipping-service/internal/config"
	"github.com/unifarma/shipping-service/internal/entities"
	"github.com/unifarma/shipping-service/internal/normalize"
	"github.com/unifarma/shipping-service/pkg/cache"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticMappings struct {
	warehouses map[string]string
	skus       map[string]string
}

func (s staticMappings) GetWarehouseID(_ context.Context, _ int64, countryCode string, domestic bool) (string, error) {
	key := countryCode
	if domestic {
		key += ":domestic"
	}
	return s.warehouses[key], nil
}

func (s staticMappings) GetSKU(_ context.Context, productID, countryCode string) (string, error) {
	return s.skus[productID+":"+countryCode], nil
}

func newAdapter(baseURL string, mappings normalize.MappingSource) *smsa.Adapter {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if mappings == nil {
		mappings = staticMappings{}
	}
	resolver := normalize.NewResolver(logger, mappings, cache.NewLRUCache(16, time.Minute))
	return smsa.New(logger, config.SMSA{
		BaseURL:   baseURL,
		Timeout:   5 * time.Second,
		RateLimit: 1000,
		RateBurst: 1000,
	}, resolver)
}

func testRequest() carrier.Request {
	return carrier.Request{
		Order: entities.Order{
			ID:              42,
			ReferenceNumber: "REF-42",
			CustomerName:    "Ali Hassan",
			CustomerPhone:   "+9613898696",
			ShippingCountry: "Lebanon",
			ShippingCity:    "Beirut",
			ShippingAddress: "Hamra Street 1",
			IsCOD:           true,
			CODAmount:       decimal.NewFromInt(150),
			Notes:           "fragile",
			Items: []entities.OrderItem{
				{ProductID: "PRD-1", SKU: "ITEM-SKU", Quantity: 2, LotNumber: "L1"},
			},
		},
		Account: entities.Account{
			ID:          7,
			Passkey:     "pk",
			CustomerID:  "CUST1",
			WarehouseID: "WRH-DEFAULT",
			Type:        entities.AccountTypeInternational,
		},
		Shipment: entities.Shipment{ID: 1, OrderID: 42, CarrierID: 3},
	}
}

func TestAdapter_CreateShipment(t *testing.T) {
	t.Run("accepted order yields tracking number", func(t *testing.T) {
		var payload map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/FulfilmentOrder", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			w.Write([]byte(`[{"Orderid":123456789}]`))
		}))
		defer srv.Close()

		res, err := newAdapter(srv.URL, nil).CreateShipment(context.Background(), testRequest())
		require.NoError(t, err)

		assert.Equal(t, "123456789", res.TrackingNumber)
		assert.Equal(t, entities.ShipmentStatusSubmitted, res.Status)
		assert.JSONEq(t, `[{"Orderid":123456789}]`, string(res.Raw))

		assert.Equal(t, "pk", payload["passkey"])
		assert.Equal(t, "CUST1", payload["CustId"])
		assert.Equal(t, "WRH-DEFAULT", payload["WrhId"])
		assert.Equal(t, "REF-42", payload["Refid"])
		assert.Equal(t, "REF-42", payload["PONo"])
		assert.Equal(t, "150", payload["codAmt"])
		assert.Equal(t, "fragile", payload["Notes"])
		assert.Equal(t, "Ali Hassan", payload["ShipToName"])
		assert.Equal(t, "Lebanon", payload["ShipToCountry"])
		assert.Equal(t, "3898696", payload["ShipToMobile"])
		assert.Equal(t, "3898696", payload["ShipToPhone"])

		items, ok := payload["fforderitemCreations"].([]any)
		require.True(t, ok)
		require.Len(t, items, 1)
		item := items[0].(map[string]any)
		assert.Equal(t, "ITEM-SKU", item["SKU"])
		assert.EqualValues(t, 2, item["quantity"])
		assert.Equal(t, "L1", item["iLotNo"])
	})

	t.Run("mapped sku and warehouse win over defaults", func(t *testing.T) {
		var payload map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			w.Write([]byte(`[{"Orderid":"555"}]`))
		}))
		defer srv.Close()

		mappings := staticMappings{
			warehouses: map[string]string{"LEBANON": "WRH-BEY"},
			skus:       map[string]string{"PRD-1:LEBANON": "SMSA-001"},
		}

		res, err := newAdapter(srv.URL, mappings).CreateShipment(context.Background(), testRequest())
		require.NoError(t, err)

		assert.Equal(t, "555", res.TrackingNumber)
		assert.Equal(t, "WRH-BEY", payload["WrhId"])
		item := payload["fforderitemCreations"].([]any)[0].(map[string]any)
		assert.Equal(t, "SMSA-001", item["SKU"])
	})

	t.Run("non cod orders send zero amount", func(t *testing.T) {
		var payload map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			w.Write([]byte(`[{"Orderid":"1"}]`))
		}))
		defer srv.Close()

		req := testRequest()
		req.Order.IsCOD = false

		_, err := newAdapter(srv.URL, nil).CreateShipment(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "0", payload["codAmt"])
	})

	t.Run("rejection message becomes rejected error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"Msg":"SKU not found in warehouse"}]`))
		}))
		defer srv.Close()

		res, err := newAdapter(srv.URL, nil).CreateShipment(context.Background(), testRequest())
		require.Error(t, err)
		assert.Equal(t, carrier.ErrKindRejected, carrier.KindOf(err))
		assert.Contains(t, err.Error(), "SKU not found in warehouse")
		assert.NotEmpty(t, res.Raw)
	})

	t.Run("http error is a transport error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gateway timeout", http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := newAdapter(srv.URL, nil).CreateShipment(context.Background(), testRequest())
		require.Error(t, err)
		assert.Equal(t, carrier.ErrKindTransport, carrier.KindOf(err))
	})

	t.Run("missing credentials fail before any request", func(t *testing.T) {
		called := false
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer srv.Close()

		req := testRequest()
		req.Account.Passkey = ""

		_, err := newAdapter(srv.URL, nil).CreateShipment(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, carrier.ErrKindConfig, carrier.KindOf(err))
		assert.False(t, called)
	})

	t.Run("no warehouse anywhere is a config error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer srv.Close()

		req := testRequest()
		req.Account.WarehouseID = ""

		_, err := newAdapter(srv.URL, nil).CreateShipment(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, carrier.ErrKindConfig, carrier.KindOf(err))
	})

	t.Run("reference falls back to order id", func(t *testing.T) {
		var payload map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			w.Write([]byte(`[{"Orderid":"1"}]`))
		}))
		defer srv.Close()

		req := testRequest()
		req.Order.ReferenceNumber = ""

		_, err := newAdapter(srv.URL, nil).CreateShipment(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "ORD-42", payload["Refid"])
	})
}

func TestAdapter_TrackShipment(t *testing.T) {
	tracked := func(t *testing.T, body string) (carrier.Result, error) {
		t.Helper()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/Tracking", r.URL.Path)
			assert.Equal(t, "pk", r.URL.Query().Get("passkey"))
			assert.Equal(t, "TRK-1", r.URL.Query().Get("Reference"))
			w.Write([]byte(body))
		}))
		defer srv.Close()

		req := testRequest()
		req.Shipment.TrackingNumber = "TRK-1"
		req.Shipment.Status = entities.ShipmentStatusSubmitted
		return newAdapter(srv.URL, nil).TrackShipment(context.Background(), req)
	}

	t.Run("last event is authoritative", func(t *testing.T) {
		res, err := tracked(t, `[
			{"Status":"Shipment Created","Date":"2026-08-01"},
			{"Status":"Picked Up","Date":"2026-08-02"},
			{"Status":"Delivered","Date":"2026-08-05","Location":"Beirut"}
		]`)
		require.NoError(t, err)
		assert.Equal(t, entities.ShipmentStatusDelivered, res.Status)
		assert.Equal(t, "Delivered", res.Message)
	})

	t.Run("empty history keeps current status", func(t *testing.T) {
		res, err := tracked(t, `[]`)
		require.NoError(t, err)
		assert.Equal(t, entities.ShipmentStatusSubmitted, res.Status)
	})

	t.Run("unknown carrier status means still moving", func(t *testing.T) {
		res, err := tracked(t, `[{"Status":"Arrived At Facility"}]`)
		require.NoError(t, err)
		assert.Equal(t, entities.ShipmentStatusInTransit, res.Status)
	})

	t.Run("status map", func(t *testing.T) {
		testCases := []struct {
			carrierStatus string
			want          entities.ShipmentStatus
		}{
			{"Shipment Created", entities.ShipmentStatusSubmitted},
			{"Picked Up", entities.ShipmentStatusAccepted},
			{"In Transit", entities.ShipmentStatusInTransit},
			{"Out For Delivery", entities.ShipmentStatusInTransit},
			{"Delivered", entities.ShipmentStatusDelivered},
			{"Returned", entities.ShipmentStatusReturned},
			{"Cancelled", entities.ShipmentStatusCancelled},
			{"Exception", entities.ShipmentStatusError},
		}

		for _, tc := range testCases {
			res, err := tracked(t, `[{"Status":"`+tc.carrierStatus+`"}]`)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Status, tc.carrierStatus)
		}
	})

	t.Run("missing tracking number is a config error", func(t *testing.T) {
		req := testRequest()
		_, err := newAdapter("http://unused", nil).TrackShipment(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, carrier.ErrKindConfig, carrier.KindOf(err))
	})
}

func TestAdapter_CheckConfirmation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/FulfilmentOrderConfirmation", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "pk", q.Get("passkey"))
		assert.Equal(t, "CUST1", q.Get("CustId"))
		assert.Equal(t, "WRH-DEFAULT", q.Get("WrhId"))
		assert.Equal(t, "REF-42", q.Get("orderreference"))
		w.Write([]byte(`[{"Confirmed":true}]`))
	}))
	defer srv.Close()

	res, err := newAdapter(srv.URL, nil).CheckConfirmation(context.Background(), testRequest())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"Confirmed":true}]`, string(res.Raw))
}

func TestAdapter_CheckStock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/StockStatusDetail", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "pk", q.Get("passkey"))
		assert.Equal(t, "CUST1", q.Get("CustId"))
		assert.Equal(t, "WRH-1", q.Get("WrhId"))
		assert.Equal(t, "SMSA-001", q.Get("SKU"))
		w.Write([]byte(`[{"SKU":"SMSA-001","Qty":12}]`))
	}))
	defer srv.Close()

	account := entities.Account{Passkey: "pk", CustomerID: "CUST1", WarehouseID: "WRH-1"}
	res, err := newAdapter(srv.URL, nil).CheckStock(context.Background(), account, "SMSA-001")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"SKU":"SMSA-001","Qty":12}]`, string(res.Raw))
}

func TestAdapter_CancelShipment(t *testing.T) {
	// Must not touch the network at all.
	_, err := newAdapter("http://smsa.invalid", nil).CancelShipment(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, carrier.ErrKindUnsupported, carrier.KindOf(err))
}

func TestAdapter_AccountBaseURLOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"Orderid":"1"}]`))
	}))
	defer srv.Close()

	req := testRequest()
	req.Account.APIBaseURL = srv.URL

	// Configured base points nowhere; the account endpoint must be used.
	_, err := newAdapter("http://smsa.invalid", nil).CreateShipment(context.Background(), req)
	require.NoError(t, err)
}
