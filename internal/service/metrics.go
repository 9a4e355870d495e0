package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	shipmentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shipping",
		Name:      "shipments_created_total",
		Help:      "Shipment dispatch attempts by result.",
	}, []string{"result"})

	trackingUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shipping",
		Name:      "tracking_updates_total",
		Help:      "Tracking refresh attempts by result.",
	}, []string{"result"})

	webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shipping",
		Name:      "webhook_events_total",
		Help:      "Processed CRM webhook events by type and result.",
	}, []string{"type", "result"})
)
