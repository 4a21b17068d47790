package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bean_orders_created_total",
			Help: "Orders created, by package tier",
		},
		[]string{"tier"},
	)

	orderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bean_order_transitions_total",
			Help: "Fulfillment transitions, by target status",
		},
		[]string{"to"},
	)

	paymentEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bean_payment_events_total",
			Help: "Payment submissions and reviews, by resulting status",
		},
		[]string{"status"},
	)

	rejectedOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bean_order_rejected_operations_total",
			Help: "Operations refused by the lifecycle rules, by error kind",
		},
		[]string{"op", "kind"},
	)

	orderCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bean_order_cache_lookups_total",
			Help: "Order cache lookups, by result",
		},
		[]string{"result"},
	)
)
