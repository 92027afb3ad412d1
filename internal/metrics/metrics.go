// Package metrics registers the service's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsSent counts notification delivery outcomes by status.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "teamsched",
		Subsystem: "notify",
		Name:      "deliveries_total",
		Help:      "Notification delivery outcomes by final status.",
	}, []string{"status"})

	// NotificationAttempts counts individual provider send attempts.
	NotificationAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "teamsched",
		Subsystem: "notify",
		Name:      "attempts_total",
		Help:      "Individual notification send attempts, including retries.",
	})

	// Logins counts successful logins by method.
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "teamsched",
		Subsystem: "auth",
		Name:      "logins_total",
		Help:      "Successful logins by method.",
	}, []string{"method"})
)
