package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otpstore_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "otpstore_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	WalletOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otpstore_wallet_operations_total",
			Help: "Wallet mutations by operation and result",
		},
		[]string{"operation", "result"},
	)

	PaymentNotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otpstore_payment_notifications_total",
			Help: "Payment confirmations by trigger and outcome",
		},
		[]string{"source", "outcome"},
	)

	PurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otpstore_purchases_total",
			Help: "Number purchases by outcome",
		},
		[]string{"outcome"},
	)

	PriceCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otpstore_price_cache_lookups_total",
			Help: "Aggregator price cache lookups",
		},
		[]string{"result"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordWalletOperation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	WalletOperationsTotal.WithLabelValues(operation, result).Inc()
}

func RecordPaymentNotification(source, outcome string) {
	PaymentNotificationsTotal.WithLabelValues(source, outcome).Inc()
}

func RecordPurchase(outcome string) {
	PurchasesTotal.WithLabelValues(outcome).Inc()
}

func RecordPriceCacheLookup(hit bool) {
	if hit {
		PriceCacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	PriceCacheLookupsTotal.WithLabelValues("miss").Inc()
}
