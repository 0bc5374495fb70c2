package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ledger metrics
	EntriesCreated   *prometheus.CounterVec
	EntriesSettled   *prometheus.CounterVec
	EntryAmount      *prometheus.HistogramVec
	SettleDuration   prometheus.Histogram
	PolicyRejections *prometheus.CounterVec

	// Reconciliation metrics
	WebhooksReceived    *prometheus.CounterVec
	AttributionDelivery *prometheus.CounterVec
	GatewayRequests     *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Outbox metrics
	OutboxPublished *prometheus.CounterVec

	// Audit metrics
	AuditLogsCreated *prometheus.CounterVec

	// Storage metrics
	DBRetries *prometheus.CounterVec
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// NewWithRegistry creates all metrics on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		EntriesCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betledger_entries_created_total",
				Help: "Total ledger entries created by type",
			},
			[]string{"type"},
		),
		EntriesSettled: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betledger_entries_settled_total",
				Help: "Total ledger entries moved to a terminal status",
			},
			[]string{"type", "status"},
		),
		EntryAmount: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "betledger_entry_amount",
				Help:    "Entry amounts by type",
				Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000},
			},
			[]string{"type"},
		),
		SettleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "betledger_settle_duration_seconds",
			Help:    "Duration of entry settlement transactions",
			Buckets: prometheus.DefBuckets,
		}),
		PolicyRejections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betledger_policy_rejections_total",
				Help: "Withdrawal requests rejected by policy reason",
			},
			[]string{"reason"},
		),

		WebhooksReceived: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betledger_webhooks_total",
				Help: "Gateway webhooks by outcome",
			},
			[]string{"outcome"},
		),
		AttributionDelivery: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betledger_attribution_delivery_total",
				Help: "Attribution deliveries by event and outcome",
			},
			[]string{"event", "outcome"},
		),
		GatewayRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betledger_gateway_requests_total",
				Help: "Payment gateway calls by outcome",
			},
			[]string{"outcome"},
		),

		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "betledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "betledger_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),

		RateLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betledger_rate_limit_hits_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"path"},
		),

		OutboxPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betledger_outbox_published_total",
				Help: "Outbox events by publish outcome",
			},
			[]string{"event_type", "outcome"},
		),

		AuditLogsCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betledger_audit_logs_total",
				Help: "Total audit logs created",
			},
			[]string{"action", "status"},
		),

		DBRetries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betledger_db_retries_total",
				Help: "Transactions retried after a transient PostgreSQL error",
			},
			[]string{"sqlstate"},
		),
	}
}
