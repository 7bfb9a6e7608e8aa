package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the service's Prometheus instruments behind a private
// registry.
type Collector struct {
	registry              *prometheus.Registry
	transactionsProcessed prometheus.Counter
	transactionsFailed    prometheus.Counter
	transactionDuration   prometheus.Histogram
	transactionsFlagged   prometheus.Counter
	ruleTriggers          *prometheus.CounterVec
	accountBalance        *prometheus.GaugeVec
}

// NewCollector registers all instruments on a fresh registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		transactionsProcessed: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "fintrack_transactions_processed_total",
			Help: "Total number of completed transactions",
		}),
		transactionsFailed: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "fintrack_transactions_failed_total",
			Help: "Total number of failed transactions",
		}),
		transactionDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "fintrack_transaction_duration_seconds",
			Help:    "Time taken to process a transaction",
			Buckets: prometheus.DefBuckets,
		}),
		transactionsFlagged: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "fintrack_transactions_flagged_total",
			Help: "Total number of transactions flagged as suspicious",
		}),
		ruleTriggers: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "fintrack_fraud_rule_triggers_total",
			Help: "Fraud rule trigger count by rule name",
		}, []string{"rule"}),
		accountBalance: promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
			Name: "fintrack_account_balance",
			Help: "Current account balance",
		}, []string{"account_id"}),
	}
}

// RecordTransaction observes one processed request.
func (c *Collector) RecordTransaction(duration time.Duration, success bool) {
	if success {
		c.transactionsProcessed.Inc()
	} else {
		c.transactionsFailed.Inc()
	}
	c.transactionDuration.Observe(duration.Seconds())
}

// RecordFlagged observes one flagged transaction and the rules that tripped.
func (c *Collector) RecordFlagged(rules []string) {
	c.transactionsFlagged.Inc()
	for _, rule := range rules {
		c.ruleTriggers.WithLabelValues(rule).Inc()
	}
}

// SetAccountBalance publishes an account balance gauge.
func (c *Collector) SetAccountBalance(accountID string, balance float64) {
	c.accountBalance.WithLabelValues(accountID).Set(balance)
}

// Handler serves the registry for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
