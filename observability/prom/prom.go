// Package prom exports exchange metrics to Prometheus.
package prom

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cifranet/cifra/observability"
)

// NewRegistry returns a fresh Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Handler returns a Prometheus HTTP handler bound to the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ExchangeObserver exports exchange metrics to Prometheus.
type ExchangeObserver struct {
	accepted        prometheus.Counter
	exchangeTotal   *prometheus.CounterVec
	exchangeLatency prometheus.Histogram
	payloadBytes    prometheus.Counter
}

// NewExchangeObserver registers exchange metrics on the registry.
func NewExchangeObserver(reg *prometheus.Registry) *ExchangeObserver {
	o := &ExchangeObserver{
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cifra_connections_accepted_total",
			Help: "Connections accepted by the responder.",
		}),
		exchangeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cifra_exchanges_total",
			Help: "Exchange outcomes by role, result and protocol code.",
		}, []string{"role", "result", "code"}),
		exchangeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cifra_exchange_latency_seconds",
			Help:    "Wall time of one exchange from first byte to terminal state.",
			Buckets: prometheus.DefBuckets,
		}),
		payloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cifra_payload_bytes_total",
			Help: "Plaintext bytes carried by completed exchanges.",
		}),
	}
	reg.MustRegister(
		o.accepted,
		o.exchangeTotal,
		o.exchangeLatency,
		o.payloadBytes,
	)
	return o
}

func (o *ExchangeObserver) ConnAccepted() {
	o.accepted.Inc()
}

func (o *ExchangeObserver) Exchange(role observability.Role, result observability.Result, code string) {
	o.exchangeTotal.WithLabelValues(string(role), string(result), code).Inc()
}

func (o *ExchangeObserver) ExchangeLatency(d time.Duration) {
	o.exchangeLatency.Observe(d.Seconds())
}

func (o *ExchangeObserver) PayloadBytes(n int) {
	o.payloadBytes.Add(float64(n))
}
