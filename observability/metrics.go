package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EscrowdMetrics bundles the collectors tracking escrow daemon health.
type EscrowdMetrics struct {
	requests       *prometheus.CounterVec
	errors         *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	throttles      *prometheus.CounterVec
	events         *prometheus.CounterVec
	custodyBalance prometheus.Gauge
	pauseEngaged   prometheus.Gauge
}

var (
	escrowdMetricsOnce sync.Once
	escrowdRegistry    *EscrowdMetrics
)

// Escrowd returns the lazily-initialised metrics registry for the escrow
// daemon.
func Escrowd() *EscrowdMetrics {
	escrowdMetricsOnce.Do(func() {
		escrowdRegistry = &EscrowdMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bountyvault",
				Subsystem: "escrowd",
				Name:      "requests_total",
				Help:      "Total HTTP requests segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bountyvault",
				Subsystem: "escrowd",
				Name:      "errors_total",
				Help:      "Total HTTP errors segmented by operation and status code.",
			}, []string{"operation", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "bountyvault",
				Subsystem: "escrowd",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for escrow daemon handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bountyvault",
				Subsystem: "escrowd",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by throttling policies.",
			}, []string{"reason"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bountyvault",
				Subsystem: "escrowd",
				Name:      "events_total",
				Help:      "Count of escrow module events segmented by event type.",
			}, []string{"type"}),
			custodyBalance: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "bountyvault",
				Subsystem: "escrowd",
				Name:      "custody_balance",
				Help:      "Current custody account balance in integer token units.",
			}),
			pauseEngaged: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "bountyvault",
				Subsystem: "escrowd",
				Name:      "pause_engaged",
				Help:      "Indicates whether the escrow pause guard is active (1) or not (0).",
			}),
		}
		prometheus.MustRegister(
			escrowdRegistry.requests,
			escrowdRegistry.errors,
			escrowdRegistry.latency,
			escrowdRegistry.throttles,
			escrowdRegistry.events,
			escrowdRegistry.custodyBalance,
			escrowdRegistry.pauseEngaged,
		)
	})
	return escrowdRegistry
}

// Observe records the outcome of a handled request. The status code should be
// the HTTP status ultimately written to the response writer.
func (m *EscrowdMetrics) Observe(operation string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
		m.errors.WithLabelValues(op, fmt.Sprintf("%d", status)).Inc()
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit" so dashboards stay consistent.
func (m *EscrowdMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

// RecordEvent counts an emitted escrow module event by type.
func (m *EscrowdMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	if eventType = strings.TrimSpace(eventType); eventType == "" {
		eventType = "unknown"
	}
	m.events.WithLabelValues(eventType).Inc()
}

// RecordCustodyBalance updates the custody balance gauge.
func (m *EscrowdMetrics) RecordCustodyBalance(balance *big.Int) {
	if m == nil {
		return
	}
	m.custodyBalance.Set(bigToFloat(balance))
}

// SetPause toggles the pause_engaged gauge.
func (m *EscrowdMetrics) SetPause(engaged bool) {
	if m == nil {
		return
	}
	if engaged {
		m.pauseEngaged.Set(1)
		return
	}
	m.pauseEngaged.Set(0)
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
