package obs

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SaleFinalizeTotal counts finalize attempts by result.
	SaleFinalizeTotal *prometheus.CounterVec
	// ValidationRejectedTotal counts rejected mutations by component and rule.
	ValidationRejectedTotal *prometheus.CounterVec
	// MovementSubmitTotal counts movement submission outcomes.
	MovementSubmitTotal *prometheus.CounterVec
	// BackendSubmitLatency records backend submission latency in milliseconds.
	BackendSubmitLatency *prometheus.HistogramVec
	// DraftOpsTotal counts saved/resumed/deleted tickets.
	DraftOpsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific
// Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SaleFinalizeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sale_finalize_total",
			Help:      "Count of sale finalization outcomes.",
		}, []string{"result"})
		ValidationRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_rejected_total",
			Help:      "Count of rejected mutations by component and rule.",
		}, []string{"component", "rule"})
		MovementSubmitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movement_submit_total",
			Help:      "Count of inventory movement submission outcomes.",
		}, []string{"type", "result"})
		BackendSubmitLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_submit_duration_ms",
			Help:      "Latency for backend-of-record submissions in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"kind"})
		DraftOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_ops_total",
			Help:      "Count of saved-ticket operations.",
		}, []string{"op"})

		mustRegisterCollector(reg, SaleFinalizeTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SaleFinalizeTotal = v
			}
		})
		mustRegisterCollector(reg, ValidationRejectedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ValidationRejectedTotal = v
			}
		})
		mustRegisterCollector(reg, MovementSubmitTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				MovementSubmitTotal = v
			}
		})
		mustRegisterCollector(reg, BackendSubmitLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				BackendSubmitLatency = v
			}
		})
		mustRegisterCollector(reg, DraftOpsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				DraftOpsTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}

// DurationMillis converts a duration to float milliseconds for histograms.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
