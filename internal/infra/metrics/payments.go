package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var registerOnce sync.Once

// MustRegister registers the payment collectors with the default Prometheus
// registry. Safe to call more than once.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			PurchaseRequests,
			PurchaseDuration,
			VerifyRequests,
			VerifyDuration,
		)
	})
}

var (
	// Count of outbound purchase registrations by gateway and result.
	// result: ok|fail
	PurchaseRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_purchase_requests_total",
			Help: "Count of gateway purchase registrations by gateway and result.",
		},
		[]string{"gateway", "result"},
	)

	PurchaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_purchase_duration_seconds",
			Help:    "Duration of the purchase hook sequence in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"gateway"},
	)

	// Count of verify sequences by gateway, result and bounded reason.
	// reason (fail only): communication|unexpected_response|<normalized kind>|other
	VerifyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verify_requests_total",
			Help: "Count of gateway verifications by gateway, result and reason.",
		},
		[]string{"gateway", "result", "reason"},
	)

	VerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_verify_duration_seconds",
			Help:    "Duration of the verify hook sequence in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"gateway"},
	)
)

func ObservePurchase(gateway string, ok bool, d time.Duration) {
	result := "ok"
	if !ok {
		result = "fail"
	}
	PurchaseRequests.WithLabelValues(gateway, result).Inc()
	PurchaseDuration.WithLabelValues(gateway).Observe(d.Seconds())
}

func ObserveVerify(gateway string, ok bool, reason string, d time.Duration) {
	result := "ok"
	if !ok {
		result = "fail"
	}
	if ok {
		reason = ""
	}
	VerifyRequests.WithLabelValues(gateway, result, reason).Inc()
	VerifyDuration.WithLabelValues(gateway).Observe(d.Seconds())
}
