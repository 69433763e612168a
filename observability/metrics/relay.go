package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics tracks the signing-provider relay.
type RelayMetrics struct {
	webhooks    *prometheus.CounterVec
	submissions *prometheus.CounterVec
}

var (
	relayOnce     sync.Once
	relayRegistry *RelayMetrics
)

// Relay returns the lazily-initialised relay metrics registry.
func Relay() *RelayMetrics {
	relayOnce.Do(func() {
		relayRegistry = &RelayMetrics{
			webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "signescrow",
				Subsystem: "signrelay",
				Name:      "webhooks_total",
				Help:      "Provider webhooks received segmented by result.",
			}, []string{"result"}),
			submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "signescrow",
				Subsystem: "signrelay",
				Name:      "responses_submitted_total",
				Help:      "Oracle responses submitted segmented by outcome and success flag.",
			}, []string{"outcome", "success"}),
		}
		prometheus.MustRegister(relayRegistry.webhooks, relayRegistry.submissions)
	})
	return relayRegistry
}

func (m *RelayMetrics) ObserveWebhook(result string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(result).Inc()
}

func (m *RelayMetrics) ObserveSubmission(outcome string, success bool) {
	if m == nil {
		return
	}
	flag := "false"
	if success {
		flag = "true"
	}
	m.submissions.WithLabelValues(outcome, flag).Inc()
}
