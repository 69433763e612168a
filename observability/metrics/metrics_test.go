package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T) []*dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	return families
}

func matches(metric *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, pair := range metric.GetLabel() {
		if want, ok := labels[pair.GetName()]; ok {
			if pair.GetValue() != want {
				return false
			}
			found++
		}
	}
	return found == len(labels)
}

func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	for _, family := range gather(t) {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if metric.Counter != nil && matches(metric, labels) {
				return metric.Counter.GetValue()
			}
		}
	}
	return 0
}

func histogramCount(t *testing.T, name string) uint64 {
	t.Helper()
	for _, family := range gather(t) {
		if family.GetName() != name || len(family.GetMetric()) == 0 {
			continue
		}
		if hist := family.GetMetric()[0].GetHistogram(); hist != nil {
			return hist.GetSampleCount()
		}
	}
	return 0
}

func TestRelayCounters(t *testing.T) {
	m := Relay()
	labels := map[string]string{"outcome": "submitted", "success": "true"}
	before := counterValue(t, "signescrow_signrelay_responses_submitted_total", labels)
	m.ObserveSubmission("submitted", true)
	m.ObserveSubmission("submitted", true)
	m.ObserveSubmission("submitted", false)
	if got := counterValue(t, "signescrow_signrelay_responses_submitted_total", labels); got != before+2 {
		t.Fatalf("submitted counter = %v, want %v", got, before+2)
	}

	m.ObserveWebhook("ignored")
	if got := counterValue(t, "signescrow_signrelay_webhooks_total", map[string]string{"result": "ignored"}); got < 1 {
		t.Fatalf("webhook counter not incremented")
	}
}

func TestLedgerTransactionsRecorded(t *testing.T) {
	m := Ledger()
	labels := map[string]string{"outcome": "committed"}
	before := counterValue(t, "signescrow_ledger_transactions_total", labels)
	samples := histogramCount(t, "signescrow_ledger_transaction_duration_seconds")
	m.ObserveTransaction("committed", 3*time.Millisecond)
	if got := counterValue(t, "signescrow_ledger_transactions_total", labels); got != before+1 {
		t.Fatalf("transactions = %v, want %v", got, before+1)
	}
	if got := histogramCount(t, "signescrow_ledger_transaction_duration_seconds"); got != samples+1 {
		t.Fatalf("duration samples = %d, want %d", got, samples+1)
	}
}

func TestNilRegistriesAreSafe(t *testing.T) {
	var relay *RelayMetrics
	relay.ObserveWebhook("x")
	relay.ObserveSubmission("x", true)
	var rpc *RPCMetrics
	rpc.Observe("m", false, time.Millisecond)
	rpc.ObserveThrottle("r")
}
