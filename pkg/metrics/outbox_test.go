package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestOutboxMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncPublished("order_created")
	m.IncPublished("order_created")
	m.IncFailed("payout_committed")
	m.IncDeadLettered("max_attempts")
	m.IncDeferred()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_published_total", "event_type", "order_created"); err != nil || got != 2 {
		t.Fatalf("published = %f, %v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_publish_failures_total", "event_type", "payout_committed"); err != nil || got != 1 {
		t.Fatalf("failures = %f, %v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_dead_lettered_total", "reason", "max_attempts"); err != nil || got != 1 {
		t.Fatalf("dead lettered = %f, %v", got, err)
	}
}
