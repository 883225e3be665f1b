package instance

import "testing"

func TestGetIDPrefersExplicitWorkerID(t *testing.T) {
	t.Setenv("FOODRUN_WORKER_ID", "publisher-2")
	t.Setenv("DYNO", "worker.1")
	if got := GetID("outbox-publisher"); got != "publisher-2" {
		t.Fatalf("expected explicit id, got %q", got)
	}
}

func TestGetIDFallsBackToDyno(t *testing.T) {
	t.Setenv("FOODRUN_WORKER_ID", "")
	t.Setenv("DYNO", "worker.1")
	if got := GetID("cron-worker"); got != "worker.1" {
		t.Fatalf("expected dyno id, got %q", got)
	}
}
