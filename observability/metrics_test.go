package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestContractMetricsObserveCall(t *testing.T) {
	m := Contract()
	before := testutil.ToFloat64(m.failures.WithLabelValues("withdraw", "302"))
	m.ObserveCall("withdraw", 302, time.Millisecond)
	m.ObserveCall("withdraw", 0, time.Millisecond)
	if got := testutil.ToFloat64(m.failures.WithLabelValues("withdraw", "302")); got != before+1 {
		t.Fatalf("expected one more failure, got %v (before %v)", got, before)
	}
	if got := testutil.ToFloat64(m.calls.WithLabelValues("withdraw", "success")); got < 1 {
		t.Fatalf("success not recorded")
	}
	m.RecordEvent("escrow.deposited")
	if got := testutil.ToFloat64(m.events.WithLabelValues("escrow.deposited")); got < 1 {
		t.Fatalf("event not recorded")
	}
}

func TestModuleMetricsObserve(t *testing.T) {
	m := ModuleMetrics()
	m.Observe("rpc", "", 429, time.Millisecond)
	if got := testutil.ToFloat64(m.errors.WithLabelValues("rpc", "unknown", "429")); got < 1 {
		t.Fatalf("error status not recorded")
	}
	m.RecordThrottle("", "")
	if got := testutil.ToFloat64(m.throttles.WithLabelValues("unknown", "unspecified")); got < 1 {
		t.Fatalf("throttle not recorded")
	}
}
