package telemetry

import (
	"bytes"
	"log"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"navbridge/logging"
)

func TestWrapLogger(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		logger := WrapLogger(nil)
		logger.Printf("ignored %d", 42)
	})

	t.Run("forwards to logger", func(t *testing.T) {
		var buf bytes.Buffer
		base := log.New(&buf, "", 0)
		logger := WrapLogger(base)
		logger.Printf("hello %s", "world")
		if got := buf.String(); got != "hello world\n" {
			t.Fatalf("unexpected log output: %q", got)
		}
	})
}

func TestWrapMetrics(t *testing.T) {
	metrics := logging.Metrics{}
	adapter := WrapMetrics(&metrics)

	adapter.Add("test_counter", 2)
	adapter.Store("test_counter", 5)
	adapter.Add("test_counter", 3)

	snapshot := metrics.Snapshot()
	if got := snapshot["test_counter"]; got != 8 {
		t.Fatalf("unexpected metric value: %d", got)
	}

	// Ensure nil metrics do not panic.
	var nilAdapter Metrics = WrapMetrics(nil)
	nilAdapter.Add("ignored", 1)
	nilAdapter.Store("ignored", 1)
}

func TestPrefixed(t *testing.T) {
	var buf bytes.Buffer
	logger := Prefixed(WrapLogger(log.New(&buf, "", 0)), "ws")
	logger.Printf("session %s closed", "session-3")
	if got := buf.String(); got != "[ws] session session-3 closed\n" {
		t.Fatalf("unexpected log output: %q", got)
	}
	Prefixed(nil, "nav").Printf("ignored")
}

func TestAddAndStoreTolerateNil(t *testing.T) {
	Add(nil, "ignored_total", 1)
	Store(nil, "ignored", 1)

	var table logging.Metrics
	metrics := WrapMetrics(&table)
	Add(metrics, "tracker_created_total", 2)
	Store(metrics, "tracker_active", 7)
	snapshot := table.Snapshot()
	if snapshot["tracker_created_total"] != 2 || snapshot["tracker_active"] != 7 {
		t.Fatalf("unexpected snapshot %v", snapshot)
	}
}

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewPrometheusMetrics(reg)
	if err != nil {
		t.Fatalf("register metrics: %v", err)
	}

	metrics.Add("tracker_created_total", 2)
	metrics.Store("tracker_active", 3)
	metrics.Add("tracker_active", 1)

	if got := testutil.ToFloat64(metrics.counters.WithLabelValues("tracker_created_total")); got != 2 {
		t.Fatalf("unexpected counter value: %v", got)
	}
	if got := testutil.ToFloat64(metrics.gauges.WithLabelValues("tracker_active")); got != 4 {
		t.Fatalf("unexpected gauge value: %v", got)
	}

	if _, err := NewPrometheusMetrics(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestFanoutSkipsNilBackends(t *testing.T) {
	var first, second logging.Metrics
	fan := Fanout(WrapMetrics(&first), nil, WrapMetrics(&second))
	fan.Add("calls_total", 4)

	if first.Snapshot()["calls_total"] != 4 || second.Snapshot()["calls_total"] != 4 {
		t.Fatalf("expected both backends to observe the update")
	}
}
