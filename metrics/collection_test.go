package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCollectionStatusTextSortedByKey(t *testing.T) {
	c := NewCollection()
	c.Register("unit:b", NewFuncSource(func() string { return "b healthy" }))
	c.Register("unit:a", NewFuncSource(func() string { return "a healthy" }))

	text := c.StatusText()
	aIdx := strings.Index(text, "unit:a")
	bIdx := strings.Index(text, "unit:b")
	if aIdx < 0 || bIdx < 0 || aIdx > bIdx {
		t.Fatalf("StatusText() = %q, want unit:a before unit:b", text)
	}
}

func TestCollectionUnregisterRemovesSource(t *testing.T) {
	c := NewCollection()
	c.Register("unit:a", NewFuncSource(func() string { return "a healthy" }))
	c.Unregister("unit:a")

	if text := c.StatusText(); text != "" {
		t.Fatalf("StatusText() = %q, want empty after Unregister", text)
	}

	// Unregistering twice must not panic.
	c.Unregister("unit:a")
}

func TestCollectionCollectsEveryLiveSource(t *testing.T) {
	c := NewCollection()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "rtrtr_test_gauge", Help: "test"})
	gauge.Set(1)
	c.Register("unit:a", NewFuncSource(func() string { return "a" }, gauge))

	ch := make(chan prometheus.Metric, 8)
	c.Collect(ch)
	close(ch)

	count := 0
	for range ch {
		count++
	}
	if count != 1 {
		t.Fatalf("Collect emitted %d metrics, want 1", count)
	}
}
