package metrics

import (
	"testing"
	"time"

	"github.com/go-rtrtr/rtrtr/unit"
)

func TestWireUnitReportsHealthAndUnregisters(t *testing.T) {
	c := NewCollection()
	u := unit.NewJSON("test-json", "file:///tmp/does-not-matter.json", time.Minute)

	unregister := WireUnit(c, "test-json", u)
	text := c.StatusText()
	if text == "" {
		t.Fatalf("StatusText() empty right after WireUnit")
	}

	unregister()
	if text := c.StatusText(); text != "" {
		t.Fatalf("StatusText() = %q, want empty after unregister", text)
	}
}
