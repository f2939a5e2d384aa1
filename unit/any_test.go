package unit

import (
	"testing"

	"github.com/go-rtrtr/rtrtr/comms"
)

func healthyLink(t *testing.T) *comms.Link {
	t.Helper()
	gate, agent := comms.NewGate("source")
	_ = gate
	return agent.CreateLink(false)
}

func TestPickNextRoundRobinAdvancesAndWraps(t *testing.T) {
	sources := []*comms.Link{healthyLink(t), healthyLink(t), healthyLink(t)}
	a := &Any{Sources: sources, Mode: RoundRobin, name: "test-any"}

	if got := a.pickNext(nil, 0); got != 1 {
		t.Fatalf("pickNext(exclude=0) = %d, want 1", got)
	}
	if got := a.pickNext(nil, 1); got != 2 {
		t.Fatalf("pickNext(exclude=1) = %d, want 2", got)
	}
	if got := a.pickNext(nil, 2); got != 0 {
		t.Fatalf("pickNext(exclude=2) = %d, want 0 (wrap around)", got)
	}
}

func TestPickNextFailoverAlwaysPrefersLowestIndex(t *testing.T) {
	sources := []*comms.Link{healthyLink(t), healthyLink(t), healthyLink(t)}
	a := &Any{Sources: sources, Mode: Failover, name: "test-any"}

	if got := a.pickNext(nil, -1); got != 0 {
		t.Fatalf("pickNext(exclude=-1) = %d, want 0", got)
	}
	if got := a.pickNext(nil, 0); got != 1 {
		t.Fatalf("pickNext(exclude=0) = %d, want 1 (lowest remaining)", got)
	}
}

func TestPickNextReturnsNegativeOneWhenNoneUsable(t *testing.T) {
	a := &Any{Sources: nil, Mode: Failover, name: "test-any"}
	if got := a.pickNext(nil, -1); got != -1 {
		t.Fatalf("pickNext with no sources = %d, want -1", got)
	}
}
