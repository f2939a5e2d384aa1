package comms

import (
	"context"
	"testing"
	"time"

	"github.com/go-rtrtr/rtrtr/payload"
)

// runGate services a Gate's command queue in the background until ctx is
// cancelled, the way every unit's Run loop interleaves Process with its I/O.
func runGate(ctx context.Context, g *Gate) {
	go func() {
		for {
			if err := g.Process(ctx); err != nil {
				return
			}
		}
	}()
}

func TestCreateLinkDeliversUpdates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate, agent := NewGate("test-unit")
	runGate(ctx, gate)

	link := agent.CreateLink(false)
	update := payload.NewFullUpdate(payload.Empty, 1)
	gate.UpdateData(update)

	select {
	case ev, ok := <-link.Chan():
		if !ok {
			t.Fatalf("link channel closed unexpectedly")
		}
		got, isUpdate := ev.Update()
		if !isUpdate {
			t.Fatalf("event carried a status, not an update")
		}
		if got.Serial() != 1 {
			t.Fatalf("Serial() = %d, want 1", got.Serial())
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for update")
	}
}

// TestCreateLinkDoesNotRequireProcessLoop mirrors how config.Build calls
// GateAgent.CreateLink for every unit and target before any Run goroutine
// (and so before anything drains Process) exists.
func TestCreateLinkDoesNotRequireProcessLoop(t *testing.T) {
	_, agent := NewGate("test-unit")

	done := make(chan *Link, 1)
	go func() { done <- agent.CreateLink(false) }()

	select {
	case link := <-done:
		if link == nil {
			t.Fatalf("CreateLink returned nil")
		}
	case <-time.After(time.Second):
		t.Fatalf("CreateLink blocked waiting for a Process loop that was never started")
	}
}

func TestSuspendedLinkReceivesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate, agent := NewGate("test-unit")
	runGate(ctx, gate)

	link := agent.CreateLink(true)
	time.Sleep(10 * time.Millisecond) // CreateLink(true) subscribes suspended directly; no command is queued

	if !link.Suspended() {
		t.Fatalf("Suspended() = false, want true")
	}
	gate.UpdateData(payload.NewFullUpdate(payload.Empty, 1))

	select {
	case <-link.Chan():
		t.Fatalf("suspended link received an update")
	case <-time.After(50 * time.Millisecond):
	}

	if gate.Status() != GateDormant {
		t.Fatalf("Status() = %v, want GateDormant with the only link suspended", gate.Status())
	}

	link.Resume()
	time.Sleep(10 * time.Millisecond)
	if gate.Status() != GateActive {
		t.Fatalf("Status() = %v, want GateActive after Resume", gate.Status())
	}
}

func TestUnitStatusReadableWithoutLink(t *testing.T) {
	gate, _ := NewGate("test-unit")
	if gate.UnitStatus() != Healthy {
		t.Fatalf("UnitStatus() = %v, want Healthy by default", gate.UnitStatus())
	}
	gate.UpdateStatus(Stalled)
	if gate.UnitStatus() != Stalled {
		t.Fatalf("UnitStatus() = %v, want Stalled", gate.UnitStatus())
	}
}

// TestSuspendedLinkReceivesStatus verifies spec's requirement that a status
// change reaches every subscriber, suspended ones included, which is what
// lets a dormant consumer learn its upstream failed without polling.
func TestSuspendedLinkReceivesStatus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate, agent := NewGate("test-unit")
	runGate(ctx, gate)

	link := agent.CreateLink(true)
	time.Sleep(10 * time.Millisecond)

	gate.UpdateStatus(Stalled)

	select {
	case ev, ok := <-link.Chan():
		if !ok {
			t.Fatalf("link channel closed unexpectedly")
		}
		status, isStatus := ev.Status()
		if !isStatus {
			t.Fatalf("event carried an update, not a status")
		}
		if status != Stalled {
			t.Fatalf("status = %v, want Stalled", status)
		}
	case <-time.After(time.Second):
		t.Fatalf("suspended link never observed the status change")
	}
}

func TestGateTerminatedOnceUnreferenced(t *testing.T) {
	gate, agent := NewGate("test-unit")
	_ = agent

	done := make(chan error, 1)
	go func() { done <- gate.Process(context.Background()) }()

	close(gate.commands)

	select {
	case err := <-done:
		if err != ErrTerminated {
			t.Fatalf("Process() returned %v, want ErrTerminated", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for Process to observe closed commands")
	}
}
