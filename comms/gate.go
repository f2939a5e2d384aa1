package comms

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-rtrtr/rtrtr/payload"
	"github.com/go-rtrtr/rtrtr/telemetry"
)

// updateQueueLen is the per-subscriber buffer depth for payload updates.
// A slow subscriber can fall updateQueueLen updates behind before a send to
// it blocks, applying backpressure to whatever unit called UpdateData.
const updateQueueLen = 8

// commandQueueLen is the depth of the gate's inbound command channel, shared
// by every link's suspend/resume requests.
const commandQueueLen = 16

type gateCommand struct {
	suspendSlot *int
	suspend     bool
}

type linkConnection struct {
	slot    int
	updates chan Event
	status  *atomic.Int32
}

type subscriber struct {
	updates   chan Event
	suspended bool
	live      bool
}

// Gate is a unit's outbound side: it receives link-management commands,
// tracks each subscriber's suspension state, and fans payload.Update values
// and UnitStatus changes out to its subscribers.
type Gate struct {
	name     string
	commands chan gateCommand

	mu        sync.Mutex
	subs      []subscriber
	suspended int

	status *atomic.Int32
}

// NewGate creates a Gate and the GateAgent used to mint Links against it.
// name identifies the owning unit in fan-out spans and metrics.
func NewGate(name string) (*Gate, *GateAgent) {
	status := &atomic.Int32{}
	status.Store(int32(Healthy))
	g := &Gate{
		name:     name,
		commands: make(chan gateCommand, commandQueueLen),
		status:   status,
	}
	return g, &GateAgent{gate: g, commands: g.commands}
}

// Process services one pending command, or blocks until one arrives or ctx
// is cancelled. It returns ctx.Err() once ctx is done, ErrTerminated if the
// command channel has been closed, and nil otherwise. Nothing in this
// package closes the command channel: dropping every Link and the
// GateAgent leaves it open. Units call Process in their main loop interleaved with
// whatever I/O produces their data.
func (g *Gate) Process(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case cmd, ok := <-g.commands:
		if !ok {
			return ErrTerminated
		}
		g.handle(cmd)
		return nil
	}
}

func (g *Gate) handle(cmd gateCommand) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cmd.suspendSlot == nil {
		return
	}
	slot := *cmd.suspendSlot
	if slot < 0 || slot >= len(g.subs) || !g.subs[slot].live {
		return
	}
	if g.subs[slot].suspended == cmd.suspend {
		return
	}
	g.subs[slot].suspended = cmd.suspend
	if cmd.suspend {
		g.suspended++
	} else {
		g.suspended--
	}
}

// subscribe allocates a subscriber slot directly, under g.mu, without going
// through the command channel. It exists so link creation never depends on
// a goroutine already draining Process — notably during config.Build, which
// runs before any unit or target goroutine exists to service commands.
func (g *Gate) subscribe(suspended bool) linkConnection {
	g.mu.Lock()
	defer g.mu.Unlock()
	slot := g.allocSlot(suspended)
	return linkConnection{slot: slot, updates: g.subs[slot].updates, status: g.status}
}

func (g *Gate) allocSlot(suspended bool) int {
	ch := make(chan Event, updateQueueLen)
	for i := range g.subs {
		if !g.subs[i].live {
			g.subs[i] = subscriber{updates: ch, suspended: suspended, live: true}
			if suspended {
				g.suspended++
			}
			return i
		}
	}
	g.subs = append(g.subs, subscriber{updates: ch, suspended: suspended, live: true})
	if suspended {
		g.suspended++
	}
	return len(g.subs) - 1
}

// UpdateData fans an update out to every non-suspended subscriber. Channels
// are bounded but never dropped from: a subscriber that can't keep up
// applies backpressure to this call (and, transitively, to whatever is
// driving the unit that owns this gate) rather than silently missing data.
func (g *Gate) UpdateData(update payload.Update) {
	g.mu.Lock()
	defer g.mu.Unlock()

	live := 0
	for i := range g.subs {
		if g.subs[i].live && !g.subs[i].suspended {
			live++
		}
	}
	end := telemetry.FanOut(context.Background(), g.name, live)
	defer end()

	ev := dataEvent(update)
	for i := range g.subs {
		if !g.subs[i].live || g.subs[i].suspended {
			continue
		}
		g.subs[i].updates <- ev
	}
}

// UpdateStatus records the unit's current UnitStatus and fans it out to
// every live subscriber, suspended ones included: a suspended consumer still
// needs to learn its upstream went Stalled or Gone, which is what lets it
// react without polling Link.Status() on a timer.
func (g *Gate) UpdateStatus(status UnitStatus) {
	g.status.Store(int32(status))

	g.mu.Lock()
	defer g.mu.Unlock()

	live := 0
	for i := range g.subs {
		if g.subs[i].live {
			live++
		}
	}
	end := telemetry.FanOut(context.Background(), g.name, live)
	defer end()

	ev := statusEvent(status)
	for i := range g.subs {
		if !g.subs[i].live {
			continue
		}
		g.subs[i].updates <- ev
	}
}

// Status returns the gate's current GateStatus: Dormant if every live
// subscriber is suspended (or there are none), Active otherwise.
func (g *Gate) Status() GateStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	live := 0
	for _, s := range g.subs {
		if s.live {
			live++
		}
	}
	if live == 0 || g.suspended >= live {
		return GateDormant
	}
	return GateActive
}

// UnitStatus returns the unit's most recently published UnitStatus,
// without needing a subscriber connected. Used by the metrics package to
// report a unit's health without consuming a subscriber slot.
func (g *Gate) UnitStatus() UnitStatus {
	return UnitStatus(g.status.Load())
}

// GateAgent mints Links against a Gate. It is kept separate from Gate so a
// unit can hand the agent to its configuration-time callers without
// exposing UpdateData/UpdateStatus.
type GateAgent struct {
	gate     *Gate
	commands chan gateCommand
}

// CreateLink subscribes a new Link to the gate, starting either live or
// suspended. It never blocks on a Process loop: subscription is a direct,
// lock-protected call into the Gate, so CreateLink works equally during
// config.Build (before any goroutine exists to drive Process) and at
// runtime.
func (a *GateAgent) CreateLink(suspended bool) *Link {
	conn := a.gate.subscribe(suspended)
	return &Link{commands: a.commands, conn: conn, suspended: suspended}
}
