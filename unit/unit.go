// Package unit implements the four data-source kinds: rtr (an RTR client),
// json (a JSON-over-HTTP/file poller), any (failover/round-robin/random
// selection across other units), and slurm (local exception filtering).
package unit

import (
	"context"

	"github.com/go-rtrtr/rtrtr/comms"
)

// Unit is anything that owns a Gate and runs until ctx is cancelled or it
// permanently fails. Run should call gate.UpdateStatus(comms.Gone) and
// return a non-nil error only when recovery requires operator action;
// transient trouble should be reported as comms.Stalled and retried
// internally instead of returning.
type Unit interface {
	Run(ctx context.Context) error
	Gate() *comms.Gate

	// Agent mints Links subscribed to this unit's Gate, for another unit
	// or target that depends on it.
	Agent() *comms.GateAgent
}

// base is embedded by every unit kind to provide the Gate accessor.
type base struct {
	gate  *comms.Gate
	agent *comms.GateAgent
}

func newBase(name string) base {
	gate, agent := comms.NewGate(name)
	return base{gate: gate, agent: agent}
}

// Gate returns the unit's Gate.
func (b base) Gate() *comms.Gate { return b.gate }

// Agent returns the GateAgent used to subscribe to this unit from
// configuration-time wiring.
func (b base) Agent() *comms.GateAgent { return b.agent }
