package unit

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/go-rtrtr/rtrtr/comms"
)

// SelectMode governs how Any picks which of its sources to read from when
// the current one fails.
type SelectMode int

const (
	// Failover always returns to source 0 once it recovers.
	Failover SelectMode = iota
	// RoundRobin advances to the next source in order.
	RoundRobin
	// Random picks uniformly among the remaining candidates.
	Random
)

// Any is a unit that relays exactly one of several upstream sources at a
// time, switching away from a source that goes Stalled or Gone and back
// once a higher-priority source recovers (in Failover mode) or per
// RoundRobin/Random otherwise. Its own Gate re-publishes whatever the
// currently selected source publishes.
type Any struct {
	base

	Sources []*comms.Link
	Mode    SelectMode

	name string
}

// NewAny constructs an Any combinator unit over the given links, which the
// caller obtains from each source unit's GateAgent ahead of time.
func NewAny(name string, sources []*comms.Link, mode SelectMode) *Any {
	return &Any{base: newBase(name), Sources: sources, Mode: mode, name: name}
}

// Run implements Unit.
func (a *Any) Run(ctx context.Context) error {
	if len(a.Sources) == 0 {
		a.Gate().UpdateStatus(comms.Gone)
		return fmt.Errorf("unit/any %s: %w", a.name, comms.ErrTerminated)
	}

	for _, s := range a.Sources {
		s.Suspend()
	}
	current := a.pickNext(ctx, -1)
	if current < 0 {
		a.Gate().UpdateStatus(comms.Gone)
		return fmt.Errorf("unit/any %s: %w", a.name, comms.ErrTerminated)
	}
	a.Sources[current].Resume()

	events := make(chan int, len(a.Sources))
	for idx := range a.Sources {
		go a.pump(ctx, idx, events)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case idx := <-events:
			if idx != current {
				// A suspended or stale source woke up; Failover prefers to
				// reclaim an earlier-indexed source once it's healthy again.
				if a.Mode == Failover && idx < current && a.Sources[idx].Status() == comms.Healthy {
					a.Sources[current].Suspend()
					current = idx
					a.Sources[current].Resume()
				}
				continue
			}
			if a.Sources[current].Status() != comms.Healthy {
				a.Sources[current].Suspend()
				next := a.pickNext(ctx, current)
				if next < 0 {
					a.Gate().UpdateStatus(comms.Gone)
					return fmt.Errorf("unit/any %s: %w", a.name, comms.ErrTerminated)
				}
				current = next
				a.Sources[current].Resume()
			}
		}
		if err := a.Gate().Process(ctx); err != nil && err != context.Canceled {
			return err
		}
	}
}

// pump forwards query results from one source link into the shared events
// channel, fanning the chosen source's updates out on the Any unit's own
// gate and reporting aliveness for every source regardless of selection.
func (a *Any) pump(ctx context.Context, idx int, events chan<- int) {
	link := a.Sources[idx]
	for {
		ev, ok := link.Query(ctx)
		if !ok {
			select {
			case events <- idx:
			case <-ctx.Done():
			}
			return
		}
		select {
		case events <- idx:
		case <-ctx.Done():
			return
		}
		// Data only ever arrives for the currently selected source: Gate
		// skips every suspended subscriber for UpdateData. Status events,
		// though, reach every source's link regardless of suspension —
		// that's how a suspended pump wakes the select loop above without
		// polling, and it carries nothing to forward here.
		if update, isUpdate := ev.Update(); isUpdate {
			a.Gate().UpdateData(update)
		}
	}
}

// pickNext chooses the next source to activate per Mode, skipping `exclude`
// and any source reporting Gone. It returns -1 if none are usable.
func (a *Any) pickNext(ctx context.Context, exclude int) int {
	candidates := make([]int, 0, len(a.Sources))
	for i, s := range a.Sources {
		if i == exclude {
			continue
		}
		if s.Status() == comms.Gone {
			continue
		}
		candidates = append(candidates, i)
	}
	if len(candidates) == 0 {
		return -1
	}
	switch a.Mode {
	case Random:
		return candidates[rand.Intn(len(candidates))]
	case RoundRobin:
		for _, c := range candidates {
			if c > exclude {
				return c
			}
		}
		return candidates[0]
	default:
		return candidates[0]
	}
}
