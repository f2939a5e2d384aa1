package comms

import (
	"context"

	"github.com/go-rtrtr/rtrtr/payload"
)

// Link is a subscriber's handle to another unit's Gate: it receives that
// unit's payload.Update values and can request to be suspended (stop
// receiving updates without losing its place) or resumed.
type Link struct {
	commands  chan<- gateCommand
	conn      linkConnection
	suspended bool
}

// Query blocks until an Event arrives, or ctx is cancelled. It returns the
// zero Event and false if ctx is done. The Gate never closes a subscriber's
// channel, so an upstream unit going Gone arrives as a status Event rather
// than as a closed channel. The caller must
// inspect the returned Event to tell a data Update from a status change —
// QueryUpdate is a convenience for callers that only care about data.
func (l *Link) Query(ctx context.Context) (Event, bool) {
	select {
	case <-ctx.Done():
		return Event{}, false
	case ev, ok := <-l.conn.updates:
		return ev, ok
	}
}

// QueryUpdate blocks, like Query, but skips status Events and returns only
// the next data Update. It returns false if ctx is cancelled; a Gone status
// Event is skipped like any other status Event.
func (l *Link) QueryUpdate(ctx context.Context) (payload.Update, bool) {
	for {
		ev, ok := l.Query(ctx)
		if !ok {
			return payload.Update{}, false
		}
		if u, isUpdate := ev.Update(); isUpdate {
			return u, true
		}
	}
}

// Suspend marks the link suspended: the upstream gate will stop sending it
// updates until Resume is called. Suspend is used by the `any` combinator
// to stop a source it isn't currently reading from without dropping the
// subscription.
func (l *Link) Suspend() {
	l.setSuspended(true)
}

// Resume reverses Suspend.
func (l *Link) Resume() {
	l.setSuspended(false)
}

func (l *Link) setSuspended(suspend bool) {
	if l.suspended == suspend {
		return
	}
	l.suspended = suspend
	slot := l.conn.slot
	l.commands <- gateCommand{suspendSlot: &slot, suspend: suspend}
}

// Suspended reports the link's local view of its own suspension state.
func (l *Link) Suspended() bool {
	return l.suspended
}

// Status returns the upstream unit's most recently published UnitStatus.
func (l *Link) Status() UnitStatus {
	return UnitStatus(l.conn.status.Load())
}

// Chan exposes the link's raw event channel for use in a select statement
// alongside other event sources. The Gate never closes it.
func (l *Link) Chan() <-chan Event {
	return l.conn.updates
}
