package comms

import "github.com/go-rtrtr/rtrtr/payload"

// Event is one message a Gate delivers to a Link: either an upstream
// payload.Update or a UnitStatus change. A Gate fans status Events out to
// every live subscriber, suspended ones included — unlike UpdateData, which
// only reaches non-suspended subscribers — so a suspended Link's consumer
// learns its source went Stalled or Gone by being woken out of Query()
// rather than having to poll Link.Status().
type Event struct {
	update   payload.Update
	status   UnitStatus
	isStatus bool
}

func dataEvent(u payload.Update) Event { return Event{update: u} }

func statusEvent(s UnitStatus) Event { return Event{status: s, isStatus: true} }

// Update returns the event's Update and true, or the zero Update and false
// if this event carries a status instead.
func (e Event) Update() (payload.Update, bool) { return e.update, !e.isStatus }

// Status returns the event's UnitStatus and true, or the zero value and
// false if this event carries an Update instead.
func (e Event) Status() (UnitStatus, bool) { return e.status, e.isStatus }
