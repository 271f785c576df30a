package core

import (
	"viewcore/pkg/domain"
)

const keyViewID = "viewId"

// ViewRoot is the root of a component tree. It owns the event queue and the
// view-level phase listeners.
type ViewRoot struct {
	Base
	events         []Event
	phaseListeners []PhaseListener
}

// NewViewRoot returns an empty root for viewID.
func NewViewRoot(viewID string) *ViewRoot {
	r := &ViewRoot{}
	r.init(r, FamilyViewRoot, "")
	r.helper.Put(keyViewID, viewID)
	return r
}

// ViewID returns the id of the view definition the tree was built from.
func (r *ViewRoot) ViewID() string { return r.stringProp(keyViewID) }

// QueueEvent appends evt to the queue.
func (r *ViewRoot) QueueEvent(_ *RequestContext, evt Event) {
	r.events = append(r.events, evt)
}

// PendingEvents returns the queued events in order.
func (r *ViewRoot) PendingEvents() []Event {
	return append([]Event(nil), r.events...)
}

// ClearEvents discards every queued event.
func (r *ViewRoot) ClearEvents() { r.events = nil }

// BroadcastEvents delivers, in FIFO order, every queued event targeting
// phase, including events queued by listeners while broadcasting. An abort
// outcome discards the whole queue.
func (r *ViewRoot) BroadcastEvents(rc *RequestContext, phase domain.Phase) error {
	for {
		i := r.nextEvent(phase)
		if i < 0 {
			return nil
		}
		evt := r.events[i]
		r.events = append(r.events[:i], r.events[i+1:]...)

		var out Outcome
		src := evt.Source()
		err := guard(rc, src, func() error {
			var berr error
			out, berr = src.Broadcast(rc, evt)
			return berr
		})
		if err != nil {
			return err
		}
		if out == OutcomeAbort {
			rc.logger().Debug("event processing aborted", "phase", phase.String(), "dropped", len(r.events))
			r.events = nil
			return nil
		}
	}
}

func (r *ViewRoot) nextEvent(phase domain.Phase) int {
	for i, evt := range r.events {
		if evt.Phase().Matches(phase) {
			return i
		}
	}
	return -1
}

// AddPhaseListener registers l for requests processing this view.
func (r *ViewRoot) AddPhaseListener(l PhaseListener) {
	r.phaseListeners = append(r.phaseListeners, l)
}

// PhaseListeners returns the view-level phase listeners.
func (r *ViewRoot) PhaseListeners() []PhaseListener {
	return append([]PhaseListener(nil), r.phaseListeners...)
}
