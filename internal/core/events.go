package core

import (
	"errors"

	"viewcore/pkg/domain"
)

// Event is a notification queued on the view root and delivered to its
// source component during the phase it targets.
type Event interface {
	Source() Component
	Phase() domain.Phase
	SetPhase(domain.Phase)
}

type eventBase struct {
	source Component
	phase  domain.Phase
}

func (e *eventBase) Source() Component       { return e.source }
func (e *eventBase) Phase() domain.Phase     { return e.phase }
func (e *eventBase) SetPhase(p domain.Phase) { e.phase = p }

// ActionEvent is queued when a command is activated.
type ActionEvent struct {
	eventBase
}

// NewActionEvent returns an action event targeting InvokeApplication.
func NewActionEvent(source Component) *ActionEvent {
	return &ActionEvent{eventBase{source: source, phase: domain.PhaseInvokeApplication}}
}

// ValueChangeEvent is queued when an input's local value changes during
// validation.
type ValueChangeEvent struct {
	eventBase
	Old any
	New any
}

// NewValueChangeEvent returns a value change event delivered at the end of
// whichever phase queued it.
func NewValueChangeEvent(source Component, old, new any) *ValueChangeEvent {
	return &ValueChangeEvent{eventBase: eventBase{source: source, phase: domain.PhaseAny}, Old: old, New: new}
}

// rowEvent remembers the row that was current when a descendant of a data
// iterator queued inner.
type rowEvent struct {
	inner Event
	data  *Data
	row   int
}

func (e *rowEvent) Source() Component       { return e.data }
func (e *rowEvent) Phase() domain.Phase     { return e.inner.Phase() }
func (e *rowEvent) SetPhase(p domain.Phase) { e.inner.SetPhase(p) }

// Unwrap returns the event queued by the descendant.
func (e *rowEvent) Unwrap() Event { return e.inner }

// UnwrapEvent strips row bookkeeping added by enclosing data iterators.
func UnwrapEvent(evt Event) Event {
	for {
		re, ok := evt.(*rowEvent)
		if !ok {
			return evt
		}
		evt = re.inner
	}
}

// Outcome tells the broadcaster whether to keep delivering queued events.
type Outcome int

const (
	OutcomeContinue Outcome = iota
	OutcomeAbort
)

// Listener receives events broadcast by the component it is attached to.
type Listener interface {
	Handles(evt Event) bool
	Process(rc *RequestContext, evt Event) error
}

// ListenerFunc handles every event.
type ListenerFunc func(rc *RequestContext, evt Event) error

func (f ListenerFunc) Handles(Event) bool                          { return true }
func (f ListenerFunc) Process(rc *RequestContext, evt Event) error { return f(rc, evt) }

// ActionListenerFunc handles action events only.
type ActionListenerFunc func(rc *RequestContext, evt *ActionEvent) error

func (f ActionListenerFunc) Handles(evt Event) bool {
	_, ok := evt.(*ActionEvent)
	return ok
}

func (f ActionListenerFunc) Process(rc *RequestContext, evt Event) error {
	return f(rc, evt.(*ActionEvent))
}

// ValueChangeListenerFunc handles value change events only.
type ValueChangeListenerFunc func(rc *RequestContext, evt *ValueChangeEvent) error

func (f ValueChangeListenerFunc) Handles(evt Event) bool {
	_, ok := evt.(*ValueChangeEvent)
	return ok
}

func (f ValueChangeListenerFunc) Process(rc *RequestContext, evt Event) error {
	return f(rc, evt.(*ValueChangeEvent))
}

// deliver hands evt to each listener that handles it, stopping early when one
// aborts.
func deliver(rc *RequestContext, listeners []Listener, evt Event) (Outcome, error) {
	for _, l := range listeners {
		if !l.Handles(evt) {
			continue
		}
		if err := l.Process(rc, evt); err != nil {
			if errors.Is(err, ErrAbortProcessing) {
				return OutcomeAbort, nil
			}
			return OutcomeContinue, err
		}
	}
	return OutcomeContinue, nil
}
