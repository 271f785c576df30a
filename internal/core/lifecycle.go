package core

import (
	"context"
	"errors"
	"fmt"

	"viewcore/pkg/domain"
)

// PhaseListener is notified around each phase it targets; PhaseAny targets
// every phase.
type PhaseListener interface {
	Phase() domain.Phase
	BeforePhase(rc *RequestContext, phase domain.Phase)
	AfterPhase(rc *RequestContext, phase domain.Phase)
}

// PhaseListenerFuncs builds a PhaseListener from optional callbacks.
type PhaseListenerFuncs struct {
	On     domain.Phase
	Before func(rc *RequestContext, phase domain.Phase)
	After  func(rc *RequestContext, phase domain.Phase)
}

func (f PhaseListenerFuncs) Phase() domain.Phase { return f.On }

func (f PhaseListenerFuncs) BeforePhase(rc *RequestContext, phase domain.Phase) {
	if f.Before != nil {
		f.Before(rc, phase)
	}
}

func (f PhaseListenerFuncs) AfterPhase(rc *RequestContext, phase domain.Phase) {
	if f.After != nil {
		f.After(rc, phase)
	}
}

// Lifecycle drives a request through its phases.
type Lifecycle struct {
	listeners []PhaseListener
	metrics   MetricsRecorder
	tracer    Tracer
}

// LifecycleOption customizes a Lifecycle.
type LifecycleOption func(*Lifecycle)

// WithLifecycleMetrics records one observation per phase.
func WithLifecycleMetrics(m MetricsRecorder) LifecycleOption {
	return func(l *Lifecycle) {
		if m != nil {
			l.metrics = m
		}
	}
}

// WithLifecycleTracer opens one span per phase.
func WithLifecycleTracer(t Tracer) LifecycleOption {
	return func(l *Lifecycle) {
		if t != nil {
			l.tracer = t
		}
	}
}

// NewLifecycle returns a lifecycle without phase listeners.
func NewLifecycle(opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{metrics: noopMetrics{}, tracer: noopTracer{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddPhaseListener registers l for every request.
func (l *Lifecycle) AddPhaseListener(pl PhaseListener) {
	l.listeners = append(l.listeners, pl)
}

// Restore runs fn as the restore phase. fn is expected to build or restore
// rc.Root; only lifecycle-level listeners are notified.
func (l *Lifecycle) Restore(rc *RequestContext, fn func() error) error {
	return l.runPhase(rc, domain.PhaseRestore, fn)
}

// Execute runs Decode through InvokeApplication. It stops early when a phase
// requests rendering or completes the response. A phase error discards the
// event queue, requests rendering and is returned.
func (l *Lifecycle) Execute(rc *RequestContext) error {
	if rc.Root == nil {
		return fmt.Errorf("execute without a view root: %w", ErrInvalidArgument)
	}
	for _, phase := range domain.ExecutePhases {
		if rc.responseComplete || rc.renderResponse {
			return nil
		}
		if err := l.runPhase(rc, phase, func() error { return l.walk(rc, phase) }); err != nil {
			rc.Root.ClearEvents()
			rc.RenderResponse()
			return err
		}
	}
	return nil
}

func (l *Lifecycle) walk(rc *RequestContext, phase domain.Phase) error {
	root := rc.Root
	var err error
	switch phase {
	case domain.PhaseDecode:
		err = root.ProcessDecodes(rc)
	case domain.PhaseValidate:
		err = root.ProcessValidators(rc)
	case domain.PhaseUpdateModel:
		err = root.ProcessUpdates(rc)
	case domain.PhaseInvokeApplication:
	}
	if err != nil {
		return err
	}
	return root.BroadcastEvents(rc, phase)
}

// Render discards pending events and encodes the tree, unless the response
// was already completed.
func (l *Lifecycle) Render(rc *RequestContext) error {
	if rc.responseComplete {
		return nil
	}
	if rc.Root == nil {
		return fmt.Errorf("render without a view root: %w", ErrInvalidArgument)
	}
	rc.Root.ClearEvents()
	return l.runPhase(rc, domain.PhaseRender, func() error { return EncodeAll(rc, rc.Root) })
}

// Run executes and renders. Render still runs after an execute error; both
// errors are returned.
func (l *Lifecycle) Run(rc *RequestContext) error {
	err := l.Execute(rc)
	return errors.Join(err, l.Render(rc))
}

// runPhase notifies before-listeners, runs body unless processing is being
// skipped, and notifies after-listeners in reverse order whatever happened.
func (l *Lifecycle) runPhase(rc *RequestContext, phase domain.Phase, body func() error) error {
	rc.phase = phase
	listeners := l.listenersFor(rc, phase)
	return observe(rc.Context(), l.metrics, l.tracer, "phase."+phase.String(), func(ctx context.Context) error {
		var err error
		for _, pl := range listeners {
			if err = guardListener(phase, func() { pl.BeforePhase(rc, phase) }); err != nil {
				break
			}
		}
		skip := rc.responseComplete || (phase != domain.PhaseRender && rc.renderResponse)
		if err == nil && !skip {
			err = body()
		}
		for i := len(listeners) - 1; i >= 0; i-- {
			pl := listeners[i]
			if aerr := guardListener(phase, func() { pl.AfterPhase(rc, phase) }); aerr != nil && err == nil {
				err = aerr
			}
		}
		return err
	})
}

func (l *Lifecycle) listenersFor(rc *RequestContext, phase domain.Phase) []PhaseListener {
	var out []PhaseListener
	all := l.listeners
	if rc.Root != nil {
		all = append(append([]PhaseListener(nil), all...), rc.Root.phaseListeners...)
	}
	for _, pl := range all {
		if pl.Phase().Matches(phase) {
			out = append(out, pl)
		}
	}
	return out
}

func guardListener(phase domain.Phase, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PhaseError{Phase: phase, Err: fmt.Errorf("phase listener panic: %v", r)}
		}
	}()
	fn()
	return nil
}
