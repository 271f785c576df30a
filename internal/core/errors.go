package core

import (
	"errors"
	"fmt"

	"viewcore/pkg/domain"
)

// ErrInvalidArgument is the root of every argument error returned by the
// component tree API.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrAbortProcessing may be returned by a listener to stop delivery of the
// current event and discard the rest of the queue.
var ErrAbortProcessing = errors.New("abort processing")

// InvalidIDError reports a component id that does not match the id syntax.
type InvalidIDError struct {
	ID string
}

func (e InvalidIDError) Error() string {
	return fmt.Sprintf("invalid component id %q", e.ID)
}

func (e InvalidIDError) Unwrap() error { return ErrInvalidArgument }

// DuplicateIDError reports an id already used by a sibling or facet under the
// same parent.
type DuplicateIDError struct {
	ID     string
	Parent string
}

func (e DuplicateIDError) Error() string {
	return fmt.Sprintf("component id %q already used under %q", e.ID, e.Parent)
}

func (e DuplicateIDError) Unwrap() error { return ErrInvalidArgument }

// DuplicateClientIDError reports two components of one tree rendering the
// same client id.
type DuplicateClientIDError struct {
	ClientID string
}

func (e DuplicateClientIDError) Error() string {
	return fmt.Sprintf("duplicate client id %q", e.ClientID)
}

func (e DuplicateClientIDError) Unwrap() error { return ErrInvalidArgument }

// CycleError reports an attempt to attach a component below itself.
type CycleError struct {
	Child  string
	Parent string
}

func (e CycleError) Error() string {
	return fmt.Sprintf("attaching %q under %q would create a cycle", e.Child, e.Parent)
}

func (e CycleError) Unwrap() error { return ErrInvalidArgument }

// RowIndexError reports a row index below -1.
type RowIndexError struct {
	Index int
}

func (e RowIndexError) Error() string {
	return fmt.Sprintf("row index %d out of range", e.Index)
}

func (e RowIndexError) Unwrap() error { return ErrInvalidArgument }

// PhaseError wraps a failure raised by a component hook, listener or
// delegate while a phase was running.
type PhaseError struct {
	Phase    domain.Phase
	ClientID string
	Err      error
}

func (e *PhaseError) Error() string {
	if e.ClientID == "" {
		return fmt.Sprintf("%s: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Phase, e.ClientID, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// guard runs fn on behalf of c, converting returned errors and panics into a
// *PhaseError for the current phase. Errors that already are phase errors
// pass through unchanged.
func guard(rc *RequestContext, c Component, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PhaseError{Phase: rc.Phase(), ClientID: safeClientID(rc, c), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if ferr := fn(); ferr != nil {
		var pe *PhaseError
		if errors.As(ferr, &pe) {
			return ferr
		}
		return &PhaseError{Phase: rc.Phase(), ClientID: safeClientID(rc, c), Err: ferr}
	}
	return nil
}

func safeClientID(rc *RequestContext, c Component) (id string) {
	if c == nil {
		return ""
	}
	defer func() {
		if recover() != nil {
			id = c.AsBase().ID()
		}
	}()
	return c.AsBase().ClientID(rc)
}
