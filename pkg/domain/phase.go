// Package domain holds the contracts shared between the component engine and
// the host layers that persist and transport view state.
package domain

// Phase identifies one stage of request processing.
type Phase int

// Request processing phases in execution order. PhaseAny matches every phase
// when used as the target of a queued event.
const (
	PhaseAny Phase = iota
	PhaseRestore
	PhaseDecode
	PhaseValidate
	PhaseUpdateModel
	PhaseInvokeApplication
	PhaseRender
)

// ExecutePhases lists the phases run before rendering, in order.
var ExecutePhases = []Phase{PhaseDecode, PhaseValidate, PhaseUpdateModel, PhaseInvokeApplication}

func (p Phase) String() string {
	switch p {
	case PhaseAny:
		return "any"
	case PhaseRestore:
		return "restore"
	case PhaseDecode:
		return "decode"
	case PhaseValidate:
		return "validate"
	case PhaseUpdateModel:
		return "update-model"
	case PhaseInvokeApplication:
		return "invoke-application"
	case PhaseRender:
		return "render"
	default:
		return "unknown"
	}
}

// Matches reports whether an event targeted at p should be delivered during
// the current phase.
func (p Phase) Matches(current Phase) bool {
	return p == PhaseAny || p == current
}
