package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestPhaseMatches(t *testing.T) {
	all := []Phase{PhaseRestore, PhaseDecode, PhaseValidate, PhaseUpdateModel, PhaseInvokeApplication, PhaseRender}
	for _, current := range all {
		if !PhaseAny.Matches(current) {
			t.Fatalf("PhaseAny should match %s", current)
		}
		for _, target := range all {
			if got := target.Matches(current); got != (target == current) {
				t.Fatalf("%s.Matches(%s) = %v", target, current, got)
			}
		}
	}
}

func TestPhaseNames(t *testing.T) {
	want := map[Phase]string{
		PhaseAny:               "any",
		PhaseRestore:           "restore",
		PhaseDecode:            "decode",
		PhaseValidate:          "validate",
		PhaseUpdateModel:       "update-model",
		PhaseInvokeApplication: "invoke-application",
		PhaseRender:            "render",
		Phase(99):              "unknown",
	}
	for p, name := range want {
		if p.String() != name {
			t.Fatalf("phase %d: want %q got %q", int(p), name, p.String())
		}
	}
	if len(ExecutePhases) != 4 || ExecutePhases[0] != PhaseDecode || ExecutePhases[3] != PhaseInvokeApplication {
		t.Fatalf("execute phases: %v", ExecutePhases)
	}
}

func TestMessageString(t *testing.T) {
	m := Message{ClientID: "f:name", Severity: SeverityError, Summary: "value is required"}
	if got := m.String(); got != "[error] f:name: value is required" {
		t.Fatalf("message: %q", got)
	}
	m.ClientID = ""
	m.Severity = SeverityWarn
	if got := m.String(); got != "[warn] value is required" {
		t.Fatalf("view message: %q", got)
	}
	if SeverityFatal <= SeverityError || SeverityInfo.String() != "info" {
		t.Fatalf("severity order")
	}
}

func TestErrViewNotFound(t *testing.T) {
	err := fmt.Errorf("handle: %w", ErrViewNotFound{ViewID: "orders"})
	var nf ErrViewNotFound
	if !errors.As(err, &nf) || nf.ViewID != "orders" {
		t.Fatalf("unwrap: %v", err)
	}
	if nf.Error() != "view orders not found" {
		t.Fatalf("text: %q", nf.Error())
	}
}
