package core_test

import (
	"errors"
	"strings"
	"testing"

	"viewcore/internal/core"
)

// namingTree builds:
//
//	root
//	  form "f"
//	    panel "p"
//	      input "name"
//	  subview "s"
//	    output "name"
func namingTree() (root *core.ViewRoot, form *core.Form, panel *core.Panel, in *core.Input, out *core.Output) {
	root = core.NewViewRoot("naming")
	form = mustID(core.NewForm(), "f")
	panel = mustID(core.NewPanel(), "p")
	in = mustID(core.NewInput(), "name")
	sub := mustID(core.NewSubview(), "s")
	out = mustID(core.NewOutput(), "name")
	mustAdd(root, form, sub)
	mustAdd(form, panel)
	mustAdd(panel, in)
	mustAdd(sub, out)
	return root, form, panel, in, out
}

func TestClientIDs(t *testing.T) {
	root, form, panel, in, out := namingTree()
	rc, _ := newRequest(root)

	cases := []struct {
		c    core.Component
		want string
	}{
		{form, "f"},
		{panel, "f:p"},
		{in, "f:name"},
		{out, "s:name"},
	}
	for _, tc := range cases {
		if got := tc.c.AsBase().ClientID(rc); got != tc.want {
			t.Fatalf("client id of %s: want %q got %q", tc.c.AsBase().ID(), tc.want, got)
		}
	}
}

func TestClientIDFollowsRenamesAndMoves(t *testing.T) {
	root, form, _, in, _ := namingTree()
	rc, _ := newRequest(root)
	if got := in.ClientID(rc); got != "f:name" {
		t.Fatalf("client id %q", got)
	}

	if err := form.SetID("g"); err != nil {
		t.Fatal(err)
	}
	if got := in.ClientID(rc); got != "g:name" {
		t.Fatalf("after container rename: %q", got)
	}

	other := mustID(core.NewForm(), "h")
	mustAdd(root, other)
	mustAdd(other, in)
	if got := in.ClientID(rc); got != "h:name" {
		t.Fatalf("after move: %q", got)
	}
}

func TestGeneratedIDsWarnOncePerTree(t *testing.T) {
	root := core.NewViewRoot("gen")
	a, b := core.NewOutput(), core.NewOutput()
	mustAdd(root, a, b)
	rc, _ := newRequest(root)
	log := &recordingLogger{}
	rc.Logger = log

	if got := a.ClientID(rc); got != core.GeneratedIDPrefix+"1" {
		t.Fatalf("first generated id %q", got)
	}
	if got := b.ClientID(rc); got != core.GeneratedIDPrefix+"2" {
		t.Fatalf("second generated id %q", got)
	}
	if a.ID() != "j_id1" {
		t.Fatalf("generated id not kept: %q", a.ID())
	}
	if n := log.count("warn"); n != 1 {
		t.Fatalf("expected one warning, got %d", n)
	}
}

func TestFindComponent(t *testing.T) {
	root, form, panel, in, out := namingTree()
	rc, _ := newRequest(root)

	cases := []struct {
		from core.Component
		expr string
		want core.Component
	}{
		{root, "f", form},
		{root, "f:name", in},
		{root, "s:name", out},
		{in, "p", panel},
		{in, "name", in},
		{in, ":s:name", out},
		{out, ":f:p", panel},
	}
	for _, tc := range cases {
		got := tc.from.AsBase().FindComponent(rc, tc.expr)
		if got != tc.want {
			t.Fatalf("find %q from %s: got %v", tc.expr, tc.from.AsBase().ID(), got)
		}
	}

	for _, expr := range []string{"", "name", "f:missing", "p:name"} {
		if got := root.FindComponent(rc, expr); got != nil {
			t.Fatalf("find %q should fail, got %s", expr, got.AsBase().ID())
		}
	}
}

func TestCheckUniqueClientIDs(t *testing.T) {
	root, _, _, _, _ := namingTree()
	rc, _ := newRequest(root)
	if err := core.CheckUniqueClientIDs(rc, root); err != nil {
		t.Fatalf("unexpected: %v", err)
	}

	p1, p2 := mustID(core.NewPanel(), "p1"), mustID(core.NewPanel(), "p2")
	mustAdd(root, p1, p2)
	mustAdd(p1, mustID(core.NewOutput(), "dup"))
	mustAdd(p2, mustID(core.NewOutput(), "dup"))
	err := core.CheckUniqueClientIDs(rc, root)
	var dup core.DuplicateClientIDError
	if !errors.As(err, &dup) || dup.ClientID != "dup" {
		t.Fatalf("expected duplicate client id, got %v", err)
	}
	if !strings.Contains(err.Error(), `"dup"`) {
		t.Fatalf("error text %q", err)
	}
}

func TestInvokeOnComponent(t *testing.T) {
	root, _, _, in, _ := namingTree()
	rc, _ := newRequest(root)

	var seen core.Component
	found, err := core.InvokeOnComponent(rc, root, "f:name", func(c core.Component) error {
		seen = c
		return nil
	})
	if err != nil || !found || seen != in {
		t.Fatalf("invoke: found=%v err=%v", found, err)
	}

	found, err = core.InvokeOnComponent(rc, root, "f:nope", func(core.Component) error { return nil })
	if err != nil || found {
		t.Fatalf("missing id: found=%v err=%v", found, err)
	}

	boom := errors.New("boom")
	_, err = core.InvokeOnComponent(rc, root, "s:name", func(core.Component) error { return boom })
	var pe *core.PhaseError
	if !errors.As(err, &pe) || !errors.Is(err, boom) || pe.ClientID != "s:name" {
		t.Fatalf("callback error not wrapped: %v", err)
	}
}
