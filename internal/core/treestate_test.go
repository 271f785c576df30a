package core_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"viewcore/internal/codec"
	"viewcore/internal/core"
	"viewcore/pkg/state"
)

type profileView struct {
	root  *core.ViewRoot
	form  *core.Form
	name  *core.Input
	title *core.Output
}

func buildProfile() profileView {
	v := profileView{
		root:  core.NewViewRoot("profile"),
		form:  mustID(core.NewForm(), "f"),
		name:  mustID(core.NewInput(), "name"),
		title: mustID(core.NewOutput(), "title"),
	}
	v.title.SetValue("Profile")
	mustAdd(v.root, v.form)
	mustAdd(v.form, v.name, v.title)
	return v
}

func roundTrip(t *testing.T, snap any) any {
	t.Helper()
	data, err := codec.Encode(snap)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestFullStateRoundTrip(t *testing.T) {
	v := buildProfile()
	v.name.SetValue("Ada")
	v.title.SetRendered(false)

	snap, err := core.SaveTree(v.root)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	snap = roundTrip(t, snap)

	fresh := buildProfile()
	fresh.title.SetValue("changed before restore")
	rc, _ := newRequest(fresh.root)
	if err := core.RestoreTree(rc, fresh.root, snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := fresh.name.LocalValue(); got != "Ada" {
		t.Fatalf("input value: %v", got)
	}
	if !fresh.name.LocalValueSet() {
		t.Fatalf("local value flag lost")
	}
	if got := fresh.title.LocalValue(); got != "Profile" {
		t.Fatalf("full state should replace the live map, got %v", got)
	}
	if fresh.title.Rendered(rc) {
		t.Fatalf("rendered flag lost")
	}
}

func TestDeltaStateOnlyCarriesChanges(t *testing.T) {
	v := buildProfile()
	core.MarkInitialState(v.root)

	snap, err := core.SaveTree(v.root)
	if err != nil || snap != nil {
		t.Fatalf("unchanged tree should save nothing, got %#v %v", snap, err)
	}

	v.name.SetValue("Ada")
	snap, err = core.SaveTree(v.root)
	if err != nil {
		t.Fatal(err)
	}
	ts := snap.(*core.TreeState)
	if ts.State != nil {
		t.Fatalf("root state should be empty, got %#v", ts.State)
	}
	form := ts.Children[0].(*core.TreeState)
	if len(form.Children) != 2 || form.Children[1] != nil {
		t.Fatalf("form children: %#v", form.Children)
	}
	want := &state.Delta{Entries: []state.Entry{
		{Key: "value", Value: "Ada"},
		{Key: "localValueSet", Value: true},
	}}
	if diff := cmp.Diff(any(want), form.Children[0].(*core.TreeState).State); diff != "" {
		t.Fatalf("input delta (-want +got):\n%s", diff)
	}

	snap = roundTrip(t, snap)
	fresh := buildProfile()
	core.MarkInitialState(fresh.root)
	rc, _ := newRequest(fresh.root)
	if err := core.RestoreTree(rc, fresh.root, snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := fresh.name.LocalValue(); got != "Ada" {
		t.Fatalf("restored value: %v", got)
	}
	if got := fresh.title.LocalValue(); got != "Profile" {
		t.Fatalf("built value should stay: %v", got)
	}
}

func TestDeltaReplaysRemovals(t *testing.T) {
	build := func() profileView {
		v := buildProfile()
		v.name.SetValue("draft")
		core.MarkInitialState(v.root)
		return v
	}
	v := build()
	v.name.ResetValue()
	snap, err := core.SaveTree(v.root)
	if err != nil || snap == nil {
		t.Fatalf("save: %v %v", snap, err)
	}

	fresh := build()
	rc, _ := newRequest(fresh.root)
	if err := core.RestoreTree(rc, fresh.root, roundTrip(t, snap)); err != nil {
		t.Fatal(err)
	}
	if fresh.name.LocalValue() != nil || fresh.name.LocalValueSet() {
		t.Fatalf("removal not replayed: %v", fresh.name.LocalValue())
	}
}

func TestTransientSubtreesAreSkipped(t *testing.T) {
	v := buildProfile()
	v.title.SetTransient(true)
	snap, err := core.SaveTree(v.root)
	if err != nil {
		t.Fatal(err)
	}
	form := snap.(*core.TreeState).Children[0].(*core.TreeState)
	if len(form.Children) != 1 {
		t.Fatalf("transient child saved: %d entries", len(form.Children))
	}

	fresh := buildProfile()
	fresh.title.SetTransient(true)
	fresh.title.SetValue("kept")
	rc, _ := newRequest(fresh.root)
	if err := core.RestoreTree(rc, fresh.root, snap); err != nil {
		t.Fatal(err)
	}
	if got := fresh.title.LocalValue(); got != "kept" {
		t.Fatalf("transient component touched by restore: %v", got)
	}
}

func TestRestoreRejectsOtherFamilies(t *testing.T) {
	v := buildProfile()
	snap, err := core.SaveTree(v.root)
	if err != nil {
		t.Fatal(err)
	}
	rc, _ := newRequest(nil)
	var shape state.ShapeError
	if err := core.RestoreTree(rc, core.NewPanel(), snap); !errors.As(err, &shape) {
		t.Fatalf("expected shape error, got %v", err)
	}
	if err := core.RestoreTree(rc, core.NewPanel(), "junk"); !errors.As(err, &shape) {
		t.Fatalf("expected shape error for junk, got %v", err)
	}
}

func TestRestoreToleratesShapeDrift(t *testing.T) {
	v := buildProfile()
	v.name.SetValue("Ada")
	snap, err := core.SaveTree(v.root)
	if err != nil {
		t.Fatal(err)
	}

	fresh := buildProfile()
	mustAdd(fresh.form, mustID(core.NewOutput(), "extra"))
	rc, _ := newRequest(fresh.root)
	log := &recordingLogger{}
	rc.Logger = log
	if err := core.RestoreTree(rc, fresh.root, snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := fresh.name.LocalValue(); got != "Ada" {
		t.Fatalf("value: %v", got)
	}
	if log.count("warn") == 0 {
		t.Fatalf("shape drift should be logged")
	}
}
