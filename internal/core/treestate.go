package core

import (
	"fmt"

	"viewcore/pkg/state"
)

// TreeState is the saved form of one component and its non-transient
// descendants. Children holds one entry per non-transient child in order;
// entries are nil for children with nothing to save and the slice is nil
// when all of them are.
type TreeState struct {
	Family   string
	State    any
	Facets   []FacetState
	Children []any
}

// FacetState is the saved form of one named facet.
type FacetState struct {
	Name  string
	State *TreeState
}

// SaveTree saves c and its descendants. It returns nil when nothing in the
// subtree has state worth keeping.
func SaveTree(c Component) (any, error) {
	b := c.AsBase()
	if b.transient {
		return nil, nil
	}
	own, err := c.SaveState()
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", describe(c), err)
	}
	var facets []FacetState
	for _, name := range b.facetNames {
		f := b.facets[name]
		if f.AsBase().transient {
			continue
		}
		s, err := SaveTree(f)
		if err != nil {
			return nil, err
		}
		if s != nil {
			facets = append(facets, FacetState{Name: name, State: s.(*TreeState)})
		}
	}
	var children []any
	anyChild := false
	for _, kid := range b.children {
		if kid.AsBase().transient {
			continue
		}
		s, err := SaveTree(kid)
		if err != nil {
			return nil, err
		}
		children = append(children, s)
		if s != nil {
			anyChild = true
		}
	}
	if !anyChild {
		children = nil
	}
	if own == nil && len(facets) == 0 && children == nil {
		return nil, nil
	}
	return &TreeState{Family: b.family, State: own, Facets: facets, Children: children}, nil
}

// RestoreTree applies a snapshot produced by SaveTree to a tree of the same
// shape. Missing or surplus facet and child snapshots are logged and skipped.
func RestoreTree(rc *RequestContext, c Component, snapshot any) error {
	if snapshot == nil {
		return nil
	}
	ts, ok := snapshot.(*TreeState)
	if !ok {
		return state.NewShapeError("core.TreeState", snapshot)
	}
	b := c.AsBase()
	if ts.Family != b.family {
		return state.ShapeError{Want: b.family, Got: ts.Family}
	}
	if err := c.RestoreState(ts.State); err != nil {
		return fmt.Errorf("restore %s: %w", describe(c), err)
	}
	for _, fs := range ts.Facets {
		f := b.facets[fs.Name]
		if f == nil {
			rc.logger().Warn("saved facet has no counterpart", "component", b.ID(), "facet", fs.Name)
			continue
		}
		if err := RestoreTree(rc, f, fs.State); err != nil {
			return err
		}
	}
	if ts.Children == nil {
		return nil
	}
	i := 0
	for _, kid := range b.children {
		if kid.AsBase().transient {
			continue
		}
		if i >= len(ts.Children) {
			rc.logger().Warn("component has more children than its saved state", "component", b.ID(), "saved", len(ts.Children))
			return nil
		}
		if err := RestoreTree(rc, kid, ts.Children[i]); err != nil {
			return err
		}
		i++
	}
	if i < len(ts.Children) {
		rc.logger().Warn("saved state has more children than the component", "component", b.ID(), "saved", len(ts.Children), "present", i)
	}
	return nil
}

// MarkInitialState establishes the delta baseline on c and its descendants.
func MarkInitialState(c Component) {
	visit(c, func(n Component) bool {
		n.AsBase().helper.MarkInitialState()
		return true
	})
}

// ClearInitialState drops the delta baseline on c and its descendants.
func ClearInitialState(c Component) {
	visit(c, func(n Component) bool {
		n.AsBase().helper.ClearInitialState()
		return true
	})
}

func describe(c Component) string {
	b := c.AsBase()
	if id := b.ID(); id != "" {
		return b.family + " " + id
	}
	return b.family
}
