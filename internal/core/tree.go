package core

import (
	"fmt"
)

// Children returns a copy of the ordered child list.
func (b *Base) Children() []Component {
	return append([]Component(nil), b.children...)
}

// ChildCount returns the number of children.
func (b *Base) ChildCount() int { return len(b.children) }

// Child returns the child at index i.
func (b *Base) Child(i int) Component { return b.children[i] }

// AddChild appends c to the child list, detaching it from any previous parent.
func (b *Base) AddChild(c Component) error {
	if err := b.checkAdopt(c, nil); err != nil {
		return err
	}
	detach(c)
	b.children = append(b.children, c)
	b.attach(c)
	return nil
}

// InsertChild inserts c at index i of the child list, detaching it from any
// previous parent. Indexes count the list without c.
func (b *Base) InsertChild(i int, c Component) error {
	if err := b.checkAdopt(c, nil); err != nil {
		return err
	}
	n := len(b.children)
	if c.AsBase().parent == b.self && b.childIndex(c) >= 0 {
		n--
	}
	if i < 0 || i > n {
		return fmt.Errorf("child index %d out of range [0,%d]: %w", i, n, ErrInvalidArgument)
	}
	detach(c)
	b.children = append(b.children, nil)
	copy(b.children[i+1:], b.children[i:])
	b.children[i] = c
	b.attach(c)
	return nil
}

func (b *Base) childIndex(c Component) int {
	for i, kid := range b.children {
		if kid == c {
			return i
		}
	}
	return -1
}

// RemoveChild detaches c from the child list and reports whether it was there.
func (b *Base) RemoveChild(c Component) bool {
	for i, kid := range b.children {
		if kid == c {
			b.children = append(b.children[:i], b.children[i+1:]...)
			kid.AsBase().parent = nil
			kid.AsBase().invalidateClientIDs()
			return true
		}
	}
	return false
}

// Facet returns the facet registered under name, or nil.
func (b *Base) Facet(name string) Component { return b.facets[name] }

// FacetNames returns facet names in registration order.
func (b *Base) FacetNames() []string { return append([]string(nil), b.facetNames...) }

// Facets returns facets in registration order.
func (b *Base) Facets() []Component {
	out := make([]Component, 0, len(b.facetNames))
	for _, n := range b.facetNames {
		out = append(out, b.facets[n])
	}
	return out
}

// SetFacet registers c under name, replacing and detaching any previous facet.
func (b *Base) SetFacet(name string, c Component) error {
	if name == "" {
		return fmt.Errorf("empty facet name: %w", ErrInvalidArgument)
	}
	prev := b.facets[name]
	if prev == c {
		return nil
	}
	if err := b.checkAdopt(c, prev); err != nil {
		return err
	}
	detach(c)
	if prev != nil {
		b.RemoveFacet(name)
	}
	if b.facets == nil {
		b.facets = make(map[string]Component)
	}
	b.facets[name] = c
	b.facetNames = append(b.facetNames, name)
	b.attach(c)
	return nil
}

// RemoveFacet detaches and returns the facet registered under name.
func (b *Base) RemoveFacet(name string) Component {
	c, ok := b.facets[name]
	if !ok {
		return nil
	}
	delete(b.facets, name)
	for i, n := range b.facetNames {
		if n == name {
			b.facetNames = append(b.facetNames[:i], b.facetNames[i+1:]...)
			break
		}
	}
	c.AsBase().parent = nil
	c.AsBase().invalidateClientIDs()
	return c
}

func (b *Base) facetsAndChildren() []Component {
	out := make([]Component, 0, len(b.facetNames)+len(b.children))
	for _, n := range b.facetNames {
		out = append(out, b.facets[n])
	}
	return append(out, b.children...)
}

// checkAdopt rejects nil nodes, cycles and id clashes with existing peers.
// replacing is a peer about to be displaced and is ignored for clashes.
func (b *Base) checkAdopt(c Component, replacing Component) error {
	if c == nil {
		return fmt.Errorf("nil component: %w", ErrInvalidArgument)
	}
	for p := b.self; p != nil; p = p.AsBase().parent {
		if p == c {
			return CycleError{Child: c.AsBase().ID(), Parent: b.ID()}
		}
	}
	id := c.AsBase().ID()
	if id == "" {
		return nil
	}
	for _, peer := range b.facetsAndChildren() {
		if peer == c || peer == replacing {
			continue
		}
		if peer.AsBase().ID() == id {
			return DuplicateIDError{ID: id, Parent: b.ID()}
		}
	}
	return nil
}

func peerWithID(parent *Base, id string, except Component) bool {
	for _, peer := range parent.facetsAndChildren() {
		if peer != except && peer.AsBase().ID() == id {
			return true
		}
	}
	return false
}

func (b *Base) attach(c Component) {
	c.AsBase().parent = b.self
	c.AsBase().invalidateClientIDs()
}

func detach(c Component) {
	cb := c.AsBase()
	p := cb.parent
	if p == nil {
		return
	}
	pb := p.AsBase()
	if pb.RemoveChild(c) {
		return
	}
	for _, n := range pb.facetNames {
		if pb.facets[n] == c {
			pb.RemoveFacet(n)
			return
		}
	}
	cb.parent = nil
}

// visit calls fn for c and every descendant, facets before children.
// Returning false from fn prunes the subtree below that node.
func visit(c Component, fn func(Component) bool) {
	if !fn(c) {
		return
	}
	for _, kid := range c.AsBase().facetsAndChildren() {
		visit(kid, fn)
	}
}
