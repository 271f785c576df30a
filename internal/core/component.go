// Package core implements the server-side component tree: naming scopes,
// incremental state saving of whole trees, row virtualization in data
// iterators and the request processing lifecycle.
package core

import (
	"viewcore/pkg/state"
)

// Component is implemented by every node kind. Concrete kinds embed Base and
// override the hooks whose behavior differs.
type Component interface {
	AsBase() *Base

	ProcessDecodes(rc *RequestContext) error
	ProcessValidators(rc *RequestContext) error
	ProcessUpdates(rc *RequestContext) error

	Decode(rc *RequestContext) error
	EncodeBegin(rc *RequestContext) error
	EncodeChildren(rc *RequestContext) error
	EncodeEnd(rc *RequestContext) error

	QueueEvent(rc *RequestContext, evt Event)
	Broadcast(rc *RequestContext, evt Event) (Outcome, error)

	SaveState() (any, error)
	RestoreState(snapshot any) error
}

// Helper keys shared by every kind.
const (
	keyID           = "id"
	keyRendered     = "rendered"
	keyRendererType = "rendererType"
	keyAttributes   = "attributes"
	keyBindings     = "bindings"
	keyIDSeq        = "idSeq"
)

// Base carries the structure and state common to every node. It is only
// usable embedded in a kind that called init.
type Base struct {
	self     Component
	family   string
	parent   Component
	children []Component

	facetNames []string
	facets     map[string]Component

	helper    *state.Helper
	clientID  string
	transient bool
	listeners []Listener

	warnedGeneratedID bool
}

func (b *Base) init(self Component, family, rendererType string) {
	b.self = self
	b.family = family
	b.helper = state.NewHelper()
	if rendererType != "" {
		b.helper.Put(keyRendererType, rendererType)
	}
}

// AsBase implements Component.
func (b *Base) AsBase() *Base { return b }

// Self returns the component embedding b.
func (b *Base) Self() Component { return b.self }

// Family returns the immutable kind family used to pick render delegates.
func (b *Base) Family() string { return b.family }

// StateHelper exposes the component's state map to kinds defined outside
// this package.
func (b *Base) StateHelper() *state.Helper { return b.helper }

// ID returns the explicit or generated id, or "" if none was assigned yet.
func (b *Base) ID() string {
	id, _ := b.helper.Get(keyID).(string)
	return id
}

// SetID assigns an id after checking its syntax and uniqueness among the
// parent's children and facets.
func (b *Base) SetID(id string) error {
	if !idPattern.MatchString(id) {
		return InvalidIDError{ID: id}
	}
	if b.parent != nil {
		if clash := peerWithID(b.parent.AsBase(), id, b.self); clash {
			return DuplicateIDError{ID: id, Parent: b.parent.AsBase().ID()}
		}
	}
	b.helper.Put(keyID, id)
	b.invalidateClientIDs()
	return nil
}

// RendererType returns the delegate key within the family.
func (b *Base) RendererType() string {
	rt, _ := b.helper.Get(keyRendererType).(string)
	return rt
}

func (b *Base) SetRendererType(rt string) {
	if rt == "" {
		b.helper.Remove(keyRendererType)
		return
	}
	b.helper.Put(keyRendererType, rt)
}

// Rendered reports whether the component takes part in processing. A local
// value wins over a "rendered" binding; the default is true.
func (b *Base) Rendered(rc *RequestContext) bool {
	if v, ok := b.eval(rc, keyRendered); ok {
		if r, ok := v.(bool); ok {
			return r
		}
	}
	return true
}

func (b *Base) SetRendered(rendered bool) { b.helper.Put(keyRendered, rendered) }

// Transient components and their subtrees are skipped by state saving.
func (b *Base) Transient() bool { return b.transient }

func (b *Base) SetTransient(transient bool) { b.transient = transient }

// AddListener attaches l to the component. Listeners are structural: the
// view builder attaches them again on every request.
func (b *Base) AddListener(l Listener) { b.listeners = append(b.listeners, l) }

// Listeners returns the attached listeners in order.
func (b *Base) Listeners() []Listener { return append([]Listener(nil), b.listeners...) }

// Parent returns the enclosing component, or nil for a detached node or root.
func (b *Base) Parent() Component { return b.parent }

// Root returns the topmost ancestor, which is the component itself when it
// has no parent.
func (b *Base) Root() Component {
	c := b.self
	for c.AsBase().parent != nil {
		c = c.AsBase().parent
	}
	return c
}

// ViewRoot returns the enclosing view root, or nil when the tree is not
// rooted in one.
func (b *Base) ViewRoot() *ViewRoot {
	vr, _ := b.Root().(*ViewRoot)
	return vr
}

// --- default lifecycle hooks ---

// ProcessDecodes decodes facets and children, then the component itself.
func (b *Base) ProcessDecodes(rc *RequestContext) error {
	if !b.Rendered(rc) {
		return nil
	}
	for _, kid := range b.facetsAndChildren() {
		if err := kid.ProcessDecodes(rc); err != nil {
			return err
		}
	}
	return guard(rc, b.self, func() error { return b.self.Decode(rc) })
}

// ProcessValidators validates facets and children.
func (b *Base) ProcessValidators(rc *RequestContext) error {
	if !b.Rendered(rc) {
		return nil
	}
	for _, kid := range b.facetsAndChildren() {
		if err := kid.ProcessValidators(rc); err != nil {
			return err
		}
	}
	return nil
}

// ProcessUpdates pushes facet and child values into the model.
func (b *Base) ProcessUpdates(rc *RequestContext) error {
	if !b.Rendered(rc) {
		return nil
	}
	for _, kid := range b.facetsAndChildren() {
		if err := kid.ProcessUpdates(rc); err != nil {
			return err
		}
	}
	return nil
}

// Decode hands the request to the render delegate, if one is registered.
func (b *Base) Decode(rc *RequestContext) error {
	if d := rc.delegateFor(b.self); d != nil {
		return d.Decode(rc, b.self)
	}
	return nil
}

func (b *Base) EncodeBegin(rc *RequestContext) error {
	if d := rc.delegateFor(b.self); d != nil {
		return d.EncodeBegin(rc, b.self)
	}
	return nil
}

func (b *Base) EncodeChildren(rc *RequestContext) error {
	if d := rc.delegateFor(b.self); d != nil {
		return d.EncodeChildren(rc, b.self)
	}
	return nil
}

func (b *Base) EncodeEnd(rc *RequestContext) error {
	if d := rc.delegateFor(b.self); d != nil {
		return d.EncodeEnd(rc, b.self)
	}
	return nil
}

// RendersChildren reports whether the delegate encodes the children itself.
func (b *Base) RendersChildren(rc *RequestContext) bool {
	if d := rc.delegateFor(b.self); d != nil {
		return d.RendersChildren()
	}
	return false
}

// QueueEvent passes evt up to the parent; the view root owns the queue.
func (b *Base) QueueEvent(rc *RequestContext, evt Event) {
	if b.parent == nil {
		rc.logger().Warn("event dropped: component is not attached to a view root", "component", b.ID())
		return
	}
	b.parent.QueueEvent(rc, evt)
}

// Broadcast delivers evt to the attached listeners.
func (b *Base) Broadcast(rc *RequestContext, evt Event) (Outcome, error) {
	return deliver(rc, b.listeners, evt)
}

// SaveState returns the snapshot of the component's own state map.
func (b *Base) SaveState() (any, error) {
	return b.helper.SaveState()
}

// RestoreState merges snapshot into the component's state map.
func (b *Base) RestoreState(snapshot any) error {
	if err := b.helper.RestoreState(snapshot); err != nil {
		return err
	}
	b.invalidateClientIDs()
	return nil
}

// eval returns the local value stored under key or, failing that, the value
// of the binding registered for key.
func (b *Base) eval(rc *RequestContext, key string) (any, bool) {
	if v, ok := b.helper.Lookup(key); ok {
		return v, true
	}
	expr, ok := b.ValueBinding(key)
	if !ok {
		return nil, false
	}
	return b.resolve(rc, expr)
}

func (b *Base) resolve(rc *RequestContext, expr string) (any, bool) {
	if rc == nil || rc.Resolver == nil {
		return nil, false
	}
	v, err := rc.Resolver.GetValue(rc, b.self, expr)
	if err != nil {
		rc.logger().Warn("value binding failed", "component", b.ID(), "expr", expr, "err", err)
		return nil, false
	}
	return v, true
}

func (b *Base) boolProp(key string) bool {
	v, _ := b.helper.Get(key).(bool)
	return v
}

func (b *Base) intProp(key string) int {
	v, _ := b.helper.Get(key).(int)
	return v
}

func (b *Base) stringProp(key string) string {
	v, _ := b.helper.Get(key).(string)
	return v
}
