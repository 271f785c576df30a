package core

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"

	"viewcore/pkg/state"
)

// property is an accessor pair discovered on a component type: a getter
// named P taking no argument or a *RequestContext, and a setter SetP taking
// one value of the getter's result type.
type property struct {
	getter      int
	getterTakes bool
	setter      int
}

var propertyTables sync.Map // reflect.Type -> map[string]property

var (
	requestContextType = reflect.TypeOf((*RequestContext)(nil))
	errorType          = reflect.TypeOf((*error)(nil)).Elem()
)

func propertiesOf(c Component) map[string]property {
	t := reflect.TypeOf(c)
	if props, ok := propertyTables.Load(t); ok {
		return props.(map[string]property)
	}
	props, _ := propertyTables.LoadOrStore(t, buildProperties(t))
	return props.(map[string]property)
}

func buildProperties(t reflect.Type) map[string]property {
	props := make(map[string]property)
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !strings.HasPrefix(m.Name, "Set") || len(m.Name) == len("Set") {
			continue
		}
		st := m.Type
		if st.NumIn() != 2 || st.NumOut() > 1 || (st.NumOut() == 1 && st.Out(0) != errorType) {
			continue
		}
		g, ok := t.MethodByName(m.Name[len("Set"):])
		if !ok {
			continue
		}
		gt := g.Type
		if gt.NumOut() != 1 || gt.Out(0) != st.In(1) {
			continue
		}
		takes := false
		switch gt.NumIn() {
		case 1:
		case 2:
			if gt.In(1) != requestContextType {
				continue
			}
			takes = true
		default:
			continue
		}
		props[propertyName(g.Name)] = property{getter: g.Index, getterTakes: takes, setter: m.Index}
	}
	return props
}

// propertyName lowercases the leading upper-case run of a Go method name, so
// "ID" becomes "id" and "RendererType" becomes "rendererType".
func propertyName(name string) string {
	r := []rune(name)
	n := 0
	for n < len(r) && unicode.IsUpper(r[n]) {
		n++
	}
	if n > 1 && n < len(r) {
		n--
	}
	for i := 0; i < n; i++ {
		r[i] = unicode.ToLower(r[i])
	}
	return string(r)
}

// GetAttribute returns a named attribute. Properties of the component type
// are read through their getter; other names come from the attribute map or,
// when absent there, from a binding of the same name.
func (b *Base) GetAttribute(rc *RequestContext, name string) any {
	if p, ok := propertiesOf(b.self)[name]; ok {
		recv := reflect.ValueOf(b.self)
		var args []reflect.Value
		if p.getterTakes {
			args = []reflect.Value{reflect.ValueOf(rc)}
		}
		return recv.Method(p.getter).Call(args)[0].Interface()
	}
	if attrs := b.attributes(false); attrs != nil {
		if v, ok := attrs.Lookup(name); ok {
			return v
		}
	}
	if expr, ok := b.ValueBinding(name); ok {
		v, _ := b.resolve(rc, expr)
		return v
	}
	return nil
}

// SetAttribute stores a named attribute, routing property names to their
// setter.
func (b *Base) SetAttribute(name string, value any) error {
	if name == "" {
		return fmt.Errorf("empty attribute name: %w", ErrInvalidArgument)
	}
	if p, ok := propertiesOf(b.self)[name]; ok {
		m := reflect.ValueOf(b.self).Method(p.setter)
		arg, err := assignable(value, m.Type().In(0))
		if err != nil {
			return fmt.Errorf("attribute %q: %v: %w", name, err, ErrInvalidArgument)
		}
		out := m.Call([]reflect.Value{arg})
		if len(out) == 1 && !out[0].IsNil() {
			return out[0].Interface().(error)
		}
		return nil
	}
	b.attributes(true).Put(name, value)
	return nil
}

// RemoveAttribute deletes a plain attribute and returns its previous value.
// Properties cannot be removed. Bindings are not consulted.
func (b *Base) RemoveAttribute(name string) (any, error) {
	if _, ok := propertiesOf(b.self)[name]; ok {
		return nil, fmt.Errorf("attribute %q is a property and cannot be removed: %w", name, ErrInvalidArgument)
	}
	attrs := b.attributes(false)
	if attrs == nil {
		return nil, nil
	}
	return attrs.Remove(name), nil
}

// AttributeNames returns the names of plain attributes in insertion order.
func (b *Base) AttributeNames() []string {
	if attrs := b.attributes(false); attrs != nil {
		return attrs.Keys()
	}
	return nil
}

// PropertyNames lists the properties discovered on the component type.
func (b *Base) PropertyNames() []string {
	props := propertiesOf(b.self)
	out := make([]string, 0, len(props))
	for name := range props {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (b *Base) attributes(create bool) *state.Helper {
	return b.nested(keyAttributes, create)
}

func (b *Base) nested(key string, create bool) *state.Helper {
	if h, ok := b.helper.Get(key).(*state.Helper); ok {
		return h
	}
	if !create {
		return nil
	}
	h := state.NewHelper()
	b.helper.Put(key, h)
	return h
}

// SetValueBinding binds slot to an expression evaluated through the request
// resolver whenever the slot has no local value.
func (b *Base) SetValueBinding(slot, expr string) {
	b.nested(keyBindings, true).Put(slot, expr)
}

// ValueBinding returns the expression bound to slot.
func (b *Base) ValueBinding(slot string) (string, bool) {
	bindings := b.nested(keyBindings, false)
	if bindings == nil {
		return "", false
	}
	expr, ok := bindings.Get(slot).(string)
	return expr, ok
}

// RemoveValueBinding unbinds slot.
func (b *Base) RemoveValueBinding(slot string) {
	if bindings := b.nested(keyBindings, false); bindings != nil {
		bindings.Remove(slot)
	}
}
