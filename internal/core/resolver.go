package core

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

// ExpressionResolver evaluates value bindings. Expressions are dotted paths,
// optionally wrapped in #{...}.
type ExpressionResolver interface {
	GetValue(rc *RequestContext, c Component, expr string) (any, error)
	SetValue(rc *RequestContext, c Component, expr string, value any) error
}

// MapResolver resolves the first path segment against the request scope and
// then Beans, and walks the remaining segments through maps and struct
// fields.
type MapResolver struct {
	Beans map[string]any
}

// NewMapResolver returns a resolver over beans.
func NewMapResolver(beans map[string]any) *MapResolver {
	if beans == nil {
		beans = map[string]any{}
	}
	return &MapResolver{Beans: beans}
}

func splitExpr(expr string) ([]string, error) {
	e := strings.TrimSpace(expr)
	if strings.HasPrefix(e, "#{") && strings.HasSuffix(e, "}") {
		e = strings.TrimSpace(e[2 : len(e)-1])
	}
	if e == "" {
		return nil, fmt.Errorf("empty expression %q: %w", expr, ErrInvalidArgument)
	}
	parts := strings.Split(e, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("malformed expression %q: %w", expr, ErrInvalidArgument)
		}
	}
	return parts, nil
}

func (r *MapResolver) root(rc *RequestContext, name string) (any, bool) {
	if s := rc.scope(); s != nil {
		if v, ok := s.Get(name); ok {
			return v, true
		}
	}
	v, ok := r.Beans[name]
	return v, ok
}

// GetValue implements ExpressionResolver. Unknown roots resolve to nil.
func (r *MapResolver) GetValue(rc *RequestContext, _ Component, expr string) (any, error) {
	parts, err := splitExpr(expr)
	if err != nil {
		return nil, err
	}
	cur, ok := r.root(rc, parts[0])
	if !ok {
		return nil, nil
	}
	for _, p := range parts[1:] {
		cur, err = readProperty(cur, p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", expr, err)
		}
	}
	return cur, nil
}

// SetValue implements ExpressionResolver.
func (r *MapResolver) SetValue(rc *RequestContext, _ Component, expr string, value any) error {
	parts, err := splitExpr(expr)
	if err != nil {
		return err
	}
	if len(parts) == 1 {
		if s := rc.scope(); s != nil {
			if _, ok := s.Get(parts[0]); ok {
				s.Set(parts[0], value)
				return nil
			}
		}
		r.Beans[parts[0]] = value
		return nil
	}
	cur, ok := r.root(rc, parts[0])
	if !ok {
		return fmt.Errorf("%s: unknown root %q", expr, parts[0])
	}
	for _, p := range parts[1 : len(parts)-1] {
		cur, err = readProperty(cur, p)
		if err != nil {
			return fmt.Errorf("%s: %w", expr, err)
		}
	}
	if err := setProperty(cur, parts[len(parts)-1], value); err != nil {
		return fmt.Errorf("%s: %w", expr, err)
	}
	return nil
}

func fieldName(name string) string {
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func readProperty(base any, name string) (any, error) {
	if base == nil {
		return nil, fmt.Errorf("property %q of nil", name)
	}
	v := reflect.ValueOf(base)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, fmt.Errorf("property %q of nil", name)
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map key type %s is not a string", v.Type().Key())
		}
		mv := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
		if !mv.IsValid() {
			return nil, nil
		}
		return mv.Interface(), nil
	case reflect.Struct:
		f := v.FieldByName(fieldName(name))
		if !f.IsValid() || !f.CanInterface() {
			return nil, fmt.Errorf("no property %q on %s", name, v.Type())
		}
		return f.Interface(), nil
	default:
		return nil, fmt.Errorf("cannot read %q from %s", name, v.Type())
	}
}

func setProperty(base any, name string, value any) error {
	if base == nil {
		return fmt.Errorf("property %q of nil", name)
	}
	v := reflect.ValueOf(base)
	if v.Kind() == reflect.Map {
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("map key type %s is not a string", v.Type().Key())
		}
		val, err := assignable(value, v.Type().Elem())
		if err != nil {
			return err
		}
		v.SetMapIndex(reflect.ValueOf(name).Convert(v.Type().Key()), val)
		return nil
	}
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("cannot assign %q on %T", name, base)
	}
	f := v.Elem().FieldByName(fieldName(name))
	if !f.IsValid() || !f.CanSet() {
		return fmt.Errorf("no settable property %q on %T", name, base)
	}
	val, err := assignable(value, f.Type())
	if err != nil {
		return err
	}
	f.Set(val)
	return nil
}

func assignable(value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if v.Type().ConvertibleTo(t) && v.Kind() != reflect.String && t.Kind() != reflect.String {
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot assign %T to %s", value, t)
}
