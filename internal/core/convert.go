package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Converter translates between submitted strings and model values.
type Converter interface {
	AsValue(rc *RequestContext, c Component, raw string) (any, error)
	AsString(rc *RequestContext, c Component, value any) (string, error)
}

// Validator checks a converted value. Returning a *ValidationError lets the
// validator choose the message shown to the user.
type Validator interface {
	Validate(rc *RequestContext, c Component, value any) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(rc *RequestContext, c Component, value any) error

func (f ValidatorFunc) Validate(rc *RequestContext, c Component, value any) error {
	return f(rc, c, value)
}

// ValidationError carries a user-facing conversion or validation message.
type ValidationError struct {
	Summary string
	Detail  string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Summary
	}
	return e.Summary + ": " + e.Detail
}

// IntConverter converts between decimal strings and int. Empty input converts
// to nil.
type IntConverter struct{}

func (IntConverter) AsValue(_ *RequestContext, _ Component, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &ValidationError{Summary: fmt.Sprintf("%q is not a whole number", raw)}
	}
	return n, nil
}

func (IntConverter) AsString(_ *RequestContext, _ Component, value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("IntConverter cannot format %T", value)
	}
}

// LengthValidator bounds the rune length of string values. Zero Max means no
// upper bound.
type LengthValidator struct {
	Min int
	Max int
}

func (v LengthValidator) Validate(_ *RequestContext, _ Component, value any) error {
	s, ok := value.(string)
	if !ok {
		s = fmt.Sprint(value)
	}
	n := utf8.RuneCountInString(s)
	if n < v.Min {
		return &ValidationError{Summary: fmt.Sprintf("must be at least %d characters", v.Min)}
	}
	if v.Max > 0 && n > v.Max {
		return &ValidationError{Summary: fmt.Sprintf("must be at most %d characters", v.Max)}
	}
	return nil
}

// ConvertSubmitted applies the converter of c, when it has one, to raw.
// Delegates without conversion rules of their own call it from
// ConvertedValue.
func ConvertSubmitted(rc *RequestContext, c Component, raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return raw, nil
	}
	if vh, ok := c.(ValueHolder); ok {
		if conv := vh.Converter(); conv != nil {
			return conv.AsValue(rc, c, s)
		}
	}
	return s, nil
}

// FormatValue renders the current value of c as a string using its converter.
func FormatValue(rc *RequestContext, c Component) string {
	vh, ok := c.(ValueHolder)
	if !ok {
		return ""
	}
	v := vh.Value(rc)
	if conv := vh.Converter(); conv != nil {
		s, err := conv.AsString(rc, c, v)
		if err != nil {
			rc.logger().Warn("value formatting failed", "component", c.AsBase().ID(), "err", err)
			return fmt.Sprint(v)
		}
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
