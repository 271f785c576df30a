package core

import (
	"reflect"

	"viewcore/pkg/domain"
)

// Component families.
const (
	FamilyViewRoot = "viewcore.ViewRoot"
	FamilyOutput   = "viewcore.Output"
	FamilyInput    = "viewcore.Input"
	FamilyCommand  = "viewcore.Command"
	FamilyForm     = "viewcore.Form"
	FamilyPanel    = "viewcore.Panel"
	FamilySubview  = "viewcore.Subview"
	FamilyData     = "viewcore.Data"
	FamilyColumn   = "viewcore.Column"
)

// Renderer types of the basic render kit.
const (
	RendererText   = "viewcore.Text"
	RendererInput  = "viewcore.InputText"
	RendererButton = "viewcore.Button"
	RendererForm   = "viewcore.Form"
	RendererGroup  = "viewcore.Group"
	RendererTable  = "viewcore.Table"
)

const (
	keyValue           = "value"
	keyLocalValueSet   = "localValueSet"
	keyValid           = "valid"
	keyRequired        = "required"
	keyRequiredMessage = "requiredMessage"
	keyImmediate       = "immediate"
)

// ValueHolder is implemented by kinds that display a value.
type ValueHolder interface {
	Component
	LocalValue() any
	Value(rc *RequestContext) any
	SetValue(v any)
	Converter() Converter
	SetConverter(conv Converter)
}

// EditableValueHolder is implemented by kinds that accept submitted values.
type EditableValueHolder interface {
	ValueHolder
	SubmittedValue() any
	SetSubmittedValue(v any)
	Valid() bool
	SetValid(valid bool)
	Immediate() bool
	Validate(rc *RequestContext) error
	UpdateModel(rc *RequestContext) error
}

// ActionSource is implemented by kinds that queue action events.
type ActionSource interface {
	Component
	Immediate() bool
	Activate(rc *RequestContext)
}

// RowStateful is implemented by kinds whose per-row state a data iterator
// keeps while it moves between rows.
type RowStateful interface {
	Component
	SaveRowState() any
	RestoreRowState(s any)
}

// Output displays a value.
type Output struct {
	Base
	converter Converter
}

// NewOutput returns an output rendered as text.
func NewOutput() *Output {
	o := &Output{}
	o.init(o, FamilyOutput, RendererText)
	return o
}

func (o *Output) LocalValue() any { return o.helper.Get(keyValue) }

// Value returns the local value or, when none is set, the "value" binding.
func (o *Output) Value(rc *RequestContext) any {
	v, _ := o.eval(rc, keyValue)
	return v
}

func (o *Output) SetValue(v any)              { o.helper.Put(keyValue, v) }
func (o *Output) Converter() Converter        { return o.converter }
func (o *Output) SetConverter(conv Converter) { o.converter = conv }

// Input accepts a submitted value, converts and validates it, and pushes it
// into the model bound to its "value" slot.
type Input struct {
	Base
	converter  Converter
	validators []Validator
	submitted  any
}

// NewInput returns a text input.
func NewInput() *Input {
	in := &Input{}
	in.init(in, FamilyInput, RendererInput)
	return in
}

func (in *Input) LocalValue() any { return in.helper.Get(keyValue) }

// Value returns the local value when one is set, otherwise the bound value.
func (in *Input) Value(rc *RequestContext) any {
	if in.LocalValueSet() {
		return in.helper.Get(keyValue)
	}
	v, _ := in.eval(rc, keyValue)
	return v
}

func (in *Input) SetValue(v any) {
	in.helper.Put(keyValue, v)
	in.helper.Put(keyLocalValueSet, true)
}

func (in *Input) Converter() Converter        { return in.converter }
func (in *Input) SetConverter(conv Converter) { in.converter = conv }

// AddValidator appends v; validators are structural and not saved.
func (in *Input) AddValidator(v Validator) { in.validators = append(in.validators, v) }

func (in *Input) SubmittedValue() any       { return in.submitted }
func (in *Input) SetSubmittedValue(v any)   { in.submitted = v }
func (in *Input) LocalValueSet() bool       { return in.boolProp(keyLocalValueSet) }
func (in *Input) SetLocalValueSet(set bool) { in.helper.Put(keyLocalValueSet, set) }

// Valid reports whether the last conversion and validation succeeded.
func (in *Input) Valid() bool {
	if v, ok := in.helper.Get(keyValid).(bool); ok {
		return v
	}
	return true
}

func (in *Input) SetValid(valid bool)           { in.helper.Put(keyValid, valid) }
func (in *Input) Required() bool                { return in.boolProp(keyRequired) }
func (in *Input) SetRequired(required bool)     { in.helper.Put(keyRequired, required) }
func (in *Input) RequiredMessage() string       { return in.stringProp(keyRequiredMessage) }
func (in *Input) SetRequiredMessage(msg string) { in.helper.Put(keyRequiredMessage, msg) }
func (in *Input) Immediate() bool               { return in.boolProp(keyImmediate) }
func (in *Input) SetImmediate(immediate bool)   { in.helper.Put(keyImmediate, immediate) }

// ResetValue discards the submitted and local values.
func (in *Input) ResetValue() {
	in.submitted = nil
	in.helper.Remove(keyValue)
	in.helper.Remove(keyLocalValueSet)
	in.helper.Remove(keyValid)
}

// ProcessDecodes decodes the input and, for immediate inputs, validates it
// right away.
func (in *Input) ProcessDecodes(rc *RequestContext) error {
	if !in.Rendered(rc) {
		return nil
	}
	if err := in.Base.ProcessDecodes(rc); err != nil {
		return err
	}
	if in.Immediate() {
		return in.executeValidate(rc)
	}
	return nil
}

// ProcessValidators validates children, then the input unless it was
// already validated as immediate.
func (in *Input) ProcessValidators(rc *RequestContext) error {
	if !in.Rendered(rc) {
		return nil
	}
	if err := in.Base.ProcessValidators(rc); err != nil {
		return err
	}
	if !in.Immediate() {
		return in.executeValidate(rc)
	}
	return nil
}

// ProcessUpdates pushes the local value into the model.
func (in *Input) ProcessUpdates(rc *RequestContext) error {
	if !in.Rendered(rc) {
		return nil
	}
	if err := in.Base.ProcessUpdates(rc); err != nil {
		return err
	}
	if err := guard(rc, in, func() error { return in.UpdateModel(rc) }); err != nil {
		return err
	}
	if !in.Valid() {
		rc.RenderResponse()
	}
	return nil
}

func (in *Input) executeValidate(rc *RequestContext) error {
	if err := guard(rc, in, func() error { return in.Validate(rc) }); err != nil {
		in.SetValid(false)
		return err
	}
	if !in.Valid() {
		rc.MarkValidationFailed()
		rc.RenderResponse()
	}
	return nil
}

// Validate converts and validates the submitted value. On success the value
// becomes the local value and a ValueChangeEvent is queued if it differs from
// the previous one. Failures are reported as messages, not errors.
func (in *Input) Validate(rc *RequestContext) error {
	raw := in.submitted
	if raw == nil {
		return nil
	}
	if !in.Valid() {
		in.helper.Remove(keyValid)
	}
	var (
		value any
		err   error
	)
	if d := rc.delegateFor(in); d != nil {
		value, err = d.ConvertedValue(rc, in, raw)
	} else {
		value, err = ConvertSubmitted(rc, in, raw)
	}
	if err != nil {
		in.fail(rc, err)
		return nil
	}
	in.validateValue(rc, value)
	if !in.Valid() {
		return nil
	}
	prev := in.Value(rc)
	in.SetValue(value)
	in.submitted = nil
	if !reflect.DeepEqual(prev, value) {
		in.QueueEvent(rc, NewValueChangeEvent(in, prev, value))
	}
	return nil
}

func (in *Input) validateValue(rc *RequestContext, value any) {
	if isEmpty(value) {
		if in.Required() {
			msg := in.RequiredMessage()
			if msg == "" {
				msg = "value is required"
			}
			in.SetValid(false)
			rc.AddMessage(in.ClientID(rc), domain.SeverityError, msg, "")
		}
		return
	}
	for _, v := range in.validators {
		if err := v.Validate(rc, in, value); err != nil {
			in.fail(rc, err)
			return
		}
	}
}

func (in *Input) fail(rc *RequestContext, err error) {
	in.SetValid(false)
	summary, detail := err.Error(), ""
	if ve, ok := err.(*ValidationError); ok {
		summary, detail = ve.Summary, ve.Detail
	}
	rc.AddMessage(in.ClientID(rc), domain.SeverityError, summary, detail)
}

// UpdateModel writes a valid local value through the "value" binding and
// clears it. Resolver failures mark the input invalid with a message.
func (in *Input) UpdateModel(rc *RequestContext) error {
	if !in.Valid() || !in.LocalValueSet() {
		return nil
	}
	expr, ok := in.ValueBinding(keyValue)
	if !ok || rc.Resolver == nil {
		return nil
	}
	if err := rc.Resolver.SetValue(rc, in, expr, in.LocalValue()); err != nil {
		in.SetValid(false)
		rc.AddMessage(in.ClientID(rc), domain.SeverityError, "model update failed", err.Error())
		return nil
	}
	in.helper.Remove(keyValue)
	in.helper.Remove(keyLocalValueSet)
	return nil
}

// InputRowState is the per-row state of an Input.
type InputRowState struct {
	Value         any
	LocalValueSet bool
	Valid         bool
	Submitted     any
}

func (in *Input) SaveRowState() any {
	return InputRowState{
		Value:         in.helper.Get(keyValue),
		LocalValueSet: in.LocalValueSet(),
		Valid:         in.Valid(),
		Submitted:     in.submitted,
	}
}

func (in *Input) RestoreRowState(s any) {
	rs, _ := s.(InputRowState)
	if rs.Value == nil {
		in.helper.Remove(keyValue)
	} else {
		in.helper.Put(keyValue, rs.Value)
	}
	if rs.LocalValueSet {
		in.helper.Put(keyLocalValueSet, true)
	} else {
		in.helper.Remove(keyLocalValueSet)
	}
	if rs.Valid {
		in.helper.Remove(keyValid)
	} else {
		in.helper.Put(keyValid, false)
	}
	in.submitted = rs.Submitted
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	}
	return false
}

// Command queues an ActionEvent when activated. Immediate commands fire
// during Decode; others during InvokeApplication.
type Command struct {
	Base
	action func(rc *RequestContext) error
}

// NewCommand returns a button.
func NewCommand() *Command {
	c := &Command{}
	c.init(c, FamilyCommand, RendererButton)
	return c
}

func (c *Command) Immediate() bool             { return c.boolProp(keyImmediate) }
func (c *Command) SetImmediate(immediate bool) { c.helper.Put(keyImmediate, immediate) }

// SetAction installs the application action run after the listeners. Like
// listeners it is structural.
func (c *Command) SetAction(action func(rc *RequestContext) error) { c.action = action }

// Activate queues an action event for this command.
func (c *Command) Activate(rc *RequestContext) {
	evt := NewActionEvent(c)
	if c.Immediate() {
		evt.SetPhase(domain.PhaseDecode)
	}
	c.QueueEvent(rc, evt)
}

// Broadcast delivers evt to the listeners and then runs the action.
func (c *Command) Broadcast(rc *RequestContext, evt Event) (Outcome, error) {
	out, err := c.Base.Broadcast(rc, evt)
	if err != nil || out == OutcomeAbort {
		return out, err
	}
	if _, ok := evt.(*ActionEvent); ok && c.action != nil {
		return deliver(rc, []Listener{ListenerFunc(func(rc *RequestContext, _ Event) error { return c.action(rc) })}, evt)
	}
	return out, nil
}

// Form is a naming container whose children are processed only when the
// form itself was submitted.
type Form struct {
	Base
	submitted bool
}

// NewForm returns a form.
func NewForm() *Form {
	f := &Form{}
	f.init(f, FamilyForm, RendererForm)
	return f
}

func (f *Form) ContainerClientID(rc *RequestContext) string { return f.ClientID(rc) }

func (f *Form) Submitted() bool             { return f.submitted }
func (f *Form) SetSubmitted(submitted bool) { f.submitted = submitted }

// ProcessDecodes decodes the form first to learn whether it was submitted.
func (f *Form) ProcessDecodes(rc *RequestContext) error {
	if !f.Rendered(rc) {
		return nil
	}
	f.submitted = false
	if err := guard(rc, f, func() error { return f.Decode(rc) }); err != nil {
		return err
	}
	if !f.submitted {
		return nil
	}
	for _, kid := range f.facetsAndChildren() {
		if err := kid.ProcessDecodes(rc); err != nil {
			return err
		}
	}
	return nil
}

func (f *Form) ProcessValidators(rc *RequestContext) error {
	if !f.submitted {
		return nil
	}
	return f.Base.ProcessValidators(rc)
}

func (f *Form) ProcessUpdates(rc *RequestContext) error {
	if !f.submitted {
		return nil
	}
	return f.Base.ProcessUpdates(rc)
}

// FormRowState is the per-row state of a Form.
type FormRowState struct {
	Submitted bool
}

func (f *Form) SaveRowState() any { return FormRowState{Submitted: f.submitted} }

func (f *Form) RestoreRowState(s any) {
	rs, _ := s.(FormRowState)
	f.submitted = rs.Submitted
}

// Panel groups children without opening a naming scope.
type Panel struct {
	Base
}

// NewPanel returns a panel.
func NewPanel() *Panel {
	p := &Panel{}
	p.init(p, FamilyPanel, RendererGroup)
	return p
}

// Subview groups children under its own naming scope.
type Subview struct {
	Base
}

// NewSubview returns a naming container without a renderer.
func NewSubview() *Subview {
	s := &Subview{}
	s.init(s, FamilySubview, "")
	return s
}

func (s *Subview) ContainerClientID(rc *RequestContext) string { return s.ClientID(rc) }

// Column groups the per-row children of a Data. Its facets (header and
// footer) are processed once, not per row.
type Column struct {
	Base
}

// NewColumn returns a column.
func NewColumn() *Column {
	c := &Column{}
	c.init(c, FamilyColumn, "")
	return c
}

var (
	_ ValueHolder         = (*Output)(nil)
	_ EditableValueHolder = (*Input)(nil)
	_ RowStateful         = (*Input)(nil)
	_ RowStateful         = (*Form)(nil)
	_ ActionSource        = (*Command)(nil)
	_ NamingContainer     = (*Form)(nil)
	_ NamingContainer     = (*Subview)(nil)
	_ NamingContainer     = (*Data)(nil)
)
