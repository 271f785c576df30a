package core

import (
	"fmt"
	"strconv"
)

// NewBasicRenderKit returns a kit that renders a plain-text outline of the
// tree, one line per component, and decodes submitted parameters keyed by
// client id.
func NewBasicRenderKit() *RenderKit {
	k := NewRenderKit()
	k.Register(FamilyOutput, RendererText, textDelegate{})
	k.Register(FamilyInput, RendererInput, inputDelegate{})
	k.Register(FamilyCommand, RendererButton, buttonDelegate{})
	k.Register(FamilyForm, RendererForm, blockDelegate{tag: "form"})
	k.Register(FamilyPanel, RendererGroup, blockDelegate{tag: "group"})
	k.Register(FamilyData, RendererTable, tableDelegate{})
	return k
}

type textDelegate struct{ BaseDelegate }

func (textDelegate) EncodeEnd(rc *RequestContext, c Component) error {
	_, err := fmt.Fprintf(rc.writer(), "text %s %s\n", c.AsBase().ClientID(rc), strconv.Quote(FormatValue(rc, c)))
	return err
}

type inputDelegate struct{ BaseDelegate }

func (inputDelegate) Decode(rc *RequestContext, c Component) error {
	in, ok := c.(EditableValueHolder)
	if !ok {
		return fmt.Errorf("input renderer used for %T", c)
	}
	if v, ok := rc.Param(c.AsBase().ClientID(rc)); ok {
		in.SetSubmittedValue(v)
	}
	return nil
}

func (inputDelegate) EncodeEnd(rc *RequestContext, c Component) error {
	cid := c.AsBase().ClientID(rc)
	shown := FormatValue(rc, c)
	valid := true
	if in, ok := c.(EditableValueHolder); ok {
		if s, ok := in.SubmittedValue().(string); ok {
			shown = s
		}
		valid = in.Valid()
	}
	line := fmt.Sprintf("input %s %s", cid, strconv.Quote(shown))
	if !valid {
		line += " invalid"
	}
	w := rc.writer()
	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}
	for _, m := range rc.MessagesFor(cid) {
		if _, err := fmt.Fprintf(w, "message %s\n", m); err != nil {
			return err
		}
	}
	return nil
}

type buttonDelegate struct{ BaseDelegate }

func (buttonDelegate) Decode(rc *RequestContext, c Component) error {
	src, ok := c.(ActionSource)
	if !ok {
		return fmt.Errorf("button renderer used for %T", c)
	}
	if _, ok := rc.Param(c.AsBase().ClientID(rc)); ok {
		src.Activate(rc)
	}
	return nil
}

func (buttonDelegate) EncodeEnd(rc *RequestContext, c Component) error {
	_, err := fmt.Fprintf(rc.writer(), "button %s\n", c.AsBase().ClientID(rc))
	return err
}

type blockDelegate struct {
	BaseDelegate
	tag string
}

func (d blockDelegate) Decode(rc *RequestContext, c Component) error {
	f, ok := c.(*Form)
	if !ok {
		return nil
	}
	if _, ok := rc.Param(c.AsBase().ClientID(rc)); ok {
		f.SetSubmitted(true)
	}
	return nil
}

func (d blockDelegate) EncodeBegin(rc *RequestContext, c Component) error {
	_, err := fmt.Fprintf(rc.writer(), "%s %s {\n", d.tag, c.AsBase().ClientID(rc))
	return err
}

func (d blockDelegate) EncodeEnd(rc *RequestContext, _ Component) error {
	_, err := fmt.Fprintln(rc.writer(), "}")
	return err
}

type tableDelegate struct{ BaseDelegate }

func (tableDelegate) EncodeBegin(rc *RequestContext, c Component) error {
	rows := 0
	if d, ok := c.(*Data); ok {
		rows = d.RowCount(rc)
	}
	_, err := fmt.Fprintf(rc.writer(), "table %s rows=%d {\n", c.AsBase().ClientID(rc), rows)
	return err
}

func (tableDelegate) EncodeEnd(rc *RequestContext, _ Component) error {
	_, err := fmt.Fprintln(rc.writer(), "}")
	return err
}
