package core

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"viewcore/pkg/domain"
	"viewcore/pkg/state"
)

const (
	keyFirst = "first"
	keyRows  = "rows"
	keyVar   = "var"
)

// rowKey identifies one row of one Data instance: scope is the client id of
// the Data's parent when the row was visited, so an enclosing iterator's rows
// keep separate entries.
type rowKey struct {
	scope string
	row   int
}

// rowStates maps descendant paths to their saved row state.
type rowStates map[string]any

// Data renders a fixed set of children once per row of a dataset, saving and
// restoring the row-variable state of the children as it moves between rows.
type Data struct {
	Base

	rowIndex   int
	model      DataModel
	modelScope string
	template   rowStates
	saved      map[string]map[int]rowStates
	dropRows   bool
}

// NewData returns a table.
func NewData() *Data {
	d := &Data{rowIndex: -1}
	d.init(d, FamilyData, RendererTable)
	return d
}

func (d *Data) First() int         { return d.intProp(keyFirst) }
func (d *Data) SetFirst(first int) { d.helper.Put(keyFirst, first) }

// Rows is the page size; zero iterates every available row.
func (d *Data) Rows() int        { return d.intProp(keyRows) }
func (d *Data) SetRows(rows int) { d.helper.Put(keyRows, rows) }

// Var names the request-scope variable holding the current row's data.
func (d *Data) Var() string     { return d.stringProp(keyVar) }
func (d *Data) SetVar(v string) { d.helper.Put(keyVar, v) }

// Value returns the local dataset or, when none is set, the "value" binding.
func (d *Data) Value(rc *RequestContext) any {
	v, _ := d.eval(rc, keyValue)
	return v
}

// SetValue installs a local dataset and drops the current model.
func (d *Data) SetValue(v any) {
	d.helper.Put(keyValue, v)
	d.model = nil
}

// DataModel returns the model over the current dataset, fetching it on first
// use and again whenever an enclosing iterator has moved to another row.
func (d *Data) DataModel(rc *RequestContext) DataModel {
	scope := d.scopeID(rc)
	if d.model == nil || d.modelScope != scope {
		d.model = modelFor(d.Value(rc))
		d.modelScope = scope
	}
	return d.model
}

// RowIndex returns the current row, or -1 when the iterator is parked.
func (d *Data) RowIndex() int { return d.rowIndex }

func (d *Data) RowCount(rc *RequestContext) int { return d.DataModel(rc).RowCount() }

func (d *Data) RowAvailable(rc *RequestContext) bool { return d.DataModel(rc).RowAvailable() }

func (d *Data) RowData(rc *RequestContext) any { return d.DataModel(rc).RowData() }

// ContainerClientID qualifies descendant client ids with the current row.
func (d *Data) ContainerClientID(rc *RequestContext) string {
	cid := d.ClientID(rc)
	if d.rowIndex < 0 {
		return cid
	}
	return cid + Separator + strconv.Itoa(d.rowIndex)
}

func (d *Data) scopeID(rc *RequestContext) string {
	if d.parent == nil {
		return ""
	}
	return d.parent.AsBase().ClientID(rc)
}

// SetRowIndex moves the iterator to row index, or parks it with -1. The
// outgoing row's state is saved; the incoming row gets its saved state, or
// the clean template when it was never visited.
func (d *Data) SetRowIndex(rc *RequestContext, index int) error {
	if index < -1 {
		return RowIndexError{Index: index}
	}
	if index == d.rowIndex {
		return nil
	}
	if d.template == nil {
		d.template = d.captureRow(rc)
	}
	scope := d.scopeID(rc)
	if d.rowIndex >= 0 && d.DataModel(rc).RowAvailable() {
		d.storeRow(rowKey{scope: scope, row: d.rowIndex}, d.captureRow(rc))
	}
	d.rowIndex = index
	model := d.DataModel(rc)
	model.SetRowIndex(index)
	d.invalidateDescendantClientIDs()

	name := d.Var()
	sc := rc.scope()
	if index == -1 {
		d.restoreRow(rc, d.template)
		if name != "" && sc != nil {
			sc.Delete(name)
		}
		return nil
	}
	if name != "" && sc != nil {
		if model.RowAvailable() {
			sc.Set(name, model.RowData())
		} else {
			sc.Delete(name)
		}
	}
	if saved, ok := d.lookupRow(rowKey{scope: scope, row: index}); ok {
		d.restoreRow(rc, saved)
	} else {
		d.restoreRow(rc, d.template)
	}
	return nil
}

func (d *Data) storeRow(k rowKey, rs rowStates) {
	if d.saved == nil {
		d.saved = make(map[string]map[int]rowStates)
	}
	part := d.saved[k.scope]
	if part == nil {
		part = make(map[int]rowStates)
		d.saved[k.scope] = part
	}
	part[k.row] = rs
}

func (d *Data) lookupRow(k rowKey) (rowStates, bool) {
	rs, ok := d.saved[k.scope][k.row]
	return rs, ok
}

// clearPartition forgets every saved row of one scope.
func (d *Data) clearPartition(scope string) { delete(d.saved, scope) }

// walkRowStateful calls fn for every RowStateful below the iterator's
// children, keyed by the id path relative to the iterator. The subtrees of
// nested iterators are left to those iterators.
func (d *Data) walkRowStateful(rc *RequestContext, fn func(path string, rs RowStateful)) {
	var walk func(c Component, prefix string)
	walk = func(c Component, prefix string) {
		b := c.AsBase()
		path := b.ensureID(rc)
		if prefix != "" {
			path = prefix + Separator + path
		}
		if rs, ok := c.(RowStateful); ok {
			fn(path, rs)
		}
		if _, nested := c.(*Data); nested {
			return
		}
		for _, kid := range b.facetsAndChildren() {
			walk(kid, path)
		}
	}
	for _, kid := range d.children {
		walk(kid, "")
	}
}

func (d *Data) captureRow(rc *RequestContext) rowStates {
	out := rowStates{}
	d.walkRowStateful(rc, func(path string, rs RowStateful) {
		out[path] = rs.SaveRowState()
	})
	return out
}

func (d *Data) restoreRow(rc *RequestContext, states rowStates) {
	d.walkRowStateful(rc, func(path string, rs RowStateful) {
		if s, ok := states[path]; ok {
			rs.RestoreRowState(s)
			return
		}
		if s, ok := d.template[path]; ok {
			rs.RestoreRowState(s)
		}
	})
}

// --- lifecycle ---

func (d *Data) ProcessDecodes(rc *RequestContext) error {
	if !d.Rendered(rc) {
		return nil
	}
	d.model = nil
	d.dropRows = false
	if err := d.iterate(rc, domain.PhaseDecode); err != nil {
		return err
	}
	return guard(rc, d, func() error { return d.Decode(rc) })
}

func (d *Data) ProcessValidators(rc *RequestContext) error {
	if !d.Rendered(rc) {
		return nil
	}
	return d.iterate(rc, domain.PhaseValidate)
}

func (d *Data) ProcessUpdates(rc *RequestContext) error {
	if !d.Rendered(rc) {
		return nil
	}
	return d.iterate(rc, domain.PhaseUpdateModel)
}

func processPhase(rc *RequestContext, phase domain.Phase, c Component) error {
	switch phase {
	case domain.PhaseDecode:
		return c.ProcessDecodes(rc)
	case domain.PhaseValidate:
		return c.ProcessValidators(rc)
	case domain.PhaseUpdateModel:
		return c.ProcessUpdates(rc)
	default:
		return fmt.Errorf("phase %s is not a tree walk", phase)
	}
}

// iterate processes the iterator's facets and column facets once, then the
// column children once per row in the window.
func (d *Data) iterate(rc *RequestContext, phase domain.Phase) (err error) {
	for _, f := range d.Facets() {
		if err := processPhase(rc, phase, f); err != nil {
			return err
		}
	}
	for _, kid := range d.children {
		col, ok := kid.(*Column)
		if !ok || !col.Rendered(rc) {
			continue
		}
		for _, f := range col.Facets() {
			if err := processPhase(rc, phase, f); err != nil {
				return err
			}
		}
	}
	defer func() {
		if rerr := d.SetRowIndex(rc, -1); err == nil {
			err = rerr
		}
	}()
	return d.eachRow(rc, func() error {
		for _, kid := range d.children {
			col, ok := kid.(*Column)
			if !ok {
				if err := processPhase(rc, phase, kid); err != nil {
					return err
				}
				continue
			}
			if !col.Rendered(rc) {
				continue
			}
			for _, gk := range col.children {
				if err := processPhase(rc, phase, gk); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// eachRow positions the iterator on each available row of the window and
// calls fn. The caller parks the iterator afterwards.
func (d *Data) eachRow(rc *RequestContext, fn func() error) error {
	first, rows := d.First(), d.Rows()
	for i := first; rows <= 0 || i < first+rows; i++ {
		if err := d.SetRowIndex(rc, i); err != nil {
			return err
		}
		if !d.DataModel(rc).RowAvailable() {
			return nil
		}
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// EncodeBegin parks the iterator and, unless this request failed validation,
// drops the cached dataset and the saved rows of the current scope.
func (d *Data) EncodeBegin(rc *RequestContext) error {
	if err := d.SetRowIndex(rc, -1); err != nil {
		return err
	}
	d.dropRows = !d.keepSaved(rc)
	if d.dropRows {
		d.model = nil
		d.clearPartition(d.scopeID(rc))
	}
	return d.Base.EncodeBegin(rc)
}

// EncodeChildren renders the column children once per row.
func (d *Data) EncodeChildren(rc *RequestContext) (err error) {
	if d.RendersChildren(rc) {
		return d.Base.EncodeChildren(rc)
	}
	defer func() {
		if rerr := d.SetRowIndex(rc, -1); err == nil {
			err = rerr
		}
	}()
	return d.eachRow(rc, func() error {
		for _, kid := range d.children {
			if col, ok := kid.(*Column); ok {
				if !col.Rendered(rc) {
					continue
				}
				for _, gk := range col.children {
					if err := EncodeAll(rc, gk); err != nil {
						return err
					}
				}
				continue
			}
			if err := EncodeAll(rc, kid); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Data) EncodeEnd(rc *RequestContext) error {
	return errors.Join(d.Base.EncodeEnd(rc), d.SetRowIndex(rc, -1))
}

func (d *Data) keepSaved(rc *RequestContext) bool {
	if rc == nil {
		return false
	}
	if rc.ValidationFailed() {
		return true
	}
	sev, ok := rc.MaximumSeverity()
	return ok && sev >= domain.SeverityError
}

// QueueEvent wraps evt with the current row before passing it up.
func (d *Data) QueueEvent(rc *RequestContext, evt Event) {
	if d.rowIndex < 0 {
		d.Base.QueueEvent(rc, evt)
		return
	}
	d.Base.QueueEvent(rc, &rowEvent{inner: evt, data: d, row: d.rowIndex})
}

// Broadcast re-enters the row an event was queued in, forwards the wrapped
// event to its source and then returns to the previous row.
func (d *Data) Broadcast(rc *RequestContext, evt Event) (Outcome, error) {
	re, ok := evt.(*rowEvent)
	if !ok || re.data != d {
		return d.Base.Broadcast(rc, evt)
	}
	old := d.rowIndex
	if err := d.SetRowIndex(rc, re.row); err != nil {
		return OutcomeContinue, err
	}
	out, err := re.inner.Source().Broadcast(rc, re.inner)
	if rerr := d.SetRowIndex(rc, old); err == nil {
		err = rerr
	}
	return out, err
}

// invokeOnComponent understands row-qualified client ids below the iterator.
func (d *Data) invokeOnComponent(rc *RequestContext, clientID string, fn func(Component) error) (found bool, err error) {
	own := d.ClientID(rc)
	if own == clientID {
		return true, guard(rc, d, func() error { return fn(d) })
	}
	for _, f := range d.Facets() {
		if found, err := InvokeOnComponent(rc, f, clientID, fn); found || err != nil {
			return found, err
		}
	}
	rest, ok := strings.CutPrefix(clientID, own+Separator)
	if !ok {
		return false, nil
	}
	rowPart, _, _ := strings.Cut(rest, Separator)
	row, perr := strconv.Atoi(rowPart)
	if perr != nil || row < 0 {
		return false, nil
	}
	old := d.rowIndex
	if err := d.SetRowIndex(rc, row); err != nil {
		return false, err
	}
	defer func() {
		if rerr := d.SetRowIndex(rc, old); err == nil {
			err = rerr
		}
	}()
	if !d.DataModel(rc).RowAvailable() {
		return false, nil
	}
	for _, kid := range d.children {
		if found, ierr := InvokeOnComponent(rc, kid, clientID, fn); found || ierr != nil {
			return found, ierr
		}
	}
	return false, nil
}

// --- state ---

// DataState is the saved form of a Data: its own state map plus the row
// states it keeps between requests.
type DataState struct {
	Base any
	Rows []SavedRow
}

// SavedRow is the saved state of one row of one scope.
type SavedRow struct {
	Scope  string
	Row    int
	Paths  []string
	States []any
}

// SaveState saves the state map and, unless the last render discarded
// them, the saved rows in a stable order.
func (d *Data) SaveState() (any, error) {
	own, err := d.Base.SaveState()
	if err != nil {
		return nil, err
	}
	var rows []SavedRow
	if !d.dropRows {
		rows = d.exportRows()
	}
	if own == nil && len(rows) == 0 {
		return nil, nil
	}
	return &DataState{Base: own, Rows: rows}, nil
}

// RestoreState restores the state map and replaces the saved rows.
func (d *Data) RestoreState(snapshot any) error {
	switch s := snapshot.(type) {
	case nil:
		return nil
	case *DataState:
		if err := d.Base.RestoreState(s.Base); err != nil {
			return err
		}
		d.saved = nil
		d.dropRows = false
		for _, r := range s.Rows {
			if len(r.Paths) != len(r.States) {
				return fmt.Errorf("saved row %d of %q has %d paths and %d states: %w",
					r.Row, r.Scope, len(r.Paths), len(r.States), ErrInvalidArgument)
			}
			rs := make(rowStates, len(r.Paths))
			for i, p := range r.Paths {
				rs[p] = r.States[i]
			}
			d.storeRow(rowKey{scope: r.Scope, row: r.Row}, rs)
		}
		return nil
	default:
		return state.NewShapeError("core.DataState", snapshot)
	}
}

func (d *Data) exportRows() []SavedRow {
	var out []SavedRow
	for scope, part := range d.saved {
		for row, rs := range part {
			paths := make([]string, 0, len(rs))
			for p := range rs {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			states := make([]any, len(paths))
			for i, p := range paths {
				states[i] = rs[p]
			}
			out = append(out, SavedRow{Scope: scope, Row: row, Paths: paths, States: states})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Scope != out[j].Scope {
			return out[i].Scope < out[j].Scope
		}
		return out[i].Row < out[j].Row
	})
	return out
}
