package core

import "reflect"

// DataModel exposes a dataset one row at a time. RowCount returns -1 when
// the size is unknown.
type DataModel interface {
	RowCount() int
	RowIndex() int
	SetRowIndex(i int)
	RowAvailable() bool
	RowData() any
	WrappedData() any
}

// SliceModel adapts any slice or array.
type SliceModel struct {
	data  reflect.Value
	wrap  any
	index int
}

// NewSliceModel wraps data, which must be a slice, an array or nil.
func NewSliceModel(data any) *SliceModel {
	m := &SliceModel{wrap: data, index: -1}
	if data != nil {
		v := reflect.ValueOf(data)
		if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
			m.data = v
		}
	}
	return m
}

func (m *SliceModel) RowCount() int {
	if !m.data.IsValid() {
		return 0
	}
	return m.data.Len()
}

func (m *SliceModel) RowIndex() int      { return m.index }
func (m *SliceModel) SetRowIndex(i int)  { m.index = i }
func (m *SliceModel) WrappedData() any   { return m.wrap }
func (m *SliceModel) RowAvailable() bool { return m.index >= 0 && m.index < m.RowCount() }

func (m *SliceModel) RowData() any {
	if !m.RowAvailable() {
		return nil
	}
	return m.data.Index(m.index).Interface()
}

// ScalarModel presents a single value as a one-row dataset.
type ScalarModel struct {
	value any
	index int
}

// NewScalarModel wraps value.
func NewScalarModel(value any) *ScalarModel { return &ScalarModel{value: value, index: -1} }

func (m *ScalarModel) RowCount() int      { return 1 }
func (m *ScalarModel) RowIndex() int      { return m.index }
func (m *ScalarModel) SetRowIndex(i int)  { m.index = i }
func (m *ScalarModel) RowAvailable() bool { return m.index == 0 }
func (m *ScalarModel) WrappedData() any   { return m.value }

func (m *ScalarModel) RowData() any {
	if m.index != 0 {
		return nil
	}
	return m.value
}

// modelFor wraps a dataset value in the matching DataModel.
func modelFor(v any) DataModel {
	switch x := v.(type) {
	case nil:
		return NewSliceModel(nil)
	case DataModel:
		return x
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return NewSliceModel(v)
	default:
		return NewScalarModel(v)
	}
}
