// Package dataset loads the raw session data, splits it and hands
// row-aligned frames to the preprocessing pipeline.
package dataset

import (
	"fmt"
)

// Kind tells whether a column holds numbers or category labels.
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "numeric"
}

// Column is a named, typed column. Exactly one of Num or Cat is populated.
// Columns are treated as immutable once added to a frame.
type Column struct {
	Name string
	Kind Kind
	Num  []float64
	Cat  []string
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	if c.Kind == Categorical {
		return len(c.Cat)
	}
	return len(c.Num)
}

// Frame is an ordered set of equal-length columns.
type Frame struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// NewFrame returns an empty frame.
func NewFrame() *Frame {
	return &Frame{index: make(map[string]int)}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.rows }

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks a column up by name.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.columns[i], true
}

// AddNumeric appends a numeric column.
func (f *Frame) AddNumeric(name string, values []float64) error {
	return f.add(&Column{Name: name, Kind: Numeric, Num: values})
}

// AddCategorical appends a categorical column.
func (f *Frame) AddCategorical(name string, values []string) error {
	return f.add(&Column{Name: name, Kind: Categorical, Cat: values})
}

func (f *Frame) add(c *Column) error {
	if _, dup := f.index[c.Name]; dup {
		return fmt.Errorf("duplicate column %q", c.Name)
	}
	if len(f.columns) > 0 && c.Len() != f.rows {
		return fmt.Errorf("column %q has %d rows, frame has %d", c.Name, c.Len(), f.rows)
	}
	if len(f.columns) == 0 {
		f.rows = c.Len()
	}
	f.index[c.Name] = len(f.columns)
	f.columns = append(f.columns, c)
	return nil
}

// Set replaces the column with the same name in place, or appends it.
func (f *Frame) Set(c *Column) error {
	i, ok := f.index[c.Name]
	if !ok {
		return f.add(c)
	}
	if c.Len() != f.rows {
		return fmt.Errorf("column %q has %d rows, frame has %d", c.Name, c.Len(), f.rows)
	}
	f.columns[i] = c
	return nil
}

// Clone returns a shallow copy: the column list is new, columns are shared.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		columns: append([]*Column(nil), f.columns...),
		index:   make(map[string]int, len(f.index)),
		rows:    f.rows,
	}
	for k, v := range f.index {
		out.index[k] = v
	}
	return out
}

// Drop returns a frame without the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	out := NewFrame()
	out.rows = f.rows
	for _, c := range f.columns {
		if skip[c.Name] {
			continue
		}
		out.index[c.Name] = len(out.columns)
		out.columns = append(out.columns, c)
	}
	return out
}

// Take returns a new frame holding the given rows, in the given order.
func (f *Frame) Take(rows []int) *Frame {
	out := NewFrame()
	out.rows = len(rows)
	for _, c := range f.columns {
		nc := &Column{Name: c.Name, Kind: c.Kind}
		if c.Kind == Categorical {
			nc.Cat = make([]string, len(rows))
			for i, r := range rows {
				nc.Cat[i] = c.Cat[r]
			}
		} else {
			nc.Num = make([]float64, len(rows))
			for i, r := range rows {
				nc.Num[i] = c.Num[r]
			}
		}
		out.index[nc.Name] = len(out.columns)
		out.columns = append(out.columns, nc)
	}
	return out
}

// TakeLabels selects rows from a label vector.
func TakeLabels(y []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = y[r]
	}
	return out
}
