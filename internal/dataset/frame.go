// Package dataset holds the column-oriented tables passed between pipeline stages.
//
// A Frame has ordered, named columns. Float columns use NaN for null; string
// columns have no null. Stages never mutate the Frame they receive: they Clone
// it, derive columns and return the copy.
package dataset

import (
	"fmt"
	"math"

	"github.com/okian/gotsim/internal/domain/failure"
)

// Kind is the storage type of a column.
type Kind int

const (
	Float Kind = iota
	String
)

func (k Kind) String() string {
	if k == String {
		return "string"
	}
	return "float"
}

type column struct {
	kind    Kind
	floats  []float64
	strings []string
}

func (c *column) len() int {
	if c.kind == String {
		return len(c.strings)
	}
	return len(c.floats)
}

// Frame is an in-memory table.
type Frame struct {
	names []string
	cols  map[string]*column
	rows  int
}

// New returns an empty Frame with rows rows and no columns.
func New(rows int) *Frame {
	return &Frame{cols: make(map[string]*column), rows: rows}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.rows }

// Names returns the column names in order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// Has reports whether the column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// KindOf returns the kind of a column.
func (f *Frame) KindOf(name string) (Kind, error) {
	c, ok := f.cols[name]
	if !ok {
		return 0, fmt.Errorf("%w: column %q not found", failure.ErrSchema, name)
	}
	return c.kind, nil
}

// Floats returns a float column. The slice is shared; callers must not modify it.
func (f *Frame) Floats(name string) ([]float64, error) {
	c, ok := f.cols[name]
	if !ok {
		return nil, fmt.Errorf("%w: column %q not found", failure.ErrSchema, name)
	}
	if c.kind != Float {
		return nil, fmt.Errorf("%w: column %q is %s, want float", failure.ErrType, name, c.kind)
	}
	return c.floats, nil
}

// Strings returns a string column. The slice is shared; callers must not modify it.
func (f *Frame) Strings(name string) ([]string, error) {
	c, ok := f.cols[name]
	if !ok {
		return nil, fmt.Errorf("%w: column %q not found", failure.ErrSchema, name)
	}
	if c.kind != String {
		return nil, fmt.Errorf("%w: column %q is %s, want string", failure.ErrType, name, c.kind)
	}
	return c.strings, nil
}

// SetFloats adds or replaces a float column. A replaced column keeps its position.
func (f *Frame) SetFloats(name string, vals []float64) error {
	if len(vals) != f.rows {
		return fmt.Errorf("%w: column %q has %d values, frame has %d rows", failure.ErrSchema, name, len(vals), f.rows)
	}
	f.set(name, &column{kind: Float, floats: vals})
	return nil
}

// SetStrings adds or replaces a string column. A replaced column keeps its position.
func (f *Frame) SetStrings(name string, vals []string) error {
	if len(vals) != f.rows {
		return fmt.Errorf("%w: column %q has %d values, frame has %d rows", failure.ErrSchema, name, len(vals), f.rows)
	}
	f.set(name, &column{kind: String, strings: vals})
	return nil
}

func (f *Frame) set(name string, c *column) {
	if _, ok := f.cols[name]; !ok {
		f.names = append(f.names, name)
	}
	f.cols[name] = c
}

// Drop removes columns; unknown names are ignored.
func (f *Frame) Drop(names ...string) {
	for _, name := range names {
		if _, ok := f.cols[name]; !ok {
			continue
		}
		delete(f.cols, name)
		for i, n := range f.names {
			if n == name {
				f.names = append(f.names[:i], f.names[i+1:]...)
				break
			}
		}
	}
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := New(f.rows)
	for _, name := range f.names {
		c := f.cols[name]
		nc := &column{kind: c.kind}
		if c.kind == String {
			nc.strings = append([]string(nil), c.strings...)
		} else {
			nc.floats = append([]float64(nil), c.floats...)
		}
		out.set(name, nc)
	}
	return out
}

// Filter returns a new Frame with the rows where keep is true.
func (f *Frame) Filter(keep []bool) (*Frame, error) {
	if len(keep) != f.rows {
		return nil, fmt.Errorf("%w: filter mask has %d values, frame has %d rows", failure.ErrSchema, len(keep), f.rows)
	}
	n := 0
	for _, k := range keep {
		if k {
			n++
		}
	}
	out := New(n)
	for _, name := range f.names {
		c := f.cols[name]
		nc := &column{kind: c.kind}
		if c.kind == String {
			nc.strings = make([]string, 0, n)
			for i, k := range keep {
				if k {
					nc.strings = append(nc.strings, c.strings[i])
				}
			}
		} else {
			nc.floats = make([]float64, 0, n)
			for i, k := range keep {
				if k {
					nc.floats = append(nc.floats, c.floats[i])
				}
			}
		}
		out.set(name, nc)
	}
	return out, nil
}

// Matrix returns the named float columns as row-major feature vectors, in the
// order given.
func (f *Frame) Matrix(names []string) ([][]float64, error) {
	cols := make([][]float64, len(names))
	for j, name := range names {
		vals, err := f.Floats(name)
		if err != nil {
			return nil, err
		}
		cols[j] = vals
	}
	out := make([][]float64, f.rows)
	for i := range out {
		row := make([]float64, len(names))
		for j := range names {
			row[j] = cols[j][i]
		}
		out[i] = row
	}
	return out, nil
}

// NonFinite returns the float columns holding NaN or +/-Inf, in column order.
func (f *Frame) NonFinite() []string {
	var out []string
	for _, name := range f.names {
		c := f.cols[name]
		if c.kind != Float {
			continue
		}
		for _, v := range c.floats {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

// IsNull reports whether v is a null float cell.
func IsNull(v float64) bool { return math.IsNaN(v) }

// Null returns the null float value.
func Null() float64 { return math.NaN() }
