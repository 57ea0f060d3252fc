// Package table holds the tabular data that flows through scoring: the input
// Frame of (sources, translations, targets) rows, the ScoreTable built by a
// calculator, and their CSV / Arrow IPC persistence.
package table

import (
	"errors"
	"fmt"
	"strings"
)

// Column names of the scoring schema.
const (
	ColumnSources      = "sources"
	ColumnTranslations = "translations"
	ColumnTargets      = "targets"
)

// RequiredColumns lists the columns every scoring input must have.
var RequiredColumns = []string{ColumnSources, ColumnTranslations, ColumnTargets}

// ErrMissingColumn is the sentinel wrapped by MissingColumnError.
var ErrMissingColumn = errors.New("missing column")

// MissingColumnError is returned when a frame lacks a required column.
type MissingColumnError struct {
	Column    string
	Available []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column %q (have: %s)", e.Column, strings.Join(e.Available, ", "))
}

func (e *MissingColumnError) Unwrap() error { return ErrMissingColumn }

// Record is one scoring unit.
type Record struct {
	Source      string
	Translation string
	Target      string
}

// Frame is an ordered table of string columns. Row order is evaluation
// order. A Frame is not modified once it is handed to a calculator.
type Frame struct {
	columns []string
	index   map[string]int
	cells   [][]string
	rows    int
}

// NewFrame creates an empty frame with the given column names.
func NewFrame(columns ...string) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		if c == "" {
			return nil, fmt.Errorf("empty column name")
		}
		if _, dup := f.index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		f.index[c] = len(f.columns)
		f.columns = append(f.columns, c)
		f.cells = append(f.cells, nil)
	}
	return f, nil
}

// FromRecords builds a frame with the scoring schema.
func FromRecords(records []Record) *Frame {
	f, _ := NewFrame(RequiredColumns...)
	for _, r := range records {
		_ = f.AppendRow(r.Source, r.Translation, r.Target)
	}
	return f
}

// FromColumns builds a frame from equally long named columns, keeping the order of names.
func FromColumns(names []string, columns map[string][]string) (*Frame, error) {
	f, err := NewFrame(names...)
	if err != nil {
		return nil, err
	}
	rows := -1
	for i, name := range names {
		col, ok := columns[name]
		if !ok {
			return nil, &MissingColumnError{Column: name, Available: names}
		}
		if rows >= 0 && len(col) != rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", name, len(col), rows)
		}
		rows = len(col)
		f.cells[i] = append([]string(nil), col...)
	}
	if rows > 0 {
		f.rows = rows
	}
	return f, nil
}

// AppendRow adds one row; values follow the column order.
func (f *Frame) AppendRow(values ...string) error {
	if len(values) != len(f.columns) {
		return fmt.Errorf("row has %d values, frame has %d columns", len(values), len(f.columns))
	}
	for i, v := range values {
		f.cells[i] = append(f.cells[i], v)
	}
	f.rows++
	return nil
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.rows }

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

// Has reports whether the frame has a column named name.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns a copy of the named column.
func (f *Frame) Column(name string) ([]string, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, &MissingColumnError{Column: name, Available: f.Columns()}
	}
	return append([]string(nil), f.cells[i]...), nil
}

// Value returns a single cell. It panics on an unknown column or row, like slice indexing.
func (f *Frame) Value(column string, row int) string {
	return f.cells[f.index[column]][row]
}

// Require checks that every name is a column of f.
func (f *Frame) Require(names ...string) error {
	for _, n := range names {
		if !f.Has(n) {
			return &MissingColumnError{Column: n, Available: f.Columns()}
		}
	}
	return nil
}

// Records returns the rows as Records. The frame must have the scoring schema.
func (f *Frame) Records() ([]Record, error) {
	if err := f.Require(RequiredColumns...); err != nil {
		return nil, err
	}
	src := f.cells[f.index[ColumnSources]]
	mt := f.cells[f.index[ColumnTranslations]]
	ref := f.cells[f.index[ColumnTargets]]
	out := make([]Record, f.rows)
	for i := range out {
		out[i] = Record{Source: src[i], Translation: mt[i], Target: ref[i]}
	}
	return out, nil
}
