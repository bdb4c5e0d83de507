// Package dataset provides a small in-memory tabular container used to
// exchange profile data: a DataSet holds named tables, each with named,
// typed columns and rows of values.
package dataset

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrDuplicateName is returned when a table or column name is reused.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrRowShape is returned when a row does not match the table's columns.
	ErrRowShape = errors.New("row does not match columns")
)

// DataSet is an ordered collection of named tables.
type DataSet struct {
	name   string
	tables []*Table
}

// New creates an empty data set.
func New(name string) *DataSet {
	return &DataSet{name: name}
}

// Name returns the data set's name.
func (d *DataSet) Name() string {
	return d.name
}

// AddTable appends a new empty table.
func (d *DataSet) AddTable(name string) (*Table, error) {
	if d.Table(name) != nil {
		return nil, fmt.Errorf("%w: table %q", ErrDuplicateName, name)
	}
	t := &Table{name: name}
	d.tables = append(d.tables, t)
	return t, nil
}

// Tables returns the tables in insertion order.
func (d *DataSet) Tables() []*Table {
	return d.tables
}

// Table returns the table called name, or nil.
func (d *DataSet) Table(name string) *Table {
	for _, t := range d.tables {
		if t.name == name {
			return t
		}
	}
	return nil
}

// Column is a named, typed column of a table.
type Column struct {
	Name string
	Type reflect.Type
}

// Row holds one value per column, positionally aligned.
type Row []any

// Value returns the value at column index i.
func (r Row) Value(i int) any {
	if i < 0 || i >= len(r) {
		return nil
	}
	return r[i]
}

// Table holds columns and rows.
type Table struct {
	name    string
	columns []*Column
	rows    []Row
}

// Name returns the table's name.
func (t *Table) Name() string {
	return t.name
}

// AddColumn appends a column. Columns can only be added while the table
// has no rows.
func (t *Table) AddColumn(name string, typ reflect.Type) (*Column, error) {
	if typ == nil {
		return nil, fmt.Errorf("column %q: type is required", name)
	}
	if len(t.rows) > 0 {
		return nil, fmt.Errorf("column %q: table %q already has rows", name, t.name)
	}
	if t.ColumnIndex(name) >= 0 {
		return nil, fmt.Errorf("%w: column %q in table %q", ErrDuplicateName, name, t.name)
	}
	c := &Column{Name: name, Type: typ}
	t.columns = append(t.columns, c)
	return c, nil
}

// Columns returns the columns in insertion order.
func (t *Table) Columns() []*Column {
	return t.columns
}

// ColumnIndex returns the position of the column called name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// AddRow appends a row. It must hold exactly one value per column, each
// either nil or assignable to the column's type.
func (t *Table) AddRow(values ...any) error {
	if len(values) != len(t.columns) {
		return fmt.Errorf("%w: table %q has %d columns, got %d values",
			ErrRowShape, t.name, len(t.columns), len(values))
	}
	for i, v := range values {
		if v == nil {
			continue
		}
		if vt := reflect.TypeOf(v); !vt.AssignableTo(t.columns[i].Type) {
			return fmt.Errorf("%w: column %q expects %s, got %s",
				ErrRowShape, t.columns[i].Name, t.columns[i].Type, vt)
		}
	}
	t.rows = append(t.rows, Row(append([]any(nil), values...)))
	return nil
}

// Rows returns the rows in insertion order.
func (t *Table) Rows() []Row {
	return t.rows
}
