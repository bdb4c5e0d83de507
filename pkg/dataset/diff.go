package dataset

import "reflect"

// ChangeKind classifies a difference between two data sets.
type ChangeKind string

const (
	// Added marks a cell present only in the newer data set
	Added ChangeKind = "added"
	// Removed marks a cell present only in the older data set
	Removed ChangeKind = "removed"
	// Modified marks a cell whose value differs between the two
	Modified ChangeKind = "modified"
)

// Change is one cell-level difference. Only the first row of each table
// is compared.
type Change struct {
	Kind   ChangeKind
	Table  string
	Column string
	Old    any
	New    any
}

// Diff compares the first row of every table in from and to, column by
// column. Tables present in only one side report all of their cells.
// Either argument may be nil.
func Diff(from, to *DataSet) []Change {
	before := firstRows(from)
	after := firstRows(to)

	var changes []Change
	for _, t := range tableOrder(from, to) {
		b, a := before[t.name], after[t.name]
		for _, col := range columnOrder(b, a) {
			ov, inOld := b.get(col)
			nv, inNew := a.get(col)
			switch {
			case inOld && !inNew:
				changes = append(changes, Change{Kind: Removed, Table: t.name, Column: col, Old: ov})
			case !inOld && inNew:
				changes = append(changes, Change{Kind: Added, Table: t.name, Column: col, New: nv})
			case !reflect.DeepEqual(ov, nv):
				changes = append(changes, Change{Kind: Modified, Table: t.name, Column: col, Old: ov, New: nv})
			}
		}
	}
	return changes
}

type rowView struct {
	columns []string
	values  map[string]any
}

func (r *rowView) get(col string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[col]
	return v, ok
}

func firstRows(d *DataSet) map[string]*rowView {
	views := make(map[string]*rowView)
	if d == nil {
		return views
	}
	for _, t := range d.tables {
		view := &rowView{values: make(map[string]any)}
		if len(t.rows) > 0 {
			for i, c := range t.columns {
				view.columns = append(view.columns, c.Name)
				view.values[c.Name] = t.rows[0][i]
			}
		}
		views[t.name] = view
	}
	return views
}

func tableOrder(sets ...*DataSet) []*Table {
	var tables []*Table
	seen := make(map[string]bool)
	for _, d := range sets {
		if d == nil {
			continue
		}
		for _, t := range d.tables {
			if !seen[t.name] {
				seen[t.name] = true
				tables = append(tables, t)
			}
		}
	}
	return tables
}

func columnOrder(views ...*rowView) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, v := range views {
		if v == nil {
			continue
		}
		for _, c := range v.columns {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	return cols
}
