package profile

import (
	"fmt"
	"reflect"

	"github.com/keeper-security/ksm-profile/pkg/dataset"
)

// DataSet exports every section, entry and value of the profile. The data
// set is named after the profile; each section becomes a table with one
// column per entry, typed after the entry's value, and exactly one row.
// If the backend's data source does not exist, DataSet returns nil.
func (p *Profile) DataSet() (*dataset.DataSet, error) {
	if err := p.verifyName(); err != nil {
		return nil, err
	}

	sections, err := p.backend.SectionNames(p.name)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	if sections == nil {
		return nil, nil
	}

	ds := dataset.New(p.name)
	for _, section := range sections {
		table, err := ds.AddTable(section)
		if err != nil {
			return nil, err
		}

		entries, err := p.backend.EntryNames(p.name, section)
		if err != nil {
			return nil, fmt.Errorf("failed to list entries of section %q: %w", section, err)
		}

		values := make([]any, 0, len(entries))
		for _, entry := range entries {
			value, err := p.backend.Value(p.name, section, entry)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s/%s: %w", section, entry, err)
			}
			if value == nil {
				continue
			}
			if _, err := table.AddColumn(entry, reflect.TypeOf(value)); err != nil {
				return nil, err
			}
			values = append(values, value)
		}

		if err := table.AddRow(values...); err != nil {
			return nil, err
		}
	}

	return ds, nil
}

// SetDataSet writes the first row of every table in ds into the profile:
// table names are sections, column names are entries. Tables without rows
// are skipped and any rows after the first are ignored. Every value goes
// through SetValue, so nil cells remove entries and each write is notified.
func (p *Profile) SetDataSet(ds *dataset.DataSet) error {
	if err := p.verifyNotReadOnly(); err != nil {
		return err
	}
	if err := p.verifyName(); err != nil {
		return err
	}
	if ds == nil {
		return fmt.Errorf("%w: data set is required", ErrInvalidArgument)
	}

	for _, table := range ds.Tables() {
		rows := table.Rows()
		if len(rows) == 0 {
			continue
		}

		for i, column := range table.Columns() {
			if err := p.SetValue(table.Name(), column.Name, rows[0].Value(i)); err != nil {
				return err
			}
		}
	}
	return nil
}
