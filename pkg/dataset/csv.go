package dataset

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/spf13/cast"
)

// WriteCSV writes t as CSV: a header row of column names followed by one
// record per row. Nil cells are written as empty strings.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(t.columns))
	for i, c := range t.columns {
		header[i] = c.Name
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header for table %q: %w", t.name, err)
	}

	for _, r := range t.rows {
		record := make([]string, len(r))
		for i, v := range r {
			record[i] = cast.ToString(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row for table %q: %w", t.name, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
