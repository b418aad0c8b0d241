// Package table holds the float-valued, row-indexed tables produced by statistics and
// simulation runs.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Table is a dense table of float64 values with a labelled row index
type Table struct {
	// IndexName names the row index column (e.g. "gid")
	IndexName string

	// Index holds one label per row
	Index []string

	// Columns names each value column
	Columns []string

	// Rows holds one value slice per row, each len(Columns) long
	Rows [][]float64
}

// New creates an empty table
func New(indexName string, columns ...string) *Table {
	return &Table{
		IndexName: indexName,
		Index:     make([]string, 0),
		Columns:   append([]string(nil), columns...),
		Rows:      make([][]float64, 0),
	}
}

// Append adds a row labelled by label
func (t *Table) Append(label string, values []float64) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("row %q has %d values, table has %d columns", label, len(values), len(t.Columns))
	}

	t.Index = append(t.Index, label)
	t.Rows = append(t.Rows, values)
	return nil
}

// AppendUnit adds a row labelled by an integer unit identifier
func (t *Table) AppendUnit(id int, values []float64) error {
	return t.Append(strconv.Itoa(id), values)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column, or -1
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column's values
func (t *Table) Column(name string) ([]float64, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}

	values := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, true
}

// Value returns the value at the given row label and column
func (t *Table) Value(label, column string) (float64, bool) {
	col := t.ColumnIndex(column)
	if col < 0 {
		return 0, false
	}
	for i, l := range t.Index {
		if l == label {
			return t.Rows[i][col], true
		}
	}
	return 0, false
}

// AddColumn appends a column; values must have one entry per row
func (t *Table) AddColumn(name string, values []float64) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), len(t.Rows))
	}

	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], values[i])
	}
	return nil
}

// Concat joins tables along the row axis. All tables must share the same columns.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables to concatenate")
	}

	first := tables[0]
	out := New(first.IndexName, first.Columns...)
	for i, t := range tables {
		if !sameColumns(first.Columns, t.Columns) {
			return nil, fmt.Errorf("table %d columns %v do not match %v", i, t.Columns, first.Columns)
		}
		out.Index = append(out.Index, t.Index...)
		out.Rows = append(out.Rows, t.Rows...)
	}

	return out, nil
}

// Records converts the table into one map per row, suitable for JSON/YAML output
func (t *Table) Records() []map[string]interface{} {
	records := make([]map[string]interface{}, len(t.Rows))
	for i, row := range t.Rows {
		rec := make(map[string]interface{}, len(row)+1)
		rec[t.IndexName] = t.Index[i]
		for j, col := range t.Columns {
			rec[col] = row[j]
		}
		records[i] = rec
	}
	return records
}

// WriteCSV writes the table with a header row; the index is the first column
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := append([]string{t.IndexName}, t.Columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(header))
	for i, row := range t.Rows {
		record[0] = t.Index[i]
		for j, v := range row {
			record[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %q: %w", t.Index[i], err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the table to path, creating parent directories
func (t *Table) SaveCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
