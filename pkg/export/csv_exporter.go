package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Column describes one exported column.
type Column struct {
	Header string
	// Numeric columns are right-aligned in PDF output.
	Numeric bool
}

// Table is tabular report content. Each row holds one cell per column.
type Table struct {
	Columns []Column
	Rows    [][]string
}

// NewTable builds an empty table with text columns named by headers.
func NewTable(headers ...string) *Table {
	columns := make([]Column, len(headers))
	for i, header := range headers {
		columns[i] = Column{Header: header}
	}
	return &Table{Columns: columns}
}

// Numeric marks the named columns as numeric.
func (t *Table) Numeric(headers ...string) *Table {
	for _, header := range headers {
		for i := range t.Columns {
			if t.Columns[i].Header == header {
				t.Columns[i].Numeric = true
			}
		}
	}
	return t
}

// Append adds a row.
func (t *Table) Append(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Headers returns the column headers in order.
func (t *Table) Headers() []string {
	headers := make([]string, len(t.Columns))
	for i, column := range t.Columns {
		headers[i] = column.Header
	}
	return headers
}

func (t *Table) validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("export requires at least one column")
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
	}
	return nil
}

// CSVExporter renders tables as RFC 4180 CSV.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render writes the header line followed by every row.
func (e *CSVExporter) Render(table *Table) ([]byte, error) {
	if err := table.validate(); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(table.Headers()); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	if err := writer.WriteAll(table.Rows); err != nil {
		return nil, fmt.Errorf("write csv rows: %w", err)
	}
	return buf.Bytes(), nil
}
