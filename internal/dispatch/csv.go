package dispatch

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// Table is a column-ordered payload ready for CSV encoding. The target
// import expects a semicolon-delimited file whose header row is lower case.
type Table struct {
	Header []string
	Rows   [][]string
}

// Encode renders the table as the semicolon-delimited CSV body the target
// multipart import consumes.
func (t Table) Encode() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'

	header := make([]string, len(t.Header))
	for i, h := range t.Header {
		header[i] = strings.ToLower(h)
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("encode csv header: %w", err)
	}

	for i, row := range t.Rows {
		if len(row) != len(t.Header) {
			return nil, fmt.Errorf("encode csv: row %d has %d fields, header has %d", i, len(row), len(t.Header))
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("encode csv row %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}
