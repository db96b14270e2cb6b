package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/noah-isme/eligibility-report-api/internal/models"
)

// RowSource yields rows in order and returns io.EOF once exhausted.
type RowSource interface {
	Next() (models.Row, error)
}

// CSVSource adapts a CSV stream with a header line into a RowSource.
type CSVSource struct {
	reader *csv.Reader
	header []string
}

// NewCSVSource reads the header line and prepares a source over the remaining records.
func NewCSVSource(r io.Reader) (*CSVSource, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csv has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	columns := make([]string, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		columns[i] = strings.TrimSpace(name)
	}

	return &CSVSource{reader: reader, header: columns}, nil
}

// Header returns the normalised column names.
func (s *CSVSource) Header() []string {
	out := make([]string, len(s.header))
	copy(out, s.header)
	return out
}

// Next returns the next record keyed by header name. Surplus fields are dropped and missing
// trailing fields are absent from the row.
func (s *CSVSource) Next() (models.Row, error) {
	record, err := s.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read csv record: %w", err)
	}

	row := make(models.Row, len(s.header))
	for i, value := range record {
		if i >= len(s.header) {
			break
		}
		if s.header[i] == "" {
			continue
		}
		row[s.header[i]] = value
	}
	return row, nil
}

// SliceSource serves rows from memory.
type SliceSource struct {
	rows []models.Row
	pos  int
}

// NewSliceSource returns a RowSource over rows.
func NewSliceSource(rows []models.Row) *SliceSource {
	return &SliceSource{rows: rows}
}

// Next implements RowSource.
func (s *SliceSource) Next() (models.Row, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}
