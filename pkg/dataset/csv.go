package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/controlplane-com/pool-orchestrator/pkg/shared/apierr"
)

// ParseError represents an error that occurred while parsing a specific column.
type ParseError struct {
	Line   int
	Column string
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("line %d: column %q: %s (value: %q)", e.Line, e.Column, e.Reason, e.Value)
	}
	if e.Column == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("line %d: column %q: %s", e.Line, e.Column, e.Reason)
}

// CSVReader wraps a csv.Reader and tracks line numbers.
type CSVReader struct {
	reader  *csv.Reader
	lineNum int
	header  []string
}

// NewCSVReader creates a CSV reader. If header is true, the first row is read
// and kept as the header. The delimiter specifies the field separator
// (e.g., ',' for CSV, '\t' for TSV).
func NewCSVReader(r io.Reader, header bool, delimiter rune) (*CSVReader, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1 // validated per row against the columns
	reader.LazyQuotes = true

	p := &CSVReader{reader: reader}
	if header {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("CSV file is empty")
			}
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
		p.header = record
		p.lineNum = 1
	}
	return p, nil
}

// Header returns the header row, or nil when the input has none.
func (p *CSVReader) Header() []string {
	return p.header
}

// Next reads and returns the next record with its line number.
// Returns io.EOF when there are no more records.
func (p *CSVReader) Next() ([]string, int, error) {
	record, err := p.reader.Read()
	if err != nil {
		return nil, p.lineNum, err
	}
	p.lineNum++
	return record, p.lineNum, nil
}

// CSVOptions controls FromCSV.
type CSVOptions struct {
	Delimiter rune     // defaults to ','
	Header    bool     // first row holds column names
	Columns   []Column // explicit layout; when empty, header names are used as untyped columns
}

// FromCSV reads a whole delimited file into a Table.
func FromCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	reader, err := NewCSVReader(r, opts.Header, opts.Delimiter)
	if err != nil {
		return nil, err
	}

	columns := opts.Columns
	if len(columns) == 0 {
		if reader.Header() == nil {
			return nil, apierr.InvalidConfig("CSV without header needs a column configuration")
		}
		for _, name := range reader.Header() {
			columns = append(columns, Column{Name: strings.TrimSpace(name), Type: TypeAny})
		}
	}

	t := New(columns...)
	for {
		record, line, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line+1, err)
		}
		row, err := ConvertRecord(record, columns, line)
		if err != nil {
			return nil, err
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// ConvertRecord converts a CSV record to native values based on column types.
func ConvertRecord(record []string, columns []Column, lineNum int) ([]any, error) {
	if len(record) != len(columns) {
		return nil, &ParseError{
			Line:   lineNum,
			Reason: fmt.Sprintf("expected %d columns, got %d", len(columns), len(record)),
		}
	}

	values := make([]any, len(columns))
	for i, cell := range record {
		col := columns[i]
		val, err := ParseValue(cell, col.Type)
		if err != nil {
			return nil, &ParseError{
				Line:   lineNum,
				Column: col.Name,
				Value:  cell,
				Reason: err.Error(),
			}
		}
		values[i] = val
	}
	return values, nil
}

// ParseValue converts a text cell to the native type of colType. Empty cells
// are null except in string columns.
func ParseValue(value string, colType ColumnType) (any, error) {
	if colType == TypeString {
		return value, nil
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	switch colType {
	case TypeAny:
		return value, nil
	case TypeInteger:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer: %w", err)
		}
		return n, nil
	case TypeFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float: %w", err)
		}
		return f, nil
	case TypeBoolean:
		return parseBool(value)
	case TypeDatetime:
		return parseDatetime(value)
	default:
		return nil, fmt.Errorf("unknown column type: %s", colType)
	}
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on", "t", "y":
		return true, nil
	case "0", "false", "no", "off", "f", "n":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %q", value)
	}
}

// datetimeFormats lists common date/time formats to try when parsing datetimes.
var datetimeFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
	"01/02/2006 15:04:05",
	"02-Jan-2006",
	"02-Jan-2006 15:04:05",
}

func parseDatetime(value string) (time.Time, error) {
	// Unix seconds
	if ts, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(ts, 0).UTC(), nil
	}
	for _, format := range datetimeFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime format: %q", value)
}
