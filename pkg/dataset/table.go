package dataset

import (
	"fmt"

	"github.com/controlplane-com/pool-orchestrator/pkg/shared/types"
)

// Column is one named, typed column of a Table
type Column struct {
	Name string     `yaml:"name"`
	Type ColumnType `yaml:"type"`
}

// Table is an in-memory tabular dataset. Cells hold nil (null), string,
// int64, float64, bool or time.Time; untyped columns may hold any of them.
type Table struct {
	Columns []Column
	Rows    [][]any
}

// New creates an empty table with the given columns
func New(columns ...Column) *Table {
	return &Table{Columns: columns}
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Width returns the number of columns
func (t *Table) Width() int {
	return len(t.Columns)
}

// Append adds one row. The row must have one cell per column.
func (t *Table) Append(row ...any) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row %d has %d cells, expected %d", len(t.Rows), len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Slice returns rows [start, end) as a table sharing the row storage of t
func (t *Table) Slice(start, end int) *Table {
	return &Table{Columns: t.Columns, Rows: t.Rows[start:end:end]}
}

// Index returns the position of the named column
func (t *Table) Index(name string) (int, bool) {
	for i, c := range t.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return -1, false
}

// ColumnNames returns all column names in order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// Schema describes the table as the platform expects it when a push job
// creates the target table
func (t *Table) Schema(name string) *types.TableTransport {
	schema := &types.TableTransport{TableName: name}
	for _, c := range t.Columns {
		schema.Columns = append(schema.Columns, types.ColumnTransport{
			ColumnName: c.Name,
			ColumnType: c.Type.Wire(),
		})
	}
	return schema
}

// Concat appends the rows of tables in order. All tables must have the
// same column names.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return &Table{}, nil
	}
	out := &Table{Columns: tables[0].Columns}
	for i, t := range tables {
		if t.Width() != out.Width() {
			return nil, fmt.Errorf("table %d has %d columns, expected %d", i, t.Width(), out.Width())
		}
		for j, c := range t.Columns {
			if c.Name != out.Columns[j].Name {
				return nil, fmt.Errorf("table %d column %d is %q, expected %q", i, j, c.Name, out.Columns[j].Name)
			}
		}
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out, nil
}
