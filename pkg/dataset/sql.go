package dataset

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// FromRows drains a query result into a Table. Column types come from the
// driver's database type names; unknown types become untyped columns.
// rows is not closed.
func FromRows(rows *sql.Rows) (*Table, error) {
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	t := &Table{}
	for _, ct := range columnTypes {
		t.Columns = append(t.Columns, Column{Name: ct.Name(), Type: typeFromDatabase(ct.DatabaseTypeName())})
	}

	scanned := make([]any, len(columnTypes))
	dest := make([]any, len(columnTypes))
	for i := range scanned {
		dest[i] = &scanned[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row %d: %w", len(t.Rows), err)
		}
		row := make([]any, len(scanned))
		for i, v := range scanned {
			val, err := fromDriver(v, t.Columns[i].Type)
			if err != nil {
				return nil, &ParseError{
					Line:   len(t.Rows) + 1,
					Column: t.Columns[i].Name,
					Reason: err.Error(),
				}
			}
			row[i] = val
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return t, nil
}

func typeFromDatabase(name string) ColumnType {
	name = strings.TrimPrefix(strings.ToUpper(name), "UNSIGNED ")
	switch name {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT", "YEAR", "INT2", "INT4", "INT8":
		return TypeInteger
	case "FLOAT", "DOUBLE", "REAL", "DECIMAL", "NUMERIC", "FLOAT4", "FLOAT8":
		return TypeFloat
	case "BOOL", "BOOLEAN":
		return TypeBoolean
	case "DATE", "DATETIME", "TIMESTAMP", "TIMESTAMPTZ":
		return TypeDatetime
	case "CHAR", "VARCHAR", "TEXT", "TINYTEXT", "MEDIUMTEXT", "LONGTEXT", "ENUM", "NVARCHAR", "NCHAR":
		return TypeString
	default:
		return TypeAny
	}
}

// fromDriver converts a scanned driver value. Text protocols deliver most
// values as []byte, which are parsed like CSV cells.
func fromDriver(v any, colType ColumnType) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		if colType == TypeAny {
			return string(x), nil
		}
		return ParseValue(string(x), colType)
	case string:
		if colType == TypeAny {
			return x, nil
		}
		return ParseValue(x, colType)
	case time.Time:
		return x.UTC(), nil
	default:
		return x, nil
	}
}
