package dataset

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/controlplane-com/pool-orchestrator/pkg/shared/apierr"
)

type kind uint8

const (
	kindNull kind = iota
	kindString
	kindInteger
	kindFloat
	kindBoolean
	kindDatetime
)

// Normalize returns a copy of t in which every cell has its canonical Go type
// and every untyped column has a concrete type inferred from the whole column.
// Inference looks at all rows before any chunking so that every chunk of the
// same table serializes with the same schema:
//   - only booleans: boolean
//   - only integers: integer; integers and floats: float
//   - only datetimes: datetime
//   - strings, all nulls or mixed kinds: string
//
// NaN floats become nulls. Values that are not primitives, and infinite
// floats, fail with a Serialization error.
func Normalize(t *Table) (*Table, error) {
	out := &Table{
		Columns: make([]Column, len(t.Columns)),
		Rows:    make([][]any, len(t.Rows)),
	}
	copy(out.Columns, t.Columns)
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return nil, serializationError(t.Columns, -1, i, fmt.Sprintf("row has %d cells, expected %d", len(row), len(t.Columns)))
		}
		out.Rows[i] = make([]any, len(row))
	}

	for c, col := range t.Columns {
		kinds := make(map[kind]struct{})
		for r, row := range t.Rows {
			v, k, err := canonical(row[c])
			if err != nil {
				return nil, serializationError(t.Columns, c, r, err.Error())
			}
			out.Rows[r][c] = v
			if k != kindNull {
				kinds[k] = struct{}{}
			}
		}

		colType := col.Type
		if colType == TypeAny || colType == "" {
			colType = infer(kinds)
			out.Columns[c].Type = colType
		}

		for r, row := range out.Rows {
			v, err := coerce(row[c], colType)
			if err != nil {
				return nil, serializationError(t.Columns, c, r, err.Error())
			}
			row[c] = v
		}
	}
	return out, nil
}

func serializationError(columns []Column, c, r int, reason string) error {
	msg := fmt.Sprintf("row %d: %s", r, reason)
	if c >= 0 {
		msg = fmt.Sprintf("column %q row %d: %s", columns[c].Name, r, reason)
	}
	return &apierr.Error{Kind: apierr.KindSerialization, Message: msg}
}

func infer(kinds map[kind]struct{}) ColumnType {
	_, hasInt := kinds[kindInteger]
	_, hasFloat := kinds[kindFloat]
	switch {
	case len(kinds) == 1 && hasInt:
		return TypeInteger
	case len(kinds) == 1 && hasFloat, len(kinds) == 2 && hasInt && hasFloat:
		return TypeFloat
	case len(kinds) != 1:
		return TypeString
	}
	if _, ok := kinds[kindBoolean]; ok {
		return TypeBoolean
	}
	if _, ok := kinds[kindDatetime]; ok {
		return TypeDatetime
	}
	return TypeString
}

// canonical maps a cell to nil, string, int64, float64, bool or time.Time
func canonical(v any) (any, kind, error) {
	switch x := v.(type) {
	case nil:
		return nil, kindNull, nil
	case string:
		return x, kindString, nil
	case []byte:
		return string(x), kindString, nil
	case bool:
		return x, kindBoolean, nil
	case int:
		return int64(x), kindInteger, nil
	case int8:
		return int64(x), kindInteger, nil
	case int16:
		return int64(x), kindInteger, nil
	case int32:
		return int64(x), kindInteger, nil
	case int64:
		return x, kindInteger, nil
	case uint8:
		return int64(x), kindInteger, nil
	case uint16:
		return int64(x), kindInteger, nil
	case uint32:
		return int64(x), kindInteger, nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return nil, kindNull, fmt.Errorf("integer %d overflows int64", x)
		}
		return int64(x), kindInteger, nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, kindNull, fmt.Errorf("integer %d overflows int64", x)
		}
		return int64(x), kindInteger, nil
	case float32:
		return canonicalFloat(float64(x))
	case float64:
		return canonicalFloat(x)
	case time.Time:
		return x, kindDatetime, nil
	default:
		return nil, kindNull, fmt.Errorf("unsupported value type %T", v)
	}
}

// canonicalFloat treats NaN as null and rejects infinities
func canonicalFloat(f float64) (any, kind, error) {
	switch {
	case math.IsNaN(f):
		return nil, kindNull, nil
	case math.IsInf(f, 0):
		return nil, kindNull, fmt.Errorf("infinite float %v", f)
	}
	return f, kindFloat, nil
}

// coerce converts a canonical value to colType
func coerce(v any, colType ColumnType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch colType {
	case TypeString:
		return formatValue(v), nil
	case TypeInteger:
		if n, ok := v.(int64); ok {
			return n, nil
		}
	case TypeFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case int64:
			return float64(x), nil
		}
	case TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeDatetime:
		if ts, ok := v.(time.Time); ok {
			return ts, nil
		}
	default:
		return nil, fmt.Errorf("unknown column type: %s", colType)
	}
	return nil, fmt.Errorf("%T value in %s column", v, colType)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
