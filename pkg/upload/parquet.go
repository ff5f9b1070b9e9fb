package upload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	writerfile "github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/common"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/controlplane-com/pool-orchestrator/pkg/dataset"
	"github.com/controlplane-com/pool-orchestrator/pkg/shared/apierr"
)

const parquetParallelism = 4

// Encode serializes a normalized table into one parquet file. Every column is
// OPTIONAL so nulls survive; pages are SNAPPY compressed.
func Encode(t *dataset.Table) ([]byte, error) {
	schemaDef, err := buildParquetSchema(t.Columns)
	if err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	pfw := writerfile.NewWriterFile(buf)
	pw, err := writer.NewJSONWriter(schemaDef, pfw, parquetParallelism)
	if err != nil {
		return nil, serializationError("failed to create parquet writer: %v", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, row := range t.Rows {
		line, err := projectParquetRow(t.Columns, row)
		if err != nil {
			_ = pw.WriteStop()
			_ = pfw.Close()
			return nil, serializationError("row %d: %v", i, err)
		}
		if err := pw.Write(line); err != nil {
			_ = pw.WriteStop()
			_ = pfw.Close()
			return nil, serializationError("row %d: %v", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = pfw.Close()
		return nil, serializationError("failed to finish parquet file: %v", err)
	}
	_ = pfw.Close()

	return buf.Bytes(), nil
}

func serializationError(format string, args ...any) error {
	return &apierr.Error{Kind: apierr.KindSerialization, Message: fmt.Sprintf(format, args...)}
}

func buildParquetSchema(columns []dataset.Column) (string, error) {
	fields := make([]map[string]string, 0, len(columns))
	// the writer addresses columns by an exported variant of their name
	internal := make(map[string]string, len(columns))
	for _, c := range columns {
		if c.Name == "" || strings.ContainsAny(c.Name, ",=") {
			return "", serializationError("column name %q cannot be written to parquet", c.Name)
		}
		key := common.HeadToUpper(common.StringToVariableName(c.Name))
		if prev, ok := internal[key]; ok {
			return "", serializationError("columns %q and %q collide in parquet", prev, c.Name)
		}
		internal[key] = c.Name
		fields = append(fields, map[string]string{
			"Tag": fmt.Sprintf("name=%s, %s, repetitiontype=OPTIONAL", c.Name, parquetPhysicalType(c.Type)),
		})
	}
	out := map[string]any{
		"Tag":    "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": fields,
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", serializationError("failed to build parquet schema: %v", err)
	}
	return string(b), nil
}

func parquetPhysicalType(t dataset.ColumnType) string {
	switch t {
	case dataset.TypeBoolean:
		return "type=BOOLEAN"
	case dataset.TypeInteger:
		return "type=INT64"
	case dataset.TypeFloat:
		return "type=DOUBLE"
	case dataset.TypeDatetime:
		return "type=INT64, convertedtype=TIMESTAMP_MILLIS"
	default:
		return "type=BYTE_ARRAY, convertedtype=UTF8"
	}
}

// projectParquetRow renders one row as the JSON document the parquet JSON
// writer consumes. Datetimes are written as Unix milliseconds.
func projectParquetRow(columns []dataset.Column, row []any) (string, error) {
	rec := make(map[string]any, len(columns))
	for i, c := range columns {
		v := row[i]
		if ts, ok := v.(time.Time); ok {
			v = ts.UnixMilli()
		}
		rec[c.Name] = v
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
