package dataset

import (
	"fmt"
	"os"

	"github.com/controlplane-com/pool-orchestrator/pkg/shared/types"
	"gopkg.in/yaml.v3"
)

// ColumnType is the client-side type of a column
type ColumnType string

const (
	TypeString   ColumnType = "string"
	TypeInteger  ColumnType = "integer"
	TypeFloat    ColumnType = "float"
	TypeBoolean  ColumnType = "boolean"
	TypeDatetime ColumnType = "datetime"
	// TypeAny marks an untyped column; Normalize infers its type from the values
	TypeAny ColumnType = "any"
)

// ValidTypes maps type strings to ColumnType constants.
var ValidTypes = map[string]ColumnType{
	"string":   TypeString,
	"integer":  TypeInteger,
	"float":    TypeFloat,
	"boolean":  TypeBoolean,
	"datetime": TypeDatetime,
	"any":      TypeAny,
}

// Wire returns the column type the platform declares for t. Untyped columns
// are pushed as strings.
func (t ColumnType) Wire() types.ColumnType {
	switch t {
	case TypeInteger:
		return types.ColumnTypeInteger
	case TypeFloat:
		return types.ColumnTypeFloat
	case TypeBoolean:
		return types.ColumnTypeBoolean
	case TypeDatetime:
		return types.ColumnTypeDatetime
	default:
		return types.ColumnTypeString
	}
}

// ColumnConfig is the column layout of a CSV dataset.
type ColumnConfig struct {
	Columns []Column `yaml:"columns"`
}

// LoadColumnConfig reads and parses a YAML column configuration file.
func LoadColumnConfig(path string) (*ColumnConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg ColumnConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the configuration is valid. An empty type means TypeAny.
func (c *ColumnConfig) Validate() error {
	if len(c.Columns) == 0 {
		return fmt.Errorf("config error: no columns defined")
	}

	seen := make(map[string]struct{}, len(c.Columns))
	for i, col := range c.Columns {
		if col.Name == "" {
			return fmt.Errorf("config error: column %d has empty name", i)
		}
		if _, dup := seen[col.Name]; dup {
			return fmt.Errorf("config error: column %q defined twice", col.Name)
		}
		seen[col.Name] = struct{}{}

		if col.Type == "" {
			c.Columns[i].Type = TypeAny
			continue
		}
		if _, ok := ValidTypes[string(col.Type)]; !ok {
			return fmt.Errorf("config error: column %q has unknown type %q", col.Name, col.Type)
		}
	}

	return nil
}
