package dataset

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/controlplane-com/pool-orchestrator/pkg/shared/apierr"
)

func TestNewCSVReader(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		header     bool
		wantHeader []string
		wantErr    bool
	}{
		{
			name:  "without header",
			input: "1,test,value\n",
		},
		{
			name:       "with header",
			input:      "id,name,value\n1,test,value\n",
			header:     true,
			wantHeader: []string{"id", "name", "value"},
		},
		{
			name:    "empty file with header",
			input:   "",
			header:  true,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewCSVReader(strings.NewReader(tt.input), tt.header, ',')
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.Join(r.Header(), ",") != strings.Join(tt.wantHeader, ",") {
				t.Errorf("Header() = %v, want %v", r.Header(), tt.wantHeader)
			}
		})
	}
}

func TestCSVReaderLineNumbers(t *testing.T) {
	r, err := NewCSVReader(strings.NewReader("h\na\nb\n"), true, ',')
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []int{2, 3} {
		_, line, err := r.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if line != want {
			t.Errorf("line = %d, want %d", line, want)
		}
	}
	if _, _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestFromCSVWithHeader(t *testing.T) {
	input := "case,activity,done\nc1,create,true\nc2,approve,\n"
	table, err := FromCSV(strings.NewReader(input), CSVOptions{Header: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := strings.Join(table.ColumnNames(), ","); got != "case,activity,done" {
		t.Errorf("columns = %s", got)
	}
	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}
	for _, c := range table.Columns {
		if c.Type != TypeAny {
			t.Errorf("column %q type = %s, want any", c.Name, c.Type)
		}
	}
	if table.Rows[1][2] != nil {
		t.Errorf("empty cell = %#v, want nil", table.Rows[1][2])
	}
}

func TestFromCSVWithColumns(t *testing.T) {
	columns := []Column{
		{Name: "id", Type: TypeInteger},
		{Name: "price", Type: TypeFloat},
		{Name: "active", Type: TypeBoolean},
		{Name: "created", Type: TypeDatetime},
		{Name: "note", Type: TypeString},
	}
	input := "1\t19.99\tyes\t2024-01-15\t hi \n2\t\tno\t1700000000\t\n"

	table, err := FromCSV(strings.NewReader(input), CSVOptions{Delimiter: '\t', Columns: columns})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := table.Rows[0]
	if first[0] != int64(1) || first[1] != 19.99 || first[2] != true || first[4] != " hi " {
		t.Errorf("first row = %#v", first)
	}
	if want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC); !first[3].(time.Time).Equal(want) {
		t.Errorf("created = %v, want %v", first[3], want)
	}

	second := table.Rows[1]
	if second[1] != nil {
		t.Errorf("empty float = %#v, want nil", second[1])
	}
	if second[4] != "" {
		t.Errorf("empty string = %#v, want \"\"", second[4])
	}
	if !second[3].(time.Time).Equal(time.Unix(1700000000, 0)) {
		t.Errorf("unix datetime = %v", second[3])
	}
}

func TestFromCSVErrors(t *testing.T) {
	columns := []Column{{Name: "id", Type: TypeInteger}, {Name: "name", Type: TypeString}}

	tests := []struct {
		name   string
		input  string
		opts   CSVOptions
		errMsg string
	}{
		{
			name:   "field count mismatch",
			input:  "1,a\n2\n",
			opts:   CSVOptions{Columns: columns},
			errMsg: "line 2: expected 2 columns, got 1",
		},
		{
			name:   "bad integer",
			input:  "x,a\n",
			opts:   CSVOptions{Columns: columns},
			errMsg: `line 1: column "id": invalid integer`,
		},
		{
			name:   "header line offset",
			input:  "id,name\n1,a\nbad,b\n",
			opts:   CSVOptions{Header: true, Columns: columns},
			errMsg: "line 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromCSV(strings.NewReader(tt.input), tt.opts)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Errorf("expected *ParseError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error %q does not contain %q", err, tt.errMsg)
			}
		})
	}
}

func TestFromCSVNeedsColumns(t *testing.T) {
	_, err := FromCSV(strings.NewReader("1,2\n"), CSVOptions{})
	if !errors.Is(err, apierr.ErrInvalidConfig) {
		t.Errorf("expected invalid config error, got %v", err)
	}
}

func TestParseValueBool(t *testing.T) {
	tests := []struct {
		in      string
		want    any
		wantErr bool
	}{
		{"true", true, false},
		{"Y", true, false},
		{"1", true, false},
		{"off", false, false},
		{"", nil, false},
		{"maybe", nil, true},
	}
	for _, tt := range tests {
		got, err := ParseValue(tt.in, TypeBoolean)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseValue(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseValue(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}
