package parquetread

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
)

const readBatchSize = 1024

type column struct {
	name     string
	repeated bool
	// toTime converts an INT64 timestamp column; nil for other columns.
	toTime func(int64) time.Time
}

// Reader reads a flat Parquet file into row mappings keyed by column name.
type Reader struct {
	file    *os.File
	pf      *parquet.File
	columns []column
}

// Open opens a Parquet file and resolves its leaf columns.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat parquet file: %w", err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	schema := pf.Schema()
	paths := schema.Columns()
	cols := make([]column, len(paths))
	for _, path := range paths {
		leaf, ok := schema.Lookup(path...)
		if !ok {
			f.Close()
			return nil, fmt.Errorf("parquet column %s not found in schema", strings.Join(path, "."))
		}
		cols[leaf.ColumnIndex] = column{
			name:     strings.Join(path, "."),
			repeated: leaf.MaxRepetitionLevel > 0,
			toTime:   timestampConverter(leaf.Node),
		}
	}
	return &Reader{file: f, pf: pf, columns: cols}, nil
}

func timestampConverter(node parquet.Node) func(int64) time.Time {
	lt := node.Type().LogicalType()
	if lt == nil || lt.Timestamp == nil {
		return nil
	}
	unit := lt.Timestamp.Unit
	switch {
	case unit.Millis != nil:
		return func(n int64) time.Time { return time.UnixMilli(n).UTC() }
	case unit.Micros != nil:
		return func(n int64) time.Time { return time.UnixMicro(n).UTC() }
	case unit.Nanos != nil:
		return func(n int64) time.Time { return time.Unix(0, n).UTC() }
	}
	return nil
}

// NumRows returns the total number of rows in the Parquet file.
func (r *Reader) NumRows() int64 {
	return r.pf.NumRows()
}

// Schema returns the Parquet schema for validation.
func (r *Reader) Schema() *parquet.Schema {
	return r.pf.Schema()
}

// Columns returns the leaf column names in file order. Nested columns are
// named by their dotted path.
func (r *Reader) Columns() []string {
	names := make([]string, len(r.columns))
	for i, c := range r.columns {
		names[i] = c.name
	}
	return names
}

// ReadAll reads up to limit rows (all rows when limit <= 0). Repeated
// columns yield []any values.
func (r *Reader) ReadAll(ctx context.Context, limit int) ([]map[string]any, error) {
	var out []map[string]any
	buf := make([]parquet.Row, readBatchSize)

	for gi, rg := range r.pf.RowGroups() {
		rows := rg.Rows()
		for {
			if err := ctx.Err(); err != nil {
				rows.Close()
				return nil, err
			}
			n, err := rows.ReadRows(buf)
			for i := 0; i < n; i++ {
				out = append(out, r.rowMap(buf[i]))
				if limit > 0 && len(out) >= limit {
					rows.Close()
					return out, nil
				}
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("read row group %d: %w", gi, err)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("close row group %d: %w", gi, err)
		}
	}
	return out, nil
}

func (r *Reader) rowMap(row parquet.Row) map[string]any {
	m := make(map[string]any, len(r.columns))
	for _, v := range row {
		idx := v.Column()
		if idx < 0 || idx >= len(r.columns) {
			continue
		}
		col := r.columns[idx]
		val := convert(v, col)
		if !col.repeated {
			m[col.name] = val
			continue
		}
		list, _ := m[col.name].([]any)
		if val != nil {
			list = append(list, val)
		}
		m[col.name] = list
	}
	return m
}

func convert(v parquet.Value, col column) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		if col.toTime != nil {
			return col.toTime(v.Int64())
		}
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}

// Close releases all resources.
func (r *Reader) Close() error {
	return r.file.Close()
}
