package columnar

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

// Compression specifies the page compression of written files.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionSnappy
	CompressionGzip
	CompressionZstd
)

// WriteOption configures WriteFile.
type WriteOption func(*writeConfig)

type writeConfig struct {
	compression  Compression
	rowGroupSize int
}

// WithCompression sets the page compression. Default: snappy.
func WithCompression(c Compression) WriteOption {
	return func(cfg *writeConfig) {
		cfg.compression = c
	}
}

// WithRowGroupSize caps the number of rows per row group. Zero writes a
// single row group.
func WithRowGroupSize(n int) WriteOption {
	return func(cfg *writeConfig) {
		cfg.rowGroupSize = n
	}
}

func (cfg writeConfig) compressionOption() parquet.WriterOption {
	switch cfg.compression {
	case CompressionSnappy:
		return parquet.Compression(&parquet.Snappy)
	case CompressionGzip:
		return parquet.Compression(&parquet.Gzip)
	case CompressionZstd:
		return parquet.Compression(&parquet.Zstd)
	default:
		return parquet.Compression(&parquet.Uncompressed)
	}
}

// WriteFile encodes records as a Parquet file with the given schema.
//
// Records are written in the order given. A Source opened over the file
// expects them sorted by its sort column.
func WriteFile(w io.Writer, schema Schema, records []Record, opts ...WriteOption) error {
	if err := schema.Validate(); err != nil {
		return err
	}
	cfg := writeConfig{compression: CompressionSnappy}
	for _, opt := range opts {
		opt(&cfg)
	}

	pqSchema := schema.parquetSchema()
	fields := make([]Field, 0, len(schema.Fields))
	for _, f := range pqSchema.Fields() {
		field, _ := schema.Field(f.Name())
		fields = append(fields, field)
	}

	rows := make([]parquet.Row, len(records))
	for i, record := range records {
		row, err := recordToRow(fields, record, i)
		if err != nil {
			return err
		}
		rows[i] = row
	}

	groupSize := cfg.rowGroupSize
	if groupSize <= 0 {
		groupSize = max(len(rows), 1)
	}

	pqWriter := parquet.NewWriter(w, pqSchema, cfg.compressionOption())
	for start := 0; start < len(rows); start += groupSize {
		end := min(start+groupSize, len(rows))
		if _, err := pqWriter.WriteRows(rows[start:end]); err != nil {
			_ = pqWriter.Close()
			return fmt.Errorf("columnar: write rows %d-%d: %w", start, end, err)
		}
		if err := pqWriter.Flush(); err != nil {
			_ = pqWriter.Close()
			return fmt.Errorf("columnar: flush row group: %w", err)
		}
	}
	if err := pqWriter.Close(); err != nil {
		return fmt.Errorf("columnar: close writer: %w", err)
	}
	return nil
}

// recordToRow converts a record to a row whose values follow the leaf
// column order of the schema.
func recordToRow(fields []Field, record Record, index int) (parquet.Row, error) {
	row := make(parquet.Row, len(fields))
	for i, field := range fields {
		val, exists := record[field.Name]
		if !exists || val == nil {
			if !field.Nullable {
				return nil, fmt.Errorf("%w: record %d missing required field %q", ErrSchemaViolation, index, field.Name)
			}
			row[i] = parquet.NullValue().Level(0, 0, i)
			continue
		}

		pqVal, err := toValue(val, field, index)
		if err != nil {
			return nil, err
		}
		defLevel := 0
		if field.Nullable {
			defLevel = 1
		}
		row[i] = pqVal.Level(0, defLevel, i)
	}
	for name := range record {
		if _, ok := fieldIndex(fields, name); !ok {
			return nil, fmt.Errorf("%w: record %d has unknown field %q", ErrSchemaViolation, index, name)
		}
	}
	return row, nil
}

func fieldIndex(fields []Field, name string) (int, bool) {
	for i, f := range fields {
		if f.Name == name {
			return i, true
		}
	}
	return 0, false
}
