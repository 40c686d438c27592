package dialect

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Introspection failures the caller can act on. Adapters wrap these with the
// offending identifier; callers match with errors.Is.
var (
	ErrSchemaNotFound = errors.New("schema not found")
	ErrTableNotFound  = errors.New("table not found")
)

// TableInfo identifies a base table within a schema.
type TableInfo struct {
	Schema string `json:"schema"`
	Name   string `json:"table"`
}

// Column describes one column as reported by information_schema, in ordinal
// order.
type Column struct {
	Name            string `json:"name"`
	NativeType      string `json:"native_type"`
	Nullable        bool   `json:"nullable"`
	OrdinalPosition int    `json:"ordinal_position"`
}

// TypePolicy chooses the native destination type for a source column when a
// table has to be created. The default policies ignore the source type
// entirely and map everything to a single wide text type; a smarter mapping
// can be swapped in without touching the adapters or the engine.
type TypePolicy func(col Column) string

// RowReader streams rows from a single read. A reader is consumed in order
// exactly once; re-reading a table means issuing a fresh ReadRows call.
type RowReader interface {
	Next() bool
	Values() ([]interface{}, error)
	Err() error
	Close() error
}

// Adapter hides one engine's SQL behind a uniform capability set. An adapter
// owns its connection handle for the duration of one run (or one metadata
// request) and must be closed on every exit path.
type Adapter interface {
	Ping(ctx context.Context) error
	ListSchemas(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context, schema string) ([]TableInfo, error)
	ListColumns(ctx context.Context, schema, table string) ([]Column, error)
	ReadRows(ctx context.Context, schema, table string) (RowReader, error)
	// EnsureTable creates the table with the adapter's TypePolicy if it does
	// not exist. An existing table is trusted as-is; no reconciliation.
	EnsureTable(ctx context.Context, schema, table string, cols []Column) (created bool, err error)
	Truncate(ctx context.Context, schema, table string) error
	// WriteRows drains the reader into the table in batches and reports the
	// exact number of rows written, including the partial count when a batch
	// fails midway.
	WriteRows(ctx context.Context, schema, table string, cols []Column, rows RowReader) (int64, error)
	Close() error
}

// OpenFunc matches Open so the engine can be handed a fake factory in tests.
type OpenFunc func(dbType, dsn string, writeBatchSize int) (Adapter, error)

const defaultWriteBatchSize = 500

// Open returns the adapter for the given dialect. writeBatchSize <= 0 selects
// the default.
func Open(dbType, dsn string, writeBatchSize int) (Adapter, error) {
	if writeBatchSize <= 0 {
		writeBatchSize = defaultWriteBatchSize
	}
	switch dbType {
	case "postgres":
		return openPostgres(dsn, writeBatchSize)
	case "mysql":
		return openMySQL(dsn, writeBatchSize)
	default:
		return nil, errors.Errorf("unsupported db_type: %s", dbType)
	}
}

// sqlRowReader adapts *sql.Rows to RowReader, scanning every column into an
// interface{} so values round-trip to the destination driver untouched.
type sqlRowReader struct {
	rows *sql.Rows
	cols int
}

func newSQLRowReader(rows *sql.Rows) (*sqlRowReader, error) {
	names, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	return &sqlRowReader{rows: rows, cols: len(names)}, nil
}

func (r *sqlRowReader) Next() bool { return r.rows.Next() }

func (r *sqlRowReader) Values() ([]interface{}, error) {
	vals := make([]interface{}, r.cols)
	ptrs := make([]interface{}, r.cols)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return vals, nil
}

func (r *sqlRowReader) Err() error   { return r.rows.Err() }
func (r *sqlRowReader) Close() error { return r.rows.Close() }
