package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// PostgresFallbackType maps every source column to TEXT when auto-creating a
// destination table.
func PostgresFallbackType(Column) string { return "TEXT" }

type postgresAdapter struct {
	db     *sql.DB
	policy TypePolicy
	batch  int
}

func openPostgres(dsn string, batch int) (Adapter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	return &postgresAdapter{db: db, policy: PostgresFallbackType, batch: batch}, nil
}

func (a *postgresAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *postgresAdapter) Close() error { return a.db.Close() }

func pgQuote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// An empty schema means the default namespace.
func pgSchema(schema string) string {
	if schema == "" {
		return "public"
	}
	return schema
}

func pgQualify(schema, table string) string {
	return pgQuote(pgSchema(schema)) + "." + pgQuote(table)
}

func (a *postgresAdapter) ListSchemas(ctx context.Context) ([]string, error) {
	const query = `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY schema_name`
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "list schemas")
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		schemas = append(schemas, name)
	}
	return schemas, rows.Err()
}

func (a *postgresAdapter) schemaExists(ctx context.Context, schema string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`
	var exists bool
	err := a.db.QueryRowContext(ctx, query, pgSchema(schema)).Scan(&exists)
	return exists, err
}

func (a *postgresAdapter) ListTables(ctx context.Context, schema string) ([]TableInfo, error) {
	exists, err := a.schemaExists(ctx, schema)
	if err != nil {
		return nil, errors.Wrap(err, "check schema")
	}
	if !exists {
		return nil, errors.Wrapf(ErrSchemaNotFound, "%q", pgSchema(schema))
	}

	const query = `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`
	rows, err := a.db.QueryContext(ctx, query, pgSchema(schema))
	if err != nil {
		return nil, errors.Wrap(err, "list tables")
	}
	defer rows.Close()

	var tables []TableInfo
	for rows.Next() {
		var t TableInfo
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (a *postgresAdapter) ListColumns(ctx context.Context, schema, table string) ([]Column, error) {
	const query = `
		SELECT column_name, data_type, (is_nullable = 'YES'), ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`
	rows, err := a.db.QueryContext(ctx, query, pgSchema(schema), table)
	if err != nil {
		return nil, errors.Wrap(err, "list columns")
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.NativeType, &c.Nullable, &c.OrdinalPosition); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, errors.Wrapf(ErrTableNotFound, "%s.%s", pgSchema(schema), table)
	}
	return cols, nil
}

func (a *postgresAdapter) ReadRows(ctx context.Context, schema, table string) (RowReader, error) {
	rows, err := a.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", pgQualify(schema, table)))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s.%s", pgSchema(schema), table)
	}
	return newSQLRowReader(rows)
}

func (a *postgresAdapter) EnsureTable(ctx context.Context, schema, table string, cols []Column) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)`
	var exists bool
	if err := a.db.QueryRowContext(ctx, query, pgSchema(schema), table).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "check table")
	}
	if exists {
		return false, nil
	}

	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = fmt.Sprintf("%s %s", pgQuote(c.Name), a.policy(c))
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", pgQualify(schema, table), strings.Join(defs, ", "))
	if _, err := a.db.ExecContext(ctx, ddl); err != nil {
		return false, errors.Wrapf(err, "create %s.%s", pgSchema(schema), table)
	}
	return true, nil
}

func (a *postgresAdapter) Truncate(ctx context.Context, schema, table string) error {
	_, err := a.db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", pgQualify(schema, table)))
	return errors.Wrapf(err, "truncate %s.%s", pgSchema(schema), table)
}

func (a *postgresAdapter) WriteRows(ctx context.Context, schema, table string, cols []Column, rows RowReader) (int64, error) {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = pgQuote(c.Name)
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", pgQualify(schema, table), strings.Join(names, ", "))

	var (
		written int64
		args    []interface{}
		tuples  []string
	)
	flush := func() error {
		if len(tuples) == 0 {
			return nil
		}
		if _, err := a.db.ExecContext(ctx, prefix+strings.Join(tuples, ", "), args...); err != nil {
			return errors.Wrap(err, "insert batch")
		}
		written += int64(len(tuples))
		args = args[:0]
		tuples = tuples[:0]
		return nil
	}

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return written, errors.Wrap(err, "read row")
		}
		placeholders := make([]string, len(vals))
		for i := range vals {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+i+1)
		}
		tuples = append(tuples, "("+strings.Join(placeholders, ", ")+")")
		args = append(args, vals...)

		if len(tuples) >= a.batch {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return written, errors.Wrap(err, "read rows")
	}
	if err := flush(); err != nil {
		return written, err
	}
	return written, nil
}
