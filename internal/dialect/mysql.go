package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

// MySQLFallbackType maps every source column to VARCHAR(255) when
// auto-creating a destination table.
func MySQLFallbackType(Column) string { return "VARCHAR(255)" }

type mysqlAdapter struct {
	db     *sql.DB
	policy TypePolicy
	batch  int
}

func openMySQL(dsn string, batch int) (Adapter, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	return &mysqlAdapter{db: db, policy: MySQLFallbackType, batch: batch}, nil
}

func (a *mysqlAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *mysqlAdapter) Close() error { return a.db.Close() }

func myQuote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

// MySQL schemas are databases. An empty schema leaves the identifier
// unqualified so it resolves against the connection's current database.
func myQualify(schema, table string) string {
	if schema == "" {
		return myQuote(table)
	}
	return myQuote(schema) + "." + myQuote(table)
}

// mySchemaExpr is the information_schema filter: an empty bound schema falls
// back to the connection's current database.
const mySchemaExpr = "COALESCE(NULLIF(?, ''), DATABASE())"

func (a *mysqlAdapter) ListSchemas(ctx context.Context) ([]string, error) {
	const query = `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('information_schema', 'mysql', 'performance_schema', 'sys')
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

func (a *mysqlAdapter) ListTables(ctx context.Context, schema string) ([]TableInfo, error) {
	var exists bool
	err := a.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = "+mySchemaExpr+")",
		schema).Scan(&exists)
	if err != nil {
		return nil, errors.Wrap(err, "check schema")
	}
	if !exists {
		return nil, errors.Wrapf(ErrSchemaNotFound, "%q", schema)
	}

	query := `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_schema = ` + mySchemaExpr + ` AND table_type = 'BASE TABLE'
		ORDER BY table_name`
	rows, err := a.db.QueryContext(ctx, query, schema)
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

func (a *mysqlAdapter) ListColumns(ctx context.Context, schema, table string) ([]Column, error) {
	query := `
		SELECT column_name, column_type, (is_nullable = 'YES'), ordinal_position
		FROM information_schema.columns
		WHERE table_schema = ` + mySchemaExpr + ` AND table_name = ?
		ORDER BY ordinal_position`
	rows, err := a.db.QueryContext(ctx, query, schema, table)
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
		return nil, errors.Wrapf(ErrTableNotFound, "%s.%s", schema, table)
	}
	return cols, nil
}

func (a *mysqlAdapter) ReadRows(ctx context.Context, schema, table string) (RowReader, error) {
	rows, err := a.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", myQualify(schema, table)))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s.%s", schema, table)
	}
	return newSQLRowReader(rows)
}

func (a *mysqlAdapter) EnsureTable(ctx context.Context, schema, table string, cols []Column) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = ` + mySchemaExpr + ` AND table_name = ?)`
	var exists bool
	if err := a.db.QueryRowContext(ctx, query, schema, table).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "check table")
	}
	if exists {
		return false, nil
	}

	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = fmt.Sprintf("%s %s", myQuote(c.Name), a.policy(c))
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", myQualify(schema, table), strings.Join(defs, ", "))
	if _, err := a.db.ExecContext(ctx, ddl); err != nil {
		return false, errors.Wrapf(err, "create %s.%s", schema, table)
	}
	return true, nil
}

func (a *mysqlAdapter) Truncate(ctx context.Context, schema, table string) error {
	_, err := a.db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", myQualify(schema, table)))
	return errors.Wrapf(err, "truncate %s.%s", schema, table)
}

func (a *mysqlAdapter) WriteRows(ctx context.Context, schema, table string, cols []Column, rows RowReader) (int64, error) {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = myQuote(c.Name)
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", myQualify(schema, table), strings.Join(names, ", "))
	tuple := "(?" + strings.Repeat(", ?", len(cols)-1) + ")"

	var (
		written int64
		args    []interface{}
		count   int
	)
	flush := func() error {
		if count == 0 {
			return nil
		}
		stmt := prefix + tuple + strings.Repeat(", "+tuple, count-1)
		if _, err := a.db.ExecContext(ctx, stmt, args...); err != nil {
			return errors.Wrap(err, "insert batch")
		}
		written += int64(count)
		args = args[:0]
		count = 0
		return nil
	}

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return written, errors.Wrap(err, "read row")
		}
		args = append(args, vals...)
		count++

		if count >= a.batch {
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
