// Package introspect answers schema-discovery questions against a live
// connection. It is a stateless pass-through over a dialect adapter: no
// caching (the remote schema can change between calls and staleness would be
// worse than the extra round trip) and no retries (a failed call surfaces
// immediately).
package introspect

import (
	"context"

	"github.com/pipecraft/pipecraft-api/internal/dialect"
)

func Schemas(ctx context.Context, adapter dialect.Adapter) ([]string, error) {
	return adapter.ListSchemas(ctx)
}

func Tables(ctx context.Context, adapter dialect.Adapter, schema string) ([]dialect.TableInfo, error) {
	return adapter.ListTables(ctx, schema)
}

func Columns(ctx context.Context, adapter dialect.Adapter, schema, table string) ([]dialect.Column, error) {
	return adapter.ListColumns(ctx, schema, table)
}
