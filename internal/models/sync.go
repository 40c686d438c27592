package models

import (
	"strings"
	"time"
)

// Write modes. Only truncate_insert is implemented; the enum exists so
// append/upsert can be added without changing the wire format.
const (
	WriteModeTruncateInsert = "truncate_insert"
)

func ValidWriteMode(m string) bool {
	return m == WriteModeTruncateInsert
}

type Sync struct {
	ID                 int64   `json:"id" db:"id"`
	Name               string  `json:"name" db:"name"` // unique
	Description        *string `json:"description" db:"description"`
	SourceConnectionID int64   `json:"source_connection_id" db:"source_connection_id"`
	SourceTable        string  `json:"source_table" db:"source_table"` // "schema.table" or bare table name
	DestConnectionID   int64   `json:"dest_connection_id" db:"dest_connection_id"`
	DestSchema         *string `json:"dest_schema" db:"dest_schema"`
	DestTable          string  `json:"dest_table" db:"dest_table"`
	WriteMode          string  `json:"write_mode" db:"write_mode"`

	SourceConnection Connection `json:"source_connection"`
	DestConnection   Connection `json:"dest_connection"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SplitSourceTable splits source_table on the first dot. A bare table name
// yields an empty schema, which the dialect resolves to its default
// namespace. Identifiers containing dots are not supported.
func (s *Sync) SplitSourceTable() (schema, table string) {
	if i := strings.Index(s.SourceTable, "."); i >= 0 {
		return s.SourceTable[:i], s.SourceTable[i+1:]
	}
	return "", s.SourceTable
}
