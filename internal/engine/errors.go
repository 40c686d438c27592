package engine

import "github.com/pkg/errors"

// Code classifies a run failure. The code prefixes the error_message stored
// on the terminal run so an operator can tell a configuration mistake
// (schema_not_found) from a transient outage (connectivity) at a glance.
type Code string

const (
	CodeConnectionResolution Code = "connection_resolution"
	CodeConnectivity         Code = "connectivity"
	CodeSchemaNotFound       Code = "schema_not_found"
	CodeTableNotFound        Code = "table_not_found"
	CodeEnsureTable          Code = "ensure_table"
	CodeTruncate             Code = "truncate"
	CodeWrite                Code = "write"
	CodeBusy                 Code = "busy"
)

// ErrBusy is returned by Run when another run holds the destination lock.
// The rejected run is still recorded as failed in the ledger.
var ErrBusy = errors.New("destination is busy with another run")

type RunError struct {
	Code Code
	Err  error
}

func (e *RunError) Error() string { return string(e.Code) + ": " + e.Err.Error() }
func (e *RunError) Unwrap() error { return e.Err }
