package models

import "time"

// Run statuses. pending and running are transient; success and failed are
// terminal and never transition further.
const (
	RunStatusPending = "pending"
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

func TerminalRunStatus(s string) bool {
	return s == RunStatusSuccess || s == RunStatusFailed
}

type SyncRun struct {
	ID           int64      `json:"id" db:"id"`
	SyncID       int64      `json:"sync_id" db:"sync_id"`
	Status       string     `json:"status" db:"status"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	EndedAt      *time.Time `json:"ended_at" db:"ended_at"`
	RowCount     *int64     `json:"row_count" db:"row_count"`
	ErrorMessage *string    `json:"error_message" db:"error_message"`
}
