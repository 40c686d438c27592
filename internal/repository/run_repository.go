package repository

import (
	"database/sql"
	"time"

	"github.com/pipecraft/pipecraft-api/internal/models"
	"github.com/pkg/errors"
)

// RunRepository is the append-only run ledger. A run is created pending,
// marked running once, finished exactly once with a terminal status, and
// never touched again.
type RunRepository interface {
	Create(syncID int64) (*models.SyncRun, error)
	MarkRunning(runID int64) error
	Finish(runID int64, status string, rowCount *int64, errorMessage *string) (*models.SyncRun, error)
	Get(runID int64) (*models.SyncRun, error)
	ListBySync(syncID int64, limit int) ([]*models.SyncRun, error)
	// SweepStale marks runs stuck in a non-terminal state longer than the
	// threshold as failed. Run once at process startup: with a synchronous
	// engine, a non-terminal run older than any plausible transfer means the
	// process died mid-run.
	SweepStale(olderThan time.Duration) (int64, error)
}

type runRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) RunRepository {
	return &runRepository{db: db}
}

const runColumns = "id, sync_id, status, started_at, ended_at, row_count, error_message"

func scanRun(row interface{ Scan(...interface{}) error }, run *models.SyncRun) error {
	var (
		endedAt  sql.NullTime
		rowCount sql.NullInt64
		errMsg   sql.NullString
	)
	if err := row.Scan(&run.ID, &run.SyncID, &run.Status, &run.StartedAt, &endedAt, &rowCount, &errMsg); err != nil {
		return err
	}
	if endedAt.Valid {
		run.EndedAt = &endedAt.Time
	}
	if rowCount.Valid {
		run.RowCount = &rowCount.Int64
	}
	if errMsg.Valid {
		run.ErrorMessage = &errMsg.String
	}
	return nil
}

func (r *runRepository) Create(syncID int64) (*models.SyncRun, error) {
	run := &models.SyncRun{SyncID: syncID, Status: models.RunStatusPending}
	err := r.db.QueryRow(
		"INSERT INTO pipecraft.sync_runs (sync_id, status, started_at) VALUES ($1, $2, NOW()) RETURNING id, started_at",
		syncID, run.Status,
	).Scan(&run.ID, &run.StartedAt)
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (r *runRepository) MarkRunning(runID int64) error {
	res, err := r.db.Exec(
		"UPDATE pipecraft.sync_runs SET status = $1 WHERE id = $2 AND status = $3",
		models.RunStatusRunning, runID, models.RunStatusPending,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.Wrapf(ErrNotFound, "pending run %d", runID)
	}
	return nil
}

func (r *runRepository) Finish(runID int64, status string, rowCount *int64, errorMessage *string) (*models.SyncRun, error) {
	if !models.TerminalRunStatus(status) {
		return nil, errors.Errorf("refusing to finish run %d with non-terminal status %q", runID, status)
	}
	res, err := r.db.Exec(
		`UPDATE pipecraft.sync_runs
		 SET status = $1, ended_at = NOW(), row_count = $2, error_message = $3
		 WHERE id = $4 AND status IN ($5, $6)`,
		status, rowCount, errorMessage, runID, models.RunStatusPending, models.RunStatusRunning,
	)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, errors.Errorf("run %d is already terminal or does not exist", runID)
	}
	return r.Get(runID)
}

func (r *runRepository) Get(runID int64) (*models.SyncRun, error) {
	run := &models.SyncRun{}
	row := r.db.QueryRow("SELECT "+runColumns+" FROM pipecraft.sync_runs WHERE id = $1", runID)
	if err := scanRun(row, run); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(ErrNotFound, "run %d", runID)
		}
		return nil, err
	}
	return run, nil
}

func (r *runRepository) ListBySync(syncID int64, limit int) ([]*models.SyncRun, error) {
	rows, err := r.db.Query(
		"SELECT "+runColumns+" FROM pipecraft.sync_runs WHERE sync_id = $1 ORDER BY started_at DESC, id DESC LIMIT $2",
		syncID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*models.SyncRun, 0, limit)
	for rows.Next() {
		run := &models.SyncRun{}
		if err := scanRun(rows, run); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *runRepository) SweepStale(olderThan time.Duration) (int64, error) {
	msg := "interrupted: run abandoned by an earlier process"
	res, err := r.db.Exec(
		`UPDATE pipecraft.sync_runs
		 SET status = $1, ended_at = NOW(), error_message = $2
		 WHERE status IN ($3, $4) AND started_at < NOW() - ($5 * INTERVAL '1 second')`,
		models.RunStatusFailed, msg, models.RunStatusPending, models.RunStatusRunning,
		olderThan.Seconds(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
