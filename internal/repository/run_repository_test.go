package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pipecraft/pipecraft-api/internal/models"
)

func newRunRepoMock(t *testing.T) (RunRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRunRepository(db), mock
}

func TestRunCreatePending(t *testing.T) {
	repo, mock := newRunRepoMock(t)
	started := time.Now()
	mock.ExpectQuery("INSERT INTO pipecraft.sync_runs").
		WithArgs(int64(7), models.RunStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id", "started_at"}).AddRow(int64(42), started))

	run, err := repo.Create(7)
	if err != nil {
		t.Fatal(err)
	}
	if run.ID != 42 || run.SyncID != 7 || run.Status != models.RunStatusPending {
		t.Errorf("unexpected run: %+v", run)
	}
	if run.EndedAt != nil || run.RowCount != nil || run.ErrorMessage != nil {
		t.Errorf("pending run must have no terminal fields: %+v", run)
	}
}

func TestRunMarkRunningRequiresPending(t *testing.T) {
	repo, mock := newRunRepoMock(t)
	mock.ExpectExec("UPDATE pipecraft.sync_runs").
		WithArgs(models.RunStatusRunning, int64(42), models.RunStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.MarkRunning(42); err == nil {
		t.Error("expected error when no pending run matches")
	}
}

func TestRunFinishRejectsNonTerminalStatus(t *testing.T) {
	repo, _ := newRunRepoMock(t)
	if _, err := repo.Finish(42, models.RunStatusRunning, nil, nil); err == nil {
		t.Error("expected error for non-terminal status")
	}
}

func TestRunFinishSuccess(t *testing.T) {
	repo, mock := newRunRepoMock(t)
	rowCount := int64(2)
	started := time.Now().Add(-time.Minute)
	ended := time.Now()

	mock.ExpectExec("UPDATE pipecraft.sync_runs").
		WithArgs(models.RunStatusSuccess, &rowCount, nil, int64(42), models.RunStatusPending, models.RunStatusRunning).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id, sync_id, status").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sync_id", "status", "started_at", "ended_at", "row_count", "error_message"}).
			AddRow(int64(42), int64(7), models.RunStatusSuccess, started, ended, rowCount, nil))

	run, err := repo.Finish(42, models.RunStatusSuccess, &rowCount, nil)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != models.RunStatusSuccess || run.RowCount == nil || *run.RowCount != 2 {
		t.Errorf("unexpected terminal run: %+v", run)
	}
	if run.EndedAt == nil {
		t.Error("terminal run must carry ended_at")
	}
}

func TestRunFinishIsIdempotentGuarded(t *testing.T) {
	repo, mock := newRunRepoMock(t)
	msg := "write: disk full"
	mock.ExpectExec("UPDATE pipecraft.sync_runs").
		WithArgs(models.RunStatusFailed, nil, &msg, int64(42), models.RunStatusPending, models.RunStatusRunning).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if _, err := repo.Finish(42, models.RunStatusFailed, nil, &msg); err == nil {
		t.Error("expected error when the run is already terminal")
	}
}

func TestRunListBySync(t *testing.T) {
	repo, mock := newRunRepoMock(t)
	now := time.Now()
	mock.ExpectQuery("FROM pipecraft.sync_runs").
		WithArgs(int64(7), 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sync_id", "status", "started_at", "ended_at", "row_count", "error_message"}).
			AddRow(int64(9), int64(7), models.RunStatusFailed, now, now, nil, "connectivity: dial timeout").
			AddRow(int64(8), int64(7), models.RunStatusSuccess, now.Add(-time.Hour), now.Add(-time.Hour), int64(10), nil))

	runs, err := repo.ListBySync(7, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != 9 || runs[1].ID != 8 {
		t.Errorf("unexpected runs: %+v", runs)
	}
	if runs[0].ErrorMessage == nil || *runs[0].ErrorMessage == "" {
		t.Error("failed run must carry an error message")
	}
}

func TestRunSweepStale(t *testing.T) {
	repo, mock := newRunRepoMock(t)
	mock.ExpectExec("UPDATE pipecraft.sync_runs").
		WithArgs(models.RunStatusFailed, sqlmock.AnyArg(), models.RunStatusPending, models.RunStatusRunning, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	swept, err := repo.SweepStale(time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if swept != 3 {
		t.Errorf("swept = %d, want 3", swept)
	}
}
