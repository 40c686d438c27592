// Package engine executes sync runs: it resolves the two connections, opens
// one dialect adapter per side, materializes the destination table if absent,
// and replaces the destination contents with the source's current rows.
//
// A run is synchronous and single-threaded; the engine never retries and
// never leaves a run in a non-terminal state once Run returns. There is no
// cross-database transaction: the documented guarantee is that the truncate
// happens before any row is written, not success-or-rollback.
package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/pipecraft/pipecraft-api/internal/dialect"
	"github.com/pipecraft/pipecraft-api/internal/models"
	"github.com/pipecraft/pipecraft-api/internal/repository"
)

type Config struct {
	// CallTimeout bounds each metadata or DDL call against a remote
	// database. A timeout is classified as connectivity.
	CallTimeout time.Duration
	// TransferTimeout bounds the whole read/write streaming phase.
	// Zero means unbounded.
	TransferTimeout time.Duration
	WriteBatchSize  int
}

type Engine struct {
	conns  repository.ConnectionRepository
	syncs  repository.SyncRepository
	runs   repository.RunRepository
	open   dialect.OpenFunc
	locks  *keyedLock
	cfg    Config
	logger zerolog.Logger
}

func New(conns repository.ConnectionRepository, syncs repository.SyncRepository, runs repository.RunRepository,
	open dialect.OpenFunc, cfg Config, logger zerolog.Logger) *Engine {
	return &Engine{
		conns:  conns,
		syncs:  syncs,
		runs:   runs,
		open:   open,
		locks:  newKeyedLock(),
		cfg:    cfg,
		logger: logger.With().Str("component", "engine").Logger(),
	}
}

// Run executes the sync to a terminal state and returns the terminal ledger
// record. A classified run failure is not an error here: the record carries
// it. The returned error is non-nil only when no meaningful record could be
// produced (unknown sync, ledger failure) or when the run was rejected as
// busy, in which case the failed record is returned alongside ErrBusy.
func (e *Engine) Run(ctx context.Context, syncID int64) (*models.SyncRun, error) {
	sync, err := e.syncs.Get(syncID)
	if err != nil {
		return nil, err
	}
	if !models.ValidWriteMode(sync.WriteMode) {
		return nil, errors.Errorf("sync %d has unsupported write_mode %q", syncID, sync.WriteMode)
	}

	run, err := e.runs.Create(sync.ID)
	if err != nil {
		return nil, errors.Wrap(err, "create run record")
	}
	logger := e.logger.With().Int64("sync_id", sync.ID).Int64("run_id", run.ID).Logger()

	destSchema := ""
	if sync.DestSchema != nil {
		destSchema = *sync.DestSchema
	}

	// Serialize on the destination table identity so two overlapping runs
	// can never interleave truncate and insert against the same table.
	lockKey := fmt.Sprintf("%d/%s/%s", sync.DestConnectionID, destSchema, sync.DestTable)
	if !e.locks.TryLock(lockKey) {
		terminal, ferr := e.fail(logger, run, CodeBusy, ErrBusy, nil)
		if ferr != nil {
			return nil, ferr
		}
		return terminal, &RunError{Code: CodeBusy, Err: ErrBusy}
	}
	defer e.locks.Unlock(lockKey)

	// Persist the running transition before touching remote databases so a
	// process crash mid-run is visible in the ledger.
	if err := e.runs.MarkRunning(run.ID); err != nil {
		return nil, errors.Wrap(err, "mark run running")
	}
	logger.Info().Str("source_table", sync.SourceTable).Str("dest_table", sync.DestTable).Msg("Run started")

	srcConn, err := e.conns.Resolve(sync.SourceConnectionID)
	if err != nil {
		return e.fail(logger, run, CodeConnectionResolution, err, nil)
	}
	if !srcConn.IsSource {
		return e.fail(logger, run, CodeConnectionResolution,
			errors.Errorf("connection %q is not flagged as a source", srcConn.Name), nil)
	}
	dstConn, err := e.conns.Resolve(sync.DestConnectionID)
	if err != nil {
		return e.fail(logger, run, CodeConnectionResolution, err, nil)
	}
	if !dstConn.IsDestination {
		return e.fail(logger, run, CodeConnectionResolution,
			errors.Errorf("connection %q is not flagged as a destination", dstConn.Name), nil)
	}

	src, err := e.openAdapter(ctx, srcConn)
	if err != nil {
		return e.fail(logger, run, CodeConnectivity, err, nil)
	}
	defer src.Close()

	dst, err := e.openAdapter(ctx, dstConn)
	if err != nil {
		return e.fail(logger, run, CodeConnectivity, err, nil)
	}
	defer dst.Close()

	srcSchema, srcTable := sync.SplitSourceTable()

	callCtx, cancel := e.callContext(ctx)
	cols, err := src.ListColumns(callCtx, srcSchema, srcTable)
	cancel()
	if err != nil {
		return e.fail(logger, run, classifyDiscovery(err), err, nil)
	}

	callCtx, cancel = e.callContext(ctx)
	created, err := dst.EnsureTable(callCtx, destSchema, sync.DestTable, cols)
	cancel()
	if err != nil {
		return e.fail(logger, run, CodeEnsureTable, err, nil)
	}
	if created {
		logger.Info().Str("dest_table", sync.DestTable).Int("columns", len(cols)).Msg("Created destination table")
	}

	callCtx, cancel = e.callContext(ctx)
	err = dst.Truncate(callCtx, destSchema, sync.DestTable)
	cancel()
	if err != nil {
		return e.fail(logger, run, CodeTruncate, err, nil)
	}

	transferCtx := ctx
	if e.cfg.TransferTimeout > 0 {
		var tcancel context.CancelFunc
		transferCtx, tcancel = context.WithTimeout(ctx, e.cfg.TransferTimeout)
		defer tcancel()
	}

	reader, err := src.ReadRows(transferCtx, srcSchema, srcTable)
	if err != nil {
		return e.fail(logger, run, CodeWrite, err, nil)
	}
	defer reader.Close()

	written, err := dst.WriteRows(transferCtx, destSchema, sync.DestTable, cols, reader)
	if err != nil {
		// The adapter counts committed batches, so the partial count is
		// trustworthy even mid-failure.
		return e.fail(logger, run, CodeWrite, err, &written)
	}

	terminal, err := e.runs.Finish(run.ID, models.RunStatusSuccess, &written, nil)
	if err != nil {
		return nil, errors.Wrap(err, "finish run record")
	}
	logger.Info().Int64("row_count", written).Msg("Run succeeded")
	return terminal, nil
}

func (e *Engine) openAdapter(ctx context.Context, conn *models.Connection) (dialect.Adapter, error) {
	dsn, err := conn.DSN()
	if err != nil {
		return nil, err
	}
	adapter, err := e.open(conn.DBType, dsn, e.cfg.WriteBatchSize)
	if err != nil {
		return nil, errors.Wrapf(err, "open %q", conn.Name)
	}
	callCtx, cancel := e.callContext(ctx)
	defer cancel()
	if err := adapter.Ping(callCtx); err != nil {
		adapter.Close()
		return nil, errors.Wrapf(err, "connect to %q", conn.Name)
	}
	return adapter, nil
}

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.CallTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.cfg.CallTimeout)
}

func classifyDiscovery(err error) Code {
	switch {
	case stderrors.Is(err, dialect.ErrTableNotFound):
		return CodeTableNotFound
	case stderrors.Is(err, dialect.ErrSchemaNotFound):
		return CodeSchemaNotFound
	default:
		return CodeConnectivity
	}
}

// fail writes the single terminal failed record for this run.
func (e *Engine) fail(logger zerolog.Logger, run *models.SyncRun, code Code, cause error, rowCount *int64) (*models.SyncRun, error) {
	msg := (&RunError{Code: code, Err: cause}).Error()
	terminal, err := e.runs.Finish(run.ID, models.RunStatusFailed, rowCount, &msg)
	if err != nil {
		return nil, errors.Wrapf(err, "record failure of run %d (%s)", run.ID, msg)
	}
	logger.Warn().Str("code", string(code)).Err(cause).Msg("Run failed")
	return terminal, nil
}
