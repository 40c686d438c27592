package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/pipecraft/pipecraft-api/internal/engine"
	"github.com/pipecraft/pipecraft-api/internal/models"
	"github.com/pipecraft/pipecraft-api/internal/repository"
)

// Runner executes one sync to a terminal run record.
type Runner interface {
	Run(ctx context.Context, syncID int64) (*models.SyncRun, error)
}

type SyncHandler struct {
	syncs  repository.SyncRepository
	conns  repository.ConnectionRepository
	runs   repository.RunRepository
	runner Runner
	logger zerolog.Logger
}

func NewSyncHandler(syncs repository.SyncRepository, conns repository.ConnectionRepository, runs repository.RunRepository, runner Runner, logger zerolog.Logger) *SyncHandler {
	return &SyncHandler{syncs: syncs, conns: conns, runs: runs, runner: runner, logger: logger}
}

func (h *SyncHandler) List(w http.ResponseWriter, r *http.Request) {
	syncs, err := h.syncs.List()
	if err != nil {
		http.Error(w, "Failed to list syncs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, syncs)
}

func (h *SyncHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sync, err := h.syncs.Get(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Sync not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get sync: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sync)
}

// validate checks the declarative invariants: referenced connections exist
// and carry the role flag matching their use.
func (h *SyncHandler) validate(s *models.Sync) (string, bool) {
	if s.Name == "" || s.SourceTable == "" || s.DestTable == "" {
		return "name, source_table and dest_table are required", false
	}
	if s.WriteMode == "" {
		s.WriteMode = models.WriteModeTruncateInsert
	}
	if !models.ValidWriteMode(s.WriteMode) {
		return "unsupported write_mode: " + s.WriteMode, false
	}
	src, err := h.conns.Get(s.SourceConnectionID)
	if err != nil {
		return "source connection not found", false
	}
	if !src.IsSource {
		return "connection " + src.Name + " is not flagged as a source", false
	}
	dst, err := h.conns.Get(s.DestConnectionID)
	if err != nil {
		return "destination connection not found", false
	}
	if !dst.IsDestination {
		return "connection " + dst.Name + " is not flagged as a destination", false
	}
	return "", true
}

func (h *SyncHandler) Create(w http.ResponseWriter, r *http.Request) {
	var sync models.Sync
	if err := json.NewDecoder(r.Body).Decode(&sync); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if msg, ok := h.validate(&sync); !ok {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	if _, err := h.syncs.GetByName(sync.Name); err == nil {
		http.Error(w, "Sync with this name already exists", http.StatusBadRequest)
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		http.Error(w, "Failed to check sync name: "+err.Error(), http.StatusInternalServerError)
		return
	}

	created, err := h.syncs.Create(&sync)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create sync")
		http.Error(w, "Failed to create sync: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *SyncHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var sync models.Sync
	if err := json.NewDecoder(r.Body).Decode(&sync); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	sync.ID = id
	if msg, ok := h.validate(&sync); !ok {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	updated, err := h.syncs.Update(&sync)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Sync not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to update sync: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *SyncHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.syncs.Delete(id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Sync not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to delete sync: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Run executes the sync synchronously and returns the terminal run record.
// A failed run is still a 200: the outcome is in the record.
func (h *SyncHandler) Run(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	run, err := h.runner.Run(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrBusy):
			writeJSON(w, http.StatusConflict, run)
		case errors.Is(err, repository.ErrNotFound):
			http.Error(w, "Sync not found", http.StatusNotFound)
		default:
			h.logger.Error().Err(err).Int64("sync_id", id).Msg("Run failed before reaching a terminal record")
			http.Error(w, "Failed to run sync: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *SyncHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}
	runs, err := h.runs.ListBySync(id, limit)
	if err != nil {
		http.Error(w, "Failed to list runs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}
