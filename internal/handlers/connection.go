package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/pipecraft/pipecraft-api/internal/dialect"
	"github.com/pipecraft/pipecraft-api/internal/models"
	"github.com/pipecraft/pipecraft-api/internal/repository"
)

type ConnectionHandler struct {
	repo        repository.ConnectionRepository
	open        dialect.OpenFunc
	testTimeout time.Duration
	logger      zerolog.Logger
}

func NewConnectionHandler(repo repository.ConnectionRepository, open dialect.OpenFunc, testTimeout time.Duration, logger zerolog.Logger) *ConnectionHandler {
	return &ConnectionHandler{repo: repo, open: open, testTimeout: testTimeout, logger: logger}
}

type testResult struct {
	Status  string `json:"status"` // success | error
	Message string `json:"message"`
}

// testConnection opens an adapter for the given connection, pings it within
// the configured timeout and closes it. The handle never outlives the call.
func (h *ConnectionHandler) testConnection(ctx context.Context, conn *models.Connection) testResult {
	dsn, err := conn.DSN()
	if err != nil {
		return testResult{Status: "error", Message: err.Error()}
	}
	adapter, err := h.open(conn.DBType, dsn, 0)
	if err != nil {
		return testResult{Status: "error", Message: err.Error()}
	}
	defer adapter.Close()

	ctx, cancel := context.WithTimeout(ctx, h.testTimeout)
	defer cancel()
	if err := adapter.Ping(ctx); err != nil {
		return testResult{Status: "error", Message: err.Error()}
	}
	return testResult{Status: "success", Message: "connection ok"}
}

// TestConnection checks ad-hoc connection parameters without storing them.
func (h *ConnectionHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var conn models.Connection
	if err := json.NewDecoder(r.Body).Decode(&conn); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if !models.ValidDBType(conn.DBType) {
		http.Error(w, "db_type must be postgres or mysql", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.testConnection(r.Context(), &conn))
}

// TestConnectionByID checks a stored connection using its stored credential.
func (h *ConnectionHandler) TestConnectionByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	conn, err := h.repo.Resolve(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Connection not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Int64("connection_id", id).Msg("Failed to resolve connection")
		http.Error(w, "Failed to resolve connection: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, h.testConnection(r.Context(), conn))
}

func (h *ConnectionHandler) List(w http.ResponseWriter, r *http.Request) {
	connections, err := h.repo.List()
	if err != nil {
		http.Error(w, "Failed to list connections: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, connections)
}

func (h *ConnectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	conn, err := h.repo.Get(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Connection not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get connection: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (h *ConnectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var conn models.Connection
	if err := json.NewDecoder(r.Body).Decode(&conn); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if conn.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}
	if !models.ValidDBType(conn.DBType) {
		http.Error(w, "db_type must be postgres or mysql", http.StatusBadRequest)
		return
	}
	if _, err := h.repo.GetByName(conn.Name); err == nil {
		http.Error(w, "Connection with this name already exists", http.StatusBadRequest)
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		http.Error(w, "Failed to check connection name: "+err.Error(), http.StatusInternalServerError)
		return
	}

	created, err := h.repo.Create(&conn)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create connection")
		http.Error(w, "Failed to create connection: "+err.Error(), http.StatusInternalServerError)
		return
	}
	created.Password = "" // never echo the credential
	writeJSON(w, http.StatusCreated, created)
}

func (h *ConnectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var conn models.Connection
	if err := json.NewDecoder(r.Body).Decode(&conn); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if !models.ValidDBType(conn.DBType) {
		http.Error(w, "db_type must be postgres or mysql", http.StatusBadRequest)
		return
	}
	conn.ID = id

	updated, err := h.repo.Update(&conn)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Connection not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to update connection: "+err.Error(), http.StatusInternalServerError)
		return
	}
	updated.Password = ""
	writeJSON(w, http.StatusOK, updated)
}

func (h *ConnectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.repo.Delete(id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Connection not found", http.StatusNotFound)
			return
		}
		// FK restriction: the connection is still referenced by a sync.
		http.Error(w, "Failed to delete connection: "+err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
