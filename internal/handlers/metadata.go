package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/pipecraft/pipecraft-api/internal/dialect"
	"github.com/pipecraft/pipecraft-api/internal/introspect"
	"github.com/pipecraft/pipecraft-api/internal/models"
	"github.com/pipecraft/pipecraft-api/internal/repository"
)

// MetadataHandler serves schema browsing for the admin UI: the schemas,
// tables and columns visible through a stored connection.
type MetadataHandler struct {
	repo        repository.ConnectionRepository
	open        dialect.OpenFunc
	callTimeout time.Duration
	logger      zerolog.Logger
}

func NewMetadataHandler(repo repository.ConnectionRepository, open dialect.OpenFunc, callTimeout time.Duration, logger zerolog.Logger) *MetadataHandler {
	return &MetadataHandler{repo: repo, open: open, callTimeout: callTimeout, logger: logger}
}

// withAdapter resolves the connection, opens an adapter for the duration of
// one request and closes it before returning.
func (h *MetadataHandler) withAdapter(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, adapter dialect.Adapter) (interface{}, error)) {
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
		http.Error(w, "Failed to resolve connection: "+err.Error(), http.StatusInternalServerError)
		return
	}

	adapter, err := h.openAdapter(conn)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer adapter.Close()

	ctx, cancel := context.WithTimeout(r.Context(), h.callTimeout)
	defer cancel()

	result, err := fn(ctx, adapter)
	if err != nil {
		switch {
		case errors.Is(err, dialect.ErrSchemaNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, dialect.ErrTableNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			h.logger.Error().Err(err).Int64("connection_id", id).Msg("Introspection failed")
			http.Error(w, err.Error(), http.StatusBadGateway)
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *MetadataHandler) openAdapter(conn *models.Connection) (dialect.Adapter, error) {
	dsn, err := conn.DSN()
	if err != nil {
		return nil, err
	}
	return h.open(conn.DBType, dsn, 0)
}

func (h *MetadataHandler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	h.withAdapter(w, r, func(ctx context.Context, adapter dialect.Adapter) (interface{}, error) {
		return introspect.Schemas(ctx, adapter)
	})
}

func (h *MetadataHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	schema := mux.Vars(r)["schema"]
	h.withAdapter(w, r, func(ctx context.Context, adapter dialect.Adapter) (interface{}, error) {
		return introspect.Tables(ctx, adapter, schema)
	})
}

func (h *MetadataHandler) ListColumns(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.withAdapter(w, r, func(ctx context.Context, adapter dialect.Adapter) (interface{}, error) {
		return introspect.Columns(ctx, adapter, vars["schema"], vars["table"])
	})
}
