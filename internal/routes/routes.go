package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pipecraft/pipecraft-api/internal/handlers"
)

// NewRouter wires the API surface consumed by the admin UI.
func NewRouter(conn *handlers.ConnectionHandler, meta *handlers.MetadataHandler, sync *handlers.SyncHandler) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	// Connections
	api.HandleFunc("/connections", conn.List).Methods(http.MethodGet)
	api.HandleFunc("/connections", conn.Create).Methods(http.MethodPost)
	api.HandleFunc("/connections/test", conn.TestConnection).Methods(http.MethodPost)
	api.HandleFunc("/connections/{id}", conn.Get).Methods(http.MethodGet)
	api.HandleFunc("/connections/{id}", conn.Update).Methods(http.MethodPut)
	api.HandleFunc("/connections/{id}", conn.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/connections/{id}/test", conn.TestConnectionByID).Methods(http.MethodPost)

	// Schema browsing
	api.HandleFunc("/connections/{id}/schemas", meta.ListSchemas).Methods(http.MethodGet)
	api.HandleFunc("/connections/{id}/schemas/{schema}/tables", meta.ListTables).Methods(http.MethodGet)
	api.HandleFunc("/connections/{id}/schemas/{schema}/tables/{table}/columns", meta.ListColumns).Methods(http.MethodGet)

	// Syncs and runs
	api.HandleFunc("/syncs", sync.List).Methods(http.MethodGet)
	api.HandleFunc("/syncs", sync.Create).Methods(http.MethodPost)
	api.HandleFunc("/syncs/{id}", sync.Get).Methods(http.MethodGet)
	api.HandleFunc("/syncs/{id}", sync.Update).Methods(http.MethodPut)
	api.HandleFunc("/syncs/{id}", sync.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/syncs/{id}/run", sync.Run).Methods(http.MethodPost)
	api.HandleFunc("/syncs/{id}/runs", sync.ListRuns).Methods(http.MethodGet)

	return router
}
