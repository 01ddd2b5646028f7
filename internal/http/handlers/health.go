package handlers

import (
	"database/sql"
	"net/http"

	"github.com/smsbridge/server/internal/faststore"
)

// HealthHandler reports connectivity to both stores. The gateway uses this
// endpoint to decide whether to hold traffic; "degraded" means SMS ingestion
// still works through the power-down fallback.
type HealthHandler struct {
	db    *sql.DB
	store faststore.Store
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *sql.DB, store faststore.Store) *HealthHandler {
	return &HealthHandler{db: db, store: store}
}

// healthResponse is the JSON response for /health
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "up", Redis: "up"}
	code := http.StatusOK

	if err := h.db.PingContext(r.Context()); err != nil {
		resp.Database = "down"
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if err := h.store.Ping(r.Context()); err != nil {
		resp.Redis = "down"
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}

	respondWithJSON(w, code, resp)
}
