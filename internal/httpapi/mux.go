package httpapi

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/timothy-holmes/ht-tracker/internal/metrics"
)

func NewMux(db *sql.DB, probe FreshnessProbe, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db, probe, logger)
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}
