package httpapi

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/scheduler"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/types"
	"github.com/timothy-holmes/ht-tracker/internal/utils"
)

// FreshnessProbe exposes how current the stored series is.
type FreshnessProbe interface {
	Status() scheduler.Status
	LatestTimestamp(ctx context.Context) (float64, error)
	// StaleAfter is how long without a successful cycle before data is stale.
	StaleAfter() time.Duration
}

type healthResponse struct {
	Status        string            `json:"status"`
	Stale         bool              `json:"stale"`
	LatestReading *time.Time        `json:"latestReading"`
	Scheduler     *scheduler.Status `json:"scheduler,omitempty"`
}

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	db     *sql.DB
	probe  FreshnessProbe
	logger *slog.Logger
	now    func() time.Time
}

func NewHealthchecker(db *sql.DB, probe FreshnessProbe, logger *slog.Logger) healthchecker {
	return &healthcheckerImpl{db: db, probe: probe, logger: logger, now: time.Now}
}

// handleHealthz fails only when the database is unreachable. Stale data is
// reported but does not make the process unhealthy.
func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	var ok int
	if err := h.db.QueryRowContext(r.Context(), `SELECT 1`).Scan(&ok); err != nil {
		h.logger.Error("failed to check database connectivity", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to check database connectivity")
		return
	}

	resp := healthResponse{Status: "ok"}
	if h.probe != nil {
		st := h.probe.Status()
		resp.Scheduler = &st
		resp.Stale = st.Stale(h.now(), h.probe.StaleAfter())

		latest, err := h.probe.LatestTimestamp(r.Context())
		if err != nil {
			h.logger.Error("failed to read latest timestamp", "error", err)
			utils.WriteError(w, http.StatusInternalServerError, "failed to read latest timestamp")
			return
		}
		if latest > 0 {
			t := types.Reading{Timestamp: latest}.Time()
			resp.LatestReading = &t
		}
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func registerHealthcheck(mux *http.ServeMux, db *sql.DB, probe FreshnessProbe, logger *slog.Logger) {
	healthchecker := NewHealthchecker(db, probe, logger)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
