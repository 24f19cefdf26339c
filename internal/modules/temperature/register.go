package temperature

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/timothy-holmes/ht-tracker/internal/config"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/controller"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/fetcher"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/publisher"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/repository"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/scheduler"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/window"
)

// Feature holds the wired temperature pipeline for one process.
type Feature struct {
	Repository repository.TemperatureRepository
	Scheduler  *scheduler.Scheduler
	Window     *window.Query
	// Publisher is nil when MQTT_BROKER is unset.
	Publisher *publisher.Client

	staleAfter time.Duration
	cfg        config.Config
	logger     *slog.Logger
}

func NewFeature(cfg config.Config, db *sql.DB, logger *slog.Logger) (*Feature, error) {
	repo := repository.NewRepository(db, logger.With("component", "repository"))

	f, err := fetcher.NewFetcher(cfg, logger.With("component", "fetcher"))
	if err != nil {
		return nil, err
	}

	feature := &Feature{
		Repository: repo,
		Window:     window.NewQuery(repo, logger.With("component", "window")),
		staleAfter: 2 * cfg.UpdateInterval,
		cfg:        cfg,
		logger:     logger,
	}

	// Keep the interface nil rather than a typed nil pointer when disabled.
	var pub scheduler.Publisher
	if publisher.Enabled(cfg) {
		feature.Publisher = publisher.NewClient(cfg, logger.With("component", "mqtt"))
		pub = feature.Publisher
	}

	feature.Scheduler = scheduler.New(cfg, f, repo, pub, logger.With("component", "scheduler"))
	return feature, nil
}

func (f *Feature) RegisterRoutes(mux *http.ServeMux) {
	ctrl := controller.NewTemperatureController(f.Window, f.Repository, f.Scheduler, f.cfg.Location, f.logger.With("component", "controller"))
	ctrl.RegisterRoutes(mux)
}

// Status, LatestTimestamp and StaleAfter let the health endpoint report freshness.

func (f *Feature) Status() scheduler.Status { return f.Scheduler.Status() }

func (f *Feature) LatestTimestamp(ctx context.Context) (float64, error) {
	return f.Repository.LatestTimestamp(ctx)
}

func (f *Feature) StaleAfter() time.Duration { return f.staleAfter }
