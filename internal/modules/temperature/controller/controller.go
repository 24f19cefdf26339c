package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/timothy-holmes/ht-tracker/internal/logging"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/scheduler"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/types"
)

type WindowQuerier interface {
	GetWindow(ctx context.Context, lookback time.Duration, now time.Time) (types.WindowDataset, error)
}

type DeviceLister interface {
	Devices(ctx context.Context) ([]types.Device, error)
}

// Refresher runs a fetch cycle on demand.
type Refresher interface {
	Tick(ctx context.Context) error
	Status() scheduler.Status
}

type TemperatureController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type temperatureControllerImpl struct {
	window    WindowQuerier
	devices   DeviceLister
	refresher Refresher
	location  *time.Location
	logger    *slog.Logger
	now       func() time.Time
}

func NewTemperatureController(window WindowQuerier, devices DeviceLister, refresher Refresher, loc *time.Location, logger *slog.Logger) TemperatureController {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &temperatureControllerImpl{
		window:    window,
		devices:   devices,
		refresher: refresher,
		location:  loc,
		logger:    logger,
		now:       time.Now,
	}
}

func (c *temperatureControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/devices", c.handleDevices)
	mux.HandleFunc("GET /api/v1/window", c.handleWindow)
	mux.HandleFunc("GET /api/v1/window/summary", c.handleSummary)
	mux.HandleFunc("GET /api/v1/window/chart.pdf", c.handleChart)
	mux.HandleFunc("GET /api/v1/window/export.xlsx", c.handleExport)
	mux.HandleFunc("POST /api/v1/refresh", c.handleRefresh)
}
