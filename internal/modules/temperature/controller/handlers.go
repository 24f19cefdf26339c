package controller

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/timothy-holmes/ht-tracker/internal/metrics"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/export"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/fetcher"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/scheduler"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/types"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/window"
	"github.com/timothy-holmes/ht-tracker/internal/utils"
)

type windowResponse struct {
	Days     float64             `json:"days"`
	Now      string              `json:"now"`
	Timezone string              `json:"timezone"`
	Cutoff   float64             `json:"cutoff"`
	Data     types.WindowDataset `json:"data"`
}

type summaryResponse struct {
	Days     float64                   `json:"days"`
	Now      string                    `json:"now"`
	Timezone string                    `json:"timezone"`
	Devices  map[string]window.Summary `json:"devices"`
}

type refreshResponse struct {
	Status scheduler.Status `json:"status"`
	Error  string           `json:"error,omitempty"`
}

func (c *temperatureControllerImpl) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := c.devices.Devices(r.Context())
	if err != nil {
		c.logger.Error("devices: list failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load devices")
		return
	}
	utils.WriteJSON(w, http.StatusOK, devices)
}

// loadWindow parses ?days, runs the query and writes the error response
// itself when it fails.
func (c *temperatureControllerImpl) loadWindow(w http.ResponseWriter, r *http.Request) (types.WindowDataset, float64, time.Time, bool) {
	days, err := utils.ParseDays(r, defaultDays, maxDays)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return nil, 0, time.Time{}, false
	}

	now := c.now()
	start := time.Now()
	ds, err := c.window.GetWindow(r.Context(), lookbackFor(days), now)
	if err != nil {
		metrics.ObserveWindowQuery(metrics.ResultError, time.Since(start))
		c.logger.Error("window: query failed", "days", days, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load readings")
		return nil, 0, time.Time{}, false
	}
	metrics.ObserveWindowQuery(metrics.ResultSuccess, time.Since(start))
	return ds, days, now, true
}

func (c *temperatureControllerImpl) handleWindow(w http.ResponseWriter, r *http.Request) {
	ds, days, now, ok := c.loadWindow(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, http.StatusOK, windowResponse{
		Days:     days,
		Now:      now.In(c.location).Format(time.RFC3339),
		Timezone: c.location.String(),
		Cutoff:   window.Cutoff(now, lookbackFor(days)),
		Data:     ds,
	})
}

func (c *temperatureControllerImpl) handleSummary(w http.ResponseWriter, r *http.Request) {
	ds, days, now, ok := c.loadWindow(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, http.StatusOK, summaryResponse{
		Days:     days,
		Now:      now.In(c.location).Format(time.RFC3339),
		Timezone: c.location.String(),
		Devices:  window.Summarize(ds),
	})
}

func (c *temperatureControllerImpl) exportOptions(r *http.Request, days float64, now time.Time) export.Options {
	names, err := deviceNames(r.Context(), c.devices)
	if err != nil {
		c.logger.Warn("export: device names unavailable", "error", err)
	}
	return export.Options{
		Title:       fmt.Sprintf("Temperature, last %g days", days),
		Location:    c.location,
		Names:       names,
		GeneratedAt: now,
	}
}

func (c *temperatureControllerImpl) handleChart(w http.ResponseWriter, r *http.Request) {
	ds, days, now, ok := c.loadWindow(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WritePDFChart(&buf, ds, c.exportOptions(r, days, now)); err != nil {
		metrics.IncExport("pdf", metrics.ResultError)
		c.logger.Error("chart: render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render chart")
		return
	}
	metrics.IncExport("pdf", metrics.ResultSuccess)
	utils.WriteAttachment(w, "application/pdf", windowFilename(days, "pdf"), buf.Bytes())
}

func (c *temperatureControllerImpl) handleExport(w http.ResponseWriter, r *http.Request) {
	ds, days, now, ok := c.loadWindow(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, ds, c.exportOptions(r, days, now)); err != nil {
		metrics.IncExport("xlsx", metrics.ResultError)
		c.logger.Error("export: write failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to build workbook")
		return
	}
	metrics.IncExport("xlsx", metrics.ResultSuccess)
	utils.WriteAttachment(w,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		windowFilename(days, "xlsx"),
		buf.Bytes(),
	)
}

// handleRefresh runs one cycle now. Upstream failures map to 502, anything
// else (storage) to 500.
func (c *temperatureControllerImpl) handleRefresh(w http.ResponseWriter, r *http.Request) {
	err := c.refresher.Tick(r.Context())
	resp := refreshResponse{Status: c.refresher.Status()}
	if err == nil {
		utils.WriteJSON(w, http.StatusOK, resp)
		return
	}

	resp.Error = err.Error()
	status := http.StatusInternalServerError
	var fe *fetcher.FetchError
	if errors.As(err, &fe) {
		status = http.StatusBadGateway
	}
	utils.WriteJSON(w, status, resp)
}
