package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to write JSON", "error", err)
	}
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]any{
		"error":   http.StatusText(status),
		"message": msg,
	})
}

// WriteAttachment sends body as a download named filename.
func WriteAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		slog.Error("failed to write attachment", "filename", filename, "error", err)
	}
}

// ParseDays reads the "days" query parameter: a positive, possibly
// fractional, number of days no greater than maxDays. Absent means def.
func ParseDays(r *http.Request, def, maxDays float64) (float64, error) {
	s := strings.TrimSpace(r.URL.Query().Get("days"))
	if s == "" {
		return def, nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, errors.New("invalid 'days' (expected number)")
	}
	if n <= 0 {
		return 0, errors.New("'days' must be > 0")
	}
	if n > maxDays {
		return 0, fmt.Errorf("'days' must be <= %g", maxDays)
	}
	return n, nil
}
