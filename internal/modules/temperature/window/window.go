package window

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/timothy-holmes/ht-tracker/internal/logging"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/types"
)

// ReadingSource is the read side of the store.
type ReadingSource interface {
	QuerySince(ctx context.Context, cutoff float64) ([]types.Reading, error)
}

// Query builds windowed datasets. It keeps no state between calls and is
// safe for concurrent use.
type Query struct {
	source ReadingSource
	logger *slog.Logger
}

func NewQuery(source ReadingSource, logger *slog.Logger) *Query {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Query{source: source, logger: logger}
}

// GetWindow returns readings newer than now-lookback grouped by device, each
// series in non-decreasing timestamp order. Store errors are returned as is.
func (q *Query) GetWindow(ctx context.Context, lookback time.Duration, now time.Time) (types.WindowDataset, error) {
	if lookback < 0 {
		return nil, fmt.Errorf("negative lookback %v", lookback)
	}
	cutoff := Cutoff(now, lookback)

	readings, err := q.source.QuerySince(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	ds := Group(readings)
	q.logger.Debug("window query",
		"cutoff", cutoff,
		"readings", len(readings),
		"devices", len(ds),
	)
	return ds, nil
}

// Cutoff is now-lookback in epoch seconds, keeping the sub-second part of now.
func Cutoff(now time.Time, lookback time.Duration) float64 {
	return float64(now.Add(-lookback).UnixNano()) / 1e9
}

// Group sorts readings by timestamp and partitions them by device. Readings
// sharing a timestamp keep their input order. The input slice is not modified.
func Group(readings []types.Reading) types.WindowDataset {
	sorted := slices.Clone(readings)
	slices.SortStableFunc(sorted, func(a, b types.Reading) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})

	ds := make(types.WindowDataset)
	for _, r := range sorted {
		ds[r.DeviceID] = append(ds[r.DeviceID], types.Point{
			OffsetDays:  types.OffsetDays(r.Timestamp),
			Temperature: r.Temperature,
		})
	}
	return ds
}
