package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/timothy-holmes/ht-tracker/internal/migrate"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/types"
)

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/upsert-device.sql
var upsertDeviceSQL string

//go:embed sql/get-readings-since.sql
var getReadingsSinceSQL string

//go:embed sql/get-devices.sql
var getDevicesSQL string

//go:embed sql/get-latest-timestamp.sql
var getLatestTimestampSQL string

// PersistenceError reports a storage failure. The failed operation is named
// in Op; a failed Append has committed nothing.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistenceError reports whether err is, or wraps, a *PersistenceError.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

type TemperatureRepository interface {
	EnsureSchema(ctx context.Context) error
	Append(ctx context.Context, readings []types.Reading, devices []types.Device) error
	QuerySince(ctx context.Context, cutoff float64) ([]types.Reading, error)
	Devices(ctx context.Context) ([]types.Device, error)
	LatestTimestamp(ctx context.Context) (float64, error)
}

type repositoryImpl struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewRepository(db *sql.DB, logger *slog.Logger) TemperatureRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &repositoryImpl{db: db, logger: logger}
}

// EnsureSchema creates the reading and device tables if absent. It is safe to
// call repeatedly; the owning process calls it once at startup.
func (r *repositoryImpl) EnsureSchema(ctx context.Context) error {
	if err := migrate.Run(ctx, r.db, r.logger); err != nil {
		return &PersistenceError{Op: "ensure schema", Err: err}
	}
	return nil
}

// Append inserts every reading in one transaction and upserts the device
// registry from the same batch. devices only supplies display names and may
// be nil. Either the whole batch is committed or none of it is.
func (r *repositoryImpl) Append(ctx context.Context, readings []types.Reading, devices []types.Device) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: "append: begin", Err: err}
	}
	if err := appendTx(ctx, tx, readings, devices); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.logger.Error("append rollback failed", "error", rbErr)
		}
		return &PersistenceError{Op: "append", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "append: commit", Err: err}
	}
	return nil
}

func appendTx(ctx context.Context, tx *sql.Tx, readings []types.Reading, devices []types.Device) error {
	insert, err := tx.PrepareContext(ctx, insertReadingSQL)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = insert.Close() }()

	for i, rd := range readings {
		if _, err := insert.ExecContext(ctx, rd.DeviceID, rd.Timestamp, rd.Temperature); err != nil {
			return fmt.Errorf("insert reading %d (device %q): %w", i, rd.DeviceID, err)
		}
	}

	for _, d := range registryFromBatch(readings, devices) {
		if _, err := tx.ExecContext(ctx, upsertDeviceSQL, d.ID, d.Name, d.FirstSeen, d.LastSeen); err != nil {
			return fmt.Errorf("upsert device %q: %w", d.ID, err)
		}
	}
	return nil
}

// registryFromBatch derives one device row per id in readings, in first-seen
// order, with the batch's min/max timestamps and the supplied name.
func registryFromBatch(readings []types.Reading, devices []types.Device) []types.Device {
	names := make(map[string]string, len(devices))
	for _, d := range devices {
		names[d.ID] = d.Name
	}

	index := make(map[string]int)
	var out []types.Device
	for _, rd := range readings {
		i, ok := index[rd.DeviceID]
		if !ok {
			index[rd.DeviceID] = len(out)
			out = append(out, types.Device{
				ID:        rd.DeviceID,
				Name:      names[rd.DeviceID],
				FirstSeen: rd.Timestamp,
				LastSeen:  rd.Timestamp,
			})
			continue
		}
		if rd.Timestamp < out[i].FirstSeen {
			out[i].FirstSeen = rd.Timestamp
		}
		if rd.Timestamp > out[i].LastSeen {
			out[i].LastSeen = rd.Timestamp
		}
	}
	return out
}

// QuerySince returns every reading with timestamp > cutoff in storage order.
// No match is an empty slice, not an error.
func (r *repositoryImpl) QuerySince(ctx context.Context, cutoff float64) ([]types.Reading, error) {
	rows, err := r.db.QueryContext(ctx, getReadingsSinceSQL, cutoff)
	if err != nil {
		return nil, &PersistenceError{Op: "query since", Err: err}
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Error("close readings rows", "error", err)
		}
	}()

	out := []types.Reading{}
	for rows.Next() {
		var rd types.Reading
		if err := rows.Scan(&rd.DeviceID, &rd.Timestamp, &rd.Temperature); err != nil {
			return nil, &PersistenceError{Op: "query since: scan", Err: err}
		}
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "query since", Err: err}
	}
	return out, nil
}

func (r *repositoryImpl) Devices(ctx context.Context) ([]types.Device, error) {
	rows, err := r.db.QueryContext(ctx, getDevicesSQL)
	if err != nil {
		return nil, &PersistenceError{Op: "devices", Err: err}
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Error("close device rows", "error", err)
		}
	}()

	out := []types.Device{}
	for rows.Next() {
		var d types.Device
		if err := rows.Scan(&d.ID, &d.Name, &d.FirstSeen, &d.LastSeen); err != nil {
			return nil, &PersistenceError{Op: "devices: scan", Err: err}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "devices", Err: err}
	}
	return out, nil
}

// LatestTimestamp returns the newest stored reading timestamp, or 0 when the
// store is empty.
func (r *repositoryImpl) LatestTimestamp(ctx context.Context) (float64, error) {
	var ts float64
	if err := r.db.QueryRowContext(ctx, getLatestTimestampSQL).Scan(&ts); err != nil {
		return 0, &PersistenceError{Op: "latest timestamp", Err: err}
	}
	return ts, nil
}
