package types

import (
	"math"
	"time"
)

// SecondsPerDay converts epoch seconds to the fractional-day axis used by charts.
const SecondsPerDay = 86400

// Reading is one timestamped temperature observation from one device.
type Reading struct {
	DeviceID string `json:"deviceId"`
	// Timestamp is seconds since the Unix epoch (UTC).
	Timestamp   float64 `json:"timestamp"`
	Temperature float64 `json:"temperature"`
}

// Time returns the reading's timestamp as a UTC time.Time.
func (r Reading) Time() time.Time {
	sec, frac := math.Modf(r.Timestamp)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// Device is a registry entry for a source seen in at least one committed batch.
type Device struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	FirstSeen float64 `json:"firstSeen"`
	LastSeen  float64 `json:"lastSeen"`
}

// FetchResult is what one fetch produced. Devices carries names for the
// device ids present in Readings.
type FetchResult struct {
	Readings  []Reading
	Devices   []Device
	FetchedAt time.Time
}

// Point is one plot-ready sample: fractional days since epoch and temperature.
type Point struct {
	OffsetDays  float64 `json:"d"`
	Temperature float64 `json:"t"`
}

// WindowDataset maps device id to its points in non-decreasing time order.
// Devices with no readings in the window are absent.
type WindowDataset map[string][]Point

// OffsetDays converts epoch seconds to fractional days since epoch.
func OffsetDays(ts float64) float64 {
	return ts / SecondsPerDay
}

// PointTime converts a point's day offset back to a UTC time, rounded to the
// microsecond to absorb the error of the division in OffsetDays.
func PointTime(offsetDays float64) time.Time {
	us := math.Round(offsetDays * SecondsPerDay * 1e6)
	return time.UnixMicro(int64(us)).UTC()
}
