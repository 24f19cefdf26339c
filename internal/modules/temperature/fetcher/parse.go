package fetcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/timothy-holmes/ht-tracker/internal/logging"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/types"
)

// bomTimeLayout is the layout of aifstime_utc, e.g. "20220718053000".
const bomTimeLayout = "20060102150405"

// DevicePrefix is prepended to the station WMO number to form a device id.
const DevicePrefix = "bom-"

var observationsStart = regexp.MustCompile(`\{\s*"observations"\s*:`)

type bomDocument struct {
	Observations *struct {
		Data []bomObservation `json:"data"`
	} `json:"observations"`
}

type bomObservation struct {
	WMO         json.Number `json:"wmo"`
	Name        string      `json:"name"`
	AifstimeUTC string      `json:"aifstime_utc"`
	AirTemp     *float64    `json:"air_temp"`
}

// Parse extracts readings from a BOM observation document, or from a page that
// embeds one. A body without an observations block yields an empty result.
func Parse(body []byte, logger *slog.Logger) ([]types.Reading, []types.Device, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	loc := observationsStart.FindIndex(body)
	if loc == nil {
		logger.Debug("no observations block in body", "bytes", len(body))
		return []types.Reading{}, []types.Device{}, nil
	}

	var doc bomDocument
	dec := json.NewDecoder(bytes.NewReader(body[loc[0]:]))
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if doc.Observations == nil {
		return nil, nil, fmt.Errorf("%w: observations is null", ErrMalformedPayload)
	}

	readings := make([]types.Reading, 0, len(doc.Observations.Data))
	devices := make([]types.Device, 0, 1)
	seen := make(map[string]int)

	for i, obs := range doc.Observations.Data {
		wmo := strings.TrimSpace(obs.WMO.String())
		if wmo == "" {
			logger.Debug("skipping observation without wmo", "row", i)
			continue
		}
		if obs.AirTemp == nil {
			logger.Debug("skipping observation without air_temp", "row", i, "wmo", wmo)
			continue
		}
		ts, err := parseObservationTime(obs.AifstimeUTC)
		if err != nil {
			logger.Debug("skipping observation with bad time", "row", i, "wmo", wmo, "value", obs.AifstimeUTC)
			continue
		}

		id := DevicePrefix + wmo
		readings = append(readings, types.Reading{
			DeviceID:    id,
			Timestamp:   ts,
			Temperature: *obs.AirTemp,
		})

		idx, ok := seen[id]
		if !ok {
			seen[id] = len(devices)
			devices = append(devices, types.Device{ID: id, Name: obs.Name, FirstSeen: ts, LastSeen: ts})
			continue
		}
		d := &devices[idx]
		if d.Name == "" {
			d.Name = obs.Name
		}
		d.FirstSeen = min(d.FirstSeen, ts)
		d.LastSeen = max(d.LastSeen, ts)
	}

	return readings, devices, nil
}

func parseObservationTime(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty time")
	}
	t, err := time.ParseInLocation(bomTimeLayout, s, time.UTC)
	if err != nil {
		return 0, err
	}
	return float64(t.Unix()), nil
}

// WMOFromDeviceID is the inverse of the device id mapping.
func WMOFromDeviceID(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, DevicePrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}
