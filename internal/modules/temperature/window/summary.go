package window

import (
	"slices"

	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/types"
)

// Summary describes one device's series within a window.
type Summary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	// First and Last are the earliest and latest points in the window.
	First types.Point `json:"first"`
	Last  types.Point `json:"last"`
}

// Summarize computes a Summary per device. Devices with no points are omitted.
func Summarize(ds types.WindowDataset) map[string]Summary {
	out := make(map[string]Summary, len(ds))
	for id, pts := range ds {
		if len(pts) == 0 {
			continue
		}
		s := Summary{
			Count: len(pts),
			Min:   pts[0].Temperature,
			Max:   pts[0].Temperature,
			First: pts[0],
			Last:  pts[len(pts)-1],
		}
		var sum float64
		for _, p := range pts {
			s.Min = min(s.Min, p.Temperature)
			s.Max = max(s.Max, p.Temperature)
			sum += p.Temperature
		}
		s.Mean = sum / float64(len(pts))
		out[id] = s
	}
	return out
}

// DeviceIDs returns the dataset's device ids in sorted order.
func DeviceIDs(ds types.WindowDataset) []string {
	ids := make([]string, 0, len(ds))
	for id := range ds {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
