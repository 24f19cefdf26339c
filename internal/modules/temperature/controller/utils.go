package controller

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/types"
)

const (
	defaultDays = 7
	maxDays     = 3650
)

// lookbackFor converts a day count to a duration.
func lookbackFor(days float64) time.Duration {
	return time.Duration(days * float64(24*time.Hour))
}

// windowFilename names downloads after the window length, e.g. window-7d.pdf.
func windowFilename(days float64, ext string) string {
	return fmt.Sprintf("window-%sd.%s", strconv.FormatFloat(days, 'f', -1, 64), ext)
}

// deviceNames returns display names keyed by id. A registry failure only
// costs the names, so it is returned for logging rather than aborting.
func deviceNames(ctx context.Context, lister DeviceLister) (map[string]string, error) {
	devices, err := lister.Devices(ctx)
	if err != nil {
		return map[string]string{}, err
	}
	return namesOf(devices), nil
}

func namesOf(devices []types.Device) map[string]string {
	names := make(map[string]string, len(devices))
	for _, d := range devices {
		if d.Name != "" {
			names[d.ID] = d.Name
		}
	}
	return names
}
