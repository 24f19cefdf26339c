package export

import (
	"time"

	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/types"
)

// Options controls presentation only; the data is taken as given.
type Options struct {
	Title string
	// Location formats axis labels and time columns. Nil means UTC.
	Location *time.Location
	// Names maps device id to a display name. Missing ids show the raw id.
	Names       map[string]string
	GeneratedAt time.Time
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

func (o Options) label(id string) string {
	if n := o.Names[id]; n != "" {
		return n + " (" + id + ")"
	}
	return id
}

func pointTime(p types.Point, loc *time.Location) time.Time {
	return types.PointTime(p.OffsetDays).In(loc)
}
