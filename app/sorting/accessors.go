package sorting

import (
	"cmp"
	"time"

	"github.com/lysyi3m/dot-reports/app/feed"
)

// accessor compares one field of two records. undefined is true when either
// side has no value, in which case the result already puts it last.
type accessor func(a, b *feed.Record) (c int, undefined bool)

var accessors = map[string]accessor{
	"properties.icon":                 ordered(func(r *feed.Record) feed.Marker { return r.Marker }),
	"properties.location_description": ordered(func(r *feed.Record) string { return r.LocationDescription }),
	"archived":                        ordered(func(r *feed.Record) int { return boolRank(r.Archived) }),
	"beginTime.time":                  optionalTime(func(r *feed.Record) *time.Time { return r.StartsAt }),
	"endTime.time":                    optionalTime(func(r *feed.Record) *time.Time { return r.EndsAt }),
	"category":                        ordered(func(r *feed.Record) string { return r.Category }),
	"status":                          ordered(func(r *feed.Record) string { return r.Status }),
	"id":                              ordered(func(r *feed.Record) string { return r.ID }),
	"source":                          ordered(func(r *feed.Record) string { return r.Source }),
	"coordinates.longitude":           ordered(func(r *feed.Record) float64 { return r.Coordinates.Longitude }),
	"coordinates.latitude":            ordered(func(r *feed.Record) float64 { return r.Coordinates.Latitude }),
}

// Fields lists every sortable field path.
func Fields() []string {
	fields := make([]string, 0, len(accessors))
	for field := range accessors {
		fields = append(fields, field)
	}
	return fields
}

func ordered[T cmp.Ordered](get func(*feed.Record) T) accessor {
	return func(a, b *feed.Record) (int, bool) {
		return cmp.Compare(get(a), get(b)), false
	}
}

func optionalTime(get func(*feed.Record) *time.Time) accessor {
	return func(a, b *feed.Record) (int, bool) {
		ta, tb := get(a), get(b)
		switch {
		case ta == nil && tb == nil:
			return 0, true
		case ta == nil:
			return 1, true
		case tb == nil:
			return -1, true
		}
		return ta.Compare(*tb), false
	}
}

func boolRank(v bool) int {
	if v {
		return 1
	}
	return 0
}
