package sorting

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/lysyi3m/dot-reports/app/feed"
)

var ErrUnknownField = errors.New("unknown sort field")

// DefaultKeys is the ordering used until the user picks another one.
var DefaultKeys = []string{"properties.icon", "properties.location_description", "archived"}

var columnFields = map[string]string{
	"category": "properties.icon",
	"begins":   "beginTime.time",
	"ends":     "endTime.time",
	"desc":     "properties.location_description",
	"status":   "status",
	"archive":  "archived",
}

type Key struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending"`
}

func (k Key) String() string {
	if k.Descending {
		return "-" + k.Field
	}
	return k.Field
}

// Spec is an ordered list of sort keys. Every field appears at most once.
type Spec []Key

func Default() Spec {
	spec, _ := Parse(DefaultKeys)
	return spec
}

// Parse builds a Spec from field paths, where a leading "-" means descending.
// Repeated fields keep their first occurrence.
func Parse(keys []string) (Spec, error) {
	spec := make(Spec, 0, len(keys))
	for _, raw := range keys {
		key := Key{Field: strings.TrimSpace(raw)}
		if rest, ok := strings.CutPrefix(key.Field, "-"); ok {
			key.Field = rest
			key.Descending = true
		}

		if _, known := accessors[key.Field]; !known {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, raw)
		}
		if spec.index(key.Field) >= 0 {
			continue
		}
		spec = append(spec, key)
	}
	return spec, nil
}

// ColumnField maps a table column identifier onto its sort field.
func ColumnField(column string) (string, bool) {
	field, ok := columnFields[column]
	return field, ok
}

// Toggle returns the key list after a click on field: the first key flips its
// direction, any other field moves to the front ascending.
func (s Spec) Toggle(field string) Spec {
	if len(s) > 0 && s[0].Field == field {
		toggled := slices.Clone(s)
		toggled[0].Descending = !toggled[0].Descending
		return toggled
	}

	toggled := make(Spec, 0, len(s)+1)
	toggled = append(toggled, Key{Field: field})
	for _, key := range s {
		if key.Field != field {
			toggled = append(toggled, key)
		}
	}
	return toggled
}

func (s Spec) Strings() []string {
	keys := make([]string, len(s))
	for i, key := range s {
		keys[i] = key.String()
	}
	return keys
}

func (s Spec) index(field string) int {
	return slices.IndexFunc(s, func(k Key) bool { return k.Field == field })
}

// Compare orders two records by its keys in turn. Undefined values
// sort after defined ones whatever the key direction.
func (s Spec) Compare(a, b *feed.Record) int {
	for _, key := range s {
		accessor, ok := accessors[key.Field]
		if !ok {
			continue
		}

		c, undefined := accessor(a, b)
		if c == 0 {
			continue
		}
		if key.Descending && !undefined {
			c = -c
		}
		return c
	}
	return 0
}

// Sort orders records in place. Full ties keep their input order.
func (s Spec) Sort(records []feed.Record) {
	slices.SortStableFunc(records, func(a, b feed.Record) int {
		return s.Compare(&a, &b)
	})
}
