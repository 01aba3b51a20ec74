package feed

import (
	"time"
)

// Record processing types

type Coordinates struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Marker classifies a record for map presentation. The numeric order is the
// default first sort key, so weather reports list before crashes and roadwork.
type Marker int

const (
	MarkerWeather        Marker = 1
	MarkerCrashClosed    Marker = 2
	MarkerRoadworkClosed Marker = 3
	MarkerCrash          Marker = 4
	MarkerRoadwork       Marker = 5
)

type Record struct {
	ID                  string      `json:"id"`
	Source              string      `json:"source"`
	Category            string      `json:"category"`
	Status              string      `json:"status"`
	Marker              Marker      `json:"marker"`
	LocationDescription string      `json:"location_description"`
	Road                string      `json:"road,omitempty"`
	Direction           string      `json:"direction,omitempty"`
	Coordinates         Coordinates `json:"coordinates"`
	Details             string      `json:"details"`
	URL                 string      `json:"url,omitempty"`
	StartsAt            *time.Time  `json:"starts_at,omitempty"`
	EndsAt              *time.Time  `json:"ends_at,omitempty"`
	Archived            bool        `json:"archived"`
}

// Object is one loosely-typed provider record, either decoded from JSON or
// produced by the markup tree converter.
type Object = map[string]any

// Configuration types

type SourceKind string

const (
	SourceKindMarkup  SourceKind = "markup"
	SourceKindObjects SourceKind = "objects"
	SourceKindGeoRSS  SourceKind = "georss"
)

type Config struct {
	Name     string              // Derived from filename (without .yml extension)
	URL      string              `yaml:"url"`
	Kind     SourceKind          `yaml:"kind"`
	Order    int                 `yaml:"order"` // declaration order within a refresh cycle
	Settings ConfigSettings      `yaml:"settings"`
	Schema   ConfigSchema        `yaml:"schema"`
	Fields   map[string][]string `yaml:"fields"` // extra provider synonyms per canonical field
	Filters  []ConfigFilter      `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled     bool  `yaml:"enabled"`
	Timeout     int   `yaml:"timeout"`      // seconds
	TimeBounded *bool `yaml:"time_bounded"` // drop records whose end date has passed
}

type ConfigSchema struct {
	RecordPath string   `yaml:"record_path"` // dotted path to the record list
	Repeatable []string `yaml:"repeatable"`  // markup tags that are always lists
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// IsTimeBounded reports whether expired records are dropped for this source.
// Markup sources default to true, the others to false.
func (c *Config) IsTimeBounded() bool {
	if c.Settings.TimeBounded != nil {
		return *c.Settings.TimeBounded
	}
	return c.Kind == SourceKindMarkup
}

func (c *Config) GetTimeout() time.Duration {
	if c.Settings.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Settings.Timeout) * time.Second
}
