package feed

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const detailsSeparator = "<br>"

var bareHostPattern = regexp.MustCompile(`ohio\.gov|state\.oh\.us|www`)

type Normalizer struct {
	location *time.Location
	now      func() time.Time
	parser   *Parser
}

type NormalizerOption func(*Normalizer)

// WithLocation sets the zone provider dates are read in.
func WithLocation(loc *time.Location) NormalizerOption {
	return func(n *Normalizer) {
		if loc != nil {
			n.location = loc
		}
	}
}

func WithClock(now func() time.Time) NormalizerOption {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		location: time.Local,
		now:      time.Now,
		parser:   NewParser(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Run converts one source payload into records in feed order. A payload that
// cannot be decoded at all returns a MalformedPayloadError; individual records
// without coordinates or past their end date are dropped.
func (n *Normalizer) Run(payload []byte, source *Config) ([]Record, error) {
	objects, err := n.decode(payload, source)
	if err != nil {
		return nil, &MalformedPayloadError{Source: source.Name, Kind: source.Kind, Err: err}
	}

	mapper := newFieldMapper(source.Fields)
	now := n.now()
	timeBounded := source.IsTimeBounded()

	records := make([]Record, 0, len(objects))
	for _, obj := range objects {
		record, err := n.normalizeObject(obj, source.Name, mapper)
		if err != nil {
			slog.Debug("Record dropped", "source", source.Name, "error", err)
			continue
		}

		if timeBounded && n.expired(record, now) {
			slog.Debug("Record expired", "source", source.Name, "id", record.ID)
			continue
		}

		records = append(records, record)
	}

	return records, nil
}

func (n *Normalizer) decode(payload []byte, source *Config) ([]Object, error) {
	switch source.Kind {
	case SourceKindMarkup:
		tree, err := ParseTree(payload, source.Schema.Repeatable)
		if err != nil {
			return nil, err
		}
		recordPath := source.Schema.RecordPath
		if recordPath == "" {
			recordPath = DefaultRecordPath
		}
		value, ok := Lookup(tree, recordPath)
		if !ok {
			return nil, nil
		}
		return objectList(value), nil

	case SourceKindObjects:
		return decodeObjects(payload)

	case SourceKindGeoRSS:
		return n.parser.Run(payload)

	default:
		return nil, fmt.Errorf("unknown source kind: %s", source.Kind)
	}
}

func (n *Normalizer) normalizeObject(obj Object, sourceName string, mapper *fieldMapper) (Record, error) {
	record := Record{
		ID:        mapper.Get(obj, FieldID),
		Source:    sourceName,
		Category:  mapper.Get(obj, FieldCategory),
		Status:    mapper.Get(obj, FieldStatus),
		Road:      mapper.Get(obj, FieldRoad),
		Direction: mapper.Get(obj, FieldDirection),
	}

	lon, lonErr := strconv.ParseFloat(mapper.Get(obj, FieldLongitude), 64)
	lat, latErr := strconv.ParseFloat(mapper.Get(obj, FieldLatitude), 64)
	if lonErr != nil || latErr != nil {
		return Record{}, &MissingRequiredFieldError{Source: sourceName, RecordID: record.ID, Field: "coordinates"}
	}
	record.Coordinates = Coordinates{Longitude: lon, Latitude: lat}

	start := mapper.Get(obj, FieldStart)
	end := mapper.Get(obj, FieldEnd)
	record.StartsAt = n.parseTime(start)
	record.EndsAt = n.parseTime(end)

	rawURL := mapper.Get(obj, FieldURL)
	record.URL = normalizeURL(rawURL)

	record.Marker = classify(record.Category, record.Status)
	record.LocationDescription = composeLocation(mapper.Get(obj, FieldDistrict), mapper.Get(obj, FieldCounty), record.Road, record.Status)
	record.Details = joinNonEmpty(detailsSeparator,
		dateRange(start, end),
		mileRange(mapper, obj),
		mapper.Get(obj, FieldDescription),
		cmp.Or(record.URL, rawURL),
	)

	if record.ID == "" {
		record.ID = generateRecordID(record, start)
	}

	return record, nil
}

func (n *Normalizer) parseTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := dateparse.ParseIn(value, n.location)
	if err != nil {
		return nil
	}
	return &t
}

// expired reports whether the record's end date ended before now. The end of
// the activity is the last minute of its end date in the configured zone.
func (n *Normalizer) expired(record Record, now time.Time) bool {
	if record.EndsAt == nil {
		return false
	}
	end := record.EndsAt.In(n.location)
	endOfDay := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 0, 0, n.location)
	return endOfDay.Before(now)
}

func classify(category, status string) Marker {
	closed := strings.EqualFold(status, "Closed")
	category = strings.ToLower(category)

	switch {
	case category == "flooding" || category == "snow/ice" || category == "weather":
		return MarkerWeather
	case strings.HasPrefix(category, "roadwork"):
		if closed {
			return MarkerRoadworkClosed
		}
		return MarkerRoadwork
	default:
		if closed {
			return MarkerCrashClosed
		}
		return MarkerCrash
	}
}

func composeLocation(district, county, road, status string) string {
	return joinNonEmpty(" ",
		joinNonEmpty("-", districtCode(district), county),
		road,
		status,
	)
}

// districtCode renders a district number as D0n or Dnn.
func districtCode(district string) string {
	switch {
	case district == "":
		return ""
	case strings.HasPrefix(strings.ToUpper(district), "D"):
		return strings.ToUpper(district)
	case len(district) == 1:
		return "D0" + district
	default:
		return "D" + district
	}
}

func dateRange(start, end string) string {
	return joinNonEmpty(" - ", start, end)
}

func mileRange(mapper *fieldMapper, obj Object) string {
	from := mapper.Get(obj, FieldStartMileDescription)
	to := mapper.Get(obj, FieldEndMileDescription)
	startMile := mapper.Get(obj, FieldStartMile)
	endMile := mapper.Get(obj, FieldEndMile)

	// The end side only qualifies a start that is present and different.
	if from == "" || to == from {
		to = ""
	}
	if endMile == startMile {
		endMile = ""
	}

	location := joinNonEmpty(" TO ", from, to)
	if startMile != "" {
		location = joinNonEmpty(" ", location, "(MM: "+joinNonEmpty(" - ", startMile, endMile)+")")
	}
	if location == "" {
		return ""
	}
	return "Location: " + location
}

// normalizeURL keeps the text from the first "http" onward, or prefixes a
// bare agency host with http://. Anything else is not a usable link.
func normalizeURL(raw string) string {
	if i := strings.Index(raw, "http"); i >= 0 {
		return raw[i:]
	}
	if bareHostPattern.MatchString(raw) {
		return "http://" + raw
	}
	return ""
}

func generateRecordID(record Record, start string) string {
	content := fmt.Sprintf("%s|%s|%s|%s|%f|%f",
		record.Source,
		record.Category,
		record.Road,
		start,
		record.Coordinates.Longitude,
		record.Coordinates.Latitude)

	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, sep)
}
