package feed

import (
	"encoding/json"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

const DefaultRecordPath = "RoadActivities.RoadActivity"

// Canonical record fields
const (
	FieldID                   = "id"
	FieldCategory             = "category"
	FieldStatus               = "status"
	FieldDistrict             = "district"
	FieldCounty               = "county"
	FieldRoad                 = "road"
	FieldDirection            = "direction"
	FieldLongitude            = "longitude"
	FieldLatitude             = "latitude"
	FieldStart                = "start"
	FieldEnd                  = "end"
	FieldDescription          = "description"
	FieldStartMileDescription = "start_mile_description"
	FieldEndMileDescription   = "end_mile_description"
	FieldStartMile            = "start_mile"
	FieldEndMile              = "end_mile"
	FieldURL                  = "url"
)

// defaultSynonyms lists provider field names per canonical field, most
// specific first. Dotted names descend into nested objects.
var defaultSynonyms = map[string][]string{
	FieldID:                   {"Id", "ID", "ReportId", "EventId", "guid"},
	FieldCategory:             {"Category", "EventType", "Type"},
	FieldStatus:               {"Status", "RoadStatus", "Condition"},
	FieldDistrict:             {"DistrictNumber", "District", "dist"},
	FieldCounty:               {"CountyCode", "County"},
	FieldRoad:                 {"Road", "RoadName", "Route", "title"},
	FieldDirection:            {"Direction", "TravelDirection"},
	FieldLongitude:            {"Longitude", "Lon", "Lng", "long"},
	FieldLatitude:             {"Latitude", "Lat"},
	FieldStart:                {"ActivityStartDateTime", "StartDate", "StartTime", "BeginDate", "published"},
	FieldEnd:                  {"ActivityEndDateTime", "EndDate", "EndTime", "EstimatedEndDate"},
	FieldDescription:          {"Description", "Comments", "Details"},
	FieldStartMileDescription: {"StartMileDescription", "StartLocation", "FromLocation"},
	FieldEndMileDescription:   {"EndMileDescription", "EndLocation", "ToLocation"},
	FieldStartMile:            {"StartMile", "BeginMile", "StartMileMarker"},
	FieldEndMile:              {"EndMile", "EndMileMarker"},
	FieldURL:                  {"Contact.ProjectURL", "ProjectURL", "URL", "link"},
}

// fieldMapper resolves canonical fields against one source's records. It is
// not safe for concurrent use because the folding caser keeps state.
type fieldMapper struct {
	synonyms map[string][]string
	fold     cases.Caser
}

func newFieldMapper(extra map[string][]string) *fieldMapper {
	synonyms := make(map[string][]string, len(defaultSynonyms))
	for field, names := range defaultSynonyms {
		synonyms[field] = append(append([]string{}, extra[field]...), names...)
	}
	return &fieldMapper{
		synonyms: synonyms,
		fold:     cases.Fold(),
	}
}

// Get returns the first non-empty synonym value for a canonical field, or ""
// when the record carries none.
func (m *fieldMapper) Get(obj Object, field string) string {
	for _, name := range m.synonyms[field] {
		if value, ok := m.lookup(obj, name); ok {
			if s := scalarString(value); s != "" {
				return s
			}
		}
	}
	return ""
}

func (m *fieldMapper) lookup(obj Object, name string) (any, bool) {
	var current any = obj
	for _, part := range strings.Split(name, ".") {
		next, ok := current.(Object)
		if !ok {
			return nil, false
		}
		current, ok = m.key(next, part)
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// key looks a field up exactly, then case-folded.
func (m *fieldMapper) key(obj Object, name string) (any, bool) {
	if value, ok := obj[name]; ok {
		return value, true
	}

	folded := m.fold.String(name)
	for k, value := range obj {
		if m.fold.String(k) == folded {
			return value, true
		}
	}
	return nil, false
}

func scalarString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case Object:
		return scalarString(v[TextKey])
	case []any:
		if len(v) > 0 {
			return scalarString(v[0])
		}
	}
	return ""
}
