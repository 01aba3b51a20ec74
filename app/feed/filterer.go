package feed

import (
	"log/slog"
	"strings"
)

var filterFields = map[string]bool{
	"category":  true,
	"status":    true,
	"location":  true,
	"details":   true,
	"road":      true,
	"direction": true,
}

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run drops records excluded by the source's content filters.
func (f *Filterer) Run(records []Record, config *Config) []Record {
	if len(config.Filters) == 0 {
		return records
	}

	kept := make([]Record, 0, len(records))
	for _, record := range records {
		if excluded, reason := f.applyFilters(record, config.Filters); excluded {
			slog.Debug("Record filtered", "source", config.Name, "id", record.ID, "reason", reason)
			continue
		}
		kept = append(kept, record)
	}

	return kept
}

func (f *Filterer) applyFilters(record Record, filters []ConfigFilter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(record, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, "excluded by " + filter.Field + " filter: contains '" + exclude + "'"
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, "excluded by " + filter.Field + " filter: matches no include rule"
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(record Record, field string) string {
	switch field {
	case "category":
		return record.Category
	case "status":
		return record.Status
	case "location":
		return record.LocationDescription
	case "details":
		return record.Details
	case "road":
		return record.Road
	case "direction":
		return record.Direction
	default:
		return ""
	}
}
