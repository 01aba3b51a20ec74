package feed

import (
	"testing"
)

func testRecords() []Record {
	return []Record{
		{ID: "1", Category: "Crash", Status: "Closed", Road: "I-71", LocationDescription: "D08-HAM I-71 Closed", Direction: "North"},
		{ID: "2", Category: "Roadwork - Planned", Status: "Restricted", Road: "US-23", LocationDescription: "D06-DEL US-23 Restricted"},
		{ID: "3", Category: "Flooding", Status: "Open", Road: "SR-4", Details: "High water near bridge"},
	}
}

func TestFilterer_NoFilters(t *testing.T) {
	filterer := NewFilterer()

	result := filterer.Run(testRecords(), &Config{})

	if len(result) != 3 {
		t.Errorf("Expected 3 records, got %d", len(result))
	}
}

func TestFilterer_CategoryInclude(t *testing.T) {
	filterer := NewFilterer()

	config := &Config{
		Filters: []ConfigFilter{
			{
				Field:    "category",
				Includes: []string{"crash", "roadwork"},
			},
		},
	}

	result := filterer.Run(testRecords(), config)

	if len(result) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(result))
	}
	if result[0].ID != "1" || result[1].ID != "2" {
		t.Errorf("Expected records 1 and 2 in feed order, got %s and %s", result[0].ID, result[1].ID)
	}
}

func TestFilterer_StatusExclude(t *testing.T) {
	filterer := NewFilterer()

	config := &Config{
		Filters: []ConfigFilter{
			{
				Field:    "status",
				Excludes: []string{"OPEN"},
			},
		},
	}

	result := filterer.Run(testRecords(), config)

	if len(result) != 2 {
		t.Errorf("Expected 2 records, got %d", len(result))
	}
	for _, record := range result {
		if record.Status == "Open" {
			t.Errorf("Expected open record to be excluded, got %s", record.ID)
		}
	}
}

func TestFilterer_ExcludeWinsOverInclude(t *testing.T) {
	filterer := NewFilterer()

	config := &Config{
		Filters: []ConfigFilter{
			{
				Field:    "location",
				Includes: []string{"I-71", "US-23"},
				Excludes: []string{"closed"},
			},
		},
	}

	result := filterer.Run(testRecords(), config)

	if len(result) != 1 || result[0].ID != "2" {
		t.Errorf("Expected only record 2, got %+v", result)
	}
}

func TestFilterer_MultipleFilters(t *testing.T) {
	filterer := NewFilterer()

	config := &Config{
		Filters: []ConfigFilter{
			{Field: "road", Excludes: []string{"US-"}},
			{Field: "details", Includes: []string{"water"}},
		},
	}

	result := filterer.Run(testRecords(), config)

	if len(result) != 1 || result[0].ID != "3" {
		t.Errorf("Expected only record 3, got %+v", result)
	}
}

func TestFilterer_DirectionInclude(t *testing.T) {
	filterer := NewFilterer()
	config := &Config{
		Filters: []ConfigFilter{{Field: "direction", Includes: []string{"north"}}},
	}

	records := testRecords()
	result := filterer.Run(records, config)

	for _, record := range result {
		if record.ID == records[1].ID {
			t.Error("Expected record without direction to be excluded")
		}
	}
	if len(result) == 0 || result[0].ID != records[0].ID {
		t.Errorf("Expected northbound record %s to be kept first, got %+v", records[0].ID, result)
	}
}
