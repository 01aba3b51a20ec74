package feed

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var testZone = time.FixedZone("EST", -5*60*60)

func newTestNormalizer() *Normalizer {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, testZone)
	return NewNormalizer(WithLocation(testZone), WithClock(func() time.Time { return now }))
}

const roadActivityPayload = `<?xml version="1.0" encoding="utf-8"?>
<RoadActivities>
  <RoadActivity Id="1001">
    <Category>Roadwork - Planned</Category>
    <Status>Closed</Status>
    <DistrictNumber>8</DistrictNumber>
    <CountyCode>HAM</CountyCode>
    <Road>I-71</Road>
    <Direction>North</Direction>
    <Latitude>39.16</Latitude>
    <Longitude>-84.45</Longitude>
    <ActivityStartDateTime>06/01/2024 08:00:00 AM</ActivityStartDateTime>
    <ActivityEndDateTime>06/30/2024 05:00:00 PM</ActivityEndDateTime>
    <StartMileDescription>SR-562</StartMileDescription>
    <EndMileDescription>Norwood Lateral</EndMileDescription>
    <StartMile>5.1</StartMile>
    <EndMile>6.4</EndMile>
    <Description>Lane closure</Description>
    <Contact><ProjectURL>www.transportation.ohio.gov/project</ProjectURL></Contact>
  </RoadActivity>
  <RoadActivity Id="1002">
    <Category>Crash</Category>
    <Status>Restricted</Status>
    <DistrictNumber>12</DistrictNumber>
    <CountyCode>CUY</CountyCode>
    <Road>I-90</Road>
    <Latitude>41.49</Latitude>
    <Longitude>-81.69</Longitude>
    <ActivityEndDateTime>06/10/2024 05:00:00 PM</ActivityEndDateTime>
  </RoadActivity>
  <RoadActivity Id="1003">
    <Category>Flooding</Category>
    <Status>Open</Status>
    <Road>SR-4</Road>
    <Latitude>39.40</Latitude>
    <Longitude>-84.56</Longitude>
    <ActivityEndDateTime>06/15/2024 11:00:00 PM</ActivityEndDateTime>
  </RoadActivity>
  <RoadActivity Id="1004">
    <Category>Crash</Category>
    <Road>US-33</Road>
  </RoadActivity>
</RoadActivities>`

func markupSource() *Config {
	return &Config{
		Name:   "ohio",
		Kind:   SourceKindMarkup,
		Schema: ConfigSchema{RecordPath: DefaultRecordPath, Repeatable: []string{"RoadActivity"}},
	}
}

func TestNormalizerMarkupRecords(t *testing.T) {
	records, err := newTestNormalizer().Run([]byte(roadActivityPayload), markupSource())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// 1002 has expired and 1004 has no coordinates
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.ID != "1001" {
		t.Errorf("Expected ID '1001', got '%s'", first.ID)
	}
	if first.Source != "ohio" {
		t.Errorf("Expected source 'ohio', got '%s'", first.Source)
	}
	if first.LocationDescription != "D08-HAM I-71 Closed" {
		t.Errorf("Expected location 'D08-HAM I-71 Closed', got '%s'", first.LocationDescription)
	}
	if first.Marker != MarkerRoadworkClosed {
		t.Errorf("Expected roadwork closed marker, got %d", first.Marker)
	}
	if first.Direction != "North" {
		t.Errorf("Expected direction 'North', got '%s'", first.Direction)
	}
	if first.Coordinates.Longitude != -84.45 || first.Coordinates.Latitude != 39.16 {
		t.Errorf("Expected coordinates (-84.45, 39.16), got %+v", first.Coordinates)
	}
	if first.URL != "http://www.transportation.ohio.gov/project" {
		t.Errorf("Expected normalized URL, got '%s'", first.URL)
	}

	expectedDetails := "06/01/2024 08:00:00 AM - 06/30/2024 05:00:00 PM<br>Location: SR-562 TO Norwood Lateral (MM: 5.1 - 6.4)<br>Lane closure<br>http://www.transportation.ohio.gov/project"
	if first.Details != expectedDetails {
		t.Errorf("Expected details %q, got %q", expectedDetails, first.Details)
	}

	if first.StartsAt == nil || !first.StartsAt.Equal(time.Date(2024, 6, 1, 8, 0, 0, 0, testZone)) {
		t.Errorf("Expected start 2024-06-01 08:00 in configured zone, got %v", first.StartsAt)
	}

	second := records[1]
	if second.ID != "1003" {
		t.Errorf("Expected ID '1003' (ends today), got '%s'", second.ID)
	}
	if second.Marker != MarkerWeather {
		t.Errorf("Expected weather marker, got %d", second.Marker)
	}
	if second.LocationDescription != "SR-4 Open" {
		t.Errorf("Expected location 'SR-4 Open', got '%s'", second.LocationDescription)
	}
	if second.Details != "06/15/2024 11:00:00 PM" {
		t.Errorf("Expected details with only the end date, got %q", second.Details)
	}
}

func TestNormalizerExpiredRecordExcluded(t *testing.T) {
	payload := `<RoadActivities><RoadActivity Id="9">
	<Category>Crash</Category><Status>Closed</Status><Road>I-70</Road>
	<Latitude>40.0</Latitude><Longitude>-83.0</Longitude>
	<ActivityEndDateTime>06/14/2024 05:00:00 PM</ActivityEndDateTime>
	</RoadActivity></RoadActivities>`

	records, err := newTestNormalizer().Run([]byte(payload), markupSource())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected expired record to be excluded, got %d records", len(records))
	}
}

func TestNormalizerTimeBoundedDisabled(t *testing.T) {
	payload := `<RoadActivities><RoadActivity Id="9">
	<Latitude>40.0</Latitude><Longitude>-83.0</Longitude>
	<ActivityEndDateTime>01/01/2020 05:00:00 PM</ActivityEndDateTime>
	</RoadActivity></RoadActivities>`

	source := markupSource()
	disabled := false
	source.Settings.TimeBounded = &disabled

	records, err := newTestNormalizer().Run([]byte(payload), source)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected record to be kept when time bounding is off, got %d", len(records))
	}
}

func TestNormalizerShippedOhioSourceMapsDates(t *testing.T) {
	configCache := NewConfigCache(filepath.Join("..", "..", "sources"))
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}
	source, err := configCache.GetConfig("ohio-road-activity")
	if err != nil {
		t.Fatal(err)
	}

	payload := `<?xml version="1.0" encoding="utf-8"?>
<RoadActivities>
  <RoadActivity Id="2001">
    <Category>Roadwork - Planned</Category>
    <Status>Restricted</Status>
    <DistrictNumber>6</DistrictNumber>
    <CountyCode>FRA</CountyCode>
    <Road>I-270</Road>
    <Latitude>39.95</Latitude>
    <Longitude>-83.10</Longitude>
    <ActivityStartDateTime>12/01/2019 07:00:00 AM</ActivityStartDateTime>
    <ActivityEndDateTime>01/02/2020 05:00:00 PM</ActivityEndDateTime>
  </RoadActivity>
  <RoadActivity Id="2002">
    <Category>Roadwork - Planned</Category>
    <Status>Restricted</Status>
    <DistrictNumber>6</DistrictNumber>
    <CountyCode>FRA</CountyCode>
    <Road>I-670</Road>
    <Latitude>39.97</Latitude>
    <Longitude>-82.99</Longitude>
    <ActivityStartDateTime>06/10/2024 07:00:00 AM</ActivityStartDateTime>
    <ActivityEndDateTime>07/01/2024 05:00:00 PM</ActivityEndDateTime>
  </RoadActivity>
</RoadActivities>`

	records, err := newTestNormalizer().Run([]byte(payload), source)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("Expected only the current record, got %d", len(records))
	}
	record := records[0]
	if record.ID != "2002" {
		t.Errorf("Expected ID '2002', got '%s'", record.ID)
	}
	if record.StartsAt == nil || record.EndsAt == nil {
		t.Fatalf("Expected start and end to be mapped, got %v and %v", record.StartsAt, record.EndsAt)
	}
	if !record.EndsAt.Equal(time.Date(2024, 7, 1, 17, 0, 0, 0, testZone)) {
		t.Errorf("Expected end 2024-07-01 17:00, got %v", record.EndsAt)
	}
	if record.Details != "06/10/2024 07:00:00 AM - 07/01/2024 05:00:00 PM" {
		t.Errorf("Expected date range in details, got %q", record.Details)
	}
}

func TestNormalizerSingleRecordWithoutRepeatable(t *testing.T) {
	payload := `<RoadActivities><RoadActivity Id="5"><Latitude>40.0</Latitude><Longitude>-83.0</Longitude></RoadActivity></RoadActivities>`

	source := markupSource()
	source.Schema.Repeatable = nil

	records, err := newTestNormalizer().Run([]byte(payload), source)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(records) != 1 || records[0].ID != "5" {
		t.Errorf("Expected single record '5', got %+v", records)
	}
}

func TestNormalizerEmptyMarkupFeed(t *testing.T) {
	records, err := newTestNormalizer().Run([]byte(`<RoadActivities/>`), markupSource())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected 0 records, got %d", len(records))
	}
}

func TestNormalizerMalformedMarkup(t *testing.T) {
	_, err := newTestNormalizer().Run([]byte(`<RoadActivities><RoadActivity>`), markupSource())

	var malformed *MalformedPayloadError
	if !errors.As(err, &malformed) {
		t.Fatalf("Expected MalformedPayloadError, got %v", err)
	}
	if malformed.Source != "ohio" {
		t.Errorf("Expected source 'ohio', got '%s'", malformed.Source)
	}
}

func TestNormalizerObjectList(t *testing.T) {
	payload := `[{"id":"1","longitude":-83.0,"latitude":40.0,"category":"Crash","status":"Closed"}]`
	source := &Config{Name: "a", Kind: SourceKindObjects}

	records, err := newTestNormalizer().Run([]byte(payload), source)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}

	record := records[0]
	if record.ID != "1" {
		t.Errorf("Expected ID '1', got '%s'", record.ID)
	}
	if !strings.Contains(record.LocationDescription, "Closed") {
		t.Errorf("Expected location description to contain 'Closed', got '%s'", record.LocationDescription)
	}
	if record.Marker != MarkerCrashClosed {
		t.Errorf("Expected crash closed marker, got %d", record.Marker)
	}
	if record.Archived {
		t.Error("Expected normalizer never to set archived")
	}
	if record.Details != "" {
		t.Errorf("Expected empty details, got %q", record.Details)
	}
}

func TestNormalizerObjectsNotTimeBoundedByDefault(t *testing.T) {
	payload := `[{"Id":"2","Longitude":"-83.1","Latitude":"40.1","EndDate":"2020-01-01"}]`
	source := &Config{Name: "a", Kind: SourceKindObjects}

	records, err := newTestNormalizer().Run([]byte(payload), source)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected past record to be kept for object sources, got %d", len(records))
	}
}

func TestNormalizerGeoJSONFeatures(t *testing.T) {
	payload := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","id":"f-1","geometry":{"type":"Point","coordinates":[-82.99,39.96]},
	   "properties":{"EventType":"Crash","RoadStatus":"Restricted","District":"6","County":"FRA","RoadName":"I-270"}},
	  {"type":"Feature","geometry":{"type":"LineString","coordinates":[[-83.5,40.5],[-83.6,40.6]]},
	   "properties":{"id":"f-2","Category":"Roadwork - Unplanned"}},
	  {"type":"Feature","geometry":null,"properties":{"id":"f-3"}}
	]}`
	source := &Config{Name: "geo", Kind: SourceKindObjects}

	records, err := newTestNormalizer().Run([]byte(payload), source)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}

	if records[0].ID != "f-1" {
		t.Errorf("Expected feature id 'f-1', got '%s'", records[0].ID)
	}
	if records[0].LocationDescription != "D06-FRA I-270 Restricted" {
		t.Errorf("Expected synonym-mapped location, got '%s'", records[0].LocationDescription)
	}
	if records[0].Coordinates.Longitude != -82.99 || records[0].Coordinates.Latitude != 39.96 {
		t.Errorf("Expected point coordinates, got %+v", records[0].Coordinates)
	}
	if records[1].Coordinates.Longitude != -83.5 || records[1].Coordinates.Latitude != 40.5 {
		t.Errorf("Expected first line vertex, got %+v", records[1].Coordinates)
	}
	if records[1].Marker != MarkerRoadwork {
		t.Errorf("Expected roadwork marker, got %d", records[1].Marker)
	}
}

func TestNormalizerJSONPEnvelope(t *testing.T) {
	payload := `callback([{"ID":"7","Lon":-83.0,"Lat":40.0}]);`
	source := &Config{Name: "jsonp", Kind: SourceKindObjects}

	records, err := newTestNormalizer().Run([]byte(payload), source)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(records) != 1 || records[0].ID != "7" {
		t.Errorf("Expected record '7', got %+v", records)
	}
}

func TestNormalizerMalformedObjects(t *testing.T) {
	cases := []string{
		`{"not":"a list"}`,
		`[{"id":"1"}`,
		`"just a string"`,
		`[] trailing`,
	}

	for _, payload := range cases {
		_, err := newTestNormalizer().Run([]byte(payload), &Config{Name: "bad", Kind: SourceKindObjects})

		var malformed *MalformedPayloadError
		if !errors.As(err, &malformed) {
			t.Errorf("Expected MalformedPayloadError for %q, got %v", payload, err)
		}
	}
}

func TestNormalizerExtraSynonyms(t *testing.T) {
	payload := `[{"ref":"x-1","Highway":"SR-161","X":"-83.0","Y":"40.0"}]`
	source := &Config{
		Name: "custom",
		Kind: SourceKindObjects,
		Fields: map[string][]string{
			FieldID:        {"ref"},
			FieldRoad:      {"Highway"},
			FieldLongitude: {"X"},
			FieldLatitude:  {"Y"},
		},
	}

	records, err := newTestNormalizer().Run([]byte(payload), source)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0].ID != "x-1" || records[0].Road != "SR-161" {
		t.Errorf("Expected extra synonyms to be used, got %+v", records[0])
	}
}

func TestNormalizerGeneratedID(t *testing.T) {
	payload := `[{"Category":"Crash","Road":"I-75","Longitude":-84.1,"Latitude":39.7}]`
	source := &Config{Name: "noid", Kind: SourceKindObjects}

	first, err := newTestNormalizer().Run([]byte(payload), source)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	second, _ := newTestNormalizer().Run([]byte(payload), source)

	if len(first[0].ID) != 64 {
		t.Errorf("Expected SHA-256 hex ID, got '%s'", first[0].ID)
	}
	if first[0].ID != second[0].ID {
		t.Error("Expected generated ID to be deterministic")
	}
}

func TestDistrictCode(t *testing.T) {
	cases := map[string]string{
		"":    "",
		"7":   "D07",
		"12":  "D12",
		"d03": "D03",
	}

	for input, expected := range cases {
		if got := districtCode(input); got != expected {
			t.Errorf("districtCode(%q): expected %q, got %q", input, expected, got)
		}
	}
}

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"":                                "",
		"See http://example.com/a":        "http://example.com/a",
		"https://dot.state.oh.us/x":       "https://dot.state.oh.us/x",
		"www.buckeyetraffic.org":          "http://www.buckeyetraffic.org",
		"transportation.ohio.gov/project": "http://transportation.ohio.gov/project",
		"call 555-1234":                   "",
	}

	for input, expected := range cases {
		if got := normalizeURL(input); got != expected {
			t.Errorf("normalizeURL(%q): expected %q, got %q", input, expected, got)
		}
	}
}

func TestComposeDetailsSeparators(t *testing.T) {
	if got := joinNonEmpty(detailsSeparator, "", "only", ""); got != "only" {
		t.Errorf("Expected no stray separators, got %q", got)
	}
	if got := dateRange("", "06/30/2024"); got != "06/30/2024" {
		t.Errorf("Expected end date alone, got %q", got)
	}

	mapper := newFieldMapper(nil)
	cases := []struct {
		obj      Object
		expected string
	}{
		{
			Object{"StartMileDescription": "SR-4", "EndMileDescription": "SR-4", "StartMile": "5", "EndMile": "5"},
			"Location: SR-4 (MM: 5)",
		},
		{
			Object{"EndMileDescription": "Norwood Lateral", "StartMile": "5.1", "EndMile": "6.4"},
			"Location: (MM: 5.1 - 6.4)",
		},
		{
			Object{"StartMileDescription": "SR-562", "EndMileDescription": "Norwood Lateral"},
			"Location: SR-562 TO Norwood Lateral",
		},
		{
			Object{"EndMileDescription": "Norwood Lateral", "EndMile": "6.4"},
			"",
		},
	}

	for _, tc := range cases {
		if got := mileRange(mapper, tc.obj); got != tc.expected {
			t.Errorf("mileRange(%v): expected %q, got %q", tc.obj, tc.expected, got)
		}
	}
}
