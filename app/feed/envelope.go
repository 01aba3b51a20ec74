package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
)

var jsonpPattern = regexp.MustCompile(`^[A-Za-z_$][\w$.]*\s*\(([\s\S]*)\)\s*;?$`)

// decodeObjects accepts a JSON array of objects, a GeoJSON FeatureCollection,
// or either one wrapped in a JSONP callback.
func decodeObjects(payload []byte) ([]Object, error) {
	body := bytes.TrimSpace(payload)
	if m := jsonpPattern.FindSubmatch(body); m != nil {
		body = m[1]
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var envelope any
	if err := decoder.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON value")
	}

	switch v := envelope.(type) {
	case []any:
		return objectList(v), nil
	case Object:
		features, ok := v["features"].([]any)
		if !ok {
			return nil, errors.New("object envelope has no features array")
		}
		return flattenFeatures(features), nil
	default:
		return nil, fmt.Errorf("unsupported JSON envelope %T", envelope)
	}
}

// flattenFeatures lifts GeoJSON feature properties to the top level and maps
// geometry coordinates onto Longitude/Latitude.
func flattenFeatures(features []any) []Object {
	objects := make([]Object, 0, len(features))
	for _, item := range features {
		feature, ok := item.(Object)
		if !ok {
			continue
		}

		obj := Object{}
		if properties, ok := feature["properties"].(Object); ok {
			for k, v := range properties {
				obj[k] = v
			}
		}
		if id, ok := feature["id"]; ok {
			if _, exists := obj["id"]; !exists {
				obj["id"] = id
			}
		}

		if geometry, ok := feature["geometry"].(Object); ok {
			if lon, lat, ok := firstPosition(geometry["coordinates"]); ok {
				obj["Longitude"] = lon
				obj["Latitude"] = lat
			}
		}

		objects = append(objects, obj)
	}
	return objects
}

// firstPosition returns the point of a Point geometry, or the first vertex of
// a line or polygon.
func firstPosition(coordinates any) (string, string, bool) {
	position, ok := coordinates.([]any)
	if !ok || len(position) == 0 {
		return "", "", false
	}
	if _, nested := position[0].([]any); nested {
		return firstPosition(position[0])
	}
	if len(position) < 2 {
		return "", "", false
	}

	lon, lat := scalarString(position[0]), scalarString(position[1])
	if lon == "" || lat == "" {
		return "", "", false
	}
	return lon, lat, true
}
