// internal/routegeo/validate.go
package routegeo

import (
	"encoding/json"
	"fmt"
)

// ValidationError reports the first contract violation found in a route
// structure. Validation is all-or-nothing; a ValidationError means no part
// of the input should be trusted.
type ValidationError struct {
	// Field is a dotted path to the offending element where one applies,
	// e.g. "properties.title" or "features[2]".
	Field string
	// FeatureIndex is the index of the offending feature, or -1 when the
	// violation is not tied to a feature.
	FeatureIndex int
	Message      string
}

func (e *ValidationError) Error() string {
	return "invalid route data: " + e.Message
}

func newError(msg string) *ValidationError {
	return &ValidationError{FeatureIndex: -1, Message: msg}
}

func newFieldError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, FeatureIndex: -1, Message: msg}
}

func newFeatureError(index int, msg string) *ValidationError {
	return &ValidationError{
		Field:        fmt.Sprintf("features[%d]", index),
		FeatureIndex: index,
		Message:      fmt.Sprintf("feature %d: %s", index, msg),
	}
}

// Validate checks raw JSON against the RouteGeo contract and returns the
// typed structure on success. The check short-circuits on the first
// violation and never partially accepts input.
func Validate(raw []byte) (*RouteGeo, error) {
	var tree interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, newError(fmt.Sprintf("route data is not valid JSON: %v", err))
	}
	return ValidateValue(tree)
}

// ValidateValue checks an already-decoded JSON tree (maps, slices and
// primitives as produced by encoding/json) against the RouteGeo contract.
func ValidateValue(v interface{}) (*RouteGeo, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, newError("route data must be a JSON object")
	}

	if kind, ok := obj["kind"].(string); !ok || kind != KindFeatureCollection {
		return nil, newFieldError("kind", fmt.Sprintf("kind must be %q", KindFeatureCollection))
	}

	rawProps, ok := obj["properties"].(map[string]interface{})
	if !ok {
		return nil, newFieldError("properties", "properties must be an object")
	}
	props, err := validateProperties(rawProps)
	if err != nil {
		return nil, err
	}

	rawFeatures, ok := obj["features"].([]interface{})
	if !ok {
		return nil, newFieldError("features", "features must be an array")
	}
	if len(rawFeatures) == 0 {
		return nil, newFieldError("features", "features must contain at least one feature")
	}

	features := make([]Feature, 0, len(rawFeatures))
	for i, rf := range rawFeatures {
		feature, err := validateFeature(i, rf)
		if err != nil {
			return nil, err
		}
		features = append(features, feature)
	}

	return &RouteGeo{
		Kind:       KindFeatureCollection,
		Properties: props,
		Features:   features,
	}, nil
}

func validateProperties(obj map[string]interface{}) (Properties, *ValidationError) {
	var props Properties

	rawTitle, present := obj["title"]
	if !present {
		return props, newFieldError("properties.title", "properties.title is required")
	}
	title, ok := rawTitle.(string)
	if !ok {
		return props, newFieldError("properties.title", "properties.title must be a string")
	}
	if n := len([]rune(title)); n < 1 || n > 60 {
		return props, newFieldError("properties.title", "properties.title must be between 1 and 60 characters")
	}

	distance, err := positiveNumber(obj, "total_distance_km")
	if err != nil {
		return props, err
	}
	duration, err := positiveNumber(obj, "total_duration_h")
	if err != nil {
		return props, err
	}

	var highlights []string
	if rawHighlights, present := obj["highlights"]; present && rawHighlights != nil {
		arr, ok := rawHighlights.([]interface{})
		if !ok {
			return props, newFieldError("properties.highlights", "properties.highlights must be an array of strings")
		}
		highlights = make([]string, 0, len(arr))
		for i, item := range arr {
			s, ok := item.(string)
			if !ok {
				return props, newFieldError(
					fmt.Sprintf("properties.highlights[%d]", i),
					fmt.Sprintf("properties.highlights[%d] must be a string", i),
				)
			}
			highlights = append(highlights, s)
		}
	}

	props.Title = title
	props.TotalDistanceKm = distance
	props.TotalDurationH = duration
	props.Highlights = highlights
	return props, nil
}

func positiveNumber(obj map[string]interface{}, key string) (float64, *ValidationError) {
	field := "properties." + key
	raw, present := obj[key]
	if !present {
		return 0, newFieldError(field, field+" is required")
	}
	n, ok := numberValue(raw)
	if !ok || !(n > 0) {
		return 0, newFieldError(field, field+" must be a number greater than zero")
	}
	return n, nil
}

func validateFeature(index int, v interface{}) (Feature, *ValidationError) {
	var feature Feature

	obj, ok := v.(map[string]interface{})
	if !ok {
		return feature, newFeatureError(index, "must be an object")
	}
	if kind, ok := obj["kind"].(string); !ok || kind != KindFeature {
		return feature, newFeatureError(index, fmt.Sprintf("kind must be %q", KindFeature))
	}

	rawGeometry, ok := obj["geometry"].(map[string]interface{})
	if !ok {
		return feature, newFeatureError(index, "geometry must be an object")
	}
	geometry, err := validateGeometry(index, rawGeometry)
	if err != nil {
		return feature, err
	}

	var featureProps map[string]interface{}
	if rawProps, present := obj["properties"]; present && rawProps != nil {
		featureProps, ok = rawProps.(map[string]interface{})
		if !ok {
			return feature, newFeatureError(index, "properties must be an object or null")
		}
	}

	feature.Kind = KindFeature
	feature.Geometry = geometry
	feature.Properties = featureProps
	return feature, nil
}

func validateGeometry(index int, obj map[string]interface{}) (Geometry, *ValidationError) {
	var geometry Geometry

	kind, ok := obj["kind"].(string)
	if !ok {
		return geometry, newFeatureError(index, `geometry requires a kind of "Point" or "LineString"`)
	}

	switch GeometryType(kind) {
	case GeometryPoint:
		lon, ok := numberValue(obj["lon"])
		if !ok {
			return geometry, newFeatureError(index, "point lon must be a number")
		}
		lat, ok := numberValue(obj["lat"])
		if !ok {
			return geometry, newFeatureError(index, "point lat must be a number")
		}
		if err := checkBounds(index, -1, lon, lat); err != nil {
			return geometry, err
		}
		geometry.Type = GeometryPoint
		geometry.Point = Coordinate{Lon: lon, Lat: lat}
		return geometry, nil

	case GeometryLineString:
		rawPoints, ok := obj["points"].([]interface{})
		if !ok {
			return geometry, newFeatureError(index, "line points must be an array")
		}
		if len(rawPoints) < 2 {
			return geometry, newFeatureError(index, "line must contain at least 2 points")
		}
		line := make([]Coordinate, 0, len(rawPoints))
		for j, rawPoint := range rawPoints {
			pair, ok := rawPoint.([]interface{})
			if !ok || len(pair) != 2 {
				return geometry, newFeatureError(index, fmt.Sprintf("point %d must be a pair of numbers", j))
			}
			lon, lonOK := numberValue(pair[0])
			lat, latOK := numberValue(pair[1])
			if !lonOK || !latOK {
				return geometry, newFeatureError(index, fmt.Sprintf("point %d must be a pair of numbers", j))
			}
			if err := checkBounds(index, j, lon, lat); err != nil {
				return geometry, err
			}
			line = append(line, Coordinate{Lon: lon, Lat: lat})
		}
		geometry.Type = GeometryLineString
		geometry.Line = line
		return geometry, nil

	default:
		return geometry, newFeatureError(index, fmt.Sprintf("unsupported geometry kind %q", kind))
	}
}

// checkBounds validates one coordinate pair. pointIndex is the position
// within a line, or -1 for a standalone point.
func checkBounds(featureIndex, pointIndex int, lon, lat float64) *ValidationError {
	prefix := ""
	if pointIndex >= 0 {
		prefix = fmt.Sprintf("point %d: ", pointIndex)
	}
	if !(lon >= -180 && lon <= 180) {
		return newFeatureError(featureIndex, fmt.Sprintf("%slongitude %g out of range [-180, 180]", prefix, lon))
	}
	if !(lat >= -90 && lat <= 90) {
		return newFeatureError(featureIndex, fmt.Sprintf("%slatitude %g out of range [-90, 90]", prefix, lat))
	}
	return nil
}

func numberValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Validate re-checks an already-typed structure against the same contract.
// Converters call this defensively so a hand-built or mutated RouteGeo
// cannot bypass validation.
func (r *RouteGeo) Validate() error {
	if r == nil {
		return newError("route data must not be nil")
	}
	if r.Kind != KindFeatureCollection {
		return newFieldError("kind", fmt.Sprintf("kind must be %q", KindFeatureCollection))
	}
	if n := len([]rune(r.Properties.Title)); n < 1 || n > 60 {
		return newFieldError("properties.title", "properties.title must be between 1 and 60 characters")
	}
	if !(r.Properties.TotalDistanceKm > 0) {
		return newFieldError("properties.total_distance_km", "properties.total_distance_km must be a number greater than zero")
	}
	if !(r.Properties.TotalDurationH > 0) {
		return newFieldError("properties.total_duration_h", "properties.total_duration_h must be a number greater than zero")
	}
	if len(r.Features) == 0 {
		return newFieldError("features", "features must contain at least one feature")
	}

	for i, f := range r.Features {
		if f.Kind != KindFeature {
			return newFeatureError(i, fmt.Sprintf("kind must be %q", KindFeature))
		}
		switch f.Geometry.Type {
		case GeometryPoint:
			if err := checkBounds(i, -1, f.Geometry.Point.Lon, f.Geometry.Point.Lat); err != nil {
				return err
			}
		case GeometryLineString:
			if len(f.Geometry.Line) < 2 {
				return newFeatureError(i, "line must contain at least 2 points")
			}
			for j, c := range f.Geometry.Line {
				if err := checkBounds(i, j, c.Lon, c.Lat); err != nil {
					return err
				}
			}
		default:
			return newFeatureError(i, fmt.Sprintf("unsupported geometry kind %q", f.Geometry.Type))
		}
	}
	return nil
}
