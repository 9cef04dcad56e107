// internal/routegeo/validate_test.go
package routegeo

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func validTree() map[string]interface{} {
	return map[string]interface{}{
		"kind": "FeatureCollection",
		"properties": map[string]interface{}{
			"title":             "Coastal Loop",
			"total_distance_km": 12.5,
			"total_duration_h":  3.0,
			"highlights":        []interface{}{"lighthouse", "tide pools"},
		},
		"features": []interface{}{
			map[string]interface{}{
				"kind": "Feature",
				"geometry": map[string]interface{}{
					"kind": "Point",
					"lon":  -122.4,
					"lat":  47.6,
				},
				"properties": map[string]interface{}{"name": "Trailhead"},
			},
			map[string]interface{}{
				"kind": "Feature",
				"geometry": map[string]interface{}{
					"kind": "LineString",
					"points": []interface{}{
						[]interface{}{-122.4, 47.6},
						[]interface{}{-122.38, 47.61},
						[]interface{}{-122.35, 47.63},
					},
				},
				"properties": nil,
			},
		},
	}
}

func assertValidationMessage(t *testing.T, err error, fragment string) *ValidationError {
	t.Helper()
	require.Error(t, err)
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr), "expected *ValidationError, got %T: %v", err, err)
	assert.Contains(t, vErr.Message, fragment)
	return vErr
}

// ==========================
// Core Functionality Tests
// ==========================

func TestValidate_Success(t *testing.T) {
	raw := []byte(`{
		"kind": "FeatureCollection",
		"properties": {
			"title": "Coastal Loop",
			"total_distance_km": 12.5,
			"total_duration_h": 3,
			"highlights": ["lighthouse"]
		},
		"features": [
			{"kind": "Feature", "geometry": {"kind": "Point", "lon": -122.4, "lat": 47.6}},
			{"kind": "Feature", "geometry": {"kind": "LineString", "points": [[-122.4, 47.6], [-122.3, 47.7]]}, "properties": null}
		]
	}`)

	route, err := Validate(raw)
	require.NoError(t, err)
	require.NotNil(t, route)

	assert.Equal(t, KindFeatureCollection, route.Kind)
	assert.Equal(t, "Coastal Loop", route.Properties.Title)
	assert.Equal(t, 12.5, route.Properties.TotalDistanceKm)
	assert.Equal(t, 3.0, route.Properties.TotalDurationH)
	assert.Equal(t, []string{"lighthouse"}, route.Properties.Highlights)

	require.Len(t, route.Features, 2)
	assert.Equal(t, GeometryPoint, route.Features[0].Geometry.Type)
	assert.Equal(t, Coordinate{Lon: -122.4, Lat: 47.6}, route.Features[0].Geometry.Point)
	assert.Equal(t, GeometryLineString, route.Features[1].Geometry.Type)
	assert.Len(t, route.Features[1].Geometry.Line, 2)
}

func TestValidateValue_Success(t *testing.T) {
	route, err := ValidateValue(validTree())
	require.NoError(t, err)
	require.Len(t, route.Features, 2)
	assert.Equal(t, "Trailhead", route.Features[0].Name())
	assert.Nil(t, route.Features[1].Properties)
}

// ==========================
// Totality
// ==========================

func TestValidate_NonObjectInputs(t *testing.T) {
	inputs := []string{
		`null`,
		`42`,
		`"a string"`,
		`[1, 2, 3]`,
		`true`,
	}
	for _, input := range inputs {
		_, err := Validate([]byte(input))
		assertValidationMessage(t, err, "must be a JSON object")
	}
}

func TestValidate_MalformedJSON(t *testing.T) {
	_, err := Validate([]byte(`{"kind": `))
	assertValidationMessage(t, err, "not valid JSON")
}

func TestValidateValue_NilAndOddGoValues(t *testing.T) {
	for _, v := range []interface{}{nil, 3.14, "x", []string{"a"}, struct{}{}} {
		_, err := ValidateValue(v)
		require.Error(t, err)
	}
}

// ==========================
// Top-Level Structure
// ==========================

func TestValidate_WrongKind(t *testing.T) {
	tree := validTree()
	tree["kind"] = "GeometryCollection"
	_, err := ValidateValue(tree)
	vErr := assertValidationMessage(t, err, `kind must be "FeatureCollection"`)
	assert.Equal(t, "kind", vErr.Field)

	delete(tree, "kind")
	_, err = ValidateValue(tree)
	assertValidationMessage(t, err, `kind must be "FeatureCollection"`)
}

func TestValidate_BadProperties(t *testing.T) {
	tree := validTree()
	tree["properties"] = "not an object"
	_, err := ValidateValue(tree)
	assertValidationMessage(t, err, "properties must be an object")

	delete(tree, "properties")
	_, err = ValidateValue(tree)
	assertValidationMessage(t, err, "properties must be an object")
}

func TestValidate_BadFeaturesArray(t *testing.T) {
	tree := validTree()
	tree["features"] = map[string]interface{}{}
	_, err := ValidateValue(tree)
	assertValidationMessage(t, err, "features must be an array")

	tree["features"] = []interface{}{}
	_, err = ValidateValue(tree)
	assertValidationMessage(t, err, "at least one feature")
}

// ==========================
// Route Properties
// ==========================

func TestValidate_TitleRules(t *testing.T) {
	setTitle := func(v interface{}) map[string]interface{} {
		tree := validTree()
		tree["properties"].(map[string]interface{})["title"] = v
		return tree
	}

	_, err := ValidateValue(setTitle(nil))
	assertValidationMessage(t, err, "properties.title must be a string")

	_, err = ValidateValue(setTitle(12))
	assertValidationMessage(t, err, "properties.title must be a string")

	_, err = ValidateValue(setTitle(""))
	assertValidationMessage(t, err, "between 1 and 60 characters")

	_, err = ValidateValue(setTitle(strings.Repeat("x", 61)))
	assertValidationMessage(t, err, "between 1 and 60 characters")

	_, err = ValidateValue(setTitle(strings.Repeat("x", 60)))
	assert.NoError(t, err)

	tree := validTree()
	delete(tree["properties"].(map[string]interface{}), "title")
	_, err = ValidateValue(tree)
	assertValidationMessage(t, err, "properties.title is required")
}

func TestValidate_DistanceAndDuration(t *testing.T) {
	setProp := func(key string, v interface{}) map[string]interface{} {
		tree := validTree()
		tree["properties"].(map[string]interface{})[key] = v
		return tree
	}

	for _, key := range []string{"total_distance_km", "total_duration_h"} {
		_, err := ValidateValue(setProp(key, 0))
		assertValidationMessage(t, err, key+" must be a number greater than zero")

		_, err = ValidateValue(setProp(key, -1.5))
		assertValidationMessage(t, err, "greater than zero")

		_, err = ValidateValue(setProp(key, "10"))
		assertValidationMessage(t, err, "greater than zero")

		tree := validTree()
		delete(tree["properties"].(map[string]interface{}), key)
		_, err = ValidateValue(tree)
		assertValidationMessage(t, err, key+" is required")

		_, err = ValidateValue(setProp(key, 0.1))
		assert.NoError(t, err)
	}
}

func TestValidate_Highlights(t *testing.T) {
	setHighlights := func(v interface{}) map[string]interface{} {
		tree := validTree()
		tree["properties"].(map[string]interface{})["highlights"] = v
		return tree
	}

	_, err := ValidateValue(setHighlights("scenic"))
	assertValidationMessage(t, err, "properties.highlights must be an array of strings")

	_, err = ValidateValue(setHighlights([]interface{}{"ok", 7}))
	assertValidationMessage(t, err, "properties.highlights[1] must be a string")

	route, err := ValidateValue(setHighlights([]interface{}{}))
	require.NoError(t, err)
	assert.Empty(t, route.Properties.Highlights)

	// Absent highlights are valid.
	tree := validTree()
	delete(tree["properties"].(map[string]interface{}), "highlights")
	route, err = ValidateValue(tree)
	require.NoError(t, err)
	assert.Nil(t, route.Properties.Highlights)
}

// ==========================
// Features and Geometry
// ==========================

func TestValidate_FeatureShape(t *testing.T) {
	tree := validTree()
	tree["features"] = []interface{}{"not an object"}
	_, err := ValidateValue(tree)
	vErr := assertValidationMessage(t, err, "feature 0: must be an object")
	assert.Equal(t, 0, vErr.FeatureIndex)

	tree = validTree()
	tree["features"].([]interface{})[1].(map[string]interface{})["kind"] = "Waypoint"
	_, err = ValidateValue(tree)
	vErr = assertValidationMessage(t, err, `feature 1: kind must be "Feature"`)
	assert.Equal(t, 1, vErr.FeatureIndex)
	assert.Equal(t, "features[1]", vErr.Field)
}

func TestValidate_GeometryDiscriminator(t *testing.T) {
	setGeometry := func(g interface{}) map[string]interface{} {
		tree := validTree()
		tree["features"].([]interface{})[0].(map[string]interface{})["geometry"] = g
		return tree
	}

	_, err := ValidateValue(setGeometry(nil))
	assertValidationMessage(t, err, "feature 0: geometry must be an object")

	_, err = ValidateValue(setGeometry(map[string]interface{}{"kind": "Polygon"}))
	assertValidationMessage(t, err, `feature 0: unsupported geometry kind "Polygon"`)

	_, err = ValidateValue(setGeometry(map[string]interface{}{"lon": 1.0, "lat": 2.0}))
	assertValidationMessage(t, err, `geometry requires a kind of "Point" or "LineString"`)
}

func TestValidate_PointArity(t *testing.T) {
	setGeometry := func(g map[string]interface{}) map[string]interface{} {
		tree := validTree()
		tree["features"].([]interface{})[0].(map[string]interface{})["geometry"] = g
		return tree
	}

	_, err := ValidateValue(setGeometry(map[string]interface{}{"kind": "Point", "lat": 47.6}))
	assertValidationMessage(t, err, "feature 0: point lon must be a number")

	_, err = ValidateValue(setGeometry(map[string]interface{}{"kind": "Point", "lon": -122.4, "lat": "47.6"}))
	assertValidationMessage(t, err, "feature 0: point lat must be a number")

	// Integers decode fine for Go-built trees.
	_, err = ValidateValue(setGeometry(map[string]interface{}{"kind": "Point", "lon": 10, "lat": 20}))
	assert.NoError(t, err)
}

func TestValidate_LineStringArity(t *testing.T) {
	setPoints := func(points interface{}) map[string]interface{} {
		tree := validTree()
		tree["features"].([]interface{})[1].(map[string]interface{})["geometry"] = map[string]interface{}{
			"kind":   "LineString",
			"points": points,
		}
		return tree
	}

	_, err := ValidateValue(setPoints("nope"))
	assertValidationMessage(t, err, "feature 1: line points must be an array")

	_, err = ValidateValue(setPoints([]interface{}{[]interface{}{1.0, 2.0}}))
	assertValidationMessage(t, err, "feature 1: line must contain at least 2 points")

	_, err = ValidateValue(setPoints([]interface{}{
		[]interface{}{1.0, 2.0},
		[]interface{}{3.0},
	}))
	assertValidationMessage(t, err, "feature 1: point 1 must be a pair of numbers")

	_, err = ValidateValue(setPoints([]interface{}{
		[]interface{}{1.0, 2.0},
		[]interface{}{"3", "4"},
	}))
	assertValidationMessage(t, err, "point 1 must be a pair of numbers")
}

func TestValidate_FeaturePropertiesShape(t *testing.T) {
	tree := validTree()
	tree["features"].([]interface{})[0].(map[string]interface{})["properties"] = []interface{}{"x"}
	_, err := ValidateValue(tree)
	assertValidationMessage(t, err, "feature 0: properties must be an object or null")

	// Absent properties are fine.
	tree = validTree()
	delete(tree["features"].([]interface{})[0].(map[string]interface{}), "properties")
	_, err = ValidateValue(tree)
	assert.NoError(t, err)
}

// ==========================
// Coordinate Bounds
// ==========================

func TestValidate_BoundsInclusive(t *testing.T) {
	cases := []struct {
		lon, lat float64
		valid    bool
		fragment string
	}{
		{-180, -90, true, ""},
		{180, 90, true, ""},
		{-180, 90, true, ""},
		{180, -90, true, ""},
		{0, 0, true, ""},
		{180.0001, 0, false, "longitude 180.0001 out of range [-180, 180]"},
		{-180.0001, 0, false, "longitude -180.0001 out of range [-180, 180]"},
		{0, 90.0001, false, "latitude 90.0001 out of range [-90, 90]"},
		{0, -90.0001, false, "latitude -90.0001 out of range [-90, 90]"},
		{360, 0, false, "longitude 360 out of range"},
		{0, -91, false, "latitude -91 out of range"},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("lon=%g lat=%g", tc.lon, tc.lat), func(t *testing.T) {
			tree := validTree()
			tree["features"].([]interface{})[0].(map[string]interface{})["geometry"] = map[string]interface{}{
				"kind": "Point",
				"lon":  tc.lon,
				"lat":  tc.lat,
			}
			_, err := ValidateValue(tree)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				vErr := assertValidationMessage(t, err, tc.fragment)
				assert.Equal(t, 0, vErr.FeatureIndex)
			}
		})
	}
}

func TestValidate_LinePointBoundsCarryPointIndex(t *testing.T) {
	tree := validTree()
	tree["features"].([]interface{})[1].(map[string]interface{})["geometry"] = map[string]interface{}{
		"kind": "LineString",
		"points": []interface{}{
			[]interface{}{-122.4, 47.6},
			[]interface{}{-122.3, 95.0},
		},
	}
	_, err := ValidateValue(tree)
	vErr := assertValidationMessage(t, err, "point 1: latitude 95 out of range [-90, 90]")
	assert.Equal(t, 1, vErr.FeatureIndex)
}

// ==========================
// Typed Revalidation
// ==========================

func TestRouteGeoValidate_Typed(t *testing.T) {
	route, err := ValidateValue(validTree())
	require.NoError(t, err)
	assert.NoError(t, route.Validate())

	var nilRoute *RouteGeo
	assertValidationMessage(t, nilRoute.Validate(), "must not be nil")

	bad := *route
	bad.Features = nil
	assertValidationMessage(t, bad.Validate(), "at least one feature")

	bad = *route
	bad.Features = []Feature{{Kind: KindFeature, Geometry: Geometry{Type: "Polygon"}}}
	assertValidationMessage(t, bad.Validate(), `unsupported geometry kind "Polygon"`)

	bad = *route
	bad.Features = []Feature{{Kind: KindFeature, Geometry: Geometry{
		Type: GeometryLineString,
		Line: []Coordinate{{Lon: 0, Lat: 0}},
	}}}
	assertValidationMessage(t, bad.Validate(), "line must contain at least 2 points")

	bad = *route
	bad.Features = []Feature{{Kind: KindFeature, Geometry: Geometry{
		Type:  GeometryPoint,
		Point: Coordinate{Lon: 200, Lat: 0},
	}}}
	assertValidationMessage(t, bad.Validate(), "longitude 200 out of range")

	bad = *route
	bad.Properties.TotalDistanceKm = 0
	assertValidationMessage(t, bad.Validate(), "greater than zero")
}

func BenchmarkValidate(b *testing.B) {
	raw := []byte(`{
		"kind": "FeatureCollection",
		"properties": {"title": "Bench", "total_distance_km": 5, "total_duration_h": 1},
		"features": [
			{"kind": "Feature", "geometry": {"kind": "Point", "lon": 1, "lat": 2}},
			{"kind": "Feature", "geometry": {"kind": "LineString", "points": [[1,2],[3,4],[5,6]]}}
		]
	}`)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Validate(raw); err != nil {
			b.Fatal(err)
		}
	}
}
