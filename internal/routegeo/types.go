// internal/routegeo/types.go

// Package routegeo defines the constrained FeatureCollection structure
// produced by the route planner and the validator that guards it. Planner
// output is untrusted; nothing downstream (converters, summaries, the
// lifecycle controller) accepts a RouteGeo that has not passed Validate.
package routegeo

import (
	"encoding/json"
	"fmt"
)

// KindFeatureCollection is the required top-level discriminator.
const KindFeatureCollection = "FeatureCollection"

// KindFeature is the required per-feature discriminator.
const KindFeature = "Feature"

// GeometryType discriminates the geometry union.
type GeometryType string

const (
	GeometryPoint      GeometryType = "Point"
	GeometryLineString GeometryType = "LineString"
)

// Coordinate is a single lon/lat pair in degrees.
type Coordinate struct {
	Lon float64
	Lat float64
}

// Geometry is a closed union: a Point carries Point, a LineString carries
// Line. Callers switch on Type; unknown types never survive validation.
type Geometry struct {
	Type  GeometryType
	Point Coordinate
	Line  []Coordinate
}

// Properties is the required route-level metadata.
type Properties struct {
	Title           string   `json:"title"`
	TotalDistanceKm float64  `json:"total_distance_km"`
	TotalDurationH  float64  `json:"total_duration_h"`
	Highlights      []string `json:"highlights,omitempty"`
}

// Feature is one geometric element plus optional free-form metadata.
type Feature struct {
	Kind       string                 `json:"kind"`
	Geometry   Geometry               `json:"geometry"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// RouteGeo is the validated route structure. Treat it as immutable once
// validation has succeeded.
type RouteGeo struct {
	Kind       string     `json:"kind"`
	Properties Properties `json:"properties"`
	Features   []Feature  `json:"features"`
}

// Name returns the string value of the feature's "name" property, or ""
// when absent or not a string.
func (f *Feature) Name() string {
	if s, ok := f.Properties["name"].(string); ok {
		return s
	}
	return ""
}

// Description returns the string value of the feature's "description"
// property, or "" when absent or not a string.
func (f *Feature) Description() string {
	if s, ok := f.Properties["description"].(string); ok {
		return s
	}
	return ""
}

type pointJSON struct {
	Kind string  `json:"kind"`
	Lon  float64 `json:"lon"`
	Lat  float64 `json:"lat"`
}

type lineStringJSON struct {
	Kind   string       `json:"kind"`
	Points [][2]float64 `json:"points"`
}

// MarshalJSON emits the wire form of the union: points as
// {"kind":"Point","lon":...,"lat":...}, lines as
// {"kind":"LineString","points":[[lon,lat],...]}.
func (g Geometry) MarshalJSON() ([]byte, error) {
	switch g.Type {
	case GeometryPoint:
		return json.Marshal(pointJSON{Kind: string(GeometryPoint), Lon: g.Point.Lon, Lat: g.Point.Lat})
	case GeometryLineString:
		points := make([][2]float64, len(g.Line))
		for i, c := range g.Line {
			points[i] = [2]float64{c.Lon, c.Lat}
		}
		return json.Marshal(lineStringJSON{Kind: string(GeometryLineString), Points: points})
	default:
		return nil, fmt.Errorf("cannot marshal geometry of unknown type %q", g.Type)
	}
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON. It checks
// the discriminator only; use Validate for the full contract.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	switch GeometryType(probe.Kind) {
	case GeometryPoint:
		var p pointJSON
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		g.Type = GeometryPoint
		g.Point = Coordinate{Lon: p.Lon, Lat: p.Lat}
		g.Line = nil
		return nil
	case GeometryLineString:
		var l lineStringJSON
		if err := json.Unmarshal(data, &l); err != nil {
			return err
		}
		g.Type = GeometryLineString
		g.Line = make([]Coordinate, len(l.Points))
		for i, p := range l.Points {
			g.Line[i] = Coordinate{Lon: p[0], Lat: p[1]}
		}
		g.Point = Coordinate{}
		return nil
	default:
		return fmt.Errorf("unknown geometry kind %q", probe.Kind)
	}
}
