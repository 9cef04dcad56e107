// internal/export/gpx.go
package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"routeforge/internal/routegeo"
)

const (
	gpxNamespace = "http://www.topografix.com/GPX/1/1"
	gpxVersion   = "1.1"

	// gpxDescription is the fixed metadata description; the variable
	// attribution lives in the creator attribute.
	gpxDescription = "Route generated by RouteForge"
)

// ToGPX renders the route as a GPX 1.1 document. The route is re-validated
// first; validation failures come back as a *ConversionError so callers
// cannot feed unchecked data into an export.
func ToGPX(route *routegeo.RouteGeo, opts Options) ([]byte, error) {
	if err := route.Validate(); err != nil {
		return nil, &ConversionError{Format: FormatGPX, Err: err}
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<gpx version="` + gpxVersion + `" creator="` + escapeXML(opts.creator()) +
		`" xmlns="` + gpxNamespace + `">` + "\n")

	writeGPXMetadata(&b, route, opts.now())

	if opts.IncludeWaypoints {
		writeGPXWaypoints(&b, route)
	}
	if opts.IncludeRoutes {
		writeGPXRoutes(&b, route)
	}
	if opts.IncludeTracks {
		writeGPXTracks(&b, route)
	}

	b.WriteString("</gpx>\n")
	return []byte(b.String()), nil
}

func writeGPXMetadata(b *strings.Builder, route *routegeo.RouteGeo, now time.Time) {
	b.WriteString("  <metadata>\n")
	b.WriteString("    <name>" + escapeXML(route.Properties.Title) + "</name>\n")
	b.WriteString("    <desc>" + gpxDescription + "</desc>\n")
	b.WriteString("    <time>" + now.UTC().Format(time.RFC3339) + "</time>\n")
	b.WriteString("    <keywords>" + routeKeywords(route) + "</keywords>\n")
	b.WriteString("  </metadata>\n")
}

// routeKeywords builds the keyword tokens from the route totals.
func routeKeywords(route *routegeo.RouteGeo) string {
	return fmt.Sprintf("route, %g km, %g h",
		route.Properties.TotalDistanceKm, route.Properties.TotalDurationH)
}

func writeGPXWaypoints(b *strings.Builder, route *routegeo.RouteGeo) {
	count := 0
	for i := range route.Features {
		f := &route.Features[i]
		if f.Geometry.Type != routegeo.GeometryPoint {
			continue
		}
		count++
		name := f.Name()
		if name == "" {
			name = fmt.Sprintf("Waypoint %d", count)
		}
		b.WriteString(`  <wpt lat="` + formatCoord(f.Geometry.Point.Lat) +
			`" lon="` + formatCoord(f.Geometry.Point.Lon) + `">` + "\n")
		b.WriteString("    <name>" + escapeXML(name) + "</name>\n")
		if desc := f.Description(); desc != "" {
			b.WriteString("    <desc>" + escapeXML(desc) + "</desc>\n")
		}
		b.WriteString("  </wpt>\n")
	}
}

func writeGPXRoutes(b *strings.Builder, route *routegeo.RouteGeo) {
	for i := range route.Features {
		f := &route.Features[i]
		if f.Geometry.Type != routegeo.GeometryLineString {
			continue
		}
		name := f.Name()
		if name == "" {
			name = route.Properties.Title
		}
		b.WriteString("  <rte>\n")
		b.WriteString("    <name>" + escapeXML(name) + "</name>\n")
		for j, c := range f.Geometry.Line {
			b.WriteString(`    <rtept lat="` + formatCoord(c.Lat) +
				`" lon="` + formatCoord(c.Lon) + `">` + "\n")
			b.WriteString("      <name>" + routePointLabel(j, len(f.Geometry.Line)) + "</name>\n")
			b.WriteString("    </rtept>\n")
		}
		b.WriteString("  </rte>\n")
	}
}

// writeGPXTracks emits the optional plain-point track variant of each line;
// track points carry no per-point names.
func writeGPXTracks(b *strings.Builder, route *routegeo.RouteGeo) {
	for i := range route.Features {
		f := &route.Features[i]
		if f.Geometry.Type != routegeo.GeometryLineString {
			continue
		}
		name := f.Name()
		if name == "" {
			name = route.Properties.Title
		}
		b.WriteString("  <trk>\n")
		b.WriteString("    <name>" + escapeXML(name) + "</name>\n")
		b.WriteString("    <trkseg>\n")
		for _, c := range f.Geometry.Line {
			b.WriteString(`      <trkpt lat="` + formatCoord(c.Lat) +
				`" lon="` + formatCoord(c.Lon) + `"/>` + "\n")
		}
		b.WriteString("    </trkseg>\n")
		b.WriteString("  </trk>\n")
	}
}

func routePointLabel(index, total int) string {
	switch index {
	case 0:
		return "Start"
	case total - 1:
		return "End"
	default:
		return fmt.Sprintf("Point %d", index+1)
	}
}

// formatCoord renders a coordinate with a fixed six decimal places so the
// output stays byte-stable across runs.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
