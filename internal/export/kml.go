// internal/export/kml.go
package export

import (
	"fmt"
	"strings"

	"routeforge/internal/routegeo"
)

const kmlNamespace = "http://www.opengis.net/kml/2.2"

// ToKML renders the route as a KML 2.2 document. Like ToGPX it re-validates
// the route and wraps failures in a *ConversionError.
func ToKML(route *routegeo.RouteGeo, opts Options) ([]byte, error) {
	if err := route.Validate(); err != nil {
		return nil, &ConversionError{Format: FormatKML, Err: err}
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<kml xmlns="` + kmlNamespace + `">` + "\n")
	b.WriteString("  <Document>\n")
	b.WriteString("    <name>" + escapeXML(route.Properties.Title) + "</name>\n")
	b.WriteString("    <description>" + escapeXML(kmlDescription(route, opts.creator())) + "</description>\n")

	if len(route.Properties.Highlights) > 0 {
		snippet := strings.Join(route.Properties.Highlights, ", ")
		b.WriteString(`    <Snippet maxLines="2">` + escapeXML(snippet) + "</Snippet>\n")
	}

	if opts.IncludeWaypoints {
		writeKMLWaypoints(&b, route)
	}
	if opts.IncludeRoutes {
		writeKMLRoutes(&b, route)
	}

	b.WriteString("  </Document>\n")
	b.WriteString("</kml>\n")
	return []byte(b.String()), nil
}

// kmlDescription carries the same facts as the GPX metadata, formatted for
// a human-readable balloon.
func kmlDescription(route *routegeo.RouteGeo, creator string) string {
	return fmt.Sprintf("Route: %s\nDistance: %g km\nDuration: %g h\nGenerated by %s",
		route.Properties.Title,
		route.Properties.TotalDistanceKm,
		route.Properties.TotalDurationH,
		creator)
}

func writeKMLWaypoints(b *strings.Builder, route *routegeo.RouteGeo) {
	count := 0
	var placemarks strings.Builder
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
		placemarks.WriteString("      <Placemark>\n")
		placemarks.WriteString("        <name>" + escapeXML(name) + "</name>\n")
		if desc := f.Description(); desc != "" {
			placemarks.WriteString("        <description>" + escapeXML(desc) + "</description>\n")
		}
		placemarks.WriteString("        <Point>\n")
		placemarks.WriteString("          <coordinates>" + kmlCoordinate(f.Geometry.Point) + "</coordinates>\n")
		placemarks.WriteString("        </Point>\n")
		placemarks.WriteString("      </Placemark>\n")
	}
	if count == 0 {
		return
	}
	b.WriteString("    <Folder>\n")
	b.WriteString("      <name>Waypoints</name>\n")
	b.WriteString(placemarks.String())
	b.WriteString("    </Folder>\n")
}

func writeKMLRoutes(b *strings.Builder, route *routegeo.RouteGeo) {
	count := 0
	var placemarks strings.Builder
	for i := range route.Features {
		f := &route.Features[i]
		if f.Geometry.Type != routegeo.GeometryLineString {
			continue
		}
		count++
		name := f.Name()
		if name == "" {
			name = route.Properties.Title
		}
		coords := make([]string, len(f.Geometry.Line))
		for j, c := range f.Geometry.Line {
			coords[j] = kmlCoordinate(c)
		}
		placemarks.WriteString("      <Placemark>\n")
		placemarks.WriteString("        <name>" + escapeXML(name) + "</name>\n")
		placemarks.WriteString("        <LineString>\n")
		placemarks.WriteString("          <tessellate>1</tessellate>\n")
		placemarks.WriteString("          <coordinates>" + strings.Join(coords, " ") + "</coordinates>\n")
		placemarks.WriteString("        </LineString>\n")
		placemarks.WriteString("      </Placemark>\n")
	}
	if count == 0 {
		return
	}
	b.WriteString("    <Folder>\n")
	b.WriteString("      <name>Route</name>\n")
	b.WriteString(placemarks.String())
	b.WriteString("    </Folder>\n")
}

// kmlCoordinate renders a pair in KML order: longitude first.
func kmlCoordinate(c routegeo.Coordinate) string {
	return formatCoord(c.Lon) + "," + formatCoord(c.Lat)
}
