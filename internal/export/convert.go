// internal/export/convert.go
package export

import (
	"fmt"
	"strings"

	"routeforge/internal/routegeo"
)

// Format identifies a supported artifact format.
type Format string

const (
	FormatGPX Format = "gpx"
	FormatKML Format = "kml"
)

// Formats lists the supported formats in a fixed order.
func Formats() []Format {
	return []Format{FormatGPX, FormatKML}
}

// ParseFormat normalizes a caller-supplied format token.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatGPX:
		return FormatGPX, nil
	case FormatKML:
		return FormatKML, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Ext returns the file extension for the format, without the dot.
func (f Format) Ext() string {
	return string(f)
}

// ContentType returns the MIME type advertised for downloads of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatGPX:
		return "application/gpx+xml"
	case FormatKML:
		return "application/vnd.google-earth.kml+xml"
	default:
		return "application/octet-stream"
	}
}

// Convert renders the route in the requested format.
func Convert(format Format, route *routegeo.RouteGeo, opts Options) ([]byte, error) {
	switch format {
	case FormatGPX:
		return ToGPX(route, opts)
	case FormatKML:
		return ToKML(route, opts)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// ConversionError wraps the validation failure that stopped an export. No
// partial document is ever produced alongside one.
type ConversionError struct {
	Format Format
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot render %s artifact: %v", e.Format, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
