// internal/export/options.go

// Package export renders validated routes into downloadable artifact
// formats. Both converters are pure: identical input and options always
// produce byte-identical output, which is what makes cached re-downloads
// safe.
package export

import "time"

// DefaultCreator is the attribution string stamped on generated documents
// when the caller does not override it.
const DefaultCreator = "RouteForge"

// Options controls artifact rendering. The zero value disables every
// section; start from DefaultOptions and adjust.
type Options struct {
	// IncludeWaypoints emits Point features (GPX waypoints, KML Waypoints
	// folder).
	IncludeWaypoints bool
	// IncludeRoutes emits LineString features (GPX rte, KML Route folder).
	IncludeRoutes bool
	// IncludeTracks additionally emits a plain-point GPX trk block. KML
	// output ignores it.
	IncludeTracks bool
	// Creator is the document attribution string; empty means
	// DefaultCreator.
	Creator string
	// Now supplies the GPX metadata timestamp. Leave nil for wall-clock
	// time; pin it to a fixed instant when repeated exports must be
	// byte-identical.
	Now func() time.Time
}

// DefaultOptions returns the documented defaults: waypoints and routes on,
// tracks off, DefaultCreator attribution.
func DefaultOptions() Options {
	return Options{
		IncludeWaypoints: true,
		IncludeRoutes:    true,
		IncludeTracks:    false,
		Creator:          DefaultCreator,
	}
}

func (o Options) creator() string {
	if o.Creator == "" {
		return DefaultCreator
	}
	return o.Creator
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}
