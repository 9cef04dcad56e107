// internal/routegeo/summary.go
package routegeo

// Summary is the display projection of a route: metadata without geometry.
type Summary struct {
	Title           string   `json:"title"`
	TotalDistanceKm float64  `json:"totalDistanceKm"`
	TotalDurationH  float64  `json:"totalDurationH"`
	Highlights      []string `json:"highlights"`
}

// ExtractSummary projects the route metadata into a Summary. The route is
// validated first and absent highlights come back as an empty slice, so
// consumers never branch on optionality.
func ExtractSummary(route *RouteGeo) (*Summary, error) {
	if err := route.Validate(); err != nil {
		return nil, err
	}
	highlights := route.Properties.Highlights
	if highlights == nil {
		highlights = []string{}
	}
	return &Summary{
		Title:           route.Properties.Title,
		TotalDistanceKm: route.Properties.TotalDistanceKm,
		TotalDurationH:  route.Properties.TotalDurationH,
		Highlights:      highlights,
	}, nil
}
