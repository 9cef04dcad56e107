// cmd/tools/route-export/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"routeforge/internal/export"
	"routeforge/internal/routegeo"
	"routeforge/pkg/sanitize"
)

func main() {
	inPath := flag.String("in", "", "Path to a RouteGeo JSON file")
	outDir := flag.String("out", ".", "Directory to write artifacts into")
	formats := flag.String("formats", "gpx,kml", "Comma-separated formats to emit (gpx, kml)")
	creator := flag.String("creator", export.DefaultCreator, "Creator attribution stamped on documents")
	tracks := flag.Bool("tracks", false, "Also emit a GPX track block")
	flag.Parse()

	if *inPath == "" {
		fmt.Println("Error: -in is required.")
		flag.Usage()
		os.Exit(1)
	}

	raw, err := os.ReadFile(*inPath)
	if err != nil {
		fmt.Printf("Error reading %s: %v\n", *inPath, err)
		os.Exit(1)
	}

	route, err := routegeo.Validate(raw)
	if err != nil {
		fmt.Printf("Route rejected: %v\n", err)
		os.Exit(1)
	}

	summary, err := routegeo.ExtractSummary(route)
	if err != nil {
		fmt.Printf("Error summarizing route: %v\n", err)
		os.Exit(1)
	}
	printSummary(summary, len(route.Features))

	opts := export.DefaultOptions()
	opts.Creator = *creator
	opts.IncludeTracks = *tracks

	baseName := sanitize.Filename(summary.Title)
	if baseName == "" {
		baseName = "route"
	}

	for _, token := range strings.Split(*formats, ",") {
		format, err := export.ParseFormat(token)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		artifact, err := export.Convert(format, route, opts)
		if err != nil {
			fmt.Printf("Error rendering %s: %v\n", format, err)
			os.Exit(1)
		}

		path := filepath.Join(*outDir, baseName+"."+format.Ext())
		if err := os.WriteFile(path, artifact, 0o644); err != nil {
			fmt.Printf("Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s (%d bytes)\n", path, len(artifact))
	}
}

func printSummary(summary *routegeo.Summary, featureCount int) {
	fmt.Printf("Route: %s\n", summary.Title)
	fmt.Printf("  Distance:   %g km\n", summary.TotalDistanceKm)
	fmt.Printf("  Duration:   %g h\n", summary.TotalDurationH)
	fmt.Printf("  Features:   %d\n", featureCount)
	if len(summary.Highlights) > 0 {
		fmt.Printf("  Highlights: %s\n", strings.Join(summary.Highlights, ", "))
	}
}
