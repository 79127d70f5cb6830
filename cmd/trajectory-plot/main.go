// Command trajectory-plot renders PNG plots of a run recorded by swervesim.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/swervesim/internal/fsutil"
	"github.com/banshee-data/swervesim/internal/security"
	"github.com/banshee-data/swervesim/internal/telemetry"
	"github.com/banshee-data/swervesim/internal/trajplot"
	"github.com/banshee-data/swervesim/internal/version"
)

func main() {
	var dbPath string
	var runID string
	var outDir string
	var showVersion bool

	flag.StringVar(&dbPath, "db", "swervesim.db", "path to the telemetry database")
	flag.StringVar(&runID, "run", "", "run id to plot (default: most recent run)")
	flag.StringVar(&outDir, "out", "plots", "output directory, under the working or temp directory")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version.String())
		return
	}

	files, err := run(dbPath, runID, outDir, fsutil.OSFileSystem{})
	if err != nil {
		log.Fatalf("trajectory-plot: %v", err)
	}
	for _, f := range files {
		fmt.Println(f)
	}
}

func run(dbPath, runID, outDir string, fsys fsutil.FileSystem) ([]string, error) {
	if err := security.ValidateOutputPath(outDir); err != nil {
		return nil, fmt.Errorf("invalid -out: %w", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	store, err := telemetry.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if runID == "" {
		latest, err := store.LatestRun()
		if err != nil {
			return nil, err
		}
		runID = latest.ID
	}
	return trajplot.NewPlotter(fsys, outDir).PlotRun(store, runID)
}
