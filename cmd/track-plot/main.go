// Command track-plot renders the track trails of a recorded run.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/cluster-tracker/internal/plotting"
	"github.com/banshee-data/cluster-tracker/internal/storage/sqlite"
)

var (
	dbFile    = flag.String("db", "tracks.db", "Path to the recorder SQLite database")
	runID     = flag.String("run", "", "Run ID to plot (default: most recent run)")
	outputDir = flag.String("out", "plots", "Directory for generated PNG files")
	listRuns  = flag.Bool("list", false, "List recorded runs and exit")
)

func main() {
	flag.Parse()

	db, err := sqlite.Open(*dbFile)
	if err != nil {
		log.Fatalf("track-plot: %v", err)
	}
	defer db.Close()

	if err := run(sqlite.NewRecorder(db, nil)); err != nil {
		log.Fatalf("track-plot: %v", err)
	}
}

func run(rec *sqlite.Recorder) error {
	runs, err := rec.Runs()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return fmt.Errorf("no runs recorded in %s", *dbFile)
	}

	if *listRuns {
		for _, r := range runs {
			fmt.Fprintf(os.Stdout, "%s\t%s\t%d frames\n", r.RunID, r.Source, r.Frames)
		}
		return nil
	}

	id := *runID
	if id == "" {
		id = runs[0].RunID
	}

	points, err := rec.TrackPoints(id)
	if err != nil {
		return err
	}
	stats, err := rec.FrameStats(id)
	if err != nil {
		return err
	}

	tp := plotting.NewTrailPlotter(*outputDir)
	trails, err := tp.PlotTrails(id, points)
	if err != nil {
		return err
	}
	log.Printf("wrote %s", trails)

	activity, err := tp.PlotActivity(id, stats)
	if err != nil {
		return err
	}
	log.Printf("wrote %s", activity)
	return nil
}
