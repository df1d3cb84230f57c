// Command plot-run renders speed and acceleration profiles from a recorded
// planning run, for checking the kinematic limits offline.
//
// Usage:
//
//	plot-run -db planner.db [-run <run-id>] [-out .]
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/path.planner/internal/config"
	"github.com/banshee-data/path.planner/internal/db"
	"github.com/banshee-data/path.planner/internal/planner"
)

var (
	dbPath = flag.String("db", "planner.db", "Recorder sqlite file")
	runID  = flag.String("run", "", "Run id (default: latest run)")
	outDir = flag.String("out", ".", "Output directory for PNGs")
)

func main() {
	flag.Parse()

	database, err := db.Open(*dbPath)
	if err != nil {
		log.Fatalf("open %s: %v", *dbPath, err)
	}
	defer database.Close()

	id := *runID
	if id == "" {
		id, err = database.LatestRun()
		if err != nil {
			log.Fatalf("no run to plot: %v", err)
		}
	}

	recs, err := database.Cycles(id)
	if err != nil {
		log.Fatalf("load cycles: %v", err)
	}
	if len(recs) == 0 {
		log.Fatalf("run %s has no cycles", id)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("create output dir: %v", err)
	}

	speedFile := filepath.Join(*outDir, fmt.Sprintf("run_%.8s_speed.png", id))
	if err := plotSpeed(recs, speedFile); err != nil {
		log.Fatalf("plot speed: %v", err)
	}
	accelFile := filepath.Join(*outDir, fmt.Sprintf("run_%.8s_accel.png", id))
	if err := plotAccel(recs, accelFile); err != nil {
		log.Fatalf("plot accel: %v", err)
	}

	log.Printf("plotted %d cycles of run %s:\n  %s\n  %s", len(recs), id, speedFile, accelFile)
}

func plotSpeed(recs []planner.CycleRecord, path string) error {
	p := plot.New()
	p.Title.Text = "ego speed vs command"
	p.X.Label.Text = "cycle"
	p.Y.Label.Text = "m/s"

	actual := make(plotter.XYs, 0, len(recs))
	target := make(plotter.XYs, 0, len(recs))
	for _, rec := range recs {
		actual = append(actual, plotter.XY{X: float64(rec.Cycle), Y: rec.EgoSpeed})
		target = append(target, plotter.XY{X: float64(rec.Cycle), Y: rec.TargetSpeed})
	}

	actualLine, err := plotter.NewLine(actual)
	if err != nil {
		return err
	}
	actualLine.Width = vg.Points(1)
	p.Add(actualLine)
	p.Legend.Add("ego", actualLine)

	targetLine, err := plotter.NewLine(target)
	if err != nil {
		return err
	}
	targetLine.Width = vg.Points(1)
	targetLine.Color = color.RGBA{R: 196, A: 255}
	p.Add(targetLine)
	p.Legend.Add("target", targetLine)

	return p.Save(14*vg.Inch, 6*vg.Inch, path)
}

func plotAccel(recs []planner.CycleRecord, path string) error {
	p := plot.New()
	p.Title.Text = "cycle-to-cycle acceleration"
	p.X.Label.Text = "cycle"
	p.Y.Label.Text = "m/s^2"

	params := config.Defaults()
	dt := float64(params.PathCycleMS) / 1000.0

	pts := make(plotter.XYs, 0, len(recs))
	for i := 1; i < len(recs); i++ {
		accel := (recs[i].EgoSpeed - recs[i-1].EgoSpeed) / dt
		pts = append(pts, plotter.XY{X: float64(recs[i].Cycle), Y: accel})
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	p.Add(line)

	limit := plotter.NewFunction(func(x float64) float64 { return params.MaxAccel })
	limit.Color = color.RGBA{R: 196, A: 255}
	p.Add(limit)
	p.Legend.Add("limit", limit)

	return p.Save(14*vg.Inch, 6*vg.Inch, path)
}
