// Command path-planner is the motion-planning core of the highway driving
// controller. It consumes telemetry frames from the simulator, runs one
// planning cycle per frame, and answers with the next dense waypoint path.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/path.planner/internal/config"
	"github.com/banshee-data/path.planner/internal/db"
	"github.com/banshee-data/path.planner/internal/planner"
	"github.com/banshee-data/path.planner/internal/route"
	"github.com/banshee-data/path.planner/internal/units"
)

var (
	listen      = flag.String("listen", ":4567", "Listen address")
	mapFile     = flag.String("map", "data/highway_map.txt", "Waypoint map file (s x y dx dy per line)")
	tuningFile  = flag.String("tuning", "config/tuning.json", "Optional JSON tuning overlay")
	recordPath  = flag.String("record", "", "Record cycles to this sqlite file")
	withMonitor = flag.Bool("monitor", false, "Serve /debug endpoints")
	roadLog     = flag.Bool("road", false, "Log the ASCII road diagram every cycle")
	seed        = flag.Uint64("seed", 0, "Candidate sampling seed (0 = time-based)")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	params := config.Defaults()
	tuning, err := config.LoadTuning(*tuningFile)
	if err != nil {
		log.Fatalf("failed to load tuning: %v", err)
	}
	tuning.Apply(&params)

	// The map is load-bearing: without it no conversion works, so fail fast.
	wps, err := route.LoadWaypoints(*mapFile)
	if err != nil {
		log.Fatalf("failed to load map: %v", err)
	}
	table, err := route.BuildTable(wps, params.MapInterpInc)
	if err != nil {
		log.Fatalf("failed to build map table: %v", err)
	}
	log.Printf("map ready: %d waypoints, track length %.1fm, target %.1f mph",
		len(wps), table.TrackLength(), units.MPSToMPH(params.TargetSpeed))

	opts := []planner.Option{planner.WithRoadDiagram(*roadLog)}
	if *seed != 0 {
		opts = append(opts, planner.WithSeed(*seed))
	}

	if *recordPath != "" {
		database, err := db.Open(*recordPath)
		if err != nil {
			log.Fatalf("failed to open recorder: %v", err)
		}
		defer database.Close()

		run, err := database.StartRun(*mapFile)
		if err != nil {
			log.Fatalf("failed to start run: %v", err)
		}
		log.Printf("recording run %s to %s", run.ID, *recordPath)
		opts = append(opts, planner.WithSink(db.NewRecorder(database, run.ID)))
	}

	pl := planner.New(table, params, opts...)
	srv := &http.Server{
		Addr:    *listen,
		Handler: NewServer(pl, *withMonitor).ServeMux(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", *listen)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		// Bind failure or serve error: non-zero exit.
		log.Fatalf("server error: %v", err)
	case sig := <-sigCh:
		log.Printf("received %v, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
}
