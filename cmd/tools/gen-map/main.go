// Command gen-map writes a synthetic circular highway map in the planner's
// waypoint format (s x y dx dy per line), useful for local runs without the
// production track file.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
)

var (
	out     = flag.String("out", "data/highway_map.txt", "Output map file")
	radius  = flag.Float64("radius", 1105.0, "Loop radius in meters")
	spacing = flag.Float64("spacing", 30.0, "Waypoint spacing along s in meters")
)

func main() {
	flag.Parse()

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("create %s: %v", *out, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	n := int(2 * math.Pi * *radius / *spacing)
	for i := 0; i < n; i++ {
		s := float64(i) * *spacing
		theta := s / *radius
		x := *radius * math.Sin(theta)
		y := *radius * (1 - math.Cos(theta))
		// Lane normal points to the right of travel (outward).
		dx := math.Sin(theta)
		dy := -math.Cos(theta)
		fmt.Fprintf(w, "%.4f %.4f %.4f %.6f %.6f\n", s, x, y, dx, dy)
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
	log.Printf("wrote %d waypoints (track length %.1fm) to %s", n, 2*math.Pi**radius, *out)
}
