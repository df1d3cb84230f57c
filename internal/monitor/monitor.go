// Package monitor serves the debugging web UI: go-echarts renderings of the
// last planning cycle plus a plain-text road diagram. Debug-only endpoints,
// no auth.
package monitor

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/path.planner/internal/planner"
	"github.com/banshee-data/path.planner/internal/units"
)

// Source provides the planner state the monitor renders.
type Source interface {
	Snapshot() planner.Snapshot
	RoadText() string
}

// WebServer renders the debug endpoints.
type WebServer struct {
	src Source
}

// NewWebServer builds a monitor over a planner.
func NewWebServer(src Source) *WebServer {
	return &WebServer{src: src}
}

// Register mounts the debug handlers on the mux.
func (ws *WebServer) Register(mux *http.ServeMux) {
	mux.HandleFunc("/debug/plan", ws.handlePlan)
	mux.HandleFunc("/debug/road", ws.handleRoad)
	mux.HandleFunc("/debug/state", ws.handleState)
}

// handlePlan renders the last emitted path and the per-lane costs.
func (ws *WebServer) handlePlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := ws.src.Snapshot()
	if snap.Cycle == 0 {
		http.Error(w, "no cycle completed yet", http.StatusNotFound)
		return
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("cycle %d — %s, lane %d -> %d, %.1f mph",
				snap.Cycle, snap.Intent, snap.Lane, snap.TargetLane,
				units.MPSToMPH(snap.TargetSpeed)),
		}),
	)
	data := make([]opts.ScatterData, 0, len(snap.Path.X))
	for i := range snap.Path.X {
		data = append(data, opts.ScatterData{Value: []interface{}{snap.Path.X[i], snap.Path.Y[i]}})
	}
	scatter.AddSeries("plan", data)

	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "lane costs"}))
	lanes := make([]string, 0, len(snap.LaneCosts))
	costs := make([]opts.BarData, 0, len(snap.LaneCosts))
	for i, c := range snap.LaneCosts {
		lanes = append(lanes, fmt.Sprintf("lane %d", i+1))
		costs = append(costs, opts.BarData{Value: c})
	}
	bar.SetXAxis(lanes).AddSeries("cost", costs)

	page := components.NewPage()
	page.AddCharts(scatter, bar)
	if err := page.Render(w); err != nil {
		http.Error(w, fmt.Sprintf("render: %v", err), http.StatusInternalServerError)
	}
}

// handleRoad serves the ASCII road diagram.
func (ws *WebServer) handleRoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, ws.src.RoadText())
}

// handleState serves the last cycle snapshot as JSON.
func (ws *WebServer) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ws.src.Snapshot()); err != nil {
		http.Error(w, fmt.Sprintf("encode: %v", err), http.StatusInternalServerError)
	}
}
