// Package planner runs one planning cycle per telemetry frame: state
// reconstruction, prediction, behavior and trajectory generation in strict
// order, owning the ego record and detected-car table across cycles.
package planner

import (
	"sync"
	"time"

	"golang.org/x/exp/rand"

	"github.com/banshee-data/path.planner/internal/behavior"
	"github.com/banshee-data/path.planner/internal/config"
	"github.com/banshee-data/path.planner/internal/fusion"
	"github.com/banshee-data/path.planner/internal/monitoring"
	"github.com/banshee-data/path.planner/internal/predict"
	"github.com/banshee-data/path.planner/internal/route"
	"github.com/banshee-data/path.planner/internal/traj"
	"github.com/banshee-data/path.planner/internal/vehicle"
)

// CycleRecord summarises one completed planning cycle for persistence.
type CycleRecord struct {
	Cycle       uint64
	UnixNanos   int64
	EgoS        float64
	EgoD        float64
	EgoSpeed    float64
	Lane        int
	Intent      string
	TargetLane  int
	TargetSpeed float64
	ChosenCost  float64
	PathLen     int
	CycleMicros int64
}

// Sink receives cycle records. Implementations live outside this package so
// the planner does not depend on storage.
type Sink interface {
	RecordCycle(rec CycleRecord) error
}

// CarSnapshot is one detected car in a cycle snapshot.
type CarSnapshot struct {
	ID     int
	Lane   int
	RelS   float64
	Speed  float64
	Intent vehicle.Intent
}

// Snapshot is a copy of the planner's last cycle for the debug monitor.
type Snapshot struct {
	Cycle       uint64
	Ego         vehicle.State
	Lane        int
	Intent      vehicle.Intent
	TargetLane  int
	TargetSpeed float64
	Counter     int
	LaneCosts   []float64
	Path        fusion.Path
	CycleTime   time.Duration
	Cars        []CarSnapshot
}

// Planner owns the per-cycle pipeline state.
type Planner struct {
	mu sync.Mutex

	p     config.Params
	table *route.Table
	gen   *traj.Generator

	ego      *vehicle.EgoVehicle
	detected map[int]*vehicle.DetectedVehicle

	cycle       uint64
	lastPath    fusion.Path
	lastCycleAt time.Time

	now     func() time.Time
	sink    Sink
	roadLog bool

	snap Snapshot
}

// Option configures a Planner.
type Option func(*Planner)

// WithSeed fixes the candidate-sampling RNG for reproducible runs.
func WithSeed(seed uint64) Option {
	return func(pl *Planner) {
		pl.gen = traj.NewGenerator(pl.table, pl.p, rand.NewSource(seed))
	}
}

// WithSink attaches a cycle-record sink (e.g. the sqlite recorder).
func WithSink(sink Sink) Option {
	return func(pl *Planner) { pl.sink = sink }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(pl *Planner) { pl.now = now }
}

// WithRoadDiagram enables the per-cycle ASCII road rendering through the
// monitoring logger.
func WithRoadDiagram(enabled bool) Option {
	return func(pl *Planner) { pl.roadLog = enabled }
}

// New builds a planner over the dense map table.
func New(table *route.Table, p config.Params, opts ...Option) *Planner {
	pl := &Planner{
		p:        p,
		table:    table,
		ego:      vehicle.NewEgo(),
		detected: make(map[int]*vehicle.DetectedVehicle),
		now:      time.Now,
	}
	pl.gen = traj.NewGenerator(table, p, rand.NewSource(uint64(time.Now().UnixNano())))
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// OnFrame handles one inbound telemetry frame. Frames arriving faster than
// the cycle budget are coalesced: the unconsumed tail is rebroadcast and no
// planning happens.
func (pl *Planner) OnFrame(frame *fusion.Frame) fusion.Path {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	now := pl.now()
	if !pl.lastCycleAt.IsZero() &&
		now.Sub(pl.lastCycleAt) < time.Duration(pl.p.PathCycleMS)*time.Millisecond {
		return frame.PreviousPath
	}
	pl.lastCycleAt = now

	return pl.cycleLocked(frame)
}

// Cycle runs one full planning cycle unconditionally (no coalescing).
// Tests drive this directly.
func (pl *Planner) Cycle(frame *fusion.Frame) fusion.Path {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.cycleLocked(frame)
}

func (pl *Planner) cycleLocked(frame *fusion.Frame) fusion.Path {
	started := pl.now()

	// State reconstruction.
	prev := pl.ego.Traj
	idx := fusion.CurrentIndex(prev, frame.X, frame.Y)
	fusion.ReconstructEgo(pl.ego, prev, idx, frame.X, frame.Y, pl.table, pl.p)
	fusion.UpdateDetected(pl.detected, pl.ego, frame.SensorFusion, pl.table, pl.p)
	laneIdx := fusion.BuildLaneIndex(pl.detected, pl.p)

	// Prediction.
	if err := predict.UpdateAll(pl.detected, pl.table, pl.p); err != nil {
		monitoring.Logf("prediction failed: %v", err)
	}

	// Behavior.
	costs := behavior.Decide(pl.ego, laneIdx, pl.p)

	// Trajectory: keep the buffered prefix, append the new segment.
	pl.ego.Traj = traj.Buffer(prev, idx, pl.p)
	seg, err := pl.gen.Plan(pl.ego, pl.detected)
	if err != nil || len(seg.States) == 0 {
		monitoring.Logf("trajectory generation failed (%v); re-emitting previous plan", err)
		pl.ego.Traj = prev
		if len(pl.lastPath.X) > 0 {
			return pl.lastPath
		}
	} else {
		pl.ego.Traj.States = append(pl.ego.Traj.States, seg.States...)
		pl.ego.Traj.Cost = seg.Cost
	}

	path := pathOf(pl.ego.Traj)
	pl.lastPath = path
	pl.cycle++

	elapsed := pl.now().Sub(started)
	if elapsed > time.Duration(pl.p.PathCycleMS)*time.Millisecond {
		monitoring.Logf("cycle %d overran budget: %v > %dms", pl.cycle, elapsed, pl.p.PathCycleMS)
	}

	if pl.roadLog {
		monitoring.Logf("road:\n%s", RoadDiagram(pl.ego, pl.detected, pl.p))
	}

	pl.storeSnapshot(costs, path, elapsed)
	pl.record(path, elapsed)

	return path
}

func pathOf(t vehicle.Trajectory) fusion.Path {
	path := fusion.Path{
		X: make([]float64, len(t.States)),
		Y: make([]float64, len(t.States)),
	}
	for i, st := range t.States {
		path.X[i] = st.X
		path.Y[i] = st.Y
	}
	return path
}

func (pl *Planner) storeSnapshot(costs []float64, path fusion.Path, elapsed time.Duration) {
	snap := Snapshot{
		Cycle:       pl.cycle,
		Ego:         pl.ego.State,
		Lane:        pl.ego.Lane,
		Intent:      pl.ego.Behavior.Intent,
		TargetLane:  pl.ego.Behavior.TargetLane,
		TargetSpeed: pl.ego.Behavior.TargetSpeed,
		Counter:     pl.ego.LaneChangeCounter,
		LaneCosts:   append([]float64(nil), costs...),
		Path:        fusion.Path{X: append([]float64(nil), path.X...), Y: append([]float64(nil), path.Y...)},
		CycleTime:   elapsed,
	}
	for _, car := range pl.detected {
		snap.Cars = append(snap.Cars, CarSnapshot{
			ID:     car.VehID,
			Lane:   car.Lane,
			RelS:   car.RelS,
			Speed:  car.State.SDot,
			Intent: car.Intent,
		})
	}
	pl.snap = snap
}

func (pl *Planner) record(path fusion.Path, elapsed time.Duration) {
	if pl.sink == nil {
		return
	}
	rec := CycleRecord{
		Cycle:       pl.cycle,
		UnixNanos:   pl.now().UnixNano(),
		EgoS:        pl.ego.State.S,
		EgoD:        pl.ego.State.D,
		EgoSpeed:    pl.ego.State.SDot,
		Lane:        pl.ego.Lane,
		Intent:      pl.ego.Behavior.Intent.String(),
		TargetLane:  pl.ego.Behavior.TargetLane,
		TargetSpeed: pl.ego.Behavior.TargetSpeed,
		ChosenCost:  pl.ego.Traj.Cost,
		PathLen:     len(path.X),
		CycleMicros: elapsed.Microseconds(),
	}
	if err := pl.sink.RecordCycle(rec); err != nil {
		monitoring.Logf("record cycle %d: %v", rec.Cycle, err)
	}
}

// Snapshot returns a copy of the last completed cycle's state.
func (pl *Planner) Snapshot() Snapshot {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.snap
}

// RoadText renders the current road diagram around the ego.
func (pl *Planner) RoadText() string {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return RoadDiagram(pl.ego, pl.detected, pl.p)
}

// LastPath returns the most recently emitted path; used to answer malformed
// frames. Coalesced frames are answered by OnFrame with their own previous
// path instead.
func (pl *Planner) LastPath() fusion.Path {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.lastPath
}

// Ego exposes the ego record for tests and diagnostics.
func (pl *Planner) Ego() *vehicle.EgoVehicle { return pl.ego }

// Params returns the planner's parameter set.
func (pl *Planner) Params() config.Params { return pl.p }
