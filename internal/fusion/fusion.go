// Package fusion reconstructs the ego state from the previous plan and
// maintains the detected-car table from each sensor snapshot.
package fusion

import (
	"math"
	"sort"

	"github.com/banshee-data/path.planner/internal/config"
	"github.com/banshee-data/path.planner/internal/route"
	"github.com/banshee-data/path.planner/internal/vehicle"
)

// CurrentIndex locates the ego inside the previous plan: the sample whose
// Cartesian position is nearest the measured one. Anti-jitter can leave runs
// of identical samples, so ties resolve to the latest one (the plan is
// consumed forward, never backward). An empty plan yields 0.
func CurrentIndex(prev vehicle.Trajectory, x, y float64) int {
	best := 0
	bestDist := math.MaxFloat64
	for i, st := range prev.States {
		dist := sq(st.X-x) + sq(st.Y-y)
		if dist <= bestDist {
			bestDist = dist
			best = i
		}
	}
	return best
}

// ReconstructEgo aligns the ego record with the previous plan. The sample at
// idx supplies the smooth Frenet derivatives; the measured (x, y) overrides
// the sample position and (s, d) are recomputed from the map.
func ReconstructEgo(ego *vehicle.EgoVehicle, prev vehicle.Trajectory, idx int,
	x, y float64, table *route.Table, p config.Params) {

	st := ego.State
	if idx >= 0 && idx < len(prev.States) {
		st = prev.States[idx]
	}

	st.X = x
	st.Y = y
	st.S, st.D = table.Frenet(x, y)

	ego.State = st
	ego.Lane = p.LaneForD(st.D)
}

// UpdateDetected ingests one sensor snapshot into the detected-car table.
// Known cars are updated in place (preserving their inferred intent for
// hysteresis); unknown ids are inserted; ids absent from the snapshot are
// dropped.
func UpdateDetected(cars map[int]*vehicle.DetectedVehicle, ego *vehicle.EgoVehicle,
	sensed []SensorCar, table *route.Table, p config.Params) {

	seen := make(map[int]bool, len(sensed))
	for _, row := range sensed {
		seen[row.ID] = true

		s, d := table.Frenet(row.X, row.Y)
		tx, ty, nx, ny := table.TangentNormal(s)

		st := vehicle.State{
			X:    row.X,
			Y:    row.Y,
			S:    s,
			D:    d,
			SDot: row.VX*tx + row.VY*ty,
			DDot: row.VX*nx + row.VY*ny,
		}

		car, ok := cars[row.ID]
		if !ok {
			car = &vehicle.DetectedVehicle{Base: vehicle.Base{VehID: row.ID}}
			cars[row.ID] = car
		}
		car.State = st
		car.Lane = p.LaneForD(d)
		car.RelS = table.ArcDelta(s, ego.State.S)
		car.RelD = d - ego.State.D
	}

	for id := range cars {
		if !seen[id] {
			delete(cars, id)
		}
	}
}

// LaneIndex groups detected-car ids by lane, ordered so the nearest car
// ahead of the ego comes first: ahead by ascending RelS, then behind by
// descending RelS. Only cars within sensor range are indexed.
type LaneIndex struct {
	p      config.Params
	cars   map[int]*vehicle.DetectedVehicle
	byLane map[int][]int
}

// BuildLaneIndex derives the per-lane ordering for this cycle.
func BuildLaneIndex(cars map[int]*vehicle.DetectedVehicle, p config.Params) *LaneIndex {
	idx := &LaneIndex{
		p:      p,
		cars:   cars,
		byLane: make(map[int][]int, p.NumLanes),
	}

	for id, car := range cars {
		if math.Abs(car.RelS) > p.SensorRange {
			continue
		}
		idx.byLane[car.Lane] = append(idx.byLane[car.Lane], id)
	}

	for lane, ids := range idx.byLane {
		sort.Slice(ids, func(a, b int) bool {
			ra, rb := cars[ids[a]].RelS, cars[ids[b]].RelS
			aheadA, aheadB := ra > 0, rb > 0
			if aheadA != aheadB {
				return aheadA
			}
			if aheadA {
				return ra < rb
			}
			return ra > rb
		})
		idx.byLane[lane] = ids
	}
	return idx
}

// IDs returns the ordered ids for one lane.
func (l *LaneIndex) IDs(lane int) []int { return l.byLane[lane] }

// NearestFront returns the closest car ahead of the ego in the lane.
func (l *LaneIndex) NearestFront(lane int) (*vehicle.DetectedVehicle, bool) {
	for _, id := range l.byLane[lane] {
		if car := l.cars[id]; car.RelS > 0 {
			return car, true
		}
	}
	return nil, false
}

// NearestBack returns the closest car behind the ego in the lane.
func (l *LaneIndex) NearestBack(lane int) (*vehicle.DetectedVehicle, bool) {
	for _, id := range l.byLane[lane] {
		if car := l.cars[id]; car.RelS < 0 {
			return car, true
		}
	}
	return nil, false
}

// SideGap is the smallest absolute gap to any car in the lane, used to
// judge whether a lane change fits. Lanes outside the corridor or with no
// indexed cars report an unbounded gap.
func (l *LaneIndex) SideGap(lane int) float64 {
	if lane < 1 || lane > l.p.NumLanes {
		return math.Inf(1)
	}
	gap := math.Inf(1)
	for _, id := range l.byLane[lane] {
		gap = math.Min(gap, math.Abs(l.cars[id].RelS))
	}
	return gap
}

func sq(v float64) float64 { return v * v }
