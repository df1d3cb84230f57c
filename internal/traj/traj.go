// Package traj generates the ego trajectory: sampled jerk-minimising
// candidates in the Frenet frame, feasibility-checked in Cartesian space and
// selected by a risk-plus-deviation cost against every detected car's
// predicted paths.
package traj

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/path.planner/internal/config"
	"github.com/banshee-data/path.planner/internal/poly"
	"github.com/banshee-data/path.planner/internal/route"
	"github.com/banshee-data/path.planner/internal/vehicle"
)

// ErrNoTrajectory is returned when not even the backup candidate could be
// generated; the planner then keeps and re-emits its previous plan.
var ErrNoTrajectory = errors.New("traj: no feasible trajectory")

// Generator samples and scores candidate trajectories. The random source is
// injected so runs are reproducible under a fixed seed.
type Generator struct {
	table *route.Table
	p     config.Params

	distV distuv.Normal
	distT distuv.Normal
}

// NewGenerator builds a Generator drawing speed and time perturbations from
// the given source.
func NewGenerator(table *route.Table, p config.Params, src rand.Source) *Generator {
	return &Generator{
		table: table,
		p:     p,
		distV: distuv.Normal{Mu: 0, Sigma: p.SpeedDevSigma, Src: src},
		distT: distuv.Normal{Mu: 0, Sigma: p.TimeDevSigma, Src: src},
	}
}

// Buffer extracts the previous-plan samples the simulator is still driving:
// up to PathBufferTime worth of points strictly after the current index.
// An index of zero (fresh start) yields an empty buffer.
func Buffer(prev vehicle.Trajectory, idxCurrent int, p config.Params) vehicle.Trajectory {
	var buf vehicle.Trajectory
	if idxCurrent <= 0 {
		return buf
	}
	end := idxCurrent + 1 + p.BufferPoints()
	if end > len(prev.States) {
		end = len(prev.States)
	}
	for i := idxCurrent + 1; i < end; i++ {
		buf.States = append(buf.States, prev.States[i])
	}
	return buf
}

// Plan generates the cycle's new trajectory segment (to be appended after
// the buffered prefix held in ego.Traj). The first candidate is the exact
// behavior target; the rest perturb it toward slower speeds and longer
// horizons. Candidates exceeding the cost threshold are discarded; if all
// are, a keep-lane backup at reduced speed is accepted regardless.
func (g *Generator) Plan(ego *vehicle.EgoVehicle, cars map[int]*vehicle.DetectedVehicle) (vehicle.Trajectory, error) {
	start := ego.State
	if last, ok := ego.Traj.Last(); ok {
		start = last
	}

	tTgt := ego.Behavior.TargetTime
	vTgt := ego.Behavior.TargetSpeed
	aTgt := g.p.MaxAccel

	dTgt := g.targetD(ego)

	var candidates []vehicle.Trajectory
	for i := 0; i < g.p.NumCandidates; i++ {
		vCand, tCand := vTgt, tTgt
		if i > 0 {
			vCand -= math.Max(0, g.distV.Rand())
			tCand += math.Max(0, g.distT.Rand())
		}

		cand, err := g.generateChecked(start, tCand, vCand, dTgt, aTgt)
		if err != nil {
			// A degenerate candidate is dropped, not fatal.
			continue
		}

		cand.Cost = g.evalCost(cand, ego, cars, tTgt, vTgt, tCand, vCand)
		if cand.Cost < g.p.CostThreshold {
			candidates = append(candidates, cand)
		}
	}

	// All candidates too risky: fall back to holding the current lane a
	// little slower, accepted regardless of cost.
	if len(candidates) == 0 {
		dBackup := g.p.LaneCenter(ego.Lane)
		vBackup := vTgt - g.p.MinFollowSpeedDec
		backup, err := g.generateChecked(start, tTgt, vBackup, dBackup, aTgt)
		if err != nil {
			return vehicle.Trajectory{}, fmt.Errorf("%w: backup: %v", ErrNoTrajectory, err)
		}
		backup.Cost = g.evalCost(backup, ego, cars, tTgt, vTgt, tTgt, vBackup)
		candidates = append(candidates, backup)
	}

	best := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.Cost < best.Cost {
			best = cand
		}
	}
	if len(best.States) == 0 {
		return vehicle.Trajectory{}, ErrNoTrajectory
	}
	return best, nil
}

// targetD picks the destination lane centre: the adjacent lane during an
// active change, the current lane otherwise.
func (g *Generator) targetD(ego *vehicle.EgoVehicle) float64 {
	lane := ego.Lane
	b := ego.Behavior
	switch {
	case b.Intent == vehicle.IntentLaneChangeLeft && b.TargetLane < lane:
		lane--
	case b.Intent == vehicle.IntentLaneChangeRight && b.TargetLane > lane:
		lane++
	}
	if lane < 1 {
		lane = 1
	}
	if lane > g.p.NumLanes {
		lane = g.p.NumLanes
	}
	return g.p.LaneCenter(lane)
}

// generateChecked builds one candidate and reworks it once if the sampled
// curve exceeds the speed or acceleration limits.
func (g *Generator) generateChecked(start vehicle.State, tTgt, vTgt, dTgt, aTgt float64) (vehicle.Trajectory, error) {
	traj, err := g.generate(start, tTgt, vTgt, dTgt, aTgt)
	if err != nil {
		return vehicle.Trajectory{}, err
	}

	spdRatio, accRatio := g.feasibility(traj)
	if spdRatio != 1.0 || accRatio != 1.0 {
		traj, err = g.generate(start, tTgt,
			vTgt*spdRatio-g.p.SpeedAdjOffset,
			dTgt,
			aTgt*accRatio-g.p.AccelAdjOffset)
		if err != nil {
			return vehicle.Trajectory{}, err
		}
	}
	return traj, nil
}

// generate solves the s and d quintics for one candidate and samples them at
// the simulator step, converting each sample to Cartesian coordinates.
//
// The terminal s state comes from a constant-acceleration estimate so the
// quintic stays well-behaved: if the target speed cannot be reached within
// the horizon at the accel limit, the end speed is cut accordingly.
func (g *Generator) generate(start vehicle.State, tTgt, vTgt, dTgt, aTgt float64) (vehicle.Trajectory, error) {
	if vTgt < 0 {
		vTgt = 0
	}
	if aTgt < 0.5 {
		aTgt = 0.5
	}

	var sDotEnd, sDDotEnd float64
	tMaxA := math.Abs(vTgt-start.SDot) / aTgt
	aSigned := aTgt
	if vTgt < start.SDot {
		aSigned = -aTgt
	}
	if tMaxA > tTgt {
		sDotEnd = start.SDot + aSigned*tTgt
		sDDotEnd = aSigned
	} else {
		sDotEnd = vTgt
		sDDotEnd = (vTgt - start.SDot) / tTgt
	}
	sEnd := start.S + start.SDot*tTgt + 0.5*sDDotEnd*tTgt*tTgt

	coeffsS, err := poly.JMT(
		poly.Boundary{Pos: start.S, Vel: start.SDot, Acc: start.SDotDot},
		poly.Boundary{Pos: sEnd, Vel: sDotEnd, Acc: sDDotEnd},
		tTgt,
	)
	if err != nil {
		return vehicle.Trajectory{}, err
	}
	coeffsD, err := poly.JMT(
		poly.Boundary{Pos: start.D, Vel: start.DDot, Acc: start.DDotDot},
		poly.Boundary{Pos: dTgt},
		tTgt,
	)
	if err != nil {
		return vehicle.Trajectory{}, err
	}

	sVel := coeffsS.Deriv()
	sAcc := sVel.Deriv()
	dVel := coeffsD.Deriv()
	dAcc := dVel.Deriv()

	numPts := int(tTgt / g.p.SimDT)
	traj := vehicle.Trajectory{States: make([]vehicle.State, 0, numPts)}
	for i := 1; i < numPts; i++ {
		t := float64(i) * g.p.SimDT

		st := vehicle.State{
			S:       g.table.WrapS(coeffsS.Eval(t)),
			SDot:    sVel.Eval(t),
			SDotDot: sAcc.Eval(t),
			D:       coeffsD.Eval(t),
			DDot:    dVel.Eval(t),
			DDotDot: dAcc.Eval(t),
		}
		st.X, st.Y = g.table.XY(st.S, st.D)

		// Anti-jitter: points closer than the minimum spacing repeat the
		// previous sample so near-zero speed does not wobble the wheel.
		if n := len(traj.States); n > 0 {
			prev := traj.States[n-1]
			if math.Hypot(st.X-prev.X, st.Y-prev.Y) < g.p.MinTrajPointDist {
				st = prev
			}
		}
		traj.States = append(traj.States, st)
	}

	if len(traj.States) == 0 {
		return vehicle.Trajectory{}, fmt.Errorf("%w: horizon shorter than one step", poly.ErrDegenerateTime)
	}
	return traj, nil
}

// feasibility scans the Cartesian samples for peak point-to-point speed and
// peak windowed-mean acceleration, returning the back-off ratios to apply
// when either limit is exceeded (1.0 means within limits).
func (g *Generator) feasibility(traj vehicle.Trajectory) (spdRatio, accRatio float64) {
	spdRatio, accRatio = 1.0, 1.0

	var vPeak, aPeak float64
	var sumSpeed, avePrev float64
	haveAvePrev := false

	for i := 1; i < len(traj.States); i++ {
		cur, prev := traj.States[i], traj.States[i-1]
		speed := math.Hypot(cur.X-prev.X, cur.Y-prev.Y) / g.p.SimDT
		if speed > vPeak {
			vPeak = speed
		}

		sumSpeed += speed
		if i%g.p.AccelWindow == 0 {
			ave := sumSpeed / float64(g.p.AccelWindow)
			if haveAvePrev {
				accel := math.Abs(ave-avePrev) / (float64(g.p.AccelWindow) * g.p.SimDT)
				if accel > aPeak {
					aPeak = accel
				}
			}
			avePrev = ave
			haveAvePrev = true
			sumSpeed = 0
		}
	}

	if vPeak > g.p.TargetSpeed {
		spdRatio = g.p.TargetSpeed / vPeak
	}
	if aPeak > g.p.MaxAccel {
		accRatio = g.p.MaxAccel / aPeak
	}
	return spdRatio, accRatio
}

// evalCost scores a candidate: accumulated collision risk against every
// detected car's predicted paths, decayed over prediction time, plus the
// deviation from the base behavior target.
func (g *Generator) evalCost(cand vehicle.Trajectory, ego *vehicle.EgoVehicle,
	cars map[int]*vehicle.DetectedVehicle, tTgt, vTgt, tCand, vCand float64) float64 {

	// The new segment starts after the buffered prefix, so predictions are
	// indexed with that offset.
	idxStart := len(ego.Traj.States)

	var riskSum float64
	for i := 0; i < len(cand.States); i += g.p.EvalRiskStep {
		egoS := cand.States[i].S
		egoD := cand.States[i].D

		for _, car := range cars {
			for _, pred := range car.Predictions {
				j := idxStart + i
				if j >= len(pred.States) {
					continue
				}
				carS := pred.States[j].S
				carD := pred.States[j].D

				if math.Abs(g.table.ArcDelta(egoS, carS)) < g.p.CollisionSThresh &&
					math.Abs(egoD-carD) < g.p.CollisionDThresh {
					riskSum += pred.Probability * math.Exp(-float64(i)*g.p.SimDT)
				}
			}
		}
	}

	deviation := math.Abs(tCand-tTgt) + math.Abs(vCand-vTgt)
	return g.p.CostRisk*riskSum + g.p.CostDeviation*deviation
}
