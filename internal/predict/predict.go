// Package predict infers each detected car's lateral intent and generates a
// weighted set of predicted trajectories per car.
package predict

import (
	"github.com/banshee-data/path.planner/internal/config"
	"github.com/banshee-data/path.planner/internal/poly"
	"github.com/banshee-data/path.planner/internal/route"
	"github.com/banshee-data/path.planner/internal/vehicle"
)

// probInferred is the weight of a car's inferred intent; the remaining
// applicable intents share the rest so the weights always sum to one.
const probInferred = 0.8

// UpdateIntent advances one car's intent through the lateral-velocity
// hysteresis. Crossing the threshold flags a lane change; the change is
// considered over only once the lateral speed falls back inside it.
func UpdateIntent(car *vehicle.DetectedVehicle, p config.Params) {
	dDot := car.State.DDot

	switch car.Intent {
	case vehicle.IntentKeepLane, vehicle.IntentUnknown:
		switch {
		case dDot > p.LatVelLaneChange:
			car.Intent = vehicle.IntentLaneChangeRight
		case dDot < -p.LatVelLaneChange:
			car.Intent = vehicle.IntentLaneChangeLeft
		default:
			car.Intent = vehicle.IntentKeepLane
		}
	case vehicle.IntentLaneChangeRight:
		if dDot < p.LatVelLaneChange {
			car.Intent = vehicle.IntentKeepLane
		}
	case vehicle.IntentLaneChangeLeft:
		if dDot > -p.LatVelLaneChange {
			car.Intent = vehicle.IntentKeepLane
		}
	}
}

// applicable lists the intents worth predicting for a car in its lane:
// keep-lane always, a change only when a destination lane exists.
func applicable(lane int, p config.Params) []vehicle.Intent {
	intents := []vehicle.Intent{vehicle.IntentKeepLane}
	if lane > 1 {
		intents = append(intents, vehicle.IntentLaneChangeLeft)
	}
	if lane < p.NumLanes {
		intents = append(intents, vehicle.IntentLaneChangeRight)
	}
	return intents
}

// Trajectories predicts one trajectory per applicable intent over the
// prediction horizon, weighted so the probabilities sum to exactly one.
func Trajectories(car *vehicle.DetectedVehicle, table *route.Table, p config.Params) error {
	intents := applicable(car.Lane, p)

	inferred := car.Intent
	inferredApplicable := false
	for _, in := range intents {
		if in == inferred {
			inferredApplicable = true
			break
		}
	}
	if !inferredApplicable {
		// A car already pressed against the corridor edge keeps its lane.
		inferred = vehicle.IntentKeepLane
	}

	shared := 0.0
	if len(intents) > 1 {
		shared = (1 - probInferred) / float64(len(intents)-1)
	}

	car.Predictions = make(map[vehicle.Intent]vehicle.Trajectory, len(intents))
	for _, intent := range intents {
		traj, err := predictOne(car, intent, table, p)
		if err != nil {
			return err
		}
		if intent == inferred {
			traj.Probability = probInferred
			if len(intents) == 1 {
				traj.Probability = 1
			}
		} else {
			traj.Probability = shared
		}
		car.Predictions[intent] = traj
	}
	return nil
}

func predictOne(car *vehicle.DetectedVehicle, intent vehicle.Intent,
	table *route.Table, p config.Params) (vehicle.Trajectory, error) {

	st := car.State
	horizon := p.PredictHorizon
	steps := int(horizon / p.SimDT)

	center := p.LaneCenter(car.Lane)

	var dOf func(t float64) (d, dDot float64)
	switch intent {
	case vehicle.IntentLaneChangeLeft, vehicle.IntentLaneChangeRight:
		target := center - p.LaneWidth
		if intent == vehicle.IntentLaneChangeRight {
			target = center + p.LaneWidth
		}
		coeffs, err := poly.JMT(
			poly.Boundary{Pos: st.D, Vel: st.DDot},
			poly.Boundary{Pos: target},
			horizon,
		)
		if err != nil {
			return vehicle.Trajectory{}, err
		}
		vel := coeffs.Deriv()
		dOf = func(t float64) (float64, float64) {
			return coeffs.Eval(t), vel.Eval(t)
		}
	default:
		// Keep lane: drift linearly back to the lane centre, reaching it
		// at the end of the horizon. The predicted lateral speed is the
		// constant drift rate at every step; it does not decay to zero.
		rate := (center - st.D) / horizon
		dOf = func(t float64) (float64, float64) {
			return st.D + rate*t, rate
		}
	}

	traj := vehicle.Trajectory{States: make([]vehicle.State, 0, steps)}
	for i := 1; i <= steps; i++ {
		t := float64(i) * p.SimDT

		d, dDot := dOf(t)
		s := table.WrapS(st.S + st.SDot*t)
		x, y := table.XY(s, d)

		traj.States = append(traj.States, vehicle.State{
			X: x, Y: y,
			S: s, SDot: st.SDot,
			D: d, DDot: dDot,
		})
	}
	return traj, nil
}

// UpdateAll runs intent inference and trajectory prediction for every
// detected car.
func UpdateAll(cars map[int]*vehicle.DetectedVehicle, table *route.Table, p config.Params) error {
	for _, car := range cars {
		UpdateIntent(car, p)
		if err := Trajectories(car, table, p); err != nil {
			return err
		}
	}
	return nil
}
