// Package behavior selects the ego's target lane, intent, speed and horizon
// for each planning cycle: a cost-minimising lane selector feeding a
// five-state intent machine, with follow-speed control and a hysteresis
// counter that discourages rapid re-changes.
package behavior

import (
	"math"

	"github.com/banshee-data/path.planner/internal/config"
	"github.com/banshee-data/path.planner/internal/fusion"
	"github.com/banshee-data/path.planner/internal/vehicle"
)

// LogCost maps |x| into [0, 1] on a logarithmic curve that reaches 1 at the
// reference value.
func LogCost(x, ref float64) float64 {
	c := math.Log(1 + math.Abs(x)/ref*(math.E-1))
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// LaneCosts evaluates every lane for the ego this cycle. Lower is better.
func LaneCosts(ego *vehicle.EgoVehicle, idx *fusion.LaneIndex, p config.Params) []float64 {
	costs := make([]float64, p.NumLanes)

	for i := range costs {
		lane := i + 1
		var cost float64

		// Distance to and speed of the car ahead in this lane. An empty
		// lane scores as a car at sensor range doing the target speed.
		relAhead := p.SensorRange
		spdAhead := p.TargetSpeed
		if front, ok := idx.NearestFront(lane); ok {
			relAhead = front.RelS
			spdAhead = front.State.SDot
		}
		cost += p.CostDistAhead * (1 - LogCost(relAhead, p.SensorRange))
		cost += p.CostSpeedAhead * (1 - LogCost(spdAhead, p.TargetSpeed))

		// A faster car closing in from behind makes the lane worse.
		if back, ok := idx.NearestBack(lane); ok && math.Abs(back.RelS) <= p.TgtFollowDist {
			closing := math.Max(0, back.State.SDot-ego.State.SDot)
			cost += p.CostSpeedBehind * LogCost(closing, p.RelSpeedBehind)
		}

		if lane != ego.Lane {
			cost += p.CostChangeLanes * math.Abs(float64(ego.Lane-lane))
		}

		if ego.LaneChangeCounter > 0 && lane != ego.Behavior.TargetLane {
			cost += p.CostFreqLC * float64(ego.LaneChangeCounter)
		}

		costs[i] = cost
	}
	return costs
}

// BestLane returns the argmin lane; ties break to the lowest index.
func BestLane(costs []float64) int {
	best := 0
	for i, c := range costs {
		if c < costs[best] {
			best = i
		}
	}
	return best + 1
}

// NextIntent advances the intent machine one step.
//
// tgtLane is the freshly selected target, gapLeft/gapRight the smallest
// absolute gaps in the adjacent lanes.
func NextIntent(cur vehicle.Intent, egoLane, tgtLane int, gapLeft, gapRight float64, p config.Params) vehicle.Intent {
	minGap := p.LaneChangeMinGap

	switch cur {
	case vehicle.IntentPlanLaneChangeLeft:
		if tgtLane >= egoLane {
			return vehicle.IntentKeepLane
		}
		if gapLeft > minGap {
			return vehicle.IntentLaneChangeLeft
		}
		return vehicle.IntentPlanLaneChangeLeft

	case vehicle.IntentPlanLaneChangeRight:
		if tgtLane <= egoLane {
			return vehicle.IntentKeepLane
		}
		if gapRight > minGap {
			return vehicle.IntentLaneChangeRight
		}
		return vehicle.IntentPlanLaneChangeRight

	case vehicle.IntentLaneChangeLeft:
		if tgtLane < egoLane && gapLeft > minGap {
			return vehicle.IntentLaneChangeLeft
		}
		return vehicle.IntentKeepLane

	case vehicle.IntentLaneChangeRight:
		if tgtLane > egoLane && gapRight > minGap {
			return vehicle.IntentLaneChangeRight
		}
		return vehicle.IntentKeepLane

	default: // keep lane, unknown
		switch {
		case tgtLane < egoLane:
			return vehicle.IntentPlanLaneChangeLeft
		case tgtLane > egoLane:
			return vehicle.IntentPlanLaneChangeRight
		default:
			return vehicle.IntentKeepLane
		}
	}
}

// TargetSpeed computes the commanded speed for the cycle's intent.
func TargetSpeed(ego *vehicle.EgoVehicle, idx *fusion.LaneIndex, intent vehicle.Intent, p config.Params) float64 {
	v := p.TargetSpeed

	// Follow a close leader in the current lane: interpolate from full
	// speed at the start-follow distance down to the leader's speed at
	// the follow distance.
	front, hasFront := idx.NearestFront(ego.Lane)
	if hasFront && front.RelS < p.TgtStartFollowDist {
		slope := (front.State.SDot - p.TargetSpeed) / (p.TgtFollowDist - p.TgtStartFollowDist)
		v = slope*(front.RelS-p.TgtStartFollowDist) + p.TargetSpeed

		if front.RelS < p.TgtMinFollowDist {
			v = front.State.SDot - p.MinFollowSpeedDec
		}
		v = math.Max(v, p.TgtMinSpeed)
	}

	switch intent {
	case vehicle.IntentPlanLaneChangeLeft, vehicle.IntentPlanLaneChangeRight:
		side := ego.Lane - 1
		if intent == vehicle.IntentPlanLaneChangeRight {
			side = ego.Lane + 1
		}

		closeAhead := hasFront && front.RelS < p.TgtStartFollowDist

		closeSideAhead := false
		if sideFront, ok := idx.NearestFront(side); ok {
			closeSideAhead = sideFront.RelS < p.LaneChangeMinGap
		}
		closeSideBehind := false
		if sideBack, ok := idx.NearestBack(side); ok {
			closeSideBehind = math.Abs(sideBack.RelS) < p.LaneChangeMinGap
		}

		// Ease off to open a gap while the destination lane is blocked.
		if closeAhead && (closeSideAhead || closeSideBehind) {
			v -= p.PlanLCSpeedDec
		}

	case vehicle.IntentLaneChangeLeft, vehicle.IntentLaneChangeRight:
		dest := ego.Lane - 1
		if intent == vehicle.IntentLaneChangeRight {
			dest = ego.Lane + 1
		}
		if destFront, ok := idx.NearestFront(dest); ok && destFront.RelS < p.TgtStartFollowDist {
			v = destFront.State.SDot
		}
	}

	return math.Min(math.Max(v, p.TgtMinSpeed), p.TargetSpeed)
}

// UpdateCounter maintains the frequent-lane-change hysteresis counter. Any
// target-lane change or an active lane change rewinds it to the full
// cooldown; otherwise it decays one cycle at a time.
func UpdateCounter(ego *vehicle.EgoVehicle, prevTgtLane int, p config.Params) int {
	counter := ego.LaneChangeCounter
	if counter > 0 {
		counter--
	}
	if ego.Behavior.TargetLane != prevTgtLane ||
		ego.Behavior.Intent == vehicle.IntentLaneChangeLeft ||
		ego.Behavior.Intent == vehicle.IntentLaneChangeRight {
		counter = p.LCCooldown
	}
	return counter
}

// Decide runs the full behavior stage for one cycle, mutating the ego's
// behavior target and counter. It returns the per-lane costs for
// diagnostics.
func Decide(ego *vehicle.EgoVehicle, idx *fusion.LaneIndex, p config.Params) []float64 {
	prevTgt := ego.Behavior.TargetLane

	costs := LaneCosts(ego, idx, p)
	best := BestLane(costs)

	// A target more than one lane away is approached one lane at a time.
	if best > ego.Lane+1 {
		best = ego.Lane + 1
	} else if best < ego.Lane-1 {
		best = ego.Lane - 1
	}
	ego.Behavior.TargetLane = best

	gapLeft := idx.SideGap(ego.Lane - 1)
	gapRight := idx.SideGap(ego.Lane + 1)
	ego.Behavior.Intent = NextIntent(ego.Intent, ego.Lane, best, gapLeft, gapRight, p)
	ego.Intent = ego.Behavior.Intent

	ego.Behavior.TargetTime = p.NewPathTime
	ego.Behavior.TargetSpeed = TargetSpeed(ego, idx, ego.Behavior.Intent, p)

	ego.LaneChangeCounter = UpdateCounter(ego, prevTgt, p)
	return costs
}
