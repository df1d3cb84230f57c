// Package config holds the planner's tunable parameters and the JSON
// tuning overlay applied on top of the built-in defaults.
package config

import "math"

// Params carries every tunable constant of the planning pipeline.
// All distances are meters, speeds m/s, times seconds unless noted.
type Params struct {
	// Cadence
	SimDT          float64 // simulator consumes one waypoint per SimDT
	PathCycleMS    int64   // minimum wall time between planning cycles
	PathBufferTime float64 // previous-plan prefix preserved each cycle
	NewPathTime    float64 // behavior target horizon for new trajectories

	// Road geometry
	NumLanes     int
	LaneWidth    float64
	MapInterpInc float64 // dense waypoint table spacing
	SensorRange  float64 // detected cars beyond this are ignored for planning

	// Kinematic limits
	TargetSpeed float64
	MaxAccel    float64
	MaxJerk     float64

	// Prediction
	LatVelLaneChange float64 // lateral speed hysteresis threshold
	PredictHorizon   float64

	// Lane cost weights
	CostDistAhead    float64
	CostSpeedAhead   float64
	CostSpeedBehind  float64
	CostChangeLanes  float64
	CostFreqLC       float64
	RelSpeedBehind   float64 // normaliser for the faster-car-behind cost
	LaneChangeMinGap float64
	LCCooldown       int // cycles the frequent-lane-change penalty persists

	// Speed targeting
	TgtStartFollowDist float64
	TgtFollowDist      float64
	TgtMinFollowDist   float64
	MinFollowSpeedDec  float64
	PlanLCSpeedDec     float64
	TgtMinSpeed        float64

	// Trajectory generation
	NumCandidates    int
	SpeedDevSigma    float64 // sigma of the slower-speed perturbation
	TimeDevSigma     float64 // sigma of the longer-time perturbation
	SpeedAdjOffset   float64 // extra speed back-off after feasibility rework
	AccelAdjOffset   float64 // extra accel back-off after feasibility rework
	MinTrajPointDist float64 // anti-jitter minimum point spacing
	AccelWindow      int     // samples per windowed-mean accel estimate
	CollisionSThresh float64
	CollisionDThresh float64
	EvalRiskStep     int
	CostRisk         float64
	CostDeviation    float64
	CostThreshold    float64
}

// Defaults returns the stock parameter set for the three-lane highway
// simulator loop.
func Defaults() Params {
	return Params{
		SimDT:          0.02,
		PathCycleMS:    100,
		PathBufferTime: 0.5,
		NewPathTime:    2.5,

		NumLanes:     3,
		LaneWidth:    4.0,
		MapInterpInc: 0.5,
		SensorRange:  100.0,

		TargetSpeed: 22.0,
		MaxAccel:    9.0,
		MaxJerk:     10.0,

		LatVelLaneChange: 2.2,
		PredictHorizon:   3.0,

		CostDistAhead:    1.0,
		CostSpeedAhead:   1.0,
		CostSpeedBehind:  0.5,
		CostChangeLanes:  0.3,
		CostFreqLC:       0.002,
		RelSpeedBehind:   5.0,
		LaneChangeMinGap: 10.0,
		LCCooldown:       150,

		TgtStartFollowDist: 30.0,
		TgtFollowDist:      10.0,
		TgtMinFollowDist:   6.0,
		MinFollowSpeedDec:  2.0,
		PlanLCSpeedDec:     1.0,
		TgtMinSpeed:        4.5,

		NumCandidates:    8,
		SpeedDevSigma:    2.0,
		TimeDevSigma:     0.5,
		SpeedAdjOffset:   0.5,
		AccelAdjOffset:   0.5,
		MinTrajPointDist: 0.02,
		AccelWindow:      10,
		CollisionSThresh: 5.0,
		CollisionDThresh: 3.0,
		EvalRiskStep:     2,
		CostRisk:         10.0,
		CostDeviation:    0.05,
		CostThreshold:    100.0,
	}
}

// LaneCenter returns the Frenet d value of a lane's centre line.
// Lanes are indexed 1..NumLanes from the inside of the road.
func (p Params) LaneCenter(lane int) float64 {
	return p.LaneWidth/2 + float64(lane-1)*p.LaneWidth
}

// LaneForD maps a Frenet d value to a lane index, clamped to the corridor.
func (p Params) LaneForD(d float64) int {
	lane := int(math.Round((d-p.LaneWidth/2)/p.LaneWidth)) + 1
	if lane < 1 {
		lane = 1
	}
	if lane > p.NumLanes {
		lane = p.NumLanes
	}
	return lane
}

// BufferPoints is the number of previous-plan samples preserved per cycle.
func (p Params) BufferPoints() int {
	return int(p.PathBufferTime / p.SimDT)
}
