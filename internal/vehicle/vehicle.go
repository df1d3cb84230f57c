// Package vehicle defines the kinematic records shared across the planning
// pipeline: per-vehicle state in the Frenet frame, intents, behavior targets
// and time-sampled trajectories.
package vehicle

// Intent is a vehicle's lateral intent, inferred for detected cars and
// commanded for the ego car.
type Intent int

const (
	IntentUnknown Intent = iota
	IntentKeepLane
	IntentPlanLaneChangeLeft
	IntentPlanLaneChangeRight
	IntentLaneChangeLeft
	IntentLaneChangeRight
)

var intentNames = map[Intent]string{
	IntentUnknown:             "unknown",
	IntentKeepLane:            "KL",
	IntentPlanLaneChangeLeft:  "PLCL",
	IntentPlanLaneChangeRight: "PLCR",
	IntentLaneChangeLeft:      "LCL",
	IntentLaneChangeRight:     "LCR",
}

func (i Intent) String() string {
	if name, ok := intentNames[i]; ok {
		return name
	}
	return "invalid"
}

// State is one kinematic snapshot. Cartesian position plus the Frenet
// position and its first two derivatives.
type State struct {
	X float64
	Y float64

	S       float64
	SDot    float64
	SDotDot float64
	D       float64
	DDot    float64
	DDotDot float64
}

// Trajectory is a dense time-sampled sequence of states at the simulator
// step. Probability is set on predicted trajectories, Cost on candidates.
type Trajectory struct {
	States      []State
	Probability float64
	Cost        float64
}

// Last returns the final state of the trajectory; ok is false when empty.
func (t Trajectory) Last() (State, bool) {
	if len(t.States) == 0 {
		return State{}, false
	}
	return t.States[len(t.States)-1], true
}

// BehaviorTarget is the behavior layer's output for one cycle.
type BehaviorTarget struct {
	Intent      Intent
	TargetLane  int
	TargetTime  float64
	TargetSpeed float64
}

// Vehicle is the common read surface of the ego car and detected cars.
type Vehicle interface {
	ID() int
	CurLane() int
	CurState() State
}

// Base carries the fields every vehicle has. Concrete vehicles embed it.
type Base struct {
	VehID  int
	Lane   int
	State  State
	Traj   Trajectory
	Intent Intent
}

func (b *Base) ID() int         { return b.VehID }
func (b *Base) CurLane() int    { return b.Lane }
func (b *Base) CurState() State { return b.State }

// EgoVehicle is the controlled car. Its Traj holds the currently committed
// plan (buffered prefix plus the newly selected trajectory).
type EgoVehicle struct {
	Base
	Behavior          BehaviorTarget
	LaneChangeCounter int
}

// NewEgo returns an ego record with the conventional sentinel id.
func NewEgo() *EgoVehicle {
	return &EgoVehicle{Base: Base{VehID: -1}}
}

// DetectedVehicle is one sensed car: its state relative to the ego plus the
// predicted trajectory per candidate intent.
type DetectedVehicle struct {
	Base
	RelS        float64
	RelD        float64
	Predictions map[Intent]Trajectory
}

var (
	_ Vehicle = (*EgoVehicle)(nil)
	_ Vehicle = (*DetectedVehicle)(nil)
)
