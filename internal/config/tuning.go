package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Tuning is the JSON overlay applied on top of Defaults. Every field is a
// pointer; nil means "keep the default". The schema matches the flag-level
// tuning file so the same JSON can be checked in per-track.
type Tuning struct {
	// Cadence
	PathCycleMS    *int64   `json:"path_cycle_ms,omitempty"`
	PathBufferTime *float64 `json:"path_buffer_time,omitempty"`
	NewPathTime    *float64 `json:"new_path_time,omitempty"`

	// Limits
	TargetSpeed *float64 `json:"target_speed,omitempty"`
	MaxAccel    *float64 `json:"max_accel,omitempty"`
	MaxJerk     *float64 `json:"max_jerk,omitempty"`

	// Geometry
	SensorRange  *float64 `json:"sensor_range,omitempty"`
	MapInterpInc *float64 `json:"map_interp_inc,omitempty"`

	// Prediction
	LatVelLaneChange *float64 `json:"lat_vel_lane_change,omitempty"`
	PredictHorizon   *float64 `json:"predict_horizon,omitempty"`

	// Behavior
	CostDistAhead    *float64 `json:"cost_dist_ahead,omitempty"`
	CostSpeedAhead   *float64 `json:"cost_speed_ahead,omitempty"`
	CostSpeedBehind  *float64 `json:"cost_speed_behind,omitempty"`
	CostChangeLanes  *float64 `json:"cost_change_lanes,omitempty"`
	CostFreqLC       *float64 `json:"cost_freq_lc,omitempty"`
	LaneChangeMinGap *float64 `json:"lane_change_min_gap,omitempty"`
	LCCooldown       *int     `json:"lc_cooldown,omitempty"`

	// Speed targeting
	TgtStartFollowDist *float64 `json:"tgt_start_follow_dist,omitempty"`
	TgtFollowDist      *float64 `json:"tgt_follow_dist,omitempty"`
	TgtMinFollowDist   *float64 `json:"tgt_min_follow_dist,omitempty"`
	MinFollowSpeedDec  *float64 `json:"min_follow_speed_dec,omitempty"`
	PlanLCSpeedDec     *float64 `json:"plan_lc_speed_dec,omitempty"`
	TgtMinSpeed        *float64 `json:"tgt_min_speed,omitempty"`

	// Trajectory generation
	NumCandidates *int     `json:"num_candidates,omitempty"`
	SpeedDevSigma *float64 `json:"speed_dev_sigma,omitempty"`
	TimeDevSigma  *float64 `json:"time_dev_sigma,omitempty"`
	CostRisk      *float64 `json:"cost_risk,omitempty"`
	CostDeviation *float64 `json:"cost_deviation,omitempty"`
	CostThreshold *float64 `json:"cost_threshold,omitempty"`
}

// LoadTuning reads a tuning overlay from a JSON file. A missing path is not
// an error so deployments without an overlay run pure defaults.
func LoadTuning(path string) (*Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Tuning{}, nil
		}
		return nil, fmt.Errorf("read tuning file: %w", err)
	}

	var t Tuning
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse tuning file %s: %w", path, err)
	}
	return &t, nil
}

// Apply overlays the non-nil tuning fields onto p.
func (t *Tuning) Apply(p *Params) {
	if t == nil {
		return
	}
	if t.PathCycleMS != nil {
		p.PathCycleMS = *t.PathCycleMS
	}
	if t.PathBufferTime != nil {
		p.PathBufferTime = *t.PathBufferTime
	}
	if t.NewPathTime != nil {
		p.NewPathTime = *t.NewPathTime
	}
	if t.TargetSpeed != nil {
		p.TargetSpeed = *t.TargetSpeed
	}
	if t.MaxAccel != nil {
		p.MaxAccel = *t.MaxAccel
	}
	if t.MaxJerk != nil {
		p.MaxJerk = *t.MaxJerk
	}
	if t.SensorRange != nil {
		p.SensorRange = *t.SensorRange
	}
	if t.MapInterpInc != nil {
		p.MapInterpInc = *t.MapInterpInc
	}
	if t.LatVelLaneChange != nil {
		p.LatVelLaneChange = *t.LatVelLaneChange
	}
	if t.PredictHorizon != nil {
		p.PredictHorizon = *t.PredictHorizon
	}
	if t.CostDistAhead != nil {
		p.CostDistAhead = *t.CostDistAhead
	}
	if t.CostSpeedAhead != nil {
		p.CostSpeedAhead = *t.CostSpeedAhead
	}
	if t.CostSpeedBehind != nil {
		p.CostSpeedBehind = *t.CostSpeedBehind
	}
	if t.CostChangeLanes != nil {
		p.CostChangeLanes = *t.CostChangeLanes
	}
	if t.CostFreqLC != nil {
		p.CostFreqLC = *t.CostFreqLC
	}
	if t.LaneChangeMinGap != nil {
		p.LaneChangeMinGap = *t.LaneChangeMinGap
	}
	if t.LCCooldown != nil {
		p.LCCooldown = *t.LCCooldown
	}
	if t.TgtStartFollowDist != nil {
		p.TgtStartFollowDist = *t.TgtStartFollowDist
	}
	if t.TgtFollowDist != nil {
		p.TgtFollowDist = *t.TgtFollowDist
	}
	if t.TgtMinFollowDist != nil {
		p.TgtMinFollowDist = *t.TgtMinFollowDist
	}
	if t.MinFollowSpeedDec != nil {
		p.MinFollowSpeedDec = *t.MinFollowSpeedDec
	}
	if t.PlanLCSpeedDec != nil {
		p.PlanLCSpeedDec = *t.PlanLCSpeedDec
	}
	if t.TgtMinSpeed != nil {
		p.TgtMinSpeed = *t.TgtMinSpeed
	}
	if t.NumCandidates != nil {
		p.NumCandidates = *t.NumCandidates
	}
	if t.SpeedDevSigma != nil {
		p.SpeedDevSigma = *t.SpeedDevSigma
	}
	if t.TimeDevSigma != nil {
		p.TimeDevSigma = *t.TimeDevSigma
	}
	if t.CostRisk != nil {
		p.CostRisk = *t.CostRisk
	}
	if t.CostDeviation != nil {
		p.CostDeviation = *t.CostDeviation
	}
	if t.CostThreshold != nil {
		p.CostThreshold = *t.CostThreshold
	}
}
