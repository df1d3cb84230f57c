package fusion

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrMalformedFrame is returned when an inbound telemetry frame is missing
// required fields or carries non-numeric data. The planner skips such frames
// and re-emits the previous path.
var ErrMalformedFrame = errors.New("fusion: malformed frame")

// Path is a pair of coordinate slices in emission order.
type Path struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// SensorCar is one raw sensor-fusion row for a detected car.
type SensorCar struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
	S  float64 `json:"s"`
	D  float64 `json:"d"`
}

// Frame is one inbound telemetry message: the ego's measured position, the
// unconsumed tail of the last emitted path, and the sensor snapshot.
type Frame struct {
	X            float64
	Y            float64
	PreviousPath Path
	SensorFusion []SensorCar
}

type wireFrame struct {
	X            *float64    `json:"x"`
	Y            *float64    `json:"y"`
	PreviousPath *Path       `json:"previous_path"`
	SensorFusion []SensorCar `json:"sensor_fusion"`
}

// ParseFrame decodes and validates a telemetry frame.
func ParseFrame(data []byte) (*Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if w.X == nil || w.Y == nil {
		return nil, fmt.Errorf("%w: missing ego position", ErrMalformedFrame)
	}

	f := &Frame{X: *w.X, Y: *w.Y, SensorFusion: w.SensorFusion}
	if w.PreviousPath != nil {
		f.PreviousPath = *w.PreviousPath
	}
	if len(f.PreviousPath.X) != len(f.PreviousPath.Y) {
		return nil, fmt.Errorf("%w: previous path length mismatch %d != %d",
			ErrMalformedFrame, len(f.PreviousPath.X), len(f.PreviousPath.Y))
	}

	for _, v := range append([]float64{f.X, f.Y}, f.PreviousPath.X...) {
		if !finite(v) {
			return nil, fmt.Errorf("%w: non-finite coordinate", ErrMalformedFrame)
		}
	}
	for _, v := range f.PreviousPath.Y {
		if !finite(v) {
			return nil, fmt.Errorf("%w: non-finite coordinate", ErrMalformedFrame)
		}
	}
	for _, car := range f.SensorFusion {
		for _, v := range []float64{car.X, car.Y, car.VX, car.VY, car.S, car.D} {
			if !finite(v) {
				return nil, fmt.Errorf("%w: non-finite sensor row for car %d", ErrMalformedFrame, car.ID)
			}
		}
	}
	return f, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
