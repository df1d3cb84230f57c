package predict

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/path.planner/internal/config"
	"github.com/banshee-data/path.planner/internal/route"
	"github.com/banshee-data/path.planner/internal/vehicle"
)

func testTable(t *testing.T) *route.Table {
	t.Helper()
	var radius, spacing = 500.0, 30.0
	n := int(2 * math.Pi * radius / spacing)
	wps := make([]route.Waypoint, n)
	for i := 0; i < n; i++ {
		s := float64(i) * spacing
		theta := s / radius
		wps[i] = route.Waypoint{
			S:  s,
			X:  radius * math.Sin(theta),
			Y:  radius * (1 - math.Cos(theta)),
			DX: math.Sin(theta),
			DY: -math.Cos(theta),
		}
	}
	table, err := route.BuildTable(wps, 0.5)
	require.NoError(t, err)
	return table
}

func car(lane int, d, dDot, sDot float64, intent vehicle.Intent) *vehicle.DetectedVehicle {
	return &vehicle.DetectedVehicle{
		Base: vehicle.Base{
			VehID:  1,
			Lane:   lane,
			State:  vehicle.State{S: 100, SDot: sDot, D: d, DDot: dDot},
			Intent: intent,
		},
	}
}

func TestUpdateIntentHysteresis(t *testing.T) {
	p := config.Defaults()

	tests := []struct {
		name string
		from vehicle.Intent
		dDot float64
		want vehicle.Intent
	}{
		{"keep lane steady", vehicle.IntentKeepLane, 0.5, vehicle.IntentKeepLane},
		{"unknown settles to keep lane", vehicle.IntentUnknown, 0.0, vehicle.IntentKeepLane},
		{"keep lane drifting right", vehicle.IntentKeepLane, 2.5, vehicle.IntentLaneChangeRight},
		{"keep lane drifting left", vehicle.IntentKeepLane, -2.5, vehicle.IntentLaneChangeLeft},
		{"unknown drifting right", vehicle.IntentUnknown, 3.0, vehicle.IntentLaneChangeRight},
		{"right change persists", vehicle.IntentLaneChangeRight, 2.4, vehicle.IntentLaneChangeRight},
		{"right change ends", vehicle.IntentLaneChangeRight, 1.0, vehicle.IntentKeepLane},
		{"left change persists", vehicle.IntentLaneChangeLeft, -2.4, vehicle.IntentLaneChangeLeft},
		{"left change ends", vehicle.IntentLaneChangeLeft, -0.5, vehicle.IntentKeepLane},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := car(2, 6, tt.dDot, 20, tt.from)
			UpdateIntent(c, p)
			assert.Equal(t, tt.want, c.Intent)
		})
	}
}

func TestTrajectoriesProbabilitiesSumToOne(t *testing.T) {
	table := testTable(t)
	p := config.Defaults()

	tests := []struct {
		name      string
		lane      int
		d         float64
		intent    vehicle.Intent
		wantPreds int
	}{
		{"middle lane keep", 2, 6, vehicle.IntentKeepLane, 3},
		{"left lane keep", 1, 2, vehicle.IntentKeepLane, 2},
		{"right lane keep", 3, 10, vehicle.IntentKeepLane, 2},
		{"middle lane changing left", 2, 5.2, vehicle.IntentLaneChangeLeft, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := car(tt.lane, tt.d, 0, 18, tt.intent)
			require.NoError(t, Trajectories(c, table, p))
			require.Len(t, c.Predictions, tt.wantPreds)

			sum := 0.0
			for _, traj := range c.Predictions {
				sum += traj.Probability
				assert.NotEmpty(t, traj.States)
			}
			assert.InDelta(t, 1.0, sum, 1e-9)

			inferred := c.Predictions[tt.intent]
			assert.InDelta(t, 0.8, inferred.Probability, 1e-9)
		})
	}
}

func TestInferredIntentNotApplicableFallsBack(t *testing.T) {
	table := testTable(t)
	p := config.Defaults()

	// Leftmost lane but still flagged changing left: keep-lane absorbs the
	// inferred weight.
	c := car(1, 2, -2.5, 18, vehicle.IntentLaneChangeLeft)
	require.NoError(t, Trajectories(c, table, p))
	require.Len(t, c.Predictions, 2)

	assert.InDelta(t, 0.8, c.Predictions[vehicle.IntentKeepLane].Probability, 1e-9)
	assert.InDelta(t, 0.2, c.Predictions[vehicle.IntentLaneChangeRight].Probability, 1e-9)
}

func TestKeepLanePredictionReturnsToCenter(t *testing.T) {
	table := testTable(t)
	p := config.Defaults()

	c := car(2, 6.8, 0, 18, vehicle.IntentKeepLane)
	require.NoError(t, Trajectories(c, table, p))

	traj := c.Predictions[vehicle.IntentKeepLane]
	last, ok := traj.Last()
	require.True(t, ok)
	assert.InDelta(t, 6.0, last.D, 0.05)

	// s advances at constant speed.
	assert.InDelta(t, c.State.S+18*p.PredictHorizon, last.S, 0.5)
}

func TestLaneChangePredictionReachesAdjacentCenter(t *testing.T) {
	table := testTable(t)
	p := config.Defaults()

	c := car(2, 6, -2.5, 18, vehicle.IntentLaneChangeLeft)
	require.NoError(t, Trajectories(c, table, p))

	traj := c.Predictions[vehicle.IntentLaneChangeLeft]
	last, ok := traj.Last()
	require.True(t, ok)
	assert.InDelta(t, 2.0, last.D, 0.1)
	assert.InDelta(t, 0.0, last.DDot, 0.1)

	right := c.Predictions[vehicle.IntentLaneChangeRight]
	lastR, _ := right.Last()
	assert.InDelta(t, 10.0, lastR.D, 0.1)
}

func TestUpdateAll(t *testing.T) {
	table := testTable(t)
	p := config.Defaults()

	cars := map[int]*vehicle.DetectedVehicle{
		1: car(1, 2, 0, 18, vehicle.IntentUnknown),
		2: car(2, 6, 2.6, 20, vehicle.IntentKeepLane),
	}
	require.NoError(t, UpdateAll(cars, table, p))

	assert.Equal(t, vehicle.IntentKeepLane, cars[1].Intent)
	assert.Equal(t, vehicle.IntentLaneChangeRight, cars[2].Intent)
	for _, c := range cars {
		assert.NotEmpty(t, c.Predictions)
	}
}
