package route

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// circleWaypoints builds a circular loop of the given radius with sparse
// waypoints every spacing metres of arc. The lane-normal points outward
// (to the right of travel), so d grows away from the circle centre.
func circleWaypoints(radius, spacing float64) []Waypoint {
	n := int(2 * math.Pi * radius / spacing)
	wps := make([]Waypoint, n)
	for i := 0; i < n; i++ {
		s := float64(i) * spacing
		theta := s / radius
		wps[i] = Waypoint{
			S:  s,
			X:  radius * math.Sin(theta),
			Y:  radius * (1 - math.Cos(theta)),
			DX: math.Sin(theta),
			DY: -math.Cos(theta),
		}
	}
	return wps
}

func circleTable(t *testing.T, radius float64) *Table {
	t.Helper()
	table, err := BuildTable(circleWaypoints(radius, 30), 0.5)
	require.NoError(t, err)
	return table
}

func TestBuildTableValidation(t *testing.T) {
	_, err := BuildTable(nil, 0.5)
	assert.ErrorIs(t, err, ErrMapLoad)

	_, err = BuildTable(circleWaypoints(200, 30), -1)
	assert.ErrorIs(t, err, ErrMapLoad)

	wps := circleWaypoints(200, 30)
	wps[5].S = wps[4].S // not strictly increasing
	_, err = BuildTable(wps, 0.5)
	assert.ErrorIs(t, err, ErrMapLoad)
}

func TestTrackLengthMatchesCircumference(t *testing.T) {
	table := circleTable(t, 200)
	assert.InDelta(t, 2*math.Pi*200, table.TrackLength(), 1.0)
}

func TestFrenetRoundTrip(t *testing.T) {
	table := circleTable(t, 200)

	// Corridor points across lanes and arc positions, including near the seam.
	for _, s := range []float64{0, 12.3, 100, 500, table.TrackLength() - 3} {
		for _, d := range []float64{2, 6, 10} {
			x, y := table.XY(s, d)
			s2, d2 := table.Frenet(x, y)
			x2, y2 := table.XY(s2, d2)

			if math.Hypot(x2-x, y2-y) > 0.5 {
				t.Errorf("round trip (s=%v d=%v): (%v,%v) -> (%v,%v)", s, d, x, y, x2, y2)
			}
			assert.InDelta(t, d, d2, 0.2, "d at s=%v", s)
		}
	}
}

func TestWrapS(t *testing.T) {
	table := circleTable(t, 200)
	length := table.TrackLength()

	assert.InDelta(t, 5.0, table.WrapS(length+5), 1e-9)
	assert.InDelta(t, length-5, table.WrapS(-5), 1e-9)
	assert.InDelta(t, 0.0, table.WrapS(0), 1e-9)
}

func TestArcDeltaSeam(t *testing.T) {
	table := circleTable(t, 200)
	length := table.TrackLength()

	// Leader 5 past the seam, follower 5 before it: forward gap of 10.
	assert.InDelta(t, 10.0, table.ArcDelta(5, length-5), 1e-9)
	assert.InDelta(t, -10.0, table.ArcDelta(length-5, 5), 1e-9)
	// Half the loop away stays positive.
	assert.InDelta(t, length/2, table.ArcDelta(length/2, 0), 1e-9)
}

func TestXYContinuousAcrossSeam(t *testing.T) {
	table := circleTable(t, 200)
	length := table.TrackLength()

	// Walk across the seam in small steps; consecutive points must be
	// close together (no jump where s wraps).
	prevX, prevY := table.XY(length-2, 6)
	for s := length - 1.8; s < length+2; s += 0.2 {
		x, y := table.XY(s, 6)
		step := math.Hypot(x-prevX, y-prevY)
		assert.Less(t, step, 1.0, "discontinuity at s=%v", s)
		prevX, prevY = x, y
	}
}

func TestTangentNormalOrthogonal(t *testing.T) {
	table := circleTable(t, 200)

	for _, s := range []float64{0, 77, 400, table.TrackLength() / 2} {
		tx, ty, nx, ny := table.TangentNormal(s)
		assert.InDelta(t, 1.0, math.Hypot(tx, ty), 1e-6, "tangent unit at s=%v", s)
		assert.InDelta(t, 1.0, math.Hypot(nx, ny), 1e-6, "normal unit at s=%v", s)
		assert.InDelta(t, 0.0, tx*nx+ty*ny, 0.05, "orthogonality at s=%v", s)
	}
}

func TestLoadWaypoints(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "map.txt")
		require.NoError(t, os.WriteFile(path, []byte(
			"0 0.0 0.0 0.0 1.0\n\n30 30.0 0.0 0.0 1.0\n60 60.0 0.0 0.0 1.0\n"), 0o644))

		wps, err := LoadWaypoints(path)
		require.NoError(t, err)
		require.Len(t, wps, 3)
		assert.Equal(t, Waypoint{S: 30, X: 30, Y: 0, DX: 0, DY: 1}, wps[1])
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadWaypoints(filepath.Join(dir, "absent.txt"))
		assert.ErrorIs(t, err, ErrMapLoad)
	})

	t.Run("short line", func(t *testing.T) {
		path := filepath.Join(dir, "short.txt")
		require.NoError(t, os.WriteFile(path, []byte("0 1 2 3\n"), 0o644))
		_, err := LoadWaypoints(path)
		assert.ErrorIs(t, err, ErrMapLoad)
	})

	t.Run("non-numeric", func(t *testing.T) {
		path := filepath.Join(dir, "bad.txt")
		require.NoError(t, os.WriteFile(path, []byte("0 a 2 3 4\n"), 0o644))
		_, err := LoadWaypoints(path)
		assert.ErrorIs(t, err, ErrMapLoad)
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.txt")
		require.NoError(t, os.WriteFile(path, []byte("\n\n"), 0o644))
		_, err := LoadWaypoints(path)
		assert.ErrorIs(t, err, ErrMapLoad)
	})
}
