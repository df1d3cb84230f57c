// Package route maintains the dense highway centerline table and converts
// between Cartesian (x, y) and Frenet (s, d) frames.
//
// The sparse waypoint map is resampled once at startup by fitting natural
// cubic splines through x(s), y(s) and the lane-normal components dx(s),
// dy(s). All later conversions index the dense tables, so per-cycle work is
// interpolation only.
package route

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"
)

// ErrMapLoad is returned for any failure reading or fitting the waypoint map.
var ErrMapLoad = errors.New("route: map load failure")

// Waypoint is one sparse centerline sample: arc position s, Cartesian
// position (x, y) and the unit lane-normal (dx, dy) pointing toward
// increasing d.
type Waypoint struct {
	S  float64
	X  float64
	Y  float64
	DX float64
	DY float64
}

// Table holds the dense resampled centerline. Samples are spaced ds metres
// apart in s and cover [0, TrackLength).
type Table struct {
	ds       float64
	trackLen float64

	s  []float64
	x  []float64
	y  []float64
	dx []float64
	dy []float64
}

// BuildTable fits splines through the sparse waypoints and samples them
// every ds metres. Waypoints must be sorted by strictly increasing s.
// The track is a loop: the closing segment from the last waypoint back to
// the first defines the track length, and the spline fit wraps a few
// waypoints past each end so the dense table has no seam discontinuity.
func BuildTable(wps []Waypoint, ds float64) (*Table, error) {
	if len(wps) < 3 {
		return nil, fmt.Errorf("%w: need at least 3 waypoints, got %d", ErrMapLoad, len(wps))
	}
	if ds <= 0 {
		return nil, fmt.Errorf("%w: non-positive sample spacing %v", ErrMapLoad, ds)
	}
	for i := 1; i < len(wps); i++ {
		if wps[i].S <= wps[i-1].S {
			return nil, fmt.Errorf("%w: waypoint s not strictly increasing at index %d", ErrMapLoad, i)
		}
	}

	last := wps[len(wps)-1]
	first := wps[0]
	closing := math.Hypot(first.X-last.X, first.Y-last.Y)
	trackLen := last.S + closing

	// Wrap a few waypoints beyond both ends so the dense samples near the
	// seam are interpolated, never extrapolated.
	const wrap = 3
	ext := make([]Waypoint, 0, len(wps)+2*wrap)
	for i := len(wps) - wrap; i < len(wps); i++ {
		w := wps[i]
		w.S -= trackLen
		ext = append(ext, w)
	}
	ext = append(ext, wps...)
	for i := 0; i < wrap; i++ {
		w := wps[i]
		w.S += trackLen
		ext = append(ext, w)
	}

	ss := make([]float64, len(ext))
	xs := make([]float64, len(ext))
	ys := make([]float64, len(ext))
	dxs := make([]float64, len(ext))
	dys := make([]float64, len(ext))
	for i, w := range ext {
		ss[i] = w.S
		xs[i] = w.X
		ys[i] = w.Y
		dxs[i] = w.DX
		dys[i] = w.DY
	}

	var splX, splY, splDX, splDY interp.NaturalCubic
	for _, fit := range []struct {
		spl *interp.NaturalCubic
		ys  []float64
	}{
		{&splX, xs}, {&splY, ys}, {&splDX, dxs}, {&splDY, dys},
	} {
		if err := fit.spl.Fit(ss, fit.ys); err != nil {
			return nil, fmt.Errorf("%w: spline fit: %v", ErrMapLoad, err)
		}
	}

	n := int(trackLen / ds)
	t := &Table{
		ds:       ds,
		trackLen: trackLen,
		s:        make([]float64, n),
		x:        make([]float64, n),
		y:        make([]float64, n),
		dx:       make([]float64, n),
		dy:       make([]float64, n),
	}
	for i := 0; i < n; i++ {
		s := float64(i) * ds
		t.s[i] = s
		t.x[i] = splX.Predict(s)
		t.y[i] = splY.Predict(s)
		// Re-normalise the interpolated normal; the spline does not
		// preserve unit length between waypoints.
		nx, ny := splDX.Predict(s), splDY.Predict(s)
		norm := math.Hypot(nx, ny)
		if norm > 0 {
			nx /= norm
			ny /= norm
		}
		t.dx[i] = nx
		t.dy[i] = ny
	}
	return t, nil
}

// TrackLength returns the loop length S_MAX.
func (t *Table) TrackLength() float64 { return t.trackLen }

// WrapS reduces s into [0, TrackLength).
func (t *Table) WrapS(s float64) float64 {
	m := math.Mod(s, t.trackLen)
	if m < 0 {
		m += t.trackLen
	}
	return m
}

// ArcDelta returns the signed shortest arc from ref to s,
// in (-TrackLength/2, TrackLength/2].
func (t *Table) ArcDelta(s, ref float64) float64 {
	d := t.WrapS(s - ref)
	if d > t.trackLen/2 {
		d -= t.trackLen
	}
	return d
}

// index splits a wrapped s into the base sample index and the fraction
// toward the next sample.
func (t *Table) index(s float64) (int, float64) {
	s = t.WrapS(s)
	i := int(s / t.ds)
	if i >= len(t.s) {
		i = len(t.s) - 1
	}
	gap := t.ds
	if i == len(t.s)-1 {
		// The closing interval back to sample 0 is not exactly ds long.
		gap = t.trackLen - t.s[i]
	}
	return i, (s - t.s[i]) / gap
}

// XY converts Frenet (s, d) to Cartesian (x, y) via the dense tables,
// linearly interpolating between adjacent samples.
func (t *Table) XY(s, d float64) (float64, float64) {
	i, frac := t.index(s)
	j := (i + 1) % len(t.s)

	x := t.x[i] + frac*(t.x[j]-t.x[i])
	y := t.y[i] + frac*(t.y[j]-t.y[i])
	nx := t.dx[i] + frac*(t.dx[j]-t.dx[i])
	ny := t.dy[i] + frac*(t.dy[j]-t.dy[i])

	return x + d*nx, y + d*ny
}

// Frenet converts Cartesian (x, y) to Frenet (s, d). The nearest dense
// sample anchors the conversion; the residual is projected onto the local
// normal for d and onto the local tangent for the s refinement.
func (t *Table) Frenet(x, y float64) (float64, float64) {
	best := 0
	bestDist := math.MaxFloat64
	for i := range t.x {
		dist := sq(x-t.x[i]) + sq(y-t.y[i])
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}

	relX := x - t.x[best]
	relY := y - t.y[best]

	d := relX*t.dx[best] + relY*t.dy[best]

	tx, ty := t.tangentAt(best)
	s := t.WrapS(t.s[best] + relX*tx + relY*ty)

	return s, d
}

// TangentNormal returns the unit tangent and unit normal at arc position s.
// The tangent points toward increasing s, the normal toward increasing d.
func (t *Table) TangentNormal(s float64) (tx, ty, nx, ny float64) {
	i, frac := t.index(s)
	j := (i + 1) % len(t.s)

	tx, ty = t.tangentAt(i)
	nx = t.dx[i] + frac*(t.dx[j]-t.dx[i])
	ny = t.dy[i] + frac*(t.dy[j]-t.dy[i])
	norm := math.Hypot(nx, ny)
	if norm > 0 {
		nx /= norm
		ny /= norm
	}
	return tx, ty, nx, ny
}

// tangentAt estimates the unit tangent at sample i by central difference,
// wrapping around the seam.
func (t *Table) tangentAt(i int) (float64, float64) {
	n := len(t.x)
	prev := (i - 1 + n) % n
	next := (i + 1) % n

	tx := t.x[next] - t.x[prev]
	ty := t.y[next] - t.y[prev]
	norm := math.Hypot(tx, ty)
	if norm > 0 {
		tx /= norm
		ty /= norm
	}
	return tx, ty
}

func sq(v float64) float64 { return v * v }
