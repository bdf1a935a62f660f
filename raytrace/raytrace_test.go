package raytrace

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"

	"github.com/sondrelabs/dspcore"
	"github.com/sondrelabs/dspcore/sample"
)

// TestDirectivityGain checks every polar pattern's closed form directly
// against spec.md §4.4's formulas at a few representative angles.
func TestDirectivityGain(t *testing.T) {
	cases := []struct {
		d        Directivity
		cosAngle float64
		want     float64
	}{
		{Omni, 1, 1},
		{Omni, -1, 1},
		{Bidirectional, 1, 1},
		{Bidirectional, -1, -1},
		{Bidirectional, 0, 0},
		{FigureEight, 1, 1},
		{FigureEight, -1, 1},
		{FigureEight, 0.5, 0.25},
		{Cardioid, 1, 0},
		{Cardioid, -1, 1},
		{Cardioid, 0, 0.5},
		{SuperCardioid, 0.5, 0},
		{SuperCardioid, 1, 2.0 / 3.0 * 0.5},
		{HyperCardioid, 0.25, 0},
		{HyperCardioid, 1, 0.8 * 0.75},
	}
	for _, c := range cases {
		got := c.d.gain(c.cosAngle)
		require.InDelta(t, c.want, got, 1e-9)
	}
}

// TestSpawnChildrenEnergyThreshold exercises the absorption/transparency
// split directly and confirms the energy-threshold cutoff drops children
// whose amplitude falls below fEnergyThresh.
func TestSpawnChildrenEnergyThreshold(t *testing.T) {
	m := &Material{
		Absorption:   [2]float32{0.5, 0.5},
		Diffusion:    [2]float32{1, 1},
		Dispersion:   [2]float32{1, 1},
		Transparency: [2]float32{0.2, 0.2},
		Permeability: 1,
	}

	v := &view{
		s:         r3.Vector{X: 0, Y: 0, Z: 0},
		p:         [3]r3.Vector{{X: -1, Y: -1, Z: 5}, {X: 1, Y: -1, Z: 5}, {X: 0, Y: 1, Z: 5}},
		amplitude: 1.0,
		speed:     SoundSpeed,
		location:  1,
	}
	normal := r3.Vector{X: 0, Y: 0, Z: -1}

	reflected, refracted := spawnChildren(v, m, normal, 2.0)
	require.NotNil(t, reflected)
	require.NotNil(t, refracted)

	// absorbed = amplitude * (1 - absorption[0]) = 1.0 * 0.5 = 0.5
	// reflected amplitude = absorbed * (transparency[0] - 1) = 0.5 * -0.8 = -0.4
	require.InDelta(t, -0.4, reflected.view.amplitude, 1e-6)
	// refracted amplitude = absorbed * transparency[0] = 0.5 * 0.2 = 0.1
	require.InDelta(t, 0.1, refracted.view.amplitude, 1e-6)
	require.Equal(t, stateScanObjects, reflected.state)
	require.Equal(t, stateScanObjects, refracted.state)

	// A source quiet enough that both children fall under energyThreshold
	// (1e-6) should spawn neither.
	v.amplitude = 1e-8
	reflected, refracted = spawnChildren(v, m, normal, 2.0)
	require.Nil(t, reflected)
	require.Nil(t, refracted)
}

// TestClipTriangleToFrustumKeepsInteriorTriangle checks that a triangle
// lying entirely within a point source's view cone survives frustum
// clipping as a single untouched fragment.
func TestClipTriangleToFrustumKeepsInteriorTriangle(t *testing.T) {
	v := view{
		s: r3.Vector{X: 0, Y: 0, Z: 0},
		p: [3]r3.Vector{
			{X: -1, Y: -1, Z: 5},
			{X: 1, Y: -1, Z: 5},
			{X: 0, Y: 1, Z: 5},
		},
	}
	tri := &Triangle{
		A: r3.Vector{X: -1, Y: -1, Z: 5},
		B: r3.Vector{X: 1, Y: -1, Z: 5},
		C: r3.Vector{X: 0, Y: 1, Z: 5},
	}

	pieces := clipTriangleToFrustum(tri, v.frustum())
	require.Len(t, pieces, 1)
	require.Equal(t, tri.A, pieces[0].v[0])
	require.Equal(t, tri.B, pieces[0].v[1])
	require.Equal(t, tri.C, pieces[0].v[2])
}

// TestClipTriangleToFrustumDropsOutsideTriangle checks that a triangle
// entirely behind the source (outside its forward view cone) is dropped.
func TestClipTriangleToFrustumDropsOutsideTriangle(t *testing.T) {
	v := view{
		s: r3.Vector{X: 0, Y: 0, Z: 0},
		p: [3]r3.Vector{
			{X: -1, Y: -1, Z: 5},
			{X: 1, Y: -1, Z: 5},
			{X: 0, Y: 1, Z: 5},
		},
	}
	tri := &Triangle{
		A: r3.Vector{X: -1, Y: -1, Z: -5},
		B: r3.Vector{X: 1, Y: -1, Z: -5},
		C: r3.Vector{X: 0, Y: 1, Z: -5},
	}

	pieces := clipTriangleToFrustum(tri, v.frustum())
	require.Empty(t, pieces)
}

// TestRunSingleTriangleSingleCapture runs a complete trace over a minimal
// scene (one fully-absorbing triangle facing a point source, with a
// capture bound to it) and confirms energy reaches the bound channel.
func TestRunSingleTriangleSingleCapture(t *testing.T) {
	mat := &Material{
		Absorption:   [2]float32{1, 1},
		Diffusion:    [2]float32{1, 1},
		Dispersion:   [2]float32{1, 1},
		Transparency: [2]float32{0, 0},
		Permeability: 1,
	}

	scene := &Scene{
		Triangles: []Triangle{
			{
				A:        r3.Vector{X: -1, Y: -1, Z: 5},
				B:        r3.Vector{X: 0, Y: 1, Z: 5},
				C:        r3.Vector{X: 1, Y: -1, Z: 5},
				Material: mat,
				OID:      0,
				Capture:  0,
			},
		},
		Sources: []Source{
			{Position: r3.Vector{X: 0, Y: 0, Z: 0}, Amplitude: 1},
		},
		Captures: []Capture{
			{
				Position:       r3.Vector{X: 0, Y: 0, Z: 0},
				Orientation:    r3.Vector{X: 0, Y: 0, Z: 1},
				Directivity:    Omni,
				MinReflections: -1,
				MaxReflections: -1,
			},
		},
	}

	var out sample.Sample
	require.NoError(t, out.Init(48000, 1, 0))
	scene.Captures[0].BindOutput(&out, 0)

	tracer := NewTracer(scene, 48000, nil)
	require.NoError(t, tracer.Run(1, false))

	require.Greater(t, out.Length(), 0)
	ch := out.Channel(0)
	var total float64
	for _, v := range ch {
		total += float64(v)
	}
	require.Greater(t, total, 0.0)
}

// TestRunCancellation checks that a progress callback returning false
// stops the trace and surfaces ErrCancelled.
func TestRunCancellation(t *testing.T) {
	mat := &Material{
		Absorption:   [2]float32{0.1, 0.1},
		Diffusion:    [2]float32{1, 1},
		Dispersion:   [2]float32{1, 1},
		Transparency: [2]float32{0.5, 0.5},
		Permeability: 1,
	}
	scene := &Scene{
		Triangles: []Triangle{
			{A: r3.Vector{X: -5, Y: -5, Z: 5}, B: r3.Vector{X: 5, Y: -5, Z: 5}, C: r3.Vector{X: 0, Y: 5, Z: 5}, Material: mat, OID: 0, Capture: -1},
			{A: r3.Vector{X: -5, Y: -5, Z: -5}, B: r3.Vector{X: 5, Y: -5, Z: -5}, C: r3.Vector{X: 0, Y: 5, Z: -5}, Material: mat, OID: 1, Capture: -1},
		},
		Sources: []Source{
			{Position: r3.Vector{X: 0, Y: 0, Z: 0}, Amplitude: 1},
		},
	}

	tracer := NewTracer(scene, 48000, func(progress float32) bool {
		return false
	})
	err := tracer.Run(2, false)
	require.ErrorIs(t, err, dspcore.ErrCancelled)
}

// TestRunRejectsZeroWorkers checks the ErrBadArguments guard on worker
// count.
func TestRunRejectsZeroWorkers(t *testing.T) {
	scene := &Scene{Sources: []Source{{Position: r3.Vector{}, Amplitude: 1}}}
	tracer := NewTracer(scene, 48000, nil)
	err := tracer.Run(0, false)
	require.ErrorIs(t, err, dspcore.ErrBadArguments)
}
