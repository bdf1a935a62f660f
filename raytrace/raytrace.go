// Package raytrace implements the ray-tracing room impulse response
// generator from spec.md §4.4: a parallel work-stealing scheduler walks a
// geometric tree of ray-group contexts over a triangular mesh scene,
// reflecting and refracting at every surface hit, and integrates the
// resulting wavefronts into one Sample per capture point.
//
// Grounded directly on
// original_source/src/main/3d/RayTrace3D.cpp (TaskThread::main_loop,
// submit_task, scan_objects, cull_view, split_view, cullback_view,
// reflect_view, capture) and
// original_source/src/main/3d/rt/context.cpp (context_t::cut/cullback/
// split/edge_split/depth_test, the 27-case Sutherland-Hodgman colocation
// table). Neither file's companion header (context.h, RayTrace3D.h,
// rt/plan.h) is present in the retrieval pack, so the split-plan/edge
// bookkeeping here is reconstructed from the .cpp call sites rather than
// ported from a declaration; see DESIGN.md. Scan_objects' bounding-box
// pre-filter against hierarchical scene objects is dropped: this
// package's Scene is a flat triangle list rather than the original's
// object/mesh hierarchy, so there is no bounding box to cull against
// before per-triangle clipping -- a performance simplification, not a
// semantic one, since the clip/cull math downstream is unchanged.
// Geometric primitives (plane construction, area, colocation, polygon
// clipping) come from internal/kernel; 3-D vectors use
// github.com/golang/geo/r3.
package raytrace

import (
	"fmt"
	"math"
	"sync"

	"github.com/golang/geo/r3"

	"github.com/sondrelabs/dspcore"
	"github.com/sondrelabs/dspcore/internal/kernel"
	"github.com/sondrelabs/dspcore/sample"
)

// Physical and numerical constants, all named directly after the
// original's #define / static const values.
const (
	// SoundSpeed is the default propagation speed in meters/second
	// (LSP_DSP_UNITS_SOUND_SPEED_M_S).
	SoundSpeed = 340.0

	// detailArea is the minimum projected triangle area worth tracing
	// further (fDetalization).
	detailArea = 1e-10

	// energyThreshold is the minimum child amplitude worth spawning a
	// new context for (fEnergyThresh).
	energyThreshold = 1e-6

	// taskLoThresh bounds how many SCAN_OBJECTS tasks may sit on the
	// shared global deque before a worker starts keeping new ones local
	// (TASK_LO_THRESH).
	taskLoThresh = 0x2000
)

// Directivity selects a capture point's polar pattern.
type Directivity int

const (
	Omni Directivity = iota
	Bidirectional
	FigureEight
	Cardioid
	SuperCardioid
	HyperCardioid
)

// gain returns the directivity multiplier for the cosine of the angle
// between the capture's facing direction and the incoming wavefront.
func (d Directivity) gain(cosAngle float64) float64 {
	switch d {
	case Bidirectional:
		return cosAngle
	case FigureEight:
		return cosAngle * cosAngle
	case Cardioid:
		return 0.5 * (1 - cosAngle)
	case SuperCardioid:
		return (2.0 / 3.0) * math.Abs(0.5-cosAngle)
	case HyperCardioid:
		return 0.8 * math.Abs(0.25-cosAngle)
	default:
		return 1
	}
}

// Material describes one oriented surface's acoustic response to a
// ray hitting its front (index 0) or back (index 1) side.
type Material struct {
	Absorption   [2]float32
	Diffusion    [2]float32
	Dispersion   [2]float32
	Transparency [2]float32
	Permeability float32
}

// Triangle is one oriented, materialed face of the scene. OID groups
// faces belonging to the same solid object, so a ray re-entering through
// its own back face is recognized rather than treated as a foreign hit.
// Capture is the index into Scene.Captures this face feeds, or -1 for an
// ordinary reflecting/refracting face.
type Triangle struct {
	A, B, C  r3.Vector
	Material *Material
	OID      int
	Capture  int
}

func (t *Triangle) plane() kernel.Plane {
	return kernel.CalcPlane(t.A, t.B, t.C)
}

// Source is an omnidirectional emission point.
type Source struct {
	Position  r3.Vector
	Amplitude float32
}

// Capture is one receiver point with a polar pattern, accumulating an
// impulse response into a bound Sample channel.
type Capture struct {
	Position       r3.Vector
	Orientation    r3.Vector // unit vector the capture faces
	Directivity    Directivity
	MinReflections int // -1 = unbounded
	MaxReflections int // -1 = unbounded

	out     *sample.Sample
	channel int
}

// BindOutput attaches the Sample channel this capture accumulates into,
// mirroring RayTrace3D::bind_capture.
func (c *Capture) BindOutput(s *sample.Sample, channel int) {
	c.out = s
	c.channel = channel
}

// Scene is the static input a Tracer processes: a triangle mesh, one or
// more emission sources, and one or more capture points.
type Scene struct {
	Triangles []Triangle
	Sources   []Source
	Captures  []Capture
}

// ProgressFunc is called periodically with overall completion in [0, 1].
// Returning false requests cooperative cancellation.
type ProgressFunc func(progress float32) bool

// Tracer runs the parallel ray-tracing pass over a Scene.
type Tracer struct {
	scene        *Scene
	sampleRate   float32
	progress     ProgressFunc
	reportPeriod int

	mu        sync.Mutex
	global    []*rtContext
	processed int64
	estimate  int64

	cancelled boolFlag
	failed    boolFlag
}

// boolFlag is a tiny race-free flag, matching the scale of bCancelled/
// bFailed in the original (a single atomic bool apiece rather than a
// generic sync primitive).
type boolFlag struct {
	mu  sync.Mutex
	set bool
}

func (f *boolFlag) Set() {
	f.mu.Lock()
	f.set = true
	f.mu.Unlock()
}

func (f *boolFlag) Get() bool {
	f.mu.Lock()
	v := f.set
	f.mu.Unlock()
	return v
}

// NewTracer prepares a tracer for scene at sampleRate Hz. progress may be
// nil to disable progress reporting.
func NewTracer(scene *Scene, sampleRate float32, progress ProgressFunc) *Tracer {
	return &Tracer{
		scene:      scene,
		sampleRate: sampleRate,
		progress:   progress,
	}
}

// Run drives the ray trace to completion using the given worker count,
// then sums every worker's per-capture accumulation into the bound
// Sample channels and, if normalize is true, scales every bound capture
// so the loudest sample across all of them is exactly 1.
func (t *Tracer) Run(workers int, normalize bool) error {
	if workers <= 0 {
		return fmt.Errorf("%w: workers=%d", dspcore.ErrBadArguments, workers)
	}

	roots := t.generateRootContexts()
	t.global = roots
	t.estimate = int64(len(roots))

	accum := make([]*captureAccum, workers)
	for i := range accum {
		accum[i] = newCaptureAccum(len(t.scene.Captures))
	}

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			errs[id] = t.workerLoop(accum[id])
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	if t.failed.Get() {
		return dspcore.ErrCorrupted
	}
	if t.cancelled.Get() {
		return dspcore.ErrCancelled
	}

	return t.mergeResults(accum, normalize)
}

// octahedronFaces tessellates the full sphere around center into 8
// triangular view cones (one per octant), each face at unit radius. Stands
// in for rt_gen_source_mesh -- called from generate_tasks to tessellate an
// omnidirectional source's emission into a set of group_t view cones --
// whose own implementation is outside the retrieval pack; the octahedron
// is the simplest non-degenerate tessellation covering the full sphere
// with flat triangular faces, which is all a root view cone needs to be.
func octahedronFaces(center r3.Vector) [8][3]r3.Vector {
	axis := [6]r3.Vector{
		{X: 1, Y: 0, Z: 0}, {X: -1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0}, {X: 0, Y: -1, Z: 0},
		{X: 0, Y: 0, Z: 1}, {X: 0, Y: 0, Z: -1},
	}
	var faces [8][3]r3.Vector
	i := 0
	for _, x := range [2]r3.Vector{axis[0], axis[1]} {
		for _, y := range [2]r3.Vector{axis[2], axis[3]} {
			for _, z := range [2]r3.Vector{axis[4], axis[5]} {
				faces[i] = [3]r3.Vector{center.Add(x), center.Add(y), center.Add(z)}
				i++
			}
		}
	}
	return faces
}

// generateRootContexts builds the initial SCAN_OBJECTS contexts for every
// source, matching generate_tasks: each source's emission is tessellated
// into several view cones (rt_gen_source_mesh) rather than one context per
// source, since a single triangular frustum cannot bound a full sphere.
func (t *Tracer) generateRootContexts() []*rtContext {
	roots := make([]*rtContext, 0, len(t.scene.Sources)*8)
	for _, src := range t.scene.Sources {
		for _, face := range octahedronFaces(src.Position) {
			ctx := &rtContext{
				state: stateScanObjects,
				view: view{
					s:         src.Position,
					p:         face,
					amplitude: src.Amplitude,
					speed:     SoundSpeed,
					location:  1,
					oid:       -1,
					rnum:      0,
				},
			}
			roots = append(roots, ctx)
		}
	}
	return roots
}

// workerLoop is TaskThread::main_loop: pop local work first, fall back to
// the shared global deque, and stop once both are empty.
func (t *Tracer) workerLoop(accum *captureAccum) error {
	var local []*rtContext

	for {
		if t.cancelled.Get() || t.failed.Get() {
			return dspcore.ErrCancelled
		}

		var ctx *rtContext
		fromGlobal := false
		if n := len(local); n > 0 {
			ctx = local[n-1]
			local = local[:n-1]
		} else {
			t.mu.Lock()
			if n := len(t.global); n > 0 {
				ctx = t.global[n-1]
				t.global = t.global[:n-1]
				fromGlobal = true
			}
			t.mu.Unlock()
			if ctx == nil {
				break
			}
		}

		children, err := t.processContext(ctx, accum)
		if err != nil {
			t.failed.Set()
			return err
		}
		report := fromGlobal

		for _, child := range children {
			t.submit(child, &local)
		}

		if report {
			if err := t.reportProgress(); err != nil {
				t.failed.Set()
				return err
			}
		}
	}

	return nil
}

// submit is TaskThread::submit_task: SCAN_OBJECTS contexts go to the
// shared deque while the global deque is below taskLoThresh (so other
// idle workers can steal fan-out work); every other state stays on the
// submitting worker's local stack for cache-friendly depth-first
// processing.
func (t *Tracer) submit(ctx *rtContext, local *[]*rtContext) {
	if ctx.state == stateScanObjects {
		t.mu.Lock()
		if len(t.global) < taskLoThresh {
			t.global = append(t.global, ctx)
			t.mu.Unlock()
			return
		}
		t.mu.Unlock()
	}
	*local = append(*local, ctx)
}

// reportProgress mirrors report_progress: it is only ever invoked by the
// worker that just pulled work from the (lock-protected) global deque, so
// t.processed only needs to be touched under that same lock.
func (t *Tracer) reportProgress() error {
	if t.progress == nil {
		return nil
	}
	t.mu.Lock()
	t.processed++
	progress := float32(t.processed) / float32(t.estimate)
	t.mu.Unlock()

	if progress > 1 {
		progress = 1
	}
	if !t.progress(progress) {
		t.cancelled.Set()
		return dspcore.ErrBreakPoint
	}
	return nil
}

// processContext runs one context through whichever state it is
// currently in, returning the child contexts it spawned (if any) for the
// caller to submit.
func (t *Tracer) processContext(ctx *rtContext, accum *captureAccum) ([]*rtContext, error) {
	switch ctx.state {
	case stateScanObjects:
		return t.scanObjects(ctx)
	case stateSplit:
		return t.split(ctx)
	case stateCullBack:
		return t.cullBack(ctx)
	case stateReflect:
		return t.reflect(ctx, accum)
	default:
		return nil, dspcore.ErrCorrupted
	}
}

// mergeResults sums every worker's per-capture accumulation into the
// bound Sample channels, then optionally normalizes across all of them.
func (t *Tracer) mergeResults(accum []*captureAccum, normalize bool) error {
	peak := float32(0)

	for ci, cap := range t.scene.Captures {
		if cap.out == nil {
			continue
		}
		length := 0
		for _, a := range accum {
			if l := len(a.buf[ci]); l > length {
				length = l
			}
		}
		if length == 0 {
			continue
		}
		if cap.out.Length() < length {
			if err := cap.out.Resize(length); err != nil {
				return err
			}
		}
		dst := cap.out.Channel(cap.channel)
		for _, a := range accum {
			for i, v := range a.buf[ci] {
				dst[i] += v
				if abs := float32(math.Abs(float64(dst[i]))); abs > peak {
					peak = abs
				}
			}
		}
	}

	if normalize && peak > 0 {
		scale := 1 / peak
		for _, cap := range t.scene.Captures {
			if cap.out == nil {
				continue
			}
			buf := cap.out.Channel(cap.channel)
			for i := range buf {
				buf[i] *= scale
			}
		}
	}

	return nil
}
