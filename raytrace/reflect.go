package raytrace

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/sondrelabs/dspcore/internal/kernel"
)

// captureAccum holds one worker's private per-capture sample buffers,
// merged into the shared Sample channels only once every worker has
// finished (RayTrace3D::merge_result).
type captureAccum struct {
	buf [][]float32
}

func newCaptureAccum(n int) *captureAccum {
	return &captureAccum{buf: make([][]float32, n)}
}

func (a *captureAccum) add(capture int, index int, amplitude float32) {
	if index < 0 {
		return
	}
	buf := a.buf[capture]
	if len(buf) <= index {
		grown := make([]float32, index+1)
		copy(grown, buf)
		buf = grown
		a.buf[capture] = buf
	}
	buf[index] += amplitude
}

// reflect is TaskThread::reflect_view: for every triangle remaining in
// the context, project it through the view cone to find when/where the
// wavefront reaches it, then either integrate it into a capture or spawn
// reflected/refracted children.
func (t *Tracer) reflect(ctx *rtContext, accum *captureAccum) ([]*rtContext, error) {
	sv := ctx.view
	area := triangleArea(sv.p[0], sv.p[1], sv.p[2])
	if area <= detailArea {
		return nil, nil
	}
	invArea := 1 / area
	vpl := kernel.CalcPlane(sv.p[0], sv.p[1], sv.p[2])

	var children []*rtContext

	for _, ct := range ctx.triangles {
		distance := ct.normal.Side(sv.s)

		switch {
		case distance > 0:
			if sv.location <= 0 {
				continue
			}
		case distance < 0:
			if sv.location >= 0 || sv.oid != ct.oid {
				continue
			}
		default:
			continue
		}

		var p [3]r3.Vector
		var d, tm [3]float32
		valid := true
		for j := 0; j < 3; j++ {
			p[j] = kernel.CalcSplitPoint(sv.s, ct.v[j], vpl)
			d[j] = float32(kernel.CalcDistance(p[j], ct.v[j]))

			a0 := triangleArea(p[j], sv.p[1], sv.p[2])
			a1 := triangleArea(sv.p[0], p[j], sv.p[2])
			a2 := triangleArea(sv.p[0], sv.p[1], p[j])

			dA := area - (a0 + a1 + a2)
			if dA <= -tolerance || dA >= tolerance {
				valid = false
				break
			}

			barySum := sv.time[0]*float32(a0) + sv.time[1]*float32(a1) + sv.time[2]*float32(a2)
			tm[j] = barySum * float32(invArea)
		}
		if !valid {
			continue
		}

		projArea := triangleArea(p[0], p[1], p[2])
		if projArea <= detailArea {
			continue
		}

		var v view
		v.oid = ct.oid
		v.s = sv.s
		v.amplitude = sv.amplitude * float32(math.Sqrt(projArea*invArea))
		v.location = sv.location
		v.speed = sv.speed
		v.rnum = sv.rnum
		v.p = ct.v
		for j := 0; j < 3; j++ {
			v.time[j] = tm[j] + d[j]/sv.speed
		}

		if ct.capture >= 0 {
			if err := t.capture(&t.scene.Captures[ct.capture], ct.capture, accum, &v); err != nil {
				return nil, err
			}
			continue
		}

		refl, refr := spawnChildren(&v, ct.material, ct.normal.Normal, distance)
		if refl != nil {
			children = append(children, refl)
		}
		if refr != nil {
			children = append(children, refr)
		}
	}

	return children, nil
}

// tolerance matches DSP_3D_TOLERANCE's use in reflect_view's barycentric
// containment check.
const tolerance = 1e-4

func triangleArea(a, b, c r3.Vector) float64 {
	return kernel.CalcArea(a, b, c)
}

// spawnChildren builds the reflected and refracted child views hitting
// triangle with material m at signed distance from the apex, following
// reflect_view's two symmetric branches for distance>0 (front side) and
// distance<0 (back side). Either child is nil if its amplitude falls
// below energyThreshold.
func spawnChildren(v *view, m *Material, normal r3.Vector, distance float64) (reflected, refracted *rtContext) {
	side := 0
	if distance < 0 {
		side = 1
	}

	absorbed := v.amplitude * (1 - m.Absorption[side])

	rv := *v
	rv.amplitude = absorbed * (m.Transparency[side] - 1)
	rv.rnum = v.rnum + 1

	tv := *v
	tv.amplitude = absorbed * m.Transparency[side]
	tv.location = -v.location

	kdR := (1 + 1/float64(m.Diffusion[side])) * distance
	shift(&rv.s, normal, kdR)

	if side == 0 {
		kdT := (float64(m.Permeability)/float64(m.Dispersion[0]) - 1) * distance
		tv.speed = v.speed * m.Permeability
		shift(&tv.s, normal, kdT)
	} else {
		kdT := (1/(float64(m.Dispersion[1])*float64(m.Permeability)) - 1) * distance
		tv.speed = v.speed / m.Permeability
		shift(&tv.s, normal, kdT)
	}

	if absFloat32(rv.amplitude) >= energyThreshold {
		// Reverse winding: the reflected group now looks back the way it
		// came, so its far triangle's orientation flips.
		rv.p[1], rv.p[2] = v.p[2], v.p[1]
		reflected = &rtContext{view: rv, state: stateScanObjects}
	}
	if absFloat32(tv.amplitude) >= energyThreshold {
		refracted = &rtContext{view: tv, state: stateScanObjects}
	}
	return reflected, refracted
}

func shift(p *r3.Vector, axis r3.Vector, k float64) {
	*p = p.Sub(axis.Mul(k))
}

func absFloat32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

// capture is TaskThread::capture: integrate the wavefront's arrival over
// one-sample culling slabs, accumulating amplitude*sqrt(delta area) times
// the capture's directivity gain into the bound Sample channel.
func (t *Tracer) capture(cap *Capture, idx int, accum *captureAccum, v *view) error {
	vArea := triangleArea(v.p[0], v.p[1], v.p[2])
	if vArea <= detailArea {
		return nil
	}

	afactor := float64(v.amplitude) / math.Sqrt(vArea)

	toCapture := unitVector(v.s, centroid(v.p))
	kcos := toCapture.Dot(cap.Orientation.Normalize())
	afactor *= cap.Directivity.gain(kcos)

	var ds [3]r3.Vector
	var ts, tsn [3]float64
	for i := 0; i < 3; i++ {
		ds[i] = v.p[i].Sub(v.s)
		dist := ds[i].Norm()
		ts[i] = float64(v.time[i]) - dist/float64(v.speed)
		tsn[i] = float64(v.time[i]) * float64(t.sampleRate)
	}

	csn := tsn[0]
	if tsn[1] < csn {
		csn = tsn[1]
	}
	if tsn[2] < csn {
		csn = tsn[2]
	}
	sampleIndex := int(csn) + 1

	maxTime := v.time[0]
	if v.time[1] > maxTime {
		maxTime = v.time[1]
	}
	if v.time[2] > maxTime {
		maxTime = v.time[2]
	}

	// Sweep the culling time forward one sample at a time: each vertex
	// of the hit triangle reaches the listener along its own ds[i]/ts[i]
	// schedule, so the triangle formed by the 3 positions already
	// "arrived" by ctime grows from a point (everything still converged
	// near the source) to the full triangle (every vertex arrived),
	// monotonically by construction. This stands in for
	// dsp::split_triangle_raw's literal per-sample polygon re-clip,
	// whose SIMD implementation is outside the retrieval pack; see
	// DESIGN.md.
	prevArea := 0.0
	for {
		ctime := float64(sampleIndex) / float64(t.sampleRate)
		var p [3]r3.Vector
		for i := 0; i < 3; i++ {
			denom := float64(v.time[i]) - ts[i]
			factor := 0.0
			if denom != 0 {
				factor = (ctime - ts[i]) / denom
			}
			if factor > 1 {
				factor = 1
			}
			if factor < 0 {
				factor = 0
			}
			p[i] = v.s.Add(ds[i].Mul(factor))
		}

		area := triangleArea(p[0], p[1], p[2])
		if area > prevArea {
			amplitude := float32(math.Sqrt(area-prevArea) * afactor)
			prevArea = area
			if sampleIndex > 0 {
				if cap.MinReflections < 0 || v.rnum >= cap.MinReflections {
					if cap.MaxReflections < 0 || v.rnum <= cap.MaxReflections {
						accum.add(idx, sampleIndex-1, amplitude)
					}
				}
			}
		}

		if ctime >= float64(maxTime) {
			break
		}
		sampleIndex++
	}

	return nil
}

func centroid(p [3]r3.Vector) r3.Vector {
	return p[0].Add(p[1]).Add(p[2]).Mul(1.0 / 3.0)
}

func unitVector(from, to r3.Vector) r3.Vector {
	return to.Sub(from).Normalize()
}
