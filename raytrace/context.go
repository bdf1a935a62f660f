package raytrace

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/sondrelabs/dspcore/internal/kernel"
)

// ctxState is a context's position in the SCAN_OBJECTS -> SPLIT ->
// CULL_BACK -> REFLECT state machine.
type ctxState int

const (
	stateScanObjects ctxState = iota
	stateSplit
	stateCullBack
	stateReflect
)

// view is one ray group: an apex point (the effective source) radiating
// into a triangular cone bounded by 3 far vertices, carrying the
// amplitude, propagation speed, and per-vertex arrival time the group
// has accumulated so far.
type view struct {
	s         r3.Vector
	p         [3]r3.Vector
	amplitude float32
	speed     float32
	location  float32 // +1/-1: which side of oid's surface this group is on
	oid       int
	rnum      int
	time      [3]float32
}

// frustum returns the 4 planes bounding view's cone: 3 side planes
// through the apex and each edge of the far triangle, oriented so the
// cone's interior is "inside", plus the far triangle's own plane
// (oriented, so the side away from the source is "inside").
//
// Grounded on context_t::cull_view, which builds this exact plane set
// from view.s and view.p[0..2] before clipping scene geometry against
// it.
func (v *view) frustum() [4]kernel.Plane {
	var pl [4]kernel.Plane
	pl[0] = orientedPlane(v.s, v.p[0], v.p[1], v.p[2])
	pl[1] = reverseOrientedPlane(v.p[2], v.s, v.p[0], v.p[1])
	pl[2] = reverseOrientedPlane(v.p[0], v.s, v.p[1], v.p[2])
	pl[3] = reverseOrientedPlane(v.p[1], v.s, v.p[2], v.p[0])
	return pl
}

// orientedPlane builds the plane through b, c, d, oriented so that a
// lies on its negative side (calc_oriented_plane_p3 in the original:
// the fourth point tells the plane which way is "outside").
func orientedPlane(a, b, c, d r3.Vector) kernel.Plane {
	pl := kernel.CalcPlane(b, c, d)
	if pl.Side(a) > 0 {
		pl.Normal = pl.Normal.Mul(-1)
		pl.D = -pl.D
	}
	return pl
}

// reverseOrientedPlane is orientedPlane with the resulting plane's sense
// flipped once more (calc_rev_oriented_plane_p3), so a ends up on the
// plane's positive ("inside the cone") side instead: used for frustum's
// 3 side planes, since in each case a is the opposite vertex of the cone
// and must remain on the surviving side.
func reverseOrientedPlane(a, b, c, d r3.Vector) kernel.Plane {
	pl := orientedPlane(a, b, c, d)
	pl.Normal = pl.Normal.Mul(-1)
	pl.D = -pl.D
	return pl
}

// edge is one undone split candidate in a context's split plan.
type edge struct {
	a, b r3.Vector
}

// sceneTriangle is a Triangle carried alongside the clipped geometry a
// context actually sees, which may be a fragment of the original face.
type sceneTriangle struct {
	v        [3]r3.Vector
	normal   kernel.Plane
	material *Material
	oid      int
	capture  int
}

// rtContext is one unit of ray-tracing work.
type rtContext struct {
	view      view
	triangles []sceneTriangle
	plan      []edge
	state     ctxState
}

// clipEdgeToFrustum clips segment a-b against all 4 frustum planes,
// following context_t::add_edge: any plane that puts both endpoints
// behind it drops the edge entirely; a plane straddled by the edge moves
// the outside endpoint to the plane.
func clipEdgeToFrustum(a, b r3.Vector, frustum [4]kernel.Plane) (r3.Vector, r3.Vector, bool) {
	for _, pl := range frustum {
		ca, cb := kernel.ColocationX2(a, b, pl)
		switch {
		case ca != kernel.ColocationBehind && cb != kernel.ColocationBehind:
			continue
		case ca == kernel.ColocationBehind && cb == kernel.ColocationBehind:
			return r3.Vector{}, r3.Vector{}, false
		case ca == kernel.ColocationBehind:
			a = kernel.CalcSplitPoint(a, b, pl)
		default:
			b = kernel.CalcSplitPoint(a, b, pl)
		}
	}
	return a, b, true
}

// clipTriangleToFrustum clips t against all 4 frustum planes in turn and
// fan-triangulates whatever convex fragment survives, following
// context_t::add_triangle's sequential 4-plane cull.
func clipTriangleToFrustum(t *Triangle, frustum [4]kernel.Plane) []sceneTriangle {
	poly := []r3.Vector{t.A, t.B, t.C}
	for _, pl := range frustum {
		poly = kernel.ClipPolygon(poly, pl)
		if len(poly) == 0 {
			return nil
		}
	}

	out := make([]sceneTriangle, 0, len(poly)-2)
	n := t.plane()
	for i := 1; i+1 < len(poly); i++ {
		out = append(out, sceneTriangle{
			v:        [3]r3.Vector{poly[0], poly[i], poly[i+1]},
			normal:   n,
			material: t.Material,
			oid:      t.OID,
			capture:  t.Capture,
		})
	}
	return out
}

// scanObjects is TaskThread::scan_objects + context_t::add_triangle/
// add_edge: clip every scene triangle against the view's frustum,
// collect survivors, and seed the split plan from their edges. If any
// edges survived the state advances to SPLIT, otherwise (no edges but
// surviving triangles) straight to REFLECT; a context left with nothing
// at all is dropped.
func (t *Tracer) scanObjects(ctx *rtContext) ([]*rtContext, error) {
	frustum := ctx.view.frustum()

	var triangles []sceneTriangle
	seen := make(map[edgeKey]bool)
	var plan []edge

	for i := range t.scene.Triangles {
		tri := &t.scene.Triangles[i]
		pieces := clipTriangleToFrustum(tri, frustum)
		if len(pieces) == 0 {
			continue
		}
		triangles = append(triangles, pieces...)

		for _, piece := range pieces {
			for k := 0; k < 3; k++ {
				a, b := piece.v[k], piece.v[(k+1)%3]
				ca, cb, ok := clipEdgeToFrustum(a, b, frustum)
				if !ok {
					continue
				}
				key := newEdgeKey(ca, cb)
				if seen[key] {
					continue
				}
				seen[key] = true
				plan = append(plan, edge{a: ca, b: cb})
			}
		}
	}

	ctx.triangles = triangles
	ctx.plan = plan

	if len(ctx.plan) > 0 {
		ctx.state = stateSplit
	} else if len(ctx.triangles) == 0 {
		return nil, nil
	} else {
		ctx.state = stateReflect
	}
	return []*rtContext{ctx}, nil
}

// edgeKey deduplicates edges discovered from adjacent triangle
// fragments; coordinates are quantized so two fragments' shared edge,
// computed independently, collide into the same key despite float
// rounding.
type edgeKey [2]r3.Vector

func quantize(v r3.Vector) r3.Vector {
	const q = 1e6
	round := func(x float64) float64 { return math.Round(x*q) / q }
	return r3.Vector{X: round(v.X), Y: round(v.Y), Z: round(v.Z)}
}

func newEdgeKey(a, b r3.Vector) edgeKey {
	qa, qb := quantize(a), quantize(b)
	if less(qb, qa) {
		qa, qb = qb, qa
	}
	return edgeKey{qa, qb}
}

func less(a, b r3.Vector) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

// split is TaskThread::split_view + context_t::edge_split/split: pop one
// undone edge from the plan, build a plane through it and the source
// point, and partition the context's triangles into the two halves of
// that plane. Either half with >=1 triangle becomes (or stays) a task; a
// sibling context is only spawned when both halves are non-empty.
func (t *Tracer) split(ctx *rtContext) ([]*rtContext, error) {
	if len(ctx.plan) == 0 {
		ctx.state = stateCullBack
		return []*rtContext{ctx}, nil
	}

	e := ctx.plan[0]
	ctx.plan = ctx.plan[1:]

	pl := kernel.CalcPlane(ctx.view.s, e.a, e.b)

	var above, below []sceneTriangle
	for _, tri := range ctx.triangles {
		ca, cb, cc := kernel.ColocationX3(tri.v[0], tri.v[1], tri.v[2], pl)
		if ca == kernel.ColocationBehind && cb == kernel.ColocationBehind && cc == kernel.ColocationBehind {
			below = append(below, tri)
			continue
		}
		if ca != kernel.ColocationBehind && cb != kernel.ColocationBehind && cc != kernel.ColocationBehind {
			above = append(above, tri)
			continue
		}
		// Straddles the plane: clip the fragment to both sides.
		belowPoly := kernel.ClipPolygon([]r3.Vector{tri.v[0], tri.v[1], tri.v[2]}, pl)
		flipped := kernel.Plane{Normal: pl.Normal.Mul(-1), D: -pl.D}
		abovePoly := kernel.ClipPolygon([]r3.Vector{tri.v[0], tri.v[1], tri.v[2]}, flipped)
		for i := 1; i+1 < len(belowPoly); i++ {
			below = append(below, withVerts(tri, belowPoly[0], belowPoly[i], belowPoly[i+1]))
		}
		for i := 1; i+1 < len(abovePoly); i++ {
			above = append(above, withVerts(tri, abovePoly[0], abovePoly[i], abovePoly[i+1]))
		}
	}

	ctx.triangles = below
	nextState := stateReflect
	if len(ctx.plan) > 0 {
		nextState = stateSplit
	}
	ctx.state = nextState

	var children []*rtContext
	if len(ctx.triangles) > 0 {
		children = append(children, ctx)
	}
	if len(above) > 0 {
		sibling := &rtContext{
			view:      ctx.view,
			triangles: above,
			plan:      append([]edge(nil), ctx.plan...),
			state:     nextState,
		}
		children = append(children, sibling)
	}
	if len(children) == 0 {
		return nil, nil
	}
	return children, nil
}

func withVerts(t sceneTriangle, a, b, c r3.Vector) sceneTriangle {
	t.v = [3]r3.Vector{a, b, c}
	return t
}

// cullBack is TaskThread::cullback_view + context_t::depth_test: find
// the triangle nearest the source, build a plane oriented away from it,
// and drop every triangle behind that plane (occluded by the nearest
// surface).
func (t *Tracer) cullBack(ctx *rtContext) ([]*rtContext, error) {
	if len(ctx.triangles) == 0 {
		return nil, nil
	}

	nearest := 0
	nearestDist := math.MaxFloat64
	for i, tri := range ctx.triangles {
		d := math.Min(kernel.CalcDistance(ctx.view.s, tri.v[0]),
			math.Min(kernel.CalcDistance(ctx.view.s, tri.v[1]), kernel.CalcDistance(ctx.view.s, tri.v[2])))
		if d < nearestDist {
			nearestDist = d
			nearest = i
		}
	}

	st := ctx.triangles[nearest]
	pl := orientTowards(st.normal, ctx.view.s)

	var kept []sceneTriangle
	for _, tri := range ctx.triangles {
		ca, cb, cc := kernel.ColocationX3(tri.v[0], tri.v[1], tri.v[2], pl)
		if ca == kernel.ColocationBehind && cb == kernel.ColocationBehind && cc == kernel.ColocationBehind {
			continue
		}
		kept = append(kept, tri)
	}

	ctx.triangles = kept
	if len(ctx.triangles) == 0 {
		return nil, nil
	}
	ctx.state = stateReflect
	return []*rtContext{ctx}, nil
}

// orientTowards returns a plane coincident with pl but re-oriented so
// that apex is on its positive side (orient_plane_v1p1 in the original).
func orientTowards(pl kernel.Plane, apex r3.Vector) kernel.Plane {
	if pl.Side(apex) < 0 {
		return kernel.Plane{Normal: pl.Normal.Mul(-1), D: -pl.D}
	}
	return pl
}
