package kernel

import "github.com/golang/geo/r3"

// Plane is a half-space boundary: points p with p.Dot(Normal) + D >= 0 are
// "inside". Normal need not be unit length; CalcPlane always returns one
// normalized by construction.
type Plane struct {
	Normal r3.Vector
	D      float64
}

// Side classifies a point against a plane, matching the raytrace package's
// clip/cull bookkeeping.
func (p Plane) Side(v r3.Vector) float64 {
	return p.Normal.Dot(v) + p.D
}

// CalcPlane builds the plane through three points, oriented so that a
// point "behind" the triangle (in winding order a,b,c) has Side < 0.
var CalcPlane = func(a, b, c r3.Vector) Plane {
	n := b.Sub(a).Cross(c.Sub(a))
	n = n.Normalize()
	return Plane{Normal: n, D: -n.Dot(a)}
}

// CalcArea returns the area of the triangle a,b,c.
var CalcArea = func(a, b, c r3.Vector) float64 {
	return 0.5 * b.Sub(a).Cross(c.Sub(a)).Norm()
}

// CalcDistance returns the distance between two points.
var CalcDistance = func(a, b r3.Vector) float64 {
	return a.Sub(b).Norm()
}

// CalcSplitPoint returns the point where segment a->b crosses plane pl,
// assuming a and b lie on opposite sides (the caller checks this via
// ColocationX2 first).
var CalcSplitPoint = func(a, b r3.Vector, pl Plane) r3.Vector {
	da := pl.Side(a)
	db := pl.Side(b)
	denom := da - db
	if denom == 0 {
		return a
	}
	t := da / denom
	return a.Add(b.Sub(a).Mul(t))
}

// Colocation classifies a point's position relative to a plane into one of
// three half-space tags, matching the original's 27-case (3 vertices x 3
// half-spaces) Sutherland-Hodgman colocation scheme.
type Colocation int

const (
	ColocationBehind Colocation = -1
	ColocationOn     Colocation = 0
	ColocationAhead  Colocation = 1
)

const colocationEpsilon = 1e-9

func colocate(v r3.Vector, pl Plane) Colocation {
	d := pl.Side(v)
	switch {
	case d > colocationEpsilon:
		return ColocationAhead
	case d < -colocationEpsilon:
		return ColocationBehind
	default:
		return ColocationOn
	}
}

// ColocationX2 classifies two points against a plane.
var ColocationX2 = func(a, b r3.Vector, pl Plane) (Colocation, Colocation) {
	return colocate(a, pl), colocate(b, pl)
}

// ColocationX3 classifies three points (a triangle's vertices) against a
// plane in one call, the shape the 27-case clip table is indexed by.
var ColocationX3 = func(a, b, c r3.Vector, pl Plane) (Colocation, Colocation, Colocation) {
	return colocate(a, pl), colocate(b, pl), colocate(c, pl)
}

// Triangle is three vertices in winding order.
type Triangle struct {
	A, B, C r3.Vector
}

// CullTriangleRaw reports whether a triangle survives clipping against pl
// (true if any vertex is ahead of or on the plane).
var CullTriangleRaw = func(t Triangle, pl Plane) bool {
	ca, cb, cc := ColocationX3(t.A, t.B, t.C, pl)
	return ca != ColocationBehind || cb != ColocationBehind || cc != ColocationBehind
}

// ClipPolygon clips an arbitrary convex polygon (vertices in winding
// order) against plane pl using Sutherland-Hodgman polygon clipping,
// returning the surviving fragment's vertices in the same winding order
// (empty if the whole polygon is behind pl). Used to intersect a ray
// group's candidate triangles against each of the view frustum's 4
// planes, one plane at a time.
var ClipPolygon = func(verts []r3.Vector, pl Plane) []r3.Vector {
	n := len(verts)
	if n == 0 {
		return nil
	}
	locs := make([]Colocation, n)
	for i, v := range verts {
		locs[i] = colocate(v, pl)
	}

	out := make([]r3.Vector, 0, n+1)
	for i := 0; i < n; i++ {
		cur := verts[i]
		next := verts[(i+1)%n]
		curIn := locs[i] != ColocationBehind
		nextIn := locs[(i+1)%n] != ColocationBehind

		if curIn {
			out = append(out, cur)
		}
		if curIn != nextIn {
			out = append(out, CalcSplitPoint(cur, next, pl))
		}
	}
	return out
}

// SplitTriangleRaw clips t against plane pl, returning the surviving
// polygon's vertices (triangle fan order, 0 if t is fully behind pl).
var SplitTriangleRaw = func(t Triangle, pl Plane) []r3.Vector {
	return ClipPolygon([]r3.Vector{t.A, t.B, t.C}, pl)
}
