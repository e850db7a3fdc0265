package geometry

import (
	"github.com/Guymer/gft/internal/core/domain"
)

// Union merges two charted regions into one.
func Union(a, b domain.Region) (domain.Region, error) {
	if a.Empty() {
		return b.Clone(), nil
	}
	if b.Empty() {
		return a.Clone(), nil
	}
	out, err := union(toGeom(a), toGeom(b))
	if err != nil {
		return nil, &domain.GeometryError{Op: "union", Err: err}
	}
	merged := fromGeom(out)
	if !validRegion(merged) {
		return nil, &domain.GeometryError{Op: "union", Err: errNonFiniteVertex}
	}
	return merged, nil
}

// Intersection returns the overlap of two charted regions, which may be
// empty.
func Intersection(a, b domain.Region) (domain.Region, error) {
	if a.Empty() || b.Empty() {
		return nil, nil
	}
	out, err := intersection(toGeom(a), toGeom(b))
	if err != nil {
		return nil, &domain.GeometryError{Op: "intersection", Err: err}
	}
	overlap := fromGeom(out)
	if !validRegion(overlap) {
		return nil, &domain.GeometryError{Op: "intersection", Err: errNonFiniteVertex}
	}
	return overlap, nil
}

// DropHoles strips interior rings, filling lakes and inland seas. A front
// cannot restart inside a barrier, so holes only slow clipping down.
func DropHoles(region domain.Region) domain.Region {
	if region.Empty() {
		return nil
	}
	out := make(domain.Region, 0, len(region))
	for _, poly := range region {
		out = append(out, domain.Polygon{Outer: poly.Outer.Clone()})
	}
	return out
}
