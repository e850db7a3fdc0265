package geometry

import (
	"github.com/Guymer/gft/internal/core/domain"
)

// Simplifier thins region boundaries with Douglas-Peucker. Simplification
// never adds vertices and keeps every survivor where it was, so the result
// stays within the hull of the input.
type Simplifier struct{}

// Simplify reduces every ring of the region with the given tolerance in
// degrees. Rings that collapse below 3 vertices are dropped; dropping an
// outer ring drops its holes with it. An input that collapses entirely is
// a GeometryError.
func (Simplifier) Simplify(region domain.Region, toleranceDeg float64) (domain.Region, error) {
	if !(toleranceDeg > 0) {
		return nil, domain.NewInvalidParameter("simp", "tolerance must be positive degrees, got %g", toleranceDeg)
	}
	if region.Empty() {
		return nil, &domain.GeometryError{Op: "simplify", Err: errEmptyResult}
	}

	out := make(domain.Region, 0, len(region))
	for _, poly := range region {
		thinned, err := simplify(toGeomPolygon(poly), toleranceDeg)
		if err != nil {
			return nil, &domain.GeometryError{Op: "simplify", Err: err}
		}
		for _, p := range fromGeom(thinned) {
			out = append(out, p)
		}
	}
	if out.Empty() {
		return nil, &domain.GeometryError{Op: "simplify", Err: errEmptyResult}
	}
	if !validRegion(out) {
		return nil, &domain.GeometryError{Op: "simplify", Err: errNonFiniteVertex}
	}
	return out, nil
}
