package geometry

import (
	"errors"
	"fmt"

	"github.com/ctessum/geom"
)

var (
	errTooFewVertices   = errors.New("ring has fewer than 3 vertices")
	errNoEnclosedPole   = errors.New("winding ring encloses neither pole")
	errMultipleWindings = errors.New("ring winds around the globe more than once")
	errEmptyResult      = errors.New("operation produced no usable geometry")
	errNonFiniteVertex  = errors.New("operation produced a non-finite vertex")
	errInteriorLost     = errors.New("normalised region does not contain its interior point")
)

// The clipping library panics on some degenerate inputs instead of
// returning an error. These wrappers turn that into an error so a caller
// can retry with perturbed input.

func intersection(a geom.Polygon, b geom.Polygonal) (out geom.Polygon, err error) {
	defer recoverOp("intersection", &err)
	return a.Intersection(b).(geom.Polygon), nil
}

func difference(a geom.Polygon, b geom.Polygonal) (out geom.Polygon, err error) {
	defer recoverOp("difference", &err)
	return a.Difference(b).(geom.Polygon), nil
}

func union(a geom.Polygon, b geom.Polygonal) (out geom.Polygon, err error) {
	defer recoverOp("union", &err)
	return a.Union(b).(geom.Polygon), nil
}

func simplify(p geom.Polygon, tolerance float64) (out geom.Polygon, err error) {
	defer recoverOp("simplify", &err)
	switch s := p.Simplify(tolerance).(type) {
	case geom.Polygon:
		return s, nil
	case geom.MultiPolygon:
		var flat geom.Polygon
		for _, sub := range s {
			flat = append(flat, sub...)
		}
		return flat, nil
	default:
		return nil, fmt.Errorf("simplify returned %T", s)
	}
}

func recoverOp(op string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s: %v", op, r)
	}
}
