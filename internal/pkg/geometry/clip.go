package geometry

import (
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"

	"github.com/Guymer/gft/internal/core/domain"
)

// Clipper subtracts a barrier dataset from candidate fronts. The barrier
// is indexed once at construction; each Clip only touches the barrier
// polygons whose bounds reach the candidate.
type Clipper struct {
	index *rtree.Rtree
}

type barrierEntry struct {
	poly   geom.Polygon
	bounds *geom.Bounds
}

func (e *barrierEntry) Bounds() *geom.Bounds { return e.bounds }

// The rtree stores geom.Geom values; everything beyond Bounds delegates
// to the wrapped polygon.
func (e *barrierEntry) Similar(g geom.Geom, tolerance float64) bool { return e.poly.Similar(g, tolerance) }

func (e *barrierEntry) Transform(t proj.Transformer) (geom.Geom, error) { return e.poly.Transform(t) }

func (e *barrierEntry) Len() int { return e.poly.Len() }

func (e *barrierEntry) Points() func() geom.Point { return e.poly.Points() }

// NewClipper indexes the barrier polygons of a dataset. A nil or empty
// dataset yields a clipper that passes candidates through untouched.
func NewClipper(land *domain.LandDataset) *Clipper {
	c := &Clipper{index: rtree.NewTree(25, 50)}
	if land == nil {
		return c
	}
	for _, p := range land.Barrier {
		gp := toGeomPolygon(p)
		c.index.Insert(&barrierEntry{poly: gp, bounds: gp.Bounds()})
	}
	return c
}

// Clip returns the candidate region minus every barrier polygon near it.
// Subtraction can split the front into several lobes or cut holes into
// it; both survive in the returned region. The candidate is never
// modified.
func (c *Clipper) Clip(candidate domain.Region) (domain.Region, error) {
	if candidate.Empty() {
		return nil, &domain.GeometryError{Op: "clip", Err: errEmptyResult}
	}

	cand := toGeom(candidate)
	hits := c.index.SearchIntersect(cand.Bounds())
	if len(hits) == 0 {
		return candidate, nil
	}

	cur := cand
	for _, hit := range hits {
		entry := hit.(*barrierEntry)
		next, err := difference(cur, entry.poly)
		if err != nil {
			return nil, &domain.GeometryError{Op: "clip", Err: err}
		}
		cur = next
	}

	region := fromGeom(cur)
	if region.Empty() {
		return nil, &domain.GeometryError{Op: "clip", Err: errEmptyResult}
	}
	if !validRegion(region) {
		return nil, &domain.GeometryError{Op: "clip", Err: errNonFiniteVertex}
	}
	return region, nil
}

// Perturb returns a copy of the region with every vertex nudged by up to
// deg degrees in a fixed pattern. It gives polygon operations that choked
// on a degenerate arrangement a second chance on almost identical input.
func Perturb(r domain.Region, deg float64) domain.Region {
	out := r.Clone()
	nudge := func(ring domain.Ring) {
		for i := range ring {
			switch i % 4 {
			case 0:
				ring[i].Lon += deg
			case 1:
				ring[i].Lat += deg
			case 2:
				ring[i].Lon -= deg
			case 3:
				ring[i].Lat -= deg
			}
		}
	}
	for i := range out {
		nudge(out[i].Outer)
		for j := range out[i].Holes {
			nudge(out[i].Holes[j])
		}
	}
	return out
}
