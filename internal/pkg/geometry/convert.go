// Package geometry implements the planar polygon pipeline of the engine:
// chart normalisation, land clipping, simplification and measurement.
//
// Regions hold open rings (the closing edge is implicit). Everything
// handed to the polygon-clipping library is closed first and reopened on
// the way back, which matches how WKB and shapefile tooling round-trips
// the same data.
package geometry

import (
	"math"
	"sort"

	"github.com/ctessum/geom"

	"github.com/Guymer/gft/internal/core/domain"
)

func toGeomRing(r domain.Ring) []geom.Point {
	path := make([]geom.Point, 0, len(r)+1)
	for _, c := range r {
		path = append(path, geom.Point{X: c.Lon, Y: c.Lat})
	}
	if len(path) > 0 {
		path = append(path, path[0])
	}
	return path
}

func toGeomPolygon(p domain.Polygon) geom.Polygon {
	out := make(geom.Polygon, 0, 1+len(p.Holes))
	out = append(out, toGeomRing(p.Outer))
	for _, h := range p.Holes {
		out = append(out, toGeomRing(h))
	}
	return out
}

// toGeom flattens a region into a single multi-contour polygon. The
// clipping library treats contours with even-odd semantics, so outer
// rings and holes can travel side by side.
func toGeom(r domain.Region) geom.Polygon {
	var out geom.Polygon
	for _, p := range r {
		out = append(out, toGeomPolygon(p)...)
	}
	return out
}

func fromGeomRing(path []geom.Point) domain.Ring {
	out := make(domain.Ring, 0, len(path))
	for _, pt := range path {
		c := domain.Coordinate{Lon: pt.X, Lat: pt.Y}
		if n := len(out); n > 0 && out[n-1] == c {
			continue
		}
		out = append(out, c)
	}
	if n := len(out); n > 1 && out[0] == out[n-1] {
		out = out[:n-1]
	}
	if len(out) < 3 {
		return nil
	}
	return out
}

// fromGeom rebuilds a region from clipper output.
func fromGeom(g geom.Polygonal) domain.Region {
	var rings []domain.Ring
	for _, poly := range g.Polygons() {
		for _, path := range poly {
			if r := fromGeomRing(path); r != nil {
				rings = append(rings, r)
			}
		}
	}
	return classifyRings(rings)
}

// classifyRings nests a flat pile of rings into polygons. Clipper output
// carries no reliable nesting or winding, so rings are classified by
// containment parity: a ring inside an even number of larger rings is an
// outer boundary, inside an odd number it is a hole of its smallest
// container.
func classifyRings(rings []domain.Ring) domain.Region {
	if len(rings) == 0 {
		return nil
	}

	order := make([]int, len(rings))
	areas := make([]float64, len(rings))
	for i, r := range rings {
		order[i] = i
		areas[i] = math.Abs(ringArea(r))
	}
	sort.Slice(order, func(a, b int) bool { return areas[order[a]] > areas[order[b]] })

	type node struct {
		outer domain.Ring
		holes []domain.Ring
	}
	var nodes []*node
	outerOf := make([]int, len(rings)) // ring index -> nodes index, -1 for holes

	for _, idx := range order {
		ring := rings[idx]
		depth := 0
		parent := -1
		for _, placed := range order {
			if placed == idx {
				break
			}
			if areas[placed] < areas[idx] {
				continue
			}
			if ringContains(rings[placed], ring) {
				depth++
				if outerOf[placed] >= 0 {
					parent = outerOf[placed]
				}
			}
		}
		if depth%2 == 0 {
			outerOf[idx] = len(nodes)
			nodes = append(nodes, &node{outer: ring})
		} else {
			outerOf[idx] = -1
			if parent >= 0 {
				nodes[parent].holes = append(nodes[parent].holes, ring)
			}
		}
	}

	region := make(domain.Region, 0, len(nodes))
	for _, n := range nodes {
		region = append(region, domain.Polygon{Outer: n.outer, Holes: n.holes})
	}
	return region
}

// ringArea is the signed planar shoelace area in square degrees.
func ringArea(r domain.Ring) float64 {
	if len(r) < 3 {
		return 0
	}
	sum := 0.0
	j := len(r) - 1
	for i := 0; i < len(r); i++ {
		sum += r[j].Lon*r[i].Lat - r[i].Lon*r[j].Lat
		j = i
	}
	return sum / 2
}

// pointInRing is an even-odd ray cast against the implicit closing edge.
func pointInRing(ring domain.Ring, p domain.Coordinate) bool {
	in := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		a, b := ring[i], ring[j]
		if (a.Lat > p.Lat) != (b.Lat > p.Lat) {
			x := a.Lon + (p.Lat-a.Lat)*(b.Lon-a.Lon)/(b.Lat-a.Lat)
			if p.Lon < x {
				in = !in
			}
		}
		j = i
	}
	return in
}

// ringContains reports whether candidate lies inside outer. Vertices
// shared with outer are skipped so tangent rings classify by their first
// distinct vertex.
func ringContains(outer, candidate domain.Ring) bool {
	shared := make(map[domain.Coordinate]bool, len(outer))
	for _, v := range outer {
		shared[v] = true
	}
	for _, v := range candidate {
		if shared[v] {
			continue
		}
		return pointInRing(outer, v)
	}
	return false
}

// validRegion reports whether every vertex is finite.
func validRegion(r domain.Region) bool {
	check := func(ring domain.Ring) bool {
		for _, c := range ring {
			if math.IsNaN(c.Lon) || math.IsNaN(c.Lat) || math.IsInf(c.Lon, 0) || math.IsInf(c.Lat, 0) {
				return false
			}
		}
		return true
	}
	for _, p := range r {
		if !check(p.Outer) {
			return false
		}
		for _, h := range p.Holes {
			if !check(h) {
				return false
			}
		}
	}
	return true
}
