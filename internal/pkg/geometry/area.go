package geometry

import (
	"math"

	"github.com/golang/geo/s2"

	"github.com/Guymer/gft/internal/core/domain"
)

const earthRadiusKm = 6371.0088

// AreaKm2 measures the spherical area of a region in square kilometres.
//
// interior must be a point inside the front, such as the start of the
// run. The lobe holding it is measured on the side of its boundary that
// contains it, so a front grown past a hemisphere still reports the right
// area. Every other ring takes the smaller side of the sphere, which is
// always right for holes and detached lobes.
func AreaKm2(region domain.Region, interior domain.Coordinate) float64 {
	pt := s2.PointFromLatLng(s2.LatLngFromDegrees(interior.Lat, interior.Lon))

	total := 0.0
	for _, poly := range region {
		var anchor *s2.Point
		if pointInRing(poly.Outer, interior) {
			anchor = &pt
		}
		outer := ringSteradians(poly.Outer, anchor)
		holes := 0.0
		for _, h := range poly.Holes {
			holes += ringSteradians(h, nil)
		}
		if a := outer - holes; a > 0 {
			total += a
		}
	}
	return total * earthRadiusKm * earthRadiusKm
}

// ringSteradians returns the solid angle bounded by the ring. With an
// anchor point it returns the side containing the anchor, otherwise the
// smaller side.
func ringSteradians(ring domain.Ring, anchor *s2.Point) float64 {
	loop := loopFromRing(ring)
	if loop == nil {
		return 0
	}
	if anchor != nil {
		if loop.ContainsPoint(*anchor) {
			return loop.Area()
		}
		return 4*math.Pi - loop.Area()
	}
	loop.Normalize()
	return loop.Area()
}

func loopFromRing(ring domain.Ring) *s2.Loop {
	pts := ringPoints(ring)
	if len(pts) < 3 {
		return nil
	}
	return s2.LoopFromPoints(pts)
}

// ringPoints converts to unit sphere points, dropping the duplicates that
// chart closure corners at a pole collapse into.
func ringPoints(ring domain.Ring) []s2.Point {
	pts := make([]s2.Point, 0, len(ring))
	for _, c := range ring {
		p := s2.PointFromLatLng(s2.LatLngFromDegrees(c.Lat, c.Lon))
		if n := len(pts); n > 0 && pts[n-1] == p {
			continue
		}
		pts = append(pts, p)
	}
	if n := len(pts); n > 1 && pts[0] == pts[n-1] {
		pts = pts[:n-1]
	}
	return pts
}
