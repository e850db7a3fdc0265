package geodesic

import (
	"github.com/golang/geo/s2"

	"github.com/Guymer/gft/internal/core/domain"
)

// GreatCircle returns n points spaced evenly along the great circle from a
// to b, endpoints included. It is used for route overlays on plots, where
// spherical interpolation is plenty accurate.
func GreatCircle(a, b domain.Coordinate, n int) []domain.Coordinate {
	if n < 2 {
		n = 2
	}
	pa := s2.PointFromLatLng(s2.LatLngFromDegrees(a.Lat, a.Lon))
	pb := s2.PointFromLatLng(s2.LatLngFromDegrees(b.Lat, b.Lon))

	out := make([]domain.Coordinate, n)
	for i := 0; i < n; i++ {
		f := float64(i) / float64(n-1)
		ll := s2.LatLngFromPoint(s2.Interpolate(f, pa, pb))
		out[i] = domain.Coordinate{
			Lon: domain.NormalizeLon(ll.Lng.Degrees()),
			Lat: ll.Lat.Degrees(),
		}
	}
	return out
}

// FarthestVertex returns the outer-ring vertex of region with the largest
// spherical distance from the given point, reporting false when the region
// has no vertices.
func FarthestVertex(from domain.Coordinate, region domain.Region) (domain.Coordinate, bool) {
	origin := s2.LatLngFromDegrees(from.Lat, from.Lon)
	var (
		best    domain.Coordinate
		bestArc = -1.0
		found   bool
	)
	for _, poly := range region {
		for _, c := range poly.Outer {
			arc := origin.Distance(s2.LatLngFromDegrees(c.Lat, c.Lon)).Radians()
			if arc > bestArc {
				bestArc, best, found = arc, c, true
			}
		}
	}
	return best, found
}
