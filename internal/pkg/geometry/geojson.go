package geometry

import (
	"fmt"

	geojson "github.com/paulmach/go.geojson"

	"github.com/Guymer/gft/internal/core/domain"
)

// FromGeoJSON converts a Polygon or MultiPolygon geometry into a region.
// Rings are reclassified by containment, so sloppy hole winding in the
// source data does not matter.
func FromGeoJSON(g *geojson.Geometry) (domain.Region, error) {
	if g == nil {
		return nil, fmt.Errorf("geojson: nil geometry")
	}
	var rings []domain.Ring
	addPolygon := func(poly [][][]float64) {
		for _, ring := range poly {
			r := make(domain.Ring, 0, len(ring))
			for _, pos := range ring {
				if len(pos) < 2 {
					continue
				}
				c := domain.Coordinate{Lon: pos[0], Lat: pos[1]}
				if n := len(r); n > 0 && r[n-1] == c {
					continue
				}
				r = append(r, c)
			}
			if n := len(r); n > 1 && r[0] == r[n-1] {
				r = r[:n-1]
			}
			if len(r) >= 3 {
				rings = append(rings, r)
			}
		}
	}

	switch g.Type {
	case geojson.GeometryPolygon:
		addPolygon(g.Polygon)
	case geojson.GeometryMultiPolygon:
		for _, poly := range g.MultiPolygon {
			addPolygon(poly)
		}
	default:
		return nil, fmt.Errorf("geojson: unsupported geometry %s", g.Type)
	}
	return classifyRings(rings), nil
}

// ToGeoJSON converts a region into a MultiPolygon geometry with closed
// rings.
func ToGeoJSON(region domain.Region) *geojson.Geometry {
	mp := make([][][][]float64, 0, len(region))
	for _, p := range region {
		poly := make([][][]float64, 0, 1+len(p.Holes))
		poly = append(poly, closedPositions(p.Outer))
		for _, h := range p.Holes {
			poly = append(poly, closedPositions(h))
		}
		mp = append(mp, poly)
	}
	return geojson.NewMultiPolygonGeometry(mp...)
}

func closedPositions(r domain.Ring) [][]float64 {
	out := make([][]float64, 0, len(r)+1)
	for _, c := range r {
		out = append(out, []float64{c.Lon, c.Lat})
	}
	if len(out) > 0 {
		out = append(out, out[0])
	}
	return out
}
