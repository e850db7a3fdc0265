package geometry

import (
	"context"
	"math"

	"github.com/Guymer/gft/internal/core/domain"
	"github.com/Guymer/gft/internal/pkg/geodesic"
)

// Buffer grows every polygon of the region outward by distMetres along
// the ellipsoid. The result is the union of the region itself with
// geodesic discs of radius distMetres centred on each ring vertex and on
// edge points subsampled so neighbouring discs overlap. nAng sets the
// fidelity of each disc.
//
// Growing a barrier this way guarantees a front stepping distMetres at a
// time cannot leap across it.
func Buffer(ctx context.Context, region domain.Region, distMetres float64, sampler *geodesic.Sampler, nAng int) (domain.Region, error) {
	if region.Empty() {
		return nil, &domain.GeometryError{Op: "buffer", Err: errEmptyResult}
	}
	if distMetres <= 0 {
		return region.Clone(), nil
	}

	acc := toGeom(region)
	var rings []domain.Ring
	for _, poly := range region {
		rings = append(rings, poly.Outer)
		rings = append(rings, poly.Holes...)
	}

	for _, ring := range rings {
		for _, center := range bufferCenters(ring, distMetres) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			disc, err := sampler.Sample(ctx, center, distMetres, nAng)
			if err != nil {
				return nil, err
			}
			discRegion, err := NormalizeRing(disc, center)
			if err != nil {
				return nil, err
			}
			next, err := union(acc, toGeom(discRegion))
			if err != nil {
				return nil, &domain.GeometryError{Op: "buffer", Err: err}
			}
			acc = next
		}
	}

	out := fromGeom(acc)
	if out.Empty() {
		return nil, &domain.GeometryError{Op: "buffer", Err: errEmptyResult}
	}
	return out, nil
}

// bufferCenters returns the ring vertices plus points interpolated along
// long edges, spaced at most half the buffer distance apart.
func bufferCenters(ring domain.Ring, distMetres float64) []domain.Coordinate {
	spacingDeg := 0.5 * distMetres / domain.MetresPerDegree
	centers := make([]domain.Coordinate, 0, len(ring))

	for i, a := range ring {
		centers = append(centers, a)

		b := ring[(i+1)%len(ring)]
		dLon := wrapDelta(b.Lon - a.Lon)
		dLat := b.Lat - a.Lat
		edgeDeg := math.Hypot(dLon*math.Cos((a.Lat+b.Lat)/2*math.Pi/180), dLat)
		extra := int(edgeDeg / spacingDeg)
		for j := 1; j <= extra; j++ {
			f := float64(j) / float64(extra+1)
			centers = append(centers, domain.Coordinate{
				Lon: domain.NormalizeLon(a.Lon + f*dLon),
				Lat: a.Lat + f*dLat,
			})
		}
	}
	return centers
}
