package geometry

import (
	"math"

	"github.com/ctessum/geom"

	"github.com/Guymer/gft/internal/core/domain"
)

// NormalizeRing lifts a ring of sampled geodesic endpoints onto the
// [-180, 180] chart. Longitudes are unwrapped so the path is continuous;
// a ring that winds once around the globe is closed across the pole it
// encloses; anything left outside the chart is cut at the antimeridian
// and shifted back in, possibly as several polygons.
//
// interior must be a point known to lie inside the ring, such as the
// start of the run. It picks the pole when the ring encircles one.
func NormalizeRing(ring domain.Ring, interior domain.Coordinate) (domain.Region, error) {
	if len(ring) < 3 {
		return nil, &domain.GeometryError{Op: "normalize", Err: errTooFewVertices}
	}

	lons := make([]float64, len(ring))
	lons[0] = ring[0].Lon
	for i := 1; i < len(ring); i++ {
		lons[i] = lons[i-1] + wrapDelta(ring[i].Lon-ring[i-1].Lon)
	}
	closure := wrapDelta(ring[0].Lon - ring[len(ring)-1].Lon)
	winding := math.Round((lons[len(ring)-1] + closure - lons[0]) / 360)

	path := make(domain.Ring, len(ring), len(ring)+2)
	for i, c := range ring {
		path[i] = domain.Coordinate{Lon: lons[i], Lat: c.Lat}
	}

	switch {
	case winding == 0:
	case math.Abs(winding) == 1:
		pole, ok := enclosedPole(path, closure, interior)
		if !ok {
			return nil, &domain.GeometryError{Op: "normalize", Err: errNoEnclosedPole}
		}
		path = append(path,
			domain.Coordinate{Lon: lons[len(ring)-1] + closure, Lat: pole},
			domain.Coordinate{Lon: lons[0], Lat: pole},
		)
	default:
		return nil, &domain.GeometryError{Op: "normalize", Err: errMultipleWindings}
	}

	var (
		region domain.Region
		err    error
	)
	minLon, maxLon := lonRange(path)
	if minLon >= -180 && maxLon <= 180 {
		region = domain.Region{{Outer: path}}
	} else if region, err = splitAtAntimeridian(path, minLon, maxLon); err != nil {
		return nil, err
	}

	// A front grown past the hemisphere unwraps to the cap around its
	// antipode: the charted rings then bound the unreachable side. Flip
	// to the chart complement so the region keeps holding the interior.
	if !regionContainsInterior(region, interior) {
		region, err = chartComplement(region)
		if err != nil {
			return nil, err
		}
		if !regionContainsInterior(region, interior) {
			return nil, &domain.GeometryError{Op: "normalize", Err: errInteriorLost}
		}
	}
	return region, nil
}

// chartComplement subtracts the region from the whole chart window.
func chartComplement(region domain.Region) (domain.Region, error) {
	world := geom.Polygon{{
		{X: -180, Y: -90},
		{X: 180, Y: -90},
		{X: 180, Y: 90},
		{X: -180, Y: 90},
		{X: -180, Y: -90},
	}}
	flipped, err := difference(world, toGeom(region))
	if err != nil {
		return nil, &domain.GeometryError{Op: "normalize", Err: err}
	}
	out := fromGeom(flipped)
	if out.Empty() {
		return nil, &domain.GeometryError{Op: "normalize", Err: errEmptyResult}
	}
	return out, nil
}

// regionContainsInterior tests chart containment of the interior point,
// nudging it off exact edges and poles.
func regionContainsInterior(region domain.Region, interior domain.Coordinate) bool {
	lat := interior.Lat
	if lat >= 90 {
		lat = 90 - 1e-7
	} else if lat <= -90 {
		lat = -90 + 1e-7
	}
	for _, dLon := range []float64{0, 1e-7, -1e-7} {
		pt := domain.Coordinate{Lon: domain.NormalizeLon(interior.Lon + dLon), Lat: lat}
		for _, poly := range region {
			if !pointInRing(poly.Outer, pt) {
				continue
			}
			inHole := false
			for _, h := range poly.Holes {
				if pointInRing(h, pt) {
					inHole = true
					break
				}
			}
			if !inHole {
				return true
			}
		}
	}
	return false
}

// splitAtAntimeridian intersects an unwrapped polygon with each copy of
// the chart window it overlaps and shifts the pieces back in.
func splitAtAntimeridian(path domain.Ring, minLon, maxLon float64) (domain.Region, error) {
	poly := geom.Polygon{toGeomRing(path)}

	kmin := int(math.Floor((minLon + 180) / 360))
	kmax := int(math.Floor((maxLon + 180) / 360))

	var region domain.Region
	for k := kmin; k <= kmax; k++ {
		off := 360 * float64(k)
		window := geom.Polygon{{
			{X: -180 + off, Y: -90},
			{X: 180 + off, Y: -90},
			{X: 180 + off, Y: 90},
			{X: -180 + off, Y: 90},
			{X: -180 + off, Y: -90},
		}}
		piece, err := intersection(poly, window)
		if err != nil {
			return nil, &domain.GeometryError{Op: "normalize", Err: err}
		}
		for i := range piece {
			for j := range piece[i] {
				piece[i][j].X -= off
			}
		}
		region = append(region, fromGeom(piece)...)
	}
	if region.Empty() {
		return nil, &domain.GeometryError{Op: "normalize", Err: errEmptyResult}
	}
	return region, nil
}

// enclosedPole picks the pole inside the ring by testing which polar
// closure contains the interior point. An interior sitting exactly on a
// pole is nudged off it so the parity test never lands on the closure
// edge.
func enclosedPole(path domain.Ring, closure float64, interior domain.Coordinate) (float64, bool) {
	if interior.Lat >= 90 {
		interior.Lat = 90 - 1e-7
	} else if interior.Lat <= -90 {
		interior.Lat = -90 + 1e-7
	}
	minLon, maxLon := lonRange(path)
	last := path[len(path)-1]

	for _, pole := range []float64{90, -90} {
		candidate := append(path.Clone(),
			domain.Coordinate{Lon: last.Lon + closure, Lat: pole},
			domain.Coordinate{Lon: path[0].Lon, Lat: pole},
		)
		kmin := int(math.Floor((minLon - interior.Lon) / 360))
		kmax := int(math.Ceil((maxLon - interior.Lon) / 360))
		for k := kmin; k <= kmax; k++ {
			pt := domain.Coordinate{Lon: interior.Lon + 360*float64(k), Lat: interior.Lat}
			if pointInRing(candidate, pt) {
				return pole, true
			}
		}
	}
	return 0, false
}

// wrapDelta maps a longitude difference into (-180, 180].
func wrapDelta(d float64) float64 {
	d = math.Mod(d, 360)
	switch {
	case d > 180:
		d -= 360
	case d <= -180:
		d += 360
	}
	return d
}

func lonRange(path domain.Ring) (minLon, maxLon float64) {
	minLon, maxLon = path[0].Lon, path[0].Lon
	for _, c := range path[1:] {
		minLon = math.Min(minLon, c.Lon)
		maxLon = math.Max(maxLon, c.Lon)
	}
	return minLon, maxLon
}
