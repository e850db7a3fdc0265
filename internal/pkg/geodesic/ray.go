// Package geodesic advances positions along the WGS84 ellipsoid and fans
// closed rings of equidistant points around a start coordinate.
package geodesic

import (
	"math"

	"github.com/StefanSchroeder/Golang-Ellipsoid/ellipsoid"

	"github.com/Guymer/gft/internal/core/domain"
)

// MaxDistanceMetres is the longest geodesic the direct solver handles
// reliably; just short of the antipodal distance, where Vincenty's
// iteration stops converging.
const MaxDistanceMetres = 19970326.0

// Ray evaluates direct and inverse geodesics on WGS84. The zero expense
// of its methods makes a single Ray safe for concurrent use.
type Ray struct {
	geo ellipsoid.Ellipsoid
}

// NewRay returns a Ray on the WGS84 ellipsoid working in metres and
// degrees, with longitudes in [-180, 180] and bearings in [0, 360).
func NewRay() *Ray {
	return &Ray{
		geo: ellipsoid.Init("WGS84", ellipsoid.Degrees, ellipsoid.Meter,
			ellipsoid.LongitudeIsSymmetric, ellipsoid.BearingNotSymmetric),
	}
}

// Advance returns the point distanceMetres along the geodesic leaving
// start at the given bearing, in degrees clockwise from true north.
func (r *Ray) Advance(start domain.Coordinate, bearing, distanceMetres float64) (domain.Coordinate, error) {
	if !start.Valid() {
		return domain.Coordinate{}, &domain.NumericDomainError{
			Op:     "advance",
			Detail: "start point is outside the geographic domain",
		}
	}
	if math.IsNaN(distanceMetres) || math.IsInf(distanceMetres, 0) || distanceMetres < 0 {
		return domain.Coordinate{}, &domain.NumericDomainError{
			Op:     "advance",
			Detail: "distance must be a finite non-negative number of metres",
		}
	}
	if distanceMetres > MaxDistanceMetres {
		return domain.Coordinate{}, &domain.NumericDomainError{
			Op:     "advance",
			Detail: "distance exceeds the antipodal limit",
		}
	}
	lat, lon := r.geo.At(start.Lat, start.Lon, distanceMetres, domain.NormalizeBearing(bearing))
	return domain.Coordinate{Lon: domain.NormalizeLon(lon), Lat: lat}, nil
}

// Inverse returns the geodesic distance in metres and the initial bearing
// from a to b.
func (r *Ray) Inverse(a, b domain.Coordinate) (distanceMetres, bearing float64, err error) {
	if !a.Valid() || !b.Valid() {
		return 0, 0, &domain.NumericDomainError{
			Op:     "inverse",
			Detail: "both points must be inside the geographic domain",
		}
	}
	distanceMetres, bearing = r.geo.To(a.Lat, a.Lon, b.Lat, b.Lon)
	return distanceMetres, bearing, nil
}
