package domain

import "math"

// Coordinate is a geographic position in degrees on the WGS84 ellipsoid.
// Longitude is kept in (-180, 180] and latitude in [-90, 90].
type Coordinate struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// NormalizeLon wraps a longitude into (-180, 180].
func NormalizeLon(lon float64) float64 {
	lon = math.Mod(lon, 360)
	switch {
	case lon > 180:
		lon -= 360
	case lon <= -180:
		lon += 360
	}
	return lon
}

// NormalizeBearing wraps a bearing into [0, 360) degrees clockwise from
// true north.
func NormalizeBearing(b float64) float64 {
	b = math.Mod(b, 360)
	if b < 0 {
		b += 360
	}
	return b
}

// Valid reports whether the coordinate holds finite values inside the
// geographic domain.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) {
		return false
	}
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) {
		return false
	}
	return c.Lon > -180 && c.Lon <= 180 && c.Lat >= -90 && c.Lat <= 90
}

// Ring is an ordered, closed sequence of vertices. The closing edge from
// the last vertex back to the first is implicit; the first vertex is never
// repeated at the end.
type Ring []Coordinate

// Clone returns an independent copy of the ring.
func (r Ring) Clone() Ring {
	if r == nil {
		return nil
	}
	out := make(Ring, len(r))
	copy(out, r)
	return out
}

// Polygon is a single planar face: one outer ring and zero or more holes
// fully contained by it.
type Polygon struct {
	Outer Ring   `json:"outer"`
	Holes []Ring `json:"holes,omitempty"`
}

// VertexCount returns the total number of vertices across all rings.
func (p Polygon) VertexCount() int {
	n := len(p.Outer)
	for _, h := range p.Holes {
		n += len(h)
	}
	return n
}

// Clone returns an independent copy of the polygon.
func (p Polygon) Clone() Polygon {
	out := Polygon{Outer: p.Outer.Clone()}
	if len(p.Holes) > 0 {
		out.Holes = make([]Ring, len(p.Holes))
		for i, h := range p.Holes {
			out.Holes[i] = h.Clone()
		}
	}
	return out
}

// Region is a set of disjoint polygons. A freshly sampled front is a single
// polygon; clipping against land may split it into several lobes.
type Region []Polygon

// VertexCount returns the total number of vertices across all polygons.
func (r Region) VertexCount() int {
	n := 0
	for _, p := range r {
		n += p.VertexCount()
	}
	return n
}

// Clone returns an independent deep copy of the region.
func (r Region) Clone() Region {
	if r == nil {
		return nil
	}
	out := make(Region, len(r))
	for i, p := range r {
		out[i] = p.Clone()
	}
	return out
}

// Empty reports whether the region contains no usable polygon.
func (r Region) Empty() bool {
	for _, p := range r {
		if len(p.Outer) >= 3 {
			return false
		}
	}
	return true
}
