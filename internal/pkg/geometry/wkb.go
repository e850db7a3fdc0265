package geometry

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/wkb"

	"github.com/Guymer/gft/internal/core/domain"
)

// MarshalWKB encodes a region as a well-known-binary MultiPolygon with
// closed rings, the shape other GIS tooling expects.
func MarshalWKB(region domain.Region) ([]byte, error) {
	mp := make(geom.MultiPolygon, 0, len(region))
	for _, p := range region {
		mp = append(mp, toGeomPolygon(p))
	}
	return wkb.Encode(mp, wkb.NDR)
}

// UnmarshalWKB decodes a Polygon or MultiPolygon back into a region.
func UnmarshalWKB(data []byte) (domain.Region, error) {
	g, err := wkb.Decode(data)
	if err != nil {
		return nil, err
	}
	switch t := g.(type) {
	case geom.Polygon:
		return fromGeom(t), nil
	case geom.MultiPolygon:
		return fromGeom(t), nil
	default:
		return nil, fmt.Errorf("wkb holds %T, want a polygonal geometry", g)
	}
}

// MarshalBoundaryWKB encodes just the region boundary as a MultiLineString
// of closed rings.
func MarshalBoundaryWKB(region domain.Region) ([]byte, error) {
	var mls geom.MultiLineString
	appendRing := func(r domain.Ring) {
		if len(r) < 3 {
			return
		}
		ls := make(geom.LineString, 0, len(r)+1)
		for _, c := range r {
			ls = append(ls, geom.Point{X: c.Lon, Y: c.Lat})
		}
		ls = append(ls, ls[0])
		mls = append(mls, ls)
	}
	for _, p := range region {
		appendRing(p.Outer)
		for _, h := range p.Holes {
			appendRing(h)
		}
	}
	return wkb.Encode(mls, wkb.NDR)
}
