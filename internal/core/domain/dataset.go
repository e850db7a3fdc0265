package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Land dataset kinds.
const (
	// LandKindCountries selects named admin-0 countries as the barrier.
	LandKindCountries = "countries"
	// LandKindLand selects every land polygon as the barrier.
	LandKindLand = "land"
)

// LandRequest describes a barrier dataset to load or build.
type LandRequest struct {
	Kind           string   `json:"kind"`
	Resolution     string   `json:"resolution"`
	AvoidCountries []string `json:"avoid_countries,omitempty"`

	// BufferMetres grows each barrier polygon outward so a single front
	// step cannot leap across it. Zero disables buffering.
	BufferMetres float64 `json:"buffer_metres"`

	// UnionTolerance snaps vertices while unioning, in degrees.
	UnionTolerance float64 `json:"union_tolerance"`

	// SimplifyDeg thins the unioned barrier, in degrees.
	SimplifyDeg float64 `json:"simplify_deg"`

	// Origin and MaxRangeMetres, when set, clamp the dataset to the disc
	// reachable from the origin; polygons wholly outside it are skipped.
	Origin         *Coordinate `json:"origin,omitempty"`
	MaxRangeMetres float64     `json:"max_range_metres,omitempty"`
}

// Key is a stable cache key covering every field that changes the output.
func (r LandRequest) Key() string {
	avoid := append([]string(nil), r.AvoidCountries...)
	sort.Strings(avoid)
	var b strings.Builder
	fmt.Fprintf(&b, "land:%s:res=%s:buf=%.0f:tol=%.2e:simp=%.2e:avoid=%s",
		r.Kind, r.Resolution, r.BufferMetres, r.UnionTolerance, r.SimplifyDeg, strings.Join(avoid, ","))
	if r.Origin != nil {
		fmt.Fprintf(&b, ":local=%+011.6f,%+010.6f,%.0f", r.Origin.Lon, r.Origin.Lat, r.MaxRangeMetres)
	}
	return b.String()
}

// LandDataset is a prepared barrier: buffered, unioned and simplified land
// geometry the front must not cross.
type LandDataset struct {
	Barrier        Region   `json:"barrier"`
	Kind           string   `json:"kind"`
	Resolution     string   `json:"resolution"`
	AvoidCountries []string `json:"avoid_countries,omitempty"`
	BufferMetres   float64  `json:"buffer_metres"`
}

// Empty reports whether there is nothing to clip against.
func (d *LandDataset) Empty() bool {
	return d == nil || d.Barrier.Empty()
}
