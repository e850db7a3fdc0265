package geometry_test

import (
	"context"
	"testing"

	"github.com/Guymer/gft/internal/core/domain"
	"github.com/Guymer/gft/internal/pkg/geodesic"
	"github.com/Guymer/gft/internal/pkg/geometry"
)

func TestBufferGrowsPolygonOutward(t *testing.T) {
	region := domain.Region{{Outer: box(10, 10, 11, 11)}}
	sampler := geodesic.NewSampler(geodesic.NewRay(), 4)

	out, err := geometry.Buffer(context.Background(), region, 100000, sampler, 33)
	if err != nil {
		t.Fatalf("Buffer: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d polygons, want 1", len(out))
	}
	if got, in := planarArea(out), planarArea(region); got < 2*in {
		t.Errorf("buffered area %g should dwarf the input %g", got, in)
	}

	// 100 km is roughly 0.9 degrees; every original corner must now have
	// clearance on all sides.
	minLon, minLat := 180.0, 90.0
	maxLon, maxLat := -180.0, -90.0
	for _, c := range out[0].Outer {
		minLon = min(minLon, c.Lon)
		maxLon = max(maxLon, c.Lon)
		minLat = min(minLat, c.Lat)
		maxLat = max(maxLat, c.Lat)
	}
	if minLon > 9.2 || minLat > 9.2 || maxLon < 11.8 || maxLat < 11.8 {
		t.Errorf("buffer did not reach past the corners: lon [%g, %g], lat [%g, %g]",
			minLon, maxLon, minLat, maxLat)
	}
}

func TestBufferZeroDistanceIsACopy(t *testing.T) {
	region := domain.Region{{Outer: box(0, 0, 1, 1)}}
	sampler := geodesic.NewSampler(geodesic.NewRay(), 1)

	out, err := geometry.Buffer(context.Background(), region, 0, sampler, 33)
	if err != nil {
		t.Fatalf("Buffer: %v", err)
	}
	out[0].Outer[0].Lon = -99
	if region[0].Outer[0].Lon == -99 {
		t.Error("buffer with zero distance must not alias the input")
	}
}

func TestBufferHonoursCancellation(t *testing.T) {
	region := domain.Region{{Outer: box(0, 0, 1, 1)}}
	sampler := geodesic.NewSampler(geodesic.NewRay(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := geometry.Buffer(ctx, region, 50000, sampler, 33); err == nil {
		t.Fatal("Buffer ignored a cancelled context")
	}
}
