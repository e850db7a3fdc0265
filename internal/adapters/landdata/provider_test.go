package landdata_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Guymer/gft/internal/adapters/landdata"
	"github.com/Guymer/gft/internal/core/domain"
)

// countriesFixture is a minimal admin-0 collection: two square countries
// far enough apart that their union keeps two polygons.
const countriesFixture = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"ADMIN": "Atlantis"},
      "geometry": {"type": "Polygon", "coordinates": [[[10,10],[11,10],[11,11],[10,11],[10,10]]]}
    },
    {
      "type": "Feature",
      "properties": {"ADMIN": "Lemuria"},
      "geometry": {"type": "Polygon", "coordinates": [[[-40,-5],[-39,-5],[-39,-4],[-40,-4],[-40,-5]]]}
    }
  ]
}`

func newTestProvider(t *testing.T, dir string, hits *atomic.Int32) (*landdata.Provider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		_, _ = w.Write([]byte(countriesFixture))
	}))
	t.Cleanup(srv.Close)

	p := landdata.NewProvider(dir, nil)
	p.BaseURL = srv.URL
	p.Client = srv.Client()
	return p, srv
}

func TestLoadBuildsAndCachesBarrier(t *testing.T) {
	dir := t.TempDir()
	var hits atomic.Int32
	p, srv := newTestProvider(t, dir, &hits)

	req := domain.LandRequest{
		Kind:           domain.LandKindCountries,
		Resolution:     "110m",
		AvoidCountries: []string{"Atlantis"},
	}
	ds, err := p.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.Barrier.Empty() {
		t.Fatal("expected a barrier polygon")
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected one download, got %d", got)
	}
	wantVertices := ds.Barrier.VertexCount()

	geojsons, err := filepath.Glob(filepath.Join(dir, "datasets", "*.geojson"))
	if err != nil || len(geojsons) != 1 {
		t.Errorf("expected one exported barrier geojson, got %v (err %v)", geojsons, err)
	}

	// A second load must come from the cache. Closing the server makes
	// any network attempt fail the test loudly.
	srv.Close()
	fresh := landdata.NewProvider(dir, nil)
	fresh.BaseURL = srv.URL

	ds2, err := fresh.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("cached Load: %v", err)
	}
	if got := ds2.Barrier.VertexCount(); got != wantVertices {
		t.Errorf("cache changed the barrier: %d vertices, want %d", got, wantVertices)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("cached load hit the network, downloads %d", got)
	}
}

func TestLoadLandKindTakesAllShapes(t *testing.T) {
	p, _ := newTestProvider(t, t.TempDir(), nil)

	ds, err := p.Load(context.Background(), domain.LandRequest{
		Kind:       domain.LandKindLand,
		Resolution: "110m",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ds.Barrier) != 2 {
		t.Errorf("expected both squares in the barrier, got %d polygons", len(ds.Barrier))
	}
}

func TestLoadRejectsUnknownCountry(t *testing.T) {
	p, _ := newTestProvider(t, t.TempDir(), nil)

	_, err := p.Load(context.Background(), domain.LandRequest{
		Kind:           domain.LandKindCountries,
		Resolution:     "110m",
		AvoidCountries: []string{"Narnia"},
	})
	var perr *domain.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected a provider error, got %v", err)
	}
	if !strings.Contains(strings.ToLower(err.Error()), "narnia") {
		t.Errorf("error should name the missing country: %v", err)
	}
}

func TestLoadCountriesWithoutAvoidList(t *testing.T) {
	var hits atomic.Int32
	p, _ := newTestProvider(t, t.TempDir(), &hits)

	ds, err := p.Load(context.Background(), domain.LandRequest{
		Kind:       domain.LandKindCountries,
		Resolution: "110m",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ds.Empty() {
		t.Error("no avoided countries should mean an empty barrier")
	}
	if hits.Load() != 0 {
		t.Errorf("nothing should be downloaded, got %d requests", hits.Load())
	}
}

func TestLoadClampsToReachableDisc(t *testing.T) {
	p, _ := newTestProvider(t, t.TempDir(), nil)

	// Range from the north pole to a disc that cannot reach either square.
	origin := domain.Coordinate{Lon: 0, Lat: 80}
	ds, err := p.Load(context.Background(), domain.LandRequest{
		Kind:           domain.LandKindCountries,
		Resolution:     "110m",
		AvoidCountries: []string{"Atlantis", "Lemuria"},
		Origin:         &origin,
		MaxRangeMetres: 100_000,
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ds.Barrier.Empty() {
		t.Errorf("distant shapes should be clamped away, got %d polygons", len(ds.Barrier))
	}
}
