package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Guymer/gft/internal/adapters/store"
	"github.com/Guymer/gft/internal/core/domain"
)

func testRunConfig() domain.RunConfig {
	cfg := domain.RunConfig{Lon: -1.9, Lat: 50.5}
	cfg.ApplyDefaults()
	return cfg
}

func testRegion() domain.Region {
	return domain.Region{{
		Outer: domain.Ring{
			{Lon: -2.0, Lat: 50.0},
			{Lon: -1.0, Lat: 50.0},
			{Lon: -1.5, Lat: 51.0},
		},
	}}
}

func TestDiskStoreFrameRoundTrip(t *testing.T) {
	cfg := testRunConfig()
	s, err := store.New(t.TempDir(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	frame := &domain.Frame{
		Step:      3,
		Region:    testRegion(),
		Vertices:  3,
		EmittedAt: time.Now(),
	}
	if err := s.EmitFrame(context.Background(), frame); err != nil {
		t.Fatalf("EmitFrame: %v", err)
	}

	for _, sub := range []string{"region", "limit"} {
		path := filepath.Join(s.RunDir(), sub, "istep=000003.wkb.gz")
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s snapshot: %v", sub, err)
		}
	}

	got, err := s.LoadFrame(3)
	if err != nil {
		t.Fatalf("LoadFrame: %v", err)
	}
	if len(got) != 1 || len(got[0].Outer) != 3 {
		t.Errorf("round trip changed the region: %+v", got)
	}

	latest, err := s.LatestStep()
	if err != nil {
		t.Fatalf("LatestStep: %v", err)
	}
	if latest != 3 {
		t.Errorf("expected latest step 3, got %d", latest)
	}
}

func TestDiskStoreLatestStepEmpty(t *testing.T) {
	s, err := store.New(t.TempDir(), testRunConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	latest, err := s.LatestStep()
	if err != nil {
		t.Fatalf("LatestStep: %v", err)
	}
	if latest != 0 {
		t.Errorf("expected no stored steps, got %d", latest)
	}
}

func TestDiskStoreBarrierExport(t *testing.T) {
	root := t.TempDir()
	cfg := testRunConfig()
	s, err := store.New(root, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ds := &domain.LandDataset{
		Barrier:    testRegion(),
		Kind:       domain.LandKindCountries,
		Resolution: cfg.NEResolution,
	}
	if err := s.WriteBarrier(ds); err != nil {
		t.Fatalf("WriteBarrier: %v", err)
	}

	base := filepath.Join(root, cfg.DatasetDirName(), cfg.SamplingDirName())
	for _, name := range []string{"allLands.wkb.gz", "allLands.geojson"} {
		if _, err := os.Stat(filepath.Join(base, name)); err != nil {
			t.Errorf("expected barrier export %s: %v", name, err)
		}
	}
}
