package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	geojson "github.com/paulmach/go.geojson"

	"github.com/Guymer/gft/internal/core/domain"
	"github.com/Guymer/gft/internal/pkg/geometry"
)

// DiskStore implements ports.FrameSink on the local filesystem. Output is
// laid out in three directory levels so runs sharing a barrier dataset or
// a sampling fan share those levels:
//
//	<root>/res=…_cons=…_tol=…/local=…_nAng=…_prec=…/freqLand=…_freqSimp=…_lon=…_lat=…/
//
// Each emitted step stores the front as region/istep=NNNNNN.wkb.gz and its
// boundary as limit/istep=NNNNNN.wkb.gz. The barrier the run clipped
// against is exported once per sampling level as allLands.wkb.gz.
type DiskStore struct {
	root   string
	cfg    domain.RunConfig
	runDir string
	logger *slog.Logger
}

// New creates the output directories for the run.
func New(root string, cfg domain.RunConfig, logger *slog.Logger) (*DiskStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &DiskStore{
		root:   root,
		cfg:    cfg,
		runDir: cfg.OutputDir(root),
		logger: logger,
	}
	for _, dir := range []string{
		filepath.Join(s.runDir, "region"),
		filepath.Join(s.runDir, "limit"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	return s, nil
}

// RunDir is the directory this run writes into.
func (s *DiskStore) RunDir() string { return s.runDir }

// EmitFrame stores the front and its boundary for one step.
func (s *DiskStore) EmitFrame(ctx context.Context, frame *domain.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	region, err := geometry.MarshalWKB(frame.Region)
	if err != nil {
		return fmt.Errorf("encode region: %w", err)
	}
	name := fmt.Sprintf("istep=%06d.wkb.gz", frame.Step)
	if err := writeGzip(filepath.Join(s.runDir, "region", name), region); err != nil {
		return err
	}

	limit, err := geometry.MarshalBoundaryWKB(frame.Region)
	if err != nil {
		return fmt.Errorf("encode boundary: %w", err)
	}
	if err := writeGzip(filepath.Join(s.runDir, "limit", name), limit); err != nil {
		return err
	}

	s.logger.Debug("frame stored",
		"step", frame.Step,
		"vertices", frame.Vertices,
		"dir", s.runDir,
	)
	return nil
}

// WriteBarrier exports the clipping barrier next to the runs that used it,
// as gzipped WKB plus a GeoJSON sibling for inspection.
func (s *DiskStore) WriteBarrier(ds *domain.LandDataset) error {
	if ds.Empty() {
		return nil
	}
	data, err := geometry.MarshalWKB(ds.Barrier)
	if err != nil {
		return fmt.Errorf("encode barrier: %w", err)
	}
	path := filepath.Join(s.root, s.cfg.DatasetDirName(), s.cfg.SamplingDirName(), "allLands.wkb.gz")
	if err := writeGzip(path, data); err != nil {
		return err
	}

	fc := geojson.NewFeatureCollection()
	fc.AddFeature(geojson.NewFeature(geometry.ToGeoJSON(ds.Barrier)))
	body, err := json.Marshal(fc)
	if err != nil {
		return err
	}
	sibling := strings.TrimSuffix(path, ".wkb.gz") + ".geojson"
	return writeAtomic(sibling, func(w io.Writer) error {
		_, err := w.Write(body)
		return err
	})
}

// LoadFrame reads one stored front back, for plotting finished runs.
func (s *DiskStore) LoadFrame(step int) (domain.Region, error) {
	name := fmt.Sprintf("istep=%06d.wkb.gz", step)
	f, err := os.Open(filepath.Join(s.runDir, "region", name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	return geometry.UnmarshalWKB(data)
}

// LatestStep scans the region directory for the highest stored step.
// Returns 0 when nothing has been stored yet.
func (s *DiskStore) LatestStep() (int, error) {
	entries, err := os.ReadDir(filepath.Join(s.runDir, "region"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	latest := 0
	for _, e := range entries {
		var step int
		if _, err := fmt.Sscanf(e.Name(), "istep=%d.wkb.gz", &step); err != nil {
			continue
		}
		if step > latest {
			latest = step
		}
	}
	return latest, nil
}

func writeGzip(path string, data []byte) error {
	return writeAtomic(path, func(w io.Writer) error {
		zw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
		if err != nil {
			return err
		}
		if _, err := zw.Write(data); err != nil {
			return err
		}
		return zw.Close()
	})
}

// writeAtomic writes through a temp file and renames it into place.
func writeAtomic(path string, fill func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
