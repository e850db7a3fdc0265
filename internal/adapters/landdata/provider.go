// Package landdata builds barrier datasets from Natural Earth vector data.
//
// Countries are matched by name against the admin-0 table, buffered
// outward so a front step cannot leap across them, unioned and thinned.
// Every stage is cached on disk: raw downloads, per-shape buffered
// geometry and the finished barrier, so repeat runs skip the network and
// most of the geometry work.
package landdata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	geojson "github.com/paulmach/go.geojson"

	"github.com/Guymer/gft/internal/core/domain"
	"github.com/Guymer/gft/internal/pkg/geodesic"
	"github.com/Guymer/gft/internal/pkg/geometry"
	"github.com/Guymer/gft/internal/pkg/metrics"
)

const (
	defaultBaseURL = "https://raw.githubusercontent.com/nvkelso/natural-earth-vector/master/geojson"

	// bufferSamples is the bearing count for the discs swept along shape
	// boundaries while buffering.
	bufferSamples = 33

	// clampSamples is the bearing count for the reachability disc used to
	// clamp the dataset in local-only mode.
	clampSamples = 181
)

// Provider loads Natural Earth vector data and prepares it as a barrier.
type Provider struct {
	BaseURL  string
	CacheDir string
	Client   *http.Client
	Logger   *slog.Logger

	sampler *geodesic.Sampler
}

// NewProvider builds a provider caching under cacheDir.
func NewProvider(cacheDir string, logger *slog.Logger) *Provider {
	if cacheDir == "" {
		cacheDir = "cache"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		BaseURL:  defaultBaseURL,
		CacheDir: cacheDir,
		Client:   &http.Client{Timeout: 120 * time.Second},
		Logger:   logger,
		sampler:  geodesic.NewSampler(geodesic.NewRay(), runtime.GOMAXPROCS(0)),
	}
}

// Load returns the prepared barrier for the request, building and caching
// it on first use.
func (p *Provider) Load(ctx context.Context, req domain.LandRequest) (*domain.LandDataset, error) {
	ds := &domain.LandDataset{
		Kind:           req.Kind,
		Resolution:     req.Resolution,
		AvoidCountries: append([]string(nil), req.AvoidCountries...),
		BufferMetres:   req.BufferMetres,
	}
	if req.Kind == domain.LandKindCountries && len(req.AvoidCountries) == 0 {
		return ds, nil
	}

	if barrier, ok := p.loadBarrier(req); ok {
		ds.Barrier = barrier
		return ds, nil
	}

	barrier, err := p.build(ctx, req)
	if err != nil {
		return nil, err
	}
	ds.Barrier = barrier
	p.storeBarrier(req, barrier)
	return ds, nil
}

func (p *Provider) build(ctx context.Context, req domain.LandRequest) (domain.Region, error) {
	fc, err := p.collection(ctx, req)
	if err != nil {
		return nil, err
	}
	shapes, err := selectShapes(fc, req)
	if err != nil {
		return nil, err
	}

	clamp, err := p.reachDisc(ctx, req)
	if err != nil {
		return nil, err
	}

	var barrier domain.Region
	kept := 0
	for _, shape := range shapes {
		region := shape.region
		if clamp != nil {
			overlap, err := geometry.Intersection(region, clamp)
			if err != nil {
				return nil, fmt.Errorf("clamp %s: %w", shape.name, err)
			}
			if overlap.Empty() {
				continue
			}
			region = overlap
		}
		buffered, err := p.buffered(ctx, req, shape.name, region)
		if err != nil {
			return nil, fmt.Errorf("buffer %s: %w", shape.name, err)
		}
		barrier, err = geometry.Union(barrier, buffered)
		if err != nil {
			return nil, fmt.Errorf("union %s: %w", shape.name, err)
		}
		kept++
	}
	if barrier.Empty() {
		p.Logger.Info("no barrier shapes within reach", "kind", req.Kind)
		return nil, nil
	}

	barrier = geometry.DropHoles(barrier)
	var simp geometry.Simplifier
	if req.UnionTolerance > 0 {
		if out, err := simp.Simplify(barrier, req.UnionTolerance); err == nil {
			barrier = out
		}
	}
	if req.SimplifyDeg > 0 {
		out, err := simp.Simplify(barrier, req.SimplifyDeg)
		if err != nil {
			p.Logger.Warn("barrier simplification failed, keeping the dense geometry", "error", err)
		} else {
			barrier = out
		}
	}

	p.Logger.Info("barrier built",
		"kind", req.Kind,
		"resolution", req.Resolution,
		"shapes", kept,
		"polygons", len(barrier),
		"vertices", barrier.VertexCount())
	return barrier, nil
}

// reachDisc builds the clamping disc for local-only requests, nil when the
// whole globe is in play.
func (p *Provider) reachDisc(ctx context.Context, req domain.LandRequest) (domain.Region, error) {
	if req.Origin == nil || req.MaxRangeMetres <= 0 {
		return nil, nil
	}
	if req.MaxRangeMetres >= geodesic.MaxDistanceMetres {
		return nil, nil
	}
	ring, err := p.sampler.Sample(ctx, *req.Origin, req.MaxRangeMetres, clampSamples)
	if err != nil {
		return nil, fmt.Errorf("reachability disc: %w", err)
	}
	disc, err := geometry.NormalizeRing(ring, *req.Origin)
	if err != nil {
		return nil, fmt.Errorf("reachability disc: %w", err)
	}
	return disc, nil
}

// buffered grows a shape by the request's buffer, caching the result. The
// cache key covers the shape geometry itself, so clamped shapes do not
// collide with whole ones.
func (p *Provider) buffered(ctx context.Context, req domain.LandRequest, name string, region domain.Region) (domain.Region, error) {
	if req.BufferMetres <= 0 {
		return region, nil
	}

	raw, err := geometry.MarshalWKB(region)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(raw)
	path := filepath.Join(p.CacheDir, "buffered", req.Resolution,
		fmt.Sprintf("%s_buf=%.0f_%s.wkb", slugify(name), req.BufferMetres, hex.EncodeToString(sum[:6])))

	if data, err := os.ReadFile(path); err == nil {
		if cached, err := geometry.UnmarshalWKB(data); err == nil {
			return cached, nil
		}
		p.Logger.Warn("discarding unreadable buffered shape", "path", path)
	}

	started := time.Now()
	buffered, err := geometry.Buffer(ctx, region, req.BufferMetres, p.sampler, bufferSamples)
	if err != nil {
		return nil, err
	}
	p.Logger.Debug("shape buffered",
		"name", name,
		"vertices", buffered.VertexCount(),
		"took", time.Since(started))

	if data, err := geometry.MarshalWKB(buffered); err == nil {
		if err := writeAtomic(path, func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}); err != nil {
			p.Logger.Warn("buffered shape cache write failed", "path", path, "error", err)
		}
	}
	return buffered, nil
}

// namedShape pairs a barrier shape with the name used for logs and cache
// files.
type namedShape struct {
	name   string
	region domain.Region
}

func selectShapes(fc *geojson.FeatureCollection, req domain.LandRequest) ([]namedShape, error) {
	if req.Kind == domain.LandKindLand {
		shapes := make([]namedShape, 0, len(fc.Features))
		for i, f := range fc.Features {
			region, err := geometry.FromGeoJSON(f.Geometry)
			if err != nil || region.Empty() {
				continue
			}
			shapes = append(shapes, namedShape{name: fmt.Sprintf("land_%03d", i), region: region})
		}
		return shapes, nil
	}

	wanted := make(map[string]bool, len(req.AvoidCountries))
	for _, name := range req.AvoidCountries {
		wanted[strings.ToLower(name)] = false
	}
	var shapes []namedShape
	for _, f := range fc.Features {
		name, ok := matchCountry(f, wanted)
		if !ok {
			continue
		}
		region, err := geometry.FromGeoJSON(f.Geometry)
		if err != nil {
			return nil, &domain.ProviderError{
				Source: "naturalearth",
				Err:    fmt.Errorf("country %q: %w", name, err),
			}
		}
		if region.Empty() {
			continue
		}
		shapes = append(shapes, namedShape{name: name, region: region})
	}

	var missing []string
	for name, found := range wanted {
		if !found {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.ProviderError{
			Source: "naturalearth",
			Err:    fmt.Errorf("unknown countries: %s", strings.Join(missing, ", ")),
		}
	}
	return shapes, nil
}

// matchCountry checks a feature's names against the wanted set and marks
// the matched entry.
func matchCountry(f *geojson.Feature, wanted map[string]bool) (string, bool) {
	for _, key := range []string{"ADMIN", "NAME", "NAME_LONG", "SOVEREIGNT"} {
		name, err := f.PropertyString(key)
		if err != nil || name == "" {
			continue
		}
		if _, ok := wanted[strings.ToLower(name)]; ok {
			wanted[strings.ToLower(name)] = true
			return name, true
		}
	}
	return "", false
}

// collection returns the parsed feature collection for the request,
// downloading the file on first use.
func (p *Provider) collection(ctx context.Context, req domain.LandRequest) (*geojson.FeatureCollection, error) {
	filename := datasetFile(req)
	path := filepath.Join(p.CacheDir, "downloads", filename)

	if _, err := os.Stat(path); err != nil {
		if err := p.download(ctx, filename, path); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ProviderError{Source: "naturalearth", Err: err}
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, &domain.ProviderError{
			Source: "naturalearth",
			Err:    fmt.Errorf("parse %s: %w", filename, err),
		}
	}
	return fc, nil
}

func (p *Provider) download(ctx context.Context, filename, path string) error {
	url := strings.TrimSuffix(p.BaseURL, "/") + "/" + filename
	p.Logger.Info("downloading shape data", "url", url)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &domain.ProviderError{Source: "naturalearth", Err: err}
	}
	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return &domain.ProviderError{Source: "naturalearth", Err: fmt.Errorf("download: %w", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &domain.ProviderError{
			Source: "naturalearth",
			Err:    fmt.Errorf("HTTP %d for %s", resp.StatusCode, url),
		}
	}

	if err := writeAtomic(path, func(w io.Writer) error {
		_, err := io.Copy(w, resp.Body)
		return err
	}); err != nil {
		return &domain.ProviderError{Source: "naturalearth", Err: err}
	}
	metrics.LandDownloads.WithLabelValues("naturalearth").Inc()
	return nil
}

func datasetFile(req domain.LandRequest) string {
	if req.Kind == domain.LandKindLand {
		return fmt.Sprintf("ne_%s_land.geojson", req.Resolution)
	}
	return fmt.Sprintf("ne_%s_admin_0_countries.geojson", req.Resolution)
}

// loadBarrier reads a finished barrier from the cache.
func (p *Provider) loadBarrier(req domain.LandRequest) (domain.Region, bool) {
	path := p.barrierPath(req)
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		p.Logger.Warn("discarding unreadable barrier cache", "path", path)
		return nil, false
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, false
	}
	barrier, err := geometry.UnmarshalWKB(data)
	if err != nil {
		p.Logger.Warn("discarding unreadable barrier cache", "path", path, "error", err)
		return nil, false
	}
	p.Logger.Debug("barrier loaded from cache", "path", path, "polygons", len(barrier))
	return barrier, true
}

// storeBarrier writes the finished barrier plus a GeoJSON sibling for
// inspection. Failures only cost a rebuild next time.
func (p *Provider) storeBarrier(req domain.LandRequest, barrier domain.Region) {
	if barrier.Empty() {
		return
	}
	path := p.barrierPath(req)
	data, err := geometry.MarshalWKB(barrier)
	if err != nil {
		p.Logger.Warn("barrier cache write failed", "error", err)
		return
	}
	if err := writeAtomic(path, func(w io.Writer) error {
		zw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
		if err != nil {
			return err
		}
		if _, err := zw.Write(data); err != nil {
			return err
		}
		return zw.Close()
	}); err != nil {
		p.Logger.Warn("barrier cache write failed", "path", path, "error", err)
		return
	}

	fc := geojson.NewFeatureCollection()
	fc.AddFeature(geojson.NewFeature(geometry.ToGeoJSON(barrier)))
	if body, err := json.Marshal(fc); err == nil {
		sibling := strings.TrimSuffix(path, ".wkb.gz") + ".geojson"
		if err := writeAtomic(sibling, func(w io.Writer) error {
			_, err := w.Write(body)
			return err
		}); err != nil {
			p.Logger.Warn("barrier geojson export failed", "path", sibling, "error", err)
		}
	}
}

func (p *Provider) barrierPath(req domain.LandRequest) string {
	sum := sha256.Sum256([]byte(req.Key()))
	name := fmt.Sprintf("allLands_%s_res=%s_%s.wkb.gz",
		req.Kind, req.Resolution, hex.EncodeToString(sum[:8]))
	return filepath.Join(p.CacheDir, "datasets", name)
}

// slugify turns a shape name into a cache-safe file name fragment.
func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "shape"
	}
	return b.String()
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
