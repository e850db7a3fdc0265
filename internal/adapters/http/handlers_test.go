package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/Guymer/gft/internal/adapters/http"
	"github.com/Guymer/gft/internal/core/domain"
	"github.com/Guymer/gft/internal/core/usecases"
)

// ---- Mock repositories ----

type mockRunRepo struct {
	createFn  func(ctx context.Context, run *domain.Run) error
	updateFn  func(ctx context.Context, run *domain.Run) error
	getByIDFn func(ctx context.Context, id string) (*domain.Run, error)
	listFn    func(ctx context.Context, limit, offset int) ([]domain.Run, int, error)
	deleteFn  func(ctx context.Context, id string) error
}

func (m *mockRunRepo) Create(ctx context.Context, run *domain.Run) error {
	if m.createFn != nil {
		return m.createFn(ctx, run)
	}
	return nil
}
func (m *mockRunRepo) Update(ctx context.Context, run *domain.Run) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, run)
	}
	return nil
}
func (m *mockRunRepo) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockRunRepo) List(ctx context.Context, limit, offset int) ([]domain.Run, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, 0, nil
}
func (m *mockRunRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockFrameRepo struct {
	insertFn    func(ctx context.Context, frame *domain.Frame) error
	listByRunFn func(ctx context.Context, runID string, limit, offset int) ([]domain.Frame, int, error)
	getByStepFn func(ctx context.Context, runID string, step int) (*domain.Frame, error)
	deleteFn    func(ctx context.Context, runID string) error
}

func (m *mockFrameRepo) Insert(ctx context.Context, frame *domain.Frame) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, frame)
	}
	return nil
}
func (m *mockFrameRepo) ListByRun(ctx context.Context, runID string, limit, offset int) ([]domain.Frame, int, error) {
	if m.listByRunFn != nil {
		return m.listByRunFn(ctx, runID, limit, offset)
	}
	return nil, 0, nil
}
func (m *mockFrameRepo) GetByStep(ctx context.Context, runID string, step int) (*domain.Frame, error) {
	if m.getByStepFn != nil {
		return m.getByStepFn(ctx, runID, step)
	}
	return nil, nil
}
func (m *mockFrameRepo) DeleteByRun(ctx context.Context, runID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, runID)
	}
	return nil
}

type mockLandProvider struct {
	loadFn func(ctx context.Context, req domain.LandRequest) (*domain.LandDataset, error)
}

func (m *mockLandProvider) Load(ctx context.Context, req domain.LandRequest) (*domain.LandDataset, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx, req)
	}
	return &domain.LandDataset{}, nil
}

// ---- Test helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	d := &handler.Dependencies{
		Runs:       usecases.NewRunService(&mockLandProvider{}, &mockRunRepo{}, &mockFrameRepo{}, nil, nil),
		Isochrones: usecases.NewIsochroneService(&mockLandProvider{}, nil, nil),
		Land:       usecases.NewLandService(&mockLandProvider{}, nil, nil),
		Complexity: usecases.NewComplexityService(&mockLandProvider{}, nil),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

// squareRegion builds a one-degree-ish square to stand in for a front or
// barrier polygon.
func squareRegion(lon, lat, size float64) domain.Region {
	return domain.Region{{
		Outer: domain.Ring{
			{Lon: lon, Lat: lat},
			{Lon: lon + size, Lat: lat},
			{Lon: lon + size, Lat: lat + size},
			{Lon: lon, Lat: lat + size},
		},
	}}
}

// ---- Run handler tests ----

func TestCreateRun_Accepted(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{"lon": -1.9219, "lat": 50.6026, "speed_knots": 500, "duration_hours": 0.01}`
	req := httptest.NewRequest("POST", "/v1/runs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 202 {
		t.Fatalf("expected 202, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var run struct {
		ID    string `json:"id"`
		Steps int    `json:"steps"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if run.ID == "" {
		t.Error("expected a run id")
	}
	if run.Steps < 1 {
		t.Errorf("expected at least one step, got %d", run.Steps)
	}
}

func TestCreateRun_InvalidLatitude(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{"lon": 0, "lat": 91, "duration_hours": 1}`
	req := httptest.NewRequest("POST", "/v1/runs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var apiErr handler.APIError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if apiErr.Code != "bad_request" {
		t.Errorf("expected bad_request code, got %q", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "lat") {
		t.Errorf("expected message to name the parameter, got %q", apiErr.Message)
	}
}

func TestCreateRun_MalformedBody(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("POST", "/v1/runs", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")

	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateRun_DurableNotConfigured(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{"lon": 0, "lat": 0, "duration_hours": 1, "durable": true}`
	req := httptest.NewRequest("POST", "/v1/runs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}

	var apiErr handler.APIError
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "service_unavailable" {
		t.Errorf("expected service_unavailable code, got %q", apiErr.Code)
	}
}

func TestListRuns_Success(t *testing.T) {
	runs := make([]domain.Run, 3)
	for i := range runs {
		runs[i] = domain.Run{
			ID:        fmt.Sprintf("run-%d", i),
			State:     domain.RunStateDone,
			Steps:     100,
			Step:      100,
			StartedAt: time.Now().UTC(),
		}
	}

	deps := makeDeps(func(d *handler.Dependencies) {
		d.Runs = usecases.NewRunService(&mockLandProvider{}, &mockRunRepo{
			listFn: func(ctx context.Context, limit, offset int) ([]domain.Run, int, error) {
				return runs, 12, nil
			},
		}, &mockFrameRepo{}, nil, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/runs?offset=0&limit=3", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.Run `json:"data"`
		Pagination struct {
			Offset int `json:"offset"`
			Limit  int `json:"limit"`
			Total  int `json:"total"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(result.Data) != 3 {
		t.Errorf("expected 3 runs, got %d", len(result.Data))
	}
	if result.Pagination.Total != 12 {
		t.Errorf("expected total 12, got %d", result.Pagination.Total)
	}

	// Run records carry live progress; they must not be cached.
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("expected no-cache, got %q", cc)
	}
}

func TestListRuns_LinkHeader(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Runs = usecases.NewRunService(&mockLandProvider{}, &mockRunRepo{
			listFn: func(ctx context.Context, limit, offset int) ([]domain.Run, int, error) {
				return make([]domain.Run, limit), 12, nil
			},
		}, &mockFrameRepo{}, nil, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/runs?offset=0&limit=3", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	link := resp.Header.Get("Link")
	if link == "" {
		t.Fatal("expected Link header, got empty")
	}
	if !strings.Contains(link, `rel="next"`) {
		t.Errorf("expected next link, got %s", link)
	}
	if !strings.Contains(link, `rel="first"`) {
		t.Errorf("expected first link, got %s", link)
	}
	if !strings.Contains(link, `rel="last"`) {
		t.Errorf("expected last link, got %s", link)
	}
	if !strings.Contains(link, "limit=3") {
		t.Errorf("expected links to preserve the page size, got %s", link)
	}
}

func TestGetRun_Success(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Runs = usecases.NewRunService(&mockLandProvider{}, &mockRunRepo{
			getByIDFn: func(ctx context.Context, id string) (*domain.Run, error) {
				return &domain.Run{ID: id, State: domain.RunStateDone, Step: 93, Steps: 93}, nil
			},
		}, &mockFrameRepo{}, nil, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/runs/run-1", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var run domain.Run
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if run.ID != "run-1" {
		t.Errorf("expected run-1, got %q", run.ID)
	}
	if run.State != domain.RunStateDone {
		t.Errorf("expected done state, got %q", run.State)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/runs/nope", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	var apiErr handler.APIError
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "not_found" {
		t.Errorf("expected not_found code, got %q", apiErr.Code)
	}
}

func TestCancelRun_AlreadyFinished(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Runs = usecases.NewRunService(&mockLandProvider{}, &mockRunRepo{
			getByIDFn: func(ctx context.Context, id string) (*domain.Run, error) {
				return &domain.Run{ID: id, State: domain.RunStateDone}, nil
			},
		}, &mockFrameRepo{}, nil, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("POST", "/v1/runs/run-1/cancel", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 409 {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	var apiErr handler.APIError
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "conflict" {
		t.Errorf("expected conflict code, got %q", apiErr.Code)
	}
}

func TestCancelRun_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("POST", "/v1/runs/nope/cancel", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestDeleteRun_Success(t *testing.T) {
	var purgedFrames, deletedRun bool
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Runs = usecases.NewRunService(&mockLandProvider{}, &mockRunRepo{
			getByIDFn: func(ctx context.Context, id string) (*domain.Run, error) {
				return &domain.Run{ID: id, State: domain.RunStateDone}, nil
			},
			deleteFn: func(ctx context.Context, id string) error {
				deletedRun = true
				return nil
			},
		}, &mockFrameRepo{
			deleteFn: func(ctx context.Context, runID string) error {
				purgedFrames = true
				return nil
			},
		}, nil, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("DELETE", "/v1/runs/run-1", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if !purgedFrames {
		t.Error("expected archived frames to be purged")
	}
	if !deletedRun {
		t.Error("expected the run record to be deleted")
	}
}

func TestDeleteRun_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("DELETE", "/v1/runs/nope", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

// ---- Frame handler tests ----

func TestListFrames_Success(t *testing.T) {
	frames := []domain.Frame{
		{RunID: "run-1", Step: 92, Elapsed: time.Hour, DistanceMetres: 926000, Vertices: 128},
		{RunID: "run-1", Step: 184, Elapsed: 2 * time.Hour, DistanceMetres: 1852000, Vertices: 256},
	}

	deps := makeDeps(func(d *handler.Dependencies) {
		d.Runs = usecases.NewRunService(&mockLandProvider{}, &mockRunRepo{
			getByIDFn: func(ctx context.Context, id string) (*domain.Run, error) {
				return &domain.Run{ID: id, State: domain.RunStateDone}, nil
			},
		}, &mockFrameRepo{
			listByRunFn: func(ctx context.Context, runID string, limit, offset int) ([]domain.Frame, int, error) {
				return frames, len(frames), nil
			},
		}, nil, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/runs/run-1/frames", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.Frame `json:"data"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(result.Data) != 2 {
		t.Errorf("expected 2 frames, got %d", len(result.Data))
	}
	if result.Pagination.Total != 2 {
		t.Errorf("expected total 2, got %d", result.Pagination.Total)
	}

	// Frame lists grow while a run steps, so they cache only briefly.
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=30" {
		t.Errorf("expected max-age=30, got %q", cc)
	}
}

func TestGetFrame_GeoJSON(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Runs = usecases.NewRunService(&mockLandProvider{}, &mockRunRepo{}, &mockFrameRepo{
			getByStepFn: func(ctx context.Context, runID string, step int) (*domain.Frame, error) {
				return &domain.Frame{
					RunID:          runID,
					Step:           step,
					Elapsed:        time.Hour,
					DistanceMetres: 926000,
					Region:         squareRegion(-2.0, 50.0, 1.0),
					AreaKm2:        12300,
					Vertices:       4,
					Clipped:        true,
				}, nil
			},
		}, nil, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/runs/run-1/frames/92", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("expected application/geo+json, got %q", ct)
	}

	var feat struct {
		Type       string                 `json:"type"`
		Properties map[string]interface{} `json:"properties"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&feat); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if feat.Type != "Feature" {
		t.Errorf("expected a Feature, got %q", feat.Type)
	}
	if feat.Properties["run_id"] != "run-1" {
		t.Errorf("expected run_id run-1, got %v", feat.Properties["run_id"])
	}
	if feat.Properties["elapsed_hours"] != 1.0 {
		t.Errorf("expected elapsed_hours 1, got %v", feat.Properties["elapsed_hours"])
	}

	// An archived frame never changes, so its ETag is strong.
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header, got empty")
	}
	if strings.HasPrefix(etag, "W/") {
		t.Errorf("expected a strong ETag, got %q", etag)
	}
}

func TestGetFrame_InvalidStep(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/runs/run-1/frames/0", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetFrame_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/runs/run-1/frames/92", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

// ---- Isochrone handler tests ----

func TestIsochrone_MissingCoordinates(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/isochrones?lat=50.6", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestIsochrone_ComputesFan(t *testing.T) {
	// Open ocean: the default mock returns an empty barrier, so the fan
	// grows unclipped. A hundredth of an hour keeps it to a single step.
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/isochrones?lon=-30.0&lat=40.0&duration_hours=0.01", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("expected application/geo+json, got %q", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=86400" {
		t.Errorf("expected max-age=86400, got %q", cc)
	}

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if fc.Type != "FeatureCollection" {
		t.Errorf("expected a FeatureCollection, got %q", fc.Type)
	}
	if len(fc.Features) < 2 {
		t.Fatalf("expected at least origin and final front, got %d features", len(fc.Features))
	}
	if fc.Features[0].Properties["kind"] != "origin" {
		t.Errorf("expected the first feature to be the origin, got %v", fc.Features[0].Properties["kind"])
	}
	last := fc.Features[len(fc.Features)-1]
	if last.Properties["kind"] != "front" {
		t.Errorf("expected the last feature to be a front, got %v", last.Properties["kind"])
	}
}

func TestIsochrone_StepLimit(t *testing.T) {
	app := setupApp(makeDeps())

	// Ten years of flight time needs millions of steps; the synchronous
	// endpoint must refuse rather than hang.
	req := httptest.NewRequest("GET", "/v1/isochrones?lon=0&lat=0&duration_hours=87600", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var apiErr handler.APIError
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if !strings.Contains(apiErr.Message, "steps") {
		t.Errorf("expected message to mention the step limit, got %q", apiErr.Message)
	}
}

// ---- Land handler tests ----

func TestLand_GeoJSON(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Land = usecases.NewLandService(&mockLandProvider{
			loadFn: func(ctx context.Context, req domain.LandRequest) (*domain.LandDataset, error) {
				return &domain.LandDataset{
					Barrier:    squareRegion(5.0, 51.0, 1.0),
					Kind:       domain.LandKindLand,
					Resolution: req.Resolution,
				}, nil
			},
		}, nil, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/land?kind=land&resolution=10m", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("expected application/geo+json, got %q", ct)
	}

	// Coastlines do not move; the barrier caches for a week.
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=604800" {
		t.Errorf("expected max-age=604800, got %q", cc)
	}

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(fc.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(fc.Features))
	}
	if fc.Features[0].Properties["kind"] != "land" {
		t.Errorf("expected kind land, got %v", fc.Features[0].Properties["kind"])
	}
	if fc.Features[0].Properties["resolution"] != "10m" {
		t.Errorf("expected resolution 10m, got %v", fc.Features[0].Properties["resolution"])
	}
}

func TestLand_InvalidKind(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/land?kind=ocean", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- Complexity handler tests ----

func TestComplexity_Survey(t *testing.T) {
	// Four vertices inside one 10-degree cell.
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Complexity = usecases.NewComplexityService(&mockLandProvider{
			loadFn: func(ctx context.Context, req domain.LandRequest) (*domain.LandDataset, error) {
				return &domain.LandDataset{Barrier: squareRegion(5.0, 51.0, 1.0)}, nil
			},
		}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/complexity?kind=land&cell=10", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var survey domain.ComplexitySurvey
	if err := json.NewDecoder(resp.Body).Decode(&survey); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if survey.CellDeg != 10 {
		t.Errorf("expected 10-degree cells, got %v", survey.CellDeg)
	}
	if survey.TotalVertices != 4 {
		t.Errorf("expected 4 vertices, got %d", survey.TotalVertices)
	}
	if survey.OccupiedCells != 1 {
		t.Errorf("expected 1 occupied cell, got %d", survey.OccupiedCells)
	}
	if survey.MaxVertices != 4 {
		t.Errorf("expected max 4 vertices per cell, got %d", survey.MaxVertices)
	}
}

// ---- Health & readiness ----

func TestHealth_Returns200(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if result["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", result["status"])
	}
}

func TestReady_NoBackends(t *testing.T) {
	// DB, NATS and cache are all optional: without them the service still
	// computes isochrones and live runs, it just cannot archive them.
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Status != "ready" {
		t.Errorf("expected ready, got %q", result.Status)
	}
	if result.Checks["database"] != "not configured" {
		t.Errorf("expected database not configured, got %q", result.Checks["database"])
	}
}

// ---- Response headers ----

func TestAPIVersionHeader(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	v := resp.Header.Get("X-API-Version")
	if v != "1.0.0" {
		t.Errorf("expected X-API-Version 1.0.0, got %q", v)
	}
}

// TestAccessLogMiddleware verifies structured access logging is emitted.
func TestAccessLogMiddleware(t *testing.T) {
	app := fiber.New()

	// Register middleware
	app.Use(handler.AccessLogMiddleware())

	// Simple test route
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})

	// Make request
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "test-req-123")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	// Verify response body
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ok") {
		t.Errorf("expected response body to contain 'ok', got %s", string(body))
	}
}
