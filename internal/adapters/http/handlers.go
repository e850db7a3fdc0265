package http

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	geojson "github.com/paulmach/go.geojson"

	"github.com/Guymer/gft/internal/core/domain"
	"github.com/Guymer/gft/internal/core/usecases"
	"github.com/Guymer/gft/internal/pkg/geometry"
)

// createRunRequest is the body of POST /v1/runs. Zero-valued fields fall
// back to the documented run defaults.
type createRunRequest struct {
	Lon             float64  `json:"lon"`
	Lat             float64  `json:"lat"`
	SpeedKnots      float64  `json:"speed_knots"`
	DurationHours   float64  `json:"duration_hours"`
	NAng            int      `json:"n_ang"`
	PrecisionMetres float64  `json:"precision_metres"`
	FreqLand        int      `json:"freq_land"`
	FreqPlot        int      `json:"freq_plot"`
	FreqSimp        int      `json:"freq_simp"`
	SimplifyDeg     float64  `json:"simplify_deg"`
	Tolerance       float64  `json:"tolerance"`
	NEResolution    string   `json:"ne_resolution"`
	GSHHGResolution string   `json:"gshhg_resolution"`
	Conservatism    float64  `json:"conservatism"`
	AvoidCountries  []string `json:"avoid_countries"`
	LocalOnly       bool     `json:"local_only"`
	Workers         int      `json:"workers"`

	// Durable hands the run to Temporal workers instead of stepping it
	// inside this process.
	Durable bool `json:"durable"`
}

func (r createRunRequest) toConfig() domain.RunConfig {
	return domain.RunConfig{
		Lon:             r.Lon,
		Lat:             r.Lat,
		SpeedKnots:      r.SpeedKnots,
		Duration:        time.Duration(r.DurationHours * float64(time.Hour)),
		NAng:            r.NAng,
		PrecisionMetres: r.PrecisionMetres,
		FreqLand:        r.FreqLand,
		FreqPlot:        r.FreqPlot,
		FreqSimp:        r.FreqSimp,
		SimplifyDeg:     r.SimplifyDeg,
		Tolerance:       r.Tolerance,
		NEResolution:    r.NEResolution,
		GSHHGResolution: r.GSHHGResolution,
		Conservatism:    r.Conservatism,
		AvoidCountries:  r.AvoidCountries,
		LocalOnly:       r.LocalOnly,
		Workers:         r.Workers,
	}
}

// CreateRunHandler starts a reachability run and returns its record.
func CreateRunHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createRunRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body: "+err.Error())
		}
		cfg := req.toConfig()

		if req.Durable {
			if deps.Durable == nil {
				return errServiceUnavailable(c, "durable runs are not configured")
			}
			runID := uuid.NewString()
			workflowID, err := deps.Durable.StartSimulation(c.Context(), runID, cfg)
			if err != nil {
				return respondError(c, err)
			}
			LoggerFromCtx(c.UserContext()).Info("durable run started",
				"run_id", runID, "workflow_id", workflowID)
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
				"id":          runID,
				"workflow_id": workflowID,
				"state":       domain.RunStateInit,
			})
		}

		run, err := deps.Runs.Start(c.Context(), cfg)
		if err != nil {
			return respondError(c, err)
		}
		LoggerFromCtx(c.UserContext()).Info("run started",
			"run_id", run.ID, "steps", run.Steps)
		return c.Status(fiber.StatusAccepted).JSON(run)
	}
}

// ListRunsHandler pages through runs, newest first.
func ListRunsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 50)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 200 {
			limit = 50
		}

		runs, total, err := deps.Runs.List(c.Context(), limit, offset)
		if err != nil {
			return respondError(c, err)
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: runs, Pagination: pg})
	}
}

// GetRunHandler returns a single run by ID.
func GetRunHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "run id is required")
		}
		run, err := deps.Runs.Get(c.Context(), id)
		if err != nil {
			return respondError(c, err)
		}
		if run == nil {
			return errNotFound(c, "run not found")
		}
		return c.JSON(run)
	}
}

// CancelRunHandler stops a stepping run.
func CancelRunHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "run id is required")
		}

		err := deps.Runs.Cancel(c.Context(), id)
		switch {
		case err == nil:
		case deps.Durable != nil && (errors.Is(err, usecases.ErrRunFinished) || errors.Is(err, usecases.ErrRunNotFound)):
			// Durable runs step on workers, not in this process, so the
			// local service sees only their archived record. If that
			// record is still live, cancel the workflow instead.
			run, lookupErr := deps.Runs.Get(c.Context(), id)
			if lookupErr != nil {
				return respondError(c, lookupErr)
			}
			if run == nil {
				return errNotFound(c, "run not found")
			}
			if run.State.Terminal() {
				return errConflict(c, "run already finished")
			}
			if cancelErr := deps.Durable.Cancel(c.Context(), id); cancelErr != nil {
				return errInternal(c, cancelErr.Error())
			}
		default:
			return respondError(c, err)
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"id":     id,
			"status": "cancelling",
		})
	}
}

// DeleteRunHandler removes a finished run and its archived frames.
func DeleteRunHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "run id is required")
		}
		if err := deps.Runs.Delete(c.Context(), id); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ListFramesHandler pages through a run's archived frames, geometry
// omitted; fetch a single step for the polygon itself.
func ListFramesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "run id is required")
		}
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		frames, total, err := deps.Runs.ListFrames(c.Context(), id, limit, offset)
		if err != nil {
			return respondError(c, err)
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: frames, Pagination: pg})
	}
}

// GetFrameHandler returns one archived frame as a GeoJSON feature.
func GetFrameHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "run id is required")
		}
		step, err := c.ParamsInt("step")
		if err != nil || step < 1 {
			return errBadRequest(c, "step must be a positive integer")
		}

		frame, err := deps.Runs.GetFrame(c.Context(), id, step)
		if err != nil {
			return respondError(c, err)
		}
		if frame == nil {
			return errNotFound(c, "frame not found")
		}

		body, err := json.Marshal(frameFeature(frame))
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set("Cache-Control", "public, max-age=86400")
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.Send(body)
	}
}

// frameFeature renders a frame the same way the isochrone endpoint does,
// so clients can reuse one decoder.
func frameFeature(f *domain.Frame) *geojson.Feature {
	feat := geojson.NewFeature(geometry.ToGeoJSON(f.Region))
	feat.SetProperty("kind", "front")
	feat.SetProperty("run_id", f.RunID)
	feat.SetProperty("step", f.Step)
	feat.SetProperty("elapsed_hours", f.ElapsedHours())
	feat.SetProperty("distance_km", f.DistanceMetres/1000)
	feat.SetProperty("area_km2", f.AreaKm2)
	feat.SetProperty("vertices", f.Vertices)
	feat.SetProperty("clipped", f.Clipped)
	feat.SetProperty("simplified", f.Simplified)
	feat.SetProperty("degraded", f.Degraded)
	return feat
}

// IsochroneHandler computes a reachability fan synchronously.
// GET /v1/isochrones?lon=-1.9&lat=50.5&speed=500&duration_hours=4
func IsochroneHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Query("lon") == "" || c.Query("lat") == "" {
			return errBadRequest(c, "lon and lat are required")
		}

		cfg := domain.RunConfig{
			Lon:             c.QueryFloat("lon"),
			Lat:             c.QueryFloat("lat"),
			SpeedKnots:      c.QueryFloat("speed", 0),
			Duration:        time.Duration(c.QueryFloat("duration_hours", 1) * float64(time.Hour)),
			NAng:            c.QueryInt("n_ang", 0),
			PrecisionMetres: c.QueryFloat("precision", 0),
			NEResolution:    c.Query("resolution"),
			GSHHGResolution: c.Query("gshhg"),
			Conservatism:    c.QueryFloat("conservatism", 0),
			LocalOnly:       c.QueryBool("local", false),
			AvoidCountries:  avoidListFromQuery(c),
		}

		body, err := deps.Isochrones.Compute(c.Context(), cfg)
		if err != nil {
			return respondError(c, err)
		}

		c.Set("Cache-Control", "public, max-age=86400")
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.Send(body)
	}
}

// LandHandler returns a prepared land barrier as GeoJSON.
// GET /v1/land?resolution=110m&buffer=20000&avoid=Iran,Russia
func LandHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := landRequestFromQuery(c)
		if err != nil {
			return respondError(c, err)
		}

		body, err := deps.Land.Get(c.Context(), req)
		if err != nil {
			return respondError(c, err)
		}

		c.Set("Cache-Control", "public, max-age=604800")
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.Send(body)
	}
}

// ComplexityHandler surveys barrier vertex density on a lon/lat grid.
// GET /v1/complexity?resolution=10m&cell=5
func ComplexityHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := landRequestFromQuery(c)
		if err != nil {
			return respondError(c, err)
		}
		cell := c.QueryFloat("cell", 0)

		survey, err := deps.Complexity.Survey(c.Context(), req, cell)
		if err != nil {
			return respondError(c, err)
		}

		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(survey)
	}
}

// landRequestFromQuery builds the barrier request shared by the land and
// complexity endpoints.
func landRequestFromQuery(c *fiber.Ctx) (domain.LandRequest, error) {
	kind := c.Query("kind", domain.LandKindCountries)
	if kind != domain.LandKindCountries && kind != domain.LandKindLand {
		return domain.LandRequest{}, domain.NewInvalidParameter("kind",
			"must be %q or %q, got %q", domain.LandKindCountries, domain.LandKindLand, kind)
	}
	req := domain.LandRequest{
		Kind:           kind,
		Resolution:     c.Query("resolution", "110m"),
		BufferMetres:   c.QueryFloat("buffer", 0),
		UnionTolerance: c.QueryFloat("tolerance", 1e-10),
		SimplifyDeg:    c.QueryFloat("simplify", 0),
	}
	if kind == domain.LandKindCountries {
		req.AvoidCountries = avoidListFromQuery(c)
		if req.AvoidCountries == nil {
			req.AvoidCountries = append([]string(nil), domain.DefaultAvoidCountries...)
		}
	}
	return req, nil
}

// avoidListFromQuery parses the comma-separated avoid list. Absent means
// nil (caller decides the default); "none" means an explicit empty list.
func avoidListFromQuery(c *fiber.Ctx) []string {
	raw := c.Query("avoid")
	if raw == "" {
		return nil
	}
	if strings.EqualFold(raw, "none") {
		return []string{}
	}
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}
