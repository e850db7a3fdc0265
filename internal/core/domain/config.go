package domain

import (
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"time"
)

const (
	// MetresPerNauticalMile converts speeds in knots to metres per hour.
	MetresPerNauticalMile = 1852.0

	// MetresPerDegree is the length of one degree of arc along a great
	// circle of the mean Earth sphere.
	MetresPerDegree = 111319.49079327358

	// hourReferenceMetres is roughly the distance covered in one hour at
	// the 500 knot reference speed; plotting and simplification cadences
	// are derived from it so that one frame lands on each flight hour.
	hourReferenceMetres = 928000.0
)

// DefaultAvoidCountries is the default barrier set: countries treated as
// impassable when clipping the front.
var DefaultAvoidCountries = []string{"Baikonur Cosmodrome", "Iran", "Russia", "Ukraine"}

// RunConfig holds every parameter of a reachability run. Zero values are
// filled in by ApplyDefaults; Validate rejects anything outside the
// documented domain.
type RunConfig struct {
	Lon        float64       `json:"lon"`
	Lat        float64       `json:"lat"`
	SpeedKnots float64       `json:"speed_knots"`
	Duration   time.Duration `json:"duration"`

	NAng            int     `json:"n_ang"`
	PrecisionMetres float64 `json:"precision_metres"`

	// Cadences, in steps. Zero means derive from the precision so that
	// clipping happens every eight flight hours and plotting and
	// simplification every flight hour.
	FreqLand int `json:"freq_land"`
	FreqPlot int `json:"freq_plot"`
	FreqSimp int `json:"freq_simp"`

	// SimplifyDeg is the Douglas-Peucker tolerance in degrees. Zero means
	// derive one tenth of the precision.
	SimplifyDeg float64 `json:"simplify_deg"`

	// Tolerance is the vertex-snapping tolerance in degrees used while
	// unioning the barrier dataset.
	Tolerance float64 `json:"tolerance"`

	NEResolution    string `json:"ne_resolution"`
	GSHHGResolution string `json:"gshhg_resolution,omitempty"`

	Conservatism   float64  `json:"conservatism"`
	AvoidCountries []string `json:"avoid_countries"`
	LocalOnly      bool     `json:"local_only"`

	Workers int `json:"workers"`
}

// ApplyDefaults fills unset fields with their documented defaults and
// resolves a GSHHG resolution letter to the nearest Natural Earth scale.
func (c *RunConfig) ApplyDefaults() {
	if c.SpeedKnots == 0 {
		c.SpeedKnots = 500
	}
	if c.Duration == 0 {
		c.Duration = 24 * time.Hour
	}
	if c.NAng == 0 {
		c.NAng = 9
	}
	if c.PrecisionMetres == 0 {
		c.PrecisionMetres = 10000
	}
	if c.NEResolution == "" {
		c.NEResolution = "110m"
	}
	if c.GSHHGResolution != "" {
		c.NEResolution = NEResolutionForGSHHG(c.GSHHGResolution)
	}
	if c.Conservatism == 0 {
		c.Conservatism = 2
	}
	if c.Tolerance == 0 {
		c.Tolerance = 1e-10
	}
	if c.AvoidCountries == nil {
		c.AvoidCountries = append([]string(nil), DefaultAvoidCountries...)
	}
	if c.PrecisionMetres > 0 {
		if c.FreqLand == 0 {
			c.FreqLand = maxInt(1, int(8*hourReferenceMetres/c.PrecisionMetres))
		}
		if c.FreqPlot == 0 {
			c.FreqPlot = maxInt(1, int(hourReferenceMetres/c.PrecisionMetres))
		}
		if c.FreqSimp == 0 {
			c.FreqSimp = maxInt(1, int(hourReferenceMetres/c.PrecisionMetres))
		}
		if c.SimplifyDeg == 0 {
			c.SimplifyDeg = 0.1 * c.PrecisionMetres / MetresPerDegree
		}
	}
	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	c.Lon = NormalizeLon(c.Lon)
}

// Validate checks every parameter and returns an InvalidParameterError for
// the first one outside its domain.
func (c RunConfig) Validate() error {
	if !c.Start().Valid() {
		return NewInvalidParameter("lon,lat", "start point (%g, %g) is not a valid coordinate", c.Lon, c.Lat)
	}
	if !(c.SpeedKnots > 0) || math.IsInf(c.SpeedKnots, 0) {
		return NewInvalidParameter("speed", "must be a positive finite number of knots, got %g", c.SpeedKnots)
	}
	if c.Duration <= 0 {
		return NewInvalidParameter("duration", "must be positive, got %s", c.Duration)
	}
	if c.NAng < 3 {
		return NewInvalidParameter("nAng", "needs at least 3 bearings to bound a region, got %d", c.NAng)
	}
	if !(c.PrecisionMetres > 0) || math.IsInf(c.PrecisionMetres, 0) {
		return NewInvalidParameter("precision", "must be a positive finite distance in metres, got %g", c.PrecisionMetres)
	}
	if c.FreqLand < 1 || c.FreqPlot < 1 || c.FreqSimp < 1 {
		return NewInvalidParameter("freq", "cadences must be at least 1, got land=%d plot=%d simp=%d", c.FreqLand, c.FreqPlot, c.FreqSimp)
	}
	if !(c.SimplifyDeg > 0) {
		return NewInvalidParameter("simp", "tolerance must be positive degrees, got %g", c.SimplifyDeg)
	}
	if !(c.Tolerance > 0) {
		return NewInvalidParameter("tol", "tolerance must be positive degrees, got %g", c.Tolerance)
	}
	if c.Conservatism < 0 {
		return NewInvalidParameter("conservatism", "must not be negative, got %g", c.Conservatism)
	}
	if !validNEResolution(c.NEResolution) {
		return NewInvalidParameter("resolution", "must be one of 110m, 50m, 10m, got %q", c.NEResolution)
	}
	if c.Workers < 1 {
		return NewInvalidParameter("workers", "must be at least 1, got %d", c.Workers)
	}
	return nil
}

// Start returns the departure point.
func (c RunConfig) Start() Coordinate {
	return Coordinate{Lon: NormalizeLon(c.Lon), Lat: c.Lat}
}

// SpeedMetresPerHour converts the configured speed from knots.
func (c RunConfig) SpeedMetresPerHour() float64 {
	return c.SpeedKnots * MetresPerNauticalMile
}

// StepDuration is the elapsed time covered by one step of PrecisionMetres.
func (c RunConfig) StepDuration() time.Duration {
	hours := c.PrecisionMetres / c.SpeedMetresPerHour()
	return time.Duration(hours * float64(time.Hour))
}

// Steps is the number of steps needed to cover the configured duration,
// rounding the final partial step up.
func (c RunConfig) Steps() int {
	step := c.StepDuration()
	if step <= 0 {
		return 0
	}
	return int(math.Ceil(float64(c.Duration) / float64(step)))
}

// StepDistance is the geodesic range, in metres, reached at the given step.
func (c RunConfig) StepDistance(step int) float64 {
	return float64(step) * c.PrecisionMetres
}

// Elapsed is the flight time at the given step.
func (c RunConfig) Elapsed(step int) time.Duration {
	return time.Duration(step) * c.StepDuration()
}

// BufferMetres is how far the barrier dataset is grown before clipping,
// so a front step can never leap a thin barrier.
func (c RunConfig) BufferMetres() float64 {
	return c.Conservatism * c.PrecisionMetres
}

// MaxRangeMetres is the planned total range of the run.
func (c RunConfig) MaxRangeMetres() float64 {
	return c.StepDistance(c.Steps())
}

// LandRequest describes the barrier dataset this run clips against.
func (c RunConfig) LandRequest() LandRequest {
	req := LandRequest{
		Kind:           LandKindCountries,
		Resolution:     c.NEResolution,
		AvoidCountries: append([]string(nil), c.AvoidCountries...),
		BufferMetres:   c.BufferMetres(),
		UnionTolerance: c.Tolerance,
		SimplifyDeg:    c.SimplifyDeg,
	}
	if c.LocalOnly {
		start := c.Start()
		req.Origin = &start
		req.MaxRangeMetres = c.MaxRangeMetres()
	}
	return req
}

// DatasetDirName names the directory level keyed by the barrier dataset
// inputs shared across runs.
func (c RunConfig) DatasetDirName() string {
	return fmt.Sprintf("res=%s_cons=%.2e_tol=%.2e", c.NEResolution, c.Conservatism, c.Tolerance)
}

// SamplingDirName names the directory level keyed by the sampling fan.
func (c RunConfig) SamplingDirName() string {
	return fmt.Sprintf("local=%s_nAng=%d_prec=%.2e", boolLetter(c.LocalOnly), c.NAng, c.PrecisionMetres)
}

// RunDirName names the directory level keyed by the run itself.
func (c RunConfig) RunDirName() string {
	return fmt.Sprintf("freqLand=%d_freqSimp=%d_lon=%+011.6f_lat=%+010.6f",
		c.FreqLand, c.FreqSimp, NormalizeLon(c.Lon), c.Lat)
}

// OutputDir joins the three directory levels under root.
func (c RunConfig) OutputDir(root string) string {
	return filepath.Join(root, c.DatasetDirName(), c.SamplingDirName(), c.RunDirName())
}

// NEResolutionForGSHHG maps a GSHHG resolution letter to the nearest
// Natural Earth scale.
func NEResolutionForGSHHG(letter string) string {
	switch letter {
	case "c", "l":
		return "110m"
	case "i":
		return "50m"
	case "h", "f":
		return "10m"
	default:
		return ""
	}
}

func validNEResolution(res string) bool {
	switch res {
	case "110m", "50m", "10m":
		return true
	}
	return false
}

func boolLetter(b bool) string {
	if b {
		return "T"
	}
	return "F"
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
