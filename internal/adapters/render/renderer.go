package render

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"

	"github.com/Guymer/gft/internal/core/domain"
	"github.com/Guymer/gft/internal/pkg/geodesic"
)

// Renderer draws fronts and barriers onto an equirectangular chart. One
// degree of longitude and one degree of latitude get the same number of
// pixels, matching how the stored geometry treats the chart plane.
type Renderer struct {
	Width  int
	logger *slog.Logger
}

// NewRenderer returns a renderer producing charts Width pixels wide.
func NewRenderer(width int, logger *slog.Logger) *Renderer {
	if width <= 0 {
		width = 1440
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{Width: width, logger: logger}
}

// window is the chart extent in degrees.
type window struct {
	minLon, maxLon float64
	minLat, maxLat float64
}

var worldWindow = window{minLon: -180, maxLon: 180, minLat: -90, maxLat: 90}

func (w window) lonSpan() float64 { return w.maxLon - w.minLon }
func (w window) latSpan() float64 { return w.maxLat - w.minLat }

// RenderFrame draws one front snapshot: barrier land, the reachable
// region, its boundary and the departure point.
func (r *Renderer) RenderFrame(path string, frame *domain.Frame, land *domain.LandDataset, cfg domain.RunConfig) error {
	win := worldWindow
	if cfg.LocalOnly {
		win = regionWindow(frame.Region, cfg.Start())
	}

	height := int(float64(r.Width) * win.latSpan() / win.lonSpan())
	if height < 1 {
		height = 1
	}
	dc := gg.NewContext(r.Width, height)
	dc.SetFillRule(gg.FillRuleEvenOdd)

	// Sea
	dc.SetRGB(0.85, 0.91, 0.96)
	dc.Clear()

	// Barrier land
	if !land.Empty() {
		r.tracePolygons(dc, win, land.Barrier)
		dc.SetRGBA(0.78, 0.72, 0.62, 1)
		dc.FillPreserve()
		dc.SetRGBA(0.55, 0.50, 0.42, 1)
		dc.SetLineWidth(0.6)
		dc.Stroke()
	}

	// Front
	r.tracePolygons(dc, win, frame.Region)
	dc.SetRGBA(0.86, 0.12, 0.18, 0.25)
	dc.FillPreserve()
	dc.SetRGBA(0.86, 0.12, 0.18, 1)
	dc.SetLineWidth(1.2)
	dc.Stroke()

	// Farthest-reach track along the great circle
	if far, ok := geodesic.FarthestVertex(cfg.Start(), frame.Region); ok {
		r.traceTrack(dc, win, geodesic.GreatCircle(cfg.Start(), far, 128))
		dc.SetRGBA(0.15, 0.15, 0.15, 0.8)
		dc.SetLineWidth(0.8)
		dc.SetDash(4, 3)
		dc.Stroke()
		dc.SetDash()
		fx, fy := project(win, far, r.Width, height)
		dc.DrawCircle(fx, fy, 2.5)
		dc.SetRGB(0.15, 0.15, 0.15)
		dc.Fill()
	}

	// Departure point
	x, y := project(win, cfg.Start(), r.Width, height)
	dc.SetRGB(1, 0.84, 0)
	dc.DrawCircle(x, y, 4)
	dc.FillPreserve()
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1)
	dc.Stroke()

	// Caption, styled after the animation frames this feeds.
	caption := fmt.Sprintf("%6.0f km (%5.2f hours)",
		frame.DistanceMetres/1000, frame.ElapsedHours())
	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(caption, float64(r.Width)-8, 12, 1, 0.5)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("save png: %w", err)
	}
	r.logger.Debug("frame rendered", "path", path, "step", frame.Step)
	return nil
}

// RenderSurvey draws a complexity survey as a heat map, one pixel block
// per cell, dark cells holding the most barrier vertices.
func (r *Renderer) RenderSurvey(path string, survey *domain.ComplexitySurvey) error {
	if survey.Cols < 1 || survey.Rows < 1 {
		return fmt.Errorf("survey grid is empty")
	}
	cell := float64(r.Width) / float64(survey.Cols)
	height := int(cell * float64(survey.Rows))
	dc := gg.NewContext(r.Width, height)

	dc.SetRGB(1, 1, 1)
	dc.Clear()

	// Log scale keeps coastal cells visible next to the worst fjords.
	max := math.Log1p(float64(survey.MaxVertices))
	for row := 0; row < survey.Rows; row++ {
		for col := 0; col < survey.Cols; col++ {
			n := survey.At(row, col)
			if n == 0 {
				continue
			}
			t := 1.0
			if max > 0 {
				t = math.Log1p(float64(n)) / max
			}
			cr, cg, cb := heatColour(t)
			dc.SetRGB(cr, cg, cb)
			dc.DrawRectangle(float64(col)*cell, float64(row)*cell, cell, cell)
			dc.Fill()
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return dc.SavePNG(path)
}

// tracePolygons adds every ring of the region as a closed subpath.
// Even-odd filling turns the hole rings into holes.
func (r *Renderer) tracePolygons(dc *gg.Context, win window, region domain.Region) {
	width, height := dc.Width(), dc.Height()
	trace := func(ring domain.Ring) {
		if len(ring) < 3 {
			return
		}
		dc.NewSubPath()
		for i, c := range ring {
			x, y := project(win, c, width, height)
			if i == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.ClosePath()
	}
	for _, p := range region {
		trace(p.Outer)
		for _, h := range p.Holes {
			trace(h)
		}
	}
}

// traceTrack adds a polyline as subpaths, breaking at antimeridian wraps
// so the track never smears across the chart.
func (r *Renderer) traceTrack(dc *gg.Context, win window, pts []domain.Coordinate) {
	width, height := dc.Width(), dc.Height()
	pen := false
	for i, c := range pts {
		if i > 0 && math.Abs(c.Lon-pts[i-1].Lon) > 180 {
			pen = false
		}
		x, y := project(win, c, width, height)
		if !pen {
			dc.NewSubPath()
			dc.MoveTo(x, y)
			pen = true
		} else {
			dc.LineTo(x, y)
		}
	}
}

func project(win window, c domain.Coordinate, width, height int) (float64, float64) {
	x := (c.Lon - win.minLon) / win.lonSpan() * float64(width)
	y := (win.maxLat - c.Lat) / win.latSpan() * float64(height)
	return x, y
}

// regionWindow pads the bounding box of the region by a tenth of its span
// and clamps to the chart. Falls back to the world when the region spans
// most of it anyway.
func regionWindow(region domain.Region, start domain.Coordinate) window {
	minLon, maxLon := start.Lon, start.Lon
	minLat, maxLat := start.Lat, start.Lat
	grow := func(ring domain.Ring) {
		for _, c := range ring {
			minLon = math.Min(minLon, c.Lon)
			maxLon = math.Max(maxLon, c.Lon)
			minLat = math.Min(minLat, c.Lat)
			maxLat = math.Max(maxLat, c.Lat)
		}
	}
	for _, p := range region {
		grow(p.Outer)
	}
	if maxLon-minLon > 240 || maxLat-minLat > 150 {
		return worldWindow
	}

	padLon := math.Max(1, (maxLon-minLon)/10)
	padLat := math.Max(1, (maxLat-minLat)/10)
	win := window{
		minLon: math.Max(-180, minLon-padLon),
		maxLon: math.Min(180, maxLon+padLon),
		minLat: math.Max(-90, minLat-padLat),
		maxLat: math.Min(90, maxLat+padLat),
	}
	if win.lonSpan() <= 0 || win.latSpan() <= 0 {
		return worldWindow
	}
	return win
}

// heatColour maps t in [0,1] onto white-yellow-red-black.
func heatColour(t float64) (float64, float64, float64) {
	switch {
	case t < 1.0/3:
		s := t * 3
		return 1, 1 - 0.2*s, 1 - s
	case t < 2.0/3:
		s := (t - 1.0/3) * 3
		return 1, 0.8 - 0.68*s, 0.12 * (1 - s)
	default:
		s := (t - 2.0/3) * 3
		return 1 - 0.85*s, 0.12 * (1 - s), 0
	}
}

// PlotSink renders every emitted frame into dir, implementing
// ports.FrameSink so plotting can ride the sequencer's plot cadence.
type PlotSink struct {
	Renderer *Renderer
	Dir      string
	Land     *domain.LandDataset
	Config   domain.RunConfig
}

func (s *PlotSink) EmitFrame(ctx context.Context, frame *domain.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(s.Dir, fmt.Sprintf("istep=%06d.png", frame.Step))
	return s.Renderer.RenderFrame(path, frame, s.Land, s.Config)
}
