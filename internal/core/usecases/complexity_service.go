package usecases

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/Guymer/gft/internal/core/domain"
	"github.com/Guymer/gft/internal/core/ports"
)

const defaultCellDeg = 10.0

// ComplexityService surveys where the land barrier concentrates its
// vertices. Dense coastline means slow clipping; the survey tells you
// where a run will crawl before you start it.
type ComplexityService struct {
	land   ports.LandProvider
	logger *slog.Logger
}

// NewComplexityService wires the survey path.
func NewComplexityService(land ports.LandProvider, logger *slog.Logger) *ComplexityService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComplexityService{land: land, logger: logger}
}

// Survey loads the barrier for the request and bins its exterior-ring
// vertices into cellDeg-sized cells. cellDeg defaults to 10 degrees.
func (s *ComplexityService) Survey(ctx context.Context, req domain.LandRequest, cellDeg float64) (*domain.ComplexitySurvey, error) {
	if cellDeg <= 0 {
		cellDeg = defaultCellDeg
	}
	if cellDeg > 90 {
		return nil, domain.NewInvalidParameter("cell", "cell size %.1f° exceeds 90°", cellDeg)
	}

	ds, err := s.land.Load(ctx, req)
	if err != nil {
		return nil, err
	}

	cols := int(math.Ceil(360 / cellDeg))
	rows := int(math.Ceil(180 / cellDeg))
	survey := &domain.ComplexitySurvey{
		CellDeg: cellDeg,
		Cols:    cols,
		Rows:    rows,
		Counts:  make([]int, cols*rows),
	}

	for _, poly := range ds.Barrier {
		for _, c := range poly.Outer {
			col := int(math.Floor((c.Lon + 180) / cellDeg))
			row := int(math.Floor((90 - c.Lat) / cellDeg))
			if col < 0 {
				col = 0
			} else if col >= cols {
				col = cols - 1
			}
			if row < 0 {
				row = 0
			} else if row >= rows {
				row = rows - 1
			}
			survey.Counts[row*cols+col]++
			survey.TotalVertices++
		}
	}

	occupied := make([]float64, 0, len(survey.Counts))
	for _, n := range survey.Counts {
		if n == 0 {
			continue
		}
		occupied = append(occupied, float64(n))
		if n > survey.MaxVertices {
			survey.MaxVertices = n
		}
	}
	survey.OccupiedCells = len(occupied)
	if len(occupied) > 0 {
		sort.Float64s(occupied)
		survey.MeanVertices = stat.Mean(occupied, nil)
		survey.MedianVertices = stat.Quantile(0.5, stat.Empirical, occupied, nil)
		survey.P90Vertices = stat.Quantile(0.9, stat.Empirical, occupied, nil)
	}

	s.logger.Info("complexity survey built",
		"cell_deg", cellDeg,
		"occupied_cells", survey.OccupiedCells,
		"total_vertices", survey.TotalVertices,
		"max_vertices", survey.MaxVertices)
	return survey, nil
}
