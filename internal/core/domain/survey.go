package domain

// ComplexitySurvey grids the globe into lon/lat cells and counts the
// barrier vertices falling in each, a cheap proxy for how expensive
// clipping will be in that part of the world.
type ComplexitySurvey struct {
	CellDeg float64 `json:"cellDeg"`
	Cols    int     `json:"cols"`
	Rows    int     `json:"rows"`
	// Counts is row-major with row 0 at the north edge.
	Counts []int `json:"counts"`

	TotalVertices  int     `json:"totalVertices"`
	OccupiedCells  int     `json:"occupiedCells"`
	MeanVertices   float64 `json:"meanVertices"`
	MedianVertices float64 `json:"medianVertices"`
	P90Vertices    float64 `json:"p90Vertices"`
	MaxVertices    int     `json:"maxVertices"`
}

// At returns the vertex count for a cell, zero outside the grid.
func (s *ComplexitySurvey) At(row, col int) int {
	if row < 0 || row >= s.Rows || col < 0 || col >= s.Cols {
		return 0
	}
	return s.Counts[row*s.Cols+col]
}
