package geodesic

import (
	"context"
	"sync"

	"github.com/Guymer/gft/internal/core/domain"
)

// Sampler fans rings of equidistant points around a start coordinate,
// spreading the per-bearing geodesic solves across a worker pool.
type Sampler struct {
	ray     *Ray
	workers int
}

// NewSampler returns a Sampler running at most workers geodesic solves
// concurrently.
func NewSampler(ray *Ray, workers int) *Sampler {
	if workers < 1 {
		workers = 1
	}
	return &Sampler{ray: ray, workers: workers}
}

// Sample returns the closed ring of nAng points at distanceMetres from
// start, one per bearing i*360/nAng for i in [0, nAng). Vertices keep fan
// order, so the ring walks clockwise as seen from above the start.
func (s *Sampler) Sample(ctx context.Context, start domain.Coordinate, distanceMetres float64, nAng int) (domain.Ring, error) {
	if nAng < 3 {
		return nil, domain.NewInvalidParameter("nAng", "needs at least 3 bearings to bound a region, got %d", nAng)
	}

	ring := make(domain.Ring, nAng)
	jobs := make(chan int)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	workers := s.workers
	if workers > nAng {
		workers = nAng
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				bearing := float64(i) * 360.0 / float64(nAng)
				pt, err := s.ray.Advance(start, bearing, distanceMetres)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				ring[i] = pt
			}
		}()
	}

feed:
	for i := 0; i < nAng; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return ring, nil
}
