package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gft",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gft",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gft",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Simulation metrics
	SimulationSteps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gft",
		Subsystem: "simulation",
		Name:      "steps_total",
		Help:      "Total front steps advanced across all runs",
	})

	FramesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gft",
		Subsystem: "simulation",
		Name:      "frames_emitted_total",
		Help:      "Total frames handed to sinks",
	})

	GeometryRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gft",
		Subsystem: "simulation",
		Name:      "geometry_retries_total",
		Help:      "Total geometry phases retried on perturbed input",
	})

	DegradedSteps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gft",
		Subsystem: "simulation",
		Name:      "degraded_steps_total",
		Help:      "Total steps that kept the previous front after a failed retry",
	})

	RunsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gft",
		Subsystem: "simulation",
		Name:      "runs_active",
		Help:      "Runs currently stepping in this process",
	})

	SampleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gft",
		Subsystem: "simulation",
		Name:      "sample_duration_seconds",
		Help:      "Duration of sampling one geodesic front",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	ClipDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gft",
		Subsystem: "simulation",
		Name:      "clip_duration_seconds",
		Help:      "Duration of clipping one front against the barrier",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	})

	SimplifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gft",
		Subsystem: "simulation",
		Name:      "simplify_duration_seconds",
		Help:      "Duration of simplifying one front",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	// Land dataset metrics
	LandLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gft",
		Subsystem: "land",
		Name:      "load_duration_seconds",
		Help:      "Duration of loading or building a barrier dataset",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	})

	LandDownloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gft",
		Subsystem: "land",
		Name:      "downloads_total",
		Help:      "Total shape archive downloads by source",
	}, []string{"source"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gft",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gft",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"scope"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gft",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"scope"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gft",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gft",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gft",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving the Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics updates database pool metrics from pgx pool stats.
// The stat is asserted structurally so this package does not import
// pgxpool.
func UpdateDBPoolMetrics(stat interface{}) {
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
