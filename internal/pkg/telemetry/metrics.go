package telemetry

// SLI metric names used for instrumentation.
const (
	// Latency
	MetricAPILatencyP50 = "api.latency.p50"
	MetricAPILatencyP95 = "api.latency.p95"
	MetricAPILatencyP99 = "api.latency.p99"

	// Throughput
	MetricRequestsPerSec = "api.requests_per_second"
	MetricStepsPerSec    = "simulation.steps_per_second"

	// Data freshness
	MetricLandCacheAge = "land.cache_age_seconds"
	MetricFrameLatency = "simulation.frame_latency"

	// Availability
	MetricUptime = "service.uptime_percentage"

	// Business
	MetricRunsCompleted = "business.runs_completed"
	MetricRunsDegraded  = "business.runs_degraded"
)
