package observability

import (
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"method", "route", "status"},
	)

	engineQueryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_query_duration_seconds",
			Help:    "Duration of a single relationship query in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 12), // 10us to ~40s
		},
		[]string{"query"},
	)

	engineRectangles = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_rectangles",
			Help:    "Number of rectangles per analyzed set.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 9), // 1 to 65536
		},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Result cache lookups by outcome.",
		},
		[]string{"outcome", "tier"},
	)

	cacheAdmission = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_admission_total",
			Help: "Computed results offered to the cache by admission decision.",
		},
		[]string{"decision"},
	)

	cacheOpTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Redis operations by result.",
		},
		[]string{"op", "result"},
	)

	redisOpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Latency of redis operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDurationSeconds,
		engineQueryDurationSeconds,
		engineRectangles,
		cacheResults,
		cacheAdmission,
		cacheOpTotal,
		redisOpDurationSeconds,
		buildInfo,
	}
}

// Init registers every collector with reg. With on=false or a nil reg the
// Observe helpers become no-ops. Registering into the same registry twice is
// tolerated.
func Init(reg prometheus.Registerer, on bool) {
	if reg == nil || !on {
		enabled.Store(false)
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}
	enabled.Store(true)
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveQuery(query string, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	engineQueryDurationSeconds.WithLabelValues(query).Observe(durationSeconds)
}

func ObserveSetSize(rects int) {
	if !enabled.Load() {
		return
	}
	engineRectangles.Observe(float64(rects))
}

func IncCacheHit(tier string) {
	if !enabled.Load() {
		return
	}
	cacheResults.WithLabelValues("hit", tier).Inc()
}

func IncCacheMiss(tier string) {
	if !enabled.Load() {
		return
	}
	cacheResults.WithLabelValues("miss", tier).Inc()
}

func ObserveAdmission(admitted bool) {
	if !enabled.Load() {
		return
	}
	d := "rejected"
	if admitted {
		d = "admitted"
	}
	cacheAdmission.WithLabelValues(d).Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	cacheOpTotal.WithLabelValues(op, result).Inc()
	redisOpDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
