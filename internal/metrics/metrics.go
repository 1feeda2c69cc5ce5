package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels of UpstreamRequests.
const (
	OutcomeOK          = "ok"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

// Result labels of CacheLookups.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Status labels of StreamMessages.
const (
	StreamPublished = "published"
	StreamFailed    = "failed"
)

type Metrics struct {
	UpstreamRequests    *prometheus.CounterVec
	RequestSeconds      *prometheus.HistogramVec
	Resolutions         *prometheus.CounterVec
	CacheLookups        *prometheus.CounterVec
	InlineParseFailures prometheus.Counter
	ThrottleInterval    prometheus.Gauge
	QuotaExceeded       prometheus.Gauge
	StreamMessages      *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		UpstreamRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geotweet_upstream_requests_total",
			Help: "Total number of requests sent to the geocoding provider, by outcome.",
		}, []string{"outcome"}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geotweet_upstream_request_duration_seconds",
			Help:    "Duration of requests to the geocoding provider API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		Resolutions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geotweet_resolutions_total",
			Help: "Total number of resolved records, by the branch that located them.",
		}, []string{"source"}),
		CacheLookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geotweet_cache_lookups_total",
			Help: "Total number of address cache lookups, by result.",
		}, []string{"result"}),
		InlineParseFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "geotweet_inline_parse_failures_total",
			Help: "Total number of profile locations that looked like coordinates but did not parse.",
		}),
		ThrottleInterval: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "geotweet_throttle_interval_seconds",
			Help: "Current minimum interval between upstream requests.",
		}),
		QuotaExceeded: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "geotweet_quota_exceeded",
			Help: "1 once the daily upstream quota has been exhausted.",
		}),
		StreamMessages: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geotweet_stream_messages_total",
			Help: "Total number of feed messages handled by the stream loop, by status.",
		}, []string{"status"}),
	}
}
