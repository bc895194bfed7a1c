package moderation

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var moderationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_moderation_requests_total",
	Help: "Number of moderation requests by content kind and outcome",
}, []string{"kind", "outcome"})

var moderationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "guardian_moderation_duration_seconds",
	Help:    "Duration of moderation requests",
	Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
}, []string{"kind"})

var frameVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_frame_verdicts_total",
	Help: "Number of per-frame verdicts by state",
}, []string{"state"})

var verdictCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_verdict_cache_lookups_total",
	Help: "Number of text verdict cache lookups",
}, []string{"result"})

// Outcome labels.
const (
	outcomeFlagged  = "flagged"
	outcomeClean    = "clean"
	outcomeDegraded = "degraded"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

func recordOutcome(kind string, result *Result, err error) {
	switch {
	case errors.Is(err, ErrInput):
		moderationRequests.WithLabelValues(kind, outcomeRejected).Inc()
	case err != nil:
		moderationRequests.WithLabelValues(kind, outcomeFailed).Inc()
	case result.Degraded:
		moderationRequests.WithLabelValues(kind, outcomeDegraded).Inc()
	case result.Flagged:
		moderationRequests.WithLabelValues(kind, outcomeFlagged).Inc()
	default:
		moderationRequests.WithLabelValues(kind, outcomeClean).Inc()
	}
}
