package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var reportsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_reports_submitted",
	Help: "Number of content reports accepted",
}, []string{"content_type", "reason"})

var reportsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_reports_rejected",
	Help: "Number of report submissions refused, by cause",
}, []string{"cause"})

var reportWeights = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "moderation_report_weight",
	Help:    "Final weight of submitted reports",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 1.5, 2, 3, 5},
})

var autoHideCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_auto_hides",
	Help: "Number of content items hidden automatically",
}, []string{"content_type"})

var textVerdictCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_text_verdicts",
	Help: "Number of text heuristic verdicts, by status",
}, []string{"content_type", "status"})

var trustRecomputeCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moderation_trust_recomputes",
	Help: "Number of trust profile recomputations",
})

var sinkFailureCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_sink_failures",
	Help: "Number of swallowed audit or notification failures",
}, []string{"sink"})

var siteScaleGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "moderation_site_scale",
	Help: "Most recently computed site scale factor",
})
