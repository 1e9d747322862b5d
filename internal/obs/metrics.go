// Copyright 2025 James Ross
package obs

import (
	"fmt"
	"net/http"

	"github.com/flyingrobots/wfm-core/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BlocksGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wfm_timetable_blocks_generated_total",
		Help: "Total number of timetable blocks produced by the Planner",
	})
	PlannerShiftsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wfm_planner_shifts_processed_total",
		Help: "Total number of shifts run through the Planner pipeline",
	})
	ComplianceChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wfm_compliance_checks_total",
		Help: "Total number of single-employee compliance checks, by cache outcome",
	}, []string{"cache"})
	ComplianceCheckDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wfm_compliance_check_duration_seconds",
		Help:    "Duration of single-employee compliance checks",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	BulkValidationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wfm_bulk_validation_duration_seconds",
		Help:    "Duration of bulk validation runs",
		Buckets: prometheus.DefBuckets,
	})
	ViolationsDetected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wfm_violations_detected_total",
		Help: "Total violations detected, by rule id and severity",
	}, []string{"rule", "severity"})
	AlertsEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wfm_alerts_enqueued_total",
		Help: "Total alerts accepted onto the alert queue",
	})
	AlertsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wfm_alerts_dropped_total",
		Help: "Total alerts dropped due to cooldown dedup or queue capacity",
	})
	AlertsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wfm_alerts_sent_total",
		Help: "Total alerts drained by the alert processor",
	})
	AlertQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wfm_alert_queue_depth",
		Help: "Current number of alerts waiting in the bounded alert queue",
	})
	CoverageGapsDetected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wfm_coverage_gaps_detected_total",
		Help: "Total coverage gaps detected, by severity",
	}, []string{"severity"})
	CoverageStatusGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wfm_coverage_status",
		Help: "1 if the service's current interval is in the given status, else 0",
	}, []string{"service", "status"})
	OptimizerScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wfm_optimizer_score",
		Help: "Optimization score of the last assignment run, by mode",
	}, []string{"mode"})
	RuleMatrixReloads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wfm_rule_matrix_reloads_total",
		Help: "Total number of rule-catalog TTL reloads",
	})
)

func init() {
	prometheus.MustRegister(
		BlocksGenerated, PlannerShiftsProcessed,
		ComplianceChecks, ComplianceCheckDuration, BulkValidationDuration,
		ViolationsDetected,
		AlertsEnqueued, AlertsDropped, AlertsSent, AlertQueueDepth,
		CoverageGapsDetected, CoverageStatusGauge,
		OptimizerScore, RuleMatrixReloads,
	)
}

// StartMetricsServer exposes /metrics and returns a server for controlled
// shutdown. Retained for callers that don't need health/readiness
// endpoints; prefer StartHTTPServer otherwise.
func StartMetricsServer(cfg *config.Config) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Observability.MetricsPort), Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
