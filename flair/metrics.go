package flair

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var scanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "tradeflair_scan_duration_sec",
	Help: "Total duration of thread scans and override batches",
}, []string{"kind"})

var scanErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tradeflair_scan_errors",
	Help: "Number of scans or override batches which failed",
}, []string{"kind"})

var entryOutcomeCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tradeflair_entry_outcomes",
	Help: "Number of thread entries evaluated, by outcome",
}, []string{"outcome"})

var creditsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tradeflair_badge_updates",
	Help: "Number of participant badges updated",
}, []string{"direction"})

var reportsFiled = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tradeflair_reports_filed",
	Help: "Number of moderator reports filed",
}, []string{"reason"})

var overrideLineCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tradeflair_override_lines",
	Help: "Number of override lines processed, by status",
}, []string{"status"})

var profileFetches = promauto.NewCounter(prometheus.CounterOpts{
	Name: "tradeflair_profile_fetches",
	Help: "Number of participant profile reads (API calls)",
})
