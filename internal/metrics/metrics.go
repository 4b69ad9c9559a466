package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenerationsTotal counts generation attempts, labeled by status.
	GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pluginright_generations_total",
		Help: "The total number of plugin generation requests",
	}, []string{"status"}) // status: success, failed

	// GenerationDuration measures the completion round trip per backend.
	GenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pluginright_generation_duration_seconds",
		Help:    "Time taken by the completion endpoint to answer",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})

	// CredentialResolutions counts credential lookups at startup
	CredentialResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pluginright_credential_resolutions_total",
		Help: "The total number of API key resolutions",
	}, []string{"source", "status"}) // status: success, error

	// BatchJobsSkipped counts job files that could not be parsed
	BatchJobsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pluginright_batch_jobs_skipped_total",
		Help: "Total number of batch job files skipped",
	}, []string{"reason"}) // reason: invalid_json, missing_description, read_error

	// APIRequests counts HTTP API requests by route and response code
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pluginright_api_requests_total",
		Help: "Total number of HTTP API requests",
	}, []string{"route", "code"})
)

// WriteTextfile dumps the default registry in the text exposition format so a
// node_exporter textfile collector can pick up metrics from a short-lived run.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
