package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "followup_messages_fetched_total",
			Help: "Total number of sent messages returned by mailbox searches",
		},
	)

	ProviderRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_provider_retries_total",
			Help: "Total number of retried provider calls",
		},
		[]string{"operation"},
	)

	StoreSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_store_saves_total",
			Help: "Total number of tracking store saves",
		},
		[]string{"result"}, // result: success, failed
	)

	RemindersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "followup_reminders_created_total",
			Help: "Total number of calendar reminders created",
		},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "followup_pipeline_duration_seconds",
			Help:    "Duration of ingestion pipeline runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~200s
		},
		[]string{"status"},
	)
)

func RecordRetry(operation string) {
	ProviderRetries.WithLabelValues(operation).Inc()
}

func RecordStoreSave(err error) {
	if err != nil {
		StoreSaves.WithLabelValues("failed").Inc()
		return
	}
	StoreSaves.WithLabelValues("success").Inc()
}

func RecordPipelineRun(status string, duration time.Duration) {
	PipelineDuration.WithLabelValues(status).Observe(duration.Seconds())
}
