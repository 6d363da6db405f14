package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Notification dispatch metrics
	NotificationsCreated prometheus.Counter
	ChannelSends         *prometheus.CounterVec
	DispatchLatency      prometheus.Histogram
	NotificationsExpired prometheus.Counter

	// Rating engine metrics
	RatingsSubmitted prometheus.Counter
	RatingsRejected  *prometheus.CounterVec
	ConsensusReached prometheus.Counter

	// Archival scheduler metrics
	EventsArchived   prometheus.Counter
	ArchiveFailures  prometheus.Counter
	RemindersEmitted *prometheus.CounterVec
	SweepLatency     prometheus.Histogram
}

// New creates and registers all application metrics under the given
// namespace.
func New(namespace string) *Metrics {
	return &Metrics{
		NotificationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Total number of notifications created",
		}),
		ChannelSends: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_channel_sends_total",
			Help:      "Notification channel send attempts by channel and outcome",
		}, []string{"channel", "status"}),
		DispatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notification_dispatch_duration_seconds",
			Help:      "Time spent fanning a notification out across channels",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		NotificationsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_expired_total",
			Help:      "Total number of notifications transitioned to expired",
		}),
		RatingsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratings_submitted_total",
			Help:      "Total number of ratings persisted",
		}),
		RatingsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratings_rejected_total",
			Help:      "Ratings rejected before persistence, by reason",
		}, []string{"reason"}),
		ConsensusReached: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rating_consensus_reached_total",
			Help:      "Applications that reached bilateral rating completion",
		}),
		EventsArchived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_archived_total",
			Help:      "Events transitioned to archived",
		}),
		ArchiveFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_archive_failures_total",
			Help:      "Events that failed to archive during a sweep",
		}),
		RemindersEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rating_reminders_emitted_total",
			Help:      "Rating reminders emitted by escalation tier",
		}, []string{"tier"}),
		SweepLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "archival_sweep_duration_seconds",
			Help:      "Time spent in one archival sweep",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30},
		}),
	}
}
