package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryLatency records repository query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "squadfeed_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// FeedPagesServed counts feed pages by ranking order.
	FeedPagesServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "squadfeed_feed_pages_total",
		Help: "Feed pages served by ranking order",
	}, []string{"order"})

	// EngagementEvents counts upvote and view outcomes.
	EngagementEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "squadfeed_engagement_events_total",
		Help: "Engagement operations by kind and outcome",
	}, []string{"kind", "outcome"})

	// CounterFloorHits counts decrements that found the counter already at zero.
	CounterFloorHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "squadfeed_upvote_counter_floor_hits_total",
		Help: "Upvote removals that found the denormalized counter already at zero",
	})

	// StreakTransitions counts streak touches by transition.
	StreakTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "squadfeed_streak_transitions_total",
		Help: "Streak touches by resulting transition",
	}, []string{"transition"})

	// StreakConflicts counts conditional streak writes that lost to a concurrent touch.
	StreakConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "squadfeed_streak_write_conflicts_total",
		Help: "Streak conditional writes that affected no rows",
	})

	// CacheLookups counts streak cache lookups by result (hit, miss, error, open).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "squadfeed_streak_cache_lookups_total",
		Help: "Streak cache lookups by result",
	}, []string{"result"})

	// TagsExtracted observes how many tags each extraction produced.
	TagsExtracted = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "squadfeed_tags_extracted",
		Help:    "Number of vocabulary tags produced per extraction",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 10},
	})
)

// TrackQuery returns a func that records the elapsed query time when called (typically deferred).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
