package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики движка регистрируются в глобальном реестре: сервис отдаёт их
// через /metrics (gin-prometheus в main).
var (
	quoteRecalcTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_engine_quote_recalculations_total",
			Help: "Total number of quote recalculations, partitioned by result.",
		},
		[]string{"result"},
	)
	quoteCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_engine_quote_cache_hits_total",
			Help: "Total number of quote estimates served from the injected quote cache.",
		},
	)
	soundFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_engine_sound_fallback_total",
			Help: "Total number of local sound-cost fallback activations, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
	draftSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_engine_draft_saves_total",
			Help: "Total number of draft saves, partitioned by result.",
		},
		[]string{"result"},
	)
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_engine_submissions_total",
			Help: "Total number of booking submissions, partitioned by result.",
		},
		[]string{"result"},
	)
	offlineEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_engine_offline_enqueued_total",
			Help: "Total number of submissions deferred to the offline queue.",
		},
	)
)
