package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики платформы.
var (
	// SessionsStarted — количество запущенных сессий.
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "botflow_sessions_started_total",
		Help: "Total number of flow sessions started.",
	})

	// SessionsClosed — количество закрытых сессий по финальному статусу.
	SessionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botflow_sessions_closed_total",
		Help: "Total number of flow sessions closed, by final status.",
	}, []string{"status"})

	// Interactions — количество записей журнала по типу узла.
	Interactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botflow_interactions_total",
		Help: "Total number of interactions recorded, by node type.",
	}, []string{"node_type"})

	// EffectRetries — количество повторных попыток внешних вызовов.
	EffectRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "botflow_external_call_retries_total",
		Help: "Total number of external call retry attempts.",
	})

	// AdvanceDuration — длительность одного advance сессии.
	AdvanceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "botflow_advance_duration_seconds",
		Help:    "Duration of a single session advance.",
		Buckets: prometheus.DefBuckets,
	})

	// SweepsClosed — количество сессий, закрытых sweep-ом по неактивности.
	SweepsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "botflow_sweeper_sessions_closed_total",
		Help: "Total number of idle sessions closed by the sweeper.",
	})

	// WakesResumed — количество сессий, разбуженных по таймеру.
	WakesResumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "botflow_sweeper_sessions_resumed_total",
		Help: "Total number of delayed sessions resumed by the sweeper.",
	})
)
