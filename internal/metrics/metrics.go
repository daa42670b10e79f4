// Package metrics provides Prometheus metrics for the shrubbery service.
//
// Every recording method is safe on a nil *Manager, so components built
// without metrics (tests, the CLI) need no special casing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Board labels for leaderboard queries
const (
	BoardPlayers = "players"
	BoardShrubs  = "shrubs"
)

// Manager owns a private registry and every metric the service records
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry
	goCollectors     bool

	playersCreated    prometheus.Counter
	shrubsCreated     prometheus.Counter
	creationFailures  *prometheus.CounterVec
	votesCast         prometheus.Counter
	votesRejected     *prometheus.CounterVec
	votesRetracted    prometheus.Counter
	leaderboardReads  *prometheus.CounterVec
	httpRequestTiming *prometheus.HistogramVec
	panicsRecovered   *prometheus.CounterVec
}

// Option applies a configuration option to the Manager
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom buckets for the request duration histogram
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRegistry registers metrics on the given registry instead of a new one
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// WithRuntimeCollectors adds the Go runtime and process collectors
func WithRuntimeCollectors() Option {
	return func(m *Manager) {
		m.goCollectors = true
	}
}

// NewManager creates a metrics manager on a private registry
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "shrubbery",
		histogramBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	if m.goCollectors {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	auto := promauto.With(m.registry)

	m.playersCreated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "players_created_total",
		Help:      "Total number of players registered",
	})
	m.shrubsCreated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "shrubs_created_total",
		Help:      "Total number of shrubs persisted by the creation workflow",
	})
	m.creationFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "creation_failures_total",
		Help:      "Shrub creation failures by workflow state",
	}, []string{"state"})
	m.votesCast = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "votes_cast_total",
		Help:      "Total number of votes recorded, including self-votes",
	})
	m.votesRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "votes_rejected_total",
		Help:      "Votes refused by the ledger, by reason",
	}, []string{"reason"})
	m.votesRetracted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "votes_retracted_total",
		Help:      "Total number of votes removed",
	})
	m.leaderboardReads = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "leaderboard_queries_total",
		Help:      "Leaderboard queries by board",
	}, []string{"board"})
	m.httpRequestTiming = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route template, method and status",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method", "status"})
	m.panicsRecovered = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_panics_recovered_total",
		Help:      "Handler panics turned into 500 responses, by route template",
	}, []string{"route"})

	return m
}

// Registry exposes the underlying registry (for tests and custom collectors)
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Manager) PlayerCreated() {
	if m == nil {
		return
	}
	m.playersCreated.Inc()
}

func (m *Manager) ShrubCreated() {
	if m == nil {
		return
	}
	m.shrubsCreated.Inc()
}

// CreationFailed counts a creation workflow that stopped in state
func (m *Manager) CreationFailed(state string) {
	if m == nil {
		return
	}
	m.creationFailures.WithLabelValues(state).Inc()
}

func (m *Manager) VoteCast() {
	if m == nil {
		return
	}
	m.votesCast.Inc()
}

// VoteRejected counts a refused vote; reason is a short stable slug
func (m *Manager) VoteRejected(reason string) {
	if m == nil {
		return
	}
	m.votesRejected.WithLabelValues(reason).Inc()
}

func (m *Manager) VoteRetracted() {
	if m == nil {
		return
	}
	m.votesRetracted.Inc()
}

// LeaderboardQueried counts a read of board (BoardPlayers or BoardShrubs)
func (m *Manager) LeaderboardQueried(board string) {
	if m == nil {
		return
	}
	m.leaderboardReads.WithLabelValues(board).Inc()
}

// ObserveHTTPRequest records one request against its route template
func (m *Manager) ObserveHTTPRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestTiming.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func (m *Manager) PanicRecovered(route string) {
	if m == nil {
		return
	}
	m.panicsRecovered.WithLabelValues(route).Inc()
}
