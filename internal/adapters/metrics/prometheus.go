// Package metrics exposes client counters on a private Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/bnema/sweetdata-cli/internal/domain"
	"github.com/bnema/sweetdata-cli/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sd"

type Registry struct {
	reg *prometheus.Registry

	fetchRequests   *prometheus.CounterVec
	fetchAttempts   *prometheus.HistogramVec
	fetchDuration   *prometheus.HistogramVec
	transitions     *prometheus.CounterVec
	connectionState *prometheus.GaugeVec
	polls           *prometheus.CounterVec
	rewards         *prometheus.CounterVec
}

var _ ports.Metrics = (*Registry)(nil)

func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		fetchRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_requests_total",
				Help:      "Logical requests issued through the fetcher, by final outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		fetchAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_attempts",
				Help:      "Attempts spent per logical request",
				Buckets:   []float64{1, 2, 3, 4, 5, 6},
			},
			[]string{"endpoint"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Wall time per logical request including backoff",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connection_transitions_total",
				Help:      "Connection state machine transitions",
			},
			[]string{"from", "to"},
		),
		connectionState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connection_state",
				Help:      "1 for the current connection state, 0 otherwise",
			},
			[]string{"state"},
		),
		polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telemetry_polls_total",
				Help:      "Telemetry status polls, by outcome",
			},
			[]string{"outcome"},
		),
		rewards: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rewards_total",
				Help:      "Reward actions, by outcome",
			},
			[]string{"action", "outcome"},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.fetchRequests,
		r.fetchAttempts,
		r.fetchDuration,
		r.transitions,
		r.connectionState,
		r.polls,
		r.rewards,
	)
	r.setState(domain.ConnectionDisconnected)

	return r
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

func (r *Registry) ObserveFetch(endpoint string, outcome ports.FetchOutcome, attempts int, elapsed time.Duration) {
	r.fetchRequests.WithLabelValues(endpoint, string(outcome)).Inc()
	r.fetchAttempts.WithLabelValues(endpoint).Observe(float64(attempts))
	r.fetchDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func (r *Registry) ObserveTransition(from, to domain.ConnectionState) {
	r.transitions.WithLabelValues(string(from), string(to)).Inc()
	r.setState(to)
}

func (r *Registry) ObservePoll(ok bool) {
	r.polls.WithLabelValues(outcome(ok)).Inc()
}

func (r *Registry) ObserveReward(action domain.RewardAction, ok bool) {
	r.rewards.WithLabelValues(string(action), outcome(ok)).Inc()
}

func (r *Registry) setState(current domain.ConnectionState) {
	for _, state := range []domain.ConnectionState{
		domain.ConnectionDisconnected,
		domain.ConnectionHandshaking,
		domain.ConnectionConnected,
		domain.ConnectionFailed,
	} {
		value := 0.0
		if state == current {
			value = 1
		}
		r.connectionState.WithLabelValues(string(state)).Set(value)
	}
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
