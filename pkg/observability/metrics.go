package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aretw0/duzhibot/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "duzhibot"

// Metrics owns a private registry, so tests and several bots in one process do not collide.
type Metrics struct {
	registry *prometheus.Registry

	stateVisits *prometheus.CounterVec
	commands    *prometheus.CounterVec
	webhook     *prometheus.HistogramVec
}

// NewMetrics creates the collectors. Go runtime and process collectors are included.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stateVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "state_visits_total",
			Help:      "Total number of world state entries.",
		}, []string{"path"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "commands_total",
			Help:      "Messages handled, by parsed command and whether the world accepted it.",
		}, []string{"command", "accepted"}),
		webhook: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "webhook_duration_seconds",
			Help:      "Time spent handling one webhook delivery.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		m.stateVisits,
		m.commands,
		m.webhook,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for extra collectors and for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks counts state entries and commands.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(_ context.Context, ev *domain.StateEvent) {
			m.stateVisits.WithLabelValues(ev.Path).Inc()
		},
		OnCommand: func(_ context.Context, ev *domain.CommandEvent) {
			cmd := ev.Command
			if cmd == "" {
				cmd = "none"
			}
			m.commands.WithLabelValues(cmd, strconv.FormatBool(ev.Accepted)).Inc()
		},
	}
}

// ObserveWebhook records how long one webhook delivery took.
func (m *Metrics) ObserveWebhook(status int, d time.Duration) {
	m.webhook.WithLabelValues(strconv.Itoa(status)).Observe(d.Seconds())
}
