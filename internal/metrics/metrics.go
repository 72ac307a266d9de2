package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kapu/fclog-bot-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const readinessTimeout = 3 * time.Second

// Delivery outcomes recorded per target kind.
const (
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
	DeliverySkipped = "skipped"
)

// Metrics holds the roster tracker collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	rosterMembers prometheus.Gauge
	events        *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
}

// New registers every collector on registry. A nil registry gets a fresh one.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	promautoFactory := promauto.With(registry)

	m := &Metrics{registry: registry}
	m.cycles = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "fclog_cycles_total",
		Help: "number of scheduler cycles by outcome",
	}, []string{"outcome"})
	m.cycleDuration = promautoFactory.NewHistogram(prometheus.HistogramOpts{
		Name:    "fclog_cycle_duration_seconds",
		Help:    "wall time of a scheduler cycle",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})
	m.rosterMembers = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "fclog_roster_members",
		Help: "number of members in the last committed snapshot",
	})
	m.events = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "fclog_events_total",
		Help: "number of change events emitted by kind",
	}, []string{"kind"})
	m.deliveries = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "fclog_deliveries_total",
		Help: "number of delivery attempts by target kind and outcome",
	}, []string{"target", "outcome"})

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveCycle records the outcome and duration of a finished cycle.
func (m *Metrics) ObserveCycle(report *domain.CycleReport) {
	if m == nil || report == nil {
		return
	}
	m.cycles.WithLabelValues(string(report.Outcome)).Inc()
	if report.Outcome == domain.CycleSkipped {
		return
	}
	m.cycleDuration.Observe(report.Duration().Seconds())
	for kind, n := range report.Events {
		m.events.WithLabelValues(kind.String()).Add(float64(n))
	}
}

func (m *Metrics) SetRosterSize(n int) {
	if m == nil {
		return
	}
	m.rosterMembers.Set(float64(n))
}

func (m *Metrics) ObserveDelivery(target domain.TargetKind, outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(target.String(), outcome).Inc()
}

// ReadinessCheck pings one dependency. A nil error means ready.
type ReadinessCheck func(ctx context.Context) error

// Server exposes the registry on /metrics and dependency health on /readyz.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

func NewServer(addr string, m *Metrics, checks map[string]ReadinessCheck, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	mux.Handle("/readyz", readinessHandler(checks, logger))

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 60 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

func readinessHandler(checks map[string]ReadinessCheck, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := make(map[string]string, len(checks))
		ready := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				ready = false
				status[name] = err.Error()
				logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
				continue
			}
			status[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	s.logger.Info("Serving prometheus metrics", zap.String("addr", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics listener failed", zap.Error(err))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
