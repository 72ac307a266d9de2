package metrics

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kapu/fclog-bot-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func TestObserveCycle(t *testing.T) {
	m := New(nil)
	started := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

	m.ObserveCycle(&domain.CycleReport{
		Outcome:    domain.CycleCompleted,
		Events:     map[domain.EventKind]int{domain.EventJoined: 2, domain.EventLeft: 1},
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
	})
	m.ObserveCycle(&domain.CycleReport{Outcome: domain.CycleSkipped})

	if got := testutil.ToFloat64(m.cycles.WithLabelValues("completed")); got != 1 {
		t.Fatalf("expected 1 completed cycle, got %v", got)
	}
	if got := testutil.ToFloat64(m.cycles.WithLabelValues("skipped")); got != 1 {
		t.Fatalf("expected 1 skipped cycle, got %v", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("Joined")); got != 2 {
		t.Fatalf("expected 2 joined events, got %v", got)
	}
	if got := testutil.CollectAndCount(m.cycleDuration); got != 1 {
		t.Fatalf("expected one duration series, got %d", got)
	}
}

func TestDeliveryAndRosterSize(t *testing.T) {
	m := New(nil)
	m.ObserveDelivery(domain.TargetWebhook, DeliveryFailed)
	m.ObserveDelivery(domain.TargetWebhook, DeliveryFailed)
	m.ObserveDelivery(domain.TargetChatChannel, DeliverySent)
	m.SetRosterSize(42)

	if got := testutil.ToFloat64(m.deliveries.WithLabelValues("webhook", "failed")); got != 2 {
		t.Fatalf("expected 2 failed webhook deliveries, got %v", got)
	}
	if got := testutil.ToFloat64(m.rosterMembers); got != 42 {
		t.Fatalf("expected roster gauge 42, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCycle(&domain.CycleReport{Outcome: domain.CycleCompleted})
	m.ObserveDelivery(domain.TargetWebhook, DeliverySent)
	m.SetRosterSize(1)
}

func TestReadinessReportsFailingDependency(t *testing.T) {
	checks := map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return stderrors.New("connection refused") },
	}
	srv := NewServer(":0", New(nil), checks, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var status map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if status["postgres"] != "ok" || status["redis"] != "connection refused" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestReadinessAllHealthy(t *testing.T) {
	srv := NewServer(":0", New(nil), map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
	}, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected metrics endpoint, got %d", rec.Code)
	}
}
