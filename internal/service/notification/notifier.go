package notification

import (
	"context"
	"time"

	"github.com/kapu/fclog-bot-go/internal/constants"
	"github.com/kapu/fclog-bot-go/internal/domain"
	"github.com/kapu/fclog-bot-go/internal/metrics"
	"github.com/kapu/fclog-bot-go/internal/util"
	"github.com/kapu/fclog-bot-go/pkg/errors"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// TargetProvider builds the delivery targets for a config.
type TargetProvider interface {
	Targets(cfg *domain.NotificationConfig) []DeliveryTarget
}

// NotifierOptions tunes delivery. Zero values fall back to constants.
type NotifierOptions struct {
	LodestoneBaseURL string
	Timeout          time.Duration
	Concurrency      int
}

// Notifier delivers change events to every configured target. Delivery is
// best-effort: failures are logged and counted, never returned.
type Notifier struct {
	targets  TargetProvider
	breakers *util.BreakerSet
	metrics  *metrics.Metrics
	opts     NotifierOptions
	logger   *zap.Logger
}

func NewNotifier(targets TargetProvider, breakers *util.BreakerSet, m *metrics.Metrics, opts NotifierOptions, logger *zap.Logger) *Notifier {
	if opts.Timeout <= 0 {
		opts.Timeout = constants.DeliveryConfig.Timeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = constants.DeliveryConfig.Concurrency
	}
	if breakers == nil {
		breakers = util.NewBreakerSet(
			constants.CircuitBreakerConfig.FailureThreshold,
			constants.CircuitBreakerConfig.ResetTimeout,
			logger,
		)
	}
	return &Notifier{
		targets:  targets,
		breakers: breakers,
		metrics:  m,
		opts:     opts,
		logger:   logger,
	}
}

// NotifyAll delivers events one after another, in order. Targets of a single
// event are served concurrently.
func (n *Notifier) NotifyAll(ctx context.Context, events []*domain.ChangeEvent, cfg *domain.NotificationConfig) {
	if len(events) == 0 {
		return
	}
	if cfg.IsEmpty() {
		n.logger.Info("No delivery targets configured; events recorded only",
			zap.Int("events", len(events)),
		)
		return
	}

	targets := n.targets.Targets(cfg)
	for _, event := range events {
		n.notify(ctx, event, targets)
	}
}

// Notify delivers a single event to every target in cfg.
func (n *Notifier) Notify(ctx context.Context, event *domain.ChangeEvent, cfg *domain.NotificationConfig) {
	if event == nil || cfg.IsEmpty() {
		return
	}
	n.notify(ctx, event, n.targets.Targets(cfg))
}

func (n *Notifier) notify(ctx context.Context, event *domain.ChangeEvent, targets []DeliveryTarget) {
	if len(targets) == 0 {
		return
	}

	payload := Render(event, n.opts.LodestoneBaseURL)
	p := pool.New().WithMaxGoroutines(n.opts.Concurrency)

	for _, target := range targets {
		p.Go(func() {
			n.deliver(ctx, event, payload, target)
		})
	}

	p.Wait()
}

func (n *Notifier) deliver(ctx context.Context, event *domain.ChangeEvent, payload *domain.Payload, target DeliveryTarget) {
	breaker := n.breakers.Get(target.Kind().String() + ":" + target.ID())
	if !breaker.CanExecute() {
		n.metrics.ObserveDelivery(target.Kind(), metrics.DeliverySkipped)
		n.logger.Info("Delivery skipped: circuit open",
			zap.String("target_kind", target.Kind().String()),
			zap.String("target", target.ID()),
			zap.String("character_id", event.CharacterID.String()),
		)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.opts.Timeout)
	defer cancel()

	var sendErr error
	if recovered := panics.Try(func() { sendErr = target.Send(sendCtx, payload) }); recovered != nil {
		sendErr = recovered.AsError()
	}

	if sendErr != nil {
		breaker.RecordFailure()
		n.metrics.ObserveDelivery(target.Kind(), metrics.DeliveryFailed)
		err := errors.NewDeliveryError("delivery failed", target.Kind().String(), target.ID(), sendErr)
		n.logger.Warn("Delivery failed",
			zap.String("target_kind", target.Kind().String()),
			zap.String("target", target.ID()),
			zap.String("event", event.Kind.String()),
			zap.String("character_id", event.CharacterID.String()),
			zap.Error(err),
		)
		return
	}

	breaker.RecordSuccess()
	n.metrics.ObserveDelivery(target.Kind(), metrics.DeliverySent)
	n.logger.Debug("Delivered",
		zap.String("target_kind", target.Kind().String()),
		zap.String("target", target.ID()),
		zap.String("event", event.Kind.String()),
		zap.String("character_id", event.CharacterID.String()),
	)
}
