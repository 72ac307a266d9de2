package notification

import (
	"context"
	"time"

	"github.com/kapu/fclog-bot-go/internal/adapter"
	"github.com/kapu/fclog-bot-go/internal/constants"
	"github.com/kapu/fclog-bot-go/internal/domain"
	"github.com/kapu/fclog-bot-go/internal/util"
	"github.com/kapu/fclog-bot-go/internal/webhook"
	"go.uber.org/zap"
)

// DeliveryTarget is one destination a payload can be sent to.
type DeliveryTarget interface {
	Kind() domain.TargetKind
	// ID identifies the target in logs and metrics. It never contains secrets.
	ID() string
	Send(ctx context.Context, payload *domain.Payload) error
}

// ChatSender posts plain text to a chat room.
type ChatSender interface {
	SendMessage(ctx context.Context, room, message string) error
}

// WebhookSender executes a webhook.
type WebhookSender interface {
	Execute(ctx context.Context, webhookURL string, msg *webhook.Message) error
}

// ChannelTarget delivers to a chat room as formatted text.
type ChannelTarget struct {
	room      string
	sender    ChatSender
	formatter *adapter.ResponseFormatter
}

func NewChannelTarget(room string, sender ChatSender, formatter *adapter.ResponseFormatter) *ChannelTarget {
	return &ChannelTarget{room: room, sender: sender, formatter: formatter}
}

func (t *ChannelTarget) Kind() domain.TargetKind { return domain.TargetChatChannel }
func (t *ChannelTarget) ID() string              { return t.room }

func (t *ChannelTarget) Send(ctx context.Context, payload *domain.Payload) error {
	return t.sender.SendMessage(ctx, t.room, t.formatter.FormatPayload(payload))
}

// WebhookTarget delivers to a Discord-compatible webhook as an embed, posted
// under the configured display identity.
type WebhookTarget struct {
	url      string
	identity domain.WebhookIdentity
	sender   WebhookSender
}

func NewWebhookTarget(url string, identity domain.WebhookIdentity, sender WebhookSender) *WebhookTarget {
	return &WebhookTarget{url: url, identity: identity, sender: sender}
}

func (t *WebhookTarget) Kind() domain.TargetKind { return domain.TargetWebhook }
func (t *WebhookTarget) ID() string              { return util.MaskURL(t.url) }

func (t *WebhookTarget) Send(ctx context.Context, payload *domain.Payload) error {
	return t.sender.Execute(ctx, t.url, buildWebhookMessage(payload, t.identity))
}

func buildWebhookMessage(payload *domain.Payload, identity domain.WebhookIdentity) *webhook.Message {
	embed := webhook.Embed{
		Title: payload.Title,
		Color: payload.Color,
	}
	if !payload.Timestamp.IsZero() {
		embed.Timestamp = payload.Timestamp.UTC().Format(time.RFC3339)
	}
	if payload.ThumbnailURL != "" {
		embed.Thumbnail = &webhook.EmbedThumbnail{URL: payload.ThumbnailURL}
	}
	for _, f := range payload.Fields {
		if f.Value == "" {
			continue
		}
		embed.Fields = append(embed.Fields, webhook.EmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}

	return &webhook.Message{
		Username:  util.TruncateString(identity.Name, constants.StringLimits.WebhookUsername),
		AvatarURL: identity.AvatarURL,
		Embeds:    []webhook.Embed{embed},
	}
}

// TargetFactory turns a NotificationConfig into concrete targets.
type TargetFactory struct {
	chat      ChatSender
	webhooks  WebhookSender
	formatter *adapter.ResponseFormatter
	logger    *zap.Logger
}

// NewTargetFactory builds a factory. chat may be nil when no chat bridge is
// configured; channel targets are then skipped with a warning.
func NewTargetFactory(chat ChatSender, webhooks WebhookSender, formatter *adapter.ResponseFormatter, logger *zap.Logger) *TargetFactory {
	if formatter == nil {
		formatter = adapter.NewResponseFormatter("")
	}
	return &TargetFactory{
		chat:      chat,
		webhooks:  webhooks,
		formatter: formatter,
		logger:    logger,
	}
}

func (f *TargetFactory) Targets(cfg *domain.NotificationConfig) []DeliveryTarget {
	if cfg.IsEmpty() {
		return nil
	}

	targets := make([]DeliveryTarget, 0, len(cfg.Channels)+len(cfg.Webhooks))
	channels := util.UniqueStrings(cfg.Channels)
	if len(channels) > 0 && f.chat == nil {
		f.logger.Warn("Channel targets configured without a chat bridge; skipping",
			zap.Int("channels", len(channels)),
		)
	} else {
		for _, room := range channels {
			targets = append(targets, NewChannelTarget(room, f.chat, f.formatter))
		}
	}

	if f.webhooks != nil {
		for _, hook := range util.UniqueStrings(cfg.Webhooks) {
			targets = append(targets, NewWebhookTarget(hook, cfg.WebhookIdentity, f.webhooks))
		}
	}

	return targets
}
