package domain

import "time"

// TargetKind tags a delivery target variant.
type TargetKind string

const (
	TargetChatChannel TargetKind = "channel"
	TargetWebhook     TargetKind = "webhook"
)

func (k TargetKind) String() string {
	return string(k)
}

// WebhookIdentity overrides the display name and avatar of webhook posts.
type WebhookIdentity struct {
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty" yaml:"avatar_url,omitempty"`
}

// NotificationConfig is the current set of delivery targets.
type NotificationConfig struct {
	Channels        []string        `json:"channels" yaml:"channels"`
	Webhooks        []string        `json:"webhooks" yaml:"webhooks"`
	WebhookIdentity WebhookIdentity `json:"webhook_identity" yaml:"webhook_identity"`
}

// IsEmpty reports whether no target is configured.
func (c *NotificationConfig) IsEmpty() bool {
	return c == nil || (len(c.Channels) == 0 && len(c.Webhooks) == 0)
}

// PayloadField is a key/value detail line.
type PayloadField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Payload is the transport-neutral presentation of a ChangeEvent.
type Payload struct {
	Kind         EventKind      `json:"kind"`
	Title        string         `json:"title"`
	Color        int            `json:"color"`
	ThumbnailURL string         `json:"thumbnail_url,omitempty"`
	Fields       []PayloadField `json:"fields"`
	Timestamp    time.Time      `json:"timestamp"`
}
