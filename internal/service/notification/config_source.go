package notification

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/kapu/fclog-bot-go/internal/domain"
	"github.com/kapu/fclog-bot-go/internal/util"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ConfigSource yields the current NotificationConfig. It is read once per
// cycle so edits take effect without a restart.
type ConfigSource interface {
	Current(ctx context.Context) (*domain.NotificationConfig, error)
}

// StaticSource always returns the same config, typically built from env vars.
type StaticSource struct {
	cfg *domain.NotificationConfig
}

func NewStaticSource(cfg *domain.NotificationConfig) *StaticSource {
	return &StaticSource{cfg: normalizeConfig(cfg)}
}

func (s *StaticSource) Current(context.Context) (*domain.NotificationConfig, error) {
	return s.cfg, nil
}

// FileSource re-reads a YAML file on every call.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Current(context.Context) (*domain.NotificationConfig, error) {
	return LoadConfigFile(s.path)
}

// LoadConfigFile parses a YAML notification config:
//
//	channels: [room-a]
//	webhooks: [https://discord.com/api/webhooks/1/token]
//	webhook_identity:
//	  name: FC Log
//	  avatar_url: https://...
func LoadConfigFile(path string) (*domain.NotificationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read notification config %s: %w", path, err)
	}

	var cfg domain.NotificationConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse notification config %s: %w", path, err)
	}
	return normalizeConfig(&cfg), nil
}

// PublishedConfigReader reads a config published to a shared store.
type PublishedConfigReader interface {
	GetNotificationConfig(ctx context.Context) (*domain.NotificationConfig, error)
}

// StoreSource reads the config operators published to Redis.
type StoreSource struct {
	reader PublishedConfigReader
}

func NewStoreSource(reader PublishedConfigReader) *StoreSource {
	return &StoreSource{reader: reader}
}

func (s *StoreSource) Current(ctx context.Context) (*domain.NotificationConfig, error) {
	cfg, err := s.reader.GetNotificationConfig(ctx)
	if err != nil {
		return nil, err
	}
	return normalizeConfig(cfg), nil
}

// FallbackSource remembers the last config read successfully and serves it
// when the underlying source fails.
type FallbackSource struct {
	source ConfigSource
	logger *zap.Logger

	mu   sync.Mutex
	last *domain.NotificationConfig
}

func NewFallbackSource(source ConfigSource, logger *zap.Logger) *FallbackSource {
	return &FallbackSource{source: source, logger: logger}
}

func (s *FallbackSource) Current(ctx context.Context) (*domain.NotificationConfig, error) {
	cfg, err := s.source.Current(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		s.last = cfg
		return cfg, nil
	}

	if s.last == nil {
		return nil, err
	}

	s.logger.Warn("Notification config read failed; using last known config",
		zap.Int("channels", len(s.last.Channels)),
		zap.Int("webhooks", len(s.last.Webhooks)),
		zap.Error(err),
	)
	return s.last, nil
}

func normalizeConfig(cfg *domain.NotificationConfig) *domain.NotificationConfig {
	if cfg == nil {
		return &domain.NotificationConfig{}
	}
	return &domain.NotificationConfig{
		Channels:        util.UniqueStrings(cfg.Channels),
		Webhooks:        util.UniqueStrings(cfg.Webhooks),
		WebhookIdentity: cfg.WebhookIdentity,
	}
}
