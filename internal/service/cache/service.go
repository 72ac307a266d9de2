package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kapu/fclog-bot-go/internal/constants"
	"github.com/kapu/fclog-bot-go/internal/domain"
	"github.com/kapu/fclog-bot-go/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type CacheService struct {
	client *redis.Client
	logger *zap.Logger
}

type CacheConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// releaseLockScript deletes the lock only if it still holds our token.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewCacheService(cfg CacheConfig, logger *zap.Logger) (*CacheService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.NewCacheError("failed to connect to Redis", "ping", "", err)
	}

	logger.Info("Redis connected",
		zap.String("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		zap.Int("db", cfg.DB),
	)

	return NewCacheServiceFromClient(client, logger), nil
}

// NewCacheServiceFromClient wraps an existing client.
func NewCacheServiceFromClient(client *redis.Client, logger *zap.Logger) *CacheService {
	return &CacheService{
		client: client,
		logger: logger,
	}
}

// Get decodes the JSON value at key into dest. A missing key returns
// found=false and no error.
func (c *CacheService) Get(ctx context.Context, key string, dest any) (bool, error) {
	value, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.logger.Error("Cache get failed", zap.String("key", key), zap.Error(err))
		return false, errors.NewCacheError("get failed", "get", key, err)
	}

	if dest != nil {
		if err := json.Unmarshal([]byte(value), dest); err != nil {
			c.logger.Error("Cache unmarshal failed", zap.String("key", key), zap.Error(err))
			return false, errors.NewCacheError("unmarshal failed", "get", key, err)
		}
	}

	return true, nil
}

func (c *CacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return errors.NewCacheError("marshal failed", "set", key, err)
	}

	if err := c.client.Set(ctx, key, jsonData, ttl).Err(); err != nil {
		c.logger.Error("Cache set failed", zap.String("key", key), zap.Error(err))
		return errors.NewCacheError("set failed", "set", key, err)
	}

	return nil
}

// GetNotificationConfig reads the delivery targets published by operators.
func (c *CacheService) GetNotificationConfig(ctx context.Context) (*domain.NotificationConfig, error) {
	var cfg domain.NotificationConfig
	found, err := c.Get(ctx, constants.CacheKeys.NotificationConfig, &cfg)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.NewCacheError("notification config not published", "get", constants.CacheKeys.NotificationConfig, nil)
	}
	return &cfg, nil
}

func (c *CacheService) SetNotificationConfig(ctx context.Context, cfg *domain.NotificationConfig) error {
	if cfg == nil {
		return fmt.Errorf("notification config must not be nil")
	}
	if err := c.Set(ctx, constants.CacheKeys.NotificationConfig, cfg, 0); err != nil {
		return err
	}
	c.logger.Info("Notification config published",
		zap.Int("channels", len(cfg.Channels)),
		zap.Int("webhooks", len(cfg.Webhooks)),
	)
	return nil
}

// ErrLockHeld is returned by AcquireLock when another holder owns the lock.
var ErrLockHeld = stderrors.New("lock held by another process")

// AcquireLock takes a TTL-bounded lock on name. The returned release func is
// safe to call more than once and never removes a lock taken by someone else.
func (c *CacheService) AcquireLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context), error) {
	key := constants.CacheKeys.CycleLockPrefix + name
	token := uuid.NewString()

	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		c.logger.Error("Cache lock acquire failed", zap.String("key", key), zap.Error(err))
		return nil, errors.NewCacheError("lock acquire failed", "setnx", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	release := func(ctx context.Context) {
		if err := releaseLockScript.Run(ctx, c.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			c.logger.Warn("Cache lock release failed", zap.String("key", key), zap.Error(err))
		}
	}
	return release, nil
}

// RecordCycle stores the latest cycle report for the organization.
func (c *CacheService) RecordCycle(ctx context.Context, organizationID string, report *domain.CycleReport) error {
	return c.Set(ctx, constants.CacheKeys.LastCyclePrefix+organizationID, report, 0)
}

// LastCycle returns the latest cycle report, or nil if none was recorded.
func (c *CacheService) LastCycle(ctx context.Context, organizationID string) (*domain.CycleReport, error) {
	var report domain.CycleReport
	found, err := c.Get(ctx, constants.CacheKeys.LastCyclePrefix+organizationID, &report)
	if err != nil || !found {
		return nil, err
	}
	return &report, nil
}

func (c *CacheService) Close() error {
	if err := c.client.Close(); err != nil {
		c.logger.Error("Failed to close Redis connection", zap.Error(err))
		return err
	}
	c.logger.Info("Redis disconnected")
	return nil
}

// Ping reports whether Redis answers.
func (c *CacheService) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return errors.NewCacheError("redis unreachable", "ping", "", err)
	}
	return nil
}
