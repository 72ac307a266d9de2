package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kapu/fclog-bot-go/internal/constants"
	"github.com/kapu/fclog-bot-go/internal/domain"
	"github.com/kapu/fclog-bot-go/internal/util"
)

const (
	RosterSourceXIVAPI    = "xivapi"
	RosterSourceLodestone = "lodestone"

	NotificationSourceEnv   = "env"
	NotificationSourceFile  = "file"
	NotificationSourceRedis = "redis"
)

type Config struct {
	FreeCompany  FreeCompanyConfig
	Roster       RosterConfig
	Scheduler    SchedulerConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Iris         IrisConfig
	Notification NotificationConfig
	Metrics      MetricsConfig
	Logging      LoggingConfig
}

type FreeCompanyConfig struct {
	ID string
}

type RosterConfig struct {
	Source           string
	XIVAPIBaseURL    string
	XIVAPIKey        string
	LodestoneBaseURL string
}

type SchedulerConfig struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	RunOnStart   bool
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type IrisConfig struct {
	BaseURL string
}

type NotificationConfig struct {
	Source          string
	File            string
	Rooms           []string
	Webhooks        []string
	WebhookIdentity domain.WebhookIdentity
	DeliveryTimeout time.Duration
}

// Static returns the env-provided targets as a domain config.
func (n NotificationConfig) Static() *domain.NotificationConfig {
	return &domain.NotificationConfig{
		Channels:        append([]string(nil), n.Rooms...),
		Webhooks:        append([]string(nil), n.Webhooks...),
		WebhookIdentity: n.WebhookIdentity,
	}
}

type MetricsConfig struct {
	Addr string
}

type LoggingConfig struct {
	Level string
	File  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		FreeCompany: FreeCompanyConfig{
			ID: getEnv("FC_ID", ""),
		},
		Roster: RosterConfig{
			Source:           strings.ToLower(getEnv("ROSTER_SOURCE", RosterSourceXIVAPI)),
			XIVAPIBaseURL:    getEnv("XIVAPI_BASE_URL", constants.APIConfig.XIVAPIBaseURL),
			XIVAPIKey:        getEnv("XIVAPI_KEY", ""),
			LodestoneBaseURL: getEnv("LODESTONE_BASE_URL", constants.APIConfig.LodestoneBaseURL),
		},
		Scheduler: SchedulerConfig{
			Interval:     time.Duration(getEnvInt("CHECK_INTERVAL_MINUTES", int(constants.SchedulerConfig.DefaultInterval/time.Minute))) * time.Minute,
			FetchTimeout: time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", int(constants.SchedulerConfig.FetchTimeout/time.Second))) * time.Second,
			RunOnStart:   getEnvBool("RUN_ON_START", true),
		},
		Postgres: PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "fclog"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Database: getEnv("POSTGRES_DB", "fclog"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Iris: IrisConfig{
			BaseURL: getEnv("IRIS_BASE_URL", ""),
		},
		Notification: NotificationConfig{
			Source:   strings.ToLower(getEnv("NOTIFICATION_SOURCE", NotificationSourceEnv)),
			File:     getEnv("NOTIFICATION_CONFIG_FILE", "config/notifications.yaml"),
			Rooms:    util.UniqueStrings(util.ParseCommaSeparated(getEnv("NOTIFY_ROOMS", ""))),
			Webhooks: util.UniqueStrings(util.ParseCommaSeparated(getEnv("NOTIFY_WEBHOOKS", ""))),
			WebhookIdentity: domain.WebhookIdentity{
				Name:      getEnv("WEBHOOK_NAME", "FC Log"),
				AvatarURL: getEnv("WEBHOOK_AVATAR", ""),
			},
			DeliveryTimeout: time.Duration(getEnvInt("DELIVERY_TIMEOUT_SECONDS", int(constants.DeliveryConfig.Timeout/time.Second))) * time.Second,
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ""),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", "logs/fclog.log"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.FreeCompany.ID == "" {
		return fmt.Errorf("FC_ID is required")
	}
	switch c.Roster.Source {
	case RosterSourceXIVAPI:
		if c.Roster.XIVAPIBaseURL == "" {
			return fmt.Errorf("XIVAPI_BASE_URL is required for the xivapi roster source")
		}
	case RosterSourceLodestone:
		if c.Roster.LodestoneBaseURL == "" {
			return fmt.Errorf("LODESTONE_BASE_URL is required for the lodestone roster source")
		}
	default:
		return fmt.Errorf("ROSTER_SOURCE must be %q or %q, got %q", RosterSourceXIVAPI, RosterSourceLodestone, c.Roster.Source)
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("CHECK_INTERVAL_MINUTES must be positive")
	}
	if c.Scheduler.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT_SECONDS must be positive")
	}
	switch c.Notification.Source {
	case NotificationSourceEnv, NotificationSourceRedis:
	case NotificationSourceFile:
		if c.Notification.File == "" {
			return fmt.Errorf("NOTIFICATION_CONFIG_FILE is required for the file notification source")
		}
	default:
		return fmt.Errorf("NOTIFICATION_SOURCE must be env, file or redis, got %q", c.Notification.Source)
	}
	if c.Notification.Source == NotificationSourceEnv && len(c.Notification.Rooms) > 0 && c.Iris.BaseURL == "" {
		return fmt.Errorf("IRIS_BASE_URL is required when NOTIFY_ROOMS is set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
