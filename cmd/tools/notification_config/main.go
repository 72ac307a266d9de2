package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/kapu/fclog-bot-go/internal/config"
	"github.com/kapu/fclog-bot-go/internal/service/cache"
	"github.com/kapu/fclog-bot-go/internal/service/notification"
	"github.com/kapu/fclog-bot-go/internal/util"
)

// CLI flags
var (
	file   = flag.String("file", "notification.yaml", "YAML notification config to publish")
	dryRun = flag.Bool("dry-run", false, "Validate the file without publishing")
)

func main() {
	flag.Parse()

	logger, _ := util.NewLogger("info", "")
	defer logger.Sync()

	notifyCfg, err := notification.LoadConfigFile(*file)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Printf("✓ Parsed %s: %d channel(s), %d webhook(s)", *file, len(notifyCfg.Channels), len(notifyCfg.Webhooks))
	for _, hook := range notifyCfg.Webhooks {
		log.Printf("  - webhook %s", util.MaskURL(hook))
	}
	if notifyCfg.IsEmpty() {
		log.Println("⚠️  No targets configured; events will be recorded without delivery")
	}

	if *dryRun {
		log.Println("Dry run, nothing published")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	cacheSvc, err := cache.NewCacheService(cache.CacheConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	defer cacheSvc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := cacheSvc.SetNotificationConfig(ctx, notifyCfg); err != nil {
		log.Fatalf("❌ Failed to publish config: %v", err)
	}
	log.Println("✓ Notification config published; it applies from the next cycle")
}
