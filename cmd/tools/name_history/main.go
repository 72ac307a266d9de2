package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/kapu/fclog-bot-go/internal/adapter"
	"github.com/kapu/fclog-bot-go/internal/config"
	"github.com/kapu/fclog-bot-go/internal/domain"
	"github.com/kapu/fclog-bot-go/internal/service/cache"
	"github.com/kapu/fclog-bot-go/internal/service/database"
	"github.com/kapu/fclog-bot-go/internal/service/store"
	"github.com/kapu/fclog-bot-go/internal/util"
)

// CLI flags
var (
	characterID = flag.String("character", "", "Lodestone character ID to look up")
	limit       = flag.Int("limit", 10, "Number of recent events to show")
	showStatus  = flag.Bool("status", true, "Show the last cycle recorded in Redis")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	logger, _ := util.NewLogger("warn", "")
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	formatter := adapter.NewResponseFormatter("")

	postgres, err := database.NewPostgresService(database.PostgresConfig{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
	}, logger)
	if err != nil {
		log.Fatalf("❌ Failed to connect to PostgreSQL: %v", err)
	}
	defer postgres.Close()

	repo := store.NewRepository(postgres, cfg.FreeCompany.ID, logger)

	if *characterID != "" {
		id := domain.CharacterID(*characterID)

		history, err := repo.NameHistory(ctx, id)
		if err != nil {
			log.Fatalf("❌ Failed to load name history: %v", err)
		}
		events, err := repo.RecentEvents(ctx, id, *limit)
		if err != nil {
			log.Fatalf("❌ Failed to load events: %v", err)
		}

		fmt.Println(formatter.FormatNameHistory(id, history, events))
		fmt.Println()
	}

	if *showStatus {
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

		report, err := cacheSvc.LastCycle(ctx, cfg.FreeCompany.ID)
		if err != nil {
			log.Fatalf("❌ Failed to load cycle status: %v", err)
		}
		fmt.Println(formatter.FormatCycleReport(cfg.FreeCompany.ID, report))
	}
}
