package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-story-bot/internal/config"
	"telegram-story-bot/internal/domain/model"
	"telegram-story-bot/internal/domain/ports/repository"
	"telegram-story-bot/internal/infra/db/postgres"
	"telegram-story-bot/internal/infra/redis"
)

// This script is for setting up a clean, predictable database state
// for manual end-to-end testing.
func main() {
	demoUser := flag.Int64("demo-user", 0, "telegram id to seed with a finished wizard (0 skips)")
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Println("--- Starting E2E Environment Setup ---")

	log.Println("[1/4] Applying migrations...")
	if err := postgres.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		log.Fatalf("postgres connection failed: %v", err)
	}
	defer pool.Close()

	log.Println("[2/4] Wiping story sessions from Redis...")
	if cfg.Redis.URL == "" {
		log.Println("      redis.url is empty, nothing to wipe")
	} else {
		redisClient, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisClient.Close()
		for _, pattern := range []string{"story_phase:*", "story_lock:*", "rate_limit:*"} {
			n, err := redisClient.DelMatching(ctx, pattern)
			if err != nil {
				log.Fatalf("failed to wipe %s: %v", pattern, err)
			}
			log.Printf("      %s: %d keys", pattern, n)
		}
	}

	log.Println("[3/4] Wiping all existing database data...")
	if _, err := pool.Exec(ctx, `TRUNCATE users, history_records RESTART IDENTITY CASCADE;`); err != nil {
		log.Fatalf("failed to truncate tables: %v", err)
	}

	log.Println("[4/4] (Optional) Seeding a demo user...")
	if *demoUser > 0 {
		if err := seedDemoUser(ctx, pool, *demoUser); err != nil {
			log.Fatalf("failed to seed demo user: %v", err)
		}
		log.Printf("      user %d is ready; send any text to continue the story", *demoUser)
	}

	log.Println("--- E2E Environment Setup Complete ---")
}

// seedDemoUser stores a complete set of story parameters. The bot still sees
// the user as idle until a phase is stored, so /new_chat restarts cleanly.
func seedDemoUser(ctx context.Context, pool *pgxpool.Pool, tgID int64) error {
	users := postgres.NewUserRepo(pool)
	tm := postgres.NewTxManager(pool)
	return tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		for _, f := range []struct {
			field model.StoryField
			value string
		}{
			{model.FieldGenre, "Fantasy"},
			{model.FieldCharacter, "Sherlock Holmes"},
			{model.FieldSetting, "Rome"},
		} {
			if err := users.SetStoryField(ctx, tx, tgID, f.field, f.value); err != nil {
				return err
			}
		}
		return nil
	})
}
