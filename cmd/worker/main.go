package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"mealcheck/internal/bootstrap"
	"mealcheck/internal/config"
	"mealcheck/internal/janitor"
	"mealcheck/internal/meal"
	"mealcheck/internal/store"
)

// Worker drains the orphan queue: objects whose record write failed are
// deleted unless a later upload references them again.
func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend == "memory" {
		log.Fatalf("QUEUE_BACKEND=memory is drained inside the API process; the worker needs redis")
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr, cfg.RedisPass)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Printf("[WARN] redis not reachable at %s; consumer will keep retrying", cfg.RedisAddr)
	}

	objects, err := bootstrap.ObjectStore(cfg)
	if err != nil {
		log.Fatalf("object store: %v", err)
	}

	w := janitor.NewWorker(
		bootstrap.Queue(cfg, redisClient),
		objects,
		meal.NewRepository(db.Client),
		cfg.JanitorAttempts,
		cfg.ReadRetryBackoff,
		cfg.ExternalTimeout,
	)

	log.Println("[INFO] worker started, waiting for orphans...")
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("worker stopped: %v", err)
	}
	log.Println("[INFO] worker stopped")
}
