// Package bootstrap builds the backends both binaries share from config.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"
	_ "time/tzdata"

	"mealcheck/internal/account"
	"mealcheck/internal/auth"
	"mealcheck/internal/config"
	"mealcheck/internal/handler"
	"mealcheck/internal/meal"
	"mealcheck/internal/queue"
	"mealcheck/internal/retry"
	"mealcheck/internal/storage"
	"mealcheck/internal/store"
)

// ObjectStore selects the photo backend named by STORAGE_BACKEND.
func ObjectStore(cfg config.App) (storage.ObjectStore, error) {
	switch cfg.StorageBackend {
	case "cloudinary":
		if cfg.CloudinaryCloudName == "" || cfg.CloudinaryAPIKey == "" || cfg.CloudinaryAPISecret == "" {
			return nil, fmt.Errorf("cloudinary backend needs CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET")
		}
		log.Printf("[INFO] photos stored in cloudinary %s/%s", cfg.CloudinaryCloudName, cfg.CloudinaryFolder)
		return storage.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder), nil
	case "s3":
		log.Printf("[INFO] photos stored in s3 bucket %s", cfg.S3Bucket)
		return storage.NewS3(storage.S3Config{
			Bucket:         cfg.S3Bucket,
			Region:         cfg.S3Region,
			Endpoint:       cfg.S3Endpoint,
			AccessKey:      cfg.S3AccessKey,
			SecretKey:      cfg.S3SecretKey,
			PublicBaseURL:  cfg.S3PublicBaseURL,
			ForcePathStyle: cfg.S3ForcePathStyle,
		})
	case "memory":
		if cfg.Production() {
			return nil, fmt.Errorf("memory storage backend is not allowed in production")
		}
		log.Println("[WARN] photos stored in memory; they are lost on restart")
		return storage.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
}

// Queue selects the orphan queue named by QUEUE_BACKEND. The memory queue
// only works when the janitor runs in the same process.
func Queue(cfg config.App, rdb *store.Redis) queue.Queue {
	if cfg.QueueBackend == "memory" {
		return queue.NewInMemory(256)
	}
	return queue.NewRedisQueue(rdb.Client, cfg.QueueKey)
}

// Policy turns the configured windows into a meal policy.
func Policy(cfg config.App) (*meal.Policy, error) {
	windows := make([]meal.Window, 0, len(cfg.MealWindows))
	for _, w := range cfg.MealWindows {
		parsed, err := meal.ParseWindow(w.Meal, w.LateAfter, w.Cutoff)
		if err != nil {
			return nil, err
		}
		windows = append(windows, parsed)
	}
	return meal.NewPolicy(windows...)
}

// Location loads the team time zone.
func Location(cfg config.App) (*time.Location, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load TEAM_TIMEZONE %q: %w", cfg.TimeZone, err)
	}
	return loc, nil
}

// Reads is the retry policy for idempotent reads.
func Reads(cfg config.App) retry.Policy {
	return retry.Policy{Attempts: cfg.ReadRetries, Backoff: cfg.ReadRetryBackoff, Timeout: cfg.ExternalTimeout}
}

// Records holds the record backends the API serves from.
type Records struct {
	Accounts account.Store
	Meals    meal.Repository
	Denylist auth.Denylist
	Checks   map[string]handler.Check
	Close    func()
}

// OpenRecords selects the record backends named by STORE_BACKEND. The
// postgres backend migrates the schema and keeps revoked tokens in redis.
// The memory backend keeps everything in process and is refused in
// production.
func OpenRecords(ctx context.Context, cfg config.App, rdb *store.Redis) (*Records, error) {
	switch cfg.StoreBackend {
	case "", "postgres":
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if db == nil {
			return nil, err
		}
		if err != nil {
			log.Printf("[WARN] db not reachable: %v", err)
		} else if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return &Records{
			Accounts: account.NewStore(db.Client),
			Meals:    meal.NewRepository(db.Client),
			Denylist: auth.NewRedisDenylist(rdb.Client, ""),
			Checks: map[string]handler.Check{
				"db":    db.Healthy,
				"redis": rdb.Healthy,
			},
			Close: func() { db.Close() },
		}, nil
	case "memory":
		if cfg.Production() {
			return nil, fmt.Errorf("memory store backend is not allowed in production")
		}
		log.Println("[WARN] accounts and check-ins kept in memory; they are lost on restart")
		return &Records{
			Accounts: account.NewMemoryStore(),
			Meals:    meal.NewMemoryRepository(),
			Denylist: auth.NewMemoryDenylist(),
			Checks:   map[string]handler.Check{},
			Close:    func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}
