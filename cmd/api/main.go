package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mealcheck/internal/account"
	"mealcheck/internal/auth"
	"mealcheck/internal/bootstrap"
	"mealcheck/internal/config"
	"mealcheck/internal/handler"
	"mealcheck/internal/httpmiddleware"
	"mealcheck/internal/janitor"
	"mealcheck/internal/meal"
	"mealcheck/internal/provision"
	"mealcheck/internal/queue"
	"mealcheck/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := store.NewRedis(cfg.RedisAddr, cfg.RedisPass)
	defer redisClient.Close()

	rec, err := bootstrap.OpenRecords(ctx, cfg, redisClient)
	if err != nil {
		return err
	}
	defer rec.Close()

	objects, err := bootstrap.ObjectStore(cfg)
	if err != nil {
		return err
	}
	policy, err := bootstrap.Policy(cfg)
	if err != nil {
		return err
	}
	loc, err := bootstrap.Location(cfg)
	if err != nil {
		return err
	}
	reads := bootstrap.Reads(cfg)
	q := bootstrap.Queue(cfg, redisClient)

	accounts := rec.Accounts
	records := rec.Meals
	meals := meal.NewService(records, objects, account.Roster{Store: accounts}, meal.Options{
		Policy:       policy,
		Location:     loc,
		Orphans:      janitor.Publisher{Queue: q},
		Reads:        reads,
		WriteTimeout: cfg.ExternalTimeout,
		MaxRangeDays: cfg.MaxRangeDays,
	})

	// An in-process queue has no other consumer.
	if mem, ok := q.(*queue.InMemory); ok {
		w := janitor.NewWorker(mem, objects, records, cfg.JanitorAttempts, cfg.ReadRetryBackoff, cfg.ExternalTimeout)
		go func() { _ = w.Run(ctx) }()
	}

	provisioner := provision.NewService(accounts, cfg.ExternalTimeout)
	if created, err := provisioner.EnsureCoach(ctx, cfg.CoachEmail, cfg.CoachPassword, cfg.CoachName); err != nil {
		log.Printf("[WARN] coach bootstrap: %v", err)
	} else if created {
		log.Printf("[INFO] created coach account %s", cfg.CoachEmail)
	}

	var limiter httpmiddleware.Limiter = httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	var ipLimiter httpmiddleware.Limiter = httpmiddleware.NewTokenBucket(cfg.RateLimitIPPerMin, cfg.RateLimitIPPerMin)
	if cfg.RateLimitBackend == "redis" {
		limiter = httpmiddleware.NewRedisWindow(redisClient.Client, "mealcheck:rl:user:", cfg.RateLimitPerMin)
		ipLimiter = httpmiddleware.NewRedisWindow(redisClient.Client, "mealcheck:rl:ip:", cfg.RateLimitIPPerMin)
	}

	checks := rec.Checks
	if _, ok := checks["redis"]; !ok && (cfg.QueueBackend == "redis" || cfg.RateLimitBackend == "redis") {
		checks["redis"] = redisClient.Healthy
	}

	h := &handler.Handler{
		Meals: meals,
		Auth: auth.NewService(accounts, rec.Denylist, auth.Tokens{
			Key:        []byte(cfg.JWTSigningKey),
			Issuer:     cfg.JWTIssuer,
			AccessTTL:  cfg.AccessTTL,
			RefreshTTL: cfg.RefreshTTL,
		}, reads),
		Provision:      provisioner,
		Limiter:        limiter,
		IPLimiter:      ipLimiter,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Checks:         checks,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.RequestID())
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(httpmiddleware.SecureHeaders())
	r.Use(httpmiddleware.Metrics())
	// Multipart bodies beyond this spill to temp files.
	r.MaxMultipartMemory = cfg.MaxUploadBytes

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Routes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("[INFO] starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[INFO] shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] server forced shutdown: %v", err)
	}

	log.Println("[INFO] server exited")
	return nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", httpmiddleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Disposition", httpmiddleware.RequestIDHeader},
		MaxAge:        24 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	return cors.New(c)
}
