package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"profilescraper/internal/config"
	"profilescraper/internal/core/artifact"
	"profilescraper/internal/core/job"
	"profilescraper/internal/core/scrape"
	"profilescraper/internal/core/store"
	"profilescraper/internal/core/supervisor"
	"profilescraper/internal/health"
	"profilescraper/internal/logger"
	rds "profilescraper/internal/platform/redis"
	"profilescraper/internal/platform/supabase"
	tasks "profilescraper/internal/platform/tasks"
	"profilescraper/internal/server"
	"profilescraper/internal/worker"
)

func main() {
	if err := config.LoadDotenv(); err != nil {
		log.Printf("[profilescraper] reading .env: %v\n", err)
	}
	cfg := config.Load()
	log.Printf("[profilescraper] starting at %s (env=%s)\n", cfg.HTTPAddr, cfg.AppEnv)

	// Initialize logger
	logr := logger.New("main")

	kind, err := artifact.ParseKind(cfg.ArtifactKind)
	if err != nil {
		log.Fatal(err)
	}
	mode, err := scrape.ParseMode(cfg.ScrapeMode)
	if err != nil {
		log.Fatal(err)
	}
	if err := os.MkdirAll(cfg.ArtifactDir, 0o755); err != nil {
		log.Fatalf("creating artifact dir: %v", err)
	}

	// Redis client
	redisSvc, err := rds.New(rds.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer redisSvc.Close()

	// Asynq client and server
	taskClient := tasks.New(redisSvc)
	defer taskClient.Close()
	asynqServer := asynq.NewServer(redisSvc.AsynqRedisOpt(), asynq.Config{
		Concurrency: cfg.TaskConcurrency,
		Queues:      map[string]int{tasks.DefaultQueue: 1},
	})

	// Artifact archive is optional outside production
	var resolverOpts []artifact.Option
	supaCfg := supabase.Config{URL: cfg.SupabaseURL, ServiceKey: cfg.SupabaseServiceKey, Bucket: cfg.SupabaseBucket}
	if supaCfg.Enabled() {
		archiver, err := supabase.NewArchiver(supaCfg)
		if err != nil {
			log.Fatal(err)
		}
		resolverOpts = append(resolverOpts, artifact.WithArchiver(archiver))
	} else {
		logr.LogInfof("artifact archive disabled")
	}

	// Core services
	runner := supervisor.New(supervisor.Command{
		Path:    cfg.WorkerPath,
		Args:    cfg.WorkerArgs,
		Dir:     cfg.ArtifactDir,
		Timeout: cfg.WorkerTimeout,
	})
	scrapeSvc := scrape.NewService(scrape.Config{Kind: kind, Mode: mode, QueueWait: cfg.QueueWait}, scrape.Deps{
		Runner:     runner,
		Resolver:   artifact.NewResolver(cfg.ArtifactDir, resolverOpts...),
		Posts:      store.New(redisSvc),
		Jobs:       job.NewService(redisSvc),
		Locks:      scrape.NewRedisLocker(redisSvc),
		Dispatcher: scrape.NewAsynqDispatcher(taskClient, runner.Timeout()+time.Minute),
	})

	// Worker mux
	mux := worker.NewMux()
	mux.HandleFunc(scrape.TaskTypeScrape, scrapeSvc.HandleTask)

	// Start worker
	go func() {
		if err := asynqServer.Start(mux.Mux()); err != nil {
			log.Printf("[worker] stopped: %v\n", err)
		}
	}()

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName:      "Profile Scraper",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.WorkerTimeout + time.Minute,
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})

	// Register routes with health handler
	deps := server.Dependencies{
		Scrape: scrapeSvc,
		Checks: map[string]health.Checker{
			"redis":     redisSvc.HealthCheck,
			"worker":    health.WorkerCheck(cfg.WorkerPath),
			"artifacts": health.DirCheck(cfg.ArtifactDir),
		},
	}
	healthHandler := server.RegisterRoutes(app, deps)
	healthHandler.SetReady()

	// Graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.LogInfo("Shutting down...")
		asynqServer.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.ShutdownWithContext(ctx)
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Fatalf("server listen: %v", err)
	}
}
