package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/autosave-fi/autosave/api"
	"github.com/autosave-fi/autosave/config"
	"github.com/autosave-fi/autosave/internal/authz"
	"github.com/autosave-fi/autosave/internal/ledger"
	"github.com/autosave-fi/autosave/internal/scheduler"
	"github.com/autosave-fi/autosave/internal/tasks"
	"github.com/autosave-fi/autosave/relay"
	"github.com/autosave-fi/autosave/service"
	"github.com/autosave-fi/autosave/storage"
	"github.com/autosave-fi/autosave/storage/postgres"
)

func main() {
	cfg, err := config.GetConfigure()
	if err != nil {
		logrus.Fatalf("Failed to read config: %v", err)
	}

	logger := logrus.StandardLogger()
	logger.SetFormatter(&logrus.JSONFormatter{})

	var sdClient *statsd.Client
	if cfg.Datadog.Host != "" {
		sdClient, err = statsd.New(fmt.Sprintf("%s:%s", cfg.Datadog.Host, cfg.Datadog.Port))
		if err != nil {
			logger.Fatalf("Failed to create statsd client: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cfg.Mode {
	case "ledger":
		runLedger(ctx, cfg, sdClient, logger)
	case "relayer":
		runRelayer(ctx, cfg, logger)
	case "all", "":
		go runRelayer(ctx, cfg, logger)
		runLedger(ctx, cfg, sdClient, logger)
	default:
		logger.Fatalf("Invalid mode: %s", cfg.Mode)
	}
}

func runLedger(ctx context.Context, cfg *config.Config, sdClient *statsd.Client, logger *logrus.Logger) {
	db, err := postgres.NewPostgresBackend(cfg.Database.DSN)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	verifier := authz.NewVerifier(authz.Domain{
		Name:    cfg.Ledger.DomainName,
		ChainID: cfg.Ledger.ChainID,
	})

	ledgerService, err := ledger.New(db, verifier, cfg.Ledger.AdminAddress, logger)
	if err != nil {
		logger.Fatalf("Failed to create ledger: %v", err)
	}

	var redisStorage storage.SchedulerStorage
	if cfg.Redis.Host != "" {
		redisStorage, err = storage.NewRedisStorage(redisOptions(cfg))
		if err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisStorage.Close()
	}

	auth := service.NewAuthService(cfg.JWTSecret)
	server := api.NewServer(*cfg, ledgerService, redisStorage, auth, sdClient)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Failed to shut down server: %v", err)
		}
	}()

	if err := server.StartServer(); err != nil {
		logger.Infof("Server stopped: %v", err)
	}
}

func runRelayer(ctx context.Context, cfg *config.Config, logger *logrus.Logger) {
	redisStorage, err := storage.NewRedisStorage(redisOptions(cfg))
	if err != nil {
		logger.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisStorage.Close()

	ledgerClient := relay.NewClient(cfg.Ledger.Endpoint, cfg.Relayer.AuthToken)

	redisOpts := asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Username: cfg.Redis.User,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	queueClient := asynq.NewClient(redisOpts)
	defer queueClient.Close()

	schedulerService, err := scheduler.NewSchedulerService(scheduler.Config{
		DiscoveryInterval: time.Duration(cfg.Scheduler.DiscoveryIntervalSeconds) * time.Second,
		ExecutionInterval: time.Duration(cfg.Scheduler.ExecutionIntervalSeconds) * time.Second,
		MaxEventWindow:    cfg.Scheduler.MaxEventWindow,
	}, redisStorage, ledgerClient, queueClient, logger)
	if err != nil {
		logger.Fatalf("Failed to create scheduler: %v", err)
	}
	schedulerService.Start()
	defer schedulerService.Stop()

	var sdClient *statsd.Client
	if cfg.Datadog.Host != "" {
		sdClient, err = statsd.New(fmt.Sprintf("%s:%s", cfg.Datadog.Host, cfg.Datadog.Port))
		if err != nil {
			logger.Fatalf("Failed to create statsd client: %v", err)
		}
	}

	worker, err := service.NewWorker(redisStorage, ledgerClient, sdClient)
	if err != nil {
		logger.Fatalf("Failed to create worker: %v", err)
	}

	srv := asynq.NewServer(redisOpts, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			tasks.QUEUE_NAME: 10,
		},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypePlanExecute, worker.HandlePlanExecute)

	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()

	if err := srv.Run(mux); err != nil {
		logger.Fatalf("Failed to run asynq server: %v", err)
	}
}

func redisOptions(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Username: cfg.Redis.User,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}
