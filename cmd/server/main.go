package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/stewardhq/steward/internal/actuator"
	"github.com/stewardhq/steward/internal/api"
	"github.com/stewardhq/steward/internal/capability"
	"github.com/stewardhq/steward/internal/config"
	"github.com/stewardhq/steward/internal/executor"
	"github.com/stewardhq/steward/internal/guard"
	"github.com/stewardhq/steward/internal/ledger"
	"github.com/stewardhq/steward/internal/notify"
	"github.com/stewardhq/steward/internal/pipeline"
	"github.com/stewardhq/steward/internal/pkg/distlock"
	"github.com/stewardhq/steward/internal/policy"
	"github.com/stewardhq/steward/internal/queue"
	"github.com/stewardhq/steward/internal/sentiment"
)

func main() {
	log.Println("Starting Steward server...")

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.LoadFromEnv(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("ping database: %v", err)
	}
	log.Println("Connected to database")

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("redis unavailable, continuing without cache/notify: %v", err)
			redisClient = nil
		} else {
			log.Println("Connected to redis")
		}
	}

	// Stores
	actionStore := queue.NewStore(db)
	policyStore := policy.NewStore(db)
	ledgerStore := ledger.NewStore(db)
	tierStore := capability.NewStore(db)
	vipStore := guard.NewVIPStore(db, redisClient)
	pauseSvc := guard.NewPauseService(db)

	// Collaborators
	var notifier executor.Notifier
	if redisClient != nil {
		notifier = notify.NewRedisNotifier(redisClient)
	} else {
		notifier = notify.LogNotifier{}
	}
	var scorer queue.SentimentScorer
	if cfg.Sentiment.Enabled {
		scorer = sentiment.NewHTTPScorer(cfg.Sentiment.Endpoint)
	}

	// Actuators
	ctx := context.Background()
	var mail, provider actuator.Actuator
	if cfg.SES.Enabled {
		sesAct, err := actuator.NewSESActuator(ctx, actuator.SESConfig{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKey,
			SecretAccessKey: cfg.SES.SecretKey,
			FromAddress:     cfg.SES.FromAddress,
		})
		if err != nil {
			log.Fatalf("ses actuator: %v", err)
		}
		mail = sesAct
	}
	if cfg.Provider.Enabled {
		provAct, err := actuator.NewProviderActuator(actuator.ProviderConfig{
			BaseURL:      cfg.Provider.BaseURL,
			TokenURL:     cfg.Provider.TokenURL,
			ClientID:     cfg.Provider.ClientID,
			ClientSecret: cfg.Provider.ClientSecret,
			Scopes:       cfg.Provider.Scopes,
			Timeout:      time.Duration(cfg.Provider.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			log.Fatalf("provider actuator: %v", err)
		}
		provider = provAct
	}
	act := actuator.NewComposite(mail, provider)

	// Services
	queueSvc := queue.NewService(actionStore, tierStore, scorer)
	checker := policy.NewConstraintChecker(ledgerStore)
	selector := policy.NewSelector(policyStore, vipStore, pauseSvc, checker)
	gate := guard.NewGate(vipStore, pauseSvc, notifier)

	mode := policy.FirstMatch
	if cfg.Queue.MatchAll {
		mode = policy.AllMatches
	}
	events := pipeline.New(gate, selector, queueSvc, mode)

	// Scheduler, deduplicated across instances by the tick lock.
	lock := distlock.NewLock(redisClient, db, "steward:executor:tick",
		time.Duration(cfg.Scheduler.TickIntervalSeconds*3)*time.Second)
	scheduler := executor.NewScheduler(executor.Config{
		TickInterval:  time.Duration(cfg.Scheduler.TickIntervalSeconds) * time.Second,
		BatchSize:     cfg.Scheduler.BatchSize,
		ExecTimeout:   time.Duration(cfg.Scheduler.ExecTimeoutSeconds) * time.Second,
		StaleLease:    time.Duration(cfg.Scheduler.StaleLeaseMinutes) * time.Minute,
		MaxPendingAge: time.Duration(cfg.Scheduler.MaxPendingAgeHours) * time.Hour,
	}, actionStore, tierStore, act, ledgerStore, notifier, lock)
	scheduler.Start()

	handlers := api.NewHandlers(queueSvc, policyStore, events, scheduler,
		pauseSvc, vipStore, ledgerStore, tierStore)
	server := api.NewServer(handlers)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Printf("API listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil {
			log.Printf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	scheduler.Stop()
	log.Println("Server stopped")
}
