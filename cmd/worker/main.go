package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/stewardhq/steward/internal/actuator"
	"github.com/stewardhq/steward/internal/capability"
	"github.com/stewardhq/steward/internal/config"
	"github.com/stewardhq/steward/internal/executor"
	"github.com/stewardhq/steward/internal/ledger"
	"github.com/stewardhq/steward/internal/notify"
	"github.com/stewardhq/steward/internal/pkg/distlock"
	"github.com/stewardhq/steward/internal/queue"
)

// Dedicated execution worker: claims due actions and drives them through
// the actuators, no API surface. Run alongside API-only server instances
// when execution should scale separately.
func main() {
	log.Println("Starting Steward worker...")

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
			log.Printf("redis unavailable, continuing without notify: %v", err)
			redisClient = nil
		}
	}

	var notifier executor.Notifier
	if redisClient != nil {
		notifier = notify.NewRedisNotifier(redisClient)
	} else {
		notifier = notify.LogNotifier{}
	}

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

	// Surface credential problems now, not on the first due action.
	authCtx, cancelAuth := context.WithTimeout(ctx, 15*time.Second)
	if err := act.Authenticate(authCtx); err != nil {
		log.Printf("actuator auth warning: %v", err)
	}
	cancelAuth()

	lock := distlock.NewLock(redisClient, db, "steward:executor:tick",
		time.Duration(cfg.Scheduler.TickIntervalSeconds*3)*time.Second)
	scheduler := executor.NewScheduler(executor.Config{
		TickInterval:  time.Duration(cfg.Scheduler.TickIntervalSeconds) * time.Second,
		BatchSize:     cfg.Scheduler.BatchSize,
		ExecTimeout:   time.Duration(cfg.Scheduler.ExecTimeoutSeconds) * time.Second,
		StaleLease:    time.Duration(cfg.Scheduler.StaleLeaseMinutes) * time.Minute,
		MaxPendingAge: time.Duration(cfg.Scheduler.MaxPendingAgeHours) * time.Hour,
	}, queue.NewStore(db), capability.NewStore(db), act, ledger.NewStore(db), notifier, lock)
	scheduler.Start()

	log.Println("Worker running...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	scheduler.Stop()
	log.Println("Worker stopped")
}
