package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/turnomed/scheduling-engine/internal/api"
	"github.com/turnomed/scheduling-engine/internal/config"
	"github.com/turnomed/scheduling-engine/internal/db"
	"github.com/turnomed/scheduling-engine/internal/directory"
	redisclient "github.com/turnomed/scheduling-engine/internal/redis"
	"github.com/turnomed/scheduling-engine/internal/reminder"
	"github.com/turnomed/scheduling-engine/internal/schedule"
)

const version = "1.0.0"

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "api-server").Logger()
	log.Info().Msg("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Str("timezone", cfg.Location.String()).Msg("configured")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	repo := schedule.NewPgRepository(pgPool)
	calendar := schedule.NewCalendar(repo, cfg.Location)
	clock := schedule.RealClock{}
	generator := schedule.NewGenerator(repo, calendar, clock, cfg.Location)
	locker := redisclient.NewProviderLocker(rdb, cfg.LockTTL, cfg.LockWait)
	providers := directory.NewPgDirectory(pgPool)
	patients := directory.NewPgPatients(pgPool)
	reminders := reminder.NewScheduler(pgPool, cfg.ReminderLeadTime, clock, log)

	svc := schedule.NewService(repo, providers, patients, calendar, locker, clock, reminders, cfg.Location, log)

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		Slots:   generator,
		PgPool:  pgPool,
		Redis:   rdb,
		Env:     cfg.Env,
		Version: version,
		Logger:  log,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
