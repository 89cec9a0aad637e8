package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/turnomed/scheduling-engine/internal/config"
	"github.com/turnomed/scheduling-engine/internal/db"
	"github.com/turnomed/scheduling-engine/internal/reminder"
	"github.com/turnomed/scheduling-engine/internal/schedule"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "reminder-worker").Logger()
	log.Info().Msg("reminder-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("running reminder worker")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	scheduler := reminder.NewScheduler(pgPool, cfg.ReminderLeadTime, schedule.RealClock{}, log)

	// Run once at startup
	runOnce(rootCtx, scheduler, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, scheduler, log)
		}
	}
}

func runOnce(ctx context.Context, scheduler *reminder.Scheduler, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	count, err := scheduler.DispatchDue(runCtx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("reminder dispatch error")
		return
	}
	log.Info().Int("dispatched", count).Dur("took", time.Since(start)).Msg("reminder run complete")
}
