package main

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/turnomed/scheduling-engine/internal/config"
	"github.com/turnomed/scheduling-engine/internal/db"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "migrate").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	if err := db.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	log.Info().Msg("migrations complete")
}
