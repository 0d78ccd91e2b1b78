// Command migrate prepares the notification schema and rewrites records
// whose kind is outside the accepted set to "system".
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/tuition-notify/internal/config"
	"github.com/tuition-notify/internal/pkg/logging"
	"github.com/tuition-notify/internal/platform"
)

func main() {
	repair := flag.Bool("repair-kinds", true, "rewrite notifications with an unknown kind to system")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall deadline")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, reading from environment")
	}
	cfg, err := config.Load()
	if err != nil {
		logging.Setup("info", false)
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.Production())

	if err := run(cfg, *repair, *timeout); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
}

func run(cfg *config.Config, repair bool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	stores, err := platform.OpenStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := stores.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("store close error")
		}
	}()
	log.Info().Str("store", cfg.Store).Msg("schema ready")

	if !repair {
		return nil
	}
	fixed, err := stores.Notifications.RepairKinds(ctx)
	if err != nil {
		return fmt.Errorf("repair kinds after %d fixes: %w", fixed, err)
	}
	log.Info().Int64("fixed", fixed).Msg("kind repair done")
	return nil
}
