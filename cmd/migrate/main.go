package main

import (
	"database/sql"
	"errors"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hackgods/voice-appointment-engine/internal/config"
	"github.com/hackgods/voice-appointment-engine/migrations"
	"github.com/hackgods/voice-appointment-engine/pkg/logging"
)

// usage: migrate [up | down | force <version>]
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("error", false)
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogPretty).With().Str("service", "migrate").Logger()

	db, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db")
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("ping db")
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		logger.Fatal().Err(err).Msg("db driver")
	}

	srcDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		logger.Fatal().Err(err).Msg("source driver")
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		logger.Fatal().Err(err).Msg("create migrator")
	}
	defer func() { _, _ = m.Close() }()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "force":
		if len(os.Args) < 3 {
			logger.Fatal().Msg("force needs a version")
		}
		version, err := strconv.Atoi(os.Args[2])
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid version")
		}
		if err := m.Force(version); err != nil {
			logger.Fatal().Err(err).Msg("force version")
		}
		logger.Info().Int("version", version).Msg("forced version")
		return
	case "down":
		err = m.Down()
	case "up":
		err = m.Up()
	default:
		logger.Fatal().Str("command", cmd).Msg("unknown command, expected up, down or force")
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal().Err(err).Str("command", cmd).Msg("migration failed")
	}

	version, dirty, _ := m.Version()
	logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("migrations complete")
}
