package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-backend/internal/config"
	"github.com/stemsi/proctor-backend/internal/logger"
)

// migrate applies the quiz_sessions / quiz_violations schema.
func main() {
	var (
		migrationDir string
		databaseURL  string
	)
	flag.StringVar(&migrationDir, "path", "migrations", "Directory holding the quiz schema migrations")
	flag.StringVar(&databaseURL, "database", "", "PostgreSQL URL (defaults to DATABASE_URL)")
	flag.Usage = printUsage
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat).With().Str("component", "migrate").Logger()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(2)
	}

	if databaseURL == "" {
		databaseURL = cfg.DatabaseURL
	}
	if databaseURL == "" {
		log.Fatal().Msg("No database: set DATABASE_URL or pass -database")
	}

	m, err := migrate.New("file://"+migrationDir, databaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("path", migrationDir).Msg("Failed to open migrations")
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warn().AnErr("source", srcErr).AnErr("database", dbErr).Msg("Failed to close migrator")
		}
	}()

	switch cmd := args[0]; cmd {
	case "up":
		apply(log, cmd, m.Up())
	case "down":
		apply(log, cmd, m.Down())
	case "steps":
		n, err := intArg(args, "steps")
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid steps argument")
		}
		apply(log, cmd, m.Steps(n))
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info().Msg("Schema has no migrations applied")
			return
		}
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read schema version")
		}
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Schema version")
	case "force":
		v, err := intArg(args, "force")
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid force argument")
		}
		if err := m.Force(v); err != nil {
			log.Fatal().Err(err).Int("version", v).Msg("Failed to force schema version")
		}
		log.Info().Int("version", v).Msg("Schema version forced")
	default:
		printUsage()
		os.Exit(2)
	}
}

func apply(log zerolog.Logger, cmd string, err error) {
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info().Str("command", cmd).Msg("Schema already up to date")
		return
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", cmd).Msg("Migration failed")
	}
	log.Info().Str("command", cmd).Msg("Migration applied")
}

func intArg(args []string, cmd string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%s requires a number", cmd)
	}
	return strconv.Atoi(args[1])
}

func printUsage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "Usage: migrate [flags] <command>")
	fmt.Fprintln(out, "Commands: up, down, steps <n>, version, force <version>")
	fmt.Fprintln(out, "Flags:")
	flag.PrintDefaults()
}
