package main

import (
	"embed"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/JaimeStill/ledger/pkg/database"
)

//go:embed migrations/*.sql
var migrations embed.FS

const envDSN = "LEDGER_DB_DSN"

var databaseEnv = &database.Env{
	Host:            "LEDGER_DB_HOST",
	Port:            "LEDGER_DB_PORT",
	Name:            "LEDGER_DB_NAME",
	User:            "LEDGER_DB_USER",
	Password:        "LEDGER_DB_PASSWORD",
	SSLMode:         "LEDGER_DB_SSL_MODE",
	ApplicationName: "LEDGER_DB_APPLICATION_NAME",
}

// migrateLogger routes golang-migrate output through slog.
type migrateLogger struct {
	logger  *slog.Logger
	verbose bool
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool {
	return l.verbose
}

func main() {
	var (
		dsn         = flag.String("dsn", "", "Database URL (defaults to LEDGER_DB_DSN, then LEDGER_DB_* settings)")
		up          = flag.Bool("up", false, "Run all up migrations")
		down        = flag.Bool("down", false, "Run all down migrations")
		steps       = flag.Int("steps", 0, "Number of migrations (positive=up, negative=down)")
		version     = flag.Bool("version", false, "Print current migration version")
		force       = flag.Int("force", -1, "Force set version (use with caution)")
		lockTimeout = flag.Duration("lock-timeout", 15*time.Second, "How long to wait for the migration lock")
		verbose     = flag.Bool("verbose", false, "Log each migration as it runs")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("system", "migrate")

	forceSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "force" {
			forceSet = true
		}
	})

	if *dsn == "" {
		*dsn = os.Getenv(envDSN)
	}
	if *dsn == "" {
		var cfg database.Config
		if err := cfg.Finalize(databaseEnv); err != nil {
			log.Fatalf("database config: %v", err)
		}
		*dsn = cfg.URL()
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		log.Fatalf("failed to create migration source: %v", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, *dsn)
	if err != nil {
		log.Fatalf("failed to create migrator: %v", err)
	}
	defer m.Close()

	m.Log = migrateLogger{logger: logger, verbose: *verbose}
	m.LockTimeout = *lockTimeout

	switch {
	case *version:
		report(m, logger)
	case forceSet:
		if err := m.Force(*force); err != nil {
			log.Fatalf("failed to force version: %v", err)
		}
		report(m, logger)
	case *up:
		apply(m, logger, "up", m.Up)
	case *down:
		apply(m, logger, "down", m.Down)
	case *steps != 0:
		apply(m, logger, fmt.Sprintf("steps %d", *steps), func() error { return m.Steps(*steps) })
	default:
		fmt.Println("usage: migrate [-dsn <url>] [-up|-down|-steps N|-version|-force N] [-lock-timeout D] [-verbose]")
		flag.PrintDefaults()
	}
}

func apply(m *migrate.Migrate, logger *slog.Logger, name string, run func() error) {
	start := time.Now()
	err := run()

	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("no change", "direction", name)
	case err != nil:
		log.Fatalf("migrate %s failed: %v", name, err)
	default:
		logger.Info("migrations applied", "direction", name, "elapsed", time.Since(start).Round(time.Millisecond))
	}
	report(m, logger)
}

func report(m *migrate.Migrate, logger *slog.Logger) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info("schema version", "version", "none")
		return
	}
	if err != nil {
		log.Fatalf("failed to get version: %v", err)
	}
	logger.Info("schema version", "version", v, "dirty", dirty)
}
