package bootstrap

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/moexbot/core/config"
	coredatabase "github.com/m3rciful/moexbot/core/database"
	"github.com/m3rciful/moexbot/core/logger"
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config *coreconfig.Config
	// Database is optional; without it no connection is opened.
	Database *coredatabase.Config
	// Migrations holds the up/down files under MigrationsDir.
	Migrations    fs.FS
	MigrationsDir string

	LoggerInit func(*coreconfig.Config) error
	Wait       func(context.Context, coredatabase.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config, fs.FS, string) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	// DB is nil when Options.Database was not set.
	DB *sqlx.DB
}

// Run initializes the logger and, when a database is configured, waits for
// it (if Database.WaitTimeout is set), applies migrations and connects.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	if opts.Database == nil {
		return &Result{}, nil
	}
	dbCfg := *opts.Database

	if dbCfg.WaitTimeout > 0 {
		wait := opts.Wait
		if wait == nil {
			wait = coredatabase.WaitForPostgres
		}
		if err := wait(ctx, dbCfg); err != nil {
			return nil, fmt.Errorf("bootstrap: database not ready: %w", err)
		}
	}

	if opts.Migrations != nil {
		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(ctx, dbCfg, opts.Migrations, opts.MigrationsDir); err != nil {
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	return &Result{DB: db}, nil
}
