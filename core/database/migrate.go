package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/moexbot/core/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"log/slog"
)

const migrateComponent = "db.migrate"

// RunMigrations applies all up migrations found in dir of the provided filesystem.
// Callers usually pass an embed.FS bundled with their store package.
func RunMigrations(ctx context.Context, cfg Config, migrations fs.FS, dir string) error {
	waitCfg := cfg
	waitCfg.WaitTimeout = 30 * time.Second
	if err := WaitForPostgres(ctx, waitCfg); err != nil {
		logger.Error(ctx, migrateComponent, "db.migrate",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("database not ready: %w", err)
	}

	files := listMigrationFiles(migrations, dir)
	preview, truncated := logger.SummarizeStrings(files, 6)
	attrs := []slog.Attr{
		slog.String("path", dir),
		slog.Int("files_total", len(files)),
	}
	if preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
	}
	if truncated {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	logger.Debug(ctx, migrateComponent, "resolve", attrs...)

	src, err := iofs.New(migrations, dir)
	if err != nil {
		return fmt.Errorf("failed to open migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.URL())
	if err != nil {
		logger.Error(ctx, migrateComponent, "db.migrate",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err := errors.Join(srcErr, dbErr); err != nil {
			logger.Warn(ctx, migrateComponent, "close",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}()

	fromVer, _, _ := m.Version()

	start := time.Now()
	upErr := m.Up()
	took := time.Since(start)

	switch {
	case upErr == nil:
	case errors.Is(upErr, migrate.ErrNoChange):
		logger.Info(ctx, migrateComponent, "summary",
			slog.String("status", "ok"),
			slog.Uint64("from_ver", uint64(fromVer)),
			slog.Uint64("to_ver", uint64(fromVer)),
			slog.Int("files", 0),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return nil
	default:
		logger.Error(ctx, migrateComponent, "apply",
			slog.String("status", "fail"),
			slog.String("err", upErr.Error()),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return fmt.Errorf("migration execution failed: %w", upErr)
	}

	toVer, _, _ := m.Version()
	applied := selectApplied(files, uint64(fromVer), uint64(toVer))
	if len(applied) > 0 {
		previewApplied, truncatedApplied := logger.SummarizeStrings(applied, 6)
		attrs := []slog.Attr{slog.Int("files_total", len(applied))}
		if previewApplied != "" {
			attrs = append(attrs, slog.String("files_preview", previewApplied))
		}
		if truncatedApplied {
			attrs = append(attrs, slog.Bool("files_truncated", true))
		}
		logger.Debug(ctx, migrateComponent, "apply", attrs...)
	}

	logger.Info(ctx, migrateComponent, "summary",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return nil
}

func listMigrationFiles(fsys fs.FS, dir string) []string {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".up.sql") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func parseVersion(name string) uint64 {
	parts := strings.SplitN(name, "_", 2)
	v, _ := strconv.ParseUint(parts[0], 10, 64)
	return v
}

func selectApplied(files []string, from, to uint64) []string {
	if to <= from {
		return nil
	}
	var out []string
	for _, f := range files {
		v := parseVersion(f)
		if v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
