// Package logger provides the process-wide structured logger: one line per
// event, keyed by component and event name, written asynchronously.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/moexbot/core/buildinfo"
	coreconfig "github.com/m3rciful/moexbot/core/config"
)

var (
	initOnce   sync.Once
	shutdownMu sync.Mutex
	shutDown   bool

	logWriter  *asyncWriter
	logClosers []io.Closer

	levelVar slog.LevelVar

	sampler       = newDebugSampler(1, 50)
	traceOverride bool

	// L is the base logger; component loggers derive from it. It stays nil
	// until InitLogger runs, and every helper here tolerates that.
	L *slog.Logger
)

// InitLogger configures the global logger. Only the first call has effect.
func InitLogger(cfg *coreconfig.Config) error {
	var initErr error
	initOnce.Do(func() {
		levelVar.Set(selectLevel(cfg))
		sampler.Set(parseDebugSample(cfg))
		traceOverride = isTruthy(os.Getenv("LOG_TRACE"))

		outputs, closers, err := buildOutputs(cfg)
		if err != nil {
			initErr = err
			return
		}
		logClosers = closers
		logWriter = newAsyncWriter(64*1024, outputs...)

		L = slog.New(newStructuredHandler(handlerConfig{
			level:    &levelVar,
			writer:   logWriter,
			format:   selectFormat(cfg),
			keyOrder: selectKeyOrder(cfg),
		}))
		slog.SetDefault(L)

		Info(context.Background(), "app", "startup",
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", selectProfile(cfg)),
		)
	})
	return initErr
}

// Shutdown flushes buffered output and closes log files.
func Shutdown() error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if shutDown {
		return nil
	}
	shutDown = true

	var errs []error
	if logWriter != nil {
		errs = append(errs, logWriter.Flush(), logWriter.Close())
	}
	for _, c := range logClosers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func selectFormat(cfg *coreconfig.Config) logFormat {
	if cfg == nil {
		return formatJSON
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Format)) {
	case "kv", "text", "pretty":
		return formatKV
	case "json":
		return formatJSON
	}
	switch selectProfile(cfg) {
	case "debug", "dev":
		return formatKV
	}
	return formatJSON
}

func selectKeyOrder(cfg *coreconfig.Config) []string {
	var order []string
	if cfg != nil {
		for _, k := range strings.Split(cfg.Logging.KeysOrder, ",") {
			if k = strings.TrimSpace(k); k != "" && k != "default" {
				order = append(order, k)
			}
		}
	}
	if len(order) == 0 {
		return append([]string(nil), defaultKeyOrder...)
	}
	return order
}

func selectLevel(cfg *coreconfig.Config) slog.Level {
	if cfg == nil {
		return slog.LevelInfo
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// buildOutputs always logs to stdout. With logging.dir set, bot_file gets a
// full copy and errors_file receives ERROR lines only.
func buildOutputs(cfg *coreconfig.Config) ([]output, []io.Closer, error) {
	outputs := []output{{w: os.Stdout, min: slog.LevelDebug}}
	if cfg == nil {
		return outputs, nil, nil
	}
	dir := strings.TrimSpace(cfg.Logging.Dir)
	if dir == "" {
		return outputs, nil, nil
	}
	files := []struct {
		name string
		min  slog.Level
	}{
		{strings.TrimSpace(cfg.Logging.BotFile), slog.LevelDebug},
		{strings.TrimSpace(cfg.Logging.ErrorsFile), slog.LevelError},
	}
	var closers []io.Closer
	for _, f := range files {
		if f.name == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, closers, fmt.Errorf("logger: create %s: %w", dir, err)
		}
		path := filepath.Join(dir, f.name)
		fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closers, fmt.Errorf("logger: open %s: %w", path, err)
		}
		outputs = append(outputs, output{w: fh, min: f.min})
		closers = append(closers, fh)
	}
	return outputs, closers, nil
}

func selectProfile(cfg *coreconfig.Config) string {
	if cfg == nil {
		return ""
	}
	if p := strings.TrimSpace(cfg.Logging.Profile); p != "" {
		return strings.ToLower(p)
	}
	return "prod"
}

// Background is the root context for logs emitted outside an update.
func Background() context.Context {
	return context.Background()
}

// LogEvent writes event through logg, falling back to the context logger.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if logg == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns L scoped to name.
func Component(name string) *slog.Logger {
	if L == nil {
		return nil
	}
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// Event logs event for component at level.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	logg := Component(component)
	if logg == nil {
		logg = FromContext(ctx)
		if logg != nil && strings.TrimSpace(component) != "" {
			logg = logg.With("component", strings.TrimSpace(component))
		}
	}
	LogEvent(ctx, logg, level, event, attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

// parseDebugSample reads logging.debug_sample; unset means 1/50 and "0"
// disables sampling.
func parseDebugSample(cfg *coreconfig.Config) (int, int) {
	if cfg == nil || strings.TrimSpace(cfg.Logging.DebugSample) == "" {
		return 1, 50
	}
	return parseRatio(cfg.Logging.DebugSample)
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether a high-volume debug line should be
// written. LOG_TRACE=1 lets all of them through.
func ShouldSampleDebug() bool {
	return traceOverride || sampler.Allow()
}
