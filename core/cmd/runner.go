// Package cmd is the shared entry point: it resolves the config path, loads
// and bootstraps the application and runs it until SIGINT or SIGTERM.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m3rciful/moexbot/core/buildinfo"
	coreconfig "github.com/m3rciful/moexbot/core/config"
	"github.com/m3rciful/moexbot/core/logger"
	coretelegram "github.com/m3rciful/moexbot/core/telegram"
)

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is the minimal interface required to run a Telegram bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	// Name is used in usage output. Defaults to os.Args[0].
	Name string
	// Args are the command line arguments without the program name.
	Args []string
	// Stdout receives -version and usage output.
	Stdout io.Writer

	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(ctx context.Context, cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

// Run parses flags, loads configuration, bootstraps the app and blocks in
// the Telegram runtime. The config path comes from -config, then the env
// variable, then DefaultConfigPath.
func Run(opts Options) error {
	if opts.LoadConfig == nil || opts.Bootstrap == nil {
		return errors.New("cmd: LoadConfig and Bootstrap are required")
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Name == "" && len(os.Args) > 0 {
		opts.Name = os.Args[0]
	}
	if opts.ConfigEnvVar == "" {
		opts.ConfigEnvVar = "CONFIG_PATH"
	}

	fs := flag.NewFlagSet(opts.Name, flag.ContinueOnError)
	fs.SetOutput(opts.Stdout)
	configFlag := fs.String("config", "", "path to the YAML config (overrides $"+opts.ConfigEnvVar+")")
	version := fs.Bool("version", false, "print the build version and exit")
	if err := fs.Parse(opts.Args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("cmd: %w", err)
	}
	if *version {
		_, err := fmt.Fprintln(opts.Stdout, buildinfo.String())
		return err
	}

	cfgPath := firstNonEmpty(*configFlag, os.Getenv(opts.ConfigEnvVar), opts.DefaultConfigPath)
	if cfgPath == "" {
		return fmt.Errorf("cmd: no config path: pass -config or set %s", opts.ConfigEnvVar)
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := opts.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: load config: %w", err)
	}
	if cfg == nil || cfg.CoreConfig() == nil {
		return errors.New("cmd: loaded config is missing core configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	startedAt := time.Now()

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	app, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap: %w", err)
	}
	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options: %w", err)
	}
	announce(&runOpts, startedAt)

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}

// announce wraps the lifecycle hooks with the app.ready and app.shutdown lines.
func announce(runOpts *coretelegram.RunOptions, startedAt time.Time) {
	prevStart, prevStop := runOpts.OnStart, runOpts.OnStop
	tasks := len(runOpts.Background)

	runOpts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if prevStart != nil {
			if err := prevStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, "app", "ready",
			slog.Int("tasks", tasks),
			slog.Duration("startup_duration", time.Since(startedAt)),
		)
		return nil
	}
	runOpts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, "app", "shutdown")
		if prevStop != nil {
			return prevStop(ctx, rt)
		}
		return nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
