package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	coreconfig "github.com/m3rciful/moexbot/core/config"
	"github.com/m3rciful/moexbot/core/logger"
	tgsender "github.com/m3rciful/moexbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
	"log/slog"
)

const runComponent = "tg"

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// Task is a background loop that lives as long as the bot does.
// Run must return when ctx is cancelled.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	// Bot is built from Config when nil.
	Bot *tele.Bot

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route
	Background  []Task

	DisableWebhookCleanup bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// NewBot builds a bot with the poller and HTTP client selected by cfg.
func NewBot(ctx context.Context, cfg *coreconfig.Config) (*tele.Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("telegram: nil config provided")
	}
	poller := BuildPoller(cfg)

	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: poller,
		Client: BuildHTTPClient(cfg.PollTimeout()),
		OnError: func(err error, c tele.Context) {
			logger.Error(ctx, runComponent, "handler.error",
				slog.String("status", "fail"),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}

	switch p := poller.(type) {
	case *tele.Webhook:
		logger.Info(ctx, runComponent, "mode",
			slog.String("mode", "webhook"),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
	default:
		logger.Info(ctx, runComponent, "mode",
			slog.String("mode", "polling"),
			slog.Duration("poll_timeout", cfg.PollTimeout()),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
	}
	return bot, nil
}

// RunTelegram composes and runs a Telegram bot and its background tasks
// until the provided context is done or one of the tasks fails.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}

	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	bot := opts.Bot
	if bot == nil {
		var err error
		if bot, err = NewBot(ctx, cfg); err != nil {
			return err
		}
	}

	if _, webhook := bot.Poller.(*tele.Webhook); !webhook && !opts.DisableWebhookCleanup {
		if err := deleteWebhook(ctx, cfg.Telegram.Token, false); err != nil {
			logger.Warn(ctx, runComponent, "delete_webhook",
				slog.String("status", "fail"),
				slog.String("mode", "polling"),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		} else {
			logger.Info(ctx, runComponent, "delete_webhook",
				slog.String("status", "ok"),
				slog.String("mode", "polling"),
			)
		}
	}

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}

	rt := Runtime{
		Bot:        bot,
		Dispatcher: dispatcher,
		Registry:   reg,
	}

	for _, mw := range opts.Middlewares {
		if mw.Use == nil {
			continue
		}
		bot.Use(mw.Use)
	}

	for _, route := range opts.Routes {
		if route.Endpoint == nil || route.Handler == nil {
			continue
		}
		bot.Handle(route.Endpoint, route.Handler)
	}

	InitBotCommands(bot, reg)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			dispatcher.Close()
			return err
		}
	}

	taskCtx, cancelTasks := context.WithCancel(ctx)
	defer cancelTasks()
	g, gctx := errgroup.WithContext(taskCtx)
	for _, task := range opts.Background {
		if task.Run == nil {
			continue
		}
		g.Go(func() error {
			logger.Info(gctx, runComponent, "task.start", slog.String("task", task.Name))
			err := task.Run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error(gctx, runComponent, "task.stop",
					slog.String("status", "fail"),
					slog.String("task", task.Name),
					slog.String("err", err.Error()),
				)
				return fmt.Errorf("telegram: task %s: %w", task.Name, err)
			}
			return nil
		})
	}

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	select {
	case <-gctx.Done():
		bot.Stop()
		<-runDone
	case <-runDone:
	}
	cancelTasks()
	taskErr := g.Wait()

	var stopErr error
	if opts.OnStop != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		stopErr = opts.OnStop(stopCtx, rt)
		cancel()
	}

	dispatcher.Close()

	return errors.Join(taskErr, stopErr)
}

func deleteWebhook(ctx context.Context, token string, dropPending bool) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("empty token")
	}
	url := fmt.Sprintf("https://api.telegram.org/bot%s/deleteWebhook", token)
	body := "drop_pending_updates=false"
	if dropPending {
		body = "drop_pending_updates=true"
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deleteWebhook status: %s", resp.Status)
	}
	return nil
}
