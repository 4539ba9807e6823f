package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/m3rciful/moexbot/core/bootstrap"
	"github.com/m3rciful/moexbot/core/buildinfo"
	"github.com/m3rciful/moexbot/core/logger"
	coretelegram "github.com/m3rciful/moexbot/core/telegram"
	"github.com/m3rciful/moexbot/core/telegram/router"
	tgsender "github.com/m3rciful/moexbot/core/telegram/sender"
	rediscache "github.com/m3rciful/moexbot/internal/cache/redis"
	"github.com/m3rciful/moexbot/internal/config"
	"github.com/m3rciful/moexbot/internal/dispatcher"
	"github.com/m3rciful/moexbot/internal/domain"
	"github.com/m3rciful/moexbot/internal/events"
	"github.com/m3rciful/moexbot/internal/moex"
	"github.com/m3rciful/moexbot/internal/notify"
	"github.com/m3rciful/moexbot/internal/scenario"
	"github.com/m3rciful/moexbot/internal/store"
	"github.com/m3rciful/moexbot/internal/store/jsonfile"
	"github.com/m3rciful/moexbot/internal/store/postgres"
	"github.com/m3rciful/moexbot/internal/store/s3snapshot"

	tele "gopkg.in/telebot.v4"
)

// App holds every long-lived component of the bot.
type App struct {
	cfg *config.Config

	bot        *tele.Bot
	outbound   *tgsender.Dispatcher
	store      *store.Store
	dispatcher *dispatcher.Dispatcher
	scheduler  *notify.Scheduler
	handlers   *Handlers

	// closers run on shutdown in reverse order.
	closers []io.Closer
}

// Bootstrap initialises logging and storage, connects optional
// infrastructure and builds the bot.
func Bootstrap(ctx context.Context, cfg *config.Config) (app *App, err error) {
	opts := bootstrap.Options{Config: cfg.CoreConfig()}
	if cfg.Storage.Driver == config.DriverPostgres {
		opts.Database = &cfg.Storage.Database
		opts.Migrations = postgres.Migrations()
		opts.MigrationsDir = postgres.MigrationsDir
	}
	res, err := bootstrap.Run(ctx, opts)
	if err != nil {
		return nil, err
	}

	app = &App{cfg: cfg}
	defer func() {
		if err != nil {
			_ = app.close()
		}
	}()

	persister, err := app.openPersister(ctx, res)
	if err != nil {
		return nil, err
	}
	if app.store, err = store.Open(ctx, persister); err != nil {
		return nil, err
	}

	iss := moex.New(moex.Options{BaseURL: cfg.Moex.BaseURL, Timeout: cfg.MoexTimeout()})
	var prices domain.PriceLookup = iss
	if cfg.Redis.Enabled {
		rc, err := rediscache.New(ctx, rediscache.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			TLSEnabled: cfg.Redis.TLS,
		})
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		app.closers = append(app.closers, rc)
		prices = rediscache.NewCachedLookup(iss, rediscache.NewPriceCache(rc), cfg.PriceTTL())
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.Kafka.Enabled {
		k, err := events.NewKafka(cfg.Kafka.KafkaConfig)
		if err != nil {
			return nil, fmt.Errorf("kafka: %w", err)
		}
		app.closers = append(app.closers, k)
		publisher = k
	}

	if app.bot, err = coretelegram.NewBot(ctx, cfg.CoreConfig()); err != nil {
		return nil, err
	}
	direct := NewSender(app.bot)
	app.outbound = tgsender.NewDispatcher(tgsender.Options{
		QueueSize:  cfg.Scheduler.QueueSize,
		Workers:    cfg.Scheduler.Workers,
		MaxRetries: 2,
	})

	loc := cfg.Location()
	scenarios := scenario.Default(scenario.Deps{
		Users:     app.store,
		Sender:    direct,
		Prices:    prices,
		Analytics: iss,
		Location:  loc,
	})
	app.dispatcher = dispatcher.New(dispatcher.Options{
		Users:     app.store,
		Sender:    direct,
		Prices:    prices,
		Scenarios: scenarios,
		About:     aboutText(),
		Location:  loc,
	})
	app.scheduler = notify.New(notify.Options{
		Users:    app.store,
		Prices:   prices,
		Sender:   NewQueuedSender(direct, app.outbound),
		Events:   publisher,
		Location: loc,
		Interval: cfg.SchedulerInterval(),
	})
	app.handlers = NewHandlers(app.dispatcher, StatsSource{
		Store:    app.store.Stats,
		LastTick: app.scheduler.LastReport,
		Outbound: app.outbound.Stats,
	})

	logger.Info(ctx, component, "bootstrap",
		slog.String("status", "ok"),
		slog.String("storage", cfg.Storage.Driver),
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.Bool("kafka", cfg.Kafka.Enabled),
		slog.String("tz", loc.String()),
	)
	return app, nil
}

func (a *App) openPersister(ctx context.Context, res *bootstrap.Result) (store.Persister, error) {
	st := a.cfg.Storage
	switch st.Driver {
	case config.DriverPostgres:
		p := postgres.New(res.DB)
		a.closers = append(a.closers, p)
		return p, nil
	case config.DriverS3:
		return s3snapshot.New(ctx, st.S3)
	default:
		return jsonfile.New(st.Path), nil
	}
}

// TelegramRunOptions wires the registry, routes and background tasks.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	if err := a.handlers.Register(reg); err != nil {
		return coretelegram.RunOptions{}, err
	}

	core := a.cfg.CoreConfig()
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: core.Telegram.AdminID})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.handlers, reg, router.TextOptions{
		UnknownDocument: a.handlers.UnknownDocument,
	})...)

	return coretelegram.RunOptions{
		Config:      core,
		Registry:    reg,
		Bot:         a.bot,
		Dispatcher:  a.outbound,
		Middlewares: coretelegram.DefaultMiddlewares(core, nil),
		Routes:      routes,
		Background: []coretelegram.Task{
			{Name: "scheduler", Run: a.scheduler.Run},
		},
		OnStop: func(ctx context.Context, _ coretelegram.Runtime) error {
			return errors.Join(a.store.Flush(ctx), a.close())
		},
	}, nil
}

func (a *App) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func aboutText() string {
	return "ℹ️ MOEX watchlist bot\n" +
		"Track Moscow Exchange securities in lists. A list named HH:MM sends its prices every day at that time.\n" +
		"Version: " + buildinfo.String()
}
