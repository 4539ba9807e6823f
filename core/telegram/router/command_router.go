package router

import (
	"log/slog"
	"time"

	"github.com/m3rciful/moexbot/core/logger"
	tg "github.com/m3rciful/moexbot/core/telegram"
	"github.com/m3rciful/moexbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per registered command, sorted by name.
// Admin-only commands are gated before the update is logged.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	gate := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	defs := reg.Commands()
	cmds := reg.ListCommands(false)
	routes := make([]tg.Route, 0, len(cmds))
	admin := 0
	for _, cmd := range cmds {
		def := defs[cmd.Text]
		name := handlerName(cmd.Text)
		h := middleware.LoggerMiddleware(middleware.RecoverMiddleware(func(c tele.Context) error {
			return summarize(c, name, time.Now(), def.Handler)
		}))
		if def.AdminOnly {
			h = gate(h)
			admin++
		}
		routes = append(routes, tg.Route{Endpoint: cmd.Text, Handler: h})
	}

	logger.Info(logger.Background(), "tg.wire", "wire.complete",
		slog.Int("commands", len(routes)),
		slog.Int("admin_commands", admin),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
