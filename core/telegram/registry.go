package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/moexbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const wireComponent = "tg.wire"

// Command is a slash command with its handler and menu metadata.
// Hidden and AdminOnly commands are left out of the Telegram command menu.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
}

// Registry maps slash commands and callback unique keys to handlers.
// Registration happens during wiring; lookups may run concurrently.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]Command
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry returns an empty Registry whose unknown-callback fallback
// shows a short toast.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]Command),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

// CommandName returns "/name" for "/Name@bot args", or "" when text is not a command.
func CommandName(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	name, _, _ := strings.Cut(text, " ")
	name, _, _ = strings.Cut(name, "@")
	if name == "/" {
		return ""
	}
	return strings.ToLower(name)
}

// RegisterCommand adds a command. name must be a lower-case "/command".
func (r *Registry) RegisterCommand(name string, cmd Command) error {
	if CommandName(name) != name || cmd.Handler == nil || cmd.Description == "" {
		logger.Warn(context.Background(), wireComponent, "register.command.skip",
			slog.String("name", name),
			slog.String("cause", "invalid"),
		)
		return fmt.Errorf("invalid command %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[name]; exists {
		logger.Warn(context.Background(), wireComponent, "register.command.duplicate",
			slog.String("name", name),
		)
		return fmt.Errorf("command already registered: %s", name)
	}
	r.commands[name] = cmd
	return nil
}

// ListCommands returns the commands sorted by name. visibleOnly leaves out
// hidden and admin-only ones.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []tele.Command
	for _, name := range slices.Sorted(maps.Keys(r.commands)) {
		meta := r.commands[name]
		if visibleOnly && (meta.Hidden || meta.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: name, Description: meta.Description})
	}
	return list
}

// LookupCommand resolves text such as "/Find@moex_bot x" to a registered command.
func (r *Registry) LookupCommand(text string) (string, Command, bool) {
	name := CommandName(text)
	if name == "" {
		return "", Command{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return name, cmd, ok
}

// Commands returns a copy of the registered commands.
func (r *Registry) Commands() map[string]Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.commands)
}

// RegisterCallback maps a callback unique key to handler.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		logger.Warn(context.Background(), wireComponent, "register.callback.skip",
			slog.String("cb_key", key),
			slog.Bool("handler_nil", handler == nil),
		)
		return fmt.Errorf("invalid callback %q", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		logger.Warn(context.Background(), wireComponent, "register.callback.duplicate",
			slog.String("cb_key", key),
		)
		return fmt.Errorf("callback already registered: %s", key)
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler for key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered keys, sorted.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.callbacks))
}

// SetCallbackNotFound replaces the handler for unknown callback keys.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbackNotFound = h
}

func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text that matched nothing else.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.textFallback = h
}

func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// InitBotCommands publishes the visible commands to the Telegram command menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	cmds := reg.ListCommands(true)
	if err := bot.SetCommands(cmds); err != nil {
		logger.Error(context.Background(), wireComponent, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Info(context.Background(), wireComponent, "register.commands.set",
		slog.Int("count", len(cmds)),
	)
}
