package helpers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/moexbot/core/logger"
	"github.com/m3rciful/moexbot/core/telegram/sender"
)

// Enqueuer accepts outbound calls for asynchronous execution.
type Enqueuer interface {
	Enqueue(ctx context.Context, key int64, action, endpoint string, run func() error) error
}

// SendAsync hands run to disp under key, usually the target chat id.
// Without a dispatcher, or when its queue is full or stopped, run is called
// synchronously so the message is not lost.
func SendAsync(ctx context.Context, disp Enqueuer, key int64, action, endpoint string, run func() error) error {
	if disp == nil {
		return run()
	}
	if err := disp.Enqueue(ctx, key, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.Int64("chat_id", key),
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}
