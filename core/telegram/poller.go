package telegram

import (
	coreconfig "github.com/m3rciful/moexbot/core/config"

	tele "gopkg.in/telebot.v4"
)

// allowedUpdates are the only update types the bot handles.
var allowedUpdates = []string{"message", "callback_query"}

// BuildPoller returns the webhook listener or the long poller selected by a
// normalized config.
func BuildPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:         cfg.WebhookListen(),
			AllowedUpdates: allowedUpdates,
			Endpoint:       &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	return &tele.LongPoller{
		Timeout:        cfg.PollTimeout(),
		AllowedUpdates: allowedUpdates,
	}
}
