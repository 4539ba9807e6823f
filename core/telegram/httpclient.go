package telegram

import (
	"net/http"
	"time"

	coreconfig "github.com/m3rciful/moexbot/core/config"
	"github.com/m3rciful/moexbot/core/netutil"
)

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls.
// getUpdates holds the response until the poll timeout expires, so both the
// header and the overall timeouts stay above it.
func BuildHTTPClient(pollTimeout time.Duration) *http.Client {
	if pollTimeout <= 0 {
		pollTimeout = coreconfig.DefaultPollTimeout
	}
	return netutil.NewHTTPClient(netutil.ClientOptions{
		Timeout:         pollTimeout + 20*time.Second,
		ResponseTimeout: pollTimeout + 10*time.Second,
	})
}
