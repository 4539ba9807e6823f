package sender

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/moexbot/core/logger"
	"github.com/m3rciful/moexbot/core/netutil"

	tele "gopkg.in/telebot.v4"
)

const component = "tg.sender"

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// QueueSize is the total capacity, split evenly between workers.
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
	// MaxFloodWait caps how long a job honours Telegram's retry_after.
	MaxFloodWait time.Duration
}

// Stats counts job outcomes since start.
type Stats struct {
	Sent    uint64
	Retried uint64
	Failed  uint64
	// Blocked counts chats that refuse messages (bot blocked, chat gone).
	Blocked uint64
}

type job struct {
	ctx      context.Context
	key      int64
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
// Jobs sharing a key run on the same worker, so one chat's messages keep
// their order while different chats are delivered in parallel.
type Dispatcher struct {
	opts   Options
	queues []chan job
	stop   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	wg     sync.WaitGroup
	next   atomic.Uint64

	sent, retried, failed, blocked atomic.Uint64
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}
	if opts.MaxFloodWait <= 0 {
		opts.MaxFloodWait = 30 * time.Second
	}

	perWorker := opts.QueueSize / opts.Workers
	if perWorker < 1 {
		perWorker = 1
	}
	d := &Dispatcher{
		opts:   opts,
		queues: make([]chan job, opts.Workers),
		stop:   make(chan struct{}),
	}
	d.wg.Add(opts.Workers)
	for i := range d.queues {
		d.queues[i] = make(chan job, perWorker)
		go d.worker(d.queues[i])
	}
	return d
}

// Enqueue schedules run for asynchronous execution. A non-zero key (a chat
// id) pins the job to one worker; zero spreads jobs round-robin.
// The run closure must be idempotent if retries are desired.
func (d *Dispatcher) Enqueue(ctx context.Context, key int64, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	select {
	case <-d.stop:
		return ErrQueueClosed
	default:
	}

	j := job{ctx: ctx, key: key, action: action, endpoint: endpoint, run: run}
	select {
	case d.queues[d.shard(key)] <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) shard(key int64) int {
	n := uint64(len(d.queues))
	if key == 0 {
		return int(d.next.Add(1) % n)
	}
	if key < 0 {
		key = -key
	}
	return int(uint64(key) % n)
}

// Stats returns outcome counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Sent:    d.sent.Load(),
		Retried: d.retried.Load(),
		Failed:  d.failed.Load(),
		Blocked: d.blocked.Load(),
	}
}

// Close stops accepting jobs and waits for the queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		close(d.stop)
		for _, q := range d.queues {
			close(q)
		}
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker(q <-chan job) {
	defer d.wg.Done()
	for j := range q {
		d.handleJob(j)
	}
}

func (d *Dispatcher) handleJob(j job) {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	// Queued jobs outlive the update or tick that produced them.
	ctx = context.WithoutCancel(ctx)
	deadlineCtx, cancel := context.WithTimeout(ctx, d.opts.MaxDuration+d.opts.MaxFloodWait)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = j.run()
		if lastErr == nil {
			d.sent.Add(1)
			logSendSuccess(ctx, j, attempt, time.Since(start))
			return
		}
		if isBlocked(lastErr) {
			d.blocked.Add(1)
			logger.Warn(ctx, component, "send.blocked",
				append(jobAttrs(ctx, j), slog.String("err", sanitizeErrorMessage(lastErr)))...,
			)
			return
		}
		delay, retry := d.retryDelay(lastErr, attempt)
		if !retry || attempt == attempts {
			break
		}
		d.retried.Add(1)
		logger.Debug(ctx, component, "send.retry.backoff",
			append(jobAttrs(ctx, j),
				slog.Int("attempts", attempt),
				slog.Duration("delay", delay),
			)...,
		)
		timer := time.NewTimer(delay)
		select {
		case <-deadlineCtx.Done():
			timer.Stop()
			lastErr = errors.Join(lastErr, deadlineCtx.Err())
			attempt = attempts
		case <-timer.C:
		}
	}
	d.failed.Add(1)
	logSendFailure(ctx, j, lastErr, attempts, time.Since(start))
}

// retryDelay honours Telegram's retry_after on 429 and otherwise backs off
// linearly on transient network errors.
func (d *Dispatcher) retryDelay(err error, attempt int) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		wait := time.Duration(flood.RetryAfter) * time.Second
		if wait <= 0 {
			wait = d.opts.RetryBackoff
		}
		return min(wait, d.opts.MaxFloodWait), true
	}
	if !netutil.ShouldRetry(err) {
		return 0, false
	}
	return d.opts.RetryBackoff * time.Duration(attempt), true
}

// isBlocked reports errors that no retry can fix for this chat.
func isBlocked(err error) bool {
	switch {
	case errors.Is(err, tele.ErrBlockedByUser),
		errors.Is(err, tele.ErrUserIsDeactivated),
		errors.Is(err, tele.ErrChatNotFound),
		errors.Is(err, tele.ErrKickedFromGroup):
		return true
	}
	return false
}

// jobAttrs describes j. The chat id is added only when the job targets a
// chat other than the one carried by ctx.
func jobAttrs(ctx context.Context, j job) []slog.Attr {
	attrs := []slog.Attr{slog.String("op", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	if j.key != 0 && j.key != logger.ChatIDFrom(ctx) {
		attrs = append(attrs, slog.Int64("chat_id", j.key))
	}
	return attrs
}

func logSendSuccess(ctx context.Context, j job, attempt int, elapsed time.Duration) {
	attrs := append(jobAttrs(ctx, j), slog.Duration("duration", elapsed))
	if attempt > 1 {
		attrs = append(attrs, slog.Int("attempts", attempt))
	}
	logger.Debug(ctx, component, "send.success", attrs...)
}

func logSendFailure(ctx context.Context, j job, err error, attempts int, elapsed time.Duration) {
	logger.Error(ctx, component, "send.fail", append(jobAttrs(ctx, j),
		slog.String("status", "fail"),
		slog.String("err", sanitizeErrorMessage(err)),
		slog.String("err_code", classifyError(err)),
		slog.Int("attempts", attempts),
		slog.Duration("duration", elapsed),
	)...)
}

// classifyError names the failure: a Telegram status class, "flood", or the
// transport failure reported by netutil.
func classifyError(err error) string {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return "flood"
	}
	if kind := netutil.Classify(err); kind != "" {
		return kind
	}
	switch status := httpStatus(err); {
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// sanitizeErrorMessage masks bot tokens that transport errors carry in URLs.
func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return logger.Redact(err.Error())
}

// httpStatus extracts the Bot API error code, falling back to a trailing
// "(NNN)" in the message as telebot formats unknown API errors.
func httpStatus(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return http.StatusBadRequest
	}
	msg := err.Error()
	open, end := strings.LastIndex(msg, "("), strings.LastIndex(msg, ")")
	if open < 0 || end <= open+1 {
		return 0
	}
	code, convErr := strconv.Atoi(strings.TrimSpace(msg[open+1 : end]))
	if convErr != nil {
		return 0
	}
	return code
}
