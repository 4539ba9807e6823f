package helpers

import (
	"context"
	"errors"
	"testing"

	"github.com/m3rciful/moexbot/core/telegram/sender"
)

type stubQueue struct {
	err    error
	queued int
}

func (s *stubQueue) Enqueue(_ context.Context, _ int64, _, _ string, _ func() error) error {
	if s.err != nil {
		return s.err
	}
	s.queued++
	return nil
}

func TestSendAsync(t *testing.T) {
	ran := 0
	run := func() error { ran++; return nil }

	if err := SendAsync(context.Background(), nil, 1, "a", "e", run); err != nil || ran != 1 {
		t.Fatalf("nil dispatcher: err=%v ran=%d", err, ran)
	}

	q := &stubQueue{}
	if err := SendAsync(context.Background(), q, 1, "a", "e", run); err != nil || ran != 1 || q.queued != 1 {
		t.Fatalf("queued: err=%v ran=%d queued=%d", err, ran, q.queued)
	}

	for _, qerr := range []error{sender.ErrQueueFull, sender.ErrQueueClosed} {
		q.err = qerr
		if err := SendAsync(context.Background(), q, 1, "a", "e", run); err != nil {
			t.Fatalf("%v: %v", qerr, err)
		}
	}
	if ran != 3 {
		t.Fatalf("fallback ran %d times, want 3", ran)
	}

	boom := errors.New("boom")
	q.err = boom
	if err := SendAsync(context.Background(), q, 1, "a", "e", run); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}
