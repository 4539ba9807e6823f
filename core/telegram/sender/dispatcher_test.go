package sender

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestSameKeyKeepsOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 4, QueueSize: 400})
	var mu sync.Mutex
	got := map[int64][]int{}
	for i := 0; i < 50; i++ {
		for _, key := range []int64{11, 12, 13} {
			if err := d.Enqueue(context.Background(), key, "send.text", "sendMessage", func() error {
				mu.Lock()
				got[key] = append(got[key], i)
				mu.Unlock()
				return nil
			}); err != nil {
				t.Fatalf("enqueue: %v", err)
			}
		}
	}
	d.Close()
	for key, seq := range got {
		if len(seq) != 50 {
			t.Fatalf("key %d ran %d jobs", key, len(seq))
		}
		for i, v := range seq {
			if v != i {
				t.Fatalf("key %d out of order: %v", key, seq)
			}
		}
	}
	if st := d.Stats(); st.Sent != 150 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	calls := 0
	_ = d.Enqueue(context.Background(), 1, "a", "e", func() error {
		calls++
		if calls < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		return nil
	})
	d.Close()
	if st := d.Stats(); calls != 3 || st.Sent != 1 || st.Retried != 2 || st.Failed != 0 {
		t.Fatalf("calls=%d stats=%+v", calls, st)
	}
}

func TestFloodWaitIsCapped(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 1, MaxFloodWait: 5 * time.Millisecond})
	delay, ok := d.retryDelay(tele.FloodError{RetryAfter: 60}, 1)
	if !ok || delay != 5*time.Millisecond {
		t.Fatalf("delay = %v %v", delay, ok)
	}
	d.Close()
}

func TestBlockedChatIsNotRetried(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	calls := 0
	_ = d.Enqueue(context.Background(), 1, "a", "e", func() error {
		calls++
		return fmt.Errorf("telegram send: %w", tele.ErrBlockedByUser)
	})
	d.Close()
	if st := d.Stats(); calls != 1 || st.Blocked != 1 || st.Failed != 0 {
		t.Fatalf("calls=%d stats=%+v", calls, st)
	}
}

func TestPermanentErrorFails(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3})
	calls := 0
	_ = d.Enqueue(context.Background(), 0, "a", "e", func() error {
		calls++
		return errors.New("bad request")
	})
	d.Close()
	if st := d.Stats(); calls != 1 || st.Failed != 1 {
		t.Fatalf("calls=%d stats=%+v", calls, st)
	}
}

func TestEnqueueAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	if err := d.Enqueue(context.Background(), 1, "a", "e", func() error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v", err)
	}
}

func TestQueueFull(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	_ = d.Enqueue(context.Background(), 1, "a", "e", func() error {
		close(started)
		<-release
		return nil
	})
	<-started
	if err := d.Enqueue(context.Background(), 1, "a", "e", func() error { return nil }); err != nil {
		t.Fatalf("second job: %v", err)
	}
	if err := d.Enqueue(context.Background(), 1, "a", "e", func() error { return nil }); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v", err)
	}
	close(release)
	d.Close()
}

func TestSanitizeErrorMessage(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot1234567890:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw_/sendMessage": timeout`)
	if got := sanitizeErrorMessage(err); got != `Post "https://api.telegram.org/bot***/sendMessage": timeout` {
		t.Fatalf("got %q", got)
	}
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{tele.FloodError{RetryAfter: 3}, "flood"},
		{&net.OpError{Op: "dial", Err: errors.New("refused")}, "dial"},
		{fmt.Errorf("send: %w", tele.ErrChatNotFound), "http_4xx"},
		{errors.New("telegram: internal failure (502)"), "http_5xx"},
		{errors.New("weird"), "unknown"},
	}
	for _, tc := range cases {
		if got := classifyError(tc.err); got != tc.want {
			t.Fatalf("classifyError(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
