package state

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLeaseSerializesSameChat(t *testing.T) {
	m := NewManager[int]()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := m.Acquire(ctx, 42)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			defer l.Release()
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("expected exclusive access, saw %d concurrent holders", maxSeen)
	}
}

func TestLeaseDifferentChatsDoNotBlock(t *testing.T) {
	m := NewManager[string]()
	ctx := context.Background()
	a, err := m.Acquire(ctx, 1)
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	defer a.Release()

	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	b, err := m.Acquire(ctx2, 2)
	if err != nil {
		t.Fatalf("acquire b should not block: %v", err)
	}
	b.Release()
}

func TestAcquireHonoursContext(t *testing.T) {
	m := NewManager[string]()
	held, err := m.Acquire(context.Background(), 7)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Acquire(ctx, 7); err == nil {
		t.Fatal("expected context error while lease is held")
	}
}

func TestValueLifecycle(t *testing.T) {
	m := NewManager[string]()
	ctx := context.Background()

	l, _ := m.Acquire(ctx, 5)
	if _, ok := l.Get(); ok {
		t.Fatal("fresh lease must have no value")
	}
	if err := l.Set("find"); err != nil {
		t.Fatalf("set: %v", err)
	}
	l.Release()

	if !m.Active(5) || m.Len() != 1 {
		t.Fatalf("expected stored session, active=%v len=%d", m.Active(5), m.Len())
	}

	l, _ = m.Acquire(ctx, 5)
	v, ok := l.Get()
	if !ok || v != "find" {
		t.Fatalf("got %q ok=%v", v, ok)
	}
	l.Clear()
	l.Release()
	l.Release()

	if m.Active(5) || m.Len() != 0 {
		t.Fatal("cleared session must be gone")
	}
	sh := m.shardFor(5)
	sh.mu.Lock()
	_, exists := sh.entries[5]
	sh.mu.Unlock()
	if exists {
		t.Fatal("entry should be deleted after last release")
	}
	if err := l.Set("late"); err != ErrReleased {
		t.Fatalf("set after release: %v", err)
	}
}
