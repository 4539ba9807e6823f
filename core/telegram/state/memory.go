package state

import (
	"context"
	"sync"
)

const shardCount = 32

type entry[T any] struct {
	lock  chan struct{}
	refs  int
	value *T
}

type shard[T any] struct {
	mu      sync.Mutex
	entries map[int64]*entry[T]
}

// Manager stores one optional session value per chat in a sharded map.
// Entries are refcounted and disappear once no lease holds them and no value is stored.
type Manager[T any] struct {
	shards [shardCount]shard[T]
}

// NewManager constructs an empty in-memory Manager.
func NewManager[T any]() *Manager[T] {
	m := &Manager[T]{}
	for i := range m.shards {
		m.shards[i].entries = make(map[int64]*entry[T])
	}
	return m
}

func (m *Manager[T]) shardFor(chatID int64) *shard[T] {
	idx := uint64(chatID) % shardCount
	return &m.shards[idx]
}

// Acquire blocks until the caller owns the chat's session or ctx is done.
func (m *Manager[T]) Acquire(ctx context.Context, chatID int64) (*Lease[T], error) {
	sh := m.shardFor(chatID)
	sh.mu.Lock()
	e, ok := sh.entries[chatID]
	if !ok {
		e = &entry[T]{lock: make(chan struct{}, 1)}
		sh.entries[chatID] = e
	}
	e.refs++
	sh.mu.Unlock()

	select {
	case e.lock <- struct{}{}:
		return &Lease[T]{m: m, sh: sh, e: e, chatID: chatID}, nil
	case <-ctx.Done():
		m.unref(sh, chatID, e)
		return nil, ctx.Err()
	}
}

func (m *Manager[T]) unref(sh *shard[T], chatID int64, e *entry[T]) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e.refs--
	if e.refs == 0 && e.value == nil {
		delete(sh.entries, chatID)
	}
}

// Active reports whether a session value is stored for the chat.
func (m *Manager[T]) Active(chatID int64) bool {
	sh := m.shardFor(chatID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[chatID]
	return ok && e.value != nil
}

// Len returns the number of chats with a stored session value.
func (m *Manager[T]) Len() int {
	n := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		for _, e := range sh.entries {
			if e.value != nil {
				n++
			}
		}
		sh.mu.Unlock()
	}
	return n
}

// Lease is exclusive access to one chat's session until Release.
type Lease[T any] struct {
	m        *Manager[T]
	sh       *shard[T]
	e        *entry[T]
	chatID   int64
	released bool
}

// ChatID returns the chat the lease belongs to.
func (l *Lease[T]) ChatID() int64 { return l.chatID }

// Get returns the stored session value, if any.
func (l *Lease[T]) Get() (T, bool) {
	var zero T
	if l.released {
		return zero, false
	}
	l.sh.mu.Lock()
	defer l.sh.mu.Unlock()
	if l.e.value == nil {
		return zero, false
	}
	return *l.e.value, true
}

// Set stores the session value.
func (l *Lease[T]) Set(v T) error {
	if l.released {
		return ErrReleased
	}
	l.sh.mu.Lock()
	l.e.value = &v
	l.sh.mu.Unlock()
	return nil
}

// Clear drops the session value; the entry is removed on Release.
func (l *Lease[T]) Clear() {
	if l.released {
		return
	}
	l.sh.mu.Lock()
	l.e.value = nil
	l.sh.mu.Unlock()
}

// Release gives up the lease. It is safe to call more than once.
func (l *Lease[T]) Release() {
	if l.released {
		return
	}
	l.released = true
	<-l.e.lock
	l.m.unref(l.sh, l.chatID, l.e)
}
