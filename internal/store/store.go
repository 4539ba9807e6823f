// Package store keeps registered users and their watchlists in memory and
// writes a full snapshot through a Persister after every mutation.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/m3rciful/moexbot/core/logger"
	"github.com/m3rciful/moexbot/internal/domain"
)

const component = "store"

// Persister loads and saves the complete user set.
type Persister interface {
	Load(ctx context.Context) ([]domain.User, error)
	Save(ctx context.Context, users []domain.User) error
}

type userEntry struct {
	mu   sync.Mutex
	user domain.User
}

// Store is safe for concurrent use by the dispatcher and the scheduler.
// Readers always receive deep copies.
type Store struct {
	mu      sync.RWMutex
	users   map[int64]*userEntry
	persist Persister
	saveMu  sync.Mutex
}

// Stats summarises the store contents.
type Stats struct {
	Users int
	Lists int
	Items int
}

// New returns an empty store. A nil persister keeps data in memory only.
func New(p Persister) *Store {
	return &Store{users: make(map[int64]*userEntry), persist: p}
}

// Open builds a store and loads existing users from p.
func Open(ctx context.Context, p Persister) (*Store, error) {
	s := New(p)
	if p == nil {
		return s, nil
	}
	start := time.Now()
	users, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: load: %w", err)
	}
	for _, u := range users {
		u.EnsureDefaultList()
		s.users[u.ChatID] = &userEntry{user: u.Clone()}
	}
	logger.Info(ctx, component, "load",
		slog.String("status", "ok"),
		slog.Int("users", len(users)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return s, nil
}

func (s *Store) entry(chatID int64) (*userEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.users[chatID]
	return e, ok
}

// Get returns a copy of the user.
func (s *Store) Get(chatID int64) (domain.User, bool) {
	e, ok := s.entry(chatID)
	if !ok {
		return domain.User{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.user.Clone(), true
}

// GetOrCreate registers the user on first contact and refreshes the username
// afterwards. The default list is guaranteed on return.
func (s *Store) GetOrCreate(ctx context.Context, chatID int64, username string) (domain.User, bool, error) {
	s.mu.Lock()
	e, ok := s.users[chatID]
	created := !ok
	if created {
		e = &userEntry{user: domain.NewUser(chatID, username)}
		s.users[chatID] = e
	}
	e.mu.Lock()
	s.mu.Unlock()

	changed := created
	if username != "" && e.user.Username != username {
		e.user.Username = username
		changed = true
	}
	if e.user.EnsureDefaultList() {
		changed = true
	}
	out := e.user.Clone()
	e.mu.Unlock()

	if created {
		logger.Info(ctx, component, "user.created",
			slog.String("status", "ok"),
			slog.Int64("chat_id", chatID),
		)
	}
	if changed {
		if err := s.save(ctx); err != nil {
			return out, created, err
		}
	}
	return out, created, nil
}

// Update applies fn to a copy of the user and commits it when fn succeeds.
// The new state is persisted before Update returns; when that fails the
// change stays committed and the error wraps domain.ErrNotSaved.
func (s *Store) Update(ctx context.Context, chatID int64, fn func(u *domain.User) error) (domain.User, error) {
	e, ok := s.entry(chatID)
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	e.mu.Lock()
	draft := e.user.Clone()
	if err := fn(&draft); err != nil {
		e.mu.Unlock()
		return e.user.Clone(), err
	}
	e.user = draft
	out := draft.Clone()
	e.mu.Unlock()

	if err := s.save(ctx); err != nil {
		return out, err
	}
	return out, nil
}

// Delete removes a user. It reports false when the user was unknown.
func (s *Store) Delete(ctx context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	_, ok := s.users[chatID]
	delete(s.users, chatID)
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, s.save(ctx)
}

// Snapshot returns deep copies of all users ordered by chat id.
func (s *Store) Snapshot() []domain.User {
	s.mu.RLock()
	entries := make([]*userEntry, 0, len(s.users))
	for _, e := range s.users {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]domain.User, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.user.Clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out
}

// Stats counts users, lists and items.
func (s *Store) Stats() Stats {
	var st Stats
	for _, u := range s.Snapshot() {
		st.Users++
		st.Lists += len(u.Lists)
		for _, l := range u.Lists {
			st.Items += len(l.Items)
		}
	}
	return st
}

// Flush persists the current state. Used on shutdown.
func (s *Store) Flush(ctx context.Context) error {
	return s.save(ctx)
}

func (s *Store) save(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	users := s.Snapshot()
	start := time.Now()
	if err := s.persist.Save(ctx, users); err != nil {
		logger.Error(ctx, component, "save",
			slog.String("status", "fail"),
			slog.Int("users", len(users)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("store: save: %w: %w", domain.ErrNotSaved, err)
	}
	logger.Debug(ctx, component, "save",
		slog.String("status", "ok"),
		slog.Int("users", len(users)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return nil
}
