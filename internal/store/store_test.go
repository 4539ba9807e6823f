package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/m3rciful/moexbot/internal/domain"
)

type memPersister struct {
	mu    sync.Mutex
	saved []domain.User
	saves int
	err   error
	load  []domain.User
}

func (p *memPersister) Load(context.Context) ([]domain.User, error) {
	return p.load, nil
}

func (p *memPersister) Save(_ context.Context, users []domain.User) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.saved = users
	p.saves++
	return nil
}

func TestGetOrCreateRegistersOnce(t *testing.T) {
	p := &memPersister{}
	s := New(p)
	ctx := context.Background()

	u, created, err := s.GetOrCreate(ctx, 100, "alice")
	if err != nil || !created {
		t.Fatalf("first call: created=%v err=%v", created, err)
	}
	if len(u.Lists) != 1 || !u.Lists[0].IsDefault() {
		t.Fatalf("new user must own only the default list, got %+v", u.Lists)
	}

	u, created, err = s.GetOrCreate(ctx, 100, "alice2")
	if err != nil || created {
		t.Fatalf("second call: created=%v err=%v", created, err)
	}
	if u.Username != "alice2" {
		t.Fatalf("username not refreshed: %q", u.Username)
	}
	if p.saves != 2 {
		t.Fatalf("expected 2 saves, got %d", p.saves)
	}

	if _, _, err := s.GetOrCreate(ctx, 100, "alice2"); err != nil {
		t.Fatalf("third call: %v", err)
	}
	if p.saves != 2 {
		t.Fatalf("unchanged user must not be saved again, got %d saves", p.saves)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	if _, _, err := s.GetOrCreate(ctx, 1, ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := s.Update(ctx, 1, func(u *domain.User) error {
		if err := u.AddList("09:30"); err != nil {
			return err
		}
		return u.AddList("bogus")
	})
	if !errors.Is(err, domain.ErrInvalidListName) {
		t.Fatalf("expected invalid name, got %v", err)
	}
	u, _ := s.Get(1)
	if len(u.Lists) != 1 {
		t.Fatalf("failed update leaked partial state: %+v", u.Lists)
	}
}

func TestUpdateUnknownUser(t *testing.T) {
	s := New(nil)
	_, err := s.Update(context.Background(), 9, func(*domain.User) error { return nil })
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	s.GetOrCreate(ctx, 1, "")
	s.Update(ctx, 1, func(u *domain.User) error {
		return u.AddItem(domain.DefaultListName, domain.TickerItem{Ticker: "SBER", Board: "TQBR"})
	})

	snap := s.Snapshot()
	snap[0].Lists[0].Items[0].Ticker = "HACK"
	u, _ := s.Get(1)
	if u.Lists[0].Items[0].Ticker != "SBER" {
		t.Fatal("snapshot mutation leaked into store")
	}
}

func TestConcurrentUpdatesKeepEveryMutation(t *testing.T) {
	p := &memPersister{}
	s := New(p)
	ctx := context.Background()
	s.GetOrCreate(ctx, 1, "")

	var wg sync.WaitGroup
	for h := 0; h < 24; h++ {
		wg.Add(1)
		go func(h int) {
			defer wg.Done()
			name := fmt.Sprintf("%02d:00", h)
			if _, err := s.Update(ctx, 1, func(u *domain.User) error { return u.AddList(name) }); err != nil {
				t.Errorf("add %s: %v", name, err)
			}
		}(h)
	}
	for i := 0; i < 24; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, u := range s.Snapshot() {
				if len(u.Lists) == 0 || !u.Lists[0].IsDefault() {
					t.Errorf("snapshot observed invalid user %+v", u)
				}
			}
		}()
	}
	wg.Wait()

	u, _ := s.Get(1)
	if len(u.Lists) != 25 {
		t.Fatalf("expected 25 lists, got %d", len(u.Lists))
	}
	if len(p.saved) != 1 || len(p.saved[0].Lists) != 25 {
		t.Fatalf("last save must contain the final state, got %+v", p.saved)
	}
}

func TestSaveFailureIsReported(t *testing.T) {
	p := &memPersister{err: errors.New("disk full")}
	s := New(p)
	if _, _, err := s.GetOrCreate(context.Background(), 1, ""); !errors.Is(err, domain.ErrNotSaved) {
		t.Fatalf("err = %v, want ErrNotSaved", err)
	}
}

func TestUpdateKeepsChangeWhenSaveFails(t *testing.T) {
	p := &memPersister{}
	s := New(p)
	ctx := context.Background()
	if _, _, err := s.GetOrCreate(ctx, 1, ""); err != nil {
		t.Fatal(err)
	}
	p.err = errors.New("disk full")
	u, err := s.Update(ctx, 1, func(u *domain.User) error { return u.AddList("10:15") })
	if !errors.Is(err, domain.ErrNotSaved) || !errors.Is(err, p.err) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := u.List("10:15"); !ok {
		t.Fatal("returned user misses the change")
	}
	if got, _ := s.Get(1); len(got.Lists) != 2 {
		t.Fatalf("in-memory change lost: %+v", got.Lists)
	}
	p.err = nil
	if err := s.Flush(ctx); err != nil || len(p.saved[0].Lists) != 2 {
		t.Fatalf("flush err=%v saved=%+v", err, p.saved)
	}
}

func TestOpenLoadsAndRepairsUsers(t *testing.T) {
	p := &memPersister{load: []domain.User{{ChatID: 5, Lists: []domain.WatchList{{Name: "10:00"}}}}}
	s, err := Open(context.Background(), p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	u, ok := s.Get(5)
	if !ok || len(u.Lists) != 2 || !u.Lists[0].IsDefault() {
		t.Fatalf("loaded user not repaired: %+v", u)
	}
	if st := s.Stats(); st.Users != 1 || st.Lists != 2 || st.Items != 0 {
		t.Fatalf("stats = %+v", st)
	}
}
