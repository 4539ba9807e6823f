// Package postgres persists users, watchlists and items in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/m3rciful/moexbot/core/logger"
	"github.com/m3rciful/moexbot/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MigrationsDir is the directory of Migrations holding the schema files.
const MigrationsDir = "migrations"

// Migrations exposes the embedded schema for the bootstrap pipeline.
func Migrations() embed.FS { return migrations }

// Persister implements store.Persister on top of sqlx.
type Persister struct {
	db *sqlx.DB
}

// New wraps an existing connection. The schema must already be migrated.
func New(db *sqlx.DB) *Persister {
	return &Persister{db: db}
}

// Close releases the connection pool.
func (p *Persister) Close() error {
	return p.db.Close()
}

type userRow struct {
	ChatID     int64     `db:"chat_id"`
	Username   string    `db:"username"`
	LastActive time.Time `db:"last_active"`
}

type listRow struct {
	ChatID int64  `db:"chat_id"`
	Name   string `db:"name"`
}

type itemRow struct {
	ChatID   int64               `db:"chat_id"`
	ListName string              `db:"list_name"`
	Ticker   string              `db:"ticker"`
	Engine   string              `db:"engine"`
	Market   string              `db:"market"`
	Board    string              `db:"board"`
	Amount   sql.NullInt64       `db:"amount"`
	BuyPrice decimal.NullDecimal `db:"buy_price"`
}

// Load reads every user with lists and items in their stored order.
func (p *Persister) Load(ctx context.Context) ([]domain.User, error) {
	var users []userRow
	if err := p.db.SelectContext(ctx, &users,
		`SELECT chat_id, username, last_active FROM tg_users ORDER BY chat_id`); err != nil {
		return nil, fmt.Errorf("postgres: load users: %w", err)
	}
	var lists []listRow
	if err := p.db.SelectContext(ctx, &lists,
		`SELECT chat_id, name FROM watchlists ORDER BY chat_id, position`); err != nil {
		return nil, fmt.Errorf("postgres: load lists: %w", err)
	}
	var items []itemRow
	if err := p.db.SelectContext(ctx, &items,
		`SELECT chat_id, list_name, ticker, engine, market, board, amount, buy_price
		   FROM ticker_items ORDER BY chat_id, list_name, position`); err != nil {
		return nil, fmt.Errorf("postgres: load items: %w", err)
	}
	return assemble(users, lists, items), nil
}

func assemble(users []userRow, lists []listRow, items []itemRow) []domain.User {
	out := make([]domain.User, 0, len(users))
	index := make(map[int64]int, len(users))
	for _, r := range users {
		index[r.ChatID] = len(out)
		out = append(out, domain.User{ChatID: r.ChatID, Username: r.Username})
	}
	for _, r := range lists {
		i, ok := index[r.ChatID]
		if !ok {
			continue
		}
		out[i].Lists = append(out[i].Lists, domain.WatchList{Name: r.Name})
	}
	for _, r := range items {
		i, ok := index[r.ChatID]
		if !ok {
			continue
		}
		li, ok := out[i].FindList(r.ListName)
		if !ok {
			continue
		}
		it := domain.TickerItem{Ticker: r.Ticker, Engine: r.Engine, Market: r.Market, Board: r.Board}
		if r.Amount.Valid {
			v := r.Amount.Int64
			it.Amount = &v
		}
		if r.BuyPrice.Valid {
			v := r.BuyPrice.Decimal
			it.BuyPrice = &v
		}
		out[i].Lists[li].Items = append(out[i].Lists[li].Items, it)
	}
	return out
}

// Save replaces the stored state with users in one transaction.
func (p *Persister) Save(ctx context.Context, users []domain.User) (err error) {
	start := time.Now()
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ChatID)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM tg_users WHERE NOT (chat_id = ANY($1))`, pq.Array(ids)); err != nil {
		return fmt.Errorf("postgres: prune users: %w", err)
	}

	for _, u := range users {
		if err = saveUser(ctx, tx, u); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	logger.Debug(ctx, "db", "save",
		slog.String("status", "ok"),
		slog.Int("users", len(users)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return nil
}

func saveUser(ctx context.Context, tx *sqlx.Tx, u domain.User) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tg_users (chat_id, username, last_active)
		VALUES ($1, $2, now())
		ON CONFLICT (chat_id) DO UPDATE SET username = EXCLUDED.username, last_active = now()`,
		u.ChatID, u.Username); err != nil {
		return fmt.Errorf("postgres: upsert user %d: %w", u.ChatID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM watchlists WHERE chat_id = $1`, u.ChatID); err != nil {
		return fmt.Errorf("postgres: clear lists %d: %w", u.ChatID, err)
	}
	for li, l := range u.Lists {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO watchlists (chat_id, name, position) VALUES ($1, $2, $3)`,
			u.ChatID, l.Name, li); err != nil {
			return fmt.Errorf("postgres: insert list %q: %w", l.Name, err)
		}
		for ii, it := range l.Items {
			var amount sql.NullInt64
			if it.Amount != nil {
				amount = sql.NullInt64{Int64: *it.Amount, Valid: true}
			}
			var price decimal.NullDecimal
			if it.BuyPrice != nil {
				price = decimal.NullDecimal{Decimal: *it.BuyPrice, Valid: true}
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO ticker_items (chat_id, list_name, position, ticker, engine, market, board, amount, buy_price)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				u.ChatID, l.Name, ii, it.Ticker, it.Engine, it.Market, it.Board, amount, price); err != nil {
				return fmt.Errorf("postgres: insert item %s: %w", it.Ticker, err)
			}
		}
	}
	return nil
}
