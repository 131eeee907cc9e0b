// Package sqlitestore is a single-node account store on SQLite.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/liyubing19/telegram-bot/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id           INTEGER PRIMARY KEY,
	name              TEXT NOT NULL DEFAULT '',
	username          TEXT NOT NULL DEFAULT '',
	points            INTEGER NOT NULL DEFAULT 0 CHECK (points >= 0),
	checked_in        INTEGER NOT NULL DEFAULT 0,
	invitations_count INTEGER NOT NULL DEFAULT 0 CHECK (invitations_count >= 0),
	suspended         INTEGER NOT NULL DEFAULT 0,
	created_at        INTEGER NOT NULL
);
`

// ErrPathRequired is returned by Open when no database path is configured.
var ErrPathRequired = errors.New("sqlite path must be configured")

type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ domain.AccountStore = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" yields a private in-memory database.
func Open(path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) GetAccount(ctx context.Context, id int64) (domain.Account, bool, error) {
	var (
		a       domain.Account
		created int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, name, username, points, checked_in, invitations_count, suspended, created_at
		FROM users
		WHERE user_id = ?`, id,
	).Scan(&a.ID, &a.Name, &a.Username, &a.Points, &a.CheckedIn, &a.Invitations, &a.Suspended, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, false, nil
	}
	if err != nil {
		return domain.Account{}, false, fmt.Errorf("get account %d: %w", id, err)
	}
	a.CreatedAt = time.Unix(created, 0).UTC()
	return a, true, nil
}

func (s *Store) Register(ctx context.Context, id int64, name, username string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("register %d: %w", id, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO users(user_id, name, username, created_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		id, name, username, s.now().UTC().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("register %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("register %d rows affected: %w", id, err)
	}
	if n == 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE users SET name = ?, username = ? WHERE user_id = ?`, name, username, id); err != nil {
			return false, fmt.Errorf("refresh %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("register %d commit: %w", id, err)
	}
	return n > 0, nil
}

func (s *Store) SetBalance(ctx context.Context, id int64, expected, value int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET points = ? WHERE user_id = ? AND points = ?`, value, id, expected)
	if err != nil {
		return false, fmt.Errorf("set balance %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set balance %d rows affected: %w", id, err)
	}
	return n > 0, nil
}

func (s *Store) SetSuspended(ctx context.Context, id int64) error {
	return s.execOne(ctx, "suspend", id, `UPDATE users SET suspended = 1 WHERE user_id = ?`, id)
}

func (s *Store) IncrementInvitations(ctx context.Context, id int64) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET invitations_count = invitations_count + 1
		WHERE user_id = ?
		RETURNING invitations_count`, id,
	).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("increment invitations %d: %w", id, domain.ErrAccountNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("increment invitations %d: %w", id, err)
	}
	return total, nil
}

func (s *Store) SetCheckedIn(ctx context.Context, id int64, checked bool) error {
	return s.execOne(ctx, "set checked in", id, `UPDATE users SET checked_in = ? WHERE user_id = ?`, checked, id)
}

func (s *Store) ResetCheckedIn(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET checked_in = 0 WHERE checked_in <> 0`)
	if err != nil {
		return 0, fmt.Errorf("reset checked in: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset checked in rows affected: %w", err)
	}
	return n, nil
}

func (s *Store) execOne(ctx context.Context, op string, id int64, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s %d: %w", op, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d rows affected: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", op, id, domain.ErrAccountNotFound)
	}
	return nil
}
