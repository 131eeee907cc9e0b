package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/liyubing19/telegram-bot/internal/domain"
)

// Users is the PostgreSQL account store.
type Users struct{ pool *pgxpool.Pool }

func NewUsers(p *pgxpool.Pool) *Users { return &Users{pool: p} }

var _ domain.AccountStore = (*Users)(nil)

func (r *Users) GetAccount(ctx context.Context, id int64) (domain.Account, bool, error) {
	var a domain.Account
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, name, username, points, checked_in, invitations_count, suspended, created_at
		FROM users
		WHERE user_id = $1
	`, id).Scan(&a.ID, &a.Name, &a.Username, &a.Points, &a.CheckedIn, &a.Invitations, &a.Suspended, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, false, nil
	}
	if err != nil {
		return domain.Account{}, false, fmt.Errorf("get account %d: %w", id, err)
	}
	return a, true, nil
}

func (r *Users) Register(ctx context.Context, id int64, name, username string) (bool, error) {
	// xmax = 0 only for rows inserted by this statement
	var created bool
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users(user_id, name, username)
		VALUES($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET name = EXCLUDED.name,
			username = EXCLUDED.username
		RETURNING (xmax = 0)
	`, id, name, username).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("register %d: %w", id, err)
	}
	return created, nil
}

func (r *Users) SetBalance(ctx context.Context, id int64, expected, value int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET points = $3
		WHERE user_id = $1 AND points = $2
	`, id, expected, value)
	if err != nil {
		return false, fmt.Errorf("set balance %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Users) SetSuspended(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET suspended = TRUE WHERE user_id = $1`, id)
	if err != nil {
		return fmt.Errorf("suspend %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("suspend %d: %w", id, domain.ErrAccountNotFound)
	}
	return nil
}

func (r *Users) IncrementInvitations(ctx context.Context, id int64) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `
		UPDATE users
		SET invitations_count = invitations_count + 1
		WHERE user_id = $1
		RETURNING invitations_count
	`, id).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("increment invitations %d: %w", id, domain.ErrAccountNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("increment invitations %d: %w", id, err)
	}
	return total, nil
}

func (r *Users) SetCheckedIn(ctx context.Context, id int64, checked bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET checked_in = $2 WHERE user_id = $1`, id, checked)
	if err != nil {
		return fmt.Errorf("set checked in %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set checked in %d: %w", id, domain.ErrAccountNotFound)
	}
	return nil
}

func (r *Users) ResetCheckedIn(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET checked_in = FALSE WHERE checked_in`)
	if err != nil {
		return 0, fmt.Errorf("reset checked in: %w", err)
	}
	return tag.RowsAffected(), nil
}
