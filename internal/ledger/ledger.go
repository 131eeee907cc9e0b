// Package ledger keeps the per-user points balance.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/liyubing19/telegram-bot/internal/domain"
	"github.com/liyubing19/telegram-bot/internal/keylock"
)

type Store interface {
	GetAccount(ctx context.Context, id int64) (domain.Account, bool, error)
	SetBalance(ctx context.Context, id int64, expected, value int64) (bool, error)
}

// Observer is notified of every applied adjustment.
type Observer interface {
	ObserveAdjustment(delta, applied int64)
}

type Ledger struct {
	store  Store
	locks  *keylock.Striped
	logger *slog.Logger
	obs    Observer
}

func New(store Store, logger *slog.Logger, obs Observer) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:  store,
		locks:  keylock.New(0),
		logger: logger,
		obs:    obs,
	}
}

// Adjust adds delta to the balance of userID, clamping the result at zero,
// so a debit larger than the balance applies only partially. ok is false
// when the account does not exist; nothing is written then.
func (l *Ledger) Adjust(ctx context.Context, userID, delta int64) (int64, bool, error) {
	unlock := l.locks.Lock(userID)
	defer unlock()

	acct, found, err := l.store.GetAccount(ctx, userID)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %w", domain.ErrLedgerUpdateFailed, err)
	}
	if !found {
		l.logger.Warn("points adjustment for unknown account", "user_id", userID, "delta", delta)
		return 0, false, nil
	}

	next := max(0, acct.Points+delta)
	if next == acct.Points {
		return next, true, nil
	}

	ok, err := l.store.SetBalance(ctx, userID, acct.Points, next)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %w", domain.ErrLedgerUpdateFailed, err)
	}
	if !ok {
		// the row moved underneath us: another writer outside this process
		return 0, false, fmt.Errorf("%w: balance of %d changed concurrently", domain.ErrLedgerUpdateFailed, userID)
	}

	if l.obs != nil {
		l.obs.ObserveAdjustment(delta, next-acct.Points)
	}
	l.logger.Info("points updated", "user_id", userID, "delta", delta, "balance", next)
	return next, true, nil
}

// Balance returns the stored balance, or 0 for an unknown account.
func (l *Ledger) Balance(ctx context.Context, userID int64) (int64, error) {
	acct, _, err := l.store.GetAccount(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("balance %d: %w", userID, err)
	}
	return acct.Points, nil
}
