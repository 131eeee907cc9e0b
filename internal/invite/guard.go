// Package invite detects referral bursts and pays referral bonuses.
package invite

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/liyubing19/telegram-bot/internal/keylock"
)

const (
	DefaultBurstWindow    = 60 * time.Second
	DefaultBurstThreshold = 5
	DefaultBonus          = 3
)

type Store interface {
	SetSuspended(ctx context.Context, id int64) error
	IncrementInvitations(ctx context.Context, id int64) (int64, error)
}

type Ledger interface {
	Adjust(ctx context.Context, userID, delta int64) (int64, bool, error)
}

type Config struct {
	BurstWindow    time.Duration
	BurstThreshold int
	Bonus          int64
}

// Decision is the outcome of one recorded invite. Exactly one of Suspended
// or a granted bonus applies.
type Decision struct {
	Suspended    bool
	Bonus        int64
	TotalInvites int64
}

type Guard struct {
	store  Store
	ledger Ledger
	cfg    Config
	logger *slog.Logger

	locks *keylock.Striped

	mu      sync.Mutex
	windows map[int64][]time.Time // ascending, per inviter
}

func New(store Store, ledger Ledger, cfg Config, logger *slog.Logger) *Guard {
	if cfg.BurstWindow <= 0 {
		cfg.BurstWindow = DefaultBurstWindow
	}
	if cfg.BurstThreshold <= 0 {
		cfg.BurstThreshold = DefaultBurstThreshold
	}
	if cfg.Bonus <= 0 {
		cfg.Bonus = DefaultBonus
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		store:   store,
		ledger:  ledger,
		cfg:     cfg,
		logger:  logger,
		locks:   keylock.New(0),
		windows: make(map[int64][]time.Time),
	}
}

// RecordInvite registers one successful referral by inviterID at now.
// Callers must invoke it once per new registration naming a valid,
// distinct, existing inviter.
func (g *Guard) RecordInvite(ctx context.Context, inviterID int64, now time.Time) (Decision, error) {
	unlock := g.locks.Lock(inviterID)
	defer unlock()

	recent := g.pruned(inviterID, now)
	// the incoming invite counts toward the burst
	if len(recent)+1 >= g.cfg.BurstThreshold {
		if err := g.store.SetSuspended(ctx, inviterID); err != nil {
			return Decision{}, fmt.Errorf("suspend inviter %d: %w", inviterID, err)
		}
		g.logger.Warn("invite burst detected, inviter suspended",
			"inviter_id", inviterID, "invites_in_window", len(recent), "window", g.cfg.BurstWindow)
		return Decision{Suspended: true}, nil
	}

	total, err := g.store.IncrementInvitations(ctx, inviterID)
	if err != nil {
		return Decision{}, fmt.Errorf("count invite for %d: %w", inviterID, err)
	}
	// the invite is stored from here on, so it counts toward the window
	g.appendAt(inviterID, now)

	if _, _, err := g.ledger.Adjust(ctx, inviterID, g.cfg.Bonus); err != nil {
		g.logger.Error("invite counted but bonus not granted",
			"inviter_id", inviterID, "bonus", g.cfg.Bonus, "total_invites", total, "err", err)
		return Decision{TotalInvites: total}, fmt.Errorf("grant invite bonus to %d: %w", inviterID, err)
	}
	return Decision{Bonus: g.cfg.Bonus, TotalInvites: total}, nil
}

// pruned drops timestamps outside the burst window and returns the rest.
func (g *Guard) pruned(inviterID int64, now time.Time) []time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.windows[inviterID]
	i := 0
	for i < len(ts) && now.Sub(ts[i]) >= g.cfg.BurstWindow {
		i++
	}
	ts = ts[i:]
	if len(ts) == 0 {
		delete(g.windows, inviterID)
		return nil
	}
	g.windows[inviterID] = ts
	return ts
}

func (g *Guard) appendAt(inviterID int64, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.windows[inviterID] = append(g.windows[inviterID], now)
}

// Sweep forgets inviters with no invite inside the window.
func (g *Guard) Sweep(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for id, ts := range g.windows {
		if len(ts) == 0 || now.Sub(ts[len(ts)-1]) >= g.cfg.BurstWindow {
			delete(g.windows, id)
			removed++
		}
	}
	return removed
}
