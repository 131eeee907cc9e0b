// Package gate admits lookup requests and charges for them.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/liyubing19/telegram-bot/internal/domain"
)

const (
	DefaultLookupTimeout = 10 * time.Second
	lookupCost           = 1
	refundTimeout        = 5 * time.Second
)

type Status int

const (
	StatusRateLimited Status = iota + 1
	StatusUnregistered
	StatusInsufficientBalance
	StatusInvalidInput
	StatusFound
	StatusNotFound
	StatusLookupFailed
	StatusLedgerFailed
)

var statusNames = map[Status]string{
	StatusRateLimited:         "rate_limited",
	StatusUnregistered:        "unregistered",
	StatusInsufficientBalance: "insufficient_balance",
	StatusInvalidInput:        "invalid_input",
	StatusFound:               "found",
	StatusNotFound:            "not_found",
	StatusLookupFailed:        "lookup_failed",
	StatusLedgerFailed:        "ledger_failed",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Err maps a status to its domain error. Found and NotFound have none.
func (s Status) Err() error {
	switch s {
	case StatusRateLimited:
		return domain.ErrRateLimited
	case StatusUnregistered:
		return domain.ErrAccountNotFound
	case StatusInsufficientBalance:
		return domain.ErrInsufficientBalance
	case StatusInvalidInput:
		return domain.ErrInvalidInput
	case StatusLookupFailed:
		return domain.ErrLookupFailure
	case StatusLedgerFailed:
		return domain.ErrLedgerUpdateFailed
	}
	return nil
}

// Result is the terminal state of one lookup request.
type Result struct {
	Status  Status
	Query   domain.Query
	Records []domain.Record
	// Balance after the request settled; zero when the ledger was not read.
	Balance int64
}

type Admitter interface {
	Admit(userID int64, now time.Time) bool
}

type Ledger interface {
	Adjust(ctx context.Context, userID, delta int64) (int64, bool, error)
}

type Accounts interface {
	GetAccount(ctx context.Context, id int64) (domain.Account, bool, error)
}

// Searcher is the external dataset. Zero records and a nil error means not
// found.
type Searcher interface {
	Search(ctx context.Context, q domain.Query) ([]domain.Record, error)
}

type Recorder interface {
	ObserveAdmission(admitted bool)
	ObserveLookup(status string)
}

type noopRecorder struct{}

func (noopRecorder) ObserveAdmission(bool) {}
func (noopRecorder) ObserveLookup(string) {}

type Gate struct {
	limiter  Admitter
	ledger   Ledger
	accounts Accounts
	searcher Searcher
	rec      Recorder
	logger   *slog.Logger

	lookupTimeout time.Duration
}

type Options struct {
	LookupTimeout time.Duration
	Recorder      Recorder
	Logger        *slog.Logger
}

func New(limiter Admitter, ledger Ledger, accounts Accounts, searcher Searcher, opts Options) *Gate {
	g := &Gate{
		limiter:       limiter,
		ledger:        ledger,
		accounts:      accounts,
		searcher:      searcher,
		rec:           opts.Recorder,
		logger:        opts.Logger,
		lookupTimeout: opts.LookupTimeout,
	}
	if g.rec == nil {
		g.rec = noopRecorder{}
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.lookupTimeout <= 0 {
		g.lookupTimeout = DefaultLookupTimeout
	}
	return g
}

// HandleLookup runs one request through rate limiting, the balance check,
// the debit, classification and the search. A debit is refunded when the
// search finds nothing, fails or is cancelled; invalid input keeps it.
//
// The returned error is non-nil only for StatusLookupFailed and
// StatusLedgerFailed and wraps domain.ErrLookupFailure or
// domain.ErrLedgerUpdateFailed.
func (g *Gate) HandleLookup(ctx context.Context, userID int64, now time.Time, payload string) (Result, error) {
	res, err := g.handle(ctx, userID, now, payload)
	g.rec.ObserveLookup(res.Status.String())
	return res, err
}

func (g *Gate) handle(ctx context.Context, userID int64, now time.Time, payload string) (Result, error) {
	logger := g.logger.With("request_id", uuid.NewString(), "user_id", userID)

	admitted := g.limiter.Admit(userID, now)
	g.rec.ObserveAdmission(admitted)
	if !admitted {
		logger.Warn("lookup rate limited")
		return Result{Status: StatusRateLimited}, nil
	}

	acct, found, err := g.accounts.GetAccount(ctx, userID)
	if err != nil {
		return Result{Status: StatusLedgerFailed}, fmt.Errorf("%w: %w", domain.ErrLedgerUpdateFailed, err)
	}
	if !found {
		return Result{Status: StatusUnregistered}, nil
	}
	if acct.Points < lookupCost {
		return Result{Status: StatusInsufficientBalance, Balance: acct.Points}, nil
	}

	balance, ok, err := g.ledger.Adjust(ctx, userID, -lookupCost)
	if err != nil {
		logger.Error("debit failed", "err", err)
		return Result{Status: StatusLedgerFailed}, err
	}
	if !ok {
		return Result{Status: StatusLedgerFailed}, fmt.Errorf("%w: account %d vanished before debit", domain.ErrLedgerUpdateFailed, userID)
	}

	q, valid := Classify(payload)
	if !valid {
		logger.Info("invalid lookup input, debit kept", "len", len(payload))
		return Result{Status: StatusInvalidInput, Balance: balance}, nil
	}

	logger.Info("lookup started", "type", q.Type)
	records, searchErr := g.search(ctx, q)
	if searchErr == nil && len(records) > 0 {
		logger.Info("lookup found records", "type", q.Type, "count", len(records))
		return Result{Status: StatusFound, Query: q, Records: records, Balance: balance}, nil
	}

	balance, refundErr := g.refund(ctx, userID)
	if refundErr != nil {
		logger.Error("refund failed, debit left in place", "err", refundErr, "search_err", searchErr)
		return Result{Status: StatusLedgerFailed, Query: q}, errors.Join(refundErr, searchErr)
	}

	if searchErr != nil {
		logger.Error("lookup failed, refunded", "type", q.Type, "err", searchErr)
		return Result{Status: StatusLookupFailed, Query: q, Balance: balance}, fmt.Errorf("%w: %w", domain.ErrLookupFailure, searchErr)
	}
	logger.Info("lookup found nothing, refunded", "type", q.Type)
	return Result{Status: StatusNotFound, Query: q, Balance: balance}, nil
}

func (g *Gate) search(ctx context.Context, q domain.Query) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sctx, cancel := context.WithTimeout(ctx, g.lookupTimeout)
	defer cancel()

	records, err := g.searcher.Search(sctx, q)
	if err == nil && sctx.Err() != nil {
		// a searcher that ignores ctx still counts as timed out
		err = sctx.Err()
	}
	return records, err
}

// refund credits the lookup cost back. It runs detached from the caller's
// cancellation so an abandoned request still gets its point back.
func (g *Gate) refund(ctx context.Context, userID int64) (int64, error) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refundTimeout)
	defer cancel()

	balance, ok, err := g.ledger.Adjust(rctx, userID, lookupCost)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: account %d vanished before refund", domain.ErrLedgerUpdateFailed, userID)
	}
	return balance, nil
}
