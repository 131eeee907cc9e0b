package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/liyubing19/telegram-bot/internal/domain"
	"github.com/liyubing19/telegram-bot/internal/invite"
	"github.com/liyubing19/telegram-bot/internal/keylock"
)

const DefaultCheckInBonus = 2

type InviteGuard interface {
	RecordInvite(ctx context.Context, inviterID int64, now time.Time) (invite.Decision, error)
}

type InviteRecorder interface {
	ObserveInvite(suspended bool)
	ObserveReset()
}

type Registration struct {
	UserID   int64
	Name     string
	Username string
	// InviterID is the id carried by the /start deep link; zero when absent.
	InviterID int64
}

type InviteOutcome int

const (
	InviteNone InviteOutcome = iota
	InviteUnknownInviter
	InviteSelf
	InviteGranted
	InviteSuspended
)

type RegisterResult struct {
	Created  bool
	Invite   InviteOutcome
	Decision invite.Decision
}

// AccountService drives registration, daily check-in and profile reads.
type AccountService struct {
	store  domain.AccountStore
	ledger Ledger
	guard  InviteGuard
	rec    InviteRecorder
	logger *slog.Logger

	checkInBonus int64
	now          func() time.Time

	checkIns *keylock.Striped
}

type AccountOptions struct {
	CheckInBonus int64
	Recorder     InviteRecorder
	Logger       *slog.Logger
	Now          func() time.Time
}

func NewAccountService(store domain.AccountStore, ledger Ledger, guard InviteGuard, opts AccountOptions) *AccountService {
	s := &AccountService{
		store:        store,
		ledger:       ledger,
		guard:        guard,
		rec:          opts.Recorder,
		logger:       opts.Logger,
		checkInBonus: opts.CheckInBonus,
		now:          opts.Now,
		checkIns:     keylock.New(0),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.checkInBonus <= 0 {
		s.checkInBonus = DefaultCheckInBonus
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Register creates the account on first contact. Only a newly created
// account credits its inviter, and only when the inviter exists and is not
// the new user.
func (s *AccountService) Register(ctx context.Context, r Registration) (RegisterResult, error) {
	if r.Username == "" {
		r.Username = "default_username"
	}

	_, existed, err := s.store.GetAccount(ctx, r.UserID)
	if err != nil {
		return RegisterResult{}, err
	}
	if existed {
		if _, err := s.store.Register(ctx, r.UserID, r.Name, r.Username); err != nil {
			return RegisterResult{}, err
		}
		return RegisterResult{}, nil
	}

	inviteState := InviteNone
	if r.InviterID == r.UserID && r.InviterID != 0 {
		inviteState = InviteSelf
	} else if r.InviterID != 0 {
		_, ok, err := s.store.GetAccount(ctx, r.InviterID)
		if err != nil {
			return RegisterResult{}, err
		}
		if !ok {
			s.logger.Warn("inviter does not exist", "inviter_id", r.InviterID, "user_id", r.UserID)
			inviteState = InviteUnknownInviter
		}
	}

	created, err := s.store.Register(ctx, r.UserID, r.Name, r.Username)
	if err != nil {
		return RegisterResult{}, err
	}
	if !created {
		// a concurrent /start for the same user won the insert
		return RegisterResult{}, nil
	}
	res := RegisterResult{Created: true, Invite: inviteState}
	if r.InviterID == 0 || inviteState != InviteNone {
		s.logger.Info("user registered", "user_id", r.UserID, "invite", inviteState)
		return res, nil
	}

	d, err := s.guard.RecordInvite(ctx, r.InviterID, s.now())
	if err != nil {
		// registration stands even when the inviter could not be credited
		s.logger.Error("invite not credited", "user_id", r.UserID, "inviter_id", r.InviterID, "err", err)
		return res, nil
	}
	if s.rec != nil {
		s.rec.ObserveInvite(d.Suspended)
	}
	res.Decision = d
	if d.Suspended {
		res.Invite = InviteSuspended
	} else {
		res.Invite = InviteGranted
	}
	s.logger.Info("user registered via invite", "user_id", r.UserID, "inviter_id", r.InviterID, "suspended", d.Suspended)
	return res, nil
}

type CheckInStatus int

const (
	CheckInDone CheckInStatus = iota + 1
	CheckInAlreadyDone
)

// CheckIn credits the daily bonus once per day.
func (s *AccountService) CheckIn(ctx context.Context, userID int64) (CheckInStatus, int64, error) {
	unlock := s.checkIns.Lock(userID)
	defer unlock()

	acct, ok, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, domain.ErrAccountNotFound
	}
	if acct.CheckedIn {
		return CheckInAlreadyDone, acct.Points, nil
	}

	if err := s.store.SetCheckedIn(ctx, userID, true); err != nil {
		return 0, 0, err
	}
	balance, _, err := s.ledger.Adjust(ctx, userID, s.checkInBonus)
	if err != nil {
		if rerr := s.store.SetCheckedIn(context.WithoutCancel(ctx), userID, false); rerr != nil {
			s.logger.Error("check-in rollback failed", "user_id", userID, "err", rerr)
		}
		return 0, 0, err
	}
	s.logger.Info("user checked in", "user_id", userID, "balance", balance)
	return CheckInDone, balance, nil
}

// ResetCheckIns clears every check-in flag; run once a day.
func (s *AccountService) ResetCheckIns(ctx context.Context) (int64, error) {
	n, err := s.store.ResetCheckedIn(ctx)
	if err != nil {
		return 0, err
	}
	if s.rec != nil {
		s.rec.ObserveReset()
	}
	s.logger.Info("daily check-in flags reset", "count", n)
	return n, nil
}

func (s *AccountService) Profile(ctx context.Context, userID int64) (domain.Account, bool, error) {
	return s.store.GetAccount(ctx, userID)
}
