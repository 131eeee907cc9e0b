package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/liyubing19/telegram-bot/internal/domain"
	"github.com/liyubing19/telegram-bot/internal/invite"
	"github.com/liyubing19/telegram-bot/internal/ledger"
	"github.com/liyubing19/telegram-bot/internal/repo/sqlitestore"
)

type accountsFixture struct {
	svc   *AccountService
	store *sqlitestore.Store
	now   time.Time
}

func newAccountsFixture(t *testing.T) *accountsFixture {
	t.Helper()

	store, err := sqlitestore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &accountsFixture{store: store, now: t0}
	l := ledger.New(store, nil, nil)
	guard := invite.New(store, l, invite.Config{}, nil)
	f.svc = NewAccountService(store, l, guard, AccountOptions{Now: func() time.Time { return f.now }})
	return f
}

func (f *accountsFixture) get(t *testing.T, id int64) domain.Account {
	t.Helper()
	a, ok, err := f.store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)
	return a
}

func TestRegister_NewUserWithoutInviter(t *testing.T) {
	t.Parallel()
	f := newAccountsFixture(t)

	res, err := f.svc.Register(context.Background(), Registration{UserID: 1, Name: "Li"})
	require.NoError(t, err)
	require.Equal(t, RegisterResult{Created: true}, res)

	a := f.get(t, 1)
	require.Equal(t, "default_username", a.Username)
	require.Zero(t, a.Points)
	require.False(t, a.CheckedIn)
	require.False(t, a.Suspended)
}

func TestRegister_ReturningUserGrantsNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAccountsFixture(t)

	_, err := f.svc.Register(ctx, Registration{UserID: 1, Name: "Inviter"})
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, Registration{UserID: 2, Name: "Old", Username: "old"})
	require.NoError(t, err)

	res, err := f.svc.Register(ctx, Registration{UserID: 2, Name: "New", Username: "new", InviterID: 1})
	require.NoError(t, err)
	require.False(t, res.Created)
	require.Equal(t, InviteNone, res.Invite)
	require.Equal(t, "new", f.get(t, 2).Username)
	require.Zero(t, f.get(t, 1).Points)
}

func TestRegister_InviteGrantsBonus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAccountsFixture(t)

	_, err := f.svc.Register(ctx, Registration{UserID: 1, Name: "Inviter"})
	require.NoError(t, err)

	res, err := f.svc.Register(ctx, Registration{UserID: 2, Name: "Friend", InviterID: 1})
	require.NoError(t, err)
	require.Equal(t, InviteGranted, res.Invite)
	require.Equal(t, invite.Decision{Bonus: 3, TotalInvites: 1}, res.Decision)

	inviter := f.get(t, 1)
	require.Equal(t, int64(3), inviter.Points)
	require.Equal(t, int64(1), inviter.Invitations)
}

func TestRegister_InviteBurstSuspends(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAccountsFixture(t)

	_, err := f.svc.Register(ctx, Registration{UserID: 1, Name: "Inviter"})
	require.NoError(t, err)

	for i := int64(0); i < 4; i++ {
		f.now = t0.Add(time.Duration(i) * time.Second)
		res, err := f.svc.Register(ctx, Registration{UserID: 100 + i, InviterID: 1})
		require.NoError(t, err)
		require.Equal(t, InviteGranted, res.Invite)
		require.Equal(t, i+1, res.Decision.TotalInvites)
	}

	f.now = t0.Add(30 * time.Second)
	res, err := f.svc.Register(ctx, Registration{UserID: 200, InviterID: 1})
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Equal(t, InviteSuspended, res.Invite)

	inviter := f.get(t, 1)
	require.True(t, inviter.Suspended)
	require.Equal(t, int64(4), inviter.Invitations)
	require.Equal(t, int64(12), inviter.Points)
}

type failingGuard struct{ calls int }

func (g *failingGuard) RecordInvite(context.Context, int64, time.Time) (invite.Decision, error) {
	g.calls++
	return invite.Decision{TotalInvites: 1}, errors.New("ledger down")
}

func TestRegister_InviteFailureStillRegisters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := sqlitestore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	guard := &failingGuard{}
	svc := NewAccountService(store, ledger.New(store, nil, nil), guard, AccountOptions{})

	_, err = svc.Register(ctx, Registration{UserID: 1, Name: "Inviter"})
	require.NoError(t, err)

	res, err := svc.Register(ctx, Registration{UserID: 2, Name: "Friend", InviterID: 1})
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Equal(t, InviteNone, res.Invite)
	require.Equal(t, 1, guard.calls)

	_, ok, err := store.GetAccount(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRegister_RejectsSelfAndUnknownInviter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAccountsFixture(t)

	res, err := f.svc.Register(ctx, Registration{UserID: 5, InviterID: 5})
	require.NoError(t, err)
	require.Equal(t, InviteSelf, res.Invite)
	require.Zero(t, f.get(t, 5).Invitations)

	res, err = f.svc.Register(ctx, Registration{UserID: 6, InviterID: 404})
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Equal(t, InviteUnknownInviter, res.Invite)
}

func TestCheckIn_OncePerDay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAccountsFixture(t)
	_, err := f.svc.Register(ctx, Registration{UserID: 1})
	require.NoError(t, err)

	st, bal, err := f.svc.CheckIn(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, CheckInDone, st)
	require.Equal(t, int64(2), bal)

	st, bal, err = f.svc.CheckIn(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, CheckInAlreadyDone, st)
	require.Equal(t, int64(2), bal)

	n, err := f.svc.ResetCheckIns(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	st, bal, err = f.svc.CheckIn(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, CheckInDone, st)
	require.Equal(t, int64(4), bal)
}

func TestCheckIn_ConcurrentCreditsOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAccountsFixture(t)
	_, err := f.svc.Register(ctx, Registration{UserID: 1})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = f.svc.CheckIn(ctx, 1)
		}()
	}
	wg.Wait()

	require.Equal(t, int64(2), f.get(t, 1).Points)
}

func TestCheckIn_Unregistered(t *testing.T) {
	t.Parallel()
	f := newAccountsFixture(t)

	_, _, err := f.svc.CheckIn(context.Background(), 42)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestProfile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAccountsFixture(t)

	_, ok, err := f.svc.Profile(ctx, 1)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = f.svc.Register(ctx, Registration{UserID: 1, Name: "Li", Username: "li"})
	require.NoError(t, err)
	a, ok, err := f.svc.Profile(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "li", a.Username)
}
