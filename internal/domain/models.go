package domain

import (
	"context"
	"time"
)

type Account struct {
	ID          int64 // Telegram user id
	Name        string
	Username    string
	Points      int64
	CheckedIn   bool
	Invitations int64
	Suspended   bool
	CreatedAt   time.Time
}

type QueryType string

const (
	QueryPhone  QueryType = "phone"
	QueryIDCard QueryType = "id_card"
)

type Query struct {
	Type  QueryType
	Value string
}

// Record is one matching row returned by a lookup source.
type Record struct {
	Name   string
	CardNo string
	Phone  string
}

// AccountStore is the persistence boundary for accounts. Implementations
// must make every single-row write atomic.
type AccountStore interface {
	GetAccount(ctx context.Context, id int64) (Account, bool, error)
	// Register inserts a fresh account or refreshes name/username of an
	// existing one. created reports whether the row was inserted.
	Register(ctx context.Context, id int64, name, username string) (created bool, err error)
	// SetBalance writes value only if the stored balance still equals
	// expected. ok is false when the row is missing or the compare failed.
	SetBalance(ctx context.Context, id int64, expected, value int64) (ok bool, err error)
	SetSuspended(ctx context.Context, id int64) error
	IncrementInvitations(ctx context.Context, id int64) (int64, error)
	SetCheckedIn(ctx context.Context, id int64, checked bool) error
	ResetCheckedIn(ctx context.Context) (int64, error)
}
