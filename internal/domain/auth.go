package domain

import (
	"errors"
	"time"
)

var (
	// ErrInvalidInput covers malformed emails and codes that fail the
	// shape check before any storage is touched.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDomainRejected means the email parses but its domain is not the
	// configured campus domain.
	ErrDomainRejected = errors.New("email domain not allowed")

	// ErrRateLimited means too many codes were issued for this email
	// within the rate-limit window.
	ErrRateLimited = errors.New("too many requests")

	// ErrCodeInvalid deliberately covers wrong, expired, already-used and
	// lost-race codes so callers cannot tell which.
	ErrCodeInvalid = errors.New("code is invalid or expired")

	ErrUserNotFound = errors.New("user not found")

	// ErrAccountUnavailable means the user exists but is inactive or banned.
	ErrAccountUnavailable = errors.New("account unavailable")

	ErrUsernameTaken   = errors.New("username is taken")
	ErrUsernameInvalid = errors.New("username is invalid")
)

type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleStaff   Role = "STAFF"
)

type User struct {
	ID        string
	Email     string
	Role      Role
	Username  *string
	FirstName *string
	LastName  *string
	IsActive  bool
	IsBanned  bool
	IsAdmin   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Available reports whether the account may hold a session.
func (u *User) Available() bool {
	return u.IsActive && !u.IsBanned
}

// OneTimeCode is one issued login code. Only the keyed hash of the code
// is stored; a row is consumed at most once (usedAt null -> timestamp).
type OneTimeCode struct {
	ID        string
	Email     string
	CodeHash  string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}
