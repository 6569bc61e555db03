package repository

import (
	"context"

	"github.com/msu-life/auth-service/internal/domain"
)

// NewUser carries the defaults for a first-login user record. Creation is
// create-if-absent: when a row for the email already exists, these fields
// are ignored and the existing row is returned untouched.
type NewUser struct {
	Email     string
	FirstName *string
	LastName  *string
	// UsernameCandidates are tried in order; the first free one is
	// assigned. Empty slice means the user starts without a username.
	UsernameCandidates []string
}

// ProfileUpdate applies only its non-nil fields.
type ProfileUpdate struct {
	Username  *string
	FirstName *string
	LastName  *string
}

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)

	// EnsureUser finds the user for input.Email or creates one with the
	// given defaults. Used by the demo-bypass login path; the regular
	// path goes through CodeRepository.ConsumeAndEnsureUser.
	EnsureUser(ctx context.Context, input NewUser) (*domain.User, error)

	// UpdateProfile applies the non-nil fields and returns the updated
	// user. A username collision yields domain.ErrUsernameTaken.
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*domain.User, error)
}
