package repository

import (
	"context"
	"time"

	"github.com/msu-life/auth-service/internal/domain"
)

type CodeRepository interface {
	// CountRecent counts codes issued for the email since the given
	// time, used or not. Feeds the issuance rate limit.
	CountRecent(ctx context.Context, email string, since time.Time) (int, error)

	Create(ctx context.Context, email, codeHash string, expiresAt time.Time) error

	// FindValid returns the newest unconsumed, unexpired code row for
	// the email whose hash matches, or domain.ErrCodeInvalid.
	FindValid(ctx context.Context, email, codeHash string, now time.Time) (*domain.OneTimeCode, error)

	// ConsumeAndEnsureUser marks the code used and finds-or-creates the
	// user, in one transaction. The mark is conditioned on the code
	// still being unused; losing that race yields domain.ErrCodeInvalid
	// and rolls back, so each code grants at most one login and a
	// failed user write never leaves a code consumed.
	ConsumeAndEnsureUser(ctx context.Context, codeID string, input NewUser) (*domain.User, error)

	// DeleteStale removes consumed rows and rows that expired before
	// the cutoff. Returns how many were deleted.
	DeleteStale(ctx context.Context, expiredBefore time.Time) (int64, error)
}
