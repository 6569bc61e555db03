package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/msu-life/auth-service/internal/domain"
	"github.com/msu-life/auth-service/internal/repository"
)

type CodeRepository struct {
	pool *pgxpool.Pool
}

func NewCodeRepository(pool *pgxpool.Pool) *CodeRepository {
	return &CodeRepository{pool: pool}
}

func (r *CodeRepository) CountRecent(ctx context.Context, email string, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM one_time_codes WHERE email = $1 AND created_at >= $2`,
		email, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent codes: %w", err)
	}
	return count, nil
}

func (r *CodeRepository) Create(ctx context.Context, email, codeHash string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO one_time_codes (email, code_hash, expires_at) VALUES ($1, $2, $3)`,
		email, codeHash, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("create code: %w", err)
	}
	return nil
}

func (r *CodeRepository) FindValid(ctx context.Context, email, codeHash string, now time.Time) (*domain.OneTimeCode, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, code_hash, expires_at, used_at, created_at
		FROM one_time_codes
		WHERE email = $1 AND code_hash = $2 AND used_at IS NULL AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1`,
		email, codeHash, now)

	var c domain.OneTimeCode
	err := row.Scan(&c.ID, &c.Email, &c.CodeHash, &c.ExpiresAt, &c.UsedAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCodeInvalid
		}
		return nil, fmt.Errorf("find code: %w", err)
	}
	return &c, nil
}

func (r *CodeRepository) ConsumeAndEnsureUser(ctx context.Context, codeID string, input repository.NewUser) (*domain.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Compare-and-set on used_at. Zero rows means a concurrent
	// verification consumed the code after our read; that attempt
	// loses, so each code grants at most one login.
	tag, err := tx.Exec(ctx,
		`UPDATE one_time_codes SET used_at = NOW() WHERE id = $1 AND used_at IS NULL`,
		codeID,
	)
	if err != nil {
		return nil, fmt.Errorf("consume code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err = domain.ErrCodeInvalid
		return nil, err
	}

	user, err := ensureUser(ctx, tx, input)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return user, nil
}

func (r *CodeRepository) DeleteStale(ctx context.Context, expiredBefore time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM one_time_codes WHERE used_at IS NOT NULL OR expires_at < $1`,
		expiredBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("delete stale codes: %w", err)
	}
	return tag.RowsAffected(), nil
}
