package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/msu-life/auth-service/internal/domain"
	"github.com/msu-life/auth-service/internal/repository"
)

const userColumns = `id, email, role, username, first_name, last_name,
	       is_active, is_banned, is_admin, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *UserRepository) EnsureUser(ctx context.Context, input repository.NewUser) (*domain.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	user, err := ensureUser(ctx, tx, input)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return user, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, update repository.ProfileUpdate) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET    username   = COALESCE($2, username),
		       first_name = COALESCE($3, first_name),
		       last_name  = COALESCE($4, last_name),
		       updated_at = NOW()
		WHERE  id = $1
		RETURNING `+userColumns,
		id, update.Username, update.FirstName, update.LastName)

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrUsernameTaken
		}
		return nil, err
	}
	return user, nil
}

// ensureUser implements create-if-absent inside the caller's transaction:
// an existing row for the email is returned untouched, a missing one is
// created with the defaults and the first free username candidate.
func ensureUser(ctx context.Context, tx pgx.Tx, input repository.NewUser) (*domain.User, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, input.Email)
	existing, err := scanUser(row)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	username, err := pickUsername(ctx, tx, input.UsernameCandidates)
	if err != nil {
		return nil, err
	}

	row = tx.QueryRow(ctx, `
		INSERT INTO users (email, role, username, first_name, last_name, is_active, is_banned)
		VALUES ($1, $2, $3, $4, $5, TRUE, FALSE)
		RETURNING `+userColumns,
		input.Email, domain.RoleStudent, username, input.FirstName, input.LastName)

	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Lost a first-login race on the email unique index; the
			// other transaction's row is the user now.
			row = tx.QueryRow(ctx,
				`SELECT `+userColumns+` FROM users WHERE email = $1`, input.Email)
			return scanUser(row)
		}
		return nil, err
	}
	return created, nil
}

// pickUsername returns the first candidate not already taken, or nil when
// there are no candidates or all are taken.
func pickUsername(ctx context.Context, tx pgx.Tx, candidates []string) (*string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	rows, err := tx.Query(ctx,
		`SELECT username FROM users WHERE username = ANY($1)`, candidates)
	if err != nil {
		return nil, fmt.Errorf("check usernames: %w", err)
	}
	defer rows.Close()

	taken := make(map[string]bool, len(candidates))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan username: %w", err)
		}
		taken[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usernames: %w", err)
	}

	for _, candidate := range candidates {
		if !taken[candidate] {
			return &candidate, nil
		}
	}
	return nil, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Role, &u.Username, &u.FirstName, &u.LastName,
		&u.IsActive, &u.IsBanned, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
