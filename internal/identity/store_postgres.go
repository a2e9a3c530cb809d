package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL. The pool is owned by the
// caller; the store never closes it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed user store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const pgUniqueViolation = "23505"

// Create inserts a new user row.
func (s *PostgresStore) Create(ctx context.Context, username, passwordHash, kdfSalt string) (User, error) {
	u := User{
		ID:           NewID(),
		Username:     username,
		PasswordHash: passwordHash,
		KDFSalt:      kdfSalt,
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, password, pbkdf2_salt)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, u.ID, u.Username, u.PasswordHash, u.KDFSalt).Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return User{}, ErrUsernameTaken
		}
		return User{}, err
	}

	return u, nil
}

// FindByUsername loads a user by exact username.
func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (User, error) {
	var u User

	err := s.pool.QueryRow(ctx, `
		SELECT id, username, password, pbkdf2_salt, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.KDFSalt, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}

	return u, nil
}
