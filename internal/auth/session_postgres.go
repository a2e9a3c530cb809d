package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSessionStore implements SessionStore over the sessions table.
type PostgresSessionStore struct {
	pool *pgxpool.Pool
}

// NewPostgresSessionStore creates a Postgres-backed session registry.
func NewPostgresSessionStore(pool *pgxpool.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

// Insert records a fresh session row.
func (s *PostgresSessionStore) Insert(ctx context.Context, userID uuid.UUID, tokenHash string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (user_id, token_hash) VALUES ($1, $2)
	`, userID, tokenHash)
	return err
}

// InsertDetectingReuse runs the sign-in reuse check and the fresh insert in
// one transaction.
//
// The cleanup is scoped to the user: it fires exactly when none of the
// user's own live rows holds the presented hash.
func (s *PostgresSessionStore) InsertDetectingReuse(ctx context.Context, userID uuid.UUID, newHash, presentedHash string) (bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		DELETE FROM sessions
		WHERE user_id = $1
		  AND NOT EXISTS (
		      SELECT 1 FROM sessions
		      WHERE user_id = $1 AND token_hash = $2
		  )
	`, userID, presentedHash)
	if err != nil {
		return false, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO sessions (user_id, token_hash) VALUES ($1, $2)
	`, userID, newHash); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

// Rotate performs the single-use redemption: one atomic check-and-update, or
// a same-transaction bulk delete when the token is stale.
func (s *PostgresSessionStore) Rotate(ctx context.Context, userID uuid.UUID, oldHash, newHash string) (bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE sessions
		SET token_hash = $3, created_at = now()
		WHERE user_id = $1 AND token_hash = $2
	`, userID, oldHash, newHash)
	if err != nil {
		return false, err
	}

	if tag.RowsAffected() == 0 {
		// Stale token replayed: revoke everything this user has outstanding.
		if _, err := tx.Exec(ctx, `
			DELETE FROM sessions WHERE user_id = $1
		`, userID); err != nil {
			return false, err
		}
		if err := tx.Commit(ctx); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes one session row; missing rows are a no-op.
func (s *PostgresSessionStore) Delete(ctx context.Context, userID uuid.UUID, tokenHash string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM sessions WHERE user_id = $1 AND token_hash = $2
	`, userID, tokenHash)
	return err
}

// DeleteAll removes every session owned by userID.
func (s *PostgresSessionStore) DeleteAll(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM sessions WHERE user_id = $1
	`, userID)
	return err
}
