package auth

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration tests are opt-in and require NANOCHAT_TEST_DATABASE_URL. Each
// test works in its own throwaway schema so parallel runs do not collide.

const sessionSchemaSQL = `
CREATE TABLE users (
    id UUID PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    password TEXT NOT NULL,
    pbkdf2_salt TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE sessions (
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    token_hash TEXT NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, token_hash)
);
`

func mustOpenSessionTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("NANOCHAT_TEST_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: NANOCHAT_TEST_DATABASE_URL is not set")
	}

	schema := fmt.Sprintf("nanochat_it_%d_%d", time.Now().UnixNano(), rand.Int31())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse NANOCHAT_TEST_DATABASE_URL: %v", err)
	}

	admin, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Skipf("integration test skipped: Postgres unreachable: %v", err)
	}
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		admin.Close()
		t.Fatalf("create schema: %v", err)
	}
	admin.Close()

	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect with search_path: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cleanupCancel()
		_, _ = pool.Exec(cleanupCtx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE")
		pool.Close()
	})

	if _, err := pool.Exec(ctx, sessionSchemaSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return pool
}

func mustInsertTestUser(t *testing.T, pool *pgxpool.Pool, username string) uuid.UUID {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id := uuid.New()
	_, err := pool.Exec(ctx, `
		INSERT INTO users (id, username, password, pbkdf2_salt) VALUES ($1, $2, 'x', 'y')
	`, id, username)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return id
}

func sessionCount(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID) int {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var n int
	if err := pool.QueryRow(ctx, `
		SELECT count(*) FROM sessions WHERE user_id = $1
	`, userID).Scan(&n); err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	return n
}

func TestPostgresSessionStore_RotateSuccess(t *testing.T) {
	t.Parallel()

	pool := mustOpenSessionTestPool(t)
	s := NewPostgresSessionStore(pool)
	userID := mustInsertTestUser(t, pool, "rotate-user")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.Insert(ctx, userID, "hash-old"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rotated, err := s.Rotate(ctx, userID, "hash-old", "hash-new")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if !rotated {
		t.Fatalf("expected rotation of a live token to succeed")
	}
	if got := sessionCount(t, pool, userID); got != 1 {
		t.Fatalf("session count = %d, want 1", got)
	}

	// The old hash is spent; redeeming it again must revoke everything.
	rotated, err = s.Rotate(ctx, userID, "hash-old", "hash-newer")
	if err != nil {
		t.Fatalf("rotate replay: %v", err)
	}
	if rotated {
		t.Fatalf("replayed token rotated")
	}
	if got := sessionCount(t, pool, userID); got != 0 {
		t.Fatalf("session count after replay = %d, want 0", got)
	}
}

func TestPostgresSessionStore_RotateStaleScopesToUser(t *testing.T) {
	t.Parallel()

	pool := mustOpenSessionTestPool(t)
	s := NewPostgresSessionStore(pool)
	aliceID := mustInsertTestUser(t, pool, "alice")
	bobID := mustInsertTestUser(t, pool, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.Insert(ctx, aliceID, "alice-hash"); err != nil {
		t.Fatalf("insert alice: %v", err)
	}
	if err := s.Insert(ctx, bobID, "bob-hash"); err != nil {
		t.Fatalf("insert bob: %v", err)
	}

	rotated, err := s.Rotate(ctx, aliceID, "never-issued", "whatever")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotated {
		t.Fatalf("stale token rotated")
	}

	if got := sessionCount(t, pool, aliceID); got != 0 {
		t.Fatalf("alice session count = %d, want 0", got)
	}
	if got := sessionCount(t, pool, bobID); got != 1 {
		t.Fatalf("bob session count = %d, want 1", got)
	}
}

func TestPostgresSessionStore_InsertDetectingReuse(t *testing.T) {
	t.Parallel()

	pool := mustOpenSessionTestPool(t)
	s := NewPostgresSessionStore(pool)
	userID := mustInsertTestUser(t, pool, "reuse-user")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.Insert(ctx, userID, "live-hash"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Presenting a live token keeps the existing session.
	revoked, err := s.InsertDetectingReuse(ctx, userID, "second-hash", "live-hash")
	if err != nil {
		t.Fatalf("insert detecting reuse: %v", err)
	}
	if revoked {
		t.Fatalf("live token triggered revocation")
	}
	if got := sessionCount(t, pool, userID); got != 2 {
		t.Fatalf("session count = %d, want 2", got)
	}

	// Presenting a stale token wipes everything but the fresh row.
	revoked, err = s.InsertDetectingReuse(ctx, userID, "third-hash", "rotated-away")
	if err != nil {
		t.Fatalf("insert detecting reuse: %v", err)
	}
	if !revoked {
		t.Fatalf("stale token did not trigger revocation")
	}
	if got := sessionCount(t, pool, userID); got != 1 {
		t.Fatalf("session count = %d, want 1", got)
	}
}

func TestPostgresSessionStore_DeleteIsIdempotent(t *testing.T) {
	t.Parallel()

	pool := mustOpenSessionTestPool(t)
	s := NewPostgresSessionStore(pool)
	userID := mustInsertTestUser(t, pool, "delete-user")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.Insert(ctx, userID, "some-hash"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Delete(ctx, userID, "some-hash"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, userID, "some-hash"); err != nil {
		t.Fatalf("repeated delete: %v", err)
	}
	if err := s.DeleteAll(ctx, userID); err != nil {
		t.Fatalf("delete all on empty set: %v", err)
	}
}
