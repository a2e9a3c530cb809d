package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists chats and messages.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed chat store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const (
	pgUniqueViolation = "23505"
	pgFKViolation     = "23503"
	pgCheckViolation  = "23514"
)

// Invite creates a pending chat row carrying the sender's public key.
func (s *PostgresStore) Invite(ctx context.Context, senderID, recipientID uuid.UUID, senderKey []byte) (Chat, error) {
	c := Chat{SenderID: senderID, RecipientID: recipientID, SenderPublicKey: senderKey}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO chats (sender_id, recipient_id, sender_public_key)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, senderID, recipientID, senderKey).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return Chat{}, ErrAlreadyInvited
			case pgFKViolation:
				return Chat{}, ErrUnknownUser
			case pgCheckViolation:
				return Chat{}, ErrSelfInvite
			}
		}
		return Chat{}, err
	}

	return c, nil
}

// Accept completes the handshake by setting the recipient's key on the
// pending invite from senderID to recipientID.
func (s *PostgresStore) Accept(ctx context.Context, senderID, recipientID uuid.UUID, recipientKey []byte) (Chat, error) {
	var c Chat

	err := s.pool.QueryRow(ctx, `
		UPDATE chats
		SET recipient_public_key = $3
		WHERE sender_id = $1 AND recipient_id = $2 AND recipient_public_key IS NULL
		RETURNING id, sender_id, recipient_id, sender_public_key, recipient_public_key, created_at
	`, senderID, recipientID, recipientKey).Scan(
		&c.ID, &c.SenderID, &c.RecipientID, &c.SenderPublicKey, &c.RecipientPublicKey, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Chat{}, ErrNoPendingInvite
	}
	if err != nil {
		return Chat{}, err
	}

	return c, nil
}

// SearchUsers returns users whose username starts with q, excluding the
// caller.
func (s *PostgresStore) SearchUsers(ctx context.Context, callerID uuid.UUID, q string, limit int) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, created_at
		FROM users
		WHERE username LIKE $2 || '%' AND id <> $1
		ORDER BY username
		LIMIT $3
	`, callerID, escapeLike(q), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanUsers(rows)
}

// FilteredUsers returns users related to the caller in the given handshake
// state, optionally narrowed by a username prefix.
func (s *PostgresStore) FilteredUsers(ctx context.Context, callerID uuid.UUID, filter Filter, q string, limit int) ([]User, error) {
	var cond string
	switch filter {
	case FilterInvited:
		cond = `c.sender_id = $1 AND c.recipient_id = u.id AND c.recipient_public_key IS NULL`
	case FilterPending:
		cond = `c.sender_id = u.id AND c.recipient_id = $1 AND c.recipient_public_key IS NULL`
	case FilterFriends:
		cond = `((c.sender_id = $1 AND c.recipient_id = u.id) OR
		         (c.sender_id = u.id AND c.recipient_id = $1)) AND
		        c.recipient_public_key IS NOT NULL`
	default:
		return nil, errors.New("chat: unknown filter")
	}

	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.username, u.created_at
		FROM users u
		JOIN chats c ON `+cond+`
		WHERE u.username LIKE $2 || '%'
		ORDER BY u.username
		LIMIT $3
	`, callerID, escapeLike(q), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanUsers(rows)
}

// InsertMessage stores a message, gated on a completed handshake between the
// two users.
func (s *PostgresStore) InsertMessage(ctx context.Context, senderID, recipientID uuid.UUID, content []byte) (StoredMessage, error) {
	m := StoredMessage{SenderID: senderID, RecipientID: recipientID, Content: content}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (sender_id, recipient_id, content)
		SELECT $1, $2, $3
		WHERE EXISTS (
			SELECT 1 FROM chats
			WHERE ((sender_id = $1 AND recipient_id = $2) OR
			       (sender_id = $2 AND recipient_id = $1))
			  AND recipient_public_key IS NOT NULL
		)
		RETURNING id, created_at
	`, senderID, recipientID, content).Scan(&m.ID, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StoredMessage{}, ErrNotFriends
	}
	if err != nil {
		return StoredMessage{}, err
	}

	return m, nil
}

// MessagePage returns messages between the two users strictly older than the
// (startTimestamp, startID) cursor, newest first.
func (s *PostgresStore) MessagePage(ctx context.Context, userID, friendID uuid.UUID, startTimestamp time.Time, startID int32, limit int64) ([]StoredMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sender_id, recipient_id, content, created_at
		FROM messages
		WHERE ((sender_id = $1 AND recipient_id = $2) OR
		       (sender_id = $2 AND recipient_id = $1))
		  AND (created_at, id) < ($3, $4)
		ORDER BY created_at DESC, id DESC
		LIMIT $5
	`, userID, friendID, startTimestamp, startID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []StoredMessage{}
	for rows.Next() {
		var m StoredMessage
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// escapeLike neutralizes LIKE metacharacters in user-supplied search terms.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func scanUsers(rows pgx.Rows) ([]User, error) {
	users := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
