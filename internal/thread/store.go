package thread

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested thread does not exist.
var ErrNotFound = errors.New("thread not found")

// Store persists threads and their messages in PostgreSQL.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a thread store backed by the given connection pool.
// A nil logger falls back to slog.Default().
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// OpenForOwner returns the owner's thread, creating it on first use.
// The upsert keeps this a single round trip and race-free: two concurrent
// first chats for the same owner both land on the same row.
func (s *Store) OpenForOwner(ctx context.Context, ownerEmail string) (*Thread, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO threads (owner_email)
		 VALUES ($1)
		 ON CONFLICT (owner_email) DO UPDATE SET updated_at = NOW()
		 RETURNING id, owner_email, created_at, updated_at`,
		ownerEmail)

	var (
		t  Thread
		id pgtype.UUID
	)
	if err := row.Scan(&id, &t.OwnerEmail, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, fmt.Errorf("opening thread for %s: %w", ownerEmail, err)
	}
	t.ID = id.Bytes

	s.logger.Debug("opened thread", "id", t.ID, "owner", t.OwnerEmail)
	return &t, nil
}

// History returns the thread's most recent messages in ascending sequence
// order, limited to the given window.
func (s *Store) History(ctx context.Context, threadID uuid.UUID, limit int32) ([]*Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, thread_id, role, content, sequence_number, created_at
		 FROM (
		     SELECT id, thread_id, role, content, sequence_number, created_at
		     FROM thread_messages
		     WHERE thread_id = $1
		     ORDER BY sequence_number DESC
		     LIMIT $2
		 ) recent
		 ORDER BY sequence_number ASC`,
		pgtype.UUID{Bytes: threadID, Valid: true}, limit)
	if err != nil {
		return nil, fmt.Errorf("querying thread history: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var (
			msg         Message
			id, thID    pgtype.UUID
			contentJSON []byte
		)
		if err := rows.Scan(&id, &thID, &msg.Role, &contentJSON, &msg.SequenceNumber, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if err := json.Unmarshal(contentJSON, &msg.Content); err != nil {
			// Skip malformed rows rather than failing the whole load.
			s.logger.Warn("failed to unmarshal message content",
				"message_id", uuid.UUID(id.Bytes), "error", err)
			continue
		}
		msg.ID = id.Bytes
		msg.ThreadID = thID.Bytes
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

// AppendMessages appends messages to a thread in order, assigning sequence
// numbers after the current maximum. The whole batch runs in one transaction
// under a thread row lock, so concurrent appends serialize instead of
// colliding on sequence numbers.
func (s *Store) AppendMessages(ctx context.Context, threadID uuid.UUID, messages []*Message) error {
	if len(messages) == 0 {
		return nil
	}

	for i, msg := range messages {
		for j, part := range msg.Content {
			if part == nil {
				return fmt.Errorf("message %d has nil content at index %d", i, j)
			}
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", err)
		}
	}()

	pgID := pgtype.UUID{Bytes: threadID, Valid: true}

	var locked pgtype.UUID
	if err := tx.QueryRow(ctx, `SELECT id FROM threads WHERE id = $1 FOR UPDATE`, pgID).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("locking thread: %w", err)
	}

	var maxSeq int64
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) FROM thread_messages WHERE thread_id = $1`,
		pgID).Scan(&maxSeq); err != nil {
		return fmt.Errorf("reading max sequence number: %w", err)
	}

	for i, msg := range messages {
		contentJSON, err := json.Marshal(msg.Content)
		if err != nil {
			return fmt.Errorf("marshaling message content at index %d: %w", i, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO thread_messages (thread_id, role, content, sequence_number)
			 VALUES ($1, $2, $3, $4)`,
			pgID, msg.Role, contentJSON, maxSeq+int64(i)+1); err != nil {
			return fmt.Errorf("inserting message %d: %w", i, err)
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE threads SET updated_at = NOW() WHERE id = $1`, pgID); err != nil {
		return fmt.Errorf("touching thread: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("appended messages", "thread_id", threadID, "count", len(messages))
	return nil
}

// Reset deletes the owner's thread and all its messages. A missing thread is
// not an error; reset is idempotent.
func (s *Store) Reset(ctx context.Context, ownerEmail string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM threads WHERE owner_email = $1`, ownerEmail); err != nil {
		return fmt.Errorf("resetting thread for %s: %w", ownerEmail, err)
	}
	s.logger.Debug("reset thread", "owner", ownerEmail)
	return nil
}
