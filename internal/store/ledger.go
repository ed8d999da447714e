package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/waypost-app/pubflow/internal/ledger"
)

// SubmitMessage implements ledger.Client: appends payload to the topic with
// the next per-topic sequence number, atomically.
func (s *Store) SubmitMessage(ctx context.Context, topicID ledger.TopicID, payload []byte, memo string) (ledger.SubmitResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.SubmitResult{}, fmt.Errorf("submit message: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM topics WHERE id = ?`, string(topicID)).Scan(&exists); err != nil {
		return ledger.SubmitResult{}, fmt.Errorf("submit message: %w", err)
	}
	if exists == 0 {
		return ledger.SubmitResult{}, fmt.Errorf("submit to %s: %w", topicID, ledger.ErrTopicNotFound)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE topic_id = ?`, string(topicID)).Scan(&seq); err != nil {
		return ledger.SubmitResult{}, fmt.Errorf("submit message: %w", err)
	}

	txnID := uuid.Must(uuid.NewV7()).String()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (topic_id, seq, payload, memo, txn_id)
		VALUES (?, ?, ?, ?, ?)
	`, string(topicID), seq, payload, memo, txnID); err != nil {
		return ledger.SubmitResult{}, fmt.Errorf("submit message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ledger.SubmitResult{}, fmt.Errorf("submit message: %w", err)
	}
	return ledger.SubmitResult{TransactionID: txnID, SequenceNumber: seq}, nil
}

// CreateTopic implements ledger.Client: allocates the next "0.0.N" id from
// the persistent counter and records the topic.
func (s *Store) CreateTopic(ctx context.Context, memo, txMemo string, restrictWriters bool) (ledger.TopicID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("create topic: %w", err)
	}
	defer tx.Rollback()

	var n int64
	if err := tx.QueryRowContext(ctx, `
		UPDATE counters SET value = value + 1 WHERE name = 'topic'
		RETURNING value
	`).Scan(&n); err != nil {
		return "", fmt.Errorf("create topic: %w", err)
	}

	id := ledger.TopicID(fmt.Sprintf("0.0.%d", n))
	restrict := 0
	if restrictWriters {
		restrict = 1
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO topics (id, memo, restrict_writers) VALUES (?, ?, ?)
	`, string(id), memo, restrict); err != nil {
		return "", fmt.Errorf("create topic: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("create topic: %w", err)
	}
	return id, nil
}

// ReadLatestMessage implements ledger.Client.
func (s *Store) ReadLatestMessage(ctx context.Context, topicID ledger.TopicID) (*ledger.Message, error) {
	return s.readEdge(ctx, topicID, "DESC")
}

// ReadFirstMessage implements ledger.Client.
func (s *Store) ReadFirstMessage(ctx context.Context, topicID ledger.TopicID) (*ledger.Message, error) {
	return s.readEdge(ctx, topicID, "ASC")
}

func (s *Store) readEdge(ctx context.Context, topicID ledger.TopicID, order string) (*ledger.Message, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM topics WHERE id = ?`, string(topicID)).Scan(&exists); err != nil {
		return nil, fmt.Errorf("read topic: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("read %s: %w", topicID, ledger.ErrTopicNotFound)
	}

	m := &ledger.Message{TopicID: topicID}
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT seq, payload, memo FROM messages
		WHERE topic_id = ?
		ORDER BY seq %s LIMIT 1
	`, order), string(topicID)).Scan(&m.SequenceNumber, &m.Payload, &m.Memo)
	if errors.Is(err, sql.ErrNoRows) {
		// Topic exists, no messages yet.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read topic %s: %w", topicID, err)
	}
	return m, nil
}

// Messages returns every message of a topic in sequence order. Used by the
// CLI topic inspector; not part of ledger.Client.
func (s *Store) Messages(ctx context.Context, topicID ledger.TopicID) ([]ledger.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, payload, memo FROM messages
		WHERE topic_id = ?
		ORDER BY seq ASC
	`, string(topicID))
	if err != nil {
		return nil, fmt.Errorf("list messages %s: %w", topicID, err)
	}
	defer rows.Close()

	var out []ledger.Message
	for rows.Next() {
		m := ledger.Message{TopicID: topicID}
		if err := rows.Scan(&m.SequenceNumber, &m.Payload, &m.Memo); err != nil {
			return nil, fmt.Errorf("list messages %s: %w", topicID, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Upload implements ledger.BinaryStore: stores the binary and returns a
// uuid-based reference.
func (s *Store) Upload(ctx context.Context, name string, data []byte) (ledger.AssetRef, error) {
	ref := ledger.AssetRef("asset-" + uuid.Must(uuid.NewV7()).String())
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (ref, name, data) VALUES (?, ?, ?)
	`, string(ref), name, data); err != nil {
		return "", fmt.Errorf("upload asset: %w", err)
	}
	return ref, nil
}

// Asset returns an uploaded binary by reference.
func (s *Store) Asset(ctx context.Context, ref ledger.AssetRef) (name string, data []byte, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT name, data FROM assets WHERE ref = ?`, string(ref)).Scan(&name, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, fmt.Errorf("asset %s not found", ref)
	}
	if err != nil {
		return "", nil, fmt.Errorf("read asset %s: %w", ref, err)
	}
	return name, data, nil
}
