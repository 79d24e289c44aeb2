package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/roadchat/internal/domain"
)

// conversationTable is the only place a log table name is built. The id is
// re-validated here even though callers obtained it from ParseConversationID.
func conversationTable(id domain.ConversationID) (string, error) {
	if !id.Valid() {
		return "", fmt.Errorf("%w: unsafe conversation id", domain.ErrValidation)
	}
	return "chat_" + id.String(), nil
}

// Provision creates an empty message log for id.
func (s *SQLiteStore) Provision(ctx context.Context, id domain.ConversationID) error {
	return provision(ctx, s.db, id)
}

func provision(ctx context.Context, db execer, id domain.ConversationID) error {
	table, err := conversationTable(id)
	if err != nil {
		return err
	}
	// created_at holds Unix nanoseconds so the index orders exactly.
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE %s (
			id TEXT PRIMARY KEY,
			message TEXT NOT NULL,
			author_email TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			edited INTEGER NOT NULL DEFAULT 0,
			deleted INTEGER NOT NULL DEFAULT 0
		)`, table),
		fmt.Sprintf(`CREATE INDEX idx_%s_created ON %s(created_at)`, table, table),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("provision %s: %w", table, err)
		}
	}
	return nil
}

// Append adds a message to the log and returns the stored row.
func (s *SQLiteStore) Append(ctx context.Context, id domain.ConversationID, authorEmail, body string) (*domain.Message, error) {
	table, err := conversationTable(id)
	if err != nil {
		return nil, err
	}
	msg := &domain.Message{
		ID:          uuid.New(),
		Body:        body,
		AuthorEmail: authorEmail,
		CreatedAt:   s.now(),
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, message, author_email, created_at) VALUES (?, ?, ?, ?)`, table),
		msg.ID.String(), msg.Body, msg.AuthorEmail, msg.CreatedAt.UnixNano())
	if isMissingTable(err) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Fetch returns every message of the log, newest first.
func (s *SQLiteStore) Fetch(ctx context.Context, id domain.ConversationID) ([]domain.Message, error) {
	table, err := conversationTable(id)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, message, author_email, created_at, edited, deleted FROM %s ORDER BY created_at DESC, rowid DESC`, table))
	if isMissingTable(err) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var (
			msg       domain.Message
			rawID     string
			createdAt int64
		)
		if err := rows.Scan(&rawID, &msg.Body, &msg.AuthorEmail, &createdAt, &msg.Edited, &msg.Deleted); err != nil {
			return nil, err
		}
		if msg.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("corrupt message id %q: %w", rawID, err)
		}
		msg.CreatedAt = time.Unix(0, createdAt).UTC()
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Edit replaces the body of a live message owned by authorEmail.
func (s *SQLiteStore) Edit(ctx context.Context, id domain.ConversationID, messageID uuid.UUID, authorEmail, body string) error {
	table, err := conversationTable(id)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET message = ?, edited = 1 WHERE id = ? AND author_email = ? AND deleted = 0`, table),
		body, messageID.String(), authorEmail)
	return ownedUpdateResult(res, err)
}

// SoftDelete clears the body of a live message owned by authorEmail and
// marks it deleted. The row is kept.
func (s *SQLiteStore) SoftDelete(ctx context.Context, id domain.ConversationID, messageID uuid.UUID, authorEmail string) error {
	table, err := conversationTable(id)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET message = '', deleted = 1 WHERE id = ? AND author_email = ? AND deleted = 0`, table),
		messageID.String(), authorEmail)
	return ownedUpdateResult(res, err)
}

// ownedUpdateResult folds "no such row" and "not yours" into one outcome.
func ownedUpdateResult(res sql.Result, err error) error {
	if isMissingTable(err) {
		return domain.ErrNotOwnerOrMissing
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotOwnerOrMissing
	}
	return nil
}
