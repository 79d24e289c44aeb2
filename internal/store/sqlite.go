package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/xiaot623/roadchat/internal/domain"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

var newConversationID = domain.NewConversationID

// NewSQLiteStore creates a new SQLite store. Use a DSN with
// _txlock=immediate so that conversation creation serializes writers.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			email TEXT PRIMARY KEY,
			type TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chat_directories (
			owner_email TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS chat_directory_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_email TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			peer_email TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			initiated_by_owner INTEGER NOT NULL,
			FOREIGN KEY (owner_email) REFERENCES chat_directories(owner_email)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_directory_owner_peer ON chat_directory_entries(owner_email, peer_email)`,
		`CREATE INDEX IF NOT EXISTS idx_directory_conversation ON chat_directory_entries(conversation_id, owner_email)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetUserRole resolves the role of a user account.
func (s *SQLiteStore) GetUserRole(ctx context.Context, email string) (domain.Role, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `SELECT type FROM users WHERE email = ?`, email).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	return domain.Role(role), nil
}

// UpsertUser creates or updates a user account.
func (s *SQLiteStore) UpsertUser(ctx context.Context, email string, role domain.Role) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, type) VALUES (?, ?) ON CONFLICT(email) DO UPDATE SET type = excluded.type`,
		email, string(role))
	return err
}

// CreateConversation atomically adds symmetric refs to both directories and
// provisions the message log. Nothing is persisted unless every step succeeds.
func (s *SQLiteStore) CreateConversation(ctx context.Context, ownerEmail, peerEmail string) (domain.ConversationID, error) {
	if ownerEmail == "" || peerEmail == "" || strings.EqualFold(ownerEmail, peerEmail) {
		return "", fmt.Errorf("%w: a conversation needs two distinct users", domain.ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ensureDirectory(ctx, tx, ownerEmail); err != nil {
		return "", err
	}

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM chat_directory_entries WHERE owner_email = ? AND peer_email = ?`,
		ownerEmail, peerEmail).Scan(&exists)
	if err != nil {
		return "", fmt.Errorf("check existing conversation: %w", err)
	}
	if exists > 0 {
		return "", domain.ErrConflict
	}

	id := newConversationID()
	now := s.now()

	if err := insertRef(ctx, tx, ownerEmail, domain.ConversationRef{
		ConversationID: id, PeerEmail: peerEmail, CreatedAt: now, InitiatedByOwner: true,
	}); err != nil {
		return "", err
	}
	if err := ensureDirectory(ctx, tx, peerEmail); err != nil {
		return "", err
	}
	if err := insertRef(ctx, tx, peerEmail, domain.ConversationRef{
		ConversationID: id, PeerEmail: ownerEmail, CreatedAt: now, InitiatedByOwner: false,
	}); err != nil {
		return "", err
	}
	if err := provision(ctx, tx, id); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return "", domain.ErrConflict
		}
		return "", fmt.Errorf("commit conversation: %w", err)
	}
	return id, nil
}

func ensureDirectory(ctx context.Context, tx *sql.Tx, email string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO chat_directories (owner_email) VALUES (?) ON CONFLICT(owner_email) DO NOTHING`, email)
	if err != nil {
		return fmt.Errorf("ensure directory for %s: %w", email, err)
	}
	return nil
}

func insertRef(ctx context.Context, tx *sql.Tx, ownerEmail string, ref domain.ConversationRef) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO chat_directory_entries (owner_email, conversation_id, peer_email, created_at, initiated_by_owner) VALUES (?, ?, ?, ?, ?)`,
		ownerEmail, ref.ConversationID.String(), ref.PeerEmail, ref.CreatedAt, ref.InitiatedByOwner)
	if isUniqueViolation(err) {
		// A concurrent creation for the same pair committed first.
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert directory entry: %w", err)
	}
	return nil
}

// ListConversations returns the user's refs in creation order. A user with
// no directory gets an empty slice.
func (s *SQLiteStore) ListConversations(ctx context.Context, userEmail string) ([]domain.ConversationRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id, peer_email, created_at, initiated_by_owner
		 FROM chat_directory_entries WHERE owner_email = ? ORDER BY id ASC`, userEmail)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := []domain.ConversationRef{}
	for rows.Next() {
		var ref domain.ConversationRef
		var id string
		if err := rows.Scan(&id, &ref.PeerEmail, &ref.CreatedAt, &ref.InitiatedByOwner); err != nil {
			return nil, err
		}
		ref.ConversationID = domain.ConversationID(id)
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// IsParticipant reports whether userEmail's directory holds the conversation.
func (s *SQLiteStore) IsParticipant(ctx context.Context, id domain.ConversationID, userEmail string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM chat_directory_entries WHERE conversation_id = ? AND owner_email = ?`,
		id.String(), userEmail).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
