package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rentora/rentora/internal/id"
	"github.com/rentora/rentora/internal/platform/storage/sqlitemigrate"
	chatstorage "github.com/rentora/rentora/internal/services/chat/storage"
	"github.com/rentora/rentora/internal/services/chat/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for chat data.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
	newID func() (string, error)
}

// Open opens and migrates a chat SQLite store.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{
		sqlDB: sqlDB,
		now:   time.Now,
		newID: id.NewID,
	}
	if err := store.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// AppendMessage persists one conversation message and returns the stored row.
func (s *Store) AppendMessage(ctx context.Context, input chatstorage.AppendMessageInput) (chatstorage.Message, error) {
	if s == nil || s.sqlDB == nil {
		return chatstorage.Message{}, fmt.Errorf("storage is not configured")
	}
	input.ConversationID = strings.TrimSpace(input.ConversationID)
	if input.ConversationID == "" {
		return chatstorage.Message{}, fmt.Errorf("conversation id is required")
	}
	if strings.TrimSpace(input.Body) == "" {
		return chatstorage.Message{}, fmt.Errorf("message body is required")
	}
	input.SenderID = strings.TrimSpace(input.SenderID)
	if input.SenderID == "" {
		return chatstorage.Message{}, fmt.Errorf("sender id is required")
	}
	input.RecipientID = strings.TrimSpace(input.RecipientID)
	if input.RecipientID == "" {
		return chatstorage.Message{}, fmt.Errorf("recipient id is required")
	}

	messageID, err := s.newID()
	if err != nil {
		return chatstorage.Message{}, fmt.Errorf("generate message id: %w", err)
	}
	createdAt := s.now().UTC()

	if _, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO messages (id, conversation_id, body, sender_id, recipient_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		messageID,
		input.ConversationID,
		input.Body,
		input.SenderID,
		input.RecipientID,
		createdAt.UnixMilli(),
	); err != nil {
		return chatstorage.Message{}, fmt.Errorf("append message: %w", err)
	}

	return chatstorage.Message{
		ID:             messageID,
		ConversationID: input.ConversationID,
		Body:           input.Body,
		SenderID:       input.SenderID,
		RecipientID:    input.RecipientID,
		CreatedAt:      createdAt,
	}, nil
}

// ListMessages returns a conversation's messages ordered oldest first.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]chatstorage.Message, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, fmt.Errorf("conversation id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, conversation_id, body, sender_id, recipient_id, created_at
		 FROM messages
		 WHERE conversation_id = ?
		 ORDER BY created_at ASC, id ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var messages []chatstorage.Message
	for rows.Next() {
		var msg chatstorage.Message
		var createdAt int64
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Body,
			&msg.SenderID,
			&msg.RecipientID,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.CreatedAt = unixMillisToTime(createdAt)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return messages, nil
}

// GetUser loads one identity record by user id.
func (s *Store) GetUser(ctx context.Context, userID string) (chatstorage.User, bool, error) {
	if s == nil || s.sqlDB == nil {
		return chatstorage.User{}, false, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return chatstorage.User{}, false, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, display_name, created_at FROM users WHERE id = ?`,
		userID,
	)

	var user chatstorage.User
	var createdAt int64
	if err := row.Scan(&user.ID, &user.DisplayName, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return chatstorage.User{}, false, nil
		}
		return chatstorage.User{}, false, fmt.Errorf("get user: %w", err)
	}
	user.CreatedAt = unixMillisToTime(createdAt)
	return user, true, nil
}

// PutUser upserts an identity record synced from the account service.
func (s *Store) PutUser(ctx context.Context, user chatstorage.User) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	user.ID = strings.TrimSpace(user.ID)
	if user.ID == "" {
		return fmt.Errorf("user id is required")
	}
	user.DisplayName = strings.TrimSpace(user.DisplayName)
	if user.DisplayName == "" {
		return fmt.Errorf("user display name is required")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}

	if _, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO users (id, display_name, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name`,
		user.ID,
		user.DisplayName,
		user.CreatedAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// runMigrations applies embedded SQL migrations in filename order.
func (s *Store) runMigrations() error {
	return sqlitemigrate.ApplyMigrations(s.sqlDB, migrations.FS, "")
}

func unixMillisToTime(millis int64) time.Time {
	if millis <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(millis).UTC()
}
