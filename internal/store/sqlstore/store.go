// Package sqlstore implements store.Store on top of the embedded SQLite
// database. Member sets live in chat_members with a position column so the
// insertion order survives round trips.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/4xmen/gapchat/internal/db"
	"github.com/4xmen/gapchat/internal/models"
	"github.com/4xmen/gapchat/internal/store"
)

type SQLStore struct {
	db *db.DB
}

var _ store.Store = (*SQLStore)(nil)

func New(path string) (*SQLStore, error) {
	database, err := db.New(path)
	if err != nil {
		return nil, err
	}
	return &SQLStore{db: database}, nil
}

// DB exposes the underlying connection pool for maintenance commands and
// tests.
func (s *SQLStore) DB() *sql.DB {
	return s.db.GetConn()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// Users

const userColumns = "id, name, email, password_hash, profile_pic, about_me, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.ProfilePic, &u.AboutMe, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *SQLStore) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.DB().ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.ProfilePic, u.AboutMe, u.CreatedAt.UTC(), u.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *SQLStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(s.DB().QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.DB().QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

func (s *SQLStore) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.DB().QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *SQLStore) UpdateUser(ctx context.Context, u *models.User) error {
	res, err := s.DB().ExecContext(ctx, `
		UPDATE users SET name = ?, email = ?, password_hash = ?, profile_pic = ?, about_me = ?, updated_at = ?
		WHERE id = ?
	`, u.Name, u.Email, u.PasswordHash, u.ProfilePic, u.AboutMe, u.UpdatedAt.UTC(), u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Chats

func (s *SQLStore) CreateChat(ctx context.Context, c *models.Chat) error {
	tx, err := s.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chats (id, name, is_group, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.IsGroup, c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("failed to insert chat: %w", err)
	}

	if err := insertMembers(ctx, tx, c.ID, c.Members); err != nil {
		return err
	}

	return tx.Commit()
}

func insertMembers(ctx context.Context, tx *sql.Tx, chatID string, members []string) error {
	for i, userID := range members {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO chat_members (chat_id, user_id, position) VALUES (?, ?, ?)
		`, chatID, userID, i)
		if err != nil {
			return fmt.Errorf("failed to insert chat member: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) GetChatByID(ctx context.Context, id string) (*models.Chat, error) {
	c := &models.Chat{}
	err := s.DB().QueryRowContext(ctx, `
		SELECT id, name, is_group, created_at, updated_at FROM chats WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.IsGroup, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query chat: %w", err)
	}

	members, err := s.membersOf(ctx, []string{c.ID})
	if err != nil {
		return nil, err
	}
	c.Members = members[c.ID]
	return c, nil
}

func (s *SQLStore) membersOf(ctx context.Context, chatIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(chatIDs))
	if len(chatIDs) == 0 {
		return out, nil
	}

	args := make([]any, len(chatIDs))
	for i, id := range chatIDs {
		args[i] = id
	}

	rows, err := s.DB().QueryContext(ctx, `
		SELECT chat_id, user_id FROM chat_members
		WHERE chat_id IN (`+placeholders(len(chatIDs))+`)
		ORDER BY chat_id, position
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var chatID, userID string
		if err := rows.Scan(&chatID, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan chat member: %w", err)
		}
		out[chatID] = append(out[chatID], userID)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListChatsByMember(ctx context.Context, userID string) ([]models.Chat, error) {
	rows, err := s.DB().QueryContext(ctx, `
		SELECT c.id, c.name, c.is_group, c.created_at, c.updated_at
		FROM chats c
		JOIN chat_members m ON m.chat_id = c.id
		WHERE m.user_id = ?
		ORDER BY c.updated_at DESC, c.rowid DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}

	var chats []models.Chat
	for rows.Next() {
		var c models.Chat
		if err := rows.Scan(&c.ID, &c.Name, &c.IsGroup, &c.CreatedAt, &c.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	ids := make([]string, len(chats))
	for i := range chats {
		ids[i] = chats[i].ID
	}
	members, err := s.membersOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range chats {
		chats[i].Members = members[chats[i].ID]
	}
	return chats, nil
}

func (s *SQLStore) UpdateChat(ctx context.Context, c *models.Chat) error {
	tx, err := s.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE chats SET name = ?, is_group = ?, updated_at = ? WHERE id = ?
	`, c.Name, c.IsGroup, c.UpdatedAt.UTC(), c.ID)
	if err != nil {
		return fmt.Errorf("failed to update chat: %w", err)
	}
	if err := expectOne(res); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM chat_members WHERE chat_id = ?", c.ID); err != nil {
		return fmt.Errorf("failed to clear chat members: %w", err)
	}
	if err := insertMembers(ctx, tx, c.ID, c.Members); err != nil {
		return err
	}

	return tx.Commit()
}

// Messages

const messageColumns = "id, chat_id, sender_id, text, image, created_at, updated_at"

func scanMessage(row rowScanner) (*models.Message, error) {
	m := &models.Message{}
	if err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Text, &m.Image, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *SQLStore) CreateMessage(ctx context.Context, m *models.Message) error {
	_, err := s.DB().ExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.ChatID, m.SenderID, m.Text, m.Image, m.CreatedAt.UTC(), m.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (s *SQLStore) GetMessageByID(ctx context.Context, id string) (*models.Message, error) {
	m, err := scanMessage(s.DB().QueryRowContext(ctx, "SELECT "+messageColumns+" FROM messages WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query message: %w", err)
	}
	return m, nil
}

func (s *SQLStore) ListMessagesByChat(ctx context.Context, chatID string) ([]models.Message, error) {
	rows, err := s.DB().QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE chat_id = ? ORDER BY seq", chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

func (s *SQLStore) UpdateMessage(ctx context.Context, m *models.Message) error {
	res, err := s.DB().ExecContext(ctx, `
		UPDATE messages SET text = ?, image = ?, updated_at = ? WHERE id = ?
	`, m.Text, m.Image, m.UpdatedAt.UTC(), m.ID)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return expectOne(res)
}

func (s *SQLStore) DeleteMessage(ctx context.Context, id string) error {
	res, err := s.DB().ExecContext(ctx, "DELETE FROM messages WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return expectOne(res)
}

func (s *SQLStore) Stats(ctx context.Context) (store.Stats, error) {
	var st store.Stats
	counts := []struct {
		dst   *int64
		query string
		args  []any
	}{
		{&st.Users, "SELECT COUNT(*) FROM users", nil},
		{&st.Chats, "SELECT COUNT(*) FROM chats", nil},
		{&st.GroupChats, "SELECT COUNT(*) FROM chats WHERE is_group = 1", nil},
		{&st.Messages, "SELECT COUNT(*) FROM messages", nil},
		{&st.MessagesLast24h, "SELECT COUNT(*) FROM messages WHERE created_at >= ?", []any{time.Now().UTC().Add(-24 * time.Hour)}},
	}
	for _, c := range counts {
		if err := s.DB().QueryRowContext(ctx, c.query, c.args...).Scan(c.dst); err != nil {
			return st, fmt.Errorf("could not read database stats: %w", err)
		}
	}

	var latest time.Time
	err := s.DB().QueryRowContext(ctx, "SELECT created_at FROM messages ORDER BY seq DESC LIMIT 1").Scan(&latest)
	switch {
	case err == nil:
		st.LatestMessageAt = &latest
	case errors.Is(err, sql.ErrNoRows):
	default:
		return st, fmt.Errorf("could not read database stats: %w", err)
	}

	return st, nil
}
