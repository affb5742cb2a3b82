package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openboard/server/internal/model"
)

// MessageRepo defines the interface for the message store, including the
// moderation audit trail and guest tracking.
type MessageRepo interface {
	Insert(ctx context.Context, m model.Message) (model.Message, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.Message, error)
	List(ctx context.Context, limit int) ([]model.MessageView, error)
	ListReplies(ctx context.Context, parentID uuid.UUID) ([]model.MessageView, error)
	CountGuestSince(ctx context.Context, guestKey string, since time.Time) (int, error)
	MarkDeleted(ctx context.Context, id uuid.UUID, by *uuid.UUID, at time.Time) error
	MarkRestored(ctx context.Context, id uuid.UUID) error
	InsertAudit(ctx context.Context, messageID uuid.UUID, action string, actor *uuid.UUID) error
	TrackGuest(ctx context.Context, guestKey string) error
}

type messageRepo struct {
	db *sql.DB
}

// NewMessageRepo creates a new MessageRepo instance
func NewMessageRepo(db *sql.DB) MessageRepo {
	return &messageRepo{db: db}
}

// Insert stores a new message and returns it with generated fields filled in.
func (r *messageRepo) Insert(ctx context.Context, m model.Message) (model.Message, error) {
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO messages (content, parent_id, user_id, email, is_guest, ip, device)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, m.Content, uuidPtr(m.ParentID), uuidPtr(m.UserID), m.Email, m.IsGuest, m.IP, m.Device).
		Scan(&idStr, &m.CreatedAt)
	if err != nil {
		return model.Message{}, fmt.Errorf("insert message: %w", err)
	}
	m.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.Message{}, fmt.Errorf("parse message ID: %w", err)
	}
	return m, nil
}

const messageColumns = `m.id, m.content, m.parent_id, m.user_id, m.email, m.is_guest, m.ip, m.device,
	m.deleted, m.restored, m.deleted_at, m.deleted_by, m.created_at`

// GetByID retrieves a message by ID.
func (r *messageRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages m WHERE m.id = $1`
	var m model.Message
	var idStr string
	var parentStr, userStr, deletedByStr sql.NullString
	err := r.db.QueryRowContext(ctx, query, id.String()).Scan(
		&idStr, &m.Content, &parentStr, &userStr, &m.Email, &m.IsGuest, &m.IP, &m.Device,
		&m.Deleted, &m.Restored, &m.DeletedAt, &deletedByStr, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Message{}, fmt.Errorf("message: %w", ErrNotFound)
		}
		return model.Message{}, fmt.Errorf("query message: %w", err)
	}
	if err := fillMessageIDs(&m, idStr, parentStr, userStr, deletedByStr); err != nil {
		return model.Message{}, err
	}
	return m, nil
}

// List returns up to limit top-level and reply messages, newest first, each
// enriched with the author's profile fields.
func (r *messageRepo) List(ctx context.Context, limit int) ([]model.MessageView, error) {
	query := `
		SELECT ` + messageColumns + `, u.qq_id, u.qq_name, u.qq_avatar, u.display_name
		FROM messages m
		LEFT JOIN users u ON u.id = m.user_id
		ORDER BY m.created_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	return scanMessageViews(rows)
}

// ListReplies returns replies to the parent message, oldest first.
func (r *messageRepo) ListReplies(ctx context.Context, parentID uuid.UUID) ([]model.MessageView, error) {
	query := `
		SELECT ` + messageColumns + `, u.qq_id, u.qq_name, u.qq_avatar, u.display_name
		FROM messages m
		LEFT JOIN users u ON u.id = m.user_id
		WHERE m.parent_id = $1
		ORDER BY m.created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, parentID.String())
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	defer rows.Close()
	return scanMessageViews(rows)
}

// CountGuestSince counts guest posts for the key created at or after since.
func (r *messageRepo) CountGuestSince(ctx context.Context, guestKey string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE is_guest = true AND email = $1 AND created_at >= $2
	`, guestKey, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count guest posts: %w", err)
	}
	return count, nil
}

// MarkDeleted soft-deletes the message.
func (r *messageRepo) MarkDeleted(ctx context.Context, id uuid.UUID, by *uuid.UUID, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE messages SET deleted = true, deleted_at = $1, deleted_by = $2 WHERE id = $3
	`, at, uuidPtr(by), id.String())
	if err != nil {
		return fmt.Errorf("mark deleted: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("message: %w", ErrNotFound)
	}
	return nil
}

// MarkRestored clears the soft-delete state and flags the message restored.
func (r *messageRepo) MarkRestored(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE messages SET deleted = false, restored = true, deleted_at = NULL, deleted_by = NULL WHERE id = $1
	`, id.String())
	if err != nil {
		return fmt.Errorf("mark restored: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("message: %w", ErrNotFound)
	}
	return nil
}

// InsertAudit records a moderation action against a message.
func (r *messageRepo) InsertAudit(ctx context.Context, messageID uuid.UUID, action string, actor *uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO message_audit (message_id, action, actor_user_id)
		VALUES ($1, $2, $3)
	`, messageID.String(), action, uuidPtr(actor))
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// TrackGuest records the issuance of a guest key.
func (r *messageRepo) TrackGuest(ctx context.Context, guestKey string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO guest_posts (guest_key) VALUES ($1)`, guestKey)
	if err != nil {
		return fmt.Errorf("track guest: %w", err)
	}
	return nil
}

func scanMessageViews(rows *sql.Rows) ([]model.MessageView, error) {
	var views []model.MessageView
	for rows.Next() {
		var v model.MessageView
		var idStr string
		var parentStr, userStr, deletedByStr sql.NullString
		err := rows.Scan(
			&idStr, &v.Content, &parentStr, &userStr, &v.Email, &v.IsGuest, &v.IP, &v.Device,
			&v.Deleted, &v.Restored, &v.DeletedAt, &deletedByStr, &v.CreatedAt,
			&v.QQID, &v.QQName, &v.QQAvatar, &v.DisplayName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if err := fillMessageIDs(&v.Message, idStr, parentStr, userStr, deletedByStr); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

func fillMessageIDs(m *model.Message, idStr string, parent, user, deletedBy sql.NullString) error {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("parse message ID: %w", err)
	}
	m.ID = id
	if m.ParentID, err = parseNullUUID(parent); err != nil {
		return err
	}
	if m.UserID, err = parseNullUUID(user); err != nil {
		return err
	}
	if m.DeletedBy, err = parseNullUUID(deletedBy); err != nil {
		return err
	}
	return nil
}

func parseNullUUID(s sql.NullString) (*uuid.UUID, error) {
	if !s.Valid {
		return nil, nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil, fmt.Errorf("parse uuid column: %w", err)
	}
	return &id, nil
}

// uuidPtr converts *uuid.UUID into a driver-friendly nullable string.
func uuidPtr(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}
