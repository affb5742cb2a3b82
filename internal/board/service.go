package board

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openboard/server/internal/model"
	"github.com/openboard/server/internal/repo"
)

// UndoWindow is how long an author can undo their own message. Admins are
// not bound by it.
const UndoWindow = 30 * time.Minute

const defaultListLimit = 50

var (
	ErrEmptyContent = errors.New("content required")
	ErrBanned       = errors.New("banned")
	ErrGuestLimit   = errors.New("guest limit reached")
	ErrForbidden    = errors.New("forbidden")
)

// CreateInput describes a new post. Exactly one of UserID or GuestKey is set:
// authenticated posts carry the author, guest posts carry the rate-limit key.
type CreateInput struct {
	Content  string
	ParentID *uuid.UUID
	UserID   *uuid.UUID
	Email    string
	GuestKey string
	IP       string
	Device   string
}

// Service implements message listing, creation and moderation.
type Service struct {
	messages   repo.MessageRepo
	users      repo.UserRepo
	guestLimit int
	now        func() time.Time
}

// NewService creates a board service. guestLimit caps guest posts per local
// calendar day.
func NewService(messages repo.MessageRepo, users repo.UserRepo, guestLimit int) *Service {
	return &Service{
		messages:   messages,
		users:      users,
		guestLimit: guestLimit,
		now:        time.Now,
	}
}

// List returns messages newest first, or the replies to parentID oldest
// first when it is set.
func (s *Service) List(ctx context.Context, parentID *uuid.UUID, limit int) ([]model.MessageView, error) {
	if parentID != nil {
		return s.messages.ListReplies(ctx, *parentID)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.messages.List(ctx, limit)
}

// Create stores a new post. Authenticated callers are re-checked against the
// ban flag; guests are counted against the daily cap keyed by their guest
// identifier, reset at local midnight.
func (s *Service) Create(ctx context.Context, in CreateInput) (model.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return model.Message{}, ErrEmptyContent
	}

	msg := model.Message{
		Content:  content,
		ParentID: in.ParentID,
		IP:       in.IP,
		Device:   truncate(in.Device, 300),
	}

	if in.UserID != nil {
		user, err := s.users.GetByID(ctx, *in.UserID)
		if err != nil {
			return model.Message{}, fmt.Errorf("lookup author: %w", err)
		}
		if user.IsBanned {
			return model.Message{}, ErrBanned
		}
		msg.UserID = in.UserID
		email := in.Email
		msg.Email = &email
	} else {
		since := startOfDay(s.now())
		count, err := s.messages.CountGuestSince(ctx, in.GuestKey, since)
		if err != nil {
			return model.Message{}, fmt.Errorf("count guest posts: %w", err)
		}
		if count >= s.guestLimit {
			return model.Message{}, ErrGuestLimit
		}
		msg.IsGuest = true
		key := in.GuestKey
		msg.Email = &key
	}

	created, err := s.messages.Insert(ctx, msg)
	if err != nil {
		return model.Message{}, err
	}

	// Audit trail is best-effort; a failed insert never fails the post.
	if err := s.messages.InsertAudit(ctx, created.ID, "created", msg.UserID); err != nil {
		log.Printf("message audit insert failed: %v", err)
	}

	return created, nil
}

// Undo soft-deletes a message. Allowed for the author within UndoWindow of
// creation, or for an admin at any time.
func (s *Service) Undo(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) error {
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return err
	}

	isAuthor, isAdmin, err := s.actorStanding(ctx, msg, actorID)
	if err != nil {
		return err
	}

	now := s.now()
	if !isAdmin && !(isAuthor && now.Sub(msg.CreatedAt) <= UndoWindow) {
		return ErrForbidden
	}

	if err := s.messages.MarkDeleted(ctx, id, actorID, now); err != nil {
		return err
	}
	if err := s.messages.InsertAudit(ctx, id, "undone", actorID); err != nil {
		log.Printf("message audit insert failed: %v", err)
	}
	return nil
}

// Restore clears the soft-delete state. Allowed for the author (no time
// window) or an admin.
func (s *Service) Restore(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) error {
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return err
	}

	isAuthor, isAdmin, err := s.actorStanding(ctx, msg, actorID)
	if err != nil {
		return err
	}
	if !isAdmin && !isAuthor {
		return ErrForbidden
	}

	if err := s.messages.MarkRestored(ctx, id); err != nil {
		return err
	}
	if err := s.messages.InsertAudit(ctx, id, "restored", actorID); err != nil {
		log.Printf("message audit insert failed: %v", err)
	}
	return nil
}

// actorStanding resolves authorship and role for the actor. The role is
// always re-fetched from the users table, never trusted from a token.
func (s *Service) actorStanding(ctx context.Context, msg model.Message, actorID *uuid.UUID) (isAuthor, isAdmin bool, err error) {
	if actorID == nil {
		return false, false, nil
	}
	isAuthor = msg.UserID != nil && *msg.UserID == *actorID

	user, err := s.users.GetByID(ctx, *actorID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return isAuthor, false, nil
		}
		return false, false, fmt.Errorf("lookup actor: %w", err)
	}
	return isAuthor, user.IsAdmin(), nil
}

// startOfDay returns local midnight for t; the guest cap resets there.
func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
