package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openboard/server/internal/mail"
	"github.com/openboard/server/internal/model"
	"github.com/openboard/server/internal/repo"
)

// fakeUserRepo is an in-memory users table for handler tests.
type fakeUserRepo struct {
	byEmail map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: make(map[string]*model.User)}
}

func (r *fakeUserRepo) add(u model.User) *model.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	u.CreatedAt = time.Now()
	r.byEmail[u.Email] = &u
	return &u
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	for _, u := range r.byEmail {
		if u.ID == id {
			return *u, nil
		}
	}
	return model.User{}, fmt.Errorf("user: %w", repo.ErrNotFound)
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	if u, ok := r.byEmail[email]; ok {
		return *u, nil
	}
	return model.User{}, fmt.Errorf("user: %w", repo.ErrNotFound)
}

func (r *fakeUserRepo) GetOrCreateByEmail(ctx context.Context, email string) (model.User, error) {
	if u, ok := r.byEmail[email]; ok {
		return *u, nil
	}
	return *r.add(model.User{Email: email}), nil
}

func (r *fakeUserRepo) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	for _, u := range r.byEmail {
		if u.ID == id {
			h := hash
			u.PasswordHash = &h
			return nil
		}
	}
	return fmt.Errorf("user: %w", repo.ErrNotFound)
}

func (r *fakeUserRepo) SetBanned(ctx context.Context, id uuid.UUID, banned bool) error {
	for _, u := range r.byEmail {
		if u.ID == id {
			u.IsBanned = banned
			return nil
		}
	}
	return fmt.Errorf("user: %w", repo.ErrNotFound)
}

func (r *fakeUserRepo) BindQQ(ctx context.Context, id uuid.UUID, qqID, qqName, qqAvatar string) error {
	for _, u := range r.byEmail {
		if u.ID == id {
			u.QQID, u.QQName, u.QQAvatar = &qqID, &qqName, &qqAvatar
			return nil
		}
	}
	return fmt.Errorf("user: %w", repo.ErrNotFound)
}

func (r *fakeUserRepo) UnbindQQ(ctx context.Context, id uuid.UUID) error {
	for _, u := range r.byEmail {
		if u.ID == id {
			u.QQID, u.QQName, u.QQAvatar = nil, nil, nil
			return nil
		}
	}
	return fmt.Errorf("user: %w", repo.ErrNotFound)
}

func (r *fakeUserRepo) List(ctx context.Context, limit int) ([]model.User, error) {
	var users []model.User
	for _, u := range r.byEmail {
		users = append(users, *u)
	}
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// fakeOTPRepo is an in-memory OTP ledger for handler tests.
type fakeOTPRepo struct {
	otps []model.OTP
}

func (r *fakeOTPRepo) Create(ctx context.Context, email, otpHash, purpose string, expiresAt time.Time) (uuid.UUID, error) {
	otp := model.OTP{
		ID:        uuid.New(),
		Email:     email,
		OTPHash:   otpHash,
		Purpose:   purpose,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	r.otps = append(r.otps, otp)
	return otp.ID, nil
}

func (r *fakeOTPRepo) ActiveByEmail(ctx context.Context, email string, now time.Time, limit int) ([]model.OTP, error) {
	var active []model.OTP
	for i := len(r.otps) - 1; i >= 0 && len(active) < limit; i-- {
		otp := r.otps[i]
		if otp.Email == email && !otp.Used && otp.ExpiresAt.After(now) {
			active = append(active, otp)
		}
	}
	return active, nil
}

func (r *fakeOTPRepo) Consume(ctx context.Context, id uuid.UUID) (bool, error) {
	for i := range r.otps {
		if r.otps[i].ID == id {
			if r.otps[i].Used {
				return false, nil
			}
			r.otps[i].Used = true
			return true, nil
		}
	}
	return false, nil
}

// fakeSender records outbound mail instead of delivering it.
type fakeSender struct {
	sent []mail.Message
}

func (s *fakeSender) Send(msg mail.Message) error {
	s.sent = append(s.sent, msg)
	return nil
}

// fakeMessageRepo is an in-memory message store for handler tests.
type fakeMessageRepo struct {
	messages []model.Message
	audits   []string
	guests   []string
}

func (r *fakeMessageRepo) Insert(ctx context.Context, m model.Message) (model.Message, error) {
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	r.messages = append(r.messages, m)
	return m, nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Message, error) {
	for _, m := range r.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return model.Message{}, fmt.Errorf("message: %w", repo.ErrNotFound)
}

func (r *fakeMessageRepo) List(ctx context.Context, limit int) ([]model.MessageView, error) {
	var views []model.MessageView
	for i := len(r.messages) - 1; i >= 0 && len(views) < limit; i-- {
		if r.messages[i].ParentID == nil {
			views = append(views, model.MessageView{Message: r.messages[i]})
		}
	}
	return views, nil
}

func (r *fakeMessageRepo) ListReplies(ctx context.Context, parentID uuid.UUID) ([]model.MessageView, error) {
	var views []model.MessageView
	for _, m := range r.messages {
		if m.ParentID != nil && *m.ParentID == parentID {
			views = append(views, model.MessageView{Message: m})
		}
	}
	return views, nil
}

func (r *fakeMessageRepo) CountGuestSince(ctx context.Context, guestKey string, since time.Time) (int, error) {
	count := 0
	for _, m := range r.messages {
		if m.IsGuest && m.Email != nil && *m.Email == guestKey && !m.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *fakeMessageRepo) MarkDeleted(ctx context.Context, id uuid.UUID, by *uuid.UUID, at time.Time) error {
	for i := range r.messages {
		if r.messages[i].ID == id {
			r.messages[i].Deleted = true
			r.messages[i].Restored = false
			r.messages[i].DeletedAt = &at
			r.messages[i].DeletedBy = by
			return nil
		}
	}
	return fmt.Errorf("message: %w", repo.ErrNotFound)
}

func (r *fakeMessageRepo) MarkRestored(ctx context.Context, id uuid.UUID) error {
	for i := range r.messages {
		if r.messages[i].ID == id {
			r.messages[i].Deleted = false
			r.messages[i].Restored = true
			return nil
		}
	}
	return fmt.Errorf("message: %w", repo.ErrNotFound)
}

func (r *fakeMessageRepo) InsertAudit(ctx context.Context, messageID uuid.UUID, action string, actor *uuid.UUID) error {
	r.audits = append(r.audits, action)
	return nil
}

func (r *fakeMessageRepo) TrackGuest(ctx context.Context, guestKey string) error {
	r.guests = append(r.guests, guestKey)
	return nil
}
