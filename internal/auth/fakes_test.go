package auth

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/openboard/server/internal/mail"
	"github.com/openboard/server/internal/model"
	"github.com/openboard/server/internal/repo"
)

// fakeOTPRepo is an in-memory OTP ledger for unit tests.
type fakeOTPRepo struct {
	records   []fakeOTPRecord
	createErr error
}

type fakeOTPRecord struct {
	otp model.OTP
	seq int
}

func (r *fakeOTPRepo) Create(ctx context.Context, email, otpHash, purpose string, expiresAt time.Time) (uuid.UUID, error) {
	if r.createErr != nil {
		return uuid.Nil, r.createErr
	}
	otp := model.OTP{
		ID:        uuid.New(),
		Email:     email,
		OTPHash:   otpHash,
		Purpose:   purpose,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	r.records = append(r.records, fakeOTPRecord{otp: otp, seq: len(r.records)})
	return otp.ID, nil
}

func (r *fakeOTPRepo) ActiveByEmail(ctx context.Context, email string, now time.Time, limit int) ([]model.OTP, error) {
	var active []fakeOTPRecord
	for _, rec := range r.records {
		if rec.otp.Email == email && !rec.otp.Used && rec.otp.ExpiresAt.After(now) {
			active = append(active, rec)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].seq > active[j].seq })
	if len(active) > limit {
		active = active[:limit]
	}
	otps := make([]model.OTP, len(active))
	for i, rec := range active {
		otps[i] = rec.otp
	}
	return otps, nil
}

func (r *fakeOTPRepo) Consume(ctx context.Context, id uuid.UUID) (bool, error) {
	for i, rec := range r.records {
		if rec.otp.ID == id {
			if rec.otp.Used {
				return false, nil
			}
			r.records[i].otp.Used = true
			return true, nil
		}
	}
	return false, nil
}

// expire backdates every record for the email so it is no longer eligible.
func (r *fakeOTPRepo) expire(email string) {
	for i, rec := range r.records {
		if rec.otp.Email == email {
			r.records[i].otp.ExpiresAt = time.Now().Add(-time.Minute)
		}
	}
}

// fakeSender records outbound mail instead of delivering it.
type fakeSender struct {
	sent    []mail.Message
	sendErr error
}

func (s *fakeSender) Send(msg mail.Message) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, msg)
	return nil
}

// fakeUserRepo is an in-memory users table for unit tests.
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
