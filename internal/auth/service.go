package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/openboard/server/internal/model"
	"github.com/openboard/server/internal/repo"
)

const minPasswordLen = 6

// resetPasswordPattern is the stricter policy for the OTP-gated reset flow.
var resetPasswordPattern = regexp.MustCompile(`^[A-Za-z0-9]{6,}$`)

// AuthService orchestrates login, OTP login and password management.
type AuthService struct {
	otpProvider OTPProvider
	tokens      *TokenService
	users       repo.UserRepo
	hasher      Hasher
}

// NewAuthService creates a new auth service.
func NewAuthService(otpProvider OTPProvider, tokens *TokenService, users repo.UserRepo, hasher Hasher) *AuthService {
	return &AuthService{
		otpProvider: otpProvider,
		tokens:      tokens,
		users:       users,
		hasher:      hasher,
	}
}

// LoginPassword verifies email/password and issues a session token.
// Unknown email, unset password and wrong password are indistinguishable.
// The ban check runs only after the credential check passes, so a banned
// account cannot be detected by password guessing.
func (s *AuthService) LoginPassword(ctx context.Context, email, password string) (model.User, string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, "", ErrInvalidCredentials
		}
		return model.User{}, "", fmt.Errorf("lookup user: %w", err)
	}

	if user.PasswordHash == nil || !s.hasher.Verify(password, *user.PasswordHash) {
		return model.User{}, "", ErrInvalidCredentials
	}

	if user.IsBanned {
		return model.User{}, "", ErrBanned
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return model.User{}, "", fmt.Errorf("failed to generate token: %w", err)
	}

	return user, token, nil
}

// VerifyOTPLogin consumes a valid OTP, gets or creates the user for the email
// and issues a session token.
func (s *AuthService) VerifyOTPLogin(ctx context.Context, email, code string) (model.User, string, error) {
	if err := s.otpProvider.Verify(ctx, email, code); err != nil {
		return model.User{}, "", err
	}

	user, err := s.users.GetOrCreateByEmail(ctx, email)
	if err != nil {
		return model.User{}, "", fmt.Errorf("failed to get or create user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return model.User{}, "", fmt.Errorf("failed to generate token: %w", err)
	}

	return user, token, nil
}

// SetPassword changes the password for an authenticated user. If a password
// is already set, the old one must be supplied and verify; an OTP-only
// account sets its first password without one.
func (s *AuthService) SetPassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return ErrPasswordTooShort
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}

	if user.PasswordHash != nil {
		if oldPassword == "" {
			return ErrOldPasswordRequired
		}
		if !s.hasher.Verify(oldPassword, *user.PasswordHash) {
			return ErrOldPasswordWrong
		}
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.SetPasswordHash(ctx, user.ID, hash)
}

// ResetPassword replaces the password for the email after consuming a valid
// OTP in the same request. The user is created if it doesn't exist yet.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if !resetPasswordPattern.MatchString(newPassword) {
		return ErrPasswordFormat
	}

	if err := s.otpProvider.Verify(ctx, email, code); err != nil {
		return err
	}

	user, err := s.users.GetOrCreateByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to get or create user: %w", err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.SetPasswordHash(ctx, user.ID, hash)
}
