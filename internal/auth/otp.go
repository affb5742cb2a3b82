package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/openboard/server/internal/mail"
	"github.com/openboard/server/internal/repo"
)

const (
	otpDigits = 6
	// Verification considers at most the 5 newest unused, unexpired codes so
	// a resend does not invalidate still-valid earlier codes.
	otpCandidates = 5

	// PurposeLogin tags codes issued for the login and reset flows.
	PurposeLogin = "login"
)

// OTPProvider defines the interface for OTP operations.
type OTPProvider interface {
	Issue(ctx context.Context, email string) error
	Verify(ctx context.Context, email, code string) error
}

// OTPService implements OTPProvider with a Postgres-backed ledger and
// email delivery.
type OTPService struct {
	otps   repo.OTPRepo
	hasher Hasher
	sender mail.Sender
	expiry time.Duration
}

// NewOTPService creates a new OTP service.
func NewOTPService(otps repo.OTPRepo, hasher Hasher, sender mail.Sender, expiry time.Duration) *OTPService {
	return &OTPService{
		otps:   otps,
		hasher: hasher,
		sender: sender,
		expiry: expiry,
	}
}

// Issue generates a fresh code, stores its hash with an expiry, then delivers
// it by email. Storage and delivery failures are reported distinctly; the
// plaintext code only ever leaves the process inside the mail body.
func (s *OTPService) Issue(ctx context.Context, email string) error {
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	hash, err := s.hasher.Hash(code)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}

	expiresAt := time.Now().Add(s.expiry)
	if _, err := s.otps.Create(ctx, email, hash, PurposeLogin, expiresAt); err != nil {
		return fmt.Errorf("%w: %v", ErrOTPStore, err)
	}

	minutes := int(s.expiry / time.Minute)
	msg := mail.Message{
		To:       email,
		Subject:  "【留言板】验证码",
		TextBody: fmt.Sprintf("你的验证码是：%s。有效期 %d 分钟。", code, minutes),
		HTMLBody: fmt.Sprintf("<p>你的验证码是：<strong>%s</strong></p><p>有效期 %d 分钟。</p>", code, minutes),
	}
	if err := s.sender.Send(msg); err != nil {
		return fmt.Errorf("%w: %v", ErrOTPSend, err)
	}

	return nil
}

// Verify checks the code against the newest candidates and consumes the first
// match. Consumption is a conditional update; if a concurrent request claimed
// the same record first, this caller is rejected.
func (s *OTPService) Verify(ctx context.Context, email, code string) error {
	candidates, err := s.otps.ActiveByEmail(ctx, email, time.Now(), otpCandidates)
	if err != nil {
		return fmt.Errorf("load otp candidates: %w", err)
	}
	if len(candidates) == 0 {
		return ErrNoValidOTP
	}

	for _, candidate := range candidates {
		if !s.hasher.Verify(code, candidate.OTPHash) {
			continue
		}
		claimed, err := s.otps.Consume(ctx, candidate.ID)
		if err != nil {
			return fmt.Errorf("consume otp: %w", err)
		}
		if !claimed {
			return ErrNoValidOTP
		}
		return nil
	}
	return ErrNoValidOTP
}

// generateCode returns a 6-digit code uniform over 000000-999999.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}
