package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openboard/server/internal/model"
)

// OTPRepo defines the interface for the OTP ledger.
type OTPRepo interface {
	Create(ctx context.Context, email, otpHash, purpose string, expiresAt time.Time) (uuid.UUID, error)
	ActiveByEmail(ctx context.Context, email string, now time.Time, limit int) ([]model.OTP, error)
	Consume(ctx context.Context, id uuid.UUID) (bool, error)
}

type otpRepo struct {
	db *sql.DB
}

// NewOTPRepo creates a new OTPRepo instance
func NewOTPRepo(db *sql.DB) OTPRepo {
	return &otpRepo{db: db}
}

// Create inserts a new OTP record. Outstanding records for the same email are
// left untouched; verification filters by used/expiry at read time.
func (r *otpRepo) Create(ctx context.Context, email, otpHash, purpose string, expiresAt time.Time) (uuid.UUID, error) {
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO otps (email, otp_hash, purpose, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, email, otpHash, purpose, expiresAt).Scan(&idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert otp: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse otp ID: %w", err)
	}
	return id, nil
}

// ActiveByEmail returns up to limit unused, unexpired records for the email,
// newest first.
func (r *otpRepo) ActiveByEmail(ctx context.Context, email string, now time.Time, limit int) ([]model.OTP, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, otp_hash, purpose, expires_at, used, created_at
		FROM otps
		WHERE email = $1 AND used = false AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT $3
	`, email, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query otps: %w", err)
	}
	defer rows.Close()

	var otps []model.OTP
	for rows.Next() {
		var otp model.OTP
		var idStr string
		err := rows.Scan(&idStr, &otp.Email, &otp.OTPHash, &otp.Purpose, &otp.ExpiresAt, &otp.Used, &otp.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan otp: %w", err)
		}
		otp.ID, err = uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parse otp ID: %w", err)
		}
		otps = append(otps, otp)
	}
	return otps, rows.Err()
}

// Consume marks the record used, but only if it is still unused. Returns
// false when another request consumed it first; the record is never mutated
// again after this transition.
func (r *otpRepo) Consume(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE otps SET used = true WHERE id = $1 AND used = false
	`, id.String())
	if err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consume otp rows: %w", err)
	}
	return n == 1, nil
}
