package model

import (
	"time"

	"github.com/google/uuid"
)

// Role values stored in the users table. Elevation to admin is provisioned
// directly in the database, never through the API.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents an account. Accounts are auto-provisioned on first
// successful OTP verification; PasswordHash is nil until a password is set.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash *string
	DisplayName  *string
	QQID         *string
	QQName       *string
	QQAvatar     *string
	Role         string
	IsBanned     bool
	CreatedAt    time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// OTP represents one issued one-time passcode. Only the bcrypt hash of the
// code is stored. A record is terminal once Used is true; expired records are
// filtered at read time and never written back.
type OTP struct {
	ID        uuid.UUID
	Email     string
	OTPHash   string
	Purpose   string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// Message is a board post. Guest posts carry the guest key in Email and have
// IsGuest set; authenticated posts carry UserID and the author's email.
type Message struct {
	ID        uuid.UUID
	Content   string
	ParentID  *uuid.UUID
	UserID    *uuid.UUID
	Email     *string
	IsGuest   bool
	IP        string
	Device    string
	Deleted   bool
	Restored  bool
	DeletedAt *time.Time
	DeletedBy *uuid.UUID
	CreatedAt time.Time
}

// MessageView is a message enriched with the author's profile fields for list
// responses. The profile fields are nil for guest posts.
type MessageView struct {
	Message
	QQID        *string
	QQName      *string
	QQAvatar    *string
	DisplayName *string
}
