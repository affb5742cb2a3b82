package auth

import "errors"

// Failure classes surfaced to handlers. Handlers map these to HTTP statuses;
// anything else is a dependency failure and becomes a generic 500.
var (
	// ErrInvalidCredentials covers unknown email, no password set, and wrong
	// password alike, so callers cannot probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrBanned is only returned after the credential check has passed.
	ErrBanned = errors.New("banned")

	// ErrNoValidOTP covers absent, expired, already-used and mismatched codes.
	ErrNoValidOTP = errors.New("no valid otp")

	// ErrOTPStore indicates the ledger write failed before any mail was sent.
	ErrOTPStore = errors.New("otp store failed")

	// ErrOTPSend indicates the code was stored but delivery failed.
	ErrOTPSend = errors.New("otp send failed")

	ErrPasswordTooShort    = errors.New("password too short")
	ErrPasswordFormat      = errors.New("password invalid (letters+digits, >=6)")
	ErrOldPasswordRequired = errors.New("old password required")
	ErrOldPasswordWrong    = errors.New("old password wrong")
)
