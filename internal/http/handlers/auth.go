package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/openboard/server/internal/auth"
	"github.com/openboard/server/internal/middleware"
	"github.com/openboard/server/internal/model"
	"github.com/openboard/server/internal/repo"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	service *auth.AuthService
	otp     auth.OTPProvider
	users   repo.UserRepo
	cookies Cookies
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service *auth.AuthService, otp auth.OTPProvider, users repo.UserRepo, cookies Cookies) *AuthHandler {
	return &AuthHandler{
		service: service,
		otp:     otp,
		users:   users,
		cookies: cookies,
	}
}

type sendOTPRequest struct {
	Email string `json:"email"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type setPasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

// okResponse is the common success shape; Email is set by the login flows.
type okResponse struct {
	OK    bool   `json:"ok"`
	Email string `json:"email,omitempty"`
}

// HandleSendOTP handles POST /api/send-otp
func (h *AuthHandler) HandleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		respondWithError(w, http.StatusBadRequest, "missing email")
		return
	}

	if err := h.otp.Issue(r.Context(), req.Email); err != nil {
		log.Printf("send otp for %s: %v", maskEmail(req.Email), err)
		if errors.Is(err, auth.ErrOTPSend) {
			respondWithError(w, http.StatusInternalServerError, "send failed")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "db error")
		return
	}

	respondWithJSON(w, http.StatusOK, okResponse{OK: true})
}

// HandleVerifyOTP handles POST /api/verify-otp
func (h *AuthHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.OTP = strings.TrimSpace(req.OTP)
	if req.Email == "" || req.OTP == "" {
		respondWithError(w, http.StatusBadRequest, "missing email or otp")
		return
	}

	user, token, err := h.service.VerifyOTPLogin(r.Context(), req.Email, req.OTP)
	if err != nil {
		if errors.Is(err, auth.ErrNoValidOTP) {
			respondWithError(w, http.StatusBadRequest, "no valid otp")
			return
		}
		log.Printf("verify otp for %s: %v", maskEmail(req.Email), err)
		respondWithError(w, http.StatusInternalServerError, "verify failed")
		return
	}

	h.cookies.SetSession(w, token)
	respondWithJSON(w, http.StatusOK, okResponse{OK: true, Email: user.Email})
}

// HandleLoginPassword handles POST /api/login-password
func (h *AuthHandler) HandleLoginPassword(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "missing")
		return
	}

	user, token, err := h.service.LoginPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			respondWithError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, auth.ErrBanned):
			respondWithError(w, http.StatusForbidden, "banned")
		default:
			log.Printf("login for %s: %v", maskEmail(req.Email), err)
			respondWithError(w, http.StatusInternalServerError, "server error")
		}
		return
	}

	h.cookies.SetSession(w, token)
	respondWithJSON(w, http.StatusOK, okResponse{OK: true, Email: user.Email})
}

// HandleSetPassword handles POST /api/set-password (requires auth)
func (h *AuthHandler) HandleSetPassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req setPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.service.SetPassword(r.Context(), claims.UserID, req.OldPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrPasswordTooShort):
			respondWithError(w, http.StatusBadRequest, "password too short")
		case errors.Is(err, auth.ErrOldPasswordRequired):
			respondWithError(w, http.StatusBadRequest, "old password required")
		case errors.Is(err, auth.ErrOldPasswordWrong):
			respondWithError(w, http.StatusUnauthorized, "old password wrong")
		default:
			log.Printf("set password for %s: %v", maskEmail(claims.Email), err)
			respondWithError(w, http.StatusInternalServerError, "server error")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, okResponse{OK: true})
}

// HandleResetPassword handles POST /api/reset-password
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.OTP == "" || req.NewPassword == "" {
		respondWithError(w, http.StatusBadRequest, "missing")
		return
	}

	err := h.service.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrPasswordFormat):
			respondWithError(w, http.StatusBadRequest, "password invalid (letters+digits, >=6)")
		case errors.Is(err, auth.ErrNoValidOTP):
			respondWithError(w, http.StatusBadRequest, "invalid otp")
		default:
			log.Printf("reset password for %s: %v", maskEmail(req.Email), err)
			respondWithError(w, http.StatusInternalServerError, "server error")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, okResponse{OK: true})
}

// meResponse is the current-user shape for GET /api/me.
type meResponse struct {
	ID          string  `json:"id,omitempty"`
	Email       string  `json:"email"`
	DisplayName *string `json:"display_name,omitempty"`
	QQID        *string `json:"qq_id,omitempty"`
	QQName      *string `json:"qq_name,omitempty"`
	QQAvatar    *string `json:"qq_avatar,omitempty"`
	Role        string  `json:"role,omitempty"`
	IsBanned    bool    `json:"is_banned"`
}

// HandleMe handles GET /api/me (requires auth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Token is valid but the row is gone; answer with what the claims carry.
			respondWithJSON(w, http.StatusOK, meResponse{Email: claims.Email})
			return
		}
		log.Printf("me for %s: %v", maskEmail(claims.Email), err)
		respondWithError(w, http.StatusInternalServerError, "server error")
		return
	}

	respondWithJSON(w, http.StatusOK, userToMe(user))
}

// HandleLogout handles POST /api/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearSession(w)
	respondWithJSON(w, http.StatusOK, okResponse{OK: true})
}

func userToMe(u model.User) meResponse {
	return meResponse{
		ID:          u.ID.String(),
		Email:       u.Email,
		DisplayName: u.DisplayName,
		QQID:        u.QQID,
		QQName:      u.QQName,
		QQAvatar:    u.QQAvatar,
		Role:        u.Role,
		IsBanned:    u.IsBanned,
	}
}
