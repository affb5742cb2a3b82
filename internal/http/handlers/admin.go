package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/openboard/server/internal/model"
	"github.com/openboard/server/internal/repo"
)

const adminListLimit = 200

// AdminHandler handles the admin endpoints. The admin gate itself lives in
// middleware.RequireAdmin.
type AdminHandler struct {
	users repo.UserRepo
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(users repo.UserRepo) *AdminHandler {
	return &AdminHandler{users: users}
}

// userSummary is one row of the admin user listing.
type userSummary struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	QQID      *string   `json:"qq_id"`
	QQName    *string   `json:"qq_name"`
	QQAvatar  *string   `json:"qq_avatar"`
	Role      string    `json:"role"`
	IsBanned  bool      `json:"is_banned"`
	CreatedAt time.Time `json:"created_at"`
}

type adminActionRequest struct {
	Action string `json:"action"`
	UserID string `json:"user_id"`
}

// HandleListUsers handles GET /api/admin/users
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context(), adminListLimit)
	if err != nil {
		log.Printf("admin list users: %v", err)
		respondWithError(w, http.StatusInternalServerError, "db error")
		return
	}

	out := make([]userSummary, 0, len(users))
	for _, u := range users {
		out = append(out, toSummary(u))
	}
	respondWithJSON(w, http.StatusOK, out)
}

// HandleUserAction handles POST /api/admin/users with {action: ban|unban, user_id}
func (h *AdminHandler) HandleUserAction(w http.ResponseWriter, r *http.Request) {
	var req adminActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Action == "" || req.UserID == "" {
		respondWithError(w, http.StatusBadRequest, "missing")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	switch req.Action {
	case "ban":
		err = h.users.SetBanned(r.Context(), userID, true)
	case "unban":
		err = h.users.SetBanned(r.Context(), userID, false)
	default:
		respondWithError(w, http.StatusBadRequest, "unknown action")
		return
	}

	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("admin %s user %s: %v", req.Action, userID, err)
		respondWithError(w, http.StatusInternalServerError, "db error")
		return
	}

	respondWithJSON(w, http.StatusOK, okResponse{OK: true})
}

func toSummary(u model.User) userSummary {
	return userSummary{
		ID:        u.ID.String(),
		Email:     u.Email,
		QQID:      u.QQID,
		QQName:    u.QQName,
		QQAvatar:  u.QQAvatar,
		Role:      u.Role,
		IsBanned:  u.IsBanned,
		CreatedAt: u.CreatedAt,
	}
}
