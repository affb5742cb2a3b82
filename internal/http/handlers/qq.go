package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/openboard/server/internal/middleware"
	"github.com/openboard/server/internal/qq"
	"github.com/openboard/server/internal/repo"
)

// QQHandler handles third-party identity bind/unbind (requires auth)
type QQHandler struct {
	users  repo.UserRepo
	lookup *qq.Client
}

// NewQQHandler creates a new QQ handler
func NewQQHandler(users repo.UserRepo, lookup *qq.Client) *QQHandler {
	return &QQHandler{
		users:  users,
		lookup: lookup,
	}
}

type bindQQRequest struct {
	QQ string `json:"qq"`
}

type bindQQResponse struct {
	OK       bool   `json:"ok"`
	QQ       string `json:"qq"`
	QQName   string `json:"qq_name"`
	QQAvatar string `json:"qq_avatar"`
}

// HandleBind handles POST /api/bind-qq
func (h *QQHandler) HandleBind(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req bindQQRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.QQ = strings.TrimSpace(req.QQ)
	if req.QQ == "" {
		respondWithError(w, http.StatusBadRequest, "missing qq")
		return
	}

	// Lookup failure is tolerated: the bind proceeds with an empty nickname
	// and the derived avatar URL.
	profile, err := h.lookup.Lookup(r.Context(), req.QQ)
	if err != nil {
		log.Printf("qq lookup %s: %v", req.QQ, err)
		profile = qq.Profile{AvatarURL: h.lookup.AvatarFor(req.QQ)}
	}

	if err := h.users.BindQQ(r.Context(), claims.UserID, req.QQ, profile.Nickname, profile.AvatarURL); err != nil {
		log.Printf("bind qq for %s: %v", maskEmail(claims.Email), err)
		respondWithError(w, http.StatusInternalServerError, "db error")
		return
	}

	respondWithJSON(w, http.StatusOK, bindQQResponse{
		OK:       true,
		QQ:       req.QQ,
		QQName:   profile.Nickname,
		QQAvatar: profile.AvatarURL,
	})
}

// HandleUnbind handles POST /api/unbind-qq
func (h *QQHandler) HandleUnbind(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.users.UnbindQQ(r.Context(), claims.UserID); err != nil {
		log.Printf("unbind qq for %s: %v", maskEmail(claims.Email), err)
		respondWithError(w, http.StatusInternalServerError, "db error")
		return
	}

	respondWithJSON(w, http.StatusOK, okResponse{OK: true})
}
