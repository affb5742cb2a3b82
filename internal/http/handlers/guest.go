package handlers

import (
	"log"
	"net/http"

	"github.com/openboard/server/internal/auth"
	"github.com/openboard/server/internal/repo"
)

// GuestHandler issues anonymous guest identifiers
type GuestHandler struct {
	messages repo.MessageRepo
	cookies  Cookies
}

// NewGuestHandler creates a new guest handler
func NewGuestHandler(messages repo.MessageRepo, cookies Cookies) *GuestHandler {
	return &GuestHandler{
		messages: messages,
		cookies:  cookies,
	}
}

type guestCreateResponse struct {
	OK      bool   `json:"ok"`
	GuestID string `json:"guest_id"`
}

// HandleCreate handles POST /api/guest-create. The identifier carries no
// privileges; it only keys the guest posting rate limit.
func (h *GuestHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	key, err := auth.NewGuestKey()
	if err != nil {
		log.Printf("guest key: %v", err)
		respondWithError(w, http.StatusInternalServerError, "server error")
		return
	}

	// Issuance tracking is best-effort.
	if err := h.messages.TrackGuest(r.Context(), key); err != nil {
		log.Printf("track guest: %v", err)
	}

	h.cookies.SetGuest(w, key)
	respondWithJSON(w, http.StatusOK, guestCreateResponse{OK: true, GuestID: key})
}
