package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/openboard/server/internal/auth"
	"github.com/openboard/server/internal/board"
	"github.com/openboard/server/internal/middleware"
	"github.com/openboard/server/internal/model"
	"github.com/openboard/server/internal/repo"
)

// MessageHandler handles the message board endpoints
type MessageHandler struct {
	board  *board.Service
	tokens *auth.TokenService
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(b *board.Service, tokens *auth.TokenService) *MessageHandler {
	return &MessageHandler{
		board:  b,
		tokens: tokens,
	}
}

// messageJSON is the wire shape for one message.
type messageJSON struct {
	ID          string     `json:"id"`
	Content     string     `json:"content"`
	ParentID    *string    `json:"parent_id"`
	UserID      *string    `json:"user_id"`
	Email       *string    `json:"email"`
	IsGuest     bool       `json:"is_guest"`
	IP          string     `json:"ip"`
	Device      string     `json:"device"`
	Deleted     bool       `json:"deleted"`
	Restored    bool       `json:"restored"`
	DeletedAt   *time.Time `json:"deleted_at"`
	DeletedBy   *string    `json:"deleted_by"`
	CreatedAt   time.Time  `json:"created_at"`
	QQID        *string    `json:"qq_id,omitempty"`
	QQName      *string    `json:"qq_name,omitempty"`
	QQAvatar    *string    `json:"qq_avatar,omitempty"`
	DisplayName *string    `json:"display_name,omitempty"`
}

type createMessageRequest struct {
	Content  string `json:"content"`
	ParentID string `json:"parent_id"`
}

type createMessageResponse struct {
	OK      bool        `json:"ok"`
	Message messageJSON `json:"message"`
}

// HandleList handles GET /api/messages
func (h *MessageHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var parentID *uuid.UUID
	if raw := r.URL.Query().Get("parent_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid parent_id")
			return
		}
		parentID = &id
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	views, err := h.board.List(r.Context(), parentID, limit)
	if err != nil {
		log.Printf("list messages: %v", err)
		respondWithError(w, http.StatusInternalServerError, "db error")
		return
	}

	out := make([]messageJSON, 0, len(views))
	for _, v := range views {
		out = append(out, viewToJSON(v))
	}
	respondWithJSON(w, http.StatusOK, out)
}

// HandleCreate handles POST /api/messages. An authenticated caller posts as
// themselves; otherwise a guest identifier is required.
func (h *MessageHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := board.CreateInput{
		Content: req.Content,
		IP:      getClientIP(r),
		Device:  r.UserAgent(),
	}
	if req.ParentID != "" {
		id, err := uuid.Parse(req.ParentID)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid parent_id")
			return
		}
		in.ParentID = &id
	}

	if token := middleware.TokenFromRequest(r); token != "" {
		claims, err := h.tokens.Validate(token)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		in.UserID = &claims.UserID
		in.Email = claims.Email
	} else {
		guestKey := middleware.GuestKeyFromRequest(r)
		if guestKey == "" {
			respondWithError(w, http.StatusUnauthorized, "guest not initialized")
			return
		}
		in.GuestKey = guestKey
	}

	msg, err := h.board.Create(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, board.ErrEmptyContent):
			respondWithError(w, http.StatusBadRequest, "content required")
		case errors.Is(err, board.ErrBanned):
			respondWithError(w, http.StatusForbidden, "banned")
		case errors.Is(err, board.ErrGuestLimit):
			respondWithError(w, http.StatusForbidden, "guest limit reached")
		default:
			log.Printf("create message: %v", err)
			respondWithError(w, http.StatusInternalServerError, "db error")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, createMessageResponse{
		OK:      true,
		Message: viewToJSON(model.MessageView{Message: msg}),
	})
}

// HandleModerate handles PUT /api/messages?action=undo|restore&id=<uuid>
func (h *MessageHandler) HandleModerate(w http.ResponseWriter, r *http.Request) {
	rawID := r.URL.Query().Get("id")
	if rawID == "" {
		respondWithError(w, http.StatusBadRequest, "missing id")
		return
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var actorID *uuid.UUID
	if claims := middleware.ResolveClaims(h.tokens, r); claims != nil {
		actorID = &claims.UserID
	}

	switch r.URL.Query().Get("action") {
	case "undo":
		err = h.board.Undo(r.Context(), id, actorID)
	case "restore":
		err = h.board.Restore(r.Context(), id, actorID)
	default:
		respondWithError(w, http.StatusBadRequest, "unknown action")
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "message not found")
		case errors.Is(err, board.ErrForbidden):
			respondWithError(w, http.StatusForbidden, "forbidden")
		default:
			log.Printf("moderate message %s: %v", id, err)
			respondWithError(w, http.StatusInternalServerError, "db error")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, okResponse{OK: true})
}

func viewToJSON(v model.MessageView) messageJSON {
	return messageJSON{
		ID:          v.ID.String(),
		Content:     v.Content,
		ParentID:    uuidToString(v.ParentID),
		UserID:      uuidToString(v.UserID),
		Email:       v.Message.Email,
		IsGuest:     v.IsGuest,
		IP:          v.IP,
		Device:      v.Device,
		Deleted:     v.Deleted,
		Restored:    v.Restored,
		DeletedAt:   v.DeletedAt,
		DeletedBy:   uuidToString(v.DeletedBy),
		CreatedAt:   v.CreatedAt,
		QQID:        v.QQID,
		QQName:      v.QQName,
		QQAvatar:    v.QQAvatar,
		DisplayName: v.DisplayName,
	}
}

func uuidToString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
