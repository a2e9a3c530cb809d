package chat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"nanochat/internal/auth"
)

const (
	maxBodyBytes       = 64 << 10
	defaultSearchLimit = 20
	maxPageLimit       = 100
)

// Store abstracts chat persistence for the handlers.
type Store interface {
	Invite(ctx context.Context, senderID, recipientID uuid.UUID, senderKey []byte) (Chat, error)
	Accept(ctx context.Context, senderID, recipientID uuid.UUID, recipientKey []byte) (Chat, error)
	SearchUsers(ctx context.Context, callerID uuid.UUID, q string, limit int) ([]User, error)
	FilteredUsers(ctx context.Context, callerID uuid.UUID, filter Filter, q string, limit int) ([]User, error)
	InsertMessage(ctx context.Context, senderID, recipientID uuid.UUID, content []byte) (StoredMessage, error)
	MessagePage(ctx context.Context, userID, friendID uuid.UUID, startTimestamp time.Time, startID int32, limit int64) ([]StoredMessage, error)
}

// Handler exposes the /users and /messages endpoints. All routes sit behind
// the bearer guard; the identity comes from the request context.
type Handler struct {
	log   *slog.Logger
	store Store
	hub   *Hub
}

// NewHandler constructs the chat HTTP surface. hub may be nil to disable
// realtime push.
func NewHandler(log *slog.Logger, store Store, hub *Hub) *Handler {
	return &Handler{log: log, store: store, hub: hub}
}

// UserRoutes returns the /users router.
func (h *Handler) UserRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.search)
	r.Post("/{userID}/invite", h.invite)
	r.Post("/{userID}/accept", h.accept)
	r.Get("/{userID}/messages", h.messagePage)
	return r
}

// MessageRoutes returns the /messages router.
func (h *Handler) MessageRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.insertMessage)
	return r
}

type publicKeyRequest struct {
	PublicKey HexBytes `json:"publicKey"`
}

func (req publicKeyRequest) valid() bool {
	return len(req.PublicKey) == publicKeyLen
}

type createMessageRequest struct {
	RecipientID uuid.UUID `json:"recipientId"`
	Content     HexBytes  `json:"content"`
}

func (h *Handler) invite(w http.ResponseWriter, r *http.Request) {
	sender, _ := auth.UserFrom(r.Context())

	recipientID, ok := pathUUID(r, "userID")
	if !ok {
		auth.WriteError(w, http.StatusUnprocessableEntity, "invalid_input", "invalid user id")
		return
	}

	var req publicKeyRequest
	if err := auth.DecodeJSON(w, r, maxBodyBytes, &req); err != nil || !req.valid() {
		auth.WriteError(w, http.StatusUnprocessableEntity, "invalid_input", "invalid public key")
		return
	}

	c, err := h.store.Invite(r.Context(), sender.ID, recipientID, req.PublicKey)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	recipient, _ := auth.UserFrom(r.Context())

	senderID, ok := pathUUID(r, "userID")
	if !ok {
		auth.WriteError(w, http.StatusUnprocessableEntity, "invalid_input", "invalid user id")
		return
	}

	var req publicKeyRequest
	if err := auth.DecodeJSON(w, r, maxBodyBytes, &req); err != nil || !req.valid() {
		auth.WriteError(w, http.StatusUnprocessableEntity, "invalid_input", "invalid public key")
		return
	}

	c, err := h.store.Accept(r.Context(), senderID, recipient.ID, req.PublicKey)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.UserFrom(r.Context())

	q := r.URL.Query().Get("q")
	filterParam := r.URL.Query().Get("filter")

	var (
		users []User
		err   error
	)
	if filterParam != "" {
		filter, ok := ParseFilter(filterParam)
		if !ok {
			auth.WriteError(w, http.StatusUnprocessableEntity, "invalid_input", "unknown filter")
			return
		}
		users, err = h.store.FilteredUsers(r.Context(), caller.ID, filter, q, defaultSearchLimit)
	} else {
		users, err = h.store.SearchUsers(r.Context(), caller.ID, q, defaultSearchLimit)
	}
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) insertMessage(w http.ResponseWriter, r *http.Request) {
	sender, _ := auth.UserFrom(r.Context())

	var req createMessageRequest
	if err := auth.DecodeJSON(w, r, maxBodyBytes, &req); err != nil || len(req.Content) == 0 {
		auth.WriteError(w, http.StatusUnprocessableEntity, "invalid_input", "invalid message")
		return
	}

	m, err := h.store.InsertMessage(r.Context(), sender.ID, req.RecipientID, req.Content)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	if h.hub != nil {
		h.hub.Push(m.RecipientID, m)
	}

	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) messagePage(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.UserFrom(r.Context())

	friendID, ok := pathUUID(r, "userID")
	if !ok {
		auth.WriteError(w, http.StatusUnprocessableEntity, "invalid_input", "invalid user id")
		return
	}

	query := r.URL.Query()
	startUnix, err := strconv.ParseInt(query.Get("startTimestamp"), 10, 64)
	if err != nil {
		auth.WriteError(w, http.StatusUnprocessableEntity, "invalid_input", "invalid startTimestamp")
		return
	}
	startID, err := strconv.ParseInt(query.Get("startId"), 10, 32)
	if err != nil {
		auth.WriteError(w, http.StatusUnprocessableEntity, "invalid_input", "invalid startId")
		return
	}
	limit, err := strconv.ParseInt(query.Get("limit"), 10, 64)
	if err != nil || limit <= 0 {
		auth.WriteError(w, http.StatusUnprocessableEntity, "invalid_input", "invalid limit")
		return
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	messages, err := h.store.MessagePage(
		r.Context(), caller.ID, friendID,
		time.Unix(startUnix, 0).UTC(), int32(startID), limit,
	)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrAlreadyInvited):
		auth.WriteError(w, http.StatusConflict, "conflict", "chat already exists")
	case errors.Is(err, ErrUnknownUser):
		auth.WriteError(w, http.StatusNotFound, "not_found", "no such user")
	case errors.Is(err, ErrSelfInvite):
		auth.WriteError(w, http.StatusUnprocessableEntity, "invalid_input", "cannot invite yourself")
	case errors.Is(err, ErrNoPendingInvite):
		auth.WriteError(w, http.StatusNotFound, "not_found", "no pending invite")
	case errors.Is(err, ErrNotFriends):
		auth.WriteError(w, http.StatusForbidden, "forbidden", "recipient is not a friend")
	default:
		h.log.Error("chat.internal", "path", r.URL.Path, "err", err)
		auth.WriteError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}
