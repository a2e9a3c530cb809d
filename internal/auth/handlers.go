package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nanochat/internal/identity"
)

const maxBodyBytes = 4 << 10

// Handler exposes the /auth endpoints.
type Handler struct {
	log     *slog.Logger
	svc     *Service
	cookies *CookieCodec
}

// NewHandler constructs the auth HTTP surface.
func NewHandler(log *slog.Logger, svc *Service, cookies *CookieCodec) *Handler {
	return &Handler{log: log, svc: svc, cookies: cookies}
}

// Routes returns the /auth router. Logout requires a valid access token; the
// other endpoints are reachable unauthenticated.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/signup", h.signUp)
	r.Post("/signin", h.signIn)
	r.Post("/refresh", h.refresh)
	r.With(RequireUser).Post("/logout", h.logout)
	return r
}

type signUpRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	PasswordCheck string `json:"passwordCheck"`
}

type signInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		WriteError(w, http.StatusUnprocessableEntity, "invalid_input", "malformed request body")
		return
	}

	user, err := h.svc.SignUp(r.Context(), req.Username, req.Password, req.PasswordCheck)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		WriteError(w, http.StatusUnprocessableEntity, "invalid_input", "malformed request body")
		return
	}

	// An undecryptable or absent cookie reads as no presented token.
	presented, _ := h.cookies.Read(r)

	issued, err := h.svc.SignIn(r.Context(), req.Username, req.Password, presented)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if err := h.cookies.Set(w, issued.RefreshToken, h.svc.tokens.RefreshTTL()); err != nil {
		h.log.Error("auth.signin.cookie", "err", err)
		WriteError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: issued.AccessToken})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	presented, ok := h.cookies.Read(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	issued, err := h.svc.Refresh(r.Context(), presented)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			h.cookies.Clear(w)
		}
		h.writeServiceError(w, r, err)
		return
	}

	if err := h.cookies.Set(w, issued.RefreshToken, h.svc.tokens.RefreshTTL()); err != nil {
		h.log.Error("auth.refresh.cookie", "err", err)
		WriteError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: issued.AccessToken})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	presented, _ := h.cookies.Read(r)

	if err := h.svc.Logout(r.Context(), user.ID, presented); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps service errors onto the HTTP taxonomy. Anything
// outside the known kinds is an infrastructure failure: logged here,
// opaque to the client.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		WriteError(w, http.StatusUnprocessableEntity, "invalid_input", "invalid username or password format")
	case errors.Is(err, ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, identity.ErrUsernameTaken):
		WriteError(w, http.StatusConflict, "conflict", "username already taken")
	default:
		h.log.Error("auth.internal", "path", r.URL.Path, "err", err)
		WriteError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
