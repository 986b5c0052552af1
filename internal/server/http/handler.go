package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/credkeeper/internal/api"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
)

// Pinger reports whether the backing stores are reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the REST flavour of the auth and profile services.
type Handler struct {
	auth        *services.AuthService
	users       *services.UserService
	health      Pinger
	logger      logging.Logger
	internalKey []byte
}

func NewHandler(as *services.AuthService, us *services.UserService, health Pinger, l logging.Logger, internalKey string) *Handler {
	return &Handler{
		auth:        as,
		users:       us,
		health:      health,
		logger:      l.With("module", "http_server"),
		internalKey: []byte(internalKey),
	}
}

type validator interface {
	Validate() error
}

// decodeValid reads and validates a request body, answering 400 itself on
// failure.
func decodeValid(w http.ResponseWriter, r *http.Request, v validator) bool {
	if err := decodeJSON(w, r, v); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	if err := v.Validate(); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func tokenResponse(p *services.TokenPair) api.TokenResponse {
	return api.TokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    api.TokenTypeBearer,
		ExpiresIn:    p.ExpiresIn,
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if !decodeValid(w, r, &req) {
		return
	}

	pair, err := h.auth.Register(r.Context(), services.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.respondFailure(w, r, "register", err)
		return
	}

	respondJSON(w, tokenResponse(pair), http.StatusCreated)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !decodeValid(w, r, &req) {
		return
	}

	pair, err := h.auth.Login(r.Context(), services.LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		h.respondFailure(w, r, "login", err)
		return
	}

	respondJSON(w, tokenResponse(pair), http.StatusOK)
}

func (h *Handler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	var req api.OAuthCallbackRequest
	if !decodeValid(w, r, &req) {
		return
	}

	pair, err := h.auth.OAuthCallback(r.Context(), services.OAuthProfile{
		Provider:      req.Provider,
		ProviderID:    req.ProviderID,
		Email:         req.Email,
		EmailVerified: req.EmailVerified,
		GivenName:     req.GivenName,
		FamilyName:    req.FamilyName,
	})
	if err != nil {
		h.respondFailure(w, r, "oauth callback", err)
		return
	}

	respondJSON(w, tokenResponse(pair), http.StatusOK)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req api.RefreshRequest
	if !decodeValid(w, r, &req) {
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.respondFailure(w, r, "refresh", err)
		return
	}

	respondJSON(w, tokenResponse(pair), http.StatusOK)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	var req api.LogoutRequest
	if !decodeValid(w, r, &req) {
		return
	}

	if err := h.auth.Logout(r.Context(), p.UserID, req.RefreshToken); err != nil {
		h.respondFailure(w, r, "logout", err)
		return
	}

	respondJSON(w, map[string]string{"message": "logged out"}, http.StatusOK)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	u, err := h.users.GetProfile(r.Context(), p.UserID)
	if err != nil {
		h.respondFailure(w, r, "get profile", err)
		return
	}

	respondJSON(w, api.NewUserResponse(u), http.StatusOK)
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	var req api.UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	u, err := h.users.UpdateProfile(r.Context(), p.UserID, services.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.respondFailure(w, r, "update profile", err)
		return
	}

	respondJSON(w, api.NewUserResponse(u), http.StatusOK)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	// unparsable values fall through to the service defaults
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	p, err := h.users.ListUsers(r.Context(), page, limit)
	if err != nil {
		h.respondFailure(w, r, "list users", err)
		return
	}

	respondJSON(w, api.NewUserListResponse(p), http.StatusOK)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			h.logger.Warn(r.Context(), "health check failed", "error", err)
			respondError(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
