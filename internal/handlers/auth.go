package handlers

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/vparshin/authgate/internal/apperrors"
	"github.com/vparshin/authgate/internal/handlers/render"
	"github.com/vparshin/authgate/internal/logger"
	"github.com/vparshin/authgate/internal/models"
)

// Auth service as the handlers need it
type AuthService interface {
	// Register user
	// Has to return apperrors.ErrUserAlreadyExists if username is taken
	Register(ctx context.Context, email string, username string, password string) (models.User, error)

	// Login user with username and password
	// Has to return apperrors.ErrInvalidCredentials on unknown user or wrong password
	// and apperrors.ErrLoginRateLimited when throttled
	Login(ctx context.Context, username string, password string, ip string) (models.TokenPair, error)

	// Exchange valid refresh token for a new access token
	// Has to return apperrors.ErrSessionNotFound or apperrors.ErrRefreshTokenInvalid otherwise
	Refresh(ctx context.Context, refresh string) (models.IssuedToken, error)

	// Refresh cookie io
	SetRefreshCookie(w http.ResponseWriter, refresh models.IssuedToken)
	ReadRefreshToken(r *http.Request) (string, error)
}

type AuthHandler struct {
	auth   AuthService
	logger logger.Logger
}

func NewAuth(auth AuthService, logger logger.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

func (h *AuthHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", h.register)
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("POST /refresh", h.refresh)

	return mux
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	type RegisterRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Username string `json:"username" validate:"required,min=2,max=50"`
		Password string `json:"password" validate:"required"`
	}
	type RegisterSuccessResponse struct {
		Message string `json:"message"`
	}

	data, err := render.BindAndValidate[RegisterRequest](w, r)
	if err != nil {
		return
	}

	_, err = h.auth.Register(r.Context(), data.Email, data.Username, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User already exists", http.StatusConflict)
		default:
			// Storage failures must still answer the client, never log-and-hang
			h.logger.Error("Failed to register user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSONWithStatus(w, RegisterSuccessResponse{Message: "New user created"}, http.StatusCreated)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	type LoginSuccessResponse struct {
		AccessToken string `json:"accessToken"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	pair, err := h.auth.Login(r.Context(), data.Username, data.Password, remoteIP(r))
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Invalid username or password", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrLoginRateLimited):
			render.ServiceError(w, "Too many login attempts", http.StatusTooManyRequests)
		default:
			h.logger.Error("Failed to login user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	// Access token goes in the body, refresh token only in the cookie
	h.auth.SetRefreshCookie(w, pair.Refresh)
	render.JSON(w, LoginSuccessResponse{AccessToken: pair.Access.Value})
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	type RefreshSuccessResponse struct {
		AccessToken string `json:"accessToken"`
	}

	refresh, err := h.auth.ReadRefreshToken(r)
	if err != nil {
		render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
		return
	}

	access, err := h.auth.Refresh(r.Context(), refresh)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrSessionNotFound), errors.Is(err, apperrors.ErrRefreshTokenInvalid):
			render.ServiceError(w, "Refresh token invalid", http.StatusForbidden)
		default:
			h.logger.Error("Failed to refresh tokens", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, RefreshSuccessResponse{AccessToken: access.Value})
}

// remoteIP returns the client address without the port, for the login limiter
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
