package handlers

import (
	"net/http"
	"time"

	"credential-service/internal/models"
	"credential-service/internal/service"
	apierrors "credential-service/internal/transport/http/errors"
	"credential-service/internal/transport/http/middleware"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Username  string `json:"username"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

// authResponse — результат register/login/refresh: профиль плюс пара токенов.
type authResponse struct {
	User         models.Profile `json:"user"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	ExpiresAt    time.Time      `json:"expiresAt"`
}

func newAuthResponse(res *models.AuthResult) authResponse {
	return authResponse{
		User:         res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		ExpiresAt:    res.Tokens.AccessExpiresAt,
	}
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrMalformedRequest)
		return
	}

	res, err := h.Service.Register(r.Context(), service.RegisterInput{
		Email:     in.Email,
		Password:  in.Password,
		Username:  in.Username,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newAuthResponse(res))
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrMalformedRequest)
		return
	}

	res, err := h.Service.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newAuthResponse(res))
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrMalformedRequest)
		return
	}

	if in.RefreshToken == "" {
		apierrors.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	res, err := h.Service.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newAuthResponse(res))
}

// Logout завершает сессию: отзывает семью предъявленного refresh-токена и
// заносит access-токен в денилист. Тело с refreshToken опционально —
// logout без него гасит только access-токен.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		apierrors.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	var in logoutRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeStrict(r, &in); err != nil {
			apierrors.WriteError(w, r, apierrors.ErrMalformedRequest)
			return
		}
	}

	rawAccess := middleware.AccessTokenFromContext(r.Context())
	h.Service.Logout(r.Context(), user.ID, rawAccess, in.RefreshToken)

	writeJSON(w, http.StatusOK, messageResponse{Message: "logout successful"})
}

func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		apierrors.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	profile, err := h.Service.Profile(r.Context(), user.ID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
