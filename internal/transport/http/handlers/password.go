package handlers

import (
	"net/http"

	"credential-service/internal/service"
	apierrors "credential-service/internal/transport/http/errors"
	"credential-service/internal/transport/http/middleware"
)

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		apierrors.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	var in changePasswordRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrMalformedRequest)
		return
	}

	if err := h.Service.ChangePassword(r.Context(), user.ID, in.OldPassword, in.NewPassword); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "password changed"})
}

// ForgotPassword всегда отвечает одинаково для существующих и несуществующих
// адресов — перечисление аккаунтов по ответам невозможно.
func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in forgotPasswordRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrMalformedRequest)
		return
	}

	if err := h.Service.ForgotPassword(r.Context(), in.Email); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Message: "if the email exists, a reset link has been sent",
	})
}

func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in resetPasswordRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrMalformedRequest)
		return
	}

	if in.Token == "" {
		apierrors.WriteError(w, r, service.ErrInvalidResetToken)
		return
	}

	if err := h.Service.ResetPassword(r.Context(), in.Token, in.NewPassword); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "password has been reset"})
}
