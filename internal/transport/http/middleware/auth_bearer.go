package middleware

import (
	"context"
	"net/http"
	"strings"

	"credential-service/internal/models"
	"credential-service/internal/service"
	apierrors "credential-service/internal/transport/http/errors"
)

type ctxKeyUser struct{}

type ctxKeyAccessToken struct{}

// Authenticator проверяет access-токен и возвращает его владельца.
// Реализуется сервисным слоем (service.Service.ValidateAccess).
type Authenticator interface {
	ValidateAccess(ctx context.Context, rawAccessToken string) (*models.User, error)
}

// RequireAuth извлекает Bearer-токен из Authorization, валидирует его
// через Authenticator и кладёт пользователя и "сырой" токен в контекст.
// Запрос без валидного токена дальше не проходит — 401.
func RequireAuth(authn Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				apierrors.WriteError(w, r, service.ErrInvalidToken)
				return
			}

			user, err := authn.ValidateAccess(r.Context(), raw)
			if err != nil {
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyUser{}, user)
			ctx = context.WithValue(ctx, ctxKeyAccessToken{}, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext возвращает аутентифицированного пользователя запроса.
// nil — если RequireAuth не отработал (открытый маршрут).
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(ctxKeyUser{}).(*models.User)
	return user
}

// AccessTokenFromContext возвращает "сырой" предъявленный access-токен.
func AccessTokenFromContext(ctx context.Context) string {
	raw, _ := ctx.Value(ctxKeyAccessToken{}).(string)
	return raw
}

// bearerToken достаёт токен из "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) || len(auth) <= len(prefix) {
		return ""
	}

	return strings.TrimSpace(auth[len(prefix):])
}
