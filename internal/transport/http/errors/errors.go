// errors стандартизирует ответы об ошибках HTTP-слоя credential-service.
// На вход он принимает ошибку сервисного слоя (сентинелы internal/service),
// а на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
//
// Источник истинности по маппингу: doc-комментарии сентинелов в internal/service.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"credential-service/internal/service"
)

// ErrMalformedRequest — локальная ошибка транспорта: тело запроса не разобрано
// (битый JSON, неизвестные поля). Маппится в 400/invalid_argument.
var ErrMalformedRequest = errors.New("malformed request body")

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку сервисного слоя в HTTP-статус и унифицированный
// ответ для фронта.
//
// Поведение:
//   - err == nil — это программная ошибка вызова: возвращаем 500/internal,
//     чтобы не послать "200 OK" с телом ошибки и не маскировать баг;
//   - неизвестная ошибка — 500/internal (без утечки деталей).
func ToHTTP(err error) (int, ErrorResponse) {
	httpStatus, code, msg := base(err)

	return httpStatus, ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: msg,
		},
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	// Прокидываем request_id для фронта, чтобы он мог репортить баги с привязкой.
	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// base — базовый маппинг сентинелов сервиса -> HTTP/FE-код/сообщение.
// Таблица повторяет контракты doc-комментариев internal/service:
//   - неверные учётные данные / битый / отозванный токен -> 401
//   - истёкший токен -> 401 с отдельным кодом (фронт запускает refresh)
//   - конфликты уникальности email/username -> 409
//   - ошибки валидации и негодный reset-токен -> 400
//   - пользователь не найден -> 404
//   - прочее -> 500/internal.
func base(err error) (int, string, string) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "invalid credentials"
	case errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token", "invalid token"
	case errors.Is(err, service.ErrTokenExpired):
		return http.StatusUnauthorized, "token_expired", "token expired"
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, "email_taken", "email already taken"
	case errors.Is(err, service.ErrUsernameTaken):
		return http.StatusConflict, "username_taken", "username already taken"
	case errors.Is(err, service.ErrInvalidResetToken):
		return http.StatusBadRequest, "invalid_reset_token", "invalid or expired reset token"
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "not_found", "user not found"
	case errors.Is(err, service.ErrInvalidEmail):
		return http.StatusBadRequest, "invalid_argument", "invalid email format"
	case errors.Is(err, service.ErrEmptyUsername):
		return http.StatusBadRequest, "invalid_argument", "username is required"
	case errors.Is(err, service.ErrEmptyPassword):
		return http.StatusBadRequest, "invalid_argument", "password is required"
	case errors.Is(err, service.ErrWeakPassword):
		return http.StatusBadRequest, "invalid_argument", "password is too short"
	case errors.Is(err, service.ErrPasswordTooLong):
		return http.StatusBadRequest, "invalid_argument", "password is too long"
	case errors.Is(err, ErrMalformedRequest):
		return http.StatusBadRequest, "invalid_argument", "invalid request body"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
