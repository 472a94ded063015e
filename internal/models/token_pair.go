package models

import "time"

// TokenPair — пара токенов, выдаваемая при аутентификации/регистрации/refresh.
//
// Описание:
//   - AccessToken — короткоживущий JWT для доступа к API;
//   - RefreshToken — подписанный JWT с familyId, который клиент предъявляет
//     для выпуска новой пары; на сервере хранится только его bcrypt-хэш;
//   - AccessExpiresAt — момент истечения access-токена (UTC).
type TokenPair struct {
	// AccessToken — JWT для авторизации запросов.
	AccessToken string
	// RefreshToken — JWT для обновления пары.
	RefreshToken string
	// AccessExpiresAt — время истечения действия access-токена (UTC).
	AccessExpiresAt time.Time
}

// AuthResult — результат успешного login/register/refresh:
// пара токенов плюс безопасный профиль пользователя.
type AuthResult struct {
	User   Profile
	Tokens TokenPair
}
