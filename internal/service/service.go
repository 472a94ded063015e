// service содержит бизнес-логику credential-сервиса: регистрацию и
// аутентификацию, ротацию refresh-токенов с отзывом семей, logout с
// денилистом и сценарии смены/сброса пароля.
//
// Основные аспекты:
//   - Пакет не хранит состояние запроса внутри Service; экземпляр Service
//     безопасен для конкурентного использования из разных горутин при условии,
//     что переданные хранилища потокобезопасны.
//   - Вся работа с таблицами токенов идёт только через интерфейсы storage —
//     хэширование и уникальность обеспечиваются в одной точке.
//   - Ошибки возвращаются сентинелами и далее маппятся транспортом
//     на HTTP-статусы (см. комментарии к переменным ошибок ниже).
package service

import (
	"errors"

	"credential-service/internal/cache"
	"credential-service/internal/config"
	"credential-service/internal/directory"
	"credential-service/internal/mail"
	"credential-service/internal/storage"
	"credential-service/internal/token"
)

var (
	// ErrInvalidCredentials — пара логин/пароль неверна, пользователь не найден
	// или аккаунт неактивен. Причины намеренно неразличимы. HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken — токен (access/refresh) некорректен по формату/подписи,
	// отозван или отсутствует среди сохранённых. HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк. HTTP 401.
	ErrTokenExpired = errors.New("token expired")

	// ErrEmailTaken — e-mail уже занят другим пользователем. HTTP 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrUsernameTaken — username уже занят другим пользователем. HTTP 409.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrInvalidResetToken — токен сброса пароля некорректен, просрочен или
	// уже использован. Сбой reset-сценария — клиентская ошибка валидации,
	// а не отказ в аутентификации (сессия не затронута). HTTP 400.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")

	// ErrUserNotFound — валидный токен ссылается на исчезнувшего пользователя.
	// HTTP 404.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidEmail — e-mail имеет некорректный формат. HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrEmptyUsername — username пустой. HTTP 400.
	ErrEmptyUsername = errors.New("username is empty")

	// ErrWeakPassword — пароль короче минимальной длины. HTTP 400.
	ErrWeakPassword = errors.New("password is too short")

	// ErrPasswordTooLong — пароль длиннее максимальной длины. HTTP 400.
	ErrPasswordTooLong = errors.New("password is too long")

	// ErrEmptyPassword — пароль пустой. HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")
)

// Service описывает бизнес-логику credential-сервиса.
type Service struct {
	directory directory.Directory
	tokens    storage.CredentialStorage
	resets    storage.ResetStorage
	signer    *token.Signer
	mail      mail.Sender
	cfg       config.AuthConfig
	blcache   cache.BlacklistCache // может быть nil, если кэш не сконфигурирован
}

// New создаёт новый экземпляр Service.
func New(
	dir directory.Directory,
	tokens storage.CredentialStorage,
	resets storage.ResetStorage,
	signer *token.Signer,
	sender mail.Sender,
	cfg config.AuthConfig,
) *Service {
	return &Service{
		directory: dir,
		tokens:    tokens,
		resets:    resets,
		signer:    signer,
		mail:      sender,
		cfg:       cfg,
	}
}

// SetBlacklistCache устанавливает кэш денилиста по jti (опционально).
func (s *Service) SetBlacklistCache(c cache.BlacklistCache) {
	s.blcache = c
}

// isAlreadyExists — нарушение уникальности на уровне хранилища.
func isAlreadyExists(err error) bool {
	return errors.Is(err, storage.ErrAlreadyExists)
}

// isTokenExpired — ошибка Signer «срок истёк».
func isTokenExpired(err error) bool {
	return errors.Is(err, token.ErrExpired)
}
