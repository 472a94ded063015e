// storage задаёт контракты работы с персистентным хранилищем.
//
// Отсутствие записи — ожидаемый исход, а не сбой: методы поиска токенов
// возвращают (false, nil) вместо ошибки, чтобы вызывающий слой не путал
// «нет совпадения» (легитимный отказ) с недоступностью хранилища.
package storage

import (
	"context"
	"errors"
	"time"

	"credential-service/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrNotFound — запись не найдена (пользователь/токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/username).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создаёт нового пользователя в БД.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByUsername находит пользователя по username.
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UpdatePasswordHash заменяет хэш пароля пользователя.
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

// CredentialStorage выполняет операции над refresh-токенами и денилистом.
// Единственная точка, через которую сырые значения превращаются в хэши:
// сервисный слой передаёт plain-токен, наружу он не возвращается никогда.
type CredentialStorage interface {
	// SaveRefreshToken хэширует rawToken и сохраняет запись семьи familyID.
	SaveRefreshToken(ctx context.Context, userID, familyID uuid.UUID, rawToken string, expiresAt time.Time) error
	// MatchRefreshToken сравнивает rawToken с живыми записями пользователя
	// (от новых к старым). Отсутствие совпадения — (uuid.Nil, false, nil).
	MatchRefreshToken(ctx context.Context, userID uuid.UUID, rawToken string) (uuid.UUID, bool, error)
	// RevokeFamily удаляет все токены семьи. Идемпотентна:
	// отзыв пустой семьи — no-op, не ошибка.
	RevokeFamily(ctx context.Context, familyID uuid.UUID) error
	// Blacklist хэширует rawToken и заносит его в денилист до expiresAt.
	// tokenID (jti) опционален и может быть пустым.
	Blacklist(ctx context.Context, rawToken, tokenID string, expiresAt time.Time) error
	// IsBlacklisted проверяет rawToken по всем живым записям денилиста.
	IsBlacklisted(ctx context.Context, rawToken string) (bool, error)
	// IsTokenIDBlacklisted — быстрая проверка по jti (поиск по индексу).
	IsTokenIDBlacklisted(ctx context.Context, tokenID string) (bool, error)
	// DeleteExpiredRefreshTokens удаляет просроченные refresh-токены.
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) error
	// DeleteExpiredBlacklist удаляет записи денилиста с истёкшим сроком.
	DeleteExpiredBlacklist(ctx context.Context, now time.Time) error
}

// ResetStorage выполняет операции над челленджами сброса пароля.
type ResetStorage interface {
	// SaveChallenge вытесняет предыдущий челлендж пользователя и
	// сохраняет хэш нового (одна живая запись на пользователя).
	SaveChallenge(ctx context.Context, userID uuid.UUID, rawToken string, expiresAt time.Time) error
	// ConsumeChallenge сверяет rawToken с записью пользователя.
	// Совпавший, но просроченный челлендж удаляется лениво — (false, nil).
	ConsumeChallenge(ctx context.Context, userID uuid.UUID, rawToken string) (bool, error)
	// DeleteChallenge удаляет челлендж после успешного сброса пароля.
	DeleteChallenge(ctx context.Context, userID uuid.UUID) error
	// DeleteExpiredChallenges удаляет просроченные челленджи.
	DeleteExpiredChallenges(ctx context.Context, now time.Time) error
}

// Storage задаёт полный контракт работы с БД.
type Storage interface {
	UserStorage
	CredentialStorage
	ResetStorage
	Close()
}
