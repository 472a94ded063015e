package models

import (
	"time"

	"github.com/google/uuid"
)

// ResetChallenge — одноразовый челлендж сброса пароля.
//
// На пользователя существует не более одной живой записи: выпуск нового
// челленджа вытесняет предыдущий, действует только последняя ссылка.
type ResetChallenge struct {
	UserID    uuid.UUID
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
}
