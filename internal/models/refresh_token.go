package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken — серверная запись refresh-токена.
//
// В TokenHash хранится только bcrypt-хэш исходного значения; сам токен
// нигде не сохраняется и не логируется. FamilyID объединяет токены одной
// «цепочки» (rotation family): использование любого члена семьи для refresh
// уничтожает семью целиком.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	FamilyID  uuid.UUID
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
}
