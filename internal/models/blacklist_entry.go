package models

import (
	"time"

	"github.com/google/uuid"
)

// BlacklistEntry — запись денилиста токенов.
//
// Токен остаётся криптографически валидным до естественного истечения,
// поэтому при logout его хэш заносится в денилист на остаток срока жизни.
// TokenID (jti) опционален и даёт быстрый путь проверки по индексу;
// TokenHash используется для полной проверки «сырых» значений.
// После ExpiresAt запись не несёт ценности и удаляется фоновой очисткой.
type BlacklistEntry struct {
	ID        uuid.UUID
	TokenID   string
	TokenHash string
	ExpiresAt time.Time
}
