package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SaveRefreshToken хэширует rawToken и сохраняет запись семьи familyID.
// Сырое значение не сохраняется нигде; другие семьи не затрагиваются.
func (s *Storage) SaveRefreshToken(ctx context.Context, userID, familyID uuid.UUID, rawToken string, expiresAt time.Time) error {
	const op = "storage.postgres.SaveRefreshToken"

	hash, err := s.hashToken(rawToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `
		INSERT INTO refresh_tokens(id, user_id, family_id, token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = s.db.Exec(ctx, query,
		uuid.New(),
		userID,
		familyID,
		hash,
		time.Now().UTC(),
		expiresAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// MatchRefreshToken сравнивает rawToken с живыми записями пользователя,
// от новых к старым, до первого совпадения. Линейный проход по строкам
// приемлем: живых refresh-токенов на пользователя единицы — ротация и
// отзыв семей держат таблицу короткой.
func (s *Storage) MatchRefreshToken(ctx context.Context, userID uuid.UUID, rawToken string) (uuid.UUID, bool, error) {
	const op = "storage.postgres.MatchRefreshToken"

	query := `
		SELECT family_id, token_hash
		FROM refresh_tokens
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query, userID, time.Now().UTC())
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	type candidate struct {
		familyID uuid.UUID
		hash     string
	}

	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.familyID, &c.hash); err != nil {
			return uuid.Nil, false, fmt.Errorf("%s: %w", op, err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return uuid.Nil, false, fmt.Errorf("%s: %w", op, err)
	}

	// bcrypt-сравнение после закрытия курсора: compare дорогой,
	// держать соединение открытым на время проходов незачем.
	for _, c := range candidates {
		if compareToken(c.hash, rawToken) {
			return c.familyID, true, nil
		}
	}

	return uuid.Nil, false, nil
}

// RevokeFamily удаляет все токены семьи. Идемпотентна.
func (s *Storage) RevokeFamily(ctx context.Context, familyID uuid.UUID) error {
	const op = "storage.postgres.RevokeFamily"

	query := `
		DELETE FROM refresh_tokens
		WHERE family_id = $1
	`

	if _, err := s.db.Exec(ctx, query, familyID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteExpiredRefreshTokens удаляет все просроченные refresh-токены.
func (s *Storage) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) error {
	const op = "storage.postgres.DeleteExpiredRefreshTokens"

	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at <= $1
	`

	if _, err := s.db.Exec(ctx, query, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
