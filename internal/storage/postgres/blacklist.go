package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Blacklist хэширует rawToken и заносит его в денилист до expiresAt.
// tokenID (jti) может быть пустым — тогда запись находится только
// полным перебором хэшей.
func (s *Storage) Blacklist(ctx context.Context, rawToken, tokenID string, expiresAt time.Time) error {
	const op = "storage.postgres.Blacklist"

	hash, err := s.hashToken(rawToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `
		INSERT INTO blacklisted_tokens(id, token_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := s.db.Exec(ctx, query, uuid.New(), tokenID, hash, expiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// IsBlacklisted проверяет rawToken по всем живым записям денилиста.
// Линейный проход: таблица остаётся короткой за счёт фоновой очистки
// просроченных записей (после expires_at токен и так неприемлем).
func (s *Storage) IsBlacklisted(ctx context.Context, rawToken string) (bool, error) {
	const op = "storage.postgres.IsBlacklisted"

	query := `
		SELECT token_hash
		FROM blacklisted_tokens
		WHERE expires_at > $1
	`

	rows, err := s.db.Query(ctx, query, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		hashes = append(hashes, hash)
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	for _, hash := range hashes {
		if compareToken(hash, rawToken) {
			return true, nil
		}
	}

	return false, nil
}

// IsTokenIDBlacklisted — быстрая проверка по jti (точечный поиск по индексу).
func (s *Storage) IsTokenIDBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	const op = "storage.postgres.IsTokenIDBlacklisted"

	if tokenID == "" {
		return false, nil
	}

	query := `
		SELECT EXISTS(
			SELECT 1 FROM blacklisted_tokens
			WHERE token_id = $1 AND expires_at > $2
		)
	`

	var found bool
	if err := s.db.QueryRow(ctx, query, tokenID, time.Now().UTC()).Scan(&found); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return found, nil
}

// DeleteExpiredBlacklist удаляет записи денилиста с истёкшим сроком.
func (s *Storage) DeleteExpiredBlacklist(ctx context.Context, now time.Time) error {
	const op = "storage.postgres.DeleteExpiredBlacklist"

	query := `
		DELETE FROM blacklisted_tokens
		WHERE expires_at <= $1
	`

	if _, err := s.db.Exec(ctx, query, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
