package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SaveChallenge вытесняет предыдущий челлендж пользователя и сохраняет
// хэш нового. Delete+insert выполняются в одной транзакции, чтобы между
// ними не было окна с двумя живыми челленджами.
func (s *Storage) SaveChallenge(ctx context.Context, userID uuid.UUID, rawToken string, expiresAt time.Time) error {
	const op = "storage.postgres.SaveChallenge"

	hash, err := s.hashToken(rawToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM reset_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `
		INSERT INTO reset_tokens(user_id, token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := tx.Exec(ctx, query, userID, hash, time.Now().UTC(), expiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ConsumeChallenge сверяет rawToken с записью пользователя.
// Совпавший, но просроченный челлендж удаляется сразу (ленивая очистка),
// результат — false. Отсутствие записи — тоже false, не ошибка.
func (s *Storage) ConsumeChallenge(ctx context.Context, userID uuid.UUID, rawToken string) (bool, error) {
	const op = "storage.postgres.ConsumeChallenge"

	query := `
		SELECT token_hash, expires_at
		FROM reset_tokens
		WHERE user_id = $1
	`

	var (
		hash      string
		expiresAt time.Time
	)
	err := s.db.QueryRow(ctx, query, userID).Scan(&hash, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	if !compareToken(hash, rawToken) {
		return false, nil
	}

	if time.Now().UTC().After(expiresAt) {
		if _, err := s.db.Exec(ctx, `DELETE FROM reset_tokens WHERE user_id = $1`, userID); err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}

		return false, nil
	}

	return true, nil
}

// DeleteChallenge удаляет челлендж пользователя. Идемпотентна.
func (s *Storage) DeleteChallenge(ctx context.Context, userID uuid.UUID) error {
	const op = "storage.postgres.DeleteChallenge"

	if _, err := s.db.Exec(ctx, `DELETE FROM reset_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteExpiredChallenges удаляет просроченные челленджи.
func (s *Storage) DeleteExpiredChallenges(ctx context.Context, now time.Time) error {
	const op = "storage.postgres.DeleteExpiredChallenges"

	query := `
		DELETE FROM reset_tokens
		WHERE expires_at <= $1
	`

	if _, err := s.db.Exec(ctx, query, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
