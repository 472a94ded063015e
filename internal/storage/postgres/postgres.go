package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"credential-service/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// Storage — реализация storage.Storage поверх PostgreSQL (pgxpool).
//
// hashCost — стоимость bcrypt для токенов at-rest; настраивается отдельно
// от парольной политики (см. config.AuthConfig.TokenHashCost).
type Storage struct {
	db       *pgxpool.Pool
	hashCost int
}

// New создаёт новое подключение к PostgreSQL.
func New(ctx context.Context, dbURL string, tokenHashCost int) (*Storage, error) {
	const op = "storage.postgres.New"

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if tokenHashCost < bcrypt.MinCost || tokenHashCost > bcrypt.MaxCost {
		tokenHashCost = bcrypt.DefaultCost
	}

	return &Storage{db: db, hashCost: tokenHashCost}, nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() {
	s.db.Close()
}

// digest сводит токен произвольной длины к фиксированному виду перед bcrypt:
// bcrypt ограничен 72 байтами, а подписанные токены заметно длиннее.
func digest(rawToken string) []byte {
	sum := sha256.Sum256([]byte(rawToken))
	return []byte(base64.RawURLEncoding.EncodeToString(sum[:]))
}

// hashToken возвращает bcrypt-хэш токена (соль внутри bcrypt).
func (s *Storage) hashToken(rawToken string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword(digest(rawToken), s.hashCost)
	if err != nil {
		return "", err
	}

	return string(bytes), nil
}

// compareToken сверяет токен с хэшем; сравнение внутри bcrypt
// выполняется за константное время.
func compareToken(hash, rawToken string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), digest(rawToken)) == nil
}

// Проверка на соответствие интерфейсу Storage.
var _ storage.Storage = (*Storage)(nil)
