package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// BlacklistCache — минимальный контракт кэша денилиста по jti.
// Кэш хранит только положительные ответы: запись с ключом jti означает
// «токен отозван». Отсутствие ключа ничего не доказывает — сервис
// в этом случае идёт в БД.
type BlacklistCache interface {
	// IsTokenIDBlacklisted возвращает (true, nil), если jti есть в кэше.
	IsTokenIDBlacklisted(ctx context.Context, tokenID string) (bool, error)
	// MarkTokenID помечает jti отозванным на остаток жизни токена.
	MarkTokenID(ctx context.Context, tokenID string, ttl time.Duration) error
	// Close закрывает клиент Redis.
	Close() error
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "auth:bl:".
func NewRedisCache(redisURL, prefix string) (BlacklistCache, error) {
	if prefix == "" {
		prefix = "auth:bl:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return &redisCache{rdb: rdb, prefix: prefix}, nil
}

func (c *redisCache) key(tokenID string) string { return c.prefix + tokenID }

func (c *redisCache) IsTokenIDBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	err := c.rdb.Get(ctx, c.key(tokenID)).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func (c *redisCache) MarkTokenID(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		// Токен уже истёк: кэшировать нечего.
		return nil
	}

	return c.rdb.Set(ctx, c.key(tokenID), "1", ttl).Err()
}

func (c *redisCache) Close() error { return c.rdb.Close() }
