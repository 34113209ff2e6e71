package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jaayma/promotion-service/internal/models"
)

// Redis persists the catalog and used-codes set as JSON strings under the
// jaayma_* keys.
type Redis struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) get(ctx context.Context, key string, v interface{}) error {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r *Redis) put(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) GetPromotions(ctx context.Context) ([]models.Promotion, error) {
	var promos []models.Promotion
	if err := r.get(ctx, PromotionsKey, &promos); err != nil {
		return nil, err
	}
	return promos, nil
}

func (r *Redis) PutPromotions(ctx context.Context, promos []models.Promotion) error {
	return r.put(ctx, PromotionsKey, promos)
}

func (r *Redis) GetUsedCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := r.get(ctx, UsedCodesKey, &codes); err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *Redis) PutUsedCodes(ctx context.Context, codes []string) error {
	return r.put(ctx, UsedCodesKey, codes)
}
