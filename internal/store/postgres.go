package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/jaayma/promotion-service/internal/models"
)

// Postgres keeps each key as one row of the jaayma_kv table with a JSONB
// value. The schema is managed by the embedded goose migrations.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(ctx context.Context, url string) (*Postgres, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("db ping failed: %w", err)
	}

	return &Postgres{db: db}, nil
}

// DB exposes the underlying handle for migrations.
func (p *Postgres) DB() *sql.DB { return p.db }

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) get(ctx context.Context, key string, v interface{}) error {
	var raw []byte
	query := `SELECT value FROM jaayma_kv WHERE key = $1`
	if err := p.db.QueryRowContext(ctx, query, key).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("select %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) put(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	query := `
		INSERT INTO jaayma_kv (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := p.db.ExecContext(ctx, query, key, raw); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) GetPromotions(ctx context.Context) ([]models.Promotion, error) {
	var promos []models.Promotion
	if err := p.get(ctx, PromotionsKey, &promos); err != nil {
		return nil, err
	}
	return promos, nil
}

func (p *Postgres) PutPromotions(ctx context.Context, promos []models.Promotion) error {
	return p.put(ctx, PromotionsKey, promos)
}

func (p *Postgres) GetUsedCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := p.get(ctx, UsedCodesKey, &codes); err != nil {
		return nil, err
	}
	return codes, nil
}

func (p *Postgres) PutUsedCodes(ctx context.Context, codes []string) error {
	return p.put(ctx, UsedCodesKey, codes)
}
