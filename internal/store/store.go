package store

import (
	"context"
	"errors"

	"github.com/jaayma/promotion-service/internal/models"
)

// Persistence keys. Values are JSON-encoded under these fixed string keys
// in every backend.
const (
	PromotionsKey = "jaayma_promotions"
	UsedCodesKey  = "jaayma_used_codes"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("store: key not found")

// Store is the durable key-value persistence behind the evaluator.
// Implementations: Memory (tests, local dev), Redis and Postgres.
type Store interface {
	GetPromotions(ctx context.Context) ([]models.Promotion, error)
	PutPromotions(ctx context.Context, promos []models.Promotion) error
	GetUsedCodes(ctx context.Context) ([]string, error)
	PutUsedCodes(ctx context.Context, codes []string) error
}
