package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jaayma/promotion-service/internal/models"
)

// Memory is a map-backed Store used by tests and local development.
// Values go through the same JSON encoding as the durable backends, so
// callers never share slices with the store.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) get(key string, v interface{}) error {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (m *Memory) put(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetPromotions(_ context.Context) ([]models.Promotion, error) {
	var promos []models.Promotion
	if err := m.get(PromotionsKey, &promos); err != nil {
		return nil, err
	}
	return promos, nil
}

func (m *Memory) PutPromotions(_ context.Context, promos []models.Promotion) error {
	return m.put(PromotionsKey, promos)
}

func (m *Memory) GetUsedCodes(_ context.Context) ([]string, error) {
	var codes []string
	if err := m.get(UsedCodesKey, &codes); err != nil {
		return nil, err
	}
	return codes, nil
}

func (m *Memory) PutUsedCodes(_ context.Context, codes []string) error {
	return m.put(UsedCodesKey, codes)
}
