package repo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rogerio-castellano/mall-billing/internal/models"
)

type InMemoryMovementRepository struct {
	mu        sync.RWMutex
	movements []models.Movement
	now       func() time.Time
}

func NewInMemoryMovementRepository() *InMemoryMovementRepository {
	return &InMemoryMovementRepository{
		movements: []models.Movement{},
		now:       time.Now,
	}
}

// Log inserts a new inventory movement
func (r *InMemoryMovementRepository) Log(_ context.Context, m models.Movement) (models.Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m.ID = len(r.movements) + 1
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.now().UTC()
	}
	r.movements = append(r.movements, m)
	return m, nil
}

// GetByCode returns the movements of one product, newest first, optionally filtered by date range and paginated
func (r *InMemoryMovementRepository) GetByCode(_ context.Context, code string, mf MovementFilter) ([]models.Movement, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filtered := []models.Movement{}
	for i := len(r.movements) - 1; i >= 0; i-- {
		m := r.movements[i]
		if m.Code != code {
			continue
		}
		if (mf.Since != nil && m.CreatedAt.Before(*mf.Since)) ||
			(mf.Until != nil && m.CreatedAt.After(*mf.Until)) {
			continue
		}
		filtered = append(filtered, m)
	}

	if mf.Limit != nil && *mf.Limit == 0 {
		return []models.Movement{}, len(filtered), nil
	}
	if mf.Offset != nil && *mf.Offset < 0 {
		return nil, 0, errors.New("offset must be non-negative")
	}
	if mf.Offset != nil && *mf.Offset >= len(filtered) {
		return []models.Movement{}, len(filtered), nil
	}

	start := 0
	if mf.Offset != nil {
		start = *mf.Offset
	}

	limit := defaultLimit
	if mf.Limit != nil && *mf.Limit > 0 {
		limit = min(*mf.Limit, defaultLimit)
	}
	end := clamp(start+limit, start, len(filtered))

	return filtered[start:end], len(filtered), nil
}
