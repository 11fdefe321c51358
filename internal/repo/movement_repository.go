// Package repo journals the stock movements the catalog confirmed with the remote store.
package repo

import (
	"context"

	"github.com/rogerio-castellano/mall-billing/internal/models"
)

// MovementRepository records stock changes per product code. Movements are returned newest first.
type MovementRepository interface {
	Log(ctx context.Context, m models.Movement) (models.Movement, error)
	GetByCode(ctx context.Context, code string, mf MovementFilter) ([]models.Movement, int, error)
}
