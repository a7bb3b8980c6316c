package repository

import (
	"context"
	"time"

	"github.com/jhoicas/pos-ledger/internal/domain/entity"
)

// StockMovementRepository es el puerto del libro de stock. Solo inserta y lee: no hay Update ni Delete.
type StockMovementRepository interface {
	Create(ctx context.Context, movement *entity.StockMovement) error
	// LastForProduct devuelve el movimiento más reciente del producto o nil si no tiene.
	LastForProduct(ctx context.Context, productID string) (*entity.StockMovement, error)
	// ListByProduct lista en orden cronológico descendente.
	ListByProduct(ctx context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.StockMovement, error)
	// ListAllByProduct lista todo el historial del producto en orden de inserción.
	ListAllByProduct(ctx context.Context, productID string) ([]*entity.StockMovement, error)
	ListByReference(ctx context.Context, referenceID string) ([]*entity.StockMovement, error)
}
