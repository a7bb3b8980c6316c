package repository

import (
	"context"
	"time"

	"github.com/jhoicas/pos-ledger/internal/domain/entity"
)

// PromotionRepository define el puerto de persistencia para promociones y su conjunto de productos.
type PromotionRepository interface {
	Create(ctx context.Context, promo *entity.Promotion) error
	GetByID(ctx context.Context, id string) (*entity.Promotion, error)
	UpdateStatus(ctx context.Context, id, status string, at time.Time) error
	List(ctx context.Context, limit, offset int) ([]*entity.Promotion, error)
	// ListActiveByProduct devuelve las promociones ACTIVE que incluyen el producto (sin filtrar ventana).
	ListActiveByProduct(ctx context.Context, productID string) ([]*entity.Promotion, error)
	// ListDueForActivation devuelve las SCHEDULED cuya ventana ya abrió y no ha cerrado en at.
	ListDueForActivation(ctx context.Context, at time.Time) ([]*entity.Promotion, error)
}
