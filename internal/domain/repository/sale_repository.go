package repository

import (
	"context"
	"time"

	"github.com/jhoicas/pos-ledger/internal/domain/entity"
)

// SaleRepository define el puerto de persistencia para Sale y sus ítems (se crean juntos).
type SaleRepository interface {
	Create(ctx context.Context, sale *entity.Sale) error
	GetByID(ctx context.Context, id string) (*entity.Sale, error)
	// GetForUpdate bloquea la cabecera de la venta hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, id string) (*entity.Sale, error)
	// MarkCancelled cambia el estado a CANCELLED; los ítems no se tocan.
	MarkCancelled(ctx context.Context, id, actorID, reason string, at time.Time) error
}
