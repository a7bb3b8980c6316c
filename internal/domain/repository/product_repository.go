package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-ledger/internal/domain/entity"
)

// ProductRepository define el puerto de persistencia para Product (DIP).
// Las lecturas devuelven (nil, nil) si el producto no existe.
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	GetBySKU(ctx context.Context, sku string) (*entity.Product, error)
	// GetForUpdate bloquea la fila hasta el fin de la transacción (SELECT ... FOR UPDATE).
	GetForUpdate(ctx context.Context, id string) (*entity.Product, error)
	// Update modifica datos maestros y umbrales. Nunca toca current_quantity.
	Update(ctx context.Context, product *entity.Product) error
	// UpdateQuantity escribe el saldo cacheado condicionado al valor leído (expected).
	// Si la fila cambió entretanto retorna domain.ErrConcurrentModification.
	UpdateQuantity(ctx context.Context, id string, expected, newQuantity int) error
	// UpdateCost actualiza el costo promedio (entradas con costo conocido).
	UpdateCost(ctx context.Context, id string, cost decimal.Decimal) error
	List(ctx context.Context, limit, offset int) ([]*entity.Product, error)
	// ListBelowMinimum devuelve los productos activos con saldo inferior a su mínimo, mayor déficit primero.
	ListBelowMinimum(ctx context.Context) ([]*entity.Product, error)
}
