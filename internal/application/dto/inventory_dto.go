package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-ledger/internal/domain/entity"
)

// AppendMovementRequest body para POST /api/inventory/movements.
type AppendMovementRequest struct {
	ProductID string           `json:"product_id"`
	Kind      string           `json:"kind"`
	Quantity  int              `json:"quantity"`
	Reason    string           `json:"reason,omitempty"`
	UnitCost  *decimal.Decimal `json:"unit_cost,omitempty"`
}

// MovementResponse salida de un movimiento del libro.
type MovementResponse struct {
	ID             string    `json:"id"`
	ProductID      string    `json:"product_id"`
	ActorID        string    `json:"actor_id,omitempty"`
	Kind           string    `json:"kind"`
	Quantity       int       `json:"quantity"`
	Delta          int       `json:"delta"`
	QuantityBefore int       `json:"quantity_before"`
	QuantityAfter  int       `json:"quantity_after"`
	Reason         string    `json:"reason,omitempty"`
	ReferenceID    string    `json:"reference_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// MovementListResponse historial paginado.
type MovementListResponse struct {
	Items []MovementResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// BalanceResponse saldo actual de un producto.
type BalanceResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// AvailabilityResponse resultado de ValidateAvailability.
type AvailabilityResponse struct {
	ProductID    string `json:"product_id"`
	Requested    int    `json:"requested"`
	Available    bool   `json:"available"`
	CurrentStock int    `json:"current_stock"`
}

// ReconcileResponse comparación entre saldo cacheado y libro.
type ReconcileResponse struct {
	ProductID  string `json:"product_id"`
	Cached     int    `json:"cached"`
	LedgerSum  int    `json:"ledger_sum"`
	Movements  int    `json:"movements"`
	Consistent bool   `json:"consistent"`
	Detail     string `json:"detail,omitempty"`
}

// ToMovementResponse convierte la entidad a su DTO.
func ToMovementResponse(m *entity.StockMovement) MovementResponse {
	return MovementResponse{
		ID:             m.ID,
		ProductID:      m.ProductID,
		ActorID:        m.ActorID,
		Kind:           string(m.Kind),
		Quantity:       m.Quantity,
		Delta:          m.Delta,
		QuantityBefore: m.QuantityBefore,
		QuantityAfter:  m.QuantityAfter,
		Reason:         m.Reason,
		ReferenceID:    m.ReferenceID,
		CreatedAt:      m.CreatedAt,
	}
}
