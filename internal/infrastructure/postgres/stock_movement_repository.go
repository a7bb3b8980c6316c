package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/pos-ledger/internal/domain/entity"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepo)(nil)

// StockMovementRepo libro de stock sobre PostgreSQL. Solo INSERT y SELECT.
// El orden de inserción lo da la columna seq (BIGSERIAL).
type StockMovementRepo struct {
	q Querier
}

// NewStockMovementRepository construye el adaptador. Acepta pool o tx (Querier).
func NewStockMovementRepository(q Querier) *StockMovementRepo {
	return &StockMovementRepo{q: q}
}

const movementColumns = `id, product_id, actor_id, kind, quantity, delta, quantity_before, quantity_after, reason, reference_id, created_at`

func scanMovement(row pgx.Row) (*entity.StockMovement, error) {
	var m entity.StockMovement
	var kind string
	err := row.Scan(&m.ID, &m.ProductID, &m.ActorID, &kind, &m.Quantity, &m.Delta,
		&m.QuantityBefore, &m.QuantityAfter, &m.Reason, &m.ReferenceID, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Kind = entity.MovementKind(kind)
	return &m, nil
}

func (r *StockMovementRepo) list(ctx context.Context, query string, args ...any) ([]*entity.StockMovement, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*entity.StockMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// Create inserta un movimiento.
func (r *StockMovementRepo) Create(ctx context.Context, m *entity.StockMovement) error {
	query := `
		INSERT INTO stock_movements (` + movementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.ProductID, m.ActorID, string(m.Kind), m.Quantity, m.Delta,
		m.QuantityBefore, m.QuantityAfter, m.Reason, m.ReferenceID, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert stock movement: %w", err)
	}
	return nil
}

// LastForProduct devuelve el último movimiento del producto o nil.
func (r *StockMovementRepo) LastForProduct(ctx context.Context, productID string) (*entity.StockMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE product_id = $1 ORDER BY seq DESC LIMIT 1`
	m, err := scanMovement(r.q.QueryRow(ctx, query, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last stock movement: %w", err)
	}
	return m, nil
}

// ListByProduct lista los movimientos del producto, más recientes primero, con filtro opcional de fechas.
func (r *StockMovementRepo) ListByProduct(ctx context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.StockMovement, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT ` + movementColumns + ` FROM stock_movements
		WHERE product_id = $1
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at <= $3)
		ORDER BY seq DESC
		LIMIT $4 OFFSET $5`
	list, err := r.list(ctx, query, productID, from, to, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	return list, nil
}

// ListAllByProduct lista todo el historial del producto en orden de inserción.
func (r *StockMovementRepo) ListAllByProduct(ctx context.Context, productID string) ([]*entity.StockMovement, error) {
	list, err := r.list(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE product_id = $1 ORDER BY seq`, productID)
	if err != nil {
		return nil, fmt.Errorf("list product ledger: %w", err)
	}
	return list, nil
}

// ListByReference lista los movimientos originados por una venta.
func (r *StockMovementRepo) ListByReference(ctx context.Context, referenceID string) ([]*entity.StockMovement, error) {
	list, err := r.list(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE reference_id = $1 ORDER BY seq`, referenceID)
	if err != nil {
		return nil, fmt.Errorf("list stock movements by reference: %w", err)
	}
	return list, nil
}
