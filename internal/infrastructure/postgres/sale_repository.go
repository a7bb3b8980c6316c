package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
)

var _ repository.SaleRepository = (*SaleRepo)(nil)

// SaleRepo cabecera de venta (sales) e ítems (sale_items).
type SaleRepo struct {
	q Querier
}

// NewSaleRepository construye el adaptador. Acepta pool o tx (Querier).
func NewSaleRepository(q Querier) *SaleRepo {
	return &SaleRepo{q: q}
}

const saleColumns = `id, customer_id, salesperson_id, date, total, sale_discount, discount, final_total,
	payment_method, status, notes, cancelled_at, cancelled_by, cancel_reason, created_at`

// Create inserta la cabecera y luego los ítems en el orden de la venta.
func (r *SaleRepo) Create(ctx context.Context, s *entity.Sale) error {
	query := `
		INSERT INTO sales (` + saleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := r.q.Exec(ctx, query,
		s.ID, s.CustomerID, s.SalespersonID, s.Date, s.Total, s.SaleDiscount, s.Discount, s.FinalTotal,
		s.PaymentMethod, s.Status, s.Notes, s.CancelledAt, s.CancelledBy, s.CancelReason, s.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert sale: %w", err)
	}
	itemQuery := `
		INSERT INTO sale_items (id, sale_id, line_no, product_id, quantity, list_unit_price, unit_price,
			promotion_discount, line_discount, subtotal, promotion_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	for i, it := range s.Items {
		_, err := r.q.Exec(ctx, itemQuery,
			it.ID, s.ID, i+1, it.ProductID, it.Quantity, it.ListUnitPrice, it.UnitPrice,
			it.PromotionDiscount, it.LineDiscount, it.Subtotal, nullIfEmpty(it.PromotionID),
		)
		if err != nil {
			return fmt.Errorf("insert sale item: %w", err)
		}
	}
	return nil
}

func (r *SaleRepo) get(ctx context.Context, query, id string) (*entity.Sale, error) {
	var s entity.Sale
	err := r.q.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.CustomerID, &s.SalespersonID, &s.Date, &s.Total, &s.SaleDiscount, &s.Discount, &s.FinalTotal,
		&s.PaymentMethod, &s.Status, &s.Notes, &s.CancelledAt, &s.CancelledBy, &s.CancelReason, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidID(err) {
			return nil, nil
		}
		return nil, err
	}
	items, err := r.items(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.Items = items
	return &s, nil
}

func (r *SaleRepo) items(ctx context.Context, saleID string) ([]entity.SaleItem, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, sale_id, product_id, quantity, list_unit_price, unit_price, promotion_discount,
		       line_discount, subtotal, COALESCE(promotion_id::text, '')
		FROM sale_items WHERE sale_id = $1 ORDER BY line_no`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []entity.SaleItem
	for rows.Next() {
		var it entity.SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.Quantity, &it.ListUnitPrice, &it.UnitPrice,
			&it.PromotionDiscount, &it.LineDiscount, &it.Subtotal, &it.PromotionID); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetByID obtiene la venta con sus ítems.
func (r *SaleRepo) GetByID(ctx context.Context, id string) (*entity.Sale, error) {
	s, err := r.get(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get sale: %w", err)
	}
	return s, nil
}

// GetForUpdate obtiene la venta bloqueando la cabecera. Debe llamarse dentro de una transacción.
func (r *SaleRepo) GetForUpdate(ctx context.Context, id string) (*entity.Sale, error) {
	s, err := r.get(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, fmt.Errorf("get sale for update: %w", err)
	}
	return s, nil
}

// MarkCancelled pasa la venta de COMPLETED a CANCELLED.
func (r *SaleRepo) MarkCancelled(ctx context.Context, id, actorID, reason string, at time.Time) error {
	query := `
		UPDATE sales SET status = 'CANCELLED', cancelled_at = $2, cancelled_by = $3, cancel_reason = $4
		WHERE id = $1 AND status = 'COMPLETED'`
	tag, err := r.q.Exec(ctx, query, id, at, actorID, reason)
	if err != nil {
		return fmt.Errorf("cancel sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: venta %s", domain.ErrConcurrentModification, id)
	}
	return nil
}
