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

var _ repository.PromotionRepository = (*PromotionRepo)(nil)

// PromotionRepo promociones y su conjunto de productos (tabla promotion_products).
type PromotionRepo struct {
	q Querier
}

// NewPromotionRepository construye el adaptador. Acepta pool o tx (Querier).
func NewPromotionRepository(q Querier) *PromotionRepo {
	return &PromotionRepo{q: q}
}

const promotionSelect = `
	SELECT p.id, p.name, p.description, p.discount_kind, p.discount_value, p.start_date, p.end_date,
	       p.status, p.created_at, p.updated_at,
	       COALESCE(array_agg(pp.product_id::text ORDER BY pp.product_id) FILTER (WHERE pp.product_id IS NOT NULL), '{}')
	FROM promotions p
	LEFT JOIN promotion_products pp ON pp.promotion_id = p.id`

func scanPromotion(row pgx.Row) (*entity.Promotion, error) {
	var p entity.Promotion
	var kind string
	err := row.Scan(&p.ID, &p.Name, &p.Description, &kind, &p.DiscountValue, &p.StartDate, &p.EndDate,
		&p.Status, &p.CreatedAt, &p.UpdatedAt, &p.ProductIDs)
	if err != nil {
		return nil, err
	}
	p.DiscountKind = entity.DiscountKind(kind)
	return &p, nil
}

func (r *PromotionRepo) list(ctx context.Context, query string, args ...any) ([]*entity.Promotion, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*entity.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// Create inserta la promoción y su conjunto de productos.
func (r *PromotionRepo) Create(ctx context.Context, p *entity.Promotion) error {
	query := `
		INSERT INTO promotions (id, name, description, discount_kind, discount_value, start_date, end_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query, p.ID, p.Name, p.Description, string(p.DiscountKind), p.DiscountValue,
		p.StartDate, p.EndDate, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert promotion: %w", err)
	}
	for _, productID := range p.ProductIDs {
		if _, err := r.q.Exec(ctx,
			`INSERT INTO promotion_products (promotion_id, product_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			p.ID, productID); err != nil {
			return fmt.Errorf("insert promotion product: %w", err)
		}
	}
	return nil
}

// GetByID obtiene una promoción con sus productos.
func (r *PromotionRepo) GetByID(ctx context.Context, id string) (*entity.Promotion, error) {
	p, err := scanPromotion(r.q.QueryRow(ctx, promotionSelect+` WHERE p.id = $1 GROUP BY p.id`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidID(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get promotion: %w", err)
	}
	return p, nil
}

// UpdateStatus cambia el estado de la promoción.
func (r *PromotionRepo) UpdateStatus(ctx context.Context, id, status string, at time.Time) error {
	tag, err := r.q.Exec(ctx, `UPDATE promotions SET status = $2, updated_at = $3 WHERE id = $1`, id, status, at)
	if err != nil {
		return fmt.Errorf("update promotion status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: promoción %s", domain.ErrNotFound, id)
	}
	return nil
}

// List lista promociones, más recientes primero.
func (r *PromotionRepo) List(ctx context.Context, limit, offset int) ([]*entity.Promotion, error) {
	if limit <= 0 {
		limit = 20
	}
	query := promotionSelect + ` GROUP BY p.id ORDER BY p.created_at DESC, p.id DESC LIMIT $1 OFFSET $2`
	list, err := r.list(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	return list, nil
}

// ListActiveByProduct promociones ACTIVE que incluyen el producto; la ventana se evalúa en el resolver.
func (r *PromotionRepo) ListActiveByProduct(ctx context.Context, productID string) ([]*entity.Promotion, error) {
	query := promotionSelect + `
		WHERE p.status = 'ACTIVE'
		  AND EXISTS (SELECT 1 FROM promotion_products x WHERE x.promotion_id = p.id AND x.product_id = $1)
		GROUP BY p.id
		ORDER BY p.created_at DESC, p.id DESC`
	list, err := r.list(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("list active promotions: %w", err)
	}
	return list, nil
}

// ListDueForActivation promociones SCHEDULED cuya ventana contiene at.
func (r *PromotionRepo) ListDueForActivation(ctx context.Context, at time.Time) ([]*entity.Promotion, error) {
	query := promotionSelect + `
		WHERE p.status = 'SCHEDULED' AND p.start_date <= $1 AND p.end_date >= $1
		GROUP BY p.id
		ORDER BY p.created_at, p.id`
	list, err := r.list(ctx, query, at)
	if err != nil {
		return nil, fmt.Errorf("list promotions due: %w", err)
	}
	return list, nil
}
