package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
)

type productRepo struct{ v view }

func (r *productRepo) Create(_ context.Context, p *entity.Product) error {
	return r.v.with(func(st *state) error {
		if _, ok := st.products[p.ID]; ok {
			return fmt.Errorf("%w: producto %s", domain.ErrDuplicate, p.ID)
		}
		for _, other := range st.products {
			if other.SKU == p.SKU {
				return fmt.Errorf("%w: sku %s", domain.ErrDuplicate, p.SKU)
			}
		}
		st.products[p.ID] = *p
		return nil
	})
}

func (r *productRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	var out *entity.Product
	err := r.v.with(func(st *state) error {
		if p, ok := st.products[id]; ok {
			out = &p
		}
		return nil
	})
	return out, err
}

func (r *productRepo) GetBySKU(_ context.Context, sku string) (*entity.Product, error) {
	var out *entity.Product
	err := r.v.with(func(st *state) error {
		for _, p := range st.products {
			if p.SKU == sku {
				p := p
				out = &p
				return nil
			}
		}
		return nil
	})
	return out, err
}

// GetForUpdate equivale a GetByID: la transacción ya tiene el estado en exclusiva.
func (r *productRepo) GetForUpdate(ctx context.Context, id string) (*entity.Product, error) {
	return r.GetByID(ctx, id)
}

func (r *productRepo) Update(_ context.Context, p *entity.Product) error {
	return r.v.with(func(st *state) error {
		cur, ok := st.products[p.ID]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrProductNotFound, p.ID)
		}
		cur.Name = p.Name
		cur.SalePrice = p.SalePrice
		cur.MinQuantity = p.MinQuantity
		cur.MaxQuantity = p.MaxQuantity
		cur.Status = p.Status
		cur.UpdatedAt = p.UpdatedAt
		st.products[p.ID] = cur
		return nil
	})
}

func (r *productRepo) UpdateQuantity(_ context.Context, id string, expected, newQuantity int) error {
	return r.v.with(func(st *state) error {
		cur, ok := st.products[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
		}
		if cur.CurrentQuantity != expected {
			return domain.ErrConcurrentModification
		}
		if newQuantity < 0 {
			return fmt.Errorf("memory: saldo negativo para %s", id)
		}
		cur.CurrentQuantity = newQuantity
		cur.UpdatedAt = time.Now().UTC()
		st.products[id] = cur
		return nil
	})
}

func (r *productRepo) UpdateCost(_ context.Context, id string, cost decimal.Decimal) error {
	return r.v.with(func(st *state) error {
		cur, ok := st.products[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
		}
		cur.CostPrice = cost
		st.products[id] = cur
		return nil
	})
}

func (r *productRepo) List(_ context.Context, limit, offset int) ([]*entity.Product, error) {
	var out []*entity.Product
	err := r.v.with(func(st *state) error {
		all := make([]entity.Product, 0, len(st.products))
		for _, p := range st.products {
			all = append(all, p)
		}
		sort.Slice(all, func(i, j int) bool { return all[i].SKU < all[j].SKU })
		for _, p := range page(all, limit, offset) {
			p := p
			out = append(out, &p)
		}
		return nil
	})
	return out, err
}

func (r *productRepo) ListBelowMinimum(_ context.Context) ([]*entity.Product, error) {
	var out []*entity.Product
	err := r.v.with(func(st *state) error {
		for _, p := range st.products {
			if p.IsActive() && p.MinQuantity > 0 && p.CurrentQuantity < p.MinQuantity {
				p := p
				out = append(out, &p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		si := out[i].MinQuantity - out[i].CurrentQuantity
		sj := out[j].MinQuantity - out[j].CurrentQuantity
		if si != sj {
			return si > sj
		}
		return out[i].SKU < out[j].SKU
	})
	return out, err
}

type movementRepo struct{ v view }

func (r *movementRepo) Create(_ context.Context, m *entity.StockMovement) error {
	return r.v.with(func(st *state) error {
		st.movements = append(st.movements, *m)
		return nil
	})
}

func (r *movementRepo) LastForProduct(_ context.Context, productID string) (*entity.StockMovement, error) {
	var out *entity.StockMovement
	err := r.v.with(func(st *state) error {
		for i := len(st.movements) - 1; i >= 0; i-- {
			if st.movements[i].ProductID == productID {
				m := st.movements[i]
				out = &m
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *movementRepo) ListByProduct(_ context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	err := r.v.with(func(st *state) error {
		var matched []entity.StockMovement
		for i := len(st.movements) - 1; i >= 0; i-- {
			m := st.movements[i]
			if m.ProductID != productID {
				continue
			}
			if from != nil && m.CreatedAt.Before(*from) {
				continue
			}
			if to != nil && m.CreatedAt.After(*to) {
				continue
			}
			matched = append(matched, m)
		}
		for _, m := range page(matched, limit, offset) {
			m := m
			out = append(out, &m)
		}
		return nil
	})
	return out, err
}

func (r *movementRepo) ListAllByProduct(_ context.Context, productID string) ([]*entity.StockMovement, error) {
	return r.filter(func(m entity.StockMovement) bool { return m.ProductID == productID })
}

func (r *movementRepo) ListByReference(_ context.Context, referenceID string) ([]*entity.StockMovement, error) {
	return r.filter(func(m entity.StockMovement) bool { return m.ReferenceID == referenceID })
}

func (r *movementRepo) filter(keep func(entity.StockMovement) bool) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	err := r.v.with(func(st *state) error {
		for _, m := range st.movements {
			if keep(m) {
				m := m
				out = append(out, &m)
			}
		}
		return nil
	})
	return out, err
}

type promotionRepo struct{ v view }

func clonePromotion(p entity.Promotion) *entity.Promotion {
	p.ProductIDs = append([]string(nil), p.ProductIDs...)
	return &p
}

func (r *promotionRepo) Create(_ context.Context, p *entity.Promotion) error {
	return r.v.with(func(st *state) error {
		if _, ok := st.promotions[p.ID]; ok {
			return fmt.Errorf("%w: promoción %s", domain.ErrDuplicate, p.ID)
		}
		st.promotions[p.ID] = *clonePromotion(*p)
		return nil
	})
}

func (r *promotionRepo) GetByID(_ context.Context, id string) (*entity.Promotion, error) {
	var out *entity.Promotion
	err := r.v.with(func(st *state) error {
		if p, ok := st.promotions[id]; ok {
			out = clonePromotion(p)
		}
		return nil
	})
	return out, err
}

func (r *promotionRepo) UpdateStatus(_ context.Context, id, status string, at time.Time) error {
	return r.v.with(func(st *state) error {
		p, ok := st.promotions[id]
		if !ok {
			return fmt.Errorf("%w: promoción %s", domain.ErrNotFound, id)
		}
		p.Status = status
		p.UpdatedAt = at
		st.promotions[id] = p
		return nil
	})
}

func (r *promotionRepo) sorted(keep func(entity.Promotion) bool) ([]entity.Promotion, error) {
	var all []entity.Promotion
	err := r.v.with(func(st *state) error {
		for _, p := range st.promotions {
			if keep(p) {
				all = append(all, *clonePromotion(p))
			}
		}
		return nil
	})
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	return all, err
}

func (r *promotionRepo) List(_ context.Context, limit, offset int) ([]*entity.Promotion, error) {
	all, err := r.sorted(func(entity.Promotion) bool { return true })
	if err != nil {
		return nil, err
	}
	return promotionPtrs(page(all, limit, offset)), nil
}

func (r *promotionRepo) ListActiveByProduct(_ context.Context, productID string) ([]*entity.Promotion, error) {
	all, err := r.sorted(func(p entity.Promotion) bool {
		return p.Status == entity.PromotionStatusActive && p.Covers(productID)
	})
	if err != nil {
		return nil, err
	}
	return promotionPtrs(all), nil
}

func (r *promotionRepo) ListDueForActivation(_ context.Context, at time.Time) ([]*entity.Promotion, error) {
	all, err := r.sorted(func(p entity.Promotion) bool {
		return p.Status == entity.PromotionStatusScheduled && p.InWindow(at)
	})
	if err != nil {
		return nil, err
	}
	return promotionPtrs(all), nil
}

func promotionPtrs(in []entity.Promotion) []*entity.Promotion {
	out := make([]*entity.Promotion, 0, len(in))
	for i := range in {
		out = append(out, &in[i])
	}
	return out
}

type saleRepo struct{ v view }

func (r *saleRepo) Create(_ context.Context, s *entity.Sale) error {
	return r.v.with(func(st *state) error {
		if _, ok := st.sales[s.ID]; ok {
			return fmt.Errorf("%w: venta %s", domain.ErrDuplicate, s.ID)
		}
		c := *s
		c.Items = append([]entity.SaleItem(nil), s.Items...)
		st.sales[s.ID] = c
		st.saleOrder = append(st.saleOrder, s.ID)
		return nil
	})
}

func (r *saleRepo) GetByID(_ context.Context, id string) (*entity.Sale, error) {
	var out *entity.Sale
	err := r.v.with(func(st *state) error {
		if s, ok := st.sales[id]; ok {
			s.Items = append([]entity.SaleItem(nil), s.Items...)
			out = &s
		}
		return nil
	})
	return out, err
}

func (r *saleRepo) GetForUpdate(ctx context.Context, id string) (*entity.Sale, error) {
	return r.GetByID(ctx, id)
}

func (r *saleRepo) MarkCancelled(_ context.Context, id, actorID, reason string, at time.Time) error {
	return r.v.with(func(st *state) error {
		s, ok := st.sales[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrSaleNotFound, id)
		}
		if s.Status == entity.SaleStatusCancelled {
			return domain.ErrConcurrentModification
		}
		s.Status = entity.SaleStatusCancelled
		s.CancelledAt = &at
		s.CancelledBy = actorID
		s.CancelReason = reason
		st.sales[id] = s
		return nil
	})
}

type auditRepo struct{ v view }

func (r *auditRepo) Create(_ context.Context, rec *entity.AuditRecord) error {
	return r.v.with(func(st *state) error {
		st.audit = append(st.audit, *rec)
		return nil
	})
}

func (r *auditRepo) ListUnpublished(_ context.Context, limit int) ([]*entity.AuditRecord, error) {
	var out []*entity.AuditRecord
	err := r.v.with(func(st *state) error {
		for _, rec := range st.audit {
			if rec.PublishedAt != nil {
				continue
			}
			if limit > 0 && len(out) >= limit {
				break
			}
			rec := rec
			out = append(out, &rec)
		}
		return nil
	})
	return out, err
}

func (r *auditRepo) MarkPublished(_ context.Context, ids []string, at time.Time) error {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return r.v.with(func(st *state) error {
		for i := range st.audit {
			if _, ok := set[st.audit[i].ID]; ok && st.audit[i].PublishedAt == nil {
				t := at
				st.audit[i].PublishedAt = &t
			}
		}
		return nil
	})
}

func (r *auditRepo) ListByEntity(_ context.Context, entityType, entityID string) ([]*entity.AuditRecord, error) {
	var out []*entity.AuditRecord
	err := r.v.with(func(st *state) error {
		for _, rec := range st.audit {
			if rec.EntityType == entityType && rec.EntityID == entityID {
				rec := rec
				out = append(out, &rec)
			}
		}
		return nil
	})
	return out, err
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
