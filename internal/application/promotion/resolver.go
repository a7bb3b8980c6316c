// Package promotion resuelve qué promoción aplica a un producto en un instante y administra
// el ciclo de vida de las promociones.
package promotion

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-ledger/internal/domain/entity"
	"github.com/jhoicas/pos-ledger/internal/domain/pricing"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
	"github.com/jhoicas/pos-ledger/pkg/logger"
)

// CandidateCache guarda las promociones ACTIVE de cada producto (sin filtrar ventana).
// Implementaciones: Redis y no-op.
type CandidateCache interface {
	Get(ctx context.Context, productID string) ([]*entity.Promotion, bool, error)
	Set(ctx context.Context, productID string, promos []*entity.Promotion, ttl time.Duration) error
	Invalidate(ctx context.Context, productIDs ...string) error
}

// Resolver selecciona la promoción aplicable. Solo lectura; la ventana se evalúa siempre
// contra el instante pedido, así que los candidatos cacheados no caducan por fecha.
type Resolver struct {
	repo  repository.PromotionRepository
	cache CandidateCache
	ttl   time.Duration
	log   *logger.Logger

	// mu ordena Set e Invalidate; gen cuenta invalidaciones. Una lectura que vio cambiar gen
	// no se cachea.
	mu  sync.Mutex
	gen uint64
}

// NewResolver construye el resolver. cache puede ser nil.
func NewResolver(repo repository.PromotionRepository, cache CandidateCache, ttl time.Duration, log *logger.Logger) *Resolver {
	return &Resolver{repo: repo, cache: cache, ttl: ttl, log: log.Component("promotion_resolver")}
}

// Resolve devuelve la promoción aplicable a productID en at, o nil si ninguna aplica.
// Con varias aplicables gana la creada más recientemente.
func (r *Resolver) Resolve(ctx context.Context, productID string, at time.Time) (*entity.Promotion, error) {
	candidates, err := r.candidates(ctx, productID)
	if err != nil {
		return nil, err
	}
	return pricing.SelectPromotion(candidates, productID, at), nil
}

// ApplyDiscount aplica la promoción a un precio unitario. Ver pricing.ApplyDiscount.
func (r *Resolver) ApplyDiscount(unitPrice decimal.Decimal, promo *entity.Promotion) (decimal.Decimal, decimal.Decimal) {
	return pricing.ApplyDiscount(unitPrice, promo)
}

// Get lee una promoción por ID sin pasar por la caché.
func (r *Resolver) Get(ctx context.Context, id string) (*entity.Promotion, error) {
	return r.repo.GetByID(ctx, id)
}

func (r *Resolver) candidates(ctx context.Context, productID string) ([]*entity.Promotion, error) {
	if r.cache != nil {
		promos, ok, err := r.cache.Get(ctx, productID)
		if err != nil {
			r.log.Warn().Err(err).Str("product_id", productID).Msg("caché de promociones no disponible")
		} else if ok {
			return promos, nil
		}
	}
	gen := r.generation()
	promos, err := r.repo.ListActiveByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.setIfCurrent(ctx, productID, promos, gen)
	}
	return promos, nil
}

func (r *Resolver) generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

// setIfCurrent cachea promos solo si no hubo invalidaciones desde que empezó la lectura.
func (r *Resolver) setIfCurrent(ctx context.Context, productID string, promos []*entity.Promotion, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		r.log.Debug().Str("product_id", productID).Msg("invalidación durante la lectura, no se cachea")
		return
	}
	if err := r.cache.Set(ctx, productID, promos, r.ttl); err != nil {
		r.log.Warn().Err(err).Str("product_id", productID).Msg("no se pudo cachear promociones")
	}
}

// invalidate descarta los candidatos cacheados de los productos.
func (r *Resolver) invalidate(ctx context.Context, productIDs []string) {
	if r.cache == nil || len(productIDs) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	if err := r.cache.Invalidate(ctx, productIDs...); err != nil {
		r.log.Warn().Err(err).Strs("product_ids", productIDs).Msg("no se pudo invalidar caché de promociones")
	}
}
