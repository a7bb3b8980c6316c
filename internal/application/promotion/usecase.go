package promotion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/pos-ledger/internal/application/audit"
	"github.com/jhoicas/pos-ledger/internal/application/dto"
	"github.com/jhoicas/pos-ledger/internal/application/inventory"
	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
	"github.com/jhoicas/pos-ledger/internal/domain/pricing"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
	"github.com/jhoicas/pos-ledger/pkg/logger"
)

// UseCase administra promociones. Cada cambio invalida la caché de los productos afectados.
type UseCase struct {
	txRunner    inventory.TxRunner
	repo        repository.PromotionRepository
	productRepo repository.ProductRepository
	resolver    *Resolver
	audit       *audit.Emitter
	log         *logger.Logger
	now         func() time.Time
}

// NewUseCase construye el caso de uso.
func NewUseCase(
	txRunner inventory.TxRunner,
	repo repository.PromotionRepository,
	productRepo repository.ProductRepository,
	resolver *Resolver,
	emitter *audit.Emitter,
	log *logger.Logger,
) *UseCase {
	return &UseCase{
		txRunner:    txRunner,
		repo:        repo,
		productRepo: productRepo,
		resolver:    resolver,
		audit:       emitter,
		log:         log.Component("promotions"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func validateCreate(in dto.CreatePromotionRequest) (entity.DiscountKind, []string, error) {
	if strings.TrimSpace(in.Name) == "" {
		return "", nil, fmt.Errorf("%w: name requerido", domain.ErrInvalidInput)
	}
	kind := entity.DiscountKind(strings.ToUpper(strings.TrimSpace(in.DiscountKind)))
	switch kind {
	case entity.DiscountPercentage:
		if in.DiscountValue.GreaterThan(pricing.Hundred) {
			return "", nil, fmt.Errorf("%w: porcentaje mayor que 100", domain.ErrInvalidInput)
		}
	case entity.DiscountFixedAmount:
	default:
		return "", nil, fmt.Errorf("%w: discount_kind %q", domain.ErrInvalidInput, in.DiscountKind)
	}
	if !in.DiscountValue.IsPositive() {
		return "", nil, fmt.Errorf("%w: discount_value debe ser positivo", domain.ErrInvalidInput)
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() || in.EndDate.Before(in.StartDate) {
		return "", nil, fmt.Errorf("%w: ventana de vigencia inválida", domain.ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(in.ProductIDs))
	ids := make([]string, 0, len(in.ProductIDs))
	for _, id := range in.ProductIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return "", nil, fmt.Errorf("%w: la promoción debe incluir al menos un producto", domain.ErrInvalidInput)
	}
	return kind, ids, nil
}

// Create registra una promoción. Queda SCHEDULED si la ventana aún no abre, ACTIVE en otro caso.
func (uc *UseCase) Create(ctx context.Context, actorID string, in dto.CreatePromotionRequest) (*dto.PromotionResponse, error) {
	kind, ids, err := validateCreate(in)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	promo := &entity.Promotion{
		ID:            uuid.New().String(),
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		DiscountKind:  kind,
		DiscountValue: in.DiscountValue,
		StartDate:     in.StartDate.UTC(),
		EndDate:       in.EndDate.UTC(),
		Status:        entity.PromotionStatusActive,
		ProductIDs:    ids,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if promo.StartDate.After(now) {
		promo.Status = entity.PromotionStatusScheduled
	}

	err = uc.txRunner.Run(ctx, func(ctx context.Context, repos inventory.TxRepositories) error {
		for _, id := range ids {
			p, err := repos.Products.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if p == nil {
				return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
			}
		}
		if err := repos.Promotions.Create(ctx, promo); err != nil {
			return err
		}
		return uc.audit.Emit(ctx, repos.Audit, audit.Entry{
			EntityType: entity.AuditEntityPromotion,
			EntityID:   promo.ID,
			Action:     audit.ActionCreate,
			ActorID:    actorID,
			After:      dto.ToPromotionResponse(promo),
		})
	})
	if err != nil {
		return nil, err
	}
	uc.resolver.invalidate(ctx, ids)
	uc.log.Info().Str("promotion_id", promo.ID).Str("status", promo.Status).
		Int("products", len(ids)).Msg("promoción creada")
	out := dto.ToPromotionResponse(promo)
	return &out, nil
}

// Get obtiene una promoción por ID.
func (uc *UseCase) Get(ctx context.Context, id string) (*dto.PromotionResponse, error) {
	promo, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if promo == nil {
		return nil, fmt.Errorf("%w: promoción %s", domain.ErrNotFound, id)
	}
	out := dto.ToPromotionResponse(promo)
	return &out, nil
}

// List lista promociones, más recientes primero.
func (uc *UseCase) List(ctx context.Context, limit, offset int) (*dto.PromotionListResponse, error) {
	list, err := uc.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.PromotionResponse, 0, len(list))
	for _, p := range list {
		items = append(items, dto.ToPromotionResponse(p))
	}
	return &dto.PromotionListResponse{Items: items, Page: dto.PageResponse{Limit: limit, Offset: offset}}, nil
}

// SetStatus activa o desactiva una promoción. Repetir el estado actual no escribe nada.
func (uc *UseCase) SetStatus(ctx context.Context, actorID, id, status string) (*dto.PromotionResponse, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status != entity.PromotionStatusActive && status != entity.PromotionStatusInactive {
		return nil, fmt.Errorf("%w: estado %q", domain.ErrInvalidInput, status)
	}
	var out dto.PromotionResponse
	var productIDs []string
	changed := false
	err := uc.txRunner.Run(ctx, func(ctx context.Context, repos inventory.TxRepositories) error {
		promo, err := repos.Promotions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if promo == nil {
			return fmt.Errorf("%w: promoción %s", domain.ErrNotFound, id)
		}
		productIDs = promo.ProductIDs
		if promo.Status == status {
			out = dto.ToPromotionResponse(promo)
			return nil
		}
		before := dto.ToPromotionResponse(promo)
		now := uc.now()
		if err := repos.Promotions.UpdateStatus(ctx, id, status, now); err != nil {
			return err
		}
		promo.Status = status
		promo.UpdatedAt = now
		out = dto.ToPromotionResponse(promo)
		changed = true
		return uc.audit.Emit(ctx, repos.Audit, audit.Entry{
			EntityType: entity.AuditEntityPromotion,
			EntityID:   id,
			Action:     audit.ActionStatusChange,
			ActorID:    actorID,
			Before:     before,
			After:      out,
		})
	})
	if err != nil {
		return nil, err
	}
	if changed {
		uc.resolver.invalidate(ctx, productIDs)
		uc.log.Info().Str("promotion_id", id).Str("status", status).Msg("estado de promoción actualizado")
	}
	return &out, nil
}

// ActivateDue pasa a ACTIVE las promociones SCHEDULED cuya ventana ya abrió. Devuelve cuántas activó.
func (uc *UseCase) ActivateDue(ctx context.Context, now time.Time) (int, error) {
	due, err := uc.repo.ListDueForActivation(ctx, now)
	if err != nil {
		return 0, err
	}
	activated := 0
	for _, p := range due {
		ok := false
		err := uc.txRunner.Run(ctx, func(ctx context.Context, repos inventory.TxRepositories) error {
			current, err := repos.Promotions.GetByID(ctx, p.ID)
			if err != nil {
				return err
			}
			if current == nil || current.Status != entity.PromotionStatusScheduled {
				return nil
			}
			before := dto.ToPromotionResponse(current)
			if err := repos.Promotions.UpdateStatus(ctx, p.ID, entity.PromotionStatusActive, now); err != nil {
				return err
			}
			current.Status = entity.PromotionStatusActive
			current.UpdatedAt = now
			ok = true
			return uc.audit.Emit(ctx, repos.Audit, audit.Entry{
				EntityType: entity.AuditEntityPromotion,
				EntityID:   p.ID,
				Action:     audit.ActionStatusChange,
				ActorID:    "system",
				Before:     before,
				After:      dto.ToPromotionResponse(current),
			})
		})
		if err != nil {
			return activated, err
		}
		if ok {
			activated++
			uc.resolver.invalidate(ctx, p.ProductIDs)
			uc.log.Info().Str("promotion_id", p.ID).Msg("promoción activada")
		}
	}
	return activated, nil
}

// RunActivator ejecuta ActivateDue periódicamente hasta que ctx se cancele.
func (uc *UseCase) RunActivator(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := uc.ActivateDue(ctx, uc.now()); err != nil {
				uc.log.Error().Err(err).Msg("activación de promociones")
			}
		}
	}
}

// Quote resuelve la promoción de un producto en at y calcula el precio unitario resultante.
func (uc *UseCase) Quote(ctx context.Context, productID string, at time.Time) (*dto.ResolveResponse, error) {
	product, err := uc.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	promo, err := uc.resolver.Resolve(ctx, productID, at)
	if err != nil {
		return nil, err
	}
	discounted, discount := uc.resolver.ApplyDiscount(product.SalePrice, promo)
	out := &dto.ResolveResponse{
		ProductID:       productID,
		At:              at,
		ListUnitPrice:   product.SalePrice,
		DiscountedPrice: discounted.Round(2),
		Discount:        discount.Round(2),
	}
	if promo != nil {
		pr := dto.ToPromotionResponse(promo)
		out.Promotion = &pr
	}
	return out, nil
}
