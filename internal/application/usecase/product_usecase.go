package usecase

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
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
	"github.com/jhoicas/pos-ledger/pkg/logger"
)

// ProductUseCase es el registro de productos. El saldo y el costo promedio se manejan vía movimientos.
type ProductUseCase struct {
	txRunner inventory.TxRunner
	repo     repository.ProductRepository
	ledger   *inventory.LedgerUseCase
	audit    *audit.Emitter
	log      *logger.Logger
}

// NewProductUseCase construye el caso de uso.
func NewProductUseCase(
	txRunner inventory.TxRunner,
	repo repository.ProductRepository,
	ledger *inventory.LedgerUseCase,
	emitter *audit.Emitter,
	log *logger.Logger,
) *ProductUseCase {
	return &ProductUseCase{
		txRunner: txRunner,
		repo:     repo,
		ledger:   ledger,
		audit:    emitter,
		log:      log.Component("products"),
	}
}

func validateThresholds(minQ, maxQ int) error {
	if minQ < 0 || maxQ < 0 {
		return fmt.Errorf("%w: umbrales negativos", domain.ErrInvalidInput)
	}
	if maxQ > 0 && maxQ < minQ {
		return fmt.Errorf("%w: max_quantity menor que min_quantity", domain.ErrInvalidInput)
	}
	return nil
}

// Register crea un producto ACTIVE. Si trae cantidad inicial, escribe en la misma transacción
// un movimiento INBOUND de saldo inicial para que el libro cuadre desde el primer momento.
func (uc *ProductUseCase) Register(ctx context.Context, actorID string, in dto.CreateProductRequest) (*dto.ProductResponse, error) {
	in.SKU = strings.TrimSpace(in.SKU)
	in.Name = strings.TrimSpace(in.Name)
	if in.SKU == "" || in.Name == "" {
		return nil, fmt.Errorf("%w: sku y name son obligatorios", domain.ErrInvalidInput)
	}
	if in.CostPrice.IsNegative() || in.SalePrice.IsNegative() {
		return nil, fmt.Errorf("%w: precios negativos", domain.ErrInvalidInput)
	}
	if in.InitialQuantity < 0 {
		return nil, fmt.Errorf("%w: initial_quantity negativa", domain.ErrInvalidInput)
	}
	if err := validateThresholds(in.MinQuantity, in.MaxQuantity); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &entity.Product{
		ID:          uuid.New().String(),
		SKU:         in.SKU,
		Name:        in.Name,
		CostPrice:   in.CostPrice,
		SalePrice:   in.SalePrice,
		MinQuantity: in.MinQuantity,
		MaxQuantity: in.MaxQuantity,
		Status:      entity.ProductStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := uc.txRunner.Run(ctx, func(ctx context.Context, repos inventory.TxRepositories) error {
		existing, err := repos.Products.GetBySKU(ctx, product.SKU)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: sku %s", domain.ErrDuplicate, product.SKU)
		}
		if err := repos.Products.Create(ctx, product); err != nil {
			return err
		}
		if err := uc.audit.Emit(ctx, repos.Audit, audit.Entry{
			EntityType: entity.AuditEntityProduct,
			EntityID:   product.ID,
			Action:     audit.ActionCreate,
			ActorID:    actorID,
			After:      dto.ToProductResponse(product),
		}); err != nil {
			return err
		}
		if in.InitialQuantity == 0 {
			return nil
		}
		_, err = uc.ledger.AppendLocked(ctx, repos, product, inventory.AppendInput{
			ProductID: product.ID,
			ActorID:   actorID,
			Kind:      entity.MovementInbound,
			Quantity:  in.InitialQuantity,
			Reason:    "saldo inicial",
		}, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("product_id", product.ID).Str("sku", product.SKU).
		Int("initial_quantity", product.CurrentQuantity).Msg("producto registrado")
	out := dto.ToProductResponse(product)
	return &out, nil
}

// GetByID obtiene un producto por ID.
func (uc *ProductUseCase) GetByID(ctx context.Context, id string) (*dto.ProductResponse, error) {
	product, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	out := dto.ToProductResponse(product)
	return &out, nil
}

// Update actualiza datos maestros, umbrales y estado. No permite modificar saldo ni costo.
func (uc *ProductUseCase) Update(ctx context.Context, actorID, id string, in dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	var out dto.ProductResponse
	err := uc.txRunner.Run(ctx, func(ctx context.Context, repos inventory.TxRepositories) error {
		product, err := repos.Products.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if product == nil {
			return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
		}
		before := dto.ToProductResponse(product)

		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return fmt.Errorf("%w: name vacío", domain.ErrInvalidInput)
			}
			product.Name = name
		}
		if in.SalePrice != nil {
			if in.SalePrice.IsNegative() {
				return fmt.Errorf("%w: sale_price negativo", domain.ErrInvalidInput)
			}
			product.SalePrice = *in.SalePrice
		}
		if in.MinQuantity != nil {
			product.MinQuantity = *in.MinQuantity
		}
		if in.MaxQuantity != nil {
			product.MaxQuantity = *in.MaxQuantity
		}
		if err := validateThresholds(product.MinQuantity, product.MaxQuantity); err != nil {
			return err
		}
		if in.Status != nil {
			status := strings.ToUpper(strings.TrimSpace(*in.Status))
			if !entity.ValidProductStatus(status) {
				return fmt.Errorf("%w: estado %q", domain.ErrInvalidInput, *in.Status)
			}
			product.Status = status
		}
		product.UpdatedAt = time.Now().UTC()
		if err := repos.Products.Update(ctx, product); err != nil {
			return err
		}
		out = dto.ToProductResponse(product)
		return uc.audit.Emit(ctx, repos.Audit, audit.Entry{
			EntityType: entity.AuditEntityProduct,
			EntityID:   product.ID,
			Action:     audit.ActionUpdate,
			ActorID:    actorID,
			Before:     before,
			After:      out,
		})
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("product_id", id).Msg("producto actualizado")
	return &out, nil
}

// List lista productos con paginación.
func (uc *ProductUseCase) List(ctx context.Context, limit, offset int) (*dto.ProductListResponse, error) {
	list, err := uc.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.ProductResponse, 0, len(list))
	for _, p := range list {
		items = append(items, dto.ToProductResponse(p))
	}
	return &dto.ProductListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: limit, Offset: offset},
	}, nil
}

// ValidateAvailability responde si hay saldo suficiente para vender quantity. Solo lectura.
func (uc *ProductUseCase) ValidateAvailability(ctx context.Context, productID string, quantity int) (*dto.AvailabilityResponse, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, quantity)
	}
	product, err := uc.repo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	return &dto.AvailabilityResponse{
		ProductID:    productID,
		Requested:    quantity,
		Available:    product.IsActive() && product.CurrentQuantity >= quantity,
		CurrentStock: product.CurrentQuantity,
	}, nil
}

// LowStock lista los productos activos por debajo de su mínimo, mayor faltante primero.
func (uc *ProductUseCase) LowStock(ctx context.Context) ([]dto.LowStockItem, error) {
	list, err := uc.repo.ListBelowMinimum(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.LowStockItem, 0, len(list))
	for _, p := range list {
		out = append(out, dto.LowStockItem{
			ProductID:       p.ID,
			SKU:             p.SKU,
			Name:            p.Name,
			CurrentQuantity: p.CurrentQuantity,
			MinQuantity:     p.MinQuantity,
			Shortage:        p.MinQuantity - p.CurrentQuantity,
		})
	}
	return out, nil
}
