package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-ledger/internal/application/audit"
	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
	"github.com/jhoicas/pos-ledger/internal/domain/inventory"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
	"github.com/jhoicas/pos-ledger/pkg/logger"
)

// LedgerUseCase es el libro de stock: cada cambio de cantidad pasa por aquí, dentro de una
// transacción con bloqueo de fila (SELECT FOR UPDATE) y Commit/Rollback.
type LedgerUseCase struct {
	txRunner     TxRunner
	productRepo  repository.ProductRepository
	movementRepo repository.StockMovementRepository
	audit        *audit.Emitter
	log          *logger.Logger
	maxAttempts  int
}

// NewLedgerUseCase construye el caso de uso.
func NewLedgerUseCase(
	txRunner TxRunner,
	productRepo repository.ProductRepository,
	movementRepo repository.StockMovementRepository,
	emitter *audit.Emitter,
	log *logger.Logger,
	maxAttempts int,
) *LedgerUseCase {
	return &LedgerUseCase{
		txRunner:     txRunner,
		productRepo:  productRepo,
		movementRepo: movementRepo,
		audit:        emitter,
		log:          log.Component("ledger"),
		maxAttempts:  maxAttempts,
	}
}

// AppendInput entrada para registrar un movimiento.
// UnitCost es opcional y solo se usa en INBOUND para recalcular el costo promedio.
type AppendInput struct {
	ProductID   string
	ActorID     string
	Kind        entity.MovementKind
	Quantity    int
	Reason      string
	ReferenceID string
	UnitCost    *decimal.Decimal
}

func validateAppend(in AppendInput) error {
	if in.ProductID == "" {
		return fmt.Errorf("%w: product_id requerido", domain.ErrInvalidMovement)
	}
	if inventory.Direction(in.Kind) == 0 {
		return fmt.Errorf("%w: tipo %q desconocido", domain.ErrInvalidMovement, in.Kind)
	}
	if in.Quantity <= 0 {
		return fmt.Errorf("%w: cantidad %d debe ser positiva", domain.ErrInvalidMovement, in.Quantity)
	}
	if in.UnitCost != nil && in.UnitCost.IsNegative() {
		return fmt.Errorf("%w: unit_cost negativo", domain.ErrInvalidInput)
	}
	return nil
}

// Append registra un movimiento que no es venta (entradas, ajustes, mermas, devoluciones).
// Las ventas entran exclusivamente por el motor de ventas.
func (uc *LedgerUseCase) Append(ctx context.Context, in AppendInput) (*entity.StockMovement, error) {
	if err := validateAppend(in); err != nil {
		return nil, err
	}
	if in.Kind == entity.MovementSale {
		return nil, fmt.Errorf("%w: las ventas se registran con PostSale", domain.ErrInvalidMovement)
	}

	var mov *entity.StockMovement
	err := RunWithRetry(ctx, uc.txRunner, uc.maxAttempts, func(ctx context.Context, repos TxRepositories) error {
		m, err := uc.AppendInTx(ctx, repos, in, time.Now().UTC())
		if err != nil {
			return err
		}
		mov = m
		return nil
	})
	if err != nil {
		uc.log.Debug().Err(err).Str("product_id", in.ProductID).Str("kind", string(in.Kind)).
			Int("quantity", in.Quantity).Msg("movimiento rechazado")
		return nil, err
	}
	uc.log.Info().
		Str("movement_id", mov.ID).
		Str("product_id", mov.ProductID).
		Str("kind", string(mov.Kind)).
		Int("before", mov.QuantityBefore).
		Int("after", mov.QuantityAfter).
		Msg("movimiento registrado")
	return mov, nil
}

// AppendInTx bloquea la fila del producto y registra el movimiento con los repositorios de la
// transacción del llamador.
func (uc *LedgerUseCase) AppendInTx(ctx context.Context, repos TxRepositories, in AppendInput, now time.Time) (*entity.StockMovement, error) {
	if err := validateAppend(in); err != nil {
		return nil, err
	}
	product, err := repos.Products.GetForUpdate(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		// Movimiento sobre un producto desconocido: coincide con ErrInvalidMovement y ErrProductNotFound.
		return nil, fmt.Errorf("%w: %w: %s", domain.ErrInvalidMovement, domain.ErrProductNotFound, in.ProductID)
	}
	return uc.AppendLocked(ctx, repos, product, in, now)
}

// AppendLocked registra el movimiento sobre un producto cuya fila ya está bloqueada por la
// transacción en curso. Actualiza product.CurrentQuantity para que las líneas siguientes de la
// misma transacción vean el saldo nuevo.
//
// Pasos: (a) verifica que el saldo cacheado coincide con el último movimiento, (b) calcula el saldo
// nuevo con ApplyMovement, (c) inserta el movimiento, (d) actualiza el saldo cacheado condicionado
// al valor leído, (e) emite auditoría.
func (uc *LedgerUseCase) AppendLocked(ctx context.Context, repos TxRepositories, product *entity.Product, in AppendInput, now time.Time) (*entity.StockMovement, error) {
	last, err := repos.Movements.LastForProduct(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	ledgerQty := 0
	if last != nil {
		ledgerQty = last.QuantityAfter
	}
	if ledgerQty != product.CurrentQuantity {
		uc.log.Error().Str("product_id", product.ID).Int("cached", product.CurrentQuantity).
			Int("ledger", ledgerQty).Msg("saldo cacheado no coincide con el libro")
		return nil, fmt.Errorf("%w: producto %s cacheado=%d libro=%d",
			domain.ErrLedgerMismatch, product.ID, product.CurrentQuantity, ledgerQty)
	}

	before := product.CurrentQuantity
	delta, after, err := inventory.ApplyMovement(product.ID, in.Kind, in.Quantity, before)
	if err != nil {
		return nil, err
	}

	if in.Kind == entity.MovementInbound && in.UnitCost != nil {
		newCost := inventory.WeightedAverageCost(before, product.CostPrice, in.Quantity, *in.UnitCost)
		if err := repos.Products.UpdateCost(ctx, product.ID, newCost); err != nil {
			return nil, err
		}
		product.CostPrice = newCost
	}

	mov := &entity.StockMovement{
		ID:             uuid.New().String(),
		ProductID:      product.ID,
		ActorID:        in.ActorID,
		Kind:           in.Kind,
		Quantity:       in.Quantity,
		Delta:          delta,
		QuantityBefore: before,
		QuantityAfter:  after,
		Reason:         in.Reason,
		ReferenceID:    in.ReferenceID,
		CreatedAt:      now,
	}
	if err := repos.Movements.Create(ctx, mov); err != nil {
		return nil, err
	}
	if err := repos.Products.UpdateQuantity(ctx, product.ID, before, after); err != nil {
		return nil, err
	}
	product.CurrentQuantity = after

	if err := uc.audit.Emit(ctx, repos.Audit, audit.Entry{
		EntityType: entity.AuditEntityMovement,
		EntityID:   mov.ID,
		Action:     audit.ActionAppend,
		ActorID:    in.ActorID,
		Before:     quantitySnapshot{ProductID: product.ID, Quantity: before},
		After: quantitySnapshot{
			ProductID:   product.ID,
			Quantity:    after,
			Kind:        string(in.Kind),
			Delta:       delta,
			ReferenceID: in.ReferenceID,
		},
	}); err != nil {
		return nil, err
	}

	if product.MaxQuantity > 0 && after > product.MaxQuantity {
		uc.log.Warn().Str("product_id", product.ID).Int("quantity", after).
			Int("max", product.MaxQuantity).Msg("saldo por encima del máximo")
	}
	return mov, nil
}

type quantitySnapshot struct {
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	Kind        string `json:"kind,omitempty"`
	Delta       int    `json:"delta,omitempty"`
	ReferenceID string `json:"reference_id,omitempty"`
}

// Balance devuelve el saldo cacheado del producto. Solo lectura.
func (uc *LedgerUseCase) Balance(ctx context.Context, productID string) (int, error) {
	product, err := uc.productRepo.GetByID(ctx, productID)
	if err != nil {
		return 0, err
	}
	if product == nil {
		return 0, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	return product.CurrentQuantity, nil
}

// History lista los movimientos de un producto, más recientes primero.
func (uc *LedgerUseCase) History(ctx context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.StockMovement, error) {
	product, err := uc.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	return uc.movementRepo.ListByProduct(ctx, productID, from, to, limit, offset)
}

// ReconcileResult compara el saldo cacheado con el pliegue del libro.
type ReconcileResult struct {
	ProductID  string
	Cached     int
	LedgerSum  int
	Movements  int
	Consistent bool
	Detail     string
}

// Reconcile recalcula el saldo desde el libro con la fila bloqueada y lo compara con el cacheado.
// Una inconsistencia indica un bug; se reporta y se registra en el log, no se corrige.
func (uc *LedgerUseCase) Reconcile(ctx context.Context, productID string) (*ReconcileResult, error) {
	var res *ReconcileResult
	err := uc.txRunner.Run(ctx, func(ctx context.Context, repos TxRepositories) error {
		product, err := repos.Products.GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if product == nil {
			return fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
		}
		movs, err := repos.Movements.ListAllByProduct(ctx, productID)
		if err != nil {
			return err
		}
		sum, sumErr := inventory.LedgerSum(movs)
		res = &ReconcileResult{
			ProductID:  productID,
			Cached:     product.CurrentQuantity,
			LedgerSum:  sum,
			Movements:  len(movs),
			Consistent: sumErr == nil && sum == product.CurrentQuantity,
		}
		if sumErr != nil {
			res.Detail = sumErr.Error()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !res.Consistent {
		uc.log.Error().Str("product_id", productID).Int("cached", res.Cached).
			Int("ledger", res.LedgerSum).Str("detail", res.Detail).Msg("inconsistencia en el libro de stock")
	}
	return res, nil
}
