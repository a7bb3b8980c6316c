package inventory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pos-ledger/internal/application/audit"
	"github.com/jhoicas/pos-ledger/internal/application/inventory"
	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
	domaininv "github.com/jhoicas/pos-ledger/internal/domain/inventory"
	"github.com/jhoicas/pos-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/pos-ledger/pkg/logger"
)

const actor = "bodega-1"

func newLedger(t *testing.T) (*inventory.LedgerUseCase, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	uc := inventory.NewLedgerUseCase(store, store.Products(), store.Movements(), audit.NewEmitter(), logger.Nop(), 3)
	return uc, store
}

// seedProduct crea un producto con saldo cero directamente en el store.
func seedProduct(t *testing.T, store *memory.Store, id string, cost int64) {
	t.Helper()
	now := time.Now().UTC()
	err := store.Run(context.Background(), func(ctx context.Context, repos inventory.TxRepositories) error {
		return repos.Products.Create(ctx, &entity.Product{
			ID:        id,
			SKU:       "SKU-" + id,
			Name:      "Producto " + id,
			CostPrice: decimal.NewFromInt(cost),
			SalePrice: decimal.NewFromInt(cost * 2),
			Status:    entity.ProductStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		})
	})
	require.NoError(t, err)
}

func TestAppend_EntradaYSalida(t *testing.T) {
	uc, store := newLedger(t)
	seedProduct(t, store, "p1", 10)
	ctx := context.Background()

	in, err := uc.Append(ctx, inventory.AppendInput{ProductID: "p1", ActorID: actor, Kind: entity.MovementInbound, Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, in.QuantityBefore)
	assert.Equal(t, 10, in.QuantityAfter)
	assert.Equal(t, 10, in.Delta)

	out, err := uc.Append(ctx, inventory.AppendInput{ProductID: "p1", ActorID: actor, Kind: entity.MovementLoss, Quantity: 3, Reason: "vencido"})
	require.NoError(t, err)
	assert.Equal(t, -3, out.Delta)
	assert.Equal(t, 10, out.QuantityBefore)
	assert.Equal(t, 7, out.QuantityAfter)

	bal, err := uc.Balance(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 7, bal)

	hist, err := uc.History(ctx, "p1", nil, nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, entity.MovementLoss, hist[0].Kind, "historial más reciente primero")

	recs, err := store.Audit().ListByEntity(ctx, entity.AuditEntityMovement, out.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, audit.ActionAppend, recs[0].Action)
	assert.Equal(t, actor, recs[0].ActorID)
}

func TestAppend_RechazaVentaDirecta(t *testing.T) {
	uc, store := newLedger(t)
	seedProduct(t, store, "p1", 10)

	_, err := uc.Append(context.Background(), inventory.AppendInput{ProductID: "p1", Kind: entity.MovementSale, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidMovement)
}

func TestAppend_ValidaEntrada(t *testing.T) {
	uc, store := newLedger(t)
	seedProduct(t, store, "p1", 10)
	ctx := context.Background()

	_, err := uc.Append(ctx, inventory.AppendInput{ProductID: "p1", Kind: entity.MovementInbound, Quantity: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidMovement)

	_, err = uc.Append(ctx, inventory.AppendInput{ProductID: "p1", Kind: "TELEPORT", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidMovement)

	_, err = uc.Append(ctx, inventory.AppendInput{ProductID: "nope", Kind: entity.MovementInbound, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestAppend_ProductoDesconocidoEsMovimientoInvalido(t *testing.T) {
	uc, store := newLedger(t)
	ctx := context.Background()

	_, err := uc.Append(ctx, inventory.AppendInput{
		ProductID: "00000000-0000-0000-0000-000000000000",
		ActorID:   actor,
		Kind:      entity.MovementInbound,
		Quantity:  5,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidMovement)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.True(t, domain.IsValidation(err))
	assert.NotErrorIs(t, err, domain.ErrSaleAborted)

	movs, err := store.Movements().ListAllByProduct(ctx, "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Empty(t, movs)
}

func TestAppend_StockInsuficienteNoEscribe(t *testing.T) {
	uc, store := newLedger(t)
	seedProduct(t, store, "p1", 10)
	ctx := context.Background()
	_, err := uc.Append(ctx, inventory.AppendInput{ProductID: "p1", Kind: entity.MovementInbound, Quantity: 2})
	require.NoError(t, err)

	_, err = uc.Append(ctx, inventory.AppendInput{ProductID: "p1", Kind: entity.MovementOutbound, Quantity: 5})
	var stockErr *domain.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 5, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)

	movs, err := store.Movements().ListAllByProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, movs, 1)
}

func TestAppend_EntradaConCostoRecalculaPromedio(t *testing.T) {
	uc, store := newLedger(t)
	seedProduct(t, store, "p1", 10)
	ctx := context.Background()

	cost := decimal.NewFromInt(10)
	_, err := uc.Append(ctx, inventory.AppendInput{ProductID: "p1", Kind: entity.MovementInbound, Quantity: 10, UnitCost: &cost})
	require.NoError(t, err)

	cost = decimal.NewFromInt(20)
	_, err = uc.Append(ctx, inventory.AppendInput{ProductID: "p1", Kind: entity.MovementInbound, Quantity: 10, UnitCost: &cost})
	require.NoError(t, err)

	p, err := store.Products().GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, p.CostPrice.Equal(decimal.NewFromInt(15)), "costo promedio: %s", p.CostPrice)
}

// El saldo cacheado siempre es el pliegue del libro.
func TestLedgerSum_CoincideConSaldo(t *testing.T) {
	uc, store := newLedger(t)
	seedProduct(t, store, "p1", 10)
	ctx := context.Background()

	steps := []inventory.AppendInput{
		{Kind: entity.MovementInbound, Quantity: 20},
		{Kind: entity.MovementOutbound, Quantity: 4},
		{Kind: entity.MovementAdjustmentNegative, Quantity: 1},
		{Kind: entity.MovementReturn, Quantity: 2},
		{Kind: entity.MovementAdjustmentPositive, Quantity: 3},
		{Kind: entity.MovementLoss, Quantity: 5},
	}
	for _, s := range steps {
		s.ProductID = "p1"
		_, err := uc.Append(ctx, s)
		require.NoError(t, err)
	}

	movs, err := store.Movements().ListAllByProduct(ctx, "p1")
	require.NoError(t, err)
	sum, err := domaininv.LedgerSum(movs)
	require.NoError(t, err)
	bal, err := uc.Balance(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 15, sum)
	assert.Equal(t, sum, bal)

	res, err := uc.Reconcile(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, res.Consistent)
	assert.Equal(t, 6, res.Movements)
}

func TestAppend_ReintentaConflictos(t *testing.T) {
	uc, store := newLedger(t)
	seedProduct(t, store, "p1", 10)
	ctx := context.Background()

	store.InjectConflicts(2)
	_, err := uc.Append(ctx, inventory.AppendInput{ProductID: "p1", Kind: entity.MovementInbound, Quantity: 1})
	require.NoError(t, err)

	store.InjectConflicts(3)
	_, err = uc.Append(ctx, inventory.AppendInput{ProductID: "p1", Kind: entity.MovementInbound, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrSaleAborted)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	bal, err := uc.Balance(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, bal)
}

func TestHistory_ProductoInexistente(t *testing.T) {
	uc, _ := newLedger(t)
	_, err := uc.History(context.Background(), "nope", nil, nil, 10, 0)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}
