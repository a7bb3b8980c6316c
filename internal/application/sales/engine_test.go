package sales_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pos-ledger/internal/application/audit"
	"github.com/jhoicas/pos-ledger/internal/application/dto"
	"github.com/jhoicas/pos-ledger/internal/application/inventory"
	"github.com/jhoicas/pos-ledger/internal/application/promotion"
	"github.com/jhoicas/pos-ledger/internal/application/sales"
	"github.com/jhoicas/pos-ledger/internal/application/usecase"
	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
	"github.com/jhoicas/pos-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/pos-ledger/pkg/logger"
)

const cashier = "cajero-1"

type fixture struct {
	store    *memory.Store
	engine   *sales.Engine
	products *usecase.ProductUseCase
	promos   *promotion.UseCase
	ledger   *inventory.LedgerUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	log := logger.Nop()
	emitter := audit.NewEmitter()
	ledger := inventory.NewLedgerUseCase(store, store.Products(), store.Movements(), emitter, log, 3)
	resolver := promotion.NewResolver(store.Promotions(), nil, time.Minute, log)
	return &fixture{
		store:    store,
		engine:   sales.NewEngine(store, resolver, ledger, store.Sales(), emitter, log, 3),
		products: usecase.NewProductUseCase(store, store.Products(), ledger, emitter, log),
		promos:   promotion.NewUseCase(store, store.Promotions(), store.Products(), resolver, emitter, log),
		ledger:   ledger,
	}
}

func (f *fixture) product(t *testing.T, sku, price string, qty int) string {
	t.Helper()
	p, err := f.products.Register(context.Background(), "admin", dto.CreateProductRequest{
		SKU:             sku,
		Name:            "Producto " + sku,
		SalePrice:       decimal.RequireFromString(price),
		InitialQuantity: qty,
	})
	require.NoError(t, err)
	return p.ID
}

func (f *fixture) percentPromo(t *testing.T, pct int64, productIDs ...string) string {
	t.Helper()
	now := time.Now().UTC()
	p, err := f.promos.Create(context.Background(), "admin", dto.CreatePromotionRequest{
		Name:          "promo",
		DiscountKind:  "PERCENTAGE",
		DiscountValue: decimal.NewFromInt(pct),
		StartDate:     now.Add(-time.Hour),
		EndDate:       now.Add(time.Hour),
		ProductIDs:    productIDs,
	})
	require.NoError(t, err)
	return p.ID
}

func (f *fixture) balance(t *testing.T, productID string) int {
	t.Helper()
	q, err := f.ledger.Balance(context.Background(), productID)
	require.NoError(t, err)
	return q
}

func (f *fixture) movements(t *testing.T, productID string) []*entity.StockMovement {
	t.Helper()
	movs, err := f.store.Movements().ListAllByProduct(context.Background(), productID)
	require.NoError(t, err)
	return movs
}

func (f *fixture) auditCount(t *testing.T) int {
	t.Helper()
	recs, err := f.store.Audit().ListUnpublished(context.Background(), 10000)
	require.NoError(t, err)
	return len(recs)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func itemFor(t *testing.T, sale *entity.Sale, productID string) entity.SaleItem {
	t.Helper()
	for _, it := range sale.Items {
		if it.ProductID == productID {
			return it
		}
	}
	t.Fatalf("la venta no tiene línea para %s", productID)
	return entity.SaleItem{}
}

// Precio 100, promoción 10%, cantidad 3: unitario 90.00, subtotal 270.00, saldo 10 → 7.
func TestPostSale_LineaConPromocion(t *testing.T) {
	f := newFixture(t)
	pid := f.product(t, "CAFE", "100", 10)
	promoID := f.percentPromo(t, 10, pid)

	sale, err := f.engine.PostSale(context.Background(), sales.PostSaleInput{
		SalespersonID: cashier,
		Items:         []sales.PostSaleItem{{ProductID: pid, Quantity: 3}},
	})
	require.NoError(t, err)

	require.Len(t, sale.Items, 1)
	it := sale.Items[0]
	assert.True(t, it.ListUnitPrice.Equal(dec("100")))
	assert.True(t, it.UnitPrice.Equal(dec("90.00")))
	assert.True(t, it.PromotionDiscount.Equal(dec("30.00")))
	assert.True(t, it.Subtotal.Equal(dec("270.00")))
	assert.Equal(t, promoID, it.PromotionID)
	assert.True(t, sale.Total.Equal(dec("270.00")))
	assert.True(t, sale.FinalTotal.Equal(dec("270.00")))
	assert.Equal(t, entity.PaymentCash, sale.PaymentMethod)
	assert.Equal(t, entity.SaleStatusCompleted, sale.Status)

	assert.Equal(t, 7, f.balance(t, pid))
	movs := f.movements(t, pid)
	require.Len(t, movs, 2)
	last := movs[1]
	assert.Equal(t, entity.MovementSale, last.Kind)
	assert.Equal(t, -3, last.Delta)
	assert.Equal(t, sale.ID, last.ReferenceID)
	assert.Equal(t, cashier, last.ActorID)

	recs, err := f.store.Audit().ListByEntity(context.Background(), entity.AuditEntitySale, sale.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, audit.ActionPostSale, recs[0].Action)

	stored, err := f.engine.GetSale(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 1)
}

// Dos productos, descuento de línea y descuento de venta.
func TestPostSale_VariasLineasYDescuentos(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "A", "100", 10)
	b := f.product(t, "B", "15.50", 5)
	f.percentPromo(t, 10, a)

	sale, err := f.engine.PostSale(context.Background(), sales.PostSaleInput{
		SalespersonID: cashier,
		CustomerID:    "cliente-9",
		PaymentMethod: "card",
		SaleDiscount:  dec("10"),
		Items: []sales.PostSaleItem{
			{ProductID: b, Quantity: 2, ExplicitDiscount: dec("1.00")},
			{ProductID: a, Quantity: 3},
		},
	})
	require.NoError(t, err)

	la := itemFor(t, sale, a)
	lb := itemFor(t, sale, b)
	assert.True(t, la.Subtotal.Equal(dec("270.00")))
	assert.True(t, lb.UnitPrice.Equal(dec("15.50")))
	assert.True(t, lb.LineDiscount.Equal(dec("1.00")))
	assert.True(t, lb.Subtotal.Equal(dec("30.00")))
	assert.Empty(t, lb.PromotionID)

	assert.True(t, sale.Total.Equal(dec("301.00")), "total %s", sale.Total)
	assert.True(t, sale.SaleDiscount.Equal(dec("10.00")))
	assert.True(t, sale.Discount.Equal(dec("11.00")), "discount %s", sale.Discount)
	assert.True(t, sale.FinalTotal.Equal(dec("290.00")), "final %s", sale.FinalTotal)
	assert.Equal(t, entity.PaymentCard, sale.PaymentMethod)

	assert.Equal(t, 7, f.balance(t, a))
	assert.Equal(t, 3, f.balance(t, b))
}

// Dos líneas del mismo producto se validan contra la demanda agregada.
func TestPostSale_DemandaAgregadaPorProducto(t *testing.T) {
	f := newFixture(t)
	pid := f.product(t, "AGG", "10", 5)

	_, err := f.engine.PostSale(context.Background(), sales.PostSaleInput{
		SalespersonID: cashier,
		Items: []sales.PostSaleItem{
			{ProductID: pid, Quantity: 3},
			{ProductID: pid, Quantity: 3},
		},
	})
	var stockErr *domain.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 6, stockErr.Requested)
	assert.Equal(t, 5, stockErr.Available)

	sale, err := f.engine.PostSale(context.Background(), sales.PostSaleInput{
		SalespersonID: cashier,
		Items: []sales.PostSaleItem{
			{ProductID: pid, Quantity: 2},
			{ProductID: pid, Quantity: 3},
		},
	})
	require.NoError(t, err)
	assert.Len(t, sale.Items, 2)
	assert.Equal(t, 0, f.balance(t, pid))
	assert.Len(t, f.movements(t, pid), 3)
}

// Si la segunda línea no alcanza, no queda ningún movimiento, venta ni auditoría.
func TestPostSale_FalloEnUnaLineaNoDejaRastro(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "OK", "10", 10)
	b := f.product(t, "POCO", "10", 1)
	auditBefore := f.auditCount(t)

	_, err := f.engine.PostSale(context.Background(), sales.PostSaleInput{
		SalespersonID: cashier,
		Items: []sales.PostSaleItem{
			{ProductID: a, Quantity: 2},
			{ProductID: b, Quantity: 2},
		},
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, 10, f.balance(t, a))
	assert.Equal(t, 1, f.balance(t, b))
	assert.Len(t, f.movements(t, a), 1)
	assert.Len(t, f.movements(t, b), 1)
	assert.Equal(t, auditBefore, f.auditCount(t))
}

// Un fallo al confirmar revierte también lo que ya se había escrito dentro de la transacción.
func TestPostSale_FalloAlConfirmarRevierteTodo(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "A", "10", 10)
	b := f.product(t, "B", "10", 10)
	auditBefore := f.auditCount(t)

	f.store.InjectConflicts(3)
	_, err := f.engine.PostSale(context.Background(), sales.PostSaleInput{
		SalespersonID: cashier,
		Items: []sales.PostSaleItem{
			{ProductID: a, Quantity: 1},
			{ProductID: b, Quantity: 1},
		},
	})
	assert.ErrorIs(t, err, domain.ErrSaleAborted)

	assert.Equal(t, 10, f.balance(t, a))
	assert.Equal(t, 10, f.balance(t, b))
	assert.Len(t, f.movements(t, a), 1)
	assert.Equal(t, auditBefore, f.auditCount(t))
}

func TestPostSale_ReintentaHastaConfirmar(t *testing.T) {
	f := newFixture(t)
	pid := f.product(t, "R", "10", 10)

	f.store.InjectConflicts(2)
	sale, err := f.engine.PostSale(context.Background(), sales.PostSaleInput{
		SalespersonID: cashier,
		Items:         []sales.PostSaleItem{{ProductID: pid, Quantity: 4}},
	})
	require.NoError(t, err)
	assert.Equal(t, 6, f.balance(t, pid))
	movs := f.movements(t, pid)
	require.Len(t, movs, 2, "los intentos fallidos no dejan movimientos")
	assert.Equal(t, sale.ID, movs[1].ReferenceID)
}

// N vendedores compiten por la última unidad: exactamente uno la vende.
// El store en memoria serializa cada transacción con un mutex global, así que aquí se verifica
// el resultado de negocio, no el bloqueo de filas. El bloqueo con SELECT ... FOR UPDATE lo cubre
// TestPostgres_ConcurrenciaUltimaUnidad (requiere POS_TEST_DATABASE_URL).
func TestPostSale_ConcurrenciaUltimaUnidad(t *testing.T) {
	f := newFixture(t)
	pid := f.product(t, "ULTIMA", "10", 1)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.PostSale(context.Background(), sales.PostSaleInput{
				SalespersonID: cashier,
				Items:         []sales.PostSaleItem{{ProductID: pid, Quantity: 1}},
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, domain.ErrInsufficientStock) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, rejected)
	assert.Equal(t, 0, f.balance(t, pid))
	assert.Len(t, f.movements(t, pid), 2)
}

func TestPostSale_Validaciones(t *testing.T) {
	f := newFixture(t)
	pid := f.product(t, "V", "10", 10)
	ctx := context.Background()

	_, err := f.engine.PostSale(ctx, sales.PostSaleInput{SalespersonID: cashier})
	assert.ErrorIs(t, err, domain.ErrEmptySale)

	_, err = f.engine.PostSale(ctx, sales.PostSaleInput{
		SalespersonID: cashier,
		Items:         []sales.PostSaleItem{{ProductID: pid, Quantity: 0}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.engine.PostSale(ctx, sales.PostSaleInput{
		SalespersonID: cashier,
		PaymentMethod: "BITCOIN",
		Items:         []sales.PostSaleItem{{ProductID: pid, Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.engine.PostSale(ctx, sales.PostSaleInput{
		SalespersonID: cashier,
		Items:         []sales.PostSaleItem{{ProductID: "nope", Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = f.engine.PostSale(ctx, sales.PostSaleInput{
		SalespersonID: cashier,
		SaleDiscount:  dec("500"),
		Items:         []sales.PostSaleItem{{ProductID: pid, Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Equal(t, 10, f.balance(t, pid))
}

func TestPostSale_ProductoInactivo(t *testing.T) {
	f := newFixture(t)
	pid := f.product(t, "INA", "10", 10)
	status := entity.ProductStatusInactive
	_, err := f.products.Update(context.Background(), "admin", pid, dto.UpdateProductRequest{Status: &status})
	require.NoError(t, err)

	_, err = f.engine.PostSale(context.Background(), sales.PostSaleInput{
		SalespersonID: cashier,
		Items:         []sales.PostSaleItem{{ProductID: pid, Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrProductInactive)
}

func TestPostSale_PromocionExplicitaNoAplicable(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "A", "10", 10)
	b := f.product(t, "B", "10", 10)
	promoA := f.percentPromo(t, 10, a)

	_, err := f.engine.PostSale(context.Background(), sales.PostSaleInput{
		SalespersonID: cashier,
		Items:         []sales.PostSaleItem{{ProductID: b, Quantity: 1, PromotionID: promoA}},
	})
	assert.ErrorIs(t, err, domain.ErrPromotionNotApplicable)

	sale, err := f.engine.PostSale(context.Background(), sales.PostSaleInput{
		SalespersonID: cashier,
		Items:         []sales.PostSaleItem{{ProductID: a, Quantity: 1, PromotionID: promoA}},
	})
	require.NoError(t, err)
	assert.True(t, sale.Items[0].UnitPrice.Equal(dec("9.00")))
}

func TestCancelSale_DevuelveStockUnaVez(t *testing.T) {
	f := newFixture(t)
	pid := f.product(t, "C", "10", 5)
	ctx := context.Background()

	sale, err := f.engine.PostSale(ctx, sales.PostSaleInput{
		SalespersonID: cashier,
		Items:         []sales.PostSaleItem{{ProductID: pid, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, f.balance(t, pid))

	cancelled, err := f.engine.CancelSale(ctx, sale.ID, "supervisor", "cliente desistió")
	require.NoError(t, err)
	assert.Equal(t, entity.SaleStatusCancelled, cancelled.Status)
	assert.Equal(t, "supervisor", cancelled.CancelledBy)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 5, f.balance(t, pid))

	movs := f.movements(t, pid)
	require.Len(t, movs, 3)
	assert.Equal(t, entity.MovementReturn, movs[2].Kind)
	assert.Equal(t, sale.ID, movs[2].ReferenceID)

	_, err = f.engine.CancelSale(ctx, sale.ID, "supervisor", "")
	assert.ErrorIs(t, err, domain.ErrSaleAlreadyCancelled)
	assert.Equal(t, 5, f.balance(t, pid))

	_, err = f.engine.CancelSale(ctx, "nope", "supervisor", "")
	assert.ErrorIs(t, err, domain.ErrSaleNotFound)

	recs, err := f.store.Audit().ListByEntity(ctx, entity.AuditEntitySale, sale.ID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, audit.ActionCancelSale, recs[1].Action)
}

func TestGetSale_NoExiste(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.GetSale(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrSaleNotFound)
}
