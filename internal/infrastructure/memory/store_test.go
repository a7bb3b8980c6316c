package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pos-ledger/internal/application/inventory"
	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
)

func createProduct(t *testing.T, s *Store, id, sku string, qty int) {
	t.Helper()
	err := s.Run(context.Background(), func(ctx context.Context, repos inventory.TxRepositories) error {
		return repos.Products.Create(ctx, &entity.Product{ID: id, SKU: sku, CurrentQuantity: qty, Status: entity.ProductStatusActive})
	})
	require.NoError(t, err)
}

func TestRun_ErrorDescartaCambios(t *testing.T) {
	s := NewStore()
	boom := errors.New("boom")

	err := s.Run(context.Background(), func(ctx context.Context, repos inventory.TxRepositories) error {
		require.NoError(t, repos.Products.Create(ctx, &entity.Product{ID: "p1", SKU: "A"}))
		p, err := repos.Products.GetByID(ctx, "p1")
		require.NoError(t, err)
		require.NotNil(t, p, "la transacción ve sus propias escrituras")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, err := s.Products().GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestRun_ConflictosInyectados(t *testing.T) {
	s := NewStore()
	s.InjectConflicts(1)

	err := s.Run(context.Background(), func(ctx context.Context, repos inventory.TxRepositories) error {
		return repos.Products.Create(ctx, &entity.Product{ID: "p1", SKU: "A"})
	})
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	p, err := s.Products().GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Nil(t, p)

	createProduct(t, s, "p1", "A", 0)
}

func TestRun_ContextoCancelado(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := s.Run(ctx, func(context.Context, inventory.TxRepositories) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestProducts_SKUUnicoYSaldoCondicionado(t *testing.T) {
	s := NewStore()
	createProduct(t, s, "p1", "A", 5)
	ctx := context.Background()

	err := s.Run(ctx, func(ctx context.Context, repos inventory.TxRepositories) error {
		return repos.Products.Create(ctx, &entity.Product{ID: "p2", SKU: "A"})
	})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	err = s.Run(ctx, func(ctx context.Context, repos inventory.TxRepositories) error {
		return repos.Products.UpdateQuantity(ctx, "p1", 4, 3)
	})
	assert.ErrorIs(t, err, domain.ErrConcurrentModification, "el saldo esperado no coincide")

	err = s.Run(ctx, func(ctx context.Context, repos inventory.TxRepositories) error {
		return repos.Products.UpdateQuantity(ctx, "p1", 5, 3)
	})
	require.NoError(t, err)
	p, err := s.Products().GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.CurrentQuantity)
}

func TestProducts_ListOrdenadoPorSKU(t *testing.T) {
	s := NewStore()
	createProduct(t, s, "p1", "C", 0)
	createProduct(t, s, "p2", "A", 0)
	createProduct(t, s, "p3", "B", 0)

	list, err := s.Products().List(context.Background(), 2, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "B", list[0].SKU)
	assert.Equal(t, "C", list[1].SKU)
}

func TestMovements_HistorialYFiltros(t *testing.T) {
	s := NewStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	err := s.Run(context.Background(), func(ctx context.Context, repos inventory.TxRepositories) error {
		for i := 0; i < 4; i++ {
			if err := repos.Movements.Create(ctx, &entity.StockMovement{
				ID: string(rune('a' + i)), ProductID: "p1", Kind: entity.MovementInbound,
				Quantity: 1, Delta: 1, QuantityBefore: i, QuantityAfter: i + 1,
				CreatedAt: base.Add(time.Duration(i) * time.Hour),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	ctx := context.Background()

	last, err := s.Movements().LastForProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 4, last.QuantityAfter)

	from := base.Add(time.Hour)
	to := base.Add(2 * time.Hour)
	list, err := s.Movements().ListByProduct(ctx, "p1", &from, &to, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID, "más reciente primero")

	none, err := s.Movements().LastForProduct(ctx, "otro")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSales_MarkCancelledSoloUnaVez(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	err := s.Run(ctx, func(ctx context.Context, repos inventory.TxRepositories) error {
		return repos.Sales.Create(ctx, &entity.Sale{ID: "s1", Status: entity.SaleStatusCompleted,
			Items: []entity.SaleItem{{ID: "i1", SaleID: "s1", ProductID: "p1", Quantity: 1}}})
	})
	require.NoError(t, err)

	mark := func() error {
		return s.Run(ctx, func(ctx context.Context, repos inventory.TxRepositories) error {
			return repos.Sales.MarkCancelled(ctx, "s1", "sup", "x", time.Now())
		})
	}
	require.NoError(t, mark())
	assert.ErrorIs(t, mark(), domain.ErrConcurrentModification)

	sale, err := s.Sales().GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, entity.SaleStatusCancelled, sale.Status)
	assert.Len(t, sale.Items, 1)
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{2, 3}, page(items, 2, 1))
	assert.Empty(t, page(items, 2, 10))
	assert.Equal(t, items, page(items, 0, 0))
}
