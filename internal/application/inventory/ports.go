package inventory

import (
	"context"

	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
)

// TxRepositories agrupa los repositorios atados a una misma transacción.
type TxRepositories struct {
	Products   repository.ProductRepository
	Movements  repository.StockMovementRepository
	Promotions repository.PromotionRepository
	Sales      repository.SaleRepository
	Audit      repository.AuditRepository
}

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Si fn retorna error se hace Rollback de todo lo escrito; si no, Commit.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error
}

// RunWithRetry repite la transacción completa mientras falle por modificación concurrente,
// hasta maxAttempts intentos. Agotados los intentos el error se reporta como venta abortada.
func RunWithRetry(ctx context.Context, runner TxRunner, maxAttempts int, fn func(ctx context.Context, repos TxRepositories) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = runner.Run(ctx, fn)
		if err == nil || !domain.IsRetryable(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Aborted(ctxErr)
		}
	}
	return domain.Aborted(err)
}
