// Package sales contiene el motor de ventas: publica una venta completa de forma atómica
// (movimientos de stock, ítems, cabecera y auditoría) o no deja rastro.
package sales

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-ledger/internal/application/audit"
	"github.com/jhoicas/pos-ledger/internal/application/inventory"
	"github.com/jhoicas/pos-ledger/internal/application/promotion"
	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
	"github.com/jhoicas/pos-ledger/internal/domain/pricing"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
	"github.com/jhoicas/pos-ledger/pkg/logger"
)

// PostSaleItem línea solicitada. PromotionID fija una promoción concreta (debe ser aplicable);
// vacío deja que el resolver elija.
type PostSaleItem struct {
	ProductID        string
	Quantity         int
	ExplicitDiscount decimal.Decimal
	PromotionID      string
}

// PostSaleInput entrada de PostSale.
type PostSaleInput struct {
	SalespersonID string
	CustomerID    string
	Items         []PostSaleItem
	PaymentMethod string
	SaleDiscount  decimal.Decimal
	Notes         string
}

// Engine publica y anula ventas.
type Engine struct {
	txRunner    inventory.TxRunner
	resolver    *promotion.Resolver
	ledger      *inventory.LedgerUseCase
	saleRepo    repository.SaleRepository
	audit       *audit.Emitter
	log         *logger.Logger
	maxAttempts int
	now         func() time.Time
}

// NewEngine construye el motor. maxAttempts acota los reintentos por modificación concurrente.
func NewEngine(
	txRunner inventory.TxRunner,
	resolver *promotion.Resolver,
	ledger *inventory.LedgerUseCase,
	saleRepo repository.SaleRepository,
	emitter *audit.Emitter,
	log *logger.Logger,
	maxAttempts int,
) *Engine {
	return &Engine{
		txRunner:    txRunner,
		resolver:    resolver,
		ledger:      ledger,
		saleRepo:    saleRepo,
		audit:       emitter,
		log:         log.Component("sales"),
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func normalize(in PostSaleInput) (PostSaleInput, error) {
	if len(in.Items) == 0 {
		return in, domain.ErrEmptySale
	}
	if strings.TrimSpace(in.SalespersonID) == "" {
		return in, fmt.Errorf("%w: salesperson_id requerido", domain.ErrInvalidInput)
	}
	in.PaymentMethod = strings.ToUpper(strings.TrimSpace(in.PaymentMethod))
	if in.PaymentMethod == "" {
		in.PaymentMethod = entity.PaymentCash
	}
	if !entity.ValidPaymentMethod(in.PaymentMethod) {
		return in, fmt.Errorf("%w: medio de pago %q", domain.ErrInvalidInput, in.PaymentMethod)
	}
	if in.SaleDiscount.IsNegative() {
		return in, fmt.Errorf("%w: descuento de venta negativo", domain.ErrInvalidInput)
	}
	items := make([]PostSaleItem, len(in.Items))
	for i, it := range in.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return in, fmt.Errorf("%w: línea %d sin product_id", domain.ErrInvalidInput, i+1)
		}
		if it.Quantity <= 0 {
			return in, fmt.Errorf("%w: línea %d cantidad %d", domain.ErrInvalidQuantity, i+1, it.Quantity)
		}
		if it.ExplicitDiscount.IsNegative() {
			return in, fmt.Errorf("%w: línea %d descuento negativo", domain.ErrInvalidInput, i+1)
		}
		items[i] = it
	}
	// Orden estable por producto: fija el orden de bloqueo y de los ítems.
	sort.SliceStable(items, func(a, b int) bool { return items[a].ProductID < items[b].ProductID })
	in.Items = items
	return in, nil
}

// resolvePromotions decide la promoción de cada línea antes de abrir la transacción.
func (e *Engine) resolvePromotions(ctx context.Context, items []PostSaleItem, at time.Time) ([]*entity.Promotion, error) {
	out := make([]*entity.Promotion, len(items))
	byProduct := make(map[string]*entity.Promotion)
	for i, it := range items {
		if it.PromotionID != "" {
			promo, err := e.resolver.Get(ctx, it.PromotionID)
			if err != nil {
				return nil, err
			}
			if promo == nil || !promo.ApplicableTo(it.ProductID, at) {
				return nil, fmt.Errorf("%w: promoción %s, producto %s",
					domain.ErrPromotionNotApplicable, it.PromotionID, it.ProductID)
			}
			out[i] = promo
			continue
		}
		promo, ok := byProduct[it.ProductID]
		if !ok {
			var err error
			promo, err = e.resolver.Resolve(ctx, it.ProductID, at)
			if err != nil {
				return nil, err
			}
			byProduct[it.ProductID] = promo
		}
		out[i] = promo
	}
	return out, nil
}

// lockProducts bloquea cada producto distinto en orden ascendente de ID.
func lockProducts(ctx context.Context, repos inventory.TxRepositories, ids []string) (map[string]*entity.Product, error) {
	locked := make(map[string]*entity.Product, len(ids))
	for _, id := range ids {
		p, err := repos.Products.GetForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
		}
		locked[id] = p
	}
	return locked, nil
}

func distinctSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// PostSale publica la venta: bloquea los productos en orden ascendente, valida la demanda
// agregada contra el saldo bloqueado, cotiza cada línea, registra un movimiento SALE y un ítem
// por línea, persiste la cabecera y la auditoría. Todo o nada.
//
// Errores de validación y de negocio se devuelven tal cual; cualquier otro fallo se devuelve
// envuelto en domain.ErrSaleAborted.
func (e *Engine) PostSale(ctx context.Context, in PostSaleInput) (*entity.Sale, error) {
	in, err := normalize(in)
	if err != nil {
		return nil, err
	}
	at := e.now()
	promos, err := e.resolvePromotions(ctx, in.Items, at)
	if err != nil {
		return nil, passOrAbort(err)
	}
	productIDs := make([]string, len(in.Items))
	for i, it := range in.Items {
		productIDs[i] = it.ProductID
	}
	distinct := distinctSorted(productIDs)

	var posted *entity.Sale
	err = inventory.RunWithRetry(ctx, e.txRunner, e.maxAttempts, func(ctx context.Context, repos inventory.TxRepositories) error {
		locked, err := lockProducts(ctx, repos, distinct)
		if err != nil {
			return err
		}
		demand := make(map[string]int, len(distinct))
		for _, it := range in.Items {
			demand[it.ProductID] += it.Quantity
		}
		for _, id := range distinct {
			p := locked[id]
			if !p.IsActive() {
				return fmt.Errorf("%w: %s", domain.ErrProductInactive, id)
			}
			if demand[id] > p.CurrentQuantity {
				return &domain.InsufficientStockError{ProductID: id, Requested: demand[id], Available: p.CurrentQuantity}
			}
		}

		quotes := make([]pricing.LineQuote, len(in.Items))
		for i, it := range in.Items {
			q, err := pricing.QuoteLine(it.ProductID, locked[it.ProductID].SalePrice, it.Quantity, promos[i], it.ExplicitDiscount)
			if err != nil {
				return err
			}
			quotes[i] = q
		}
		totals, err := pricing.ComputeTotals(quotes, in.SaleDiscount)
		if err != nil {
			return err
		}

		sale := &entity.Sale{
			ID:            uuid.New().String(),
			CustomerID:    in.CustomerID,
			SalespersonID: in.SalespersonID,
			Date:          at,
			Total:         totals.Total,
			SaleDiscount:  totals.SaleDiscount,
			Discount:      totals.Discount,
			FinalTotal:    totals.FinalTotal,
			PaymentMethod: in.PaymentMethod,
			Status:        entity.SaleStatusCompleted,
			Notes:         in.Notes,
			Items:         make([]entity.SaleItem, 0, len(quotes)),
			CreatedAt:     at,
		}
		for _, q := range quotes {
			if _, err := e.ledger.AppendLocked(ctx, repos, locked[q.ProductID], inventory.AppendInput{
				ProductID:   q.ProductID,
				ActorID:     in.SalespersonID,
				Kind:        entity.MovementSale,
				Quantity:    q.Quantity,
				Reason:      "venta",
				ReferenceID: sale.ID,
			}, at); err != nil {
				return err
			}
			sale.Items = append(sale.Items, entity.SaleItem{
				ID:                uuid.New().String(),
				SaleID:            sale.ID,
				ProductID:         q.ProductID,
				Quantity:          q.Quantity,
				ListUnitPrice:     q.ListUnitPrice,
				UnitPrice:         q.UnitPrice,
				PromotionDiscount: q.PromotionDiscount,
				LineDiscount:      q.LineDiscount,
				Subtotal:          q.Subtotal,
				PromotionID:       q.PromotionID,
			})
		}
		if err := repos.Sales.Create(ctx, sale); err != nil {
			return err
		}
		if err := e.audit.Emit(ctx, repos.Audit, audit.Entry{
			EntityType: entity.AuditEntitySale,
			EntityID:   sale.ID,
			Action:     audit.ActionPostSale,
			ActorID:    in.SalespersonID,
			After:      saleSnapshot(sale),
		}); err != nil {
			return err
		}
		posted = sale
		return nil
	})
	if err != nil {
		err = passOrAbort(err)
		if errors.Is(err, domain.ErrSaleAborted) {
			e.log.Error().Err(err).Str("salesperson_id", in.SalespersonID).Int("lines", len(in.Items)).Msg("venta abortada")
		} else {
			e.log.Debug().Err(err).Str("salesperson_id", in.SalespersonID).Msg("venta rechazada")
		}
		return nil, err
	}
	e.log.Info().
		Str("sale_id", posted.ID).
		Str("salesperson_id", posted.SalespersonID).
		Int("lines", len(posted.Items)).
		Str("final_total", posted.FinalTotal.StringFixed(2)).
		Msg("venta registrada")
	return posted, nil
}

// CancelSale anula una venta COMPLETED: devuelve el stock de cada línea con un movimiento RETURN
// y marca la venta CANCELLED, todo en una transacción.
func (e *Engine) CancelSale(ctx context.Context, saleID, actorID, reason string) (*entity.Sale, error) {
	if strings.TrimSpace(saleID) == "" {
		return nil, fmt.Errorf("%w: sale_id requerido", domain.ErrInvalidInput)
	}
	var cancelled *entity.Sale
	err := inventory.RunWithRetry(ctx, e.txRunner, e.maxAttempts, func(ctx context.Context, repos inventory.TxRepositories) error {
		sale, err := repos.Sales.GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale == nil {
			return fmt.Errorf("%w: %s", domain.ErrSaleNotFound, saleID)
		}
		if sale.Status == entity.SaleStatusCancelled {
			return fmt.Errorf("%w: %s", domain.ErrSaleAlreadyCancelled, saleID)
		}
		before := saleSnapshot(sale)

		ids := make([]string, len(sale.Items))
		for i, it := range sale.Items {
			ids[i] = it.ProductID
		}
		locked, err := lockProducts(ctx, repos, distinctSorted(ids))
		if err != nil {
			return err
		}
		items := make([]entity.SaleItem, len(sale.Items))
		copy(items, sale.Items)
		sort.SliceStable(items, func(a, b int) bool { return items[a].ProductID < items[b].ProductID })

		now := e.now()
		movReason := "anulación de venta"
		if r := strings.TrimSpace(reason); r != "" {
			movReason += ": " + r
		}
		for _, it := range items {
			if _, err := e.ledger.AppendLocked(ctx, repos, locked[it.ProductID], inventory.AppendInput{
				ProductID:   it.ProductID,
				ActorID:     actorID,
				Kind:        entity.MovementReturn,
				Quantity:    it.Quantity,
				Reason:      movReason,
				ReferenceID: sale.ID,
			}, now); err != nil {
				return err
			}
		}
		if err := repos.Sales.MarkCancelled(ctx, sale.ID, actorID, reason, now); err != nil {
			return err
		}
		sale.Status = entity.SaleStatusCancelled
		sale.CancelledAt = &now
		sale.CancelledBy = actorID
		sale.CancelReason = reason
		if err := e.audit.Emit(ctx, repos.Audit, audit.Entry{
			EntityType: entity.AuditEntitySale,
			EntityID:   sale.ID,
			Action:     audit.ActionCancelSale,
			ActorID:    actorID,
			Before:     before,
			After:      saleSnapshot(sale),
		}); err != nil {
			return err
		}
		cancelled = sale
		return nil
	})
	if err != nil {
		e.log.Debug().Err(err).Str("sale_id", saleID).Msg("anulación rechazada")
		return nil, err
	}
	e.log.Info().Str("sale_id", saleID).Str("actor_id", actorID).Msg("venta anulada")
	return cancelled, nil
}

// GetSale obtiene una venta con sus ítems.
func (e *Engine) GetSale(ctx context.Context, saleID string) (*entity.Sale, error) {
	sale, err := e.saleRepo.GetByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSaleNotFound, saleID)
	}
	return sale, nil
}

// passOrAbort deja pasar los errores de validación y de negocio; el resto aborta la venta.
func passOrAbort(err error) error {
	if err == nil {
		return nil
	}
	if domain.IsValidation(err) || domain.IsConflict(err) ||
		errors.Is(err, domain.ErrProductNotFound) || errors.Is(err, domain.ErrSaleAborted) {
		return err
	}
	return domain.Aborted(err)
}

type saleItemSnapshot struct {
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
	PromotionID string `json:"promotion_id,omitempty"`
}

type saleStateSnapshot struct {
	ID            string             `json:"id"`
	Status        string             `json:"status"`
	SalespersonID string             `json:"salesperson_id"`
	CustomerID    string             `json:"customer_id,omitempty"`
	Total         string             `json:"total"`
	Discount      string             `json:"discount"`
	FinalTotal    string             `json:"final_total"`
	PaymentMethod string             `json:"payment_method"`
	CancelReason  string             `json:"cancel_reason,omitempty"`
	Items         []saleItemSnapshot `json:"items"`
}

func saleSnapshot(s *entity.Sale) saleStateSnapshot {
	items := make([]saleItemSnapshot, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, saleItemSnapshot{
			ProductID:   it.ProductID,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice.String(),
			Subtotal:    it.Subtotal.StringFixed(2),
			PromotionID: it.PromotionID,
		})
	}
	return saleStateSnapshot{
		ID:            s.ID,
		Status:        s.Status,
		SalespersonID: s.SalespersonID,
		CustomerID:    s.CustomerID,
		Total:         s.Total.StringFixed(2),
		Discount:      s.Discount.StringFixed(2),
		FinalTotal:    s.FinalTotal.StringFixed(2),
		PaymentMethod: s.PaymentMethod,
		CancelReason:  s.CancelReason,
		Items:         items,
	}
}
