// Package memory implementa los puertos de repositorio y TxRunner sobre un estado en memoria.
// Run serializa las transacciones con un mutex global y trabaja sobre una copia del estado
// que solo se confirma si fn no devuelve error. Se usa en tests y en modo demo sin base de datos.
//
// Los repositorios de nivel Store toman el mismo mutex: no se deben llamar desde dentro de Run.
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/pos-ledger/internal/application/inventory"
	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
)

type state struct {
	products   map[string]entity.Product
	movements  []entity.StockMovement
	promotions map[string]entity.Promotion
	sales      map[string]entity.Sale
	saleOrder  []string
	audit      []entity.AuditRecord
}

func newState() *state {
	return &state{
		products:   make(map[string]entity.Product),
		promotions: make(map[string]entity.Promotion),
		sales:      make(map[string]entity.Sale),
	}
}

func (s *state) clone() *state {
	c := &state{
		products:   make(map[string]entity.Product, len(s.products)),
		movements:  make([]entity.StockMovement, len(s.movements)),
		promotions: make(map[string]entity.Promotion, len(s.promotions)),
		sales:      make(map[string]entity.Sale, len(s.sales)),
		saleOrder:  append([]string(nil), s.saleOrder...),
		audit:      make([]entity.AuditRecord, len(s.audit)),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	copy(c.movements, s.movements)
	for k, v := range s.promotions {
		v.ProductIDs = append([]string(nil), v.ProductIDs...)
		c.promotions[k] = v
	}
	for k, v := range s.sales {
		v.Items = append([]entity.SaleItem(nil), v.Items...)
		c.sales[k] = v
	}
	copy(c.audit, s.audit)
	return c
}

// view da acceso al estado: directo dentro de una transacción o bajo el mutex del Store.
type view interface {
	with(fn func(st *state) error) error
}

type txView struct{ st *state }

func (v txView) with(fn func(st *state) error) error { return fn(v.st) }

// Store es la base de datos en memoria.
type Store struct {
	mu        sync.Mutex
	st        *state
	conflicts int
}

var _ inventory.TxRunner = (*Store)(nil)

// NewStore construye un Store vacío.
func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) with(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// InjectConflicts hace que las próximas n transacciones fallen al confirmar con
// domain.ErrConcurrentModification, como si otra transacción hubiera ganado la fila.
func (s *Store) InjectConflicts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts = n
}

// Run ejecuta fn sobre una copia del estado y la confirma si fn no falla.
func (s *Store) Run(ctx context.Context, fn func(ctx context.Context, repos inventory.TxRepositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := s.st.clone()
	if err := fn(ctx, reposFor(txView{st: tx})); err != nil {
		return err
	}
	if s.conflicts > 0 {
		s.conflicts--
		return domain.ErrConcurrentModification
	}
	s.st = tx
	return nil
}

func reposFor(v view) inventory.TxRepositories {
	return inventory.TxRepositories{
		Products:   &productRepo{v: v},
		Movements:  &movementRepo{v: v},
		Promotions: &promotionRepo{v: v},
		Sales:      &saleRepo{v: v},
		Audit:      &auditRepo{v: v},
	}
}

// Products repositorio de productos fuera de transacción.
func (s *Store) Products() repository.ProductRepository { return &productRepo{v: s} }

// Movements repositorio del libro fuera de transacción.
func (s *Store) Movements() repository.StockMovementRepository { return &movementRepo{v: s} }

// Promotions repositorio de promociones fuera de transacción.
func (s *Store) Promotions() repository.PromotionRepository { return &promotionRepo{v: s} }

// Sales repositorio de ventas fuera de transacción.
func (s *Store) Sales() repository.SaleRepository { return &saleRepo{v: s} }

// Audit repositorio de auditoría fuera de transacción.
func (s *Store) Audit() repository.AuditRepository { return &auditRepo{v: s} }
