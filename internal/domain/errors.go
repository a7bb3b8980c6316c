package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrDuplicate         = errors.New("recurso duplicado")
	ErrUnauthorized      = errors.New("no autorizado")
	ErrInsufficientStock = errors.New("stock insuficiente")

	// Validación de ventas y movimientos: se rechazan antes de tocar recursos.
	ErrEmptySale       = errors.New("la venta no tiene ítems")
	ErrInvalidQuantity = errors.New("cantidad inválida")
	ErrInvalidMovement = errors.New("movimiento inválido")

	ErrProductNotFound        = errors.New("producto no encontrado")
	ErrProductInactive        = errors.New("producto inactivo")
	ErrPromotionNotApplicable = errors.New("la promoción no aplica al producto")
	ErrSaleNotFound           = errors.New("venta no encontrada")
	ErrSaleAlreadyCancelled   = errors.New("la venta ya fue anulada")

	// ErrConcurrentModification: otra transacción cambió la fila entre la lectura y la escritura.
	ErrConcurrentModification = errors.New("modificación concurrente detectada")
	// ErrLedgerMismatch: el saldo cacheado del producto no coincide con el último movimiento.
	// Nunca debería ocurrir; indica un bug y la transacción se revierte.
	ErrLedgerMismatch = errors.New("el saldo del producto no coincide con el libro de movimientos")
	// ErrSaleAborted envuelve cualquier fallo posterior a la validación que obliga a revertir la venta.
	ErrSaleAborted = errors.New("venta abortada")
)

// InsufficientStockError detalla la línea que no alcanzó stock.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente para %s: solicitado %d, disponible %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// Aborted envuelve cause para que errors.Is funcione tanto con ErrSaleAborted como con la causa.
func Aborted(cause error) error {
	if cause == nil || errors.Is(cause, ErrSaleAborted) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrSaleAborted, cause)
}

// IsValidation indica errores de forma de la entrada (HTTP 400).
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptySale) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidMovement)
}

// IsConflict indica conflictos de reglas de negocio recuperables por el cliente (re-cotizar y reintentar).
func IsConflict(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrSaleAlreadyCancelled) ||
		errors.Is(err, ErrPromotionNotApplicable) ||
		errors.Is(err, ErrProductInactive) ||
		errors.Is(err, ErrDuplicate)
}

// IsRetryable indica que repetir la transacción completa puede tener éxito.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
