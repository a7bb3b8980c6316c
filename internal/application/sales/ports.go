package sales

import (
	"context"

	"github.com/jhoicas/pos-ledger/internal/domain/entity"
)

// ReceiptLine es un ítem de venta enriquecido con los datos del producto para el recibo.
type ReceiptLine struct {
	entity.SaleItem
	SKU         string
	ProductName string
}

// ReceiptGenerator produce el documento del recibo (ticket POS). Implementación: infrastructure/pdf.
type ReceiptGenerator interface {
	GenerateReceipt(ctx context.Context, storeName string, sale *entity.Sale, lines []ReceiptLine) ([]byte, error)
}
