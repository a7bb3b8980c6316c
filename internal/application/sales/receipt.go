package sales

import (
	"context"
	"fmt"

	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
)

// ReceiptUseCase genera el recibo de una venta (incluidas las anuladas, marcadas como tal).
type ReceiptUseCase struct {
	saleRepo    repository.SaleRepository
	productRepo repository.ProductRepository
	generator   ReceiptGenerator
	storeName   string
}

// NewReceiptUseCase construye el caso de uso.
func NewReceiptUseCase(
	saleRepo repository.SaleRepository,
	productRepo repository.ProductRepository,
	generator ReceiptGenerator,
	storeName string,
) *ReceiptUseCase {
	return &ReceiptUseCase{
		saleRepo:    saleRepo,
		productRepo: productRepo,
		generator:   generator,
		storeName:   storeName,
	}
}

// Receipt devuelve los bytes del PDF y el nombre de archivo sugerido.
func (uc *ReceiptUseCase) Receipt(ctx context.Context, saleID string) (pdfBytes []byte, filename string, err error) {
	sale, err := uc.saleRepo.GetByID(ctx, saleID)
	if err != nil {
		return nil, "", fmt.Errorf("recibo: obtener venta: %w", err)
	}
	if sale == nil {
		return nil, "", fmt.Errorf("%w: %s", domain.ErrSaleNotFound, saleID)
	}

	lines := make([]ReceiptLine, 0, len(sale.Items))
	for _, it := range sale.Items {
		line := ReceiptLine{SaleItem: it, ProductName: "Producto " + it.ProductID}
		if p, pErr := uc.productRepo.GetByID(ctx, it.ProductID); pErr == nil && p != nil {
			line.ProductName = p.Name
			line.SKU = p.SKU
		}
		lines = append(lines, line)
	}

	pdfBytes, err = uc.generator.GenerateReceipt(ctx, uc.storeName, sale, lines)
	if err != nil {
		return nil, "", fmt.Errorf("recibo: generación fallida: %w", err)
	}
	short := sale.ID
	if len(short) > 8 {
		short = short[:8]
	}
	return pdfBytes, fmt.Sprintf("recibo_%s.pdf", short), nil
}
