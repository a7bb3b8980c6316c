package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/pos-ledger/internal/application/inventory"
	"github.com/jhoicas/pos-ledger/internal/application/promotion"
	"github.com/jhoicas/pos-ledger/internal/application/sales"
	"github.com/jhoicas/pos-ledger/internal/application/usecase"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	ProductUC   *usecase.ProductUseCase
	Ledger      *inventory.LedgerUseCase
	PromotionUC *promotion.UseCase
	Sales       *sales.Engine
	Receipts    *sales.ReceiptUseCase
	JWTSecret   string
}

// Router registra las rutas de la API. Todo /api requiere Bearer Token.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	productHandler := NewProductHandler(deps.ProductUC)
	inventoryHandler := NewInventoryHandler(deps.Ledger)
	products := api.Group("/products")
	products.Post("/", productHandler.Create)
	products.Get("/", productHandler.List)
	products.Get("/low-stock", productHandler.LowStock)
	products.Get("/:id", productHandler.GetByID)
	products.Put("/:id", productHandler.Update)
	products.Get("/:id/availability", productHandler.Availability)
	products.Get("/:id/balance", inventoryHandler.Balance)
	products.Get("/:id/movements", inventoryHandler.History)
	products.Get("/:id/reconcile", inventoryHandler.Reconcile)

	invGroup := api.Group("/inventory")
	invGroup.Post("/movements", inventoryHandler.AppendMovement)

	promotionHandler := NewPromotionHandler(deps.PromotionUC)
	promotions := api.Group("/promotions")
	promotions.Post("/", promotionHandler.Create)
	promotions.Get("/", promotionHandler.List)
	promotions.Get("/resolve", promotionHandler.Resolve)
	promotions.Patch("/:id/status", promotionHandler.SetStatus)

	saleHandler := NewSaleHandler(deps.Sales, deps.Receipts)
	salesGroup := api.Group("/sales")
	salesGroup.Post("/", saleHandler.Post)
	salesGroup.Get("/:id", saleHandler.GetByID)
	salesGroup.Post("/:id/cancel", saleHandler.Cancel)
	salesGroup.Get("/:id/receipt", saleHandler.Receipt)
}
