package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pos-ledger/internal/application/audit"
	"github.com/jhoicas/pos-ledger/internal/application/dto"
	"github.com/jhoicas/pos-ledger/internal/application/inventory"
	"github.com/jhoicas/pos-ledger/internal/application/promotion"
	"github.com/jhoicas/pos-ledger/internal/application/sales"
	"github.com/jhoicas/pos-ledger/internal/application/usecase"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
	"github.com/jhoicas/pos-ledger/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/pos-ledger/internal/interfaces/http"
	"github.com/jhoicas/pos-ledger/pkg/logger"
)

type fakeReceipt struct{}

func (fakeReceipt) GenerateReceipt(_ context.Context, _ string, sale *entity.Sale, _ []sales.ReceiptLine) ([]byte, error) {
	return []byte("%PDF-fake " + sale.ID), nil
}

// testAPI levanta el router completo sobre el store en memoria.
type testAPI struct {
	t     *testing.T
	app   *fiber.App
	store *memory.Store
	auth  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.NewStore()
	log := logger.Nop()
	emitter := audit.NewEmitter()
	ledger := inventory.NewLedgerUseCase(store, store.Products(), store.Movements(), emitter, log, 3)
	resolver := promotion.NewResolver(store.Promotions(), nil, time.Minute, log)
	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		ProductUC:   usecase.NewProductUseCase(store, store.Products(), ledger, emitter, log),
		Ledger:      ledger,
		PromotionUC: promotion.NewUseCase(store, store.Promotions(), store.Products(), resolver, emitter, log),
		Sales:       sales.NewEngine(store, resolver, ledger, store.Sales(), emitter, log, 3),
		Receipts:    sales.NewReceiptUseCase(store.Sales(), store.Products(), fakeReceipt{}, "Tienda Test"),
		JWTSecret:   testJWTSecret,
	})
	return &testAPI{t: t, app: app, store: store, auth: tokenForRole(t, "cajero")}
}

func (a *testAPI) do(method, path string, body any) (*http.Response, []byte) {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", a.auth)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return resp, out
}

func (a *testAPI) createProduct(sku string, price int64, qty int) dto.ProductResponse {
	a.t.Helper()
	resp, body := a.do(http.MethodPost, "/api/products", dto.CreateProductRequest{
		SKU:             sku,
		Name:            "Producto " + sku,
		CostPrice:       decimal.NewFromInt(price / 2),
		SalePrice:       decimal.NewFromInt(price),
		InitialQuantity: qty,
	})
	require.Equal(a.t, http.StatusCreated, resp.StatusCode, string(body))
	var p dto.ProductResponse
	require.NoError(a.t, json.Unmarshal(body, &p))
	return p
}

func TestRouter_RequiereToken(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	resp, err := api.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProducts_CrearYConsultarSaldo(t *testing.T) {
	api := newTestAPI(t)
	p := api.createProduct("CAFE-500", 100, 10)
	assert.Equal(t, 10, p.CurrentQuantity)
	assert.Equal(t, "ACTIVE", p.Status)

	resp, body := api.do(http.MethodGet, "/api/products/"+p.ID+"/balance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var bal dto.BalanceResponse
	require.NoError(t, json.Unmarshal(body, &bal))
	assert.Equal(t, 10, bal.Quantity)

	resp, body = api.do(http.MethodGet, "/api/products/"+p.ID+"/movements", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hist dto.MovementListResponse
	require.NoError(t, json.Unmarshal(body, &hist))
	require.Len(t, hist.Items, 1)
	assert.Equal(t, "INBOUND", hist.Items[0].Kind)
	assert.Equal(t, 10, hist.Items[0].QuantityAfter)
}

func TestProducts_SKUDuplicado_Retorna409(t *testing.T) {
	api := newTestAPI(t)
	api.createProduct("DUP-1", 10, 0)

	resp, body := api.do(http.MethodPost, "/api/products", dto.CreateProductRequest{
		SKU: "DUP-1", Name: "otro", SalePrice: decimal.NewFromInt(5),
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "DUPLICATE")
}

func TestProducts_NoExiste_Retorna404(t *testing.T) {
	api := newTestAPI(t)
	resp, body := api.do(http.MethodGet, "/api/products/no-existe", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "PRODUCT_NOT_FOUND")
}

func TestProducts_LowStockNoChocaConID(t *testing.T) {
	api := newTestAPI(t)
	resp, body := api.do(http.MethodPost, "/api/products", dto.CreateProductRequest{
		SKU: "LOW-1", Name: "bajo", SalePrice: decimal.NewFromInt(5), InitialQuantity: 1, MinQuantity: 5,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = api.do(http.MethodGet, "/api/products/low-stock", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "LOW-1")
}

func TestInventory_AppendMovimiento(t *testing.T) {
	api := newTestAPI(t)
	p := api.createProduct("MOV-1", 10, 5)

	resp, body := api.do(http.MethodPost, "/api/inventory/movements", dto.AppendMovementRequest{
		ProductID: p.ID, Kind: "LOSS", Quantity: 2, Reason: "rotura",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var m dto.MovementResponse
	require.NoError(t, json.Unmarshal(body, &m))
	assert.Equal(t, -2, m.Delta)
	assert.Equal(t, 5, m.QuantityBefore)
	assert.Equal(t, 3, m.QuantityAfter)
	assert.Equal(t, testUserID, m.ActorID)

	// SALE solo vía venta
	resp, _ = api.do(http.MethodPost, "/api/inventory/movements", dto.AppendMovementRequest{
		ProductID: p.ID, Kind: "SALE", Quantity: 1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// más de lo disponible
	resp, body = api.do(http.MethodPost, "/api/inventory/movements", dto.AppendMovementRequest{
		ProductID: p.ID, Kind: "OUTBOUND", Quantity: 4,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "INSUFFICIENT_STOCK")

	// producto desconocido
	resp, body = api.do(http.MethodPost, "/api/inventory/movements", dto.AppendMovementRequest{
		ProductID: "00000000-0000-0000-0000-000000000000", Kind: "INBOUND", Quantity: 1,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "PRODUCT_NOT_FOUND")

	resp, body = api.do(http.MethodGet, "/api/products/"+p.ID+"/reconcile", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec dto.ReconcileResponse
	require.NoError(t, json.Unmarshal(body, &rec))
	assert.True(t, rec.Consistent)
	assert.Equal(t, 3, rec.LedgerSum)
}

func TestSales_PublicarConPromocionYAnular(t *testing.T) {
	api := newTestAPI(t)
	p := api.createProduct("PROMO-1", 100, 10)

	resp, body := api.do(http.MethodPost, "/api/promotions", dto.CreatePromotionRequest{
		Name:          "10% café",
		DiscountKind:  "PERCENTAGE",
		DiscountValue: decimal.NewFromInt(10),
		StartDate:     time.Now().Add(-time.Hour),
		EndDate:       time.Now().Add(24 * time.Hour),
		ProductIDs:    []string{p.ID},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = api.do(http.MethodGet, "/api/promotions/resolve?product_id="+p.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var quote dto.ResolveResponse
	require.NoError(t, json.Unmarshal(body, &quote))
	require.NotNil(t, quote.Promotion)
	assert.True(t, quote.DiscountedPrice.Equal(decimal.NewFromInt(90)))

	resp, body = api.do(http.MethodPost, "/api/sales", dto.PostSaleRequest{
		Items: []dto.PostSaleItemRequest{{ProductID: p.ID, Quantity: 3}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var sale dto.SaleResponse
	require.NoError(t, json.Unmarshal(body, &sale))
	assert.Equal(t, testUserID, sale.SalespersonID)
	assert.Equal(t, "CASH", sale.PaymentMethod)
	require.Len(t, sale.Items, 1)
	assert.True(t, sale.Items[0].UnitPrice.Equal(decimal.NewFromInt(90)))
	assert.True(t, sale.FinalTotal.Equal(decimal.NewFromInt(270)))

	resp, body = api.do(http.MethodGet, "/api/products/"+p.ID+"/balance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var bal dto.BalanceResponse
	require.NoError(t, json.Unmarshal(body, &bal))
	assert.Equal(t, 7, bal.Quantity)

	req := httptest.NewRequest(http.MethodGet, "/api/sales/"+sale.ID+"/receipt", nil)
	req.Header.Set("Authorization", api.auth)
	rresp, err := api.app.Test(req, -1)
	require.NoError(t, err)
	defer rresp.Body.Close()
	assert.Equal(t, http.StatusOK, rresp.StatusCode)
	assert.Equal(t, "application/pdf", rresp.Header.Get("Content-Type"))
	assert.Contains(t, rresp.Header.Get("Content-Disposition"), "recibo_")

	resp, body = api.do(http.MethodPost, "/api/sales/"+sale.ID+"/cancel", dto.CancelSaleRequest{Reason: "devolución"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), "CANCELLED")

	resp, body = api.do(http.MethodPost, "/api/sales/"+sale.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "SALE_ALREADY_CANCELLED")
}

func TestSales_StockInsuficiente_Retorna409ConDetalle(t *testing.T) {
	api := newTestAPI(t)
	p := api.createProduct("POCO-1", 10, 2)

	resp, body := api.do(http.MethodPost, "/api/sales", dto.PostSaleRequest{
		Items: []dto.PostSaleItemRequest{{ProductID: p.ID, Quantity: 5}},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var e dto.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "INSUFFICIENT_STOCK", e.Code)
	assert.EqualValues(t, 2, e.Details["available"])
	assert.EqualValues(t, 5, e.Details["requested"])
}

func TestSales_VentaVacia_Retorna400(t *testing.T) {
	api := newTestAPI(t)
	resp, body := api.do(http.MethodPost, "/api/sales", dto.PostSaleRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "EMPTY_SALE")
}

func TestSales_ConflictosAgotanReintentos_Retorna503(t *testing.T) {
	api := newTestAPI(t)
	p := api.createProduct("RETRY-1", 10, 5)
	api.store.InjectConflicts(3)

	resp, body := api.do(http.MethodPost, "/api/sales", dto.PostSaleRequest{
		Items: []dto.PostSaleItemRequest{{ProductID: p.ID, Quantity: 1}},
	})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(body), "ABORTED")
}
