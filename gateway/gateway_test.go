package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/catalog"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/dashboard"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/repository/memory"
	"github.com/example/storefront/pkg/uploads"
	"github.com/example/storefront/pkg/workflow"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type historyStub struct {
	logs []*repository.AuditLog
}

func (h historyStub) GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*repository.AuditLog, error) {
	return h.logs, nil
}

type harness struct {
	t       *testing.T
	store   *memory.Store
	handler http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zap.NewNop()

	mr := miniredis.RunT(t)
	cache := repository.NewRedisRepository(&config.RedisConfig{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{Name: "storefront-test", Mode: gin.TestMode},
		Uploads: config.UploadsConfig{
			Dir:       filepath.Join(t.TempDir(), "uploads"),
			URLPrefix: "/uploads",
			MaxBytes:  1 << 20,
		},
	}
	images, err := uploads.NewImageStore(&cfg.Uploads, logger)
	require.NoError(t, err)

	store := memory.NewStore()
	hash, err := auth.HashPassword("admin123")
	require.NoError(t, err)
	require.NoError(t, store.CreateAdmin(context.Background(), &models.AdminUser{
		ID:           "admin-1",
		Email:        "admin@store.com",
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		CreatedAt:    time.Now(),
	}))

	g := NewGateway(cfg, logger, Services{
		Catalog:   catalog.NewService(store, logger),
		Orders:    workflow.NewEngine(store, store, store, logger),
		Dashboard: dashboard.NewService(store, store, 10, logger),
		Auth:      auth.NewService(store, cache, auth.NewTokenIssuer("test-secret", time.Hour), logger),
		Images:    images,
		History: historyStub{logs: []*repository.AuditLog{
			{ID: "log-1", Service: "orders", Action: string(models.EventOrderPlaced)},
		}},
	})

	return &harness{t: t, store: store, handler: g.Handler()}
}

func (h *harness) serve(req *http.Request, token string) (int, map[string]any) {
	h.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec.Code, body
}

func (h *harness) do(method, path string, payload any, token string) (int, map[string]any) {
	h.t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(h.t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	return h.serve(req, token)
}

func (h *harness) login() string {
	h.t.Helper()
	code, body := h.do(http.MethodPost, "/api/auth/login", gin.H{"email": "admin@store.com", "password": "admin123"}, "")
	require.Equal(h.t, http.StatusOK, code, body)
	return body["token"].(string)
}

func (h *harness) addProduct(name, price string, stock int) *models.Product {
	h.t.Helper()
	now := time.Now()
	p := &models.Product{
		ID:          uuid.NewString(),
		Name:        name,
		Description: name + " description",
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
		Category:    "Electronics",
		Status:      models.ProductActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(h.t, h.store.CreateProduct(context.Background(), p))
	return p
}

func (h *harness) stockOf(id string) int {
	h.t.Helper()
	p, err := h.store.FindProduct(context.Background(), id)
	require.NoError(h.t, err)
	return p.Stock
}

func checkoutPayload(items ...gin.H) gin.H {
	return gin.H{
		"customerName":    "Sam Carter",
		"email":           "sam@example.com",
		"contactNumber":   "555-0100",
		"shippingAddress": "1 Main St",
		"items":           items,
	}
}

func TestCheckoutEndpoint(t *testing.T) {
	h := newHarness(t)
	p := h.addProduct("Headphones", "100", 5)

	code, body := h.do(http.MethodPost, "/api/orders/customer", checkoutPayload(gin.H{"productId": p.ID, "quantity": 3}), "")
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, true, body["success"])

	order := body["order"].(map[string]any)
	assert.Equal(t, 330.0, order["total"])
	assert.Equal(t, "New", order["status"])
	items := order["items"].([]any)
	require.Len(t, items, 1)
	line := items[0].(map[string]any)
	assert.Equal(t, 100.0, line["unitPrice"])
	assert.Equal(t, "Headphones", line["product"].(map[string]any)["name"])
	assert.Equal(t, 2, h.stockOf(p.ID))

	t.Run("insufficient stock", func(t *testing.T) {
		code, body := h.do(http.MethodPost, "/api/orders/customer", checkoutPayload(gin.H{"productId": p.ID, "quantity": 3}), "")
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Insufficient stock for Headphones. Available: 2", body["message"])
		assert.Equal(t, 2, h.stockOf(p.ID))
	})

	t.Run("unknown product", func(t *testing.T) {
		code, body := h.do(http.MethodPost, "/api/orders/customer", checkoutPayload(gin.H{"productId": "missing", "quantity": 1}), "")
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "Product missing not found", body["message"])
	})
}

func TestCheckoutEndpointValidation(t *testing.T) {
	h := newHarness(t)

	t.Run("lists every problem", func(t *testing.T) {
		code, body := h.do(http.MethodPost, "/api/orders/customer", gin.H{
			"email": "not-an-email",
			"items": []gin.H{{"quantity": 0}, {"productId": "p-2", "quantity": 1.5}},
		}, "")
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, []any{
			"Customer name is required",
			"Invalid email format",
			"Contact number is required",
			"Shipping address is required",
			"Item 1: Product ID is required",
			"Item 1: Quantity is required and must be a positive number",
			"Item 2: Quantity is required and must be a positive number",
		}, body["errors"])
	})

	t.Run("empty order", func(t *testing.T) {
		code, body := h.do(http.MethodPost, "/api/orders/customer", checkoutPayload(), "")
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, []any{"Order must contain at least one item"}, body["errors"])
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/orders/customer", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		code, body := h.serve(req, "")
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Invalid request body", body["message"])
	})
}

func TestOrderViews(t *testing.T) {
	h := newHarness(t)
	p := h.addProduct("Keyboard", "79.99", 10)

	_, body := h.do(http.MethodPost, "/api/orders/customer", checkoutPayload(gin.H{"productId": p.ID, "quantity": 1}), "")
	id := body["order"].(map[string]any)["id"].(string)

	code, body := h.do(http.MethodGet, "/api/orders/customer/"+id, nil, "")
	require.Equal(t, http.StatusOK, code)
	product := body["order"].(map[string]any)["items"].([]any)[0].(map[string]any)["product"].(map[string]any)
	assert.Equal(t, 79.99, product["price"])
	assert.NotContains(t, product, "stock")

	code, body = h.do(http.MethodGet, "/api/orders/admin/"+id, nil, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "No token, authorization denied", body["message"])

	token := h.login()
	code, body = h.do(http.MethodGet, "/api/orders/admin/"+id, nil, token)
	require.Equal(t, http.StatusOK, code)
	product = body["order"].(map[string]any)["items"].([]any)[0].(map[string]any)["product"].(map[string]any)
	assert.Equal(t, 9.0, product["stock"])

	code, body = h.do(http.MethodGet, "/api/orders/customer/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Order not found", body["message"])

	code, body = h.do(http.MethodGet, "/api/orders/admin/"+id+"/history", nil, token)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["history"], 1)
}

func TestOrderStatusEndpoint(t *testing.T) {
	h := newHarness(t)
	token := h.login()
	p := h.addProduct("Monitor", "200", 4)

	_, body := h.do(http.MethodPost, "/api/orders/customer", checkoutPayload(gin.H{"productId": p.ID, "quantity": 3}), "")
	id := body["order"].(map[string]any)["id"].(string)
	path := "/api/orders/admin/" + id + "/status"

	code, body := h.do(http.MethodPatch, path, gin.H{}, token)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Order status is required", body["message"])

	code, body = h.do(http.MethodPatch, path, gin.H{"status": "Lost"}, token)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Status must be one of: New, Processing, Shipped, Delivered, Cancelled", body["message"])

	code, body = h.do(http.MethodPatch, path, gin.H{"status": "Cancelled"}, token)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Cancelled", body["order"].(map[string]any)["status"])
	assert.Equal(t, 4, h.stockOf(p.ID))

	// Someone else buys the restored stock, so the order cannot come back.
	h.do(http.MethodPost, "/api/orders/customer", checkoutPayload(gin.H{"productId": p.ID, "quantity": 2}), "")
	code, body = h.do(http.MethodPatch, path, gin.H{"status": "Processing"}, token)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Cannot reactivate order. Insufficient stock for Monitor", body["message"])
	assert.Equal(t, 2, h.stockOf(p.ID))
}

func TestAdminOrderListing(t *testing.T) {
	h := newHarness(t)
	token := h.login()
	p := h.addProduct("Mouse", "25", 50)
	for i := 0; i < 3; i++ {
		h.do(http.MethodPost, "/api/orders/customer", checkoutPayload(gin.H{"productId": p.ID, "quantity": 1}), "")
	}

	code, body := h.do(http.MethodGet, "/api/orders/admin?limit=2&status=New", nil, token)
	require.Equal(t, http.StatusOK, code, body)
	assert.Len(t, body["orders"], 2)
	assert.Equal(t, 2.0, body["totalPages"])
	assert.Equal(t, 1.0, body["currentPage"])
	assert.Equal(t, 3.0, body["total"])

	code, body = h.do(http.MethodGet, "/api/orders/admin?status=Shipped", nil, token)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, body["orders"])

	code, body = h.do(http.MethodGet, "/api/orders/admin?endDate=yesterday", nil, token)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid endDate", body["message"])
}

func TestOrderFilterDates(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		query    string
		from, to time.Time
	}{
		{
			name:  "date-only end covers the whole day",
			query: "startDate=2026-02-01&endDate=2026-03-01",
			from:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			to:    time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "timestamp end is inclusive",
			query: "endDate=2026-03-01T10:00:00Z",
			to:    time.Date(2026, 3, 1, 10, 0, 0, int(time.Millisecond), time.UTC),
		},
		{
			name:  "timestamp start",
			query: "startDate=2026-02-01T08:30:00Z",
			from:  time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)

			filter, err := orderFilter(c, now)
			require.NoError(t, err)
			assert.True(t, tt.from.Equal(filter.From), "from: %v", filter.From)
			assert.True(t, tt.to.Equal(filter.To), "to: %v", filter.To)
		})
	}
}

func TestCheckoutQuantityBound(t *testing.T) {
	h := newHarness(t)
	p := h.addProduct("Cable", "5", 10)

	code, body := h.do(http.MethodPost, "/api/orders/customer", checkoutPayload(gin.H{"productId": p.ID, "quantity": 1e19}), "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []any{"Item 1: Quantity must be at most 2147483647"}, body["errors"])
	assert.Equal(t, 10, h.stockOf(p.ID))
}

func TestAuthEndpoints(t *testing.T) {
	h := newHarness(t)

	code, body := h.do(http.MethodPost, "/api/auth/login", gin.H{"email": "admin@store.com", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid credentials", body["message"])

	code, body = h.do(http.MethodPost, "/api/auth/login", gin.H{"email": "bad"}, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []any{"Invalid email format", "Password is required"}, body["errors"])

	token := h.login()
	code, body = h.do(http.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"id": "admin-1", "email": "admin@store.com", "role": "admin"}, body["admin"])

	code, body = h.do(http.MethodPost, "/api/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Logged out successfully", body["message"])

	code, body = h.do(http.MethodGet, "/api/auth/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Token has been revoked", body["message"])

	code, body = h.do(http.MethodGet, "/api/dashboard", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Token is not valid", body["message"])
}

func productForm(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if image != nil {
		part, err := w.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func TestProductEndpoints(t *testing.T) {
	h := newHarness(t)
	token := h.login()

	fields := map[string]string{
		"name":        "Desk Lamp",
		"description": "LED lamp",
		"price":       "49.99",
		"stock":       "7",
		"category":    "Home",
	}

	t.Run("multipart create stores the image", func(t *testing.T) {
		form, contentType := productForm(t, fields, pngHeader)
		req := httptest.NewRequest(http.MethodPost, "/api/products/admin", form)
		req.Header.Set("Content-Type", contentType)

		code, body := h.serve(req, token)
		require.Equal(t, http.StatusCreated, code, body)
		product := body["product"].(map[string]any)
		assert.Equal(t, 49.99, product["price"])
		assert.Equal(t, "Active", product["status"])

		url := product["imageUrl"].(string)
		require.True(t, strings.HasPrefix(url, "/uploads/"), url)
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects oversized images", func(t *testing.T) {
		big := append(append([]byte{}, pngHeader...), make([]byte, 1<<20)...)
		form, contentType := productForm(t, fields, big)
		req := httptest.NewRequest(http.MethodPost, "/api/products/admin", form)
		req.Header.Set("Content-Type", contentType)

		code, body := h.serve(req, token)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "File size too large. Maximum 1MB allowed.", body["message"])
	})

	t.Run("json create validates price", func(t *testing.T) {
		code, body := h.do(http.MethodPost, "/api/products/admin", gin.H{
			"name": "Chair", "price": -3, "stock": 1, "category": "Home",
		}, token)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Product price is required and must be a valid positive number", body["message"])
	})

	t.Run("requires a token", func(t *testing.T) {
		code, _ := h.do(http.MethodPost, "/api/products/admin", gin.H{"name": "Chair"}, "")
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	p := h.addProduct("Speaker", "59.90", 3)

	t.Run("update, deactivate and delete", func(t *testing.T) {
		code, body := h.do(http.MethodPut, "/api/products/admin/"+p.ID, gin.H{
			"name": "Speaker v2", "description": "Louder", "price": "64.90", "stock": 8, "category": "Audio",
		}, token)
		require.Equal(t, http.StatusOK, code, body)
		assert.Equal(t, "Speaker v2", body["product"].(map[string]any)["name"])

		code, body = h.do(http.MethodPatch, "/api/products/admin/"+p.ID+"/status", gin.H{"status": "Retired"}, token)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Invalid status", body["message"])

		code, _ = h.do(http.MethodPatch, "/api/products/admin/"+p.ID+"/status", gin.H{"status": "Inactive"}, token)
		require.Equal(t, http.StatusOK, code)

		code, body = h.do(http.MethodGet, "/api/products/customer/"+p.ID, nil, "")
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "Product not found", body["message"])

		code, body = h.do(http.MethodDelete, "/api/products/admin/"+p.ID, nil, token)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "Product deleted successfully", body["message"])

		code, _ = h.do(http.MethodGet, "/api/products/admin/"+p.ID, nil, token)
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("customer listing and categories", func(t *testing.T) {
		code, body := h.do(http.MethodGet, "/api/products/customer?search=lamp", nil, "")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, 1.0, body["total"])

		code, body = h.do(http.MethodGet, "/api/products/categories", nil, "")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, []any{"Home"}, body["categories"])
	})
}

func TestDashboardEndpoint(t *testing.T) {
	h := newHarness(t)
	token := h.login()
	p := h.addProduct("Cable", "10", 12)
	h.do(http.MethodPost, "/api/orders/customer", checkoutPayload(gin.H{"productId": p.ID, "quantity": 3}), "")

	code, body := h.do(http.MethodGet, "/api/dashboard", nil, token)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, map[string]any{
		"todayOrders":      1.0,
		"todayRevenue":     33.0,
		"lowStockProducts": 1.0,
		"totalRevenue":     33.0,
		"totalOrders":      1.0,
		"pendingOrders":    1.0,
	}, body["stats"])
}

func TestHealthEndpoint(t *testing.T) {
	h := newHarness(t)
	code, body := h.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.NotContains(t, body, "success")
}
