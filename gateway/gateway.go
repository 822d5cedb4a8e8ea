// Package gateway exposes the storefront services over HTTP with gin.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/catalog"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/dashboard"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/uploads"
	"github.com/example/storefront/pkg/workflow"
)

// HistoryReader returns the recorded events of an order, newest first.
type HistoryReader interface {
	GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*repository.AuditLog, error)
}

// Services are the handlers' dependencies. History and Metrics are optional.
type Services struct {
	Catalog   *catalog.Service
	Orders    *workflow.Engine
	Dashboard *dashboard.Service
	Auth      *auth.Service
	Images    *uploads.ImageStore
	History   HistoryReader
	Metrics   http.Handler
}

type Gateway struct {
	config   *config.Config
	services Services
	logger   *zap.Logger
	router   *gin.Engine
	server   *http.Server
}

func NewGateway(cfg *config.Config, logger *zap.Logger, services Services) *Gateway {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	logger = logger.Named("gateway")
	registerValidation()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))
	router.Use(routeMiddleware())

	g := &Gateway{
		config:   cfg,
		services: services,
		logger:   logger,
		router:   router,
	}
	g.setupRoutes()
	g.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      g.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return g
}

func (g *Gateway) setupRoutes() {
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if g.services.Metrics != nil {
		g.router.GET("/metrics", gin.WrapH(g.services.Metrics))
	}
	g.router.Static(g.config.Uploads.URLPrefix, g.services.Images.Dir())

	api := g.router.Group("/api")
	admin := g.requireAdmin()

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/login", g.login)
		authRoutes.GET("/me", admin, g.me)
		authRoutes.POST("/logout", admin, g.logout)
	}

	products := api.Group("/products")
	{
		products.GET("/customer", g.listCustomerProducts)
		products.GET("/customer/:id", g.getCustomerProduct)
		products.GET("/categories", g.listCategories)

		adminProducts := products.Group("/admin", admin)
		adminProducts.GET("", g.listAdminProducts)
		adminProducts.GET("/:id", g.getAdminProduct)
		adminProducts.POST("", g.createProduct)
		adminProducts.PUT("/:id", g.updateProduct)
		adminProducts.DELETE("/:id", g.deleteProduct)
		adminProducts.PATCH("/:id/status", g.setProductStatus)
	}

	orders := api.Group("/orders")
	{
		orders.POST("/customer", g.checkout)
		orders.GET("/customer/:id", g.getCustomerOrder)

		adminOrders := orders.Group("/admin", admin)
		adminOrders.GET("", g.listAdminOrders)
		adminOrders.GET("/:id", g.getAdminOrder)
		adminOrders.PATCH("/:id/status", g.updateOrderStatus)
		if g.services.History != nil {
			adminOrders.GET("/:id/history", g.getOrderHistory)
		}
	}

	api.GET("/dashboard", admin, g.dashboardStats)
}

// Handler is the routed gin engine wrapped in server-side tracing.
func (g *Gateway) Handler() http.Handler {
	return otelhttp.NewHandler(g.router, g.config.Server.Name)
}

// Start serves until Shutdown is called.
func (g *Gateway) Start() error {
	g.logger.Info("Gateway starting", zap.String("address", g.server.Addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.server.Shutdown(ctx)
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		logger.Info("HTTP request", fields...)
	}
}

// routeMiddleware names the server span after the matched route.
func routeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if route := c.FullPath(); route != "" {
			span := trace.SpanFromContext(c.Request.Context())
			span.SetName(c.Request.Method + " " + route)
			span.SetAttributes(semconv.HTTPRoute(route))
		}
		c.Next()
	}
}
