package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"export-import-service/internal/models"
	"export-import-service/internal/service"
	"export-import-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports whether the storage backend is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	ledger     *service.LedgerService
	dashboards *service.DashboardService
	exports    *service.ExportService
	products   *service.ProductService
	store      Pinger
	logger     *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	ledger *service.LedgerService,
	dashboards *service.DashboardService,
	exports *service.ExportService,
	products *service.ProductService,
	store Pinger,
) *Handler {
	return &Handler{
		ledger:     ledger,
		dashboards: dashboards,
		exports:    exports,
		products:   products,
		store:      store,
		logger:     util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))

	router.GET("/", h.root)
	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/import/:id", h.recordImport)
	router.GET("/imports", h.listImports)
	router.DELETE("/imports/:id", h.deleteImport)
	router.GET("/dashboard", h.dashboard)

	router.GET("/exports", h.listExports)
	router.POST("/exports", h.createExport)
	router.PUT("/exports/:id", h.updateExport)
	router.DELETE("/exports/:id", h.deleteExport)

	router.GET("/products", h.listProducts)
	router.GET("/search", h.searchProducts)
	router.GET("/latest-products", h.latestProducts)
	router.GET("/products/:id", h.getProduct)
	router.POST("/products", h.createProduct)
	router.PATCH("/products/:id", h.updateProduct)
	router.DELETE("/products/:id", h.deleteProduct)
}

func (h *Handler) root(c *gin.Context) {
	c.String(http.StatusOK, "export-import server is running")
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when the store answers a ping
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// recordImport handles POST /import/:id
func (h *Handler) recordImport(c *gin.Context) {
	var req service.ImportRequest
	if !bind(c, &req) {
		return
	}
	req.ProductID = c.Param("id")
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	receipt, err := h.ledger.RecordImport(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, receipt)
}

func (h *Handler) listImports(c *gin.Context) {
	records, err := h.ledger.ListImports(c.Request.Context(), c.Query("email"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) deleteImport(c *gin.Context) {
	if err := h.ledger.DeleteImport(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) dashboard(c *gin.Context) {
	dash, err := h.dashboards.ComputeDashboard(c.Request.Context(), c.Query("email"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

func (h *Handler) listExports(c *gin.Context) {
	records, err := h.exports.ListExports(c.Request.Context(), c.Query("email"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) createExport(c *gin.Context) {
	var rec models.ExportRecord
	if !bind(c, &rec) {
		return
	}
	rec.ID = ""
	rec.CreatedAt, rec.UpdatedAt = time.Time{}, time.Time{}

	created, err := h.exports.CreateExport(c.Request.Context(), &rec)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) updateExport(c *gin.Context) {
	var patch models.ExportPatch
	if !bind(c, &patch) {
		return
	}

	res, err := h.exports.UpdateExport(c.Request.Context(), c.Param("id"), &patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) deleteExport(c *gin.Context) {
	res, err := h.exports.DeleteExport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.products.ListProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) searchProducts(c *gin.Context) {
	products, err := h.products.SearchProducts(c.Request.Context(), c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) latestProducts(c *gin.Context) {
	products, err := h.products.LatestProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.products.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) createProduct(c *gin.Context) {
	var product models.Product
	if !bind(c, &product) {
		return
	}
	product.ID = ""
	product.CreatedAt, product.UpdatedAt = time.Time{}, time.Time{}

	created, err := h.products.CreateProduct(c.Request.Context(), &product)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) updateProduct(c *gin.Context) {
	var patch models.ProductPatch
	if !bind(c, &patch) {
		return
	}

	product, err := h.products.UpdateProduct(c.Request.Context(), c.Param("id"), &patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	res, err := h.products.DeleteProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

// requestLogger logs one line per request
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
