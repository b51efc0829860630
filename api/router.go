package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/olahammed103/Digital-receipt-invoice/internal/export"
	"github.com/olahammed103/Digital-receipt-invoice/internal/sales"
)

// Deps are the services the HTTP API is built on.
type Deps struct {
	Sales    *sales.Service
	Reports  *sales.ReportService
	Exporter *export.Exporter
	Logger   *zap.Logger
}

// NewRouter returns a gin engine with recovery, request logging and every
// ledger route registered.
func NewRouter(deps Deps) *gin.Engine {
	e := gin.New()
	e.Use(gin.Recovery())
	InitRoutes(e, deps)
	return e
}

// InitRoutes registers all ledger endpoints on the given Gin engine.
func InitRoutes(e *gin.Engine, deps Deps) {
	logger := deps.Logger
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	h := NewSalesHandler(deps.Sales, deps.Reports, deps.Exporter, logger)

	e.Use(RequestLogger(logger))

	e.POST("/transactions", h.handleCreateTransaction)
	e.GET("/transactions", h.handleSearchTransactions)
	e.GET("/dashboard", h.handleDashboard)
	e.GET("/receipt/:id", h.handleReceipt)
	e.GET("/export/:format", h.handleExport)

	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
}
