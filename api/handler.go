package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/olahammed103/Digital-receipt-invoice/internal/export"
	"github.com/olahammed103/Digital-receipt-invoice/internal/sales"
)

// maxRecordRetries bounds how often a create is retried after losing an
// invoice number race.
const maxRecordRetries = 3

// salesHandler holds the ledger services and implements HTTP handlers for them.
type salesHandler struct {
	salesService  *sales.Service
	reportService *sales.ReportService
	exporter      *export.Exporter
	logger        *zap.Logger
	newBackOff    func() backoff.BackOff
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(salesService *sales.Service, reportService *sales.ReportService, exporter *export.Exporter, logger *zap.Logger) *salesHandler {
	return &salesHandler{
		salesService:  salesService,
		reportService: reportService,
		exporter:      exporter,
		logger:        logger,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 10 * time.Millisecond
			b.MaxInterval = 200 * time.Millisecond
			b.MaxElapsedTime = 2 * time.Second
			return b
		},
	}
}

type createTransactionRequest struct {
	Customer     string      `json:"customer" form:"customer"`
	CustomerName string      `json:"customer_name" form:"customer_name"`
	Items        string      `json:"items" form:"items"`
	Amount       json.Number `json:"amount" form:"amount"`
}

func (r createTransactionRequest) customer() string {
	if r.Customer != "" {
		return r.Customer
	}
	return r.CustomerName
}

// searchMetadata summarises the rows returned by a search.
type searchMetadata struct {
	Quantity    int             `json:"quantity"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

func (h *salesHandler) log(ctx *gin.Context) *zap.Logger {
	return h.logger.With(zap.String("request_id", ctx.GetString(requestIDKey)))
}

// handleCreateTransaction handles the POST /transactions endpoint.
func (h *salesHandler) handleCreateTransaction(ctx *gin.Context) {
	var req createTransactionRequest
	if err := ctx.ShouldBind(&req); err != nil {
		h.log(ctx).Warn("failed to bind request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	tx, err := h.record(ctx.Request.Context(), req.customer(), req.Items, req.Amount.String())
	if err != nil {
		h.writeError(ctx, err, "failed to record transaction")
		return
	}

	ctx.JSON(http.StatusCreated, tx)
}

// record retries lost invoice number races with a freshly computed number.
func (h *salesHandler) record(ctx context.Context, customer, items, amount string) (*sales.Transaction, error) {
	var tx *sales.Transaction
	op := func() error {
		var err error
		tx, err = h.salesService.RecordTransaction(ctx, customer, items, amount)
		if err != nil && !errors.Is(err, sales.ErrConstraintViolation) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(h.newBackOff(), maxRecordRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return tx, nil
}

// handleSearchTransactions handles GET /transactions?q=&start_date=&end_date=.
func (h *salesHandler) handleSearchTransactions(ctx *gin.Context) {
	query := ctx.Query("q")
	startDate := ctx.Query("start_date")
	endDate := ctx.Query("end_date")

	results, err := h.reportService.Search(ctx.Request.Context(), query, startDate, endDate)
	if err != nil {
		h.writeError(ctx, err, "failed to search transactions")
		return
	}
	if results == nil {
		results = []sales.Transaction{}
	}

	meta := searchMetadata{Quantity: len(results), TotalAmount: decimal.Zero}
	for _, tx := range results {
		meta.TotalAmount = meta.TotalAmount.Add(tx.Amount)
	}

	ctx.JSON(http.StatusOK, gin.H{"results": results, "metadata": meta})
}

// handleDashboard handles GET /dashboard.
func (h *salesHandler) handleDashboard(ctx *gin.Context) {
	d, err := h.reportService.Dashboard(ctx.Request.Context())
	if err != nil {
		h.writeError(ctx, err, "failed to load dashboard")
		return
	}
	if d.Recent == nil {
		d.Recent = []sales.Transaction{}
	}
	ctx.JSON(http.StatusOK, d)
}

// handleReceipt handles GET /receipt/:id.
func (h *salesHandler) handleReceipt(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})
		return
	}

	doc, err := h.exporter.Receipt(ctx.Request.Context(), id)
	if err != nil {
		h.writeError(ctx, err, "failed to render receipt")
		return
	}

	attach(ctx, doc.Filename)
	ctx.Data(http.StatusOK, doc.ContentType, doc.Body)
}

// handleExport handles GET /export/:format for csv and excel.
func (h *salesHandler) handleExport(ctx *gin.Context) {
	format, err := export.ParseFormat(ctx.Param("format"))
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := h.exporter.Table(ctx.Request.Context(), format, &buf); err != nil {
		h.writeError(ctx, err, "failed to export transactions")
		return
	}

	attach(ctx, format.Filename())
	ctx.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

func attach(ctx *gin.Context, filename string) {
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}

// writeError maps ledger errors onto HTTP statuses. Unknown errors are
// logged and reported with a generic message.
func (h *salesHandler) writeError(ctx *gin.Context, err error, message string) {
	var verr *sales.ValidationError
	switch {
	case errors.As(err, &verr):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, sales.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
	case errors.Is(err, sales.ErrConstraintViolation):
		h.log(ctx).Warn("invoice number still taken after retries", zap.Error(err))
		ctx.JSON(http.StatusConflict, gin.H{"error": "invoice number conflict, please retry"})
	default:
		h.log(ctx).Error(message, zap.Error(err))
		_ = ctx.Error(err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}
