package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nckmackenzie/atarah-api/internal/services"
)

// ReportHandler handles reporting and the dashboard.
type ReportHandler struct {
	reportService services.IReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportService services.IReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// ClientStatement handles GET /v1/reports/statement/:clientId?from=&to=.
func (h *ReportHandler) ClientStatement(c *gin.Context) {
	clientID, ok := pathID(c, "clientId")
	if !ok {
		return
	}
	from, ok := queryDate(c, "from")
	if !ok {
		return
	}
	to, ok := queryDate(c, "to")
	if !ok {
		return
	}
	statement, err := h.reportService.ClientStatement(c.Request.Context(), clientID, from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, statement)
}

// OutstandingInvoices handles GET /v1/reports/outstanding.
func (h *ReportHandler) OutstandingInvoices(c *gin.Context) {
	rows, err := h.reportService.OutstandingInvoices(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// CollectedPayments handles GET /v1/reports/collections?from=&to=, grouped by
// payment method.
func (h *ReportHandler) CollectedPayments(c *gin.Context) {
	h.summary(c, h.reportService.CollectedPayments)
}

// ExpenseSummary handles GET /v1/reports/expenses?from=&to=, grouped by
// expense account.
func (h *ReportHandler) ExpenseSummary(c *gin.Context) {
	h.summary(c, h.reportService.ExpenseSummary)
}

// IncomeSummary handles GET /v1/reports/income?from=&to=, grouped by client.
func (h *ReportHandler) IncomeSummary(c *gin.Context) {
	h.summary(c, h.reportService.IncomeSummary)
}

// Dashboard handles GET /v1/dashboard.
func (h *ReportHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.reportService.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (h *ReportHandler) summary(c *gin.Context, query func(ctx context.Context, from, to time.Time) ([]services.SummaryRow, error)) {
	from, ok := queryDate(c, "from")
	if !ok {
		return
	}
	to, ok := queryDate(c, "to")
	if !ok {
		return
	}
	rows, err := query(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}
