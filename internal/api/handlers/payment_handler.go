package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nckmackenzie/atarah-api/internal/services"
	"github.com/nckmackenzie/atarah-api/internal/utils"
)

// PaymentHandler handles invoice payments, single and bulk.
type PaymentHandler struct {
	paymentService services.IPaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService services.IPaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

type paymentRequest struct {
	InvoiceID        string `json:"invoiceId" binding:"required"`
	PaymentDate      string `json:"paymentDate" binding:"required"`
	Amount           string `json:"amount" binding:"required"`
	PaymentMethod    string `json:"paymentMethod" binding:"required"`
	PaymentReference string `json:"paymentReference"`
}

// Create handles POST /v1/payments, a payment against a single invoice.
func (h *PaymentHandler) Create(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invoiceId, paymentDate, amount and paymentMethod are required")
		return
	}
	invoiceID, err := utils.ParseSixID(req.InvoiceID)
	if err != nil {
		badRequest(c, "Invalid invoiceId format")
		return
	}
	paymentDate, err := time.Parse("2006-01-02", req.PaymentDate)
	if err != nil {
		badRequest(c, "paymentDate must be formatted yyyy-mm-dd")
		return
	}

	payment, err := h.paymentService.Create(c.Request.Context(), services.PaymentInput{
		InvoiceID:        invoiceID,
		PaymentDate:      paymentDate,
		Amount:           req.Amount,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

type bulkAllocationRequest struct {
	InvoiceID string `json:"invoiceId" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
}

type bulkPaymentRequest struct {
	ClientID         string                  `json:"clientId" binding:"required"`
	PaymentDate      string                  `json:"paymentDate" binding:"required"`
	Amount           string                  `json:"amount" binding:"required"`
	PaymentMethod    string                  `json:"paymentMethod" binding:"required"`
	PaymentReference string                  `json:"paymentReference"`
	Allocations      []bulkAllocationRequest `json:"allocations"`
}

// CreateBulk handles POST /v1/payments/bulk. Without explicit allocations the
// amount spreads across the client's open invoices oldest first.
func (h *PaymentHandler) CreateBulk(c *gin.Context) {
	var req bulkPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "clientId, paymentDate, amount and paymentMethod are required")
		return
	}
	clientID, err := utils.ParseSixID(req.ClientID)
	if err != nil {
		badRequest(c, "Invalid clientId format")
		return
	}
	paymentDate, err := time.Parse("2006-01-02", req.PaymentDate)
	if err != nil {
		badRequest(c, "paymentDate must be formatted yyyy-mm-dd")
		return
	}

	input := services.BulkPaymentInput{
		ClientID:         clientID,
		PaymentDate:      paymentDate,
		Amount:           req.Amount,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
	}
	for _, alloc := range req.Allocations {
		invoiceID, allocErr := utils.ParseSixID(alloc.InvoiceID)
		if allocErr != nil {
			badRequest(c, "Invalid invoiceId format in allocations")
			return
		}
		input.Allocations = append(input.Allocations, services.BulkAllocationInput{
			InvoiceID: invoiceID,
			Amount:    alloc.Amount,
		})
	}

	payments, err := h.paymentService.CreateBulk(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": payments})
}

// List handles GET /v1/payments?clientId=&from=&to=.
func (h *PaymentHandler) List(c *gin.Context) {
	clientID, ok := queryID(c, "clientId")
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

	payments, err := h.paymentService.List(c.Request.Context(), clientID, from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payments})
}

// Get handles GET /v1/payments/:id.
func (h *PaymentHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	payment, err := h.paymentService.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// Delete handles DELETE /v1/payments/:id. Reversing a payment restores the
// invoice balance and retracts the journal postings.
func (h *PaymentHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.paymentService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
