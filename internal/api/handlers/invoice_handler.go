package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nckmackenzie/atarah-api/internal/models"
	"github.com/nckmackenzie/atarah-api/internal/services"
	"github.com/nckmackenzie/atarah-api/internal/utils"
)

// InvoiceHandler handles invoice CRUD and outstanding balance lookups.
type InvoiceHandler struct {
	invoiceService services.IInvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(invoiceService services.IInvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

type invoiceLineRequest struct {
	ServiceID string `json:"serviceId" binding:"required"`
	Quantity  string `json:"quantity" binding:"required"`
	Rate      string `json:"rate" binding:"required"`
	Discount  string `json:"discount"`
	Remarks   string `json:"remarks"`
}

type invoiceRequest struct {
	ClientID    string               `json:"clientId" binding:"required"`
	InvoiceDate string               `json:"invoiceDate" binding:"required"`
	Terms       string               `json:"terms"`
	DueDate     string               `json:"dueDate"`
	VatType     string               `json:"vatType" binding:"required"`
	VatRate     string               `json:"vatRate"`
	Items       []invoiceLineRequest `json:"items" binding:"required"`
}

func (r invoiceRequest) toInput(c *gin.Context) (services.InvoiceInput, bool) {
	fail := func(msg string) (services.InvoiceInput, bool) {
		badRequest(c, msg)
		return services.InvoiceInput{}, false
	}

	clientID, err := utils.ParseSixID(r.ClientID)
	if err != nil {
		return fail("Invalid clientId format")
	}
	invoiceDate, err := time.Parse("2006-01-02", r.InvoiceDate)
	if err != nil {
		return fail("invoiceDate must be formatted yyyy-mm-dd")
	}

	input := services.InvoiceInput{
		ClientID:    clientID,
		InvoiceDate: invoiceDate,
		Terms:       r.Terms,
		VatType:     r.VatType,
		VatRate:     r.VatRate,
	}
	if r.DueDate != "" {
		dueDate, dueErr := time.Parse("2006-01-02", r.DueDate)
		if dueErr != nil {
			return fail("dueDate must be formatted yyyy-mm-dd")
		}
		input.DueDate = &dueDate
	}

	for _, line := range r.Items {
		serviceID, lineErr := utils.ParseSixID(line.ServiceID)
		if lineErr != nil {
			return fail("Invalid serviceId format")
		}
		input.Lines = append(input.Lines, services.InvoiceLineInput{
			ServiceID: serviceID,
			Quantity:  line.Quantity,
			Rate:      line.Rate,
			Discount:  line.Discount,
			Remarks:   line.Remarks,
		})
	}
	return input, true
}

// invoiceResponse decorates a stored invoice with its derived status and
// balance.
type invoiceResponse struct {
	*models.Invoice
	Status  models.InvoiceStatus `json:"status"`
	Balance string               `json:"balance"`
}

func toInvoiceResponse(invoice *models.Invoice, now time.Time) invoiceResponse {
	return invoiceResponse{
		Invoice: invoice,
		Status:  invoice.Status(now),
		Balance: invoice.Balance().String(),
	}
}

// List handles GET /v1/invoices?clientId=&status=&from=&to=&search=.
func (h *InvoiceHandler) List(c *gin.Context) {
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

	invoices, err := h.invoiceService.List(c.Request.Context(), services.InvoiceListFilter{
		ClientID: clientID,
		Status:   models.InvoiceStatus(c.Query("status")),
		From:     from,
		To:       to,
		Search:   c.Query("search"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	now := time.Now().UTC()
	data := make([]invoiceResponse, 0, len(invoices))
	for i := range invoices {
		data = append(data, toInvoiceResponse(&invoices[i], now))
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// Get handles GET /v1/invoices/:id.
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	invoice, err := h.invoiceService.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(invoice, time.Now().UTC()))
}

// Create handles POST /v1/invoices.
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req invoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "clientId, invoiceDate, vatType and items are required")
		return
	}
	input, ok := req.toInput(c)
	if !ok {
		return
	}
	invoice, err := h.invoiceService.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toInvoiceResponse(invoice, time.Now().UTC()))
}

// Update handles PUT /v1/invoices/:id.
func (h *InvoiceHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req invoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "clientId, invoiceDate, vatType and items are required")
		return
	}
	input, ok := req.toInput(c)
	if !ok {
		return
	}
	invoice, err := h.invoiceService.Update(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(invoice, time.Now().UTC()))
}

// Delete handles DELETE /v1/invoices/:id.
func (h *InvoiceHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.invoiceService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Outstanding handles GET /v1/invoices/outstanding?clientId=. It feeds the
// payment form with open balances, oldest invoice first.
func (h *InvoiceHandler) Outstanding(c *gin.Context) {
	clientID, ok := queryID(c, "clientId")
	if !ok {
		return
	}
	outstanding, err := h.invoiceService.Outstanding(c.Request.Context(), clientID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": outstanding})
}
