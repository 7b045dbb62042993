package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nckmackenzie/atarah-api/internal/services"
	"github.com/nckmackenzie/atarah-api/internal/utils"
)

// ExpenseHandler handles expenses and their receipt attachments.
type ExpenseHandler struct {
	expenseService services.IExpenseService
}

// NewExpenseHandler creates a new ExpenseHandler.
func NewExpenseHandler(expenseService services.IExpenseService) *ExpenseHandler {
	return &ExpenseHandler{expenseService: expenseService}
}

type expenseLineRequest struct {
	AccountID   string `json:"accountId" binding:"required"`
	ProjectID   string `json:"projectId"`
	Amount      string `json:"amount" binding:"required"`
	Description string `json:"description"`
}

type expenseRequest struct {
	ExpenseDate      string               `json:"expenseDate" binding:"required"`
	Payee            string               `json:"payee"`
	PaymentMethod    string               `json:"paymentMethod" binding:"required"`
	PaymentReference string               `json:"paymentReference"`
	Lines            []expenseLineRequest `json:"lines" binding:"required"`
}

func (r expenseRequest) toInput(c *gin.Context) (services.ExpenseInput, bool) {
	fail := func(msg string) (services.ExpenseInput, bool) {
		badRequest(c, msg)
		return services.ExpenseInput{}, false
	}

	expenseDate, err := time.Parse("2006-01-02", r.ExpenseDate)
	if err != nil {
		return fail("expenseDate must be formatted yyyy-mm-dd")
	}

	input := services.ExpenseInput{
		ExpenseDate:      expenseDate,
		Payee:            r.Payee,
		PaymentMethod:    r.PaymentMethod,
		PaymentReference: r.PaymentReference,
	}
	for _, line := range r.Lines {
		accountID, lineErr := utils.ParseSixID(line.AccountID)
		if lineErr != nil {
			return fail("Invalid accountId format")
		}
		lineInput := services.ExpenseLineInput{
			AccountID:   accountID,
			Amount:      line.Amount,
			Description: line.Description,
		}
		if line.ProjectID != "" {
			projectID, projErr := utils.ParseSixID(line.ProjectID)
			if projErr != nil {
				return fail("Invalid projectId format")
			}
			lineInput.ProjectID = &projectID
		}
		input.Lines = append(input.Lines, lineInput)
	}
	return input, true
}

// List handles GET /v1/expenses?from=&to=&projectId=.
func (h *ExpenseHandler) List(c *gin.Context) {
	from, ok := queryDate(c, "from")
	if !ok {
		return
	}
	to, ok := queryDate(c, "to")
	if !ok {
		return
	}
	var projectID *utils.SixID
	if id, ok := queryID(c, "projectId"); !ok {
		return
	} else if id != (utils.SixID{}) {
		projectID = &id
	}

	expenses, err := h.expenseService.List(c.Request.Context(), from, to, projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": expenses})
}

// Get handles GET /v1/expenses/:id.
func (h *ExpenseHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	expense, err := h.expenseService.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, expense)
}

// Create handles POST /v1/expenses.
func (h *ExpenseHandler) Create(c *gin.Context) {
	var req expenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "expenseDate, paymentMethod and lines are required")
		return
	}
	input, ok := req.toInput(c)
	if !ok {
		return
	}
	expense, err := h.expenseService.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, expense)
}

// Update handles PUT /v1/expenses/:id.
func (h *ExpenseHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req expenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "expenseDate, paymentMethod and lines are required")
		return
	}
	input, ok := req.toInput(c)
	if !ok {
		return
	}
	expense, err := h.expenseService.Update(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, expense)
}

// Delete handles DELETE /v1/expenses/:id.
func (h *ExpenseHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.expenseService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type attachmentRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
}

// RequestAttachmentUpload handles POST /v1/expenses/:id/attachments. It
// returns a presigned PUT URL the client uploads the receipt to directly.
func (h *ExpenseHandler) RequestAttachmentUpload(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req attachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "filename and contentType are required")
		return
	}
	uploadURL, attachment, err := h.expenseService.RequestAttachmentUpload(
		c.Request.Context(), id, req.Filename, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"uploadUrl":  uploadURL,
		"attachment": attachment,
	})
}

// RemoveAttachment handles DELETE /v1/expenses/:id/attachments/:attachmentId.
func (h *ExpenseHandler) RemoveAttachment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	attachmentID, ok := pathID(c, "attachmentId")
	if !ok {
		return
	}
	if err := h.expenseService.RemoveAttachment(c.Request.Context(), id, attachmentID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
