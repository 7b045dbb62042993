package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nckmackenzie/atarah-api/internal/services"
	"github.com/nckmackenzie/atarah-api/internal/utils"
)

// JournalHandler handles manual journal entries.
type JournalHandler struct {
	journalService services.IJournalService
}

// NewJournalHandler creates a new JournalHandler.
func NewJournalHandler(journalService services.IJournalService) *JournalHandler {
	return &JournalHandler{journalService: journalService}
}

type journalLineRequest struct {
	AccountID   string `json:"accountId" binding:"required"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Description string `json:"description"`
}

type journalRequest struct {
	TransactionDate string               `json:"transactionDate" binding:"required"`
	Lines           []journalLineRequest `json:"lines" binding:"required"`
}

// Create handles POST /v1/journals. Debits and credits must balance exactly.
func (h *JournalHandler) Create(c *gin.Context) {
	var req journalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "transactionDate and lines are required")
		return
	}
	transactionDate, err := time.Parse("2006-01-02", req.TransactionDate)
	if err != nil {
		badRequest(c, "transactionDate must be formatted yyyy-mm-dd")
		return
	}

	input := services.JournalInput{TransactionDate: transactionDate}
	for _, line := range req.Lines {
		accountID, lineErr := utils.ParseSixID(line.AccountID)
		if lineErr != nil {
			badRequest(c, "Invalid accountId format")
			return
		}
		input.Lines = append(input.Lines, services.JournalLineInput{
			AccountID:   accountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}

	entry, err := h.journalService.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// List handles GET /v1/journals?from=&to=.
func (h *JournalHandler) List(c *gin.Context) {
	from, ok := queryDate(c, "from")
	if !ok {
		return
	}
	to, ok := queryDate(c, "to")
	if !ok {
		return
	}
	entries, err := h.journalService.List(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

// Get handles GET /v1/journals/:id.
func (h *JournalHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	entry, err := h.journalService.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Delete handles DELETE /v1/journals/:id. Only manual entries can be deleted;
// system postings are retracted through their source document.
func (h *JournalHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.journalService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
