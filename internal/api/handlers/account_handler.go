package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nckmackenzie/atarah-api/internal/services"
	"github.com/nckmackenzie/atarah-api/internal/utils"
)

// AccountHandler handles the chart of accounts.
type AccountHandler struct {
	accountService services.IAccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService services.IAccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

type accountRequest struct {
	Name          string `json:"name" binding:"required"`
	AccountType   string `json:"accountType" binding:"required"`
	IsSubcategory bool   `json:"isSubcategory"`
	ParentID      string `json:"parentId"`
	AccountNo     string `json:"accountNo"`
	IsBank        bool   `json:"isBank"`
	Description   string `json:"description"`
	Active        *bool  `json:"active"`
}

func (r accountRequest) toInput(c *gin.Context) (services.AccountInput, bool) {
	input := services.AccountInput{
		Name:          r.Name,
		AccountType:   r.AccountType,
		IsSubcategory: r.IsSubcategory,
		AccountNo:     r.AccountNo,
		IsBank:        r.IsBank,
		Description:   r.Description,
		Active:        r.Active,
	}
	if r.ParentID != "" {
		parentID, err := utils.ParseSixID(r.ParentID)
		if err != nil {
			badRequest(c, "Invalid parentId format")
			return services.AccountInput{}, false
		}
		input.ParentID = &parentID
	}
	return input, true
}

// List handles GET /v1/accounts?type=.
func (h *AccountHandler) List(c *gin.Context) {
	accounts, err := h.accountService.List(c.Request.Context(), c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": accounts})
}

// Get handles GET /v1/accounts/:id.
func (h *AccountHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	account, err := h.accountService.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// Create handles POST /v1/accounts.
func (h *AccountHandler) Create(c *gin.Context) {
	var req accountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name and accountType are required")
		return
	}
	input, ok := req.toInput(c)
	if !ok {
		return
	}
	account, err := h.accountService.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

// Update handles PUT /v1/accounts/:id.
func (h *AccountHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req accountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name and accountType are required")
		return
	}
	input, ok := req.toInput(c)
	if !ok {
		return
	}
	account, err := h.accountService.Update(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// Delete handles DELETE /v1/accounts/:id.
func (h *AccountHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.accountService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
