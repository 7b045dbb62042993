package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nckmackenzie/atarah-api/internal/services"
)

// ClientHandler handles client (customer) management.
type ClientHandler struct {
	clientService services.IClientService
}

// NewClientHandler creates a new ClientHandler.
func NewClientHandler(clientService services.IClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

type clientRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
	Address string `json:"address"`
	KraPin  string `json:"kraPin"`
	Active  *bool  `json:"active"`
}

func (r clientRequest) toInput() services.ClientInput {
	return services.ClientInput{
		Name:    r.Name,
		Email:   r.Email,
		Contact: r.Contact,
		Address: r.Address,
		KraPin:  r.KraPin,
		Active:  r.Active,
	}
}

// List handles GET /v1/clients?search=&active=.
func (h *ClientHandler) List(c *gin.Context) {
	clients, err := h.clientService.List(c.Request.Context(),
		c.Query("search"), c.Query("active") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": clients})
}

// Get handles GET /v1/clients/:id.
func (h *ClientHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	client, err := h.clientService.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// Create handles POST /v1/clients.
func (h *ClientHandler) Create(c *gin.Context) {
	var req clientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name is required")
		return
	}
	client, err := h.clientService.Create(c.Request.Context(), req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

// Update handles PUT /v1/clients/:id.
func (h *ClientHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req clientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name is required")
		return
	}
	client, err := h.clientService.Update(c.Request.Context(), id, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// Delete handles DELETE /v1/clients/:id.
func (h *ClientHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.clientService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
