package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nckmackenzie/atarah-api/internal/services"
)

// UserHandler handles admin user management.
type UserHandler struct {
	userService services.IUserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService services.IUserService) *UserHandler {
	return &UserHandler{userService: userService}
}

type userRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Contact  string `json:"contact"`
	UserType string `json:"userType" binding:"required"`
	Password string `json:"password"`
}

// List handles GET /v1/admin/users.
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.userService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users})
}

// Get handles GET /v1/admin/users/:id.
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	user, err := h.userService.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Create handles POST /v1/admin/users.
func (h *UserHandler) Create(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name, email and userType are required")
		return
	}
	user, err := h.userService.Create(c.Request.Context(), services.UserInput{
		Name:     req.Name,
		Email:    req.Email,
		Contact:  req.Contact,
		UserType: req.UserType,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Update handles PUT /v1/admin/users/:id.
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name, email and userType are required")
		return
	}
	user, err := h.userService.Update(c.Request.Context(), id, services.UserInput{
		Name:     req.Name,
		Email:    req.Email,
		Contact:  req.Contact,
		UserType: req.UserType,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Delete handles DELETE /v1/admin/users/:id.
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actingUserID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.userService.Delete(c.Request.Context(), id, actingUserID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
