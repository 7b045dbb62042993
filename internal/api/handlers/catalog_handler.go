package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nckmackenzie/atarah-api/internal/services"
)

// CatalogHandler handles the billable service catalog and projects.
type CatalogHandler struct {
	catalogService services.ICatalogService
	projectService services.IProjectService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalogService services.ICatalogService, projectService services.IProjectService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService, projectService: projectService}
}

type serviceItemRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Rate        string `json:"rate" binding:"required"`
	Active      *bool  `json:"active"`
}

// ListServices handles GET /v1/services?active=.
func (h *CatalogHandler) ListServices(c *gin.Context) {
	items, err := h.catalogService.List(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

// CreateService handles POST /v1/services.
func (h *CatalogHandler) CreateService(c *gin.Context) {
	var req serviceItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name and rate are required")
		return
	}
	item, err := h.catalogService.Create(c.Request.Context(), services.ServiceItemInput{
		Name:        req.Name,
		Description: req.Description,
		Rate:        req.Rate,
		Active:      req.Active,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// UpdateService handles PUT /v1/services/:id.
func (h *CatalogHandler) UpdateService(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req serviceItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name and rate are required")
		return
	}
	item, err := h.catalogService.Update(c.Request.Context(), id, services.ServiceItemInput{
		Name:        req.Name,
		Description: req.Description,
		Rate:        req.Rate,
		Active:      req.Active,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteService handles DELETE /v1/services/:id.
func (h *CatalogHandler) DeleteService(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.catalogService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type projectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
}

// ListProjects handles GET /v1/projects?active=.
func (h *CatalogHandler) ListProjects(c *gin.Context) {
	projects, err := h.projectService.List(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": projects})
}

// CreateProject handles POST /v1/projects.
func (h *CatalogHandler) CreateProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name is required")
		return
	}
	project, err := h.projectService.Create(c.Request.Context(), services.ProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Active:      req.Active,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

// UpdateProject handles PUT /v1/projects/:id.
func (h *CatalogHandler) UpdateProject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name is required")
		return
	}
	project, err := h.projectService.Update(c.Request.Context(), id, services.ProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Active:      req.Active,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// DeleteProject handles DELETE /v1/projects/:id.
func (h *CatalogHandler) DeleteProject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.projectService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
