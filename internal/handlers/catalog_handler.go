package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "compras/internal/errors"
	"compras/internal/pagination"
	"compras/internal/services"
)

// CatalogHandler handles spend categories and catalog items.
type CatalogHandler struct {
	catalogService services.CatalogServicer
	auditService   services.AuditServicer
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalogService services.CatalogServicer, auditService services.AuditServicer) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService, auditService: auditService}
}

// UpdateCategoryRequest represents the editable fields of a category.
type UpdateCategoryRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	IsActive    *bool   `json:"is_active"`
}

// CreateItemRequest represents the request payload for creating a catalog item.
type CreateItemRequest struct {
	CategoryID  string `json:"category_id" binding:"required,uuid"`
	Code        string `json:"code" binding:"required,min=1,max=50"`
	Name        string `json:"name" binding:"required,min=1,max=200"`
	Description string `json:"description" binding:"max=1000"`
	Unit        string `json:"unit" binding:"max=50"`
	IsActive    *bool  `json:"is_active"`
}

// UpdateItemRequest represents the request payload for updating a catalog item.
type UpdateItemRequest struct {
	CategoryID  string `json:"category_id" binding:"omitempty,uuid"`
	Code        string `json:"code" binding:"omitempty,max=50"`
	Name        string `json:"name" binding:"omitempty,max=200"`
	Description string `json:"description" binding:"max=1000"`
	Unit        string `json:"unit" binding:"max=50"`
	IsActive    *bool  `json:"is_active"`
}

// ListCategories returns the spend categories.
// @Summary     List categories
// @Tags        catalog
// @Produce     json
// @Security    BearerAuth
// @Param       is_active query bool false "Filter by active status"
// @Success     200 {array}  models.Category "Categories"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /budgets/categories [get]
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	isActive, err := queryBool(c, "is_active")
	if err != nil {
		respondWithError(c, err)
		return
	}
	categories, err := h.catalogService.ListCategories(isActive)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// GetCategory returns a single category.
// @Summary     Get a category
// @Tags        catalog
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {object} models.Category "Category"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /budgets/categories/{id} [get]
func (h *CatalogHandler) GetCategory(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	category, err := h.catalogService.GetCategory(id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category})
}

// UpdateCategory edits a category's display fields.
// @Summary     Update a category
// @Tags        catalog
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                true "Category ID"
// @Param       request body UpdateCategoryRequest true "Fields to update"
// @Success     200 {object} models.Category "Updated category"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /budgets/categories/{id} [patch]
func (h *CatalogHandler) UpdateCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	category, err := h.catalogService.UpdateCategory(userID, id, req.Name, req.Description, req.IsActive)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_CATEGORY", "category", id, c.ClientIP(), nil)
	c.JSON(http.StatusOK, gin.H{"category": category})
}

// ListItems returns a page of catalog items.
// @Summary     List items
// @Tags        catalog
// @Produce     json
// @Security    BearerAuth
// @Param       category  query string false "Filter by category ID"
// @Param       is_active query bool   false "Filter by active status"
// @Param       search    query string false "Search code, name and description"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Param       ordering  query string false "code or name (prefix - for descending)"
// @Success     200 {object} pagination.PageResponse[models.Item] "Paginated items"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /budgets/items [get]
func (h *CatalogHandler) ListItems(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	categoryID, err := queryID(c, "category")
	if err != nil {
		respondWithError(c, err)
		return
	}
	isActive, err := queryBool(c, "is_active")
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.catalogService.ListItems(page, categoryID, isActive, c.Query("search"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetItem returns a single catalog item.
// @Summary     Get an item
// @Tags        catalog
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Item ID"
// @Success     200 {object} models.Item "Item"
// @Failure     404 {object} ErrorResponse "Item not found"
// @Router      /budgets/items/{id} [get]
func (h *CatalogHandler) GetItem(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	item, err := h.catalogService.GetItem(id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

// CreateItem adds an item to a category.
// @Summary     Create an item
// @Tags        catalog
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateItemRequest true "Item details"
// @Success     201 {object} models.Item "Item created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     409 {object} ErrorResponse "Duplicate code"
// @Router      /budgets/items [post]
func (h *CatalogHandler) CreateItem(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	item, err := h.catalogService.CreateItem(userID, services.ItemInput{
		CategoryID:  req.CategoryID,
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Unit:        req.Unit,
		IsActive:    req.IsActive,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_ITEM", "item", item.ID, c.ClientIP(),
		map[string]any{"code": item.Code, "category_id": item.CategoryID})

	c.JSON(http.StatusCreated, gin.H{"item": item})
}

// UpdateItem edits a catalog item.
// @Summary     Update an item
// @Tags        catalog
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "Item ID"
// @Param       request body UpdateItemRequest true "Fields to update"
// @Success     200 {object} models.Item "Updated item"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "Item not found"
// @Router      /budgets/items/{id} [patch]
func (h *CatalogHandler) UpdateItem(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	item, err := h.catalogService.UpdateItem(userID, id, services.ItemInput{
		CategoryID:  req.CategoryID,
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Unit:        req.Unit,
		IsActive:    req.IsActive,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_ITEM", "item", id, c.ClientIP(), nil)
	c.JSON(http.StatusOK, gin.H{"item": item})
}
