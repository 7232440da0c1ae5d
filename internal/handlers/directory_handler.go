package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "compras/internal/errors"
	"compras/internal/pagination"
	"compras/internal/services"
)

// DirectoryHandler handles areas, locations and cost centers.
type DirectoryHandler struct {
	directoryService services.DirectoryServicer
	auditService     services.AuditServicer
}

// NewDirectoryHandler creates a new DirectoryHandler.
func NewDirectoryHandler(directoryService services.DirectoryServicer, auditService services.AuditServicer) *DirectoryHandler {
	return &DirectoryHandler{directoryService: directoryService, auditService: auditService}
}

// UpdateAreaRequest represents the editable fields of an area.
type UpdateAreaRequest struct {
	Description *string `json:"description" binding:"omitempty,max=500"`
	IsActive    *bool   `json:"is_active"`
}

// UpdateLocationRequest represents the editable fields of a location.
type UpdateLocationRequest struct {
	IsActive *bool `json:"is_active"`
}

// CreateCostCenterRequest represents the request payload for creating a cost center.
type CreateCostCenterRequest struct {
	Code       string  `json:"code" binding:"required,min=1,max=50"`
	Name       string  `json:"name" binding:"required,min=1,max=200"`
	AreaID     string  `json:"area_id" binding:"required,uuid"`
	LocationID *string `json:"location_id" binding:"omitempty,uuid"`
	IsActive   *bool   `json:"is_active"`
}

// UpdateCostCenterRequest represents the request payload for updating a cost center.
type UpdateCostCenterRequest struct {
	Code       string  `json:"code" binding:"omitempty,max=50"`
	Name       string  `json:"name" binding:"omitempty,max=200"`
	AreaID     string  `json:"area_id" binding:"omitempty,uuid"`
	LocationID *string `json:"location_id" binding:"omitempty,uuid"`
	IsActive   *bool   `json:"is_active"`
}

// ListAreas returns the organizational areas.
// @Summary     List areas
// @Tags        directory
// @Produce     json
// @Security    BearerAuth
// @Param       is_active query bool false "Filter by active status"
// @Success     200 {array}  models.Area "Areas"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /areas [get]
func (h *DirectoryHandler) ListAreas(c *gin.Context) {
	isActive, err := queryBool(c, "is_active")
	if err != nil {
		respondWithError(c, err)
		return
	}
	areas, err := h.directoryService.ListAreas(isActive)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"areas": areas})
}

// UpdateArea edits an area.
// @Summary     Update an area
// @Tags        directory
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "Area ID"
// @Param       request body UpdateAreaRequest true "Fields to update"
// @Success     200 {object} models.Area "Updated area"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "Area not found"
// @Router      /areas/{id} [patch]
func (h *DirectoryHandler) UpdateArea(c *gin.Context) {
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

	var req UpdateAreaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	area, err := h.directoryService.UpdateArea(userID, id, req.Description, req.IsActive)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_AREA", "area", id, c.ClientIP(), nil)
	c.JSON(http.StatusOK, gin.H{"area": area})
}

// ListLocations returns the operating sites.
// @Summary     List locations
// @Tags        directory
// @Produce     json
// @Security    BearerAuth
// @Param       is_active query bool false "Filter by active status"
// @Success     200 {array}  models.Location "Locations"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /locations [get]
func (h *DirectoryHandler) ListLocations(c *gin.Context) {
	isActive, err := queryBool(c, "is_active")
	if err != nil {
		respondWithError(c, err)
		return
	}
	locations, err := h.directoryService.ListLocations(isActive)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locations": locations})
}

// UpdateLocation activates or deactivates a location.
// @Summary     Update a location
// @Tags        directory
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                true "Location ID"
// @Param       request body UpdateLocationRequest true "Fields to update"
// @Success     200 {object} models.Location "Updated location"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "Location not found"
// @Router      /locations/{id} [patch]
func (h *DirectoryHandler) UpdateLocation(c *gin.Context) {
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

	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	location, err := h.directoryService.UpdateLocation(userID, id, req.IsActive)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_LOCATION", "location", id, c.ClientIP(), nil)
	c.JSON(http.StatusOK, gin.H{"location": location})
}

// ListCostCenters returns a page of cost centers.
// @Summary     List cost centers
// @Tags        directory
// @Produce     json
// @Security    BearerAuth
// @Param       area      query string false "Filter by area ID"
// @Param       location  query string false "Filter by location ID"
// @Param       is_active query bool   false "Filter by active status"
// @Param       search    query string false "Search code and name"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Param       ordering  query string false "code or name (prefix - for descending)"
// @Success     200 {object} pagination.PageResponse[models.CostCenter] "Paginated cost centers"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /cost-centers [get]
func (h *DirectoryHandler) ListCostCenters(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	areaID, err := queryID(c, "area")
	if err != nil {
		respondWithError(c, err)
		return
	}
	locationID, err := queryID(c, "location")
	if err != nil {
		respondWithError(c, err)
		return
	}
	isActive, err := queryBool(c, "is_active")
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.directoryService.ListCostCenters(page, areaID, locationID, isActive, c.Query("search"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetCostCenter returns a single cost center.
// @Summary     Get a cost center
// @Tags        directory
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Cost center ID"
// @Success     200 {object} models.CostCenter "Cost center"
// @Failure     404 {object} ErrorResponse "Cost center not found"
// @Router      /cost-centers/{id} [get]
func (h *DirectoryHandler) GetCostCenter(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	cc, err := h.directoryService.GetCostCenter(id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cost_center": cc})
}

// CreateCostCenter adds a cost center.
// @Summary     Create a cost center
// @Tags        directory
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateCostCenterRequest true "Cost center details"
// @Success     201 {object} models.CostCenter "Cost center created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     409 {object} ErrorResponse "Duplicate code"
// @Router      /cost-centers [post]
func (h *DirectoryHandler) CreateCostCenter(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateCostCenterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	cc, err := h.directoryService.CreateCostCenter(userID, services.CostCenterInput{
		Code:       req.Code,
		Name:       req.Name,
		AreaID:     req.AreaID,
		LocationID: req.LocationID,
		IsActive:   req.IsActive,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_COST_CENTER", "cost_center", cc.ID, c.ClientIP(),
		map[string]any{"code": cc.Code, "name": cc.Name})

	c.JSON(http.StatusCreated, gin.H{"cost_center": cc})
}

// UpdateCostCenter edits a cost center.
// @Summary     Update a cost center
// @Tags        directory
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                  true "Cost center ID"
// @Param       request body UpdateCostCenterRequest true "Fields to update"
// @Success     200 {object} models.CostCenter "Updated cost center"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "Cost center not found"
// @Router      /cost-centers/{id} [patch]
func (h *DirectoryHandler) UpdateCostCenter(c *gin.Context) {
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

	var req UpdateCostCenterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	cc, err := h.directoryService.UpdateCostCenter(userID, id, services.CostCenterInput{
		Code:       req.Code,
		Name:       req.Name,
		AreaID:     req.AreaID,
		LocationID: req.LocationID,
		IsActive:   req.IsActive,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_COST_CENTER", "cost_center", id, c.ClientIP(), nil)
	c.JSON(http.StatusOK, gin.H{"cost_center": cc})
}
