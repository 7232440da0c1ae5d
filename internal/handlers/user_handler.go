package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "compras/internal/errors"
	"compras/internal/models"
	"compras/internal/pagination"
	"compras/internal/services"
)

// UserHandler handles the user directory and the caller's own profile.
type UserHandler struct {
	userService  services.UserServicer
	auditService services.AuditServicer
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService services.UserServicer, auditService services.AuditServicer) *UserHandler {
	return &UserHandler{userService: userService, auditService: auditService}
}

// CreateUserRequest represents the request payload for creating a user.
type CreateUserRequest struct {
	Email        string      `json:"email" binding:"required,email,max=254"`
	Password     string      `json:"password" binding:"required,min=8,max=128"`
	FirstName    string      `json:"first_name" binding:"max=150"`
	LastName     string      `json:"last_name" binding:"max=150"`
	Role         models.Role `json:"role" binding:"omitempty,role"`
	AreaID       *string     `json:"area_id" binding:"omitempty,uuid"`
	LocationID   *string     `json:"location_id" binding:"omitempty,uuid"`
	CostCenterID *string     `json:"cost_center_id" binding:"omitempty,uuid"`
	Phone        string      `json:"phone" binding:"max=20"`
}

// UpdateUserRequest represents the request payload for an administrative user update.
type UpdateUserRequest struct {
	FirstName     *string      `json:"first_name" binding:"omitempty,max=150"`
	LastName      *string      `json:"last_name" binding:"omitempty,max=150"`
	Role          *models.Role `json:"role" binding:"omitempty,role"`
	AreaID        *string      `json:"area_id" binding:"omitempty,uuid"`
	LocationID    *string      `json:"location_id" binding:"omitempty,uuid"`
	CostCenterID  *string      `json:"cost_center_id" binding:"omitempty,uuid"`
	Phone         *string      `json:"phone" binding:"omitempty,max=20"`
	IsActive      *bool        `json:"is_active"`
	IsOutOfOffice *bool        `json:"is_out_of_office"`
}

// UpdateProfileRequest represents the fields a user may change on their own profile.
type UpdateProfileRequest struct {
	FirstName     *string `json:"first_name" binding:"omitempty,max=150"`
	LastName      *string `json:"last_name" binding:"omitempty,max=150"`
	Phone         *string `json:"phone" binding:"omitempty,max=20"`
	IsOutOfOffice *bool   `json:"is_out_of_office"`
}

// GetMe returns the authenticated user's profile.
// @Summary     Get my profile
// @Tags        users
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} models.User "User profile"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /users/me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateMe updates the authenticated user's profile. Managers use it to toggle
// their out-of-office flag.
// @Summary     Update my profile
// @Tags        users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body UpdateProfileRequest true "Profile fields"
// @Success     200 {object} models.User "Updated profile"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /users/me [patch]
func (h *UserHandler) UpdateMe(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.userService.UpdateProfile(userID, services.ProfileUpdate{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Phone:         req.Phone,
		IsOutOfOffice: req.IsOutOfOffice,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	if req.IsOutOfOffice != nil {
		h.auditService.Log(userID, "SET_OUT_OF_OFFICE", "user", userID, c.ClientIP(),
			map[string]any{"is_out_of_office": *req.IsOutOfOffice})
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ListUsers returns a page of users.
// @Summary     List users
// @Tags        users
// @Produce     json
// @Security    BearerAuth
// @Param       role             query string false "Filter by role"
// @Param       area             query string false "Filter by area ID"
// @Param       location         query string false "Filter by location ID"
// @Param       is_active        query bool   false "Filter by active status"
// @Param       is_out_of_office query bool   false "Filter by out-of-office flag"
// @Param       search           query string false "Search email and names"
// @Param       page             query int    false "Page number (default 1)"
// @Param       page_size        query int    false "Items per page (default 20, max 100)"
// @Param       ordering         query string false "email, first_name, last_name, created_at (prefix - for descending)"
// @Success     200 {object} pagination.PageResponse[models.User] "Paginated users"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Router      /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter := services.UserFilter{Search: c.Query("search")}
	if v := c.Query("role"); v != "" {
		role := models.Role(v)
		if !role.Valid() {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid role"))
			return
		}
		filter.Role = &role
	}
	if filter.AreaID, err = queryID(c, "area"); err != nil {
		respondWithError(c, err)
		return
	}
	if filter.LocationID, err = queryID(c, "location"); err != nil {
		respondWithError(c, err)
		return
	}
	if filter.IsActive, err = queryBool(c, "is_active"); err != nil {
		respondWithError(c, err)
		return
	}
	if filter.IsOutOfOffice, err = queryBool(c, "is_out_of_office"); err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.userService.ListUsers(userID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CreateUser adds a user to the directory.
// @Summary     Create a user
// @Tags        users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateUserRequest true "User details"
// @Success     201 {object} models.User "User created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     409 {object} ErrorResponse "Duplicate email"
// @Router      /users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.userService.CreateUser(userID, services.UserInput{
		Email:        req.Email,
		Password:     req.Password,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         req.Role,
		AreaID:       req.AreaID,
		LocationID:   req.LocationID,
		CostCenterID: req.CostCenterID,
		Phone:        req.Phone,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_USER", "user", user.ID, c.ClientIP(),
		map[string]any{"email": user.Email, "role": user.Role})

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// GetUser returns a single user.
// @Summary     Get a user
// @Tags        users
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "User ID"
// @Success     200 {object} models.User "User"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
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

	user, err := h.userService.GetUser(userID, id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateUser edits a user.
// @Summary     Update a user
// @Tags        users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "User ID"
// @Param       request body UpdateUserRequest true "Fields to update"
// @Success     200 {object} models.User "Updated user"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /users/{id} [patch]
func (h *UserHandler) UpdateUser(c *gin.Context) {
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

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.userService.UpdateUser(userID, id, services.UserUpdate{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Role:          req.Role,
		AreaID:        req.AreaID,
		LocationID:    req.LocationID,
		CostCenterID:  req.CostCenterID,
		Phone:         req.Phone,
		IsActive:      req.IsActive,
		IsOutOfOffice: req.IsOutOfOffice,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	changes := map[string]any{}
	if req.Role != nil {
		changes["role"] = *req.Role
	}
	if req.IsActive != nil {
		changes["is_active"] = *req.IsActive
	}
	h.auditService.Log(userID, "UPDATE_USER", "user", id, c.ClientIP(), changes)

	c.JSON(http.StatusOK, gin.H{"user": user})
}
