package services

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apperrors "compras/internal/errors"
	"compras/internal/models"
	"compras/internal/pagination"
	"compras/internal/policy"
)

const (
	maxFailedLogins = 5
	lockoutDuration = 15 * time.Minute
	minPasswordLen  = 8
)

var userOrdering = map[string]string{
	"email":      "users.email",
	"first_name": "users.first_name",
	"last_name":  "users.last_name",
	"created_at": "users.created_at",
}

// userService handles authentication and user administration.
type userService struct {
	db            *gorm.DB
	notifications NotificationServicer
}

// NewUserService creates a new UserServicer.
func NewUserService(db *gorm.DB, notifications NotificationServicer) UserServicer {
	return &userService{db: db, notifications: notifications}
}

// AttemptLogin verifies credentials, tracking failures and locking the account
// after repeated mistakes.
func (s *userService) AttemptLogin(email, password string) (*models.User, error) {
	var user models.User
	err := s.db.Where("email = ? AND is_active = ?", strings.ToLower(strings.TrimSpace(email)), true).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	now := time.Now()
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		return nil, apperrors.ErrAccountLocked
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		updates := map[string]any{"failed_login_attempts": gorm.Expr("failed_login_attempts + 1")}
		if user.FailedLoginAttempts+1 >= maxFailedLogins {
			updates["locked_until"] = now.Add(lockoutDuration)
		}
		if err := s.db.Model(&user).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil, apperrors.ErrInvalidCredentials
	}

	err = s.db.Model(&user).Updates(map[string]any{
		"failed_login_attempts": 0,
		"locked_until":          nil,
		"last_login_at":         now,
	}).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now
	return &user, nil
}

// GetUserByID retrieves a user with their directory placement.
func (s *userService) GetUserByID(id string) (*models.User, error) {
	var user models.User
	err := s.db.Preload("Area").Preload("Location").Preload("CostCenter").First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// StoreRefreshTokenHash saves the SHA-256 hash of the user's current refresh token.
func (s *userService) StoreRefreshTokenHash(userID, tokenHash string) error {
	res := s.db.Model(&models.User{}).Where("id = ?", userID).Update("refresh_token_hash", tokenHash)
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// GetRefreshTokenHash returns the stored refresh token hash for an active user.
func (s *userService) GetRefreshTokenHash(userID string) (string, error) {
	var user models.User
	if err := s.db.Select("refresh_token_hash").Where("id = ? AND is_active = ?", userID, true).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.ErrUserNotFound
		}
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return user.RefreshTokenHash, nil
}

// ClearRefreshTokenHash revokes the user's refresh token.
func (s *userService) ClearRefreshTokenHash(userID string) error {
	return s.StoreRefreshTokenHash(userID, "")
}

// canAssign reports whether actor may place a user with role into areaID.
// Managers administer their own area and cannot grant finance or director roles.
func canAssign(actor *models.User, role models.Role, areaID *string) bool {
	if policy.IsFinanceOrDirector(actor.Role) {
		return true
	}
	if !policy.IsManager(actor.Role) {
		return false
	}
	if policy.IsFinanceOrDirector(role) {
		return false
	}
	return actor.InArea(areaID)
}

func validRole(role models.Role) bool {
	for _, r := range models.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (s *userService) checkPlacement(areaID, locationID, costCenterID *string) error {
	if areaID != nil {
		if err := s.db.First(&models.Area{}, "id = ?", *areaID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrAreaNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	if locationID != nil {
		if err := s.db.First(&models.Location{}, "id = ?", *locationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrLocationNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	if costCenterID != nil {
		if err := s.db.First(&models.CostCenter{}, "id = ?", *costCenterID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrCostCenterNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return nil
}

// CreateUser registers a new user on behalf of an administrator.
func (s *userService) CreateUser(actorID string, in UserInput) (*models.User, error) {
	actor, err := requirePermission(s.db, actorID, policy.ManageUsers)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "email and password are required")
	}
	if len(in.Password) < minPasswordLen {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "password must be at least 8 characters")
	}
	if in.Role == "" {
		in.Role = models.RoleEmpleado
	}
	if !validRole(in.Role) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid role")
	}
	if !canAssign(actor, in.Role, in.AreaID) {
		return nil, apperrors.ErrForbidden
	}
	if err := s.checkPlacement(in.AreaID, in.LocationID, in.CostCenterID); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.Unscoped().Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateEmail
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	user := &models.User{
		Email:        email,
		Password:     string(hashedPassword),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         in.Role,
		AreaID:       in.AreaID,
		LocationID:   in.LocationID,
		CostCenterID: in.CostCenterID,
		Phone:        strings.TrimSpace(in.Phone),
		IsActive:     true,
	}
	if err := s.db.Create(user).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperrors.ErrDuplicateEmail
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetUserByID(user.ID)
}

// ListUsers returns the users the actor may see.
func (s *userService) ListUsers(actorID string, page pagination.PageRequest, filter UserFilter) (*pagination.PageResponse[models.User], error) {
	actor, err := loadActor(s.db, actorID)
	if err != nil {
		return nil, err
	}
	page.Defaults()

	base := scopeUsers(s.db.Model(&models.User{}), actor)
	if filter.Role != nil {
		base = base.Where("users.role = ?", *filter.Role)
	}
	if filter.AreaID != nil {
		base = base.Where("users.area_id = ?", *filter.AreaID)
	}
	if filter.LocationID != nil {
		base = base.Where("users.location_id = ?", *filter.LocationID)
	}
	if filter.IsActive != nil {
		base = base.Where("users.is_active = ?", *filter.IsActive)
	}
	if filter.IsOutOfOffice != nil {
		base = base.Where("users.is_out_of_office = ?", *filter.IsOutOfOffice)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		base = base.Where("(LOWER(users.email) LIKE ? OR LOWER(users.first_name) LIKE ? OR LOWER(users.last_name) LIKE ?)", like, like, like)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var users []models.User
	err = base.Preload("Area").Preload("Location").Preload("CostCenter").
		Order(page.OrderClause(userOrdering, "users.email ASC")).
		Scopes(pagination.Paginate(page)).
		Find(&users).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(users, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func (s *userService) visibleUser(actor *models.User, userID string) (*models.User, error) {
	var user models.User
	err := scopeUsers(s.db.Model(&models.User{}), actor).
		Preload("Area").Preload("Location").Preload("CostCenter").
		Where("users.id = ?", userID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// GetUser returns a user the actor may see.
func (s *userService) GetUser(actorID, userID string) (*models.User, error) {
	actor, err := loadActor(s.db, actorID)
	if err != nil {
		return nil, err
	}
	return s.visibleUser(actor, userID)
}

// UpdateUser changes a user's profile, placement, role or status.
func (s *userService) UpdateUser(actorID, userID string, in UserUpdate) (*models.User, error) {
	actor, err := requirePermission(s.db, actorID, policy.ManageUsers)
	if err != nil {
		return nil, err
	}
	user, err := s.visibleUser(actor, userID)
	if err != nil {
		return nil, err
	}

	role := user.Role
	if in.Role != nil {
		if !validRole(*in.Role) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid role")
		}
		role = *in.Role
	}
	areaID := user.AreaID
	if in.AreaID != nil {
		areaID = in.AreaID
	}
	if (in.Role != nil || in.AreaID != nil) && !canAssign(actor, role, areaID) {
		return nil, apperrors.ErrForbidden
	}
	if err := s.checkPlacement(in.AreaID, in.LocationID, in.CostCenterID); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*in.LastName)
	}
	if in.Phone != nil {
		updates["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.Role != nil {
		updates["role"] = *in.Role
	}
	if in.AreaID != nil {
		updates["area_id"] = *in.AreaID
	}
	if in.LocationID != nil {
		updates["location_id"] = *in.LocationID
	}
	if in.CostCenterID != nil {
		updates["cost_center_id"] = *in.CostCenterID
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}
	if in.IsOutOfOffice != nil {
		updates["is_out_of_office"] = *in.IsOutOfOffice
	}

	if err := s.apply(user, updates); err != nil {
		return nil, err
	}
	return s.GetUserByID(user.ID)
}

// UpdateProfile lets users edit their own name, phone and out-of-office flag.
func (s *userService) UpdateProfile(userID string, in ProfileUpdate) (*models.User, error) {
	user, err := loadActor(s.db, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*in.LastName)
	}
	if in.Phone != nil {
		updates["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.IsOutOfOffice != nil {
		updates["is_out_of_office"] = *in.IsOutOfOffice
	}

	if err := s.apply(user, updates); err != nil {
		return nil, err
	}
	return s.GetUserByID(user.ID)
}

// apply writes updates and, when a manager goes out of office, queues the
// notice to finance in the same transaction.
func (s *userService) apply(user *models.User, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	wasOut := user.IsOutOfOffice

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Updates(updates).Error; err != nil {
			return err
		}
		var fresh models.User
		if err := tx.Preload("Area").First(&fresh, "id = ?", user.ID).Error; err != nil {
			return err
		}
		if !wasOut && fresh.IsOutOfOffice && policy.IsManager(fresh.Role) {
			return s.notifications.EnqueueOutOfOffice(tx, &fresh)
		}
		return nil
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
