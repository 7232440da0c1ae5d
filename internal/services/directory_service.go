package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "compras/internal/errors"
	"compras/internal/models"
	"compras/internal/pagination"
	"compras/internal/policy"
)

var costCenterOrdering = map[string]string{
	"code": "code",
	"name": "name",
}

// directoryService handles areas, locations and cost centers.
type directoryService struct {
	db *gorm.DB
}

// NewDirectoryService creates a new DirectoryServicer.
func NewDirectoryService(db *gorm.DB) DirectoryServicer {
	return &directoryService{db: db}
}

// ListAreas returns every area, optionally filtered by is_active.
func (s *directoryService) ListAreas(isActive *bool) ([]models.Area, error) {
	q := s.db.Model(&models.Area{})
	if isActive != nil {
		q = q.Where("is_active = ?", *isActive)
	}
	var areas []models.Area
	if err := q.Order("name ASC").Find(&areas).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return areas, nil
}

// UpdateArea edits an area's description or active flag. Names are fixed.
func (s *directoryService) UpdateArea(actorID, areaID string, description *string, isActive *bool) (*models.Area, error) {
	if _, err := requirePermission(s.db, actorID, policy.ManageBudgets); err != nil {
		return nil, err
	}

	var area models.Area
	if err := s.db.First(&area, "id = ?", areaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAreaNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	updates := map[string]any{}
	if description != nil {
		updates["description"] = strings.TrimSpace(*description)
	}
	if isActive != nil {
		updates["is_active"] = *isActive
	}
	if len(updates) > 0 {
		if err := s.db.Model(&area).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return &area, nil
}

// ListLocations returns every location, optionally filtered by is_active.
func (s *directoryService) ListLocations(isActive *bool) ([]models.Location, error) {
	q := s.db.Model(&models.Location{})
	if isActive != nil {
		q = q.Where("is_active = ?", *isActive)
	}
	var locations []models.Location
	if err := q.Order("name ASC").Find(&locations).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return locations, nil
}

// UpdateLocation toggles a location's active flag.
func (s *directoryService) UpdateLocation(actorID, locationID string, isActive *bool) (*models.Location, error) {
	if _, err := requirePermission(s.db, actorID, policy.ManageBudgets); err != nil {
		return nil, err
	}

	var location models.Location
	if err := s.db.First(&location, "id = ?", locationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrLocationNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if isActive != nil {
		if err := s.db.Model(&location).Update("is_active", *isActive).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return &location, nil
}

// ListCostCenters returns a page of cost centers.
func (s *directoryService) ListCostCenters(page pagination.PageRequest, areaID, locationID *string, isActive *bool, search string) (*pagination.PageResponse[models.CostCenter], error) {
	page.Defaults()

	base := s.db.Model(&models.CostCenter{})
	if areaID != nil {
		base = base.Where("area_id = ?", *areaID)
	}
	if locationID != nil {
		base = base.Where("location_id = ?", *locationID)
	}
	if isActive != nil {
		base = base.Where("is_active = ?", *isActive)
	}
	if search = strings.ToLower(strings.TrimSpace(search)); search != "" {
		like := "%" + search + "%"
		base = base.Where("(LOWER(code) LIKE ? OR LOWER(name) LIKE ?)", like, like)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var centers []models.CostCenter
	err := base.Preload("Area").Preload("Location").
		Order(page.OrderClause(costCenterOrdering, "code ASC")).
		Scopes(pagination.Paginate(page)).
		Find(&centers).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(centers, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetCostCenter returns a cost center with its area and location.
func (s *directoryService) GetCostCenter(id string) (*models.CostCenter, error) {
	var center models.CostCenter
	if err := s.db.Preload("Area").Preload("Location").First(&center, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCostCenterNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &center, nil
}

func (s *directoryService) checkCostCenterRefs(areaID string, locationID *string) error {
	if err := s.db.First(&models.Area{}, "id = ?", areaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrAreaNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if locationID != nil {
		if err := s.db.First(&models.Location{}, "id = ?", *locationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrLocationNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return nil
}

// CreateCostCenter adds a cost center. Codes are unique.
func (s *directoryService) CreateCostCenter(actorID string, in CostCenterInput) (*models.CostCenter, error) {
	if _, err := requirePermission(s.db, actorID, policy.ManageBudgets); err != nil {
		return nil, err
	}
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	name := strings.TrimSpace(in.Name)
	if code == "" || name == "" || in.AreaID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "code, name and area_id are required")
	}
	if err := s.checkCostCenterRefs(in.AreaID, in.LocationID); err != nil {
		return nil, err
	}

	center := &models.CostCenter{
		Code:       code,
		Name:       name,
		AreaID:     in.AreaID,
		LocationID: in.LocationID,
		IsActive:   true,
	}
	if in.IsActive != nil {
		center.IsActive = *in.IsActive
	}
	if err := s.db.Create(center).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperrors.ErrDuplicateCode
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !center.IsActive {
		// the column default would otherwise win over a false zero value
		if err := s.db.Model(center).Update("is_active", false).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return s.GetCostCenter(center.ID)
}

// UpdateCostCenter edits a cost center. Empty fields are left unchanged.
func (s *directoryService) UpdateCostCenter(actorID, id string, in CostCenterInput) (*models.CostCenter, error) {
	if _, err := requirePermission(s.db, actorID, policy.ManageBudgets); err != nil {
		return nil, err
	}
	center, err := s.GetCostCenter(id)
	if err != nil {
		return nil, err
	}

	areaID := center.AreaID
	if in.AreaID != "" {
		areaID = in.AreaID
	}
	if err := s.checkCostCenterRefs(areaID, in.LocationID); err != nil {
		return nil, err
	}

	updates := map[string]any{"area_id": areaID}
	if code := strings.ToUpper(strings.TrimSpace(in.Code)); code != "" {
		updates["code"] = code
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		updates["name"] = name
	}
	if in.LocationID != nil {
		updates["location_id"] = *in.LocationID
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}
	if err := s.db.Model(&models.CostCenter{}).Where("id = ?", center.ID).Updates(updates).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperrors.ErrDuplicateCode
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetCostCenter(center.ID)
}
