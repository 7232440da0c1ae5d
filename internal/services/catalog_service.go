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

var itemOrdering = map[string]string{
	"code": "code",
	"name": "name",
}

// catalogService handles spend categories and their items.
type catalogService struct {
	db *gorm.DB
}

// NewCatalogService creates a new CatalogServicer.
func NewCatalogService(db *gorm.DB) CatalogServicer {
	return &catalogService{db: db}
}

// ListCategories returns the fixed categories, optionally filtered by is_active.
func (s *catalogService) ListCategories(isActive *bool) ([]models.Category, error) {
	q := s.db.Model(&models.Category{})
	if isActive != nil {
		q = q.Where("is_active = ?", *isActive)
	}
	var categories []models.Category
	if err := q.Order("name ASC").Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return categories, nil
}

// GetCategory retrieves a category by ID.
func (s *catalogService) GetCategory(id string) (*models.Category, error) {
	var category models.Category
	if err := s.db.First(&category, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// UpdateCategory edits the display fields of a category. Codes are fixed.
func (s *catalogService) UpdateCategory(actorID, id string, name, description *string, isActive *bool) (*models.Category, error) {
	if _, err := requirePermission(s.db, actorID, policy.ManageCatalog); err != nil {
		return nil, err
	}
	category, err := s.GetCategory(id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]any)
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name must not be empty")
		}
		updates["name"] = n
	}
	if description != nil {
		updates["description"] = strings.TrimSpace(*description)
	}
	if isActive != nil {
		updates["is_active"] = *isActive
	}

	if len(updates) > 0 {
		if err := s.db.Model(category).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return category, nil
}

// ListItems returns a page of catalog items.
func (s *catalogService) ListItems(page pagination.PageRequest, categoryID *string, isActive *bool, search string) (*pagination.PageResponse[models.Item], error) {
	page.Defaults()

	base := s.db.Model(&models.Item{})
	if categoryID != nil {
		base = base.Where("category_id = ?", *categoryID)
	}
	if isActive != nil {
		base = base.Where("is_active = ?", *isActive)
	}
	if search = strings.ToLower(strings.TrimSpace(search)); search != "" {
		like := "%" + search + "%"
		base = base.Where("(LOWER(code) LIKE ? OR LOWER(name) LIKE ? OR LOWER(description) LIKE ?)", like, like, like)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var items []models.Item
	err := base.Preload("Category").
		Order(page.OrderClause(itemOrdering, "code ASC")).
		Scopes(pagination.Paginate(page)).
		Find(&items).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(items, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetItem retrieves an item with its category.
func (s *catalogService) GetItem(id string) (*models.Item, error) {
	var item models.Item
	if err := s.db.Preload("Category").First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrItemNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &item, nil
}

// CreateItem adds an item to a category.
func (s *catalogService) CreateItem(actorID string, in ItemInput) (*models.Item, error) {
	if _, err := requirePermission(s.db, actorID, policy.ManageCatalog); err != nil {
		return nil, err
	}
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	name := strings.TrimSpace(in.Name)
	if code == "" || name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "item code and name are required")
	}
	if _, err := s.GetCategory(in.CategoryID); err != nil {
		return nil, err
	}

	item := &models.Item{
		CategoryID:  in.CategoryID,
		Code:        code,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Unit:        strings.TrimSpace(in.Unit),
		IsActive:    true,
	}
	if item.Unit == "" {
		item.Unit = "pieza"
	}
	if err := s.db.Create(item).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperrors.ErrDuplicateCode
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if in.IsActive != nil && !*in.IsActive {
		if err := s.db.Model(item).Update("is_active", false).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return s.GetItem(item.ID)
}

// UpdateItem edits an item. Empty fields are left unchanged.
func (s *catalogService) UpdateItem(actorID, id string, in ItemInput) (*models.Item, error) {
	if _, err := requirePermission(s.db, actorID, policy.ManageCatalog); err != nil {
		return nil, err
	}
	item, err := s.GetItem(id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]any)
	if in.CategoryID != "" && in.CategoryID != item.CategoryID {
		if _, err := s.GetCategory(in.CategoryID); err != nil {
			return nil, err
		}
		updates["category_id"] = in.CategoryID
	}
	if code := strings.ToUpper(strings.TrimSpace(in.Code)); code != "" {
		updates["code"] = code
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		updates["name"] = name
	}
	if in.Description != "" {
		updates["description"] = strings.TrimSpace(in.Description)
	}
	if unit := strings.TrimSpace(in.Unit); unit != "" {
		updates["unit"] = unit
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}

	if len(updates) > 0 {
		if err := s.db.Model(&models.Item{}).Where("id = ?", item.ID).Updates(updates).Error; err != nil {
			if isDuplicate(err) {
				return nil, apperrors.ErrDuplicateCode
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return s.GetItem(item.ID)
}
