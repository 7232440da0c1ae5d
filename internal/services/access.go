package services

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "compras/internal/errors"
	"compras/internal/models"
	"compras/internal/policy"
	"compras/internal/workflow"
)

// loadActor fetches the active user performing an operation.
func loadActor(db *gorm.DB, id string) (*models.User, error) {
	var user models.User
	if err := db.Where("id = ? AND is_active = ?", id, true).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUnauthorized
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// requirePermission loads the actor and checks that their role may perform action.
func requirePermission(db *gorm.DB, actorID string, action policy.Action) (*models.User, error) {
	actor, err := loadActor(db, actorID)
	if err != nil {
		return nil, err
	}
	if !policy.Allowed(actor.Role, action) {
		return nil, apperrors.ErrForbidden
	}
	return actor, nil
}

func workflowActor(u *models.User) workflow.Actor {
	return workflow.Actor{UserID: u.ID, Role: u.Role, AreaID: u.AreaID}
}

// scopeRequests restricts a purchase_requests query to the rows actor may see.
func scopeRequests(db *gorm.DB, actor *models.User) *gorm.DB {
	switch {
	case policy.Allowed(actor.Role, policy.ViewAllRequests):
		return db
	case policy.IsManager(actor.Role) && actor.AreaID != nil:
		areaUsers := db.Session(&gorm.Session{NewDB: true}).
			Model(&models.User{}).Select("id").Where("area_id = ?", *actor.AreaID)
		return db.Where("(purchase_requests.requester_id = ? OR purchase_requests.requester_id IN (?))", actor.ID, areaUsers)
	default:
		return db.Where("purchase_requests.requester_id = ?", actor.ID)
	}
}

// scopeUsers restricts a users query to the rows actor may see.
func scopeUsers(db *gorm.DB, actor *models.User) *gorm.DB {
	switch {
	case policy.IsFinanceOrDirector(actor.Role):
		return db
	case policy.IsManager(actor.Role) && actor.AreaID != nil:
		return db.Where("users.area_id = ?", *actor.AreaID)
	default:
		return db.Where("users.id = ?", actor.ID)
	}
}

// areaManager returns the first active GERENTE of the area, or nil.
func areaManager(db *gorm.DB, areaID *string) (*models.User, error) {
	if areaID == nil {
		return nil, nil
	}
	var manager models.User
	err := db.Where("area_id = ? AND role = ? AND is_active = ?", *areaID, models.RoleGerente, true).
		Order("created_at ASC").First(&manager).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &manager, nil
}

type totalRow struct {
	Total decimal.Decimal
}

// sumColumn returns COALESCE(SUM(column), 0) over q rounded to cents.
func sumColumn(q *gorm.DB, column string) (decimal.Decimal, error) {
	var row totalRow
	if err := q.Select("COALESCE(SUM(" + column + "), 0) AS total").Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
