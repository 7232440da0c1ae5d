package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"compras/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// TestPassword is the plaintext password of every fixture user.
const TestPassword = "password123"

// CreateTestArea creates an area with the given fixed name.
func CreateTestArea(t *testing.T, db *gorm.DB, name models.AreaName) *models.Area {
	t.Helper()

	area := &models.Area{Name: name, IsActive: true}
	if err := db.Create(area).Error; err != nil {
		t.Fatalf("failed to create test area: %v", err)
	}
	return area
}

// CreateTestLocation creates a location with the given fixed name.
func CreateTestLocation(t *testing.T, db *gorm.DB, name models.LocationName) *models.Location {
	t.Helper()

	location := &models.Location{Name: name, IsActive: true}
	if err := db.Create(location).Error; err != nil {
		t.Fatalf("failed to create test location: %v", err)
	}
	return location
}

// CreateTestCostCenter creates a cost center with a unique code in the given area.
func CreateTestCostCenter(t *testing.T, db *gorm.DB, areaID string) *models.CostCenter {
	t.Helper()

	n := nextID()
	center := &models.CostCenter{
		Code:     fmt.Sprintf("CC-%03d", n),
		Name:     fmt.Sprintf("Cost Center %d", n),
		AreaID:   areaID,
		IsActive: true,
	}
	if err := db.Create(center).Error; err != nil {
		t.Fatalf("failed to create test cost center: %v", err)
	}
	return center
}

// CreateTestCategory creates the category with the given fixed code.
func CreateTestCategory(t *testing.T, db *gorm.DB, code models.CategoryCode) *models.Category {
	t.Helper()

	category := &models.Category{Code: code, Name: string(code), IsActive: true}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestItem creates an item with a unique code in the given category.
func CreateTestItem(t *testing.T, db *gorm.DB, categoryID string) *models.Item {
	t.Helper()

	n := nextID()
	item := &models.Item{
		CategoryID: categoryID,
		Code:       fmt.Sprintf("ITEM-%03d", n),
		Name:       fmt.Sprintf("Item %d", n),
		Unit:       "pieza",
		IsActive:   true,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("failed to create test item: %v", err)
	}
	return item
}

// CreateTestUser creates an employee with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithRole(t, db, models.RoleEmpleado, nil)
}

// CreateTestUserWithRole creates a user with the given role placed in areaID.
func CreateTestUserWithRole(t *testing.T, db *gorm.DB, role models.Role, areaID *string) *models.User {
	t.Helper()

	n := nextID()
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:     fmt.Sprintf("user%d@test.com", n),
		Password:  string(hash),
		FirstName: "User",
		LastName:  fmt.Sprintf("%d", n),
		Role:      role,
		AreaID:    areaID,
		IsActive:  true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestBudget creates a budget envelope.
func CreateTestBudget(t *testing.T, db *gorm.DB, costCenterID, categoryID string, year, month int, amount string) *models.Budget {
	t.Helper()

	budget := &models.Budget{
		CostCenterID: costCenterID,
		CategoryID:   categoryID,
		Year:         year,
		Month:        month,
		Amount:       decimal.RequireFromString(amount),
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// CreateTestRequest inserts a purchase request directly in the given status,
// bypassing the workflow.
func CreateTestRequest(t *testing.T, db *gorm.DB, requester *models.User, costCenterID, categoryID, amount string, status models.RequestStatus) *models.PurchaseRequest {
	t.Helper()

	n := nextID()
	req := &models.PurchaseRequest{
		RequestNumber:   fmt.Sprintf("SOL-TEST-%04d", n),
		RequesterID:     requester.ID,
		CostCenterID:    costCenterID,
		CategoryID:      categoryID,
		Description:     fmt.Sprintf("Request %d", n),
		EstimatedAmount: decimal.RequireFromString(amount),
		RequiredDate:    time.Now().UTC().AddDate(0, 0, 7),
		Justification:   "needed",
		Urgency:         models.UrgencyNormal,
		Status:          status,
	}
	if err := db.Create(req).Error; err != nil {
		t.Fatalf("failed to create test request: %v", err)
	}
	return req
}

// Org is a minimal organization: one area with a cost center, one category,
// and a user for every role.
type Org struct {
	Area       *models.Area
	CostCenter *models.CostCenter
	Category   *models.Category
	Employee   *models.User
	Manager    *models.User
	Finance    *models.User
	Director   *models.User
}

// CreateTestOrg builds an Org in the OPERACIONES area and PAPELERIA category.
// The employee's default cost center is the org's cost center.
func CreateTestOrg(t *testing.T, db *gorm.DB) *Org {
	t.Helper()

	area := CreateTestArea(t, db, models.AreaOperaciones)
	center := CreateTestCostCenter(t, db, area.ID)
	org := &Org{
		Area:       area,
		CostCenter: center,
		Category:   CreateTestCategory(t, db, models.CategoryPapeleria),
		Employee:   CreateTestUserWithRole(t, db, models.RoleEmpleado, &area.ID),
		Manager:    CreateTestUserWithRole(t, db, models.RoleGerente, &area.ID),
		Finance:    CreateTestUserWithRole(t, db, models.RoleFinanzas, nil),
		Director:   CreateTestUserWithRole(t, db, models.RoleDireccionGeneral, nil),
	}
	if err := db.Model(org.Employee).Update("cost_center_id", center.ID).Error; err != nil {
		t.Fatalf("failed to assign cost center: %v", err)
	}
	org.Employee.CostCenterID = &center.ID
	return org
}
