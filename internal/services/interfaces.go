package services

import (
	"io"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"compras/internal/models"
	"compras/internal/pagination"
	"compras/internal/period"
	"compras/internal/workflow"
)

// UserInput holds the fields accepted when creating a user.
type UserInput struct {
	Email        string
	Password     string
	FirstName    string
	LastName     string
	Role         models.Role
	AreaID       *string
	LocationID   *string
	CostCenterID *string
	Phone        string
}

// UserUpdate holds optional fields for an administrative user update.
type UserUpdate struct {
	FirstName     *string
	LastName      *string
	Role          *models.Role
	AreaID        *string
	LocationID    *string
	CostCenterID  *string
	Phone         *string
	IsActive      *bool
	IsOutOfOffice *bool
}

// ProfileUpdate holds the fields a user may change on their own profile.
type ProfileUpdate struct {
	FirstName     *string
	LastName      *string
	Phone         *string
	IsOutOfOffice *bool
}

// UserFilter holds optional filter parameters for listing users.
type UserFilter struct {
	Role          *models.Role
	AreaID        *string
	LocationID    *string
	IsActive      *bool
	IsOutOfOffice *bool
	Search        string
}

// UserServicer defines the contract for authentication and user administration.
type UserServicer interface {
	AttemptLogin(email, password string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
	ClearRefreshTokenHash(userID string) error

	CreateUser(actorID string, in UserInput) (*models.User, error)
	ListUsers(actorID string, page pagination.PageRequest, filter UserFilter) (*pagination.PageResponse[models.User], error)
	GetUser(actorID, userID string) (*models.User, error)
	UpdateUser(actorID, userID string, in UserUpdate) (*models.User, error)
	UpdateProfile(userID string, in ProfileUpdate) (*models.User, error)
}

// CostCenterInput holds the fields for creating or updating a cost center.
type CostCenterInput struct {
	Code       string
	Name       string
	AreaID     string
	LocationID *string
	IsActive   *bool
}

// DirectoryServicer defines the contract for areas, locations and cost centers.
type DirectoryServicer interface {
	ListAreas(isActive *bool) ([]models.Area, error)
	UpdateArea(actorID, areaID string, description *string, isActive *bool) (*models.Area, error)
	ListLocations(isActive *bool) ([]models.Location, error)
	UpdateLocation(actorID, locationID string, isActive *bool) (*models.Location, error)
	ListCostCenters(page pagination.PageRequest, areaID, locationID *string, isActive *bool, search string) (*pagination.PageResponse[models.CostCenter], error)
	GetCostCenter(id string) (*models.CostCenter, error)
	CreateCostCenter(actorID string, in CostCenterInput) (*models.CostCenter, error)
	UpdateCostCenter(actorID, id string, in CostCenterInput) (*models.CostCenter, error)
}

// ItemInput holds the fields for creating or updating a catalog item.
type ItemInput struct {
	CategoryID  string
	Code        string
	Name        string
	Description string
	Unit        string
	IsActive    *bool
}

// CatalogServicer defines the contract for spend categories and items.
type CatalogServicer interface {
	ListCategories(isActive *bool) ([]models.Category, error)
	GetCategory(id string) (*models.Category, error)
	UpdateCategory(actorID, id string, name, description *string, isActive *bool) (*models.Category, error)
	ListItems(page pagination.PageRequest, categoryID *string, isActive *bool, search string) (*pagination.PageResponse[models.Item], error)
	GetItem(id string) (*models.Item, error)
	CreateItem(actorID string, in ItemInput) (*models.Item, error)
	UpdateItem(actorID, id string, in ItemInput) (*models.Item, error)
}

// BudgetView is a budget with its derived spend figures.
type BudgetView struct {
	models.Budget
	Spent          decimal.Decimal `json:"spent"`
	Available      decimal.Decimal `json:"available"`
	UtilizationPct decimal.Decimal `json:"utilization_pct"`
	Exceeded       bool            `json:"exceeded"`
}

// BudgetFilter holds optional filter parameters for listing budgets.
type BudgetFilter struct {
	Year         *int
	Month        *int
	CostCenterID *string
	CategoryID   *string
	AreaID       *string
	IsClosed     *bool
}

// BudgetSummary aggregates the budgets matched by a filter.
type BudgetSummary struct {
	TotalBudgeted  decimal.Decimal `json:"total_budgeted"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	TotalAvailable decimal.Decimal `json:"total_available"`
	BudgetCount    int             `json:"budget_count"`
	ExceededCount  int             `json:"exceeded_count"`
}

// CopyResult reports a copy_month run.
type CopyResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// ImportResult reports a spreadsheet import.
type ImportResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}

// BudgetServicer defines the contract for the budget ledger.
type BudgetServicer interface {
	ListBudgets(page pagination.PageRequest, filter BudgetFilter) (*pagination.PageResponse[BudgetView], error)
	GetBudget(id string) (*BudgetView, error)
	CreateBudget(actorID, costCenterID, categoryID string, m period.Month, amount decimal.Decimal) (*BudgetView, error)
	UpdateBudgetAmount(actorID, id string, amount decimal.Decimal, reason string) (*BudgetView, error)
	GetBudgetHistory(id string) ([]models.BudgetHistory, error)
	Summary(filter BudgetFilter) (*BudgetSummary, error)
	CopyMonth(actorID string, source, target period.Month) (*CopyResult, error)
	ProjectFromPreviousYear(actorID string, sourceYear, targetYear int, targetMonth *int) (int, error)
	CloseMonth(actorID string, m period.Month) (int64, error)
	ReopenMonth(actorID string, m period.Month) (int64, error)
	ImportSpreadsheet(actorID string, r io.Reader) (*ImportResult, error)
	ExportSpreadsheet(filter BudgetFilter, w io.Writer) error
	CheckBudgetExcess(tx *gorm.DB, request *models.PurchaseRequest) (bool, error)
}

// RequestInput holds the fields for creating or updating a purchase request.
type RequestInput struct {
	CostCenterID              *string
	CategoryID                string
	ItemIDs                   []string
	Description               string
	SuggestedSupplier         string
	EstimatedAmount           decimal.Decimal
	RequiredDate              time.Time
	Justification             string
	BudgetExcessJustification string
	Urgency                   models.Urgency
	Submit                    bool
}

// RequestFilter holds optional filter parameters for listing purchase requests.
type RequestFilter struct {
	Status        *models.RequestStatus
	Urgency       *models.Urgency
	CategoryID    *string
	CostCenterID  *string
	RequesterID   *string
	ExceedsBudget *bool
	Search        string
}

// RequestServicer defines the contract for the purchase-request workflow.
type RequestServicer interface {
	CreateRequest(actorID string, in RequestInput) (*models.PurchaseRequest, error)
	UpdateRequest(actorID, requestID string, in RequestInput) (*models.PurchaseRequest, error)
	ListRequests(actorID string, page pagination.PageRequest, filter RequestFilter) (*pagination.PageResponse[models.PurchaseRequest], error)
	GetRequest(actorID, requestID string) (*models.PurchaseRequest, error)
	Transition(actorID, requestID string, action workflow.Action, in workflow.Input) (*models.PurchaseRequest, error)
	AvailableActions(actorID string, request *models.PurchaseRequest) ([]workflow.Action, error)

	ListComments(actorID, requestID string) ([]models.RequestComment, error)
	AddComment(actorID, requestID, comment string) (*models.RequestComment, error)
	ListAttachments(actorID, requestID string) ([]models.RequestAttachment, error)
	AddAttachment(actorID, requestID, filename string, size int64, r io.Reader) (*models.RequestAttachment, error)
	OpenAttachment(actorID, requestID, attachmentID string) (*models.RequestAttachment, io.ReadCloser, error)
	ListHistory(actorID, requestID string) ([]models.RequestStatusHistory, error)
}

// FileStore persists attachment contents under relative keys.
type FileStore interface {
	Save(key string, r io.Reader) (int64, error)
	Open(key string) (io.ReadCloser, error)
	Remove(key string) error
}

// StatusPublisher is told about committed status changes.
type StatusPublisher interface {
	PublishStatusChange(request *models.PurchaseRequest, from models.RequestStatus)
}

// NotificationServicer defines the contract for the notification outbox.
type NotificationServicer interface {
	EnqueueStatusChange(tx *gorm.DB, request *models.PurchaseRequest) error
	EnqueueComment(tx *gorm.DB, request *models.PurchaseRequest, comment *models.RequestComment) error
	EnqueueOutOfOffice(tx *gorm.DB, manager *models.User) error

	Pending(limit int) ([]models.EmailNotification, error)
	MarkSent(id string) error
	MarkFailed(id string, cause error) error
	ListUserNotifications(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.EmailNotification], error)
}

// ReportFilter holds the query parameters shared by reports.
type ReportFilter struct {
	Year         *int
	Month        *int
	AreaID       *string
	CostCenterID *string
	CategoryID   *string
}

// ExpenseGroup is one aggregate row of an expense report.
type ExpenseGroup struct {
	Key   string          `json:"key"`
	Name  string          `json:"name"`
	Total decimal.Decimal `json:"total"`
	Count int64           `json:"count"`
}

// ExpenseTotals are the headline numbers of an expense report.
type ExpenseTotals struct {
	TotalEstimated decimal.Decimal `json:"total_estimated"`
	TotalActual    decimal.Decimal `json:"total_actual"`
	TotalCount     int64           `json:"total_count"`
}

// ExpensesReport is the expenses-by-period report.
type ExpensesReport struct {
	Totals       ExpenseTotals    `json:"totals"`
	ByCategory   []ExpenseGroup   `json:"by_category"`
	ByCostCenter []ExpenseGroup   `json:"by_cost_center"`
	Requests     []ExpenseRequest `json:"requests"`
}

// ExpenseRequest is one approved request listed in an expense report.
type ExpenseRequest struct {
	RequestNumber   string               `json:"request_number"`
	CreatedAt       time.Time            `json:"created_at"`
	Requester       string               `json:"requester"`
	CostCenter      string               `json:"cost_center"`
	Category        string               `json:"category"`
	Description     string               `json:"description"`
	Status          models.RequestStatus `json:"status"`
	EstimatedAmount decimal.Decimal      `json:"estimated_amount"`
}

// BudgetComparisonRow is one budget with its spend, as reported.
type BudgetComparisonRow struct {
	CostCenter     string          `json:"cost_center"`
	CostCenterName string          `json:"cost_center_name"`
	Category       string          `json:"category"`
	Year           int             `json:"year"`
	Month          int             `json:"month"`
	Budgeted       decimal.Decimal `json:"budgeted"`
	Spent          decimal.Decimal `json:"spent"`
	Available      decimal.Decimal `json:"available"`
	UtilizationPct decimal.Decimal `json:"utilization_pct"`
	Exceeded       bool            `json:"exceeded"`
}

// EmployeeExpenseRow aggregates approved spend per requester.
type EmployeeExpenseRow struct {
	RequesterID string          `json:"requester_id"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	Email       string          `json:"email"`
	Area        string          `json:"area"`
	Total       decimal.Decimal `json:"total"`
	Count       int64           `json:"count"`
}

// SupplierRow aggregates actual spend per supplier.
type SupplierRow struct {
	Supplier string          `json:"actual_supplier"`
	Total    decimal.Decimal `json:"total"`
	Count    int64           `json:"count"`
}

// Dashboard is the per-user landing summary.
type Dashboard struct {
	PendingManagerApproval int64           `json:"pending_manager_approval"`
	PendingFinanceApproval int64           `json:"pending_finance_approval"`
	InProcess              int64           `json:"in_process"`
	CompletedThisMonth     int64           `json:"completed_this_month"`
	MonthlySpend           decimal.Decimal `json:"monthly_spend"`
	MyDrafts               int64           `json:"my_drafts"`
}

// ReportServicer defines the contract for reporting.
type ReportServicer interface {
	ExpensesByPeriod(actorID string, filter ReportFilter) (*ExpensesReport, error)
	BudgetComparison(actorID string, filter ReportFilter) ([]BudgetComparisonRow, error)
	ExpensesByEmployee(actorID string, filter ReportFilter) ([]EmployeeExpenseRow, error)
	TopSuppliers(actorID string, filter ReportFilter) ([]SupplierRow, error)
	Dashboard(actorID string) (*Dashboard, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any)
}
