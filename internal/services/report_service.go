package services

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "compras/internal/errors"
	"compras/internal/models"
	"compras/internal/period"
	"compras/internal/policy"
)

// topSuppliersLimit caps the supplier ranking.
const topSuppliersLimit = 20

// reportService builds read-only aggregates over requests and budgets.
type reportService struct {
	db      *gorm.DB
	loc     *time.Location
	budgets *budgetService
}

// NewReportService creates a new ReportServicer.
func NewReportService(db *gorm.DB, loc *time.Location) ReportServicer {
	return &reportService{db: db, loc: loc, budgets: &budgetService{db: db, loc: loc}}
}

// authorize loads the actor, checks ViewReports and pins managers to their own area.
func (s *reportService) authorize(actorID string, filter *ReportFilter) error {
	actor, err := requirePermission(s.db, actorID, policy.ViewReports)
	if err != nil {
		return err
	}
	if policy.IsManager(actor.Role) {
		if actor.AreaID == nil {
			return apperrors.ErrForbidden
		}
		filter.AreaID = actor.AreaID
	}
	return nil
}

func requireYear(filter ReportFilter) error {
	if filter.Year == nil {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "year is required")
	}
	if filter.Month != nil && (*filter.Month < 1 || *filter.Month > 12) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "month must be between 1 and 12")
	}
	return nil
}

// window returns the created_at range selected by year and month.
func (s *reportService) window(filter ReportFilter) (time.Time, time.Time) {
	if filter.Month != nil {
		return period.Month{Year: *filter.Year, Month: *filter.Month}.Bounds(s.loc)
	}
	return period.YearBounds(*filter.Year, s.loc)
}

// requests returns a fresh query over purchase_requests in statuses, narrowed by filter.
func (s *reportService) requests(statuses []models.RequestStatus, filter ReportFilter) *gorm.DB {
	q := s.db.Model(&models.PurchaseRequest{}).Where("purchase_requests.status IN ?", statuses)
	if filter.Year != nil {
		start, end := s.window(filter)
		q = q.Where("purchase_requests.created_at >= ? AND purchase_requests.created_at < ?", start, end)
	}
	if filter.AreaID != nil {
		centers := s.db.Session(&gorm.Session{NewDB: true}).
			Model(&models.CostCenter{}).Select("id").Where("area_id = ?", *filter.AreaID)
		q = q.Where("purchase_requests.cost_center_id IN (?)", centers)
	}
	if filter.CostCenterID != nil {
		q = q.Where("purchase_requests.cost_center_id = ?", *filter.CostCenterID)
	}
	if filter.CategoryID != nil {
		q = q.Where("purchase_requests.category_id = ?", *filter.CategoryID)
	}
	return q
}

type groupRow struct {
	GroupKey     string
	GroupName    string
	Total        decimal.Decimal
	RequestCount int64
}

func toGroups(rows []groupRow) []ExpenseGroup {
	out := make([]ExpenseGroup, 0, len(rows))
	for _, r := range rows {
		out = append(out, ExpenseGroup{Key: r.GroupKey, Name: r.GroupName, Total: r.Total.Round(2), Count: r.RequestCount})
	}
	return out
}

// ExpensesByPeriod totals approved requests and breaks them down by category and cost center.
func (s *reportService) ExpensesByPeriod(actorID string, filter ReportFilter) (*ExpensesReport, error) {
	if err := s.authorize(actorID, &filter); err != nil {
		return nil, err
	}
	if err := requireYear(filter); err != nil {
		return nil, err
	}

	report := &ExpensesReport{}

	var err error
	if report.Totals.TotalEstimated, err = sumColumn(s.requests(models.ApprovedStatuses, filter), "purchase_requests.estimated_amount"); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if report.Totals.TotalActual, err = sumColumn(s.requests(models.ApprovedStatuses, filter), "purchase_requests.actual_amount"); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.requests(models.ApprovedStatuses, filter).Count(&report.Totals.TotalCount).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var byCategory []groupRow
	err = s.requests(models.ApprovedStatuses, filter).
		Joins("JOIN categories ON categories.id = purchase_requests.category_id").
		Select("categories.code AS group_key, categories.name AS group_name, " +
			"COALESCE(SUM(purchase_requests.estimated_amount), 0) AS total, COUNT(purchase_requests.id) AS request_count").
		Group("categories.code, categories.name").
		Order("total DESC").
		Scan(&byCategory).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	report.ByCategory = toGroups(byCategory)

	var byCostCenter []groupRow
	err = s.requests(models.ApprovedStatuses, filter).
		Joins("JOIN cost_centers ON cost_centers.id = purchase_requests.cost_center_id").
		Select("cost_centers.code AS group_key, cost_centers.name AS group_name, " +
			"COALESCE(SUM(purchase_requests.estimated_amount), 0) AS total, COUNT(purchase_requests.id) AS request_count").
		Group("cost_centers.code, cost_centers.name").
		Order("total DESC").
		Scan(&byCostCenter).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	report.ByCostCenter = toGroups(byCostCenter)

	var requests []models.PurchaseRequest
	err = s.requests(models.ApprovedStatuses, filter).
		Preload("Requester").Preload("CostCenter").Preload("Category").
		Order("purchase_requests.created_at ASC").
		Find(&requests).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	report.Requests = make([]ExpenseRequest, 0, len(requests))
	for i := range requests {
		r := &requests[i]
		row := ExpenseRequest{
			RequestNumber:   r.RequestNumber,
			CreatedAt:       r.CreatedAt,
			Description:     r.Description,
			Status:          r.Status,
			EstimatedAmount: r.EstimatedAmount,
		}
		if r.Requester != nil {
			row.Requester = r.Requester.FullName()
		}
		if r.CostCenter != nil {
			row.CostCenter = r.CostCenter.Code
		}
		if r.Category != nil {
			row.Category = r.Category.Name
		}
		report.Requests = append(report.Requests, row)
	}
	return report, nil
}

// BudgetComparison lists each budget of the period next to its committed spend.
func (s *reportService) BudgetComparison(actorID string, filter ReportFilter) ([]BudgetComparisonRow, error) {
	if err := s.authorize(actorID, &filter); err != nil {
		return nil, err
	}
	if err := requireYear(filter); err != nil {
		return nil, err
	}

	q := s.budgets.filtered(BudgetFilter{
		Year:         filter.Year,
		Month:        filter.Month,
		AreaID:       filter.AreaID,
		CostCenterID: filter.CostCenterID,
		CategoryID:   filter.CategoryID,
	})
	var budgets []models.Budget
	err := q.Preload("CostCenter").Preload("Category").
		Order("month ASC, cost_center_id, category_id").
		Find(&budgets).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	views, err := s.budgets.views(budgets)
	if err != nil {
		return nil, err
	}

	rows := make([]BudgetComparisonRow, 0, len(views))
	for _, v := range views {
		row := BudgetComparisonRow{
			Year:           v.Year,
			Month:          v.Month,
			Budgeted:       v.Amount,
			Spent:          v.Spent,
			Available:      v.Available,
			UtilizationPct: v.UtilizationPct,
			Exceeded:       v.Exceeded,
		}
		if v.CostCenter != nil {
			row.CostCenter = v.CostCenter.Code
			row.CostCenterName = v.CostCenter.Name
		}
		if v.Category != nil {
			row.Category = v.Category.Name
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type employeeRow struct {
	RequesterID  string
	FirstName    string
	LastName     string
	Email        string
	AreaName     *string
	Total        decimal.Decimal
	RequestCount int64
}

// ExpensesByEmployee totals approved requests per requester.
func (s *reportService) ExpensesByEmployee(actorID string, filter ReportFilter) ([]EmployeeExpenseRow, error) {
	if err := s.authorize(actorID, &filter); err != nil {
		return nil, err
	}
	if err := requireYear(filter); err != nil {
		return nil, err
	}

	var scanned []employeeRow
	err := s.requests(models.ApprovedStatuses, filter).
		Joins("JOIN users ON users.id = purchase_requests.requester_id").
		Joins("LEFT JOIN areas ON areas.id = users.area_id").
		Select("users.id AS requester_id, users.first_name, users.last_name, users.email, areas.name AS area_name, " +
			"COALESCE(SUM(purchase_requests.estimated_amount), 0) AS total, COUNT(purchase_requests.id) AS request_count").
		Group("users.id, users.first_name, users.last_name, users.email, areas.name").
		Order("total DESC").
		Scan(&scanned).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	rows := make([]EmployeeExpenseRow, 0, len(scanned))
	for _, r := range scanned {
		row := EmployeeExpenseRow{
			RequesterID: r.RequesterID,
			FirstName:   r.FirstName,
			LastName:    r.LastName,
			Email:       r.Email,
			Total:       r.Total.Round(2),
			Count:       r.RequestCount,
		}
		if r.AreaName != nil {
			row.Area = models.AreaName(*r.AreaName).Label()
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type supplierRow struct {
	ActualSupplier string
	Total          decimal.Decimal
	RequestCount   int64
}

// TopSuppliers ranks suppliers of purchased requests by actual spend.
func (s *reportService) TopSuppliers(actorID string, filter ReportFilter) ([]SupplierRow, error) {
	if err := s.authorize(actorID, &filter); err != nil {
		return nil, err
	}
	if filter.Year == nil && filter.Month != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "month requires year")
	}
	if filter.Year != nil {
		if err := requireYear(filter); err != nil {
			return nil, err
		}
	}

	var scanned []supplierRow
	err := s.requests([]models.RequestStatus{models.StatusComprada, models.StatusCompletada}, filter).
		Where("purchase_requests.actual_supplier <> ''").
		Select("purchase_requests.actual_supplier AS actual_supplier, " +
			"COALESCE(SUM(purchase_requests.actual_amount), 0) AS total, COUNT(purchase_requests.id) AS request_count").
		Group("purchase_requests.actual_supplier").
		Order("total DESC").
		Limit(topSuppliersLimit).
		Scan(&scanned).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	rows := make([]SupplierRow, 0, len(scanned))
	for _, r := range scanned {
		rows = append(rows, SupplierRow{Supplier: r.ActualSupplier, Total: r.Total.Round(2), Count: r.RequestCount})
	}
	return rows, nil
}

// Dashboard summarizes the requests visible to the actor.
func (s *reportService) Dashboard(actorID string) (*Dashboard, error) {
	actor, err := loadActor(s.db, actorID)
	if err != nil {
		return nil, err
	}

	visible := func() *gorm.DB {
		return scopeRequests(s.db.Model(&models.PurchaseRequest{}), actor)
	}
	start, end := period.Of(time.Now(), s.loc).Bounds(s.loc)

	d := &Dashboard{}
	counts := []struct {
		dst *int64
		q   *gorm.DB
	}{
		{&d.PendingManagerApproval, visible().Where("purchase_requests.status = ?", models.StatusPendienteGerente)},
		{&d.PendingFinanceApproval, visible().Where("purchase_requests.status = ?", models.StatusAprobadaPorGerente)},
		{&d.InProcess, visible().Where("purchase_requests.status = ?", models.StatusEnProceso)},
		{&d.CompletedThisMonth, visible().Where("purchase_requests.status = ? AND purchase_requests.created_at >= ? AND purchase_requests.created_at < ?",
			models.StatusCompletada, start, end)},
		{&d.MyDrafts, s.db.Model(&models.PurchaseRequest{}).Where("requester_id = ? AND status = ?", actor.ID, models.StatusBorrador)},
	}
	for _, c := range counts {
		if err := c.q.Count(c.dst).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	spend := visible().Where("purchase_requests.status IN ? AND purchase_requests.created_at >= ? AND purchase_requests.created_at < ?",
		models.ApprovedStatuses, start, end)
	if d.MonthlySpend, err = sumColumn(spend, "purchase_requests.estimated_amount"); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return d, nil
}
