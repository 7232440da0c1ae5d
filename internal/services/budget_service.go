package services

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	apperrors "compras/internal/errors"
	"compras/internal/export"
	"compras/internal/models"
	"compras/internal/money"
	"compras/internal/pagination"
	"compras/internal/period"
	"compras/internal/policy"
)

// maxImportErrors caps the row errors returned by an import.
const maxImportErrors = 20

var errAmountRange = apperrors.WithMessage(apperrors.ErrInvalidInput,
	"amount must be between 0 and "+money.MaxAmount.StringFixed(2))

var budgetOrdering = map[string]string{
	"year":       "year",
	"month":      "month",
	"amount":     "amount",
	"created_at": "created_at",
}

// budgetService handles the budget ledger.
type budgetService struct {
	db  *gorm.DB
	loc *time.Location
}

// NewBudgetService creates a new BudgetServicer. loc is the calendar used to
// bucket requests into budget months.
func NewBudgetService(db *gorm.DB, loc *time.Location) BudgetServicer {
	return &budgetService{db: db, loc: loc}
}

type spendKey struct {
	costCenterID string
	categoryID   string
	month        period.Month
}

type spendRow struct {
	CostCenterID string
	CategoryID   string
	Total        decimal.Decimal
}

// spendIndex sums committed spend for every (cost center, category) in the months
// the given budgets cover, one grouped query per month.
func (s *budgetService) spendIndex(db *gorm.DB, budgets []models.Budget) (map[spendKey]decimal.Decimal, error) {
	months := make(map[period.Month]bool)
	for _, b := range budgets {
		months[period.Month{Year: b.Year, Month: b.Month}] = true
	}

	idx := make(map[spendKey]decimal.Decimal)
	for m := range months {
		start, end := m.Bounds(s.loc)
		var rows []spendRow
		err := db.Model(&models.PurchaseRequest{}).
			Select("cost_center_id, category_id, COALESCE(SUM(estimated_amount), 0) AS total").
			Where("status IN ? AND created_at >= ? AND created_at < ?", models.SpendStatuses, start, end).
			Group("cost_center_id, category_id").
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			idx[spendKey{r.CostCenterID, r.CategoryID, m}] = r.Total.Round(2)
		}
	}
	return idx, nil
}

// spentFor sums committed spend for a single envelope.
func (s *budgetService) spentFor(db *gorm.DB, costCenterID, categoryID string, m period.Month) (decimal.Decimal, error) {
	start, end := m.Bounds(s.loc)
	q := db.Model(&models.PurchaseRequest{}).
		Where("cost_center_id = ? AND category_id = ? AND status IN ? AND created_at >= ? AND created_at < ?",
			costCenterID, categoryID, models.SpendStatuses, start, end)
	return sumColumn(q, "estimated_amount")
}

func newBudgetView(b models.Budget, spent decimal.Decimal) BudgetView {
	v := BudgetView{
		Budget:    b,
		Spent:     spent,
		Available: b.Amount.Sub(spent),
		Exceeded:  spent.GreaterThan(b.Amount),
	}
	if b.Amount.IsPositive() {
		v.UtilizationPct = spent.Div(b.Amount).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return v
}

func (s *budgetService) views(budgets []models.Budget) ([]BudgetView, error) {
	idx, err := s.spendIndex(s.db, budgets)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	views := make([]BudgetView, 0, len(budgets))
	for _, b := range budgets {
		spent := idx[spendKey{b.CostCenterID, b.CategoryID, period.Month{Year: b.Year, Month: b.Month}}]
		views = append(views, newBudgetView(b, spent))
	}
	return views, nil
}

func (s *budgetService) filtered(filter BudgetFilter) *gorm.DB {
	q := s.db.Model(&models.Budget{})
	if filter.Year != nil {
		q = q.Where("year = ?", *filter.Year)
	}
	if filter.Month != nil {
		q = q.Where("month = ?", *filter.Month)
	}
	if filter.CostCenterID != nil {
		q = q.Where("cost_center_id = ?", *filter.CostCenterID)
	}
	if filter.CategoryID != nil {
		q = q.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.IsClosed != nil {
		q = q.Where("is_closed = ?", *filter.IsClosed)
	}
	if filter.AreaID != nil {
		centers := s.db.Model(&models.CostCenter{}).Select("id").Where("area_id = ?", *filter.AreaID)
		q = q.Where("cost_center_id IN (?)", centers)
	}
	return q
}

// ListBudgets returns a page of budgets with derived spend figures.
func (s *budgetService) ListBudgets(page pagination.PageRequest, filter BudgetFilter) (*pagination.PageResponse[BudgetView], error) {
	page.Defaults()

	base := s.filtered(filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var budgets []models.Budget
	err := base.Preload("CostCenter").Preload("Category").
		Order(page.OrderClause(budgetOrdering, "year DESC, month DESC, cost_center_id, category_id")).
		Scopes(pagination.Paginate(page)).
		Find(&budgets).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	views, err := s.views(budgets)
	if err != nil {
		return nil, err
	}
	result := pagination.NewPageResponse(views, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func (s *budgetService) find(db *gorm.DB, id string) (*models.Budget, error) {
	var budget models.Budget
	if err := db.Preload("CostCenter").Preload("Category").First(&budget, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &budget, nil
}

func (s *budgetService) view(b *models.Budget) (*BudgetView, error) {
	spent, err := s.spentFor(s.db, b.CostCenterID, b.CategoryID, period.Month{Year: b.Year, Month: b.Month})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	v := newBudgetView(*b, spent)
	return &v, nil
}

// GetBudget returns a single budget with derived spend figures.
func (s *budgetService) GetBudget(id string) (*BudgetView, error) {
	budget, err := s.find(s.db, id)
	if err != nil {
		return nil, err
	}
	return s.view(budget)
}

// CreateBudget opens a new envelope for a (cost center, category, month).
func (s *budgetService) CreateBudget(actorID, costCenterID, categoryID string, m period.Month, amount decimal.Decimal) (*BudgetView, error) {
	actor, err := requirePermission(s.db, actorID, policy.ManageBudgets)
	if err != nil {
		return nil, err
	}
	if !m.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid year or month")
	}
	if !money.InRange(amount) {
		return nil, errAmountRange
	}
	if err := s.db.First(&models.CostCenter{}, "id = ?", costCenterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCostCenterNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.db.First(&models.Category{}, "id = ?", categoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	budget := &models.Budget{
		CostCenterID: costCenterID,
		CategoryID:   categoryID,
		Year:         m.Year,
		Month:        m.Month,
		Amount:       amount.Round(2),
		CreatedByID:  &actor.ID,
	}
	if err := s.db.Create(budget).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperrors.ErrDuplicateBudget
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	budget, err = s.find(s.db, budget.ID)
	if err != nil {
		return nil, err
	}
	return s.view(budget)
}

// UpdateBudgetAmount changes an open budget's amount and appends a history row
// when the amount actually changes.
func (s *budgetService) UpdateBudgetAmount(actorID, id string, amount decimal.Decimal, reason string) (*BudgetView, error) {
	actor, err := requirePermission(s.db, actorID, policy.ManageBudgets)
	if err != nil {
		return nil, err
	}
	if !money.InRange(amount) {
		return nil, errAmountRange
	}

	budget, err := s.find(s.db, id)
	if err != nil {
		return nil, err
	}
	if budget.IsClosed {
		return nil, apperrors.ErrBudgetClosed
	}

	amount = amount.Round(2)
	if !amount.Equal(budget.Amount) {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			return s.changeAmount(tx, budget, amount, actor.ID, reason)
		})
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return s.view(budget)
}

func (s *budgetService) changeAmount(tx *gorm.DB, budget *models.Budget, amount decimal.Decimal, actorID, reason string) error {
	history := &models.BudgetHistory{
		BudgetID:       budget.ID,
		PreviousAmount: budget.Amount,
		NewAmount:      amount,
		ChangedByID:    actorID,
		Reason:         strings.TrimSpace(reason),
	}
	if err := tx.Model(budget).Update("amount", amount).Error; err != nil {
		return err
	}
	budget.Amount = amount
	return tx.Create(history).Error
}

// GetBudgetHistory lists amount changes for a budget, oldest first.
func (s *budgetService) GetBudgetHistory(id string) ([]models.BudgetHistory, error) {
	if _, err := s.find(s.db, id); err != nil {
		return nil, err
	}
	var history []models.BudgetHistory
	err := s.db.Preload("ChangedBy").Where("budget_id = ?", id).Order("created_at ASC").Find(&history).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return history, nil
}

// Summary totals every budget matching filter.
func (s *budgetService) Summary(filter BudgetFilter) (*BudgetSummary, error) {
	var budgets []models.Budget
	if err := s.filtered(filter).Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	views, err := s.views(budgets)
	if err != nil {
		return nil, err
	}

	summary := &BudgetSummary{BudgetCount: len(views)}
	for _, v := range views {
		summary.TotalBudgeted = summary.TotalBudgeted.Add(v.Amount)
		summary.TotalSpent = summary.TotalSpent.Add(v.Spent)
		if v.Exceeded {
			summary.ExceededCount++
		}
	}
	summary.TotalAvailable = summary.TotalBudgeted.Sub(summary.TotalSpent)
	return summary, nil
}

// createIfMissing inserts b unless its envelope already exists.
func createIfMissing(tx *gorm.DB, b *models.Budget) (bool, error) {
	var count int64
	err := tx.Model(&models.Budget{}).
		Where("cost_center_id = ? AND category_id = ? AND year = ? AND month = ?", b.CostCenterID, b.CategoryID, b.Year, b.Month).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if err := tx.Create(b).Error; err != nil {
		return false, err
	}
	return true, nil
}

// CopyMonth copies every envelope of source into target, keeping existing targets.
func (s *budgetService) CopyMonth(actorID string, source, target period.Month) (*CopyResult, error) {
	actor, err := requirePermission(s.db, actorID, policy.ManageBudgets)
	if err != nil {
		return nil, err
	}
	if !source.Valid() || !target.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "source and target periods are required")
	}

	var budgets []models.Budget
	if err := s.db.Where("year = ? AND month = ?", source.Year, source.Month).Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(budgets) == 0 {
		return nil, apperrors.ErrEmptySourcePeriod
	}

	result := &CopyResult{}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, b := range budgets {
			created, err := createIfMissing(tx, &models.Budget{
				CostCenterID: b.CostCenterID,
				CategoryID:   b.CategoryID,
				Year:         target.Year,
				Month:        target.Month,
				Amount:       b.Amount,
				CreatedByID:  &actor.ID,
			})
			if err != nil {
				return err
			}
			if created {
				result.Created++
			} else {
				result.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// ProjectFromPreviousYear creates missing envelopes in targetYear from each
// pair's average monthly amount in sourceYear. A nil targetMonth fills all twelve.
func (s *budgetService) ProjectFromPreviousYear(actorID string, sourceYear, targetYear int, targetMonth *int) (int, error) {
	actor, err := requirePermission(s.db, actorID, policy.ManageBudgets)
	if err != nil {
		return 0, err
	}
	months := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	if targetMonth != nil {
		months = []int{*targetMonth}
	}
	if !(period.Month{Year: sourceYear, Month: 1}).Valid() {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid source year")
	}
	for _, m := range months {
		if !(period.Month{Year: targetYear, Month: m}).Valid() {
			return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid target period")
		}
	}

	var budgets []models.Budget
	if err := s.db.Where("year = ?", sourceYear).Find(&budgets).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(budgets) == 0 {
		return 0, apperrors.WithMessage(apperrors.ErrEmptySourcePeriod, fmt.Sprintf("No budgets found in %d", sourceYear))
	}

	type pair struct{ costCenterID, categoryID string }
	sums := make(map[pair]decimal.Decimal)
	counts := make(map[pair]int64)
	for _, b := range budgets {
		k := pair{b.CostCenterID, b.CategoryID}
		sums[k] = sums[k].Add(b.Amount)
		counts[k]++
	}
	keys := make([]pair, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].costCenterID != keys[j].costCenterID {
			return keys[i].costCenterID < keys[j].costCenterID
		}
		return keys[i].categoryID < keys[j].categoryID
	})

	created := 0
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, k := range keys {
			avg := sums[k].Div(decimal.NewFromInt(counts[k])).Round(2)
			for _, m := range months {
				ok, err := createIfMissing(tx, &models.Budget{
					CostCenterID: k.costCenterID,
					CategoryID:   k.categoryID,
					Year:         targetYear,
					Month:        m,
					Amount:       avg,
					CreatedByID:  &actor.ID,
				})
				if err != nil {
					return err
				}
				if ok {
					created++
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return created, nil
}

// CloseMonth locks every open budget of the month against edits.
func (s *budgetService) CloseMonth(actorID string, m period.Month) (int64, error) {
	if _, err := requirePermission(s.db, actorID, policy.ManageBudgets); err != nil {
		return 0, err
	}
	return s.setClosed(m, true)
}

// ReopenMonth unlocks a closed month. Only finance may do this.
func (s *budgetService) ReopenMonth(actorID string, m period.Month) (int64, error) {
	if _, err := requirePermission(s.db, actorID, policy.ReopenBudgets); err != nil {
		return 0, err
	}
	return s.setClosed(m, false)
}

func (s *budgetService) setClosed(m period.Month, closed bool) (int64, error) {
	if !m.Valid() {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "year and month are required")
	}
	res := s.db.Model(&models.Budget{}).
		Where("year = ? AND month = ? AND is_closed = ?", m.Year, m.Month, !closed).
		Update("is_closed", closed)
	if res.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	return res.RowsAffected, nil
}

// ImportSpreadsheet upserts budgets from the first sheet of an .xlsx file laid out
// as cost_center_code, category_code, year, month, amount with a header row.
func (s *budgetService) ImportSpreadsheet(actorID string, r io.Reader) (*ImportResult, error) {
	actor, err := requirePermission(s.db, actorID, policy.ManageBudgets)
	if err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidSpreadsheet, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.ErrInvalidSpreadsheet
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidSpreadsheet, err)
	}
	if len(rows) < 2 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "The file contains no data rows")
	}

	var centers []models.CostCenter
	if err := s.db.Find(&centers).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	var categories []models.Category
	if err := s.db.Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	centerByCode := make(map[string]string, len(centers))
	for _, c := range centers {
		centerByCode[c.Code] = c.ID
	}
	categoryByCode := make(map[string]string, len(categories))
	for _, c := range categories {
		categoryByCode[string(c.Code)] = c.ID
	}

	result := &ImportResult{Errors: []string{}}
	rowErr := func(n int, format string, args ...any) {
		if len(result.Errors) < maxImportErrors {
			result.Errors = append(result.Errors, fmt.Sprintf("Fila %d: ", n)+fmt.Sprintf(format, args...))
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for i, row := range rows[1:] {
			n := i + 2
			if isBlankRow(row) {
				continue
			}
			if len(row) < 5 {
				rowErr(n, "datos insuficientes")
				continue
			}

			ccCode, catCode := strings.TrimSpace(row[0]), strings.TrimSpace(row[1])
			centerID, ok := centerByCode[ccCode]
			if !ok {
				rowErr(n, "centro de costos %q no encontrado", ccCode)
				continue
			}
			categoryID, ok := categoryByCode[catCode]
			if !ok {
				rowErr(n, "categoria %q no encontrada", catCode)
				continue
			}
			year, yErr := strconv.Atoi(strings.TrimSpace(row[2]))
			month, mErr := strconv.Atoi(strings.TrimSpace(row[3]))
			m := period.Month{Year: year, Month: month}
			if yErr != nil || mErr != nil || !m.Valid() {
				rowErr(n, "periodo invalido \"%s/%s\"", row[2], row[3])
				continue
			}
			amount, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(row[4]), ",", ""))
			if err != nil || !money.InRange(amount) {
				rowErr(n, "monto invalido %q", row[4])
				continue
			}
			amount = amount.Round(2)

			var existing models.Budget
			err = tx.Where("cost_center_id = ? AND category_id = ? AND year = ? AND month = ?", centerID, categoryID, m.Year, m.Month).
				First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(&models.Budget{
					CostCenterID: centerID,
					CategoryID:   categoryID,
					Year:         m.Year,
					Month:        m.Month,
					Amount:       amount,
					CreatedByID:  &actor.ID,
				}).Error; err != nil {
					return err
				}
				result.Created++
			case err != nil:
				return err
			case existing.IsClosed && !existing.Amount.Equal(amount):
				rowErr(n, "presupuesto cerrado para %s", m)
			default:
				if !existing.Amount.Equal(amount) {
					if err := s.changeAmount(tx, &existing, amount, actor.ID, "Importación desde Excel"); err != nil {
						return err
					}
				}
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ExportSpreadsheet writes the filtered budgets in the import layout followed by
// their spend figures.
func (s *budgetService) ExportSpreadsheet(filter BudgetFilter, w io.Writer) error {
	var budgets []models.Budget
	err := s.filtered(filter).Preload("CostCenter").Preload("Category").
		Order("year, month").Find(&budgets).Error
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	views, err := s.views(budgets)
	if err != nil {
		return err
	}
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.CostCenter.Code != b.CostCenter.Code {
			return a.CostCenter.Code < b.CostCenter.Code
		}
		return a.Category.Code < b.Category.Code
	})

	table := export.Table{
		Headers: []string{"cost_center_code", "category_code", "year", "month", "amount", "spent", "available", "utilization_pct", "is_closed"},
		Widths:  []float64{18, 26, 8, 8, 14, 14, 14, 14, 10},
	}
	for _, v := range views {
		table.Rows = append(table.Rows, []any{
			v.CostCenter.Code, string(v.Category.Code), v.Year, v.Month,
			v.Amount, v.Spent, v.Available, v.UtilizationPct.InexactFloat64(), v.IsClosed,
		})
		table.Flagged = append(table.Flagged, v.Exceeded)
	}

	if err := export.WriteExcel(w, export.Sheet{Name: "Presupuestos", Table: table}); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// CheckBudgetExcess reports whether request's estimate exceeds what remains of its
// envelope in the month it was created. A missing envelope counts as exceeded.
func (s *budgetService) CheckBudgetExcess(tx *gorm.DB, request *models.PurchaseRequest) (bool, error) {
	created := request.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	m := period.Of(created, s.loc)

	var budget models.Budget
	err := tx.Where("cost_center_id = ? AND category_id = ? AND year = ? AND month = ?",
		request.CostCenterID, request.CategoryID, m.Year, m.Month).First(&budget).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	spent, err := s.spentFor(tx, request.CostCenterID, request.CategoryID, m)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	available := budget.Amount.Sub(spent)
	return request.EstimatedAmount.GreaterThan(available), nil
}
