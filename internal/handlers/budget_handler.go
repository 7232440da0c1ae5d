package handlers

import (
	"bytes"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "compras/internal/errors"
	"compras/internal/export"
	"compras/internal/pagination"
	"compras/internal/period"
	"compras/internal/services"
)

// maxImportSize bounds an uploaded budget spreadsheet.
const maxImportSize = 5 << 20

// BudgetHandler handles the budget ledger.
type BudgetHandler struct {
	budgetService services.BudgetServicer
	auditService  services.AuditServicer
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(budgetService services.BudgetServicer, auditService services.AuditServicer) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService, auditService: auditService}
}

// CreateBudgetRequest represents the request payload for creating a budget.
type CreateBudgetRequest struct {
	CostCenterID string           `json:"cost_center_id" binding:"required,uuid"`
	CategoryID   string           `json:"category_id" binding:"required,uuid"`
	Year         int              `json:"year" binding:"required,year"`
	Month        int              `json:"month" binding:"required,month"`
	Amount       *decimal.Decimal `json:"amount" binding:"required" swaggertype:"string"`
}

// UpdateBudgetRequest represents the request payload for changing a budget's amount.
type UpdateBudgetRequest struct {
	Amount *decimal.Decimal `json:"amount" binding:"required" swaggertype:"string"`
	Reason string           `json:"reason" binding:"max=1000"`
}

// CopyMonthRequest represents the request payload for copying a month's budgets.
type CopyMonthRequest struct {
	SourceYear  int `json:"source_year" binding:"required,year"`
	SourceMonth int `json:"source_month" binding:"required,month"`
	TargetYear  int `json:"target_year" binding:"required,year"`
	TargetMonth int `json:"target_month" binding:"required,month"`
}

// ProjectRequest represents the request payload for projecting from the previous year.
type ProjectRequest struct {
	SourceYear  int  `json:"source_year" binding:"required,year"`
	TargetYear  int  `json:"target_year" binding:"required,year"`
	TargetMonth *int `json:"target_month" binding:"omitempty,month"`
}

// PeriodRequest represents a single calendar month.
type PeriodRequest struct {
	Year  int `json:"year" binding:"required,year"`
	Month int `json:"month" binding:"required,month"`
}

// budgetFilter reads the shared list, summary and export filters.
func budgetFilter(c *gin.Context) (services.BudgetFilter, error) {
	var f services.BudgetFilter
	var err error
	if f.Year, err = queryInt(c, "year", 2000, 2100); err != nil {
		return f, err
	}
	if f.Month, err = queryInt(c, "month", 1, 12); err != nil {
		return f, err
	}
	if f.CostCenterID, err = queryID(c, "cost_center"); err != nil {
		return f, err
	}
	if f.CategoryID, err = queryID(c, "category"); err != nil {
		return f, err
	}
	if f.AreaID, err = queryID(c, "area"); err != nil {
		return f, err
	}
	if f.IsClosed, err = queryBool(c, "is_closed"); err != nil {
		return f, err
	}
	return f, nil
}

// CreateBudget handles the creation of a new budget.
// @Summary     Create a budget
// @Description Open an envelope for a cost center, category and month
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateBudgetRequest true "Budget details"
// @Success     201 {object} services.BudgetView "Budget created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "Cost center or category not found"
// @Failure     409 {object} ErrorResponse "Duplicate budget"
// @Router      /budgets/budgets [post]
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	budget, err := h.budgetService.CreateBudget(userID, req.CostCenterID, req.CategoryID,
		period.Month{Year: req.Year, Month: req.Month}, *req.Amount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_BUDGET", "budget", budget.ID, c.ClientIP(),
		map[string]any{"year": req.Year, "month": req.Month, "amount": req.Amount.String()})

	c.JSON(http.StatusCreated, gin.H{"budget": budget})
}

// GetBudgets handles listing budgets.
// @Summary     Get budgets
// @Description Get a paginated list of budgets with spend figures
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       year        query int    false "Filter by year"
// @Param       month       query int    false "Filter by month"
// @Param       cost_center query string false "Filter by cost center ID"
// @Param       category    query string false "Filter by category ID"
// @Param       area        query string false "Filter by area ID"
// @Param       is_closed   query bool   false "Filter by closed flag"
// @Param       page        query int    false "Page number (default 1)"
// @Param       page_size   query int    false "Items per page (default 20, max 100)"
// @Param       ordering    query string false "year, month or amount (prefix - for descending)"
// @Success     200 {object} pagination.PageResponse[services.BudgetView] "Paginated budgets"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /budgets/budgets [get]
func (h *BudgetHandler) GetBudgets(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	filter, err := budgetFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.budgetService.ListBudgets(page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetBudget handles fetching a single budget.
// @Summary     Get a budget
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} services.BudgetView "Budget"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/budgets/{id} [get]
func (h *BudgetHandler) GetBudget(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	budget, err := h.budgetService.GetBudget(id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// UpdateBudget changes a budget's amount.
// @Summary     Update a budget amount
// @Description Change the amount of an open budget, recording the reason in its history
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string              true "Budget ID"
// @Param       request body UpdateBudgetRequest true "New amount and reason"
// @Success     200 {object} services.BudgetView "Updated budget"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden or budget closed"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/budgets/{id} [patch]
func (h *BudgetHandler) UpdateBudget(c *gin.Context) {
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

	var req UpdateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	budget, err := h.budgetService.UpdateBudgetAmount(userID, id, *req.Amount, req.Reason)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_BUDGET", "budget", id, c.ClientIP(),
		map[string]any{"amount": req.Amount.String(), "reason": req.Reason})

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// GetBudgetHistory lists a budget's amount changes.
// @Summary     Get budget history
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {array}  models.BudgetHistory "Amount changes, oldest first"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/budgets/{id}/history [get]
func (h *BudgetHandler) GetBudgetHistory(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	history, err := h.budgetService.GetBudgetHistory(id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// GetSummary aggregates the filtered budgets.
// @Summary     Budget summary
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       year  query int false "Filter by year"
// @Param       month query int false "Filter by month"
// @Success     200 {object} services.BudgetSummary "Totals"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /budgets/budgets/summary [get]
func (h *BudgetHandler) GetSummary(c *gin.Context) {
	filter, err := budgetFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	summary, err := h.budgetService.Summary(filter)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// CopyMonth copies every envelope of one month into another.
// @Summary     Copy a month's budgets
// @Description Get-or-create each source envelope in the target period. Running it twice skips everything.
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CopyMonthRequest true "Source and target periods"
// @Success     200 {object} services.CopyResult "Created and skipped counts"
// @Failure     400 {object} ErrorResponse "Invalid input or empty source period"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Router      /budgets/budgets/copy_month [post]
func (h *BudgetHandler) CopyMonth(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CopyMonthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	source := period.Month{Year: req.SourceYear, Month: req.SourceMonth}
	target := period.Month{Year: req.TargetYear, Month: req.TargetMonth}
	result, err := h.budgetService.CopyMonth(userID, source, target)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "COPY_BUDGET_MONTH", "budget", "", c.ClientIP(),
		map[string]any{"source": source.String(), "target": target.String(), "created": result.Created})

	c.JSON(http.StatusOK, result)
}

// ProjectFromPreviousYear averages a year's amounts into missing envelopes.
// @Summary     Project budgets from the previous year
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body ProjectRequest true "Source year and target period"
// @Success     200 {object} map[string]int "Created count"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Router      /budgets/budgets/project_from_previous_year [post]
func (h *BudgetHandler) ProjectFromPreviousYear(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	created, err := h.budgetService.ProjectFromPreviousYear(userID, req.SourceYear, req.TargetYear, req.TargetMonth)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "PROJECT_BUDGETS", "budget", "", c.ClientIP(),
		map[string]any{"source_year": req.SourceYear, "target_year": req.TargetYear, "created": created})

	c.JSON(http.StatusOK, gin.H{"created": created})
}

// CloseMonth locks a month's budgets.
// @Summary     Close a month
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body PeriodRequest true "Period"
// @Success     200 {object} map[string]int "Closed count"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Router      /budgets/budgets/close_month [post]
func (h *BudgetHandler) CloseMonth(c *gin.Context) {
	h.setClosed(c, true)
}

// ReopenMonth unlocks a month's budgets. Finance only.
// @Summary     Reopen a month
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body PeriodRequest true "Period"
// @Success     200 {object} map[string]int "Reopened count"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Router      /budgets/budgets/reopen_month [post]
func (h *BudgetHandler) ReopenMonth(c *gin.Context) {
	h.setClosed(c, false)
}

func (h *BudgetHandler) setClosed(c *gin.Context, closed bool) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	m := period.Month{Year: req.Year, Month: req.Month}

	action, key := "CLOSE_BUDGET_MONTH", "closed"
	var count int64
	if closed {
		count, err = h.budgetService.CloseMonth(userID, m)
	} else {
		action, key = "REOPEN_BUDGET_MONTH", "reopened"
		count, err = h.budgetService.ReopenMonth(userID, m)
	}
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, action, "budget", "", c.ClientIP(),
		map[string]any{"period": m.String(), key: count})

	c.JSON(http.StatusOK, gin.H{key: count})
}

// ImportExcel upserts budgets from an uploaded .xlsx file.
// @Summary     Import budgets from Excel
// @Description Columns: cost_center_code, category_code, year, month, amount. Row errors are reported, not fatal.
// @Tags        budgets
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       file formData file true ".xlsx spreadsheet"
// @Success     200 {object} services.ImportResult "Import outcome"
// @Failure     400 {object} ErrorResponse "Invalid spreadsheet"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Router      /budgets/budgets/import_excel [post]
func (h *BudgetHandler) ImportExcel(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "file is required"))
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		respondWithError(c, apperrors.ErrInvalidSpreadsheet)
		return
	}
	if header.Size > maxImportSize {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidSpreadsheet, "The spreadsheet must be 5MB or smaller"))
		return
	}

	file, err := header.Open()
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	defer file.Close()

	result, err := h.budgetService.ImportSpreadsheet(userID, file)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "IMPORT_BUDGETS", "budget", "", c.ClientIP(),
		map[string]any{"file": header.Filename, "created": result.Created, "updated": result.Updated})

	c.JSON(http.StatusOK, result)
}

// ExportExcel downloads the filtered budgets in the import layout.
// @Summary     Export budgets to Excel
// @Tags        budgets
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security    BearerAuth
// @Param       year  query int false "Filter by year"
// @Param       month query int false "Filter by month"
// @Success     200 {file} file "Spreadsheet"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /budgets/budgets/export_excel [get]
func (h *BudgetHandler) ExportExcel(c *gin.Context) {
	filter, err := budgetFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.budgetService.ExportSpreadsheet(filter, &buf); err != nil {
		respondWithError(c, err)
		return
	}

	name := "presupuestos.xlsx"
	if filter.Year != nil {
		name = export.Filename("presupuestos", *filter.Year, filter.Month, "xlsx")
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, export.ContentTypeExcel, buf.Bytes())
}
