package handlers

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "compras/internal/errors"
	"compras/internal/export"
	"compras/internal/models"
	"compras/internal/services"
)

type mockReportService struct {
	expensesByPeriodFn   func(actorID string, filter services.ReportFilter) (*services.ExpensesReport, error)
	budgetComparisonFn   func(actorID string, filter services.ReportFilter) ([]services.BudgetComparisonRow, error)
	expensesByEmployeeFn func(actorID string, filter services.ReportFilter) ([]services.EmployeeExpenseRow, error)
	topSuppliersFn       func(actorID string, filter services.ReportFilter) ([]services.SupplierRow, error)
	dashboardFn          func(actorID string) (*services.Dashboard, error)
}

func (m *mockReportService) ExpensesByPeriod(actorID string, filter services.ReportFilter) (*services.ExpensesReport, error) {
	if m.expensesByPeriodFn != nil {
		return m.expensesByPeriodFn(actorID, filter)
	}
	return sampleExpensesReport(), nil
}

func (m *mockReportService) BudgetComparison(actorID string, filter services.ReportFilter) ([]services.BudgetComparisonRow, error) {
	if m.budgetComparisonFn != nil {
		return m.budgetComparisonFn(actorID, filter)
	}
	return []services.BudgetComparisonRow{{
		CostCenter: "VTA-CDMX", Category: "Equipo de computo", Year: 2025, Month: 3,
		Budgeted: decimal.NewFromInt(10000), Spent: decimal.NewFromInt(12000),
		Available: decimal.NewFromInt(-2000), UtilizationPct: decimal.NewFromInt(120), Exceeded: true,
	}}, nil
}

func (m *mockReportService) ExpensesByEmployee(actorID string, filter services.ReportFilter) ([]services.EmployeeExpenseRow, error) {
	if m.expensesByEmployeeFn != nil {
		return m.expensesByEmployeeFn(actorID, filter)
	}
	return []services.EmployeeExpenseRow{{FirstName: "Ana", LastName: "Ruiz", Total: decimal.NewFromInt(500), Count: 1}}, nil
}

func (m *mockReportService) TopSuppliers(actorID string, filter services.ReportFilter) ([]services.SupplierRow, error) {
	if m.topSuppliersFn != nil {
		return m.topSuppliersFn(actorID, filter)
	}
	return []services.SupplierRow{{Supplier: "Office Depot", Total: decimal.NewFromInt(900), Count: 2}}, nil
}

func (m *mockReportService) Dashboard(actorID string) (*services.Dashboard, error) {
	if m.dashboardFn != nil {
		return m.dashboardFn(actorID)
	}
	return &services.Dashboard{}, nil
}

var _ services.ReportServicer = (*mockReportService)(nil)

func sampleExpensesReport() *services.ExpensesReport {
	return &services.ExpensesReport{
		Totals: services.ExpenseTotals{TotalEstimated: decimal.NewFromInt(18500), TotalCount: 1},
		ByCategory: []services.ExpenseGroup{
			{Key: "EQUIPO_COMPUTO", Name: "Equipo de computo", Total: decimal.NewFromInt(18500), Count: 1},
		},
		ByCostCenter: []services.ExpenseGroup{
			{Key: "VTA-CDMX", Name: "Ventas CDMX", Total: decimal.NewFromInt(18500), Count: 1},
		},
		Requests: []services.ExpenseRequest{{
			RequestNumber: "REQ-2025-0001", CreatedAt: time.Date(2025, 3, 4, 16, 0, 0, 0, time.UTC),
			Requester: "Ana Ruiz", CostCenter: "VTA-CDMX", Category: "Equipo de computo",
			Description: "Laptop", Status: models.StatusAprobada, EstimatedAmount: decimal.NewFromInt(18500),
		}},
	}
}

func setupReportRouter(handler *ReportHandler) *gin.Engine {
	r := gin.New()
	r.Use(injectUserID(testUserID))
	r.GET("/reports/expenses", handler.ExpensesByPeriod)
	r.GET("/reports/budget-comparison", handler.BudgetComparison)
	r.GET("/reports/expenses-by-employee", handler.ExpensesByEmployee)
	r.GET("/reports/top-suppliers", handler.TopSuppliers)
	r.GET("/reports/dashboard", handler.Dashboard)
	return r
}

func TestReportHandler_ExpensesByPeriod(t *testing.T) {
	t.Run("returns JSON by default", func(t *testing.T) {
		var got services.ReportFilter
		svc := &mockReportService{
			expensesByPeriodFn: func(_ string, filter services.ReportFilter) (*services.ExpensesReport, error) {
				got = filter
				return sampleExpensesReport(), nil
			},
		}
		r := setupReportRouter(NewReportHandler(svc))

		rec := doRequest(r, "GET", "/reports/expenses?year=2025&month=3", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Year == nil || *got.Year != 2025 || got.Month == nil || *got.Month != 3 {
			t.Errorf("unexpected filter %+v", got)
		}
		result := parseJSON(t, rec)
		totals := result["totals"].(map[string]interface{})
		if totals["total_estimated"] != "18500" {
			t.Errorf("unexpected totals %v", totals)
		}
	})

	t.Run("exports a workbook", func(t *testing.T) {
		r := setupReportRouter(NewReportHandler(&mockReportService{}))

		rec := doRequest(r, "GET", "/reports/expenses?year=2025&month=3&export=excel", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != export.ContentTypeExcel {
			t.Errorf("unexpected content type %q", ct)
		}
		want := `attachment; filename="reporte_gastos_2025_03.xlsx"`
		if cd := rec.Header().Get("Content-Disposition"); cd != want {
			t.Errorf("expected %q, got %q", want, cd)
		}
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
			t.Error("expected a zip container")
		}
	})

	t.Run("exports a PDF", func(t *testing.T) {
		r := setupReportRouter(NewReportHandler(&mockReportService{}))

		rec := doRequest(r, "GET", "/reports/expenses?year=2025&export=pdf", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != export.ContentTypePDF {
			t.Errorf("unexpected content type %q", ct)
		}
		want := `attachment; filename="reporte_gastos_2025.pdf"`
		if cd := rec.Header().Get("Content-Disposition"); cd != want {
			t.Errorf("expected %q, got %q", want, cd)
		}
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
			t.Error("expected a PDF document")
		}
	})

	t.Run("returns 400 on unknown format", func(t *testing.T) {
		r := setupReportRouter(NewReportHandler(&mockReportService{}))

		rec := doRequest(r, "GET", "/reports/expenses?export=csv", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 403 when the caller may not report", func(t *testing.T) {
		svc := &mockReportService{
			expensesByPeriodFn: func(string, services.ReportFilter) (*services.ExpensesReport, error) {
				return nil, apperrors.ErrForbidden
			},
		}
		r := setupReportRouter(NewReportHandler(svc))

		rec := doRequest(r, "GET", "/reports/expenses", "")

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})
}

func TestReportHandler_BudgetComparison(t *testing.T) {
	t.Run("returns rows as JSON", func(t *testing.T) {
		r := setupReportRouter(NewReportHandler(&mockReportService{}))

		rec := doRequest(r, "GET", "/reports/budget-comparison?year=2025", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		rows := parseJSON(t, rec)["rows"].([]interface{})
		if len(rows) != 1 || rows[0].(map[string]interface{})["exceeded"] != true {
			t.Errorf("unexpected rows %v", rows)
		}
	})

	t.Run("exports a PDF without a period", func(t *testing.T) {
		r := setupReportRouter(NewReportHandler(&mockReportService{}))

		rec := doRequest(r, "GET", "/reports/budget-comparison?export=pdf", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		want := `attachment; filename="comparativo_presupuesto.pdf"`
		if cd := rec.Header().Get("Content-Disposition"); cd != want {
			t.Errorf("expected %q, got %q", want, cd)
		}
	})
}

func TestReportHandler_ExpensesByEmployee(t *testing.T) {
	t.Run("does not offer PDF", func(t *testing.T) {
		r := setupReportRouter(NewReportHandler(&mockReportService{}))

		rec := doRequest(r, "GET", "/reports/expenses-by-employee?export=pdf", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("exports a workbook", func(t *testing.T) {
		r := setupReportRouter(NewReportHandler(&mockReportService{}))

		rec := doRequest(r, "GET", "/reports/expenses-by-employee?export=excel&year=2025", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		want := `attachment; filename="gastos_empleado_2025.xlsx"`
		if cd := rec.Header().Get("Content-Disposition"); cd != want {
			t.Errorf("expected %q, got %q", want, cd)
		}
	})
}

func TestReportHandler_TopSuppliers(t *testing.T) {
	r := setupReportRouter(NewReportHandler(&mockReportService{}))

	rec := doRequest(r, "GET", "/reports/top-suppliers", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rows := parseJSON(t, rec)["rows"].([]interface{})
	if rows[0].(map[string]interface{})["actual_supplier"] != "Office Depot" {
		t.Errorf("unexpected rows %v", rows)
	}
}

func TestReportHandler_Dashboard(t *testing.T) {
	svc := &mockReportService{
		dashboardFn: func(actorID string) (*services.Dashboard, error) {
			if actorID != testUserID {
				t.Errorf("expected actor %s, got %s", testUserID, actorID)
			}
			return &services.Dashboard{PendingManagerApproval: 3, MyDrafts: 1}, nil
		},
	}
	r := setupReportRouter(NewReportHandler(svc))

	rec := doRequest(r, "GET", "/reports/dashboard", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	result := parseJSON(t, rec)
	if result["pending_manager_approval"].(float64) != 3 || result["my_drafts"].(float64) != 1 {
		t.Errorf("unexpected dashboard %v", result)
	}
}
