package handlers

import (
	"io"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "compras/internal/errors"
	"compras/internal/export"
	"compras/internal/models"
	"compras/internal/pagination"
	"compras/internal/period"
	"compras/internal/services"
)

type mockBudgetService struct {
	listBudgetsFn       func(page pagination.PageRequest, filter services.BudgetFilter) (*pagination.PageResponse[services.BudgetView], error)
	getBudgetFn         func(id string) (*services.BudgetView, error)
	createBudgetFn      func(actorID, costCenterID, categoryID string, m period.Month, amount decimal.Decimal) (*services.BudgetView, error)
	updateBudgetFn      func(actorID, id string, amount decimal.Decimal, reason string) (*services.BudgetView, error)
	historyFn           func(id string) ([]models.BudgetHistory, error)
	summaryFn           func(filter services.BudgetFilter) (*services.BudgetSummary, error)
	copyMonthFn         func(actorID string, source, target period.Month) (*services.CopyResult, error)
	projectFn           func(actorID string, sourceYear, targetYear int, targetMonth *int) (int, error)
	closeMonthFn        func(actorID string, m period.Month) (int64, error)
	reopenMonthFn       func(actorID string, m period.Month) (int64, error)
	importSpreadsheetFn func(actorID string, r io.Reader) (*services.ImportResult, error)
	exportSpreadsheetFn func(filter services.BudgetFilter, w io.Writer) error
}

func (m *mockBudgetService) ListBudgets(page pagination.PageRequest, filter services.BudgetFilter) (*pagination.PageResponse[services.BudgetView], error) {
	if m.listBudgetsFn != nil {
		return m.listBudgetsFn(page, filter)
	}
	resp := pagination.NewPageResponse([]services.BudgetView{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockBudgetService) GetBudget(id string) (*services.BudgetView, error) {
	if m.getBudgetFn != nil {
		return m.getBudgetFn(id)
	}
	return &services.BudgetView{}, nil
}

func (m *mockBudgetService) CreateBudget(actorID, costCenterID, categoryID string, p period.Month, amount decimal.Decimal) (*services.BudgetView, error) {
	if m.createBudgetFn != nil {
		return m.createBudgetFn(actorID, costCenterID, categoryID, p, amount)
	}
	return &services.BudgetView{}, nil
}

func (m *mockBudgetService) UpdateBudgetAmount(actorID, id string, amount decimal.Decimal, reason string) (*services.BudgetView, error) {
	if m.updateBudgetFn != nil {
		return m.updateBudgetFn(actorID, id, amount, reason)
	}
	return &services.BudgetView{}, nil
}

func (m *mockBudgetService) GetBudgetHistory(id string) ([]models.BudgetHistory, error) {
	if m.historyFn != nil {
		return m.historyFn(id)
	}
	return []models.BudgetHistory{}, nil
}

func (m *mockBudgetService) Summary(filter services.BudgetFilter) (*services.BudgetSummary, error) {
	if m.summaryFn != nil {
		return m.summaryFn(filter)
	}
	return &services.BudgetSummary{}, nil
}

func (m *mockBudgetService) CopyMonth(actorID string, source, target period.Month) (*services.CopyResult, error) {
	if m.copyMonthFn != nil {
		return m.copyMonthFn(actorID, source, target)
	}
	return &services.CopyResult{}, nil
}

func (m *mockBudgetService) ProjectFromPreviousYear(actorID string, sourceYear, targetYear int, targetMonth *int) (int, error) {
	if m.projectFn != nil {
		return m.projectFn(actorID, sourceYear, targetYear, targetMonth)
	}
	return 0, nil
}

func (m *mockBudgetService) CloseMonth(actorID string, p period.Month) (int64, error) {
	if m.closeMonthFn != nil {
		return m.closeMonthFn(actorID, p)
	}
	return 0, nil
}

func (m *mockBudgetService) ReopenMonth(actorID string, p period.Month) (int64, error) {
	if m.reopenMonthFn != nil {
		return m.reopenMonthFn(actorID, p)
	}
	return 0, nil
}

func (m *mockBudgetService) ImportSpreadsheet(actorID string, r io.Reader) (*services.ImportResult, error) {
	if m.importSpreadsheetFn != nil {
		return m.importSpreadsheetFn(actorID, r)
	}
	return &services.ImportResult{}, nil
}

func (m *mockBudgetService) ExportSpreadsheet(filter services.BudgetFilter, w io.Writer) error {
	if m.exportSpreadsheetFn != nil {
		return m.exportSpreadsheetFn(filter, w)
	}
	return nil
}

func (m *mockBudgetService) CheckBudgetExcess(*gorm.DB, *models.PurchaseRequest) (bool, error) {
	return false, nil
}

var _ services.BudgetServicer = (*mockBudgetService)(nil)

func setupBudgetRouter(handler *BudgetHandler) *gin.Engine {
	r := gin.New()
	r.Use(injectUserID(testUserID))
	r.GET("/budgets", handler.GetBudgets)
	r.POST("/budgets", handler.CreateBudget)
	r.GET("/budgets/summary", handler.GetSummary)
	r.GET("/budgets/export_excel", handler.ExportExcel)
	r.POST("/budgets/copy_month", handler.CopyMonth)
	r.POST("/budgets/project_from_previous_year", handler.ProjectFromPreviousYear)
	r.POST("/budgets/close_month", handler.CloseMonth)
	r.POST("/budgets/reopen_month", handler.ReopenMonth)
	r.POST("/budgets/import_excel", handler.ImportExcel)
	r.GET("/budgets/:id", handler.GetBudget)
	r.PATCH("/budgets/:id", handler.UpdateBudget)
	r.GET("/budgets/:id/history", handler.GetBudgetHistory)
	return r
}

func TestBudgetHandler_CreateBudget(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		var gotMonth period.Month
		var gotAmount decimal.Decimal
		svc := &mockBudgetService{
			createBudgetFn: func(_, cc, cat string, m period.Month, amount decimal.Decimal) (*services.BudgetView, error) {
				gotMonth, gotAmount = m, amount
				return &services.BudgetView{Budget: models.Budget{
					Base: models.Base{ID: "b-1"}, CostCenterID: cc, CategoryID: cat,
					Year: m.Year, Month: m.Month, Amount: amount,
				}, Available: amount}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupBudgetRouter(NewBudgetHandler(svc, audit))

		body := `{"cost_center_id":"` + testCCID + `","category_id":"` + testCatID + `","year":2025,"month":3,"amount":"15000.50"}`
		rec := doRequest(r, "POST", "/budgets", body)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotMonth != (period.Month{Year: 2025, Month: 3}) {
			t.Errorf("expected 2025-03, got %s", gotMonth)
		}
		if !gotAmount.Equal(decimal.RequireFromString("15000.50")) {
			t.Errorf("expected amount 15000.50, got %s", gotAmount)
		}
		budget := parseJSON(t, rec)["budget"].(map[string]interface{})
		if budget["amount"] != "15000.5" {
			t.Errorf("expected amount string 15000.5, got %v", budget["amount"])
		}
		if actions := audit.actions(); len(actions) != 1 || actions[0] != "CREATE_BUDGET" {
			t.Errorf("expected CREATE_BUDGET audit, got %v", actions)
		}
	})

	t.Run("accepts a numeric amount", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		body := `{"cost_center_id":"` + testCCID + `","category_id":"` + testCatID + `","year":2025,"month":3,"amount":1200}`
		rec := doRequest(r, "POST", "/budgets", body)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("returns 400 on month out of range", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		body := `{"cost_center_id":"` + testCCID + `","category_id":"` + testCatID + `","year":2025,"month":13,"amount":"1"}`
		rec := doRequest(r, "POST", "/budgets", body)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 when amount is missing", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		body := `{"cost_center_id":"` + testCCID + `","category_id":"` + testCatID + `","year":2025,"month":3}`
		rec := doRequest(r, "POST", "/budgets", body)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 409 on duplicate envelope", func(t *testing.T) {
		svc := &mockBudgetService{
			createBudgetFn: func(string, string, string, period.Month, decimal.Decimal) (*services.BudgetView, error) {
				return nil, apperrors.ErrDuplicateBudget
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		body := `{"cost_center_id":"` + testCCID + `","category_id":"` + testCatID + `","year":2025,"month":3,"amount":"1"}`
		rec := doRequest(r, "POST", "/budgets", body)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "DUPLICATE_BUDGET")
	})
}

func TestBudgetHandler_GetBudgets(t *testing.T) {
	t.Run("parses the period filter", func(t *testing.T) {
		var got services.BudgetFilter
		svc := &mockBudgetService{
			listBudgetsFn: func(_ pagination.PageRequest, filter services.BudgetFilter) (*pagination.PageResponse[services.BudgetView], error) {
				got = filter
				resp := pagination.NewPageResponse([]services.BudgetView{}, 1, 20, 0)
				return &resp, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/budgets?year=2025&month=4&area="+testAreaID+"&is_closed=false", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Year == nil || *got.Year != 2025 || got.Month == nil || *got.Month != 4 {
			t.Errorf("unexpected period filter %v/%v", got.Year, got.Month)
		}
		if got.AreaID == nil || *got.AreaID != testAreaID {
			t.Error("expected area filter")
		}
		if got.IsClosed == nil || *got.IsClosed {
			t.Error("expected is_closed=false filter")
		}
	})

	t.Run("returns 400 on month 0", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/budgets?month=0", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_UpdateBudget(t *testing.T) {
	t.Run("returns 403 when the budget is closed", func(t *testing.T) {
		svc := &mockBudgetService{
			updateBudgetFn: func(string, string, decimal.Decimal, string) (*services.BudgetView, error) {
				return nil, apperrors.ErrBudgetClosed
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "PATCH", "/budgets/"+testCCID, `{"amount":"500","reason":"ajuste"}`)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "BUDGET_CLOSED")
	})

	t.Run("passes amount and reason", func(t *testing.T) {
		var gotReason string
		svc := &mockBudgetService{
			updateBudgetFn: func(_, _ string, amount decimal.Decimal, reason string) (*services.BudgetView, error) {
				gotReason = reason
				return &services.BudgetView{Budget: models.Budget{Amount: amount}}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "PATCH", "/budgets/"+testCCID, `{"amount":"500","reason":"ajuste"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if gotReason != "ajuste" {
			t.Errorf("expected reason ajuste, got %q", gotReason)
		}
	})
}

func TestBudgetHandler_CopyMonth(t *testing.T) {
	t.Run("returns created and skipped counts", func(t *testing.T) {
		svc := &mockBudgetService{
			copyMonthFn: func(_ string, source, target period.Month) (*services.CopyResult, error) {
				if source.String() != "2025-01" || target.String() != "2025-02" {
					t.Errorf("unexpected periods %s -> %s", source, target)
				}
				return &services.CopyResult{Created: 3, Skipped: 1}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets/copy_month",
			`{"source_year":2025,"source_month":1,"target_year":2025,"target_month":2}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["created"].(float64) != 3 || result["skipped"].(float64) != 1 {
			t.Errorf("unexpected result %v", result)
		}
	})

	t.Run("returns 400 when the source is empty", func(t *testing.T) {
		svc := &mockBudgetService{
			copyMonthFn: func(string, period.Month, period.Month) (*services.CopyResult, error) {
				return nil, apperrors.ErrEmptySourcePeriod
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets/copy_month",
			`{"source_year":2025,"source_month":1,"target_year":2025,"target_month":2}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "EMPTY_SOURCE_PERIOD")
	})
}

func TestBudgetHandler_ProjectFromPreviousYear(t *testing.T) {
	t.Run("forwards the optional target month", func(t *testing.T) {
		var gotMonth *int
		svc := &mockBudgetService{
			projectFn: func(_ string, _, _ int, targetMonth *int) (int, error) {
				gotMonth = targetMonth
				return 12, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets/project_from_previous_year",
			`{"source_year":2024,"target_year":2025,"target_month":6}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotMonth == nil || *gotMonth != 6 {
			t.Errorf("expected target month 6, got %v", gotMonth)
		}
		if parseJSON(t, rec)["created"].(float64) != 12 {
			t.Error("expected created=12")
		}
	})
}

func TestBudgetHandler_CloseAndReopen(t *testing.T) {
	svc := &mockBudgetService{
		closeMonthFn:  func(string, period.Month) (int64, error) { return 8, nil },
		reopenMonthFn: func(string, period.Month) (int64, error) { return 0, apperrors.ErrForbidden },
	}
	audit := &mockAuditService{}
	r := setupBudgetRouter(NewBudgetHandler(svc, audit))

	t.Run("close returns the affected count", func(t *testing.T) {
		rec := doRequest(r, "POST", "/budgets/close_month", `{"year":2025,"month":3}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if parseJSON(t, rec)["closed"].(float64) != 8 {
			t.Error("expected closed=8")
		}
	})

	t.Run("reopen surfaces permission errors", func(t *testing.T) {
		rec := doRequest(r, "POST", "/budgets/reopen_month", `{"year":2025,"month":3}`)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	if actions := audit.actions(); len(actions) != 1 || actions[0] != "CLOSE_BUDGET_MONTH" {
		t.Errorf("expected only CLOSE_BUDGET_MONTH audited, got %v", actions)
	}
}

func TestBudgetHandler_ImportExcel(t *testing.T) {
	t.Run("returns the import result", func(t *testing.T) {
		var got []byte
		svc := &mockBudgetService{
			importSpreadsheetFn: func(_ string, r io.Reader) (*services.ImportResult, error) {
				got, _ = io.ReadAll(r)
				return &services.ImportResult{Created: 2, Updated: 1, Errors: []string{"Fila 4: centro de costos no encontrado"}}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doMultipart(r, "/budgets/import_excel", "file", "presupuestos.xlsx", []byte("PK-fake"))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if string(got) != "PK-fake" {
			t.Errorf("expected the upload to reach the service, got %q", got)
		}
		result := parseJSON(t, rec)
		if result["created"].(float64) != 2 || len(result["errors"].([]interface{})) != 1 {
			t.Errorf("unexpected result %v", result)
		}
	})

	t.Run("rejects non-xlsx files", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		rec := doMultipart(r, "/budgets/import_excel", "file", "presupuestos.csv", []byte("a,b"))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_SPREADSHEET")
	})

	t.Run("requires a file", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets/import_excel", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_ExportExcel(t *testing.T) {
	svc := &mockBudgetService{
		exportSpreadsheetFn: func(_ services.BudgetFilter, w io.Writer) error {
			_, err := w.Write([]byte("xlsx-bytes"))
			return err
		},
	}
	r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

	t.Run("names the file after the period", func(t *testing.T) {
		rec := doRequest(r, "GET", "/budgets/export_excel?year=2025&month=3", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != export.ContentTypeExcel {
			t.Errorf("unexpected content type %q", ct)
		}
		want := `attachment; filename="presupuestos_2025_03.xlsx"`
		if cd := rec.Header().Get("Content-Disposition"); cd != want {
			t.Errorf("expected %q, got %q", want, cd)
		}
		if rec.Body.String() != "xlsx-bytes" {
			t.Errorf("unexpected body %q", rec.Body.String())
		}
	})

	t.Run("falls back to a generic name", func(t *testing.T) {
		rec := doRequest(r, "GET", "/budgets/export_excel", "")

		want := `attachment; filename="presupuestos.xlsx"`
		if cd := rec.Header().Get("Content-Disposition"); cd != want {
			t.Errorf("expected %q, got %q", want, cd)
		}
	})
}
