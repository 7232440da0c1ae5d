package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "compras/internal/errors"
	"compras/internal/export"
	"compras/internal/money"
	"compras/internal/services"
)

// ReportHandler handles reporting endpoints.
type ReportHandler struct {
	reportService services.ReportServicer
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportService services.ReportServicer) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

type exportFormat string

const (
	formatJSON  exportFormat = ""
	formatExcel exportFormat = "excel"
	formatPDF   exportFormat = "pdf"
)

// parseExport reads the export query parameter, accepting only the given formats.
func parseExport(c *gin.Context, allowed ...exportFormat) (exportFormat, error) {
	f := exportFormat(c.Query("export"))
	if f == formatJSON {
		return f, nil
	}
	for _, a := range allowed {
		if f == a {
			return f, nil
		}
	}
	return "", apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("export format %q is not supported", f))
}

func reportFilter(c *gin.Context) (services.ReportFilter, error) {
	var f services.ReportFilter
	var err error
	if f.Year, err = queryInt(c, "year", 2000, 2100); err != nil {
		return f, err
	}
	if f.Month, err = queryInt(c, "month", 1, 12); err != nil {
		return f, err
	}
	if f.AreaID, err = queryID(c, "area"); err != nil {
		return f, err
	}
	if f.CostCenterID, err = queryID(c, "cost_center"); err != nil {
		return f, err
	}
	if f.CategoryID, err = queryID(c, "category"); err != nil {
		return f, err
	}
	return f, nil
}

// periodLabel renders the filter's period as "2025", "2025-03" or "todo".
func periodLabel(f services.ReportFilter) string {
	switch {
	case f.Year != nil && f.Month != nil:
		return fmt.Sprintf("%d-%02d", *f.Year, *f.Month)
	case f.Year != nil:
		return fmt.Sprintf("%d", *f.Year)
	default:
		return "todo"
	}
}

func reportFilename(prefix string, f services.ReportFilter, ext string) string {
	if f.Year == nil {
		return prefix + "." + ext
	}
	return export.Filename(prefix, *f.Year, f.Month, ext)
}

// sendExcel renders sheets and writes them as a download.
func sendExcel(c *gin.Context, filename string, sheets ...export.Sheet) {
	var buf bytes.Buffer
	if err := export.WriteExcel(&buf, sheets...); err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, export.ContentTypeExcel, buf.Bytes())
}

// sendPDF renders doc and writes it as a download.
func sendPDF(c *gin.Context, filename string, doc export.Document) {
	var buf bytes.Buffer
	if err := export.WritePDF(&buf, doc); err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, export.ContentTypePDF, buf.Bytes())
}

func groupTable(title string, groups []services.ExpenseGroup, withKey bool) export.Table {
	t := export.Table{Title: title}
	if withKey {
		t.Headers = []string{"Codigo", "Centro de Costos", "Total", "Cantidad"}
		t.Widths = []float64{16, 36, 16, 12}
	} else {
		t.Headers = []string{"Categoria", "Total", "Cantidad"}
		t.Widths = []float64{40, 16, 12}
	}
	for _, g := range groups {
		if withKey {
			t.Rows = append(t.Rows, []any{g.Key, g.Name, g.Total, g.Count})
		} else {
			t.Rows = append(t.Rows, []any{g.Name, g.Total, g.Count})
		}
	}
	return t
}

func expenseRequestsTable(rows []services.ExpenseRequest) export.Table {
	t := export.Table{
		Title:   "Solicitudes",
		Headers: []string{"Folio", "Fecha", "Solicitante", "Centro de Costos", "Categoria", "Descripcion", "Estado", "Monto Estimado"},
		Widths:  []float64{16, 12, 24, 14, 24, 40, 18, 16},
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{
			r.RequestNumber, r.CreatedAt, r.Requester, r.CostCenter, r.Category, r.Description, string(r.Status), r.EstimatedAmount,
		})
	}
	return t
}

func comparisonTable(rows []services.BudgetComparisonRow) export.Table {
	t := export.Table{
		Headers: []string{"Centro Costos", "Categoria", "Mes", "Presupuestado", "Gastado", "Disponible", "% Utilizacion", "Excedido"},
		Widths:  []float64{16, 30, 8, 16, 16, 16, 14, 10},
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{
			r.CostCenter, r.Category, fmt.Sprintf("%d-%02d", r.Year, r.Month),
			r.Budgeted, r.Spent, r.Available, r.UtilizationPct.StringFixed(2) + "%", r.Exceeded,
		})
		t.Flagged = append(t.Flagged, r.Exceeded)
	}
	return t
}

// ExpensesByPeriod reports approved spend for a period.
// @Summary     Expenses by period
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       year        query int    true  "Year"
// @Param       month       query int    false "Month"
// @Param       area        query string false "Area ID"
// @Param       cost_center query string false "Cost center ID"
// @Param       category    query string false "Category ID"
// @Param       export      query string false "excel or pdf"
// @Success     200 {object} services.ExpensesReport "Report"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Router      /reports/expenses-by-period [get]
func (h *ReportHandler) ExpensesByPeriod(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	format, err := parseExport(c, formatExcel, formatPDF)
	if err != nil {
		respondWithError(c, err)
		return
	}
	filter, err := reportFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	report, err := h.reportService.ExpensesByPeriod(userID, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	byCategory := groupTable("Gastos por Categoria", report.ByCategory, false)
	byCostCenter := groupTable("Gastos por Centro de Costos", report.ByCostCenter, true)
	switch format {
	case formatExcel:
		sendExcel(c, reportFilename("reporte_gastos", filter, "xlsx"),
			export.Sheet{Name: "Por Categoria", Table: byCategory},
			export.Sheet{Name: "Por Centro de Costos", Table: byCostCenter},
			export.Sheet{Name: "Solicitudes", Table: expenseRequestsTable(report.Requests)},
		)
	case formatPDF:
		sendPDF(c, reportFilename("reporte_gastos", filter, "pdf"), export.Document{
			Title: "Reporte de Gastos - " + periodLabel(filter),
			Subtitle: fmt.Sprintf("Total estimado: %s | Solicitudes: %d",
				money.FormatMXN(report.Totals.TotalEstimated), report.Totals.TotalCount),
			Tables: []export.Table{byCategory, byCostCenter},
		})
	default:
		c.JSON(http.StatusOK, report)
	}
}

// BudgetComparison reports each budget against its spend.
// @Summary     Budget comparison
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       year        query int    true  "Year"
// @Param       month       query int    false "Month"
// @Param       area        query string false "Area ID"
// @Param       cost_center query string false "Cost center ID"
// @Param       category    query string false "Category ID"
// @Param       export      query string false "excel or pdf"
// @Success     200 {array}  services.BudgetComparisonRow "Rows"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Router      /reports/budget-comparison [get]
func (h *ReportHandler) BudgetComparison(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	format, err := parseExport(c, formatExcel, formatPDF)
	if err != nil {
		respondWithError(c, err)
		return
	}
	filter, err := reportFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	rows, err := h.reportService.BudgetComparison(userID, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	switch format {
	case formatExcel:
		sendExcel(c, reportFilename("comparativo_presupuesto", filter, "xlsx"),
			export.Sheet{Name: "Comparativo", Table: comparisonTable(rows)})
	case formatPDF:
		sendPDF(c, reportFilename("comparativo_presupuesto", filter, "pdf"), export.Document{
			Title:  "Comparativo de Presupuesto - " + periodLabel(filter),
			Tables: []export.Table{comparisonTable(rows)},
		})
	default:
		c.JSON(http.StatusOK, gin.H{"rows": rows})
	}
}

// ExpensesByEmployee reports approved spend per requester.
// @Summary     Expenses by employee
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       year   query int    true  "Year"
// @Param       month  query int    false "Month"
// @Param       area   query string false "Area ID"
// @Param       export query string false "excel"
// @Success     200 {array}  services.EmployeeExpenseRow "Rows"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Router      /reports/expenses-by-employee [get]
func (h *ReportHandler) ExpensesByEmployee(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	format, err := parseExport(c, formatExcel)
	if err != nil {
		respondWithError(c, err)
		return
	}
	filter, err := reportFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	rows, err := h.reportService.ExpensesByEmployee(userID, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if format == formatExcel {
		t := export.Table{
			Headers: []string{"Nombre", "Apellido", "Email", "Area", "Total", "Solicitudes"},
			Widths:  []float64{20, 20, 30, 24, 16, 12},
		}
		for _, r := range rows {
			t.Rows = append(t.Rows, []any{r.FirstName, r.LastName, r.Email, r.Area, r.Total, r.Count})
		}
		sendExcel(c, reportFilename("gastos_empleado", filter, "xlsx"),
			export.Sheet{Name: "Gastos por Empleado", Table: t})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

// TopSuppliers reports the suppliers with the largest actual spend.
// @Summary     Top suppliers
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       year   query int    false "Year"
// @Param       month  query int    false "Month"
// @Param       export query string false "excel"
// @Success     200 {array}  services.SupplierRow "Rows"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Router      /reports/top-suppliers [get]
func (h *ReportHandler) TopSuppliers(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	format, err := parseExport(c, formatExcel)
	if err != nil {
		respondWithError(c, err)
		return
	}
	filter, err := reportFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	rows, err := h.reportService.TopSuppliers(userID, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if format == formatExcel {
		t := export.Table{Headers: []string{"Proveedor", "Total", "Compras"}, Widths: []float64{40, 16, 12}}
		for _, r := range rows {
			t.Rows = append(t.Rows, []any{r.Supplier, r.Total, r.Count})
		}
		sendExcel(c, reportFilename("top_proveedores", filter, "xlsx"),
			export.Sheet{Name: "Top Proveedores", Table: t})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

// Dashboard returns the caller's landing counters.
// @Summary     Dashboard
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.Dashboard "Counters"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /reports/dashboard [get]
func (h *ReportHandler) Dashboard(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	dashboard, err := h.reportService.Dashboard(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}
