package integration

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"compras/internal/models"
	"compras/internal/testutil"
)

func (app *testApp) upload(t *testing.T, path, filename string, content []byte, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write(content)
	_ = w.Close()

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func decimalField(t *testing.T, m map[string]interface{}, key string) decimal.Decimal {
	t.Helper()
	s, ok := m[key].(string)
	if !ok {
		t.Fatalf("expected %s to be a decimal string, got %v", key, m[key])
	}
	return decimal.RequireFromString(s)
}

func (app *testApp) createBudget(t *testing.T, token, amount string) string {
	t.Helper()
	year, month := currentMonth()
	body := fmt.Sprintf(`{"cost_center_id":%q,"category_id":%q,"year":%d,"month":%d,"amount":%q}`,
		app.Org.CostCenter.ID, app.Org.Category.ID, year, month, amount)
	rec := app.request("POST", "/api/budgets/budgets", body, token)
	expectStatus(t, rec, http.StatusCreated, "create budget")
	return parseJSON(t, rec)["budget"].(map[string]interface{})["id"].(string)
}

func (app *testApp) createRequest(t *testing.T, token, amount string, submit bool) map[string]interface{} {
	t.Helper()
	body := fmt.Sprintf(`{"category_id":%q,"description":"Hojas y toner","estimated_amount":%q,`+
		`"required_date":"2030-01-15","justification":"Consumibles del mes","submit":%t}`,
		app.Org.Category.ID, amount, submit)
	rec := app.request("POST", "/api/requests/purchase-requests", body, token)
	expectStatus(t, rec, http.StatusCreated, "create request")
	return parseJSON(t, rec)
}

func TestRequestFlow_FullLifecycle(t *testing.T) {
	app := setupApp(t)
	employee := app.tokenFor(t, app.Org.Employee)
	manager := app.tokenFor(t, app.Org.Manager)
	finance := app.tokenFor(t, app.Org.Finance)

	budgetID := app.createBudget(t, finance, "20000.00")

	// Step 1: Employee creates and submits in one call; the default cost center applies.
	created := app.createRequest(t, employee, "18500.00", true)
	req := created["request"].(map[string]interface{})
	id := req["id"].(string)
	if req["status"] != string(models.StatusPendienteGerente) {
		t.Fatalf("expected PENDIENTE_GERENTE, got %v", req["status"])
	}
	if req["cost_center_id"] != app.Org.CostCenter.ID {
		t.Errorf("expected the employee's cost center, got %v", req["cost_center_id"])
	}
	if req["exceeds_budget"] != false {
		t.Errorf("expected the request to fit the budget")
	}

	// Step 2: The employee cannot approve their own request.
	rec := app.request("POST", "/api/requests/purchase-requests/"+id+"/approve_manager", "", employee)
	expectStatus(t, rec, http.StatusForbidden, "self approval")

	// Step 3: The area manager sees approve and reject, then approves.
	rec = app.request("GET", "/api/requests/purchase-requests/"+id, "", manager)
	expectStatus(t, rec, http.StatusOK, "manager get")
	actions := parseJSON(t, rec)["available_actions"].([]interface{})
	if len(actions) != 2 {
		t.Errorf("expected approve_manager and reject for the manager, got %v", actions)
	}
	rec = app.request("POST", "/api/requests/purchase-requests/"+id+"/approve_manager", `{"notes":"Adelante"}`, manager)
	expectStatus(t, rec, http.StatusOK, "approve manager")

	// Step 4: Spend is committed from manager approval on.
	rec = app.request("GET", "/api/budgets/budgets/"+budgetID, "", finance)
	expectStatus(t, rec, http.StatusOK, "get budget")
	budget := parseJSON(t, rec)["budget"].(map[string]interface{})
	if !decimalField(t, budget, "spent").Equal(decimal.NewFromInt(18500)) {
		t.Errorf("expected spent 18500, got %v", budget["spent"])
	}
	if !decimalField(t, budget, "available").Equal(decimal.NewFromInt(1500)) {
		t.Errorf("expected available 1500, got %v", budget["available"])
	}

	// Step 5: Finance approves and runs the purchase.
	rec = app.request("POST", "/api/requests/purchase-requests/"+id+"/approve_final", "", finance)
	expectStatus(t, rec, http.StatusOK, "approve final")
	rec = app.request("POST", "/api/requests/purchase-requests/"+id+"/mark_in_process", "", finance)
	expectStatus(t, rec, http.StatusOK, "mark in process")
	rec = app.request("POST", "/api/requests/purchase-requests/"+id+"/mark_purchased",
		`{"purchase_date":"2030-01-10","actual_supplier":"Office Depot","actual_amount":"17950.00","invoice_number":"A-778"}`, finance)
	expectStatus(t, rec, http.StatusOK, "mark purchased")
	purchased := parseJSON(t, rec)["request"].(map[string]interface{})
	if purchased["actual_supplier"] != "Office Depot" || purchased["invoice_number"] != "A-778" {
		t.Errorf("unexpected purchase details %v", purchased)
	}
	rec = app.request("POST", "/api/requests/purchase-requests/"+id+"/mark_completed", "", finance)
	expectStatus(t, rec, http.StatusOK, "mark completed")
	if s := parseJSON(t, rec)["request"].(map[string]interface{})["status"]; s != string(models.StatusCompletada) {
		t.Fatalf("expected COMPLETADA, got %v", s)
	}

	// Step 6: Terminal requests accept no further actions.
	rec = app.request("POST", "/api/requests/purchase-requests/"+id+"/cancel", "", employee)
	if rec.Code == http.StatusOK {
		t.Fatal("expected cancel on a completed request to fail")
	}

	// Step 7: History records every transition, oldest first.
	rec = app.request("GET", "/api/requests/purchase-requests/"+id+"/history", "", employee)
	expectStatus(t, rec, http.StatusOK, "history")
	history := parseJSON(t, rec)["history"].([]interface{})
	wantStatuses := []models.RequestStatus{
		models.StatusBorrador, models.StatusPendienteGerente, models.StatusAprobadaPorGerente,
		models.StatusAprobada, models.StatusEnProceso, models.StatusComprada, models.StatusCompletada,
	}
	if len(history) != len(wantStatuses) {
		t.Fatalf("expected %d history rows, got %d", len(wantStatuses), len(history))
	}
	for i, want := range wantStatuses {
		if got := history[i].(map[string]interface{})["new_status"]; got != string(want) {
			t.Errorf("history[%d]: expected %s, got %v", i, want, got)
		}
	}

	// Step 8: Each status change queued outbox rows.
	var queued int64
	app.DB.Model(&models.EmailNotification{}).Count(&queued)
	if queued == 0 {
		t.Error("expected notifications to be queued in the outbox")
	}
}

func TestRequestFlow_RejectionRequiresReason(t *testing.T) {
	app := setupApp(t)
	employee := app.tokenFor(t, app.Org.Employee)
	manager := app.tokenFor(t, app.Org.Manager)

	id := app.createRequest(t, employee, "500", true)["request"].(map[string]interface{})["id"].(string)

	rec := app.request("POST", "/api/requests/purchase-requests/"+id+"/reject", "", manager)
	expectStatus(t, rec, http.StatusBadRequest, "reject without reason")
	if code := parseJSON(t, rec)["error"].(map[string]interface{})["code"]; code != "REASON_REQUIRED" {
		t.Errorf("expected REASON_REQUIRED, got %v", code)
	}

	rec = app.request("POST", "/api/requests/purchase-requests/"+id+"/reject", `{"reason":"Fuera de politica"}`, manager)
	expectStatus(t, rec, http.StatusOK, "reject")
	req := parseJSON(t, rec)["request"].(map[string]interface{})
	if req["status"] != string(models.StatusRechazadaGerente) || req["rejection_reason"] != "Fuera de politica" {
		t.Errorf("unexpected rejected request %v", req)
	}
}

func TestRequestFlow_DraftEditAndVisibility(t *testing.T) {
	app := setupApp(t)
	employee := app.tokenFor(t, app.Org.Employee)
	finance := app.tokenFor(t, app.Org.Finance)

	id := app.createRequest(t, employee, "900", false)["request"].(map[string]interface{})["id"].(string)

	// Drafts are editable by their requester.
	body := fmt.Sprintf(`{"category_id":%q,"description":"Toner negro","estimated_amount":"950",`+
		`"required_date":"2030-02-01","justification":"Reposicion"}`, app.Org.Category.ID)
	rec := app.request("PUT", "/api/requests/purchase-requests/"+id, body, employee)
	expectStatus(t, rec, http.StatusOK, "edit draft")

	director := app.tokenFor(t, app.Org.Director)
	rec = app.request("GET", "/api/requests/purchase-requests/"+id, "", director)
	expectStatus(t, rec, http.StatusOK, "director sees every request")

	// An employee outside the requester's area does not.
	stranger := testutil.CreateTestUser(t, app.DB)
	rec = app.request("GET", "/api/requests/purchase-requests/"+id, "", app.tokenFor(t, stranger))
	expectStatus(t, rec, http.StatusNotFound, "stranger get")

	rec = app.request("GET", "/api/requests/purchase-requests?status=BORRADOR", "", finance)
	expectStatus(t, rec, http.StatusOK, "finance list")

	// Once submitted, the draft is frozen.
	rec = app.request("POST", "/api/requests/purchase-requests/"+id+"/submit", "", employee)
	expectStatus(t, rec, http.StatusOK, "submit")
	rec = app.request("PUT", "/api/requests/purchase-requests/"+id, body, employee)
	expectStatus(t, rec, http.StatusBadRequest, "edit after submit")
}

func TestRequestFlow_ExceedsBudget(t *testing.T) {
	app := setupApp(t)
	employee := app.tokenFor(t, app.Org.Employee)
	finance := app.tokenFor(t, app.Org.Finance)

	app.createBudget(t, finance, "1000")

	req := app.createRequest(t, employee, "1500", true)["request"].(map[string]interface{})
	if req["exceeds_budget"] != true {
		t.Fatalf("expected exceeds_budget=true, got %v", req["exceeds_budget"])
	}

	rec := app.request("GET", "/api/requests/purchase-requests?exceeds_budget=true", "", finance)
	expectStatus(t, rec, http.StatusOK, "filter exceeded")
	if total := parseJSON(t, rec)["total_items"].(float64); total != 1 {
		t.Errorf("expected 1 exceeded request, got %.0f", total)
	}
}

func TestRequestFlow_CommentsAndAttachments(t *testing.T) {
	app := setupApp(t)
	employee := app.tokenFor(t, app.Org.Employee)
	manager := app.tokenFor(t, app.Org.Manager)

	id := app.createRequest(t, employee, "700", true)["request"].(map[string]interface{})["id"].(string)
	base := "/api/requests/purchase-requests/" + id

	rec := app.request("POST", base+"/comments", `{"comment":"¿Alguna marca en particular?"}`, manager)
	expectStatus(t, rec, http.StatusCreated, "comment")

	rec = app.request("GET", base+"/comments", "", employee)
	expectStatus(t, rec, http.StatusOK, "list comments")
	if n := len(parseJSON(t, rec)["comments"].([]interface{})); n != 1 {
		t.Errorf("expected 1 comment, got %d", n)
	}

	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")
	rec = app.upload(t, base+"/attachments", "cotizacion.pdf", pdf, employee)
	expectStatus(t, rec, http.StatusCreated, "upload pdf")
	attachmentID := parseJSON(t, rec)["attachment"].(map[string]interface{})["id"].(string)

	rec = app.upload(t, base+"/attachments", "cotizacion.pdf", []byte("not really a pdf"), employee)
	expectStatus(t, rec, http.StatusBadRequest, "upload disguised file")

	rec = app.request("GET", base+"/attachments/"+attachmentID, "", manager)
	expectStatus(t, rec, http.StatusOK, "download")
	if !bytes.Equal(rec.Body.Bytes(), pdf) {
		t.Error("downloaded bytes differ from the upload")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("unexpected content type %q", ct)
	}
}
