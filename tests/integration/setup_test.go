package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"compras/internal/handlers"
	"compras/internal/logger"
	"compras/internal/models"
	"compras/internal/realtime"
	"compras/internal/services"
	"compras/internal/storage"
	"compras/internal/testutil"
	"compras/internal/validator"
)

const serviceKey = "integration-key"

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
	Org    *testutil.Org
	Kicks  *countingTrigger
}

// countingTrigger stands in for the outbox dispatcher.
type countingTrigger struct{ n atomic.Int32 }

func (c *countingTrigger) Trigger() { c.n.Add(1) }

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	files, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}
	loc := time.UTC
	hub := realtime.NewHub(nil, logger.Named("realtime"))

	// Services
	notificationService := services.NewNotificationService(db, services.NotificationOptions{})
	userService := services.NewUserService(db, notificationService)
	directoryService := services.NewDirectoryService(db)
	catalogService := services.NewCatalogService(db)
	budgetService := services.NewBudgetService(db, loc)
	requestService := services.NewRequestService(db, loc, budgetService, notificationService, files, hub)
	reportService := services.NewReportService(db, loc)
	auditService := services.NewAuditService(db)

	kicks := &countingTrigger{}
	rt := &handlers.Router{
		Auth:           handlers.NewAuthHandler(userService, auditService),
		Users:          handlers.NewUserHandler(userService, auditService),
		Directory:      handlers.NewDirectoryHandler(directoryService, auditService),
		Catalog:        handlers.NewCatalogHandler(catalogService, auditService),
		Budgets:        handlers.NewBudgetHandler(budgetService, auditService),
		Requests:       handlers.NewRequestHandler(requestService, auditService),
		Reports:        handlers.NewReportHandler(reportService),
		Notification:   handlers.NewNotificationHandler(notificationService, kicks),
		Realtime:       handlers.NewRealtimeHandler(hub, userService),
		ServiceAPIKey:  serviceKey,
		AllowedOrigins: []string{"*"},
	}

	return &testApp{
		DB:     db,
		Router: rt.Engine(),
		Org:    testutil.CreateTestOrg(t, db),
		Kicks:  kicks,
	}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// requestWithKey calls an internal endpoint with the service API key.
func (app *testApp) requestWithKey(method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-API-Key", key)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// loginUser logs in and returns the access and refresh tokens.
func (app *testApp) loginUser(t *testing.T, email, password string) (accessToken, refreshToken string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	rec := app.request("POST", "/api/auth/login", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	return result["access_token"].(string), result["refresh_token"].(string)
}

// tokenFor logs a fixture user in and returns its access token.
func (app *testApp) tokenFor(t *testing.T, u *models.User) string {
	t.Helper()
	access, _ := app.loginUser(t, u.Email, testutil.TestPassword)
	return access
}

// currentMonth is the budget period requests created now fall into.
func currentMonth() (int, int) {
	now := time.Now().UTC()
	return now.Year(), int(now.Month())
}

// expectStatus fails the test when rec does not carry the wanted status code.
func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int, step string) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("%s: expected %d, got %d: %s", step, want, rec.Code, rec.Body.String())
	}
}
