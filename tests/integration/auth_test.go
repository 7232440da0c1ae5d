package integration

import (
	"fmt"
	"net/http"
	"testing"

	"compras/internal/testutil"
)

func TestAuthFlow_LoginProfileRefreshLogout(t *testing.T) {
	app := setupApp(t)
	employee := app.Org.Employee

	// Step 1: Login
	access, refresh := app.loginUser(t, employee.Email, testutil.TestPassword)
	if access == "" || refresh == "" {
		t.Fatal("expected non-empty tokens from login")
	}

	// Step 2: Profile, with the directory placement preloaded
	rec := app.request("GET", "/api/users/me", "", access)
	expectStatus(t, rec, http.StatusOK, "profile")
	user := parseJSON(t, rec)["user"].(map[string]interface{})
	if user["email"] != employee.Email {
		t.Errorf("expected email %s, got %v", employee.Email, user["email"])
	}
	if user["role"] != "EMPLEADO" {
		t.Errorf("expected role EMPLEADO, got %v", user["role"])
	}

	// Step 3: Refresh rotates the pair
	rec = app.request("POST", "/api/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, refresh), "")
	expectStatus(t, rec, http.StatusOK, "refresh")
	rotated := parseJSON(t, rec)
	newAccess := rotated["access_token"].(string)
	newRefresh := rotated["refresh_token"].(string)
	if newRefresh == refresh {
		t.Fatal("expected a new refresh token")
	}

	// Step 4: The replaced refresh token no longer works
	rec = app.request("POST", "/api/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, refresh), "")
	expectStatus(t, rec, http.StatusUnauthorized, "reuse old refresh token")

	// Step 5: Logout revokes the current one
	rec = app.request("POST", "/api/auth/logout", "", newAccess)
	expectStatus(t, rec, http.StatusOK, "logout")
	rec = app.request("POST", "/api/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, newRefresh), "")
	expectStatus(t, rec, http.StatusUnauthorized, "refresh after logout")
}

func TestAuthFlow_LockoutAfterFailedLogins(t *testing.T) {
	app := setupApp(t)
	email := app.Org.Employee.Email

	for i := 0; i < 5; i++ {
		rec := app.request("POST", "/api/auth/login", fmt.Sprintf(`{"email":%q,"password":"incorrecta"}`, email), "")
		expectStatus(t, rec, http.StatusUnauthorized, fmt.Sprintf("failed attempt %d", i+1))
	}

	// The right password is refused while the account is locked.
	rec := app.request("POST", "/api/auth/login", fmt.Sprintf(`{"email":%q,"password":%q}`, email, testutil.TestPassword), "")
	expectStatus(t, rec, http.StatusLocked, "login while locked")
}

func TestAuthFlow_ProtectedRoutesRequireToken(t *testing.T) {
	app := setupApp(t)

	rec := app.request("GET", "/api/requests/purchase-requests", "", "")
	expectStatus(t, rec, http.StatusUnauthorized, "no token")

	rec = app.request("GET", "/api/requests/purchase-requests", "", "not-a-jwt")
	expectStatus(t, rec, http.StatusUnauthorized, "garbage token")
}

func TestHealthAndInternalDispatch(t *testing.T) {
	app := setupApp(t)

	rec := app.request("GET", "/api/health", "", "")
	expectStatus(t, rec, http.StatusOK, "health")

	rec = app.request("POST", "/api/internal/notifications/dispatch", "", "")
	expectStatus(t, rec, http.StatusUnauthorized, "dispatch without key")
	if app.Kicks.n.Load() != 0 {
		t.Fatal("dispatcher must not be woken without a key")
	}

	rec = app.requestWithKey("POST", "/api/internal/notifications/dispatch", serviceKey)
	expectStatus(t, rec, http.StatusAccepted, "dispatch with key")
	if app.Kicks.n.Load() != 1 {
		t.Errorf("expected one dispatcher wake-up, got %d", app.Kicks.n.Load())
	}
}
