package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "compras/internal/errors"
	"compras/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response body: %v", err)
	}
	return result
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseBody(t, rec)["error"].(map[string]interface{})
	if !ok {
		t.Fatal("expected error object in response")
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestRequireServiceKey(t *testing.T) {
	tests := []struct {
		name          string
		configuredKey string
		requestKey    string
		wantStatus    int
		wantErrorCode string
	}{
		{"matching key reaches dispatch", "dispatch-key", "dispatch-key", http.StatusAccepted, ""},
		{"wrong key", "dispatch-key", "wrong-key", http.StatusUnauthorized, "SERVICE_KEY_REJECTED"},
		{"no header", "dispatch-key", "", http.StatusUnauthorized, "SERVICE_KEY_REJECTED"},
		{"prefix of the key", "dispatch-key", "dispatch", http.StatusUnauthorized, "SERVICE_KEY_REJECTED"},
		{"key not configured", "", "any-key", http.StatusServiceUnavailable, "DISPATCH_DISABLED"},
		{"key not configured and no header", "", "", http.StatusServiceUnavailable, "DISPATCH_DISABLED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kicked := false
			r := gin.New()
			r.POST("/internal/notifications/dispatch", RequireServiceKey(tt.configuredKey), func(c *gin.Context) {
				kicked = true
				c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
			})

			req := httptest.NewRequest(http.MethodPost, "/internal/notifications/dispatch", http.NoBody)
			if tt.requestKey != "" {
				req.Header.Set("X-API-Key", tt.requestKey)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantErrorCode == "" {
				if !kicked {
					t.Error("dispatch handler was not reached")
				}
				return
			}
			if kicked {
				t.Error("dispatch handler ran without a valid key")
			}
			if code := errorCode(t, rec); code != tt.wantErrorCode {
				t.Errorf("error code = %q, want %q", code, tt.wantErrorCode)
			}
		})
	}
}

func testUser() *models.User {
	u := &models.User{Email: "gerente@test.com", Role: models.RoleGerente}
	u.ID = "0190a1b2-0000-7000-8000-000000000001"
	return u
}

func TestTokens(t *testing.T) {
	user := testUser()

	access, err := GenerateAccessToken(user)
	if err != nil {
		t.Fatalf("generate access token: %v", err)
	}
	refresh, err := GenerateRefreshToken(user)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	claims, err := ValidateAccessToken(access)
	if err != nil {
		t.Fatalf("validate access token: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != models.RoleGerente {
		t.Errorf("unexpected claims: %+v", claims)
	}

	if _, err := ValidateRefreshToken(access); err == nil {
		t.Error("access token must not validate as refresh token")
	}
	if _, err := ValidateAccessToken(refresh); err == nil {
		t.Error("refresh token must not validate as access token")
	}
	if _, err := ValidateAccessToken(access + "x"); err == nil {
		t.Error("tampered token must not validate")
	}

	if HashToken(refresh) == HashToken(access) || len(HashToken(refresh)) != 64 {
		t.Error("expected distinct sha256 hex digests")
	}
}

func TestAuthMiddleware(t *testing.T) {
	user := testUser()
	access, _ := GenerateAccessToken(user)
	refresh, _ := GenerateRefreshToken(user)

	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("userID"), "email": c.GetString("email")})
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid", "Bearer " + access, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"bad_format", "Token " + access, http.StatusUnauthorized},
		{"refresh_as_access", "Bearer " + refresh, http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if got := parseBody(t, rec)["user_id"]; got != user.ID {
					t.Errorf("user_id = %v, want %s", got, user.ID)
				}
				return
			}
			if code := errorCode(t, rec); code != "UNAUTHORIZED" {
				t.Errorf("error code = %q, want UNAUTHORIZED", code)
			}
		})
	}
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/app", func(c *gin.Context) {
		_ = c.Error(apperrors.Wrap(apperrors.ErrInternalServer, errors.New("db exploded")))
	})
	r.GET("/locked", func(c *gin.Context) {
		_ = c.Error(apperrors.ErrAccountLocked)
	})
	r.GET("/plain", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})
	r.GET("/bind", func(c *gin.Context) {
		_ = c.Error(errors.New("month must be 1-12")).SetType(gin.ErrorTypeBind)
	})

	tests := []struct {
		path       string
		wantStatus int
		wantCode   string
	}{
		{"/app", http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"/locked", http.StatusLocked, "ACCOUNT_LOCKED"},
		{"/plain", http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"/bind", http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if code := errorCode(t, rec); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
			if rec.Body.String() == "" || strings.Contains(rec.Body.String(), "db exploded") {
				t.Error("internal detail must not leak")
			}
		})
	}
}

func TestErrorHandler_leaves_started_responses_alone(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/download", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/pdf", []byte("%PDF-1.4"))
		_ = c.Error(errors.New("client went away"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download", http.NoBody))
	if rec.Code != http.StatusOK || rec.Body.String() != "%PDF-1.4" {
		t.Errorf("response was rewritten: %d %q", rec.Code, rec.Body.String())
	}
}

func TestRequestLogging_sets_request_id(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogging())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", http.NoBody))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}
