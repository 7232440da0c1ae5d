package services

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"compras/internal/models"
	"compras/internal/pagination"
	"compras/internal/testutil"
)

func newUserService(t *testing.T) (UserServicer, *testutil.Org, func()) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	org := testutil.CreateTestOrg(t, db)
	svc := NewUserService(db, NewNotificationService(db, NotificationOptions{}))
	return svc, org, func() { testutil.TeardownTestDB(t, db) }
}

func TestCreateUser(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		svc, org, done := newUserService(t)
		defer done()

		user, err := svc.CreateUser(org.Finance.ID, UserInput{
			Email: "Alice@Example.com", Password: "password123", FirstName: "Alice", LastName: "Smith",
			Role: models.RoleEmpleado, AreaID: &org.Area.ID,
		})
		testutil.AssertNoError(t, err)

		if user.ID == "" {
			t.Fatal("expected user ID")
		}
		if user.Email != "alice@example.com" {
			t.Errorf("expected lowercased email, got %s", user.Email)
		}
		if !user.IsActive {
			t.Error("expected user to be active")
		}
		if user.Area == nil || user.Area.Name != models.AreaOperaciones {
			t.Error("expected area to be preloaded")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("password123")); err != nil {
			t.Error("password hash should be valid bcrypt")
		}
	})

	t.Run("duplicate_email", func(t *testing.T) {
		svc, org, done := newUserService(t)
		defer done()

		_, err := svc.CreateUser(org.Finance.ID, UserInput{Email: "dup@example.com", Password: "password123"})
		testutil.AssertNoError(t, err)

		_, err = svc.CreateUser(org.Finance.ID, UserInput{Email: "DUP@example.com", Password: "password456"})
		testutil.AssertAppError(t, err, "DUPLICATE_EMAIL")
	})

	t.Run("short_password", func(t *testing.T) {
		svc, org, done := newUserService(t)
		defer done()

		_, err := svc.CreateUser(org.Finance.ID, UserInput{Email: "short@example.com", Password: "abc"})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("employee_cannot_create", func(t *testing.T) {
		svc, org, done := newUserService(t)
		defer done()

		_, err := svc.CreateUser(org.Employee.ID, UserInput{Email: "x@example.com", Password: "password123"})
		testutil.AssertAppError(t, err, "FORBIDDEN")
	})

	t.Run("manager_limited_to_own_area", func(t *testing.T) {
		svc, org, done := newUserService(t)
		defer done()

		_, err := svc.CreateUser(org.Manager.ID, UserInput{
			Email: "member@example.com", Password: "password123", AreaID: &org.Area.ID,
		})
		testutil.AssertNoError(t, err)

		_, err = svc.CreateUser(org.Manager.ID, UserInput{Email: "nowhere@example.com", Password: "password123"})
		testutil.AssertAppError(t, err, "FORBIDDEN")

		_, err = svc.CreateUser(org.Manager.ID, UserInput{
			Email: "cfo@example.com", Password: "password123", Role: models.RoleFinanzas, AreaID: &org.Area.ID,
		})
		testutil.AssertAppError(t, err, "FORBIDDEN")
	})
}

func TestAttemptLogin(t *testing.T) {
	t.Run("success_resets_attempts", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db, NewNotificationService(db, NotificationOptions{}))

		user := testutil.CreateTestUser(t, db)
		db.Exec("UPDATE users SET failed_login_attempts = 3 WHERE id = ?", user.ID)

		got, err := svc.AttemptLogin(user.Email, testutil.TestPassword)
		testutil.AssertNoError(t, err)

		if got.FailedLoginAttempts != 0 {
			t.Errorf("expected 0 failed attempts after success, got %d", got.FailedLoginAttempts)
		}
		if got.LastLoginAt == nil {
			t.Error("expected LastLoginAt to be set after successful login")
		}
	})

	t.Run("wrong_password_increments_attempts", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db, NewNotificationService(db, NotificationOptions{}))

		user := testutil.CreateTestUser(t, db)

		_, err := svc.AttemptLogin(user.Email, "wrongpassword")
		testutil.AssertAppError(t, err, "INVALID_CREDENTIALS")

		var reloaded models.User
		db.First(&reloaded, "id = ?", user.ID)
		if reloaded.FailedLoginAttempts != 1 {
			t.Errorf("expected 1 failed attempt, got %d", reloaded.FailedLoginAttempts)
		}
	})

	t.Run("lockout_after_5_failures", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db, NewNotificationService(db, NotificationOptions{}))

		user := testutil.CreateTestUser(t, db)
		for i := 0; i < 5; i++ {
			_, err := svc.AttemptLogin(user.Email, "wrong")
			testutil.AssertAppError(t, err, "INVALID_CREDENTIALS")
		}

		var reloaded models.User
		db.First(&reloaded, "id = ?", user.ID)
		if reloaded.LockedUntil == nil {
			t.Fatal("expected LockedUntil to be set after 5 failures")
		}
		if !reloaded.LockedUntil.After(time.Now()) {
			t.Error("expected LockedUntil to be in the future")
		}

		_, err := svc.AttemptLogin(user.Email, testutil.TestPassword)
		testutil.AssertAppError(t, err, "ACCOUNT_LOCKED")
	})

	t.Run("inactive_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db, NewNotificationService(db, NotificationOptions{}))

		user := testutil.CreateTestUser(t, db)
		db.Model(user).Update("is_active", false)

		_, err := svc.AttemptLogin(user.Email, testutil.TestPassword)
		testutil.AssertAppError(t, err, "INVALID_CREDENTIALS")
	})

	t.Run("nonexistent_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db, NewNotificationService(db, NotificationOptions{}))

		_, err := svc.AttemptLogin("nobody@example.com", "password123")
		testutil.AssertAppError(t, err, "INVALID_CREDENTIALS")
	})
}

func TestRefreshTokenHash(t *testing.T) {
	svc, org, done := newUserService(t)
	defer done()

	hash := "abcdef1234567890abcdef1234567890abcdef1234567890abcdef1234567890"
	testutil.AssertNoError(t, svc.StoreRefreshTokenHash(org.Employee.ID, hash))

	got, err := svc.GetRefreshTokenHash(org.Employee.ID)
	testutil.AssertNoError(t, err)
	if got != hash {
		t.Errorf("expected hash %s, got %s", hash, got)
	}

	testutil.AssertNoError(t, svc.ClearRefreshTokenHash(org.Employee.ID))
	got, _ = svc.GetRefreshTokenHash(org.Employee.ID)
	if got != "" {
		t.Errorf("expected cleared hash, got %q", got)
	}

	err = svc.StoreRefreshTokenHash("00000000-0000-0000-0000-000000000000", hash)
	testutil.AssertAppError(t, err, "USER_NOT_FOUND")
}

func TestListUsers_scoping(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	org := testutil.CreateTestOrg(t, db)
	sales := testutil.CreateTestArea(t, db, models.AreaComercial)
	testutil.CreateTestUserWithRole(t, db, models.RoleEmpleado, &sales.ID)
	svc := NewUserService(db, NewNotificationService(db, NotificationOptions{}))

	tests := []struct {
		name  string
		actor *models.User
		want  int64
	}{
		{"finance sees everyone", org.Finance, 5},
		{"director sees everyone", org.Director, 5},
		{"manager sees own area", org.Manager, 2},
		{"employee sees self", org.Employee, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.ListUsers(tt.actor.ID, pagination.PageRequest{}, UserFilter{})
			testutil.AssertNoError(t, err)
			if page.TotalItems != tt.want {
				t.Errorf("expected %d users, got %d", tt.want, page.TotalItems)
			}
		})
	}

	t.Run("get outside scope", func(t *testing.T) {
		_, err := svc.GetUser(org.Employee.ID, org.Manager.ID)
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})

	t.Run("filter by role", func(t *testing.T) {
		role := models.RoleGerente
		page, err := svc.ListUsers(org.Finance.ID, pagination.PageRequest{}, UserFilter{Role: &role})
		testutil.AssertNoError(t, err)
		if page.TotalItems != 1 {
			t.Errorf("expected 1 manager, got %d", page.TotalItems)
		}
	})
}

func TestUpdateProfile_out_of_office(t *testing.T) {
	t.Run("manager going away notifies finance and director", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		org := testutil.CreateTestOrg(t, db)
		svc := NewUserService(db, NewNotificationService(db, NotificationOptions{}))

		away := true
		user, err := svc.UpdateProfile(org.Manager.ID, ProfileUpdate{IsOutOfOffice: &away})
		testutil.AssertNoError(t, err)
		if !user.IsOutOfOffice {
			t.Error("expected manager to be out of office")
		}

		var rows []models.EmailNotification
		db.Where("notification_type = ?", models.NotificationFueraOficina).Find(&rows)
		if len(rows) != 2 {
			t.Fatalf("expected 2 notifications, got %d", len(rows))
		}
		if rows[0].RequestID != nil {
			t.Error("out-of-office notice should not reference a request")
		}

		// already away: no second notice
		_, err = svc.UpdateProfile(org.Manager.ID, ProfileUpdate{IsOutOfOffice: &away})
		testutil.AssertNoError(t, err)
		var count int64
		db.Model(&models.EmailNotification{}).Count(&count)
		if count != 2 {
			t.Errorf("expected no new notifications, got %d total", count)
		}
	})

	t.Run("employee going away is silent", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		org := testutil.CreateTestOrg(t, db)
		svc := NewUserService(db, NewNotificationService(db, NotificationOptions{}))

		away := true
		_, err := svc.UpdateProfile(org.Employee.ID, ProfileUpdate{IsOutOfOffice: &away})
		testutil.AssertNoError(t, err)

		var count int64
		db.Model(&models.EmailNotification{}).Count(&count)
		if count != 0 {
			t.Errorf("expected no notifications, got %d", count)
		}
	})
}

func TestUpdateUser(t *testing.T) {
	svc, org, done := newUserService(t)
	defer done()

	t.Run("finance promotes employee", func(t *testing.T) {
		role := models.RoleGerente
		user, err := svc.UpdateUser(org.Finance.ID, org.Employee.ID, UserUpdate{Role: &role})
		testutil.AssertNoError(t, err)
		if user.Role != models.RoleGerente {
			t.Errorf("expected GERENTE, got %s", user.Role)
		}
	})

	t.Run("manager cannot grant finance", func(t *testing.T) {
		role := models.RoleFinanzas
		_, err := svc.UpdateUser(org.Manager.ID, org.Employee.ID, UserUpdate{Role: &role})
		testutil.AssertAppError(t, err, "FORBIDDEN")
	})

	t.Run("deactivate", func(t *testing.T) {
		inactive := false
		user, err := svc.UpdateUser(org.Director.ID, org.Employee.ID, UserUpdate{IsActive: &inactive})
		testutil.AssertNoError(t, err)
		if user.IsActive {
			t.Error("expected user to be inactive")
		}
	})
}
