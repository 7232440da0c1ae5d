package services

import (
	"testing"

	"compras/internal/models"
	"compras/internal/pagination"
	"compras/internal/testutil"
)

func TestUpdateCategory(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCatalogService(db)
		finance := testutil.CreateTestUserWithRole(t, db, models.RoleFinanzas, nil)
		cat := testutil.CreateTestCategory(t, db, models.CategoryPapeleria)

		name := "Papelería y oficina"
		_, err := svc.UpdateCategory(finance.ID, cat.ID, &name, nil, boolPtr(false))
		testutil.AssertNoError(t, err)

		got, err := svc.GetCategory(cat.ID)
		testutil.AssertNoError(t, err)
		if got.Name != name {
			t.Errorf("expected name %q, got %q", name, got.Name)
		}
		if got.IsActive {
			t.Error("expected category to be inactive")
		}
		if got.Code != models.CategoryPapeleria {
			t.Errorf("code must not change, got %s", got.Code)
		}
	})

	t.Run("empty_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCatalogService(db)
		finance := testutil.CreateTestUserWithRole(t, db, models.RoleFinanzas, nil)
		cat := testutil.CreateTestCategory(t, db, models.CategoryPapeleria)

		blank := "  "
		_, err := svc.UpdateCategory(finance.ID, cat.ID, &blank, nil, nil)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("employee_forbidden", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCatalogService(db)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, models.CategoryPapeleria)

		_, err := svc.UpdateCategory(user.ID, cat.ID, nil, nil, boolPtr(false))
		testutil.AssertAppError(t, err, "FORBIDDEN")
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCatalogService(db)
		finance := testutil.CreateTestUserWithRole(t, db, models.RoleFinanzas, nil)

		_, err := svc.UpdateCategory(finance.ID, "missing", nil, nil, nil)
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})
}

func TestListCategories(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewCatalogService(db)
	testutil.CreateTestCategory(t, db, models.CategoryPapeleria)
	limpieza := testutil.CreateTestCategory(t, db, models.CategoryLimpieza)
	db.Model(limpieza).Update("is_active", false)

	all, err := svc.ListCategories(nil)
	testutil.AssertNoError(t, err)
	if len(all) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(all))
	}

	active, err := svc.ListCategories(boolPtr(true))
	testutil.AssertNoError(t, err)
	if len(active) != 1 || active[0].Code != models.CategoryPapeleria {
		t.Errorf("expected only PAPELERIA active, got %+v", active)
	}
}

func TestCreateItem(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCatalogService(db)
		finance := testutil.CreateTestUserWithRole(t, db, models.RoleFinanzas, nil)
		cat := testutil.CreateTestCategory(t, db, models.CategoryPapeleria)

		item, err := svc.CreateItem(finance.ID, ItemInput{CategoryID: cat.ID, Code: "pap-001", Name: " Hojas carta "})
		testutil.AssertNoError(t, err)

		if item.Code != "PAP-001" {
			t.Errorf("expected code PAP-001, got %s", item.Code)
		}
		if item.Name != "Hojas carta" {
			t.Errorf("expected trimmed name, got %q", item.Name)
		}
		if item.Unit != "pieza" {
			t.Errorf("expected default unit pieza, got %s", item.Unit)
		}
		if item.Category == nil || item.Category.ID != cat.ID {
			t.Error("expected category to be preloaded")
		}
	})

	t.Run("inactive", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCatalogService(db)
		finance := testutil.CreateTestUserWithRole(t, db, models.RoleFinanzas, nil)
		cat := testutil.CreateTestCategory(t, db, models.CategoryPapeleria)

		item, err := svc.CreateItem(finance.ID, ItemInput{CategoryID: cat.ID, Code: "X", Name: "X", Unit: "caja", IsActive: boolPtr(false)})
		testutil.AssertNoError(t, err)
		if item.IsActive {
			t.Error("expected item to be inactive")
		}
		if item.Unit != "caja" {
			t.Errorf("expected unit caja, got %s", item.Unit)
		}
	})

	t.Run("duplicate_code", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCatalogService(db)
		finance := testutil.CreateTestUserWithRole(t, db, models.RoleFinanzas, nil)
		cat := testutil.CreateTestCategory(t, db, models.CategoryPapeleria)

		_, err := svc.CreateItem(finance.ID, ItemInput{CategoryID: cat.ID, Code: "A1", Name: "A"})
		testutil.AssertNoError(t, err)
		_, err = svc.CreateItem(finance.ID, ItemInput{CategoryID: cat.ID, Code: "a1", Name: "B"})
		testutil.AssertAppError(t, err, "DUPLICATE_CODE")
	})

	t.Run("missing_fields", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCatalogService(db)
		finance := testutil.CreateTestUserWithRole(t, db, models.RoleFinanzas, nil)
		cat := testutil.CreateTestCategory(t, db, models.CategoryPapeleria)

		_, err := svc.CreateItem(finance.ID, ItemInput{CategoryID: cat.ID, Code: "A1"})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("unknown_category", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCatalogService(db)
		finance := testutil.CreateTestUserWithRole(t, db, models.RoleFinanzas, nil)

		_, err := svc.CreateItem(finance.ID, ItemInput{CategoryID: "missing", Code: "A1", Name: "A"})
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})

	t.Run("manager_forbidden", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCatalogService(db)
		manager := testutil.CreateTestUserWithRole(t, db, models.RoleGerente, nil)
		cat := testutil.CreateTestCategory(t, db, models.CategoryPapeleria)

		_, err := svc.CreateItem(manager.ID, ItemInput{CategoryID: cat.ID, Code: "A1", Name: "A"})
		testutil.AssertAppError(t, err, "FORBIDDEN")
	})
}

func TestListItems(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewCatalogService(db)
	pap := testutil.CreateTestCategory(t, db, models.CategoryPapeleria)
	lim := testutil.CreateTestCategory(t, db, models.CategoryLimpieza)
	for i := 0; i < 3; i++ {
		testutil.CreateTestItem(t, db, pap.ID)
	}
	mop := testutil.CreateTestItem(t, db, lim.ID)
	db.Model(mop).Updates(map[string]any{"name": "Trapeador", "is_active": false})

	tests := []struct {
		name       string
		categoryID *string
		isActive   *bool
		search     string
		want       int64
	}{
		{"all", nil, nil, "", 4},
		{"by_category", &pap.ID, nil, "", 3},
		{"active_only", nil, boolPtr(true), "", 3},
		{"search", nil, nil, "trape", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.ListItems(pagination.PageRequest{}, tt.categoryID, tt.isActive, tt.search)
			testutil.AssertNoError(t, err)
			if page.TotalItems != tt.want {
				t.Errorf("expected %d items, got %d", tt.want, page.TotalItems)
			}
		})
	}

	t.Run("paginated", func(t *testing.T) {
		page, err := svc.ListItems(pagination.PageRequest{Page: 2, PageSize: 3}, nil, nil, "")
		testutil.AssertNoError(t, err)
		if len(page.Data) != 1 || page.TotalPages != 2 {
			t.Errorf("expected 1 item on page 2 of 2, got %d items of %d pages", len(page.Data), page.TotalPages)
		}
	})
}

func TestUpdateItem(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewCatalogService(db)
	finance := testutil.CreateTestUserWithRole(t, db, models.RoleFinanzas, nil)
	pap := testutil.CreateTestCategory(t, db, models.CategoryPapeleria)
	lim := testutil.CreateTestCategory(t, db, models.CategoryLimpieza)
	item := testutil.CreateTestItem(t, db, pap.ID)
	other := testutil.CreateTestItem(t, db, pap.ID)

	got, err := svc.UpdateItem(finance.ID, item.ID, ItemInput{CategoryID: lim.ID, Unit: "litro", IsActive: boolPtr(false)})
	testutil.AssertNoError(t, err)
	if got.CategoryID != lim.ID {
		t.Errorf("expected category %s, got %s", lim.ID, got.CategoryID)
	}
	if got.Unit != "litro" || got.IsActive {
		t.Errorf("unexpected item after update: %+v", got)
	}
	if got.Name != item.Name {
		t.Errorf("name should be unchanged, got %s", got.Name)
	}

	_, err = svc.UpdateItem(finance.ID, item.ID, ItemInput{Code: other.Code})
	testutil.AssertAppError(t, err, "DUPLICATE_CODE")

	_, err = svc.UpdateItem(finance.ID, "missing", ItemInput{Name: "x"})
	testutil.AssertAppError(t, err, "ITEM_NOT_FOUND")
}
