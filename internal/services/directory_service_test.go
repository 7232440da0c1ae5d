package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compras/internal/models"
	"compras/internal/pagination"
	"compras/internal/testutil"
)

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

func TestDirectory_areas_and_locations(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewDirectoryService(db)
	org := testutil.CreateTestOrg(t, db)
	testutil.CreateTestArea(t, db, models.AreaComercial)
	gdl := testutil.CreateTestLocation(t, db, models.LocationGuadalajara)

	areas, err := svc.ListAreas(nil)
	require.NoError(t, err)
	assert.Len(t, areas, 2)

	_, err = svc.UpdateArea(org.Manager.ID, org.Area.ID, nil, boolPtr(false))
	testutil.AssertAppError(t, err, "FORBIDDEN")

	_, err = svc.UpdateArea(org.Finance.ID, org.Area.ID, strPtr("  Operación diaria "), boolPtr(false))
	require.NoError(t, err)
	active, err := svc.ListAreas(boolPtr(true))
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, models.AreaComercial, active[0].Name)

	var stored models.Area
	require.NoError(t, db.First(&stored, "id = ?", org.Area.ID).Error)
	assert.Equal(t, "Operación diaria", stored.Description)

	_, err = svc.UpdateArea(org.Finance.ID, "missing", nil, nil)
	testutil.AssertAppError(t, err, "AREA_NOT_FOUND")

	_, err = svc.UpdateLocation(org.Director.ID, gdl.ID, boolPtr(false))
	require.NoError(t, err)
	locations, err := svc.ListLocations(boolPtr(false))
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, gdl.ID, locations[0].ID)

	_, err = svc.UpdateLocation(org.Finance.ID, "missing", nil)
	testutil.AssertAppError(t, err, "LOCATION_NOT_FOUND")
}

func TestDirectory_cost_centers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewDirectoryService(db)
	org := testutil.CreateTestOrg(t, db)
	loc := testutil.CreateTestLocation(t, db, models.LocationCuliacan)

	t.Run("create normalizes code", func(t *testing.T) {
		cc, err := svc.CreateCostCenter(org.Finance.ID, CostCenterInput{
			Code: " ops-cln ", Name: "Operaciones Culiacán", AreaID: org.Area.ID, LocationID: &loc.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, "OPS-CLN", cc.Code)
		assert.True(t, cc.IsActive)
		require.NotNil(t, cc.Location)
		assert.Equal(t, models.LocationCuliacan, cc.Location.Name)
	})

	t.Run("inactive on create", func(t *testing.T) {
		cc, err := svc.CreateCostCenter(org.Finance.ID, CostCenterInput{
			Code: "OLD", Name: "Histórico", AreaID: org.Area.ID, IsActive: boolPtr(false),
		})
		require.NoError(t, err)
		assert.False(t, cc.IsActive)
	})

	t.Run("duplicate code", func(t *testing.T) {
		_, err := svc.CreateCostCenter(org.Finance.ID, CostCenterInput{Code: "ops-cln", Name: "x", AreaID: org.Area.ID})
		testutil.AssertAppError(t, err, "DUPLICATE_CODE")
	})

	t.Run("unknown refs", func(t *testing.T) {
		_, err := svc.CreateCostCenter(org.Finance.ID, CostCenterInput{Code: "X1", Name: "x", AreaID: "missing"})
		testutil.AssertAppError(t, err, "AREA_NOT_FOUND")
		_, err = svc.CreateCostCenter(org.Finance.ID, CostCenterInput{Code: "X1", Name: "x", AreaID: org.Area.ID, LocationID: strPtr("missing")})
		testutil.AssertAppError(t, err, "LOCATION_NOT_FOUND")
	})

	t.Run("employees cannot create", func(t *testing.T) {
		_, err := svc.CreateCostCenter(org.Employee.ID, CostCenterInput{Code: "X2", Name: "x", AreaID: org.Area.ID})
		testutil.AssertAppError(t, err, "FORBIDDEN")
	})

	t.Run("list and filter", func(t *testing.T) {
		page, err := svc.ListCostCenters(pagination.PageRequest{}, &org.Area.ID, nil, boolPtr(true), "")
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.TotalItems)

		page, err = svc.ListCostCenters(pagination.PageRequest{}, nil, &loc.ID, nil, "")
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.TotalItems)

		page, err = svc.ListCostCenters(pagination.PageRequest{}, nil, nil, nil, "culiac")
		require.NoError(t, err)
		require.Equal(t, int64(1), page.TotalItems)
		assert.Equal(t, "OPS-CLN", page.Data[0].Code)
	})

	t.Run("update", func(t *testing.T) {
		cc, err := svc.UpdateCostCenter(org.Director.ID, org.CostCenter.ID, CostCenterInput{Name: "Renombrado", IsActive: boolPtr(false)})
		require.NoError(t, err)
		assert.Equal(t, "Renombrado", cc.Name)
		assert.False(t, cc.IsActive)
		assert.Equal(t, org.CostCenter.Code, cc.Code)

		_, err = svc.UpdateCostCenter(org.Director.ID, org.CostCenter.ID, CostCenterInput{Code: "OPS-CLN"})
		testutil.AssertAppError(t, err, "DUPLICATE_CODE")

		_, err = svc.GetCostCenter("missing")
		testutil.AssertAppError(t, err, "COST_CENTER_NOT_FOUND")
	})
}
