package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketai/marketai-admin/internal/access"
)

func TestEffectivePermissionsUsesRoleDefaults(t *testing.T) {
	cfg := access.DefaultConfig()
	for _, role := range access.Roles() {
		t.Run(string(role), func(t *testing.T) {
			got := access.EffectivePermissions(role)
			require.NotZero(t, got.Len())
			assert.Equal(t, access.NewPermissionSet(cfg[role]...), got)
		})
	}
}

func TestEffectivePermissionsExplicitOverrideWins(t *testing.T) {
	explicit := []access.Permission{access.PermViewFinance, access.PermExportReports, access.PermViewFinance}
	want := access.NewPermissionSet(access.PermViewFinance, access.PermExportReports)

	for _, role := range append(access.Roles(), access.Role("ghost")) {
		got := access.EffectivePermissions(role, explicit...)
		assert.Equal(t, want, got, "role %s", role)
		assert.Equal(t, 2, got.Len())
	}
}

func TestEffectivePermissionsUnknownRoleIsEmpty(t *testing.T) {
	got := access.EffectivePermissions(access.Role("superuser"))
	assert.NotNil(t, got)
	assert.Zero(t, got.Len())
	assert.False(t, access.HasPermission(got, access.PermViewData))
}

func TestEffectivePermissionsReturnsCopy(t *testing.T) {
	first := access.EffectivePermissions(access.RoleExecutor)
	first[access.PermManagePlatform] = struct{}{}

	second := access.EffectivePermissions(access.RoleExecutor)
	assert.False(t, second.Has(access.PermManagePlatform))
}

func TestExecutorAnyAndAll(t *testing.T) {
	executor := access.EffectivePermissions(access.RoleExecutor)

	assert.True(t, access.HasAnyPermission(executor, access.PermViewData, access.PermManageAllData))
	assert.False(t, access.HasAllPermissions(executor, access.PermViewData, access.PermManageAllData))
}

func TestEmptyRequestEdges(t *testing.T) {
	set := access.EffectivePermissions(access.RolePlatformOwner)

	assert.False(t, access.HasAnyPermission(set))
	assert.True(t, access.HasAllPermissions(set))
	assert.True(t, access.HasAllPermissions(access.PermissionSet{}))
	assert.False(t, access.HasAnyPermission(nil, access.PermViewData))
	assert.False(t, access.HasPermission(nil, access.PermViewData))
}

func TestUnknownPermissionNeverGranted(t *testing.T) {
	set := access.EffectivePermissions(access.RolePlatformOwner)
	assert.False(t, access.HasPermission(set, access.Permission("delete_everything")))
	assert.False(t, access.HasAllPermissions(set, access.PermViewData, access.Permission("delete_everything")))
}

func TestDefaultTableIsNotMonotonic(t *testing.T) {
	// Preserved as authored: employees edit data, company accounts do not.
	assert.True(t, access.EffectivePermissions(access.RoleEmployee).Has(access.PermEditData))
	assert.False(t, access.EffectivePermissions(access.RoleCompany).Has(access.PermEditData))
}

func TestCanGrant(t *testing.T) {
	company := access.EffectivePermissions(access.RoleCompany)

	assert.True(t, access.CanGrant(company, access.PermViewFinance, access.PermCreateCampaign))
	assert.False(t, access.CanGrant(company, access.PermManagePlatform))
	assert.True(t, access.CanGrant(company))
}

func TestEvaluatorIsIdempotent(t *testing.T) {
	for _, role := range append(access.Roles(), access.Role("")) {
		assert.Equal(t, access.EffectivePermissions(role), access.EffectivePermissions(role))
		assert.Equal(t, access.HierarchyLevel(role), access.HierarchyLevel(role))
		for _, other := range access.Roles() {
			assert.Equal(t, access.CanManageUser(role, other), access.CanManageUser(role, other))
			assert.Equal(t, access.HasRoleOrHigher(role, other), access.HasRoleOrHigher(role, other))
		}
	}
}
