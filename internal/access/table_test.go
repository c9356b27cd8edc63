package access_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketai/marketai-admin/internal/access"
)

func TestNewTableValidation(t *testing.T) {
	t.Run("default config is valid", func(t *testing.T) {
		_, err := access.NewTable(access.DefaultConfig())
		require.NoError(t, err)
	})

	t.Run("missing role", func(t *testing.T) {
		cfg := access.DefaultConfig()
		delete(cfg, access.RoleExecutor)
		_, err := access.NewTable(cfg)
		require.ErrorIs(t, err, access.ErrInvalidTable)
		assert.Contains(t, err.Error(), "executor")
	})

	t.Run("empty entry", func(t *testing.T) {
		cfg := access.DefaultConfig()
		cfg[access.RoleEmployee] = nil
		_, err := access.NewTable(cfg)
		require.ErrorIs(t, err, access.ErrInvalidTable)
	})

	t.Run("unknown role", func(t *testing.T) {
		cfg := access.DefaultConfig()
		cfg[access.Role("auditor")] = []access.Permission{access.PermViewData}
		_, err := access.NewTable(cfg)
		require.ErrorIs(t, err, access.ErrInvalidTable)
	})

	t.Run("unknown permission", func(t *testing.T) {
		cfg := access.DefaultConfig()
		cfg[access.RoleExecutor] = []access.Permission{"fly"}
		_, err := access.NewTable(cfg)
		require.ErrorIs(t, err, access.ErrInvalidTable)
	})
}

func TestTableIsIsolatedFromConfig(t *testing.T) {
	cfg := access.DefaultConfig()
	table, err := access.NewTable(cfg)
	require.NoError(t, err)

	cfg[access.RoleExecutor][0] = access.PermManagePlatform
	assert.False(t, table.Defaults(access.RoleExecutor).Has(access.PermManagePlatform))

	exported := table.Config()
	exported[access.RoleExecutor] = []access.Permission{access.PermManagePlatform}
	assert.False(t, table.Defaults(access.RoleExecutor).Has(access.PermManagePlatform))
}

func TestNilTableDegradesToNoAccess(t *testing.T) {
	var table *access.Table
	assert.Zero(t, table.Defaults(access.RolePlatformOwner).Len())
	assert.Zero(t, table.EffectivePermissions(access.RolePlatformOwner).Len())
	assert.NotPanics(t, func() { assert.Empty(t, table.Config()) })
}

const customPolicy = `
roles:
  platform_owner: [manage_platform, manage_all_users]
  Company: [manage_company_users, view_finance]
  employee: [view_data, edit_data]
  executor: [VIEW_DATA]
`

func TestLoadTableYAML(t *testing.T) {
	table, err := access.LoadTableYAML(strings.NewReader(customPolicy))
	require.NoError(t, err)

	assert.Equal(t,
		access.NewPermissionSet(access.PermManageCompanyUsers, access.PermViewFinance),
		table.Defaults(access.RoleCompany))
	assert.Equal(t,
		access.NewPermissionSet(access.PermViewData),
		table.EffectivePermissions(access.RoleExecutor))
	assert.False(t, table.Defaults(access.RolePlatformOwner).Has(access.PermViewFinance))
}

func TestLoadTableYAMLRejectsInvalidDocuments(t *testing.T) {
	docs := map[string]string{
		"unknown field":      "rolez:\n  executor: [view_data]\n",
		"unknown permission": strings.Replace(customPolicy, "VIEW_DATA", "time_travel", 1),
		"missing role":       "roles:\n  executor: [view_data]\n",
		"not yaml":           "roles: [",
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			_, err := access.LoadTableYAML(strings.NewReader(doc))
			assert.ErrorIs(t, err, access.ErrInvalidTable)
		})
	}
}

func TestLoadTableFile(t *testing.T) {
	table, err := access.LoadTableFile("")
	require.NoError(t, err)
	assert.Same(t, access.DefaultTable(), table)

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(customPolicy), 0o600))
	table, err = access.LoadTableFile(path)
	require.NoError(t, err)
	assert.True(t, table.Defaults(access.RoleEmployee).Has(access.PermEditData))

	_, err = access.LoadTableFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
