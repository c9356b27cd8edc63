package access

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidTable is returned when a role permission table fails validation.
var ErrInvalidTable = errors.New("access: invalid permission table")

// TableConfig maps each role to its default permissions.
type TableConfig map[Role][]Permission

// Table is an immutable role to default-permissions lookup. It is safe for
// concurrent use without synchronization.
type Table struct {
	defaults map[Role]PermissionSet
}

// defaultConfig is hand-authored per role. Higher roles are not required to be
// supersets of lower ones: employee holds edit_data while company does not.
var defaultConfig = TableConfig{
	RolePlatformOwner: {
		PermManagePlatform,
		PermManageAllUsers,
		PermViewUsers,
		PermManageRoles,
		PermViewAllData,
		PermManageAllData,
		PermViewData,
		PermViewFinance,
		PermManageFinance,
		PermExportReports,
		PermViewCampaigns,
		PermCreateCampaign,
		PermManageCampaigns,
		PermViewReferrals,
		PermManageReferrals,
		PermViewAnalytics,
		PermManageSettings,
	},
	RoleCompany: {
		PermManageCompanyUsers,
		PermViewUsers,
		PermViewData,
		PermViewFinance,
		PermManageFinance,
		PermExportReports,
		PermViewCampaigns,
		PermCreateCampaign,
		PermManageCampaigns,
		PermViewReferrals,
		PermManageReferrals,
		PermViewAnalytics,
		PermManageSettings,
	},
	RoleEmployee: {
		PermViewData,
		PermEditData,
		PermViewCampaigns,
		PermCreateCampaign,
		PermViewReferrals,
		PermViewAnalytics,
	},
	RoleExecutor: {
		PermViewData,
		PermViewCampaigns,
	},
}

var defaultTable = MustNewTable(defaultConfig)

// DefaultTable returns the built-in role permission table.
func DefaultTable() *Table {
	return defaultTable
}

// DefaultConfig returns a copy of the built-in table configuration.
func DefaultConfig() TableConfig {
	return defaultConfig.clone()
}

// NewTable validates cfg and builds an immutable Table. Every known role must
// have a non-empty entry and only known tokens are accepted.
func NewTable(cfg TableConfig) (*Table, error) {
	defaults := make(map[Role]PermissionSet, len(cfg))
	for role, perms := range cfg {
		if !role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidTable, role)
		}
		if len(perms) == 0 {
			return nil, fmt.Errorf("%w: role %q has no permissions", ErrInvalidTable, role)
		}
		for _, p := range perms {
			if !p.Valid() {
				return nil, fmt.Errorf("%w: role %q: unknown permission %q", ErrInvalidTable, role, p)
			}
		}
		defaults[role] = NewPermissionSet(perms...)
	}
	for _, role := range Roles() {
		if _, ok := defaults[role]; !ok {
			return nil, fmt.Errorf("%w: missing role %q", ErrInvalidTable, role)
		}
	}
	return &Table{defaults: defaults}, nil
}

// MustNewTable is like NewTable but panics on an invalid configuration.
func MustNewTable(cfg TableConfig) *Table {
	t, err := NewTable(cfg)
	if err != nil {
		panic(err)
	}
	return t
}

// Defaults returns a copy of the default permissions for role. Unknown roles
// yield an empty set.
func (t *Table) Defaults(role Role) PermissionSet {
	if t == nil {
		return PermissionSet{}
	}
	set, ok := t.defaults[role]
	if !ok {
		return PermissionSet{}
	}
	return set.Clone()
}

// EffectivePermissions resolves the permissions applied to a user. A non-empty
// explicit list is authoritative regardless of role; otherwise the role's
// defaults apply.
func (t *Table) EffectivePermissions(role Role, explicit ...Permission) PermissionSet {
	if len(explicit) > 0 {
		return NewPermissionSet(explicit...)
	}
	return t.Defaults(role)
}

// Config returns a copy of the configuration backing the table.
func (t *Table) Config() TableConfig {
	if t == nil {
		return TableConfig{}
	}
	cfg := make(TableConfig, len(t.defaults))
	for role, set := range t.defaults {
		cfg[role] = set.Slice()
	}
	return cfg
}

func (c TableConfig) clone() TableConfig {
	out := make(TableConfig, len(c))
	for role, perms := range c {
		out[role] = slices.Clone(perms)
	}
	return out
}
