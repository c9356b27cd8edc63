package access

import (
	"slices"
	"strings"
)

// Permission is an atomic capability token.
type Permission string

// Known permissions. The string values are shared with the identity provider.
const (
	PermManagePlatform     Permission = "manage_platform"
	PermManageAllUsers     Permission = "manage_all_users"
	PermManageCompanyUsers Permission = "manage_company_users"
	PermViewUsers          Permission = "view_users"
	PermManageRoles        Permission = "manage_roles"

	PermViewAllData   Permission = "view_all_data"
	PermManageAllData Permission = "manage_all_data"
	PermViewData      Permission = "view_data"
	PermEditData      Permission = "edit_data"

	PermViewFinance   Permission = "view_finance"
	PermManageFinance Permission = "manage_finance"
	PermExportReports Permission = "export_reports"

	PermViewCampaigns   Permission = "view_campaigns"
	PermCreateCampaign  Permission = "create_campaign"
	PermManageCampaigns Permission = "manage_campaigns"

	PermViewReferrals   Permission = "view_referrals"
	PermManageReferrals Permission = "manage_referrals"

	PermViewAnalytics  Permission = "view_analytics"
	PermManageSettings Permission = "manage_settings"
)

var knownPermissions = []Permission{
	PermManagePlatform,
	PermManageAllUsers,
	PermManageCompanyUsers,
	PermViewUsers,
	PermManageRoles,
	PermViewAllData,
	PermManageAllData,
	PermViewData,
	PermEditData,
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
}

// Permissions lists every known permission.
func Permissions() []Permission {
	return slices.Clone(knownPermissions)
}

// ParsePermission normalizes a raw token and reports whether it is known.
func ParsePermission(raw string) (Permission, bool) {
	p := Permission(strings.ToLower(strings.TrimSpace(raw)))
	return p, p.Valid()
}

// Valid reports whether p is a known permission.
func (p Permission) Valid() bool {
	return slices.Contains(knownPermissions, p)
}

// String implements fmt.Stringer.
func (p Permission) String() string {
	return string(p)
}

// PermissionSet is an unordered set of permissions. The zero value is an
// empty set and is safe to query.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from perms, ignoring duplicates.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether p is a member of the set.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Len returns the number of permissions in the set.
func (s PermissionSet) Len() int {
	return len(s)
}

// Slice returns the members sorted by token.
func (s PermissionSet) Slice() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Strings returns the sorted members as raw tokens.
func (s PermissionSet) Strings() []string {
	perms := s.Slice()
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

// Clone returns an independent copy of the set.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}
