package access

import "context"

// Principal is the authenticated actor as supplied by the session or the
// identity provider. The evaluator only reads it.
type Principal struct {
	Subject     string
	UserID      int64
	Email       string
	Role        Role
	Permissions []Permission
}

// Effective resolves the principal's permissions against t, or the default
// table when t is nil.
func (p Principal) Effective(t *Table) PermissionSet {
	if t == nil {
		t = defaultTable
	}
	return t.EffectivePermissions(p.Role, p.Permissions...)
}

// Level returns the hierarchy level of the principal's role.
func (p Principal) Level() Level {
	return HierarchyLevel(p.Role)
}

// Outranks reports whether the principal may manage a user holding role.
func (p Principal) Outranks(role Role) bool {
	return CanManageUser(p.Role, role)
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in ctx.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal stored by ContextWithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
