package access

// EffectivePermissions resolves role and explicit permissions against the
// default table. It never fails: an unknown role without overrides yields an
// empty set.
func EffectivePermissions(role Role, explicit ...Permission) PermissionSet {
	return defaultTable.EffectivePermissions(role, explicit...)
}

// HasPermission reports whether permission is in set.
func HasPermission(set PermissionSet, permission Permission) bool {
	return set.Has(permission)
}

// HasAnyPermission reports whether set holds at least one of permissions.
// An empty request is never satisfied.
func HasAnyPermission(set PermissionSet, permissions ...Permission) bool {
	for _, p := range permissions {
		if set.Has(p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether set holds every one of permissions.
// An empty request is vacuously satisfied.
func HasAllPermissions(set PermissionSet, permissions ...Permission) bool {
	for _, p := range permissions {
		if !set.Has(p) {
			return false
		}
	}
	return true
}

// CanGrant reports whether an actor holding actorSet may hand out every one of
// requested. Nobody can grant a permission they do not hold.
func CanGrant(actorSet PermissionSet, requested ...Permission) bool {
	return HasAllPermissions(actorSet, requested...)
}
