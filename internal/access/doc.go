// Package access evaluates what a MarketAI user may do.
//
// A user carries a Role and, optionally, an explicit list of Permissions that
// replaces the role defaults. Roles are ranked platform_owner > company >
// employee > executor; the rank decides whether one user may manage another.
//
// Every evaluation is pure and total. Unknown role or permission tokens never
// cause an error: they simply grant nothing.
package access
