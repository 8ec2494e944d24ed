package access

import "context"

type roleContextKey struct{}

// ContextWithRole stores the resolved effective role in context.
func ContextWithRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, roleContextKey{}, role)
}

// RoleFromContext extracts the effective role placed by the route guard.
// Returns RoleCandidate when no guard ran, keeping downstream checks at
// least privilege.
func RoleFromContext(ctx context.Context) Role {
	if role, ok := ctx.Value(roleContextKey{}).(Role); ok {
		return role
	}
	return RoleCandidate
}
