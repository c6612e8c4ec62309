package shared

import "context"

// Tenant identifies the organization and actor behind a request.
type Tenant struct {
	OrganizationID int64
	ActorID        int64
	Role           string
}

type tenantContextKey struct{}

// ContextWithTenant stores the tenant in context.
func ContextWithTenant(ctx context.Context, tenant Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenant)
}

// TenantFromContext extracts the tenant from context.
func TenantFromContext(ctx context.Context) (Tenant, bool) {
	tenant, ok := ctx.Value(tenantContextKey{}).(Tenant)
	return tenant, ok && tenant.OrganizationID > 0
}

// OrganizationID returns the organization bound to ctx or zero.
func OrganizationID(ctx context.Context) int64 {
	tenant, _ := TenantFromContext(ctx)
	return tenant.OrganizationID
}

// ActorID returns the acting user bound to ctx or zero.
func ActorID(ctx context.Context) int64 {
	tenant, _ := TenantFromContext(ctx)
	return tenant.ActorID
}
