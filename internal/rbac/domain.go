package rbac

import (
	"strings"

	"github.com/lumbung-pos/lumbung/internal/shared"
)

// Role groups permissions granted to an actor inside an organization.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleManager Role = "manager"
	RoleCashier Role = "cashier"
)

var rolePermissions = map[Role][]string{
	RoleOwner: shared.AllPermissions(),
	RoleManager: {
		shared.PermCatalogView,
		shared.PermCatalogEdit,
		shared.PermInventoryView,
		shared.PermInventoryEdit,
		shared.PermPurchasingView,
		shared.PermPurchasingEdit,
		shared.PermPurchasingReceive,
		shared.PermSalesCheckout,
		shared.PermSalesView,
		shared.PermSalesVoid,
		shared.PermReportsView,
		shared.PermAuditView,
	},
	RoleCashier: {
		shared.PermCatalogView,
		shared.PermInventoryView,
		shared.PermSalesCheckout,
		shared.PermSalesView,
	},
}

// ParseRole normalises a raw role name. Unknown roles report false.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := rolePermissions[role]
	return role, ok
}

// Permissions lists what the role may do.
func Permissions(role Role) []string {
	perms := rolePermissions[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}
