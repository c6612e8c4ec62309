package shared

// Permissions checked by route guards.
const (
	PermCatalogView = "catalog.view"
	PermCatalogEdit = "catalog.edit"

	PermInventoryView = "inventory.view"
	PermInventoryEdit = "inventory.edit"

	PermPurchasingView    = "purchasing.view"
	PermPurchasingEdit    = "purchasing.edit"
	PermPurchasingReceive = "purchasing.receive"

	PermSalesCheckout = "sales.checkout"
	PermSalesView     = "sales.view"
	PermSalesVoid     = "sales.void"

	PermReportsView = "reports.view"
	PermAuditView   = "audit.view"

	PermOrgManage = "org.manage"
)

// AllPermissions lists every permission known to the platform.
func AllPermissions() []string {
	return []string{
		PermCatalogView,
		PermCatalogEdit,
		PermInventoryView,
		PermInventoryEdit,
		PermPurchasingView,
		PermPurchasingEdit,
		PermPurchasingReceive,
		PermSalesCheckout,
		PermSalesView,
		PermSalesVoid,
		PermReportsView,
		PermAuditView,
		PermOrgManage,
	}
}
