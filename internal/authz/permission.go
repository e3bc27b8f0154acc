package authz

import "strings"

// Permission is an opaque capability token from a fixed catalog.
type Permission string

const (
	PermCustomerView          Permission = "customer:view"
	PermCustomerEdit          Permission = "customer:edit"
	PermCustomerClaim         Permission = "customer:claim"
	PermCustomerClaimRelease  Permission = "customer:claim:release"
	PermCustomerClaimTransfer Permission = "customer:claim:transfer"
	PermOrdersManage          Permission = "orders:manage"
	PermInvoicesManage        Permission = "invoices:manage"
	PermMessagesSend          Permission = "messages:send"
	PermReportsExport         Permission = "reports:export"
	PermUsersManage           Permission = "users:manage"
)

// Catalog lists every permission the console understands.
var Catalog = []Permission{
	PermCustomerView,
	PermCustomerEdit,
	PermCustomerClaim,
	PermCustomerClaimRelease,
	PermCustomerClaimTransfer,
	PermOrdersManage,
	PermInvoicesManage,
	PermMessagesSend,
	PermReportsExport,
	PermUsersManage,
}

// rolePermissions maps each role to the permissions it implies. A permission
// is granted if it is in the user's explicit set or implied here.
var rolePermissions = map[Role][]Permission{
	RoleReadOnly: {PermCustomerView},
	RoleAgent: {
		PermCustomerView, PermCustomerEdit,
		PermCustomerClaim, PermCustomerClaimRelease,
		PermMessagesSend,
	},
	RoleSupervisor: {
		PermCustomerView, PermCustomerEdit,
		PermCustomerClaim, PermCustomerClaimRelease, PermCustomerClaimTransfer,
		PermOrdersManage, PermMessagesSend, PermReportsExport,
	},
	RoleManager:    Catalog,
	RoleAdmin:      Catalog,
	RoleSuperAdmin: Catalog,
}

// ParsePermissions normalizes and deduplicates wire permission strings.
// Unlike roles the catalog is not enforced here: the server may grant
// permissions this build does not know yet.
func ParsePermissions(keys []string) []Permission {
	if len(keys) == 0 {
		return nil
	}
	seen := make(map[Permission]struct{}, len(keys))
	var out []Permission
	for _, key := range keys {
		p := Permission(strings.TrimSpace(strings.ToLower(key)))
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
