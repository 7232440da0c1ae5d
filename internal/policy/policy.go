// Package policy maps roles to the actions they may perform.
package policy

import "compras/internal/models"

// Action is a role-gated capability.
type Action string

const (
	ApproveRequests  Action = "approve_requests"
	FinalApprove     Action = "final_approve"
	FulfillPurchases Action = "fulfill_purchases"
	ViewAllRequests  Action = "view_all_requests"
	ManageUsers      Action = "manage_users"
	ManageBudgets    Action = "manage_budgets"
	ReopenBudgets    Action = "reopen_budgets"
	ManageCatalog    Action = "manage_catalog"
	ViewReports      Action = "view_reports"
)

var (
	approvers       = roles(models.RoleGerente, models.RoleFinanzas, models.RoleDireccionGeneral)
	financeDirector = roles(models.RoleFinanzas, models.RoleDireccionGeneral)
	financeOnly     = roles(models.RoleFinanzas)
)

var rules = map[Action]map[models.Role]bool{
	ApproveRequests:  approvers,
	FinalApprove:     financeDirector,
	FulfillPurchases: financeDirector,
	ViewAllRequests:  financeDirector,
	ManageUsers:      approvers,
	ManageBudgets:    financeDirector,
	ReopenBudgets:    financeOnly,
	ManageCatalog:    financeDirector,
	ViewReports:      approvers,
}

func roles(rs ...models.Role) map[models.Role]bool {
	m := make(map[models.Role]bool, len(rs))
	for _, r := range rs {
		m[r] = true
	}
	return m
}

// Allowed reports whether role may perform action. Unknown actions are denied.
func Allowed(role models.Role, action Action) bool {
	return rules[action][role]
}

// IsFinanceOrDirector reports whether role belongs to the finance/director approval pool.
func IsFinanceOrDirector(role models.Role) bool {
	return financeDirector[role]
}

// IsManager reports whether role is an area manager.
func IsManager(role models.Role) bool {
	return role == models.RoleGerente
}
