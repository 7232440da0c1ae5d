package models

import "github.com/shopspring/decimal"

// Budget is the monthly spending envelope for a (cost center, category) pair.
type Budget struct {
	Base
	CostCenterID string          `gorm:"type:uuid;not null;uniqueIndex:idx_budget_period" json:"cost_center_id"`
	CategoryID   string          `gorm:"type:uuid;not null;uniqueIndex:idx_budget_period" json:"category_id"`
	Year         int             `gorm:"not null;uniqueIndex:idx_budget_period" json:"year"`
	Month        int             `gorm:"not null;uniqueIndex:idx_budget_period" json:"month"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	IsClosed     bool            `gorm:"default:false" json:"is_closed"`
	CreatedByID  *string         `gorm:"type:uuid" json:"created_by_id,omitempty"`

	CostCenter *CostCenter `gorm:"foreignKey:CostCenterID" json:"cost_center,omitempty"`
	Category   *Category   `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// BudgetHistory records a change to a budget's amount. Rows are never updated.
type BudgetHistory struct {
	Entry
	BudgetID       string          `gorm:"type:uuid;not null;index" json:"budget_id"`
	PreviousAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"previous_amount"`
	NewAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"new_amount"`
	ChangedByID    string          `gorm:"type:uuid;not null" json:"changed_by_id"`
	Reason         string          `json:"reason"`

	ChangedBy *User `gorm:"foreignKey:ChangedByID" json:"changed_by,omitempty"`
}
