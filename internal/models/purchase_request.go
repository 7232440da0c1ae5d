package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestStatus is a state of the purchase-request workflow.
type RequestStatus string

const (
	StatusBorrador           RequestStatus = "BORRADOR"
	StatusPendienteGerente   RequestStatus = "PENDIENTE_GERENTE"
	StatusAprobadaPorGerente RequestStatus = "APROBADA_POR_GERENTE"
	StatusAprobada           RequestStatus = "APROBADA"
	StatusEnProceso          RequestStatus = "EN_PROCESO"
	StatusComprada           RequestStatus = "COMPRADA"
	StatusCompletada         RequestStatus = "COMPLETADA"
	StatusRechazadaGerente   RequestStatus = "RECHAZADA_GERENTE"
	StatusRechazadaFinanzas  RequestStatus = "RECHAZADA_FINANZAS"
	StatusCancelada          RequestStatus = "CANCELADA"
)

// RequestStatuses lists all ten workflow states.
var RequestStatuses = []RequestStatus{
	StatusBorrador, StatusPendienteGerente, StatusAprobadaPorGerente, StatusAprobada, StatusEnProceso,
	StatusComprada, StatusCompletada, StatusRechazadaGerente, StatusRechazadaFinanzas, StatusCancelada,
}

// SpendStatuses are the states whose estimated amount counts against a budget.
// Spend is committed as soon as the area manager approves.
var SpendStatuses = []RequestStatus{
	StatusAprobadaPorGerente, StatusAprobada, StatusEnProceso, StatusComprada, StatusCompletada,
}

// ApprovedStatuses are the states reports treat as approved expenses.
var ApprovedStatuses = []RequestStatus{
	StatusAprobada, StatusEnProceso, StatusComprada, StatusCompletada,
}

// Valid reports whether s is one of the workflow states.
func (s RequestStatus) Valid() bool {
	for _, known := range RequestStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition leaves this state.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case StatusCompletada, StatusRechazadaGerente, StatusRechazadaFinanzas, StatusCancelada:
		return true
	}
	return false
}

// Urgency of a purchase request.
type Urgency string

const (
	UrgencyNormal  Urgency = "NORMAL"
	UrgencyUrgente Urgency = "URGENTE"
)

// Valid reports whether u is a known urgency.
func (u Urgency) Valid() bool {
	return u == UrgencyNormal || u == UrgencyUrgente
}

// Label returns the human-readable urgency.
func (u Urgency) Label() string {
	if u == UrgencyUrgente {
		return "Urgente"
	}
	return "Normal"
}

// PurchaseRequest is a single proposed purchase tracked from draft to completion.
type PurchaseRequest struct {
	Base
	RequestNumber             string          `gorm:"size:20;uniqueIndex;not null" json:"request_number"`
	RequesterID               string          `gorm:"type:uuid;not null;index" json:"requester_id"`
	CostCenterID              string          `gorm:"type:uuid;not null;index" json:"cost_center_id"`
	CategoryID                string          `gorm:"type:uuid;not null;index" json:"category_id"`
	Description               string          `gorm:"not null" json:"description"`
	SuggestedSupplier         string          `gorm:"size:200" json:"suggested_supplier"`
	EstimatedAmount           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"estimated_amount"`
	RequiredDate              time.Time       `gorm:"type:date;not null" json:"required_date"`
	Justification             string          `gorm:"not null" json:"justification"`
	BudgetExcessJustification string          `json:"budget_excess_justification"`
	Urgency                   Urgency         `gorm:"size:10;not null;default:NORMAL" json:"urgency"`
	Status                    RequestStatus   `gorm:"size:30;not null;default:BORRADOR;index" json:"status"`
	ExceedsBudget             bool            `gorm:"default:false" json:"exceeds_budget"`

	ManagerApprovedByID *string    `gorm:"type:uuid" json:"manager_approved_by_id,omitempty"`
	ManagerApprovedAt   *time.Time `json:"manager_approved_at,omitempty"`
	FinalApprovedByID   *string    `gorm:"type:uuid" json:"final_approved_by_id,omitempty"`
	FinalApprovedAt     *time.Time `json:"final_approved_at,omitempty"`

	RejectionReason string     `json:"rejection_reason"`
	RejectedByID    *string    `gorm:"type:uuid" json:"rejected_by_id,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`

	PurchaseDate   *time.Time       `gorm:"type:date" json:"purchase_date,omitempty"`
	ActualSupplier string           `gorm:"size:200" json:"actual_supplier"`
	ActualAmount   *decimal.Decimal `gorm:"type:decimal(12,2)" json:"actual_amount,omitempty"`
	InvoiceNumber  string           `gorm:"size:100" json:"invoice_number"`

	Requester         *User                  `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	CostCenter        *CostCenter            `gorm:"foreignKey:CostCenterID" json:"cost_center,omitempty"`
	Category          *Category              `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Items             []Item                 `gorm:"many2many:purchase_request_items" json:"items,omitempty"`
	ManagerApprovedBy *User                  `gorm:"foreignKey:ManagerApprovedByID" json:"manager_approved_by,omitempty"`
	FinalApprovedBy   *User                  `gorm:"foreignKey:FinalApprovedByID" json:"final_approved_by,omitempty"`
	RejectedBy        *User                  `gorm:"foreignKey:RejectedByID" json:"rejected_by,omitempty"`
	Comments          []RequestComment       `gorm:"foreignKey:RequestID" json:"comments,omitempty"`
	Attachments       []RequestAttachment    `gorm:"foreignKey:RequestID" json:"attachments,omitempty"`
	History           []RequestStatusHistory `gorm:"foreignKey:RequestID" json:"history,omitempty"`
}

// RequestComment is a collaboration note on a request.
type RequestComment struct {
	Base
	RequestID string `gorm:"type:uuid;not null;index" json:"request_id"`
	UserID    string `gorm:"type:uuid;not null" json:"user_id"`
	Comment   string `gorm:"not null" json:"comment"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// RequestAttachment is a PDF uploaded to a request.
type RequestAttachment struct {
	Base
	RequestID        string `gorm:"type:uuid;not null;index" json:"request_id"`
	OriginalFilename string `gorm:"size:255;not null" json:"original_filename"`
	StoredPath       string `gorm:"size:500;not null" json:"-"`
	ContentType      string `gorm:"size:100" json:"content_type"`
	FileSize         int64  `gorm:"not null" json:"file_size"`
	UploadedByID     string `gorm:"type:uuid;not null" json:"uploaded_by_id"`

	UploadedBy *User `gorm:"foreignKey:UploadedByID" json:"uploaded_by,omitempty"`
}

// RequestStatusHistory records one workflow transition. Rows are never updated.
type RequestStatusHistory struct {
	Entry
	RequestID      string        `gorm:"type:uuid;not null;index" json:"request_id"`
	PreviousStatus RequestStatus `gorm:"size:30" json:"previous_status"`
	NewStatus      RequestStatus `gorm:"size:30;not null" json:"new_status"`
	ChangedByID    string        `gorm:"type:uuid;not null" json:"changed_by_id"`
	Notes          string        `json:"notes"`

	ChangedBy *User `gorm:"foreignKey:ChangedByID" json:"changed_by,omitempty"`
}

// TableName overrides the pluralized default.
func (RequestStatusHistory) TableName() string { return "request_status_history" }
