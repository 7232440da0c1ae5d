// Package errors provides the error type returned by services and handlers.
// AppError carries a stable code and a client-safe message; internal causes
// are logged and never serialized.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is matches AppErrors by code so wrapped copies still compare equal to their sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized        = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials  = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrInvalidRefreshToken = &AppError{Code: "INVALID_REFRESH_TOKEN", Message: "Invalid or expired refresh token", StatusCode: http.StatusUnauthorized}
	ErrForbidden           = &AppError{Code: "FORBIDDEN", Message: "You do not have permission to perform this action", StatusCode: http.StatusForbidden}
	ErrAccountLocked       = &AppError{Code: "ACCOUNT_LOCKED", Message: "Account is temporarily locked", StatusCode: http.StatusLocked}
)

// Service-to-service errors.
var (
	ErrServiceKeyRejected = &AppError{Code: "SERVICE_KEY_REJECTED", Message: "X-API-Key does not match the dispatch key", StatusCode: http.StatusUnauthorized}
	ErrDispatchDisabled   = &AppError{Code: "DISPATCH_DISABLED", Message: "Remote dispatch is off until SERVICE_API_KEY is set", StatusCode: http.StatusServiceUnavailable}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrConflict       = &AppError{Code: "CONFLICT", Message: "Resource already exists", StatusCode: http.StatusConflict}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Directory errors.
var (
	ErrUserNotFound       = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail     = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
	ErrAreaNotFound       = &AppError{Code: "AREA_NOT_FOUND", Message: "Area not found", StatusCode: http.StatusNotFound}
	ErrLocationNotFound   = &AppError{Code: "LOCATION_NOT_FOUND", Message: "Location not found", StatusCode: http.StatusNotFound}
	ErrCostCenterNotFound = &AppError{Code: "COST_CENTER_NOT_FOUND", Message: "Cost center not found", StatusCode: http.StatusNotFound}
	ErrDuplicateCode      = &AppError{Code: "DUPLICATE_CODE", Message: "A record with this code already exists", StatusCode: http.StatusConflict}
)

// Catalog errors.
var (
	ErrCategoryNotFound = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
	ErrItemNotFound     = &AppError{Code: "ITEM_NOT_FOUND", Message: "Item not found", StatusCode: http.StatusNotFound}
	ErrItemCategory     = &AppError{Code: "ITEM_CATEGORY_MISMATCH", Message: "All items must belong to the request category", StatusCode: http.StatusBadRequest}
)

// Budget errors.
var (
	ErrBudgetNotFound     = &AppError{Code: "BUDGET_NOT_FOUND", Message: "Budget not found", StatusCode: http.StatusNotFound}
	ErrBudgetClosed       = &AppError{Code: "BUDGET_CLOSED", Message: "This budget is closed and cannot be modified", StatusCode: http.StatusForbidden}
	ErrDuplicateBudget    = &AppError{Code: "DUPLICATE_BUDGET", Message: "A budget already exists for this cost center, category and period", StatusCode: http.StatusConflict}
	ErrEmptySourcePeriod  = &AppError{Code: "EMPTY_SOURCE_PERIOD", Message: "No budgets found in the source period", StatusCode: http.StatusBadRequest}
	ErrInvalidSpreadsheet = &AppError{Code: "INVALID_SPREADSHEET", Message: "The file must be an .xlsx spreadsheet", StatusCode: http.StatusBadRequest}
)

// Purchase request errors.
var (
	ErrRequestNotFound     = &AppError{Code: "REQUEST_NOT_FOUND", Message: "Purchase request not found", StatusCode: http.StatusNotFound}
	ErrInvalidTransition   = &AppError{Code: "INVALID_TRANSITION", Message: "The request is not in a valid status for this action", StatusCode: http.StatusBadRequest}
	ErrTransitionForbidden = &AppError{Code: "TRANSITION_FORBIDDEN", Message: "You cannot perform this action on this request", StatusCode: http.StatusForbidden}
	ErrReasonRequired      = &AppError{Code: "REASON_REQUIRED", Message: "A rejection reason is required", StatusCode: http.StatusBadRequest}
	ErrRequestNotEditable  = &AppError{Code: "REQUEST_NOT_EDITABLE", Message: "Only draft requests can be edited", StatusCode: http.StatusBadRequest}
	ErrMissingCostCenter   = &AppError{Code: "MISSING_COST_CENTER", Message: "A cost center is required", StatusCode: http.StatusBadRequest}
)

// Attachment errors.
var (
	ErrAttachmentNotFound = &AppError{Code: "ATTACHMENT_NOT_FOUND", Message: "Attachment not found", StatusCode: http.StatusNotFound}
	ErrAttachmentType     = &AppError{Code: "ATTACHMENT_TYPE", Message: "Only PDF files are allowed", StatusCode: http.StatusBadRequest}
	ErrAttachmentTooLarge = &AppError{Code: "ATTACHMENT_TOO_LARGE", Message: "Attachments must be 10MB or smaller", StatusCode: http.StatusBadRequest}
	ErrAttachmentLimit    = &AppError{Code: "ATTACHMENT_LIMIT", Message: "A request can have at most 10 attachments", StatusCode: http.StatusBadRequest}
)
