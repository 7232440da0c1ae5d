package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "compras/internal/errors"
	"compras/internal/pagination"
	"compras/internal/services"
)

// DispatchTrigger wakes the notification dispatcher for an immediate poll.
type DispatchTrigger interface {
	Trigger()
}

// NotificationHandler handles the notification outbox endpoints.
type NotificationHandler struct {
	notificationService services.NotificationServicer
	dispatcher          DispatchTrigger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notificationService services.NotificationServicer, dispatcher DispatchTrigger) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService, dispatcher: dispatcher}
}

// ListMine returns the caller's notifications, newest first.
// @Summary     List my notifications
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.EmailNotification] "Paginated notifications"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /notifications [get]
func (h *NotificationHandler) ListMine(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.notificationService.ListUserNotifications(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Dispatch asks the dispatcher to poll the outbox now instead of waiting for its ticker.
// @Summary     Trigger notification dispatch
// @Tags        internal
// @Produce     json
// @Param       X-API-Key header string true "Service API key"
// @Success     202 {object} map[string]string "Dispatch queued"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     503 {object} ErrorResponse "Service key not configured"
// @Router      /internal/notifications/dispatch [post]
func (h *NotificationHandler) Dispatch(c *gin.Context) {
	h.dispatcher.Trigger()
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}
