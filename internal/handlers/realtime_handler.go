package handlers

import (
	"github.com/gin-gonic/gin"

	apperrors "compras/internal/errors"
	"compras/internal/logger"
	"compras/internal/middleware"
	"compras/internal/realtime"
	"compras/internal/services"
)

// RealtimeHandler upgrades authenticated clients onto the status-change feed.
type RealtimeHandler struct {
	hub         *realtime.Hub
	userService services.UserServicer
}

// NewRealtimeHandler creates a new RealtimeHandler.
func NewRealtimeHandler(hub *realtime.Hub, userService services.UserServicer) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, userService: userService}
}

// Connect authenticates the access token from the query string and attaches
// the connection to the hub. Browsers cannot set headers on websocket upgrades.
// @Summary     Request status feed
// @Description Websocket stream of request.status_changed events visible to the caller
// @Tags        realtime
// @Param       token query string true "Access token"
// @Success     101 "Switching protocols"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /ws [get]
func (h *RealtimeHandler) Connect(c *gin.Context) {
	claims, err := middleware.ValidateAccessToken(c.Query("token"))
	if err != nil {
		respondWithError(c, apperrors.ErrUnauthorized)
		return
	}

	user, err := h.userService.GetUserByID(claims.UserID)
	if err != nil || !user.IsActive {
		respondWithError(c, apperrors.ErrUnauthorized)
		return
	}

	sub := realtime.Subscriber{UserID: user.ID, Role: user.Role, AreaID: user.AreaID}
	if err := h.hub.Serve(c.Writer, c.Request, sub); err != nil {
		// The upgrader has already written the handshake error.
		logger.Named("realtime").Warnw("websocket upgrade failed", "user_id", user.ID, "error", err)
	}
}
