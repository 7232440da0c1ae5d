package services

import (
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"compras/internal/logger"
	"compras/internal/models"
)

const maxIPLength = 45

type auditService struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db, log: logger.Named("audit")}
}

// Log appends one audit row. A failed write is logged and dropped so the
// mutation it describes still succeeds.
func (s *auditService) Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any) {
	entry := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    truncate(ipAddress, maxIPLength),
		Changes:      s.encodeChanges(action, changes),
	}

	if err := s.db.Create(entry).Error; err != nil {
		s.log.Errorw("failed to write audit entry",
			"error", err,
			"user_id", userID,
			"action", action,
			"resource", resourceType+"/"+resourceID,
		)
	}
}

// encodeChanges renders changes as JSON. Decimals serialize as strings, so
// amounts keep their exact value.
func (s *auditService) encodeChanges(action string, changes map[string]any) string {
	if len(changes) == 0 {
		return ""
	}
	data, err := json.Marshal(changes)
	if err != nil {
		s.log.Warnw("audit changes not serializable", "error", err, "action", action)
		return "{}"
	}
	return string(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
