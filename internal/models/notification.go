package models

import "time"

// NotificationType classifies an outgoing email.
type NotificationType string

const (
	NotificationSolicitudCreada NotificationType = "SOLICITUD_CREADA"
	NotificationAprobadaGerente NotificationType = "APROBADA_GERENTE"
	NotificationAprobadaFinal   NotificationType = "APROBADA_FINAL"
	NotificationRechazada       NotificationType = "RECHAZADA"
	NotificationComentario      NotificationType = "COMENTARIO"
	NotificationFueraOficina    NotificationType = "FUERA_OFICINA"
)

// EmailNotification is an outbox row: written with the change that caused it and
// delivered later by the dispatcher.
type EmailNotification struct {
	Base
	NotificationType NotificationType `gorm:"size:30;not null" json:"notification_type"`
	RecipientID      string           `gorm:"type:uuid;not null;index" json:"recipient_id"`
	RequestID        *string          `gorm:"type:uuid;index" json:"request_id,omitempty"`
	Subject          string           `gorm:"size:200;not null" json:"subject"`
	Message          string           `gorm:"not null" json:"message"`
	Sent             bool             `gorm:"default:false;index:idx_outbox_pending,priority:1" json:"sent"`
	SentAt           *time.Time       `json:"sent_at,omitempty"`
	Attempts         int              `gorm:"default:0" json:"attempts"`
	NextAttemptAt    time.Time        `gorm:"not null;index:idx_outbox_pending,priority:2" json:"next_attempt_at"`
	ErrorMessage     string           `json:"error_message"`

	Recipient *User            `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"`
	Request   *PurchaseRequest `gorm:"foreignKey:RequestID" json:"-"`
}
