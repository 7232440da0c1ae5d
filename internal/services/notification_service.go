package services

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "compras/internal/errors"
	"compras/internal/models"
	"compras/internal/money"
	"compras/internal/pagination"
)

const budgetWarning = "\n** ALERTA: Esta solicitud EXCEDE el presupuesto disponible **\n"

// NotificationOptions tunes outbox retries.
type NotificationOptions struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

// notificationService writes and drains the email outbox.
type notificationService struct {
	db   *gorm.DB
	opts NotificationOptions
}

// NewNotificationService creates a new NotificationServicer.
func NewNotificationService(db *gorm.DB, opts NotificationOptions) NotificationServicer {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Minute
	}
	return &notificationService{db: db, opts: opts}
}

// EnqueueStatusChange writes the outbox rows for the status request just entered.
// It must run inside the transaction that changed the status.
func (s *notificationService) EnqueueStatusChange(tx *gorm.DB, request *models.PurchaseRequest) error {
	var req models.PurchaseRequest
	err := tx.Preload("Requester.Area").
		Preload("Category").
		Preload("ManagerApprovedBy").
		Preload("FinalApprovedBy").
		Preload("RejectedBy").
		First(&req, "id = ?", request.ID).Error
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var (
		kind       models.NotificationType
		recipients []models.User
		subject    string
		message    string
	)

	switch req.Status {
	case models.StatusPendienteGerente:
		manager, err := areaManager(tx, req.Requester.AreaID)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if manager != nil && !manager.IsOutOfOffice {
			recipients = []models.User{*manager}
		} else if recipients, err = financeAndDirectors(tx); err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		kind = models.NotificationSolicitudCreada
		subject = "Nueva solicitud de compra: " + req.RequestNumber
		message = requestCreatedMessage(&req)

	case models.StatusAprobadaPorGerente:
		if recipients, err = financeAndDirectors(tx); err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		kind = models.NotificationAprobadaGerente
		subject = "Solicitud aprobada por gerente: " + req.RequestNumber
		message = managerApprovedMessage(&req)

	case models.StatusAprobada:
		recipients = []models.User{*req.Requester}
		manager, err := areaManager(tx, req.Requester.AreaID)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if manager != nil {
			recipients = append(recipients, *manager)
		}
		kind = models.NotificationAprobadaFinal
		subject = "Solicitud APROBADA: " + req.RequestNumber
		message = finalApprovedMessage(&req)

	case models.StatusRechazadaGerente, models.StatusRechazadaFinanzas:
		recipients = []models.User{*req.Requester}
		manager, err := areaManager(tx, req.Requester.AreaID)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if manager != nil && (req.RejectedByID == nil || manager.ID != *req.RejectedByID) {
			recipients = append(recipients, *manager)
		}
		kind = models.NotificationRechazada
		subject = "Solicitud RECHAZADA: " + req.RequestNumber
		message = rejectedMessage(&req)

	default:
		return nil
	}

	return s.enqueue(tx, kind, recipients, &req.ID, subject, message)
}

// EnqueueComment notifies everyone involved in the request except the commenter.
func (s *notificationService) EnqueueComment(tx *gorm.DB, request *models.PurchaseRequest, comment *models.RequestComment) error {
	var req models.PurchaseRequest
	if err := tx.Preload("Requester").First(&req, "id = ?", request.ID).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	var commenter models.User
	if err := tx.First(&commenter, "id = ?", comment.UserID).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	involved := map[string]bool{req.RequesterID: true}
	manager, err := areaManager(tx, req.Requester.AreaID)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if manager != nil {
		involved[manager.ID] = true
	}
	if req.FinalApprovedByID != nil {
		involved[*req.FinalApprovedByID] = true
	}
	if req.ManagerApprovedByID != nil {
		involved[*req.ManagerApprovedByID] = true
	}
	delete(involved, commenter.ID)
	if len(involved) == 0 {
		return nil
	}

	ids := make([]string, 0, len(involved))
	for id := range involved {
		ids = append(ids, id)
	}
	var recipients []models.User
	if err := tx.Where("id IN ? AND is_active = ?", ids, true).Find(&recipients).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	message := fmt.Sprintf("%s agrego un comentario a la solicitud.\n\n"+
		"Solicitud: %s\n"+
		"Comentario: %s\n",
		commenter.FullName(), req.RequestNumber, comment.Comment)

	return s.enqueue(tx, models.NotificationComentario, recipients, &req.ID,
		"Nuevo comentario en solicitud "+req.RequestNumber, message)
}

// EnqueueOutOfOffice tells finance and the director that a manager is away.
func (s *notificationService) EnqueueOutOfOffice(tx *gorm.DB, manager *models.User) error {
	recipients, err := financeAndDirectors(tx)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	area := ""
	if manager.AreaID != nil {
		var a models.Area
		if err := tx.First(&a, "id = ?", *manager.AreaID).Error; err == nil {
			area = a.Name.Label()
		}
	}

	name := manager.FullName()
	message := fmt.Sprintf("%s ha activado el modo \"Fuera de Oficina\".\n\n"+
		"Area: %s\n\n"+
		"Las solicitudes de su area seran enviadas directamente "+
		"a Finanzas y Direccion General para aprobacion.\n",
		name, area)

	return s.enqueue(tx, models.NotificationFueraOficina, recipients, nil, "Gerente Fuera de Oficina: "+name, message)
}

func (s *notificationService) enqueue(
	tx *gorm.DB,
	kind models.NotificationType,
	recipients []models.User,
	requestID *string,
	subject, message string,
) error {
	now := time.Now().UTC()
	seen := make(map[string]bool, len(recipients))
	rows := make([]models.EmailNotification, 0, len(recipients))
	for _, r := range recipients {
		if !r.IsActive || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		rows = append(rows, models.EmailNotification{
			NotificationType: kind,
			RecipientID:      r.ID,
			RequestID:        requestID,
			Subject:          subject,
			Message:          message,
			NextAttemptAt:    now,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	if err := tx.Create(&rows).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// Pending returns unsent notifications that are due and still have attempts left.
func (s *notificationService) Pending(limit int) ([]models.EmailNotification, error) {
	var rows []models.EmailNotification
	err := s.db.Preload("Recipient").
		Where("sent = ? AND attempts < ? AND next_attempt_at <= ?", false, s.opts.MaxAttempts, time.Now().UTC()).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rows, nil
}

// MarkSent flags a notification as delivered. Already-sent rows are left untouched.
func (s *notificationService) MarkSent(id string) error {
	err := s.db.Model(&models.EmailNotification{}).
		Where("id = ? AND sent = ?", id, false).
		Updates(map[string]any{
			"sent":          true,
			"sent_at":       time.Now().UTC(),
			"error_message": "",
		}).Error
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// MarkFailed records a delivery failure and schedules the next attempt.
func (s *notificationService) MarkFailed(id string, cause error) error {
	err := s.db.Model(&models.EmailNotification{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":        gorm.Expr("attempts + 1"),
			"error_message":   cause.Error(),
			"next_attempt_at": time.Now().UTC().Add(s.opts.RetryDelay),
		}).Error
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// ListUserNotifications returns the caller's notifications, newest first.
func (s *notificationService) ListUserNotifications(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.EmailNotification], error) {
	page.Defaults()

	base := s.db.Model(&models.EmailNotification{}).Where("recipient_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var rows []models.EmailNotification
	if err := base.Order("created_at DESC").Scopes(pagination.Paginate(page)).Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(rows, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func financeAndDirectors(db *gorm.DB) ([]models.User, error) {
	var users []models.User
	err := db.Where("role IN ? AND is_active = ?",
		[]models.Role{models.RoleFinanzas, models.RoleDireccionGeneral}, true).
		Order("created_at ASC").
		Find(&users).Error
	return users, err
}

func areaLabel(u *models.User) string {
	if u == nil || u.Area == nil {
		return ""
	}
	return u.Area.Name.Label()
}

func fullName(u *models.User) string {
	if u == nil {
		return ""
	}
	return u.FullName()
}

func requestCreatedMessage(req *models.PurchaseRequest) string {
	var b strings.Builder
	b.WriteString("Se ha creado una nueva solicitud de compra que requiere su aprobacion.\n\n")
	fmt.Fprintf(&b, "Numero: %s\n", req.RequestNumber)
	fmt.Fprintf(&b, "Solicitante: %s\n", fullName(req.Requester))
	fmt.Fprintf(&b, "Categoria: %s\n", req.Category.Name)
	fmt.Fprintf(&b, "Descripcion: %s\n", req.Description)
	fmt.Fprintf(&b, "Monto estimado: %s\n", money.FormatMXN(req.EstimatedAmount))
	fmt.Fprintf(&b, "Urgencia: %s\n", req.Urgency.Label())
	fmt.Fprintf(&b, "Fecha requerida: %s\n", req.RequiredDate.Format("2006-01-02"))
	if req.ExceedsBudget {
		b.WriteString(budgetWarning)
	}
	return b.String()
}

func managerApprovedMessage(req *models.PurchaseRequest) string {
	var b strings.Builder
	b.WriteString("La siguiente solicitud ha sido aprobada por el gerente y requiere su aprobacion final.\n\n")
	fmt.Fprintf(&b, "Numero: %s\n", req.RequestNumber)
	fmt.Fprintf(&b, "Solicitante: %s\n", fullName(req.Requester))
	fmt.Fprintf(&b, "Area: %s\n", areaLabel(req.Requester))
	fmt.Fprintf(&b, "Aprobado por: %s\n", fullName(req.ManagerApprovedBy))
	fmt.Fprintf(&b, "Categoria: %s\n", req.Category.Name)
	fmt.Fprintf(&b, "Descripcion: %s\n", req.Description)
	fmt.Fprintf(&b, "Monto estimado: %s\n", money.FormatMXN(req.EstimatedAmount))
	if req.ExceedsBudget {
		b.WriteString(budgetWarning)
		fmt.Fprintf(&b, "Justificacion de exceso: %s\n", req.BudgetExcessJustification)
	}
	return b.String()
}

func finalApprovedMessage(req *models.PurchaseRequest) string {
	return fmt.Sprintf("Su solicitud de compra ha sido aprobada y puede proceder con la compra.\n\n"+
		"Numero: %s\n"+
		"Descripcion: %s\n"+
		"Monto aprobado: %s\n"+
		"Aprobado por: %s\n",
		req.RequestNumber, req.Description, money.FormatMXN(req.EstimatedAmount), fullName(req.FinalApprovedBy))
}

func rejectedMessage(req *models.PurchaseRequest) string {
	return fmt.Sprintf("La solicitud de compra ha sido rechazada.\n\n"+
		"Numero: %s\n"+
		"Descripcion: %s\n"+
		"Rechazada por: %s\n"+
		"Motivo: %s\n",
		req.RequestNumber, req.Description, fullName(req.RejectedBy), req.RejectionReason)
}
