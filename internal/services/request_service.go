package services

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "compras/internal/errors"
	"compras/internal/logger"
	"compras/internal/models"
	"compras/internal/money"
	"compras/internal/pagination"
	"compras/internal/period"
	"compras/internal/uuid"
	"compras/internal/workflow"
)

// MaxAttachmentSize is the largest attachment accepted, in bytes.
const MaxAttachmentSize = 10 << 20

const (
	maxAttachments      = 10
	numberRetries       = 3
	sniffLength         = 3072
	attachmentMIMEType  = "application/pdf"
	attachmentExtension = ".pdf"
)

var minEstimatedAmount = decimal.RequireFromString("0.01")

var requestOrdering = map[string]string{
	"created_at":       "purchase_requests.created_at",
	"estimated_amount": "purchase_requests.estimated_amount",
	"required_date":    "purchase_requests.required_date",
	"request_number":   "purchase_requests.request_number",
}

// requestService handles the purchase-request workflow.
type requestService struct {
	db            *gorm.DB
	loc           *time.Location
	budgets       BudgetServicer
	notifications NotificationServicer
	files         FileStore
	events        StatusPublisher
}

// NewRequestService creates a new RequestServicer. events may be nil.
func NewRequestService(
	db *gorm.DB,
	loc *time.Location,
	budgets BudgetServicer,
	notifications NotificationServicer,
	files FileStore,
	events StatusPublisher,
) RequestServicer {
	return &requestService{
		db:            db,
		loc:           loc,
		budgets:       budgets,
		notifications: notifications,
		files:         files,
		events:        events,
	}
}

func (s *requestService) publish(req *models.PurchaseRequest, from models.RequestStatus) {
	if s.events != nil {
		s.events.PublishStatusChange(req, from)
	}
}

// nextRequestNumber returns SOL-YYYYMM-NNNN where NNNN follows the count of
// requests created in the same month.
func (s *requestService) nextRequestNumber(tx *gorm.DB, now time.Time) (string, error) {
	m := period.Of(now, s.loc)
	start, end := m.Bounds(s.loc)
	var count int64
	err := tx.Unscoped().Model(&models.PurchaseRequest{}).
		Where("created_at >= ? AND created_at < ?", start, end).
		Count(&count).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SOL-%s-%04d", m.Compact(), count+1), nil
}

func (s *requestService) validateInput(actor *models.User, in *RequestInput) (string, []models.Item, error) {
	costCenterID := ""
	switch {
	case in.CostCenterID != nil && *in.CostCenterID != "":
		costCenterID = *in.CostCenterID
	case actor.CostCenterID != nil:
		costCenterID = *actor.CostCenterID
	default:
		return "", nil, apperrors.ErrMissingCostCenter
	}
	if in.EstimatedAmount.LessThan(minEstimatedAmount) {
		return "", nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "estimated_amount must be at least 0.01")
	}
	if !money.InRange(in.EstimatedAmount) {
		return "", nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "estimated_amount must not exceed "+money.MaxAmount.StringFixed(2))
	}
	if strings.TrimSpace(in.Description) == "" || strings.TrimSpace(in.Justification) == "" {
		return "", nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "description and justification are required")
	}
	if in.RequiredDate.IsZero() {
		return "", nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "required_date is required")
	}
	if in.Urgency == "" {
		in.Urgency = models.UrgencyNormal
	}

	if err := s.db.First(&models.CostCenter{}, "id = ?", costCenterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, apperrors.ErrCostCenterNotFound
		}
		return "", nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.db.First(&models.Category{}, "id = ?", in.CategoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, apperrors.ErrCategoryNotFound
		}
		return "", nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var items []models.Item
	if len(in.ItemIDs) > 0 {
		if err := s.db.Where("id IN ?", in.ItemIDs).Find(&items).Error; err != nil {
			return "", nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if len(items) != len(uniqueStrings(in.ItemIDs)) {
			return "", nil, apperrors.ErrItemNotFound
		}
		for _, item := range items {
			if item.CategoryID != in.CategoryID {
				return "", nil, apperrors.ErrItemCategory
			}
		}
	}
	return costCenterID, items, nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// CreateRequest stores a new draft, optionally submitting it in the same transaction.
func (s *requestService) CreateRequest(actorID string, in RequestInput) (*models.PurchaseRequest, error) {
	actor, err := loadActor(s.db, actorID)
	if err != nil {
		return nil, err
	}
	costCenterID, items, err := s.validateInput(actor, &in)
	if err != nil {
		return nil, err
	}

	var req *models.PurchaseRequest
	var from models.RequestStatus
	for attempt := 0; attempt < numberRetries; attempt++ {
		req = &models.PurchaseRequest{
			RequesterID:               actor.ID,
			Requester:                 actor,
			CostCenterID:              costCenterID,
			CategoryID:                in.CategoryID,
			Items:                     items,
			Description:               strings.TrimSpace(in.Description),
			SuggestedSupplier:         strings.TrimSpace(in.SuggestedSupplier),
			EstimatedAmount:           in.EstimatedAmount.Round(2),
			RequiredDate:              in.RequiredDate,
			Justification:             strings.TrimSpace(in.Justification),
			BudgetExcessJustification: strings.TrimSpace(in.BudgetExcessJustification),
			Urgency:                   in.Urgency,
			Status:                    models.StatusBorrador,
		}
		err = s.db.Transaction(func(tx *gorm.DB) error {
			now := time.Now().UTC()
			number, err := s.nextRequestNumber(tx, now)
			if err != nil {
				return err
			}
			req.RequestNumber = number
			req.CreatedAt = now

			exceeds, err := s.budgets.CheckBudgetExcess(tx, req)
			if err != nil {
				return err
			}
			req.ExceedsBudget = exceeds

			if err := tx.Omit("Requester", "Items.*").Create(req).Error; err != nil {
				return err
			}
			if err := tx.Create(&models.RequestStatusHistory{
				RequestID:   req.ID,
				NewStatus:   models.StatusBorrador,
				ChangedByID: actor.ID,
				Notes:       "Solicitud creada.",
			}).Error; err != nil {
				return err
			}

			if in.Submit {
				tr, err := s.applyTransition(tx, actor, req, workflow.Submit, workflow.Input{})
				if err != nil {
					return err
				}
				from = tr.From
			}
			return nil
		})
		if err == nil || !isDuplicate(err) {
			break
		}
		logger.Get().Warnw("request number collision, retrying", "attempt", attempt+1)
	}
	if err != nil {
		return nil, mapRequestError(err)
	}

	loaded, err := s.load(s.db, req.ID)
	if err != nil {
		return nil, err
	}
	if in.Submit {
		s.publish(loaded, from)
	}
	return loaded, nil
}

// UpdateRequest edits a draft. Only its requester may do so.
func (s *requestService) UpdateRequest(actorID, requestID string, in RequestInput) (*models.PurchaseRequest, error) {
	actor, err := loadActor(s.db, actorID)
	if err != nil {
		return nil, err
	}
	req, err := s.visible(actor, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != actor.ID {
		return nil, apperrors.ErrForbidden
	}
	if req.Status != models.StatusBorrador {
		return nil, apperrors.ErrRequestNotEditable
	}
	if in.CostCenterID == nil || *in.CostCenterID == "" {
		in.CostCenterID = &req.CostCenterID
	}
	costCenterID, items, err := s.validateInput(actor, &in)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		req.CostCenterID = costCenterID
		req.CategoryID = in.CategoryID
		req.Description = strings.TrimSpace(in.Description)
		req.SuggestedSupplier = strings.TrimSpace(in.SuggestedSupplier)
		req.EstimatedAmount = in.EstimatedAmount.Round(2)
		req.RequiredDate = in.RequiredDate
		req.Justification = strings.TrimSpace(in.Justification)
		req.BudgetExcessJustification = strings.TrimSpace(in.BudgetExcessJustification)
		req.Urgency = in.Urgency

		res := tx.Model(req).Where("status = ?", models.StatusBorrador).
			Select("cost_center_id", "category_id", "description", "suggested_supplier", "estimated_amount",
				"required_date", "justification", "budget_excess_justification", "urgency", "updated_at").
			Updates(req)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrRequestNotEditable
		}
		return tx.Model(req).Omit("Items.*").Association("Items").Replace(items)
	})
	if err != nil {
		return nil, mapRequestError(err)
	}
	return s.load(s.db, req.ID)
}

func (s *requestService) filtered(actor *models.User, filter RequestFilter) *gorm.DB {
	q := scopeRequests(s.db.Model(&models.PurchaseRequest{}), actor)
	if filter.Status != nil {
		q = q.Where("purchase_requests.status = ?", *filter.Status)
	}
	if filter.Urgency != nil {
		q = q.Where("purchase_requests.urgency = ?", *filter.Urgency)
	}
	if filter.CategoryID != nil {
		q = q.Where("purchase_requests.category_id = ?", *filter.CategoryID)
	}
	if filter.CostCenterID != nil {
		q = q.Where("purchase_requests.cost_center_id = ?", *filter.CostCenterID)
	}
	if filter.RequesterID != nil {
		q = q.Where("purchase_requests.requester_id = ?", *filter.RequesterID)
	}
	if filter.ExceedsBudget != nil {
		q = q.Where("purchase_requests.exceeds_budget = ?", *filter.ExceedsBudget)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		q = q.Where("(LOWER(purchase_requests.request_number) LIKE ? OR LOWER(purchase_requests.description) LIKE ? "+
			"OR LOWER(purchase_requests.suggested_supplier) LIKE ? OR LOWER(purchase_requests.actual_supplier) LIKE ?)",
			like, like, like, like)
	}
	return q
}

// ListRequests returns a page of the requests the actor may see.
func (s *requestService) ListRequests(actorID string, page pagination.PageRequest, filter RequestFilter) (*pagination.PageResponse[models.PurchaseRequest], error) {
	actor, err := loadActor(s.db, actorID)
	if err != nil {
		return nil, err
	}
	page.Defaults()

	base := s.filtered(actor, filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var requests []models.PurchaseRequest
	err = base.Preload("Requester").Preload("CostCenter").Preload("Category").
		Order(page.OrderClause(requestOrdering, "purchase_requests.created_at DESC")).
		Scopes(pagination.Paginate(page)).
		Find(&requests).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(requests, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// visible loads a request with its requester if actor may see it.
func (s *requestService) visible(actor *models.User, requestID string) (*models.PurchaseRequest, error) {
	var req models.PurchaseRequest
	err := scopeRequests(s.db.Model(&models.PurchaseRequest{}), actor).
		Preload("Requester").
		Where("purchase_requests.id = ?", requestID).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRequestNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &req, nil
}

func (s *requestService) load(db *gorm.DB, id string) (*models.PurchaseRequest, error) {
	var req models.PurchaseRequest
	err := db.
		Preload("Requester").Preload("Requester.Area").
		Preload("CostCenter").Preload("Category").Preload("Items").
		Preload("ManagerApprovedBy").Preload("FinalApprovedBy").Preload("RejectedBy").
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Comments.User").
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("History.ChangedBy").
		First(&req, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRequestNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &req, nil
}

// GetRequest returns a visible request with its related records.
func (s *requestService) GetRequest(actorID, requestID string) (*models.PurchaseRequest, error) {
	actor, err := loadActor(s.db, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.visible(actor, requestID); err != nil {
		return nil, err
	}
	return s.load(s.db, requestID)
}

// Transition runs a workflow action on a visible request.
func (s *requestService) Transition(actorID, requestID string, action workflow.Action, in workflow.Input) (*models.PurchaseRequest, error) {
	actor, err := loadActor(s.db, actorID)
	if err != nil {
		return nil, err
	}
	req, err := s.visible(actor, requestID)
	if err != nil {
		return nil, err
	}

	var tr *workflow.Transition
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		tr, err = s.applyTransition(tx, actor, req, action, in)
		return err
	})
	if err != nil {
		return nil, mapRequestError(err)
	}

	loaded, err := s.load(s.db, req.ID)
	if err != nil {
		return nil, err
	}
	s.publish(loaded, tr.From)
	return loaded, nil
}

// applyTransition moves req along the workflow inside tx: a guarded status update,
// one history row and the outbox rows for the new status.
func (s *requestService) applyTransition(tx *gorm.DB, actor *models.User, req *models.PurchaseRequest, action workflow.Action, in workflow.Input) (*workflow.Transition, error) {
	tr, err := workflow.Apply(action, workflowActor(actor), req, in, time.Now())
	if err != nil {
		return nil, err
	}

	cols := []string{
		"status", "exceeds_budget", "updated_at",
		"manager_approved_by_id", "manager_approved_at",
		"final_approved_by_id", "final_approved_at",
		"rejection_reason", "rejected_by_id", "rejected_at",
		"purchase_date", "actual_supplier", "actual_amount", "invoice_number",
	}
	if action == workflow.Submit {
		exceeds, err := s.budgets.CheckBudgetExcess(tx, req)
		if err != nil {
			return nil, err
		}
		req.ExceedsBudget = exceeds
	}

	res := tx.Model(req).Where("status = ?", tr.From).Select(cols).Updates(req)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.ErrInvalidTransition
	}

	if err := tx.Create(&models.RequestStatusHistory{
		RequestID:      req.ID,
		PreviousStatus: tr.From,
		NewStatus:      tr.To,
		ChangedByID:    actor.ID,
		Notes:          tr.Notes,
	}).Error; err != nil {
		return nil, err
	}

	if err := s.notifications.EnqueueStatusChange(tx, req); err != nil {
		return nil, err
	}
	return tr, nil
}

// mapRequestError turns workflow and storage failures into AppErrors.
func mapRequestError(err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, workflow.ErrReasonRequired):
		return apperrors.ErrReasonRequired
	case errors.Is(err, workflow.ErrInvalidAmount):
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "actual_amount must be between 0 and "+money.MaxAmount.StringFixed(2))
	case errors.Is(err, workflow.ErrInvalidState):
		return apperrors.ErrInvalidTransition
	case errors.Is(err, workflow.ErrNotPermitted):
		return apperrors.ErrTransitionForbidden
	case errors.Is(err, workflow.ErrUnknownAction):
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown action")
	case isDuplicate(err):
		return apperrors.ErrConflict
	default:
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
}

// AvailableActions lists the workflow actions actor may run on request now.
func (s *requestService) AvailableActions(actorID string, request *models.PurchaseRequest) ([]workflow.Action, error) {
	actor, err := loadActor(s.db, actorID)
	if err != nil {
		return nil, err
	}
	actions := workflow.Allowed(workflowActor(actor), request)
	if actions == nil {
		actions = []workflow.Action{}
	}
	return actions, nil
}

// ListComments returns the comments of a visible request, oldest first.
func (s *requestService) ListComments(actorID, requestID string) ([]models.RequestComment, error) {
	actor, err := loadActor(s.db, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.visible(actor, requestID); err != nil {
		return nil, err
	}
	var comments []models.RequestComment
	err = s.db.Preload("User").Where("request_id = ?", requestID).Order("created_at ASC").Find(&comments).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return comments, nil
}

// AddComment posts a comment as the actor and notifies the other participants.
func (s *requestService) AddComment(actorID, requestID, comment string) (*models.RequestComment, error) {
	actor, err := loadActor(s.db, actorID)
	if err != nil {
		return nil, err
	}
	req, err := s.visible(actor, requestID)
	if err != nil {
		return nil, err
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "comment is required")
	}

	c := &models.RequestComment{RequestID: req.ID, UserID: actor.ID, Comment: comment}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		return s.notifications.EnqueueComment(tx, req, c)
	})
	if err != nil {
		return nil, mapRequestError(err)
	}
	c.User = actor
	return c, nil
}

// ListAttachments returns the attachments of a visible request.
func (s *requestService) ListAttachments(actorID, requestID string) ([]models.RequestAttachment, error) {
	actor, err := loadActor(s.db, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.visible(actor, requestID); err != nil {
		return nil, err
	}
	var attachments []models.RequestAttachment
	err = s.db.Preload("UploadedBy").Where("request_id = ?", requestID).Order("created_at ASC").Find(&attachments).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return attachments, nil
}

// AddAttachment stores a PDF for a visible request. size is the client-declared
// length; the stored length is enforced independently.
func (s *requestService) AddAttachment(actorID, requestID, filename string, size int64, r io.Reader) (*models.RequestAttachment, error) {
	actor, err := loadActor(s.db, actorID)
	if err != nil {
		return nil, err
	}
	req, err := s.visible(actor, requestID)
	if err != nil {
		return nil, err
	}

	filename = path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if !strings.EqualFold(path.Ext(filename), attachmentExtension) {
		return nil, apperrors.ErrAttachmentType
	}
	if size > MaxAttachmentSize {
		return nil, apperrors.ErrAttachmentTooLarge
	}

	// Cheap early rejection; the insert below rechecks under the row lock.
	var count int64
	if err := s.db.Model(&models.RequestAttachment{}).Where("request_id = ?", req.ID).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count >= maxAttachments {
		return nil, apperrors.ErrAttachmentLimit
	}

	br := bufio.NewReaderSize(r, sniffLength)
	head, err := br.Peek(sniffLength)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, err)
	}
	if !mimetype.Detect(head).Is(attachmentMIMEType) {
		return nil, apperrors.ErrAttachmentType
	}

	key := path.Join("requests", req.ID, uuid.New()+attachmentExtension)
	written, err := s.files.Save(key, io.LimitReader(br, MaxAttachmentSize+1))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if written > MaxAttachmentSize {
		s.removeFile(key)
		return nil, apperrors.ErrAttachmentTooLarge
	}

	attachment := &models.RequestAttachment{
		RequestID:        req.ID,
		OriginalFilename: filename,
		StoredPath:       key,
		ContentType:      attachmentMIMEType,
		FileSize:         written,
		UploadedByID:     actor.ID,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Touching the request row locks it, so concurrent uploads count in turn.
		if err := tx.Model(&models.PurchaseRequest{}).Where("id = ?", req.ID).
			Update("updated_at", time.Now()).Error; err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.RequestAttachment{}).Where("request_id = ?", req.ID).Count(&count).Error; err != nil {
			return err
		}
		if count >= maxAttachments {
			return apperrors.ErrAttachmentLimit
		}
		return tx.Create(attachment).Error
	})
	if err != nil {
		s.removeFile(key)
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	attachment.UploadedBy = actor
	return attachment, nil
}

func (s *requestService) removeFile(key string) {
	if err := s.files.Remove(key); err != nil {
		logger.Get().Errorw("failed to remove attachment file", "key", key, "error", err)
	}
}

// OpenAttachment returns an attachment of a visible request and a reader for
// its contents. The caller closes the reader.
func (s *requestService) OpenAttachment(actorID, requestID, attachmentID string) (*models.RequestAttachment, io.ReadCloser, error) {
	actor, err := loadActor(s.db, actorID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.visible(actor, requestID); err != nil {
		return nil, nil, err
	}

	var attachment models.RequestAttachment
	err = s.db.Where("id = ? AND request_id = ?", attachmentID, requestID).First(&attachment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.ErrAttachmentNotFound
		}
		return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	rc, err := s.files.Open(attachment.StoredPath)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrAttachmentNotFound, err)
	}
	return &attachment, rc, nil
}

// ListHistory returns the status history of a visible request, oldest first.
func (s *requestService) ListHistory(actorID, requestID string) ([]models.RequestStatusHistory, error) {
	actor, err := loadActor(s.db, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.visible(actor, requestID); err != nil {
		return nil, err
	}
	var history []models.RequestStatusHistory
	err = s.db.Preload("ChangedBy").Where("request_id = ?", requestID).Order("created_at ASC, id ASC").Find(&history).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return history, nil
}
