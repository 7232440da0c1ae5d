package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "compras/internal/errors"
	"compras/internal/models"
	"compras/internal/pagination"
	"compras/internal/services"
	"compras/internal/workflow"
)

const dateLayout = "2006-01-02"

// maxUploadBytes leaves room for multipart framing around one attachment.
const maxUploadBytes = services.MaxAttachmentSize + 1<<20

// RequestHandler handles purchase requests and their workflow.
type RequestHandler struct {
	requestService services.RequestServicer
	auditService   services.AuditServicer
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(requestService services.RequestServicer, auditService services.AuditServicer) *RequestHandler {
	return &RequestHandler{requestService: requestService, auditService: auditService}
}

// PurchaseRequestPayload represents the request body for creating or editing a draft.
type PurchaseRequestPayload struct {
	CostCenterID              *string          `json:"cost_center_id" binding:"omitempty,uuid"`
	CategoryID                string           `json:"category_id" binding:"required,uuid"`
	ItemIDs                   []string         `json:"item_ids" binding:"omitempty,dive,uuid"`
	Description               string           `json:"description" binding:"required,max=5000"`
	SuggestedSupplier         string           `json:"suggested_supplier" binding:"max=200"`
	EstimatedAmount           *decimal.Decimal `json:"estimated_amount" binding:"required" swaggertype:"string"`
	RequiredDate              string           `json:"required_date" binding:"required,datetime=2006-01-02"`
	Justification             string           `json:"justification" binding:"required,max=5000"`
	BudgetExcessJustification string           `json:"budget_excess_justification" binding:"max=5000"`
	Urgency                   models.Urgency   `json:"urgency" binding:"omitempty,urgency"`
	Submit                    bool             `json:"submit"`
}

func (p PurchaseRequestPayload) input() (services.RequestInput, error) {
	required, err := time.Parse(dateLayout, p.RequiredDate)
	if err != nil {
		return services.RequestInput{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "required_date must be YYYY-MM-DD")
	}
	return services.RequestInput{
		CostCenterID:              p.CostCenterID,
		CategoryID:                p.CategoryID,
		ItemIDs:                   p.ItemIDs,
		Description:               p.Description,
		SuggestedSupplier:         p.SuggestedSupplier,
		EstimatedAmount:           *p.EstimatedAmount,
		RequiredDate:              required,
		Justification:             p.Justification,
		BudgetExcessJustification: p.BudgetExcessJustification,
		Urgency:                   p.Urgency,
		Submit:                    p.Submit,
	}, nil
}

// TransitionRequest represents the optional body of a workflow action.
type TransitionRequest struct {
	Notes          string           `json:"notes" binding:"max=2000"`
	Reason         string           `json:"reason" binding:"max=2000"`
	PurchaseDate   string           `json:"purchase_date" binding:"omitempty,datetime=2006-01-02"`
	ActualSupplier string           `json:"actual_supplier" binding:"max=200"`
	ActualAmount   *decimal.Decimal `json:"actual_amount" swaggertype:"string"`
	InvoiceNumber  string           `json:"invoice_number" binding:"max=100"`
}

func (t TransitionRequest) input() (workflow.Input, error) {
	in := workflow.Input{
		Notes:          t.Notes,
		Reason:         t.Reason,
		ActualSupplier: t.ActualSupplier,
		ActualAmount:   t.ActualAmount,
		InvoiceNumber:  t.InvoiceNumber,
	}
	if t.PurchaseDate != "" {
		d, err := time.Parse(dateLayout, t.PurchaseDate)
		if err != nil {
			return in, apperrors.WithMessage(apperrors.ErrInvalidInput, "purchase_date must be YYYY-MM-DD")
		}
		in.PurchaseDate = &d
	}
	return in, nil
}

// CommentRequest represents a new comment.
type CommentRequest struct {
	Comment string `json:"comment" binding:"required,min=1,max=5000"`
}

// RequestResponse is a request together with the actions the caller may run on it.
type RequestResponse struct {
	Request          *models.PurchaseRequest `json:"request"`
	AvailableActions []workflow.Action       `json:"available_actions"`
}

func (h *RequestHandler) respond(c *gin.Context, status int, userID string, req *models.PurchaseRequest) {
	actions, err := h.requestService.AvailableActions(userID, req)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if actions == nil {
		actions = []workflow.Action{}
	}
	c.JSON(status, RequestResponse{Request: req, AvailableActions: actions})
}

// CreateRequest stores a new draft, submitting it when "submit" is true.
// @Summary     Create a purchase request
// @Tags        requests
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body PurchaseRequestPayload true "Request details"
// @Success     201 {object} RequestResponse "Request created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Cost center, category or item not found"
// @Router      /requests/purchase-requests [post]
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var payload PurchaseRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	in, err := payload.input()
	if err != nil {
		respondWithError(c, err)
		return
	}

	req, err := h.requestService.CreateRequest(userID, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_REQUEST", "purchase_request", req.ID, c.ClientIP(),
		map[string]any{"request_number": req.RequestNumber, "status": req.Status})

	h.respond(c, http.StatusCreated, userID, req)
}

// ListRequests returns the requests visible to the caller.
// @Summary     List purchase requests
// @Tags        requests
// @Produce     json
// @Security    BearerAuth
// @Param       status         query string false "Filter by status"
// @Param       urgency        query string false "Filter by urgency"
// @Param       category       query string false "Filter by category ID"
// @Param       cost_center    query string false "Filter by cost center ID"
// @Param       requester      query string false "Filter by requester ID"
// @Param       exceeds_budget query bool   false "Filter by budget excess"
// @Param       search         query string false "Search number, description and suppliers"
// @Param       page           query int    false "Page number (default 1)"
// @Param       page_size      query int    false "Items per page (default 20, max 100)"
// @Param       ordering       query string false "created_at, estimated_amount, required_date, request_number (prefix - for descending)"
// @Success     200 {object} pagination.PageResponse[models.PurchaseRequest] "Paginated requests"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /requests/purchase-requests [get]
func (h *RequestHandler) ListRequests(c *gin.Context) {
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

	filter := services.RequestFilter{Search: c.Query("search")}
	if v := c.Query("status"); v != "" {
		status := models.RequestStatus(v)
		if !status.Valid() {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid status"))
			return
		}
		filter.Status = &status
	}
	if v := c.Query("urgency"); v != "" {
		urgency := models.Urgency(v)
		if !urgency.Valid() {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid urgency"))
			return
		}
		filter.Urgency = &urgency
	}
	if filter.CategoryID, err = queryID(c, "category"); err != nil {
		respondWithError(c, err)
		return
	}
	if filter.CostCenterID, err = queryID(c, "cost_center"); err != nil {
		respondWithError(c, err)
		return
	}
	if filter.RequesterID, err = queryID(c, "requester"); err != nil {
		respondWithError(c, err)
		return
	}
	if filter.ExceedsBudget, err = queryBool(c, "exceeds_budget"); err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.requestService.ListRequests(userID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetRequest returns a request with its available actions.
// @Summary     Get a purchase request
// @Tags        requests
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Request ID"
// @Success     200 {object} RequestResponse "Request"
// @Failure     404 {object} ErrorResponse "Request not found"
// @Router      /requests/purchase-requests/{id} [get]
func (h *RequestHandler) GetRequest(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	req, err := h.requestService.GetRequest(userID, id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.respond(c, http.StatusOK, userID, req)
}

// UpdateRequest edits a draft.
// @Summary     Update a draft purchase request
// @Tags        requests
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                 true "Request ID"
// @Param       request body PurchaseRequestPayload true "Request details"
// @Success     200 {object} RequestResponse "Updated request"
// @Failure     400 {object} ErrorResponse "Invalid input or not a draft"
// @Failure     403 {object} ErrorResponse "Not the requester"
// @Failure     404 {object} ErrorResponse "Request not found"
// @Router      /requests/purchase-requests/{id} [put]
func (h *RequestHandler) UpdateRequest(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var payload PurchaseRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	in, err := payload.input()
	if err != nil {
		respondWithError(c, err)
		return
	}

	req, err := h.requestService.UpdateRequest(userID, id, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_REQUEST", "purchase_request", id, c.ClientIP(), nil)
	h.respond(c, http.StatusOK, userID, req)
}

// Transition runs a workflow action named by the last path segment.
// @Summary     Run a workflow action
// @Description Actions: submit, approve_manager, approve_final, reject (reason required), cancel, mark_in_process, mark_purchased, mark_completed
// @Tags        requests
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true  "Request ID"
// @Param       action  path string            true  "Workflow action"
// @Param       request body TransitionRequest false "Notes, rejection reason or purchase details"
// @Success     200 {object} RequestResponse "Request after the transition"
// @Failure     400 {object} ErrorResponse "Invalid transition or missing reason"
// @Failure     403 {object} ErrorResponse "Action not permitted"
// @Failure     404 {object} ErrorResponse "Request not found"
// @Router      /requests/purchase-requests/{id}/{action} [post]
func (h *RequestHandler) Transition(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	action, ok := workflow.ParseAction(c.Param("action"))
	if !ok {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrNotFound, "Unknown action "+strconv.Quote(c.Param("action"))))
		return
	}

	var body TransitionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}
	in, err := body.input()
	if err != nil {
		respondWithError(c, err)
		return
	}

	req, err := h.requestService.Transition(userID, id, action, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	changes := map[string]any{"action": action, "status": req.Status}
	if body.Reason != "" {
		changes["reason"] = body.Reason
	}
	h.auditService.Log(userID, "REQUEST_"+strings.ToUpper(string(action)), "purchase_request", id, c.ClientIP(), changes)

	h.respond(c, http.StatusOK, userID, req)
}

// ListComments returns a request's comments.
// @Summary     List comments
// @Tags        requests
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Request ID"
// @Success     200 {array}  models.RequestComment "Comments, oldest first"
// @Failure     404 {object} ErrorResponse "Request not found"
// @Router      /requests/purchase-requests/{id}/comments [get]
func (h *RequestHandler) ListComments(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	comments, err := h.requestService.ListComments(userID, id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

// AddComment posts a comment and notifies the people involved.
// @Summary     Add a comment
// @Tags        requests
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string         true "Request ID"
// @Param       request body CommentRequest true "Comment"
// @Success     201 {object} models.RequestComment "Comment created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Request not found"
// @Router      /requests/purchase-requests/{id}/comments [post]
func (h *RequestHandler) AddComment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	comment, err := h.requestService.AddComment(userID, id, req.Comment)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

// ListAttachments returns a request's attachments.
// @Summary     List attachments
// @Tags        requests
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Request ID"
// @Success     200 {array}  models.RequestAttachment "Attachments"
// @Failure     404 {object} ErrorResponse "Request not found"
// @Router      /requests/purchase-requests/{id}/attachments [get]
func (h *RequestHandler) ListAttachments(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	attachments, err := h.requestService.ListAttachments(userID, id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attachments": attachments})
}

// UploadAttachment stores a PDF against a request.
// @Summary     Upload an attachment
// @Description PDF only, 10MB at most, 10 per request
// @Tags        requests
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       id   path     string true "Request ID"
// @Param       file formData file   true "PDF file"
// @Success     201 {object} models.RequestAttachment "Attachment stored"
// @Failure     400 {object} ErrorResponse "Wrong type, too large or limit reached"
// @Failure     404 {object} ErrorResponse "Request not found"
// @Router      /requests/purchase-requests/{id}/attachments [post]
func (h *RequestHandler) UploadAttachment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if c.Request.ContentLength > maxUploadBytes {
		respondWithError(c, apperrors.ErrAttachmentTooLarge)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(c, apperrors.ErrAttachmentTooLarge)
			return
		}
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	defer file.Close()

	attachment, err := h.requestService.AddAttachment(userID, id, header.Filename, header.Size, file)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPLOAD_ATTACHMENT", "purchase_request", id, c.ClientIP(),
		map[string]any{"attachment_id": attachment.ID, "filename": attachment.OriginalFilename})

	c.JSON(http.StatusCreated, gin.H{"attachment": attachment})
}

// DownloadAttachment streams an attachment's contents.
// @Summary     Download an attachment
// @Tags        requests
// @Produce     application/pdf
// @Security    BearerAuth
// @Param       id           path string true "Request ID"
// @Param       attachmentId path string true "Attachment ID"
// @Success     200 {file} file "PDF"
// @Failure     404 {object} ErrorResponse "Request or attachment not found"
// @Router      /requests/purchase-requests/{id}/attachments/{attachmentId} [get]
func (h *RequestHandler) DownloadAttachment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	attachmentID, err := parsePathID(c, "attachmentId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	attachment, rc, err := h.requestService.OpenAttachment(userID, id, attachmentID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, attachment.FileSize, attachment.ContentType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", attachment.OriginalFilename),
	})
}

// ListHistory returns a request's status history.
// @Summary     Get status history
// @Tags        requests
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Request ID"
// @Success     200 {array}  models.RequestStatusHistory "Transitions, oldest first"
// @Failure     404 {object} ErrorResponse "Request not found"
// @Router      /requests/purchase-requests/{id}/history [get]
func (h *RequestHandler) ListHistory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	history, err := h.requestService.ListHistory(userID, id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}
