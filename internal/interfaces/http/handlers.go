package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/doc-approval/internal/application/service"
	"github.com/garyjia/doc-approval/internal/domain/entity"
	"github.com/garyjia/doc-approval/internal/domain/policy"
	"github.com/garyjia/doc-approval/internal/domain/workflow"
)

// actionRoutes maps action path segments to workflow triggers
var actionRoutes = map[string]workflow.Trigger{
	"submit":          workflow.TriggerSubmit,
	"approve-manager": workflow.TriggerApproveByManager,
	"reject-manager":  workflow.TriggerRejectByManager,
	"approve-finance": workflow.TriggerApproveByFinance,
	"reject-finance":  workflow.TriggerRejectByFinance,
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// DocumentResponse represents a document in API responses
type DocumentResponse struct {
	ID               int64                   `json:"id"`
	UserID           int64                   `json:"user_id"`
	OwnerName        string                  `json:"owner_name"`
	Title            string                  `json:"title"`
	Content          string                  `json:"content"`
	Amount           string                  `json:"amount"`
	FormattedAmount  string                  `json:"formatted_amount"`
	Status           string                  `json:"status"`
	StatusLabel      string                  `json:"status_label"`
	StatusColor      string                  `json:"status_color"`
	Version          int64                   `json:"version"`
	File             *service.AttachmentInfo `json:"file,omitempty"`
	Permissions      policy.Hints            `json:"permissions"`
	AvailableActions []string                `json:"available_actions"`
	CreatedAt        string                  `json:"created_at"`
	UpdatedAt        string                  `json:"updated_at"`
}

// HistoryResponse represents one audit trail entry in API responses
type HistoryResponse struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	UserName  string `json:"user_name"`
	Action    string `json:"action"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	Comment   string `json:"comment,omitempty"`
	CreatedAt string `json:"created_at"`
}

// DraftRequest is the JSON body of create and update. Multipart forms use the same field names.
type DraftRequest struct {
	Title      string `json:"title" form:"title"`
	Content    string `json:"content" form:"content"`
	Amount     string `json:"amount" form:"amount"`
	RemoveFile bool   `json:"remove_file" form:"remove_file"`
}

// TransitionRequest is the optional body of workflow actions
type TransitionRequest struct {
	Comment string `json:"comment" form:"comment"`
}

// ListRequest represents pagination query parameters
type ListRequest struct {
	Page    int `form:"page"`
	PerPage int `form:"per_page"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	if h.services.Health != nil {
		if err := h.services.Health(c.Request.Context()); err != nil {
			h.logger.Error("Health check failed", "error", err)
			response.Status = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, Response{
				Success: false,
				Data:    response,
				Error:   err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// Me handles GET /api/me
func (h *Handlers) Me(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Data: actorFrom(c)})
}

// ListDocuments handles GET /api/documents
func (h *Handlers) ListDocuments(c *gin.Context) {
	page, ok := h.bindPage(c)
	if !ok {
		return
	}
	actor := actorFrom(c)

	result, err := h.services.Documents.ListVisible(c.Request.Context(), actor, page)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writePage(c, actor, result)
}

// ManagerQueue handles GET /api/approvals/manager
func (h *Handlers) ManagerQueue(c *gin.Context) {
	page, ok := h.bindPage(c)
	if !ok {
		return
	}
	actor := actorFrom(c)

	result, err := h.services.Documents.PendingForManager(c.Request.Context(), actor, page)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writePage(c, actor, result)
}

// FinanceQueue handles GET /api/approvals/finance
func (h *Handlers) FinanceQueue(c *gin.Context) {
	page, ok := h.bindPage(c)
	if !ok {
		return
	}
	actor := actorFrom(c)

	result, err := h.services.Documents.PendingForFinance(c.Request.Context(), actor, page)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writePage(c, actor, result)
}

// GetDocument handles GET /api/documents/:id
func (h *Handlers) GetDocument(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	actor := actorFrom(c)

	doc, err := h.services.Documents.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.toDocumentResponse(c, actor, doc)})
}

// CreateDocument handles POST /api/documents (JSON or multipart with a "file" part)
func (h *Handlers) CreateDocument(c *gin.Context) {
	in, ok := h.bindDraft(c)
	if !ok {
		return
	}
	actor := actorFrom(c)

	doc, err := h.services.Documents.CreateDraft(c.Request.Context(), actor, in)
	closeUpload(in.Attachment)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: h.toDocumentResponse(c, actor, doc)})
}

// UpdateDocument handles PUT /api/documents/:id
func (h *Handlers) UpdateDocument(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	in, ok := h.bindDraft(c)
	if !ok {
		return
	}
	actor := actorFrom(c)

	doc, err := h.services.Documents.UpdateDraft(c.Request.Context(), actor, id, in)
	closeUpload(in.Attachment)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.toDocumentResponse(c, actor, doc)})
}

// DeleteDocument handles DELETE /api/documents/:id
func (h *Handlers) DeleteDocument(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.services.Documents.DeleteDraft(c.Request.Context(), actorFrom(c), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// DocumentHistory handles GET /api/documents/:id/history
func (h *Handlers) DocumentHistory(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	records, err := h.services.History.History(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]HistoryResponse, 0, len(records))
	for _, r := range records {
		out = append(out, HistoryResponse{
			ID:        r.ID,
			UserID:    r.UserID,
			UserName:  r.ActorName,
			Action:    string(r.Action),
			OldStatus: r.OldStatus.String(),
			NewStatus: r.NewStatus.String(),
			Comment:   r.Comment,
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

// DownloadFile handles GET /api/documents/:id/file
func (h *Handlers) DownloadFile(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	rc, name, err := h.services.Documents.OpenAttachment(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, "application/octet-stream", rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
	})
}

// Transition handles POST /api/documents/:id/<action>
func (h *Handlers) Transition(action workflow.Trigger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.pathID(c)
		if !ok {
			return
		}

		var req TransitionRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBind(&req); err != nil {
				c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
				return
			}
		}
		actor := actorFrom(c)

		doc, err := h.services.Approvals.Act(c.Request.Context(), actor, id, action, req.Comment)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, Response{Success: true, Data: h.toDocumentResponse(c, actor, doc)})
	}
}

// ExportRegister handles GET /api/reports/register.xlsx
func (h *Handlers) ExportRegister(c *gin.Context) {
	actor := actorFrom(c)

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", `attachment; filename="register.xlsx"`)
	if err := h.services.Register.Export(c.Request.Context(), actor, c.Writer); err != nil {
		c.Writer.Header().Del("Content-Disposition")
		h.writeError(c, err)
	}
}

// ListNotifications handles GET /api/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	unread, _ := strconv.ParseBool(c.Query("unread"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	feed, err := h.services.Notifications.List(c.Request.Context(), actorFrom(c), unread, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: feed})
}

// MarkNotificationRead handles POST /api/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.services.Notifications.MarkRead(c.Request.Context(), actorFrom(c), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

func (h *Handlers) bindPage(c *gin.Context) (entity.Pagination, bool) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
		})
		return entity.Pagination{}, false
	}
	return entity.Pagination{Page: req.Page, PerPage: req.PerPage}, true
}

func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid id",
		})
		return 0, false
	}
	return id, true
}

// bindDraft reads a DraftRequest and, for multipart requests, the optional "file" part
func (h *Handlers) bindDraft(c *gin.Context) (service.DraftInput, bool) {
	var req DraftRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return service.DraftInput{}, false
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "amount must be a decimal number"})
		return service.DraftInput{}, false
	}

	in := service.DraftInput{
		Title:            req.Title,
		Content:          req.Content,
		Amount:           amount,
		RemoveAttachment: req.RemoveFile,
	}

	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		header, err := c.FormFile("file")
		if err != nil && !errors.Is(err, http.ErrMissingFile) {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid file upload"})
			return service.DraftInput{}, false
		}
		if header != nil {
			f, err := header.Open()
			if err != nil {
				h.logger.Error("Failed to open upload", "error", err)
				c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid file upload"})
				return service.DraftInput{}, false
			}
			in.Attachment = &service.Upload{Filename: header.Filename, Content: f}
		}
	}
	return in, true
}

func closeUpload(up *service.Upload) {
	if up == nil {
		return
	}
	if closer, ok := up.Content.(interface{ Close() error }); ok {
		closer.Close()
	}
}

func (h *Handlers) writePage(c *gin.Context, actor *entity.User, page entity.Page[*entity.Document]) {
	items := make([]DocumentResponse, 0, len(page.Items))
	for _, doc := range page.Items {
		items = append(items, h.toDocumentResponse(c, actor, doc))
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: entity.Page[DocumentResponse]{
			Items:    items,
			Total:    page.Total,
			Page:     page.Page,
			PerPage:  page.PerPage,
			LastPage: page.LastPage,
		},
	})
}

func (h *Handlers) toDocumentResponse(c *gin.Context, actor *entity.User, doc *entity.Document) DocumentResponse {
	ctx := c.Request.Context()

	actions := []string{}
	for _, a := range h.services.Approvals.Actions(ctx, actor, doc) {
		actions = append(actions, a.String())
	}

	return DocumentResponse{
		ID:               doc.ID,
		UserID:           doc.UserID,
		OwnerName:        doc.OwnerName,
		Title:            doc.Title,
		Content:          doc.Content,
		Amount:           doc.Amount.StringFixed(2),
		FormattedAmount:  doc.FormattedAmount(),
		Status:           doc.Status.String(),
		StatusLabel:      doc.Status.Label(),
		StatusColor:      doc.Status.BadgeColor(),
		Version:          doc.Version,
		File:             h.services.Documents.Attachment(ctx, doc),
		Permissions:      policy.HintsFor(actor, doc),
		AvailableActions: actions,
		CreatedAt:        doc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        doc.UpdatedAt.Format(time.RFC3339),
	}
}

// writeError maps error kinds to status codes. Storage details stay in the log.
func (h *Handlers) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()

	switch {
	case errors.Is(err, entity.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, entity.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, entity.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, entity.ErrIllegalTransition):
		status = http.StatusConflict
	case errors.Is(err, entity.ErrCommentRequired):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrStorageFailure):
		status = http.StatusServiceUnavailable
		msg = "storage temporarily unavailable, please retry"
	default:
		msg = "internal error"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, Response{Success: false, Error: msg})
}
