package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/garyjia/doc-approval/internal/application/dispatcher"
	"github.com/garyjia/doc-approval/internal/application/port"
	"github.com/garyjia/doc-approval/internal/domain/entity"
	"github.com/garyjia/doc-approval/internal/domain/event"
	"github.com/garyjia/doc-approval/internal/domain/policy"
	"github.com/garyjia/doc-approval/internal/domain/workflow"
	"github.com/garyjia/doc-approval/pkg/utils"
	"github.com/shopspring/decimal"
)

// Upload is an attachment supplied with a draft
type Upload struct {
	Filename string
	Content  io.Reader
}

// DraftInput carries the editable fields of a draft
type DraftInput struct {
	Title      string
	Content    string
	Amount     decimal.Decimal
	Attachment *Upload

	// RemoveAttachment drops the current attachment on update. Ignored when
	// Attachment is set, which replaces it.
	RemoveAttachment bool
}

// AttachmentInfo describes a stored attachment
type AttachmentInfo struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	SizeLabel string `json:"size_label"`
}

// DocumentService manages drafts and document queries
type DocumentService interface {
	CreateDraft(ctx context.Context, owner *entity.User, in DraftInput) (*entity.Document, error)
	UpdateDraft(ctx context.Context, actor *entity.User, id int64, in DraftInput) (*entity.Document, error)
	DeleteDraft(ctx context.Context, actor *entity.User, id int64) error

	Get(ctx context.Context, actor *entity.User, id int64) (*entity.Document, error)
	ListVisible(ctx context.Context, actor *entity.User, page entity.Pagination) (entity.Page[*entity.Document], error)
	PendingForManager(ctx context.Context, actor *entity.User, page entity.Pagination) (entity.Page[*entity.Document], error)
	PendingForFinance(ctx context.Context, actor *entity.User, page entity.Pagination) (entity.Page[*entity.Document], error)

	OpenAttachment(ctx context.Context, actor *entity.User, id int64) (io.ReadCloser, string, error)
	Attachment(ctx context.Context, doc *entity.Document) *AttachmentInfo
}

type documentServiceImpl struct {
	docs       port.DocumentRepository
	files      port.AttachmentStore
	txManager  port.TransactionManager
	dispatcher dispatcher.Dispatcher
	logger     Logger
}

// NewDocumentService creates a new DocumentService. d may be nil.
func NewDocumentService(
	docs port.DocumentRepository,
	files port.AttachmentStore,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	logger Logger,
) DocumentService {
	return &documentServiceImpl{
		docs:       docs,
		files:      files,
		txManager:  txManager,
		dispatcher: d,
		logger:     orNop(logger),
	}
}

// CreateDraft stores a new draft owned by owner
func (s *documentServiceImpl) CreateDraft(ctx context.Context, owner *entity.User, in DraftInput) (*entity.Document, error) {
	if d := policy.Authorize(owner, nil, policy.PermCreate); !d.Allowed {
		return nil, &entity.WorkflowError{Kind: entity.ErrUnauthorized, Reason: d.Reason}
	}
	if err := validateDraft(&in); err != nil {
		return nil, err
	}

	ref, err := s.storeUpload(ctx, in.Attachment)
	if err != nil {
		return nil, err
	}

	doc := &entity.Document{
		UserID:   owner.ID,
		Title:    in.Title,
		Content:  in.Content,
		Amount:   in.Amount,
		Status:   workflow.StateDraft,
		FilePath: ref,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		s.discard(ctx, ref)
		return nil, fmt.Errorf("%w: %w", entity.ErrStorageFailure, err)
	}

	s.logger.Info("Draft created", "document_id", doc.ID, "owner_id", owner.ID, "has_attachment", ref != "")
	s.publish(ctx, event.TypeDocumentCreated, doc, owner)

	return s.reload(ctx, doc)
}

// UpdateDraft replaces the editable fields of a draft
func (s *documentServiceImpl) UpdateDraft(ctx context.Context, actor *entity.User, id int64, in DraftInput) (*entity.Document, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := policy.Authorize(actor, doc, policy.PermUpdate); !d.Allowed {
		return nil, entity.NewWorkflowError(entity.ErrUnauthorized, doc, "", d.Reason)
	}
	if err := validateDraft(&in); err != nil {
		return nil, err
	}

	newRef, err := s.storeUpload(ctx, in.Attachment)
	if err != nil {
		return nil, err
	}

	oldRef := doc.FilePath
	switch {
	case newRef != "":
		doc.FilePath = newRef
	case in.RemoveAttachment:
		doc.FilePath = ""
	}
	doc.Title = in.Title
	doc.Content = in.Content
	doc.Amount = in.Amount

	ok, err := s.docs.UpdateDraft(ctx, doc)
	if err != nil {
		s.discard(ctx, newRef)
		return nil, fmt.Errorf("%w: %w", entity.ErrStorageFailure, err)
	}
	if !ok {
		s.discard(ctx, newRef)
		return nil, entity.NewWorkflowError(entity.ErrIllegalTransition, doc, "", "document changed since it was loaded")
	}

	if oldRef != "" && oldRef != doc.FilePath {
		s.discard(ctx, oldRef)
	}

	s.logger.Info("Draft updated", "document_id", doc.ID, "actor_id", actor.ID, "version", doc.Version)
	s.publish(ctx, event.TypeDocumentUpdated, doc, actor)

	return s.reload(ctx, doc)
}

// DeleteDraft removes a draft, its history and its attachment
func (s *documentServiceImpl) DeleteDraft(ctx context.Context, actor *entity.User, id int64) error {
	var deleted *entity.Document

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		doc, err := s.load(txCtx, id)
		if err != nil {
			return err
		}
		if d := policy.Authorize(actor, doc, policy.PermDelete); !d.Allowed {
			return entity.NewWorkflowError(entity.ErrUnauthorized, doc, "", d.Reason)
		}
		if err := s.docs.Delete(txCtx, doc.ID); err != nil {
			return fmt.Errorf("%w: %w", entity.ErrStorageFailure, err)
		}
		deleted = doc
		return nil
	})
	if err != nil {
		if !errors.Is(err, entity.ErrNotFound) && !errors.Is(err, entity.ErrUnauthorized) && !errors.Is(err, entity.ErrStorageFailure) {
			err = fmt.Errorf("%w: %w", entity.ErrStorageFailure, err)
		}
		return err
	}

	// The row is gone; a leftover file is only logged.
	s.discard(ctx, deleted.FilePath)

	s.logger.Info("Draft deleted", "document_id", deleted.ID, "actor_id", actor.ID)
	s.publish(ctx, event.TypeDocumentDeleted, deleted, actor)
	return nil
}

// Get returns a document actor may view
func (s *documentServiceImpl) Get(ctx context.Context, actor *entity.User, id int64) (*entity.Document, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := policy.Authorize(actor, doc, policy.PermView); !d.Allowed {
		return nil, entity.NewWorkflowError(entity.ErrUnauthorized, doc, "", d.Reason)
	}
	return doc, nil
}

// ListVisible pages through the documents actor may see, newest first
func (s *documentServiceImpl) ListVisible(ctx context.Context, actor *entity.User, page entity.Pagination) (entity.Page[*entity.Document], error) {
	if actor == nil {
		return entity.Page[*entity.Document]{}, &entity.WorkflowError{Kind: entity.ErrUnauthorized, Reason: "no authenticated actor"}
	}
	return s.list(ctx, VisibilityFilter(actor), page)
}

// PendingForManager lists the subordinates' documents waiting for actor
func (s *documentServiceImpl) PendingForManager(ctx context.Context, actor *entity.User, page entity.Pagination) (entity.Page[*entity.Document], error) {
	if actor == nil || !actor.IsManager() {
		return entity.Page[*entity.Document]{}, &entity.WorkflowError{Kind: entity.ErrUnauthorized, Reason: fmt.Sprintf("requires role %s", entity.RoleManager)}
	}
	id := actor.ID
	return s.list(ctx, port.DocumentFilter{
		OwnerManagerID: &id,
		Statuses:       []workflow.State{workflow.StatePendingManagerApproval},
	}, page)
}

// PendingForFinance lists the documents waiting for any finance user
func (s *documentServiceImpl) PendingForFinance(ctx context.Context, actor *entity.User, page entity.Pagination) (entity.Page[*entity.Document], error) {
	if actor == nil || !actor.IsFinance() {
		return entity.Page[*entity.Document]{}, &entity.WorkflowError{Kind: entity.ErrUnauthorized, Reason: fmt.Sprintf("requires role %s", entity.RoleFinance)}
	}
	return s.list(ctx, port.DocumentFilter{
		Statuses: []workflow.State{workflow.StatePendingFinanceApproval},
	}, page)
}

// OpenAttachment opens the attachment of a document actor may download.
// The caller closes the reader.
func (s *documentServiceImpl) OpenAttachment(ctx context.Context, actor *entity.User, id int64) (io.ReadCloser, string, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if d := policy.Authorize(actor, doc, policy.PermDownloadFile); !d.Allowed {
		return nil, "", entity.NewWorkflowError(entity.ErrUnauthorized, doc, "", d.Reason)
	}
	if !doc.HasAttachment() || !s.files.Exists(ctx, doc.FilePath) {
		return nil, "", entity.NewWorkflowError(entity.ErrNotFound, doc, "", "document has no attachment")
	}

	rc, err := s.files.Open(ctx, doc.FilePath)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", entity.ErrStorageFailure, err)
	}
	return rc, doc.AttachmentName(), nil
}

// Attachment returns the attachment metadata of doc, or nil when it has none
func (s *documentServiceImpl) Attachment(ctx context.Context, doc *entity.Document) *AttachmentInfo {
	if !doc.HasAttachment() {
		return nil
	}
	info := &AttachmentInfo{Name: doc.AttachmentName()}
	if size, err := s.files.SizeOf(ctx, doc.FilePath); err == nil {
		info.Size = size
		info.SizeLabel = entity.FormatFileSize(size)
	}
	return info
}

// VisibilityFilter is the listing filter for actor's role
func VisibilityFilter(actor *entity.User) port.DocumentFilter {
	id := actor.ID
	switch actor.Role {
	case entity.RoleAdmin:
		return port.DocumentFilter{}
	case entity.RoleFinance:
		return port.DocumentFilter{Statuses: []workflow.State{
			workflow.StatePendingFinanceApproval,
			workflow.StateApproved,
			workflow.StateRejected,
		}}
	case entity.RoleManager:
		return port.DocumentFilter{OwnerOrManagedBy: &id}
	default:
		return port.DocumentFilter{OwnerID: &id}
	}
}

func (s *documentServiceImpl) list(ctx context.Context, filter port.DocumentFilter, page entity.Pagination) (entity.Page[*entity.Document], error) {
	page = page.Normalize()
	docs, total, err := s.docs.List(ctx, filter, page)
	if err != nil {
		return entity.Page[*entity.Document]{}, fmt.Errorf("%w: %w", entity.ErrStorageFailure, err)
	}
	return entity.NewPage(docs, total, page), nil
}

func (s *documentServiceImpl) load(ctx context.Context, id int64) (*entity.Document, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrStorageFailure, err)
	}
	if doc == nil {
		return nil, &entity.WorkflowError{Kind: entity.ErrNotFound, DocumentID: id, Reason: "document does not exist"}
	}
	return doc, nil
}

// reload returns the stored row so joined owner fields are populated
func (s *documentServiceImpl) reload(ctx context.Context, doc *entity.Document) (*entity.Document, error) {
	fresh, err := s.docs.GetByID(ctx, doc.ID)
	if err != nil || fresh == nil {
		return doc, nil
	}
	return fresh, nil
}

func (s *documentServiceImpl) storeUpload(ctx context.Context, up *Upload) (string, error) {
	if up == nil {
		return "", nil
	}
	if err := utils.ValidateAttachmentName(up.Filename); err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}

	ref, err := s.files.Store(ctx, up.Content, up.Filename)
	if errors.Is(err, port.ErrAttachmentTooLarge) {
		return "", fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", entity.ErrStorageFailure, err)
	}
	return ref, nil
}

func (s *documentServiceImpl) discard(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := s.files.Delete(ctx, ref); err != nil {
		s.logger.Error("Failed to delete attachment", "ref", ref, "error", err)
	}
}

func (s *documentServiceImpl) publish(ctx context.Context, t event.Type, doc *entity.Document, actor *entity.User) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Publish(ctx, event.NewEvent(t, doc.ID, map[string]interface{}{
		"actor_id": actor.ID,
		"title":    doc.Title,
		"status":   doc.Status.String(),
	}))
}

func validateDraft(in *DraftInput) error {
	in.Title = strings.TrimSpace(utils.SanitizeString(in.Title))
	in.Content = strings.TrimSpace(utils.SanitizeString(in.Content))

	switch {
	case in.Title == "":
		return fmt.Errorf("%w: title is required", entity.ErrValidation)
	case utf8.RuneCountInString(in.Title) > entity.MaxTitleLength:
		return fmt.Errorf("%w: title must be at most %d characters", entity.ErrValidation, entity.MaxTitleLength)
	case in.Content == "":
		return fmt.Errorf("%w: content is required", entity.ErrValidation)
	case utf8.RuneCountInString(in.Content) > entity.MaxContentLength:
		return fmt.Errorf("%w: content must be at most %d characters", entity.ErrValidation, entity.MaxContentLength)
	}
	if err := utils.ValidateAmount(in.Amount); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}
	return nil
}
