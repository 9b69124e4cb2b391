package service

import (
	"context"

	"github.com/garyjia/doc-approval/internal/application/workflow"
	"github.com/garyjia/doc-approval/internal/domain/entity"
	"github.com/garyjia/doc-approval/internal/domain/policy"
	domainwf "github.com/garyjia/doc-approval/internal/domain/workflow"
)

// ApprovalService runs workflow actions addressed by document id
type ApprovalService interface {
	// Act loads the document and applies action as actor
	Act(ctx context.Context, actor *entity.User, id int64, action domainwf.Trigger, comment string) (*entity.Document, error)

	// Actions returns what actor may do next with the document
	Actions(ctx context.Context, actor *entity.User, doc *entity.Document) []domainwf.Trigger
}

type approvalServiceImpl struct {
	documents DocumentService
	engine    workflow.WorkflowEngine
	logger    Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(documents DocumentService, engine workflow.WorkflowEngine, logger Logger) ApprovalService {
	return &approvalServiceImpl{
		documents: documents,
		engine:    engine,
		logger:    orNop(logger),
	}
}

// Act implements ApprovalService. An actor who may not view the document gets
// Unauthorized before the engine runs.
func (s *approvalServiceImpl) Act(ctx context.Context, actor *entity.User, id int64, action domainwf.Trigger, comment string) (*entity.Document, error) {
	doc, err := s.documents.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.engine.Apply(ctx, doc, actor, action, comment)
}

// Actions implements ApprovalService
func (s *approvalServiceImpl) Actions(ctx context.Context, actor *entity.User, doc *entity.Document) []domainwf.Trigger {
	if !policy.Can(actor, doc, policy.PermView) {
		return nil
	}
	return s.engine.AvailableActions(ctx, doc, actor)
}
