package service

import (
	"context"
	"fmt"

	"github.com/garyjia/doc-approval/internal/application/port"
	"github.com/garyjia/doc-approval/internal/domain/entity"
	"github.com/garyjia/doc-approval/internal/domain/event"
	"github.com/garyjia/doc-approval/internal/domain/policy"
)

// AuditTrail owns the append-only log of document transitions
type AuditTrail struct {
	history port.HistoryRepository
	docs    port.DocumentRepository
	logger  Logger
}

// NewAuditTrail creates a new AuditTrail
func NewAuditTrail(history port.HistoryRepository, docs port.DocumentRepository, logger Logger) *AuditTrail {
	return &AuditTrail{
		history: history,
		docs:    docs,
		logger:  orNop(logger),
	}
}

// Record appends the record of t. It must run inside the transaction that
// changed the document status.
func (a *AuditTrail) Record(ctx context.Context, t *event.Transition) (*entity.TransitionRecord, error) {
	rec := t.Record()
	if err := a.history.Append(ctx, rec); err != nil {
		a.logger.Error("Failed to append transition record",
			"document_id", rec.DocumentID,
			"action", string(rec.Action),
			"error", err,
		)
		return nil, fmt.Errorf("append transition record: %w", err)
	}
	return rec, nil
}

// History returns the transitions of a document, newest first
func (a *AuditTrail) History(ctx context.Context, actor *entity.User, documentID int64) ([]*entity.TransitionRecord, error) {
	doc, err := a.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrStorageFailure, err)
	}
	if doc == nil {
		return nil, &entity.WorkflowError{Kind: entity.ErrNotFound, DocumentID: documentID}
	}

	if d := policy.Authorize(actor, doc, policy.PermView); !d.Allowed {
		return nil, entity.NewWorkflowError(entity.ErrUnauthorized, doc, "", d.Reason)
	}

	records, err := a.history.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrStorageFailure, err)
	}
	if records == nil {
		records = []*entity.TransitionRecord{}
	}
	return records, nil
}
