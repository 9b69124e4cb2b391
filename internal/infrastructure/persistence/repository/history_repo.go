package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/doc-approval/internal/application/port"
	"github.com/garyjia/doc-approval/internal/domain/entity"
	"github.com/garyjia/doc-approval/internal/domain/workflow"
	"github.com/garyjia/doc-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts a transition record. Records are never updated afterwards.
func (r *HistoryRepository) Append(ctx context.Context, record *entity.TransitionRecord) error {
	query := `
		INSERT INTO document_histories (
			document_id, user_id, action, old_status, new_status, comment, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		record.DocumentID,
		record.UserID,
		string(record.Action),
		nullString(string(record.OldStatus)),
		string(record.NewStatus),
		nullString(record.Comment),
		now,
	)
	if err != nil {
		r.logger.Error("Failed to append history record",
			zap.Int64("document_id", record.DocumentID),
			zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	record.CreatedAt = now
	return nil
}

// ListByDocument returns the document's records newest first
func (r *HistoryRepository) ListByDocument(ctx context.Context, documentID int64) ([]*entity.TransitionRecord, error) {
	query := `
		SELECT h.id, h.document_id, h.user_id, h.action, h.old_status, h.new_status,
			h.comment, h.created_at, u.name
		FROM document_histories h
		JOIN users u ON u.id = h.user_id
		WHERE h.document_id = ?
		ORDER BY h.created_at DESC, h.id DESC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, documentID)
	if err != nil {
		r.logger.Error("Failed to get history by document ID", zap.Int64("document_id", documentID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []*entity.TransitionRecord
	for rows.Next() {
		var (
			record    entity.TransitionRecord
			action    string
			oldStatus sql.NullString
			newStatus string
			comment   sql.NullString
		)
		err := rows.Scan(
			&record.ID,
			&record.DocumentID,
			&record.UserID,
			&action,
			&oldStatus,
			&newStatus,
			&comment,
			&record.CreatedAt,
			&record.ActorName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		record.Action = entity.ActionTag(action)
		record.OldStatus = workflow.State(oldStatus.String)
		record.NewStatus = workflow.State(newStatus)
		record.Comment = comment.String
		records = append(records, &record)
	}

	return records, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *HistoryRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
