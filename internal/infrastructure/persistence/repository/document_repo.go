package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/doc-approval/internal/application/port"
	"github.com/garyjia/doc-approval/internal/domain/entity"
	"github.com/garyjia/doc-approval/internal/domain/workflow"
	"github.com/garyjia/doc-approval/internal/infrastructure/persistence/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const documentSelect = `
	SELECT d.id, d.user_id, d.title, d.content, d.amount, d.status, d.file_path,
		d.version, d.created_at, d.updated_at, u.name, u.manager_id
	FROM documents d
	JOIN users u ON u.id = d.user_id
`

// DocumentRepository implements port.DocumentRepository
type DocumentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sql.DB, logger *zap.Logger) *DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a document in draft status
func (r *DocumentRepository) Create(ctx context.Context, doc *entity.Document) error {
	query := `
		INSERT INTO documents (user_id, title, content, amount, status, file_path, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
	`

	if doc.Status == "" {
		doc.Status = workflow.StateDraft
	}
	now := time.Now().UTC()

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		doc.UserID,
		doc.Title,
		doc.Content,
		doc.Amount.StringFixed(2),
		string(doc.Status),
		nullString(doc.FilePath),
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create document", zap.Int64("user_id", doc.UserID), zap.Error(err))
		return fmt.Errorf("failed to create document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	doc.ID = id
	doc.Version = 1
	doc.CreatedAt = now
	doc.UpdatedAt = now
	return nil
}

// GetByID returns nil, nil when the document does not exist
func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*entity.Document, error) {
	query := documentSelect + ` WHERE d.id = ?`

	doc, err := scanDocument(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get document by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// UpdateDraft writes the editable fields if the row is still a draft at doc.Version
func (r *DocumentRepository) UpdateDraft(ctx context.Context, doc *entity.Document) (bool, error) {
	query := `
		UPDATE documents
		SET title = ?, content = ?, amount = ?, file_path = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND status = ? AND version = ?
	`

	now := time.Now().UTC()
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		doc.Title,
		doc.Content,
		doc.Amount.StringFixed(2),
		nullString(doc.FilePath),
		now,
		doc.ID,
		string(workflow.StateDraft),
		doc.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update document", zap.Int64("id", doc.ID), zap.Error(err))
		return false, fmt.Errorf("failed to update document: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	doc.Version++
	doc.UpdatedAt = now
	return true, nil
}

// CompareAndSwapStatus moves id from `from` to `to` if nobody changed it since version
func (r *DocumentRepository) CompareAndSwapStatus(ctx context.Context, id int64, from workflow.State, version int64, to workflow.State, at time.Time) (bool, error) {
	query := `
		UPDATE documents
		SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND status = ? AND version = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, string(to), at.UTC(), id, string(from), version)
	if err != nil {
		r.logger.Error("Failed to swap document status",
			zap.Int64("id", id),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
			zap.Error(err))
		return false, fmt.Errorf("failed to update status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// Delete removes the document; history rows go with it via ON DELETE CASCADE
func (r *DocumentRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete document", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// List returns one page of documents matching filter, newest first, and the total count
func (r *DocumentRepository) List(ctx context.Context, filter port.DocumentFilter, page entity.Pagination) ([]*entity.Document, int, error) {
	where, args := buildDocumentWhere(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM documents d JOIN users u ON u.id = d.user_id` + where
	if err := r.getExecutor(ctx).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count documents", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	query := documentSelect + where + ` ORDER BY d.created_at DESC, d.id DESC LIMIT ? OFFSET ?`
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, append(args, page.PerPage, page.Offset())...)
	if err != nil {
		r.logger.Error("Failed to list documents", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	return docs, total, rows.Err()
}

func buildDocumentWhere(f port.DocumentFilter) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)

	if f.OwnerID != nil {
		clauses = append(clauses, "d.user_id = ?")
		args = append(args, *f.OwnerID)
	}
	if f.OwnerManagerID != nil {
		clauses = append(clauses, "u.manager_id = ?")
		args = append(args, *f.OwnerManagerID)
	}
	if f.OwnerOrManagedBy != nil {
		clauses = append(clauses, "(d.user_id = ? OR u.manager_id = ?)")
		args = append(args, *f.OwnerOrManagedBy, *f.OwnerOrManagedBy)
	}
	if len(f.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.Statuses)), ",")
		clauses = append(clauses, "d.status IN ("+placeholders+")")
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		doc       entity.Document
		amount    decimal.Decimal
		status    string
		filePath  sql.NullString
		managerID sql.NullInt64
	)
	err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.Title,
		&doc.Content,
		&amount,
		&status,
		&filePath,
		&doc.Version,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&doc.OwnerName,
		&managerID,
	)
	if err != nil {
		return nil, err
	}

	doc.Amount = amount
	doc.Status = workflow.State(status)
	doc.FilePath = filePath.String
	if managerID.Valid {
		id := managerID.Int64
		doc.OwnerManagerID = &id
	}
	return &doc, nil
}

// getExecutor returns appropriate executor based on context
func (r *DocumentRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.DocumentRepository = (*DocumentRepository)(nil)
