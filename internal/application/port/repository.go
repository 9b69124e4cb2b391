package port

import (
	"context"
	"time"

	"github.com/garyjia/doc-approval/internal/domain/entity"
	"github.com/garyjia/doc-approval/internal/domain/workflow"
)

// UserRepository is the read side of the user directory
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	ListByRole(ctx context.Context, role entity.Role) ([]*entity.User, error)
	ListSubordinates(ctx context.Context, managerID int64) ([]*entity.User, error)
}

// UserWriter creates and updates users. Only seeding and administration use it.
type UserWriter interface {
	Create(ctx context.Context, user *entity.User) error
	SetManager(ctx context.Context, userID int64, managerID *int64) error
}

// DocumentFilter narrows a document listing. Zero values mean "no constraint".
type DocumentFilter struct {
	OwnerID          *int64           // documents owned by this user
	OwnerManagerID   *int64           // documents whose owner reports to this manager
	OwnerOrManagedBy *int64           // own documents plus subordinates'
	Statuses         []workflow.State // status IN (...)
}

// DocumentRepository defines persistence operations for Document.
// GetByID returns nil, nil when the document does not exist.
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id int64) (*entity.Document, error)

	// UpdateDraft writes title, content, amount and attachment while the
	// document is still a draft at the given version.
	UpdateDraft(ctx context.Context, doc *entity.Document) (bool, error)

	// CompareAndSwapStatus moves the document to `to` only if it is still in
	// `from` at `version`, stamping updated_at with at. Returns false when
	// another writer got there first.
	CompareAndSwapStatus(ctx context.Context, id int64, from workflow.State, version int64, to workflow.State, at time.Time) (bool, error)

	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter DocumentFilter, page entity.Pagination) ([]*entity.Document, int, error)
}

// HistoryRepository is the append-only store of transition records
type HistoryRepository interface {
	Append(ctx context.Context, record *entity.TransitionRecord) error
	ListByDocument(ctx context.Context, documentID int64) ([]*entity.TransitionRecord, error)
}

// NotificationRepository stores the in-app notification feed
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*entity.Notification, error)
	MarkRead(ctx context.Context, id, userID int64) (bool, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
