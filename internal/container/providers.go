// Package container provides dependency injection and lifecycle management
// for the document approval service.
package container

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/doc-approval/internal/application/dispatcher"
	"github.com/garyjia/doc-approval/internal/application/port"
	"github.com/garyjia/doc-approval/internal/application/service"
	"github.com/garyjia/doc-approval/internal/application/workflow"
	"github.com/garyjia/doc-approval/internal/config"
	"github.com/garyjia/doc-approval/internal/domain/event"
	infraLark "github.com/garyjia/doc-approval/internal/infrastructure/external/lark"
	"github.com/garyjia/doc-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/doc-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/doc-approval/internal/infrastructure/storage"
	"github.com/garyjia/doc-approval/internal/metrics"
	"github.com/garyjia/doc-approval/internal/notification"
	"github.com/garyjia/doc-approval/migrations"
	"github.com/garyjia/doc-approval/pkg/database"
	"github.com/garyjia/doc-approval/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Document     port.DocumentRepository
	History      port.HistoryRepository
	Notification port.NotificationRepository
	User         port.UserRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Documents     service.DocumentService
	Approvals     service.ApprovalService
	Audit         *service.AuditTrail
	Router        *service.NotificationRouter
	Notifications service.NotificationFeedService
}

// ProvideDatabase opens the database and applies pending migrations.
func ProvideDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrations(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories. The user repository is
// wrapped in an LRU cache when cfg.UserSize is positive.
func ProvideRepositories(sqlDB *sql.DB, cfg *config.CacheConfig, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	var users port.UserRepository = repository.NewUserRepository(sqlDB, logger)
	if cfg != nil && cfg.UserSize > 0 {
		users = repository.NewCachedUserRepository(users, cfg.UserSize, cfg.UserTTL)
	}

	return &RepositoryBundle{
		Document:     repository.NewDocumentRepository(sqlDB, logger),
		History:      repository.NewHistoryRepository(sqlDB, logger),
		Notification: repository.NewNotificationRepository(sqlDB, logger),
		User:         users,
	}, nil
}

// ProvideStorage creates the attachment store.
func ProvideStorage(cfg *config.StorageConfig, logger *zap.Logger) (port.AttachmentStore, error) {
	if cfg == nil || cfg.BaseDir == "" {
		return nil, fmt.Errorf("storage base directory is required")
	}
	return storage.NewLocalFileStorage(cfg.BaseDir, cfg.MaxUploadSize, logger), nil
}

// ProvideDelivery assembles the enabled notification channels.
// Lark is skipped when credentials are missing even if enabled.
func ProvideDelivery(cfg *config.Config, repos *RepositoryBundle, logger *zap.Logger) port.NotificationDelivery {
	var channels []port.NotificationDelivery

	if cfg.Notification.Feed {
		channels = append(channels, notification.NewFeedDelivery(repos.Notification))
	}
	if cfg.Notification.Lark {
		if cfg.Lark.Enabled() {
			client := infraLark.NewSDKClient(infraLark.Config{
				AppID:     cfg.Lark.AppID,
				AppSecret: cfg.Lark.AppSecret,
				BaseURL:   cfg.Lark.BaseURL,
			}, logger)
			channels = append(channels, notification.NewLarkDelivery(infraLark.NewMessenger(client, logger)))
		} else {
			logger.Warn("Lark notifications enabled without lark.app_id, skipping channel")
		}
	}
	if cfg.Notification.Log {
		channels = append(channels, notification.NewLogDelivery(logger))
	}

	logger.Info("Notification channels configured", zap.Int("count", len(channels)))
	return notification.NewMultiDelivery(channels...)
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(cfg *config.WorkflowConfig, logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(utils.NewKVLogger(logger)),
		dispatcher.WithAsync(cfg.AsyncNotifications),
	)
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Files      port.AttachmentStore
	Delivery   port.NotificationDelivery
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideServices creates the workflow engine and the application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, workflow.WorkflowEngine, error) {
	if deps == nil || deps.Repos == nil {
		return nil, nil, fmt.Errorf("service dependencies are required")
	}
	kv := utils.NewKVLogger(deps.Logger)

	audit := service.NewAuditTrail(deps.Repos.History, deps.Repos.Document, kv)
	engine := workflow.NewEngine(
		deps.Repos.Document,
		audit,
		deps.TxManager,
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithLogger(kv),
		workflow.WithFailureObserver(metrics.TransitionFailed),
	)
	documents := service.NewDocumentService(deps.Repos.Document, deps.Files, deps.TxManager, deps.Dispatcher, kv)

	return &ServiceBundle{
		Documents: documents,
		Approvals: service.NewApprovalService(documents, engine, kv),
		Audit:     audit,
		Router: service.NewNotificationRouter(deps.Repos.User, deps.Delivery, kv,
			service.WithDeliveryObserver(metrics.NotificationDelivered)),
		Notifications: service.NewNotificationFeedService(deps.Repos.Notification, kv),
	}, engine, nil
}

// RegisterEventHandlers subscribes notification routing, metrics and
// lifecycle logging to the dispatcher.
func RegisterEventHandlers(d dispatcher.Dispatcher, services *ServiceBundle, logger *zap.Logger) {
	d.SubscribeNamed(event.TypeDocumentStatusChanged, "notification-router", services.Router.Handle)
	d.SubscribeNamed(event.TypeDocumentStatusChanged, "metrics", metrics.ObserveTransition)

	lifecycle := func(ctx context.Context, evt *event.Event) error {
		logger.Info("Document lifecycle event",
			zap.String("type", string(evt.Type)),
			zap.Int64("document_id", evt.DocumentID))
		return nil
	}
	for _, t := range []event.Type{event.TypeDocumentCreated, event.TypeDocumentUpdated, event.TypeDocumentDeleted} {
		d.SubscribeNamed(t, "lifecycle-log", lifecycle)
	}
}
