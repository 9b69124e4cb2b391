package container

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/doc-approval/internal/application/service"
	"github.com/garyjia/doc-approval/internal/config"
	"github.com/garyjia/doc-approval/internal/domain/entity"
	"github.com/garyjia/doc-approval/internal/domain/workflow"
	"github.com/garyjia/doc-approval/internal/testutil"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080, ShutdownTimeout: time.Second},
		Database: config.DatabaseConfig{
			Path:         filepath.Join(dir, "app.db"),
			MaxOpenConns: 4,
			MaxIdleConns: 4,
		},
		Storage:      config.StorageConfig{BaseDir: filepath.Join(dir, "files"), MaxUploadSize: 1 << 20},
		Notification: config.NotificationConfig{Feed: true, Lark: true, Log: true},
		Workflow:     config.WorkflowConfig{AsyncNotifications: false},
		Cache:        config.CacheConfig{UserSize: 16, UserTTL: time.Minute},
		Logger:       config.LoggerConfig{Level: "info", Format: "json"},
		Metrics:      config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Database.Path = ""
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx), "second start")

	health := c.Health(ctx)
	assert.True(t, health.Overall)
	assert.NoError(t, c.HealthCheck(ctx))

	// Lark is enabled in config but has no credentials, so only feed and log deliver
	manager := testutil.InsertUser(t, c.db.DB, "manager", entity.RoleManager, nil)
	alice := testutil.InsertUser(t, c.db.DB, "alice", entity.RoleUser, &manager.ID)

	svc := c.Services()
	doc, err := svc.Documents.CreateDraft(ctx, alice, service.DraftInput{
		Title:   "Monitor",
		Content: "27 inch monitor",
		Amount:  decimal.RequireFromString("899.00"),
	})
	require.NoError(t, err)

	doc, err = svc.Approvals.Act(ctx, alice, doc.ID, workflow.TriggerSubmit, "")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatePendingManagerApproval, doc.Status)

	feed, err := svc.Notifications.List(ctx, manager, true, 0)
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, entity.NotificationPendingApproval, feed.Items[0].Kind)

	srv := c.NewHTTPServer()
	assert.Equal(t, "127.0.0.1:8080", srv.Address())

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(ctx))
}
