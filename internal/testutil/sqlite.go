// Package testutil builds migrated sqlite databases for tests.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/doc-approval/internal/domain/entity"
	"github.com/garyjia/doc-approval/migrations"
	"github.com/garyjia/doc-approval/pkg/database"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// OpenDB returns a migrated file-backed database in t.TempDir().
// File-backed so that several connections share it.
func OpenDB(t *testing.T) *sql.DB {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 4,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(migrations.FS))
	return db.DB
}

// InsertUser writes a user row directly and returns it
func InsertUser(t *testing.T, db *sql.DB, name string, role entity.Role, managerID *int64) *entity.User {
	t.Helper()

	now := time.Now().UTC()
	var mgr sql.NullInt64
	if managerID != nil {
		mgr = sql.NullInt64{Int64: *managerID, Valid: true}
	}
	email := name + "@example.com"

	res, err := db.Exec(
		`INSERT INTO users (name, email, password, role, manager_id, created_at, updated_at) VALUES (?, ?, 'x', ?, ?, ?, ?)`,
		name, email, string(role), mgr, now, now,
	)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)

	return &entity.User{ID: id, Name: name, Email: email, Role: role, ManagerID: managerID, CreatedAt: now, UpdatedAt: now}
}

// Org is the standard set of test users: one manager with two reports,
// a finance user, an admin and a user without a manager.
type Org struct {
	Admin    *entity.User
	Manager  *entity.User
	Finance  *entity.User
	Finance2 *entity.User
	Alice    *entity.User
	Bob      *entity.User
	Orphan   *entity.User
}

// SeedOrg inserts the standard test users
func SeedOrg(t *testing.T, db *sql.DB) *Org {
	t.Helper()

	o := &Org{}
	o.Admin = InsertUser(t, db, "admin", entity.RoleAdmin, nil)
	o.Manager = InsertUser(t, db, "manager", entity.RoleManager, nil)
	o.Finance = InsertUser(t, db, "finance", entity.RoleFinance, nil)
	o.Finance2 = InsertUser(t, db, "finance2", entity.RoleFinance, nil)
	o.Alice = InsertUser(t, db, "alice", entity.RoleUser, &o.Manager.ID)
	o.Bob = InsertUser(t, db, "bob", entity.RoleUser, &o.Manager.ID)
	o.Orphan = InsertUser(t, db, "orphan", entity.RoleUser, nil)
	return o
}
