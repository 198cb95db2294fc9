package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/koneum/eduwaly/core/permission"
	"github.com/koneum/eduwaly/storage/database"
)

const permissionColumns = `p.id, p.category, p.action, p.description, p.created_at`

type permissionRepository struct {
	db *sqlx.DB
}

var _ permission.Repository = (*permissionRepository)(nil) // interface compliance check

func NewPermissionRepository(db *sql.DB) *permissionRepository {
	return &permissionRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo permissionRepository) CreatePermission(ctx context.Context, p permission.Permission) (permission.Permission, error) {
	p.ID = uuid.New().String()
	p.CreatedAt = p.CreatedAt.UTC()
	q := `INSERT INTO permission (id, category, action, description, created_at)
		VALUES (:id, :category, :action, :description, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, p); err != nil {
		return permission.Permission{}, database.WrapErr(err, "inserting permission")
	}
	return p, nil
}

func (repo permissionRepository) QueryPermissions(ctx context.Context, category string) ([]permission.Permission, error) {
	q := `SELECT ` + permissionColumns + ` FROM permission p`
	var args []interface{}
	if category != "" {
		q += ` WHERE p.category = $1`
		args = append(args, category)
	}
	q += ` ORDER BY p.category, p.action`

	perms := make([]permission.Permission, 0)
	if err := repo.db.SelectContext(ctx, &perms, q, args...); err != nil {
		return nil, database.WrapErr(err, "querying permissions")
	}
	return perms, nil
}

func (repo permissionRepository) GetPermission(ctx context.Context, filter permission.GetFilter) (permission.Permission, error) {
	var (
		q    = `SELECT ` + permissionColumns + ` FROM permission p`
		args []interface{}
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return permission.Permission{}, permission.ErrNotFound
		}
		q += ` WHERE p.id = $1`
		args = append(args, filter.ID)
	case filter.Category != "" && filter.Action != "":
		q += ` WHERE p.category = $1 AND p.action = $2`
		args = append(args, filter.Category, filter.Action)
	default:
		return permission.Permission{}, permission.ErrNotFound
	}

	var p permission.Permission
	if err := repo.db.GetContext(ctx, &p, q, args...); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return permission.Permission{}, permission.ErrNotFound
		}
		return permission.Permission{}, database.WrapErr(err, "finding permission")
	}
	return p, nil
}

func (repo permissionRepository) QueryUserPermissions(ctx context.Context, userID string) ([]permission.Permission, error) {
	perms := make([]permission.Permission, 0)
	if _, err := uuid.Parse(userID); err != nil {
		return perms, nil
	}
	q := `SELECT ` + permissionColumns + ` FROM permission p
		JOIN user_permission up ON up.permission_id = p.id
		WHERE up.user_id = $1
		ORDER BY p.category, p.action`
	if err := repo.db.SelectContext(ctx, &perms, q, userID); err != nil {
		return nil, database.WrapErr(err, "querying user permissions")
	}
	return perms, nil
}

func (repo permissionRepository) GrantPermission(ctx context.Context, userID, permissionID string, at time.Time) error {
	q := `INSERT INTO user_permission (user_id, permission_id, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, permission_id) DO NOTHING`
	if _, err := repo.db.ExecContext(ctx, q, userID, permissionID, at.UTC()); err != nil {
		return database.WrapErr(err, "granting permission")
	}
	return nil
}

func (repo permissionRepository) RevokePermission(ctx context.Context, userID, permissionID string) error {
	if _, err := uuid.Parse(permissionID); err != nil {
		return nil
	}
	q := `DELETE FROM user_permission WHERE user_id = $1 AND permission_id = $2`
	if _, err := repo.db.ExecContext(ctx, q, userID, permissionID); err != nil {
		return database.WrapErr(err, "revoking permission")
	}
	return nil
}
