package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/koneum/eduwaly/core/permission"
)

type permissionRepository struct {
	db *permissionTable
}

var _ permission.Repository = (*permissionRepository)(nil) // interface compliance check

func NewPermissionRepository(db *DB) *permissionRepository {
	return &permissionRepository{db: db.permission}
}

func sortPermissions(perms []permission.Permission) {
	sort.Slice(perms, func(i, j int) bool {
		if perms[i].Category != perms[j].Category {
			return perms[i].Category < perms[j].Category
		}
		return perms[i].Action < perms[j].Action
	})
}

func (repo *permissionRepository) CreatePermission(_ context.Context, p permission.Permission) (permission.Permission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.table {
		if existing.Category == p.Category && existing.Action == p.Action {
			return permission.Permission{}, permission.ErrExists
		}
	}
	p.ID = uuid.New().String()
	repo.db.table[p.ID] = &p
	return p, nil
}

func (repo *permissionRepository) QueryPermissions(_ context.Context, category string) ([]permission.Permission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	perms := make([]permission.Permission, 0, len(repo.db.table))
	for _, p := range repo.db.table {
		if category == "" || p.Category == category {
			perms = append(perms, *p)
		}
	}
	sortPermissions(perms)
	return perms, nil
}

func (repo *permissionRepository) GetPermission(_ context.Context, filter permission.GetFilter) (permission.Permission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if p, ok := repo.db.table[filter.ID]; ok {
			return *p, nil
		}
		return permission.Permission{}, permission.ErrNotFound
	}
	for _, p := range repo.db.table {
		if p.Category == filter.Category && p.Action == filter.Action {
			return *p, nil
		}
	}
	return permission.Permission{}, permission.ErrNotFound
}

func (repo *permissionRepository) QueryUserPermissions(_ context.Context, userID string) ([]permission.Permission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	granted := repo.db.grants[userID]
	perms := make([]permission.Permission, 0, len(granted))
	for permID := range granted {
		if p, ok := repo.db.table[permID]; ok {
			perms = append(perms, *p)
		}
	}
	sortPermissions(perms)
	return perms, nil
}

func (repo *permissionRepository) GrantPermission(_ context.Context, userID, permissionID string, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[permissionID]; !ok {
		return permission.ErrNotFound
	}
	granted, ok := repo.db.grants[userID]
	if !ok {
		granted = make(map[string]time.Time)
		repo.db.grants[userID] = granted
	}
	if _, ok := granted[permissionID]; !ok {
		granted[permissionID] = at
	}
	return nil
}

func (repo *permissionRepository) RevokePermission(_ context.Context, userID, permissionID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.grants[userID], permissionID)
	return nil
}
