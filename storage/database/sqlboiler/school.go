package boiledrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/school"
	"github.com/koneum/eduwaly/core/subscription"
	"github.com/koneum/eduwaly/storage/database"
)

const schoolColumns = `id, name, slug, is_active, created_at, updated_at`

var schoolOrderColumns = map[string]string{
	"name":       "name",
	"slug":       "slug",
	"created_at": "created_at",
}

type schoolRow struct {
	ID        string    `boil:"id"`
	Name      string    `boil:"name"`
	Slug      string    `boil:"slug"`
	IsActive  bool      `boil:"is_active"`
	CreatedAt time.Time `boil:"created_at"`
	UpdatedAt time.Time `boil:"updated_at"`
}

func (row schoolRow) unboil() school.School {
	return school.School{
		ID:        row.ID,
		Name:      row.Name,
		Slug:      row.Slug,
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

type schoolRepository struct {
	exec core.DBExecutor
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(exec core.DBExecutor) *schoolRepository {
	return &schoolRepository{exec: exec}
}

func (repo schoolRepository) CreateSchool(ctx context.Context, s school.School) (school.School, error) {
	s.ID = uuid.New().String()
	q := `INSERT INTO school (` + schoolColumns + `) VALUES (` + placeholders(6, 1) + `)`
	_, err := queries.Raw(q, s.ID, s.Name, s.Slug, s.IsActive, s.CreatedAt.UTC(), s.UpdatedAt.UTC()).
		ExecContext(ctx, repo.exec)
	if err != nil {
		return school.School{}, database.WrapErr(err, "inserting school")
	}
	return s, nil
}

func (repo schoolRepository) QuerySchools(ctx context.Context, filter *school.QueryFilter, ordering []core.DBOrdering) ([]school.School, error) {
	var w whereClause
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add("name ILIKE ? OR slug ILIKE ?", val, val)
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
	}

	q := `SELECT ` + schoolColumns + ` FROM school` + w.String() + orderBy(ordering, schoolOrderColumns, "name ASC")
	var rows []schoolRow
	if err := queries.Raw(q, w.args...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, database.WrapErr(err, "querying schools")
	}
	schools := make([]school.School, 0, len(rows))
	for _, row := range rows {
		schools = append(schools, row.unboil())
	}
	return schools, nil
}

func (repo schoolRepository) GetSchool(ctx context.Context, filter school.GetFilter) (school.School, error) {
	var w whereClause
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return school.School{}, school.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.Slug != "":
		w.add("slug = ?", filter.Slug)
	default:
		return school.School{}, school.ErrNotFound
	}

	var row schoolRow
	q := `SELECT ` + schoolColumns + ` FROM school` + w.String() + " LIMIT 1"
	if err := queries.Raw(q, w.args...).Bind(ctx, repo.exec, &row); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return school.School{}, school.ErrNotFound
		}
		return school.School{}, database.WrapErr(err, "finding school")
	}
	return row.unboil(), nil
}

func (repo schoolRepository) UpdateSchool(ctx context.Context, s school.School) (school.School, error) {
	q := `UPDATE school SET name = $2, slug = $3, is_active = $4, updated_at = $5 WHERE id = $1`
	res, err := queries.Raw(q, s.ID, s.Name, s.Slug, s.IsActive, s.UpdatedAt.UTC()).ExecContext(ctx, repo.exec)
	if err != nil {
		return school.School{}, database.WrapErr(err, "updating school")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return school.School{}, school.ErrNotFound
	}
	return s, nil
}

// NewSchoolUnitOfWork writes the school and its trial subscription in one transaction.
func NewSchoolUnitOfWork(db core.DB, subscriptions *subscription.Service) school.UnitOfWork {
	return func(ctx context.Context, fn func(repo school.Repository, trials school.TrialStarter) error) error {
		return core.InTx(ctx, db, func(tx core.DBTransactor) error {
			return fn(NewSchoolRepository(tx), subscriptions.WithRepository(NewSubscriptionRepository(tx)))
		})
	}
}
