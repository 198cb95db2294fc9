package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/school"
)

type schoolRepository struct {
	db *schoolTable
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{db: db.school}
}

func (repo *schoolRepository) CreateSchool(_ context.Context, s school.School) (school.School, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.table {
		if existing.Slug == s.Slug {
			return school.School{}, school.ErrSlugExists
		}
	}
	s.ID = uuid.New().String()
	repo.db.table[s.ID] = &s
	return s, nil
}

func (repo *schoolRepository) QuerySchools(_ context.Context, filter *school.QueryFilter, ordering []core.DBOrdering) ([]school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	schools := make([]school.School, 0, len(repo.db.table))
	for _, s := range repo.db.table {
		if filter != nil {
			if filter.Search != "" {
				kw := strings.ToLower(filter.Search)
				if !strings.Contains(strings.ToLower(s.Name), kw) && !strings.Contains(s.Slug, kw) {
					continue
				}
			}
			if filter.IsActive != nil && s.IsActive != *filter.IsActive {
				continue
			}
		}
		schools = append(schools, *s)
	}

	asc, byDate := true, false
	if len(ordering) > 0 {
		asc, byDate = ordering[0].Ascending, ordering[0].Field == "created_at"
	}
	sort.SliceStable(schools, func(i, j int) bool {
		a, b := schools[i], schools[j]
		if byDate {
			return a.CreatedAt.Before(b.CreatedAt) == asc
		}
		return (a.Name < b.Name) == asc
	})
	return schools, nil
}

func (repo *schoolRepository) GetSchool(_ context.Context, filter school.GetFilter) (school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if s, ok := repo.db.table[filter.ID]; ok {
			return *s, nil
		}
		return school.School{}, school.ErrNotFound
	}
	if filter.Slug != "" {
		for _, s := range repo.db.table {
			if s.Slug == filter.Slug {
				return *s, nil
			}
		}
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) UpdateSchool(_ context.Context, s school.School) (school.School, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[s.ID]; !ok {
		return school.School{}, school.ErrNotFound
	}
	repo.db.table[s.ID] = &s
	return s, nil
}

// trackedSchoolRepository remembers the schools it created.
type trackedSchoolRepository struct {
	*schoolRepository
	created []string
}

func (repo *trackedSchoolRepository) CreateSchool(ctx context.Context, s school.School) (school.School, error) {
	s, err := repo.schoolRepository.CreateSchool(ctx, s)
	if err == nil {
		repo.created = append(repo.created, s.ID)
	}
	return s, err
}

// NewSchoolUnitOfWork removes the schools created by a failed onboarding.
func NewSchoolUnitOfWork(db *DB, trials school.TrialStarter) school.UnitOfWork {
	return func(ctx context.Context, fn func(repo school.Repository, trials school.TrialStarter) error) error {
		repo := &trackedSchoolRepository{schoolRepository: NewSchoolRepository(db)}
		err := fn(repo, trials)
		if err != nil {
			db.school.Lock()
			for _, id := range repo.created {
				delete(db.school.table, id)
			}
			db.school.Unlock()
		}
		return err
	}
}
