package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

// withGuardian must be called with the lock held.
func (repo *enrollmentRepository) withGuardian(s enrollment.Student) enrollment.Student {
	if g, ok := repo.db.guardians[s.GuardianID]; ok {
		s.Guardian = &g
	} else {
		s.Guardian = nil
	}
	return s
}

func (repo *enrollmentRepository) CreateGuardian(_ context.Context, g enrollment.Guardian, _ ...core.DBExecutor) (enrollment.Guardian, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	repo.db.guardians[g.ID] = g
	return g, nil
}

func (repo *enrollmentRepository) GetGuardian(_ context.Context, id string, _ ...core.DBExecutor) (enrollment.Guardian, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if g, ok := repo.db.guardians[id]; ok {
		return g, nil
	}
	return enrollment.Guardian{}, enrollment.ErrGuardianNotFound
}

func (repo *enrollmentRepository) QueryGuardians(_ context.Context, search string, _ ...core.DBExecutor) ([]enrollment.Guardian, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	guardians := make([]enrollment.Guardian, 0)
	for _, g := range repo.db.guardians {
		if search != "" && !containsFold(g.Name, search) && !containsFold(g.TaxID, search) && !containsFold(g.Phone, search) {
			continue
		}
		guardians = append(guardians, g)
	}
	sort.Slice(guardians, func(i, j int) bool { return guardians[i].Name < guardians[j].Name })
	return guardians, nil
}

func (repo *enrollmentRepository) UpdateGuardian(_ context.Context, g enrollment.Guardian, _ ...core.DBExecutor) (enrollment.Guardian, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.guardians[g.ID]; !ok {
		return enrollment.Guardian{}, enrollment.ErrGuardianNotFound
	}
	repo.db.guardians[g.ID] = g
	return g, nil
}

func (repo *enrollmentRepository) DeleteGuardian(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.guardians[id]; !ok {
		return enrollment.ErrGuardianNotFound
	}
	delete(repo.db.guardians, id)
	return nil
}

func (repo *enrollmentRepository) CreateStudent(_ context.Context, s enrollment.Student, _ ...core.DBExecutor) (enrollment.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	s.Guardian = nil
	repo.db.students[s.ID] = s
	return s, nil
}

func (repo *enrollmentRepository) GetStudent(_ context.Context, id string, _ ...core.DBExecutor) (enrollment.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.students[id]; ok {
		return repo.withGuardian(s), nil
	}
	return enrollment.Student{}, enrollment.ErrStudentNotFound
}

func (repo *enrollmentRepository) QueryStudents(
	_ context.Context,
	filter *enrollment.StudentFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]enrollment.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]enrollment.Student, 0)
	for _, s := range repo.db.students {
		s = repo.withGuardian(s)
		if filter != nil {
			if filter.Search != "" {
				guardianMatch := s.Guardian != nil && containsFold(s.Guardian.Name, filter.Search)
				if !containsFold(s.Name, filter.Search) && !guardianMatch {
					continue
				}
			}
			if filter.ClassName != "" && s.ClassName != filter.ClassName {
				continue
			}
			if filter.GuardianID != "" && s.GuardianID != filter.GuardianID {
				continue
			}
		}
		students = append(students, s)
	}
	sortStudents(students, ordering)
	return students, nil
}

func sortStudents(students []enrollment.Student, ordering []core.DBOrdering) {
	// map iteration is random: fall back to ID for a stable result
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
	sort.SliceStable(students, func(i, j int) bool {
		for _, ord := range ordering {
			cmp := compareStudents(students[i], students[j], ord.Field)
			if cmp == 0 {
				continue
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
}

func compareStudents(a, b enrollment.Student, field string) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "class_name":
		return strings.Compare(a.ClassName, b.ClassName)
	case "birth_date":
		return strings.Compare(a.BirthDate.String(), b.BirthDate.String())
	case "created_at":
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case a.CreatedAt.After(b.CreatedAt):
			return 1
		}
	}
	return 0
}

func (repo *enrollmentRepository) UpdateStudent(_ context.Context, s enrollment.Student, _ ...core.DBExecutor) (enrollment.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.students[s.ID]; !ok {
		return enrollment.Student{}, enrollment.ErrStudentNotFound
	}
	s.Guardian = nil
	repo.db.students[s.ID] = s
	return repo.withGuardian(s), nil
}

func (repo *enrollmentRepository) DeleteStudents(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.students[id]; ok {
			delete(repo.db.students, id)
			n++
		}
	}
	return n, nil
}

func (repo *enrollmentRepository) ListClasses(_ context.Context, _ ...core.DBExecutor) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	seen := make(map[string]bool)
	classes := make([]string, 0)
	for _, s := range repo.db.students {
		if s.ClassName != "" && !seen[s.ClassName] {
			seen[s.ClassName] = true
			classes = append(classes, s.ClassName)
		}
	}
	sort.Strings(classes)
	return classes, nil
}

func (repo *enrollmentRepository) FindStudentsByCredentials(
	_ context.Context,
	taxID string,
	birthDate core.Date,
	_ ...core.DBExecutor,
) ([]enrollment.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]enrollment.Student, 0)
	for _, s := range repo.db.students {
		g, ok := repo.db.guardians[s.GuardianID]
		if !ok || g.TaxID != taxID || !s.BirthDate.Equal(birthDate) {
			continue
		}
		students = append(students, repo.withGuardian(s))
	}
	sortStudents(students, []core.DBOrdering{{Field: "name", Ascending: true}})
	return students, nil
}
