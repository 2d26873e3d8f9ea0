package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/grade"
)

type gradeRepository struct {
	db *DB
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *DB) grade.Repository {
	return &gradeRepository{db: db}
}

func (repo *gradeRepository) CreateGrades(_ context.Context, grades []grade.Grade, _ ...core.DBExecutor) ([]grade.Grade, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	created := make([]grade.Grade, 0, len(grades))
	for _, g := range grades {
		if g.ID == "" {
			g.ID = uuid.New().String()
		}
		g.StudentName = ""
		repo.db.grades[g.ID] = g
		created = append(created, g)
	}
	return created, nil
}

func (repo *gradeRepository) GetGrade(_ context.Context, id string, _ ...core.DBExecutor) (grade.Grade, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if g, ok := repo.db.grades[id]; ok {
		g.StudentName = repo.db.students[g.StudentID].Name
		return g, nil
	}
	return grade.Grade{}, grade.ErrNotFound
}

func (repo *gradeRepository) QueryGrades(_ context.Context, filter grade.QueryFilter, _ ...core.DBExecutor) ([]grade.Grade, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	grades := make([]grade.Grade, 0)
	for _, g := range repo.db.grades {
		s := repo.db.students[g.StudentID]
		switch {
		case filter.StudentID != "" && g.StudentID != filter.StudentID,
			filter.Subject != "" && !strings.EqualFold(g.Subject, filter.Subject),
			filter.Term != 0 && g.Term != filter.Term,
			filter.ClassName != "" && s.ClassName != filter.ClassName:
			continue
		}
		g.StudentName = s.Name
		grades = append(grades, g)
	}
	sort.Slice(grades, func(i, j int) bool {
		a, b := grades[i], grades[j]
		if a.StudentName != b.StudentName {
			return a.StudentName < b.StudentName
		}
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		if a.Term != b.Term {
			return a.Term < b.Term
		}
		return a.ID < b.ID
	})
	return grades, nil
}

func (repo *gradeRepository) UpdateGrade(_ context.Context, g grade.Grade, _ ...core.DBExecutor) (grade.Grade, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.grades[g.ID]; !ok {
		return grade.Grade{}, grade.ErrNotFound
	}
	repo.db.grades[g.ID] = g
	return g, nil
}

func (repo *gradeRepository) DeleteGrade(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.grades[id]; !ok {
		return grade.ErrNotFound
	}
	delete(repo.db.grades, id)
	return nil
}

func (repo *gradeRepository) DeleteByStudents(_ context.Context, studentIDs []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	ids := idSet(studentIDs)
	var n int
	for id, g := range repo.db.grades {
		if ids[g.StudentID] {
			delete(repo.db.grades, id)
			n++
		}
	}
	return n, nil
}
