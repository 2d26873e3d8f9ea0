package grade

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/enrollment"
)

var (
	ErrNotFound = errors.New("grade not found")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateGrades(ctx context.Context, grades []Grade, exec ...core.DBExecutor) ([]Grade, error)
		GetGrade(ctx context.Context, id string, exec ...core.DBExecutor) (Grade, error)
		// QueryGrades applies AND operation on the QueryFilter fields, ordered by student name, subject then term.
		QueryGrades(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Grade, error)
		UpdateGrade(ctx context.Context, g Grade, exec ...core.DBExecutor) (Grade, error)
		DeleteGrade(ctx context.Context, id string, exec ...core.DBExecutor) error
		DeleteByStudents(ctx context.Context, studentIDs []string, exec ...core.DBExecutor) (int, error)
	}

	StudentFinder interface {
		GetStudent(ctx context.Context, id string) (enrollment.Student, error)
	}

	Service interface {
		// RecordTerm stores the scored entries of a subject/term at once.
		RecordTerm(ctx context.Context, nt NewTermGrades) ([]Grade, error)
		Get(ctx context.Context, id string) (Grade, error)
		Query(ctx context.Context, filter *QueryFilter) ([]Grade, error)
		Update(ctx context.Context, orig Grade, ug UpdateGrade) (Grade, error)
		Delete(ctx context.Context, id string) error
		ReportCard(ctx context.Context, studentID string) ([]ReportRow, error)
	}

	service struct {
		tx       core.Transactor
		repo     Repository
		students StudentFinder
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil)

func NewService(tx core.Transactor, repo Repository, students StudentFinder, validate *validator.Validate) Service {
	return &service{tx: tx, repo: repo, students: students, validate: validate}
}

func (svc *service) RecordTerm(ctx context.Context, nt NewTermGrades) ([]Grade, error) {
	if err := nt.Validate(svc.validate); err != nil {
		return nil, err
	}

	now := NowFunc().UTC()
	grades := make([]Grade, 0, len(nt.Entries))
	for i, e := range nt.Entries {
		if _, err := svc.students.GetStudent(ctx, e.StudentID); err != nil {
			if errors.Is(err, enrollment.ErrStudentNotFound) {
				return nil, core.NewValidationError(err, core.FieldError{
					Field: fmt.Sprintf("entries[%d].student_id", i),
					Error: err.Error(),
				})
			}
			return nil, errors.Wrap(err, "getting student")
		}
		grades = append(grades, Grade{
			StudentID: e.StudentID,
			Subject:   nt.Subject,
			Term:      nt.Term,
			Score:     *e.Score,
			Absences:  e.Absences,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	var created []Grade
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		created, err = svc.repo.CreateGrades(ctx, grades, exec)
		return errors.Wrap(err, "creating grades")
	})
	return created, err
}

func (svc *service) Get(ctx context.Context, id string) (Grade, error) {
	return svc.repo.GetGrade(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Grade, error) {
	var qf QueryFilter
	if filter != nil {
		filter.Clean()
		qf = *filter
	}
	grades, err := svc.repo.QueryGrades(ctx, qf)
	return grades, errors.Wrap(err, "querying grades")
}

func (svc *service) Update(ctx context.Context, orig Grade, ug UpdateGrade) (Grade, error) {
	if err := ug.Validate(svc.validate); err != nil {
		return Grade{}, err
	}
	g := orig
	g.Score = ug.Score
	g.Absences = ug.Absences
	g.UpdatedAt = NowFunc().UTC()

	g, err := svc.repo.UpdateGrade(ctx, g)
	return g, errors.Wrap(err, "updating grade")
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteGrade(ctx, id)
}

func (svc *service) ReportCard(ctx context.Context, studentID string) ([]ReportRow, error) {
	if _, err := svc.students.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	grades, err := svc.repo.QueryGrades(ctx, QueryFilter{StudentID: studentID})
	if err != nil {
		return nil, errors.Wrap(err, "querying student grades")
	}
	return ReportCard(grades), nil
}
