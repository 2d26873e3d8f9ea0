package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/grade"
)

const gradeSelect = `SELECT gr.id, gr.student_id, gr.subject, gr.term, gr.score, gr.absences, gr.created_at, gr.updated_at,
		COALESCE(s.name, '') AS student_name
	FROM grade gr LEFT JOIN student s ON s.id = gr.student_id`

type gradeRow struct {
	ID          string          `boil:"id"`
	StudentID   string          `boil:"student_id"`
	Subject     string          `boil:"subject"`
	Term        int             `boil:"term"`
	Score       decimal.Decimal `boil:"score"`
	Absences    int             `boil:"absences"`
	CreatedAt   time.Time       `boil:"created_at"`
	UpdatedAt   time.Time       `boil:"updated_at"`
	StudentName string          `boil:"student_name"`
}

type gradeRepository struct {
	repository
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(exec core.DBExecutor) *gradeRepository {
	return &gradeRepository{repository{exec: exec}}
}

func (repo gradeRepository) unboil(row gradeRow) grade.Grade {
	return grade.Grade{
		ID:          row.ID,
		StudentID:   row.StudentID,
		Subject:     row.Subject,
		Term:        row.Term,
		Score:       row.Score,
		Absences:    row.Absences,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		StudentName: row.StudentName,
	}
}

func (repo gradeRepository) CreateGrades(ctx context.Context, grades []grade.Grade, exec ...core.DBExecutor) ([]grade.Grade, error) {
	exe := repo.getExec(exec)
	q := `INSERT INTO grade (id, student_id, subject, term, score, absences, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	created := make([]grade.Grade, 0, len(grades))
	for _, g := range grades {
		if g.ID == "" {
			g.ID = uuid.New().String()
		}
		_, err := queries.Raw(q, g.ID, g.StudentID, g.Subject, g.Term, g.Score, g.Absences, g.CreatedAt.UTC(), g.UpdatedAt.UTC()).
			ExecContext(ctx, exe)
		if err != nil {
			return nil, errors.Wrap(err, "inserting grade")
		}
		created = append(created, g)
	}
	return created, nil
}

func (repo gradeRepository) GetGrade(ctx context.Context, id string, exec ...core.DBExecutor) (grade.Grade, error) {
	if !isUUID(id) {
		return grade.Grade{}, grade.ErrNotFound
	}
	var row gradeRow
	if err := queries.Raw(gradeSelect+" WHERE gr.id = $1", id).Bind(ctx, repo.getExec(exec), &row); err != nil {
		return grade.Grade{}, trapNoRowsErr(err, grade.ErrNotFound, "finding grade")
	}
	return repo.unboil(row), nil
}

func (repo gradeRepository) QueryGrades(ctx context.Context, filter grade.QueryFilter, exec ...core.DBExecutor) ([]grade.Grade, error) {
	var c conditions
	if filter.StudentID != "" {
		if !isUUID(filter.StudentID) {
			return []grade.Grade{}, nil
		}
		c.add("gr.student_id = ?", filter.StudentID)
	}
	if filter.Subject != "" {
		c.add("gr.subject ILIKE ?", filter.Subject)
	}
	if filter.Term != 0 {
		c.add("gr.term = ?", filter.Term)
	}
	if filter.ClassName != "" {
		c.add("s.class_name = ?", filter.ClassName)
	}

	var rows []gradeRow
	q := gradeSelect + c.where() + " ORDER BY s.name ASC, gr.subject ASC, gr.term ASC"
	if err := queries.Raw(q, c.args...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	grades := make([]grade.Grade, 0, len(rows))
	for _, row := range rows {
		grades = append(grades, repo.unboil(row))
	}
	return grades, nil
}

func (repo gradeRepository) UpdateGrade(ctx context.Context, g grade.Grade, exec ...core.DBExecutor) (grade.Grade, error) {
	q := "UPDATE grade SET score = $2, absences = $3, updated_at = $4 WHERE id = $1"
	res, err := queries.Raw(q, g.ID, g.Score, g.Absences, g.UpdatedAt.UTC()).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return grade.Grade{}, errors.Wrap(err, "updating grade")
	}
	n, err := affected(res, "updating grade")
	if err == nil && n == 0 {
		err = grade.ErrNotFound
	}
	if err != nil {
		return grade.Grade{}, err
	}
	return g, nil
}

func (repo gradeRepository) DeleteGrade(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return grade.ErrNotFound
	}
	res, err := queries.Raw("DELETE FROM grade WHERE id = $1", id).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return errors.Wrap(err, "deleting grade")
	}
	n, err := affected(res, "deleting grade")
	if err == nil && n == 0 {
		err = grade.ErrNotFound
	}
	return err
}

func (repo gradeRepository) DeleteByStudents(ctx context.Context, studentIDs []string, exec ...core.DBExecutor) (int, error) {
	var c conditions
	c.in("student_id", filterUUIDs(studentIDs))
	res, err := queries.Raw("DELETE FROM grade"+c.where(), c.args...).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return 0, errors.Wrap(err, "deleting student grades")
	}
	return affected(res, "deleting student grades")
}
