package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/enrollment"
)

const (
	guardianColumns = `id, name, tax_id, phone, email, created_at, updated_at`
	studentSelect   = `SELECT s.id, s.name, s.class_name, s.birth_date, s.guardian_id, s.created_at, s.updated_at,
		g.name AS g_name, g.tax_id AS g_tax_id, g.phone AS g_phone, g.email AS g_email,
		g.created_at AS g_created_at, g.updated_at AS g_updated_at
	FROM student s LEFT JOIN guardian g ON g.id = s.guardian_id`
)

type guardianRow struct {
	ID        string    `boil:"id"`
	Name      string    `boil:"name"`
	TaxID     string    `boil:"tax_id"`
	Phone     string    `boil:"phone"`
	Email     string    `boil:"email"`
	CreatedAt time.Time `boil:"created_at"`
	UpdatedAt time.Time `boil:"updated_at"`
}

type studentRow struct {
	ID         string    `boil:"id"`
	Name       string    `boil:"name"`
	ClassName  string    `boil:"class_name"`
	BirthDate  core.Date `boil:"birth_date"`
	GuardianID string    `boil:"guardian_id"`
	CreatedAt  time.Time `boil:"created_at"`
	UpdatedAt  time.Time `boil:"updated_at"`

	GName      null.String `boil:"g_name"`
	GTaxID     null.String `boil:"g_tax_id"`
	GPhone     null.String `boil:"g_phone"`
	GEmail     null.String `boil:"g_email"`
	GCreatedAt null.Time   `boil:"g_created_at"`
	GUpdatedAt null.Time   `boil:"g_updated_at"`
}

type enrollmentRepository struct {
	repository
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(exec core.DBExecutor) *enrollmentRepository {
	return &enrollmentRepository{repository{exec: exec}}
}

func (repo enrollmentRepository) unboilGuardian(row guardianRow) enrollment.Guardian {
	return enrollment.Guardian{
		ID:        row.ID,
		Name:      row.Name,
		TaxID:     row.TaxID,
		Phone:     row.Phone,
		Email:     row.Email,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func (repo enrollmentRepository) unboilStudent(row studentRow) enrollment.Student {
	s := enrollment.Student{
		ID:         row.ID,
		Name:       row.Name,
		ClassName:  row.ClassName,
		BirthDate:  row.BirthDate,
		GuardianID: row.GuardianID,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if row.GName.Valid {
		s.Guardian = &enrollment.Guardian{
			ID:        row.GuardianID,
			Name:      row.GName.String,
			TaxID:     row.GTaxID.String,
			Phone:     row.GPhone.String,
			Email:     row.GEmail.String,
			CreatedAt: row.GCreatedAt.Time,
			UpdatedAt: row.GUpdatedAt.Time,
		}
	}
	return s
}

func (repo enrollmentRepository) unboilStudents(rows []studentRow) []enrollment.Student {
	students := make([]enrollment.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, repo.unboilStudent(row))
	}
	return students
}

func (repo enrollmentRepository) CreateGuardian(ctx context.Context, g enrollment.Guardian, exec ...core.DBExecutor) (enrollment.Guardian, error) {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	q := "INSERT INTO guardian (" + guardianColumns + ") VALUES ($1, $2, $3, $4, $5, $6, $7)"
	_, err := queries.Raw(q, g.ID, g.Name, g.TaxID, g.Phone, g.Email, g.CreatedAt.UTC(), g.UpdatedAt.UTC()).
		ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return enrollment.Guardian{}, errors.Wrap(err, "inserting guardian")
	}
	return g, nil
}

func (repo enrollmentRepository) GetGuardian(ctx context.Context, id string, exec ...core.DBExecutor) (enrollment.Guardian, error) {
	if !isUUID(id) {
		return enrollment.Guardian{}, enrollment.ErrGuardianNotFound
	}
	var row guardianRow
	q := "SELECT " + guardianColumns + " FROM guardian WHERE id = $1"
	if err := queries.Raw(q, id).Bind(ctx, repo.getExec(exec), &row); err != nil {
		return enrollment.Guardian{}, trapNoRowsErr(err, enrollment.ErrGuardianNotFound, "finding guardian")
	}
	return repo.unboilGuardian(row), nil
}

func (repo enrollmentRepository) QueryGuardians(ctx context.Context, search string, exec ...core.DBExecutor) ([]enrollment.Guardian, error) {
	var c conditions
	if search != "" {
		val := "%" + search + "%"
		c.add("(name ILIKE ? OR tax_id ILIKE ? OR phone ILIKE ?)", val, val, val)
	}

	var rows []guardianRow
	q := "SELECT " + guardianColumns + " FROM guardian" + c.where() + " ORDER BY name ASC"
	if err := queries.Raw(q, c.args...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying guardians")
	}
	guardians := make([]enrollment.Guardian, 0, len(rows))
	for _, row := range rows {
		guardians = append(guardians, repo.unboilGuardian(row))
	}
	return guardians, nil
}

func (repo enrollmentRepository) UpdateGuardian(ctx context.Context, g enrollment.Guardian, exec ...core.DBExecutor) (enrollment.Guardian, error) {
	q := "UPDATE guardian SET name = $2, tax_id = $3, phone = $4, email = $5, updated_at = $6 WHERE id = $1"
	res, err := queries.Raw(q, g.ID, g.Name, g.TaxID, g.Phone, g.Email, g.UpdatedAt.UTC()).
		ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return enrollment.Guardian{}, errors.Wrap(err, "updating guardian")
	}
	n, err := affected(res, "updating guardian")
	if err == nil && n == 0 {
		err = enrollment.ErrGuardianNotFound
	}
	if err != nil {
		return enrollment.Guardian{}, err
	}
	return g, nil
}

func (repo enrollmentRepository) DeleteGuardian(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return enrollment.ErrGuardianNotFound
	}
	res, err := queries.Raw("DELETE FROM guardian WHERE id = $1", id).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return errors.Wrap(err, "deleting guardian")
	}
	n, err := affected(res, "deleting guardian")
	if err == nil && n == 0 {
		err = enrollment.ErrGuardianNotFound
	}
	return err
}

func (repo enrollmentRepository) CreateStudent(ctx context.Context, s enrollment.Student, exec ...core.DBExecutor) (enrollment.Student, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	q := `INSERT INTO student (id, name, class_name, birth_date, guardian_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := queries.Raw(q, s.ID, s.Name, s.ClassName, s.BirthDate, s.GuardianID, s.CreatedAt.UTC(), s.UpdatedAt.UTC()).
		ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return enrollment.Student{}, errors.Wrap(err, "inserting student")
	}
	return s, nil
}

func (repo enrollmentRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (enrollment.Student, error) {
	if !isUUID(id) {
		return enrollment.Student{}, enrollment.ErrStudentNotFound
	}
	var row studentRow
	if err := queries.Raw(studentSelect+" WHERE s.id = $1", id).Bind(ctx, repo.getExec(exec), &row); err != nil {
		return enrollment.Student{}, trapNoRowsErr(err, enrollment.ErrStudentNotFound, "finding student")
	}
	return repo.unboilStudent(row), nil
}

func (repo enrollmentRepository) QueryStudents(
	ctx context.Context,
	filter *enrollment.StudentFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]enrollment.Student, error) {
	var c conditions
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			c.add("(s.name ILIKE ? OR g.name ILIKE ?)", val, val)
		}
		if filter.ClassName != "" {
			c.add("s.class_name = ?", filter.ClassName)
		}
		if filter.GuardianID != "" {
			if !isUUID(filter.GuardianID) {
				return []enrollment.Student{}, nil
			}
			c.add("s.guardian_id = ?", filter.GuardianID)
		}
	}

	var rows []studentRow
	q := studentSelect + c.where() + orderBy(ordering, "s.")
	if err := queries.Raw(q, c.args...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return repo.unboilStudents(rows), nil
}

func (repo enrollmentRepository) UpdateStudent(ctx context.Context, s enrollment.Student, exec ...core.DBExecutor) (enrollment.Student, error) {
	q := "UPDATE student SET name = $2, class_name = $3, birth_date = $4, guardian_id = $5, updated_at = $6 WHERE id = $1"
	res, err := queries.Raw(q, s.ID, s.Name, s.ClassName, s.BirthDate, s.GuardianID, s.UpdatedAt.UTC()).
		ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return enrollment.Student{}, errors.Wrap(err, "updating student")
	}
	n, err := affected(res, "updating student")
	if err == nil && n == 0 {
		err = enrollment.ErrStudentNotFound
	}
	if err != nil {
		return enrollment.Student{}, err
	}
	return repo.GetStudent(ctx, s.ID, exec...)
}

func (repo enrollmentRepository) DeleteStudents(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	var c conditions
	c.in("id", filterUUIDs(ids))
	res, err := queries.Raw("DELETE FROM student"+c.where(), c.args...).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return 0, errors.Wrap(err, "deleting students")
	}
	return affected(res, "deleting students")
}

func (repo enrollmentRepository) ListClasses(ctx context.Context, exec ...core.DBExecutor) ([]string, error) {
	var rows []struct {
		ClassName string `boil:"class_name"`
	}
	q := "SELECT DISTINCT class_name FROM student WHERE class_name <> '' ORDER BY class_name ASC"
	if err := queries.Raw(q).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "listing classes")
	}
	classes := make([]string, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.ClassName)
	}
	return classes, nil
}

func (repo enrollmentRepository) FindStudentsByCredentials(
	ctx context.Context,
	taxID string,
	birthDate core.Date,
	exec ...core.DBExecutor,
) ([]enrollment.Student, error) {
	var rows []studentRow
	q := studentSelect + " WHERE g.tax_id = $1 AND s.birth_date = $2 ORDER BY s.name ASC"
	if err := queries.Raw(q, taxID, birthDate).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "finding students by credentials")
	}
	return repo.unboilStudents(rows), nil
}
