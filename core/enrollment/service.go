package enrollment

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/agape/core"
)

var (
	ErrStudentNotFound  = errors.New("student not found")
	ErrGuardianNotFound = errors.New("guardian not found")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateGuardian(ctx context.Context, g Guardian, exec ...core.DBExecutor) (Guardian, error)
		GetGuardian(ctx context.Context, id string, exec ...core.DBExecutor) (Guardian, error)
		// QueryGuardians does a case-insensitive match of search on the name, tax id or phone.
		QueryGuardians(ctx context.Context, search string, exec ...core.DBExecutor) ([]Guardian, error)
		UpdateGuardian(ctx context.Context, g Guardian, exec ...core.DBExecutor) (Guardian, error)
		DeleteGuardian(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		// GetStudent returns the Student with its Guardian set.
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		QueryStudents(ctx context.Context, filter *StudentFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Student, error)
		UpdateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		DeleteStudents(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
		ListClasses(ctx context.Context, exec ...core.DBExecutor) ([]string, error)
		// FindStudentsByCredentials returns the students born on birthDate whose Guardian has taxID, ordered by name.
		FindStudentsByCredentials(ctx context.Context, taxID string, birthDate core.Date, exec ...core.DBExecutor) ([]Student, error)
	}

	// Dependent is owned by students and must be deleted before them (charges, grades).
	Dependent interface {
		DeleteByStudents(ctx context.Context, studentIDs []string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		Enroll(ctx context.Context, ne NewEnrollment) (Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		QueryStudents(ctx context.Context, filter *StudentFilter, ordering []core.DBOrdering) ([]Student, error)
		UpdateStudent(ctx context.Context, orig Student, us UpdateStudent) (Student, error)
		DeleteStudent(ctx context.Context, id string) error
		ListClasses(ctx context.Context) ([]string, error)

		GetGuardian(ctx context.Context, id string) (Guardian, error)
		QueryGuardians(ctx context.Context, search string) ([]Guardian, error)
		UpdateGuardian(ctx context.Context, orig Guardian, ug UpdateGuardian) (Guardian, error)
		DeleteGuardian(ctx context.Context, id string) error

		// FindByCredentials is the guardian portal lookup.
		FindByCredentials(ctx context.Context, taxID string, birthDate core.Date) (Student, error)
		// Payer returns the Student and the Guardian financially responsible for them.
		Payer(ctx context.Context, studentID string) (Student, Guardian, error)
	}

	service struct {
		tx         core.Transactor
		repo       Repository
		dependents []Dependent
		logger     core.Logger
		validate   *validator.Validate
	}
)

var _ Service = (*service)(nil)

func NewService(
	tx core.Transactor,
	repo Repository,
	logger core.Logger,
	validate *validator.Validate,
	dependents ...Dependent,
) Service {
	return &service{
		tx:         tx,
		repo:       repo,
		dependents: dependents,
		logger:     logger,
		validate:   validate,
	}
}

func (svc *service) Enroll(ctx context.Context, ne NewEnrollment) (Student, error) {
	if err := ne.Validate(svc.validate); err != nil {
		return Student{}, err
	}

	now := NowFunc().UTC()
	var stdnt Student
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var grdn Guardian
		var err error

		if ne.GuardianID != "" {
			grdn, err = svc.repo.GetGuardian(ctx, ne.GuardianID, exec)
			if err != nil {
				if errors.Is(err, ErrGuardianNotFound) {
					return core.NewValidationError(err, core.FieldError{Field: "guardian_id", Error: err.Error()})
				}
				return errors.Wrap(err, "getting guardian")
			}
		} else {
			grdn, err = svc.repo.CreateGuardian(ctx, Guardian{
				Name:      ne.Guardian.Name,
				TaxID:     ne.Guardian.TaxID,
				Phone:     ne.Guardian.Phone,
				Email:     ne.Guardian.Email,
				CreatedAt: now,
				UpdatedAt: now,
			}, exec)
			if err != nil {
				return errors.Wrap(err, "creating guardian")
			}
		}

		stdnt, err = svc.repo.CreateStudent(ctx, Student{
			Name:       ne.Student.Name,
			ClassName:  ne.Student.ClassName,
			BirthDate:  ne.Student.BirthDate,
			GuardianID: grdn.ID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating student")
		}
		stdnt.Guardian = &grdn
		return nil
	})
	return stdnt, err
}

func (svc *service) GetStudent(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *service) QueryStudents(ctx context.Context, filter *StudentFilter, ordering []core.DBOrdering) ([]Student, error) {
	if filter != nil {
		filter.Clean()
	}
	allowed := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if StudentOrderings[ord.Field] {
			allowed = append(allowed, ord)
		}
	}
	if len(allowed) == 0 {
		allowed = append(allowed, core.DBOrdering{Field: "name", Ascending: true})
	}
	return svc.repo.QueryStudents(ctx, filter, allowed)
}

func (svc *service) UpdateStudent(ctx context.Context, orig Student, us UpdateStudent) (Student, error) {
	if err := us.Validate(orig, svc.validate); err != nil {
		return Student{}, err
	}
	if us.GuardianID != orig.GuardianID {
		if _, err := svc.repo.GetGuardian(ctx, us.GuardianID); err != nil {
			if errors.Is(err, ErrGuardianNotFound) {
				return Student{}, core.NewValidationError(err, core.FieldError{Field: "guardian_id", Error: err.Error()})
			}
			return Student{}, errors.Wrap(err, "getting guardian")
		}
	}

	stdnt := orig
	stdnt.Name = us.Name
	stdnt.ClassName = us.ClassName
	stdnt.BirthDate = us.BirthDate
	stdnt.GuardianID = us.GuardianID
	stdnt.UpdatedAt = NowFunc().UTC()
	stdnt.Guardian = nil

	if _, err := svc.repo.UpdateStudent(ctx, stdnt); err != nil {
		return Student{}, errors.Wrap(err, "updating student")
	}
	return svc.repo.GetStudent(ctx, stdnt.ID)
}

// DeleteStudent deletes the student's dependents, then the student, atomically.
func (svc *service) DeleteStudent(ctx context.Context, id string) error {
	return svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.GetStudent(ctx, id, exec); err != nil {
			return err
		}
		return svc.deleteStudents(ctx, []string{id}, exec)
	})
}

func (svc *service) deleteStudents(ctx context.Context, ids []string, exec core.DBExecutor) error {
	if len(ids) == 0 {
		return nil
	}
	for _, dep := range svc.dependents {
		if _, err := dep.DeleteByStudents(ctx, ids, exec); err != nil {
			return errors.Wrap(err, "deleting student dependents")
		}
	}
	if _, err := svc.repo.DeleteStudents(ctx, ids, exec); err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return nil
}

func (svc *service) ListClasses(ctx context.Context) ([]string, error) {
	return svc.repo.ListClasses(ctx)
}

func (svc *service) GetGuardian(ctx context.Context, id string) (Guardian, error) {
	return svc.repo.GetGuardian(ctx, id)
}

func (svc *service) QueryGuardians(ctx context.Context, search string) ([]Guardian, error) {
	return svc.repo.QueryGuardians(ctx, core.CleanString(search))
}

func (svc *service) UpdateGuardian(ctx context.Context, orig Guardian, ug UpdateGuardian) (Guardian, error) {
	if err := ug.Validate(orig, svc.validate); err != nil {
		return Guardian{}, err
	}

	grdn := orig
	grdn.Name = ug.Name
	grdn.TaxID = ug.TaxID
	grdn.Phone = ug.Phone
	grdn.Email = ug.Email
	grdn.UpdatedAt = NowFunc().UTC()

	grdn, err := svc.repo.UpdateGuardian(ctx, grdn)
	return grdn, errors.Wrap(err, "updating guardian")
}

// DeleteGuardian deletes every student of the guardian (with their dependents), then the guardian, atomically.
func (svc *service) DeleteGuardian(ctx context.Context, id string) error {
	return svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.GetGuardian(ctx, id, exec); err != nil {
			return err
		}

		students, err := svc.repo.QueryStudents(ctx, &StudentFilter{GuardianID: id}, nil, exec)
		if err != nil {
			return errors.Wrap(err, "querying guardian students")
		}
		ids := make([]string, 0, len(students))
		for _, s := range students {
			ids = append(ids, s.ID)
		}
		if err = svc.deleteStudents(ctx, ids, exec); err != nil {
			return err
		}
		return errors.Wrap(svc.repo.DeleteGuardian(ctx, id, exec), "deleting guardian")
	})
}

func (svc *service) FindByCredentials(ctx context.Context, taxID string, birthDate core.Date) (Student, error) {
	taxID = core.DigitsOnly(taxID)
	if taxID == "" || birthDate.IsZero() {
		return Student{}, ErrStudentNotFound
	}

	students, err := svc.repo.FindStudentsByCredentials(ctx, taxID, birthDate)
	if err != nil {
		return Student{}, errors.Wrap(err, "finding students by credentials")
	}
	if len(students) == 0 {
		return Student{}, ErrStudentNotFound
	}
	if len(students) > 1 {
		svc.logger.Warn("several students match the same portal credentials", map[string]interface{}{
			"student_ids": studentIDs(students),
		})
	}
	return students[0], nil
}

func (svc *service) Payer(ctx context.Context, studentID string) (Student, Guardian, error) {
	stdnt, err := svc.repo.GetStudent(ctx, studentID)
	if err != nil {
		return Student{}, Guardian{}, err
	}
	if stdnt.Guardian != nil {
		return stdnt, *stdnt.Guardian, nil
	}
	grdn, err := svc.repo.GetGuardian(ctx, stdnt.GuardianID)
	if err != nil {
		return Student{}, Guardian{}, errors.Wrap(err, "getting student guardian")
	}
	return stdnt, grdn, nil
}

func studentIDs(students []Student) []string {
	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	return ids
}
