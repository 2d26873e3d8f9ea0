package portal

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/announcement"
	"github.com/trezcool/agape/core/billing"
	"github.com/trezcool/agape/core/enrollment"
	"github.com/trezcool/agape/core/grade"
)

const dashboardAnnouncements = 3

var (
	ErrInvalidCredentials = errors.New("no student matches these credentials")
	ErrTooManyAttempts    = errors.New("too many login attempts, try again later")
)

type (
	// Limiter throttles login attempts per key.
	Limiter interface {
		// Allow records an attempt for key and reports whether it is still within the limit.
		Allow(ctx context.Context, key string) (bool, error)
		Reset(ctx context.Context, key string) error
	}

	// Credentials identify a student in the guardian portal: the guardian's tax id and the student's birth date.
	Credentials struct {
		TaxID     string    `json:"tax_id" validate:"required,taxid"`
		BirthDate core.Date `json:"birth_date" validate:"required"`
	}

	// Identity is what a portal session is bound to.
	Identity struct {
		StudentID   string `json:"student_id"`
		GuardianID  string `json:"guardian_id"`
		StudentName string `json:"student_name"`
	}

	Dashboard struct {
		Student       enrollment.Student          `json:"student"`
		Charges       []billing.ChargeView        `json:"charges"` // newest due date first
		Grades        []grade.Grade               `json:"grades"`
		ReportCard    []grade.ReportRow           `json:"report_card"`
		Announcements []announcement.Announcement `json:"announcements"`
	}

	Service interface {
		Login(ctx context.Context, cr Credentials) (Identity, error)
		Dashboard(ctx context.Context, studentID string) (Dashboard, error)
	}

	service struct {
		students      enrollment.Service
		charges       billing.Service
		grades        grade.Service
		announcements announcement.Service
		limiter       Limiter
		logger        core.Logger
		validate      *validator.Validate
	}
)

var _ Service = (*service)(nil)

func NewService(
	students enrollment.Service,
	charges billing.Service,
	grades grade.Service,
	announcements announcement.Service,
	limiter Limiter,
	logger core.Logger,
	validate *validator.Validate,
) Service {
	return &service{
		students:      students,
		charges:       charges,
		grades:        grades,
		announcements: announcements,
		limiter:       limiter,
		logger:        logger,
		validate:      validate,
	}
}

func (svc *service) Login(ctx context.Context, cr Credentials) (Identity, error) {
	cr.TaxID = core.DigitsOnly(cr.TaxID)
	if err := svc.validate.Struct(cr); err != nil {
		return Identity{}, err
	}

	key := "portal:login:" + cr.TaxID
	ok, err := svc.limiter.Allow(ctx, key)
	if err != nil {
		// a broken limiter must not lock guardians out
		svc.logger.Error("portal login limiter failed", err)
	} else if !ok {
		return Identity{}, ErrTooManyAttempts
	}

	stdnt, err := svc.students.FindByCredentials(ctx, cr.TaxID, cr.BirthDate)
	if err != nil {
		if errors.Is(err, enrollment.ErrStudentNotFound) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, errors.Wrap(err, "finding student by credentials")
	}

	if err = svc.limiter.Reset(ctx, key); err != nil {
		svc.logger.Error("portal login limiter reset failed", err)
	}
	return Identity{StudentID: stdnt.ID, GuardianID: stdnt.GuardianID, StudentName: stdnt.Name}, nil
}

func (svc *service) Dashboard(ctx context.Context, studentID string) (Dashboard, error) {
	stdnt, err := svc.students.GetStudent(ctx, studentID)
	if err != nil {
		return Dashboard{}, err
	}

	charges, err := svc.charges.Query(ctx, &billing.QueryFilter{StudentID: studentID})
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "querying charges")
	}
	for i, j := 0, len(charges)-1; i < j; i, j = i+1, j-1 {
		charges[i], charges[j] = charges[j], charges[i]
	}

	grades, err := svc.grades.Query(ctx, &grade.QueryFilter{StudentID: studentID})
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "querying grades")
	}

	anns, err := svc.announcements.List(ctx, dashboardAnnouncements)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "listing announcements")
	}

	return Dashboard{
		Student:       stdnt,
		Charges:       charges,
		Grades:        grades,
		ReportCard:    grade.ReportCard(grades),
		Announcements: anns,
	}, nil
}
