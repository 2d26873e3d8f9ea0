package portal_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/announcement"
	"github.com/trezcool/agape/core/billing"
	"github.com/trezcool/agape/core/enrollment"
	"github.com/trezcool/agape/core/grade"
	"github.com/trezcool/agape/core/portal"
	"github.com/trezcool/agape/services/ratelimit"
	inmemdb "github.com/trezcool/agape/storage/database/inmem"
	"github.com/trezcool/agape/testutil"
)

type testEnv struct {
	svc           portal.Service
	enrollment    enrollment.Repository
	charges       billing.Repository
	announcements announcement.Service
}

func setup(t *testing.T, limiter portal.Limiter) *testEnv {
	t.Helper()
	conf := testutil.Config()
	validate, _ := testutil.NewValidator(conf)
	logger := testutil.NopLogger{}
	db := inmemdb.Open()

	env := &testEnv{
		enrollment: inmemdb.NewEnrollmentRepository(db),
		charges:    inmemdb.NewChargeRepository(db),
	}
	grades := inmemdb.NewGradeRepository(db)
	enrollSvc := enrollment.NewService(db, env.enrollment, logger, validate, env.charges, grades)
	billingSvc := billing.NewService(
		db, env.charges, inmemdb.NewReportRepository(db), new(testutil.FakeGateway), enrollSvc, logger, validate, conf,
	)
	env.announcements = announcement.NewService(inmemdb.NewAnnouncementRepository(db), validate)
	env.svc = portal.NewService(
		enrollSvc, billingSvc, grade.NewService(db, grades, enrollSvc, validate), env.announcements,
		limiter, logger, validate,
	)
	return env
}

// brokenLimiter stands for an unreachable redis.
type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) { return false, errors.New("dial tcp: refused") }
func (brokenLimiter) Reset(context.Context, string) error         { return errors.New("dial tcp: refused") }

func creds(taxID, birthDate string) portal.Credentials {
	cr := portal.Credentials{TaxID: taxID}
	if birthDate != "" {
		cr.BirthDate = core.MustParseDate(birthDate)
	}
	return cr
}

func Test_service_Login(t *testing.T) {
	env := setup(t, ratelimit.NewMemoryLimiter(3, time.Minute))
	ctx := context.Background()

	grdn := testutil.CreateGuardian(t, env.enrollment, "Maria Souza", "12345678909", "")
	pedro := testutil.CreateStudent(t, env.enrollment, "Pedro Souza", "3A", "2015-04-02", grdn.ID)

	id, err := env.svc.Login(ctx, creds("123.456.789-09", "2015-04-02"))
	require.NoError(t, err)
	assert.Equal(t, portal.Identity{StudentID: pedro.ID, GuardianID: grdn.ID, StudentName: "Pedro Souza"}, id)

	_, err = env.svc.Login(ctx, creds("123", "2015-04-02"))
	assert.Error(t, err)
	_, err = env.svc.Login(ctx, creds("12345678909", ""))
	assert.Error(t, err)

	t.Run("throttled per tax id", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_, err := env.svc.Login(ctx, creds("12345678909", "2000-01-01"))
			assert.Equal(t, portal.ErrInvalidCredentials, err)
		}
		// a success resets the counter
		_, err := env.svc.Login(ctx, creds("12345678909", "2015-04-02"))
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			_, err := env.svc.Login(ctx, creds("12345678909", "2000-01-01"))
			assert.Equal(t, portal.ErrInvalidCredentials, err)
		}
		_, err = env.svc.Login(ctx, creds("12345678909", "2015-04-02"))
		assert.Equal(t, portal.ErrTooManyAttempts, err)

		_, err = env.svc.Login(ctx, creds("98765432100", "2015-04-02"))
		assert.Equal(t, portal.ErrInvalidCredentials, err)
	})
}

func Test_service_LoginWithBrokenLimiter(t *testing.T) {
	env := setup(t, brokenLimiter{})
	grdn := testutil.CreateGuardian(t, env.enrollment, "Maria Souza", "12345678909", "")
	testutil.CreateStudent(t, env.enrollment, "Pedro Souza", "3A", "2015-04-02", grdn.ID)

	_, err := env.svc.Login(context.Background(), creds("12345678909", "2015-04-02"))
	assert.NoError(t, err)
}

func Test_service_Dashboard(t *testing.T) {
	env := setup(t, ratelimit.NewMemoryLimiter(3, time.Minute))
	ctx := context.Background()

	grdn := testutil.CreateGuardian(t, env.enrollment, "Maria Souza", "12345678909", "")
	pedro := testutil.CreateStudent(t, env.enrollment, "Pedro Souza", "3A", "2015-04-02", grdn.ID)
	bia := testutil.CreateStudent(t, env.enrollment, "Bia Souza", "5A", "2013-08-30", grdn.ID)

	jan := testutil.CreateCharge(t, env.charges, pedro.ID, "450.00", "2024-01-10", "", time.Now())
	later := testutil.CreateCharge(t, env.charges, pedro.ID, "450.00", "2099-01-10", "")
	testutil.CreateCharge(t, env.charges, bia.ID, "450.00", "2024-01-10", "")

	for _, title := range []string{"Reunião", "Feriado", "Festa junina", "Provas"} {
		_, err := env.announcements.Create(ctx, announcement.NewAnnouncement{Title: title, Body: title})
		require.NoError(t, err)
	}

	dash, err := env.svc.Dashboard(ctx, pedro.ID)
	require.NoError(t, err)
	assert.Equal(t, pedro.ID, dash.Student.ID)
	require.Len(t, dash.Charges, 2)
	assert.Equal(t, later.ID, dash.Charges[0].ID)
	assert.Equal(t, billing.StatusPending, dash.Charges[0].EffectiveStatus)
	assert.Equal(t, jan.ID, dash.Charges[1].ID)
	assert.Equal(t, billing.StatusPaid, dash.Charges[1].EffectiveStatus)
	assert.Empty(t, dash.Grades)
	assert.Empty(t, dash.ReportCard)
	assert.Len(t, dash.Announcements, 3)

	_, err = env.svc.Dashboard(ctx, "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, enrollment.ErrStudentNotFound, err)
}
