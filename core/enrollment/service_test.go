package enrollment_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/billing"
	"github.com/trezcool/agape/core/enrollment"
	inmemdb "github.com/trezcool/agape/storage/database/inmem"
	"github.com/trezcool/agape/testutil"
)

type testEnv struct {
	db      *inmemdb.DB
	repo    enrollment.Repository
	charges billing.Repository
}

func newEnv() *testEnv {
	db := inmemdb.Open()
	return &testEnv{
		db:      db,
		repo:    inmemdb.NewEnrollmentRepository(db),
		charges: inmemdb.NewChargeRepository(db),
	}
}

func (env *testEnv) service(t *testing.T, dependents ...enrollment.Dependent) enrollment.Service {
	t.Helper()
	validate, _ := testutil.NewValidator(testutil.Config())
	return enrollment.NewService(env.db, env.repo, testutil.NopLogger{}, validate, dependents...)
}

// brokenDependent fails after the dependents before it already deleted their rows.
type brokenDependent struct{}

func (brokenDependent) DeleteByStudents(context.Context, []string, ...core.DBExecutor) (int, error) {
	return 0, errors.New("disk full")
}

func Test_service_Enroll(t *testing.T) {
	env := newEnv()
	svc := env.service(t)
	ctx := context.Background()

	stdnt, err := svc.Enroll(ctx, enrollment.NewEnrollment{
		Guardian: &enrollment.NewGuardian{Name: " Maria Souza ", TaxID: "123.456.789-09", Phone: "(11) 98765-4321", Email: "MARIA@agape.test"},
		Student:  enrollment.NewStudent{Name: "Pedro Souza", ClassName: "3A", BirthDate: core.MustParseDate("2015-04-02")},
	})
	require.NoError(t, err)
	require.NotNil(t, stdnt.Guardian)
	assert.Equal(t, "Maria Souza", stdnt.Guardian.Name)
	assert.Equal(t, "12345678909", stdnt.Guardian.TaxID)
	assert.Equal(t, "maria@agape.test", stdnt.Guardian.Email)

	tests := []struct {
		name string
		ne   enrollment.NewEnrollment
	}{
		{
			name: "malformed tax id",
			ne: enrollment.NewEnrollment{
				Guardian: &enrollment.NewGuardian{Name: "João", TaxID: "123.456"},
				Student:  enrollment.NewStudent{Name: "Lia", ClassName: "1B", BirthDate: core.MustParseDate("2017-09-12")},
			},
		},
		{
			name: "blank student name",
			ne: enrollment.NewEnrollment{
				GuardianID: stdnt.GuardianID,
				Student:    enrollment.NewStudent{Name: "   ", ClassName: "1B", BirthDate: core.MustParseDate("2017-09-12")},
			},
		},
		{
			name: "no birth date",
			ne: enrollment.NewEnrollment{
				GuardianID: stdnt.GuardianID,
				Student:    enrollment.NewStudent{Name: "Lia", ClassName: "1B"},
			},
		},
		{
			name: "unknown guardian",
			ne: enrollment.NewEnrollment{
				GuardianID: "00000000-0000-0000-0000-000000000000",
				Student:    enrollment.NewStudent{Name: "Lia", ClassName: "1B", BirthDate: core.MustParseDate("2017-09-12")},
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Enroll(ctx, tt.ne)
			assert.Error(t, err)
		})
	}

	students, err := svc.QueryStudents(ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, students, 1)
}

func Test_service_DeleteStudent(t *testing.T) {
	env := newEnv()
	ctx := context.Background()

	grdn := testutil.CreateGuardian(t, env.repo, "Maria Souza", "12345678909", "")
	pedro := testutil.CreateStudent(t, env.repo, "Pedro Souza", "3A", "2015-04-02", grdn.ID)
	testutil.CreateCharge(t, env.charges, pedro.ID, "450.00", "2024-02-10", "pay_1")

	t.Run("a failing dependent rolls everything back", func(t *testing.T) {
		svc := env.service(t, env.charges, brokenDependent{})
		err := svc.DeleteStudent(ctx, pedro.ID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")

		_, err = env.repo.GetStudent(ctx, pedro.ID)
		assert.NoError(t, err)
		charges, err := env.charges.QueryCharges(ctx, billing.ChargeQuery{StudentID: pedro.ID})
		require.NoError(t, err)
		assert.Len(t, charges, 1)
	})

	t.Run("unknown student", func(t *testing.T) {
		svc := env.service(t, env.charges)
		assert.Equal(t, enrollment.ErrStudentNotFound, svc.DeleteStudent(ctx, "00000000-0000-0000-0000-000000000000"))
	})

	t.Run("deletes dependents first", func(t *testing.T) {
		svc := env.service(t, env.charges)
		require.NoError(t, svc.DeleteStudent(ctx, pedro.ID))

		_, err := env.repo.GetStudent(ctx, pedro.ID)
		assert.Equal(t, enrollment.ErrStudentNotFound, err)
		charges, err := env.charges.QueryCharges(ctx, billing.ChargeQuery{StudentID: pedro.ID})
		require.NoError(t, err)
		assert.Empty(t, charges)

		// the guardian stays
		_, err = env.repo.GetGuardian(ctx, grdn.ID)
		assert.NoError(t, err)
	})
}

func Test_service_DeleteGuardian(t *testing.T) {
	env := newEnv()
	ctx := context.Background()

	grdn := testutil.CreateGuardian(t, env.repo, "Maria Souza", "12345678909", "")
	pedro := testutil.CreateStudent(t, env.repo, "Pedro Souza", "3A", "2015-04-02", grdn.ID)
	bia := testutil.CreateStudent(t, env.repo, "Bia Souza", "5A", "2013-08-30", grdn.ID)
	testutil.CreateCharge(t, env.charges, bia.ID, "450.00", "2024-02-10", "")

	err := env.service(t, env.charges, brokenDependent{}).DeleteGuardian(ctx, grdn.ID)
	require.Error(t, err)
	_, err = env.repo.GetGuardian(ctx, grdn.ID)
	require.NoError(t, err)

	svc := env.service(t, env.charges)
	require.NoError(t, svc.DeleteGuardian(ctx, grdn.ID))
	for _, id := range []string{pedro.ID, bia.ID} {
		_, err = env.repo.GetStudent(ctx, id)
		assert.Equal(t, enrollment.ErrStudentNotFound, err)
	}
	charges, err := env.charges.QueryCharges(ctx, billing.ChargeQuery{})
	require.NoError(t, err)
	assert.Empty(t, charges)

	assert.Equal(t, enrollment.ErrGuardianNotFound, svc.DeleteGuardian(ctx, grdn.ID))
}

func Test_service_FindByCredentials(t *testing.T) {
	env := newEnv()
	svc := env.service(t)
	ctx := context.Background()

	grdn := testutil.CreateGuardian(t, env.repo, "Maria Souza", "12345678909", "")
	pedro := testutil.CreateStudent(t, env.repo, "Pedro Souza", "3A", "2015-04-02", grdn.ID)
	testutil.CreateStudent(t, env.repo, "Bia Souza", "5A", "2013-08-30", grdn.ID)

	tests := []struct {
		name      string
		taxID     string
		birthDate string
		wantID    string
	}{
		{"formatted tax id", "123.456.789-09", "2015-04-02", pedro.ID},
		{"digits", "12345678909", "2015-04-02", pedro.ID},
		{"wrong birth date", "12345678909", "2015-04-03", ""},
		{"other guardian", "98765432100", "2015-04-02", ""},
		{"empty tax id", "", "2015-04-02", ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.FindByCredentials(ctx, tt.taxID, core.MustParseDate(tt.birthDate))
			if tt.wantID == "" {
				assert.Equal(t, enrollment.ErrStudentNotFound, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}

	t.Run("payer", func(t *testing.T) {
		stdnt, payer, err := svc.Payer(ctx, pedro.ID)
		require.NoError(t, err)
		assert.Equal(t, pedro.ID, stdnt.ID)
		assert.Equal(t, grdn.ID, payer.ID)
	})
}
