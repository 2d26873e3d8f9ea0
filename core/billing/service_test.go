package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/billing"
	"github.com/trezcool/agape/core/enrollment"
	inmemdb "github.com/trezcool/agape/storage/database/inmem"
	"github.com/trezcool/agape/testutil"
)

type testEnv struct {
	svc        billing.Service
	charges    billing.Repository
	enrollment enrollment.Repository
	gateway    *testutil.FakeGateway
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	// 2024-03-10 09:00 in São Paulo
	orig := billing.NowFunc
	billing.NowFunc = func() time.Time { return time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { billing.NowFunc = orig })

	conf := testutil.Config()
	validate, _ := testutil.NewValidator(conf)
	logger := testutil.NopLogger{}
	db := inmemdb.Open()

	env := &testEnv{
		charges:    inmemdb.NewChargeRepository(db),
		enrollment: inmemdb.NewEnrollmentRepository(db),
		gateway:    new(testutil.FakeGateway),
	}
	enrollSvc := enrollment.NewService(db, env.enrollment, logger, validate, env.charges)
	env.svc = billing.NewService(
		db, env.charges, inmemdb.NewReportRepository(db), env.gateway, enrollSvc, logger, validate, conf,
	)
	return env
}

func newCharge(studentID string) billing.NewCharge {
	return billing.NewCharge{
		StudentID: studentID,
		Type:      " Tuition ",
		Amount:    decimal.RequireFromString("450.00"),
		DueDate:   core.MustParseDate("2024-04-10"),
	}
}

func Test_service_Create(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	grdn := testutil.CreateGuardian(t, env.enrollment, "Maria Souza", "123.456.789-09", "11987654321")
	pedro := testutil.CreateStudent(t, env.enrollment, "Pedro Souza", "3A", "2015-04-02", grdn.ID)
	noTax := testutil.CreateGuardian(t, env.enrollment, "João Lima", "", "")
	lia := testutil.CreateStudent(t, env.enrollment, "Lia Lima", "1B", "2017-09-12", noTax.ID)

	t.Run("success", func(t *testing.T) {
		c, err := env.svc.Create(ctx, newCharge(pedro.ID))
		require.NoError(t, err)

		assert.Equal(t, billing.TypeTuition, c.Type)
		assert.Equal(t, billing.StatusPending, c.Status)
		assert.Equal(t, billing.StatusPending, c.EffectiveStatus)
		assert.Equal(t, "Pedro Souza", c.StudentName)
		require.NotNil(t, c.PaymentLink)
		require.NotNil(t, c.ExternalID)
		assert.Equal(t, "pay_001", *c.ExternalID)

		require.Len(t, env.gateway.Requests, 1)
		req := env.gateway.Requests[0]
		assert.Equal(t, "cus_12345678909", req.CustomerID)
		assert.Equal(t, c.ID, req.ExternalReference)
		assert.Equal(t, "Ágape - tuition", req.Description)

		stored, err := env.charges.GetCharge(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "pay_001", *stored.ExternalID)
	})

	t.Run("guardian without tax id", func(t *testing.T) {
		calls := env.gateway.Calls()
		_, err := env.svc.Create(ctx, newCharge(lia.ID))
		require.Error(t, err)
		assert.True(t, core.IsValidationError(err))
		assert.True(t, errors.Is(err, billing.ErrMissingTaxID))
		assert.Equal(t, calls, env.gateway.Calls())
	})

	t.Run("unknown student", func(t *testing.T) {
		_, err := env.svc.Create(ctx, newCharge("00000000-0000-0000-0000-000000000000"))
		assert.True(t, errors.Is(err, enrollment.ErrStudentNotFound))
	})

	t.Run("invalid input", func(t *testing.T) {
		nc := newCharge(pedro.ID)
		nc.Amount = decimal.Zero
		_, err := env.svc.Create(ctx, nc)
		require.Error(t, err)
		assert.False(t, billing.IsGatewayError(err))
	})

	t.Run("gateway failure stores nothing", func(t *testing.T) {
		env.gateway.Err = errors.New("503 service unavailable")
		t.Cleanup(func() { env.gateway.Err = nil })

		before, err := env.charges.QueryCharges(ctx, billing.ChargeQuery{StudentID: pedro.ID})
		require.NoError(t, err)

		_, err = env.svc.Create(ctx, newCharge(pedro.ID))
		require.Error(t, err)
		assert.True(t, billing.IsGatewayError(err))

		after, err := env.charges.QueryCharges(ctx, billing.ChargeQuery{StudentID: pedro.ID})
		require.NoError(t, err)
		assert.Len(t, after, len(before))
	})
}

func Test_service_Reconcile(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	grdn := testutil.CreateGuardian(t, env.enrollment, "Maria Souza", "12345678909", "11987654321")
	pedro := testutil.CreateStudent(t, env.enrollment, "Pedro Souza", "3A", "2015-04-02", grdn.ID)
	chrg := testutil.CreateCharge(t, env.charges, pedro.ID, "450.00", "2024-02-10", "pay_1")

	tests := []struct {
		name     string
		event    billing.Event
		want     billing.Outcome
		wantPaid bool
	}{
		{"not a payment", billing.Event{Type: "PAYMENT_OVERDUE", PaymentID: "pay_1"}, billing.OutcomeIgnored, false},
		{"unknown payment", billing.Event{Type: "PAYMENT_RECEIVED", PaymentID: "pay_404"}, billing.OutcomeNotFound, false},
		{"no payment id", billing.Event{Type: "PAYMENT_RECEIVED"}, billing.OutcomeNotFound, false},
		{"received", billing.Event{Type: "PAYMENT_RECEIVED", PaymentID: "pay_1"}, billing.OutcomeUpdated, true},
		{"redelivered", billing.Event{Type: "PAYMENT_RECEIVED", PaymentID: "pay_1"}, billing.OutcomeUpdated, true},
		{"confirmed", billing.Event{Type: "PAYMENT_CONFIRMED", PaymentID: "pay_1"}, billing.OutcomeUpdated, true},
	}

	var firstPaidAt *time.Time
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.svc.Reconcile(ctx, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			c, err := env.charges.GetCharge(ctx, chrg.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPaid, c.Status == billing.StatusPaid)
			if tt.wantPaid {
				require.NotNil(t, c.PaidAt)
				if firstPaidAt == nil {
					firstPaidAt = c.PaidAt
				}
				assert.True(t, firstPaidAt.Equal(*c.PaidAt))
			}
		})
	}

	evs, err := env.svc.Events(ctx, chrg.ID)
	require.NoError(t, err)
	assert.Len(t, evs, 4)

	view, err := env.svc.Get(ctx, chrg.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, view.EffectiveStatus)
}

func Test_service_Settle(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	grdn := testutil.CreateGuardian(t, env.enrollment, "Maria Souza", "12345678909", "11987654321")
	pedro := testutil.CreateStudent(t, env.enrollment, "Pedro Souza", "3A", "2015-04-02", grdn.ID)

	c, err := env.svc.CreateManual(ctx, newCharge(pedro.ID))
	require.NoError(t, err)
	assert.Nil(t, c.PaymentLink)
	assert.Zero(t, env.gateway.Calls())

	paid, err := env.svc.Settle(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, paid.EffectiveStatus)
	require.NotNil(t, paid.PaidAt)

	billing.NowFunc = func() time.Time { return time.Date(2024, time.March, 20, 12, 0, 0, 0, time.UTC) }
	again, err := env.svc.Settle(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, paid.PaidAt.Equal(*again.PaidAt))

	_, err = env.svc.Settle(ctx, "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, billing.ErrNotFound, err)

	_, err = env.svc.Reminder(ctx, c.ID)
	assert.True(t, errors.Is(err, billing.ErrNoPaymentLink))
}

func Test_service_Query(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	grdn := testutil.CreateGuardian(t, env.enrollment, "Maria Souza", "12345678909", "11987654321")
	pedro := testutil.CreateStudent(t, env.enrollment, "Pedro Souza", "3A", "2015-04-02", grdn.ID)
	overdue := testutil.CreateCharge(t, env.charges, pedro.ID, "100.00", "2024-03-09", "")
	dueToday := testutil.CreateCharge(t, env.charges, pedro.ID, "100.00", "2024-03-10", "")
	paid := testutil.CreateCharge(t, env.charges, pedro.ID, "100.00", "2024-01-10", "", time.Now())

	ids := func(views []billing.ChargeView) []string {
		out := make([]string, 0, len(views))
		for _, v := range views {
			out = append(out, v.ID)
		}
		return out
	}

	tests := []struct {
		name    string
		filter  *billing.QueryFilter
		want    []string
		wantErr bool
	}{
		{name: "all", filter: nil, want: []string{paid.ID, overdue.ID, dueToday.ID}},
		{name: "overdue", filter: &billing.QueryFilter{Status: "OVERDUE"}, want: []string{overdue.ID}},
		{name: "pending includes due today", filter: &billing.QueryFilter{Status: "pending"}, want: []string{dueToday.ID}},
		{name: "paid", filter: &billing.QueryFilter{Status: "paid"}, want: []string{paid.ID}},
		{name: "month", filter: &billing.QueryFilter{Month: "2024-03"}, want: []string{overdue.ID, dueToday.ID}},
		{name: "bad month", filter: &billing.QueryFilter{Month: "03/2024"}, wantErr: true},
		{name: "canceled is not a filter", filter: &billing.QueryFilter{Status: "canceled"}, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.svc.Query(ctx, tt.filter)
			if tt.wantErr {
				assert.True(t, core.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func Test_service_Delinquents(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	got, err := env.svc.Delinquents(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	maria := testutil.CreateGuardian(t, env.enrollment, "Maria Souza", "12345678909", "(11) 98765-4321")
	pedro := testutil.CreateStudent(t, env.enrollment, "Pedro Souza", "3A", "2015-04-02", maria.ID)
	joao := testutil.CreateGuardian(t, env.enrollment, "João Lima", "98765432100", "")
	lia := testutil.CreateStudent(t, env.enrollment, "Lia Lima", "1B", "2017-09-12", joao.ID)

	testutil.CreateCharge(t, env.charges, pedro.ID, "100.00", "2024-02-10", "pay_1")
	testutil.CreateCharge(t, env.charges, lia.ID, "120.00", "2024-01-10", "pay_2")
	testutil.CreateCharge(t, env.charges, lia.ID, "80.00", "2024-02-10", "pay_3")
	testutil.CreateCharge(t, env.charges, lia.ID, "500.00", "2024-03-10", "pay_4") // due today
	testutil.CreateCharge(t, env.charges, pedro.ID, "900.00", "2024-01-10", "", time.Now())
	testutil.CreateCharge(t, env.charges, "11111111-1111-1111-1111-111111111111", "999.00", "2024-01-10", "") // orphan

	got, err = env.svc.Delinquents(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, lia.ID, got[0].StudentID)
	assert.True(t, got[0].Total.Equal(decimal.RequireFromString("200")))
	assert.Equal(t, 2, got[0].Count)
	assert.Equal(t, pedro.ID, got[1].StudentID)

	t.Run("contact", func(t *testing.T) {
		r, err := env.svc.Contact(ctx, pedro.ID)
		require.NoError(t, err)
		assert.Contains(t, r.Message, "*R$ 100,00*")
		assert.Contains(t, r.Link, "https://wa.me/5511987654321?text=")

		r, err = env.svc.Contact(ctx, lia.ID)
		require.NoError(t, err)
		assert.Empty(t, r.Link)

		_, err = env.svc.Contact(ctx, "11111111-1111-1111-1111-111111111111")
		assert.Equal(t, billing.ErrNotDelinquent, err)
	})

	t.Run("summary", func(t *testing.T) {
		sum, err := env.svc.Summary(ctx, 2024, time.March)
		require.NoError(t, err)
		assert.Equal(t, "2024-03", sum.Month)
		assert.True(t, sum.Outstanding.Equal(decimal.RequireFromString("500")))
		assert.True(t, sum.Received.IsZero())
		assert.True(t, sum.Overdue.Equal(decimal.RequireFromString("300")))
		assert.Equal(t, 2, sum.Students)
		require.Len(t, sum.RecentPayments, 1)
		assert.Equal(t, "Pedro Souza", sum.RecentPayments[0].StudentName)
	})
}
