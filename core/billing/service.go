package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/enrollment"
)

var (
	ErrNotFound      = errors.New("charge not found")
	ErrMissingTaxID  = errors.New("the student's guardian has no tax id, it is required to bill through the payment gateway")
	ErrNoPaymentLink = errors.New("this charge has no payment link")
	ErrNotDelinquent = errors.New("student has no overdue charges")

	NowFunc = time.Now // mockable
)

const recentPaymentsLimit = 5

type (
	Repository interface {
		// CreateCharge inserts `c`, generating its ID when empty.
		CreateCharge(ctx context.Context, c Charge, exec ...core.DBExecutor) (Charge, error)
		GetCharge(ctx context.Context, id string, exec ...core.DBExecutor) (Charge, error)
		// QueryCharges applies AND operation on the ChargeQuery fields and orders by due date.
		QueryCharges(ctx context.Context, q ChargeQuery, exec ...core.DBExecutor) ([]Charge, error)
		// MarkPaid sets the charge paid. An already set paidAt is kept. Returns the number of charges matched.
		MarkPaid(ctx context.Context, id string, paidAt time.Time, exec ...core.DBExecutor) (int, error)
		// MarkPaidByExternalID is MarkPaid keyed on the gateway payment id.
		MarkPaidByExternalID(ctx context.Context, externalID string, paidAt time.Time, exec ...core.DBExecutor) (int, error)
		DeleteCharge(ctx context.Context, id string, exec ...core.DBExecutor) error
		DeleteByStudents(ctx context.Context, studentIDs []string, exec ...core.DBExecutor) (int, error)

		CreateEvent(ctx context.Context, ev GatewayEvent, exec ...core.DBExecutor) error
		QueryEvents(ctx context.Context, externalID string, exec ...core.DBExecutor) ([]GatewayEvent, error)
	}

	// ReportRepository serves the aggregated read models.
	ReportRepository interface {
		// OverdueCharges returns the charges stored as pending with a due date strictly before `today`.
		OverdueCharges(ctx context.Context, today core.Date) ([]OverdueCharge, error)
		// DueTotals sums the paid and unpaid charges due within [from, to].
		DueTotals(ctx context.Context, from, to core.Date) (received, outstanding decimal.Decimal, err error)
		CountStudents(ctx context.Context) (int, error)
		RecentPayments(ctx context.Context, limit int) ([]Charge, error)
	}

	// PayerFinder resolves who is billed for a student.
	PayerFinder interface {
		Payer(ctx context.Context, studentID string) (enrollment.Student, enrollment.Guardian, error)
	}

	Service interface {
		// Create bills the student through the payment gateway. Nothing is stored unless the gateway succeeds.
		Create(ctx context.Context, nc NewCharge) (ChargeView, error)
		// CreateManual records a charge settled outside the gateway (cash, transfer).
		CreateManual(ctx context.Context, nc NewCharge) (ChargeView, error)
		Get(ctx context.Context, id string) (ChargeView, error)
		Query(ctx context.Context, filter *QueryFilter) ([]ChargeView, error)
		// Settle marks the charge paid. Settling a paid charge keeps its paid_at.
		Settle(ctx context.Context, id string) (ChargeView, error)
		Delete(ctx context.Context, id string) error
		// Reconcile applies a gateway payment event. Unknown payments are not an error.
		Reconcile(ctx context.Context, ev Event) (Outcome, error)
		Events(ctx context.Context, chargeID string) ([]GatewayEvent, error)

		Delinquents(ctx context.Context) ([]Delinquent, error)
		Contact(ctx context.Context, studentID string) (Reminder, error)
		Reminder(ctx context.Context, chargeID string) (Reminder, error)
		Summary(ctx context.Context, year int, month time.Month) (Summary, error)
		Today() core.Date
	}

	service struct {
		tx       core.Transactor
		repo     Repository
		reports  ReportRepository
		gateway  Gateway
		payers   PayerFinder
		logger   core.Logger
		validate *validator.Validate
		conf     *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(
	tx core.Transactor,
	repo Repository,
	reports ReportRepository,
	gateway Gateway,
	payers PayerFinder,
	logger core.Logger,
	validate *validator.Validate,
	conf *core.Config,
) Service {
	return &service{
		tx:       tx,
		repo:     repo,
		reports:  reports,
		gateway:  gateway,
		payers:   payers,
		logger:   logger,
		validate: validate,
		conf:     conf,
	}
}

func (svc *service) Today() core.Date {
	return Today(svc.conf.Billing.Location)
}

func (svc *service) Create(ctx context.Context, nc NewCharge) (ChargeView, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return ChargeView{}, err
	}

	stdnt, grdn, err := svc.payers.Payer(ctx, nc.StudentID)
	if err != nil {
		return ChargeView{}, errors.Wrap(err, "finding payer")
	}
	taxID := core.DigitsOnly(grdn.TaxID)
	if taxID == "" {
		return ChargeView{}, core.NewValidationError(
			ErrMissingTaxID,
			core.FieldError{Field: "guardianTaxId", Error: ErrMissingTaxID.Error()},
		)
	}

	id := uuid.New().String()
	customerID, err := svc.gateway.CreateOrFetchCustomer(ctx, grdn.Name, taxID)
	if err != nil {
		return ChargeView{}, asGatewayError(err, "customer")
	}
	gc, err := svc.gateway.CreateCharge(ctx, GatewayChargeRequest{
		CustomerID:        customerID,
		Amount:            nc.Amount,
		DueDate:           nc.DueDate,
		Description:       fmt.Sprintf("%s - %s", svc.conf.AppName, nc.Type),
		ExternalReference: id,
	})
	if err != nil {
		return ChargeView{}, asGatewayError(err, "charge")
	}

	now := NowFunc().UTC()
	c, err := svc.repo.CreateCharge(ctx, Charge{
		ID:          id,
		StudentID:   stdnt.ID,
		Type:        nc.Type,
		Amount:      nc.Amount,
		DueDate:     nc.DueDate,
		Note:        nc.Note,
		Status:      StatusPending,
		PaymentLink: &gc.PaymentLink,
		ExternalID:  &gc.ExternalID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		svc.logger.Error("charge issued by the gateway but not stored", err, map[string]interface{}{
			"charge_id":   id,
			"external_id": gc.ExternalID,
			"student_id":  stdnt.ID,
		})
		return ChargeView{}, errors.Wrap(err, "storing charge")
	}
	c.StudentName = stdnt.Name
	return view(c, svc.Today()), nil
}

func (svc *service) CreateManual(ctx context.Context, nc NewCharge) (ChargeView, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return ChargeView{}, err
	}

	stdnt, _, err := svc.payers.Payer(ctx, nc.StudentID)
	if err != nil {
		return ChargeView{}, errors.Wrap(err, "finding payer")
	}

	now := NowFunc().UTC()
	c, err := svc.repo.CreateCharge(ctx, Charge{
		StudentID: stdnt.ID,
		Type:      nc.Type,
		Amount:    nc.Amount,
		DueDate:   nc.DueDate,
		Note:      nc.Note,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return ChargeView{}, errors.Wrap(err, "storing charge")
	}
	c.StudentName = stdnt.Name
	return view(c, svc.Today()), nil
}

func (svc *service) Get(ctx context.Context, id string) (ChargeView, error) {
	c, err := svc.repo.GetCharge(ctx, id)
	if err != nil {
		return ChargeView{}, err
	}
	return view(c, svc.Today()), nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]ChargeView, error) {
	today := svc.Today()
	var q ChargeQuery

	if filter != nil {
		if err := filter.Clean(); err != nil {
			return nil, err
		}
		q = ChargeQuery{
			StudentID: filter.StudentID,
			Type:      filter.Type,
			DueFrom:   filter.From,
			DueTo:     filter.To,
		}

		// the effective status is pushed down as stored status + due date bounds
		paid, unpaid := true, false
		switch filter.Status {
		case StatusPaid:
			q.Paid = &paid
		case StatusOverdue:
			q.Paid = &unpaid
			q.DueBefore = today
		case StatusPending:
			q.Paid = &unpaid
			q.DueOnOrAfter = today
		}
	}

	charges, err := svc.repo.QueryCharges(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "querying charges")
	}
	return views(charges, today), nil
}

func (svc *service) Settle(ctx context.Context, id string) (ChargeView, error) {
	n, err := svc.repo.MarkPaid(ctx, id, NowFunc().UTC())
	if err != nil {
		return ChargeView{}, errors.Wrap(err, "marking charge paid")
	}
	if n == 0 {
		return ChargeView{}, ErrNotFound
	}
	return svc.Get(ctx, id)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteCharge(ctx, id)
}

func (svc *service) Reconcile(ctx context.Context, ev Event) (Outcome, error) {
	outcome := OutcomeIgnored
	now := NowFunc().UTC()

	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if PaidEvents[ev.Type] {
			outcome = OutcomeNotFound
			if ev.PaymentID != "" {
				n, err := svc.repo.MarkPaidByExternalID(ctx, ev.PaymentID, now, exec)
				if err != nil {
					return errors.Wrap(err, "marking charge paid")
				}
				if n > 0 {
					outcome = OutcomeUpdated
				}
			}
		}

		err := svc.repo.CreateEvent(ctx, GatewayEvent{
			Type:       ev.Type,
			ExternalID: ev.PaymentID,
			Outcome:    outcome,
			Payload:    string(ev.Payload),
			ReceivedAt: now,
		}, exec)
		return errors.Wrap(err, "logging gateway event")
	})
	if err != nil {
		return "", err
	}

	if outcome == OutcomeNotFound {
		svc.logger.Warn("gateway payment matches no charge", errors.Wrap(ErrNotFound, ev.PaymentID), map[string]interface{}{
			"event":      ev.Type,
			"payment_id": ev.PaymentID,
		})
	}
	return outcome, nil
}

func (svc *service) Events(ctx context.Context, chargeID string) ([]GatewayEvent, error) {
	c, err := svc.repo.GetCharge(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	if c.ExternalID == nil {
		return []GatewayEvent{}, nil
	}
	evs, err := svc.repo.QueryEvents(ctx, *c.ExternalID)
	return evs, errors.Wrap(err, "querying gateway events")
}

func (svc *service) Delinquents(ctx context.Context) ([]Delinquent, error) {
	rows, err := svc.reports.OverdueCharges(ctx, svc.Today())
	if err != nil {
		return nil, errors.Wrap(err, "querying overdue charges")
	}
	return AggregateDelinquents(rows), nil
}

func (svc *service) Contact(ctx context.Context, studentID string) (Reminder, error) {
	delinquents, err := svc.Delinquents(ctx)
	if err != nil {
		return Reminder{}, err
	}
	for _, d := range delinquents {
		if d.StudentID == studentID {
			msg := ContactMessage(d, svc.conf.Billing.Currency)
			return Reminder{
				Phone:   d.GuardianPhone,
				Message: msg,
				Link:    ContactLink(d.GuardianPhone, svc.conf.Billing.PhoneRegion, msg),
			}, nil
		}
	}
	return Reminder{}, ErrNotDelinquent
}

func (svc *service) Reminder(ctx context.Context, chargeID string) (Reminder, error) {
	c, err := svc.repo.GetCharge(ctx, chargeID)
	if err != nil {
		return Reminder{}, err
	}
	if c.PaymentLink == nil || *c.PaymentLink == "" {
		return Reminder{}, core.NewValidationError(ErrNoPaymentLink)
	}

	stdnt, grdn, err := svc.payers.Payer(ctx, c.StudentID)
	if err != nil {
		return Reminder{}, errors.Wrap(err, "finding payer")
	}
	msg := ChargeMessage(c, stdnt.Name, grdn.Name, svc.conf.Billing.Currency)
	return Reminder{
		Phone:   grdn.Phone,
		Message: msg,
		Link:    ContactLink(grdn.Phone, svc.conf.Billing.PhoneRegion, msg),
	}, nil
}

func (svc *service) Summary(ctx context.Context, year int, month time.Month) (Summary, error) {
	from, to := core.MonthRange(year, month)
	sum := Summary{Month: from.Time().Format("2006-01")}

	received, outstanding, err := svc.reports.DueTotals(ctx, from, to)
	if err != nil {
		return Summary{}, errors.Wrap(err, "summing month charges")
	}
	sum.Received, sum.Outstanding = received, outstanding

	rows, err := svc.reports.OverdueCharges(ctx, svc.Today())
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying overdue charges")
	}
	for _, d := range AggregateDelinquents(rows) {
		sum.Overdue = sum.Overdue.Add(d.Total)
	}

	if sum.Students, err = svc.reports.CountStudents(ctx); err != nil {
		return Summary{}, errors.Wrap(err, "counting students")
	}

	recent, err := svc.reports.RecentPayments(ctx, recentPaymentsLimit)
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying recent payments")
	}
	sum.RecentPayments = views(recent, svc.Today())
	return sum, nil
}
