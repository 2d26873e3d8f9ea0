package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/billing"
)

const (
	chargeSelect = `SELECT c.id, c.student_id, c.type, c.amount, c.due_date, c.note, c.status,
		c.payment_link, c.external_id, c.paid_at, c.created_at, c.updated_at,
		COALESCE(s.name, '') AS student_name
	FROM charge c LEFT JOIN student s ON s.id = c.student_id`
	eventColumns = `id, type, external_id, outcome, payload, received_at`
)

type chargeRow struct {
	ID          string          `boil:"id"`
	StudentID   string          `boil:"student_id"`
	Type        string          `boil:"type"`
	Amount      decimal.Decimal `boil:"amount"`
	DueDate     core.Date       `boil:"due_date"`
	Note        string          `boil:"note"`
	Status      string          `boil:"status"`
	PaymentLink null.String     `boil:"payment_link"`
	ExternalID  null.String     `boil:"external_id"`
	PaidAt      null.Time       `boil:"paid_at"`
	CreatedAt   time.Time       `boil:"created_at"`
	UpdatedAt   time.Time       `boil:"updated_at"`
	StudentName string          `boil:"student_name"`
}

type eventRow struct {
	ID         string    `boil:"id"`
	Type       string    `boil:"type"`
	ExternalID string    `boil:"external_id"`
	Outcome    string    `boil:"outcome"`
	Payload    string    `boil:"payload"`
	ReceivedAt time.Time `boil:"received_at"`
}

type chargeRepository struct {
	repository
}

var _ billing.Repository = (*chargeRepository)(nil) // interface compliance check

func NewChargeRepository(exec core.DBExecutor) *chargeRepository {
	return &chargeRepository{repository{exec: exec}}
}

func unboilCharge(row chargeRow) billing.Charge {
	return billing.Charge{
		ID:          row.ID,
		StudentID:   row.StudentID,
		Type:        billing.ChargeType(row.Type),
		Amount:      row.Amount,
		DueDate:     row.DueDate,
		Note:        row.Note,
		Status:      billing.Status(row.Status),
		PaymentLink: row.PaymentLink.Ptr(),
		ExternalID:  row.ExternalID.Ptr(),
		PaidAt:      row.PaidAt.Ptr(),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		StudentName: row.StudentName,
	}
}

func unboilCharges(rows []chargeRow) []billing.Charge {
	charges := make([]billing.Charge, 0, len(rows))
	for _, row := range rows {
		charges = append(charges, unboilCharge(row))
	}
	return charges
}

func (repo chargeRepository) CreateCharge(ctx context.Context, c billing.Charge, exec ...core.DBExecutor) (billing.Charge, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	q := `INSERT INTO charge (id, student_id, type, amount, due_date, note, status, payment_link, external_id, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := queries.Raw(q,
		c.ID, c.StudentID, string(c.Type), c.Amount, c.DueDate, c.Note, string(c.Status),
		null.StringFromPtr(c.PaymentLink), null.StringFromPtr(c.ExternalID), null.TimeFromPtr(c.PaidAt),
		c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return billing.Charge{}, errors.Wrap(err, "inserting charge")
	}
	return c, nil
}

func (repo chargeRepository) GetCharge(ctx context.Context, id string, exec ...core.DBExecutor) (billing.Charge, error) {
	if !isUUID(id) {
		return billing.Charge{}, billing.ErrNotFound
	}
	var row chargeRow
	if err := queries.Raw(chargeSelect+" WHERE c.id = $1", id).Bind(ctx, repo.getExec(exec), &row); err != nil {
		return billing.Charge{}, trapNoRowsErr(err, billing.ErrNotFound, "finding charge")
	}
	return unboilCharge(row), nil
}

func (repo chargeRepository) QueryCharges(ctx context.Context, cq billing.ChargeQuery, exec ...core.DBExecutor) ([]billing.Charge, error) {
	var c conditions
	if cq.StudentID != "" {
		if !isUUID(cq.StudentID) {
			return []billing.Charge{}, nil
		}
		c.add("c.student_id = ?", cq.StudentID)
	}
	if cq.Type != "" {
		c.add("c.type = ?", cq.Type)
	}
	if !cq.DueFrom.IsZero() {
		c.add("c.due_date >= ?", cq.DueFrom)
	}
	if !cq.DueTo.IsZero() {
		c.add("c.due_date <= ?", cq.DueTo)
	}
	if !cq.DueBefore.IsZero() {
		c.add("c.due_date < ?", cq.DueBefore)
	}
	if !cq.DueOnOrAfter.IsZero() {
		c.add("c.due_date >= ?", cq.DueOnOrAfter)
	}
	if cq.Paid != nil {
		if *cq.Paid {
			c.add("c.status = ?", string(billing.StatusPaid))
		} else {
			c.add("c.status <> ?", string(billing.StatusPaid))
		}
	}
	if cq.ExternalID != "" {
		c.add("c.external_id = ?", cq.ExternalID)
	}

	var rows []chargeRow
	q := chargeSelect + c.where() + " ORDER BY c.due_date DESC, c.created_at DESC"
	if err := queries.Raw(q, c.args...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying charges")
	}
	return unboilCharges(rows), nil
}

func (repo chargeRepository) markPaid(ctx context.Context, column, value string, paidAt time.Time, exec []core.DBExecutor) (int, error) {
	q := `UPDATE charge SET status = $2, paid_at = COALESCE(paid_at, $3), updated_at = $3 WHERE ` + column + ` = $1`
	res, err := queries.Raw(q, value, string(billing.StatusPaid), paidAt.UTC()).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return 0, errors.Wrap(err, "marking charge paid")
	}
	return affected(res, "marking charge paid")
}

func (repo chargeRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time, exec ...core.DBExecutor) (int, error) {
	if !isUUID(id) {
		return 0, nil
	}
	return repo.markPaid(ctx, "id", id, paidAt, exec)
}

func (repo chargeRepository) MarkPaidByExternalID(ctx context.Context, externalID string, paidAt time.Time, exec ...core.DBExecutor) (int, error) {
	return repo.markPaid(ctx, "external_id", externalID, paidAt, exec)
}

func (repo chargeRepository) DeleteCharge(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return billing.ErrNotFound
	}
	res, err := queries.Raw("DELETE FROM charge WHERE id = $1", id).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return errors.Wrap(err, "deleting charge")
	}
	n, err := affected(res, "deleting charge")
	if err == nil && n == 0 {
		err = billing.ErrNotFound
	}
	return err
}

func (repo chargeRepository) DeleteByStudents(ctx context.Context, studentIDs []string, exec ...core.DBExecutor) (int, error) {
	var c conditions
	c.in("student_id", filterUUIDs(studentIDs))
	res, err := queries.Raw("DELETE FROM charge"+c.where(), c.args...).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return 0, errors.Wrap(err, "deleting student charges")
	}
	return affected(res, "deleting student charges")
}

func (repo chargeRepository) CreateEvent(ctx context.Context, ev billing.GatewayEvent, exec ...core.DBExecutor) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	q := "INSERT INTO gateway_event (" + eventColumns + ") VALUES ($1, $2, $3, $4, $5, $6)"
	_, err := queries.Raw(q, ev.ID, ev.Type, ev.ExternalID, string(ev.Outcome), ev.Payload, ev.ReceivedAt.UTC()).
		ExecContext(ctx, repo.getExec(exec))
	return errors.Wrap(err, "inserting gateway event")
}

func (repo chargeRepository) QueryEvents(ctx context.Context, externalID string, exec ...core.DBExecutor) ([]billing.GatewayEvent, error) {
	var rows []eventRow
	q := "SELECT " + eventColumns + " FROM gateway_event WHERE external_id = $1 ORDER BY received_at ASC"
	if err := queries.Raw(q, externalID).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying gateway events")
	}
	events := make([]billing.GatewayEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, billing.GatewayEvent{
			ID:         row.ID,
			Type:       row.Type,
			ExternalID: row.ExternalID,
			Outcome:    billing.Outcome(row.Outcome),
			Payload:    row.Payload,
			ReceivedAt: row.ReceivedAt,
		})
	}
	return events, nil
}
