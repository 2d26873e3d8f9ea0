package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/billing"
)

type reportRepository struct {
	db *sqlx.DB
}

var _ billing.ReportRepository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db *sqlx.DB) *reportRepository {
	return &reportRepository{db: db}
}

func (repo reportRepository) OverdueCharges(ctx context.Context, today core.Date) ([]billing.OverdueCharge, error) {
	const q = `
	SELECT c.id AS charge_id, c.student_id, c.type, c.amount, c.due_date, c.payment_link,
		s.id IS NOT NULL AS has_student,
		COALESCE(s.name, '') AS student_name,
		COALESCE(s.class_name, '') AS class_name,
		COALESCE(g.name, '') AS guardian_name,
		COALESCE(g.phone, '') AS guardian_phone
	FROM charge c
		LEFT JOIN student s ON s.id = c.student_id
		LEFT JOIN guardian g ON g.id = s.guardian_id
	WHERE c.status = $1 AND c.due_date < $2
	ORDER BY c.due_date ASC`

	rows := make([]billing.OverdueCharge, 0)
	if err := repo.db.SelectContext(ctx, &rows, q, string(billing.StatusPending), today); err != nil {
		return nil, errors.Wrap(err, "selecting overdue charges")
	}
	return rows, nil
}

func (repo reportRepository) DueTotals(ctx context.Context, from, to core.Date) (received, outstanding decimal.Decimal, err error) {
	const q = `
	SELECT
		COALESCE(SUM(amount) FILTER (WHERE status = $1), 0) AS received,
		COALESCE(SUM(amount) FILTER (WHERE status <> $1), 0) AS outstanding
	FROM charge
	WHERE due_date >= $2 AND due_date <= $3`

	var totals struct {
		Received    decimal.Decimal `db:"received"`
		Outstanding decimal.Decimal `db:"outstanding"`
	}
	if err = repo.db.GetContext(ctx, &totals, q, string(billing.StatusPaid), from, to); err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrap(err, "summing charges")
	}
	return totals.Received, totals.Outstanding, nil
}

func (repo reportRepository) CountStudents(ctx context.Context) (int, error) {
	var n int
	if err := repo.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM student"); err != nil {
		return 0, errors.Wrap(err, "counting students")
	}
	return n, nil
}

func (repo reportRepository) RecentPayments(ctx context.Context, limit int) ([]billing.Charge, error) {
	const q = `
	SELECT c.id, c.student_id, c.type, c.amount, c.due_date, c.note, c.status,
		c.payment_link, c.external_id, c.paid_at, c.created_at, c.updated_at,
		COALESCE(s.name, '') AS student_name
	FROM charge c LEFT JOIN student s ON s.id = c.student_id
	WHERE c.status = $1 AND c.paid_at IS NOT NULL
	ORDER BY c.paid_at DESC
	LIMIT $2`

	var rows []struct {
		ID          string          `db:"id"`
		StudentID   string          `db:"student_id"`
		Type        string          `db:"type"`
		Amount      decimal.Decimal `db:"amount"`
		DueDate     core.Date       `db:"due_date"`
		Note        string          `db:"note"`
		Status      string          `db:"status"`
		PaymentLink sql.NullString  `db:"payment_link"`
		ExternalID  sql.NullString  `db:"external_id"`
		PaidAt      sql.NullTime    `db:"paid_at"`
		CreatedAt   time.Time       `db:"created_at"`
		UpdatedAt   time.Time       `db:"updated_at"`
		StudentName string          `db:"student_name"`
	}
	if err := repo.db.SelectContext(ctx, &rows, q, string(billing.StatusPaid), limit); err != nil {
		return nil, errors.Wrap(err, "selecting recent payments")
	}

	charges := make([]billing.Charge, 0, len(rows))
	for _, row := range rows {
		c := billing.Charge{
			ID:          row.ID,
			StudentID:   row.StudentID,
			Type:        billing.ChargeType(row.Type),
			Amount:      row.Amount,
			DueDate:     row.DueDate,
			Note:        row.Note,
			Status:      billing.Status(row.Status),
			CreatedAt:   row.CreatedAt,
			UpdatedAt:   row.UpdatedAt,
			StudentName: row.StudentName,
		}
		if row.PaymentLink.Valid {
			link := row.PaymentLink.String
			c.PaymentLink = &link
		}
		if row.ExternalID.Valid {
			extID := row.ExternalID.String
			c.ExternalID = &extID
		}
		if row.PaidAt.Valid {
			paidAt := row.PaidAt.Time
			c.PaidAt = &paidAt
		}
		charges = append(charges, c)
	}
	return charges, nil
}
