package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/billing"
)

type chargeRepository struct {
	db *DB
}

var (
	_ billing.Repository       = (*chargeRepository)(nil) // interface compliance check
	_ billing.ReportRepository = (*reportRepository)(nil)
)

func NewChargeRepository(db *DB) billing.Repository {
	return &chargeRepository{db: db}
}

// withStudentName must be called with the lock held.
func (repo *chargeRepository) withStudentName(c billing.Charge) billing.Charge {
	c.StudentName = repo.db.students[c.StudentID].Name
	return c
}

func (repo *chargeRepository) CreateCharge(_ context.Context, c billing.Charge, _ ...core.DBExecutor) (billing.Charge, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.StudentName = ""
	repo.db.charges[c.ID] = c
	return c, nil
}

func (repo *chargeRepository) GetCharge(_ context.Context, id string, _ ...core.DBExecutor) (billing.Charge, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.charges[id]; ok {
		return repo.withStudentName(c), nil
	}
	return billing.Charge{}, billing.ErrNotFound
}

func matchCharge(c billing.Charge, q billing.ChargeQuery) bool {
	switch {
	case q.StudentID != "" && c.StudentID != q.StudentID,
		q.Type != "" && string(c.Type) != q.Type,
		!q.DueFrom.IsZero() && c.DueDate.Before(q.DueFrom),
		!q.DueTo.IsZero() && c.DueDate.After(q.DueTo),
		!q.DueBefore.IsZero() && !c.DueDate.Before(q.DueBefore),
		!q.DueOnOrAfter.IsZero() && c.DueDate.Before(q.DueOnOrAfter),
		q.Paid != nil && (c.Status == billing.StatusPaid) != *q.Paid,
		q.ExternalID != "" && (c.ExternalID == nil || *c.ExternalID != q.ExternalID):
		return false
	}
	return true
}

func (repo *chargeRepository) QueryCharges(_ context.Context, q billing.ChargeQuery, _ ...core.DBExecutor) ([]billing.Charge, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	charges := make([]billing.Charge, 0)
	for _, c := range repo.db.charges {
		if matchCharge(c, q) {
			charges = append(charges, repo.withStudentName(c))
		}
	}
	sort.Slice(charges, func(i, j int) bool {
		if !charges[i].DueDate.Equal(charges[j].DueDate) {
			return charges[i].DueDate.After(charges[j].DueDate)
		}
		if !charges[i].CreatedAt.Equal(charges[j].CreatedAt) {
			return charges[i].CreatedAt.After(charges[j].CreatedAt)
		}
		return charges[i].ID < charges[j].ID
	})
	return charges, nil
}

// markPaid must be called with the write lock held.
func (repo *chargeRepository) markPaid(match func(billing.Charge) bool, paidAt time.Time) int {
	var n int
	for id, c := range repo.db.charges {
		if !match(c) {
			continue
		}
		c.Status = billing.StatusPaid
		if c.PaidAt == nil {
			t := paidAt.UTC()
			c.PaidAt = &t
		}
		c.UpdatedAt = paidAt.UTC()
		repo.db.charges[id] = c
		n++
	}
	return n
}

func (repo *chargeRepository) MarkPaid(_ context.Context, id string, paidAt time.Time, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return repo.markPaid(func(c billing.Charge) bool { return c.ID == id }, paidAt), nil
}

func (repo *chargeRepository) MarkPaidByExternalID(_ context.Context, externalID string, paidAt time.Time, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return repo.markPaid(func(c billing.Charge) bool {
		return c.ExternalID != nil && *c.ExternalID == externalID
	}, paidAt), nil
}

func (repo *chargeRepository) DeleteCharge(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.charges[id]; !ok {
		return billing.ErrNotFound
	}
	delete(repo.db.charges, id)
	return nil
}

func (repo *chargeRepository) DeleteByStudents(_ context.Context, studentIDs []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	ids := idSet(studentIDs)
	var n int
	for id, c := range repo.db.charges {
		if ids[c.StudentID] {
			delete(repo.db.charges, id)
			n++
		}
	}
	return n, nil
}

func (repo *chargeRepository) CreateEvent(_ context.Context, ev billing.GatewayEvent, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	repo.db.events = append(repo.db.events, ev)
	return nil
}

func (repo *chargeRepository) QueryEvents(_ context.Context, externalID string, _ ...core.DBExecutor) ([]billing.GatewayEvent, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	events := make([]billing.GatewayEvent, 0)
	for _, ev := range repo.db.events {
		if ev.ExternalID == externalID {
			events = append(events, ev)
		}
	}
	return events, nil
}

type reportRepository struct {
	db *DB
}

func NewReportRepository(db *DB) billing.ReportRepository {
	return &reportRepository{db: db}
}

func (repo *reportRepository) OverdueCharges(_ context.Context, today core.Date) ([]billing.OverdueCharge, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]billing.OverdueCharge, 0)
	for _, c := range repo.db.charges {
		if c.Status != billing.StatusPending || !c.DueDate.Before(today) {
			continue
		}
		row := billing.OverdueCharge{
			ChargeID:    c.ID,
			StudentID:   c.StudentID,
			Type:        c.Type,
			Amount:      c.Amount,
			DueDate:     c.DueDate,
			PaymentLink: c.PaymentLink,
		}
		if s, ok := repo.db.students[c.StudentID]; ok {
			row.HasStudent = true
			row.StudentName = s.Name
			row.ClassName = s.ClassName
			if g, ok := repo.db.guardians[s.GuardianID]; ok {
				row.GuardianName = g.Name
				row.GuardianPhone = g.Phone
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].DueDate.Equal(rows[j].DueDate) {
			return rows[i].DueDate.Before(rows[j].DueDate)
		}
		return rows[i].ChargeID < rows[j].ChargeID
	})
	return rows, nil
}

func (repo *reportRepository) DueTotals(_ context.Context, from, to core.Date) (received, outstanding decimal.Decimal, err error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, c := range repo.db.charges {
		if c.DueDate.Before(from) || c.DueDate.After(to) {
			continue
		}
		if c.Status == billing.StatusPaid {
			received = received.Add(c.Amount)
		} else {
			outstanding = outstanding.Add(c.Amount)
		}
	}
	return received, outstanding, nil
}

func (repo *reportRepository) CountStudents(_ context.Context) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.db.students), nil
}

func (repo *reportRepository) RecentPayments(_ context.Context, limit int) ([]billing.Charge, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	paid := make([]billing.Charge, 0)
	for _, c := range repo.db.charges {
		if c.Status == billing.StatusPaid && c.PaidAt != nil {
			c.StudentName = repo.db.students[c.StudentID].Name
			paid = append(paid, c)
		}
	}
	sort.Slice(paid, func(i, j int) bool { return paid[i].PaidAt.After(*paid[j].PaidAt) })
	if limit > 0 && len(paid) > limit {
		paid = paid[:limit]
	}
	return paid, nil
}
