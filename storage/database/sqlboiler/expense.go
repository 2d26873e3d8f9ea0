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
	"github.com/trezcool/agape/core/expense"
)

const expenseColumns = `id, description, category, amount, due_date, status, paid_at, created_at, updated_at`

type expenseRow struct {
	ID          string          `boil:"id"`
	Description string          `boil:"description"`
	Category    string          `boil:"category"`
	Amount      decimal.Decimal `boil:"amount"`
	DueDate     core.Date       `boil:"due_date"`
	Status      string          `boil:"status"`
	PaidAt      null.Time       `boil:"paid_at"`
	CreatedAt   time.Time       `boil:"created_at"`
	UpdatedAt   time.Time       `boil:"updated_at"`
}

type expenseRepository struct {
	repository
}

var _ expense.Repository = (*expenseRepository)(nil) // interface compliance check

func NewExpenseRepository(exec core.DBExecutor) *expenseRepository {
	return &expenseRepository{repository{exec: exec}}
}

func (repo expenseRepository) unboil(row expenseRow) expense.Expense {
	return expense.Expense{
		ID:          row.ID,
		Description: row.Description,
		Category:    row.Category,
		Amount:      row.Amount,
		DueDate:     row.DueDate,
		Status:      expense.Status(row.Status),
		PaidAt:      row.PaidAt.Ptr(),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func (repo expenseRepository) CreateExpense(ctx context.Context, e expense.Expense, exec ...core.DBExecutor) (expense.Expense, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	q := "INSERT INTO expense (" + expenseColumns + ") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)"
	_, err := queries.Raw(q,
		e.ID, e.Description, e.Category, e.Amount, e.DueDate, string(e.Status), null.TimeFromPtr(e.PaidAt),
		e.CreatedAt.UTC(), e.UpdatedAt.UTC(),
	).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return expense.Expense{}, errors.Wrap(err, "inserting expense")
	}
	return e, nil
}

func (repo expenseRepository) GetExpense(ctx context.Context, id string, exec ...core.DBExecutor) (expense.Expense, error) {
	if !isUUID(id) {
		return expense.Expense{}, expense.ErrNotFound
	}
	var row expenseRow
	q := "SELECT " + expenseColumns + " FROM expense WHERE id = $1"
	if err := queries.Raw(q, id).Bind(ctx, repo.getExec(exec), &row); err != nil {
		return expense.Expense{}, trapNoRowsErr(err, expense.ErrNotFound, "finding expense")
	}
	return repo.unboil(row), nil
}

func (repo expenseRepository) QueryExpenses(ctx context.Context, filter expense.QueryFilter, exec ...core.DBExecutor) ([]expense.Expense, error) {
	var c conditions
	if !filter.From.IsZero() {
		c.add("due_date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		c.add("due_date <= ?", filter.To)
	}
	if filter.Status != "" {
		c.add("status = ?", string(filter.Status))
	}
	if filter.Category != "" {
		c.add("category = ?", filter.Category)
	}

	var rows []expenseRow
	q := "SELECT " + expenseColumns + " FROM expense" + c.where() + " ORDER BY due_date ASC, created_at ASC"
	if err := queries.Raw(q, c.args...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying expenses")
	}
	expenses := make([]expense.Expense, 0, len(rows))
	for _, row := range rows {
		expenses = append(expenses, repo.unboil(row))
	}
	return expenses, nil
}

func (repo expenseRepository) UpdateExpense(ctx context.Context, e expense.Expense, exec ...core.DBExecutor) (expense.Expense, error) {
	q := "UPDATE expense SET description = $2, category = $3, amount = $4, due_date = $5, updated_at = $6 WHERE id = $1"
	res, err := queries.Raw(q, e.ID, e.Description, e.Category, e.Amount, e.DueDate, e.UpdatedAt.UTC()).
		ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return expense.Expense{}, errors.Wrap(err, "updating expense")
	}
	n, err := affected(res, "updating expense")
	if err == nil && n == 0 {
		err = expense.ErrNotFound
	}
	if err != nil {
		return expense.Expense{}, err
	}
	return e, nil
}

func (repo expenseRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time, exec ...core.DBExecutor) (int, error) {
	if !isUUID(id) {
		return 0, nil
	}
	q := "UPDATE expense SET status = $2, paid_at = COALESCE(paid_at, $3), updated_at = $3 WHERE id = $1"
	res, err := queries.Raw(q, id, string(expense.StatusPaid), paidAt.UTC()).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return 0, errors.Wrap(err, "marking expense paid")
	}
	return affected(res, "marking expense paid")
}

func (repo expenseRepository) DeleteExpense(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return expense.ErrNotFound
	}
	res, err := queries.Raw("DELETE FROM expense WHERE id = $1", id).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return errors.Wrap(err, "deleting expense")
	}
	n, err := affected(res, "deleting expense")
	if err == nil && n == 0 {
		err = expense.ErrNotFound
	}
	return err
}
