package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/expense"
)

type expenseRepository struct {
	db *DB
}

var _ expense.Repository = (*expenseRepository)(nil) // interface compliance check

func NewExpenseRepository(db *DB) expense.Repository {
	return &expenseRepository{db: db}
}

func (repo *expenseRepository) CreateExpense(_ context.Context, e expense.Expense, _ ...core.DBExecutor) (expense.Expense, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	repo.db.expenses[e.ID] = e
	return e, nil
}

func (repo *expenseRepository) GetExpense(_ context.Context, id string, _ ...core.DBExecutor) (expense.Expense, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if e, ok := repo.db.expenses[id]; ok {
		return e, nil
	}
	return expense.Expense{}, expense.ErrNotFound
}

func (repo *expenseRepository) QueryExpenses(_ context.Context, filter expense.QueryFilter, _ ...core.DBExecutor) ([]expense.Expense, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	expenses := make([]expense.Expense, 0)
	for _, e := range repo.db.expenses {
		switch {
		case !filter.From.IsZero() && e.DueDate.Before(filter.From),
			!filter.To.IsZero() && e.DueDate.After(filter.To),
			filter.Status != "" && e.Status != filter.Status,
			filter.Category != "" && e.Category != filter.Category:
			continue
		}
		expenses = append(expenses, e)
	}
	sort.Slice(expenses, func(i, j int) bool {
		if !expenses[i].DueDate.Equal(expenses[j].DueDate) {
			return expenses[i].DueDate.Before(expenses[j].DueDate)
		}
		return expenses[i].CreatedAt.Before(expenses[j].CreatedAt)
	})
	return expenses, nil
}

func (repo *expenseRepository) UpdateExpense(_ context.Context, e expense.Expense, _ ...core.DBExecutor) (expense.Expense, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.expenses[e.ID]; !ok {
		return expense.Expense{}, expense.ErrNotFound
	}
	repo.db.expenses[e.ID] = e
	return e, nil
}

func (repo *expenseRepository) MarkPaid(_ context.Context, id string, paidAt time.Time, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	e, ok := repo.db.expenses[id]
	if !ok {
		return 0, nil
	}
	e.Status = expense.StatusPaid
	if e.PaidAt == nil {
		t := paidAt.UTC()
		e.PaidAt = &t
	}
	e.UpdatedAt = paidAt.UTC()
	repo.db.expenses[id] = e
	return 1, nil
}

func (repo *expenseRepository) DeleteExpense(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.expenses[id]; !ok {
		return expense.ErrNotFound
	}
	delete(repo.db.expenses, id)
	return nil
}
