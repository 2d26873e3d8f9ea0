package expense

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/agape/core"
)

var (
	ErrNotFound = errors.New("expense not found")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateExpense(ctx context.Context, e Expense, exec ...core.DBExecutor) (Expense, error)
		GetExpense(ctx context.Context, id string, exec ...core.DBExecutor) (Expense, error)
		// QueryExpenses applies AND operation on the QueryFilter fields and orders by due date.
		QueryExpenses(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Expense, error)
		UpdateExpense(ctx context.Context, e Expense, exec ...core.DBExecutor) (Expense, error)
		// MarkPaid sets the expense paid, keeping an already set paidAt. Returns the number of expenses matched.
		MarkPaid(ctx context.Context, id string, paidAt time.Time, exec ...core.DBExecutor) (int, error)
		DeleteExpense(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(ctx context.Context, ne NewExpense) (Expense, error)
		Get(ctx context.Context, id string) (Expense, error)
		Query(ctx context.Context, filter *QueryFilter) ([]Expense, error)
		Update(ctx context.Context, orig Expense, ue UpdateExpense) (Expense, error)
		MarkPaid(ctx context.Context, id string) (Expense, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo     Repository
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, validate *validator.Validate) Service {
	return &service{repo: repo, validate: validate}
}

func (svc *service) Create(ctx context.Context, ne NewExpense) (Expense, error) {
	if err := ne.Validate(svc.validate); err != nil {
		return Expense{}, err
	}
	now := NowFunc().UTC()
	e, err := svc.repo.CreateExpense(ctx, Expense{
		Description: ne.Description,
		Category:    ne.Category,
		Amount:      ne.Amount,
		DueDate:     ne.DueDate,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return e, errors.Wrap(err, "creating expense")
}

func (svc *service) Get(ctx context.Context, id string) (Expense, error) {
	return svc.repo.GetExpense(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Expense, error) {
	var qf QueryFilter
	if filter != nil {
		if err := filter.Clean(); err != nil {
			return nil, err
		}
		qf = *filter
	}
	expenses, err := svc.repo.QueryExpenses(ctx, qf)
	return expenses, errors.Wrap(err, "querying expenses")
}

func (svc *service) Update(ctx context.Context, orig Expense, ue UpdateExpense) (Expense, error) {
	if err := ue.Validate(orig, svc.validate); err != nil {
		return Expense{}, err
	}
	e := orig
	e.Description = ue.Description
	e.Category = ue.Category
	e.Amount = ue.Amount
	e.DueDate = ue.DueDate
	e.UpdatedAt = NowFunc().UTC()

	e, err := svc.repo.UpdateExpense(ctx, e)
	return e, errors.Wrap(err, "updating expense")
}

func (svc *service) MarkPaid(ctx context.Context, id string) (Expense, error) {
	n, err := svc.repo.MarkPaid(ctx, id, NowFunc().UTC())
	if err != nil {
		return Expense{}, errors.Wrap(err, "marking expense paid")
	}
	if n == 0 {
		return Expense{}, ErrNotFound
	}
	return svc.repo.GetExpense(ctx, id)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteExpense(ctx, id)
}
