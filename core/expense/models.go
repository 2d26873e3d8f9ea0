package expense

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/agape/core"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
)

// Expense is an operating outflow of the school (rent, salaries, supplies).
type Expense struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     core.Date       `json:"due_date"`
	Status      Status          `json:"status"`
	PaidAt      *time.Time      `json:"paid_at"`    // UTC; set iff Status is paid
	CreatedAt   time.Time       `json:"created_at"` // UTC
	UpdatedAt   time.Time       `json:"updated_at"` // UTC
}

type NewExpense struct {
	Description string          `json:"description" validate:"required,notblank,max=200"`
	Category    string          `json:"category" validate:"required,notblank,max=50"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	DueDate     core.Date       `json:"due_date" validate:"required"`
}

func (ne *NewExpense) Validate(validate *validator.Validate) error {
	ne.Description = core.CleanString(ne.Description)
	ne.Category = core.CleanString(ne.Category, true /* lower */)
	return validate.Struct(ne)
}

// UpdateExpense defines what information may be provided to modify an existing Expense.
// Blank fields keep their current value.
type UpdateExpense struct {
	Description string          `json:"description" validate:"max=200"`
	Category    string          `json:"category" validate:"max=50"`
	Amount      decimal.Decimal `json:"amount" validate:"gte=0"`
	DueDate     core.Date       `json:"due_date"`
}

func (ue *UpdateExpense) Validate(orig Expense, validate *validator.Validate) error {
	ue.Description = core.CleanString(ue.Description)
	ue.Category = core.CleanString(ue.Category, true /* lower */)
	if err := validate.Struct(ue); err != nil {
		return err
	}

	if ue.Description == "" {
		ue.Description = orig.Description
	}
	if ue.Category == "" {
		ue.Category = orig.Category
	}
	if ue.Amount.IsZero() {
		ue.Amount = orig.Amount
	}
	if ue.DueDate.IsZero() {
		ue.DueDate = orig.DueDate
	}
	return nil
}

type QueryFilter struct {
	Month    string    `query:"month"` // YYYY-MM, overrides From/To
	From     core.Date `query:"from"`
	To       core.Date `query:"to"`
	Status   Status    `query:"status"`
	Category string    `query:"category"`
}

func (qf *QueryFilter) Clean() error {
	qf.Category = core.CleanString(qf.Category, true /* lower */)
	qf.Status = Status(core.CleanString(string(qf.Status), true /* lower */))

	switch qf.Status {
	case "", StatusPending, StatusPaid:
	default:
		return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "must be one of pending or paid"})
	}

	if qf.Month = core.CleanString(qf.Month); qf.Month != "" {
		t, err := time.Parse("2006-01", qf.Month)
		if err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "month", Error: "month must be formatted as YYYY-MM"})
		}
		qf.From, qf.To = core.MonthRange(t.Year(), t.Month())
	}
	return nil
}

// Totals sums a list of expenses the way the accounts payable screen shows them.
type Totals struct {
	Total       decimal.Decimal `json:"total"`
	Paid        decimal.Decimal `json:"paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

func ComputeTotals(expenses []Expense) Totals {
	var t Totals
	for _, e := range expenses {
		t.Total = t.Total.Add(e.Amount)
		if e.Status == StatusPaid {
			t.Paid = t.Paid.Add(e.Amount)
		} else {
			t.Outstanding = t.Outstanding.Add(e.Amount)
		}
	}
	return t
}
