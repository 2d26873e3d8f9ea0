package billing

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/agape/core"
)

// Status is the stored payment status of a Charge.
// Only StatusPaid is authoritative, see EffectiveStatus.
type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusOverdue  Status = "overdue"
	StatusCanceled Status = "canceled"
)

// ChargeType tags what a Charge is for. The list is open-ended.
type ChargeType string

const (
	TypeTuition       ChargeType = "tuition"
	TypeMaterials     ChargeType = "materials"
	TypeEvent         ChargeType = "event"
	TypeEnrollmentFee ChargeType = "enrollment_fee"
)

type Charge struct {
	ID          string          `json:"id"`
	StudentID   string          `json:"student_id"`
	Type        ChargeType      `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     core.Date       `json:"due_date"`
	Note        string          `json:"note"`
	Status      Status          `json:"status"`
	PaymentLink *string         `json:"payment_link"`
	ExternalID  *string         `json:"external_id"` // gateway payment id, the reconciliation key
	PaidAt      *time.Time      `json:"paid_at"`     // UTC; set iff Status is paid
	CreatedAt   time.Time       `json:"created_at"`  // UTC
	UpdatedAt   time.Time       `json:"updated_at"`  // UTC

	StudentName string `json:"student_name,omitempty"` // set on reads
}

// ChargeView is a Charge as shown to callers: with its status derived for the current day.
type ChargeView struct {
	Charge
	EffectiveStatus Status `json:"effective_status"`
}

// NewCharge contains information needed to bill a student.
// GuardianName and GuardianTaxID are echoed back by the admin UI; the stored Guardian stays authoritative.
type NewCharge struct {
	StudentID     string          `json:"studentId" validate:"required,uuid"`
	Type          ChargeType      `json:"chargeType" validate:"required,notblank,max=50"`
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	DueDate       core.Date       `json:"dueDate" validate:"required"`
	Note          string          `json:"note" validate:"max=500"`
	GuardianName  string          `json:"guardianName"`
	GuardianTaxID string          `json:"guardianTaxId"`
}

func (nc *NewCharge) Validate(validate *validator.Validate) error {
	nc.StudentID = core.CleanString(nc.StudentID)
	nc.Type = ChargeType(core.CleanString(string(nc.Type), true /* lower */))
	nc.Note = core.CleanString(nc.Note)
	return validate.Struct(nc)
}

type QueryFilter struct {
	StudentID string    `query:"student_id"`
	Month     string    `query:"month"` // YYYY-MM, overrides From/To
	From      core.Date `query:"from"`  // due date, inclusive
	To        core.Date `query:"to"`    // due date, inclusive
	Status    Status    `query:"status"`
	Type      string    `query:"type"`
}

func (qf *QueryFilter) Clean() error {
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.Type = core.CleanString(qf.Type, true /* lower */)
	qf.Status = Status(core.CleanString(string(qf.Status), true /* lower */))

	switch qf.Status {
	case "", StatusPending, StatusPaid, StatusOverdue:
	default:
		return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "must be one of pending, paid or overdue"})
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

// ChargeQuery is what repositories filter charges on. Zero values are ignored.
type ChargeQuery struct {
	StudentID    string
	Type         string
	DueFrom      core.Date
	DueTo        core.Date
	DueBefore    core.Date // strictly before
	DueOnOrAfter core.Date
	Paid         *bool // stored status is (not) paid
	ExternalID   string
}

// Event is a payment notification pushed by the gateway.
type Event struct {
	Type      string
	PaymentID string
	Payload   []byte
}

// Outcome tells what reconciling an Event did.
type Outcome string

const (
	OutcomeUpdated  Outcome = "updated"
	OutcomeNotFound Outcome = "not_found"
	OutcomeIgnored  Outcome = "ignored"
)

// PaidEvents are the gateway event types meaning the payment went through.
var PaidEvents = map[string]bool{
	"PAYMENT_RECEIVED":  true,
	"PAYMENT_CONFIRMED": true,
}

// GatewayEvent is the audit record of a received Event.
type GatewayEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	ExternalID string    `json:"external_id"`
	Outcome    Outcome   `json:"outcome"`
	Payload    string    `json:"payload"`
	ReceivedAt time.Time `json:"received_at"` // UTC
}

// Reminder is a message ready to be sent to a guardian through WhatsApp.
type Reminder struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
	Link    string `json:"link"` // empty when the phone number is unusable
}

// Summary is the financial dashboard of a month.
type Summary struct {
	Month          string          `json:"month"` // YYYY-MM
	Received       decimal.Decimal `json:"received"`
	Outstanding    decimal.Decimal `json:"outstanding"`
	Overdue        decimal.Decimal `json:"overdue"` // all months
	Students       int             `json:"students"`
	RecentPayments []ChargeView    `json:"recent_payments"`
}
