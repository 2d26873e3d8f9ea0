package billing

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"

	"github.com/trezcool/agape/core"
)

// OverdueCharge is a stored-pending charge past its due date, joined with its student and guardian.
// HasStudent is false when the student reference cannot be resolved.
type OverdueCharge struct {
	ChargeID      string          `db:"charge_id"`
	StudentID     string          `db:"student_id"`
	Type          ChargeType      `db:"type"`
	Amount        decimal.Decimal `db:"amount"`
	DueDate       core.Date       `db:"due_date"`
	PaymentLink   *string         `db:"payment_link"`
	HasStudent    bool            `db:"has_student"`
	StudentName   string          `db:"student_name"`
	ClassName     string          `db:"class_name"`
	GuardianName  string          `db:"guardian_name"`
	GuardianPhone string          `db:"guardian_phone"`
}

type DelinquentCharge struct {
	ChargeID    string          `json:"charge_id"`
	Type        ChargeType      `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     core.Date       `json:"due_date"`
	PaymentLink *string         `json:"payment_link"`
}

// Delinquent aggregates the overdue charges of one student.
type Delinquent struct {
	StudentID     string             `json:"student_id"`
	StudentName   string             `json:"student_name"`
	ClassName     string             `json:"class_name"`
	GuardianName  string             `json:"guardian_name"`
	GuardianPhone string             `json:"guardian_phone"`
	Total         decimal.Decimal    `json:"total"`
	Count         int                `json:"count"`
	Charges       []DelinquentCharge `json:"charges"`
}

const (
	unnamedStudent  = "Unnamed"
	noClass         = "-"
	unknownGuardian = "Not informed"
)

// AggregateDelinquents groups overdue charges per student, ranking students by total owed (descending).
// Charges with no resolvable student are skipped. Ties keep their grouping order.
func AggregateDelinquents(rows []OverdueCharge) []Delinquent {
	out := make([]Delinquent, 0)
	index := make(map[string]int)

	for _, row := range rows {
		if !row.HasStudent || row.StudentID == "" {
			continue
		}

		i, ok := index[row.StudentID]
		if !ok {
			i = len(out)
			index[row.StudentID] = i
			out = append(out, Delinquent{
				StudentID:     row.StudentID,
				StudentName:   fallback(row.StudentName, unnamedStudent),
				ClassName:     fallback(row.ClassName, noClass),
				GuardianName:  fallback(row.GuardianName, unknownGuardian),
				GuardianPhone: row.GuardianPhone,
				Total:         decimal.Zero,
				Charges:       make([]DelinquentCharge, 0, 1),
			})
		}

		d := &out[i]
		d.Total = d.Total.Add(row.Amount)
		d.Count++
		d.Charges = append(d.Charges, DelinquentCharge{
			ChargeID:    row.ChargeID,
			Type:        row.Type,
			Amount:      row.Amount,
			DueDate:     row.DueDate,
			PaymentLink: row.PaymentLink,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total.GreaterThan(out[j].Total)
	})
	return out
}

// ContactMessage composes the collection message sent to the guardian of `d`.
func ContactMessage(d Delinquent, currency string) string {
	return fmt.Sprintf(
		"Olá %s, notamos que o aluno(a) *%s* possui *%d %s* em aberto totalizando *%s*. "+
			"Poderia entrar em contato para regularizarmos?",
		d.GuardianName, d.StudentName, d.Count, plural(d.Count, "pendência", "pendências"),
		core.FormatMoney(d.Total, currency),
	)
}

// ChargeMessage composes the message carrying the payment link of a single charge.
func ChargeMessage(c Charge, studentName, guardianName, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Olá *%s*!\n", guardianName)
	fmt.Fprintf(&b, "Segue o link para pagamento da *%s* do aluno(a) *%s*.\n", c.Type, studentName)
	fmt.Fprintf(&b, "Vencimento: %s\n", c.DueDate.Time().Format("02/01/2006"))
	fmt.Fprintf(&b, "Valor: %s\n", core.FormatMoney(c.Amount, currency))
	if c.PaymentLink != nil {
		fmt.Fprintf(&b, "\nLink: %s", *c.PaymentLink)
	}
	return b.String()
}

// ContactLink returns the WhatsApp click-to-chat link sending `message` to `phone`.
// It is empty when the phone is not a valid number for `region`.
func ContactLink(phone, region, message string) string {
	num, err := libphonenumber.Parse(phone, region)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return ""
	}
	e164 := libphonenumber.Format(num, libphonenumber.E164)
	text := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return "https://wa.me/" + strings.TrimPrefix(e164, "+") + "?text=" + text
}

func fallback(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
