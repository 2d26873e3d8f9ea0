package billing

import (
	"time"

	"github.com/trezcool/agape/core"
)

// EffectiveStatus derives the status of `c` on `today`: paid charges stay paid,
// unpaid ones are overdue once their due date is strictly before today and pending otherwise.
// Stored overdue/canceled values are only hints and never taken into account.
func EffectiveStatus(c Charge, today core.Date) Status {
	if c.Status == StatusPaid {
		return StatusPaid
	}
	if c.DueDate.Before(today) {
		return StatusOverdue
	}
	return StatusPending
}

// Today returns the current calendar day in `loc`.
func Today(loc *time.Location) core.Date {
	return core.DateOf(NowFunc(), loc)
}

func view(c Charge, today core.Date) ChargeView {
	return ChargeView{Charge: c, EffectiveStatus: EffectiveStatus(c, today)}
}

func views(charges []Charge, today core.Date) []ChargeView {
	out := make([]ChargeView, 0, len(charges))
	for _, c := range charges {
		out = append(out, view(c, today))
	}
	return out
}
