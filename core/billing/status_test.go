package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/agape/core"
)

func TestEffectiveStatus(t *testing.T) {
	today := core.MustParseDate("2024-03-10")
	paidAt := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		status Status
		due    string
		paidAt *time.Time
		want   Status
	}{
		{"paid before due", StatusPaid, "2024-04-10", &paidAt, StatusPaid},
		{"paid after due", StatusPaid, "2024-01-10", &paidAt, StatusPaid},
		{"due in the future", StatusPending, "2024-03-11", nil, StatusPending},
		{"due today is not overdue", StatusPending, "2024-03-10", nil, StatusPending},
		{"due yesterday", StatusPending, "2024-03-09", nil, StatusOverdue},
		{"stored overdue but not due yet", StatusOverdue, "2024-03-20", nil, StatusPending},
		{"stored overdue and past due", StatusOverdue, "2024-03-01", nil, StatusOverdue},
		{"canceled is not authoritative", StatusCanceled, "2024-03-01", nil, StatusOverdue},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c := Charge{Status: tt.status, DueDate: core.MustParseDate(tt.due), PaidAt: tt.paidAt}
			assert.Equal(t, tt.want, EffectiveStatus(c, today))
		})
	}
}

func TestToday(t *testing.T) {
	orig := NowFunc
	t.Cleanup(func() { NowFunc = orig })
	NowFunc = func() time.Time { return time.Date(2024, time.March, 10, 2, 0, 0, 0, time.UTC) }

	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "2024-03-09", Today(saoPaulo).String())
	assert.Equal(t, "2024-03-10", Today(time.UTC).String())
}
