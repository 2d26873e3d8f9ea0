package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/agape/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// monthParam reads a YYYY-MM query param, defaulting to the month of today.
func monthParam(ctx echo.Context, name string, today core.Date) (int, time.Month, error) {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return today.Year(), today.Month(), nil
	}
	t, err := time.Parse("2006-01", val)
	if err != nil {
		return 0, 0, core.NewValidationError(err, core.FieldError{Field: name, Error: "month must be formatted as YYYY-MM"})
	}
	return t.Year(), t.Month(), nil
}

// limitParam reads a positive integer query param, falling back to def.
func limitParam(ctx echo.Context, name string, def int) int {
	if n, err := strconv.Atoi(ctx.QueryParam(name)); err == nil && n > 0 {
		return n
	}
	return def
}
