package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/expense"
)

type expenseApi struct {
	svc expense.Service
}

func registerExpenseAPI(g *echo.Group, staff echo.MiddlewareFunc, svc expense.Service) {
	api := expenseApi{svc: svc}

	eg := g.Group("/expenses", staff, financeOnly)
	eg.GET("", api.query)
	eg.POST("", api.create)
	eg.GET("/:id", api.retrieve)
	eg.PUT("/:id", api.update)
	eg.DELETE("/:id", api.destroy)
	eg.POST("/:id/pay", api.pay)
}

type ExpenseList struct {
	Expenses []expense.Expense `json:"expenses"`
	Totals   expense.Totals    `json:"totals"`
}

func (api *expenseApi) create(ctx echo.Context) error {
	var data expense.NewExpense
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExpense")
	}

	exp, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating expense")
	}
	return ctx.JSON(http.StatusCreated, exp)
}

func (api *expenseApi) query(ctx echo.Context) error {
	filter := new(expense.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return core.NewValidationError(err)
	}

	expenses, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying expenses")
	}
	if expenses == nil {
		expenses = []expense.Expense{}
	}
	return ctx.JSON(http.StatusOK, ExpenseList{Expenses: expenses, Totals: expense.ComputeTotals(expenses)})
}

func (api *expenseApi) retrieve(ctx echo.Context) error {
	exp, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding expense by ID")
	}
	return ctx.JSON(http.StatusOK, exp)
}

func (api *expenseApi) update(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	exp, err := api.svc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding expense by ID")
	}

	var data expense.UpdateExpense
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateExpense")
	}

	exp, err = api.svc.Update(reqCtx, exp, data)
	if err != nil {
		return errors.Wrap(err, "updating expense")
	}
	return ctx.JSON(http.StatusOK, exp)
}

func (api *expenseApi) pay(ctx echo.Context) error {
	exp, err := api.svc.MarkPaid(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking expense paid")
	}
	return ctx.JSON(http.StatusOK, exp)
}

func (api *expenseApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting expense")
	}
	return ctx.NoContent(http.StatusNoContent)
}
