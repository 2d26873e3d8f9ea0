package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/agape/core/grade"
)

type gradeApi struct {
	svc grade.Service
}

func registerGradeAPI(g *echo.Group, staff echo.MiddlewareFunc, svc grade.Service) {
	api := gradeApi{svc: svc}

	gg := g.Group("/grades", staff, gradeKeepers)
	gg.GET("", api.query)
	gg.POST("/term", api.recordTerm)
	gg.GET("/:id", api.retrieve)
	gg.PUT("/:id", api.update)
	gg.DELETE("/:id", api.destroy)
}

func (api *gradeApi) recordTerm(ctx echo.Context) error {
	var data grade.NewTermGrades
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTermGrades")
	}

	grades, err := api.svc.RecordTerm(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording term grades")
	}
	return ctx.JSON(http.StatusCreated, grades)
}

func (api *gradeApi) query(ctx echo.Context) error {
	filter := new(grade.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []grade.Grade{})
	}

	grades, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	if grades == nil {
		grades = []grade.Grade{}
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *gradeApi) retrieve(ctx echo.Context) error {
	grd, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding grade by ID")
	}
	return ctx.JSON(http.StatusOK, grd)
}

func (api *gradeApi) update(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	grd, err := api.svc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding grade by ID")
	}

	var data grade.UpdateGrade
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGrade")
	}

	grd, err = api.svc.Update(reqCtx, grd, data)
	if err != nil {
		return errors.Wrap(err, "updating grade")
	}
	return ctx.JSON(http.StatusOK, grd)
}

func (api *gradeApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting grade")
	}
	return ctx.NoContent(http.StatusNoContent)
}
