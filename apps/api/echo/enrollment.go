package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/agape/core/enrollment"
	"github.com/trezcool/agape/core/grade"
)

type enrollmentApi struct {
	svc    enrollment.Service
	grades grade.Service
}

func registerEnrollmentAPI(g *echo.Group, staff echo.MiddlewareFunc, svc enrollment.Service, grades grade.Service) {
	api := enrollmentApi{svc: svc, grades: grades}

	g.GET("/classes", api.listClasses, staff, anyStaffMember)

	sg := g.Group("/students", staff)
	sg.GET("", api.queryStudents, anyStaffMember)
	sg.POST("", api.enroll, secretaryOnly)
	sg.GET("/:id", api.retrieveStudent, anyStaffMember)
	sg.PUT("/:id", api.updateStudent, secretaryOnly)
	sg.DELETE("/:id", api.destroyStudent, secretaryOnly)
	sg.GET("/:id/report-card", api.reportCard, gradeKeepers)

	gg := g.Group("/guardians", staff)
	gg.GET("", api.queryGuardians, secretaryOnly)
	gg.GET("/:id", api.retrieveGuardian, secretaryOnly)
	gg.PUT("/:id", api.updateGuardian, secretaryOnly)
	gg.DELETE("/:id", api.destroyGuardian, secretaryOnly)
}

// Students

func (api *enrollmentApi) enroll(ctx echo.Context) error {
	var data enrollment.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}

	stdnt, err := api.svc.Enroll(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, stdnt)
}

func (api *enrollmentApi) queryStudents(ctx echo.Context) error {
	filter := new(enrollment.StudentFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []enrollment.Student{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.QueryStudents(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []enrollment.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *enrollmentApi) retrieveStudent(ctx echo.Context) error {
	stdnt, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding student by ID")
	}
	return ctx.JSON(http.StatusOK, stdnt)
}

func (api *enrollmentApi) updateStudent(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	stdnt, err := api.svc.GetStudent(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding student by ID")
	}

	var data enrollment.UpdateStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}

	stdnt, err = api.svc.UpdateStudent(reqCtx, stdnt, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, stdnt)
}

func (api *enrollmentApi) destroyStudent(ctx echo.Context) error {
	if err := api.svc.DeleteStudent(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *enrollmentApi) reportCard(ctx echo.Context) error {
	rows, err := api.grades.ReportCard(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building report card")
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *enrollmentApi) listClasses(ctx echo.Context) error {
	classes, err := api.svc.ListClasses(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing classes")
	}
	if classes == nil {
		classes = []string{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

// Guardians

func (api *enrollmentApi) queryGuardians(ctx echo.Context) error {
	guardians, err := api.svc.QueryGuardians(ctx.Request().Context(), ctx.QueryParam("search"))
	if err != nil {
		return errors.Wrap(err, "querying guardians")
	}
	if guardians == nil {
		guardians = []enrollment.Guardian{}
	}
	return ctx.JSON(http.StatusOK, guardians)
}

func (api *enrollmentApi) retrieveGuardian(ctx echo.Context) error {
	grdn, err := api.svc.GetGuardian(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding guardian by ID")
	}
	return ctx.JSON(http.StatusOK, grdn)
}

func (api *enrollmentApi) updateGuardian(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	grdn, err := api.svc.GetGuardian(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding guardian by ID")
	}

	var data enrollment.UpdateGuardian
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGuardian")
	}

	grdn, err = api.svc.UpdateGuardian(reqCtx, grdn, data)
	if err != nil {
		return errors.Wrap(err, "updating guardian")
	}
	return ctx.JSON(http.StatusOK, grdn)
}

func (api *enrollmentApi) destroyGuardian(ctx echo.Context) error {
	if err := api.svc.DeleteGuardian(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting guardian")
	}
	return ctx.NoContent(http.StatusNoContent)
}
