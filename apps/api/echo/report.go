package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/report"
	"github.com/trezcool/mahudhurio/core/school"
	"github.com/trezcool/mahudhurio/core/user"
)

type reportApi struct {
	conf      *core.Config
	svc       report.Service
	schoolSvc school.Service
	usrSvc    user.Service
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, _ *tokenAuth, deps ServerDeps) {
	api := reportApi{
		conf:      deps.Conf,
		svc:       deps.ReportSvc,
		schoolSvc: deps.SchoolSvc,
		usrSvc:    deps.UserSvc,
	}
	read := classMiddleware(api.usrSvc, api.schoolSvc, false)

	rg := g.Group("/reports", jwt)
	rg.GET("/students/:id", api.student)
	rg.GET("/classes/:id", api.class, read)
	rg.GET("/classes/:id/daily", api.classDaily, read)
	rg.GET("/schools/:id", api.school)
	rg.GET("/districts/:district", api.district, roleMiddleware(user.RoleGovernment))
}

// period binds the report period, closed with the report defaults and bounded in length.
func (api *reportApi) period(ctx echo.Context) (core.Period, error) {
	period, err := new(PeriodQuery).Bind(ctx)
	if err != nil {
		return core.Period{}, err
	}
	period = api.svc.Period(period)
	if maxDays := api.conf.Attendance.MaxReportDays; maxDays > 0 && period.DayCount() > maxDays {
		return core.Period{}, core.NewValidationError(nil, core.FieldError{
			Field: "to",
			Error: fmt.Sprintf("period must not exceed %d days", maxDays),
		})
	}
	return period, nil
}

// Handlers

func (api *reportApi) student(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	period, err := api.period(ctx)
	if err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	std, err := api.schoolSvc.GetStudent(rctx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding student")
	}
	if !usr.CanAccessSchool(std.SchoolID) {
		return errHttpNotFound
	}

	rep, err := api.svc.Student(rctx, std.ID, period)
	if err != nil {
		return errors.Wrap(err, "building student report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportApi) class(ctx echo.Context) error {
	cls, err := getContextClass(ctx)
	if err != nil {
		return err
	}
	period, err := api.period(ctx)
	if err != nil {
		return err
	}

	rep, err := api.svc.Class(ctx.Request().Context(), cls.ID, period)
	if err != nil {
		return errors.Wrap(err, "building class report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportApi) classDaily(ctx echo.Context) error {
	cls, err := getContextClass(ctx)
	if err != nil {
		return err
	}
	period, err := api.period(ctx)
	if err != nil {
		return err
	}

	rep, err := api.svc.ClassDaily(ctx.Request().Context(), cls.ID, period)
	if err != nil {
		return errors.Wrap(err, "building class daily report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportApi) school(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	if !usr.CanAccessSchool(ctx.Param("id")) {
		return errHttpNotFound
	}
	period, err := api.period(ctx)
	if err != nil {
		return err
	}

	rep, err := api.svc.School(ctx.Request().Context(), ctx.Param("id"), period)
	if err != nil {
		return errors.Wrap(err, "building school report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportApi) district(ctx echo.Context) error {
	period, err := api.period(ctx)
	if err != nil {
		return err
	}

	rep, err := api.svc.District(ctx.Request().Context(), ctx.Param("district"), period)
	if err != nil {
		return errors.Wrap(err, "building district report")
	}
	return ctx.JSON(http.StatusOK, rep)
}
