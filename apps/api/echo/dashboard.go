package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/dashboard"
	"github.com/trezcool/mahudhurio/core/user"
)

type dashboardApi struct {
	svc      dashboard.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, _ *tokenAuth, deps ServerDeps) {
	api := dashboardApi{
		svc:      deps.DashboardSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	dg := g.Group("/dashboard", jwt)
	dg.GET("", api.dispatch)
	dg.GET("/teacher", api.teacher, roleMiddleware(user.RoleTeacher))
	dg.GET("/admin", api.admin, adminMiddleware(), schoolMemberMiddleware(api.usrSvc))
	dg.GET("/government", api.government, roleMiddleware(user.RoleGovernment))
}

// dispatch serves the dashboard of the requesting user's role.
func (api *dashboardApi) dispatch(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	switch user.DashboardFor(usr.Role) {
	case user.DashboardAdmin:
		if usr.SchoolID == "" {
			return errNoSchool
		}
		return api.admin(ctx)
	case user.DashboardGovernment:
		return api.government(ctx)
	default:
		return api.teacher(ctx)
	}
}

func (api *dashboardApi) teacher(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	dash, err := api.svc.Teacher(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "building teacher dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *dashboardApi) admin(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	dash, err := api.svc.Admin(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "building admin dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *dashboardApi) government(ctx echo.Context) error {
	var query dashboard.GovernmentQuery
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to GovernmentQuery")
	}
	if err := query.Validate(api.validate); err != nil {
		return err
	}
	dash, err := api.svc.Government(ctx.Request().Context(), query)
	if err != nil {
		return errors.Wrap(err, "building government dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}
