package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/school"
	"github.com/trezcool/mahudhurio/core/user"
)

type schoolApi struct {
	svc      school.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, _ *tokenAuth, deps ServerDeps) {
	api := schoolApi{
		svc:      deps.SchoolSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}
	member := schoolMemberMiddleware(api.usrSvc)

	sg := g.Group("/school", jwt, member)
	sg.GET("", api.retrieveSchool)
	sg.PUT("", api.updateSchool, adminMiddleware())

	cg := g.Group("/classes", jwt)
	cg.GET("", api.queryClasses, member)
	cg.POST("", api.createClass, adminMiddleware(), member)
	cg.GET("/:id", api.retrieveClass, classMiddleware(api.usrSvc, api.svc, false))
	cg.GET("/:id/roster", api.roster, classMiddleware(api.usrSvc, api.svc, false))

	stg := g.Group("/students", jwt, member)
	stg.GET("", api.queryStudents)
	stg.POST("", api.createStudent, adminMiddleware())
	stg.POST("/:id/deactivate", api.deactivateStudent, adminMiddleware())
}

// Handlers

func (api *schoolApi) retrieveSchool(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	sch, err := api.svc.GetSchool(ctx.Request().Context(), usr.SchoolID)
	if err != nil {
		return errors.Wrap(err, "finding school")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) updateSchool(ctx echo.Context) error {
	var data school.UpdateSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSchool")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	sch, err := api.svc.UpdateSchool(ctx.Request().Context(), usr.SchoolID, data)
	if err != nil {
		return errors.Wrap(err, "updating school")
	}
	return ctx.JSON(http.StatusOK, sch)
}

// queryClasses lists the classes of the user's school; teachers only see theirs.
func (api *schoolApi) queryClasses(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	filter := school.ClassFilter{SchoolID: usr.SchoolID}
	if usr.IsTeacher() {
		filter.TeacherID = usr.ID
	}
	classes, err := api.svc.QueryClasses(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *schoolApi) createClass(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data school.NewClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	rctx := ctx.Request().Context()
	if err = data.Validate(rctx, api.validate, api.usrSvc, usr.SchoolID); err != nil {
		return err
	}

	cls, err := api.svc.CreateClass(rctx, usr.SchoolID, data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *schoolApi) retrieveClass(ctx echo.Context) error {
	cls, err := getContextClass(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *schoolApi) roster(ctx echo.Context) error {
	cls, err := getContextClass(ctx)
	if err != nil {
		return err
	}
	students, err := api.svc.FetchActiveRoster(ctx.Request().Context(), cls.ID)
	if err != nil {
		return errors.Wrap(err, "fetching roster")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *schoolApi) queryStudents(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	filter := new(school.StudentFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.Student{})
	}
	filter.Clean()
	filter.SchoolID = usr.SchoolID

	students, err := api.svc.QueryStudents(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *schoolApi) createStudent(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data school.NewStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	rctx := ctx.Request().Context()
	if err = data.Validate(rctx, api.validate, api.svc, usr.SchoolID); err != nil {
		return err
	}

	std, err := api.svc.CreateStudent(rctx, usr.SchoolID, data)
	if err != nil {
		if errors.Cause(err) == school.ErrStudentCodeExists {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, std)
}

// deactivateStudent marks a student of the admin's school inactive; students are never deleted.
func (api *schoolApi) deactivateStudent(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	rctx := ctx.Request().Context()
	std, err := api.svc.GetStudent(rctx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding student")
	}
	if std.SchoolID != usr.SchoolID {
		return errHttpNotFound
	}

	std, err = api.svc.DeactivateStudent(rctx, std.ID)
	if err != nil {
		return errors.Wrap(err, "deactivating student")
	}
	return ctx.JSON(http.StatusOK, std)
}
