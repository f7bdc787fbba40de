package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/school"
	"github.com/trezcool/mahudhurio/core/user"
)

type attendanceApi struct {
	svc       attendance.Service
	drafts    *attendance.Drafts
	schoolSvc school.Service
	usrSvc    user.Service
	validate  *validator.Validate
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, _ *tokenAuth, deps ServerDeps) {
	api := attendanceApi{
		svc:       deps.AttendanceSvc,
		drafts:    deps.Drafts,
		schoolSvc: deps.SchoolSvc,
		usrSvc:    deps.UserSvc,
		validate:  deps.Validate,
	}
	read := classMiddleware(api.usrSvc, api.schoolSvc, false)
	teach := classMiddleware(api.usrSvc, api.schoolSvc, true)

	// routes are added one by one: a "/classes/:id" group would shadow the class routes of the school API
	g.GET("/classes/:id/sessions", api.querySessions, jwt, read)
	g.POST("/classes/:id/attendance", api.commit, jwt, teach)
	g.GET("/classes/:id/attendance/reconcile", api.reconcile, jwt, adminMiddleware(), read)

	draft := "/classes/:id/attendance/draft"
	g.GET(draft, api.getDraft, jwt, teach)
	g.DELETE(draft, api.discardDraft, jwt, teach)
	g.PUT(draft+"/marks/:student", api.setDraftMark, jwt, teach)
	g.POST(draft+"/all-present", api.setDraftAllPresent, jwt, teach)
	g.POST(draft+"/commit", api.commitDraft, jwt, teach)
}

// Handlers

// commit persists a whole draft submitted at once.
func (api *attendanceApi) commit(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	cls, err := getContextClass(ctx)
	if err != nil {
		return err
	}

	var data attendance.NewSession
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	day, err := core.ParseDay(data.Date)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "date", Error: attendance.ErrInvalidDate.Error()})
	}

	summary, err := api.svc.Commit(ctx.Request().Context(), attendance.CommitRequest{
		ClassID:     cls.ID,
		Date:        day,
		CommittedBy: usr.ID,
		Marks:       data.Buffer().Marks(),
	})
	if err != nil {
		return errors.Wrap(err, "committing attendance")
	}
	return ctx.JSON(http.StatusCreated, summary)
}

func (api *attendanceApi) querySessions(ctx echo.Context) error {
	cls, err := getContextClass(ctx)
	if err != nil {
		return err
	}
	period, err := new(PeriodQuery).Bind(ctx)
	if err != nil {
		return err
	}

	sessions, err := api.svc.QuerySessions(ctx.Request().Context(), attendance.SessionFilter{
		ClassIDs: []string{cls.ID},
		Period:   period,
	})
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	return ctx.JSON(http.StatusOK, sessions)
}

// reconcile lists the sessions and records of a class left inconsistent by interrupted commits.
func (api *attendanceApi) reconcile(ctx echo.Context) error {
	cls, err := getContextClass(ctx)
	if err != nil {
		return err
	}
	period, err := new(PeriodQuery).Bind(ctx)
	if err != nil {
		return err
	}

	rec, err := api.svc.Reconcile(ctx.Request().Context(), cls.ID, period)
	if err != nil {
		return errors.Wrap(err, "reconciling attendance")
	}
	return ctx.JSON(http.StatusOK, rec)
}

// draftKey returns the key of the requesting teacher's draft for the context class.
func (api *attendanceApi) draftKey(ctx echo.Context) (attendance.DraftKey, error) {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return attendance.DraftKey{}, err
	}
	cls, err := getContextClass(ctx)
	if err != nil {
		return attendance.DraftKey{}, err
	}
	return attendance.DraftKey{TeacherID: usr.ID, ClassID: cls.ID}, nil
}

func (api *attendanceApi) getDraft(ctx echo.Context) error {
	key, err := api.draftKey(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.drafts.Get(key))
}

func (api *attendanceApi) discardDraft(ctx echo.Context) error {
	key, err := api.draftKey(ctx)
	if err != nil {
		return err
	}
	api.drafts.Discard(key)
	return ctx.NoContent(http.StatusNoContent)
}

// setDraftMark sets the status and/or notes of a student's mark.
func (api *attendanceApi) setDraftMark(ctx echo.Context) error {
	key, err := api.draftKey(ctx)
	if err != nil {
		return err
	}

	var data DraftMarkRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DraftMarkRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	studentID := core.CleanString(ctx.Param("student"))
	var draft attendance.Draft
	switch {
	case data.Status == "":
		draft = api.drafts.SetNotes(key, studentID, *data.Notes)
	case data.Notes != nil:
		draft = api.drafts.SetMark(key, studentID, data.Status, *data.Notes)
	default:
		draft = api.drafts.SetMark(key, studentID, data.Status)
	}
	return ctx.JSON(http.StatusOK, draft)
}

// setDraftAllPresent replaces the draft with a present mark for every student of the class roster.
func (api *attendanceApi) setDraftAllPresent(ctx echo.Context) error {
	key, err := api.draftKey(ctx)
	if err != nil {
		return err
	}
	draft, err := api.drafts.FillPresent(ctx.Request().Context(), key, api.schoolSvc)
	if err != nil {
		return errors.Wrap(err, "marking all present")
	}
	return ctx.JSON(http.StatusOK, draft)
}

// commitDraft commits the held draft; it is kept when the commit fails.
func (api *attendanceApi) commitDraft(ctx echo.Context) error {
	key, err := api.draftKey(ctx)
	if err != nil {
		return err
	}

	var data attendance.DraftRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DraftRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	day, err := data.Day()
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "date", Error: attendance.ErrInvalidDate.Error()})
	}

	summary, err := api.drafts.Commit(ctx.Request().Context(), key, day, api.svc)
	if err != nil {
		return errors.Wrap(err, "committing draft")
	}
	return ctx.JSON(http.StatusCreated, summary)
}

// DraftMarkRequest updates one mark of a draft; notes alone keep the current status.
type DraftMarkRequest struct {
	Status attendance.Status `json:"status" validate:"required_without=Notes,omitempty,attendance_status"`
	Notes  *string           `json:"notes" validate:"omitempty,max=500"`
}

func (dr *DraftMarkRequest) Validate(validate *validator.Validate) error {
	dr.Status = attendance.Status(core.CleanString(string(dr.Status), true /* lower */))
	if dr.Notes != nil {
		notes := core.CleanString(*dr.Notes)
		dr.Notes = &notes
	}
	return validate.Struct(dr)
}
