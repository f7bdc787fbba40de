package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/school"
	"github.com/trezcool/mahudhurio/core/user"
)

const contextClassKey = "class"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mahudhurio_http_requests_total",
		Help: "Number of HTTP requests by route, method and status code.",
	}, []string{"route", "method", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mahudhurio_http_request_duration_seconds",
		Help:    "Duration of HTTP requests by route and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})
)

func metricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				ctx.Error(err)
			}

			route := ctx.Path()
			if route == "" {
				route = "unknown"
			}
			method := ctx.Request().Method
			httpRequests.WithLabelValues(route, method, strconv.Itoa(ctx.Response().Status)).Inc()
			httpDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// roleMiddleware only lets users with one of roles through.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if core.StringIn(claims.Role, roles...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleAdmin)
}

// schoolMemberMiddleware only lets users attached to a school through.
func schoolMemberMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return err
			}
			if usr.SchoolID == "" {
				return errNoSchool
			}
			return next(ctx)
		}
	}
}

// classMiddleware loads the class of the ":id" param into the context.
// Classes of other schools are not found. When teach is set, teachers are limited to their own classes
// and government users are refused.
func classMiddleware(usrSvc user.Service, schoolSvc school.Service, teach bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return err
			}
			cls, err := schoolSvc.GetClass(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == school.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding class")
			}
			if !usr.CanAccessSchool(cls.SchoolID) {
				return errHttpNotFound
			}
			if teach {
				if usr.IsGovernment() || (usr.IsTeacher() && cls.TeacherID != usr.ID) {
					return errHttpForbidden
				}
			}
			ctx.Set(contextClassKey, cls)
			return next(ctx)
		}
	}
}

func getContextClass(ctx echo.Context) (school.Class, error) {
	if cls, ok := ctx.Get(contextClassKey).(school.Class); ok {
		return cls, nil
	}
	return school.Class{}, errors.New("class object not found in echo.Context")
}
