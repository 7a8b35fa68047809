package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shulehq/shule/core/attendance"
	"github.com/shulehq/shule/core/user"
)

type attendanceAPI struct {
	svc  attendance.Service
	deps ServerDeps
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := attendanceAPI{
		svc:  deps.AttendanceSvc,
		deps: deps,
	}

	tg := g.Group("/teacher/schools/:id/attendance", jwt,
		roleMiddleware(user.RoleSuper, user.RoleAdmin, user.RolePrincipal, user.RoleTeacher))
	tg.POST("", api.mark)
	tg.PATCH("/:recordID", api.checkOut)
	tg.GET("", api.query)
}

// Handlers

func (api *attendanceAPI) mark(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data attendance.NewRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRecord")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	rec, err := api.svc.Mark(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return jsonData(ctx, http.StatusCreated, rec)
}

func (api *attendanceAPI) checkOut(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rec, err := api.svc.CheckOut(ctx.Request().Context(), claims.Subject, ctx.Param("id"), ctx.Param("recordID"))
	if err != nil {
		return err
	}
	return jsonData(ctx, http.StatusOK, rec)
}

func (api *attendanceAPI) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var filter attendance.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return jsonData(ctx, http.StatusOK, []attendance.Record{})
	}

	recs, err := api.svc.Query(ctx.Request().Context(), claims.Subject, ctx.Param("id"), filter)
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []attendance.Record{}
	}
	return jsonData(ctx, http.StatusOK, recs)
}
